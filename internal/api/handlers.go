package api

import (
	"encoding/json"
	"net/http"

	"github.com/go-chi/chi/v5"

	"n1core/domain/core"
	"n1core/domain/correlation"
	"n1core/domain/insight"
	"n1core/internal/errors"
)

func athleteParam(r *http.Request) (core.AthleteID, error) {
	id, err := core.ParseAthleteID(chi.URLParam(r, "athleteID"))
	if err != nil {
		return "", errors.InvalidInput(err.Error())
	}
	return id, nil
}

func (s *Server) handleReadiness(w http.ResponseWriter, r *http.Request) {
	athleteID, err := athleteParam(r)
	if err != nil {
		s.writeError(w, r, err)
		return
	}
	date, err := core.ParseDate(chi.URLParam(r, "date"))
	if err != nil {
		s.writeError(w, r, errors.InvalidInput(err.Error()))
		return
	}
	d, err := s.deps.Readiness.Get(r.Context(), athleteID, date)
	if err != nil {
		s.writeError(w, r, err)
		return
	}
	s.writeJSON(w, http.StatusOK, d)
}

type findingsResponse struct {
	AthleteID core.AthleteID         `json:"athlete_id"`
	Eligible  bool                   `json:"eligible_only"`
	Findings  []*correlation.Finding `json:"findings"`
}

func (s *Server) handleFindings(w http.ResponseWriter, r *http.Request) {
	athleteID, err := athleteParam(r)
	if err != nil {
		s.writeError(w, r, err)
		return
	}
	eligibleOnly := r.URL.Query().Get("eligible") == "1"

	var list []*correlation.Finding
	if eligibleOnly {
		list, err = s.deps.Findings.Eligible(r.Context(), athleteID, s.deps.Clock.Now())
	} else {
		list, err = s.deps.Findings.List(r.Context(), athleteID)
	}
	if err != nil {
		s.writeError(w, r, err)
		return
	}
	if list == nil {
		list = []*correlation.Finding{}
	}
	s.writeJSON(w, http.StatusOK, findingsResponse{AthleteID: athleteID, Eligible: eligibleOnly, Findings: list})
}

type insightsResponse struct {
	AthleteID core.AthleteID    `json:"athlete_id"`
	Date      string            `json:"date"`
	Insights  []*insight.Record `json:"insights"`
}

func (s *Server) handleInsights(w http.ResponseWriter, r *http.Request) {
	athleteID, err := athleteParam(r)
	if err != nil {
		s.writeError(w, r, err)
		return
	}
	raw := r.URL.Query().Get("date")
	if raw == "" {
		s.writeError(w, r, errors.InvalidInput("date query parameter is required"))
		return
	}
	date, err := core.ParseDate(raw)
	if err != nil {
		s.writeError(w, r, errors.InvalidInput(err.Error()))
		return
	}
	list, err := s.deps.Insights.ForDate(r.Context(), athleteID, date)
	if err != nil {
		s.writeError(w, r, err)
		return
	}
	if list == nil {
		list = []*insight.Record{}
	}
	s.writeJSON(w, http.StatusOK, insightsResponse{AthleteID: athleteID, Date: core.DateKey(date), Insights: list})
}

type responseRequest struct {
	Response string `json:"response" validate:"required,oneof=acknowledged dismissed acted"`
}

func (s *Server) handleResponse(w http.ResponseWriter, r *http.Request) {
	id, err := core.ParseInsightID(chi.URLParam(r, "insightID"))
	if err != nil {
		s.writeError(w, r, errors.InvalidInput(err.Error()))
		return
	}
	var req responseRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		s.writeError(w, r, errors.InvalidInput("invalid JSON body"))
		return
	}
	if err := s.validate.Struct(req); err != nil {
		s.writeError(w, r, errors.WithCode(errors.CodeValidationError, err))
		return
	}
	rec, err := s.deps.Insights.Respond(r.Context(), id, insight.Response(req.Response))
	if err != nil {
		s.writeError(w, r, err)
		return
	}
	s.writeJSON(w, http.StatusOK, rec)
}
