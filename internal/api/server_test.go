package api

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"n1core/adapters/memory"
	"n1core/app"
	"n1core/domain/core"
	"n1core/domain/correlation"
	"n1core/domain/insight"
	"n1core/domain/readiness"
	"n1core/domain/signal"
	"n1core/internal"
	"n1core/internal/findings"
	"n1core/internal/metrics"
)

var today = time.Date(2026, 6, 10, 0, 0, 0, 0, time.UTC)

func newTestServer(t *testing.T) (*Server, *memory.Store) {
	t.Helper()
	store := memory.NewStore()
	clock := core.FixedClock{At: today.Add(8 * time.Hour)}
	ctx := context.Background()

	require.NoError(t, store.Readiness().Upsert(ctx, &readiness.DailyReadiness{
		AthleteID: "ath-1", Date: today, Score: 62, ThresholdVersion: 1, ComputedAt: clock.At,
	}))
	for i, confirmed := range []int{4, 1} {
		f := &correlation.Finding{
			ID:              core.FindingID([]string{"f-1", "f-2"}[i]),
			AthleteID:       "ath-1",
			Key:             correlation.Key{Input: signal.SleepHours, Output: signal.EfficiencyFactor, LagDays: i},
			Confidence:      0.5,
			TimesConfirmed:  confirmed,
			IsActive:        true,
			FirstDetectedOn: today.AddDate(0, 0, -21),
			LastConfirmedOn: today,
			LastRunDate:     today,
		}
		_, err := store.Findings().Save(ctx, f)
		require.NoError(t, err)
	}
	_, err := store.Insights().Insert(ctx, &insight.Record{
		ID: "ins-1", AthleteID: "ath-1", Date: today, RuleID: "readiness_context", Subject: "readiness",
		Mode: insight.ModeInform, Action: insight.ActionNone, MessageKey: "readiness.context", CreatedAt: clock.At,
	})
	require.NoError(t, err)

	m := metrics.NewRegistry()
	s := NewServer(Deps{
		Readiness: store.Readiness(),
		Findings:  findings.NewStore(store.Findings(), clock, internal.Discard, m),
		Insights:  app.NewInsightService(store.Insights(), store.RuleStates(), clock, internal.Discard),
		Clock:     clock,
		Logger:    internal.Discard,
		Metrics:   m,
	})
	return s, store
}

func do(s *Server, method, path, body string) *httptest.ResponseRecorder {
	req := httptest.NewRequest(method, path, strings.NewReader(body))
	rec := httptest.NewRecorder()
	s.ServeHTTP(rec, req)
	return rec
}

func TestReadinessEndpoint(t *testing.T) {
	s, _ := newTestServer(t)

	rec := do(s, http.MethodGet, "/athletes/ath-1/readiness/2026-06-10", "")
	require.Equal(t, http.StatusOK, rec.Code)
	var d readiness.DailyReadiness
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &d))
	assert.Equal(t, 62.0, d.Score)

	rec = do(s, http.MethodGet, "/athletes/ath-1/readiness/2026-06-09", "")
	assert.Equal(t, http.StatusNotFound, rec.Code)

	rec = do(s, http.MethodGet, "/athletes/ath-1/readiness/yesterday", "")
	assert.Equal(t, http.StatusBadRequest, rec.Code)
}

func TestFindingsEndpoint(t *testing.T) {
	s, _ := newTestServer(t)

	var body findingsResponse
	rec := do(s, http.MethodGet, "/athletes/ath-1/findings", "")
	require.Equal(t, http.StatusOK, rec.Code)
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &body))
	assert.Len(t, body.Findings, 2)

	rec = do(s, http.MethodGet, "/athletes/ath-1/findings?eligible=1", "")
	require.Equal(t, http.StatusOK, rec.Code)
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &body))
	require.Len(t, body.Findings, 1)
	assert.Equal(t, 4, body.Findings[0].TimesConfirmed)
	assert.True(t, body.Eligible)

	rec = do(s, http.MethodGet, "/athletes/nobody/findings", "")
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Contains(t, rec.Body.String(), `"findings":[]`)
}

func TestInsightsEndpoint(t *testing.T) {
	s, _ := newTestServer(t)

	rec := do(s, http.MethodGet, "/athletes/ath-1/insights?date=2026-06-10", "")
	require.Equal(t, http.StatusOK, rec.Code)
	var body insightsResponse
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &body))
	require.Len(t, body.Insights, 1)
	assert.Equal(t, core.RuleID("readiness_context"), body.Insights[0].RuleID)

	rec = do(s, http.MethodGet, "/athletes/ath-1/insights", "")
	assert.Equal(t, http.StatusBadRequest, rec.Code)
}

func TestResponseEndpoint(t *testing.T) {
	s, store := newTestServer(t)

	rec := do(s, http.MethodPost, "/insights/ins-1/response", `{"response":"maybe"}`)
	assert.Equal(t, http.StatusBadRequest, rec.Code)

	rec = do(s, http.MethodPost, "/insights/ins-1/response", `not json`)
	assert.Equal(t, http.StatusBadRequest, rec.Code)

	rec = do(s, http.MethodPost, "/insights/ins-1/response", `{"response":"acknowledged"}`)
	require.Equal(t, http.StatusOK, rec.Code)
	var got insight.Record
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &got))
	require.NotNil(t, got.AthleteResponse)
	assert.Equal(t, insight.ResponseAcknowledged, *got.AthleteResponse)

	st, err := store.RuleStates().Get(context.Background(), "ath-1", "readiness_context")
	require.NoError(t, err)
	require.NotNil(t, st)
	assert.Equal(t, today, *st.AcknowledgedOn)

	rec = do(s, http.MethodPost, "/insights/ins-1/response", `{"response":"dismissed"}`)
	assert.Equal(t, http.StatusConflict, rec.Code)

	rec = do(s, http.MethodPost, "/insights/missing/response", `{"response":"dismissed"}`)
	assert.Equal(t, http.StatusNotFound, rec.Code)
}

func TestHealthAndMetrics(t *testing.T) {
	s, _ := newTestServer(t)

	rec := do(s, http.MethodGet, "/healthz", "")
	assert.Equal(t, http.StatusOK, rec.Code)

	s.deps.Metrics.AthleteRun("ok")
	rec = do(s, http.MethodGet, "/metrics", "")
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Contains(t, rec.Body.String(), "n1core_")
}
