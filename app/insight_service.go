package app

import (
	"context"
	"fmt"
	"time"

	"n1core/domain/core"
	"n1core/domain/insight"
	"n1core/internal"
	"n1core/ports"
)

// InsightService is the read and response surface over stored insights
type InsightService struct {
	insights ports.InsightRepository
	states   ports.RuleStateRepository
	clock    core.Clock
	logger   *internal.Logger
}

// NewInsightService creates an insight service
func NewInsightService(insights ports.InsightRepository, states ports.RuleStateRepository, clock core.Clock, logger *internal.Logger) *InsightService {
	if clock == nil {
		clock = core.SystemClock{}
	}
	return &InsightService{insights: insights, states: states, clock: clock, logger: logger.Or()}
}

// Get returns one insight
func (s *InsightService) Get(ctx context.Context, id core.InsightID) (*insight.Record, error) {
	return s.insights.Get(ctx, id)
}

// ForDate returns the insights stored for an athlete and date
func (s *InsightService) ForDate(ctx context.Context, athleteID core.AthleteID, date time.Time) ([]*insight.Record, error) {
	return s.insights.ListByDate(ctx, athleteID, core.DateOf(date))
}

// Respond records the athlete's reaction, at most once per insight. Acknowledging or
// acting also stamps the rule state, which is what reverts an escalated mode and holds
// off re-escalation.
func (s *InsightService) Respond(ctx context.Context, id core.InsightID, resp insight.Response) (*insight.Record, error) {
	if !resp.Valid() {
		return nil, core.NewValidationError("response", fmt.Sprintf("unknown response %q", resp))
	}
	rec, err := s.insights.Get(ctx, id)
	if err != nil {
		return nil, err
	}
	now := s.clock.Now()
	if err := s.insights.SetResponse(ctx, id, resp, now); err != nil {
		return nil, err
	}
	log := s.logger.With("athlete_id", rec.AthleteID.String(), "rule_id", rec.RuleID.String())
	log.Info("insight %s: %s", id, resp)

	if resp == insight.ResponseAcknowledged || resp == insight.ResponseActed {
		st, err := s.states.Get(ctx, rec.AthleteID, rec.RuleID)
		if err != nil {
			return nil, fmt.Errorf("load rule state: %w", err)
		}
		if st == nil {
			st = &insight.RuleState{AthleteID: rec.AthleteID, RuleID: rec.RuleID, Mode: insight.ModeInform}
		}
		day := core.DateOf(now)
		st.AcknowledgedOn = &day
		if err := s.states.Save(ctx, st); err != nil {
			return nil, fmt.Errorf("save rule state: %w", err)
		}
	}
	return s.insights.Get(ctx, id)
}
