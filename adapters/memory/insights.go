package memory

import (
	"context"
	"sort"
	"time"

	"n1core/domain/core"
	"n1core/domain/insight"
)

// Insights returns the store as a ports.InsightRepository
func (s *Store) Insights() *InsightRepository { return &InsightRepository{s} }

// InsightRepository is the in-memory insight audit trail
type InsightRepository struct{ s *Store }

func insightKey(r *insight.Record) string {
	return key(r.AthleteID.String(), r.RuleID.String(), core.DateKey(r.Date), r.Subject)
}

func cloneInsight(r *insight.Record) *insight.Record {
	cp := *r
	if r.CitedData != nil {
		cp.CitedData = make(map[string]any, len(r.CitedData))
		for k, v := range r.CitedData {
			cp.CitedData[k] = v
		}
	}
	return &cp
}

// Insert ignores a second insight for the same (athlete, rule, date, subject)
func (r *InsightRepository) Insert(ctx context.Context, rec *insight.Record) (bool, error) {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()
	k := insightKey(rec)
	if _, ok := r.s.insightKeys[k]; ok {
		return false, nil
	}
	r.s.insightKeys[k] = rec.ID
	r.s.insights[rec.ID] = cloneInsight(rec)
	return true, nil
}

// Get returns one insight by id
func (r *InsightRepository) Get(ctx context.Context, id core.InsightID) (*insight.Record, error) {
	r.s.mu.RLock()
	defer r.s.mu.RUnlock()
	rec, ok := r.s.insights[id]
	if !ok {
		return nil, core.ErrInsightNotFound
	}
	return cloneInsight(rec), nil
}

// ListByDate returns the insights stored for one day
func (r *InsightRepository) ListByDate(ctx context.Context, athleteID core.AthleteID, date time.Time) ([]*insight.Record, error) {
	return r.Range(ctx, athleteID, date, date)
}

// Range returns insights dated in [from, to], oldest first
func (r *InsightRepository) Range(ctx context.Context, athleteID core.AthleteID, from, to time.Time) ([]*insight.Record, error) {
	r.s.mu.RLock()
	defer r.s.mu.RUnlock()
	var out []*insight.Record
	for _, rec := range r.s.insights {
		if rec.AthleteID == athleteID && inRange(rec.Date, from, to) {
			out = append(out, cloneInsight(rec))
		}
	}
	sort.Slice(out, func(i, j int) bool {
		if !out[i].Date.Equal(out[j].Date) {
			return out[i].Date.Before(out[j].Date)
		}
		return out[i].CreatedAt.Before(out[j].CreatedAt)
	})
	return out, nil
}

// Latest returns the newest insight for (rule, subject) dated before the given day
func (r *InsightRepository) Latest(ctx context.Context, athleteID core.AthleteID, ruleID core.RuleID, subject string, before time.Time) (*insight.Record, error) {
	r.s.mu.RLock()
	defer r.s.mu.RUnlock()
	var best *insight.Record
	for _, rec := range r.s.insights {
		if rec.AthleteID != athleteID || rec.RuleID != ruleID || rec.Subject != subject {
			continue
		}
		if !core.DateOf(rec.Date).Before(core.DateOf(before)) {
			continue
		}
		if best == nil || rec.Date.After(best.Date) {
			best = rec
		}
	}
	if best == nil {
		return nil, nil
	}
	return cloneInsight(best), nil
}

// SetResponse attaches the athlete response once
func (r *InsightRepository) SetResponse(ctx context.Context, id core.InsightID, resp insight.Response, at time.Time) error {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()
	rec, ok := r.s.insights[id]
	if !ok {
		return core.ErrInsightNotFound
	}
	if rec.AthleteResponse != nil {
		return core.ErrResponseAlreadySet
	}
	resp2 := resp
	at2 := at
	rec.AthleteResponse = &resp2
	rec.RespondedAt = &at2
	return nil
}

// RuleStates returns the store as a ports.RuleStateRepository
func (s *Store) RuleStates() *RuleStateRepository { return &RuleStateRepository{s} }

// RuleStateRepository is the in-memory rule state store
type RuleStateRepository struct{ s *Store }

// Get returns nil when the rule has no state yet
func (r *RuleStateRepository) Get(ctx context.Context, athleteID core.AthleteID, ruleID core.RuleID) (*insight.RuleState, error) {
	r.s.mu.RLock()
	defer r.s.mu.RUnlock()
	st, ok := r.s.ruleStates[key(athleteID.String(), ruleID.String())]
	if !ok {
		return nil, nil
	}
	cp := *st
	return &cp, nil
}

// Save overwrites the state
func (r *RuleStateRepository) Save(ctx context.Context, st *insight.RuleState) error {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()
	cp := *st
	r.s.ruleStates[key(st.AthleteID.String(), st.RuleID.String())] = &cp
	return nil
}
