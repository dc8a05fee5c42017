// Package findings reconciles correlation runs with the persisted findings and decides
// which findings may be surfaced.
package findings

import (
	"context"
	"fmt"
	"sort"
	"time"

	"n1core/domain/core"
	"n1core/domain/correlation"
	"n1core/domain/signal"
	"n1core/internal"
	"n1core/internal/metrics"
	"n1core/ports"
)

// Report summarizes what one Apply changed
type Report struct {
	Created     int
	Confirmed   int
	Deactivated int
	Unchanged   int
}

// Store applies correlation results to the finding repository
type Store struct {
	repo    ports.FindingRepository
	clock   core.Clock
	logger  *internal.Logger
	metrics *metrics.Registry
	policy  correlation.SurfacePolicy
}

// NewStore creates a finding store
func NewStore(repo ports.FindingRepository, clock core.Clock, logger *internal.Logger, m *metrics.Registry) *Store {
	if clock == nil {
		clock = core.SystemClock{}
	}
	return &Store{repo: repo, clock: clock, logger: logger.Or(), metrics: m, policy: correlation.DefaultSurfacePolicy()}
}

// WithPolicy replaces the surfacing bounds. Zero fields keep the current value.
func (s *Store) WithPolicy(p correlation.SurfacePolicy) *Store {
	if p.MinConfirmations > 0 {
		s.policy.MinConfirmations = p.MinConfirmations
	}
	if p.CooldownDays > 0 {
		s.policy.CooldownDays = p.CooldownDays
	}
	return s
}

// Apply upserts every candidate and deactivates active findings that were testable in this
// run but no longer significant. Every write is conditional on the run date, so applying
// the same result twice leaves the stored state unchanged.
func (s *Store) Apply(ctx context.Context, res *correlation.Result) (Report, error) {
	var rep Report
	now := s.clock.Now()

	for _, c := range res.Candidates {
		existing, err := s.repo.Get(ctx, res.AthleteID, c.Key)
		if err != nil && !core.IsNotFoundError(err) {
			return rep, fmt.Errorf("load finding %s: %w", c.Key, err)
		}

		var f *correlation.Finding
		created := false
		if existing == nil {
			f = correlation.NewFinding(res.AthleteID, c, res.RunDate)
			f.CreatedAt = now
			created = true
		} else {
			f = existing
			if !f.Confirm(c, res.RunDate) {
				rep.Unchanged++
				continue
			}
		}
		f.UpdatedAt = now

		applied, err := s.repo.Save(ctx, f)
		if err != nil {
			return rep, fmt.Errorf("save finding %s: %w", c.Key, err)
		}
		switch {
		case !applied:
			rep.Unchanged++
		case created:
			rep.Created++
		default:
			rep.Confirmed++
		}
	}

	active, err := s.repo.ListByAthlete(ctx, res.AthleteID, true)
	if err != nil {
		return rep, fmt.Errorf("list active findings: %w", err)
	}
	for _, f := range active {
		if !res.Tested[f.Key] || res.Significant[f.Key] {
			continue
		}
		if !f.Deactivate(res.RunDate) {
			continue
		}
		f.UpdatedAt = now
		applied, err := s.repo.Save(ctx, f)
		if err != nil {
			return rep, fmt.Errorf("deactivate finding %s: %w", f.Key, err)
		}
		if applied {
			rep.Deactivated++
			s.logger.Debug("deactivated finding %s (r=%.3f, times_confirmed=%d)", f.Key, f.R, f.TimesConfirmed)
		}
	}

	s.metrics.FindingWrite("created", rep.Created)
	s.metrics.FindingWrite("confirmed", rep.Confirmed)
	s.metrics.FindingWrite("deactivated", rep.Deactivated)
	s.metrics.FindingWrite("unchanged", rep.Unchanged)
	return rep, nil
}

// List returns every finding for the athlete, deactivated ones included
func (s *Store) List(ctx context.Context, athleteID core.AthleteID) ([]*correlation.Finding, error) {
	all, err := s.repo.ListByAthlete(ctx, athleteID, false)
	if err != nil {
		return nil, fmt.Errorf("list findings: %w", err)
	}
	return all, nil
}

// Eligible returns the athlete's findings that may be surfaced at now, ordered by
// confidence and then by the most recent confirmation.
func (s *Store) Eligible(ctx context.Context, athleteID core.AthleteID, now time.Time) ([]*correlation.Finding, error) {
	active, err := s.repo.ListByAthlete(ctx, athleteID, true)
	if err != nil {
		return nil, fmt.Errorf("list active findings: %w", err)
	}
	var out []*correlation.Finding
	for _, f := range active {
		if f.Eligible(now, s.policy) {
			out = append(out, f)
		}
	}
	sort.SliceStable(out, func(i, j int) bool {
		if out[i].Confidence != out[j].Confidence {
			return out[i].Confidence > out[j].Confidence
		}
		if !out[i].LastConfirmedOn.Equal(out[j].LastConfirmedOn) {
			return out[i].LastConfirmedOn.After(out[j].LastConfirmedOn)
		}
		return out[i].Key.String() < out[j].Key.String()
	})
	return out, nil
}

// SelectForSurfacing applies the daily cap to the eligible set
func (s *Store) SelectForSurfacing(ctx context.Context, athleteID core.AthleteID, now time.Time, limit int) ([]*correlation.Finding, error) {
	eligible, err := s.Eligible(ctx, athleteID, now)
	if err != nil {
		return nil, err
	}
	if limit >= 0 && len(eligible) > limit {
		eligible = eligible[:limit]
	}
	return eligible, nil
}

// MarkSurfaced starts the cooldown for a finding
func (s *Store) MarkSurfaced(ctx context.Context, id core.FindingID, at time.Time) error {
	if err := s.repo.MarkSurfaced(ctx, id, core.DateOf(at)); err != nil {
		return fmt.Errorf("mark finding %s surfaced: %w", id, err)
	}
	return nil
}

// StrongestByInput returns the highest-confidence active finding for each input signal.
// An input appears only when a finding has established individual significance for it.
func (s *Store) StrongestByInput(ctx context.Context, athleteID core.AthleteID) (map[signal.Name]*correlation.Finding, error) {
	active, err := s.repo.ListByAthlete(ctx, athleteID, true)
	if err != nil {
		return nil, fmt.Errorf("list active findings: %w", err)
	}
	out := make(map[signal.Name]*correlation.Finding)
	for _, f := range active {
		in := f.Key.Input
		if cur, ok := out[in]; !ok || f.Confidence > cur.Confidence {
			out[in] = f
		}
	}
	return out, nil
}
