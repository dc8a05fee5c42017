// Package selfreg records planned-vs-actual deviations and backfills their next-day outcome.
package selfreg

import (
	"context"
	"fmt"
	"time"

	"n1core/domain/core"
	"n1core/domain/selfreg"
	"n1core/domain/signal"
	"n1core/internal"
	"n1core/internal/metrics"
	"n1core/ports"
)

// HistoryDays is how far back the positive-history summary looks
const HistoryDays = 28

// Logger writes self-regulation records and resolves their outcomes
type Logger struct {
	links      ports.PlanLinkReader
	repo       ports.SelfRegulationRepository
	clock      core.Clock
	windowDays int
	logger     *internal.Logger
	metrics    *metrics.Registry
}

// NewLogger creates a self-regulation logger. windowDays bounds how long an outcome may
// stay pending; values below one fall back to selfreg.BackfillWindowDays.
func NewLogger(links ports.PlanLinkReader, repo ports.SelfRegulationRepository, clock core.Clock, windowDays int, logger *internal.Logger, m *metrics.Registry) *Logger {
	if windowDays < 1 {
		windowDays = selfreg.BackfillWindowDays
	}
	if clock == nil {
		clock = core.SystemClock{}
	}
	return &Logger{links: links, repo: repo, clock: clock, windowDays: windowDays, logger: logger.Or(), metrics: m}
}

// Log records every completed activity in the backfill window that deviated from its
// planned workout. Activities already logged are skipped.
func (l *Logger) Log(ctx context.Context, athleteID core.AthleteID, asOf time.Time) (int, error) {
	day := core.DateOf(asOf)
	links, err := l.links.PlanLinks(ctx, athleteID, core.AddDays(day, -l.windowDays), day)
	if err != nil {
		return 0, fmt.Errorf("read plan links: %w", err)
	}

	logged := 0
	for _, link := range links {
		if !link.Completed || link.ActivityID == "" {
			continue
		}
		delta, deviated := selfreg.Compare(link.Planned, link.Actual)
		if !deviated {
			continue
		}
		rec := &selfreg.Record{
			ID:         core.NewRecordID(),
			AthleteID:  athleteID,
			Date:       core.DateOf(link.Date),
			ActivityID: link.ActivityID,
			Planned:    link.Planned,
			Actual:     link.Actual,
			Delta:      delta,
			Status:     selfreg.StatusPending,
			CreatedAt:  l.clock.Now(),
		}
		inserted, err := l.repo.Insert(ctx, rec)
		if err != nil {
			return logged, fmt.Errorf("insert self-regulation record %s: %w", link.ActivityID, err)
		}
		if inserted {
			logged++
			l.logger.Debug("self-regulation %s on %s: %s", link.ActivityID, core.DateKey(link.Date), delta.Direction)
		}
	}
	l.metrics.SelfReg("logged", logged)
	return logged, nil
}

// Backfill resolves pending records whose next-day outcome is visible in the table and
// expires records older than the window. Each record is finalized at most once.
func (l *Logger) Backfill(ctx context.Context, athleteID core.AthleteID, table *signal.Table, asOf time.Time) (resolved, expired int, err error) {
	pending, err := l.repo.Pending(ctx, athleteID)
	if err != nil {
		return 0, 0, fmt.Errorf("list pending self-regulation records: %w", err)
	}
	day := core.DateOf(asOf)

	for _, rec := range pending {
		if err := ctx.Err(); err != nil {
			return resolved, expired, err
		}
		next := core.AddDays(rec.Date, 1)
		if next.After(day) {
			continue
		}

		outcome := nextDayOutcome(table, rec.Date)
		switch {
		case outcome != nil:
			rec.Outcome = outcome
			rec.Status = selfreg.StatusResolved
		case core.DaysBetween(rec.Date, day) > l.windowDays:
			rec.Outcome = nil
			rec.Status = selfreg.StatusExpired
		default:
			continue
		}
		rec.FinalizedOn = &day

		applied, err := l.repo.Finalize(ctx, rec)
		if err != nil {
			return resolved, expired, fmt.Errorf("finalize %s: %w", rec.ActivityID, err)
		}
		if !applied {
			continue
		}
		if rec.Status == selfreg.StatusResolved {
			resolved++
		} else {
			expired++
		}
	}

	l.metrics.SelfReg("resolved", resolved)
	l.metrics.SelfReg("expired", expired)
	return resolved, expired, nil
}

// nextDayOutcome reads the day after the deviation. nil means no outcome data yet.
func nextDayOutcome(t *signal.Table, date time.Time) *selfreg.Outcome {
	if t == nil {
		return nil
	}
	next := core.AddDays(date, 1)
	var out selfreg.Outcome
	if eff, ok := t.Get(signal.EfficiencyFactor); ok {
		after, okAfter := eff.At(next)
		before, okBefore := eff.At(date)
		if okAfter && okBefore {
			d := after - before
			out.EfficiencyDelta = &d
		}
	}
	if comp, ok := t.Get(signal.WorkoutCompletion); ok {
		if v, ok := comp.At(next); ok {
			done := v >= 0.5
			out.Completed = &done
		}
	}
	if out.EfficiencyDelta == nil && out.Completed == nil {
		return nil
	}
	return &out
}

// PositiveHistory summarizes resolved records dated in the 28 days ending asOf
func (l *Logger) PositiveHistory(ctx context.Context, athleteID core.AthleteID, asOf time.Time) (selfreg.History, error) {
	day := core.DateOf(asOf)
	recs, err := l.repo.Range(ctx, athleteID, core.AddDays(day, -(HistoryDays-1)), day)
	if err != nil {
		return selfreg.History{}, fmt.Errorf("read self-regulation history: %w", err)
	}
	var h selfreg.History
	for _, r := range recs {
		if r.Status != selfreg.StatusResolved {
			continue
		}
		h.Resolved++
		if r.Outcome.Positive() {
			h.Positive++
		}
		h.Records = append(h.Records, r)
	}
	return h, nil
}
