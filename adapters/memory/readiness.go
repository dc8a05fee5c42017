package memory

import (
	"context"
	"sort"
	"time"

	"n1core/domain/core"
	"n1core/domain/readiness"
)

// Readiness returns the store as a ports.ReadinessRepository
func (s *Store) Readiness() *ReadinessRepository { return &ReadinessRepository{s} }

// ReadinessRepository is the in-memory ports.ReadinessRepository
type ReadinessRepository struct{ s *Store }

func cloneReadiness(d *readiness.DailyReadiness) *readiness.DailyReadiness {
	cp := *d
	cp.Breakdown = append([]readiness.ComponentScore(nil), d.Breakdown...)
	return &cp
}

// Upsert overwrites the row for (athlete, date)
func (r *ReadinessRepository) Upsert(ctx context.Context, d *readiness.DailyReadiness) error {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()
	r.s.readiness[key(d.AthleteID.String(), core.DateKey(d.Date))] = cloneReadiness(d)
	return nil
}

// Get returns the score for one day
func (r *ReadinessRepository) Get(ctx context.Context, athleteID core.AthleteID, date time.Time) (*readiness.DailyReadiness, error) {
	r.s.mu.RLock()
	defer r.s.mu.RUnlock()
	d, ok := r.s.readiness[key(athleteID.String(), core.DateKey(date))]
	if !ok {
		return nil, core.ErrReadinessAbsent
	}
	return cloneReadiness(d), nil
}

// Range returns scores in [from, to] ordered by date
func (r *ReadinessRepository) Range(ctx context.Context, athleteID core.AthleteID, from, to time.Time) ([]*readiness.DailyReadiness, error) {
	r.s.mu.RLock()
	defer r.s.mu.RUnlock()
	var out []*readiness.DailyReadiness
	for _, d := range r.s.readiness {
		if d.AthleteID == athleteID && inRange(d.Date, from, to) {
			out = append(out, cloneReadiness(d))
		}
	}
	sort.Slice(out, func(i, j int) bool { return out[i].Date.Before(out[j].Date) })
	return out, nil
}
