package memory

import (
	"context"
	"sort"
	"time"

	"n1core/domain/core"
	"n1core/domain/correlation"
)

// Findings returns the store as a ports.FindingRepository
func (s *Store) Findings() *FindingRepository { return &FindingRepository{s} }

// FindingRepository is the in-memory ports.FindingRepository
type FindingRepository struct{ s *Store }

func findingKey(athleteID core.AthleteID, k correlation.Key) string {
	return key(athleteID.String(), k.String())
}

// Get returns a copy of the finding for (athlete, key)
func (r *FindingRepository) Get(ctx context.Context, athleteID core.AthleteID, k correlation.Key) (*correlation.Finding, error) {
	r.s.mu.RLock()
	defer r.s.mu.RUnlock()
	f, ok := r.s.findings[findingKey(athleteID, k)]
	if !ok {
		return nil, core.ErrFindingNotFound
	}
	cp := *f
	return &cp, nil
}

// GetByID returns a copy of the finding with id
func (r *FindingRepository) GetByID(ctx context.Context, id core.FindingID) (*correlation.Finding, error) {
	r.s.mu.RLock()
	defer r.s.mu.RUnlock()
	for _, f := range r.s.findings {
		if f.ID == id {
			cp := *f
			return &cp, nil
		}
	}
	return nil, core.ErrFindingNotFound
}

// ListByAthlete returns the athlete's findings ordered by key
func (r *FindingRepository) ListByAthlete(ctx context.Context, athleteID core.AthleteID, activeOnly bool) ([]*correlation.Finding, error) {
	r.s.mu.RLock()
	defer r.s.mu.RUnlock()
	var out []*correlation.Finding
	for _, f := range r.s.findings {
		if f.AthleteID != athleteID || (activeOnly && !f.IsActive) {
			continue
		}
		cp := *f
		out = append(out, &cp)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].Key.String() < out[j].Key.String() })
	return out, nil
}

// Save inserts or overwrites when the stored last_run_date is earlier than f's
func (r *FindingRepository) Save(ctx context.Context, f *correlation.Finding) (bool, error) {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()
	k := findingKey(f.AthleteID, f.Key)
	if cur, ok := r.s.findings[k]; ok {
		if !cur.LastRunDate.Before(f.LastRunDate) {
			return false, nil
		}
		// identity and first detection never change
		f.ID = cur.ID
		f.FirstDetectedOn = cur.FirstDetectedOn
		f.CreatedAt = cur.CreatedAt
	}
	cp := *f
	r.s.findings[k] = &cp
	return true, nil
}

// MarkSurfaced sets last_surfaced_at
func (r *FindingRepository) MarkSurfaced(ctx context.Context, id core.FindingID, at time.Time) error {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()
	for _, f := range r.s.findings {
		if f.ID == id {
			at := at
			f.LastSurfacedAt = &at
			return nil
		}
	}
	return core.ErrFindingNotFound
}
