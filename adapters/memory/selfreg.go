package memory

import (
	"context"
	"sort"
	"time"

	"n1core/domain/core"
	"n1core/domain/selfreg"
)

// SelfRegulation returns the store as a ports.SelfRegulationRepository
func (s *Store) SelfRegulation() *SelfRegulationRepository { return &SelfRegulationRepository{s} }

// SelfRegulationRepository is the in-memory self-regulation log
type SelfRegulationRepository struct{ s *Store }

func selfregKey(r *selfreg.Record) string {
	return key(r.AthleteID.String(), r.ActivityID.String())
}

// Insert is idempotent on (athlete, activity)
func (r *SelfRegulationRepository) Insert(ctx context.Context, rec *selfreg.Record) (bool, error) {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()
	k := selfregKey(rec)
	if _, ok := r.s.selfreg[k]; ok {
		return false, nil
	}
	cp := *rec
	r.s.selfreg[k] = &cp
	return true, nil
}

// Pending returns the athlete's records still awaiting an outcome, oldest first
func (r *SelfRegulationRepository) Pending(ctx context.Context, athleteID core.AthleteID) ([]*selfreg.Record, error) {
	r.s.mu.RLock()
	defer r.s.mu.RUnlock()
	var out []*selfreg.Record
	for _, rec := range r.s.selfreg {
		if rec.AthleteID == athleteID && rec.Status == selfreg.StatusPending {
			cp := *rec
			out = append(out, &cp)
		}
	}
	sortRecords(out)
	return out, nil
}

// Finalize writes the outcome only if the stored record is still pending
func (r *SelfRegulationRepository) Finalize(ctx context.Context, rec *selfreg.Record) (bool, error) {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()
	cur, ok := r.s.selfreg[selfregKey(rec)]
	if !ok {
		return false, core.NewNotFoundError("self_regulation_record", rec.ActivityID.String())
	}
	if cur.Final() {
		return false, nil
	}
	cur.Outcome = rec.Outcome
	cur.Status = rec.Status
	cur.FinalizedOn = rec.FinalizedOn
	return true, nil
}

// Range returns records dated in [from, to]
func (r *SelfRegulationRepository) Range(ctx context.Context, athleteID core.AthleteID, from, to time.Time) ([]*selfreg.Record, error) {
	r.s.mu.RLock()
	defer r.s.mu.RUnlock()
	var out []*selfreg.Record
	for _, rec := range r.s.selfreg {
		if rec.AthleteID == athleteID && inRange(rec.Date, from, to) {
			cp := *rec
			out = append(out, &cp)
		}
	}
	sortRecords(out)
	return out, nil
}

func sortRecords(rs []*selfreg.Record) {
	sort.Slice(rs, func(i, j int) bool {
		if !rs[i].Date.Equal(rs[j].Date) {
			return rs[i].Date.Before(rs[j].Date)
		}
		return rs[i].ActivityID < rs[j].ActivityID
	})
}
