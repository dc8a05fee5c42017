package memory

import (
	"context"
	"sort"

	"n1core/domain/calibration"
	"n1core/domain/core"
)

// Thresholds returns the store as a ports.ThresholdRepository
func (s *Store) Thresholds() *ThresholdRepository { return &ThresholdRepository{s} }

// ThresholdRepository is the in-memory versioned parameter store
type ThresholdRepository struct{ s *Store }

// Append assigns increasing versions and stores the rows
func (r *ThresholdRepository) Append(ctx context.Context, rows []calibration.Threshold) ([]calibration.Threshold, error) {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()
	out := make([]calibration.Threshold, len(rows))
	for i, row := range rows {
		r.s.thrSeq++
		row.Version = r.s.thrSeq
		r.s.thresholds = append(r.s.thresholds, row)
		out[i] = row
	}
	return out, nil
}

// Snapshot pins the newest visible version
func (r *ThresholdRepository) Snapshot(ctx context.Context, athleteID core.AthleteID) (*calibration.Snapshot, error) {
	r.s.mu.RLock()
	version := r.s.thrSeq
	r.s.mu.RUnlock()
	return r.SnapshotAt(ctx, athleteID, version)
}

// SnapshotAt returns the newest row per name with version <= version
func (r *ThresholdRepository) SnapshotAt(ctx context.Context, athleteID core.AthleteID, version int64) (*calibration.Snapshot, error) {
	r.s.mu.RLock()
	defer r.s.mu.RUnlock()
	var rows []calibration.Threshold
	for _, row := range r.s.thresholds {
		if row.AthleteID == athleteID && row.Version <= version {
			rows = append(rows, row)
		}
	}
	snap := calibration.NewSnapshot(athleteID, rows)
	if snap.Version < version {
		snap.Version = version
	}
	return snap, nil
}

// History returns every row for one threshold, oldest first
func (r *ThresholdRepository) History(ctx context.Context, athleteID core.AthleteID, name string) ([]calibration.Threshold, error) {
	r.s.mu.RLock()
	defer r.s.mu.RUnlock()
	var out []calibration.Threshold
	for _, row := range r.s.thresholds {
		if row.AthleteID == athleteID && row.Name == name {
			out = append(out, row)
		}
	}
	sort.Slice(out, func(i, j int) bool { return out[i].Version < out[j].Version })
	return out, nil
}

// CalibrationRecords returns the store as a ports.CalibrationRepository
func (s *Store) CalibrationRecords() *CalibrationRepository { return &CalibrationRepository{s} }

// CalibrationRepository is the in-memory append-only calibration log
type CalibrationRepository struct{ s *Store }

// Append ignores a duplicate (athlete, date, decision context)
func (r *CalibrationRepository) Append(ctx context.Context, rec *calibration.Record) (bool, error) {
	if err := rec.Validate(); err != nil {
		return false, err
	}
	r.s.mu.Lock()
	defer r.s.mu.Unlock()
	k := key(rec.AthleteID.String(), core.DateKey(rec.Date), rec.DecisionContext)
	if _, ok := r.s.calibration[k]; ok {
		return false, nil
	}
	if rec.ID == "" {
		rec.ID = core.NewRecordID()
	}
	r.s.calibration[k] = *rec
	r.s.calOrder = append(r.s.calOrder, k)
	return true, nil
}

// ListByAthlete returns records in insertion order
func (r *CalibrationRepository) ListByAthlete(ctx context.Context, athleteID core.AthleteID) ([]calibration.Record, error) {
	r.s.mu.RLock()
	defer r.s.mu.RUnlock()
	var out []calibration.Record
	for _, k := range r.s.calOrder {
		if rec := r.s.calibration[k]; rec.AthleteID == athleteID {
			out = append(out, rec)
		}
	}
	return out, nil
}
