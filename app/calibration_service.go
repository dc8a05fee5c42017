package app

import (
	"context"
	"fmt"

	"n1core/domain/core"
	"n1core/internal"
	calib "n1core/internal/calibration"
	"n1core/internal/metrics"
	"n1core/ports"
)

// CalibrationService re-estimates per-athlete thresholds from the calibration log.
// It runs on its own schedule; the daily pipeline only ever reads the rows it appends.
type CalibrationService struct {
	thresholds ports.ThresholdRepository
	records    ports.CalibrationRepository
	estimator  *calib.Estimator
	clock      core.Clock
	logger     *internal.Logger
	metrics    *metrics.Registry
}

// NewCalibrationService creates a calibration service with the given sample-size floor
func NewCalibrationService(thresholds ports.ThresholdRepository, records ports.CalibrationRepository, floor int, clock core.Clock, logger *internal.Logger, m *metrics.Registry) *CalibrationService {
	if clock == nil {
		clock = core.SystemClock{}
	}
	logger = logger.Or()
	return &CalibrationService{
		thresholds: thresholds,
		records:    records,
		estimator:  calib.NewEstimator(floor, logger),
		clock:      clock,
		logger:     logger,
		metrics:    m,
	}
}

// Calibrate estimates every supported threshold for one athlete and appends a new
// version for each one that changed
func (s *CalibrationService) Calibrate(ctx context.Context, athleteID core.AthleteID) ([]calib.Estimate, error) {
	log := s.logger.With("athlete_id", athleteID.String(), "stage", "calibrate")

	records, err := s.records.ListByAthlete(ctx, athleteID)
	if err != nil {
		return nil, fmt.Errorf("list calibration records: %w", err)
	}
	snap, err := s.thresholds.Snapshot(ctx, athleteID)
	if err != nil {
		return nil, fmt.Errorf("threshold snapshot: %w", err)
	}

	estimates := s.estimator.Plan(records, snap)
	rows := calib.Rows(athleteID, estimates, s.clock.Now())
	if len(rows) > 0 {
		if _, err := s.thresholds.Append(ctx, rows); err != nil {
			return nil, fmt.Errorf("append %d thresholds: %w", len(rows), err)
		}
	}

	for _, e := range estimates {
		switch {
		case e.Updated:
			s.metrics.ThresholdUpdate("updated")
			log.Info("threshold %s", e)
		case e.Reason == calib.ReasonBelowFloor:
			s.metrics.ThresholdUpdate("below_floor")
			log.Debug("threshold %s", e)
		default:
			s.metrics.ThresholdUpdate("retained")
			log.Debug("threshold %s", e)
		}
	}
	return estimates, nil
}

// CalibrateAll runs Calibrate for each athlete. A failing athlete is logged and skipped.
func (s *CalibrationService) CalibrateAll(ctx context.Context, athletes []core.AthleteID) (updated int, failed []core.AthleteID) {
	for _, id := range athletes {
		if ctx.Err() != nil {
			failed = append(failed, id)
			continue
		}
		est, err := s.Calibrate(ctx, id)
		if err != nil {
			s.logger.With("athlete_id", id.String()).Err(err, "calibration failed")
			failed = append(failed, id)
			continue
		}
		for _, e := range est {
			if e.Updated {
				updated++
			}
		}
	}
	return updated, failed
}
