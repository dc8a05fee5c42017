package config

import (
	"fmt"

	"n1core/domain/calibration"
	"n1core/domain/correlation"
	"n1core/domain/selfreg"
)

// Analysis holds the statistical and rule-engine constants
type Analysis struct {
	MaxLagDays          int     `yaml:"max_lag_days"`
	MinPairs            int     `yaml:"min_pairs"`
	Alpha               float64 `yaml:"alpha"`
	MinAbsR             float64 `yaml:"min_abs_r"`
	MinHistoryDays      int     `yaml:"min_history_days"`
	MinConfirmations    int     `yaml:"min_confirmations"`
	CooldownDays        int     `yaml:"cooldown_days"`
	CorrelationDailyCap int     `yaml:"correlation_daily_cap"`
	InsightDailyCap     int     `yaml:"insight_daily_cap"`
	FlagDailyCap        int     `yaml:"flag_daily_cap"`
	CalibrationFloor    int     `yaml:"calibration_floor"`
	BackfillWindowDays  int     `yaml:"backfill_window_days"`
	ConfidenceFloor     float64 `yaml:"confidence_floor"`
	MaxMissingWeight    float64 `yaml:"max_missing_weight"`
	FlagSustainDays     int     `yaml:"flag_sustain_days"`
}

// DefaultAnalysis returns the documented defaults
func DefaultAnalysis() Analysis {
	return Analysis{
		MaxLagDays:          correlation.MaxLagDays,
		MinPairs:            10,
		Alpha:               0.05,
		MinAbsR:             0.3,
		MinHistoryDays:      10,
		MinConfirmations:    correlation.MinConfirmationsToSurface,
		CooldownDays:        correlation.SurfaceCooldownDays,
		CorrelationDailyCap: 2,
		InsightDailyCap:     2,
		FlagDailyCap:        1,
		CalibrationFloor:    calibration.MinSampleSize,
		BackfillWindowDays:  selfreg.BackfillWindowDays,
		ConfidenceFloor:     0.3,
		MaxMissingWeight:    0.5,
		FlagSustainDays:     21,
	}
}

// SurfacePolicy returns the finding surfacing bounds
func (a Analysis) SurfacePolicy() correlation.SurfacePolicy {
	return correlation.SurfacePolicy{MinConfirmations: a.MinConfirmations, CooldownDays: a.CooldownDays}
}

// Validate rejects settings that would loosen the safety gates
func (a Analysis) Validate() error {
	switch {
	case a.MaxLagDays < 0 || a.MaxLagDays > 14:
		return fmt.Errorf("max_lag_days %d out of range", a.MaxLagDays)
	case a.MinPairs < 10:
		return fmt.Errorf("min_pairs %d below 10", a.MinPairs)
	case a.Alpha <= 0 || a.Alpha > 0.05:
		return fmt.Errorf("alpha %.3f must be in (0, 0.05]", a.Alpha)
	case a.MinAbsR < 0.3 || a.MinAbsR >= 1:
		return fmt.Errorf("min_abs_r %.2f must be in [0.3, 1)", a.MinAbsR)
	case a.MinConfirmations < correlation.MinConfirmationsToSurface:
		return fmt.Errorf("min_confirmations %d below %d", a.MinConfirmations, correlation.MinConfirmationsToSurface)
	case a.CooldownDays < correlation.SurfaceCooldownDays:
		return fmt.Errorf("cooldown_days %d below %d", a.CooldownDays, correlation.SurfaceCooldownDays)
	case a.CalibrationFloor < calibration.MinSampleSize:
		return fmt.Errorf("calibration_floor %d below %d", a.CalibrationFloor, calibration.MinSampleSize)
	case a.FlagDailyCap > 1 || a.InsightDailyCap > 2 || a.CorrelationDailyCap > 2:
		return fmt.Errorf("daily caps may only be tightened")
	case a.FlagSustainDays < 21:
		return fmt.Errorf("flag_sustain_days %d below 21", a.FlagSustainDays)
	case a.ConfidenceFloor < 0.3:
		return fmt.Errorf("confidence_floor %.2f below 0.3", a.ConfidenceFloor)
	}
	return nil
}
