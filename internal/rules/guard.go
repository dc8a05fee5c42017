package rules

import (
	"fmt"

	"n1core/domain/core"
	"n1core/domain/insight"
	"n1core/internal/config"
	"n1core/ports"
)

// Verify enforces the hard constraints on a candidate insight. Every insight passes
// through here before it can be persisted.
func Verify(r *insight.Record, polarity ports.PolarityRegistry, a config.Analysis) error {
	if !r.Action.Advisory() {
		return fmt.Errorf("%w: action %q", core.ErrPlanMutation, r.Action)
	}
	if !r.Mode.Valid() {
		return core.NewValidationError("mode", fmt.Sprintf("unknown mode %q", r.Mode))
	}
	if r.Mode == insight.ModeFlag && r.SustainedDays < a.FlagSustainDays {
		return fmt.Errorf("%w: %d days, need %d", core.ErrUnsustainedFlag, r.SustainedDays, a.FlagSustainDays)
	}
	if r.Direction != insight.DirectionNone {
		if polarity == nil || !polarity.Polarity(r.Metric).Directional() {
			return fmt.Errorf("%w: %s", core.ErrDirectionalLanguage, r.Metric)
		}
	}
	if r.Confidence < a.ConfidenceFloor {
		return fmt.Errorf("%w: confidence %.2f < %.2f", core.ErrSuppressed, r.Confidence, a.ConfidenceFloor)
	}
	return nil
}

// actionFor maps a mode to its advisory action
func actionFor(m insight.Mode) insight.Action {
	switch m {
	case insight.ModeFlag:
		return insight.ActionReview
	case insight.ModeSuggest:
		return insight.ActionConsider
	}
	return insight.ActionNone
}
