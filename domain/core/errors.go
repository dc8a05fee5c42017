package core

import (
	"errors"
	"fmt"
)

// Domain errors - centralized error definitions
var (
	// Not found errors
	ErrNotFound        = errors.New("resource not found")
	ErrFindingNotFound = fmt.Errorf("%w: finding", ErrNotFound)
	ErrInsightNotFound = fmt.Errorf("%w: insight", ErrNotFound)
	ErrReadinessAbsent = fmt.Errorf("%w: readiness", ErrNotFound)

	// Data sufficiency errors
	ErrInsufficientData    = errors.New("insufficient data for analysis")
	ErrInsufficientHistory = fmt.Errorf("%w: insufficient history", ErrInsufficientData)
	ErrBelowSampleFloor    = fmt.Errorf("%w: sample size below calibration floor", ErrInsufficientData)

	// Gate and rule outcomes
	ErrStatisticalGate = errors.New("statistical gate not met")
	ErrNotApplicable   = errors.New("rule not applicable")
	ErrSuppressed      = errors.New("insight suppressed below confidence floor")

	// Trust constraint violations
	ErrPlanMutation        = errors.New("insight attempts to mutate a plan")
	ErrDirectionalLanguage = errors.New("directional claim on metric without known polarity")
	ErrUnsustainedFlag     = errors.New("flag without sustained negative signal")

	// Write discipline errors
	ErrStaleWrite         = errors.New("stale write rejected")
	ErrResponseAlreadySet = errors.New("athlete response already recorded")
	ErrLockHeld           = errors.New("athlete run already in progress")
)

// NewNotFoundError builds a not-found error with context
func NewNotFoundError(resource string, id string) error {
	return fmt.Errorf("%w: %s with id %s", ErrNotFound, resource, id)
}

// NewInsufficientHistoryError reports how many usable days a signal has
func NewInsufficientHistoryError(signalName string, have, need int) error {
	return fmt.Errorf("%w: %s has %d non-null days, need %d", ErrInsufficientHistory, signalName, have, need)
}

// NewValidationError builds a validation error for a field
func NewValidationError(field string, reason string) error {
	return fmt.Errorf("validation failed for %s: %s", field, reason)
}

// IsNotFoundError reports whether err is a not-found error
func IsNotFoundError(err error) bool {
	return errors.Is(err, ErrNotFound)
}

// IsInsufficientData reports whether err signals missing or too little data
func IsInsufficientData(err error) bool {
	return errors.Is(err, ErrInsufficientData)
}

// IsTrustViolation reports whether err is one of the hard insight constraints
func IsTrustViolation(err error) bool {
	return errors.Is(err, ErrPlanMutation) ||
		errors.Is(err, ErrDirectionalLanguage) ||
		errors.Is(err, ErrUnsustainedFlag)
}
