package ports

import (
	"context"
	"time"

	"n1core/domain/core"
	"n1core/domain/selfreg"
	"n1core/domain/signal"
)

// SampleReader reads the pre-ingested daily inputs and per-activity outputs for one athlete.
// Ranges are inclusive calendar dates.
type SampleReader interface {
	InputSamples(ctx context.Context, athleteID core.AthleteID, from, to time.Time) ([]signal.InputSample, error)
	OutputSamples(ctx context.Context, athleteID core.AthleteID, from, to time.Time) ([]signal.OutputSample, error)
}

// PlanLinkReader reads the planned-vs-actual linkage supplied by the plan/workout store
type PlanLinkReader interface {
	PlanLinks(ctx context.Context, athleteID core.AthleteID, from, to time.Time) ([]selfreg.PlanLink, error)
}

// AthleteLister enumerates the athletes a batch should process
type AthleteLister interface {
	ActiveAthletes(ctx context.Context) ([]core.AthleteID, error)
}

// PolarityRegistry answers whether a metric's direction is known and safe to state
type PolarityRegistry interface {
	Polarity(metric signal.Name) signal.Polarity
}
