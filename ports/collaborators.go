package ports

import (
	"context"
	"time"

	"n1core/domain/core"
	"n1core/domain/insight"
	"n1core/internal/config"
)

// FlagProvider supplies feature flags, read once at the start of each athlete run
type FlagProvider interface {
	Flags(ctx context.Context) (config.Flags, error)
}

// Narrator phrases a structured insight. An empty string means no narration;
// callers never depend on it succeeding.
type Narrator interface {
	Narrate(ctx context.Context, r *insight.Record) (string, error)
}

// Locker gives a single writer per athlete. Acquire fails with core.ErrLockHeld when
// another run holds the lock.
type Locker interface {
	Acquire(ctx context.Context, athleteID core.AthleteID, ttl time.Duration) (release func(context.Context) error, err error)
}

// InsightEnvelope is what leaves the core for the narration and UI layers
type InsightEnvelope struct {
	Insight   *insight.Record `json:"insight"`
	Narration string          `json:"narration,omitempty"`
}

// InsightPublisher delivers emitted insights downstream
type InsightPublisher interface {
	Publish(ctx context.Context, envelopes []InsightEnvelope) error
}
