// Package redislock gives one writer per athlete across batch workers using Redis leases.
package redislock

import (
	"context"
	"fmt"
	"time"

	"github.com/go-redis/redis/v8"
	"github.com/google/uuid"

	"n1core/domain/core"
	"n1core/internal"
	"n1core/internal/config"
	"n1core/internal/errors"
)

const keyPrefix = "n1core:lock:athlete:"

// releaseScript deletes the key only while it still holds our token
const releaseScript = `
if redis.call("GET", KEYS[1]) == ARGV[1] then
	return redis.call("DEL", KEYS[1])
end
return 0`

// Locker implements ports.Locker with SET NX PX and a token-checked release
type Locker struct {
	client redis.Cmdable
	logger *internal.Logger
	token  func() string
}

// New connects to Redis and verifies the connection
func New(ctx context.Context, cfg config.RedisConfig, logger *internal.Logger) (*Locker, error) {
	client := redis.NewClient(&redis.Options{
		Addr:     cfg.Addr,
		Password: cfg.Password,
		DB:       cfg.DB,
	})
	if err := client.Ping(ctx).Err(); err != nil {
		return nil, errors.WithCode(errors.CodeConfigInvalid, fmt.Errorf("redis ping %s: %w", cfg.Addr, err))
	}
	return NewWithClient(client, logger), nil
}

// NewWithClient wraps an existing client
func NewWithClient(client redis.Cmdable, logger *internal.Logger) *Locker {
	return &Locker{
		client: client,
		logger: logger.Or(),
		token:  func() string { return uuid.NewString() },
	}
}

func lockKey(athleteID core.AthleteID) string {
	return keyPrefix + athleteID.String()
}

// Acquire takes the athlete lease or fails with core.ErrLockHeld
func (l *Locker) Acquire(ctx context.Context, athleteID core.AthleteID, ttl time.Duration) (func(context.Context) error, error) {
	key := lockKey(athleteID)
	token := l.token()
	ok, err := l.client.SetNX(ctx, key, token, ttl).Result()
	if err != nil {
		return nil, fmt.Errorf("acquire %s: %w", key, err)
	}
	if !ok {
		return nil, core.ErrLockHeld
	}

	return func(ctx context.Context) error {
		n, err := l.client.Eval(ctx, releaseScript, []string{key}, token).Int64()
		if err != nil {
			return fmt.Errorf("release %s: %w", key, err)
		}
		if n == 0 {
			// lease expired before the run finished; another worker may own it now
			l.logger.With("athlete_id", athleteID.String()).Warn("lock lease lost before release")
		}
		return nil
	}, nil
}
