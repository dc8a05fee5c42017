package redislock

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/go-redis/redismock/v8"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"n1core/domain/core"
	"n1core/internal"
)

func newTestLocker(t *testing.T) (*Locker, redismock.ClientMock) {
	db, mock := redismock.NewClientMock()
	l := NewWithClient(db, internal.Discard)
	l.token = func() string { return "tok-1" }
	t.Cleanup(func() { assert.NoError(t, mock.ExpectationsWereMet()) })
	return l, mock
}

func TestAcquireAndRelease(t *testing.T) {
	l, mock := newTestLocker(t)
	ctx := context.Background()

	mock.ExpectSetNX("n1core:lock:athlete:ath-1", "tok-1", 5*time.Minute).SetVal(true)
	mock.ExpectEval(releaseScript, []string{"n1core:lock:athlete:ath-1"}, "tok-1").SetVal(int64(1))

	release, err := l.Acquire(ctx, "ath-1", 5*time.Minute)
	require.NoError(t, err)
	assert.NoError(t, release(ctx))
}

func TestAcquireHeld(t *testing.T) {
	l, mock := newTestLocker(t)
	mock.ExpectSetNX("n1core:lock:athlete:ath-1", "tok-1", time.Minute).SetVal(false)

	_, err := l.Acquire(context.Background(), "ath-1", time.Minute)
	assert.ErrorIs(t, err, core.ErrLockHeld)
}

func TestAcquireRedisDown(t *testing.T) {
	l, mock := newTestLocker(t)
	mock.ExpectSetNX("n1core:lock:athlete:ath-1", "tok-1", time.Minute).SetErr(errors.New("connection refused"))

	_, err := l.Acquire(context.Background(), "ath-1", time.Minute)
	require.Error(t, err)
	assert.NotErrorIs(t, err, core.ErrLockHeld)
	assert.Contains(t, err.Error(), "connection refused")
}

func TestReleaseAfterLeaseLost(t *testing.T) {
	l, mock := newTestLocker(t)
	ctx := context.Background()
	mock.ExpectSetNX("n1core:lock:athlete:ath-2", "tok-1", time.Second).SetVal(true)
	mock.ExpectEval(releaseScript, []string{"n1core:lock:athlete:ath-2"}, "tok-1").SetVal(int64(0))

	release, err := l.Acquire(ctx, "ath-2", time.Second)
	require.NoError(t, err)
	assert.NoError(t, release(ctx), "a lost lease is logged, not failed")
}
