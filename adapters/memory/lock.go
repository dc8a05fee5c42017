package memory

import (
	"context"
	"sync"
	"time"

	"n1core/domain/core"
)

// Locker is a process-local ports.Locker with expiring leases
type Locker struct {
	mu     sync.Mutex
	leases map[core.AthleteID]lease
	seq    uint64
	now    func() time.Time
}

type lease struct {
	token   uint64
	expires time.Time
}

// NewLocker creates an in-process athlete lock
func NewLocker() *Locker {
	return &Locker{leases: make(map[core.AthleteID]lease), now: time.Now}
}

// Acquire takes the athlete lease or fails with core.ErrLockHeld
func (l *Locker) Acquire(ctx context.Context, athleteID core.AthleteID, ttl time.Duration) (func(context.Context) error, error) {
	l.mu.Lock()
	defer l.mu.Unlock()
	now := l.now()
	if cur, ok := l.leases[athleteID]; ok && now.Before(cur.expires) {
		return nil, core.ErrLockHeld
	}
	l.seq++
	token := l.seq
	l.leases[athleteID] = lease{token: token, expires: now.Add(ttl)}

	return func(context.Context) error {
		l.mu.Lock()
		defer l.mu.Unlock()
		if cur, ok := l.leases[athleteID]; ok && cur.token == token {
			delete(l.leases, athleteID)
		}
		return nil
	}, nil
}
