package locking

import (
	"context"
	"errors"
	"strings"
	"sync"
	"time"

	"github.com/google/uuid"
)

// ErrSlotLocked means another request holds the lock for the same slot.
var ErrSlotLocked = errors.New("slot is locked")

// Release frees a lock. Releasing an expired or stolen lock is a no-op.
type Release func(context.Context) error

const defaultTTL = 30 * time.Second

// SlotKey identifies one bookable slot, e.g. "2025-07-01T09:00".
func SlotKey(day, hhmm string) string {
	return strings.TrimSpace(day) + "T" + strings.TrimSpace(hhmm)
}

// MemoryLocker serializes bookings inside one process.
type MemoryLocker struct {
	ttl  time.Duration
	now  func() time.Time
	mu   sync.Mutex
	held map[string]memoryLock
}

type memoryLock struct {
	token   string
	expires time.Time
}

func NewMemoryLocker(ttl time.Duration) *MemoryLocker {
	if ttl <= 0 {
		ttl = defaultTTL
	}
	return &MemoryLocker{ttl: ttl, now: time.Now, held: map[string]memoryLock{}}
}

func (l *MemoryLocker) Acquire(_ context.Context, key string) (Release, error) {
	l.mu.Lock()
	defer l.mu.Unlock()

	now := l.now()
	if cur, ok := l.held[key]; ok && now.Before(cur.expires) {
		return nil, ErrSlotLocked
	}
	token := uuid.NewString()
	l.held[key] = memoryLock{token: token, expires: now.Add(l.ttl)}

	return func(context.Context) error {
		l.mu.Lock()
		defer l.mu.Unlock()
		if cur, ok := l.held[key]; ok && cur.token == token {
			delete(l.held, key)
		}
		return nil
	}, nil
}
