package locking

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	"github.com/redis/go-redis/v9"
)

func TestSlotKey(t *testing.T) {
	if got := SlotKey(" 2025-07-01 ", "09:00"); got != "2025-07-01T09:00" {
		t.Fatalf("SlotKey = %q", got)
	}
}

func TestMemoryLocker_Exclusive(t *testing.T) {
	ctx := context.Background()
	l := NewMemoryLocker(time.Minute)

	release, err := l.Acquire(ctx, "k")
	if err != nil {
		t.Fatalf("first acquire: %v", err)
	}
	if _, err := l.Acquire(ctx, "k"); !errors.Is(err, ErrSlotLocked) {
		t.Fatalf("expected ErrSlotLocked, got %v", err)
	}
	if _, err := l.Acquire(ctx, "other"); err != nil {
		t.Fatalf("other keys are independent: %v", err)
	}
	if err := release(ctx); err != nil {
		t.Fatalf("release: %v", err)
	}
	if _, err := l.Acquire(ctx, "k"); err != nil {
		t.Fatalf("acquire after release: %v", err)
	}
}

func TestMemoryLocker_ExpiredLockIsNotReleasedByOldHolder(t *testing.T) {
	ctx := context.Background()
	now := time.Date(2025, 7, 1, 9, 0, 0, 0, time.UTC)
	l := NewMemoryLocker(time.Second)
	l.now = func() time.Time { return now }

	oldRelease, err := l.Acquire(ctx, "k")
	if err != nil {
		t.Fatalf("acquire: %v", err)
	}
	now = now.Add(2 * time.Second)
	if _, err := l.Acquire(ctx, "k"); err != nil {
		t.Fatalf("expired lock should be re-acquirable: %v", err)
	}
	_ = oldRelease(ctx)
	if _, err := l.Acquire(ctx, "k"); !errors.Is(err, ErrSlotLocked) {
		t.Fatalf("stale release must not free the new holder's lock, got %v", err)
	}
}

func TestMemoryLocker_Concurrent(t *testing.T) {
	ctx := context.Background()
	l := NewMemoryLocker(time.Minute)

	var (
		wg   sync.WaitGroup
		mu   sync.Mutex
		wins int
	)
	for i := 0; i < 20; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			if _, err := l.Acquire(ctx, "2025-07-01T09:00"); err == nil {
				mu.Lock()
				wins++
				mu.Unlock()
			}
		}()
	}
	wg.Wait()
	if wins != 1 {
		t.Fatalf("expected exactly one winner, got %d", wins)
	}
}

type fakeRedis struct {
	mu   sync.Mutex
	data map[string]string
	err  error
}

func (f *fakeRedis) SetNX(_ context.Context, key string, value interface{}, _ time.Duration) *redis.BoolCmd {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.err != nil {
		return redis.NewBoolResult(false, f.err)
	}
	if _, ok := f.data[key]; ok {
		return redis.NewBoolResult(false, nil)
	}
	f.data[key] = value.(string)
	return redis.NewBoolResult(true, nil)
}

func (f *fakeRedis) Eval(_ context.Context, _ string, keys []string, args ...interface{}) *redis.Cmd {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.data[keys[0]] == args[0].(string) {
		delete(f.data, keys[0])
		return redis.NewCmdResult(int64(1), nil)
	}
	return redis.NewCmdResult(int64(0), nil)
}

func TestRedisLocker(t *testing.T) {
	ctx := context.Background()
	fake := &fakeRedis{data: map[string]string{}}
	l := NewRedisLocker(fake, time.Minute, "")

	release, err := l.Acquire(ctx, "2025-07-01T09:00")
	if err != nil {
		t.Fatalf("acquire: %v", err)
	}
	if _, ok := fake.data["slotlock:2025-07-01T09:00"]; !ok {
		t.Fatalf("expected prefixed key, got %v", fake.data)
	}
	if _, err := l.Acquire(ctx, "2025-07-01T09:00"); !errors.Is(err, ErrSlotLocked) {
		t.Fatalf("expected ErrSlotLocked, got %v", err)
	}
	if err := release(ctx); err != nil {
		t.Fatalf("release: %v", err)
	}
	if len(fake.data) != 0 {
		t.Fatalf("release should delete the key")
	}
}

func TestRedisLocker_Error(t *testing.T) {
	boom := errors.New("connection refused")
	l := NewRedisLocker(&fakeRedis{data: map[string]string{}, err: boom}, time.Minute, "x")
	_, err := l.Acquire(context.Background(), "k")
	if !errors.Is(err, boom) || errors.Is(err, ErrSlotLocked) {
		t.Fatalf("expected wrapped backend error, got %v", err)
	}
}
