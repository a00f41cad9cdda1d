package scopelock

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/alicebob/miniredis/v2"
)

func setupTestRedis(t *testing.T) (*Redis, *miniredis.Miniredis) {
	s := miniredis.RunT(t)
	locker, err := NewRedis("redis://"+s.Addr(), time.Second)
	if err != nil {
		t.Fatalf("failed to create redis locker: %v", err)
	}
	t.Cleanup(func() { locker.Close() })
	return locker, s
}

func TestNewRedis(t *testing.T) {
	locker, _ := setupTestRedis(t)
	if err := locker.Ping(context.Background()); err != nil {
		t.Errorf("Ping failed: %v", err)
	}
}

func TestNewRedisUnreachable(t *testing.T) {
	s := miniredis.RunT(t)
	addr := s.Addr()
	s.Close()

	if _, err := NewRedis("redis://"+addr, time.Second); err == nil {
		t.Fatal("expected error connecting to a closed server")
	}
}

func TestRedisAcquireIsExclusivePerScope(t *testing.T) {
	locker, _ := setupTestRedis(t)
	ctx := context.Background()

	release, err := locker.Acquire(ctx, Key("glossary", "p1"))
	if err != nil {
		t.Fatalf("first acquire failed: %v", err)
	}

	if _, err := locker.Acquire(ctx, Key("glossary", "p1")); !errors.Is(err, ErrHeld) {
		t.Fatalf("expected ErrHeld for second acquire, got %v", err)
	}

	other, err := locker.Acquire(ctx, Key("glossary", "p2"))
	if err != nil {
		t.Fatalf("a different scope must not be blocked: %v", err)
	}
	defer other(ctx)

	if err := release(ctx); err != nil {
		t.Fatalf("release failed: %v", err)
	}
	again, err := locker.Acquire(ctx, Key("glossary", "p1"))
	if err != nil {
		t.Fatalf("acquire after release failed: %v", err)
	}
	defer again(ctx)
}

func TestRedisLockExpires(t *testing.T) {
	locker, s := setupTestRedis(t)
	ctx := context.Background()

	if _, err := locker.Acquire(ctx, "usecase:a1"); err != nil {
		t.Fatalf("acquire failed: %v", err)
	}

	s.FastForward(2 * time.Second)

	release, err := locker.Acquire(ctx, "usecase:a1")
	if err != nil {
		t.Fatalf("expected expired lock to be re-acquirable, got %v", err)
	}
	defer release(ctx)
}

func TestRedisStaleReleaseKeepsNewHolder(t *testing.T) {
	locker, s := setupTestRedis(t)
	ctx := context.Background()

	stale, err := locker.Acquire(ctx, "feature:u1")
	if err != nil {
		t.Fatalf("acquire failed: %v", err)
	}
	s.FastForward(2 * time.Second)

	current, err := locker.Acquire(ctx, "feature:u1")
	if err != nil {
		t.Fatalf("re-acquire failed: %v", err)
	}
	defer current(ctx)

	if err := stale(ctx); err != nil {
		t.Fatalf("stale release failed: %v", err)
	}
	if _, err := locker.Acquire(ctx, "feature:u1"); !errors.Is(err, ErrHeld) {
		t.Fatalf("stale release must not free the new holder's lock, got %v", err)
	}
}

func TestMemoryLocker(t *testing.T) {
	locker := NewMemory()
	ctx := context.Background()

	release, err := locker.Acquire(ctx, "glossary:p1")
	if err != nil {
		t.Fatalf("acquire failed: %v", err)
	}
	if _, err := locker.Acquire(ctx, "glossary:p1"); !errors.Is(err, ErrHeld) {
		t.Fatalf("expected ErrHeld, got %v", err)
	}

	_ = release(ctx)
	_ = release(ctx)

	again, err := locker.Acquire(ctx, "glossary:p1")
	if err != nil {
		t.Fatalf("acquire after release failed: %v", err)
	}
	_ = again(ctx)
}
