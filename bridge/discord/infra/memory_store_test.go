package infra

import (
	"context"
	"testing"
	"time"
)

func testClock(start time.Time) (func() time.Time, func(time.Duration)) {
	now := start
	return func() time.Time { return now }, func(d time.Duration) { now = now.Add(d) }
}

func TestMemoryCounterStore_DecrOrInitConsumesFirstSlot(t *testing.T) {
	clock, _ := testClock(time.Unix(100, 0))
	s := NewMemoryCounterStore(WithCounterClock(clock))
	ctx := context.Background()

	n, err := s.DecrOrInit(ctx, "k", 5, time.Second)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if n != 4 {
		t.Fatalf("first hit must consume a slot: expected 4, got %d", n)
	}

	for want := int64(3); want >= -1; want-- {
		n, _ = s.DecrOrInit(ctx, "k", 5, time.Second)
		if n != want {
			t.Fatalf("expected %d, got %d", want, n)
		}
	}
}

func TestMemoryCounterStore_ReinitializesAfterExpiry(t *testing.T) {
	clock, advance := testClock(time.Unix(100, 0))
	s := NewMemoryCounterStore(WithCounterClock(clock))
	ctx := context.Background()

	_, _ = s.DecrOrInit(ctx, "k", 5, time.Second)
	_, _ = s.DecrOrInit(ctx, "k", 5, time.Second)

	advance(1100 * time.Millisecond)

	n, _ := s.DecrOrInit(ctx, "k", 5, time.Second)
	if n != 4 {
		t.Fatalf("expired key must reinitialize: expected 4, got %d", n)
	}
}

func TestMemoryCounterStore_TTL(t *testing.T) {
	clock, advance := testClock(time.Unix(100, 0))
	s := NewMemoryCounterStore(WithCounterClock(clock))
	ctx := context.Background()

	if d, _ := s.TTL(ctx, "missing"); d != 0 {
		t.Fatalf("missing key must report 0, got %s", d)
	}

	_, _ = s.DecrOrInit(ctx, "k", 5, time.Second)
	advance(400 * time.Millisecond)

	d, _ := s.TTL(ctx, "k")
	if d != 600*time.Millisecond {
		t.Fatalf("expected 600ms remaining, got %s", d)
	}

	advance(700 * time.Millisecond)
	if d, _ := s.TTL(ctx, "k"); d != 0 {
		t.Fatalf("expired key must report 0, got %s", d)
	}
}

func TestMemoryCounterStore_ExtendTTLNeverShortens(t *testing.T) {
	clock, _ := testClock(time.Unix(100, 0))
	s := NewMemoryCounterStore(WithCounterClock(clock))
	ctx := context.Background()

	// mais curto depois de mais longo: o mais longo fica
	_ = s.ExtendTTL(ctx, "b", 1*time.Second)
	_ = s.ExtendTTL(ctx, "b", 300*time.Millisecond)
	if d, _ := s.TTL(ctx, "b"); d != 1*time.Second {
		t.Fatalf("shorter TTL must not win, got %s", d)
	}

	// mais longo estende
	_ = s.ExtendTTL(ctx, "b", 3*time.Second)
	if d, _ := s.TTL(ctx, "b"); d != 3*time.Second {
		t.Fatalf("longer TTL must win, got %s", d)
	}
}

func TestMemoryCounterStore_CleanupDropsExpiredOnly(t *testing.T) {
	clock, advance := testClock(time.Unix(100, 0))
	s := NewMemoryCounterStore(WithCounterClock(clock))
	ctx := context.Background()

	_, _ = s.DecrOrInit(ctx, "old", 5, 100*time.Millisecond)
	_, _ = s.DecrOrInit(ctx, "new", 5, 10*time.Second)

	advance(200 * time.Millisecond)
	s.Cleanup()

	if d, _ := s.TTL(ctx, "new"); d <= 0 {
		t.Fatalf("live key must survive cleanup")
	}
	// a chave limpa reinicializa na próxima batida
	if n, _ := s.DecrOrInit(ctx, "old", 5, time.Second); n != 4 {
		t.Fatalf("expected reinitialized counter, got %d", n)
	}
}
