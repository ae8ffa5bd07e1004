package infra

import (
	"context"
	"sync"
	"time"
)

// MemoryCounterStore implementa domain.CounterStore em memória, com a mesma
// semântica do RedisCounterStore (TTL incluído).
//
// Útil para testes e para deployments de processo único; não coordena nada
// entre processos.
type MemoryCounterStore struct {
	mu           sync.Mutex
	entries      map[string]*counterEntry
	cleanupEvery time.Duration

	// now é injetável para testes; nil usa time.Now.
	now func() time.Time
}

type counterEntry struct {
	value     int64
	expiresAt time.Time
}

type MemoryCounterOption func(*MemoryCounterStore)

func WithCounterCleanupEvery(d time.Duration) MemoryCounterOption {
	return func(s *MemoryCounterStore) { s.cleanupEvery = d }
}

func WithCounterClock(now func() time.Time) MemoryCounterOption {
	return func(s *MemoryCounterStore) { s.now = now }
}

func NewMemoryCounterStore(opts ...MemoryCounterOption) *MemoryCounterStore {
	s := &MemoryCounterStore{
		entries:      make(map[string]*counterEntry),
		cleanupEvery: 2 * time.Minute,
		now:          time.Now,
	}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

func (s *MemoryCounterStore) DecrOrInit(_ context.Context, key string, initial int64, ttl time.Duration) (int64, error) {
	now := s.now()

	s.mu.Lock()
	defer s.mu.Unlock()

	ent, ok := s.entries[key]
	if !ok || !ent.expiresAt.After(now) {
		ent = &counterEntry{value: initial - 1, expiresAt: now.Add(ttl)}
		s.entries[key] = ent
		return ent.value, nil
	}
	ent.value--
	return ent.value, nil
}

func (s *MemoryCounterStore) TTL(_ context.Context, key string) (time.Duration, error) {
	now := s.now()

	s.mu.Lock()
	defer s.mu.Unlock()

	ent, ok := s.entries[key]
	if !ok {
		return 0, nil
	}
	rest := ent.expiresAt.Sub(now)
	if rest <= 0 {
		return 0, nil
	}
	return rest, nil
}

func (s *MemoryCounterStore) ExtendTTL(_ context.Context, key string, ttl time.Duration) error {
	now := s.now()
	want := now.Add(ttl)

	s.mu.Lock()
	defer s.mu.Unlock()

	ent, ok := s.entries[key]
	if !ok || !ent.expiresAt.After(now) || ent.expiresAt.Before(want) {
		s.entries[key] = &counterEntry{value: 1, expiresAt: want}
	}
	return nil
}

// Cleanup remove chaves expiradas. O TTL continua sendo respeitado mesmo sem
// Cleanup; isto só libera memória.
func (s *MemoryCounterStore) Cleanup() {
	now := s.now()

	s.mu.Lock()
	defer s.mu.Unlock()

	for k, ent := range s.entries {
		if !ent.expiresAt.After(now) {
			delete(s.entries, k)
		}
	}
}

// StartJanitor inicia uma goroutine que limpa chaves expiradas
// periodicamente. Pare cancelando o contexto.
func (s *MemoryCounterStore) StartJanitor(ctx context.Context) {
	if s.cleanupEvery <= 0 {
		return
	}

	t := time.NewTicker(s.cleanupEvery)
	go func() {
		defer t.Stop()
		for {
			select {
			case <-ctx.Done():
				return
			case <-t.C:
				s.Cleanup()
			}
		}
	}()
}
