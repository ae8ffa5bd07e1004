package discord

import (
	"context"
	"log/slog"
	"sync"
	"time"

	"github.com/google/uuid"
	"golang.org/x/time/rate"

	"discord-bridge/bridge/discord/domain"
)

// UserSource lista os usuários locais a varrer (colaborador externo:
// a tabela espelho de associações).
type UserSource interface {
	UserIDs(ctx context.Context) ([]uint64, error)
}

// UserSyncer reconcilia um usuário. Na prática é a application.Reconciler
// já amarrada aos grupos locais.
type UserSyncer interface {
	SyncUser(ctx context.Context, userID uint64) error
}

// Sweeper refaz a reconciliação de todos os usuários conhecidos em
// intervalos regulares. O ritmo é controlado por um token bucket local
// (além do limite compartilhado, que continua valendo por requisição) e a
// concorrência por um SlotPool.
type Sweeper struct {
	Users  UserSource
	Syncer UserSyncer
	Pool   domain.SlotPool
	Pace   *rate.Limiter
	Every  time.Duration
	Log    *slog.Logger

	// Sleep é injetável para testes; nil usa time.Sleep.
	Sleep func(time.Duration)
}

func (s *Sweeper) sleep(d time.Duration) {
	if s.Sleep != nil {
		s.Sleep(d)
		return
	}
	time.Sleep(d)
}

func (s *Sweeper) logger() *slog.Logger {
	if s.Log != nil {
		return s.Log
	}
	return slog.Default()
}

// Run varre periodicamente até o contexto encerrar.
func (s *Sweeper) Run(ctx context.Context) {
	every := s.Every
	if every <= 0 {
		every = 24 * time.Hour
	}

	t := time.NewTicker(every)
	defer t.Stop()
	for {
		select {
		case <-ctx.Done():
			return
		case <-t.C:
			if err := s.SweepOnce(ctx); err != nil {
				s.logger().Error("sweep aborted", "err", err)
			}
		}
	}
}

// SweepOnce reconcilia todos os usuários uma vez. Erros Backoff seguram o
// worker pelo retry-after; outros erros são logados e a varredura continua
// com o próximo usuário.
func (s *Sweeper) SweepOnce(ctx context.Context) error {
	ids, err := s.Users.UserIDs(ctx)
	if err != nil {
		return err
	}

	log := s.logger().With("sweep_id", uuid.NewString())
	log.Info("sweep started", "users", len(ids))

	var wg sync.WaitGroup
	for _, id := range ids {
		if s.Pace != nil {
			if err := s.Pace.Wait(ctx); err != nil {
				break
			}
		}

		release := func() {}
		if s.Pool != nil {
			var ok bool
			release, ok = s.Pool.Acquire(ctx)
			if !ok {
				break
			}
		}

		wg.Add(1)
		go func(userID uint64) {
			defer wg.Done()
			defer release()

			if err := s.Syncer.SyncUser(ctx, userID); err != nil {
				if b, ok := domain.AsBackoff(err); ok {
					log.Warn("backoff during sweep, holding worker", "user_id", userID, "retry_after", b.RetryAfter())
					s.sleep(b.RetryAfter())
					return
				}
				log.Error("user sync failed during sweep", "user_id", userID, "err", err)
			}
		}(id)
	}
	wg.Wait()

	log.Info("sweep finished")
	return ctx.Err()
}
