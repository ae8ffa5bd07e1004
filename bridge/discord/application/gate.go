package application

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"discord-bridge/bridge/discord/domain"
)

// Gate concentra a regra do limite global compartilhado entre workers.
//
// Ele não sabe nada sobre HTTP: apenas decide, antes de cada requisição, se
// ela pode sair agora (possivelmente após uma espera curta) ou se o chamador
// recebe um erro da família Backoff com o retry-after.
type Gate struct {
	Store domain.CounterStore
	// Stats é best-effort; nil desliga.
	Stats domain.StatsStore
	Limit domain.Limit
	Log   *slog.Logger

	// Sleep é injetável para testes; nil usa time.Sleep.
	Sleep func(time.Duration)
}

func (g *Gate) sleep(d time.Duration) {
	if g.Sleep != nil {
		g.Sleep(d)
		return
	}
	time.Sleep(d)
}

func (g *Gate) logger() *slog.Logger {
	if g.Log != nil {
		return g.Log
	}
	return slog.Default()
}

func (g *Gate) record(ctx context.Context, op string, allowed bool) {
	if g.Stats == nil {
		return
	}
	_ = g.Stats.Record(ctx, domain.StatsEvent{Op: op, Allowed: allowed, At: time.Now()})
}

// Acquire executa o algoritmo por requisição:
//
//  1. Checa a janela de backoff global. TTL curto (< WaitThreshold) dorme e
//     segue; TTL longo devolve BackoffError com retry-after.
//  2. Decrementa-ou-inicializa o contador compartilhado. Resultado >= 0
//     libera; negativo dorme o TTL restante (se curto) e tenta de novo, ou
//     devolve RateLimitExhausted (se longo). O laço tem teto (MaxSpins) e
//     estourá-lo falha fechado com ErrInternal.
//
// unlimited pula o passo 2 (uso pontual, ex: operações administrativas);
// o backoff do passo 1 vale mesmo assim.
func (g *Gate) Acquire(ctx context.Context, op string, unlimited bool) error {
	lim := g.Limit.Normalized()

	ttl, err := g.Store.TTL(ctx, lim.BackoffKey)
	if err != nil {
		return fmt.Errorf("rate gate: backoff ttl: %w", err)
	}
	if ttl > 0 {
		if ttl >= lim.WaitThreshold {
			g.record(ctx, op, false)
			g.logger().Info("request blocked by global backoff", "op", op, "retry_after", ttl)
			return &domain.BackoffError{After: ttl}
		}
		g.sleep(ttl)
	}

	if unlimited {
		g.record(ctx, op, true)
		return nil
	}

	for spin := 0; spin < lim.MaxSpins; spin++ {
		remaining, err := g.Store.DecrOrInit(ctx, lim.RemainingKey, lim.Burst, lim.Window+lim.Contingency)
		if err != nil {
			return fmt.Errorf("rate gate: counter: %w", err)
		}
		if remaining >= 0 {
			g.record(ctx, op, true)
			return nil
		}

		ttl, err := g.Store.TTL(ctx, lim.RemainingKey)
		if err != nil {
			return fmt.Errorf("rate gate: counter ttl: %w", err)
		}
		if ttl >= lim.WaitThreshold {
			g.record(ctx, op, false)
			g.logger().Info("shared rate limit exhausted", "op", op, "retry_after", ttl)
			return &domain.RateLimitExhausted{BackoffError: domain.BackoffError{After: ttl}}
		}
		if ttl > 0 {
			// a janela está prestes a expirar; espera curta e tenta de novo
			g.sleep(ttl)
		}
	}

	g.record(ctx, op, false)
	return fmt.Errorf("%w after %d spins", domain.ErrInternal, lim.MaxSpins)
}

// SetBackoff registra (ou estende) a janela de backoff global após um 429.
// Nunca encurta uma janela já maior.
func (g *Gate) SetBackoff(ctx context.Context, d time.Duration) error {
	lim := g.Limit.Normalized()
	if err := g.Store.ExtendTTL(ctx, lim.BackoffKey, d); err != nil {
		return fmt.Errorf("rate gate: set backoff: %w", err)
	}
	return nil
}
