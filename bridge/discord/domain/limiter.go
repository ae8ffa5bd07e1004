package domain

import (
	"context"
	"time"
)

// CounterStore é um KV compartilhado entre processos com TTL e primitivas
// atômicas. É o único estado mutável compartilhado deste núcleo; toda a
// coordenação entre workers passa por ele.
//
// As implementações devem executar cada primitiva em uma única ida ao
// servidor (script/transação), sem janela entre checagem e mutação.
type CounterStore interface {
	// DecrOrInit decrementa o contador atomicamente. Se a chave não existe,
	// inicializa com initial-1 (já consumindo uma vaga), aplica o TTL e
	// devolve initial-1. Valores negativos significam orçamento estourado.
	DecrOrInit(ctx context.Context, key string, initial int64, ttl time.Duration) (int64, error)

	// TTL devolve o tempo restante da chave; 0 quando inexistente ou sem TTL.
	TTL(ctx context.Context, key string) (time.Duration, error)

	// ExtendTTL garante que a chave exista com pelo menos o TTL dado.
	// Nunca encurta um TTL já maior (set-if-longer).
	ExtendTTL(ctx context.Context, key string, ttl time.Duration) error
}

// Defaults do limite compartilhado.
const (
	DefaultBurst         = 5
	DefaultWindow        = 5000 * time.Millisecond
	DefaultContingency   = 500 * time.Millisecond
	DefaultWaitThreshold = 250 * time.Millisecond
	// DefaultMaxSpins é o teto do laço de espera do gate. Estourar o teto
	// falha fechado com ErrInternal.
	DefaultMaxSpins = 1000

	DefaultRemainingKey = "discord:limit:remaining"
	DefaultBackoffKey   = "discord:limit:backoff"
)

// Limit parametriza o limite global compartilhado.
type Limit struct {
	// Burst é a rajada máxima por janela.
	Burst int64
	// Window é a duração da janela; Contingency é somada ao TTL para
	// absorver relógio/latência.
	Window      time.Duration
	Contingency time.Duration
	// WaitThreshold é a espera bloqueante máxima tolerada; acima disso o
	// gate devolve erro com retry-after em vez de dormir.
	WaitThreshold time.Duration
	MaxSpins      int

	RemainingKey string
	BackoffKey   string
}

// DefaultLimit devolve a configuração padrão.
func DefaultLimit() Limit {
	return Limit{
		Burst:         DefaultBurst,
		Window:        DefaultWindow,
		Contingency:   DefaultContingency,
		WaitThreshold: DefaultWaitThreshold,
		MaxSpins:      DefaultMaxSpins,
		RemainingKey:  DefaultRemainingKey,
		BackoffKey:    DefaultBackoffKey,
	}
}

// Normalized preenche campos zero com os defaults.
func (l Limit) Normalized() Limit {
	d := DefaultLimit()
	if l.Burst <= 0 {
		l.Burst = d.Burst
	}
	if l.Window <= 0 {
		l.Window = d.Window
	}
	if l.Contingency <= 0 {
		l.Contingency = d.Contingency
	}
	if l.WaitThreshold <= 0 {
		l.WaitThreshold = d.WaitThreshold
	}
	if l.MaxSpins <= 0 {
		l.MaxSpins = d.MaxSpins
	}
	if l.RemainingKey == "" {
		l.RemainingKey = d.RemainingKey
	}
	if l.BackoffKey == "" {
		l.BackoffKey = d.BackoffKey
	}
	return l
}
