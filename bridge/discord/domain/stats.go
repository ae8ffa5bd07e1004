package domain

import (
	"context"
	"time"
)

// StatsEvent representa uma decisão do gate de rate limit.
//
// Op é o rótulo da operação da API (ex: "get guild roles"), não a rota com
// IDs — cuidado com cardinalidade ao persistir em bases como Redis.
type StatsEvent struct {
	Op      string
	Allowed bool
	At      time.Time
}

// StatsStore é a estratégia de persistência para estatísticas do gate.
//
// Implementações podem armazenar em Redis, memória, etc. O chamador trata
// erro como best-effort (uma falha de estatística nunca derruba a request).
type StatsStore interface {
	Record(ctx context.Context, ev StatsEvent) error
}
