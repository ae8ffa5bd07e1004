package domain

import (
	"errors"
	"fmt"
	"time"
)

// Backoff é a família de erros transitórios de limite de requisições.
// Todos carregam por quanto tempo o chamador deve esperar antes de tentar
// de novo. São sempre "retryable" e nunca devem ser logados como erro,
// apenas info/warn.
type Backoff interface {
	error
	RetryAfter() time.Duration
	backoff()
}

// BackoffError indica que uma janela de backoff global está em vigor.
type BackoffError struct {
	After time.Duration
}

func (e *BackoffError) Error() string {
	return fmt.Sprintf("backoff in effect, retry after %s", e.After)
}

func (e *BackoffError) RetryAfter() time.Duration { return e.After }
func (e *BackoffError) backoff()                  {}

// RateLimitExhausted indica que o orçamento compartilhado da janela
// corrente acabou e o TTL restante não cabe numa espera bloqueante.
type RateLimitExhausted struct {
	BackoffError
}

func (e *RateLimitExhausted) Error() string {
	return fmt.Sprintf("shared rate limit exhausted, retry after %s", e.After)
}

// TooManyRequests indica um 429 devolvido pela API remota.
type TooManyRequests struct {
	BackoffError
}

func (e *TooManyRequests) Error() string {
	return fmt.Sprintf("remote returned 429, retry after %s", e.After)
}

// AsBackoff responde se o erro (ou alguma causa dele) pertence à família
// Backoff.
func AsBackoff(err error) (Backoff, bool) {
	var b Backoff
	if errors.As(err, &b) {
		return b, true
	}
	return nil, false
}

// ErrInternal é devolvido quando o laço do gate excede o teto de iterações.
// Falhar fechado aqui é preferível a um loop sem fim.
var ErrInternal = errors.New("rate gate: spin cap exceeded")

// CodeUnknownMember é o código de erro remoto para "membro desconhecido",
// distinto de um 404 genérico.
const CodeUnknownMember = 10007

// HTTPError representa uma resposta não-2xx da API remota.
// Code é o código de erro do corpo JSON, quando presente.
type HTTPError struct {
	Status int
	Code   int
	Body   string
}

func (e *HTTPError) Error() string {
	if e.Code != 0 {
		return fmt.Sprintf("remote API error: status %d (code %d)", e.Status, e.Code)
	}
	return fmt.Sprintf("remote API error: status %d", e.Status)
}

// UnknownMember responde se a resposta é o 404 específico de membro
// inexistente (condição esperada em regime: usuários saem do servidor).
func (e *HTTPError) UnknownMember() bool {
	return e.Status == 404 && e.Code == CodeUnknownMember
}

// MemberOutcome torna explícita a tricotomia das operações de membro:
// sucesso, membro não existe, ou falha.
type MemberOutcome uint8

const (
	OutcomeOK MemberOutcome = iota
	OutcomeNotAMember
	OutcomeFailed
)

func (o MemberOutcome) String() string {
	switch o {
	case OutcomeOK:
		return "ok"
	case OutcomeNotAMember:
		return "not-a-member"
	case OutcomeFailed:
		return "failed"
	}
	return "unknown"
}

// ChangeStatus é o resultado trinário da reconciliação.
type ChangeStatus uint8

const (
	// ChangeUnknown: o usuário não é membro da guild, não há o que reconciliar.
	ChangeUnknown ChangeStatus = iota
	// ChangeNone: as roles atuais já batem com as calculadas.
	ChangeNone
	// ChangeNeeded: o conjunto calculado difere do atual.
	ChangeNeeded
)

func (c ChangeStatus) String() string {
	switch c {
	case ChangeUnknown:
		return "unknown"
	case ChangeNone:
		return "none"
	case ChangeNeeded:
		return "needed"
	}
	return "invalid"
}
