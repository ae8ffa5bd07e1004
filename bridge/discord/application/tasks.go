package application

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net"
	"net/url"
	"time"

	"github.com/google/uuid"

	"discord-bridge/bridge/discord/domain"
)

// Action enumera as tarefas de fundo suportadas. O conjunto é fechado:
// valores fora dele são erro de programação e falham alto, nunca são
// engolidos.
type Action uint8

const (
	ActionUpdateGroups Action = iota
	ActionUpdateNickname
	ActionUpdateUsername
	ActionDeleteUser
)

func (a Action) String() string {
	switch a {
	case ActionUpdateGroups:
		return "update_groups"
	case ActionUpdateNickname:
		return "update_nickname"
	case ActionUpdateUsername:
		return "update_username"
	case ActionDeleteUser:
		return "delete_user"
	}
	return "invalid"
}

// ErrUnknownAction marca um valor de Action fora do enum.
var ErrUnknownAction = errors.New("unknown task action")

// MemberAccount é o registro local de associação (colaborador externo:
// tabela espelho, notificações). Cada método corresponde a uma Action e
// devolve a tricotomia de resultado das operações de membro.
type MemberAccount interface {
	UpdateGroups(ctx context.Context) (domain.MemberOutcome, error)
	UpdateNickname(ctx context.Context) (domain.MemberOutcome, error)
	UpdateUsername(ctx context.Context) (domain.MemberOutcome, error)
	DeleteUser(ctx context.Context) (domain.MemberOutcome, error)

	// ScheduleDeletion agenda a remoção da conta local (com notificação ao
	// usuário) quando detectamos que ele saiu da guild.
	ScheduleDeletion(ctx context.Context, notify bool) error
}

// Defaults da política de retry para erros de transporte/HTTP.
const (
	DefaultMaxRetries = 3
	DefaultRetryPause = 60 * time.Second
)

// TaskRunner é o único lugar que decide retry vs. desistir vs. engolir.
// Manter a política aqui a deixa testável sem mecânica de HTTP.
type TaskRunner struct {
	// MaxRetries e Pause valem para erros de transporte/HTTP; erros da
	// família Backoff têm retry sem limite, respeitando o retry-after.
	MaxRetries int
	Pause      time.Duration
	Log        *slog.Logger

	// Sleep é injetável para testes; nil usa time.Sleep.
	Sleep func(time.Duration)
}

func (t *TaskRunner) sleep(d time.Duration) {
	if t.Sleep != nil {
		t.Sleep(d)
		return
	}
	time.Sleep(d)
}

func (t *TaskRunner) logger() *slog.Logger {
	if t.Log != nil {
		return t.Log
	}
	return slog.Default()
}

// Run executa uma ação contra o registro local, classificando o resultado:
//
//   - OutcomeNotAMember (ação != delete): o usuário saiu da guild; agenda a
//     remoção da conta local e encerra sem erro.
//   - erro Backoff: dorme o retry-after e tenta de novo, sem limite.
//   - erro de transporte/HTTP: pausa fixa e tenta de novo até MaxRetries;
//     depois loga como erro e desiste (nenhuma exceção escapa).
//   - qualquer outro erro: loga e desiste imediatamente.
//   - Action desconhecida: devolve ErrUnknownAction (erro de programação).
func (t *TaskRunner) Run(ctx context.Context, acct MemberAccount, action Action) error {
	maxRetries := t.MaxRetries
	if maxRetries <= 0 {
		maxRetries = DefaultMaxRetries
	}
	pause := t.Pause
	if pause <= 0 {
		pause = DefaultRetryPause
	}
	log := t.logger().With("task_id", uuid.NewString(), "action", action.String())

	transportTries := 0
	for {
		if err := ctx.Err(); err != nil {
			return err
		}

		outcome, err := t.dispatch(ctx, acct, action)
		if err == nil {
			if outcome == domain.OutcomeNotAMember && action != ActionDeleteUser {
				log.Info("user left the guild, scheduling local account deletion")
				return acct.ScheduleDeletion(ctx, true)
			}
			if outcome == domain.OutcomeFailed {
				log.Warn("task finished without effect")
			}
			return nil
		}

		if errors.Is(err, ErrUnknownAction) {
			return err
		}

		if b, ok := domain.AsBackoff(err); ok {
			log.Info("backoff imposed, task will retry", "retry_after", b.RetryAfter())
			t.sleep(b.RetryAfter())
			continue
		}

		if isTransport(err) {
			transportTries++
			if transportTries > maxRetries {
				log.Error("giving up after transport retries", "tries", transportTries-1, "err", err)
				return nil
			}
			log.Warn("transport error, task will retry", "try", transportTries, "pause", pause, "err", err)
			t.sleep(pause)
			continue
		}

		log.Error("unexpected task error, giving up", "err", err)
		return nil
	}
}

func (t *TaskRunner) dispatch(ctx context.Context, acct MemberAccount, action Action) (domain.MemberOutcome, error) {
	switch action {
	case ActionUpdateGroups:
		return acct.UpdateGroups(ctx)
	case ActionUpdateNickname:
		return acct.UpdateNickname(ctx)
	case ActionUpdateUsername:
		return acct.UpdateUsername(ctx)
	case ActionDeleteUser:
		return acct.DeleteUser(ctx)
	}
	return domain.OutcomeFailed, fmt.Errorf("%w: %d", ErrUnknownAction, action)
}

// isTransport classifica erros de rede e respostas não-2xx da API como
// transitórios (retry com pausa fixa).
func isTransport(err error) bool {
	var httpErr *domain.HTTPError
	if errors.As(err, &httpErr) {
		return true
	}
	var netErr net.Error
	if errors.As(err, &netErr) {
		return true
	}
	var urlErr *url.Error
	return errors.As(err, &urlErr)
}
