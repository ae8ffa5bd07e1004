package application

import (
	"context"
	"fmt"
	"log/slog"

	"discord-bridge/bridge/discord/domain"
)

// RoleAPI é o recorte do cliente da API usado pela reconciliação.
type RoleAPI interface {
	MatchOrCreateRolesFromNames(ctx context.Context, guildID uint64, names []string) (domain.RoleSet, error)
	GuildMemberRoles(ctx context.Context, guildID, userID uint64) (domain.RoleSet, domain.MemberOutcome, error)
	ModifyGuildMember(ctx context.Context, guildID, userID uint64, patch domain.MemberPatch) (domain.MemberOutcome, error)
}

// ReservedSource lista nomes de role protegidos contra sync automático
// (registro externo, mantido por administradores).
type ReservedSource interface {
	ReservedRoleNames(ctx context.Context) ([]string, error)
}

// CalculateRoles é o núcleo puro da reconciliação.
//
// Roles "persistentes" (managed, ou com nome reservado) nunca são removidas
// pela automação, mesmo não derivando de grupo nenhum. A comparação de
// não-mudança remove as persistentes primeiro, para que metadados velhos
// nelas não gerem diffs espúrios:
//
//	calculated == current − persistent  =>  (calculated, false)
//	caso contrário                      =>  (calculated ∪ persistent, true)
//
// Nomes reservados casam de forma case-insensitive: se "Admin" e "ADMIN"
// existem como roles distintas e o registro reserva um deles, os dois
// ficam protegidos.
func CalculateRoles(calculated, current domain.RoleSet, reserved []string) (domain.RoleSet, bool) {
	managed := current.Subset(domain.RoleFilter{ManagedOnly: true})
	reservedSet := domain.RoleSet{}
	if len(reserved) > 0 {
		reservedSet = current.Subset(domain.RoleFilter{Names: reserved})
	}
	persistent := managed.Union(reservedSet)

	if calculated.Equal(current.Difference(persistent)) {
		return calculated, false
	}
	return calculated.Union(persistent), true
}

// Reconciler calcula (e opcionalmente aplica) o conjunto de roles que um
// usuário deveria ter a partir dos nomes de grupo locais.
type Reconciler struct {
	API      RoleAPI
	Reserved ReservedSource
	GuildID  uint64
	Log      *slog.Logger
}

func (r *Reconciler) logger() *slog.Logger {
	if r.Log != nil {
		return r.Log
	}
	return slog.Default()
}

// CalculateRolesForUser resolve os nomes de grupo (mais o nome de estado,
// se houver) em roles via match-or-create, lê as roles atuais do membro e
// aplica CalculateRoles.
//
// ChangeUnknown significa "não é membro da guild, nada a reconciliar"; o
// conjunto calculado ainda é devolvido para quem quiser exibi-lo.
func (r *Reconciler) CalculateRolesForUser(ctx context.Context, userID uint64, groupNames []string, stateName string) (domain.RoleSet, domain.ChangeStatus, error) {
	names := dedupNames(groupNames, stateName)

	calculated, err := r.API.MatchOrCreateRolesFromNames(ctx, r.GuildID, names)
	if err != nil {
		return domain.RoleSet{}, domain.ChangeUnknown, fmt.Errorf("match roles: %w", err)
	}

	current, outcome, err := r.API.GuildMemberRoles(ctx, r.GuildID, userID)
	if err != nil {
		return domain.RoleSet{}, domain.ChangeUnknown, fmt.Errorf("member roles: %w", err)
	}
	if outcome == domain.OutcomeNotAMember {
		return calculated, domain.ChangeUnknown, nil
	}

	var reserved []string
	if r.Reserved != nil {
		reserved, err = r.Reserved.ReservedRoleNames(ctx)
		if err != nil {
			return domain.RoleSet{}, domain.ChangeUnknown, fmt.Errorf("reserved names: %w", err)
		}
	}

	result, changed := CalculateRoles(calculated, current, reserved)
	if !changed {
		return result, domain.ChangeNone, nil
	}
	return result, domain.ChangeNeeded, nil
}

// Reconcile calcula e, se necessário, grava o novo conjunto de roles do
// membro. Rodar de novo sem mudança de estado remoto converge para
// ChangeNone (idempotência).
func (r *Reconciler) Reconcile(ctx context.Context, userID uint64, groupNames []string, stateName string) (domain.ChangeStatus, error) {
	roles, status, err := r.CalculateRolesForUser(ctx, userID, groupNames, stateName)
	if err != nil || status != domain.ChangeNeeded {
		return status, err
	}

	outcome, err := r.API.ModifyGuildMember(ctx, r.GuildID, userID, domain.MemberPatch{Roles: roles.IDs()})
	if err != nil {
		return domain.ChangeNeeded, fmt.Errorf("apply roles: %w", err)
	}
	if outcome == domain.OutcomeNotAMember {
		// saiu da guild entre a leitura e a escrita
		return domain.ChangeUnknown, nil
	}
	if outcome == domain.OutcomeFailed {
		return domain.ChangeNeeded, fmt.Errorf("apply roles for user %d: modify refused", userID)
	}

	r.logger().Info("member roles reconciled", "user_id", userID, "roles", roles.Names())
	return domain.ChangeNeeded, nil
}

func dedupNames(groupNames []string, stateName string) []string {
	seen := make(map[string]struct{}, len(groupNames)+1)
	out := make([]string, 0, len(groupNames)+1)
	add := func(n string) {
		n = domain.SanitizeRoleName(n)
		if n == "" {
			return
		}
		if _, ok := seen[n]; ok {
			return
		}
		seen[n] = struct{}{}
		out = append(out, n)
	}
	for _, n := range groupNames {
		add(n)
	}
	add(stateName)
	return out
}
