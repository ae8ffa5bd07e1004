package application

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"discord-bridge/bridge/discord/domain"
)

// fakeRoleAPI simula o cliente: guarda as roles da guild e as do membro,
// criando roles novas com IDs sequenciais a partir de 1000.
type fakeRoleAPI struct {
	guildRoles    domain.RoleSet
	memberRoles   domain.RoleSet
	memberOutcome domain.MemberOutcome

	created  []string
	modified [][]uint64
	nextID   uint64
}

func (f *fakeRoleAPI) MatchOrCreateRolesFromNames(_ context.Context, _ uint64, names []string) (domain.RoleSet, error) {
	var out []domain.Role
	for _, n := range names {
		if r, ok := f.guildRoles.RoleByName(n); ok {
			out = append(out, r)
			continue
		}
		f.nextID++
		r := domain.NewRole(1000+f.nextID, n, false)
		f.guildRoles = f.guildRoles.Union(domain.NewRoleSet(r))
		f.created = append(f.created, n)
		out = append(out, r)
	}
	return domain.NewRoleSet(out...), nil
}

func (f *fakeRoleAPI) GuildMemberRoles(_ context.Context, _, _ uint64) (domain.RoleSet, domain.MemberOutcome, error) {
	if f.memberOutcome != domain.OutcomeOK {
		return domain.RoleSet{}, f.memberOutcome, nil
	}
	return f.memberRoles, domain.OutcomeOK, nil
}

func (f *fakeRoleAPI) ModifyGuildMember(_ context.Context, _, _ uint64, patch domain.MemberPatch) (domain.MemberOutcome, error) {
	f.modified = append(f.modified, patch.Roles)
	f.memberRoles = f.guildRoles.Subset(domain.RoleFilter{IDs: patch.Roles})
	return domain.OutcomeOK, nil
}

type staticReserved []string

func (s staticReserved) ReservedRoleNames(context.Context) ([]string, error) {
	return s, nil
}

func TestCalculateRoles_ConcreteScenario(t *testing.T) {
	// guild: alpha(1), bravo(2); membro tem {alpha}; grupos mapeiam {bravo}
	alpha := domain.NewRole(1, "alpha", false)
	bravo := domain.NewRole(2, "bravo", false)

	result, changed := CalculateRoles(
		domain.NewRoleSet(bravo),
		domain.NewRoleSet(alpha),
		nil,
	)

	assert.True(t, changed)
	assert.Equal(t, []uint64{2}, result.IDs())
}

func TestCalculateRoles_KeepsManagedRoles(t *testing.T) {
	boost := domain.NewRole(9, "Server Booster", true)
	a := domain.NewRole(1, "a", false)
	b := domain.NewRole(2, "b", false)

	result, changed := CalculateRoles(
		domain.NewRoleSet(a),
		domain.NewRoleSet(boost, a, b),
		nil,
	)

	assert.True(t, changed)
	assert.True(t, result.HasRoles(9), "managed role must survive reconciliation")
	assert.Equal(t, []uint64{1, 9}, result.IDs())
}

func TestCalculateRoles_KeepsReservedRoles_CaseVariants(t *testing.T) {
	adminLower := domain.NewRole(1, "admin", false)
	adminUpper := domain.NewRole(2, "ADMIN", false)
	x := domain.NewRole(3, "x", false)
	y := domain.NewRole(4, "y", false)

	// as duas variantes de caixa ficam protegidas quando uma reserva casa
	result, changed := CalculateRoles(
		domain.NewRoleSet(y),
		domain.NewRoleSet(adminLower, adminUpper, x),
		[]string{"Admin"},
	)

	assert.True(t, changed)
	assert.Equal(t, []uint64{1, 2, 4}, result.IDs())
}

func TestCalculateRoles_NoChangeWhenPersistentStripped(t *testing.T) {
	managed := domain.NewRole(9, "integration", true)
	reserved := domain.NewRole(8, "keepme", false)
	a := domain.NewRole(1, "a", false)

	// current − persistent == calculated => sem mudança
	result, changed := CalculateRoles(
		domain.NewRoleSet(a),
		domain.NewRoleSet(managed, reserved, a),
		[]string{"keepme"},
	)

	assert.False(t, changed)
	assert.Equal(t, []uint64{1}, result.IDs())
}

func TestCalculateRoles_NoSpuriousDiffOnStaleMetadata(t *testing.T) {
	// mesmo ID, metadados divergentes (nome renomeado no remoto)
	calculated := domain.NewRoleSet(domain.NewRole(1, "new-name", false))
	current := domain.NewRoleSet(domain.NewRole(1, "old-name", false))

	_, changed := CalculateRoles(calculated, current, nil)
	assert.False(t, changed, "id-set equality must ignore metadata drift")
}

func TestReconciler_NotAMemberReturnsUnknown(t *testing.T) {
	api := &fakeRoleAPI{
		guildRoles:    domain.NewRoleSet(domain.NewRole(1, "staff", false)),
		memberOutcome: domain.OutcomeNotAMember,
	}
	rec := &Reconciler{API: api, GuildID: 42}

	roles, status, err := rec.CalculateRolesForUser(context.Background(), 7, []string{"staff"}, "")
	require.NoError(t, err)
	assert.Equal(t, domain.ChangeUnknown, status)
	assert.Equal(t, []uint64{1}, roles.IDs(), "calculated set is still returned")
}

func TestReconciler_ReconcileAppliesAndConverges(t *testing.T) {
	alpha := domain.NewRole(1, "alpha", false)
	bravo := domain.NewRole(2, "bravo", false)
	api := &fakeRoleAPI{
		guildRoles:  domain.NewRoleSet(alpha, bravo),
		memberRoles: domain.NewRoleSet(alpha),
	}
	rec := &Reconciler{API: api, GuildID: 42}
	ctx := context.Background()

	status, err := rec.Reconcile(ctx, 7, []string{"bravo"}, "")
	require.NoError(t, err)
	assert.Equal(t, domain.ChangeNeeded, status)
	require.Len(t, api.modified, 1)
	assert.Equal(t, []uint64{2}, api.modified[0])

	// idempotência: rodar de novo sem mudança remota converge para "none"
	status, err = rec.Reconcile(ctx, 7, []string{"bravo"}, "")
	require.NoError(t, err)
	assert.Equal(t, domain.ChangeNone, status)
	assert.Len(t, api.modified, 1, "no second write")
}

func TestReconciler_ReservedSurviveApply(t *testing.T) {
	protected := domain.NewRole(5, "Protected", false)
	alpha := domain.NewRole(1, "alpha", false)
	bravo := domain.NewRole(2, "bravo", false)
	api := &fakeRoleAPI{
		guildRoles:  domain.NewRoleSet(alpha, bravo, protected),
		memberRoles: domain.NewRoleSet(alpha, protected),
	}
	rec := &Reconciler{API: api, Reserved: staticReserved{"protected"}, GuildID: 42}

	status, err := rec.Reconcile(context.Background(), 7, []string{"bravo"}, "")
	require.NoError(t, err)
	assert.Equal(t, domain.ChangeNeeded, status)
	require.Len(t, api.modified, 1)
	assert.Equal(t, []uint64{2, 5}, api.modified[0])
}

func TestReconciler_DeduplicatesNamesAndIncludesState(t *testing.T) {
	api := &fakeRoleAPI{memberOutcome: domain.OutcomeNotAMember}
	rec := &Reconciler{API: api, GuildID: 42}

	_, _, err := rec.CalculateRolesForUser(context.Background(), 7, []string{"staff", "staff", ""}, "east")
	require.NoError(t, err)
	assert.Equal(t, []string{"staff", "east"}, api.created)
}
