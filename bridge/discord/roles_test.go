package discord

import (
	"context"
	"encoding/json"
	"net/http"
	"strings"
	"sync"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"discord-bridge/bridge/discord/domain"
)

// rolesBackend simula os endpoints de role da guild, contando as batidas.
type rolesBackend struct {
	mu     sync.Mutex
	roles  []map[string]any
	nextID int

	listHits   int
	createHits int
}

func (b *rolesBackend) handler() http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		b.mu.Lock()
		defer b.mu.Unlock()

		switch {
		case r.Method == http.MethodGet && strings.HasSuffix(r.URL.Path, "/roles"):
			b.listHits++
			_ = json.NewEncoder(w).Encode(b.roles)
		case r.Method == http.MethodPost && strings.HasSuffix(r.URL.Path, "/roles"):
			b.createHits++
			var body struct {
				Name string `json:"name"`
			}
			_ = json.NewDecoder(r.Body).Decode(&body)
			b.nextID++
			role := map[string]any{"id": formatID(uint64(100 + b.nextID)), "name": body.Name, "managed": false}
			b.roles = append(b.roles, role)
			_ = json.NewEncoder(w).Encode(role)
		case r.Method == http.MethodDelete:
			w.WriteHeader(http.StatusNoContent)
		default:
			w.WriteHeader(http.StatusNotFound)
		}
	}
}

func TestGuildRoles_CachedUntilInvalidated(t *testing.T) {
	backend := &rolesBackend{roles: []map[string]any{{"id": "1", "name": "alpha", "managed": false}}}
	c := newTestClient(t, backend.handler(), nil)
	ctx := context.Background()

	first, err := c.GuildRoles(ctx, 1, true)
	require.NoError(t, err)
	assert.Equal(t, []uint64{1}, first.IDs())

	_, err = c.GuildRoles(ctx, 1, true)
	require.NoError(t, err)
	assert.Equal(t, 1, backend.listHits, "second lookup must come from cache")

	// create invalida o cache
	_, err = c.CreateGuildRole(ctx, 1, "bravo")
	require.NoError(t, err)

	after, err := c.GuildRoles(ctx, 1, true)
	require.NoError(t, err)
	assert.Equal(t, 2, backend.listHits)
	assert.Equal(t, 2, after.Len())
}

func TestCreateGuildRole_TruncatesNameTo100(t *testing.T) {
	var sentName string
	c := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		var body struct {
			Name string `json:"name"`
		}
		_ = json.NewDecoder(r.Body).Decode(&body)
		sentName = body.Name
		_, _ = w.Write([]byte(`{"id":"9","name":"` + body.Name + `","managed":false}`))
	}, nil)

	_, err := c.CreateGuildRole(context.Background(), 1, strings.Repeat("a", 110))
	require.NoError(t, err)
	assert.Len(t, []rune(sentName), domain.RoleNameMaxLen)
}

func TestCreateGuildRole_DisabledReturnsNil(t *testing.T) {
	c := newTestClient(t, func(http.ResponseWriter, *http.Request) {
		t.Fatal("no request must be issued when creation is disabled")
	}, func(o *Options) { o.DisableRoleCreation = true })

	role, err := c.CreateGuildRole(context.Background(), 1, "staff")
	require.NoError(t, err)
	assert.Nil(t, role)
}

func TestDeleteGuildRole_SuccessIs204Only(t *testing.T) {
	status := http.StatusNoContent
	c := newTestClient(t, func(w http.ResponseWriter, _ *http.Request) {
		w.WriteHeader(status)
	}, nil)
	ctx := context.Background()

	ok, err := c.DeleteGuildRole(ctx, 1, 2)
	require.NoError(t, err)
	assert.True(t, ok)

	status = http.StatusForbidden
	ok, err = c.DeleteGuildRole(ctx, 1, 2)
	require.NoError(t, err)
	assert.False(t, ok)
}

func TestGuildName_SoftFailsToEmpty(t *testing.T) {
	c := newTestClient(t, func(w http.ResponseWriter, _ *http.Request) {
		w.WriteHeader(http.StatusInternalServerError)
	}, nil)

	assert.Equal(t, "", c.GuildName(context.Background(), 1, true))
}

func TestGuildName_Cached(t *testing.T) {
	hits := 0
	c := newTestClient(t, func(w http.ResponseWriter, _ *http.Request) {
		hits++
		_, _ = w.Write([]byte(`{"id":"1","name":"My Guild","roles":[]}`))
	}, nil)
	ctx := context.Background()

	assert.Equal(t, "My Guild", c.GuildName(ctx, 1, true))
	assert.Equal(t, "My Guild", c.GuildName(ctx, 1, true))
	assert.Equal(t, 1, hits)

	// use_cache=false fura o cache
	assert.Equal(t, "My Guild", c.GuildName(ctx, 1, false))
	assert.Equal(t, 2, hits)
}

func TestMatchRoleFromName_CaseSensitive(t *testing.T) {
	backend := &rolesBackend{roles: []map[string]any{{"id": "1", "name": "Staff", "managed": false}}}
	c := newTestClient(t, backend.handler(), nil)
	ctx := context.Background()

	_, ok, err := c.MatchRoleFromName(ctx, 1, "staff")
	require.NoError(t, err)
	assert.False(t, ok)

	r, ok, err := c.MatchRoleFromName(ctx, 1, "Staff")
	require.NoError(t, err)
	require.True(t, ok)
	assert.Equal(t, uint64(1), r.ID)
}

func TestMatchOrCreateRolesFromNames_NoDuplicateCreatesInBatch(t *testing.T) {
	backend := &rolesBackend{roles: []map[string]any{{"id": "1", "name": "alpha", "managed": false}}}
	c := newTestClient(t, backend.handler(), nil)

	set, err := c.MatchOrCreateRolesFromNames(context.Background(), 1, []string{"alpha", "staff", "staff", "east"})
	require.NoError(t, err)

	assert.Equal(t, 2, backend.createHits, "repeated name in one batch must create once")
	assert.Equal(t, 3, set.Len())
	assert.ElementsMatch(t, []string{"alpha", "staff", "east"}, set.Names())
}

func TestMatchOrCreateRolesFromNames_SkipsWhenCreationDisabled(t *testing.T) {
	backend := &rolesBackend{roles: []map[string]any{{"id": "1", "name": "alpha", "managed": false}}}
	c := newTestClient(t, backend.handler(), func(o *Options) { o.DisableRoleCreation = true })

	set, err := c.MatchOrCreateRolesFromNames(context.Background(), 1, []string{"alpha", "missing"})
	require.NoError(t, err)

	assert.Equal(t, 0, backend.createHits)
	assert.Equal(t, []uint64{1}, set.IDs())
}
