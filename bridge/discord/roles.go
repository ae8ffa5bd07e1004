package discord

import (
	"context"
	"net/http"
	"time"

	"discord-bridge/bridge/discord/domain"
)

type roleJSON struct {
	ID      string `json:"id"`
	Name    string `json:"name"`
	Managed bool   `json:"managed"`
}

func (r roleJSON) toDomain() (domain.Role, error) {
	id, err := parseID(r.ID)
	if err != nil {
		return domain.Role{}, err
	}
	return domain.NewRole(id, r.Name, r.Managed), nil
}

func rolesToSet(rs []roleJSON) (domain.RoleSet, error) {
	out := make([]domain.Role, 0, len(rs))
	for _, rj := range rs {
		r, err := rj.toDomain()
		if err != nil {
			return domain.RoleSet{}, err
		}
		out = append(out, r)
	}
	return domain.NewRoleSet(out...), nil
}

type guildJSON struct {
	ID    string     `json:"id"`
	Name  string     `json:"name"`
	Roles []roleJSON `json:"roles"`
}

// GuildInfos busca os dados da guild (sem cache).
func (c *Client) GuildInfos(ctx context.Context, guildID uint64) (domain.Guild, error) {
	res, err := c.do(ctx, reqSpec{
		op:     "get guild",
		method: http.MethodGet,
		route:  "guilds/" + formatID(guildID),
	})
	if err != nil {
		return domain.Guild{}, err
	}
	if err := raiseFor(res); err != nil {
		return domain.Guild{}, err
	}

	var g guildJSON
	if err := unmarshalBody(res, &g); err != nil {
		return domain.Guild{}, err
	}
	id, err := parseID(g.ID)
	if err != nil {
		return domain.Guild{}, err
	}
	roles, err := rolesToSet(g.Roles)
	if err != nil {
		return domain.Guild{}, err
	}
	return domain.Guild{ID: id, Name: g.Name, Roles: roles}, nil
}

// GuildName devolve o nome da guild, com cache de 24h.
//
// Qualquer erro vira string vazia de propósito: o nome é dado de exibição e
// não pode travar fluxo nenhum. Erros Backoff também são absorvidos aqui.
func (c *Client) GuildName(ctx context.Context, guildID uint64, useCache bool) string {
	if useCache {
		c.mu.Lock()
		ent, ok := c.nameCache[guildID]
		c.mu.Unlock()
		if ok && ent.expiresAt.After(time.Now()) {
			return ent.name
		}
	}

	g, err := c.GuildInfos(ctx, guildID)
	if err != nil {
		c.log.Warn("guild name lookup failed, degrading to empty", "guild_id", guildID, "err", err)
		return ""
	}

	c.mu.Lock()
	c.nameCache[guildID] = nameEntry{name: g.Name, expiresAt: time.Now().Add(c.nameTTL)}
	c.mu.Unlock()
	return g.Name
}

// GuildRoles devolve o conjunto de roles da guild, com cache de 1h.
// O cache é invalidado explicitamente em create/delete de role.
func (c *Client) GuildRoles(ctx context.Context, guildID uint64, useCache bool) (domain.RoleSet, error) {
	if useCache {
		c.mu.Lock()
		ent, ok := c.rolesCache[guildID]
		c.mu.Unlock()
		if ok && ent.expiresAt.After(time.Now()) {
			return ent.set, nil
		}
	}

	res, err := c.do(ctx, reqSpec{
		op:     "get guild roles",
		method: http.MethodGet,
		route:  "guilds/" + formatID(guildID) + "/roles",
	})
	if err != nil {
		return domain.RoleSet{}, err
	}
	if err := raiseFor(res); err != nil {
		return domain.RoleSet{}, err
	}

	var rs []roleJSON
	if err := unmarshalBody(res, &rs); err != nil {
		return domain.RoleSet{}, err
	}
	set, err := rolesToSet(rs)
	if err != nil {
		return domain.RoleSet{}, err
	}

	c.mu.Lock()
	c.rolesCache[guildID] = rolesEntry{set: set, expiresAt: time.Now().Add(c.rolesTTL)}
	c.mu.Unlock()
	return set, nil
}

func (c *Client) invalidateRoles(guildID uint64) {
	c.mu.Lock()
	delete(c.rolesCache, guildID)
	c.mu.Unlock()
}

// CreateGuildRole cria uma role com o nome (sanitizado) dado e invalida o
// cache de roles. Devolve nil quando a criação está desabilitada por
// configuração.
func (c *Client) CreateGuildRole(ctx context.Context, guildID uint64, name string) (*domain.Role, error) {
	if c.disableRoleCreation {
		c.log.Warn("role creation disabled by configuration", "guild_id", guildID, "name", name)
		return nil, nil
	}

	res, err := c.do(ctx, reqSpec{
		op:     "create guild role",
		method: http.MethodPost,
		route:  "guilds/" + formatID(guildID) + "/roles",
		body:   map[string]string{"name": domain.SanitizeRoleName(name)},
	})
	if err != nil {
		return nil, err
	}
	if err := raiseFor(res); err != nil {
		return nil, err
	}

	var rj roleJSON
	if err := unmarshalBody(res, &rj); err != nil {
		return nil, err
	}
	role, err := rj.toDomain()
	if err != nil {
		return nil, err
	}

	c.invalidateRoles(guildID)
	c.log.Info("guild role created", "guild_id", guildID, "role_id", role.ID, "name", role.Name)
	return &role, nil
}

// DeleteGuildRole remove a role. Sucesso é exatamente o 204; qualquer outro
// status responde false sem erro (erros de transporte e Backoff propagam).
func (c *Client) DeleteGuildRole(ctx context.Context, guildID, roleID uint64) (bool, error) {
	res, err := c.do(ctx, reqSpec{
		op:     "delete guild role",
		method: http.MethodDelete,
		route:  "guilds/" + formatID(guildID) + "/roles/" + formatID(roleID),
	})
	if err != nil {
		return false, err
	}
	if res.status != http.StatusNoContent {
		c.log.Warn("role deletion refused", "guild_id", guildID, "role_id", roleID, "status", res.status)
		return false, nil
	}

	c.invalidateRoles(guildID)
	return true, nil
}

// MatchRoleFromName procura a role pelo nome exato (case-sensitive, após
// sanitização) no snapshot cacheado de roles da guild.
func (c *Client) MatchRoleFromName(ctx context.Context, guildID uint64, name string) (domain.Role, bool, error) {
	roles, err := c.GuildRoles(ctx, guildID, true)
	if err != nil {
		return domain.Role{}, false, err
	}
	r, ok := roles.RoleByName(name)
	return r, ok, nil
}

// MatchOrCreateRoleFromName procura a role pelo nome e cria na ausência.
// ok=false só acontece com a criação desabilitada.
func (c *Client) MatchOrCreateRoleFromName(ctx context.Context, guildID uint64, name string) (domain.Role, bool, error) {
	r, ok, err := c.MatchRoleFromName(ctx, guildID, name)
	if err != nil || ok {
		return r, ok, err
	}
	created, err := c.CreateGuildRole(ctx, guildID, name)
	if err != nil || created == nil {
		return domain.Role{}, false, err
	}
	return *created, true, nil
}

// MatchOrCreateRolesFromNames resolve um lote de nomes em roles, criando as
// ausentes. Roles recém-criadas entram no conjunto de trabalho em memória
// antes dos lookups seguintes, para que nomes repetidos no mesmo lote nunca
// gerem roles duplicadas.
func (c *Client) MatchOrCreateRolesFromNames(ctx context.Context, guildID uint64, names []string) (domain.RoleSet, error) {
	working, err := c.GuildRoles(ctx, guildID, true)
	if err != nil {
		return domain.RoleSet{}, err
	}

	var matched []domain.Role
	for _, name := range names {
		name = domain.SanitizeRoleName(name)
		if r, ok := working.RoleByName(name); ok {
			matched = append(matched, r)
			continue
		}
		created, err := c.CreateGuildRole(ctx, guildID, name)
		if err != nil {
			return domain.RoleSet{}, err
		}
		if created == nil {
			// criação desabilitada; segue sem esse nome
			continue
		}
		working = working.Union(domain.NewRoleSet(*created))
		matched = append(matched, *created)
	}
	return domain.NewRoleSet(matched...), nil
}
