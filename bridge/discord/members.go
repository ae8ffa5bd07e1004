package discord

import (
	"context"
	"net/http"

	"discord-bridge/bridge/discord/domain"
)

type userJSON struct {
	ID            string `json:"id"`
	Username      string `json:"username"`
	Discriminator string `json:"discriminator"`
}

func (u userJSON) toDomain() (domain.User, error) {
	id, err := parseID(u.ID)
	if err != nil {
		return domain.User{}, err
	}
	return domain.User{ID: id, Username: u.Username, Discriminator: u.Discriminator}, nil
}

type memberJSON struct {
	Roles []string  `json:"roles"`
	Nick  string    `json:"nick"`
	User  *userJSON `json:"user"`
}

func (m memberJSON) toDomain() (domain.GuildMember, error) {
	roles := make([]uint64, 0, len(m.Roles))
	for _, raw := range m.Roles {
		id, err := parseID(raw)
		if err != nil {
			return domain.GuildMember{}, err
		}
		roles = append(roles, id)
	}
	var user *domain.User
	if m.User != nil {
		u, err := m.User.toDomain()
		if err != nil {
			return domain.GuildMember{}, err
		}
		user = &u
	}
	return domain.NewGuildMember(roles, m.Nick, user), nil
}

// CurrentUser identifica o usuário dono do token OAuth (variante Bearer).
func (c *Client) CurrentUser(ctx context.Context, bearerToken string) (domain.User, error) {
	res, err := c.do(ctx, reqSpec{
		op:     "get current user",
		method: http.MethodGet,
		route:  "users/@me",
		bearer: bearerToken,
	})
	if err != nil {
		return domain.User{}, err
	}
	if err := raiseFor(res); err != nil {
		return domain.User{}, err
	}

	var u userJSON
	if err := unmarshalBody(res, &u); err != nil {
		return domain.User{}, err
	}
	return u.toDomain()
}

func patchBody(patch domain.MemberPatch) map[string]any {
	body := make(map[string]any, 2)
	if patch.Roles != nil {
		ids := make([]string, 0, len(patch.Roles))
		for _, id := range patch.Roles {
			ids = append(ids, formatID(id))
		}
		body["roles"] = ids
	}
	if patch.Nick != nil {
		body["nick"] = domain.SanitizeNick(*patch.Nick)
	}
	return body
}

// AddGuildMember coloca o usuário na guild usando o access token OAuth dele.
// 201 = entrou agora, 204 = já era membro; os dois contam como sucesso.
func (c *Client) AddGuildMember(ctx context.Context, guildID, userID uint64, accessToken string, patch domain.MemberPatch) (domain.MemberOutcome, error) {
	body := patchBody(patch)
	body["access_token"] = accessToken

	res, err := c.do(ctx, reqSpec{
		op:     "add guild member",
		method: http.MethodPut,
		route:  "guilds/" + formatID(guildID) + "/members/" + formatID(userID),
		body:   body,
	})
	if err != nil {
		return domain.OutcomeFailed, err
	}
	return memberOutcome(res)
}

// GuildMember busca o membro. 404 com código 10007 significa "não é membro"
// — condição esperada em regime, não erro.
func (c *Client) GuildMember(ctx context.Context, guildID, userID uint64) (*domain.GuildMember, domain.MemberOutcome, error) {
	res, err := c.do(ctx, reqSpec{
		op:     "get guild member",
		method: http.MethodGet,
		route:  "guilds/" + formatID(guildID) + "/members/" + formatID(userID),
	})
	if err != nil {
		return nil, domain.OutcomeFailed, err
	}
	outcome, err := memberOutcome(res)
	if outcome != domain.OutcomeOK {
		return nil, outcome, err
	}

	var mj memberJSON
	if err := unmarshalBody(res, &mj); err != nil {
		return nil, domain.OutcomeFailed, err
	}
	member, err := mj.toDomain()
	if err != nil {
		return nil, domain.OutcomeFailed, err
	}
	return &member, domain.OutcomeOK, nil
}

// ModifyGuildMember aplica um patch parcial (roles e/ou nick) ao membro.
func (c *Client) ModifyGuildMember(ctx context.Context, guildID, userID uint64, patch domain.MemberPatch) (domain.MemberOutcome, error) {
	res, err := c.do(ctx, reqSpec{
		op:     "modify guild member",
		method: http.MethodPatch,
		route:  "guilds/" + formatID(guildID) + "/members/" + formatID(userID),
		body:   patchBody(patch),
	})
	if err != nil {
		return domain.OutcomeFailed, err
	}
	return memberOutcome(res)
}

// RemoveGuildMember expulsa o membro da guild.
func (c *Client) RemoveGuildMember(ctx context.Context, guildID, userID uint64) (domain.MemberOutcome, error) {
	res, err := c.do(ctx, reqSpec{
		op:     "remove guild member",
		method: http.MethodDelete,
		route:  "guilds/" + formatID(guildID) + "/members/" + formatID(userID),
	})
	if err != nil {
		return domain.OutcomeFailed, err
	}
	return memberOutcome(res)
}

// AddGuildMemberRole atribui uma role ao membro.
func (c *Client) AddGuildMemberRole(ctx context.Context, guildID, userID, roleID uint64) (domain.MemberOutcome, error) {
	res, err := c.do(ctx, reqSpec{
		op:     "add guild member role",
		method: http.MethodPut,
		route:  "guilds/" + formatID(guildID) + "/members/" + formatID(userID) + "/roles/" + formatID(roleID),
	})
	if err != nil {
		return domain.OutcomeFailed, err
	}
	return memberOutcome(res)
}

// RemoveGuildMemberRole retira uma role do membro.
func (c *Client) RemoveGuildMemberRole(ctx context.Context, guildID, userID, roleID uint64) (domain.MemberOutcome, error) {
	res, err := c.do(ctx, reqSpec{
		op:     "remove guild member role",
		method: http.MethodDelete,
		route:  "guilds/" + formatID(guildID) + "/members/" + formatID(userID) + "/roles/" + formatID(roleID),
	})
	if err != nil {
		return domain.OutcomeFailed, err
	}
	return memberOutcome(res)
}

// GuildMemberRoles devolve as roles do membro como RoleSet, resolvendo os
// IDs contra o snapshot cacheado de roles da guild.
//
// Se o membro tem IDs que o snapshot não conhece, fura o cache uma vez antes
// de concluir que são realmente desconhecidos; cache velho é tolerado, não é
// erro. IDs ainda desconhecidos após o refetch são descartados com warning.
func (c *Client) GuildMemberRoles(ctx context.Context, guildID, userID uint64) (domain.RoleSet, domain.MemberOutcome, error) {
	member, outcome, err := c.GuildMember(ctx, guildID, userID)
	if outcome != domain.OutcomeOK {
		return domain.RoleSet{}, outcome, err
	}

	guildRoles, err := c.GuildRoles(ctx, guildID, true)
	if err != nil {
		return domain.RoleSet{}, domain.OutcomeFailed, err
	}

	if !guildRoles.HasRoles(member.Roles...) {
		guildRoles, err = c.GuildRoles(ctx, guildID, false)
		if err != nil {
			return domain.RoleSet{}, domain.OutcomeFailed, err
		}
		if !guildRoles.HasRoles(member.Roles...) {
			var unknown []uint64
			for _, id := range member.Roles {
				if !guildRoles.HasRoles(id) {
					unknown = append(unknown, id)
				}
			}
			c.log.Warn("member carries role ids unknown to the guild, dropping them",
				"guild_id", guildID, "user_id", userID, "unknown_ids", unknown)
		}
	}

	return guildRoles.Subset(domain.RoleFilter{IDs: member.Roles}), domain.OutcomeOK, nil
}
