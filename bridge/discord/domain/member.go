package domain

// NickMaxLen é o limite imposto pela API remota para apelidos de membro.
const NickMaxLen = 32

// SanitizeNick trunca o apelido para o limite aceito pela API.
func SanitizeNick(nick string) string {
	r := []rune(nick)
	if len(r) > NickMaxLen {
		return string(r[:NickMaxLen])
	}
	return nick
}

// User é o usuário remoto como devolvido pela API.
type User struct {
	ID            uint64
	Username      string
	Discriminator string
}

// GuildMember é a associação de um usuário a uma guild: os IDs de role
// atribuídos e, opcionalmente, apelido e dados do usuário.
type GuildMember struct {
	Roles []uint64
	Nick  string
	User  *User
}

// NewGuildMember constrói um membro com o apelido já truncado.
func NewGuildMember(roles []uint64, nick string, user *User) GuildMember {
	return GuildMember{Roles: roles, Nick: SanitizeNick(nick), User: user}
}

// Guild descreve o servidor remoto.
type Guild struct {
	ID    uint64
	Name  string
	Roles RoleSet
}

// MemberPatch é o corpo parcial de uma modificação de membro.
// Campos nil não são enviados.
type MemberPatch struct {
	Roles []uint64
	Nick  *string
}
