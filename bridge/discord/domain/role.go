package domain

import (
	"sort"
	"strings"
)

// RoleNameMaxLen é o limite de tamanho imposto pela API remota para nomes de role.
const RoleNameMaxLen = 100

// SanitizeRoleName trunca o nome para o limite aceito pela API.
// A normalização acontece uma única vez, na construção dos valores.
func SanitizeRoleName(name string) string {
	r := []rune(name)
	if len(r) > RoleNameMaxLen {
		return string(r[:RoleNameMaxLen])
	}
	return name
}

// Role descreve uma role remota. Identidade e igualdade são pelo ID;
// nomes iguais com caixa diferente são identidades distintas.
//
// Managed indica que a role pertence a outra integração/bot e não pode
// ser removida pela reconciliação automática.
type Role struct {
	ID      uint64
	Name    string
	Managed bool
}

// NewRole constrói uma Role já sanitizada. Depois disso o valor nunca muda.
func NewRole(id uint64, name string, managed bool) Role {
	return Role{ID: id, Name: SanitizeRoleName(name), Managed: managed}
}

// RoleFilter combina os critérios aceitos por RoleSet.Subset.
// Campos zero não filtram nada.
type RoleFilter struct {
	IDs []uint64
	// ManagedOnly mantém apenas roles com Managed=true.
	ManagedOnly bool
	// Names compara de forma case-insensitive contra o nome sanitizado.
	// (RoleByName, diferente daqui, é case-sensitive — ver comentário lá.)
	Names []string
}

// RoleSet é um conjunto imutável de roles indexado por ID, com índice
// secundário por nome (armazenamento case-sensitive).
//
// Os mapas internos nunca são mutados após a construção, então valores
// RoleSet podem ser copiados e compartilhados entre goroutines sem lock.
type RoleSet struct {
	byID   map[uint64]Role
	byName map[string]uint64
}

// NewRoleSet constrói um conjunto a partir das roles dadas, deduplicando
// por ID. Em IDs duplicados a última ocorrência vence.
func NewRoleSet(roles ...Role) RoleSet {
	s := RoleSet{
		byID:   make(map[uint64]Role, len(roles)),
		byName: make(map[string]uint64, len(roles)),
	}
	for _, r := range roles {
		s.byID[r.ID] = r
		s.byName[r.Name] = r.ID
	}
	return s
}

func (s RoleSet) Len() int { return len(s.byID) }

// HasRoles responde se todos os IDs dados estão presentes.
// Entrada vazia responde true.
func (s RoleSet) HasRoles(ids ...uint64) bool {
	for _, id := range ids {
		if _, ok := s.byID[id]; !ok {
			return false
		}
	}
	return true
}

// Role devolve a role de um ID, se presente.
func (s RoleSet) Role(id uint64) (Role, bool) {
	r, ok := s.byID[id]
	return r, ok
}

// RoleByName faz lookup exato (após sanitização) e case-sensitive.
//
// Atenção: Subset com RoleFilter.Names compara case-insensitive. Os dois
// comportamentos são deliberadamente diferentes e não devem ser unificados;
// a reconciliação depende de ambos como estão.
func (s RoleSet) RoleByName(name string) (Role, bool) {
	id, ok := s.byName[SanitizeRoleName(name)]
	if !ok {
		return Role{}, false
	}
	return s.byID[id], true
}

// Subset devolve um novo conjunto com as roles que passam em todos os
// critérios do filtro. Filtro vazio devolve uma cópia equivalente.
func (s RoleSet) Subset(f RoleFilter) RoleSet {
	var wantIDs map[uint64]struct{}
	if f.IDs != nil {
		wantIDs = make(map[uint64]struct{}, len(f.IDs))
		for _, id := range f.IDs {
			wantIDs[id] = struct{}{}
		}
	}
	var wantNames map[string]struct{}
	if f.Names != nil {
		wantNames = make(map[string]struct{}, len(f.Names))
		for _, n := range f.Names {
			wantNames[strings.ToLower(SanitizeRoleName(n))] = struct{}{}
		}
	}

	var out []Role
	for _, r := range s.byID {
		if wantIDs != nil {
			if _, ok := wantIDs[r.ID]; !ok {
				continue
			}
		}
		if f.ManagedOnly && !r.Managed {
			continue
		}
		if wantNames != nil {
			if _, ok := wantNames[strings.ToLower(r.Name)]; !ok {
				continue
			}
		}
		out = append(out, r)
	}
	return NewRoleSet(out...)
}

// Union devolve a união por ID. Em IDs presentes nos dois lados, a role
// do argumento sobrescreve a do receptor (last write wins).
func (s RoleSet) Union(other RoleSet) RoleSet {
	out := make([]Role, 0, len(s.byID)+len(other.byID))
	out = append(out, s.Roles()...)
	out = append(out, other.Roles()...)
	return NewRoleSet(out...)
}

// Difference devolve as roles do receptor cujo ID não está no argumento.
func (s RoleSet) Difference(other RoleSet) RoleSet {
	var out []Role
	for _, r := range s.byID {
		if _, ok := other.byID[r.ID]; !ok {
			out = append(out, r)
		}
	}
	return NewRoleSet(out...)
}

// Equal compara apenas os conjuntos de IDs. Metadados divergentes
// (nome renomeado, flag managed) num mesmo ID não contam como diferença,
// porque IDs são a identidade canônica.
func (s RoleSet) Equal(other RoleSet) bool {
	if len(s.byID) != len(other.byID) {
		return false
	}
	for id := range s.byID {
		if _, ok := other.byID[id]; !ok {
			return false
		}
	}
	return true
}

// IDs devolve os IDs em ordem crescente.
func (s RoleSet) IDs() []uint64 {
	out := make([]uint64, 0, len(s.byID))
	for id := range s.byID {
		out = append(out, id)
	}
	sort.Slice(out, func(i, j int) bool { return out[i] < out[j] })
	return out
}

// Roles devolve as roles em ordem de ID, para iteração determinística.
func (s RoleSet) Roles() []Role {
	out := make([]Role, 0, len(s.byID))
	for _, id := range s.IDs() {
		out = append(out, s.byID[id])
	}
	return out
}

// Names devolve os nomes (como armazenados) em ordem de ID.
func (s RoleSet) Names() []string {
	out := make([]string, 0, len(s.byID))
	for _, r := range s.Roles() {
		out = append(out, r.Name)
	}
	return out
}
