// Package discord é o adapter HTTP do bridge: o cliente da API remota.
//
// Visão geral (camadas):
//
//   - domain: tipos de valor (Role, RoleSet, GuildMember) e contratos, sem net/http
//   - application: casos de uso (gate do rate limit, reconciliação, retry) sem net/http
//   - infra: implementações concretas (Redis/memória), detalhes de infraestrutura
//   - discord (este pacote): requisições HTTP + headers/auth + caches + tradução de status
//
// Fluxo de uma reconciliação:
//
//  1. Um gatilho externo (mudança de grupo, varredura) chama a application
//  2. A reconciliação pede roles atuais e calculadas ao cliente
//  3. Cada requisição passa pelo Gate (limite compartilhado via Redis)
//  4. O resultado volta para o registro local (colaborador externo)
package discord
