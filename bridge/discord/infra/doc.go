// Package infra contém implementações concretas (infraestrutura) para os
// contratos definidos no pacote domain.
//
// Exemplos:
//   - RedisCounterStore: contadores compartilhados entre processos, com
//     scripts Lua para manter as primitivas atômicas em uma ida só
//   - MemoryCounterStore: a mesma semântica em memória, para testes e
//     deployments de processo único
//   - ChanPool: semáforo simples para limitar reconciliações concorrentes
package infra
