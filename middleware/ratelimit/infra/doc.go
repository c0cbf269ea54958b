// Package infra contém implementações concretas (infraestrutura) para os contratos
// definidos no pacote domain.
//
// Exemplos:
//   - Gate: semáforo global de admissão (golang.org/x/sync/semaphore)
//   - Registry: um limiter por chave, com limpeza de chaves inativas
//   - MemoryStatsStore / RedisStatsStore / Metrics: destinos de domain.PacingEvent
package infra
