package domain

import (
	"context"
	"time"
)

// PacingEvent descreve uma chamada concluída por um limiter: quanto ela
// esperou em cada eixo (cadência, tokens, requests) e o intervalo vigente
// depois de aplicar a telemetria.
//
// Observação: cuidado com cardinalidade do campo Limiter ao persistir
// (ex.: um limiter por API key pode explodir o número de chaves no Redis).
type PacingEvent struct {
	Limiter string
	Cost    int

	PacingWait  time.Duration
	TokenWait   time.Duration
	RequestWait time.Duration

	Interval time.Duration
	Failed   bool

	At time.Time
}

// TotalWait soma as três esperas.
func (ev PacingEvent) TotalWait() time.Duration {
	return ev.PacingWait + ev.TokenWait + ev.RequestWait
}

// StatsStore é a estratégia de persistência para estatísticas de pacing.
//
// Implementações podem armazenar em Redis, Prometheus, memória, etc.
// O limiter trata erro como best-effort (nunca derruba a chamada).
type StatsStore interface {
	Record(ctx context.Context, ev PacingEvent) error
}
