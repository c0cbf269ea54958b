package infra

import (
	"context"
	"sync"

	"openai-ratelimiter/middleware/ratelimit/domain"

	"github.com/prometheus/client_golang/prometheus"
	"golang.org/x/sync/semaphore"
)

// DefaultCapacity é o número de chamadas simultâneas quando nada for configurado.
const DefaultCapacity = 8

// Gate é o semáforo global de admissão, compartilhado por todos os limiters
// do processo. Crie um em main e injete em cada Pacer.
//
// semaphore.Weighted atende os waiters em ordem FIFO, então ninguém fica
// esperando indefinidamente enquanto a carga for limitada.
type Gate struct {
	sem      *semaphore.Weighted
	capacity int

	inFlight prometheus.Gauge
}

var _ domain.AdmissionGate = (*Gate)(nil)

type GateOption func(*Gate)

// WithInFlightGauge publica o número de vagas ocupadas.
func WithInFlightGauge(g prometheus.Gauge) GateOption {
	return func(gt *Gate) { gt.inFlight = g }
}

// NewGate cria um gate com `capacity` vagas. Valores <= 0 viram DefaultCapacity.
func NewGate(capacity int, opts ...GateOption) *Gate {
	if capacity <= 0 {
		capacity = DefaultCapacity
	}
	g := &Gate{
		sem:      semaphore.NewWeighted(int64(capacity)),
		capacity: capacity,
	}
	for _, opt := range opts {
		opt(g)
	}
	return g
}

// NewGateFromEnv cria o gate com a capacidade de OPENAI_MAX_CONCURRENT_REQUESTS.
func NewGateFromEnv(opts ...GateOption) *Gate {
	return NewGate(CapacityFromEnv(), opts...)
}

func (g *Gate) Capacity() int { return g.capacity }

// Acquire implementa domain.AdmissionGate.
func (g *Gate) Acquire(ctx context.Context) (func(), bool) {
	if err := g.sem.Acquire(ctx, 1); err != nil {
		return nil, false
	}
	if g.inFlight != nil {
		g.inFlight.Inc()
	}

	var once sync.Once
	return func() {
		once.Do(func() {
			if g.inFlight != nil {
				g.inFlight.Dec()
			}
			g.sem.Release(1)
		})
	}, true
}
