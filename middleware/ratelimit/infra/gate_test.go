package infra

import (
	"context"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"openai-ratelimiter/middleware/ratelimit/application"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestNewGate_NonPositiveCapacityUsesDefault(t *testing.T) {
	assert.Equal(t, DefaultCapacity, NewGate(0).Capacity())
	assert.Equal(t, DefaultCapacity, NewGate(-3).Capacity())
	assert.Equal(t, 2, NewGate(2).Capacity())
}

func TestGate_BlocksWhenFullAndReleases(t *testing.T) {
	g := NewGate(1)

	release, ok := g.Acquire(context.Background())
	require.True(t, ok)

	acquired := make(chan struct{})
	go func() {
		r, ok := g.Acquire(context.Background())
		if ok {
			close(acquired)
			r()
		}
	}()

	select {
	case <-acquired:
		t.Fatalf("second acquire should block while the slot is held")
	case <-time.After(30 * time.Millisecond):
	}

	release()
	// release duplicado não pode devolver uma vaga a mais
	release()

	select {
	case <-acquired:
	case <-time.After(time.Second):
		t.Fatalf("second acquire should proceed after release")
	}
}

func TestGate_AcquireFailsWhenContextEnds(t *testing.T) {
	g := NewGate(1)
	release, ok := g.Acquire(context.Background())
	require.True(t, ok)
	defer release()

	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Millisecond)
	defer cancel()
	_, ok = g.Acquire(ctx)
	assert.False(t, ok)
}

func TestGate_InFlightGauge(t *testing.T) {
	gauge := prometheus.NewGauge(prometheus.GaugeOpts{Name: "test_in_flight"})
	g := NewGate(2, WithInFlightGauge(gauge))

	r1, _ := g.Acquire(context.Background())
	r2, _ := g.Acquire(context.Background())
	assert.Equal(t, float64(2), testutil.ToFloat64(gauge))

	r1()
	r2()
	assert.Equal(t, float64(0), testutil.ToFloat64(gauge))
}

// Vários limiters compartilhando um gate nunca passam da capacidade.
func TestGate_BoundsConcurrencyAcrossPacers(t *testing.T) {
	for _, capacity := range []int{1, 3, 8} {
		g := NewGate(capacity)
		// cada Pacer emite uma chamada por vez; com mais Pacers que vagas
		// quem limita é o gate.
		pacers := make([]*application.Pacer, capacity+2)
		for i := range pacers {
			pacers[i] = application.NewPacer(g, application.WithInitialInterval(time.Nanosecond))
		}

		var (
			current atomic.Int64
			peak    atomic.Int64
			wg      sync.WaitGroup
		)
		work := func(context.Context) (int, error) {
			n := current.Add(1)
			for {
				old := peak.Load()
				if n <= old || peak.CompareAndSwap(old, n) {
					break
				}
			}
			time.Sleep(5 * time.Millisecond)
			current.Add(-1)
			return 0, nil
		}

		for i := 0; i < len(pacers)*4; i++ {
			wg.Add(1)
			go func(p *application.Pacer) {
				defer wg.Done()
				_, err := application.Call(context.Background(), p, 0, work)
				assert.NoError(t, err)
			}(pacers[i%len(pacers)])
		}
		wg.Wait()

		assert.LessOrEqual(t, peak.Load(), int64(capacity), "capacity %d", capacity)
		assert.Equal(t, int64(0), current.Load())
	}
}
