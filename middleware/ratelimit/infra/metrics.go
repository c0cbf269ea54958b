package infra

import (
	"context"
	"strconv"

	"openai-ratelimiter/middleware/ratelimit/domain"

	"github.com/prometheus/client_golang/prometheus"
)

// Metrics publica o comportamento do limiter no Prometheus.
// Também implementa domain.StatsStore, então pode ser passado direto para
// application.WithStats.
type Metrics struct {
	CallsTotal   *prometheus.CounterVec
	WaitDuration *prometheus.HistogramVec
	Interval     *prometheus.GaugeVec
	GateInFlight prometheus.Gauge
	GateCapacity prometheus.Gauge
}

var _ domain.StatsStore = (*Metrics)(nil)

func NewMetrics(reg prometheus.Registerer) *Metrics {
	m := &Metrics{
		CallsTotal: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Name: "ratelimiter_calls_total",
				Help: "Total calls completed through the limiter",
			},
			[]string{"limiter", "failed"},
		),
		WaitDuration: prometheus.NewHistogramVec(
			prometheus.HistogramOpts{
				Name:    "ratelimiter_wait_seconds",
				Help:    "Time calls spent waiting before being issued, per reason",
				Buckets: []float64{.005, .01, .05, .1, .25, .5, 1, 2.5, 5, 10, 30, 60},
			},
			[]string{"limiter", "reason"},
		),
		Interval: prometheus.NewGaugeVec(
			prometheus.GaugeOpts{
				Name: "ratelimiter_interval_seconds",
				Help: "Current pacing interval of each limiter",
			},
			[]string{"limiter"},
		),
		GateInFlight: prometheus.NewGauge(
			prometheus.GaugeOpts{
				Name: "ratelimiter_gate_in_flight",
				Help: "Admission gate slots currently held",
			},
		),
		GateCapacity: prometheus.NewGauge(
			prometheus.GaugeOpts{
				Name: "ratelimiter_gate_capacity",
				Help: "Admission gate capacity",
			},
		),
	}

	reg.MustRegister(m.CallsTotal, m.WaitDuration, m.Interval, m.GateInFlight, m.GateCapacity)
	return m
}

// GateOptions liga os gauges do gate a estas métricas.
func (m *Metrics) GateOptions() []GateOption {
	return []GateOption{WithInFlightGauge(m.GateInFlight)}
}

// ObserveGate publica a capacidade do gate.
func (m *Metrics) ObserveGate(g *Gate) {
	m.GateCapacity.Set(float64(g.Capacity()))
}

func (m *Metrics) Record(_ context.Context, ev domain.PacingEvent) error {
	m.CallsTotal.WithLabelValues(ev.Limiter, strconv.FormatBool(ev.Failed)).Inc()
	m.WaitDuration.WithLabelValues(ev.Limiter, "pacing").Observe(ev.PacingWait.Seconds())
	m.WaitDuration.WithLabelValues(ev.Limiter, "tokens").Observe(ev.TokenWait.Seconds())
	m.WaitDuration.WithLabelValues(ev.Limiter, "requests").Observe(ev.RequestWait.Seconds())
	m.Interval.WithLabelValues(ev.Limiter).Set(ev.Interval.Seconds())
	return nil
}
