package application

import (
	"context"
	"fmt"
	"sync"
	"time"

	"openai-ratelimiter/middleware/ratelimit/domain"

	"github.com/jonboulle/clockwork"
	"github.com/rs/zerolog"
	"golang.org/x/time/rate"
)

// Pacer é o modelo de pacing adaptativo de um limiter.
//
// Cada chamada passa por três esperas independentes, nesta ordem:
// cadência (intervalo mínimo entre emissões), cota de tokens e cota de
// requests. Depois da chamada, a telemetria do resultado ajusta o estado.
//
// Um Pacer é seguro para uso concorrente. Cada chamada segura a vez da
// instância (turn) da primeira espera até aplicar a telemetria da resposta,
// então a próxima admissão sempre enxerga a cota informada pela anterior.
type Pacer struct {
	name  string
	conc  ConcurrencyService
	clock clockwork.Clock
	stats []domain.StatsStore
	log   zerolog.Logger
	warn  *rate.Sometimes

	turn chan struct{}

	mu        sync.Mutex
	interval  time.Duration
	lastIssue time.Time
	tokens    *domain.Quota
	requests  *domain.Quota
}

type Option func(*Pacer)

func WithName(name string) Option {
	return func(p *Pacer) { p.name = name }
}

// WithClock troca a fonte de tempo (e de espera). Útil em testes com
// clockwork.NewFakeClock().
func WithClock(c clockwork.Clock) Option {
	return func(p *Pacer) {
		if c != nil {
			p.clock = c
		}
	}
}

func WithLogger(l zerolog.Logger) Option {
	return func(p *Pacer) { p.log = l }
}

func WithStats(stores ...domain.StatsStore) Option {
	return func(p *Pacer) {
		for _, s := range stores {
			if s != nil {
				p.stats = append(p.stats, s)
			}
		}
	}
}

func WithInitialInterval(d time.Duration) Option {
	return func(p *Pacer) {
		if d > 0 {
			p.interval = d
		}
	}
}

// WithAcquireTimeout limita quanto tempo a chamada espera por uma vaga no gate.
// O padrão (0) espera indefinidamente.
func WithAcquireTimeout(d time.Duration) Option {
	return func(p *Pacer) { p.conc.AcquireTimeout = d }
}

// NewPacer cria um limiter que usa o gate compartilhado informado.
// gate nil desliga o limite de concorrência.
func NewPacer(gate domain.AdmissionGate, opts ...Option) *Pacer {
	p := &Pacer{
		name:     "default",
		conc:     ConcurrencyService{Gate: gate},
		clock:    clockwork.NewRealClock(),
		log:      zerolog.Nop(),
		warn:     &rate.Sometimes{Interval: 10 * time.Second},
		turn:     make(chan struct{}, 1),
		interval: domain.DefaultInterval,
	}
	for _, opt := range opts {
		opt(p)
	}
	return p
}

func (p *Pacer) Name() string { return p.name }

// State devolve uma cópia do estado atual.
func (p *Pacer) State() domain.State {
	p.mu.Lock()
	defer p.mu.Unlock()

	st := domain.State{Interval: p.interval, LastIssue: p.lastIssue}
	if p.tokens != nil {
		q := *p.tokens
		st.Tokens = &q
	}
	if p.requests != nil {
		q := *p.requests
		st.Requests = &q
	}
	return st
}

// Call adquire uma vaga no gate, aplica as esperas do pacer, executa work e
// atualiza o estado a partir da telemetria do resultado (quando R implementa
// domain.TelemetryProvider).
//
// Erros de work são devolvidos sem alteração e não atualizam o estado.
// Com ctx cancelado antes de work começar, retorna um erro que embrulha
// domain.ErrWaitCancelled e work não é executado.
func Call[R any](ctx context.Context, p *Pacer, estimatedCost int, work func(context.Context) (R, error)) (R, error) {
	var zero R
	if estimatedCost < 0 {
		estimatedCost = 0
	}

	// vez do limiter antes da vaga no gate: a fila de um limiter não segura
	// vagas dos outros.
	select {
	case p.turn <- struct{}{}:
	case <-ctx.Done():
		return zero, cancelled(ctx)
	}
	defer func() { <-p.turn }()

	release, ok := p.conc.Acquire(ctx)
	if !ok {
		return zero, cancelled(ctx)
	}
	defer release()

	w, err := p.admit(ctx, estimatedCost)
	if err != nil {
		return zero, err
	}

	res, err := work(ctx)
	if err != nil {
		p.record(ctx, estimatedCost, w, true)
		return res, err
	}

	if tp, ok := any(res).(domain.TelemetryProvider); ok {
		p.update(tp.RateLimitTelemetry())
	}
	p.record(ctx, estimatedCost, w, false)
	return res, nil
}

type waits struct {
	pacing   time.Duration
	tokens   time.Duration
	requests time.Duration
}

// admit executa as esperas de cadência, tokens e requests e registra o
// instante de emissão. Chamado com a vez (turn) já adquirida.
func (p *Pacer) admit(ctx context.Context, cost int) (waits, error) {
	var w waits

	now := p.clock.Now()
	p.mu.Lock()
	w.pacing = p.lastIssue.Add(p.interval).Sub(now)
	p.mu.Unlock()
	if err := p.sleep(ctx, w.pacing); err != nil {
		return w, err
	}

	now = p.clock.Now()
	p.mu.Lock()
	if p.tokens != nil && p.tokens.Remaining < cost {
		w.tokens = p.tokens.ResetAt.Sub(now)
	}
	p.mu.Unlock()
	if err := p.sleep(ctx, w.tokens); err != nil {
		return w, err
	}

	now = p.clock.Now()
	p.mu.Lock()
	if p.requests != nil && p.requests.Remaining <= 0 {
		w.requests = p.requests.ResetAt.Sub(now)
	}
	p.mu.Unlock()
	if err := p.sleep(ctx, w.requests); err != nil {
		return w, err
	}

	issued := p.clock.Now()
	p.mu.Lock()
	// lastIssue nunca volta no tempo.
	if issued.After(p.lastIssue) {
		p.lastIssue = issued
	}
	p.mu.Unlock()

	w.pacing = max(w.pacing, 0)
	w.tokens = max(w.tokens, 0)
	w.requests = max(w.requests, 0)

	if w.pacing+w.tokens+w.requests > 0 {
		p.log.Debug().
			Str("limiter", p.name).
			Int("cost", cost).
			Dur("pacing_wait", w.pacing).
			Dur("token_wait", w.tokens).
			Dur("request_wait", w.requests).
			Msg("call delayed")
	}
	return w, nil
}

func (p *Pacer) sleep(ctx context.Context, d time.Duration) error {
	if d <= 0 {
		return nil
	}
	select {
	case <-p.clock.After(d):
		return nil
	case <-ctx.Done():
		return cancelled(ctx)
	}
}

func (p *Pacer) update(t domain.Telemetry) {
	if len(t) == 0 {
		return
	}
	now := p.clock.Now()
	u := parseTelemetry(t, now)

	p.mu.Lock()
	if u.interval > 0 {
		p.interval = u.interval
	}
	if u.tokens != nil {
		p.tokens = u.tokens
	}
	if u.requests != nil {
		p.requests = u.requests
	}
	if u.hasRetryAfter {
		p.lastIssue = now.Add(u.retryAfter)
	}
	p.mu.Unlock()

	if u.hasRetryAfter {
		p.warn.Do(func() {
			p.log.Warn().
				Str("limiter", p.name).
				Dur("retry_after", u.retryAfter).
				Msg("remote asked to back off")
		})
	}
}

func (p *Pacer) record(ctx context.Context, cost int, w waits, failed bool) {
	if len(p.stats) == 0 {
		return
	}

	p.mu.Lock()
	interval := p.interval
	p.mu.Unlock()

	ev := domain.PacingEvent{
		Limiter:     p.name,
		Cost:        cost,
		PacingWait:  w.pacing,
		TokenWait:   w.tokens,
		RequestWait: w.requests,
		Interval:    interval,
		Failed:      failed,
		At:          p.clock.Now(),
	}

	ctx = context.WithoutCancel(ctx)
	for _, s := range p.stats {
		if err := s.Record(ctx, ev); err != nil {
			p.log.Debug().Err(err).Str("limiter", p.name).Msg("stats record failed")
		}
	}
}

func cancelled(ctx context.Context) error {
	err := ctx.Err()
	if err == nil {
		// timeout do próprio gate (AcquireTimeout), ctx do chamador segue vivo
		err = context.DeadlineExceeded
	}
	return fmt.Errorf("%w: %w", domain.ErrWaitCancelled, err)
}
