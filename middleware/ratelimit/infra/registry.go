package infra

import (
	"context"
	"sync"
	"time"

	"github.com/jonboulle/clockwork"
)

// Registry guarda um limiter por chave (ex: modelo, API key, organização),
// com cache e limpeza periódica de chaves inativas.
//
// Todos os limiters criados pela factory devem compartilhar o mesmo Gate;
// o Registry só cuida do ciclo de vida por chave. Uma chave conta como em
// uso a cada Get, então quem usa o limiter deve resolvê-lo por chamada em
// vez de guardar o ponteiro.
type Registry[T any] struct {
	mu           sync.Mutex
	entries      map[string]*registryEntry[T]
	factory      func(key string) T
	clock        clockwork.Clock
	idleTTL      time.Duration
	cleanupEvery time.Duration
}

type registryEntry[T any] struct {
	lim      T
	lastSeen time.Time
}

type RegistryOption func(*registryConfig)

type registryConfig struct {
	idleTTL      time.Duration
	cleanupEvery time.Duration
	clock        clockwork.Clock
}

func WithIdleTTL(d time.Duration) RegistryOption {
	return func(c *registryConfig) { c.idleTTL = d }
}

func WithCleanupEvery(d time.Duration) RegistryOption {
	return func(c *registryConfig) { c.cleanupEvery = d }
}

// WithRegistryClock troca a fonte de tempo de lastSeen e do janitor.
func WithRegistryClock(clock clockwork.Clock) RegistryOption {
	return func(c *registryConfig) {
		if clock != nil {
			c.clock = clock
		}
	}
}

func NewRegistry[T any](factory func(key string) T, opts ...RegistryOption) *Registry[T] {
	cfg := registryConfig{
		idleTTL:      15 * time.Minute,
		cleanupEvery: 2 * time.Minute,
		clock:        clockwork.NewRealClock(),
	}
	for _, opt := range opts {
		opt(&cfg)
	}
	return &Registry[T]{
		entries:      make(map[string]*registryEntry[T]),
		factory:      factory,
		clock:        cfg.clock,
		idleTTL:      cfg.idleTTL,
		cleanupEvery: cfg.cleanupEvery,
	}
}

func (r *Registry[T]) CleanupEvery() time.Duration { return r.cleanupEvery }

// Get devolve o limiter da chave, criando na primeira vez.
func (r *Registry[T]) Get(key string) T {
	now := r.clock.Now()

	r.mu.Lock()
	defer r.mu.Unlock()

	if ent, ok := r.entries[key]; ok {
		ent.lastSeen = now
		return ent.lim
	}

	lim := r.factory(key)
	r.entries[key] = &registryEntry[T]{lim: lim, lastSeen: now}
	return lim
}

func (r *Registry[T]) Len() int {
	r.mu.Lock()
	defer r.mu.Unlock()
	return len(r.entries)
}

// Cleanup descarta chaves sem uso há mais de idleTTL. O estado adaptativo
// delas é perdido; a próxima chamada começa do intervalo padrão.
func (r *Registry[T]) Cleanup() {
	cutoff := r.clock.Now().Add(-r.idleTTL)

	r.mu.Lock()
	defer r.mu.Unlock()

	for k, ent := range r.entries {
		if ent.lastSeen.Before(cutoff) {
			delete(r.entries, k)
		}
	}
}

// StartJanitor roda Cleanup a cada CleanupEvery até ctx encerrar.
func (r *Registry[T]) StartJanitor(ctx context.Context) {
	if r.cleanupEvery <= 0 {
		return
	}

	t := r.clock.NewTicker(r.cleanupEvery)
	go func() {
		defer t.Stop()
		for {
			select {
			case <-ctx.Done():
				return
			case <-t.Chan():
				r.Cleanup()
			}
		}
	}()
}
