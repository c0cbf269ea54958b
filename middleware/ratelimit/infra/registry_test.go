package infra

import (
	"context"
	"testing"
	"time"

	"openai-ratelimiter/middleware/ratelimit/application"

	"github.com/jonboulle/clockwork"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func newPacerRegistry(opts ...RegistryOption) *Registry[*application.Pacer] {
	gate := NewGate(2)
	return NewRegistry(func(key string) *application.Pacer {
		return application.NewPacer(gate, application.WithName(key))
	}, opts...)
}

func TestRegistry_GetSameKeyReturnsSameLimiter(t *testing.T) {
	r := newPacerRegistry()

	l1 := r.Get("gpt-4o")
	l2 := r.Get("gpt-4o")
	require.Same(t, l1, l2, "expected same limiter pointer for same key")
	assert.Equal(t, "gpt-4o", l1.Name())
}

func TestRegistry_DifferentKeysGetDifferentLimiters(t *testing.T) {
	r := newPacerRegistry()

	assert.NotSame(t, r.Get("a"), r.Get("b"))
	assert.Equal(t, 2, r.Len())
}

func TestRegistry_CleanupRemovesIdleEntries(t *testing.T) {
	fc := clockwork.NewFakeClock()
	r := newPacerRegistry(WithIdleTTL(time.Minute), WithCleanupEvery(0), WithRegistryClock(fc))

	before := r.Get("k")
	fc.Advance(2 * time.Minute)

	r.Cleanup()
	assert.Equal(t, 0, r.Len())

	after := r.Get("k")
	assert.NotSame(t, before, after, "expected limiter to be recreated after cleanup")
}

// Um limiter resolvido a cada uso continua o mesmo mesmo depois de passar
// do idleTTL contado desde a criação.
func TestRegistry_GetKeepsEntryInUse(t *testing.T) {
	fc := clockwork.NewFakeClock()
	r := newPacerRegistry(WithIdleTTL(15*time.Minute), WithRegistryClock(fc))

	p := r.Get("gpt-4o")
	for i := 0; i < 4; i++ {
		fc.Advance(10 * time.Minute)
		require.Same(t, p, r.Get("gpt-4o"))
		r.Cleanup()
	}

	assert.Equal(t, 1, r.Len())
	assert.Same(t, p, r.Get("gpt-4o"))
}

func TestRegistry_JanitorEvictsIdleEntries(t *testing.T) {
	fc := clockwork.NewFakeClock()
	r := newPacerRegistry(
		WithIdleTTL(time.Minute),
		WithCleanupEvery(2*time.Minute),
		WithRegistryClock(fc),
	)
	r.Get("k")

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	r.StartJanitor(ctx)

	fc.Advance(2 * time.Minute)
	assert.Eventually(t, func() bool { return r.Len() == 0 }, time.Second, 5*time.Millisecond)
}
