package upstream

import (
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func serve(h http.Handler) int {
	w := httptest.NewRecorder()
	h.ServeHTTP(w, httptest.NewRequest(http.MethodGet, "http://example/", nil))
	return w.Code
}

func TestConcurrencyMiddleware_RejectsWhileSlotIsHeld(t *testing.T) {
	hold := make(chan struct{})
	entered := make(chan struct{}, 1)

	// handler que segura a vaga até liberarmos.
	next := http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		entered <- struct{}{}
		<-hold
		w.WriteHeader(http.StatusOK)
	})

	h := ConcurrencyMiddleware(ConcurrencyOptions{
		Max:            1,
		AcquireTimeout: 25 * time.Millisecond,
	})(next)

	first := make(chan int, 1)
	go func() { first <- serve(h) }()

	select {
	case <-entered:
	case <-time.After(time.Second):
		close(hold)
		t.Fatalf("timeout waiting first request to start")
	}

	// a vaga está ocupada: a segunda estoura o AcquireTimeout
	assert.Equal(t, http.StatusServiceUnavailable, serve(h))

	close(hold)
	require.Equal(t, http.StatusOK, <-first)

	// vaga devolvida: uma nova requisição passa
	assert.Equal(t, http.StatusOK, serve(h))
}

func TestConcurrencyMiddleware_DisabledWhenMaxIsZero(t *testing.T) {
	next := http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusTeapot)
	})

	h := ConcurrencyMiddleware(ConcurrencyOptions{})(next)
	assert.Equal(t, http.StatusTeapot, serve(h))
}
