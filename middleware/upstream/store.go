package upstream

import (
	"context"
	"sync"
	"time"

	"golang.org/x/time/rate"
)

// Store é o limite do lado do servidor falso: token-bucket (x/time/rate)
// por chave, um para requests por minuto e, opcionalmente, outro para tokens
// por minuto. Tem cache por chave e limpeza periódica.
type Store struct {
	mu           sync.Mutex
	entries      map[string]*storeEntry
	rpm          int
	burst        int
	tpm          int
	tokenBurst   int
	idleTTL      time.Duration
	cleanupEvery time.Duration
}

// Bucket agrupa os limiters de uma chave. Tokens é nil quando o Store não
// limita tokens.
type Bucket struct {
	Requests *rate.Limiter
	Tokens   *rate.Limiter
}

type storeEntry struct {
	bucket   *Bucket
	lastSeen time.Time
}

type StoreOption func(*Store)

func WithIdleTTL(d time.Duration) StoreOption {
	return func(s *Store) { s.idleTTL = d }
}

func WithCleanupEvery(d time.Duration) StoreOption {
	return func(s *Store) { s.cleanupEvery = d }
}

// WithTokensPerMinute liga o limite de tokens. burst <= 0 usa tpm.
func WithTokensPerMinute(tpm, burst int) StoreOption {
	return func(s *Store) {
		s.tpm = tpm
		s.tokenBurst = burst
		if s.tokenBurst <= 0 {
			s.tokenBurst = tpm
		}
	}
}

// NewStore cria o store com `rpm` requests por minuto e rajada `burst`.
func NewStore(rpm, burst int, opts ...StoreOption) *Store {
	s := &Store{
		entries:      make(map[string]*storeEntry),
		rpm:          rpm,
		burst:        burst,
		idleTTL:      15 * time.Minute,
		cleanupEvery: 2 * time.Minute,
	}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

func (s *Store) RPM() int                    { return s.rpm }
func (s *Store) Burst() int                  { return s.burst }
func (s *Store) TPM() int                    { return s.tpm }
func (s *Store) CleanupEvery() time.Duration { return s.cleanupEvery }

func perMinute(n int) rate.Limit {
	return rate.Limit(float64(n) / 60)
}

// Get devolve o bucket da chave, criando na primeira vez.
func (s *Store) Get(key string) *Bucket {
	now := time.Now()

	s.mu.Lock()
	defer s.mu.Unlock()

	if ent, ok := s.entries[key]; ok {
		ent.lastSeen = now
		return ent.bucket
	}

	b := &Bucket{Requests: rate.NewLimiter(perMinute(s.rpm), s.burst)}
	if s.tpm > 0 {
		b.Tokens = rate.NewLimiter(perMinute(s.tpm), s.tokenBurst)
	}
	s.entries[key] = &storeEntry{bucket: b, lastSeen: now}
	return b
}

func (s *Store) Cleanup() {
	cutoff := time.Now().Add(-s.idleTTL)

	s.mu.Lock()
	defer s.mu.Unlock()

	for k, ent := range s.entries {
		if ent.lastSeen.Before(cutoff) {
			delete(s.entries, k)
		}
	}
}

// StartJanitor descarta buckets ociosos a cada CleanupEvery até ctx encerrar.
func (s *Store) StartJanitor(ctx context.Context) {
	if s.cleanupEvery <= 0 {
		return
	}

	t := time.NewTicker(s.cleanupEvery)
	go func() {
		defer t.Stop()
		for {
			select {
			case <-ctx.Done():
				return
			case <-t.C:
				s.Cleanup()
			}
		}
	}()
}
