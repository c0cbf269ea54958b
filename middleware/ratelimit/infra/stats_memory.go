package infra

import (
	"context"
	"sync"
	"time"

	"openai-ratelimiter/middleware/ratelimit/domain"
)

type Counters struct {
	Calls   int64
	Failed  int64
	Delayed int64

	PacingWait  time.Duration
	TokenWait   time.Duration
	RequestWait time.Duration
}

func (c *Counters) add(ev domain.PacingEvent) {
	c.Calls++
	if ev.Failed {
		c.Failed++
	}
	if ev.TotalWait() > 0 {
		c.Delayed++
	}
	c.PacingWait += ev.PacingWait
	c.TokenWait += ev.TokenWait
	c.RequestWait += ev.RequestWait
}

// MemoryStatsStore é uma implementação simples em memória.
// Útil para testes e desenvolvimento.
//
// Não faz expiração e não é indicada para produção.
type MemoryStatsStore struct {
	mu        sync.Mutex
	total     Counters
	byLimiter map[string]Counters

	trackLimiters bool
}

type MemoryStatsOption func(*MemoryStatsStore)

func WithTrackLimiters(track bool) MemoryStatsOption {
	return func(s *MemoryStatsStore) { s.trackLimiters = track }
}

func NewMemoryStatsStore(opts ...MemoryStatsOption) *MemoryStatsStore {
	s := &MemoryStatsStore{
		byLimiter: make(map[string]Counters),
	}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

func (s *MemoryStatsStore) Record(_ context.Context, ev domain.PacingEvent) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	s.total.add(ev)
	if s.trackLimiters {
		c := s.byLimiter[ev.Limiter]
		c.add(ev)
		s.byLimiter[ev.Limiter] = c
	}
	return nil
}

func (s *MemoryStatsStore) Total() Counters {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.total
}

func (s *MemoryStatsStore) ByLimiter() map[string]Counters {
	s.mu.Lock()
	defer s.mu.Unlock()
	out := make(map[string]Counters, len(s.byLimiter))
	for k, v := range s.byLimiter {
		out[k] = v
	}
	return out
}
