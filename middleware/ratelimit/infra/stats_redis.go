package infra

import (
	"context"
	"fmt"
	"strings"
	"time"

	"openai-ratelimiter/middleware/ratelimit/domain"

	"github.com/redis/go-redis/v9"
)

// RedisStatsStore grava contadores de pacing em hashes do Redis.
//
// Só estatística: o estado de admissão continua em memória, por processo.
type RedisStatsStore struct {
	rdb *redis.Client

	prefix string
	// ttl aplica apenas em chaves de série temporal / por limiter.
	// total é cumulativo e não expira.
	ttl time.Duration

	bucket string // "minute" (padrão) ou "none"

	trackLimiters bool
}

type RedisStatsOption func(*RedisStatsStore)

func WithStatsPrefix(prefix string) RedisStatsOption {
	return func(s *RedisStatsStore) {
		s.prefix = strings.Trim(prefix, ":")
	}
}

func WithStatsTTL(d time.Duration) RedisStatsOption {
	return func(s *RedisStatsStore) { s.ttl = d }
}

func WithStatsBucket(bucket string) RedisStatsOption {
	return func(s *RedisStatsStore) { s.bucket = strings.ToLower(strings.TrimSpace(bucket)) }
}

func WithStatsTrackLimiters(track bool) RedisStatsOption {
	return func(s *RedisStatsStore) { s.trackLimiters = track }
}

func NewRedisStatsStore(rdb *redis.Client, opts ...RedisStatsOption) *RedisStatsStore {
	s := &RedisStatsStore{
		rdb:    rdb,
		prefix: "ratelimit:pacing",
		ttl:    24 * time.Hour,
		bucket: "minute",
	}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

// fields devolve os incrementos do evento. Esperas vão em milissegundos.
func fields(ev domain.PacingEvent) map[string]int64 {
	f := map[string]int64{"calls": 1}
	if ev.Failed {
		f["failed"] = 1
	}
	if ev.TotalWait() > 0 {
		f["delayed"] = 1
	}
	if ev.PacingWait > 0 {
		f["pacing_wait_ms"] = ev.PacingWait.Milliseconds()
	}
	if ev.TokenWait > 0 {
		f["token_wait_ms"] = ev.TokenWait.Milliseconds()
	}
	if ev.RequestWait > 0 {
		f["request_wait_ms"] = ev.RequestWait.Milliseconds()
	}
	return f
}

func (s *RedisStatsStore) Record(ctx context.Context, ev domain.PacingEvent) error {
	if s == nil || s.rdb == nil {
		return nil
	}

	at := ev.At
	if at.IsZero() {
		at = time.Now()
	}

	incr := fields(ev)
	totalKey := s.prefix + ":total"

	pipe := s.rdb.Pipeline()
	for f, n := range incr {
		pipe.HIncrBy(ctx, totalKey, f, n)
	}

	if s.bucket == "minute" {
		bucketKey := fmt.Sprintf("%s:minute:%s", s.prefix, at.UTC().Format("200601021504"))
		for f, n := range incr {
			pipe.HIncrBy(ctx, bucketKey, f, n)
		}
		if s.ttl > 0 {
			pipe.Expire(ctx, bucketKey, s.ttl)
		}
	}

	if s.trackLimiters {
		name := strings.TrimSpace(ev.Limiter)
		if name != "" {
			limiterKey := s.prefix + ":limiter:" + name
			for f, n := range incr {
				pipe.HIncrBy(ctx, limiterKey, f, n)
			}
			pipe.HSet(ctx, limiterKey, "interval_ms", ev.Interval.Milliseconds())
			if s.ttl > 0 {
				pipe.Expire(ctx, limiterKey, s.ttl)
			}
		}
	}

	_, err := pipe.Exec(ctx)
	return err
}
