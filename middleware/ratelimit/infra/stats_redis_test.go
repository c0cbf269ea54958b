package infra

import (
	"context"
	"testing"
	"time"

	"openai-ratelimiter/middleware/ratelimit/domain"

	"github.com/alicebob/miniredis/v2"
	"github.com/redis/go-redis/v9"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestRedisStatsStore_NilClientIsNoop(t *testing.T) {
	var s *RedisStatsStore
	require.NoError(t, s.Record(context.Background(), domain.PacingEvent{}))
	require.NoError(t, NewRedisStatsStore(nil).Record(context.Background(), domain.PacingEvent{}))
}

func TestRedisStatsStore_Options(t *testing.T) {
	s := NewRedisStatsStore(nil,
		WithStatsPrefix(":app:pacing:"),
		WithStatsTTL(time.Hour),
		WithStatsBucket(" NONE "),
		WithStatsTrackLimiters(true),
	)
	assert.Equal(t, "app:pacing", s.prefix)
	assert.Equal(t, time.Hour, s.ttl)
	assert.Equal(t, "none", s.bucket)
	assert.True(t, s.trackLimiters)
}

func TestRedisStatsStore_Fields(t *testing.T) {
	f := fields(domain.PacingEvent{
		PacingWait:  250 * time.Millisecond,
		RequestWait: 2 * time.Second,
		Failed:      true,
	})
	assert.Equal(t, map[string]int64{
		"calls":           1,
		"failed":          1,
		"delayed":         1,
		"pacing_wait_ms":  250,
		"request_wait_ms": 2000,
	}, f)

	assert.Equal(t, map[string]int64{"calls": 1}, fields(domain.PacingEvent{}))
}

func TestRedisStatsStore_ReportsUnreachableServer(t *testing.T) {
	rdb := redis.NewClient(&redis.Options{
		Addr:        "127.0.0.1:1",
		DialTimeout: 50 * time.Millisecond,
		MaxRetries:  -1,
	})
	defer func() { _ = rdb.Close() }()

	err := NewRedisStatsStore(rdb).Record(context.Background(), domain.PacingEvent{Limiter: "a"})
	assert.Error(t, err)
}

func newMiniredisStats(t *testing.T, opts ...RedisStatsOption) (*RedisStatsStore, *miniredis.Miniredis) {
	t.Helper()
	mr := miniredis.RunT(t)
	rdb := redis.NewClient(&redis.Options{Addr: mr.Addr()})
	t.Cleanup(func() { _ = rdb.Close() })
	return NewRedisStatsStore(rdb, opts...), mr
}

func TestRedisStatsStore_RecordWritesTotalBucketAndLimiter(t *testing.T) {
	s, mr := newMiniredisStats(t,
		WithStatsPrefix("lg"),
		WithStatsTTL(time.Hour),
		WithStatsTrackLimiters(true),
	)
	at := time.Date(2024, 5, 1, 12, 34, 56, 0, time.UTC)
	ctx := context.Background()

	require.NoError(t, s.Record(ctx, domain.PacingEvent{
		Limiter:    "gpt-4o",
		PacingWait: 250 * time.Millisecond,
		Interval:   500 * time.Millisecond,
		At:         at,
	}))
	require.NoError(t, s.Record(ctx, domain.PacingEvent{
		Limiter:     "gpt-4o",
		RequestWait: time.Second,
		Interval:    time.Second,
		Failed:      true,
		At:          at.Add(2 * time.Second),
	}))

	total := "lg:total"
	assert.Equal(t, "2", mr.HGet(total, "calls"))
	assert.Equal(t, "1", mr.HGet(total, "failed"))
	assert.Equal(t, "2", mr.HGet(total, "delayed"))
	assert.Equal(t, "250", mr.HGet(total, "pacing_wait_ms"))
	assert.Equal(t, "1000", mr.HGet(total, "request_wait_ms"))
	assert.Zero(t, mr.TTL(total), "total is cumulative and never expires")

	bucket := "lg:minute:202405011234"
	assert.Equal(t, "2", mr.HGet(bucket, "calls"))
	assert.Equal(t, time.Hour, mr.TTL(bucket))

	limiter := "lg:limiter:gpt-4o"
	assert.Equal(t, "2", mr.HGet(limiter, "calls"))
	assert.Equal(t, "1000", mr.HGet(limiter, "interval_ms"))
	assert.Equal(t, time.Hour, mr.TTL(limiter))
}

func TestRedisStatsStore_BucketNoneAndUntrackedLimiters(t *testing.T) {
	s, mr := newMiniredisStats(t, WithStatsBucket("none"))

	require.NoError(t, s.Record(context.Background(), domain.PacingEvent{
		Limiter: "gpt-4o",
		At:      time.Date(2024, 5, 1, 12, 34, 0, 0, time.UTC),
	}))

	assert.Equal(t, []string{"ratelimit:pacing:total"}, mr.Keys())
	assert.Equal(t, "1", mr.HGet("ratelimit:pacing:total", "calls"))
}
