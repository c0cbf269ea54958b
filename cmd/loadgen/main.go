package main

import (
	"context"
	"errors"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"openai-ratelimiter/middleware/ratelimit/application"
	"openai-ratelimiter/middleware/ratelimit/domain"
	"openai-ratelimiter/middleware/ratelimit/infra"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"github.com/redis/go-redis/v9"
	"github.com/rs/zerolog"
)

func main() {
	cfg, err := readConfig()
	if err != nil {
		boot := zerolog.New(os.Stderr)
		boot.Fatal().Err(err).Msg("config error")
	}
	log := infra.SetupLogger(cfg.LogLevel)

	reg := prometheus.NewRegistry()
	metrics := infra.NewMetrics(reg)

	gate := infra.NewGateFromEnv(metrics.GateOptions()...)
	metrics.ObserveGate(gate)

	mem := infra.NewMemoryStatsStore(infra.WithTrackLimiters(true))
	stats := []domain.StatsStore{metrics, mem}

	if cfg.Stats.Enabled {
		rdb := redis.NewClient(&redis.Options{
			Addr:     cfg.Stats.RedisAddr,
			Password: cfg.Stats.RedisPassword,
			DB:       cfg.Stats.RedisDB,
		})
		defer func() { _ = rdb.Close() }()

		pingCtx, cancel := context.WithTimeout(context.Background(), 2*time.Second)
		_, err := rdb.Ping(pingCtx).Result()
		cancel()
		if err != nil {
			log.Fatal().Err(err).Msg("redis stats ping error")
		}

		stats = append(stats, infra.NewRedisStatsStore(
			rdb,
			infra.WithStatsPrefix(cfg.Stats.Prefix),
			infra.WithStatsTTL(cfg.Stats.TTL()),
			infra.WithStatsBucket(cfg.Stats.Bucket),
			infra.WithStatsTrackLimiters(cfg.Stats.TrackLimiters),
		))
	}

	pacers := infra.NewRegistry(func(key string) *application.Pacer {
		return application.NewPacer(gate,
			application.WithName(key),
			application.WithLogger(log.With().Str("limiter", key).Logger()),
			application.WithStats(stats...),
		)
	})

	ctx, cancel := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer cancel()
	pacers.StartJanitor(ctx)

	var srv *http.Server
	if cfg.MetricsAddr != "" {
		mux := http.NewServeMux()
		mux.Handle("/metrics", promhttp.HandlerFor(reg, promhttp.HandlerOpts{}))
		srv = &http.Server{
			Addr:              cfg.MetricsAddr,
			Handler:           mux,
			ReadHeaderTimeout: 10 * time.Second,
		}
		go func() {
			if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
				log.Error().Err(err).Msg("metrics server error")
			}
		}()
	}

	log.Info().
		Str("upstream", cfg.UpstreamURL+cfg.Path).
		Int("requests", cfg.Requests).
		Int("workers", cfg.Workers).
		Int("gate_capacity", gate.Capacity()).
		Strs("limiters", cfg.Limiters).
		Bool("redis_stats", cfg.Stats.Enabled).
		Str("metrics_addr", cfg.MetricsAddr).
		Msg("loadgen starting")

	res := run(ctx, cfg, pacers, log)

	total := mem.Total()
	log.Info().
		Int("sent", res.Sent).
		Int("errors", res.Errors).
		Interface("statuses", res.Statuses).
		Dur("elapsed", res.Elapsed).
		Int64("delayed", total.Delayed).
		Dur("pacing_wait", total.PacingWait).
		Dur("token_wait", total.TokenWait).
		Dur("request_wait", total.RequestWait).
		Msg("loadgen done")

	for key, c := range mem.ByLimiter() {
		st := pacers.Get(key).State()
		log.Info().
			Str("limiter", key).
			Int64("calls", c.Calls).
			Int64("failed", c.Failed).
			Dur("interval", st.Interval).
			Msg("limiter summary")
	}

	if srv != nil {
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		_ = srv.Shutdown(shutdownCtx)
	}
}
