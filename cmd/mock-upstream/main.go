package main

import (
	"context"
	"errors"
	"net/http"
	"os"
	"os/signal"
	"strconv"
	"syscall"
	"time"

	"openai-ratelimiter/middleware/ratelimit/infra"
	"openai-ratelimiter/middleware/upstream"
)

func main() {
	log := infra.SetupLogger(getenvDefault("LOG_LEVEL", "info"))

	// API falsa: 60 requests/min por chave, rajada 5, e 40k tokens/min.
	rpm := getenvIntDefault("MOCK_RPM", 60)
	burst := getenvIntDefault("MOCK_BURST", 5)
	tpm := getenvIntDefault("MOCK_TPM", 40000)
	if rpm <= 0 || burst <= 0 {
		log.Fatal().Int("rpm", rpm).Int("burst", burst).Msg("MOCK_RPM and MOCK_BURST must be > 0")
	}

	var opts []upstream.StoreOption
	if tpm > 0 {
		opts = append(opts, upstream.WithTokensPerMinute(tpm, 0))
	}
	store := upstream.NewStore(rpm, burst, opts...)

	ctx, cancel := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer cancel()
	store.StartJanitor(ctx)

	mux := http.NewServeMux()
	mux.HandleFunc("/v1/chat/completions", func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "application/json")
		_, _ = w.Write([]byte(`{"object":"chat.completion","choices":[]}` + "\n"))
	})

	h := http.Handler(mux)
	h = upstream.ConcurrencyMiddleware(upstream.ConcurrencyOptions{
		Max:            getenvIntDefault("MOCK_CONCURRENCY_MAX", 0),
		AcquireTimeout: getenvDurationDefault("MOCK_CONCURRENCY_TIMEOUT", 0),
	})(h)
	h = upstream.Middleware(upstream.Options{
		Store:     store,
		KeyHeader: "Authorization",
	})(h)

	addr := getenvDefault("LISTEN_ADDR", ":8081")
	srv := &http.Server{
		Addr:              addr,
		Handler:           h,
		ReadHeaderTimeout: 10 * time.Second,
		ReadTimeout:       30 * time.Second,
		WriteTimeout:      30 * time.Second,
		IdleTimeout:       90 * time.Second,
	}

	go func() {
		<-ctx.Done()
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		_ = srv.Shutdown(shutdownCtx)
	}()

	log.Info().Str("addr", addr).Int("rpm", rpm).Int("burst", burst).Int("tpm", tpm).Msg("mock upstream listening")
	if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
		log.Fatal().Err(err).Msg("server error")
	}
}

func getenvDefault(k, def string) string {
	if v := os.Getenv(k); v != "" {
		return v
	}
	return def
}

func getenvIntDefault(k string, def int) int {
	v := os.Getenv(k)
	if v == "" {
		return def
	}
	i, err := strconv.Atoi(v)
	if err != nil {
		return def
	}
	return i
}

func getenvDurationDefault(k string, def time.Duration) time.Duration {
	v := os.Getenv(k)
	if v == "" {
		return def
	}
	d, err := time.ParseDuration(v)
	if err != nil {
		return def
	}
	return d
}
