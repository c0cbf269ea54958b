package main

import (
	"context"
	"io"
	"net/http"
	"strconv"
	"strings"
	"sync"
	"time"

	"openai-ratelimiter/middleware/ratelimit"
	"openai-ratelimiter/middleware/ratelimit/application"
	"openai-ratelimiter/middleware/ratelimit/infra"

	"github.com/rs/zerolog"
)

const costHeader = "X-Token-Cost"

type result struct {
	Sent     int
	Errors   int
	Statuses map[int]int
	Elapsed  time.Duration
}

// run dispara cfg.Requests chamadas com cfg.Workers goroutines. A i-ésima
// chamada usa o limiter cfg.Limiters[i % len].
func run(ctx context.Context, cfg config, pacers *infra.Registry[*application.Pacer], log zerolog.Logger) result {
	cost := ratelimit.CostFromHeader(costHeader)

	url := strings.TrimRight(cfg.UpstreamURL, "/") + cfg.Path
	jobs := make(chan int)
	res := result{Statuses: make(map[int]int)}
	var mu sync.Mutex
	var wg sync.WaitGroup

	start := time.Now()
	for w := 0; w < cfg.Workers; w++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			for i := range jobs {
				key := cfg.Limiters[i%len(cfg.Limiters)]
				// resolve a cada requisição: mantém a chave viva no registry
				client := ratelimit.NewClient(pacers.Get(key), nil, cost)
				status, err := fire(ctx, client, url, cfg)

				mu.Lock()
				res.Sent++
				if err != nil {
					res.Errors++
				} else {
					res.Statuses[status]++
				}
				mu.Unlock()

				if err != nil {
					log.Warn().Err(err).Str("limiter", key).Int("request", i).Msg("request failed")
				}
			}
		}()
	}

feed:
	for i := 0; i < cfg.Requests; i++ {
		select {
		case <-ctx.Done():
			break feed
		case jobs <- i:
		}
	}
	close(jobs)
	wg.Wait()

	res.Elapsed = time.Since(start)
	return res
}

func fire(ctx context.Context, client *http.Client, url string, cfg config) (int, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, url, strings.NewReader(`{"model":"mock","messages":[]}`))
	if err != nil {
		return 0, err
	}
	req.Header.Set("Content-Type", "application/json")
	if cfg.APIKey != "" {
		req.Header.Set("Authorization", "Bearer "+cfg.APIKey)
	}
	if cfg.TokenCost > 0 {
		req.Header.Set(costHeader, strconv.Itoa(cfg.TokenCost))
	}

	resp, err := client.Do(req)
	if err != nil {
		return 0, err
	}
	defer resp.Body.Close()
	_, _ = io.Copy(io.Discard, resp.Body)
	return resp.StatusCode, nil
}
