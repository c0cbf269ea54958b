package main

import (
	"errors"
	"fmt"
	"os"
	"strconv"
	"strings"
	"time"

	"gopkg.in/yaml.v3"
)

type statsConfig struct {
	Enabled       bool   `yaml:"enabled"`
	RedisAddr     string `yaml:"redis_addr"`
	RedisPassword string `yaml:"redis_password"`
	RedisDB       int    `yaml:"redis_db"`
	Prefix        string `yaml:"prefix"`
	TTLMS         int    `yaml:"ttl_ms"`
	Bucket        string `yaml:"bucket"` // "minute" ou "none"
	TrackLimiters bool   `yaml:"track_limiters"`
}

func (s statsConfig) TTL() time.Duration {
	if s.TTLMS <= 0 {
		return 24 * time.Hour
	}
	return time.Duration(s.TTLMS) * time.Millisecond
}

type config struct {
	UpstreamURL string `yaml:"upstream_url"`
	Path        string `yaml:"path"`
	APIKey      string `yaml:"api_key"`

	Requests  int `yaml:"requests"`
	Workers   int `yaml:"workers"`
	TokenCost int `yaml:"token_cost"`
	// Limiters são as chaves do registry (ex: um por modelo). As requisições
	// são distribuídas entre elas em rodízio.
	Limiters []string `yaml:"limiters"`

	MetricsAddr string      `yaml:"metrics_addr"`
	LogLevel    string      `yaml:"log_level"`
	Stats       statsConfig `yaml:"stats"`
}

func defaultConfig() config {
	return config{
		Path:        "/v1/chat/completions",
		Requests:    100,
		Workers:     16,
		Limiters:    []string{"default"},
		MetricsAddr: ":9090",
		LogLevel:    "info",
		Stats: statsConfig{
			Prefix: "ratelimit:pacing",
			Bucket: "minute",
		},
	}
}

// loadFile aplica o YAML por cima dos padrões. Campos ausentes no arquivo
// mantêm o valor padrão.
func loadFile(path string, cfg config) (config, error) {
	b, err := os.ReadFile(path)
	if err != nil {
		return config{}, err
	}
	if err := yaml.Unmarshal(b, &cfg); err != nil {
		return config{}, fmt.Errorf("parse %s: %w", path, err)
	}
	return cfg, nil
}

// readConfig monta a configuração: padrões, depois LOADGEN_CONFIG, depois
// variáveis de ambiente (o ambiente sempre ganha).
func readConfig() (config, error) {
	cfg := defaultConfig()
	if path := os.Getenv("LOADGEN_CONFIG"); path != "" {
		var err error
		if cfg, err = loadFile(path, cfg); err != nil {
			return config{}, err
		}
	}

	cfg.UpstreamURL = getenvDefault("UPSTREAM_URL", cfg.UpstreamURL)
	cfg.Path = getenvDefault("LOADGEN_PATH", cfg.Path)
	cfg.APIKey = getenvDefault("LOADGEN_API_KEY", cfg.APIKey)
	cfg.Requests = getenvIntDefault("LOADGEN_REQUESTS", cfg.Requests)
	cfg.Workers = getenvIntDefault("LOADGEN_WORKERS", cfg.Workers)
	cfg.TokenCost = getenvIntDefault("LOADGEN_TOKEN_COST", cfg.TokenCost)
	if v := os.Getenv("LOADGEN_LIMITERS"); v != "" {
		cfg.Limiters = splitList(v)
	}
	cfg.MetricsAddr = getenvDefault("METRICS_ADDR", cfg.MetricsAddr)
	cfg.LogLevel = getenvDefault("LOG_LEVEL", cfg.LogLevel)

	cfg.Stats.Enabled = getenvBoolDefault("RATE_STATS_ENABLED", cfg.Stats.Enabled)
	cfg.Stats.RedisAddr = getenvDefault("RATE_STATS_REDIS_ADDR", cfg.Stats.RedisAddr)
	cfg.Stats.RedisPassword = getenvDefault("RATE_STATS_REDIS_PASSWORD", cfg.Stats.RedisPassword)
	cfg.Stats.RedisDB = getenvIntDefault("RATE_STATS_REDIS_DB", cfg.Stats.RedisDB)
	cfg.Stats.Prefix = getenvDefault("RATE_STATS_PREFIX", cfg.Stats.Prefix)
	if d := getenvDurationDefault("RATE_STATS_TTL", 0); d > 0 {
		cfg.Stats.TTLMS = int(d / time.Millisecond)
	}
	cfg.Stats.Bucket = getenvDefault("RATE_STATS_BUCKET", cfg.Stats.Bucket)
	cfg.Stats.TrackLimiters = getenvBoolDefault("RATE_STATS_TRACK_LIMITERS", cfg.Stats.TrackLimiters)

	if strings.TrimSpace(cfg.UpstreamURL) == "" {
		return config{}, errors.New("UPSTREAM_URL is required")
	}
	if cfg.Requests <= 0 {
		return config{}, errors.New("LOADGEN_REQUESTS must be > 0")
	}
	if cfg.Workers <= 0 {
		return config{}, errors.New("LOADGEN_WORKERS must be > 0")
	}
	if cfg.TokenCost < 0 {
		return config{}, errors.New("LOADGEN_TOKEN_COST must be >= 0")
	}
	if len(cfg.Limiters) == 0 {
		cfg.Limiters = []string{"default"}
	}
	if cfg.Stats.Enabled && strings.TrimSpace(cfg.Stats.RedisAddr) == "" {
		return config{}, errors.New("RATE_STATS_REDIS_ADDR is required when RATE_STATS_ENABLED=true")
	}
	return cfg, nil
}

func splitList(v string) []string {
	var out []string
	for _, p := range strings.Split(v, ",") {
		if p = strings.TrimSpace(p); p != "" {
			out = append(out, p)
		}
	}
	return out
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

func getenvBoolDefault(k string, def bool) bool {
	v := os.Getenv(k)
	if v == "" {
		return def
	}
	b, err := strconv.ParseBool(v)
	if err != nil {
		return def
	}
	return b
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
