package domain

import "strings"

// Chaves de telemetria reconhecidas (sempre minúsculas).
const (
	KeyLimitRequests     = "x-ratelimit-limit-requests"
	KeyRemainingTokens   = "x-ratelimit-remaining-tokens"
	KeyResetTokens       = "x-ratelimit-reset-tokens"
	KeyRemainingRequests = "x-ratelimit-remaining-requests"
	KeyResetRequests     = "x-ratelimit-reset-requests"
	KeyRetryAfter        = "retry-after"
)

// Telemetry são os metadados de rate limit devolvidos junto com o resultado
// de uma chamada. As chaves ficam normalizadas em minúsculas.
type Telemetry map[string]string

// TelemetryProvider é implementado por resultados que carregam telemetria.
// Resultados que não implementam a interface passam pelo limiter sem exame.
// Retornar nil significa "sem telemetria".
type TelemetryProvider interface {
	RateLimitTelemetry() Telemetry
}

// NewTelemetry copia m normalizando as chaves para minúsculas.
func NewTelemetry(m map[string]string) Telemetry {
	t := make(Telemetry, len(m))
	for k, v := range m {
		t[strings.ToLower(strings.TrimSpace(k))] = v
	}
	return t
}

// RateLimitTelemetry permite devolver um Telemetry direto como resultado.
func (t Telemetry) RateLimitTelemetry() Telemetry { return t }

// Lookup busca uma chave ignorando maiúsculas/minúsculas.
// Valores vazios (só espaços) contam como ausentes.
func (t Telemetry) Lookup(key string) (string, bool) {
	if t == nil {
		return "", false
	}
	v, ok := t[strings.ToLower(key)]
	if !ok {
		return "", false
	}
	v = strings.TrimSpace(v)
	if v == "" {
		return "", false
	}
	return v, true
}
