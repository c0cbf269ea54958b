package application

import (
	"math"
	"strconv"
	"time"

	"openai-ratelimiter/middleware/ratelimit/domain"
)

// mesmo layout de http.TimeFormat, sem importar net/http aqui.
const httpDateLayout = "Mon, 02 Jan 2006 15:04:05 GMT"

type telemetryUpdate struct {
	interval time.Duration
	tokens   *domain.Quota
	requests *domain.Quota

	retryAfter    time.Duration
	hasRetryAfter bool
}

// parseTelemetry traduz a telemetria em mudanças de estado.
// Valor malformado conta como ausente: nunca derruba a chamada.
func parseTelemetry(t domain.Telemetry, now time.Time) telemetryUpdate {
	var u telemetryUpdate

	if rpm, ok := lookupInt(t, domain.KeyLimitRequests); ok && rpm > 0 {
		u.interval = time.Minute / time.Duration(rpm)
	}

	u.tokens = lookupQuota(t, domain.KeyRemainingTokens, domain.KeyResetTokens, now)
	u.requests = lookupQuota(t, domain.KeyRemainingRequests, domain.KeyResetRequests, now)

	if v, ok := t.Lookup(domain.KeyRetryAfter); ok {
		u.retryAfter, u.hasRetryAfter = parseRetryAfter(v, now)
	}
	return u
}

func lookupInt(t domain.Telemetry, key string) (int, bool) {
	v, ok := t.Lookup(key)
	if !ok {
		return 0, false
	}
	n, err := strconv.Atoi(v)
	if err != nil {
		return 0, false
	}
	return n, true
}

// lookupQuota só devolve o par quando remaining e reset existem e são válidos.
func lookupQuota(t domain.Telemetry, remainingKey, resetKey string, now time.Time) *domain.Quota {
	remaining, ok := lookupInt(t, remainingKey)
	if !ok {
		return nil
	}
	v, ok := t.Lookup(resetKey)
	if !ok {
		return nil
	}
	resetAt, ok := parseReset(v, now)
	if !ok {
		return nil
	}
	return &domain.Quota{Remaining: remaining, ResetAt: resetAt}
}

// parseReset aceita epoch em segundos ("1718000000") ou uma duração relativa
// no formato Go ("6m0s", "20ms"), que é o que a OpenAI envia de fato.
func parseReset(v string, now time.Time) (time.Time, bool) {
	if epoch, err := strconv.ParseInt(v, 10, 64); err == nil {
		return time.Unix(epoch, 0), true
	}
	d, err := time.ParseDuration(v)
	if err != nil || d < 0 {
		return time.Time{}, false
	}
	return now.Add(d), true
}

// parseRetryAfter aceita segundos (inteiros ou fracionários) ou HTTP-date.
func parseRetryAfter(v string, now time.Time) (time.Duration, bool) {
	if secs, err := strconv.ParseFloat(v, 64); err == nil {
		if math.IsNaN(secs) || secs < 0 || secs >= math.MaxInt64/float64(time.Second) {
			return 0, false
		}
		return time.Duration(secs * float64(time.Second)), true
	}
	at, err := time.Parse(httpDateLayout, v)
	if err != nil {
		return 0, false
	}
	d := at.Sub(now)
	if d < 0 {
		d = 0
	}
	return d, true
}
