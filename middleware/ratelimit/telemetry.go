package ratelimit

import (
	"net/http"
	"strings"

	"openai-ratelimiter/middleware/ratelimit/domain"
)

// HeaderTelemetry converte headers HTTP em telemetria (chaves minúsculas).
// Para headers repetidos vale o primeiro valor.
func HeaderTelemetry(h http.Header) domain.Telemetry {
	if len(h) == 0 {
		return nil
	}
	t := make(domain.Telemetry, len(h))
	for k, vs := range h {
		if len(vs) == 0 {
			continue
		}
		t[strings.ToLower(k)] = vs[0]
	}
	return t
}

// response embrulha *http.Response para expor os headers ao Pacer.
type response struct {
	*http.Response
}

func (r response) RateLimitTelemetry() domain.Telemetry {
	if r.Response == nil {
		return nil
	}
	return HeaderTelemetry(r.Header)
}
