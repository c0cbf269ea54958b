package upstream

import (
	"net"
	"net/http"
	"strconv"
	"strings"
	"time"

	"openai-ratelimiter/middleware/ratelimit/domain"
)

type KeyFunc func(r *http.Request) string

type Options struct {
	Store              *Store
	KeyFn              KeyFunc
	KeyHeader          string
	TrustXForwardedFor bool
	RejectStatus       int
	// CostHeader informa quantos tokens a requisição consome (padrão 1).
	CostHeader string
	Now        func() time.Time
}

func DefaultKeyFunc(keyHeader string, trustXFF bool) KeyFunc {
	return func(r *http.Request) string {
		if keyHeader != "" {
			if v := strings.TrimSpace(r.Header.Get(keyHeader)); v != "" {
				return v
			}
		}

		if trustXFF {
			// pega o primeiro IP do X-Forwarded-For (cliente original)
			if xff := r.Header.Get("X-Forwarded-For"); xff != "" {
				parts := strings.Split(xff, ",")
				if len(parts) > 0 {
					ip := strings.TrimSpace(parts[0])
					if ip != "" {
						return ip
					}
				}
			}
		}

		// fallback: RemoteAddr
		host, _, err := net.SplitHostPort(strings.TrimSpace(r.RemoteAddr))
		if err == nil && host != "" {
			return host
		}
		if r.RemoteAddr != "" {
			return r.RemoteAddr
		}
		return "unknown"
	}
}

// Middleware simula uma API com rate limit: toda resposta leva os headers
// x-ratelimit-* e, sem saldo, responde 429 com retry-after.
func Middleware(opts Options) func(next http.Handler) http.Handler {
	if opts.RejectStatus == 0 {
		opts.RejectStatus = http.StatusTooManyRequests
	}
	if opts.KeyFn == nil {
		opts.KeyFn = DefaultKeyFunc(opts.KeyHeader, opts.TrustXForwardedFor)
	}
	if opts.CostHeader == "" {
		opts.CostHeader = "X-Token-Cost"
	}
	if opts.Now == nil {
		opts.Now = time.Now
	}

	svc := Service{Store: opts.Store}

	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			cost := 1
			if v, err := strconv.Atoi(strings.TrimSpace(r.Header.Get(opts.CostHeader))); err == nil && v > 0 {
				cost = v
			}

			dec := svc.Decide(opts.KeyFn(r), cost, opts.Now())
			writeTelemetry(w.Header(), dec)

			if !dec.Allowed {
				w.Header().Set(domain.KeyRetryAfter, formatSeconds(dec.RetryAfter))
				http.Error(w, http.StatusText(opts.RejectStatus), opts.RejectStatus)
				return
			}

			next.ServeHTTP(w, r)
		})
	}
}

func writeTelemetry(h http.Header, dec Decision) {
	if dec.Limit <= 0 {
		return
	}
	h.Set(domain.KeyLimitRequests, formatInt(dec.Limit))
	h.Set(domain.KeyRemainingRequests, formatInt(dec.RequestsRemaining))
	h.Set(domain.KeyResetRequests, formatEpochCeil(dec.RequestsResetAt))
	if dec.HasTokens {
		h.Set(domain.KeyRemainingTokens, formatInt(dec.TokensRemaining))
		h.Set(domain.KeyResetTokens, formatEpochCeil(dec.TokensResetAt))
	}
}
