package ratelimit

import (
	"context"
	"net/http"
	"strconv"
	"strings"

	"openai-ratelimiter/middleware/ratelimit/application"
)

// CostFunc estima quantos tokens a requisição vai consumir.
type CostFunc func(r *http.Request) int

// CostFromHeader lê o custo estimado de um header da própria requisição.
// Header ausente ou inválido conta como 0.
func CostFromHeader(name string) CostFunc {
	return func(r *http.Request) int {
		n, err := strconv.Atoi(strings.TrimSpace(r.Header.Get(name)))
		if err != nil || n < 0 {
			return 0
		}
		return n
	}
}

// Transport passa cada requisição pelo Pacer antes de entregá-la ao Base.
//
// Erros do Base voltam sem alteração. Respostas 429 não são erro aqui:
// voltam para o chamador, e o retry-after delas já atrasa a próxima chamada.
type Transport struct {
	Base  http.RoundTripper
	Pacer *application.Pacer
	Cost  CostFunc
}

func (t *Transport) RoundTrip(req *http.Request) (*http.Response, error) {
	base := t.Base
	if base == nil {
		base = http.DefaultTransport
	}
	if t.Pacer == nil {
		return base.RoundTrip(req)
	}

	cost := 0
	if t.Cost != nil {
		cost = t.Cost(req)
	}

	res, err := application.Call(req.Context(), t.Pacer, cost, func(context.Context) (response, error) {
		resp, err := base.RoundTrip(req)
		return response{resp}, err
	})
	return res.Response, err
}

// NewClient devolve um *http.Client cujas requisições passam pelo pacer.
func NewClient(p *application.Pacer, base http.RoundTripper, cost CostFunc) *http.Client {
	return &http.Client{Transport: &Transport{Base: base, Pacer: p, Cost: cost}}
}
