package upstream

import (
	"math"
	"time"

	"golang.org/x/time/rate"
)

// Decision é o resultado de uma requisição ao servidor falso, já com os
// valores que viram headers de telemetria.
type Decision struct {
	Allowed    bool
	RetryAfter time.Duration

	Limit             int
	RequestsRemaining int
	RequestsResetAt   time.Time

	HasTokens       bool
	TokensRemaining int
	TokensResetAt   time.Time
}

// Service concentra a regra do rate limit do servidor falso.
//
// Ele não sabe nada sobre HTTP (headers/status), apenas retorna uma decisão.
type Service struct {
	Store *Store
}

// Decide consome 1 request e `cost` tokens da chave, se houver saldo.
// Quando falta saldo em qualquer um dos eixos nada é consumido.
func (s Service) Decide(key string, cost int, now time.Time) Decision {
	if s.Store == nil {
		return Decision{Allowed: true}
	}
	if cost < 1 {
		cost = 1
	}

	b := s.Store.Get(key)
	dec := Decision{Allowed: true, Limit: s.Store.RPM()}

	req := b.Requests.ReserveN(now, 1)
	if wait := delayOf(req, now); wait > 0 {
		dec.Allowed = false
		dec.RetryAfter = wait
	}

	var tok *rate.Reservation
	if b.Tokens != nil && dec.Allowed {
		tok = b.Tokens.ReserveN(now, cost)
		if wait := delayOf(tok, now); wait > 0 {
			dec.Allowed = false
			dec.RetryAfter = wait
		}
	}

	if !dec.Allowed {
		req.CancelAt(now)
		if tok != nil {
			tok.CancelAt(now)
		}
	}

	dec.RequestsRemaining, dec.RequestsResetAt = snapshot(b.Requests, 1, now)
	if b.Tokens != nil {
		dec.HasTokens = true
		dec.TokensRemaining, dec.TokensResetAt = snapshot(b.Tokens, cost, now)
	}
	return dec
}

// delayOf devolve quanto a reserva precisaria esperar. Reserva impossível
// (custo acima da rajada) vira um minuto.
func delayOf(r *rate.Reservation, now time.Time) time.Duration {
	if !r.OK() {
		return time.Minute
	}
	return r.DelayFrom(now)
}

// snapshot devolve o saldo inteiro e o instante em que `need` unidades
// voltam a estar disponíveis.
func snapshot(lim *rate.Limiter, need int, now time.Time) (int, time.Time) {
	tokens := lim.TokensAt(now)
	remaining := int(math.Floor(tokens))
	if remaining < 0 {
		remaining = 0
	}
	missing := float64(need) - tokens
	if missing <= 0 || lim.Limit() <= 0 {
		return remaining, now
	}
	wait := time.Duration(missing / float64(lim.Limit()) * float64(time.Second))
	return remaining, now.Add(wait)
}
