package domain

// Camada de domínio do rate limit do lado do cliente.
//
// Regras e contratos (interfaces/tipos) sem dependência de net/http.

import (
	"errors"
	"time"
)

// ErrWaitCancelled é retornado quando o ctx encerra enquanto a chamada ainda
// espera por uma vaga no gate ou por alguma das esperas de pacing/quota.
var ErrWaitCancelled = errors.New("ratelimit: wait cancelled")

// DefaultInterval é o espaçamento inicial entre emissões de um limiter,
// antes de qualquer telemetria informar o limite real por minuto.
const DefaultInterval = 500 * time.Millisecond

// Quota é um snapshot de uma cota informada pelo serviço remoto:
// quanto resta e quando a janela reinicia. Os dois campos só existem juntos.
type Quota struct {
	Remaining int
	ResetAt   time.Time
}

// State é uma cópia do estado adaptativo de um limiter.
//
// Tokens/Requests nil significam "ainda não observado".
type State struct {
	Interval  time.Duration
	LastIssue time.Time
	Tokens    *Quota
	Requests  *Quota
}
