package application

import (
	"context"
	"time"

	"openai-ratelimiter/middleware/ratelimit/domain"
)

// ConcurrencyService é a entrada no gate de admissão compartilhado por todos
// os limiters do processo. O Pacer passa por ele antes das esperas de
// cadência; o servidor falso usa o mesmo serviço para limitar requisições
// em andamento.
//
// Gate nil significa sem limite. AcquireTimeout > 0 limita a espera por uma
// vaga mesmo com o ctx do chamador ainda vivo; o chamador distingue os dois
// casos olhando ctx.Err().
type ConcurrencyService struct {
	Gate           domain.AdmissionGate
	AcquireTimeout time.Duration
}

// Acquire devolve o release da vaga, ou ok=false se o ctx (ou o
// AcquireTimeout) encerrou antes.
func (s ConcurrencyService) Acquire(ctx context.Context) (func(), bool) {
	if s.Gate == nil {
		return func() {}, true
	}

	if s.AcquireTimeout <= 0 {
		return s.Gate.Acquire(ctx)
	}

	acqCtx, cancel := context.WithTimeout(ctx, s.AcquireTimeout)
	defer cancel()
	return s.Gate.Acquire(acqCtx)
}
