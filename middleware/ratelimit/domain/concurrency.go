package domain

import "context"

// AdmissionGate representa o semáforo global que limita quantas chamadas à API
// remota podem estar em andamento ao mesmo tempo, somando todos os limiters do
// processo.
//
// A semântica é: Acquire bloqueia até conseguir uma vaga ou até o ctx encerrar.
// Ao adquirir, retorna uma função de release que deve ser chamada exatamente uma vez.
// Com context.Background() a aquisição nunca falha, apenas atrasa.
type AdmissionGate interface {
	Acquire(ctx context.Context) (release func(), ok bool)
}
