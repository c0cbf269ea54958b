// Package application contém os casos de uso do limiter do lado do cliente:
// aquisição de vaga no gate global e o modelo de pacing adaptativo (Pacer).
//
// Ele depende apenas do pacote domain e não conhece net/http.
// Ex.: Call(ctx, pacer, custo, work) espera o necessário, executa work e
// atualiza o estado do pacer a partir da telemetria do resultado.
package application
