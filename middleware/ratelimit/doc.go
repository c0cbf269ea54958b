// Package ratelimit fornece o adapter HTTP (net/http) do limiter do lado do cliente.
//
// Visão geral (camadas):
//
//   - domain: contratos e tipos do domínio (sem dependência de net/http)
//   - application: casos de uso (gate global, pacing adaptativo) sem net/http
//   - infra: implementações concretas (semáforo, registry, stats, métricas, logger)
//   - ratelimit (este pacote): http.RoundTripper + tradução de headers em telemetria
//
// Fluxo de uma requisição pelo Transport:
//
//   1) Adquire uma vaga no gate global (compartilhado por todos os limiters)
//   2) Espera a cadência do limiter e, se preciso, o reset das cotas
//   3) Executa a requisição no RoundTripper de baixo
//   4) Lê x-ratelimit-* / retry-after da resposta e ajusta o limiter
//
// A capacidade do gate vem de OPENAI_MAX_CONCURRENT_REQUESTS (padrão 8).
package ratelimit
