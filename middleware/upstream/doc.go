// Package upstream é uma API falsa com rate limit, usada em testes de
// integração e pelo binário cmd/mock-upstream.
//
// Ela responde com os mesmos headers x-ratelimit-* e retry-after que o
// limiter do cliente sabe ler, usando um token bucket por chave
// (golang.org/x/time/rate).
package upstream
