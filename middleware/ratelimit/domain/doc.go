// Package domain define contratos e tipos de domínio do limiter do lado do
// cliente: gate de concorrência, telemetria de rate limit e estatísticas.
//
// Este pacote não depende de net/http nem de implementações concretas.
// A intenção é permitir testes de unidade puros e desacoplar regras de negócio
// de detalhes de infraestrutura.
package domain
