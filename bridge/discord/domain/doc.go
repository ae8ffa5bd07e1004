// Package domain define os tipos de valor e contratos do bridge com o Discord.
//
// Este pacote não depende de net/http, de redis nem de implementações concretas.
// A intenção é permitir testes de unidade puros e desacoplar a álgebra de roles
// e a taxonomia de erros dos detalhes de infraestrutura.
package domain
