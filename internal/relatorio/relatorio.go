// Package relatorio implementa os seis relatórios analíticos sobre uma
// coleção de documentos canônicos, além do filtro por período.
//
// Todos os geradores são funções puras e totais: aceitam qualquer coleção
// (inclusive vazia), não fazem I/O e toda razão com denominador zero vale 0.
package relatorio

import (
	"sort"

	"fiscal-lens/internal/fiscal"
)

// ============================================================================
// Tipos de saída
// ============================================================================

// PorTipo é a quebra do resumo em categorias de operação. Devolucao e
// Complementar não têm sinal de extração no modelo canônico e ficam
// permanentemente em zero.
type PorTipo struct {
	Venda        int `json:"venda"`
	Devolucao    int `json:"devolucao"`
	Complementar int `json:"complementar"`
	Cancelada    int `json:"cancelada"`
}

type ResumoNotas struct {
	TotalNotas int     `json:"totalNotas"`
	TotalValor float64 `json:"totalValor"`
	PorTipo    PorTipo `json:"porTipo"`
	MediaValor float64 `json:"mediaValor"`
}

type ResumoImpostos struct {
	ICMSTotal              float64 `json:"icmsTotal"`
	IPITotal               float64 `json:"ipiTotal"`
	PISTotal               float64 `json:"pisTotal"`
	COFINSTotal            float64 `json:"cofinsTotal"`
	TotalImpostos          float64 `json:"totalImpostos"`
	PercentualSobreReceita float64 `json:"percentualSobreReceita"`
}

type ClienteRanking struct {
	Nome        string  `json:"nome"`
	CnpjCpf     string  `json:"cnpjCpf"`
	TotalNotas  int     `json:"totalNotas"`
	TotalValor  float64 `json:"totalValor"`
	TicketMedio float64 `json:"ticketMedio"`
}

type ProdutoRanking struct {
	Codigo          string  `json:"codigo"`
	Nome            string  `json:"nome"`
	TotalQuantidade float64 `json:"totalQuantidade"`
	TotalValor      float64 `json:"totalValor"`
	PrecoMedio      float64 `json:"precoMedio"`
}

type TransportadoraResumo struct {
	Nome          string  `json:"nome"`
	TotalServicos int     `json:"totalServicos"`
	TotalValor    float64 `json:"totalValor"`
}

type FreteResumo struct {
	TotalFrete      float64                `json:"totalFrete"`
	TotalServicos   int                    `json:"totalServicos"`
	CustoMedio      float64                `json:"custoMedio"`
	Transportadoras []TransportadoraResumo `json:"transportadoras"`
}

type NotaCancelada struct {
	Numero string  `json:"numero"`
	Data   string  `json:"data"`
	Valor  float64 `json:"valor"`
	Motivo string  `json:"motivo"`
}

type NotasCanceladas struct {
	Total      int             `json:"total"`
	Percentual float64         `json:"percentual"`
	Notas      []NotaCancelada `json:"notas"`
}

// ============================================================================
// Resumo de notas
// ============================================================================

// GerarResumoNotas conta e soma os documentos NFe e CTe, com quebra por
// categoria de operação.
func GerarResumoNotas(documentos []fiscal.Documento) ResumoNotas {
	var r ResumoNotas

	for _, doc := range documentos {
		if doc.Tipo != fiscal.TipoNFe && doc.Tipo != fiscal.TipoCTe {
			continue
		}

		r.TotalNotas++
		r.TotalValor += doc.ValorTotal

		if doc.Tipo == fiscal.TipoNFe && doc.Status == fiscal.StatusNormal {
			r.PorTipo.Venda++
		}
		if doc.Status == fiscal.StatusCancelada || doc.Status == fiscal.StatusInutilizada {
			r.PorTipo.Cancelada++
		}
	}

	if r.TotalNotas > 0 {
		r.MediaValor = r.TotalValor / float64(r.TotalNotas)
	}

	return r
}

// ============================================================================
// Resumo de impostos
// ============================================================================

// GerarResumoImpostos soma os quatro totais de imposto das NFe normais e
// calcula o percentual sobre a receita das mesmas notas.
func GerarResumoImpostos(documentos []fiscal.Documento) ResumoImpostos {
	var r ResumoImpostos
	var receita float64

	for _, doc := range documentos {
		if doc.Tipo != fiscal.TipoNFe || doc.Status != fiscal.StatusNormal {
			continue
		}

		r.ICMSTotal += doc.Impostos.ICMSTotal
		r.IPITotal += doc.Impostos.IPITotal
		r.PISTotal += doc.Impostos.PISTotal
		r.COFINSTotal += doc.Impostos.COFINSTotal
		receita += doc.ValorTotal
	}

	r.TotalImpostos = r.ICMSTotal + r.IPITotal + r.PISTotal + r.COFINSTotal
	if receita > 0 {
		r.PercentualSobreReceita = r.TotalImpostos / receita
	}

	return r
}

// ============================================================================
// Rankings
// ============================================================================

// GerarRankingClientes agrupa os documentos normais por CNPJ/CPF do cliente.
// Documentos sem CNPJ/CPF ficam de fora do ranking (não viram grupo vazio).
// Ordenação decrescente por valor acumulado; empates mantêm a ordem da
// primeira ocorrência.
func GerarRankingClientes(documentos []fiscal.Documento) []ClienteRanking {
	grupos := make(map[string]*ClienteRanking)
	ordem := make([]string, 0)

	for _, doc := range documentos {
		if doc.Status != fiscal.StatusNormal || doc.Cliente.CnpjCpf == "" {
			continue
		}

		chave := doc.Cliente.CnpjCpf
		g, ok := grupos[chave]
		if !ok {
			nome := doc.Cliente.Nome
			if nome == "" {
				nome = "Cliente sem nome"
			}
			g = &ClienteRanking{Nome: nome, CnpjCpf: chave}
			grupos[chave] = g
			ordem = append(ordem, chave)
		}

		g.TotalNotas++
		g.TotalValor += doc.ValorTotal
		g.TicketMedio = g.TotalValor / float64(g.TotalNotas)
	}

	ranking := make([]ClienteRanking, 0, len(ordem))
	for _, chave := range ordem {
		ranking = append(ranking, *grupos[chave])
	}
	sort.SliceStable(ranking, func(i, j int) bool {
		return ranking[i].TotalValor > ranking[j].TotalValor
	})

	return ranking
}

// GerarRankingProdutos agrupa por código de produto todos os itens das NFe
// normais. Itens sem código ficam de fora. Ordenação decrescente por valor
// acumulado, empates estáveis.
func GerarRankingProdutos(documentos []fiscal.Documento) []ProdutoRanking {
	grupos := make(map[string]*ProdutoRanking)
	ordem := make([]string, 0)

	for _, doc := range documentos {
		if doc.Tipo != fiscal.TipoNFe || doc.Status != fiscal.StatusNormal {
			continue
		}

		for _, item := range doc.Itens {
			if item.Codigo == "" {
				continue
			}

			g, ok := grupos[item.Codigo]
			if !ok {
				nome := item.Nome
				if nome == "" {
					nome = "Produto sem nome"
				}
				g = &ProdutoRanking{Codigo: item.Codigo, Nome: nome}
				grupos[item.Codigo] = g
				ordem = append(ordem, item.Codigo)
			}

			g.TotalQuantidade += item.Quantidade
			g.TotalValor += item.ValorTotal
			if g.TotalQuantidade > 0 {
				g.PrecoMedio = g.TotalValor / g.TotalQuantidade
			} else {
				g.PrecoMedio = 0
			}
		}
	}

	ranking := make([]ProdutoRanking, 0, len(ordem))
	for _, codigo := range ordem {
		ranking = append(ranking, *grupos[codigo])
	}
	sort.SliceStable(ranking, func(i, j int) bool {
		return ranking[i].TotalValor > ranking[j].TotalValor
	})

	return ranking
}

// ============================================================================
// Resumo de fretes
// ============================================================================

// GerarResumoFretes totaliza os CT-e normais e monta a tabela por
// transportadora. A tabela agrupa TODOS os documentos normais que referenciam
// uma transportadora: o contador de serviços sobe para qualquer tipo, mas o
// valor acumulado só sobe para CT-e. Esse acoplamento entre tipos é o
// comportamento observado do sistema e é mantido de propósito.
func GerarResumoFretes(documentos []fiscal.Documento) FreteResumo {
	var r FreteResumo

	grupos := make(map[string]*TransportadoraResumo)
	ordem := make([]string, 0)

	for _, doc := range documentos {
		if doc.Status != fiscal.StatusNormal {
			continue
		}

		if doc.Tipo == fiscal.TipoCTe {
			r.TotalFrete += doc.ValorTotal
			r.TotalServicos++
		}

		if doc.Transportadora.CnpjCpf == "" {
			continue
		}

		chave := doc.Transportadora.CnpjCpf
		g, ok := grupos[chave]
		if !ok {
			nome := doc.Transportadora.Nome
			if nome == "" {
				nome = "Transportadora sem nome"
			}
			g = &TransportadoraResumo{Nome: nome}
			grupos[chave] = g
			ordem = append(ordem, chave)
		}

		g.TotalServicos++
		if doc.Tipo == fiscal.TipoCTe {
			g.TotalValor += doc.ValorTotal
		}
	}

	if r.TotalServicos > 0 {
		r.CustoMedio = r.TotalFrete / float64(r.TotalServicos)
	}

	r.Transportadoras = make([]TransportadoraResumo, 0, len(ordem))
	for _, chave := range ordem {
		r.Transportadoras = append(r.Transportadoras, *grupos[chave])
	}
	sort.SliceStable(r.Transportadoras, func(i, j int) bool {
		return r.Transportadoras[i].TotalValor > r.Transportadoras[j].TotalValor
	})

	return r
}

// ============================================================================
// Notas canceladas
// ============================================================================

// GerarNotasCanceladas lista os documentos cancelados ou inutilizados, com o
// percentual sobre o total da coleção.
func GerarNotasCanceladas(documentos []fiscal.Documento) NotasCanceladas {
	var r NotasCanceladas
	r.Notas = make([]NotaCancelada, 0)

	for _, doc := range documentos {
		if doc.Status != fiscal.StatusCancelada && doc.Status != fiscal.StatusInutilizada {
			continue
		}

		numero := doc.Numero
		if numero == "" {
			numero = "Sem número"
		}
		data := "Sem data"
		if doc.Data != "" {
			data = formatarData(doc.Data)
		}
		motivo := doc.Motivo
		if motivo == "" {
			motivo = "Motivo não informado"
		}

		r.Notas = append(r.Notas, NotaCancelada{
			Numero: numero,
			Data:   data,
			Valor:  doc.ValorTotal,
			Motivo: motivo,
		})
	}

	r.Total = len(r.Notas)
	if len(documentos) > 0 {
		r.Percentual = float64(r.Total) / float64(len(documentos))
	}

	return r
}
