package relatorio_test

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"fiscal-lens/internal/fiscal"
	"fiscal-lens/internal/relatorio"
)

func nfe(valor float64) fiscal.Documento {
	return fiscal.Documento{Tipo: fiscal.TipoNFe, Status: fiscal.StatusNormal, ValorTotal: valor}
}

func cte(valor float64) fiscal.Documento {
	return fiscal.Documento{Tipo: fiscal.TipoCTe, Status: fiscal.StatusNormal, ValorTotal: valor}
}

func TestGerarResumoNotas(t *testing.T) {
	docs := []fiscal.Documento{nfe(100), cte(300)}

	r := relatorio.GerarResumoNotas(docs)

	assert.Equal(t, 2, r.TotalNotas)
	assert.Equal(t, 400.0, r.TotalValor)
	assert.Equal(t, 200.0, r.MediaValor)
	assert.Equal(t, 1, r.PorTipo.Venda, "só NF-e normal conta como venda")
	assert.Equal(t, 0, r.PorTipo.Cancelada)
	assert.Equal(t, 0, r.PorTipo.Devolucao)
	assert.Equal(t, 0, r.PorTipo.Complementar)
}

func TestGerarResumoNotas_IgnoraDesconhecidos(t *testing.T) {
	docs := []fiscal.Documento{
		nfe(100),
		{Tipo: fiscal.TipoDesconhecido, Status: fiscal.StatusNormal, ValorTotal: 999},
	}

	r := relatorio.GerarResumoNotas(docs)

	assert.Equal(t, 1, r.TotalNotas)
	assert.Equal(t, 100.0, r.TotalValor)
}

func TestGerarResumoNotas_Canceladas(t *testing.T) {
	cancelada := nfe(50)
	cancelada.Status = fiscal.StatusCancelada

	r := relatorio.GerarResumoNotas([]fiscal.Documento{nfe(100), cancelada})

	assert.Equal(t, 2, r.TotalNotas, "cancelada ainda entra na contagem e na soma")
	assert.Equal(t, 150.0, r.TotalValor)
	assert.Equal(t, 1, r.PorTipo.Venda)
	assert.Equal(t, 1, r.PorTipo.Cancelada)
}

func TestGerarResumoNotas_ColecaoVazia(t *testing.T) {
	r := relatorio.GerarResumoNotas(nil)

	assert.Equal(t, 0, r.TotalNotas)
	assert.Equal(t, 0.0, r.TotalValor)
	assert.Equal(t, 0.0, r.MediaValor, "média de zero notas é 0, nunca NaN")
}

func TestGerarResumoImpostos(t *testing.T) {
	doc := nfe(1000)
	doc.Impostos = fiscal.Impostos{ICMSTotal: 180, IPITotal: 50, PISTotal: 16.5, COFINSTotal: 76}

	cancelada := nfe(500)
	cancelada.Status = fiscal.StatusCancelada
	cancelada.Impostos = fiscal.Impostos{ICMSTotal: 90}

	frete := cte(300)

	r := relatorio.GerarResumoImpostos([]fiscal.Documento{doc, cancelada, frete})

	assert.Equal(t, 180.0, r.ICMSTotal, "cancelada e CT-e ficam de fora")
	assert.Equal(t, 50.0, r.IPITotal)
	assert.Equal(t, 16.5, r.PISTotal)
	assert.Equal(t, 76.0, r.COFINSTotal)
	assert.Equal(t, 322.5, r.TotalImpostos)
	assert.InDelta(t, 0.3225, r.PercentualSobreReceita, 1e-9)
}

func TestGerarResumoImpostos_SemReceita(t *testing.T) {
	r := relatorio.GerarResumoImpostos(nil)

	assert.Equal(t, 0.0, r.TotalImpostos)
	assert.Equal(t, 0.0, r.PercentualSobreReceita)
}

func TestGerarRankingClientes(t *testing.T) {
	a1 := nfe(100)
	a1.Cliente = fiscal.Cliente{Nome: "Alfa", CnpjCpf: "111"}
	a2 := nfe(200)
	a2.Cliente = fiscal.Cliente{Nome: "Alfa Ltda", CnpjCpf: "111"} // nome da primeira ocorrência vence
	b := cte(500)
	b.Cliente = fiscal.Cliente{Nome: "Beta", CnpjCpf: "222"}
	semDoc := nfe(999) // sem CNPJ/CPF fica de fora

	ranking := relatorio.GerarRankingClientes([]fiscal.Documento{a1, a2, b, semDoc})

	require.Len(t, ranking, 2)

	assert.Equal(t, "Beta", ranking[0].Nome)
	assert.Equal(t, 500.0, ranking[0].TotalValor)
	assert.Equal(t, 500.0, ranking[0].TicketMedio)

	assert.Equal(t, "Alfa", ranking[1].Nome)
	assert.Equal(t, "111", ranking[1].CnpjCpf)
	assert.Equal(t, 2, ranking[1].TotalNotas)
	assert.Equal(t, 300.0, ranking[1].TotalValor)
	assert.Equal(t, 150.0, ranking[1].TicketMedio)
}

func TestGerarRankingClientes_EmpateMantemOrdemDeChegada(t *testing.T) {
	a := nfe(100)
	a.Cliente = fiscal.Cliente{Nome: "Primeiro", CnpjCpf: "111"}
	b := nfe(100)
	b.Cliente = fiscal.Cliente{Nome: "Segundo", CnpjCpf: "222"}

	ranking := relatorio.GerarRankingClientes([]fiscal.Documento{a, b})

	require.Len(t, ranking, 2)
	assert.Equal(t, "Primeiro", ranking[0].Nome)
	assert.Equal(t, "Segundo", ranking[1].Nome)
}

func TestGerarRankingClientes_NomeVazioGanhaFallback(t *testing.T) {
	a := nfe(100)
	a.Cliente = fiscal.Cliente{CnpjCpf: "111"}

	ranking := relatorio.GerarRankingClientes([]fiscal.Documento{a})

	require.Len(t, ranking, 1)
	assert.Equal(t, "Cliente sem nome", ranking[0].Nome)
}

func TestGerarRankingProdutos(t *testing.T) {
	d1 := nfe(0)
	d1.Itens = []fiscal.Item{
		{Codigo: "P1", Nome: "Parafuso", Quantidade: 10, ValorTotal: 25},
		{Codigo: "P2", Nome: "Porca", Quantidade: 5, ValorTotal: 10},
	}
	d2 := nfe(0)
	d2.Itens = []fiscal.Item{
		{Codigo: "P1", Nome: "Parafuso zincado", Quantidade: 30, ValorTotal: 75},
		{Nome: "Sem código", Quantidade: 1, ValorTotal: 999},
	}

	ranking := relatorio.GerarRankingProdutos([]fiscal.Documento{d1, d2})

	require.Len(t, ranking, 2, "item sem código fica de fora")

	assert.Equal(t, "P1", ranking[0].Codigo)
	assert.Equal(t, "Parafuso", ranking[0].Nome)
	assert.Equal(t, 40.0, ranking[0].TotalQuantidade)
	assert.Equal(t, 100.0, ranking[0].TotalValor)
	assert.Equal(t, 2.5, ranking[0].PrecoMedio)

	assert.Equal(t, "P2", ranking[1].Codigo)
}

func TestGerarRankingProdutos_QuantidadeZero(t *testing.T) {
	d := nfe(0)
	d.Itens = []fiscal.Item{{Codigo: "P1", Nome: "Brinde", Quantidade: 0, ValorTotal: 0}}

	ranking := relatorio.GerarRankingProdutos([]fiscal.Documento{d})

	require.Len(t, ranking, 1)
	assert.Equal(t, 0.0, ranking[0].PrecoMedio, "quantidade zero não divide")
}

func TestGerarRankingProdutos_IgnoraCTe(t *testing.T) {
	d := cte(300)
	d.Itens = []fiscal.Item{{Codigo: "X", Quantidade: 1, ValorTotal: 1}}

	assert.Empty(t, relatorio.GerarRankingProdutos([]fiscal.Documento{d}))
}

func TestGerarResumoFretes(t *testing.T) {
	f1 := cte(300)
	f1.Transportadora = fiscal.Transportadora{Nome: "Gama", CnpjCpf: "333"}
	f2 := cte(100)
	f2.Transportadora = fiscal.Transportadora{Nome: "Gama", CnpjCpf: "333"}

	// NF-e com transportadora entra na tabela (conta serviço) mas não soma valor.
	venda := nfe(1000)
	venda.Transportadora = fiscal.Transportadora{Nome: "Gama", CnpjCpf: "333"}

	r := relatorio.GerarResumoFretes([]fiscal.Documento{f1, f2, venda})

	assert.Equal(t, 400.0, r.TotalFrete)
	assert.Equal(t, 2, r.TotalServicos)
	assert.Equal(t, 200.0, r.CustoMedio)

	require.Len(t, r.Transportadoras, 1)
	assert.Equal(t, "Gama", r.Transportadoras[0].Nome)
	assert.Equal(t, 3, r.Transportadoras[0].TotalServicos)
	assert.Equal(t, 400.0, r.Transportadoras[0].TotalValor)
}

func TestGerarResumoFretes_Vazio(t *testing.T) {
	r := relatorio.GerarResumoFretes(nil)

	assert.Equal(t, 0.0, r.TotalFrete)
	assert.Equal(t, 0.0, r.CustoMedio)
	assert.NotNil(t, r.Transportadoras)
	assert.Empty(t, r.Transportadoras)
}

func TestGerarNotasCanceladas(t *testing.T) {
	c := nfe(50)
	c.Status = fiscal.StatusCancelada
	c.Numero = "4655"
	c.Data = "2020-07-10T09:30:00-03:00"
	c.Motivo = "Erro de digitação"

	r := relatorio.GerarNotasCanceladas([]fiscal.Documento{nfe(100), c})

	assert.Equal(t, 1, r.Total)
	assert.Equal(t, 0.5, r.Percentual)

	require.Len(t, r.Notas, 1)
	assert.Equal(t, "4655", r.Notas[0].Numero)
	assert.Equal(t, "10/07/2020", r.Notas[0].Data)
	assert.Equal(t, 50.0, r.Notas[0].Valor)
	assert.Equal(t, "Erro de digitação", r.Notas[0].Motivo)
}

func TestGerarNotasCanceladas_Fallbacks(t *testing.T) {
	c := fiscal.Documento{Tipo: fiscal.TipoNFe, Status: fiscal.StatusCancelada}

	r := relatorio.GerarNotasCanceladas([]fiscal.Documento{c})

	require.Len(t, r.Notas, 1)
	assert.Equal(t, "Sem número", r.Notas[0].Numero)
	assert.Equal(t, "Sem data", r.Notas[0].Data)
	assert.Equal(t, "Motivo não informado", r.Notas[0].Motivo)
	assert.Equal(t, 1.0, r.Percentual)
}

func TestGerarNotasCanceladas_Vazio(t *testing.T) {
	r := relatorio.GerarNotasCanceladas(nil)

	assert.Equal(t, 0, r.Total)
	assert.Equal(t, 0.0, r.Percentual)
	assert.NotNil(t, r.Notas, "lista vazia serializa como [], não null")
}
