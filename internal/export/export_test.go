package export_test

import (
	"bytes"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/xuri/excelize/v2"

	"fiscal-lens/internal/export"
	"fiscal-lens/internal/fiscal"
)

func documentoExemplo() fiscal.Documento {
	return fiscal.Documento{
		ID:          "doc-1",
		NomeArquivo: "nota.xml",
		Tipo:        fiscal.TipoNFe,
		Chave:       "35200714200166000187550010000000046550010466",
		Numero:      "4655",
		Data:        "2020-07-10T09:30:00-03:00",
		ValorTotal:  25.00,
		Cliente: fiscal.Cliente{
			Nome:     "Comercial Alfa Ltda",
			CnpjCpf:  "12345678000199",
			Endereco: "Rua das Laranjeiras, 120, Centro, São Paulo, SP",
		},
		Transportadora: fiscal.Transportadora{Nome: "Transportes Beta", CnpjCpf: "99887766000155"},
		Itens: []fiscal.Item{
			{Codigo: "P001", Nome: "Parafuso sextavado", Quantidade: 10, Unidade: "UN", ValorUnitario: 2.5, ValorTotal: 25},
		},
		Impostos: fiscal.Impostos{ICMSTotal: 4.5, PISTotal: 0.41, COFINSTotal: 1.9},
		Status:   fiscal.StatusNormal,
	}
}

func TestGerarPDF(t *testing.T) {
	raw, err := export.GerarPDF(documentoExemplo())

	require.NoError(t, err)
	require.NotEmpty(t, raw)
	assert.True(t, bytes.HasPrefix(raw, []byte("%PDF")), "saída deve ser um PDF válido")
}

func TestGerarPDF_CTeSemItens(t *testing.T) {
	doc := documentoExemplo()
	doc.Tipo = fiscal.TipoCTe
	doc.Itens = nil

	raw, err := export.GerarPDF(doc)

	require.NoError(t, err)
	assert.NotEmpty(t, raw)
}

func TestGerarPlanilha(t *testing.T) {
	raw, err := export.GerarPlanilha(documentoExemplo())

	require.NoError(t, err)
	require.NotEmpty(t, raw)

	f, err := excelize.OpenReader(bytes.NewReader(raw))
	require.NoError(t, err)
	defer f.Close()

	abas := f.GetSheetList()
	assert.Contains(t, abas, "Informações")
	assert.Contains(t, abas, "Itens", "NF-e com itens ganha aba de itens")

	numero, err := f.GetCellValue("Informações", "B2")
	require.NoError(t, err)
	assert.NotEmpty(t, numero)
}

func TestGerarPlanilha_SemItens(t *testing.T) {
	doc := documentoExemplo()
	doc.Itens = nil

	raw, err := export.GerarPlanilha(doc)
	require.NoError(t, err)

	f, err := excelize.OpenReader(bytes.NewReader(raw))
	require.NoError(t, err)
	defer f.Close()

	assert.NotContains(t, f.GetSheetList(), "Itens")
}
