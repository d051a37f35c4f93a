// Package export materializa um Documento canônico em formatos de saída
// (PDF e planilha). O documento chega aqui já em forma semântica final;
// formatação de exibição é responsabilidade exclusiva deste pacote.
package export

import (
	"fmt"
	"strings"

	maroto "github.com/johnfercher/maroto/v2"
	"github.com/johnfercher/maroto/v2/pkg/components/line"
	"github.com/johnfercher/maroto/v2/pkg/components/row"
	"github.com/johnfercher/maroto/v2/pkg/components/text"
	"github.com/johnfercher/maroto/v2/pkg/config"
	"github.com/johnfercher/maroto/v2/pkg/consts/align"
	"github.com/johnfercher/maroto/v2/pkg/consts/fontstyle"
	"github.com/johnfercher/maroto/v2/pkg/consts/pagesize"
	"github.com/johnfercher/maroto/v2/pkg/core"
	"github.com/johnfercher/maroto/v2/pkg/props"

	"fiscal-lens/internal/fiscal"
)

var (
	corTitulo = &props.Color{Red: 0, Green: 70, Blue: 127}
	corCinza  = &props.Color{Red: 100, Green: 100, Blue: 100}
)

// GerarPDF monta a representação em PDF de um documento (DANFE-like para
// NFe, DACTE-like para CTe) e devolve os bytes do arquivo.
func GerarPDF(doc fiscal.Documento) ([]byte, error) {
	cfg := config.NewBuilder().
		WithPageSize(pagesize.A4).
		WithLeftMargin(10).WithRightMargin(10).
		WithTopMargin(10).WithBottomMargin(10).
		WithDefaultFont(&props.Font{Family: "helvetica", Size: 9}).
		Build()

	m := maroto.New(cfg)

	m.AddRows(tituloRow(doc))
	m.AddRows(line.NewRow(2, props.Line{Color: corTitulo, Thickness: 0.5}))

	m.AddRows(secaoRow("IDENTIFICAÇÃO DO DOCUMENTO"))
	m.AddRows(
		campoRow("Chave de Acesso", valorOuNA(doc.Chave)),
		campoRow("Número", valorOuNA(doc.Numero)),
		campoRow("Data de Emissão", valorOuNA(doc.Data)),
		campoRow("Valor Total", formatarMoeda(doc.ValorTotal)),
		campoRow("Status", string(doc.Status)),
	)
	if doc.Motivo != "" {
		m.AddRows(campoRow("Motivo", doc.Motivo))
	}

	m.AddRows(secaoRow("CLIENTE/DESTINATÁRIO"))
	m.AddRows(
		campoRow("Nome", valorOuNA(doc.Cliente.Nome)),
		campoRow("CNPJ/CPF", valorOuNA(doc.Cliente.CnpjCpf)),
		campoRow("Endereço", valorOuNA(doc.Cliente.Endereco)),
	)

	m.AddRows(secaoRow("TRANSPORTADORA"))
	m.AddRows(
		campoRow("Nome", valorOuNA(doc.Transportadora.Nome)),
		campoRow("CNPJ/CPF", valorOuNA(doc.Transportadora.CnpjCpf)),
	)

	if doc.Tipo == fiscal.TipoNFe && len(doc.Itens) > 0 {
		m.AddRows(secaoRow("ITENS"))
		m.AddRows(itensCabecalhoRow())
		for _, item := range doc.Itens {
			m.AddRows(itemRow(item))
		}
	}

	m.AddRows(secaoRow("IMPOSTOS"))
	m.AddRows(
		campoRow("ICMS Total", formatarMoeda(doc.Impostos.ICMSTotal)),
		campoRow("IPI Total", formatarMoeda(doc.Impostos.IPITotal)),
		campoRow("PIS Total", formatarMoeda(doc.Impostos.PISTotal)),
		campoRow("COFINS Total", formatarMoeda(doc.Impostos.COFINSTotal)),
	)

	gerado, err := m.Generate()
	if err != nil {
		return nil, fmt.Errorf("erro gerando PDF de %s: %w", doc.NomeArquivo, err)
	}
	return gerado.GetBytes(), nil
}

func tituloRow(doc fiscal.Documento) core.Row {
	titulo := "DANFE - DOCUMENTO AUXILIAR DA NOTA FISCAL ELETRÔNICA"
	if doc.Tipo == fiscal.TipoCTe {
		titulo = "DACTE - DOCUMENTO AUXILIAR DO CONHECIMENTO DE TRANSPORTE ELETRÔNICO"
	}
	return row.New(10).Add(
		text.NewCol(12, titulo, props.Text{
			Style: fontstyle.Bold, Size: 11, Align: align.Center, Color: corTitulo,
		}),
	)
}

func secaoRow(nome string) core.Row {
	return row.New(8).Add(
		text.NewCol(12, nome, props.Text{
			Style: fontstyle.Bold, Size: 9, Top: 2, Color: corTitulo,
		}),
	)
}

func campoRow(rotulo, valor string) core.Row {
	return row.New(5).Add(
		text.NewCol(3, rotulo+":", props.Text{Style: fontstyle.Bold, Size: 8}),
		text.NewCol(9, valor, props.Text{Size: 8}),
	)
}

func itensCabecalhoRow() core.Row {
	estilo := props.Text{Style: fontstyle.Bold, Size: 7, Color: corCinza}
	return row.New(5).Add(
		text.NewCol(2, "Código", estilo),
		text.NewCol(4, "Produto", estilo),
		text.NewCol(2, "Qtd x Un", estilo),
		text.NewCol(2, "V. Unitário", estilo),
		text.NewCol(2, "V. Total", estilo),
	)
}

func itemRow(item fiscal.Item) core.Row {
	estilo := props.Text{Size: 7}
	return row.New(4).Add(
		text.NewCol(2, item.Codigo, estilo),
		text.NewCol(4, item.Nome, estilo),
		text.NewCol(2, fmt.Sprintf("%g %s", item.Quantidade, item.Unidade), estilo),
		text.NewCol(2, formatarMoeda(item.ValorUnitario), estilo),
		text.NewCol(2, formatarMoeda(item.ValorTotal), estilo),
	)
}

func valorOuNA(s string) string {
	if strings.TrimSpace(s) == "" {
		return "N/A"
	}
	return s
}

// formatarMoeda usa o formato brasileiro (vírgula decimal).
func formatarMoeda(v float64) string {
	return "R$ " + strings.ReplaceAll(fmt.Sprintf("%.2f", v), ".", ",")
}
