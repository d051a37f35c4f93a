package export

import (
	"fmt"

	"github.com/xuri/excelize/v2"

	"fiscal-lens/internal/fiscal"
)

const (
	abaInformacoes = "Informações"
	abaItens       = "Itens"
)

// GerarPlanilha monta a planilha XLSX de um documento: uma aba "Informações"
// com pares rótulo/valor e, para NFe com itens, uma aba "Itens".
func GerarPlanilha(doc fiscal.Documento) ([]byte, error) {
	f := excelize.NewFile()
	defer f.Close()

	if err := f.SetSheetName("Sheet1", abaInformacoes); err != nil {
		return nil, fmt.Errorf("erro renomeando aba: %w", err)
	}

	linhas := [][]interface{}{
		{"INFORMAÇÕES DO DOCUMENTO", ""},
		{"Tipo", string(doc.Tipo)},
		{"Número", valorOuNA(doc.Numero)},
		{"Chave", valorOuNA(doc.Chave)},
		{"Data de Emissão", valorOuNA(doc.Data)},
		{"Valor Total", doc.ValorTotal},
		{"Status", string(doc.Status)},
		{"Motivo", doc.Motivo},
		{"", ""},
		{"CLIENTE/DESTINATÁRIO", ""},
		{"Nome", valorOuNA(doc.Cliente.Nome)},
		{"CNPJ/CPF", valorOuNA(doc.Cliente.CnpjCpf)},
		{"Endereço", valorOuNA(doc.Cliente.Endereco)},
		{"", ""},
		{"TRANSPORTADORA", ""},
		{"Nome", valorOuNA(doc.Transportadora.Nome)},
		{"CNPJ/CPF", valorOuNA(doc.Transportadora.CnpjCpf)},
		{"", ""},
		{"IMPOSTOS", ""},
		{"ICMS Total", doc.Impostos.ICMSTotal},
		{"IPI Total", doc.Impostos.IPITotal},
		{"PIS Total", doc.Impostos.PISTotal},
		{"COFINS Total", doc.Impostos.COFINSTotal},
		{"Total de Impostos", doc.Impostos.ICMSTotal + doc.Impostos.IPITotal +
			doc.Impostos.PISTotal + doc.Impostos.COFINSTotal},
	}

	if err := escreverLinhas(f, abaInformacoes, linhas); err != nil {
		return nil, err
	}

	if doc.Tipo == fiscal.TipoNFe && len(doc.Itens) > 0 {
		if _, err := f.NewSheet(abaItens); err != nil {
			return nil, fmt.Errorf("erro criando aba de itens: %w", err)
		}

		itens := [][]interface{}{
			{"Código", "Nome do Produto", "Quantidade", "Unidade", "Valor Unitário", "Valor Total", "ICMS", "IPI", "PIS", "COFINS"},
		}
		for _, item := range doc.Itens {
			itens = append(itens, []interface{}{
				item.Codigo,
				item.Nome,
				item.Quantidade,
				item.Unidade,
				item.ValorUnitario,
				item.ValorTotal,
				item.Impostos.ICMS,
				item.Impostos.IPI,
				item.Impostos.PIS,
				item.Impostos.COFINS,
			})
		}

		if err := escreverLinhas(f, abaItens, itens); err != nil {
			return nil, err
		}
	}

	buf, err := f.WriteToBuffer()
	if err != nil {
		return nil, fmt.Errorf("erro serializando planilha de %s: %w", doc.NomeArquivo, err)
	}
	return buf.Bytes(), nil
}

func escreverLinhas(f *excelize.File, aba string, linhas [][]interface{}) error {
	for i, linha := range linhas {
		celula, err := excelize.CoordinatesToCellName(1, i+1)
		if err != nil {
			return fmt.Errorf("erro montando coordenada da linha %d: %w", i+1, err)
		}
		if err := f.SetSheetRow(aba, celula, &linha); err != nil {
			return fmt.Errorf("erro escrevendo linha %d da aba %s: %w", i+1, aba, err)
		}
	}
	return nil
}
