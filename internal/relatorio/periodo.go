package relatorio

import (
	"strings"
	"time"

	"fiscal-lens/internal/fiscal"
)

// Periodo é o seletor de janela temporal do filtro.
type Periodo string

const (
	PeriodoHoje         Periodo = "hoje"
	PeriodoUltimos7Dias Periodo = "7dias"
	PeriodoMesAtual     Periodo = "mes"
	PeriodoTodos        Periodo = "todos"
)

// FiltrarPorPeriodo restringe a coleção à janela escolhida, com limites no
// calendário local: "hoje" >= início do dia corrente, "7dias" >= início do
// dia corrente menos 7 dias, "mes" >= primeiro dia do mês corrente.
// PeriodoTodos não filtra nada.
//
// Documentos sem data ou com data que não parseia ficam fora de qualquer
// seletor, exceto PeriodoTodos.
func FiltrarPorPeriodo(documentos []fiscal.Documento, p Periodo) []fiscal.Documento {
	return filtrarPorPeriodoEm(documentos, p, time.Now())
}

func filtrarPorPeriodoEm(documentos []fiscal.Documento, p Periodo, agora time.Time) []fiscal.Documento {
	if p == PeriodoTodos {
		return documentos
	}

	hoje := time.Date(agora.Year(), agora.Month(), agora.Day(), 0, 0, 0, 0, agora.Location())

	var limite time.Time
	switch p {
	case PeriodoHoje:
		limite = hoje
	case PeriodoUltimos7Dias:
		limite = hoje.AddDate(0, 0, -7)
	case PeriodoMesAtual:
		limite = time.Date(agora.Year(), agora.Month(), 1, 0, 0, 0, 0, agora.Location())
	default:
		return documentos
	}

	filtrados := make([]fiscal.Documento, 0, len(documentos))
	for _, doc := range documentos {
		data, ok := parseDataDocumento(doc.Data)
		if !ok {
			continue
		}
		if !data.Before(limite) {
			filtrados = append(filtrados, doc)
		}
	}

	return filtrados
}

// layoutsData são os formatos de dhEmi/dEmi observados nas versões do padrão.
var layoutsData = []string{
	time.RFC3339,
	"2006-01-02T15:04:05",
	"2006-01-02",
}

func parseDataDocumento(s string) (time.Time, bool) {
	s = strings.TrimSpace(s)
	if s == "" {
		return time.Time{}, false
	}
	for _, layout := range layoutsData {
		if t, err := time.ParseInLocation(layout, s, time.Local); err == nil {
			return t, true
		}
	}
	return time.Time{}, false
}

// formatarData devolve a data no formato brasileiro; se não parsear,
// devolve a string original.
func formatarData(s string) string {
	t, ok := parseDataDocumento(s)
	if !ok {
		return s
	}
	return t.Format("02/01/2006")
}
