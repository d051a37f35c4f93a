package relatorio

// Seams para os testes caixa-preta exercitarem o filtro com relógio fixo e os
// helpers de data sem abrir a API do pacote.
var (
	FiltrarPorPeriodoEm = filtrarPorPeriodoEm
	ParseDataDocumento  = parseDataDocumento
	FormatarData        = formatarData
)
