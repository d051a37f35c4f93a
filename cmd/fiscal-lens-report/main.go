package main

import (
	"encoding/json"
	"flag"
	"fmt"
	"log"
	"os"
	"path/filepath"
	"strings"

	"fiscal-lens/internal/batch"
	"fiscal-lens/internal/fiscal"
	"fiscal-lens/internal/relatorio"
)

// fiscal-lens-report: modo one-shot. Lê todos os XMLs de um diretório,
// parseia em paralelo, aplica o filtro de período e imprime os seis
// relatórios agregados em JSON no stdout.
func main() {
	dir := flag.String("dir", ".", "diretório com os arquivos XML do lote")
	periodo := flag.String("periodo", "todos", "período: hoje | 7dias | mes | todos")
	paralelismo := flag.Int("paralelismo", batch.LimiteParalelismoPadrao, "número máximo de parses simultâneos")
	flag.Parse()

	p, ok := parsePeriodo(*periodo)
	if !ok {
		log.Fatalf("período inválido: %q (use hoje, 7dias, mes ou todos)", *periodo)
	}

	entradas, err := lerEntradas(*dir)
	if err != nil {
		log.Fatalf("erro lendo diretório %s: %v", *dir, err)
	}
	if len(entradas) == 0 {
		log.Fatalf("nenhum arquivo .xml encontrado em %s", *dir)
	}

	parser := fiscal.NewParser(nil)
	documentos := batch.ParseTodos(parser, entradas, *paralelismo)
	documentos = relatorio.FiltrarPorPeriodo(documentos, p)

	saida := map[string]interface{}{
		"periodo":         string(p),
		"totalDocumentos": len(documentos),
		"resumo":          relatorio.GerarResumoNotas(documentos),
		"impostos":        relatorio.GerarResumoImpostos(documentos),
		"clientes":        relatorio.GerarRankingClientes(documentos),
		"produtos":        relatorio.GerarRankingProdutos(documentos),
		"fretes":          relatorio.GerarResumoFretes(documentos),
		"canceladas":      relatorio.GerarNotasCanceladas(documentos),
	}

	enc := json.NewEncoder(os.Stdout)
	enc.SetIndent("", "  ")
	if err := enc.Encode(saida); err != nil {
		log.Fatalf("erro serializando relatórios: %v", err)
	}
}

func parsePeriodo(s string) (relatorio.Periodo, bool) {
	switch relatorio.Periodo(strings.ToLower(strings.TrimSpace(s))) {
	case relatorio.PeriodoHoje:
		return relatorio.PeriodoHoje, true
	case relatorio.PeriodoUltimos7Dias:
		return relatorio.PeriodoUltimos7Dias, true
	case relatorio.PeriodoMesAtual:
		return relatorio.PeriodoMesAtual, true
	case relatorio.PeriodoTodos:
		return relatorio.PeriodoTodos, true
	default:
		return "", false
	}
}

func lerEntradas(dir string) ([]batch.Entrada, error) {
	entries, err := os.ReadDir(dir)
	if err != nil {
		return nil, err
	}

	var entradas []batch.Entrada
	for _, entry := range entries {
		if entry.IsDir() || !strings.HasSuffix(strings.ToLower(entry.Name()), ".xml") {
			continue
		}

		path := filepath.Join(dir, entry.Name())
		conteudo, err := os.ReadFile(path)
		if err != nil {
			return nil, fmt.Errorf("erro lendo %s: %w", path, err)
		}

		entradas = append(entradas, batch.Entrada{
			NomeArquivo: entry.Name(),
			Conteudo:    conteudo,
		})
	}

	return entradas, nil
}
