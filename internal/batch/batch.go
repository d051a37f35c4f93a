// Package batch analisa lotes de arquivos em paralelo, com limite de
// goroutines simultâneas.
package batch

import (
	"time"

	"golang.org/x/sync/errgroup"

	"fiscal-lens/internal/fiscal"
)

// LimiteParalelismoPadrao é o número de parses simultâneos quando o chamador
// não escolhe um limite. Qualquer valor >= 1 preserva a correção; 5 é só o
// ajuste que se mostrou bom na prática.
const LimiteParalelismoPadrao = 5

// Entrada é um par (conteúdo bruto, rótulo) vindo do colaborador de
// aquisição de arquivos.
type Entrada struct {
	NomeArquivo string
	Conteudo    []byte
}

// ParseTodos analisa todas as entradas e devolve um Documento por entrada,
// na mesma ordem. O parse de cada documento é independente e sem estado
// compartilhado (fora a alocação de IDs, que é segura para concorrência),
// então o lote roda em paralelo.
func ParseTodos(p *fiscal.Parser, entradas []Entrada, limite int) []fiscal.Documento {
	documentos, _ := ParseTodosMedindo(p, entradas, limite)
	return documentos
}

// ParseTodosMedindo é ParseTodos medindo o tempo de parse de cada entrada
// individualmente, dentro da própria goroutine. A fatia de durações é
// paralela à de documentos.
func ParseTodosMedindo(p *fiscal.Parser, entradas []Entrada, limite int) ([]fiscal.Documento, []time.Duration) {
	if limite < 1 {
		limite = LimiteParalelismoPadrao
	}

	documentos := make([]fiscal.Documento, len(entradas))
	duracoes := make([]time.Duration, len(entradas))

	var eg errgroup.Group
	eg.SetLimit(limite)

	for i, entrada := range entradas {
		i, entrada := i, entrada
		eg.Go(func() error {
			inicio := time.Now()
			documentos[i] = p.Parse(entrada.Conteudo, entrada.NomeArquivo)
			duracoes[i] = time.Since(inicio)
			return nil
		})
	}

	// O parser é total, nenhuma goroutine devolve erro.
	_ = eg.Wait()

	return documentos, duracoes
}
