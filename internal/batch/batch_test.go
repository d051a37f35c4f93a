package batch_test

import (
	"fmt"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"fiscal-lens/internal/batch"
	"fiscal-lens/internal/fiscal"
)

func TestParseTodos_PreservaOrdem(t *testing.T) {
	const n = 50

	entradas := make([]batch.Entrada, 0, n)
	for i := 0; i < n; i++ {
		xml := fmt.Sprintf(`<NFe><infNFe Id="NFe%d"><ide><nNF>%d</nNF></ide></infNFe></NFe>`, i, i)
		entradas = append(entradas, batch.Entrada{
			NomeArquivo: fmt.Sprintf("nota-%03d.xml", i),
			Conteudo:    []byte(xml),
		})
	}

	docs := batch.ParseTodos(fiscal.NewParser(nil), entradas, 8)

	require.Len(t, docs, n)
	for i, doc := range docs {
		assert.Equal(t, entradas[i].NomeArquivo, doc.NomeArquivo, "posição %d", i)
		assert.Equal(t, fmt.Sprintf("%d", i), doc.Numero)
	}
}

func TestParseTodos_IDsUnicos(t *testing.T) {
	const n = 100

	entradas := make([]batch.Entrada, n)
	for i := range entradas {
		entradas[i] = batch.Entrada{
			NomeArquivo: "igual.xml",
			Conteudo:    []byte(`<NFe><infNFe Id="NFe1"><ide><nNF>1</nNF></ide></infNFe></NFe>`),
		}
	}

	docs := batch.ParseTodos(fiscal.NewParser(nil), entradas, 10)

	vistos := make(map[string]bool, n)
	for _, doc := range docs {
		require.NotEmpty(t, doc.ID)
		require.False(t, vistos[doc.ID], "ID repetido no lote")
		vistos[doc.ID] = true
	}
}

func TestParseTodos_LimiteInvalidoUsaPadrao(t *testing.T) {
	entradas := []batch.Entrada{
		{NomeArquivo: "a.xml", Conteudo: []byte(`<NFe><infNFe Id="NFe1"><ide><nNF>1</nNF></ide></infNFe></NFe>`)},
		{NomeArquivo: "b.xml", Conteudo: []byte(`lixo`)},
	}

	for _, limite := range []int{0, -3} {
		docs := batch.ParseTodos(fiscal.NewParser(nil), entradas, limite)
		require.Len(t, docs, 2)
		assert.Equal(t, fiscal.TipoNFe, docs[0].Tipo)
		assert.Equal(t, fiscal.TipoDesconhecido, docs[1].Tipo)
	}
}

func TestParseTodos_LoteVazio(t *testing.T) {
	docs := batch.ParseTodos(fiscal.NewParser(nil), nil, 5)
	assert.Empty(t, docs)
}

func TestParseTodosMedindo_DuracaoPorEntrada(t *testing.T) {
	entradas := []batch.Entrada{
		{NomeArquivo: "a.xml", Conteudo: []byte(`<NFe><infNFe Id="NFe1"><ide><nNF>1</nNF></ide></infNFe></NFe>`)},
		{NomeArquivo: "b.xml", Conteudo: []byte(`<CTe><infCte Id="CTe2"><ide><nCT>2</nCT></ide></infCte></CTe>`)},
		{NomeArquivo: "c.xml", Conteudo: []byte(`lixo`)},
	}

	docs, duracoes := batch.ParseTodosMedindo(fiscal.NewParser(nil), entradas, 2)

	require.Len(t, docs, len(entradas))
	require.Len(t, duracoes, len(entradas), "uma duração por entrada, na mesma ordem")
	for i, d := range duracoes {
		assert.GreaterOrEqual(t, d, time.Duration(0), "posição %d", i)
	}
	assert.Equal(t, "a.xml", docs[0].NomeArquivo)
	assert.Equal(t, fiscal.TipoCTe, docs[1].Tipo)
	assert.Equal(t, fiscal.TipoDesconhecido, docs[2].Tipo)
}
