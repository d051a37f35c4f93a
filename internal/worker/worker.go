// Package worker consome arquivos fiscais (via fila RabbitMQ ou polling de
// diretório), converte cada um no Documento canônico e mantém a coleção do
// lote em memória. A cada arquivo processado os seis relatórios agregados
// são regenerados no diretório de relatórios, junto com os exports PDF/XLSX
// por documento.
package worker

import (
	"archive/zip"
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"os"
	"path/filepath"
	"strings"
	"sync"
	"time"

	"fiscal-lens/internal/batch"
	"fiscal-lens/internal/config"
	"fiscal-lens/internal/export"
	"fiscal-lens/internal/fiscal"
	"fiscal-lens/internal/metrics"
	"fiscal-lens/internal/queue"
	"fiscal-lens/internal/relatorio"
)

type Worker struct {
	cfg      *config.Config
	parser   *fiscal.Parser
	interval time.Duration

	rmq *queue.RabbitMQ

	mu         sync.Mutex
	documentos []fiscal.Documento
}

func New(cfg *config.Config) *Worker {
	w := &Worker{
		cfg:      cfg,
		parser:   fiscal.NewParser(nil),
		interval: 2 * time.Second,
	}

	if strings.EqualFold(cfg.QueueBackend, "rabbitmq") {
		rmq, err := queue.NewRabbitMQ(cfg.RabbitMQURL, cfg.RabbitMQQueue)
		if err != nil {
			slog.Error("erro criando cliente RabbitMQ no worker; caindo para modo polling",
				"err", err,
			)
		} else {
			w.rmq = rmq
			slog.Info("RabbitMQ habilitado no worker",
				"url", cfg.RabbitMQURL,
				"queue", cfg.RabbitMQQueue,
			)
		}
	} else {
		slog.Info("fila RabbitMQ desabilitada no worker (FISCAL_LENS_QUEUE_BACKEND != rabbitmq)")
	}

	return w
}

func (w *Worker) Run(ctx context.Context) error {
	// garante diretórios
	dirs := []string{
		w.cfg.ProcessingDir,
		w.cfg.ProcessedDir,
		w.cfg.IgnoredDir,
		w.cfg.ReportsDir,
	}
	for _, d := range dirs {
		if err := os.MkdirAll(d, 0o755); err != nil {
			return err
		}
	}

	if w.rmq != nil {
		defer w.rmq.Close()
		slog.Info("worker rodando em modo fila (RabbitMQ)",
			"processing_dir", w.cfg.ProcessingDir,
		)
		return w.rmq.ConsumeJobs(ctx, w.handleJob)
	}

	slog.Info("worker rodando em modo polling de diretório",
		"processing_dir", w.cfg.ProcessingDir,
	)

	ticker := time.NewTicker(w.interval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			slog.Info("contexto cancelado, encerrando worker")
			return ctx.Err()
		case <-ticker.C:
			w.processProcessingFolder()
		}
	}
}

// ----------------------------------------------------------------------
// MODO FILA (RabbitMQ)
// ----------------------------------------------------------------------

func (w *Worker) handleJob(job queue.Job) error {
	info, err := os.Stat(job.Path)
	if err != nil {
		if errors.Is(err, os.ErrNotExist) {
			slog.Warn("arquivo do job não existe mais, ignorando",
				"path", job.Path,
				"filename", job.Filename,
				"kind", job.Kind,
			)
			return nil
		}
		slog.Error("erro ao stat arquivo do job",
			"path", job.Path,
			"err", err,
		)
		return nil
	}
	if info.IsDir() {
		return nil
	}

	switch strings.ToLower(job.Kind) {
	case "xml":
		w.processXML(job.Path, job.Filename)
	case "zip":
		w.processZIP(job.Path, job.Filename)
	default:
		slog.Warn("tipo de job desconhecido",
			"path", job.Path,
			"filename", job.Filename,
			"kind", job.Kind,
		)
		return nil
	}

	w.regenerarRelatorios()
	return nil
}

// ----------------------------------------------------------------------
// MODO POLLING
// ----------------------------------------------------------------------

func (w *Worker) processProcessingFolder() {
	entries, err := os.ReadDir(w.cfg.ProcessingDir)
	if err != nil {
		slog.Error("erro lendo diretório processing", "dir", w.cfg.ProcessingDir, "err", err)
		return
	}

	var processouAlgo bool

	// XMLs soltos do tick inteiro viram um lote só, parseado em paralelo
	// sob o limite do pool.
	var entradas []batch.Entrada
	var caminhos []string

	for _, entry := range entries {
		if entry.IsDir() {
			continue
		}

		srcPath := filepath.Join(w.cfg.ProcessingDir, entry.Name())
		ext := strings.ToLower(filepath.Ext(entry.Name()))

		switch ext {
		case ".xml":
			conteudo, err := os.ReadFile(srcPath)
			if err != nil {
				slog.Warn("arquivo em processing não está mais acessível, ignorando",
					"path", srcPath,
					"err", err,
				)
				continue
			}
			entradas = append(entradas, batch.Entrada{
				NomeArquivo: entry.Name(),
				Conteudo:    conteudo,
			})
			caminhos = append(caminhos, srcPath)

		case ".zip":
			w.processZIP(srcPath, entry.Name())
			processouAlgo = true

		default:
			slog.Info("extensão não tratada em processing; movendo para ignored",
				"path", srcPath,
				"ext", ext,
			)
			w.moveToIgnored(srcPath, entry.Name())
		}
	}

	if len(entradas) > 0 {
		documentos, duracoes := batch.ParseTodosMedindo(w.parser, entradas, w.cfg.WorkerPoolSize)
		for i, doc := range documentos {
			w.registrarDocumento(doc, "xml", duracoes[i])
			w.arquivarOrigem(caminhos[i], entradas[i].NomeArquivo, doc)
		}
		processouAlgo = true
	}

	if processouAlgo {
		w.regenerarRelatorios()
	}
}

// ----------------------------------------------------------------------
// Processamento por arquivo
// ----------------------------------------------------------------------

func (w *Worker) processXML(srcPath, filename string) {
	inicio := time.Now()

	conteudo, err := os.ReadFile(srcPath)
	if err != nil {
		slog.Error("erro lendo XML", "path", srcPath, "err", err)
		return
	}

	doc := w.parser.Parse(conteudo, filename)
	w.registrarDocumento(doc, "xml", time.Since(inicio))
	w.arquivarOrigem(srcPath, filename, doc)
}

func (w *Worker) processZIP(srcPath, filename string) {
	slog.Info("ZIP identificado, iniciando extração e processamento",
		"path", srcPath,
	)

	conteudo, err := os.ReadFile(srcPath)
	if err != nil {
		slog.Error("erro lendo ZIP", "path", srcPath, "err", err)
		return
	}

	zr, err := zip.NewReader(bytes.NewReader(conteudo), int64(len(conteudo)))
	if err != nil {
		slog.Error("erro abrindo ZIP", "path", srcPath, "err", err)
		w.moveToIgnored(srcPath, filename)
		return
	}

	var entradas []batch.Entrada

	for _, f := range zr.File {
		if f.FileInfo().IsDir() {
			continue
		}
		if !strings.HasSuffix(strings.ToLower(f.Name), ".xml") {
			slog.Info("arquivo dentro do ZIP ignorado (não é XML)",
				"zip", srcPath,
				"inner_name", f.Name,
			)
			continue
		}

		rc, err := f.Open()
		if err != nil {
			slog.Error("erro abrindo entrada do ZIP",
				"zip", srcPath,
				"inner_name", f.Name,
				"err", err,
			)
			continue
		}
		inner, err := io.ReadAll(rc)
		rc.Close()
		if err != nil {
			slog.Error("erro lendo entrada do ZIP",
				"zip", srcPath,
				"inner_name", f.Name,
				"err", err,
			)
			continue
		}

		entradas = append(entradas, batch.Entrada{
			NomeArquivo: filepath.Base(f.Name),
			Conteudo:    inner,
		})
	}

	if len(entradas) == 0 {
		slog.Warn("ZIP sem XMLs aproveitáveis", "path", srcPath)
		w.moveToIgnored(srcPath, filename)
		return
	}

	documentos, duracoes := batch.ParseTodosMedindo(w.parser, entradas, w.cfg.WorkerPoolSize)

	var desconhecidos int
	for i, doc := range documentos {
		w.registrarDocumento(doc, "zip", duracoes[i])
		if doc.Tipo == fiscal.TipoDesconhecido {
			desconhecidos++
		}
	}

	w.moveToProcessed(srcPath, filename)

	slog.Info("processamento de ZIP concluído",
		"zip", srcPath,
		"xml_total", len(entradas),
		"desconhecidos", desconhecidos,
	)
}

// registrarDocumento adiciona o documento à coleção do lote e emite
// métricas e exports. O parser é total, então todo arquivo vira documento –
// inclusive os de tipo Desconhecido, que entram na coleção (contam no
// denominador dos percentuais) mas não geram export.
func (w *Worker) registrarDocumento(doc fiscal.Documento, origem string, dur time.Duration) {
	metrics.ObserveDocumento(string(doc.Tipo), string(doc.Status), origem, dur)

	w.mu.Lock()
	w.documentos = append(w.documentos, doc)
	total := len(w.documentos)
	w.mu.Unlock()

	slog.Info("documento registrado no lote",
		"file", doc.NomeArquivo,
		"tipo", doc.Tipo,
		"status", doc.Status,
		"chave", doc.Chave,
		"valor_total", doc.ValorTotal,
		"itens", len(doc.Itens),
		"total_lote", total,
	)

	if doc.Tipo == fiscal.TipoDesconhecido {
		if doc.Motivo != "" {
			slog.Warn("documento não reconhecido",
				"file", doc.NomeArquivo,
				"motivo", doc.Motivo,
			)
		}
		return
	}

	w.exportarDocumento(doc)
}

// arquivarOrigem move o arquivo de origem: reconhecido vai para processed,
// Desconhecido vai para ignored.
func (w *Worker) arquivarOrigem(srcPath, filename string, doc fiscal.Documento) {
	if doc.Tipo == fiscal.TipoDesconhecido {
		w.moveToIgnored(srcPath, filename)
		return
	}
	w.moveToProcessed(srcPath, filename)
}

// ----------------------------------------------------------------------
// Exports e relatórios
// ----------------------------------------------------------------------

func (w *Worker) exportarDocumento(doc fiscal.Documento) {
	base := strings.TrimSuffix(doc.NomeArquivo, filepath.Ext(doc.NomeArquivo))
	if base == "" {
		base = doc.ID
	}

	if pdf, err := export.GerarPDF(doc); err != nil {
		slog.Error("erro gerando PDF do documento", "file", doc.NomeArquivo, "err", err)
	} else if err := os.WriteFile(filepath.Join(w.cfg.ReportsDir, base+".pdf"), pdf, 0o644); err != nil {
		slog.Error("erro gravando PDF do documento", "file", doc.NomeArquivo, "err", err)
	}

	if planilha, err := export.GerarPlanilha(doc); err != nil {
		slog.Error("erro gerando planilha do documento", "file", doc.NomeArquivo, "err", err)
	} else if err := os.WriteFile(filepath.Join(w.cfg.ReportsDir, base+".xlsx"), planilha, 0o644); err != nil {
		slog.Error("erro gravando planilha do documento", "file", doc.NomeArquivo, "err", err)
	}
}

// conjuntoRelatorios é o snapshot agregado gravado em relatorios.json.
type conjuntoRelatorios struct {
	GeradoEm        time.Time                  `json:"geradoEm"`
	TotalDocumentos int                        `json:"totalDocumentos"`
	Resumo          relatorio.ResumoNotas      `json:"resumo"`
	Impostos        relatorio.ResumoImpostos   `json:"impostos"`
	Clientes        []relatorio.ClienteRanking `json:"clientes"`
	Produtos        []relatorio.ProdutoRanking `json:"produtos"`
	Fretes          relatorio.FreteResumo      `json:"fretes"`
	Canceladas      relatorio.NotasCanceladas  `json:"canceladas"`
}

func (w *Worker) regenerarRelatorios() {
	w.mu.Lock()
	snapshot := make([]fiscal.Documento, len(w.documentos))
	copy(snapshot, w.documentos)
	w.mu.Unlock()

	conjunto := conjuntoRelatorios{
		GeradoEm:        time.Now(),
		TotalDocumentos: len(snapshot),
		Resumo:          relatorio.GerarResumoNotas(snapshot),
		Impostos:        relatorio.GerarResumoImpostos(snapshot),
		Clientes:        relatorio.GerarRankingClientes(snapshot),
		Produtos:        relatorio.GerarRankingProdutos(snapshot),
		Fretes:          relatorio.GerarResumoFretes(snapshot),
		Canceladas:      relatorio.GerarNotasCanceladas(snapshot),
	}

	data, err := json.MarshalIndent(conjunto, "", "  ")
	if err != nil {
		slog.Error("erro serializando relatórios agregados", "err", err)
		return
	}

	destino := filepath.Join(w.cfg.ReportsDir, "relatorios.json")
	if err := os.WriteFile(destino, data, 0o644); err != nil {
		slog.Error("erro gravando relatórios agregados", "path", destino, "err", err)
		return
	}

	slog.Info("relatórios agregados regenerados",
		"path", destino,
		"documentos", len(snapshot),
	)
}

// ----------------------------------------------------------------------
// Movimentação de arquivos
// ----------------------------------------------------------------------

func (w *Worker) moveToProcessed(srcPath, filename string) {
	w.moveTo(srcPath, filepath.Join(w.cfg.ProcessedDir, filename), "processed")
}

func (w *Worker) moveToIgnored(srcPath, filename string) {
	w.moveTo(srcPath, filepath.Join(w.cfg.IgnoredDir, filename), "ignored")
}

func (w *Worker) moveTo(srcPath, destPath, rotulo string) {
	if err := os.Rename(srcPath, destPath); err != nil {
		slog.Error(fmt.Sprintf("erro movendo arquivo para %s", rotulo),
			"src", srcPath,
			"dest", destPath,
			"err", err,
		)
		return
	}
	slog.Info(fmt.Sprintf("arquivo movido para %s", rotulo),
		"src", srcPath,
		"dest", destPath,
	)
}
