package metrics

import (
	"errors"
	"log/slog"
	"net/http"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

var (
	documentosProcessados = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "fiscal_documentos_processados_total",
			Help: "Documentos fiscais processados, por tipo (NFe/CTe/Desconhecido), status e origem (xml/zip).",
		},
		[]string{"tipo", "status", "origem"},
	)

	documentoDuracao = prometheus.NewHistogramVec(
		prometheus.HistogramOpts{
			Name:    "fiscal_documento_process_duration_seconds",
			Help:    "Tempo de processamento de cada documento em segundos.",
			Buckets: prometheus.DefBuckets,
		},
		[]string{"tipo", "origem"},
	)
)

// Init registra as métricas no registry global.
func Init() {
	prometheus.MustRegister(documentosProcessados, documentoDuracao)
}

// ObserveDocumento registra o resultado de um documento processado.
func ObserveDocumento(tipo, status, origem string, d time.Duration) {
	documentosProcessados.With(prometheus.Labels{
		"tipo":   tipo,
		"status": status,
		"origem": origem,
	}).Inc()
	documentoDuracao.With(prometheus.Labels{
		"tipo":   tipo,
		"origem": origem,
	}).Observe(d.Seconds())
}

// StartHTTPServer sobe um /metrics na porta indicada (ex: ":9100").
func StartHTTPServer(addr string) {
	mux := http.NewServeMux()
	mux.Handle("/metrics", promhttp.Handler())

	srv := &http.Server{
		Addr:    addr,
		Handler: mux,
	}

	go func() {
		slog.Info("iniciando servidor de métricas Prometheus", "addr", addr)
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			slog.Error("erro no servidor de métricas", "addr", addr, "err", err)
		}
	}()
}
