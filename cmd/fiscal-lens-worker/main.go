package main

import (
	"context"
	"log/slog"
	"os"
	"os/signal"
	"syscall"

	"fiscal-lens/internal/config"
	"fiscal-lens/internal/logx"
	"fiscal-lens/internal/metrics"
	"fiscal-lens/internal/worker"
)

func main() {
	cfg, err := config.Load()
	if err != nil {
		slog.Error("erro carregando config", "err", err)
		os.Exit(1)
	}

	logx.Init(cfg.LogLevel)
	slog.Info("[fiscal-lens-worker] iniciando...")

	// inicia métricas Prometheus
	metrics.Init()
	metricsAddr := os.Getenv("FISCAL_LENS_METRICS_ADDR_WORKER")
	if metricsAddr == "" {
		metricsAddr = ":9101"
	}
	metrics.StartHTTPServer(metricsAddr)

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	w := worker.New(cfg)
	if err := w.Run(ctx); err != nil && err != context.Canceled {
		slog.Error("worker finalizou com erro", "err", err)
		os.Exit(1)
	}

	slog.Info("worker finalizado")
}
