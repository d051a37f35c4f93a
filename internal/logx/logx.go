package logx

import (
	"log/slog"
	"os"
	"strings"
)

// Init configura o logger padrão com saída JSON no stdout, no nível pedido
// ("debug", "info", "warn", "error"; qualquer outra coisa vira info).
func Init(level string) {
	var lvl slog.Level
	switch strings.ToLower(level) {
	case "debug":
		lvl = slog.LevelDebug
	case "warn":
		lvl = slog.LevelWarn
	case "error":
		lvl = slog.LevelError
	default:
		lvl = slog.LevelInfo
	}

	handler := slog.NewJSONHandler(os.Stdout, &slog.HandlerOptions{
		Level: lvl,
	})
	slog.SetDefault(slog.New(handler))
}
