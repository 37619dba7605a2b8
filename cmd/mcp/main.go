package main

import (
	"context"
	"log"
	"log/slog"
	"os"

	mcpadapter "github.com/kirillkom/docscan/internal/adapters/mcp"
	"github.com/kirillkom/docscan/internal/bootstrap"
	"github.com/kirillkom/docscan/internal/config"
	"github.com/kirillkom/docscan/internal/observability/logging"
)

const version = "1.0.0"

func main() {
	cfg, err := config.Load()
	if err != nil {
		log.Fatalf("config error: %v", err)
	}
	// stdout carries the MCP stream
	slog.SetDefault(logging.NewJSONLoggerTo(os.Stderr, "mcp", cfg.LogLevel))

	app, err := bootstrap.New(context.Background(), cfg, bootstrap.Options{Service: "mcp"})
	if err != nil {
		log.Fatalf("bootstrap error: %v", err)
	}
	defer app.Close()

	if err := mcpadapter.NewServer(app.Library, app.Exporter).ServeStdio(version); err != nil {
		slog.Error("mcp_server_stopped", "error", err)
	}
}
