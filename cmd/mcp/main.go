package main

import (
	"context"
	"log/slog"
	"os"

	mcpserver "github.com/mark3labs/mcp-go/server"

	mcpadapter "github.com/kirillkom/grounded-answer/internal/adapters/mcp"
	"github.com/kirillkom/grounded-answer/internal/bootstrap"
	"github.com/kirillkom/grounded-answer/internal/config"
	"github.com/kirillkom/grounded-answer/internal/observability/logging"
)

const service = "grounded-mcp"

func main() {
	cfg, err := config.Load()
	if err != nil {
		slog.Error("config_error", "error", err)
		os.Exit(1)
	}
	slog.SetDefault(logging.NewJSONLoggerTo(os.Stderr, service, cfg.LogLevel))

	app, err := bootstrap.New(context.Background(), cfg, bootstrap.Options{})
	if err != nil {
		slog.Error("bootstrap_error", "error", err)
		os.Exit(1)
	}
	defer app.Close()

	server := mcpserver.NewMCPServer("grounded-answer", "0.1.0")
	mcpadapter.RegisterTools(server, app.Answerer)

	slog.Info("mcp_server_starting", "transport", "stdio")
	if err := mcpserver.ServeStdio(server); err != nil {
		slog.Error("mcp_server_error", "error", err)
	}
}
