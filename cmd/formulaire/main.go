// Entry point for the formulaire HTTP service: upload a .docx template,
// fill its placeholders through a guided chat, download the completed
// document.
package main

import (
	"context"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/modelcontextprotocol/go-sdk/mcp"
	_ "modernc.org/sqlite"

	"github.com/quillard/formulaire/guichet"
	"github.com/quillard/formulaire/shield"
)

func main() {
	port := env("PORT", "8090")
	logLevel := env("LOG_LEVEL", "info")

	var lvl slog.Level
	switch logLevel {
	case "debug":
		lvl = slog.LevelDebug
	case "warn":
		lvl = slog.LevelWarn
	case "error":
		lvl = slog.LevelError
	default:
		lvl = slog.LevelInfo
	}
	logger := slog.New(slog.NewJSONHandler(os.Stdout, &slog.HandlerOptions{Level: lvl}))
	slog.SetDefault(logger)

	ctx, cancel := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer cancel()

	// Config file (optional) with env overrides.
	var cfg *guichet.Config
	if path := os.Getenv("CONFIG"); path != "" {
		var err error
		cfg, err = guichet.LoadConfigFile(path)
		if err != nil {
			slog.Error("load config", "path", path, "error", err)
			os.Exit(1)
		}
	} else {
		cfg = &guichet.Config{}
	}
	if v := os.Getenv("UPLOADS_DIR"); v != "" {
		cfg.UploadsDir = v
	}
	if v := os.Getenv("ARCHIVE_DB"); v != "" {
		cfg.ArchiveDB = v
	}

	svc, err := guichet.New(cfg, logger)
	if err != nil {
		slog.Error("guichet service", "error", err)
		os.Exit(1)
	}
	defer svc.Close()

	// MCP mode: serve the fill tools on stdin/stdout instead of HTTP.
	if env("MCP_TRANSPORT", "") == "stdio" {
		mcpSrv := mcp.NewServer(&mcp.Implementation{
			Name:    "formulaire",
			Version: "1.0.0",
		}, nil)
		svc.RegisterMCP(mcpSrv)
		slog.Info("MCP stdio starting")
		if err := mcpSrv.Run(ctx, &mcp.StdioTransport{}); err != nil && ctx.Err() == nil {
			slog.Error("MCP stdio", "error", err)
			os.Exit(1)
		}
		return
	}

	rl := shield.NewRateLimiter(map[string]shield.RateLimitConfig{
		"/api/documents": {MaxRequests: 30, WindowSeconds: 60},
		"/api/chat":      {MaxRequests: 120, WindowSeconds: 60},
	}, "/health")
	rl.StartGC(ctx.Done())

	r := newRouter(svc, rl, cfg.MaxUploadBytes)

	srv := &http.Server{
		Addr:              ":" + port,
		Handler:           r,
		ReadHeaderTimeout: 10 * time.Second,
		WriteTimeout:      60 * time.Second,
		IdleTimeout:       60 * time.Second,
	}

	go func() {
		slog.Info("server starting", "port", port)
		if err := srv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			slog.Error("server error", "error", err)
			os.Exit(1)
		}
	}()

	<-ctx.Done()
	slog.Info("shutting down")

	shutdownCtx, shutdownCancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer shutdownCancel()
	if err := srv.Shutdown(shutdownCtx); err != nil {
		slog.Error("shutdown", "error", err)
	}
	slog.Info("server stopped")
}

func env(key, def string) string {
	if v := os.Getenv(key); v != "" {
		return v
	}
	return def
}
