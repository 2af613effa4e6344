// CLAUDE:SUMMARY Entry point for the MD-Easy document server — config, hub, watcher, optional MCP stdio, graceful shutdown.
package main

import (
	"context"
	"flag"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/modelcontextprotocol/go-sdk/mcp"
	_ "modernc.org/sqlite"

	"github.com/skitzo2000/MD-easy/dbopen"
	"github.com/skitzo2000/MD-easy/library"
	"github.com/skitzo2000/MD-easy/notify"
	"github.com/skitzo2000/MD-easy/observability"
	"github.com/skitzo2000/MD-easy/render"
	"github.com/skitzo2000/MD-easy/server"
	"github.com/skitzo2000/MD-easy/watch"
)

func main() {
	configPath := flag.String("config", "", "path to YAML config file")
	flag.Parse()

	cfg, err := server.LoadConfig(*configPath)
	if err != nil {
		slog.Error("config", "error", err)
		os.Exit(1)
	}

	logger := newLogger(cfg.LogLevel)
	slog.SetDefault(logger)

	ctx, cancel := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer cancel()

	if err := os.MkdirAll(cfg.DocRoot, 0o755); err != nil {
		slog.Error("doc root", "error", err)
		os.Exit(1)
	}

	// Optional stats database.
	var recorder *observability.Recorder
	if cfg.StatsDB != "" {
		statsDB, err := dbopen.Open(cfg.StatsDB, dbopen.WithMkdirAll(), dbopen.WithSchema(observability.Schema))
		if err != nil {
			slog.Error("stats db", "error", err)
			os.Exit(1)
		}
		defer statsDB.Close()
		recorder = observability.NewRecorder(statsDB, logger)
		defer recorder.Close()
	}

	hub := notify.NewHub(notify.WithLogger(logger))
	lib := library.New(cfg.DocRoot, render.New(cfg.DocRoot, cfg.BaseURL))
	svc := server.NewService(cfg, logger, hub, lib, recorder)

	// Filesystem watcher publishes a refresh after each quiet period. A
	// single changed file becomes a navigation directive without highlight,
	// so viewers follow along without flashing.
	if cfg.Watch {
		w, err := watch.New(cfg.DocRoot, watch.Options{Logger: logger})
		if err != nil {
			slog.Error("watcher", "error", err)
			os.Exit(1)
		}
		go func() {
			err := w.Run(ctx, func(changed []string) {
				var nav *notify.Navigation
				if len(changed) == 1 {
					nav = &notify.Navigation{Path: changed[0], Highlight: false}
				}
				hub.Notify("file changed", nav)
				recorder.Record(observability.EventRefresh, "watch")
			})
			if err != nil && ctx.Err() == nil {
				slog.Error("watcher", "error", err)
			}
		}()
	}

	// Optional MCP over stdio for local agents.
	if os.Getenv("MCP_TRANSPORT") == "stdio" {
		mcpSrv := mcp.NewServer(&mcp.Implementation{
			Name:    "mdeasy",
			Version: "1.0.0",
		}, nil)
		svc.RegisterMCP(mcpSrv)
		go func() {
			slog.Info("MCP stdio starting")
			if err := mcpSrv.Run(ctx, &mcp.StdioTransport{}); err != nil && ctx.Err() == nil {
				slog.Error("MCP stdio", "error", err)
			}
		}()
	}

	// WriteTimeout stays zero: /api/events streams are long-lived.
	srv := &http.Server{
		Addr:              cfg.Listen,
		Handler:           svc.Routes(),
		ReadHeaderTimeout: 10 * time.Second,
		IdleTimeout:       60 * time.Second,
	}

	go func() {
		slog.Info("server starting", "listen", cfg.Listen, "doc_root", cfg.DocRoot, "theme", cfg.Theme)
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

func newLogger(level string) *slog.Logger {
	var lvl slog.Level
	switch level {
	case "debug":
		lvl = slog.LevelDebug
	case "warn":
		lvl = slog.LevelWarn
	case "error":
		lvl = slog.LevelError
	default:
		lvl = slog.LevelInfo
	}
	return slog.New(slog.NewJSONHandler(os.Stdout, &slog.HandlerOptions{Level: lvl}))
}
