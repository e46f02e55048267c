package main

import (
	"context"
	"flag"
	"fmt"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/vidgrab/vidgrab/internal/api"
	"github.com/vidgrab/vidgrab/internal/api/handler"
	"github.com/vidgrab/vidgrab/internal/config"
	"github.com/vidgrab/vidgrab/internal/history"
	"github.com/vidgrab/vidgrab/internal/platform"
	"github.com/vidgrab/vidgrab/internal/preview"
	"github.com/vidgrab/vidgrab/internal/saver"
	"github.com/vidgrab/vidgrab/internal/session"
	"github.com/vidgrab/vidgrab/internal/stream"
)

var (
	Version   = "dev"
	BuildTime = "unknown"
)

// ensureDirs creates the download directories. The temp dir is optional;
// when unset the saver stages files in the output dir instead.
func ensureDirs(cfg config.DownloadConfig) error {
	if err := os.MkdirAll(cfg.OutputDir, 0755); err != nil {
		return fmt.Errorf("create output directory: %w", err)
	}
	if cfg.TempDir != "" {
		if err := os.MkdirAll(cfg.TempDir, 0755); err != nil {
			return fmt.Errorf("create temp directory: %w", err)
		}
	}
	return nil
}

func main() {
	configPath := flag.String("config", "", "Path to config file")
	showVersion := flag.Bool("version", false, "Show version and exit")
	flag.Parse()

	if *showVersion {
		fmt.Printf("vidgrab-server %s (built %s)\n", Version, BuildTime)
		os.Exit(0)
	}

	logger := slog.New(slog.NewJSONHandler(os.Stdout, &slog.HandlerOptions{
		Level: slog.LevelInfo,
	}))
	slog.SetDefault(logger)

	logger.Info("starting vidgrab-server",
		"version", Version,
		"build_time", BuildTime,
	)

	cfg, err := config.Load(*configPath)
	if err != nil {
		logger.Error("failed to load config", "error", err)
		os.Exit(1)
	}

	if err := ensureDirs(cfg.Download); err != nil {
		logger.Error("failed to create storage directories", "error", err)
		os.Exit(1)
	}

	var store history.Store = history.NewMemoryStore()
	if cfg.History.Enabled {
		sqliteStore, err := history.NewSQLiteStore(cfg.History.Path)
		if err != nil {
			logger.Error("failed to open history store", "error", err, "path", cfg.History.Path)
			os.Exit(1)
		}
		store = sqliteStore
	}
	defer store.Close()

	registry := platform.NewRegistry(cfg.Platforms)

	manager := session.NewManager(cfg.Download, registry, session.Deps{
		Previewer: preview.NewFetcher(cfg.Download),
		Streams:   session.StreamClient{Client: stream.NewClient(cfg.Download)},
		Retriever: saver.NewRetriever(cfg.Download, saver.NewDiskSaver(cfg.Download.OutputDir, cfg.Download.TempDir)),
		History:   store,
		Logger:    logger,
	})

	sessionHandler := handler.NewSessionHandler(manager, logger)
	historyHandler := handler.NewHistoryHandler(store, logger)
	healthHandler := handler.NewHealthHandler(registry, store)

	router := api.NewRouter(sessionHandler, historyHandler, healthHandler, cfg.Server.APIKey)

	srv := &http.Server{
		Addr:         cfg.Server.Address(),
		Handler:      router,
		ReadTimeout:  cfg.Server.ReadTimeout,
		WriteTimeout: cfg.Server.WriteTimeout,
	}

	go func() {
		logger.Info("starting HTTP server", "addr", srv.Addr)
		if err := srv.ListenAndServe(); err != http.ErrServerClosed {
			logger.Error("server error", "error", err)
			os.Exit(1)
		}
	}()

	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	<-quit

	logger.Info("shutting down")

	ctx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer cancel()

	if err := srv.Shutdown(ctx); err != nil {
		logger.Error("server shutdown error", "error", err)
	}

	// Drop any sessions still streaming; their stream handles cancel on close.
	manager.CloseAll()

	logger.Info("shutdown complete")
}
