package main

import (
	"context"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/gin-gonic/gin"
	"go.uber.org/zap"

	"github.com/fixtools/fix-log-analyzer/internal/api"
	"github.com/fixtools/fix-log-analyzer/internal/config"
	"github.com/fixtools/fix-log-analyzer/internal/dict"
	"github.com/fixtools/fix-log-analyzer/internal/ingest"
	"github.com/fixtools/fix-log-analyzer/internal/logging"
	"github.com/fixtools/fix-log-analyzer/internal/observability"
	"github.com/fixtools/fix-log-analyzer/internal/parser"
	"github.com/fixtools/fix-log-analyzer/internal/store"
)

func main() {
	// Load configuration
	cfg := config.LoadConfig("analyzer")

	// Initialize logger
	logger, err := logging.NewLogger(cfg.ServiceName, cfg.LogLevel)
	if err != nil {
		fmt.Fprintf(os.Stderr, "failed to initialize logger: %v\n", err)
		os.Exit(1)
	}
	defer logger.Sync()

	logger.Info("starting analyzer service",
		zap.Int("http_port", cfg.HTTPPort),
		zap.String("db_path", cfg.DBPath),
		zap.String("spec_dir", cfg.SpecDir),
	)

	// Load FIX dictionaries; the registry is immutable after this point
	registry := dict.NewRegistry(cfg.DefaultFixVersion, logger)
	if err := registry.LoadDir(cfg.SpecDir); err != nil {
		logger.Fatal("failed to load fix dictionaries", zap.Error(err))
	}

	// Open the message store
	st, err := store.Open(cfg.DBPath)
	if err != nil {
		logger.Fatal("failed to open message store", zap.Error(err))
	}
	defer st.Close()

	// Build the ingestion pipeline behind the upload endpoint
	metrics := observability.NewMetrics()
	p := parser.New(registry, cfg.TimestampFallback, logger)
	ingester := ingest.NewService(p, registry, st, metrics, logger)

	// HTTP server
	gin.SetMode(gin.ReleaseMode)
	router := gin.New()
	router.Use(gin.Recovery())

	handler := api.NewHandler(st, ingester, metrics, cfg.LatencySampleSize, logger)
	handler.RegisterRoutes(router)

	httpServer := &http.Server{
		Addr:    cfg.HTTPAddr(),
		Handler: router,
	}

	httpErrCh := make(chan error, 1)
	go func() {
		logger.Info("HTTP server listening", zap.String("addr", cfg.HTTPAddr()))
		if err := httpServer.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			httpErrCh <- err
		}
	}()

	// Wait for interrupt signal
	sigCh := make(chan os.Signal, 1)
	signal.Notify(sigCh, os.Interrupt, syscall.SIGTERM)

	select {
	case sig := <-sigCh:
		logger.Info("received shutdown signal", zap.String("signal", sig.String()))
	case err := <-httpErrCh:
		logger.Error("HTTP server error", zap.Error(err))
	}

	// Graceful shutdown
	logger.Info("shutting down gracefully...")

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()

	if err := httpServer.Shutdown(shutdownCtx); err != nil {
		logger.Error("error shutting down HTTP server", zap.Error(err))
	}

	if err := st.Close(); err != nil {
		logger.Error("error closing message store", zap.Error(err))
	}

	logger.Info("analyzer service stopped")
}
