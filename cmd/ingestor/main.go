package main

import (
	"context"
	"flag"
	"fmt"
	"os"
	"os/signal"
	"strings"
	"syscall"

	"go.uber.org/zap"

	"github.com/fixtools/fix-log-analyzer/internal/config"
	"github.com/fixtools/fix-log-analyzer/internal/dict"
	"github.com/fixtools/fix-log-analyzer/internal/ingest"
	"github.com/fixtools/fix-log-analyzer/internal/logging"
	"github.com/fixtools/fix-log-analyzer/internal/observability"
	"github.com/fixtools/fix-log-analyzer/internal/parser"
	"github.com/fixtools/fix-log-analyzer/internal/store"
)

func main() {
	kafkaMode := flag.Bool("kafka", false, "consume raw log lines from Kafka instead of files")
	versionHint := flag.String("fix-version", "", "explicit FIX version override, skips auto-detection")
	flag.Parse()

	// Load configuration
	cfg := config.LoadConfig("ingestor")

	// Initialize logger
	logger, err := logging.NewLogger(cfg.ServiceName, cfg.LogLevel)
	if err != nil {
		fmt.Fprintf(os.Stderr, "failed to initialize logger: %v\n", err)
		os.Exit(1)
	}
	defer logger.Sync()

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

	metrics := observability.NewMetrics()
	p := parser.New(registry, cfg.TimestampFallback, logger)
	svc := ingest.NewService(p, registry, st, metrics, logger)

	ctx, cancel := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer cancel()

	if *kafkaMode {
		runKafka(ctx, cfg, svc, *versionHint, logger)
		return
	}

	if flag.NArg() == 0 {
		fmt.Fprintln(os.Stderr, "usage: ingestor [-kafka] [-fix-version V] <logfile>...")
		os.Exit(2)
	}

	for _, path := range flag.Args() {
		result, err := svc.ProcessFile(ctx, path, *versionHint)
		if err != nil {
			logger.Error("failed to process file",
				zap.String("path", path),
				zap.Error(err),
			)
			continue
		}
		logger.Info("file ingested",
			zap.String("path", path),
			zap.String("session_id", result.SessionID),
			zap.Int("parsed", result.Parsed),
			zap.Int("skipped", result.Skipped),
			zap.Int("invalid", result.Invalid),
		)
	}
}

func runKafka(ctx context.Context, cfg *config.Config, svc *ingest.Service, versionHint string, logger *zap.Logger) {
	brokers := strings.Split(cfg.KafkaBrokers, ",")
	for i := range brokers {
		brokers[i] = strings.TrimSpace(brokers[i])
	}

	source, err := ingest.NewKafkaSource(brokers, cfg.KafkaGroup, cfg.KafkaTopic, logger)
	if err != nil {
		logger.Fatal("failed to create kafka source", zap.Error(err))
	}
	defer source.Close()

	if err := source.Run(ctx, svc, versionHint); err != nil && ctx.Err() == nil {
		logger.Error("kafka source stopped", zap.Error(err))
	}

	logger.Info("ingestor service stopped")
}
