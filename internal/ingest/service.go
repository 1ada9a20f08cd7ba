// Package ingest drives log ingestion: it reads raw lines from a file,
// reader or Kafka topic, parses and validates them, and persists the
// results in insert batches.
package ingest

import (
	"bufio"
	"context"
	"fmt"
	"io"
	"os"
	"runtime"
	"sync"

	"github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/fixtools/fix-log-analyzer/internal/dict"
	"github.com/fixtools/fix-log-analyzer/internal/fix"
	"github.com/fixtools/fix-log-analyzer/internal/observability"
	"github.com/fixtools/fix-log-analyzer/internal/parser"
	"github.com/fixtools/fix-log-analyzer/internal/store"
	"github.com/fixtools/fix-log-analyzer/internal/validate"
)

// insertBatchSize bounds one store transaction.
const insertBatchSize = 1000

// maxLineBytes bounds a single log line.
const maxLineBytes = 1 << 20

// Service ingests raw log lines into the message store.
type Service struct {
	parser   *parser.Parser
	registry *dict.Registry
	store    *store.Store
	metrics  *observability.Metrics
	logger   *zap.Logger
	workers  int
}

// Result reports on one ingestion run.
type Result struct {
	SessionID string `json:"sessionId"`
	LinesRead int    `json:"linesRead"`
	Parsed    int    `json:"parsed"`
	Skipped   int    `json:"skipped"`
	Invalid   int    `json:"invalid"`
}

// NewService creates an ingestion service.
func NewService(p *parser.Parser, registry *dict.Registry, st *store.Store,
	metrics *observability.Metrics, logger *zap.Logger) *Service {
	return &Service{
		parser:   p,
		registry: registry,
		store:    st,
		metrics:  metrics,
		logger:   logger,
		workers:  runtime.NumCPU(),
	}
}

// ProcessFile ingests one log file, returning the run result.
func (s *Service) ProcessFile(ctx context.Context, path, versionHint string) (*Result, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, fmt.Errorf("failed to open log file: %w", err)
	}
	defer f.Close()

	result, err := s.ProcessReader(ctx, f, versionHint)
	if err != nil {
		return result, err
	}

	s.logger.Info("processed log file",
		zap.String("path", path),
		zap.String("session_id", result.SessionID),
		zap.Int("lines", result.LinesRead),
		zap.Int("parsed", result.Parsed),
		zap.Int("skipped", result.Skipped),
	)
	return result, nil
}

// ProcessReader ingests log lines from a reader under a fresh session id.
// Lines within a batch are parsed in parallel; parsing is stateless so
// only the store write is serialized. Cancellation is honored at the
// line boundary: batches already handed to the store stay persisted.
func (s *Service) ProcessReader(ctx context.Context, r io.Reader, versionHint string) (*Result, error) {
	result := &Result{SessionID: uuid.NewString()}

	scanner := bufio.NewScanner(r)
	scanner.Buffer(make([]byte, 0, 64*1024), maxLineBytes)

	batch := make([]string, 0, insertBatchSize)
	for scanner.Scan() {
		select {
		case <-ctx.Done():
			return result, ctx.Err()
		default:
		}

		batch = append(batch, scanner.Text())
		if len(batch) == insertBatchSize {
			if err := s.flush(ctx, result, batch, versionHint); err != nil {
				return result, err
			}
			batch = batch[:0]
		}
	}
	if err := scanner.Err(); err != nil {
		return result, fmt.Errorf("failed to read log lines: %w", err)
	}

	if err := s.flush(ctx, result, batch, versionHint); err != nil {
		return result, err
	}

	return result, nil
}

// ProcessLine ingests a single raw line, as delivered by a streaming
// source. Unparsable lines are skipped, not errors.
func (s *Service) ProcessLine(ctx context.Context, line, versionHint string) (bool, error) {
	s.metrics.LinesRead.Inc()

	msg := s.parser.Parse(line, versionHint)
	if msg == nil {
		s.metrics.ParseFailures.Inc()
		return false, nil
	}
	s.metrics.MessagesParsed.Inc()

	validate.Apply(s.registry, msg)
	if !msg.IsValid {
		s.metrics.InvalidMessages.Inc()
	}

	if err := s.store.InsertBatch(ctx, uuid.NewString(), []*fix.Message{msg}); err != nil {
		return false, err
	}
	s.metrics.MessagesStored.Inc()
	return true, nil
}

func (s *Service) flush(ctx context.Context, result *Result, lines []string, versionHint string) error {
	if len(lines) == 0 {
		return nil
	}
	result.LinesRead += len(lines)
	s.metrics.LinesRead.Add(float64(len(lines)))

	messages := s.parseLines(lines, versionHint)

	stored := make([]*fix.Message, 0, len(messages))
	for _, msg := range messages {
		if msg == nil {
			result.Skipped++
			s.metrics.ParseFailures.Inc()
			continue
		}
		validate.Apply(s.registry, msg)
		if !msg.IsValid {
			result.Invalid++
			s.metrics.InvalidMessages.Inc()
		}
		stored = append(stored, msg)
	}

	result.Parsed += len(stored)
	s.metrics.MessagesParsed.Add(float64(len(stored)))

	if err := s.store.InsertBatch(ctx, result.SessionID, stored); err != nil {
		return fmt.Errorf("failed to store message batch: %w", err)
	}
	s.metrics.MessagesStored.Add(float64(len(stored)))

	return nil
}

// parseLines parses a batch with a bounded worker pool, preserving line
// order in the result slice.
func (s *Service) parseLines(lines []string, versionHint string) []*fix.Message {
	messages := make([]*fix.Message, len(lines))

	indexes := make(chan int)
	var wg sync.WaitGroup
	for w := 0; w < s.workers; w++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			for i := range indexes {
				messages[i] = s.parser.Parse(lines[i], versionHint)
			}
		}()
	}

	for i := range lines {
		indexes <- i
	}
	close(indexes)
	wg.Wait()

	return messages
}
