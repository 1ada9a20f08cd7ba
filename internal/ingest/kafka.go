package ingest

import (
	"context"
	"fmt"
	"sync/atomic"
	"time"

	"github.com/twmb/franz-go/pkg/kgo"
	"go.uber.org/zap"
)

// KafkaSource consumes raw log lines from a Kafka topic, one line per
// record value, and feeds them to the ingestion service.
type KafkaSource struct {
	client     *kgo.Client
	logger     *zap.Logger
	topic      string
	group      string
	lineCount  int64
	errorCount int64
}

// NewKafkaSource creates a Kafka line source with manual commits.
func NewKafkaSource(brokers []string, group, topic string, logger *zap.Logger) (*KafkaSource, error) {
	opts := []kgo.Opt{
		kgo.SeedBrokers(brokers...),
		kgo.ConsumerGroup(group),
		kgo.ConsumeTopics(topic),
		kgo.DisableAutoCommit(), // Commit only after the line is handled
	}

	client, err := kgo.NewClient(opts...)
	if err != nil {
		return nil, fmt.Errorf("failed to create kafka client: %w", err)
	}

	k := &KafkaSource{
		client: client,
		logger: logger,
		topic:  topic,
		group:  group,
	}

	logger.Info("kafka line source initialized",
		zap.Strings("brokers", brokers),
		zap.String("group", group),
		zap.String("topic", topic),
	)

	go k.logStats()

	return k, nil
}

// Run consumes records and ingests each value as one raw log line. A
// line that repeatedly fails to store is logged and skipped so one bad
// record cannot stall the stream.
func (k *KafkaSource) Run(ctx context.Context, svc *Service, versionHint string) error {
	k.logger.Info("starting kafka line source",
		zap.String("group", k.group),
		zap.String("topic", k.topic),
	)

	for {
		select {
		case <-ctx.Done():
			k.logger.Info("kafka line source stopping", zap.String("group", k.group))
			return ctx.Err()
		default:
			fetches := k.client.PollFetches(ctx)
			if fetches.IsClientClosed() {
				return fmt.Errorf("kafka client closed")
			}

			iter := fetches.RecordIter()
			for !iter.Done() {
				record := iter.Next()

				if err := k.ingestWithRetry(ctx, svc, string(record.Value), versionHint); err != nil {
					k.logger.Error("failed to ingest line after retries",
						zap.String("topic", record.Topic),
						zap.Int64("offset", record.Offset),
						zap.Error(err),
					)
					atomic.AddInt64(&k.errorCount, 1)
					continue
				}

				k.client.CommitRecords(ctx, record)
				atomic.AddInt64(&k.lineCount, 1)
			}
		}
	}
}

// ingestWithRetry stores a line with bounded retries.
func (k *KafkaSource) ingestWithRetry(ctx context.Context, svc *Service, line, versionHint string) error {
	maxRetries := 3
	backoff := 100 * time.Millisecond

	for attempt := 0; attempt < maxRetries; attempt++ {
		_, err := svc.ProcessLine(ctx, line, versionHint)
		if err == nil {
			return nil
		}

		if attempt < maxRetries-1 {
			k.logger.Warn("line ingest failed, retrying",
				zap.Int("attempt", attempt+1),
				zap.Error(err),
			)
			time.Sleep(backoff)
			backoff *= 2
		}
	}

	return fmt.Errorf("line ingest failed after %d attempts", maxRetries)
}

// Close closes the Kafka client.
func (k *KafkaSource) Close() {
	if k.client != nil {
		k.client.Close()
	}
}

// logStats logs source statistics periodically
func (k *KafkaSource) logStats() {
	ticker := time.NewTicker(30 * time.Second)
	defer ticker.Stop()

	for range ticker.C {
		lines := atomic.LoadInt64(&k.lineCount)
		errors := atomic.LoadInt64(&k.errorCount)
		k.logger.Info("kafka line source stats",
			zap.String("group", k.group),
			zap.Int64("ingested", lines),
			zap.Int64("errors", errors),
		)
	}
}
