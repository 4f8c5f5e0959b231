// Package ingester consumes flow events from Kafka and persists them to ClickHouse.
// It handles batching, retry logic, and graceful shutdown.
package ingester

import (
	"context"
	"errors"
	"time"

	"github.com/segmentio/kafka-go"
	"github.com/sirupsen/logrus"

	"github.com/navid-fn/flowradar/internal/metrics"
	"github.com/navid-fn/flowradar/internal/publisher"
	"github.com/navid-fn/flowradar/internal/storage/models"
)

// Config holds ingester configuration parameters.
type Config struct {
	// BatchSize is the maximum number of flows to accumulate before flushing to DB.
	BatchSize int

	// BatchTimeout is the maximum time to wait before flushing, even if batch isn't full.
	BatchTimeout time.Duration

	// RetryDelay is the pause between two failed inserts of the same batch.
	RetryDelay time.Duration
}

// MessageReader is the subset of *kafka.Reader used by the ingester.
type MessageReader interface {
	FetchMessage(ctx context.Context) (kafka.Message, error)
	CommitMessages(ctx context.Context, msgs ...kafka.Message) error
}

type FlowWriter interface {
	CreateFlows(ctx context.Context, flows []*models.FlowRow) error
}

// Ingester consumes flows from Kafka and writes them to ClickHouse in batches.
// It implements at-least-once delivery: offsets are only committed to Kafka
// after successful database insertion.
type Ingester struct {
	reader  MessageReader
	storage FlowWriter
	logger  logrus.FieldLogger
	metrics *metrics.Recorder
	cfg     Config
	now     func() time.Time
}

func NewIngester(reader MessageReader, storage FlowWriter, logger logrus.FieldLogger, m *metrics.Recorder, cfg Config) *Ingester {
	if cfg.BatchSize <= 0 {
		cfg.BatchSize = 200
	}
	if cfg.BatchTimeout <= 0 {
		cfg.BatchTimeout = 5 * time.Second
	}
	if cfg.RetryDelay <= 0 {
		cfg.RetryDelay = 2 * time.Second
	}
	return &Ingester{
		reader:  reader,
		storage: storage,
		logger:  logger,
		metrics: m,
		cfg:     cfg,
		now:     time.Now,
	}
}

// Start runs the main ingestion loop. It blocks until context is cancelled.
// On shutdown, it attempts to flush any remaining buffered flows.
//
// The loop:
//  1. Fetches messages from Kafka
//  2. Decodes JSON into flow rows, skipping malformed messages
//  3. Accumulates rows until batch is full or timeout
//  4. Inserts batch to ClickHouse (with retry on failure)
//  5. Commits Kafka offsets only after successful DB insert
func (ig *Ingester) Start(ctx context.Context) error {
	ig.logger.WithField("batch_size", ig.cfg.BatchSize).Info("Starting Ingester Loop")

	batchRows := make([]*models.FlowRow, 0, ig.cfg.BatchSize)
	batchMsgs := make([]kafka.Message, 0, ig.cfg.BatchSize)

	ticker := time.NewTicker(ig.cfg.BatchTimeout)
	defer ticker.Stop()

	flush := func(ctx context.Context) error {
		if len(batchMsgs) == 0 {
			return nil
		}

		if len(batchRows) > 0 {
			for {
				err := ig.storage.CreateFlows(ctx, batchRows)
				if err == nil {
					break
				}
				ig.logger.WithError(err).Errorf("DB insert failed, retrying in %v", ig.cfg.RetryDelay)

				select {
				case <-ctx.Done():
					return ctx.Err()
				case <-time.After(ig.cfg.RetryDelay):
				}
			}
			ig.metrics.Ingested(len(batchRows))
		}

		if err := ig.reader.CommitMessages(ctx, batchMsgs...); err != nil {
			ig.logger.WithError(err).Warn("Failed to commit offsets")
		}

		batchRows = batchRows[:0]
		batchMsgs = batchMsgs[:0]
		ticker.Reset(ig.cfg.BatchTimeout)
		return nil
	}

	for {
		select {
		case <-ctx.Done():
			shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
			defer cancel()
			return flush(shutdownCtx)

		case <-ticker.C:
			if err := flush(ctx); err != nil {
				return err
			}

		default:
			fetchCtx, cancel := context.WithTimeout(ctx, ig.cfg.BatchTimeout)
			m, err := ig.reader.FetchMessage(fetchCtx)
			cancel()

			if err != nil {
				if errors.Is(err, context.DeadlineExceeded) || errors.Is(err, context.Canceled) {
					continue
				}
				ig.logger.WithError(err).Error("Kafka fetch error")
				select {
				case <-ctx.Done():
				case <-time.After(time.Second):
				}
				continue
			}

			// Malformed messages are committed with the batch so they are not
			// redelivered forever.
			batchMsgs = append(batchMsgs, m)
			ev, err := publisher.DecodeFlow(m)
			if err != nil {
				ig.logger.WithError(err).WithField("offset", m.Offset).Warn("Skipping malformed flow message")
			} else {
				batchRows = append(batchRows, models.NewFlowRow(ev, ig.now()))
			}

			if len(batchMsgs) >= ig.cfg.BatchSize {
				if err := flush(ctx); err != nil {
					return err
				}
			}
		}
	}
}
