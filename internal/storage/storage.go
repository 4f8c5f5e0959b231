// Package storage persists classified flows to ClickHouse.
package storage

import (
	"context"
	"time"

	"github.com/ClickHouse/clickhouse-go/v2"
	"github.com/ClickHouse/clickhouse-go/v2/lib/driver"

	"github.com/navid-fn/flowradar/internal/storage/models"
)

// FlowStorage defines the interface for persisting flow rows.
// Implementations must be safe for concurrent use.
type FlowStorage interface {
	// CreateFlows inserts a batch of flows into the database.
	CreateFlows(ctx context.Context, flows []*models.FlowRow) error

	// Close releases database connection resources.
	Close() error
}

// clickhouseStorage implements FlowStorage using native ClickHouse driver.
type clickhouseStorage struct {
	conn driver.Conn
}

// NewClickHouseStorage creates a new ClickHouse storage connection.
// It parses the DSN, opens a connection, and verifies connectivity with a ping.
// Returns an error if connection cannot be established within 5 seconds.
func NewClickHouseStorage(dsn string) (FlowStorage, error) {
	opts, err := clickhouse.ParseDSN(dsn)
	if err != nil {
		return nil, err
	}

	conn, err := clickhouse.Open(opts)
	if err != nil {
		return nil, err
	}

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	if err := conn.Ping(ctx); err != nil {
		_ = conn.Close()
		return nil, err
	}

	return &clickhouseStorage{conn: conn}, nil
}

// CreateFlows inserts flows using ClickHouse batch insert. The table is a
// ReplacingMergeTree on id, so a redelivered batch does not duplicate rows.
func (s *clickhouseStorage) CreateFlows(ctx context.Context, flows []*models.FlowRow) error {
	if len(flows) == 0 {
		return nil
	}

	batch, err := s.conn.PrepareBatch(ctx, `
		INSERT INTO capital_flow (
			id, type, stablecoin, amount, impact, description,
			tx_hash, from_address, to_address, exchange_name,
			block_number, event_time, inserted_at
		)
	`)
	if err != nil {
		return err
	}

	for _, f := range flows {
		err := batch.Append(
			f.ID,
			f.Type,
			f.Stablecoin,
			f.Amount,
			f.Impact,
			f.Description,
			f.TxHash,
			f.FromAddress,
			f.ToAddress,
			f.ExchangeName,
			f.BlockNumber,
			f.EventTime,
			f.InsertedAt,
		)
		if err != nil {
			_ = batch.Abort()
			return err
		}
	}

	return batch.Send()
}

// Close closes the ClickHouse connection.
func (s *clickhouseStorage) Close() error {
	return s.conn.Close()
}
