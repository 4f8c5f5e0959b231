// Package models defines the rows written to ClickHouse.
package models

import (
	"time"

	flow "github.com/navid-fn/flowradar/internal/models"
)

// FlowRow is one classified capital flow in the capital_flow table.
// Optional event fields are stored as their zero value.
type FlowRow struct {
	// ID is txHash-logIndex for chain data, or a mock- id for generated data.
	ID string

	// Type is one of mint, burn, whale_transfer, exchange_inflow, exchange_outflow.
	Type string

	// Stablecoin is the token symbol (e.g., "USDT").
	Stablecoin string

	// Amount is the USD-equivalent value of the transfer.
	Amount float64

	// Impact is low, medium or high.
	Impact string

	Description string
	TxHash      string
	FromAddress string
	ToAddress   string

	// ExchangeName is the display name of the counterparty exchange, if any.
	ExchangeName string

	BlockNumber uint64

	// EventTime is the block time of the transfer.
	EventTime time.Time

	// InsertedAt is when the row was written by the ingester.
	InsertedAt time.Time
}

// NewFlowRow flattens an event for storage.
func NewFlowRow(ev flow.CapitalFlowEvent, insertedAt time.Time) *FlowRow {
	row := &FlowRow{
		ID:          ev.ID,
		Type:        string(ev.Type),
		Stablecoin:  ev.Stablecoin,
		Amount:      ev.Amount,
		Impact:      string(ev.Impact),
		Description: ev.Description,
		TxHash:      ev.TxHash,
		EventTime:   ev.Timestamp.UTC(),
		InsertedAt:  insertedAt.UTC(),
	}
	if ev.FromAddress != nil {
		row.FromAddress = *ev.FromAddress
	}
	if ev.ToAddress != nil {
		row.ToAddress = *ev.ToAddress
	}
	if ev.ExchangeName != nil {
		row.ExchangeName = *ev.ExchangeName
	}
	if ev.BlockNumber != nil {
		row.BlockNumber = *ev.BlockNumber
	}
	return row
}
