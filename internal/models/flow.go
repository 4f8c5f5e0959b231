// Package models defines the capital flow types shared across the application.
package models

import (
	"strings"
	"time"
)

// FlowType is the semantic class of a classified transfer.
type FlowType string

const (
	FlowMint            FlowType = "mint"
	FlowBurn            FlowType = "burn"
	FlowWhaleTransfer   FlowType = "whale_transfer"
	FlowExchangeInflow  FlowType = "exchange_inflow"
	FlowExchangeOutflow FlowType = "exchange_outflow"
)

// FlowTypes lists every flow type in a stable order.
var FlowTypes = []FlowType{FlowMint, FlowBurn, FlowWhaleTransfer, FlowExchangeInflow, FlowExchangeOutflow}

// Valid reports whether t is one of the known flow types.
func (t FlowType) Valid() bool {
	for _, ft := range FlowTypes {
		if t == ft {
			return true
		}
	}
	return false
}

// Impact is a coarse market significance bucket derived from the amount.
type Impact string

const (
	ImpactLow    Impact = "low"
	ImpactMedium Impact = "medium"
	ImpactHigh   Impact = "high"
)

// Impacts lists every impact level from lowest to highest.
var Impacts = []Impact{ImpactLow, ImpactMedium, ImpactHigh}

func (i Impact) Valid() bool {
	return i == ImpactLow || i == ImpactMedium || i == ImpactHigh
}

// CapitalFlowEvent is one classified transfer. It is created once by the
// classifier and never mutated afterwards.
type CapitalFlowEvent struct {
	// ID is txHash-logIndex for chain data, or a synthetic id for mock data.
	ID string `json:"id"`

	Type       FlowType `json:"type"`
	Stablecoin string   `json:"stablecoin"`

	// Amount is the USD-equivalent value (1 token unit ~ $1).
	Amount          float64 `json:"amount"`
	AmountFormatted string  `json:"amountFormatted"`
	Impact          Impact  `json:"impact"`
	Description     string  `json:"description"`

	TxHash       string  `json:"txHash"`
	FromAddress  *string `json:"fromAddress,omitempty"`
	ToAddress    *string `json:"toAddress,omitempty"`
	ExchangeName *string `json:"exchangeName,omitempty"`

	Timestamp   time.Time `json:"timestamp"`
	BlockNumber *uint64   `json:"blockNumber,omitempty"`
	GasUsed     *uint64   `json:"gasUsed,omitempty"`
}

// TimeRange is one of the supported lookback windows.
type TimeRange string

const (
	Range1h  TimeRange = "1h"
	Range24h TimeRange = "24h"
	Range7d  TimeRange = "7d"
	Range30d TimeRange = "30d"
)

// Duration returns the window length, or zero for an unknown range.
func (r TimeRange) Duration() time.Duration {
	switch r {
	case Range1h:
		return time.Hour
	case Range24h:
		return 24 * time.Hour
	case Range7d:
		return 7 * 24 * time.Hour
	case Range30d:
		return 30 * 24 * time.Hour
	default:
		return 0
	}
}

func (r TimeRange) Valid() bool { return r.Duration() > 0 }

// CapitalFlowFilters is a conjunctive query over flow events. A nil or empty
// field imposes no constraint.
type CapitalFlowFilters struct {
	Stablecoin []string   `json:"stablecoin,omitempty"`
	Types      []FlowType `json:"types,omitempty"`
	MinAmount  *float64   `json:"minAmount,omitempty"`
	Impact     []Impact   `json:"impact,omitempty"`
	TimeRange  *TimeRange `json:"timeRange,omitempty"`
	Exchanges  []string   `json:"exchanges,omitempty"`
}

// Sanitize drops unknown enum values instead of rejecting the filter.
func (f CapitalFlowFilters) Sanitize() CapitalFlowFilters {
	out := f
	if f.Types != nil {
		out.Types = make([]FlowType, 0, len(f.Types))
		for _, t := range f.Types {
			if t.Valid() {
				out.Types = append(out.Types, t)
			}
		}
		if len(out.Types) == 0 {
			out.Types = nil
		}
	}
	if f.Impact != nil {
		out.Impact = make([]Impact, 0, len(f.Impact))
		for _, i := range f.Impact {
			if i.Valid() {
				out.Impact = append(out.Impact, i)
			}
		}
		if len(out.Impact) == 0 {
			out.Impact = nil
		}
	}
	if f.TimeRange != nil && !f.TimeRange.Valid() {
		out.TimeRange = nil
	}
	return out
}

// IncludesStablecoin reports whether symbol passes the stablecoin constraint.
func (f CapitalFlowFilters) IncludesStablecoin(symbol string) bool {
	if len(f.Stablecoin) == 0 {
		return true
	}
	for _, s := range f.Stablecoin {
		if strings.EqualFold(s, symbol) {
			return true
		}
	}
	return false
}

// CapitalFlowSummary is a window-scoped rollup across all stablecoins.
type CapitalFlowSummary struct {
	TotalMints24h         float64          `json:"totalMints24h"`
	TotalBurns24h         float64          `json:"totalBurns24h"`
	NetExchangeInflow24h  float64          `json:"netExchangeInflow24h"`
	LargestTransaction24h CapitalFlowEvent `json:"largestTransaction24h"`
	TopStablecoinByVolume string           `json:"topStablecoinByVolume"`
	MarketImpactEvents    int              `json:"marketImpactEvents"`
	LastUpdated           time.Time        `json:"lastUpdated"`
}

// CapitalFlowMetrics is a per-stablecoin rollup over a window.
type CapitalFlowMetrics struct {
	Stablecoin         string    `json:"stablecoin"`
	Minted24h          float64   `json:"minted24h"`
	Burned24h          float64   `json:"burned24h"`
	NetFlow24h         float64   `json:"netFlow24h"`
	ExchangeInflow24h  float64   `json:"exchangeInflow24h"`
	ExchangeOutflow24h float64   `json:"exchangeOutflow24h"`
	WhaleActivity24h   float64   `json:"whaleActivity24h"`
	AvgTransactionSize float64   `json:"avgTransactionSize"`
	Timestamp          time.Time `json:"timestamp"`
}

// AnalyticsReport is a plain grouping of a filtered event set.
type AnalyticsReport struct {
	TimeRange              TimeRange          `json:"timeRange,omitempty"`
	TotalEvents            int                `json:"totalEvents"`
	TotalVolume            float64            `json:"totalVolume"`
	AverageTransactionSize float64            `json:"averageTransactionSize"`
	EventsByType           map[FlowType]int   `json:"eventsByType"`
	EventsByImpact         map[Impact]int     `json:"eventsByImpact"`
	EventsByStablecoin     map[string]int     `json:"eventsByStablecoin"`
	VolumeByStablecoin     map[string]float64 `json:"volumeByStablecoin"`
}

// EmptyEvent is the zero-valued placeholder used when a window holds no events.
func EmptyEvent(now time.Time) CapitalFlowEvent {
	return CapitalFlowEvent{
		ID:              "none",
		Type:            FlowWhaleTransfer,
		Amount:          0,
		AmountFormatted: "$0.00",
		Impact:          ImpactLow,
		Description:     "No transactions",
		Timestamp:       now,
	}
}
