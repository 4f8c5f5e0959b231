// Package classifier turns raw ERC-20 transfers into capital flow events.
package classifier

import (
	"fmt"
	"strings"

	"github.com/shopspring/decimal"

	"github.com/navid-fn/flowradar/internal/models"
)

const (
	// MaterialityThreshold is the USD amount below which transfers are not tracked.
	MaterialityThreshold = 10_000

	HighImpactThreshold   = 50_000_000
	MediumImpactThreshold = 10_000_000
)

var materiality = decimal.NewFromInt(MaterialityThreshold)

// ExchangeLookup resolves an address to an exchange display name.
type ExchangeLookup interface {
	ExchangeForAddress(address string) (string, bool)
}

// Classifier is a pure function of its inputs plus the exchange lookup.
type Classifier struct {
	exchanges ExchangeLookup
}

func New(exchanges ExchangeLookup) *Classifier {
	return &Classifier{exchanges: exchanges}
}

// Classify converts a raw transfer of token into a flow event. The second
// return value is false when the transfer is below the materiality threshold.
//
// Rules are evaluated in order and the first match wins:
//  1. amount < 10,000 is discarded
//  2. from the zero address is a mint
//  3. to the zero address is a burn
//  4. from an exchange to a non-exchange is an outflow
//  5. to an exchange from a non-exchange is an inflow
//  6. anything else, including exchange to exchange, is a whale transfer
func (c *Classifier) Classify(raw models.RawTransfer, token models.Stablecoin) (models.CapitalFlowEvent, bool) {
	if raw.Value == nil || raw.Value.Sign() < 0 {
		return models.CapitalFlowEvent{}, false
	}
	value := decimal.NewFromBigInt(raw.Value, -token.Decimals)
	if value.LessThan(materiality) {
		return models.CapitalFlowEvent{}, false
	}
	amount := value.InexactFloat64()

	var (
		flowType models.FlowType
		exchange string
	)
	switch {
	case isZero(raw.From):
		flowType = models.FlowMint
	case isZero(raw.To):
		flowType = models.FlowBurn
	default:
		fromEx, fromIsEx := c.exchanges.ExchangeForAddress(raw.From)
		toEx, toIsEx := c.exchanges.ExchangeForAddress(raw.To)
		switch {
		case fromIsEx && !toIsEx:
			flowType, exchange = models.FlowExchangeOutflow, fromEx
		case toIsEx && !fromIsEx:
			flowType, exchange = models.FlowExchangeInflow, toEx
		default:
			flowType = models.FlowWhaleTransfer
		}
	}

	formatted := FormatAmount(amount)
	ev := models.CapitalFlowEvent{
		ID:              eventID(raw),
		Type:            flowType,
		Stablecoin:      token.Symbol,
		Amount:          amount,
		AmountFormatted: formatted,
		Impact:          ImpactFor(amount),
		Description:     describe(flowType, token.Symbol, formatted, exchange),
		TxHash:          raw.TxHash,
		Timestamp:       raw.Timestamp,
		GasUsed:         raw.GasUsed,
	}
	if raw.From != "" {
		from := raw.From
		ev.FromAddress = &from
	}
	if raw.To != "" {
		to := raw.To
		ev.ToAddress = &to
	}
	if exchange != "" {
		ev.ExchangeName = &exchange
	}
	if raw.BlockNumber > 0 {
		bn := raw.BlockNumber
		ev.BlockNumber = &bn
	}
	return ev, true
}

// ImpactFor buckets an amount. It is monotonic with breakpoints at 10M and 50M.
func ImpactFor(amount float64) models.Impact {
	switch {
	case amount >= HighImpactThreshold:
		return models.ImpactHigh
	case amount >= MediumImpactThreshold:
		return models.ImpactMedium
	default:
		return models.ImpactLow
	}
}

// FormatAmount renders a dollar amount as $1.2B, $45.0M, $3.0K or $512.40.
func FormatAmount(amount float64) string {
	switch {
	case amount >= 1e9:
		return fmt.Sprintf("$%.1fB", amount/1e9)
	case amount >= 1e6:
		return fmt.Sprintf("$%.1fM", amount/1e6)
	case amount >= 1e3:
		return fmt.Sprintf("$%.1fK", amount/1e3)
	default:
		return fmt.Sprintf("$%.2f", amount)
	}
}

func describe(t models.FlowType, symbol, formatted, exchange string) string {
	if exchange == "" {
		exchange = "Exchange"
	}
	switch t {
	case models.FlowMint:
		return fmt.Sprintf("%s %s minted", formatted, symbol)
	case models.FlowBurn:
		return fmt.Sprintf("%s %s burned", formatted, symbol)
	case models.FlowExchangeInflow:
		return fmt.Sprintf("%s %s → %s", formatted, symbol, exchange)
	case models.FlowExchangeOutflow:
		return fmt.Sprintf("%s %s ← %s", formatted, symbol, exchange)
	default:
		return fmt.Sprintf("%s %s whale transfer", formatted, symbol)
	}
}

func eventID(raw models.RawTransfer) string {
	if raw.ID != "" {
		return raw.ID
	}
	return fmt.Sprintf("%s-%d", raw.TxHash, raw.LogIndex)
}

func isZero(address string) bool {
	return strings.EqualFold(address, models.ZeroAddress)
}
