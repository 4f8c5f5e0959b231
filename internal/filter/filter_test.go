package filter

import (
	"fmt"
	"testing"
	"time"

	"github.com/navid-fn/flowradar/internal/models"
)

var now = time.Date(2024, 5, 1, 12, 0, 0, 0, time.UTC)

func strPtr(s string) *string { return &s }

func event(id string, t models.FlowType, coin string, amount float64, impact models.Impact, age time.Duration) models.CapitalFlowEvent {
	return models.CapitalFlowEvent{
		ID:         id,
		Type:       t,
		Stablecoin: coin,
		Amount:     amount,
		Impact:     impact,
		Timestamp:  now.Add(-age),
	}
}

// fixture is sorted newest-first.
func fixture() []models.CapitalFlowEvent {
	inflow := event("e3", models.FlowExchangeInflow, "USDT", 12_000_000, models.ImpactMedium, 30*time.Minute)
	inflow.ExchangeName = strPtr("Binance")
	outflow := event("e5", models.FlowExchangeOutflow, "USDC", 75_000_000, models.ImpactHigh, 3*time.Hour)
	outflow.ExchangeName = strPtr("Coinbase")

	return []models.CapitalFlowEvent{
		event("e1", models.FlowMint, "USDT", 250_000_000, models.ImpactHigh, 5*time.Minute),
		event("e2", models.FlowBurn, "USDC", 40_000, models.ImpactLow, 10*time.Minute),
		inflow,
		event("e4", models.FlowWhaleTransfer, "DAI", 9_000_000, models.ImpactLow, 2*time.Hour),
		outflow,
		event("e6", models.FlowBurn, "USDT", 100_000_000, models.ImpactHigh, 30*time.Hour),
	}
}

func ids(events []models.CapitalFlowEvent) []string {
	out := make([]string, len(events))
	for i, ev := range events {
		out[i] = ev.ID
	}
	return out
}

func TestApplyEmptyFilterIsIdentity(t *testing.T) {
	events := fixture()
	got := Apply(events, models.CapitalFlowFilters{}, now)

	if fmt.Sprint(ids(got)) != fmt.Sprint(ids(events)) {
		t.Errorf("Expected identity, got %v", ids(got))
	}
}

func TestApplyTruncatesToFifty(t *testing.T) {
	events := make([]models.CapitalFlowEvent, 0, 80)
	for i := 0; i < 80; i++ {
		events = append(events, event(fmt.Sprintf("e%d", i), models.FlowMint, "USDT", 20_000, models.ImpactLow, time.Duration(i)*time.Minute))
	}

	got := Apply(events, models.CapitalFlowFilters{}, now)
	if len(got) != MaxResults {
		t.Fatalf("Expected %d events, got %d", MaxResults, len(got))
	}
	if got[0].ID != "e0" || got[49].ID != "e49" {
		t.Errorf("Expected the first 50 in input order, got %s..%s", got[0].ID, got[49].ID)
	}
}

func TestApplyPredicates(t *testing.T) {
	minAmount := 100_000_000.0
	hour := models.Range1h
	day := models.Range24h

	tests := []struct {
		name    string
		filters models.CapitalFlowFilters
		want    string
	}{
		{"Stablecoin case-insensitive", models.CapitalFlowFilters{Stablecoin: []string{"usdc"}}, "[e2 e5]"},
		{"Types", models.CapitalFlowFilters{Types: []models.FlowType{models.FlowBurn}}, "[e2 e6]"},
		{"MinAmount inclusive", models.CapitalFlowFilters{MinAmount: &minAmount}, "[e1 e6]"},
		{"Impact", models.CapitalFlowFilters{Impact: []models.Impact{models.ImpactMedium, models.ImpactLow}}, "[e2 e3 e4]"},
		{"TimeRange 1h", models.CapitalFlowFilters{TimeRange: &hour}, "[e1 e2 e3]"},
		{"TimeRange 24h", models.CapitalFlowFilters{TimeRange: &day}, "[e1 e2 e3 e4 e5]"},
		{"Exchanges case-insensitive", models.CapitalFlowFilters{Exchanges: []string{"binance", "COINBASE"}}, "[e3 e5]"},
		{"Conjunction", models.CapitalFlowFilters{
			Types:     []models.FlowType{models.FlowMint, models.FlowBurn},
			MinAmount: &minAmount,
		}, "[e1 e6]"},
		{"Conjunction with no match", models.CapitalFlowFilters{
			Stablecoin: []string{"DAI"},
			Impact:     []models.Impact{models.ImpactHigh},
		}, "[]"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got := fmt.Sprint(ids(Apply(fixture(), tt.filters, now)))
			if got != tt.want {
				t.Errorf("Expected %s, got %s", tt.want, got)
			}
		})
	}
}

func TestApplyExchangeFilterSkipsUnnamedEvents(t *testing.T) {
	events := []models.CapitalFlowEvent{
		event("a", models.FlowWhaleTransfer, "USDT", 20_000_000, models.ImpactMedium, time.Minute),
	}
	got := Apply(events, models.CapitalFlowFilters{Exchanges: []string{"Exchange"}}, now)
	if len(got) != 0 {
		t.Errorf("Expected events without exchangeName to be excluded, got %v", ids(got))
	}
}

func TestApplyDropsUnknownEnums(t *testing.T) {
	f := models.CapitalFlowFilters{
		Types:  []models.FlowType{"teleport", models.FlowMint},
		Impact: []models.Impact{"extreme"},
	}
	got := fmt.Sprint(ids(Apply(fixture(), f, now)))
	if got != "[e1]" {
		t.Errorf("Expected unknown values to be ignored, got %s", got)
	}
}
