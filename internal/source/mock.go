package source

import (
	"fmt"
	"math"
	"math/big"
	"math/rand/v2"
	"sort"
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"

	"github.com/navid-fn/flowradar/internal/classifier"
	"github.com/navid-fn/flowradar/internal/models"
	"github.com/navid-fn/flowradar/internal/registry"
)

const (
	MockEventCount = 60

	mockMinAmount = 10_000
	mockMaxAmount = 500_000_000
)

var mockNamespace = uuid.MustParse("6f1c0c55-8d1e-4c7b-9a43-3f1e2b7d5a10")

// MockGenerator produces a plausible flow stream without touching the chain.
//
// Events sit on a fixed grid of window/MockEventCount slots anchored at the
// Unix epoch. Each slot derives its event from its own seed, so a slot keeps
// the same id, amount and timestamp across calls and a moving now only adds
// new slots at the head and drops old ones at the tail.
type MockGenerator struct {
	registry   *registry.Registry
	classifier *classifier.Classifier
}

func NewMockGenerator(reg *registry.Registry, c *classifier.Classifier) *MockGenerator {
	return &MockGenerator{registry: reg, classifier: c}
}

// Generate returns the grid events with timestamps in (now-window, now],
// sorted newest-first. That is MockEventCount events, give or take one at
// the partially covered edge slots.
func (g *MockGenerator) Generate(now time.Time, window time.Duration) []models.CapitalFlowEvent {
	if window <= 0 {
		window = 24 * time.Hour
	}
	coins := g.registry.Stablecoins()
	if len(coins) == 0 {
		return []models.CapitalFlowEvent{}
	}
	exchanges := g.exchangeAddresses()

	slot := window / MockEventCount
	if slot <= 0 {
		slot = 1
	}
	cutoff := now.Add(-window)
	first := cutoff.UnixNano() / int64(slot)
	last := now.UnixNano() / int64(slot)

	events := make([]models.CapitalFlowEvent, 0, MockEventCount+1)
	for k := first; k <= last; k++ {
		raw, coin := g.slotTransfer(k, slot, window, coins, exchanges)
		if !raw.Timestamp.After(cutoff) || raw.Timestamp.After(now) {
			continue
		}
		if ev, ok := g.classifier.Classify(raw, coin); ok {
			events = append(events, ev)
		}
	}

	sort.SliceStable(events, func(i, j int) bool {
		return events[i].Timestamp.After(events[j].Timestamp)
	})
	return events
}

// slotTransfer builds the transfer of grid slot k. It depends only on k and
// the window.
func (g *MockGenerator) slotTransfer(k int64, slot, window time.Duration, coins []models.Stablecoin, exchanges []string) (models.RawTransfer, models.Stablecoin) {
	rng := rand.New(rand.NewPCG(0x5eed^uint64(k), 0xf10b^uint64(window)))

	coin := coins[rng.IntN(len(coins))]
	amount := logUniform(rng, mockMinAmount, mockMaxAmount)
	ts := time.Unix(0, k*int64(slot)+rng.Int64N(int64(slot))).UTC()

	from, to := mockWallet(rng), mockWallet(rng)
	switch scenario := rng.IntN(10); {
	case scenario < 2:
		from = models.ZeroAddress
	case scenario < 4:
		to = models.ZeroAddress
	case scenario < 6 && len(exchanges) > 0:
		to = exchanges[rng.IntN(len(exchanges))]
	case scenario < 8 && len(exchanges) > 0:
		from = exchanges[rng.IntN(len(exchanges))]
	}

	return models.RawTransfer{
		ID:          "mock-" + uuid.NewSHA1(mockNamespace, []byte(fmt.Sprintf("%s/%d", window, k))).String(),
		From:        from,
		To:          to,
		Value:       toUnits(amount, coin.Decimals),
		TxHash:      mockTxHash(rng),
		BlockNumber: uint64(ts.Unix() / int64(DefaultBlockTime/time.Second)),
		Timestamp:   ts,
	}, coin
}

func (g *MockGenerator) exchangeAddresses() []string {
	var out []string
	for _, key := range g.registry.ExchangeKeys() {
		out = append(out, g.registry.ExchangeAddresses(key)...)
	}
	return out
}

// logUniform skews amounts toward the low end the way real transfer sizes are.
func logUniform(rng *rand.Rand, lo, hi float64) float64 {
	v := math.Exp(math.Log(lo) + rng.Float64()*(math.Log(hi)-math.Log(lo)))
	return math.Max(lo, math.Round(v*100)/100)
}

func toUnits(amount float64, decimals int32) *big.Int {
	return decimal.NewFromFloat(amount).Shift(decimals).BigInt()
}

func mockWallet(rng *rand.Rand) string {
	return fmt.Sprintf("0x%016x%016x%08x", rng.Uint64(), rng.Uint64(), rng.Uint32())
}

func mockTxHash(rng *rand.Rand) string {
	return fmt.Sprintf("0x%016x%016x%016x%016x", rng.Uint64(), rng.Uint64(), rng.Uint64(), rng.Uint64())
}
