package flow

import (
	"context"
	"errors"
	"fmt"
	"io"
	"math/big"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/sirupsen/logrus"

	"github.com/navid-fn/flowradar/internal/cache"
	"github.com/navid-fn/flowradar/internal/models"
	"github.com/navid-fn/flowradar/internal/registry"
)

var now = time.Date(2024, 5, 1, 12, 0, 0, 0, time.UTC)

const (
	wallet  = "0x1111111111111111111111111111111111111111"
	wallet2 = "0x2222222222222222222222222222222222222222"
	binance = "0x28C6c06298d514Db089934071355E5743bf21d60"
)

type query struct {
	contract string
	from, to uint64
	budget   time.Duration
}

type stubSource struct {
	mu          sync.Mutex
	head        uint64
	headErr     error
	panicOnHead bool
	panicQuery  string
	logs        map[string][]models.RawTransfer
	errs        map[string]error
	queries     []query
}

func (s *stubSource) CurrentBlockNumber(ctx context.Context) (uint64, error) {
	if s.panicOnHead {
		panic("node exploded")
	}
	return s.head, s.headErr
}

func (s *stubSource) QueryTransferLogs(ctx context.Context, contract string, from, to uint64) ([]models.RawTransfer, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	key := strings.ToLower(contract)
	q := query{contract: key, from: from, to: to}
	if deadline, ok := ctx.Deadline(); ok {
		q.budget = time.Until(deadline)
	}
	s.queries = append(s.queries, q)
	if key == s.panicQuery {
		panic("bad log payload")
	}
	if err := s.errs[key]; err != nil {
		return nil, err
	}
	return s.logs[key], nil
}

func (s *stubSource) queried() []query {
	s.mu.Lock()
	defer s.mu.Unlock()
	return append([]query(nil), s.queries...)
}

func addr(symbol string) string {
	coin, _ := registry.Default().Stablecoin(symbol)
	return strings.ToLower(coin.Address)
}

func usdc(amount int64) *big.Int {
	return new(big.Int).Mul(big.NewInt(amount), big.NewInt(1_000_000))
}

func raw(i int, from, to string, amount int64) models.RawTransfer {
	return models.RawTransfer{
		From:        from,
		To:          to,
		Value:       usdc(amount),
		TxHash:      fmt.Sprintf("0x%02d", i),
		LogIndex:    uint64(i),
		BlockNumber: uint64(10_000 - i),
		Timestamp:   now.Add(-time.Duration(i) * time.Minute),
	}
}

// fixture holds ten USDC transfers, deliberately out of time order.
func fixture() []models.RawTransfer {
	return []models.RawTransfer{
		raw(5, models.ZeroAddress, wallet, 150_000_000),  // mint, match
		raw(1, wallet, models.ZeroAddress, 20_000_000),   // burn, too small
		raw(9, wallet, models.ZeroAddress, 300_000_000),  // burn, match
		raw(2, binance, wallet, 200_000_000),             // outflow
		raw(7, models.ZeroAddress, wallet, 100_000_000),  // mint, match at the boundary
		raw(3, wallet, wallet2, 500_000_000),             // whale
		raw(8, wallet, binance, 120_000_000),             // inflow
		raw(4, models.ZeroAddress, wallet, 99_999_999),   // mint, just below
		raw(6, wallet, models.ZeroAddress, 5_000),        // below materiality
		raw(0, models.ZeroAddress, wallet2, 400_000_000), // mint, match
	}
}

func quietLogger() *logrus.Logger {
	l := logrus.New()
	l.SetOutput(io.Discard)
	return l
}

func newLiveService(src *stubSource, opts ...Option) *Service {
	cfg := DefaultConfig()
	cfg.UseMockData = false
	cfg.CacheTTL = 0
	opts = append([]Option{WithClock(func() time.Time { return now }), WithLogger(quietLogger())}, opts...)
	return NewService(cfg, registry.Default(), src, opts...)
}

func newMockService() *Service {
	return NewService(DefaultConfig(), registry.Default(), nil,
		WithClock(func() time.Time { return now }), WithLogger(quietLogger()))
}

func ids(events []models.CapitalFlowEvent) string {
	out := make([]string, len(events))
	for i, ev := range events {
		out[i] = ev.ID
	}
	return fmt.Sprint(out)
}

func TestRecentFlowsFixtureScenario(t *testing.T) {
	src := &stubSource{head: 10_000, logs: map[string][]models.RawTransfer{addr("USDC"): fixture()}}
	s := newLiveService(src)

	minAmount := 100_000_000.0
	got := s.RecentFlows(context.Background(), models.CapitalFlowFilters{
		Types:     []models.FlowType{models.FlowMint, models.FlowBurn},
		MinAmount: &minAmount,
	})

	want := "[0x00-0 0x05-5 0x07-7 0x09-9]"
	if ids(got) != want {
		t.Errorf("Expected %s, got %s", want, ids(got))
	}
	for i := 1; i < len(got); i++ {
		if got[i].Timestamp.After(got[i-1].Timestamp) {
			t.Errorf("Expected newest-first order at %d", i)
		}
	}
}

func TestRecentFlowsResolvesBlockWindow(t *testing.T) {
	src := &stubSource{head: 10_000}
	s := newLiveService(src)

	hour := models.Range1h
	s.RecentFlows(context.Background(), models.CapitalFlowFilters{TimeRange: &hour})

	qs := src.queried()
	if len(qs) != len(registry.DefaultStablecoins) {
		t.Fatalf("Expected %d contract queries, got %d", len(registry.DefaultStablecoins), len(qs))
	}
	for _, q := range qs {
		if q.from != 10_000-300 || q.to != 10_000 {
			t.Errorf("Expected blocks [9700, 10000], got [%d, %d]", q.from, q.to)
		}
	}
}

func TestRecentFlowsSkipsExcludedContracts(t *testing.T) {
	src := &stubSource{head: 10_000}
	s := newLiveService(src)

	s.RecentFlows(context.Background(), models.CapitalFlowFilters{Stablecoin: []string{"dai", "USDT"}})

	queried := make(map[string]bool)
	for _, q := range src.queried() {
		queried[q.contract] = true
	}
	if len(queried) != 2 || !queried[addr("DAI")] || !queried[addr("USDT")] {
		t.Errorf("Expected only DAI and USDT to be queried, got %v", queried)
	}
}

func TestRecentFlowsFallsBackOnHeadError(t *testing.T) {
	src := &stubSource{headErr: errors.New("rpc down")}
	s := newLiveService(src)

	got := s.RecentFlows(context.Background(), models.CapitalFlowFilters{})
	want := newMockService().RecentFlows(context.Background(), models.CapitalFlowFilters{})

	if len(got) == 0 {
		t.Fatal("Expected mock events on fallback")
	}
	if ids(got) != ids(want) {
		t.Error("Expected fallback to serve the mock stream")
	}
}

func TestRecentFlowsPartialFailure(t *testing.T) {
	src := &stubSource{
		head: 10_000,
		logs: map[string][]models.RawTransfer{addr("USDC"): {raw(1, wallet, wallet2, 1_000_000)}},
		errs: map[string]error{addr("USDT"): errors.New("timeout"), addr("DAI"): errors.New("timeout")},
	}
	s := newLiveService(src)

	got := s.RecentFlows(context.Background(), models.CapitalFlowFilters{})
	if ids(got) != "[0x01-1]" {
		t.Errorf("Expected only the USDC event, got %s", ids(got))
	}
}

func TestRecentFlowsAllContractsFailed(t *testing.T) {
	errs := make(map[string]error)
	for _, coin := range registry.DefaultStablecoins {
		errs[strings.ToLower(coin.Address)] = errors.New("timeout")
	}
	s := newLiveService(&stubSource{head: 10_000, errs: errs})

	got := s.RecentFlows(context.Background(), models.CapitalFlowFilters{})
	if len(got) == 0 || !strings.HasPrefix(got[0].ID, "mock-") {
		t.Errorf("Expected mock fallback, got %s", ids(got))
	}
}

func TestRecentFlowsUsesCache(t *testing.T) {
	src := &stubSource{head: 10_000, logs: map[string][]models.RawTransfer{addr("USDC"): fixture()}}
	cfg := DefaultConfig()
	cfg.UseMockData = false
	s := NewService(cfg, registry.Default(), src,
		WithCache(cache.NewMemoryCache(8)),
		WithClock(func() time.Time { return now }),
		WithLogger(quietLogger()))

	first := s.RecentFlows(context.Background(), models.CapitalFlowFilters{})
	n := len(src.queried())
	second := s.RecentFlows(context.Background(), models.CapitalFlowFilters{})

	if len(src.queried()) != n {
		t.Errorf("Expected cached window to skip the source, got %d extra queries", len(src.queried())-n)
	}
	if ids(first) != ids(second) {
		t.Errorf("Expected identical results, got %s and %s", ids(first), ids(second))
	}
}

func TestSummaryLive(t *testing.T) {
	src := &stubSource{head: 10_000, logs: map[string][]models.RawTransfer{addr("USDC"): fixture()}}
	s := newLiveService(src)

	sum := s.Summary(context.Background())
	if sum.TotalMints24h != 150_000_000+100_000_000+99_999_999+400_000_000 {
		t.Errorf("Unexpected mint total %f", sum.TotalMints24h)
	}
	if sum.NetExchangeInflow24h != 120_000_000-200_000_000 {
		t.Errorf("Unexpected net inflow %f", sum.NetExchangeInflow24h)
	}
	if sum.LargestTransaction24h.Amount != 500_000_000 {
		t.Errorf("Expected largest 500M, got %f", sum.LargestTransaction24h.Amount)
	}
	if sum.TopStablecoinByVolume != "USDC" {
		t.Errorf("Expected USDC, got %s", sum.TopStablecoinByVolume)
	}
}

func TestSummaryRecoversFromPanic(t *testing.T) {
	s := newLiveService(&stubSource{panicOnHead: true})

	sum := s.Summary(context.Background())
	if sum.TotalMints24h != 0 || sum.LargestTransaction24h.ID != "none" {
		t.Errorf("Expected safe defaults, got %+v", sum)
	}
	if !sum.LastUpdated.Equal(now) {
		t.Errorf("Expected lastUpdated %v, got %v", now, sum.LastUpdated)
	}
}

func TestMetricsRecoversFromPanic(t *testing.T) {
	s := newLiveService(&stubSource{panicOnHead: true})

	m := s.Metrics(context.Background(), "usdt")
	if m.Stablecoin != "USDT" || m.Minted24h != 0 || m.AvgTransactionSize != 0 {
		t.Errorf("Expected zero metrics for USDT, got %+v", m)
	}
}

func TestMetricsScopedToStablecoin(t *testing.T) {
	s := newMockService()

	m := s.Metrics(context.Background(), "DAI")
	var mints float64
	for _, ev := range s.RecentFlows(context.Background(), models.CapitalFlowFilters{Stablecoin: []string{"DAI"}}) {
		if ev.Type == models.FlowMint {
			mints += ev.Amount
		}
	}
	if m.Minted24h != mints {
		t.Errorf("Expected minted %f, got %f", mints, m.Minted24h)
	}
}

func TestAnalytics(t *testing.T) {
	s := newMockService()

	r := s.Analytics(context.Background(), models.Range7d)
	if r.TimeRange != models.Range7d {
		t.Errorf("Expected timeRange 7d, got %s", r.TimeRange)
	}
	if r.TotalEvents == 0 || r.TotalEvents > 50 {
		t.Errorf("Expected 1..50 events, got %d", r.TotalEvents)
	}
	if len(r.EventsByType) != len(models.FlowTypes) {
		t.Errorf("Expected dense type map, got %v", r.EventsByType)
	}

	r = s.Analytics(context.Background(), "forever")
	if r.TimeRange != models.Range24h {
		t.Errorf("Expected unknown range to fall back to 24h, got %s", r.TimeRange)
	}
}

func TestMode(t *testing.T) {
	if m := newMockService().Mode(); m != "mock" {
		t.Errorf("Expected mock, got %s", m)
	}
	if m := newLiveService(&stubSource{}).Mode(); m != "live" {
		t.Errorf("Expected live, got %s", m)
	}
}

func TestRecentFlowsRecoversFromHeadPanic(t *testing.T) {
	s := newLiveService(&stubSource{panicOnHead: true})

	var got []models.CapitalFlowEvent
	func() {
		defer func() {
			if r := recover(); r != nil {
				t.Fatalf("Expected RecentFlows to recover, got panic %v", r)
			}
		}()
		got = s.RecentFlows(context.Background(), models.CapitalFlowFilters{})
	}()

	want := newMockService().RecentFlows(context.Background(), models.CapitalFlowFilters{})
	if len(got) == 0 || ids(got) != ids(want) {
		t.Errorf("Expected the mock stream after a panic, got %s", ids(got))
	}
}

func TestRecentFlowsContractPanicCountsAsFailure(t *testing.T) {
	src := &stubSource{
		head:       10_000,
		panicQuery: addr("USDT"),
		logs:       map[string][]models.RawTransfer{addr("USDC"): {raw(1, wallet, wallet2, 1_000_000)}},
	}
	s := newLiveService(src)

	got := s.RecentFlows(context.Background(), models.CapitalFlowFilters{})
	if ids(got) != "[0x01-1]" {
		t.Errorf("Expected the USDC event alone, got %s", ids(got))
	}
}

func TestRecentFlowsAllContractsPanicked(t *testing.T) {
	src := &stubSource{head: 10_000, panicQuery: addr("USDC")}
	s := newLiveService(src)

	got := s.RecentFlows(context.Background(), models.CapitalFlowFilters{Stablecoin: []string{"USDC"}})
	if len(got) == 0 || !strings.HasPrefix(got[0].ID, "mock-") {
		t.Errorf("Expected mock fallback, got %s", ids(got))
	}
}

func TestQueryBudgetScalesWithWindow(t *testing.T) {
	tests := []struct {
		name      string
		timeRange models.TimeRange
		head      uint64
		min, max  time.Duration
	}{
		// 300 blocks fit one 2000-block chunk.
		{"one hour", models.Range1h, 10_000, 14 * time.Second, 15 * time.Second},
		// 216000 blocks span 109 chunks.
		{"thirty days", models.Range30d, 1_000_000, 108 * 15 * time.Second, 109 * 15 * time.Second},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			src := &stubSource{head: tt.head}
			s := newLiveService(src)

			tr := tt.timeRange
			s.RecentFlows(context.Background(), models.CapitalFlowFilters{TimeRange: &tr, Stablecoin: []string{"USDC"}})

			queries := src.queried()
			if len(queries) != 1 {
				t.Fatalf("Expected 1 query, got %d", len(queries))
			}
			if b := queries[0].budget; b < tt.min || b > tt.max {
				t.Errorf("Expected budget in [%s, %s], got %s", tt.min, tt.max, b)
			}
		})
	}
}
