// Package flow orchestrates the event source, classifier, filter engine and
// aggregator behind the four read operations exposed to callers.
//
// Every operation returns a value. Live chain access is best effort: any
// failure on the live path is logged and answered from the mock generator,
// and an aggregation panic is answered with zero-valued defaults.
package flow

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"sort"
	"strings"
	"sync/atomic"
	"time"

	"github.com/sirupsen/logrus"
	"golang.org/x/sync/errgroup"

	"github.com/navid-fn/flowradar/internal/aggregator"
	"github.com/navid-fn/flowradar/internal/cache"
	"github.com/navid-fn/flowradar/internal/classifier"
	"github.com/navid-fn/flowradar/internal/filter"
	"github.com/navid-fn/flowradar/internal/metrics"
	"github.com/navid-fn/flowradar/internal/models"
	"github.com/navid-fn/flowradar/internal/registry"
	"github.com/navid-fn/flowradar/internal/source"
)

// DefaultWindow is used when a query carries no timeRange.
const DefaultWindow = models.Range24h

var ErrAllSourcesFailed = errors.New("every tracked contract query failed")

type Config struct {
	UseMockData    bool
	MaxConcurrency int

	// QueryTimeout bounds one eth_getLogs chunk. A contract query gets
	// QueryTimeout per MaxBlockRange blocks of the window.
	QueryTimeout  time.Duration
	MaxBlockRange uint64

	CacheTTL  time.Duration
	BlockTime time.Duration
}

func DefaultConfig() Config {
	return Config{
		UseMockData:    true,
		MaxConcurrency: 4,
		QueryTimeout:   15 * time.Second,
		MaxBlockRange:  source.DefaultMaxBlockRange,
		CacheTTL:       30 * time.Second,
		BlockTime:      source.DefaultBlockTime,
	}
}

type Service struct {
	cfg        Config
	registry   *registry.Registry
	classifier *classifier.Classifier
	source     source.EventSource
	mock       *source.MockGenerator
	cache      cache.Cache
	metrics    *metrics.Recorder
	logger     logrus.FieldLogger
	now        func() time.Time
}

type Option func(*Service)

func WithCache(c cache.Cache) Option { return func(s *Service) { s.cache = c } }

func WithMetrics(m *metrics.Recorder) Option { return func(s *Service) { s.metrics = m } }

func WithLogger(l logrus.FieldLogger) Option { return func(s *Service) { s.logger = l } }

func WithClock(now func() time.Time) Option { return func(s *Service) { s.now = now } }

// NewService wires a flow service. src may be nil when cfg.UseMockData is set.
func NewService(cfg Config, reg *registry.Registry, src source.EventSource, opts ...Option) *Service {
	def := DefaultConfig()
	if cfg.MaxConcurrency <= 0 {
		cfg.MaxConcurrency = def.MaxConcurrency
	}
	if cfg.QueryTimeout <= 0 {
		cfg.QueryTimeout = def.QueryTimeout
	}
	if cfg.BlockTime <= 0 {
		cfg.BlockTime = def.BlockTime
	}
	if cfg.MaxBlockRange == 0 {
		cfg.MaxBlockRange = def.MaxBlockRange
	}

	c := classifier.New(reg)
	s := &Service{
		cfg:        cfg,
		registry:   reg,
		classifier: c,
		source:     src,
		mock:       source.NewMockGenerator(reg, c),
		logger:     logrus.StandardLogger(),
		now:        time.Now,
	}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

// Mode reports "mock" or "live".
func (s *Service) Mode() string {
	if s.live() {
		return "live"
	}
	return "mock"
}

func (s *Service) live() bool {
	return !s.cfg.UseMockData && s.source != nil
}

// RecentFlows returns at most filter.MaxResults events matching filters,
// newest first.
func (s *Service) RecentFlows(ctx context.Context, filters models.CapitalFlowFilters) []models.CapitalFlowEvent {
	filters = filters.Sanitize()
	now := s.now()

	window := DefaultWindow
	if filters.TimeRange != nil {
		window = *filters.TimeRange
	}

	return filter.Apply(s.window(ctx, window, filters, now), filters, now)
}

// Summary rolls up the last 24 hours across all stablecoins.
func (s *Service) Summary(ctx context.Context) (summary models.CapitalFlowSummary) {
	now := s.now()
	defer func() {
		if r := recover(); r != nil {
			s.logger.WithField("panic", r).Error("summary failed, serving defaults")
			s.metrics.Fallback("summary_panic")
			summary = aggregator.Summarize(nil, now)
		}
	}()

	day := models.Range24h
	events := s.RecentFlows(ctx, models.CapitalFlowFilters{TimeRange: &day})
	return aggregator.Summarize(events, now)
}

// Metrics rolls up the last 24 hours of a single stablecoin.
func (s *Service) Metrics(ctx context.Context, stablecoin string) (m models.CapitalFlowMetrics) {
	now := s.now()
	defer func() {
		if r := recover(); r != nil {
			s.logger.WithFields(logrus.Fields{"panic": r, "stablecoin": stablecoin}).Error("metrics failed, serving defaults")
			s.metrics.Fallback("metrics_panic")
			m = aggregator.MetricsFor(nil, stablecoin, now)
		}
	}()

	day := models.Range24h
	events := s.RecentFlows(ctx, models.CapitalFlowFilters{
		Stablecoin: []string{stablecoin},
		TimeRange:  &day,
	})
	return aggregator.MetricsFor(events, stablecoin, now)
}

// Analytics groups the flows of timeRange. An unknown range falls back to 24h.
func (s *Service) Analytics(ctx context.Context, timeRange models.TimeRange) (report models.AnalyticsReport) {
	if !timeRange.Valid() {
		timeRange = DefaultWindow
	}
	defer func() {
		if r := recover(); r != nil {
			s.logger.WithField("panic", r).Error("analytics failed, serving defaults")
			s.metrics.Fallback("analytics_panic")
			report = aggregator.Analytics(nil)
		}
		report.TimeRange = timeRange
	}()

	events := s.RecentFlows(ctx, models.CapitalFlowFilters{TimeRange: &timeRange})
	return aggregator.Analytics(events)
}

// window returns every event of the window, newest first, from the live
// path when enabled and from the mock generator otherwise. A panic on the
// live path is answered like any other live failure.
func (s *Service) window(ctx context.Context, tr models.TimeRange, filters models.CapitalFlowFilters, now time.Time) (events []models.CapitalFlowEvent) {
	defer func() {
		if r := recover(); r != nil {
			s.logger.WithFields(logrus.Fields{"panic": r, "timeRange": tr}).Error("live path panicked, falling back to mock data")
			s.metrics.Fallback("live_panic")
			events = s.mock.Generate(now, tr.Duration())
		}
	}()

	if !s.live() {
		return s.mock.Generate(now, tr.Duration())
	}

	contracts := s.trackedContracts(filters)
	key := cacheKey(tr, contracts)
	if events, ok := s.cached(ctx, key); ok {
		return events
	}

	events, err := s.fetchLive(ctx, tr.Duration(), contracts)
	if err != nil {
		s.logger.WithError(err).WithField("timeRange", tr).Warn("live fetch failed, falling back to mock data")
		s.metrics.Fallback("live_error")
		return s.mock.Generate(now, tr.Duration())
	}

	s.store(ctx, key, events)
	return events
}

func (s *Service) trackedContracts(filters models.CapitalFlowFilters) []models.Stablecoin {
	var out []models.Stablecoin
	for _, coin := range s.registry.Stablecoins() {
		if filters.IncludesStablecoin(coin.Symbol) {
			out = append(out, coin)
		}
	}
	return out
}

// fetchLive queries every contract concurrently. A failed contract
// contributes no events; only a failure of all of them is an error.
func (s *Service) fetchLive(ctx context.Context, window time.Duration, contracts []models.Stablecoin) ([]models.CapitalFlowEvent, error) {
	started := time.Now()
	defer func() { s.metrics.ObserveFetch(time.Since(started)) }()

	headCtx, cancel := context.WithTimeout(ctx, s.cfg.QueryTimeout)
	head, err := s.source.CurrentBlockNumber(headCtx)
	cancel()
	if err != nil {
		return nil, fmt.Errorf("resolve head block: %w", err)
	}
	if len(contracts) == 0 {
		return []models.CapitalFlowEvent{}, nil
	}

	span := uint64(window / s.cfg.BlockTime)
	var fromBlock uint64
	if head > span {
		fromBlock = head - span
	}

	timeout := s.queryTimeout(fromBlock, head)
	results := make([][]models.CapitalFlowEvent, len(contracts))
	var failed atomic.Int32

	g, gctx := errgroup.WithContext(ctx)
	g.SetLimit(s.cfg.MaxConcurrency)
	for i, coin := range contracts {
		g.Go(func() error {
			defer func() {
				if r := recover(); r != nil {
					failed.Add(1)
					s.metrics.SourceQuery(coin.Symbol, fmt.Errorf("panic: %v", r))
					s.logger.WithFields(logrus.Fields{"panic": r, "stablecoin": coin.Symbol}).Error("transfer log query panicked")
				}
			}()

			qctx, cancel := context.WithTimeout(gctx, timeout)
			defer cancel()

			raws, err := s.source.QueryTransferLogs(qctx, coin.Address, fromBlock, head)
			s.metrics.SourceQuery(coin.Symbol, err)
			if err != nil {
				failed.Add(1)
				s.logger.WithError(err).WithField("stablecoin", coin.Symbol).Warn("transfer log query failed")
				return nil
			}

			events := make([]models.CapitalFlowEvent, 0, len(raws))
			for _, raw := range raws {
				if ev, ok := s.classifier.Classify(raw, coin); ok {
					s.metrics.FlowClassified(ev.Type)
					events = append(events, ev)
				}
			}
			results[i] = events
			return nil
		})
	}
	_ = g.Wait()

	if int(failed.Load()) == len(contracts) {
		return nil, ErrAllSourcesFailed
	}

	var merged []models.CapitalFlowEvent
	for _, events := range results {
		merged = append(merged, events...)
	}
	sortNewestFirst(merged)

	s.logger.WithFields(logrus.Fields{
		"fromBlock": fromBlock,
		"toBlock":   head,
		"events":    len(merged),
		"failed":    failed.Load(),
	}).Debug("live window fetched")

	return merged, nil
}

// queryTimeout gives a contract query one QueryTimeout per eth_getLogs
// chunk the source will issue for [from, to].
func (s *Service) queryTimeout(from, to uint64) time.Duration {
	chunks := (to-from)/s.cfg.MaxBlockRange + 1
	return s.cfg.QueryTimeout * time.Duration(chunks)
}

// sortNewestFirst orders by timestamp; equal timestamps fall back to id.
func sortNewestFirst(events []models.CapitalFlowEvent) {
	sort.SliceStable(events, func(i, j int) bool {
		a, b := events[i], events[j]
		if !a.Timestamp.Equal(b.Timestamp) {
			return a.Timestamp.After(b.Timestamp)
		}
		return a.ID > b.ID
	})
}

func cacheKey(tr models.TimeRange, contracts []models.Stablecoin) string {
	symbols := make([]string, len(contracts))
	for i, c := range contracts {
		symbols[i] = c.Symbol
	}
	sort.Strings(symbols)
	return "window:" + string(tr) + ":" + strings.Join(symbols, ",")
}

func (s *Service) cached(ctx context.Context, key string) ([]models.CapitalFlowEvent, bool) {
	if s.cache == nil || s.cfg.CacheTTL <= 0 {
		return nil, false
	}
	b, ok, err := s.cache.Get(ctx, key)
	if err != nil {
		s.logger.WithError(err).Warn("cache read failed")
		return nil, false
	}
	if !ok {
		return nil, false
	}
	var events []models.CapitalFlowEvent
	if err := json.Unmarshal(b, &events); err != nil {
		s.logger.WithError(err).Warn("cache entry is corrupt")
		return nil, false
	}
	return events, true
}

func (s *Service) store(ctx context.Context, key string, events []models.CapitalFlowEvent) {
	if s.cache == nil || s.cfg.CacheTTL <= 0 {
		return
	}
	b, err := json.Marshal(events)
	if err != nil {
		return
	}
	if err := s.cache.Set(ctx, key, b, s.cfg.CacheTTL); err != nil {
		s.logger.WithError(err).Warn("cache write failed")
	}
}
