// Package app assembles the flow service from configuration for the binaries.
package app

import (
	"context"
	"fmt"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/sirupsen/logrus"

	"github.com/navid-fn/flowradar/configs"
	"github.com/navid-fn/flowradar/internal/cache"
	"github.com/navid-fn/flowradar/internal/flow"
	"github.com/navid-fn/flowradar/internal/metrics"
	"github.com/navid-fn/flowradar/internal/registry"
	"github.com/navid-fn/flowradar/internal/source"
)

type FlowStack struct {
	Registry *registry.Registry
	Service  *flow.Service
	Metrics  *metrics.Recorder

	closers []func() error
}

// Close releases the cache connection, if any.
func (s *FlowStack) Close() {
	for _, c := range s.closers {
		_ = c()
	}
}

// NewFlowStack loads the registry, picks the cache backend and builds the
// flow service. promReg may be nil to skip instrumentation.
func NewFlowStack(cfg *configs.AppConfig, logger *logrus.Logger, promReg prometheus.Registerer) (*FlowStack, error) {
	reg := registry.Default()
	if cfg.RegistryFile != "" {
		loaded, err := registry.LoadFile(cfg.RegistryFile)
		if err != nil {
			return nil, fmt.Errorf("load registry: %w", err)
		}
		reg = loaded
	}

	stack := &FlowStack{Registry: reg}
	if promReg != nil {
		stack.Metrics = metrics.New(promReg)
	}

	var c cache.Cache = cache.NewMemoryCache(256)
	if cfg.Redis.Addr != "" {
		rc := cache.NewRedisCache(cache.RedisConfig{
			Addr:     cfg.Redis.Addr,
			Password: cfg.Redis.Password,
			DB:       cfg.Redis.DB,
		})
		ctx, cancel := context.WithTimeout(context.Background(), 3*time.Second)
		err := rc.Ping(ctx)
		cancel()
		if err != nil {
			logger.WithError(err).Warn("Redis unreachable, using in-memory cache")
			_ = rc.Close()
		} else {
			c = rc
			stack.closers = append(stack.closers, rc.Close)
		}
	}

	var src source.EventSource
	if !cfg.Flow.UseMockData {
		src = source.NewLiveSource(source.LiveConfig{
			RPC: source.RPCConfig{
				URL:               cfg.RPC.URL,
				RequestsPerSecond: cfg.RPC.RequestsPerSecond,
				RequestTimeout:    cfg.Flow.QueryTimeout,
			},
			MaxBlockRange: cfg.RPC.MaxBlockRange,
			BlockTime:     cfg.Flow.BlockTime,
		}, logger)
	}

	stack.Service = flow.NewService(flow.Config{
		UseMockData:    cfg.Flow.UseMockData,
		MaxConcurrency: cfg.Flow.MaxConcurrency,
		QueryTimeout:   cfg.Flow.QueryTimeout,
		MaxBlockRange:  cfg.RPC.MaxBlockRange,
		CacheTTL:       cfg.Flow.CacheTTL,
		BlockTime:      cfg.Flow.BlockTime,
	}, reg, src,
		flow.WithCache(c),
		flow.WithMetrics(stack.Metrics),
		flow.WithLogger(logger),
	)

	logger.WithFields(logrus.Fields{
		"mode":        stack.Service.Mode(),
		"stablecoins": len(reg.Stablecoins()),
	}).Info("Flow service ready")

	return stack, nil
}
