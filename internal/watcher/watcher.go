// Package watcher polls the flow service and forwards flows it has not
// seen before.
package watcher

import (
	"context"
	"time"

	"github.com/sirupsen/logrus"

	"github.com/navid-fn/flowradar/internal/metrics"
	"github.com/navid-fn/flowradar/internal/models"
)

type FlowReader interface {
	RecentFlows(ctx context.Context, filters models.CapitalFlowFilters) []models.CapitalFlowEvent
}

type FlowSink interface {
	PublishFlows(ctx context.Context, events []models.CapitalFlowEvent) error
}

type Config struct {
	PollInterval time.Duration
	SeenCapacity int

	// Window is the timeRange polled on every tick.
	Window models.TimeRange
}

type Watcher struct {
	reader  FlowReader
	sink    FlowSink
	tracker *SeenTracker
	cfg     Config
	logger  logrus.FieldLogger
	metrics *metrics.Recorder
}

func New(reader FlowReader, sink FlowSink, cfg Config, logger logrus.FieldLogger, m *metrics.Recorder) *Watcher {
	if cfg.PollInterval <= 0 {
		cfg.PollInterval = time.Minute
	}
	if !cfg.Window.Valid() {
		cfg.Window = models.Range1h
	}
	return &Watcher{
		reader:  reader,
		sink:    sink,
		tracker: NewSeenTracker(cfg.SeenCapacity),
		cfg:     cfg,
		logger:  logger,
		metrics: m,
	}
}

// Run polls until ctx is cancelled.
func (w *Watcher) Run(ctx context.Context) error {
	w.logger.WithFields(logrus.Fields{
		"interval": w.cfg.PollInterval,
		"window":   w.cfg.Window,
	}).Info("Starting flow watcher")

	ticker := time.NewTicker(w.cfg.PollInterval)
	defer ticker.Stop()

	for {
		if n, err := w.Poll(ctx); err != nil {
			w.logger.WithError(err).Error("publishing flows failed")
		} else if n > 0 {
			w.logger.WithField("count", n).Info("published new flows")
		}

		select {
		case <-ctx.Done():
			w.logger.Info("Stopping flow watcher")
			return nil
		case <-ticker.C:
		}
	}
}

// Poll publishes the unseen flows of the current window, oldest first, and
// returns how many were sent. Ids are only marked once the sink accepted
// them, so a failed publish is retried on the next poll.
func (w *Watcher) Poll(ctx context.Context) (int, error) {
	window := w.cfg.Window
	events := w.reader.RecentFlows(ctx, models.CapitalFlowFilters{TimeRange: &window})

	var fresh []models.CapitalFlowEvent
	for i := len(events) - 1; i >= 0; i-- {
		if !w.tracker.Seen(events[i].ID) {
			fresh = append(fresh, events[i])
		}
	}
	if len(fresh) == 0 {
		return 0, nil
	}

	if err := w.sink.PublishFlows(ctx, fresh); err != nil {
		return 0, err
	}
	for _, ev := range fresh {
		w.tracker.Mark(ev.ID)
	}
	w.metrics.Published(len(fresh))
	return len(fresh), nil
}
