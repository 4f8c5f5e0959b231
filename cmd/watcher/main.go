package main

import (
	"context"
	"os"
	"os/signal"
	"syscall"

	"github.com/prometheus/client_golang/prometheus"

	"github.com/navid-fn/flowradar/configs"
	"github.com/navid-fn/flowradar/internal/app"
	"github.com/navid-fn/flowradar/internal/logging"
	"github.com/navid-fn/flowradar/internal/publisher"
	"github.com/navid-fn/flowradar/internal/watcher"
)

func main() {
	appConfig := configs.AppLoad()
	logger := logging.NewLogger(appConfig.Debug)

	stack, err := app.NewFlowStack(appConfig, logger, prometheus.DefaultRegisterer)
	if err != nil {
		logger.WithError(err).Fatal("Failed to build flow service")
	}
	defer stack.Close()

	writer := publisher.NewKafkaWriter(appConfig.KafkaFlow.Broker, appConfig.KafkaFlow.Topic)
	defer writer.Close()

	w := watcher.New(
		stack.Service,
		publisher.NewPublisher(writer),
		watcher.Config{
			PollInterval: appConfig.Watcher.PollInterval,
			SeenCapacity: appConfig.Watcher.SeenCapacity,
		},
		logger,
		stack.Metrics,
	)

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	logger.WithField("topic", appConfig.KafkaFlow.Topic).Info("Watcher started")

	if err := w.Run(ctx); err != nil {
		logger.WithError(err).Fatal("Watcher stopped with error")
	}

	logger.Info("Watcher shutdown complete")
}
