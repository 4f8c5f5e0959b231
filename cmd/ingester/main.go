package main

import (
	"context"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/segmentio/kafka-go"

	"github.com/navid-fn/flowradar/configs"
	"github.com/navid-fn/flowradar/internal/ingester"
	"github.com/navid-fn/flowradar/internal/logging"
	"github.com/navid-fn/flowradar/internal/metrics"
	"github.com/navid-fn/flowradar/internal/storage"
)

func main() {
	appConfig := configs.AppLoad()
	logger := logging.NewLogger(appConfig.Debug)

	flowStorage, err := storage.NewClickHouseStorage(appConfig.DBDSN)
	if err != nil {
		logger.WithError(err).Fatal("Failed to connect to ClickHouse")
	}
	defer flowStorage.Close()

	kafkaReader := kafka.NewReader(kafka.ReaderConfig{
		Brokers:        []string{appConfig.KafkaFlow.Broker},
		Topic:          appConfig.KafkaFlow.Topic,
		GroupID:        appConfig.KafkaFlow.GroupID,
		MinBytes:       10e3, // 10KB
		MaxBytes:       10e6, // 10MB
		CommitInterval: 0,    // commits are issued by the ingester after each insert
	})
	defer kafkaReader.Close()

	svc := ingester.NewIngester(
		kafkaReader,
		flowStorage,
		logger,
		metrics.New(prometheus.DefaultRegisterer),
		ingester.Config{
			BatchSize:    appConfig.Ingester.BatchSize,
			BatchTimeout: time.Duration(appConfig.Ingester.BatchTimeoutSeconds) * time.Second,
		},
	)

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	logger.Info("Ingester started successfully")

	if err := svc.Start(ctx); err != nil {
		logger.WithError(err).Fatal("Ingester stopped with error")
	}

	logger.Info("Ingester shutdown complete")
}
