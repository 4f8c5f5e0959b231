package main

import (
	"context"
	"errors"
	"flag"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"strings"
	"syscall"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/pressly/goose/v3"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"gorm.io/driver/clickhouse"
	"gorm.io/gorm"

	"github.com/navid-fn/flowradar/configs"
	"github.com/navid-fn/flowradar/internal/app"
	"github.com/navid-fn/flowradar/internal/logging"
	"github.com/navid-fn/flowradar/server/config"
	"github.com/navid-fn/flowradar/server/internal/handler"
	"github.com/navid-fn/flowradar/server/internal/repository"
	"github.com/navid-fn/flowradar/server/internal/router"
	"github.com/navid-fn/flowradar/server/internal/service"
	"github.com/navid-fn/flowradar/server/internal/stream"
)

func main() {
	migrateFlag := flag.Bool("migrate", false, "Run database migrations before serving")
	flag.Parse()

	cfg := config.Load()
	appConfig := configs.AppLoad()
	logger := logging.NewLogger(appConfig.Debug)

	if !strings.EqualFold(cfg.DebugMode, "true") {
		gin.SetMode(gin.ReleaseMode)
	}

	promReg := prometheus.NewRegistry()
	promReg.MustRegister(collectors.NewGoCollector(), collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}))

	stack, err := app.NewFlowStack(appConfig, logger, promReg)
	if err != nil {
		logger.WithError(err).Fatal("Failed to build flow service")
	}
	defer stack.Close()

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	hub := stream.NewHub(stack.Service, appConfig.Server.StreamInterval, logger)
	go hub.Run(ctx)

	routerConfig := &router.Config{
		FlowHandler:    handler.NewFlowHandler(stack.Service, stack.Registry),
		Hub:            hub,
		MetricsHandler: promhttp.HandlerFor(promReg, promhttp.HandlerOpts{}),
	}

	if cfg.HistoryEnabled {
		db, err := gorm.Open(clickhouse.Open(cfg.ClickHouseDSN), &gorm.Config{})
		if err != nil {
			logger.WithError(err).Fatal("Failed to connect to database")
		}
		if *migrateFlag {
			sqlDB, err := db.DB()
			if err != nil {
				logger.WithError(err).Fatal("Failed to get sql.DB")
			}
			if err := goose.SetDialect("clickhouse"); err != nil {
				logger.WithError(err).Fatal("Goose: failed to set dialect")
			}
			logger.Info("Running database migrations...")
			if err := goose.Up(sqlDB, "internal/migrations"); err != nil {
				logger.WithError(err).Fatal("Goose migration failed")
			}
		}
		historyService := service.NewHistoryService(repository.NewGormFlowRepository(db), cfg.HistoryMaxLimit)
		routerConfig.HistoryHandler = handler.NewHistoryHandler(historyService)
	}

	srv := &http.Server{
		Addr:              fmt.Sprintf(":%s", cfg.ServerPort),
		Handler:           router.NewRouter(routerConfig),
		ReadHeaderTimeout: 10 * time.Second,
	}

	go func() {
		logger.WithField("addr", srv.Addr).Info("API server listening")
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			logger.WithError(err).Error("API server failed")
			stop()
		}
	}()

	<-ctx.Done()

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	if err := srv.Shutdown(shutdownCtx); err != nil {
		logger.WithError(err).Error("Graceful shutdown failed")
	}
	logger.Info("API server stopped")
}
