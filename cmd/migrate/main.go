package main

import (
	"database/sql"

	_ "github.com/ClickHouse/clickhouse-go/v2" // ClickHouse driver
	"github.com/pressly/goose/v3"

	"github.com/navid-fn/flowradar/configs"
	"github.com/navid-fn/flowradar/internal/logging"
)

func main() {
	cfg := configs.AppLoad()
	logger := logging.NewLogger(cfg.Debug)

	db, err := sql.Open("clickhouse", cfg.DBDSN)
	if err != nil {
		logger.WithError(err).Fatal("Failed to connect to database")
	}
	defer db.Close()

	if err := db.Ping(); err != nil {
		logger.WithError(err).Fatal("Failed to ping database")
	}

	if err := goose.SetDialect("clickhouse"); err != nil {
		logger.WithError(err).Fatal("Goose: failed to set dialect")
	}

	logger.Info("Running capital_flow migrations...")
	if err := goose.Up(db, "internal/migrations"); err != nil {
		logger.WithError(err).Fatal("Goose migration failed")
	}

	logger.Info("Migrations completed successfully")
}
