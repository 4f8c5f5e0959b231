package config

import (
	"fmt"
	"os"
	"strconv"

	"github.com/joho/godotenv"
	"github.com/sirupsen/logrus"
)

type Config struct {
	ClickHouseDSN string
	ServerPort    string
	DebugMode     string

	// HistoryEnabled connects to ClickHouse for /v1/flows/history.
	HistoryEnabled bool

	// HistoryMaxLimit caps the page size of history queries.
	HistoryMaxLimit int
}

func Load() *Config {
	if err := godotenv.Load(); err != nil {
		logrus.Debug("No .env file found, using environment variables")
	}

	dsn := fmt.Sprintf("clickhouse://%s:%s@%s:%s/%s?dial_timeout=10s&read_timeout=20s",
		getEnv("CLICKHOUSE_USER", "default"),
		getEnv("CLICKHOUSE_PASSWORD", ""),
		getEnv("CLICKHOUSE_HOST", "localhost"),
		getEnv("CLICKHOUSE_TCP_PORT", "9000"),
		getEnv("CLICKHOUSE_DB", "default"),
	)

	historyEnabled, _ := strconv.ParseBool(getEnv("HISTORY_ENABLED", "false"))
	maxLimit, err := strconv.Atoi(getEnv("HISTORY_MAX_LIMIT", "500"))
	if err != nil || maxLimit <= 0 {
		maxLimit = 500
	}

	return &Config{
		ClickHouseDSN:   dsn,
		ServerPort:      getEnv("SERVER_PORT", "8080"),
		DebugMode:       getEnv("DEBUGMODE", "True"),
		HistoryEnabled:  historyEnabled,
		HistoryMaxLimit: maxLimit,
	}
}

func getEnv(key, defaultValue string) string {
	if value, exists := os.LookupEnv(key); exists {
		return value
	}
	return defaultValue
}
