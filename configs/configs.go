// Package configs provides application configuration loaded from environment variables.
// All configuration is externalized via environment variables for 12-factor app compliance.
package configs

import (
	"fmt"
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/joho/godotenv"
)

// AppConfig holds all application configuration.
// Load it once at startup using AppLoad().
type AppConfig struct {
	// Debug lowers the log level to debug.
	Debug bool

	// RegistryFile optionally overrides the built-in exchange and stablecoin tables.
	RegistryFile string

	// DBDSN is the ClickHouse connection string.
	DBDSN string

	Flow     FlowConfig
	RPC      RPCConfig
	Redis    RedisConfig
	Watcher  WatcherConfig
	Ingester IngesterConfig
	Server   ServerConfig

	// KafkaFlow contains Kafka connection settings for classified flows.
	KafkaFlow KafkaConfig
}

// FlowConfig holds the flow service settings.
type FlowConfig struct {
	// UseMockData serves the deterministic generator instead of chain data. Default: true.
	UseMockData bool

	// MaxConcurrency bounds concurrent per-contract log queries.
	MaxConcurrency int

	// QueryTimeout is the per-call deadline on the event source.
	QueryTimeout time.Duration

	// CacheTTL is how long a fetched live window is reused. Zero disables caching.
	CacheTTL time.Duration

	// BlockTime is the average block interval used to turn a time range into blocks.
	BlockTime time.Duration
}

// RPCConfig holds Ethereum node settings.
type RPCConfig struct {
	URL               string
	RequestsPerSecond float64
	MaxBlockRange     uint64
}

// RedisConfig holds the shared cache settings. An empty Addr selects the in-memory cache.
type RedisConfig struct {
	Addr     string
	Password string
	DB       int
}

// KafkaConfig holds Kafka connection settings.
type KafkaConfig struct {
	// Broker is the Kafka broker address (e.g., "localhost:9092").
	Broker string

	// Topic is the Kafka topic for flow events.
	Topic string

	// GroupID is the consumer group ID for the ingester.
	GroupID string
}

// WatcherConfig holds settings for the flow watcher.
type WatcherConfig struct {
	// PollInterval is the delay between two RecentFlows polls.
	PollInterval time.Duration

	// SeenCapacity bounds the number of remembered event ids.
	SeenCapacity int
}

// IngesterConfig holds settings for batch processing.
type IngesterConfig struct {
	// BatchSize is the maximum number of flows to accumulate before flushing.
	BatchSize int

	// BatchTimeoutSeconds is the maximum seconds to wait before flushing.
	BatchTimeoutSeconds int
}

// ServerConfig holds API server settings shared with the flow service.
// The listen port lives in server/config.
type ServerConfig struct {
	// StreamInterval is how often the websocket hub looks for new flows.
	StreamInterval time.Duration
}

// getDatabaseDSN constructs the ClickHouse DSN from environment variables.
func getDatabaseDSN() string {
	dbUser := getEnv("CLICKHOUSE_USER", "user")
	dbPassword := getEnv("CLICKHOUSE_PASSWORD", "password")
	dbHost := getEnv("CLICKHOUSE_HOST", "localhost")
	dbPort := getEnv("CLICKHOUSE_TCP_PORT", "9000")
	dbName := getEnv("CLICKHOUSE_DB", "db")

	return fmt.Sprintf(
		"clickhouse://%s:%s@%s:%s/%s?dial_timeout=10s&read_timeout=20s",
		dbUser, dbPassword, dbHost, dbPort, dbName,
	)
}

// AppLoad loads all application configuration from environment variables.
// It attempts to load a .env file first (for local development).
// Call this once at application startup.
func AppLoad() *AppConfig {
	_ = godotenv.Load() // Ignore error - .env is optional

	return &AppConfig{
		Debug:        getEnvBool("DEBUG", false),
		RegistryFile: getEnv("REGISTRY_FILE", ""),
		DBDSN:        getDatabaseDSN(),
		Flow: FlowConfig{
			UseMockData:    getEnvBool("USE_MOCK_DATA", true),
			MaxConcurrency: getEnvInt("MAX_CONCURRENCY", 4),
			QueryTimeout:   getEnvDuration("QUERY_TIMEOUT", 15*time.Second),
			CacheTTL:       getEnvDuration("CACHE_TTL", 30*time.Second),
			BlockTime:      getEnvDuration("BLOCK_TIME", 12*time.Second),
		},
		RPC: RPCConfig{
			URL:               getEnv("RPC_URL", "https://ethereum-rpc.publicnode.com"),
			RequestsPerSecond: getEnvFloat("RPC_REQUESTS_PER_SECOND", 10),
			MaxBlockRange:     uint64(max(getEnvInt("RPC_MAX_BLOCK_RANGE", 2000), 1)),
		},
		Redis: RedisConfig{
			Addr:     getEnv("REDIS_ADDR", ""),
			Password: getEnv("REDIS_PASSWORD", ""),
			DB:       getEnvInt("REDIS_DB", 0),
		},
		KafkaFlow: KafkaConfig{
			Broker:  getEnv("KAFKA_BROKER", "localhost:9092"),
			Topic:   getEnv("KAFKA_FLOW_TOPIC", "flowradar_flows"),
			GroupID: getEnv("KAFKA_FLOW_GROUP_ID", "flowradar-ingester"),
		},
		Watcher: WatcherConfig{
			PollInterval: getEnvDuration("WATCHER_POLL_INTERVAL", time.Minute),
			SeenCapacity: getEnvInt("WATCHER_SEEN_CAPACITY", 5000),
		},
		Ingester: IngesterConfig{
			BatchSize:           getEnvInt("BATCH_SIZE", 200),
			BatchTimeoutSeconds: getEnvInt("BATCH_TIMEOUT_SECONDS", 5),
		},
		Server: ServerConfig{
			StreamInterval: getEnvDuration("STREAM_INTERVAL", 15*time.Second),
		},
	}
}

// getEnv returns the environment variable value or a default.
func getEnv(key, defaultValue string) string {
	if value, exists := os.LookupEnv(key); exists {
		return value
	}
	return defaultValue
}

// getEnvInt returns the environment variable as int or a default.
func getEnvInt(key string, defaultValue int) int {
	valueStr := getEnv(key, "")
	if valueStr == "" {
		return defaultValue
	}
	value, err := strconv.Atoi(valueStr)
	if err != nil {
		return defaultValue
	}
	return value
}

func getEnvFloat(key string, defaultValue float64) float64 {
	value, err := strconv.ParseFloat(getEnv(key, ""), 64)
	if err != nil {
		return defaultValue
	}
	return value
}

// getEnvBool accepts the usual spellings (1, true, yes, on) case-insensitively.
func getEnvBool(key string, defaultValue bool) bool {
	switch strings.ToLower(strings.TrimSpace(getEnv(key, ""))) {
	case "1", "true", "yes", "on":
		return true
	case "0", "false", "no", "off":
		return false
	default:
		return defaultValue
	}
}

// getEnvDuration reads a Go duration ("30s", "2m") or a plain number of seconds.
func getEnvDuration(key string, defaultValue time.Duration) time.Duration {
	valueStr := getEnv(key, "")
	if valueStr == "" {
		return defaultValue
	}
	if d, err := time.ParseDuration(valueStr); err == nil {
		return d
	}
	if secs, err := strconv.Atoi(valueStr); err == nil {
		return time.Duration(secs) * time.Second
	}
	return defaultValue
}
