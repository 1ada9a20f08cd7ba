package config

import (
	"fmt"
	"os"
	"strconv"
)

// Timestamp fallback policies for lines with no parseable log prefix.
// Source revisions disagree on which wins, so it is a configuration
// choice rather than a constant.
const (
	TimestampFallbackNow         = "now"
	TimestampFallbackSendingTime = "sendingtime"
)

// Config holds configuration for all services
type Config struct {
	// Service name
	ServiceName string

	// HTTP server port
	HTTPPort int

	// Log level: debug, info, warn, error
	LogLevel string

	// Path to the sqlite message database
	DBPath string

	// Directory holding FIX data dictionary XML files
	SpecDir string

	// Version used when detection fails or a dictionary is missing
	DefaultFixVersion string

	// "now" or "sendingtime", see TimestampFallback* constants
	TimestampFallback string

	// Number of recent messages sampled for latency percentiles
	LatencySampleSize int

	// Kafka brokers (comma-separated) and raw-line topic for the ingestor
	KafkaBrokers string
	KafkaTopic   string
	KafkaGroup   string
}

// LoadConfig loads configuration from environment variables with defaults
func LoadConfig(serviceName string) *Config {
	cfg := &Config{
		ServiceName:       serviceName,
		HTTPPort:          getEnvAsInt("PORT_HTTP", 8080),
		LogLevel:          getEnvAsString("LOG_LEVEL", "info"),
		DBPath:            getEnvAsString("DB_PATH", "data/fixlog.db"),
		SpecDir:           getEnvAsString("FIX_SPEC_DIR", "spec/fix"),
		DefaultFixVersion: getEnvAsString("DEFAULT_FIX_VERSION", "FIX.4.4"),
		TimestampFallback: getEnvAsString("TIMESTAMP_FALLBACK", TimestampFallbackNow),
		LatencySampleSize: getEnvAsInt("LATENCY_SAMPLE_SIZE", 1000),
		KafkaBrokers:      getEnvAsString("KAFKA_BROKERS", "127.0.0.1:9092"),
		KafkaTopic:        getEnvAsString("KAFKA_TOPIC", "fix.loglines"),
		KafkaGroup:        getEnvAsString("KAFKA_GROUP", "fix-log-analyzer"),
	}

	return cfg
}

// HTTPAddr returns the HTTP server address
func (c *Config) HTTPAddr() string {
	return fmt.Sprintf(":%d", c.HTTPPort)
}

func getEnvAsString(key, defaultValue string) string {
	if value := os.Getenv(key); value != "" {
		return value
	}
	return defaultValue
}

func getEnvAsInt(key string, defaultValue int) int {
	if value := os.Getenv(key); value != "" {
		if intValue, err := strconv.Atoi(value); err == nil {
			return intValue
		}
	}
	return defaultValue
}
