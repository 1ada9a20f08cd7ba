package config

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestLoadConfig_Defaults(t *testing.T) {
	cfg := LoadConfig("analyzer")

	assert.Equal(t, "analyzer", cfg.ServiceName)
	assert.Equal(t, 8080, cfg.HTTPPort)
	assert.Equal(t, "info", cfg.LogLevel)
	assert.Equal(t, "FIX.4.4", cfg.DefaultFixVersion)
	assert.Equal(t, TimestampFallbackNow, cfg.TimestampFallback)
	assert.Equal(t, 1000, cfg.LatencySampleSize)
	assert.Equal(t, ":8080", cfg.HTTPAddr())
}

func TestLoadConfig_Environment(t *testing.T) {
	t.Setenv("PORT_HTTP", "9090")
	t.Setenv("DEFAULT_FIX_VERSION", "FIX.4.2")
	t.Setenv("TIMESTAMP_FALLBACK", TimestampFallbackSendingTime)
	t.Setenv("LATENCY_SAMPLE_SIZE", "not-a-number")

	cfg := LoadConfig("ingestor")

	assert.Equal(t, 9090, cfg.HTTPPort)
	assert.Equal(t, "FIX.4.2", cfg.DefaultFixVersion)
	assert.Equal(t, TimestampFallbackSendingTime, cfg.TimestampFallback)
	assert.Equal(t, 1000, cfg.LatencySampleSize, "unparsable int falls back to default")
}
