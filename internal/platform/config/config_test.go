package config

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func lookupFrom(env map[string]string) func(string) (string, bool) {
	return func(key string) (string, bool) {
		v, ok := env[key]
		return v, ok
	}
}

func TestDefaults(t *testing.T) {
	cfg, err := fromLookup(lookupFrom(nil))
	require.NoError(t, err)

	assert.Equal(t, 17, cfg.Bitrix.TargetPipeline)
	assert.Equal(t, []string{"C17:NEW"}, cfg.Bitrix.TargetStages)
	assert.Equal(t, 10, cfg.Automation.BatchSize)
	assert.Equal(t, 2*time.Second, cfg.Automation.DelayBetweenBatches)
	assert.Equal(t, 500*time.Millisecond, cfg.Automation.DelayBetweenRecords)
	assert.Equal(t, 100, cfg.Automation.MaxRecordsPerCycle)
	assert.Equal(t, 10*time.Second, cfg.Automation.PollInterval)
	assert.False(t, cfg.Automation.ContinuousMode)
	assert.True(t, cfg.ErrorHandling.ContinueOnError)
	assert.Equal(t, 3, cfg.Registry.MaxRetries)
	assert.Equal(t, 30*time.Second, cfg.Registry.Timeout)
	assert.Equal(t, "memory", cfg.Automation.DedupStore)
}

func TestOverlay(t *testing.T) {
	cfg, err := fromLookup(lookupFrom(map[string]string{
		"BITRIX_API_URL":             "https://example.bitrix24.com.br/rest/1/abc/",
		"PGFN_TARGET_STAGES":         "C17:NEW, C17:PREPARATION ,",
		"PGFN_BATCH_SIZE":            "5",
		"PGFN_DELAY_BETWEEN_BATCHES": "1500",
		"PGFN_DELAY_BETWEEN_RECORDS": "250ms",
		"PGFN_INTERVAL_SECONDS":      "30",
		"PGFN_CONTINUOUS_MODE":       "true",
		"PGFN_CONTINUE_ON_ERROR":     "false",
		"KAFKA_BROKERS":              "a:9092,b:9092",
		"PORT":                       "8081",
	}))
	require.NoError(t, err)

	assert.Equal(t, "https://example.bitrix24.com.br/rest/1/abc", cfg.Bitrix.APIURL)
	assert.Equal(t, []string{"C17:NEW", "C17:PREPARATION"}, cfg.Bitrix.TargetStages)
	assert.Equal(t, 5, cfg.Automation.BatchSize)
	assert.Equal(t, 1500*time.Millisecond, cfg.Automation.DelayBetweenBatches)
	assert.Equal(t, 250*time.Millisecond, cfg.Automation.DelayBetweenRecords)
	assert.Equal(t, 30*time.Second, cfg.Automation.PollInterval)
	assert.True(t, cfg.Automation.ContinuousMode)
	assert.False(t, cfg.ErrorHandling.ContinueOnError)
	assert.Equal(t, []string{"a:9092", "b:9092"}, cfg.Kafka.Brokers)
	assert.Equal(t, ":8081", cfg.Monitor.Addr)
}

func TestInvalidValues(t *testing.T) {
	tests := []struct {
		name string
		env  map[string]string
	}{
		{"non-numeric batch size", map[string]string{"PGFN_BATCH_SIZE": "ten"}},
		{"zero batch size", map[string]string{"PGFN_BATCH_SIZE": "0"}},
		{"zero max records", map[string]string{"PGFN_MAX_RECORDS": "0"}},
		{"bad bool", map[string]string{"PGFN_CONTINUE_ON_ERROR": "maybe"}},
		{"bad duration", map[string]string{"PGFN_API_TIMEOUT": "soon"}},
		{"unknown dedup store", map[string]string{"PGFN_DEDUP_STORE": "disk"}},
		{"redis dedup without url", map[string]string{"PGFN_DEDUP_STORE": "redis"}},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := fromLookup(lookupFrom(tt.env))
			assert.Error(t, err)
		})
	}
}

func TestDSN(t *testing.T) {
	db := DefaultConfig().RegistryAPI.Database
	db.User = "pgfn"
	db.Password = "secret"
	assert.Equal(t, "host=localhost port=5432 dbname=bitrix user=pgfn password=secret sslmode=disable connect_timeout=2", db.DSN())
}
