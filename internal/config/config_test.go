package config

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/spf13/viper"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestLoadDefaults(t *testing.T) {
	t.Setenv("SYNC_INTERVAL_MINUTES", "")
	t.Setenv("REPORT_DAYS", "")
	t.Setenv("REFERENCE_DATE", "")

	cfg := Load()
	assert.Equal(t, 45, cfg.ReportDays)
	assert.Equal(t, 30*time.Minute, cfg.Sync.Interval)
	assert.Equal(t, 100, cfg.ERP.PageSize)
	assert.Equal(t, 100*time.Millisecond, cfg.ERP.MinRequestDelay)
	assert.Nil(t, cfg.ReferenceDate)
}

func TestLoadOverrides(t *testing.T) {
	t.Setenv("REFERENCE_DATE", "2024-02-10")
	t.Setenv("SYNC_CUSTOMERS_HOUR", "27")
	t.Setenv("ERP_BASE_URL", "https://erp.example.com/ ")
	t.Setenv("SYNC_ENABLED", "off")

	cfg := Load()
	require.NotNil(t, cfg.ReferenceDate)
	assert.Equal(t, time.Date(2024, 2, 10, 0, 0, 0, 0, time.UTC), *cfg.ReferenceDate)
	assert.Equal(t, 3, cfg.Sync.CustomerSyncHour)
	assert.Equal(t, "https://erp.example.com", cfg.ERP.BaseURL)
	assert.False(t, cfg.Sync.Enabled)
}

func TestLoadObservability(t *testing.T) {
	t.Setenv("LOG_LEVEL", " DEBUG ")
	t.Setenv("OTEL_SAMPLING_RATIO", "0.5")
	t.Setenv("OTEL_EXPORTER_OTLP_PROTOCOL", "HTTP")
	t.Setenv("OTEL_EXPORTER_OTLP_TRACES_PROTOCOL", "")

	obs := Load().Observability
	assert.Equal(t, "debug", obs.LogLevel)
	assert.Equal(t, 0.5, obs.SamplingRatio)
	assert.Equal(t, "http", obs.OTLPProtocol)
}

func TestLocationFallsBackToUTC(t *testing.T) {
	assert.Equal(t, time.UTC, Config{Timezone: "Nowhere/Invalid"}.Location())
}

func TestValidateDelinquencyConfig(t *testing.T) {
	require.NoError(t, ValidateDelinquencyConfig(DefaultDelinquencyConfig()))

	cfg := DefaultDelinquencyConfig()
	cfg.LateThresholds.ChronicMin = 11
	assert.Error(t, ValidateDelinquencyConfig(cfg))

	cfg = DefaultDelinquencyConfig()
	cfg.AgingBuckets = nil
	assert.Error(t, ValidateDelinquencyConfig(cfg))
}

func TestDecodeDelinquencyConfigFromFile(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "delinquency.yml")
	content := `
delinquency:
  lateThresholds:
    standard: {min: 1, max: 6}
    transition: {min: 7, max: 10}
    chronicMin: 11
  listLimit: 20
`
	require.NoError(t, os.WriteFile(path, []byte(content), 0o600))

	v := viper.New()
	v.SetConfigFile(path)
	require.NoError(t, v.ReadInConfig())

	cfg, err := decodeDelinquencyConfig(v)
	require.NoError(t, err)
	assert.Equal(t, 10, cfg.LateThresholds.Transition.Max)
	assert.Equal(t, 11, cfg.LateThresholds.ChronicMin)
	assert.Equal(t, 20, cfg.ListLimit)
	assert.Len(t, cfg.AgingBuckets, 4)
}
