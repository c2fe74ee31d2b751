package config

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestLoad_Defaults(t *testing.T) {
	cfg, err := LoadE()
	require.NoError(t, err)

	assert.Equal(t, "ETH", cfg.DefaultToken)
	assert.Equal(t, time.Hour, cfg.CacheTTL)
	assert.Equal(t, ',', cfg.Delimiter())
	assert.Equal(t, "35", cfg.Rates().ShortTermPct.String())
	assert.Equal(t, "15", cfg.Rates().LongTermPct.String())
}

func TestLoad_FromEnvironment(t *testing.T) {
	t.Setenv("DEFAULT_TOKEN", "BTC")
	t.Setenv("SHORT_TERM_RATE_PCT", "22.5")
	t.Setenv("LONG_TERM_RATE_PCT", "10")
	t.Setenv("CSV_DELIMITER", ";")
	t.Setenv("TAXPAYER", "Ana Souza")

	cfg, err := LoadE()
	require.NoError(t, err)

	assert.Equal(t, "BTC", cfg.DefaultToken)
	assert.Equal(t, "Ana Souza", cfg.Taxpayer)
	assert.Equal(t, ';', cfg.Delimiter())
	assert.Equal(t, "22.5", cfg.Rates().ShortTermPct.String())
	assert.Equal(t, "10", cfg.Rates().LongTermPct.String())
}

func TestLoad_InvalidValue(t *testing.T) {
	t.Setenv("WORKERS", "muitos")

	_, err := LoadE()
	assert.Error(t, err)
}
