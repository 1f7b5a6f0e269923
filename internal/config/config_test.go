package config

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func writeConfig(t *testing.T, body string) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), "config.yaml")
	require.NoError(t, os.WriteFile(path, []byte(body), 0o644))
	return path
}

func TestLoad(t *testing.T) {
	path := writeConfig(t, `
app:
  env: prod
  log_level: debug
council:
  min_quorum: 4
governor:
  min_confidence: 0.5
  allow_reference_price: true
ledger:
  global_balance_usd: 5000
  bist_balance_try: 100000
scheduler:
  symbols: [AAPL, THYAO.IS]
`)

	cfg, err := Load(path)
	require.NoError(t, err)

	assert.Equal(t, "prod", cfg.App.Env)
	assert.Equal(t, 4, cfg.Council.MinQuorum)
	assert.Equal(t, 0.5, cfg.Governor.MinConfidence)
	assert.True(t, cfg.Governor.AllowReferencePrice)
	assert.Equal(t, 5000.0, cfg.Ledger.GlobalBalanceUSD)
	assert.Equal(t, []string{"AAPL", "THYAO.IS"}, cfg.Scheduler.Symbols)

	t.Run("defaults fill the gaps", func(t *testing.T) {
		assert.Equal(t, ":9984", cfg.App.HTTPAddr)
		assert.Equal(t, 1800, cfg.Council.MaxScoreAgeSeconds)
		assert.Equal(t, 0.50, cfg.Council.StrongBuy)
		assert.Equal(t, -0.15, cfg.Council.Sell)
		assert.Equal(t, 2.0, cfg.Governor.PriceTolerancePct)
		assert.Equal(t, 600, cfg.Execution.DecisionTTLSeconds)
		assert.Equal(t, 0.10, cfg.Execution.BuyFraction)
		assert.Equal(t, 0.5, cfg.Execution.TrimFraction)
		assert.Equal(t, 900, cfg.Ledger.CooldownSeconds)
		assert.Equal(t, "data/pantheon.db", cfg.Store.Path)
		assert.Equal(t, 300, cfg.Scheduler.IntervalSeconds)
	})
}

func TestLoad_Errors(t *testing.T) {
	t.Run("empty path", func(t *testing.T) {
		_, err := Load("")
		assert.Error(t, err)
	})

	t.Run("missing file", func(t *testing.T) {
		_, err := Load(filepath.Join(t.TempDir(), "nope.yaml"))
		assert.Error(t, err)
	})

	t.Run("inverted thresholds", func(t *testing.T) {
		path := writeConfig(t, `
council:
  strong_buy: 0.1
  buy: 0.3
`)
		_, err := Load(path)
		assert.Error(t, err)
	})

	t.Run("buy fraction above one", func(t *testing.T) {
		path := writeConfig(t, `
execution:
  buy_fraction: 1.5
`)
		_, err := Load(path)
		assert.Error(t, err)
	})

	t.Run("confidence out of range", func(t *testing.T) {
		path := writeConfig(t, `
governor:
  min_confidence: 1.5
`)
		_, err := Load(path)
		assert.Error(t, err)
	})
}

func TestDefault(t *testing.T) {
	cfg := Default()

	assert.Equal(t, "dev", cfg.App.Env)
	assert.Equal(t, 3, cfg.Council.MinQuorum)
	assert.Equal(t, 0.35, cfg.Governor.MinConfidence)
	assert.Equal(t, 10000.0, cfg.Ledger.GlobalBalanceUSD)
	assert.Equal(t, 250000.0, cfg.Ledger.BISTBalanceTRY)
	assert.NoError(t, validate(cfg))
}
