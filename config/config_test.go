package config

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/Jenajyo/ibkr-trader/internal/domain"
)

func writeConfig(t *testing.T, content string) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), "config.yaml")
	require.NoError(t, os.WriteFile(path, []byte(content), 0o644))
	return path
}

func TestLoadAppliesDefaults(t *testing.T) {
	path := writeConfig(t, "gateway:\n  account_id: DU12345\n")

	cfg, err := Load(path)
	require.NoError(t, err)

	assert.Equal(t, "https://localhost:5000/v1/api", cfg.Gateway.BaseURL)
	assert.Equal(t, "DU12345", cfg.Gateway.AccountID)
	assert.Equal(t, 10*time.Second, cfg.AckTimeout())
	assert.Equal(t, 500*time.Millisecond, cfg.PollInterval())
	assert.Equal(t, "BUY_Usual", cfg.Tables.Buy)
	assert.Equal(t, "SELL", cfg.Tables.Sell)
	assert.Equal(t, 4.0, cfg.Trading.DefaultTrailPercent)
	assert.Equal(t, 5.0, cfg.Trading.ReconcileTrailPct)
	assert.Equal(t, 0.10, cfg.Trading.LimitOffset)

	mode, err := cfg.Mode()
	require.NoError(t, err)
	assert.Equal(t, domain.ModePaper, mode, "paper is the default mode")
}

func TestLoadPaperModeSelectsPaperDSN(t *testing.T) {
	path := writeConfig(t, `
storage:
  dsn: live.db
  paper_dsn: paper.db
trading:
  mode: paper
`)

	cfg, err := Load(path)
	require.NoError(t, err)
	assert.Equal(t, "paper.db", cfg.StorageDSN())
}

func TestLoadLiveModeSelectsLiveDSN(t *testing.T) {
	path := writeConfig(t, `
storage:
  dsn: live.db
  paper_dsn: paper.db
trading:
  mode: live
`)

	cfg, err := Load(path)
	require.NoError(t, err)
	assert.Equal(t, "live.db", cfg.StorageDSN())
}

func TestLoadEnvOverridesWinOverFile(t *testing.T) {
	t.Setenv("IBKR_GATEWAY_URL", "https://gateway.internal:5001/v1/api")
	t.Setenv("TRADING_MODE", "live")
	t.Setenv("IBKR_INSECURE_SKIP_VERIFY", "true")

	path := writeConfig(t, `
gateway:
  base_url: https://localhost:5000/v1/api
trading:
  mode: paper
`)

	cfg, err := Load(path)
	require.NoError(t, err)

	assert.Equal(t, "https://gateway.internal:5001/v1/api", cfg.Gateway.BaseURL)
	assert.True(t, cfg.Gateway.InsecureSkipVerify)

	mode, err := cfg.Mode()
	require.NoError(t, err)
	assert.Equal(t, domain.ModeLive, mode)
}

func TestLoadRejectsUnknownMode(t *testing.T) {
	path := writeConfig(t, "trading:\n  mode: demo\n")

	_, err := Load(path)
	assert.Error(t, err)
}

func TestLoadMissingFile(t *testing.T) {
	_, err := Load(filepath.Join(t.TempDir(), "absent.yaml"))
	assert.Error(t, err)
}
