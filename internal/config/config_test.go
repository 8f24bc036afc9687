package config

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

const testSecret = "test-secret-0123456789-test-secret"

func setRequiredEnv(t *testing.T) {
	t.Helper()
	t.Setenv("JWT_SECRET", testSecret)
	t.Setenv("LIQUIDITY_ADDRESS", "df1liquidity")
	t.Setenv("PAYOUT_ADDRESS", "df1payout")
}

func TestLoadDefaults(t *testing.T) {
	setRequiredEnv(t)

	cfg, err := Load()
	require.NoError(t, err)

	assert.Equal(t, 30*time.Second, cfg.LiquidityInterval)
	assert.Equal(t, time.Minute, cfg.UTXOInterval)
	assert.Equal(t, "100", cfg.UTXO.MinOperateValue.String())
	assert.Equal(t, "20000", cfg.UTXO.MinSplitValue.String())
	assert.Equal(t, "df1payout", cfg.UTXO.Address)
	assert.False(t, cfg.PayoutRollbackOnFailure)
	assert.Equal(t, uint(3), cfg.Chain.RetryAttempts)
	assert.Equal(t, 100, cfg.Strategies.Payout.CoinGroupSize)
	assert.Equal(t, 10, cfg.Strategies.Payout.TokenGroupSize)
	assert.Equal(t, []string{"DFI", "USDT"}, cfg.Strategies.Purchase.Crypto)
}

func TestLoadRequiresAddresses(t *testing.T) {
	t.Setenv("JWT_SECRET", testSecret)
	t.Setenv("LIQUIDITY_ADDRESS", "")
	t.Setenv("PAYOUT_ADDRESS", "df1payout")

	_, err := Load()
	require.Error(t, err)
}

func TestLoadRejectsShortSecret(t *testing.T) {
	setRequiredEnv(t)
	t.Setenv("JWT_SECRET", "short")

	_, err := Load()
	require.Error(t, err)
}

func TestLoadRejectsBadInterval(t *testing.T) {
	setRequiredEnv(t)
	t.Setenv("UTXO_INTERVAL", "soon")

	_, err := Load()
	require.Error(t, err)
}

func TestLoadStrategiesFile(t *testing.T) {
	path := filepath.Join(t.TempDir(), "strategies.yaml")
	content := `
purchase:
  coin: [USDC]
sell:
  coin_fee_reserve: "0.5"
payout:
  token_group_size: 5
  min_utxo: 0.02
`
	require.NoError(t, os.WriteFile(path, []byte(content), 0o600))

	s, err := LoadStrategies(path, "DFI")
	require.NoError(t, err)
	assert.Equal(t, []string{"USDC"}, s.Purchase.Coin)
	assert.Equal(t, []string{"DUSD"}, s.Purchase.Stock)
	assert.Equal(t, "0.5", s.Sell.CoinFeeReserve.String())
	assert.Equal(t, 5, s.Payout.TokenGroupSize)
	assert.Equal(t, 100, s.Payout.CoinGroupSize)
	assert.Equal(t, "0.02", s.Payout.MinUtxo.String())
}

func TestLoadStrategiesMissingFile(t *testing.T) {
	_, err := LoadStrategies(filepath.Join(t.TempDir(), "missing.yaml"), "DFI")
	require.Error(t, err)
}
