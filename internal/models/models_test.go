package models

import (
	"testing"

	"github.com/ayo6706/liquidity-settlement/internal/domain"
	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestAssetPairLegs(t *testing.T) {
	pair := Asset{Name: "dTSLA-DUSD", Category: domain.AssetCategoryPoolPair}
	a, b, err := pair.PairLegs()
	require.NoError(t, err)
	assert.Equal(t, "dTSLA", a)
	assert.Equal(t, "DUSD", b)

	_, _, err = Asset{Name: "BTC", Category: domain.AssetCategoryCrypto}.PairLegs()
	require.Error(t, err)

	_, _, err = Asset{Name: "A-", Category: domain.AssetCategoryPoolPair}.PairLegs()
	require.Error(t, err)
}

func TestLiquidityOrderCompleteRequiresReady(t *testing.T) {
	order := &LiquidityOrder{Context: domain.ContextBuyCrypto, CorrelationID: "c1"}
	require.ErrorIs(t, order.Complete(), ErrLiquidityOrderNotReady)
	assert.False(t, order.IsComplete)

	order.Settle(decimal.NewFromInt(1), decimal.RequireFromString("0.0001"), "DFI")
	require.NoError(t, order.Complete())
	assert.True(t, order.IsComplete)
}

func TestLiquidityOrderSwapIntent(t *testing.T) {
	order := &LiquidityOrder{Type: domain.LiquidityOrderPurchase}
	order.RecordSwapIntent("USDT", decimal.NewFromInt(10))
	assert.True(t, order.HasIndeterminateSwap())

	order.ClearSwapIntent()
	assert.False(t, order.HasIndeterminateSwap())
	assert.False(t, order.SwapAmount.Valid)

	order.RecordSwapIntent("USDT", decimal.NewFromInt(10))
	order.TxID = "tx"
	assert.False(t, order.HasIndeterminateSwap())
}
