package simulated

import (
	"context"
	"testing"

	"github.com/ayo6706/liquidity-settlement/internal/chain"
	"github.com/ayo6706/liquidity-settlement/internal/models"
	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestNodeSwap(t *testing.T) {
	ctx := context.Background()
	m := NewNode()
	m.SetPrice("USDT", "BTC", decimal.NewFromInt(20000))
	m.SetBalance("liq", "USDT", decimal.NewFromInt(40000))

	out, err := m.TestSwap(ctx, "USDT", "BTC", decimal.NewFromInt(20000))
	require.NoError(t, err)
	assert.True(t, out.Equal(decimal.NewFromInt(1)))

	back, err := m.TestSwap(ctx, "BTC", "USDT", decimal.NewFromInt(1))
	require.NoError(t, err)
	assert.True(t, back.Equal(decimal.NewFromInt(20000)))

	txID, err := m.ExecuteSwap(ctx, chain.SwapRequest{Address: "liq", SourceAsset: "USDT", SourceAmount: decimal.NewFromInt(20000), TargetAsset: "BTC"})
	require.NoError(t, err)

	tx, err := m.GetTransaction(ctx, txID)
	require.NoError(t, err)
	assert.True(t, tx.Confirmed)
	assert.True(t, tx.Amounts["BTC"].Equal(decimal.NewFromInt(1)))

	bal, err := m.GetBalance(ctx, "liq", "BTC")
	require.NoError(t, err)
	assert.True(t, bal.Equal(decimal.NewFromInt(1)))
}

func TestNodeSwapRespectsMaxPrice(t *testing.T) {
	m := NewNode()
	m.SetPrice("USDT", "BTC", decimal.NewFromInt(20000))
	m.SetBalance("liq", "USDT", decimal.NewFromInt(40000))

	_, err := m.ExecuteSwap(context.Background(), chain.SwapRequest{
		Address:      "liq",
		SourceAsset:  "USDT",
		SourceAmount: decimal.NewFromInt(100),
		TargetAsset:  "BTC",
		MaxPrice:     decimal.NewNullDecimal(decimal.NewFromInt(19000)),
	})
	require.Error(t, err)
}

func TestNodeTransferToSelfNotRequired(t *testing.T) {
	_, err := NewNode().Transfer(context.Background(), "a", "a", "DFI", decimal.NewFromInt(1))
	require.ErrorIs(t, err, models.ErrTransferNotRequired)
}

func TestNodeSplitAndMerge(t *testing.T) {
	ctx := context.Background()
	m := NewNode()
	m.SetUnspentOutputs("addr", []models.UnspentOutput{
		{TxID: "a", Amount: decimal.NewFromInt(1)},
		{TxID: "b", Amount: decimal.NewFromInt(2)},
		{TxID: "c", Amount: decimal.NewFromInt(30)},
	})

	_, err := m.SplitOutput(ctx, "addr", 3)
	require.NoError(t, err)
	outs, err := m.GetUnspentOutputs(ctx, "addr")
	require.NoError(t, err)
	assert.Len(t, outs, 5)

	_, err = m.MergeOutputs(ctx, "addr", 4)
	require.NoError(t, err)
	outs, err = m.GetUnspentOutputs(ctx, "addr")
	require.NoError(t, err)
	assert.Len(t, outs, 2)

	bal, err := m.GetUtxoBalance(ctx, "addr")
	require.NoError(t, err)
	assert.True(t, bal.Equal(decimal.NewFromInt(33)))
}
