package service

import (
	"context"
	"errors"
	"sync"
	"testing"

	"github.com/ayo6706/liquidity-settlement/internal/chain"
	"github.com/ayo6706/liquidity-settlement/internal/chain/simulated"
	"github.com/ayo6706/liquidity-settlement/internal/domain"
	"github.com/ayo6706/liquidity-settlement/internal/models"
	"github.com/google/uuid"
	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// skewedClient returns simulations scaled by factor, as a thin pool would.
type skewedClient struct {
	*simulated.Node
	factor decimal.Decimal
}

func (c skewedClient) TestSwap(ctx context.Context, source, target string, amount decimal.Decimal) (decimal.Decimal, error) {
	out, err := c.Node.TestSwap(ctx, source, target, amount)
	return out.Mul(c.factor), err
}

func buyDFI(correlationID, usdt string) LiquidityRequest {
	return LiquidityRequest{
		Context:         domain.ContextBuyCrypto,
		CorrelationID:   correlationID,
		ReferenceAsset:  assetUSDT,
		ReferenceAmount: dec(usdt),
		TargetAsset:     assetDFI,
		MaxSlippage:     dec("0.01"),
	}
}

func TestCheckLiquidity(t *testing.T) {
	cases := []struct {
		name           string
		dfi            string
		usdt           string
		available      string
		maxPurchasable string
		err            error
	}{
		{name: "covered_by_balance", dfi: "100", usdt: "0", available: "100", maxPurchasable: "0"},
		{name: "covered_by_purchase", dfi: "0", usdt: "30", available: "0", maxPurchasable: "15"},
		{name: "not_enough", dfi: "5", usdt: "0", available: "5", maxPurchasable: "0", err: models.ErrNotEnoughLiquidity},
	}

	for _, tc := range cases {
		tc := tc
		t.Run(tc.name, func(t *testing.T) {
			f := newFixture(t)
			f.chain.SetPrice("USDT", "DFI", dec("2"))
			f.chain.SetBalance(liquidityAddress, "DFI", dec(tc.dfi))
			f.chain.SetBalance(liquidityAddress, "USDT", dec(tc.usdt))

			result, err := f.liquidity.CheckLiquidity(context.Background(), buyDFI("check-1", "20"))
			if tc.err != nil {
				require.ErrorIs(t, err, tc.err)
			} else {
				require.NoError(t, err)
			}
			require.NotNil(t, result)
			requireDecimal(t, "10", result.TargetAmount)
			requireDecimal(t, tc.available, result.AvailableAmount)
			requireDecimal(t, tc.maxPurchasable, result.MaxPurchasableAmount)
			assert.False(t, result.IsSlippageDetected)
		})
	}
}

func TestCheckLiquiditySlippage(t *testing.T) {
	f := newFixture(t, withClient(func(m *simulated.Node) chain.Client {
		return skewedClient{Node: m, factor: dec("0.9")}
	}))
	f.chain.SetPrice("USDT", "DFI", dec("2"))
	f.chain.SetBalance(liquidityAddress, "DFI", dec("100"))

	result, err := f.liquidity.CheckLiquidity(context.Background(), buyDFI("slip-1", "20"))
	require.NoError(t, err, "slippage protection is off")
	assert.False(t, result.IsSlippageDetected)

	f.settings.Enable(domain.SettingSlippageProtection)
	result, err = f.liquidity.CheckLiquidity(context.Background(), buyDFI("slip-1", "20"))
	require.ErrorIs(t, err, models.ErrPriceSlippage)
	require.NotNil(t, result)
	assert.True(t, result.IsSlippageDetected)
	requireDecimal(t, "9", result.TargetAmount)
}

func TestCheckLiquidityRejectsInvalidRequest(t *testing.T) {
	f := newFixture(t)
	req := buyDFI("", "20")
	_, err := f.liquidity.CheckLiquidity(context.Background(), req)
	require.ErrorIs(t, err, models.ErrInvalidRequest)

	req = buyDFI("bad-amount", "0")
	_, err = f.liquidity.CheckLiquidity(context.Background(), req)
	require.ErrorIs(t, err, models.ErrInvalidRequest)
}

func TestReserveLiquidityReducesAvailability(t *testing.T) {
	ctx := context.Background()
	f := newFixture(t)
	f.chain.SetPrice("USDT", "DFI", dec("2"))
	f.chain.SetBalance(liquidityAddress, "DFI", dec("100"))

	first, err := f.liquidity.ReserveLiquidity(ctx, buyDFI("res-1", "100"))
	require.NoError(t, err)
	assert.Equal(t, domain.LiquidityOrderReservation, first.Type)
	assert.True(t, first.IsReady)
	requireDecimal(t, "50", first.TargetAmount.Decimal)

	// 100 - 50 * 1.05 = 47.5 is left for the next caller.
	_, err = f.liquidity.ReserveLiquidity(ctx, buyDFI("res-2", "100"))
	require.ErrorIs(t, err, models.ErrNotEnoughLiquidity)

	again, err := f.liquidity.ReserveLiquidity(ctx, buyDFI("res-1", "100"))
	require.NoError(t, err)
	assert.Equal(t, first.ID, again.ID)

	_, err = f.liquidity.ReserveLiquidity(ctx, buyDFI("res-3", "40"))
	require.NoError(t, err)

	completed, err := f.liquidity.CompleteOrders(ctx, domain.ContextBuyCrypto, "res-1")
	require.NoError(t, err)
	assert.Equal(t, int64(1), completed)

	result, err := f.liquidity.CheckLiquidity(ctx, buyDFI("res-4", "2"))
	require.NoError(t, err)
	requireDecimal(t, "79", result.AvailableAmount)

	completion, err := f.liquidity.CheckOrderCompletion(ctx, domain.ContextBuyCrypto, "res-1")
	require.NoError(t, err)
	assert.True(t, completion.IsComplete)
}

func TestReserveLiquidityConcurrentDuplicates(t *testing.T) {
	ctx := context.Background()
	f := newFixture(t)
	f.chain.SetPrice("USDT", "DFI", dec("2"))
	f.chain.SetBalance(liquidityAddress, "DFI", dec("1000"))

	const callers = 10
	ids := make([]uuid.UUID, callers)
	errs := make([]error, callers)
	var wg sync.WaitGroup
	for i := 0; i < callers; i++ {
		wg.Add(1)
		go func(i int) {
			defer wg.Done()
			order, err := f.liquidity.ReserveLiquidity(ctx, buyDFI("dup-1", "20"))
			errs[i] = err
			if order != nil {
				ids[i] = order.ID
			}
		}(i)
	}
	wg.Wait()

	for i := 0; i < callers; i++ {
		require.NoError(t, errs[i])
		assert.Equal(t, ids[0], ids[i])
	}
	assert.Len(t, f.store.LiquidityOrders(), 1)
}

func TestPurchaseLiquiditySettlesAfterConfirmation(t *testing.T) {
	ctx := context.Background()
	f := newFixture(t)
	f.chain.SetPrice("USDT", "DFI", dec("2"))
	f.chain.SetBalance(liquidityAddress, "USDT", dec("50"))

	order, err := f.liquidity.PurchaseLiquidity(ctx, buyDFI("buy-1", "20"))
	require.NoError(t, err)
	assert.Equal(t, "USDT", order.SwapAsset)
	requireDecimal(t, "20.2", order.SwapAmount.Decimal)
	require.NotEmpty(t, order.TxID)
	assert.False(t, order.IsReady)

	_, err = f.liquidity.FetchLiquidityTransactionResult(ctx, domain.ContextBuyCrypto, "buy-1")
	require.ErrorIs(t, err, models.ErrLiquidityOrderNotReady)

	count, err := f.liquidity.GetPendingOrdersCount(ctx, assetDFI)
	require.NoError(t, err)
	assert.Equal(t, int64(1), count)

	again, err := f.liquidity.PurchaseLiquidity(ctx, buyDFI("buy-1", "20"))
	require.NoError(t, err)
	assert.Equal(t, order.TxID, again.TxID)
	assert.Equal(t, 1, f.chain.Calls("ExecuteSwap"))

	require.NoError(t, f.liquidity.ProcessReadyOrders(ctx))

	ready, err := f.liquidity.CheckOrderReady(ctx, domain.ContextBuyCrypto, "buy-1")
	require.NoError(t, err)
	assert.True(t, ready)

	result, err := f.liquidity.FetchLiquidityTransactionResult(ctx, domain.ContextBuyCrypto, "buy-1")
	require.NoError(t, err)
	requireDecimal(t, "10.1", result.TargetAmount)
	assert.Equal(t, order.TxID, result.TxID)

	completion, err := f.liquidity.CheckOrderCompletion(ctx, domain.ContextBuyCrypto, "buy-1")
	require.NoError(t, err)
	assert.False(t, completion.IsComplete)
	assert.Equal(t, "DFI", completion.FeeAsset)
	requireDecimal(t, "0.0001", completion.FeeAmount)
}

func TestPurchaseLiquidityFallsBackToNextSource(t *testing.T) {
	ctx := context.Background()
	f := newFixture(t)
	f.chain.SetPrice("USDT", "DFI", dec("2"))
	f.chain.SetPrice("BTC", "DFI", dec("0.0001"))
	f.chain.SetBalance(liquidityAddress, "USDT", dec("10"))
	f.chain.SetBalance(liquidityAddress, "BTC", dec("1"))

	order, err := f.liquidity.PurchaseLiquidity(ctx, buyDFI("buy-2", "20"))
	require.NoError(t, err)
	assert.Equal(t, "BTC", order.SwapAsset)
	requireDecimal(t, "0.00101", order.SwapAmount.Decimal)
}

func TestPurchaseLiquidityAllSourcesFail(t *testing.T) {
	ctx := context.Background()
	f := newFixture(t)
	f.chain.SetPrice("USDT", "DFI", dec("2"))
	f.chain.SetPrice("BTC", "DFI", dec("0.0001"))
	f.chain.SetBalance(liquidityAddress, "USDT", dec("50"))
	f.chain.SetBalance(liquidityAddress, "BTC", dec("1"))
	f.chain.FailOn("ExecuteSwap", errors.New("pool rejected swap"))

	_, err := f.liquidity.PurchaseLiquidity(ctx, buyDFI("buy-3", "20"))
	require.ErrorIs(t, err, models.ErrNotEnoughLiquidity)
	assert.Contains(t, err.Error(), "USDT")
	assert.Contains(t, err.Error(), "BTC")
	assert.Equal(t, 2, f.chain.Calls("ExecuteSwap"))

	stored, err := f.store.GetLiquidityOrder(ctx, domain.ContextBuyCrypto, "buy-3")
	require.NoError(t, err)
	assert.False(t, stored.HasIndeterminateSwap())
	assert.Empty(t, stored.TxID)

	f.chain.FailOn("ExecuteSwap", nil)
	order, err := f.liquidity.PurchaseLiquidity(ctx, buyDFI("buy-3", "20"))
	require.NoError(t, err)
	assert.Equal(t, stored.ID, order.ID)
	assert.NotEmpty(t, order.TxID)
}

func TestPurchaseLiquidityIndeterminateBroadcast(t *testing.T) {
	ctx := context.Background()
	f := newFixture(t)
	f.chain.SetPrice("USDT", "DFI", dec("2"))
	f.chain.SetBalance(liquidityAddress, "USDT", dec("50"))
	f.chain.FailOn("ExecuteSwap", chain.ErrBroadcastTimeout)

	_, err := f.liquidity.PurchaseLiquidity(ctx, buyDFI("buy-4", "20"))
	require.ErrorIs(t, err, models.ErrIndeterminateBroadcast)
	require.Len(t, f.notifier.Mails(), 1)

	stored, err := f.store.GetLiquidityOrder(ctx, domain.ContextBuyCrypto, "buy-4")
	require.NoError(t, err)
	assert.True(t, stored.HasIndeterminateSwap())

	f.chain.FailOn("ExecuteSwap", nil)
	_, err = f.liquidity.PurchaseLiquidity(ctx, buyDFI("buy-4", "20"))
	require.ErrorIs(t, err, models.ErrIndeterminateBroadcast)
	assert.Equal(t, 1, f.chain.Calls("ExecuteSwap"))
}

func TestPurchaseLiquidityUnsupportedBlockchain(t *testing.T) {
	f := newFixture(t)
	req := LiquidityRequest{
		Context:         domain.ContextBuyCrypto,
		CorrelationID:   "btc-1",
		ReferenceAsset:  assetBTCN,
		ReferenceAmount: dec("1"),
		TargetAsset:     assetBTCN,
	}
	_, err := f.liquidity.PurchaseLiquidity(context.Background(), req)
	require.Error(t, err)
	assert.Empty(t, f.store.LiquidityOrders())
}

func poolPairRequest(correlationID string) LiquidityRequest {
	return LiquidityRequest{
		Context:         domain.ContextBuyCrypto,
		CorrelationID:   correlationID,
		ReferenceAsset:  assetDUSD,
		ReferenceAmount: dec("200"),
		TargetAsset:     assetPair,
		MaxSlippage:     dec("0.01"),
	}
}

func TestPurchasePoolPairTwoPhases(t *testing.T) {
	ctx := context.Background()
	f := newFixture(t)
	f.settings.Enable(domain.SettingPurchasePoolPair)
	f.chain.SetPrice("DUSD", "dTSLA-DUSD", dec("20"))
	f.chain.SetPrice("DUSD", "dTSLA", dec("200"))
	f.chain.SetBalance(liquidityAddress, "dTSLA", dec("1"))
	f.chain.SetBalance(liquidityAddress, "DUSD", dec("150"))

	parent, err := f.liquidity.PurchaseLiquidity(ctx, poolPairRequest("pool-1"))
	require.NoError(t, err)
	requireDecimal(t, "10", parent.EstimatedTargetAmount.Decimal)

	legs, err := f.store.ListLiquidityOrdersByParent(ctx, parent.ID)
	require.NoError(t, err)
	require.Len(t, legs, 2)
	for _, leg := range legs {
		assert.Equal(t, domain.ContextPoolPair, leg.Context)
		assert.Equal(t, parent.ID.String()+"-"+leg.TargetAsset, leg.CorrelationID)
		assert.True(t, leg.IsReady)
	}

	require.NoError(t, f.liquidity.ProcessReadyOrders(ctx))
	assert.Equal(t, 1, f.chain.Calls("AddLiquidity"))

	stored, err := f.store.GetLiquidityOrder(ctx, domain.ContextBuyCrypto, "pool-1")
	require.NoError(t, err)
	assert.NotEmpty(t, stored.TxID)
	assert.True(t, stored.IsReady)
	requireDecimal(t, "0.5", stored.TargetAmount.Decimal)

	legs, err = f.store.ListLiquidityOrdersByParent(ctx, parent.ID)
	require.NoError(t, err)
	for _, leg := range legs {
		assert.True(t, leg.IsComplete)
	}
}

func TestPurchasePoolPairUndoesOnLegFailure(t *testing.T) {
	ctx := context.Background()
	f := newFixture(t)
	f.settings.Enable(domain.SettingPurchasePoolPair)
	f.chain.SetPrice("DUSD", "dTSLA-DUSD", dec("20"))
	f.chain.SetPrice("DUSD", "dTSLA", dec("200"))
	f.chain.SetBalance(liquidityAddress, "DUSD", dec("150"))
	f.chain.FailOn("ExecuteSwap", errors.New("pool rejected swap"))

	_, err := f.liquidity.PurchaseLiquidity(ctx, poolPairRequest("pool-2"))
	require.ErrorIs(t, err, models.ErrNotEnoughLiquidity)
	assert.Empty(t, f.store.LiquidityOrders())
}

func TestProcessReadyOrdersAddLiquidityFailure(t *testing.T) {
	cases := []struct {
		name    string
		err     error
		kept    bool
		subject string
	}{
		{name: "timeout", err: chain.ErrBroadcastTimeout, kept: true, subject: "Pool liquidity outcome unknown"},
		{name: "no_transaction_id", err: chain.ErrNoTransactionID, kept: true, subject: "Pool liquidity outcome unknown"},
		{name: "rejected", err: errors.New("pool rejected liquidity"), kept: false, subject: "Pool pair liquidity add failed"},
	}

	for _, tc := range cases {
		tc := tc
		t.Run(tc.name, func(t *testing.T) {
			ctx := context.Background()
			f := newFixture(t)
			f.settings.Enable(domain.SettingPurchasePoolPair)
			f.chain.SetPrice("DUSD", "dTSLA-DUSD", dec("20"))
			f.chain.SetPrice("DUSD", "dTSLA", dec("200"))
			f.chain.SetBalance(liquidityAddress, "dTSLA", dec("1"))
			f.chain.SetBalance(liquidityAddress, "DUSD", dec("150"))

			parent, err := f.liquidity.PurchaseLiquidity(ctx, poolPairRequest("pool-4"))
			require.NoError(t, err)

			f.chain.FailOn("AddLiquidity", tc.err)
			require.NoError(t, f.liquidity.ProcessReadyOrders(ctx))
			require.Len(t, f.notifier.Mails(), 1)
			assert.Equal(t, tc.subject, f.notifier.Mails()[0].Subject)

			if !tc.kept {
				assert.Empty(t, f.store.LiquidityOrders())
				return
			}

			assert.Len(t, f.store.LiquidityOrders(), 3)
			stored, err := f.store.GetLiquidityOrder(ctx, domain.ContextBuyCrypto, "pool-4")
			require.NoError(t, err)
			assert.True(t, stored.HasIndeterminateSwap())
			legs, err := f.store.ListLiquidityOrdersByParent(ctx, parent.ID)
			require.NoError(t, err)
			for _, leg := range legs {
				assert.False(t, leg.IsComplete)
			}

			f.chain.FailOn("AddLiquidity", nil)
			require.NoError(t, f.liquidity.ProcessReadyOrders(ctx))
			assert.Equal(t, 1, f.chain.Calls("AddLiquidity"))

			_, err = f.liquidity.PurchaseLiquidity(ctx, poolPairRequest("pool-4"))
			require.ErrorIs(t, err, models.ErrIndeterminateBroadcast)
		})
	}
}

func TestPurchasePoolPairDisabled(t *testing.T) {
	f := newFixture(t)
	f.chain.SetPrice("DUSD", "dTSLA-DUSD", dec("20"))

	_, err := f.liquidity.PurchaseLiquidity(context.Background(), poolPairRequest("pool-3"))
	require.ErrorIs(t, err, models.ErrNotEnoughLiquidity)
	assert.Empty(t, f.store.LiquidityOrders())
}

func TestSellLiquidity(t *testing.T) {
	sell := func(correlationID string, asset, target models.Asset, amount string) SellRequest {
		return SellRequest{
			Context:       domain.ContextLiquidityManagement,
			CorrelationID: correlationID,
			Asset:         asset,
			Amount:        dec(amount),
			TargetAsset:   target,
		}
	}

	t.Run("coin_keeps_fee_reserve", func(t *testing.T) {
		ctx := context.Background()
		f := newFixture(t)
		f.chain.SetPrice("USDT", "DFI", dec("2"))
		f.chain.SetBalance(liquidityAddress, "DFI", dec("10.05"))

		_, err := f.liquidity.SellLiquidity(ctx, sell("sell-1", assetDFI, assetUSDT, "10"))
		require.ErrorIs(t, err, models.ErrNotEnoughLiquidity)

		f.chain.SetBalance(liquidityAddress, "DFI", dec("20"))
		order, err := f.liquidity.SellLiquidity(ctx, sell("sell-1", assetDFI, assetUSDT, "10"))
		require.NoError(t, err)
		assert.Equal(t, domain.LiquidityOrderSale, order.Type)
		requireDecimal(t, "20", order.EstimatedTargetAmount.Decimal)

		require.NoError(t, f.liquidity.ProcessReadyOrders(ctx))
		result, err := f.liquidity.FetchLiquidityTransactionResult(ctx, domain.ContextLiquidityManagement, "sell-1")
		require.NoError(t, err)
		requireDecimal(t, "20", result.TargetAmount)
	})

	t.Run("token_needs_only_amount", func(t *testing.T) {
		f := newFixture(t)
		f.chain.SetPrice("USDT", "DFI", dec("2"))
		f.chain.SetBalance(liquidityAddress, "USDT", dec("10"))

		order, err := f.liquidity.SellLiquidity(context.Background(), sell("sell-2", assetUSDT, assetDFI, "10"))
		require.NoError(t, err)
		assert.NotEmpty(t, order.TxID)
	})
}

func TestLookupsOfUnknownOrder(t *testing.T) {
	f := newFixture(t)
	_, err := f.liquidity.FetchLiquidityTransactionResult(context.Background(), domain.ContextBuyFiat, "missing")
	require.ErrorIs(t, err, models.ErrLiquidityOrderNotFound)
	_, err = f.liquidity.CheckOrderReady(context.Background(), domain.ContextBuyFiat, "missing")
	require.ErrorIs(t, err, models.ErrLiquidityOrderNotFound)
}
