package strategy

import (
	"testing"

	"github.com/ayo6706/liquidity-settlement/internal/domain"
	"github.com/ayo6706/liquidity-settlement/internal/models"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func asset(name string, typ domain.AssetType, cat domain.AssetCategory) models.Asset {
	return models.Asset{Name: name, Type: typ, Category: cat, Blockchain: domain.BlockchainDeFiChain}
}

func TestPurchaseVariant(t *testing.T) {
	c := NewClassifier(domain.BlockchainDeFiChain)

	cases := []struct {
		name  string
		asset models.Asset
		want  PurchaseVariant
	}{
		{name: "base_coin", asset: asset("DFI", domain.AssetTypeCoin, domain.AssetCategoryCrypto), want: PurchaseCoin},
		{name: "crypto_token", asset: asset("BTC", domain.AssetTypeToken, domain.AssetCategoryCrypto), want: PurchaseCrypto},
		{name: "stock_token", asset: asset("dTSLA", domain.AssetTypeToken, domain.AssetCategoryStock), want: PurchaseStock},
		{name: "pool_pair", asset: asset("dTSLA-DUSD", domain.AssetTypeToken, domain.AssetCategoryPoolPair), want: PurchasePoolPair},
	}

	for _, tc := range cases {
		tc := tc
		t.Run(tc.name, func(t *testing.T) {
			got, err := c.PurchaseVariant(tc.asset)
			require.NoError(t, err)
			assert.Equal(t, tc.want, got)
		})
	}
}

func TestClassifierCoinTokenFamilies(t *testing.T) {
	c := NewClassifier(domain.BlockchainDeFiChain)
	coin := asset("DFI", domain.AssetTypeCoin, domain.AssetCategoryCrypto)
	token := asset("USDT", domain.AssetTypeToken, domain.AssetCategoryCrypto)

	sell, err := c.SellVariant(coin)
	require.NoError(t, err)
	assert.Equal(t, SellCoin, sell)
	sell, err = c.SellVariant(token)
	require.NoError(t, err)
	assert.Equal(t, SellToken, sell)

	payout, err := c.PayoutVariant(token)
	require.NoError(t, err)
	assert.Equal(t, PayoutToken, payout)
	prepare, err := c.PrepareVariant(coin)
	require.NoError(t, err)
	assert.Equal(t, PrepareCoin, prepare)

	check, err := c.CheckVariant(asset("A-B", domain.AssetTypeToken, domain.AssetCategoryPoolPair))
	require.NoError(t, err)
	assert.Equal(t, CheckPoolPair, check)
	check, err = c.CheckVariant(token)
	require.NoError(t, err)
	assert.Equal(t, CheckDefault, check)
}

func TestClassifierRejectsUnsupportedBlockchain(t *testing.T) {
	c := NewClassifier(domain.BlockchainDeFiChain)
	btc := models.Asset{Name: "BTC", Type: domain.AssetTypeCoin, Category: domain.AssetCategoryCrypto, Blockchain: domain.BlockchainBitcoin}

	_, err := c.PurchaseVariant(btc)
	require.ErrorIs(t, err, ErrUnsupportedAsset)
	_, err = c.PayoutVariant(btc)
	require.ErrorIs(t, err, ErrUnsupportedAsset)
}

func TestRegistryLookup(t *testing.T) {
	r := NewRegistry[PayoutVariant, int]()
	r.Register(PayoutCoin, 100)

	got, err := r.Get(PayoutCoin)
	require.NoError(t, err)
	assert.Equal(t, 100, got)

	_, err = r.Get(PayoutToken)
	require.ErrorIs(t, err, ErrStrategyNotFound)
}
