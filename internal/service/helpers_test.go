package service

import (
	"testing"

	"github.com/ayo6706/liquidity-settlement/internal/catalog"
	"github.com/ayo6706/liquidity-settlement/internal/chain"
	"github.com/ayo6706/liquidity-settlement/internal/chain/simulated"
	"github.com/ayo6706/liquidity-settlement/internal/config"
	"github.com/ayo6706/liquidity-settlement/internal/domain"
	"github.com/ayo6706/liquidity-settlement/internal/models"
	"github.com/ayo6706/liquidity-settlement/internal/notification"
	"github.com/ayo6706/liquidity-settlement/internal/settings"
	"github.com/ayo6706/liquidity-settlement/internal/strategy"
	"github.com/ayo6706/liquidity-settlement/internal/testutil/memstore"
	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/require"
)

const (
	liquidityAddress = "df1-liquidity"
	payoutAddress    = "df1-payout"
)

var (
	assetDFI  = models.Asset{ID: 1, Name: "DFI", Type: domain.AssetTypeCoin, Category: domain.AssetCategoryCrypto, Blockchain: domain.BlockchainDeFiChain}
	assetUSDT = models.Asset{ID: 2, Name: "USDT", Type: domain.AssetTypeToken, Category: domain.AssetCategoryCrypto, Blockchain: domain.BlockchainDeFiChain}
	assetBTC  = models.Asset{ID: 3, Name: "BTC", Type: domain.AssetTypeToken, Category: domain.AssetCategoryCrypto, Blockchain: domain.BlockchainDeFiChain}
	assetDUSD = models.Asset{ID: 4, Name: "DUSD", Type: domain.AssetTypeToken, Category: domain.AssetCategoryCrypto, Blockchain: domain.BlockchainDeFiChain}
	assetTSLA = models.Asset{ID: 5, Name: "dTSLA", Type: domain.AssetTypeToken, Category: domain.AssetCategoryStock, Blockchain: domain.BlockchainDeFiChain}
	assetPair = models.Asset{ID: 6, Name: "dTSLA-DUSD", Type: domain.AssetTypeToken, Category: domain.AssetCategoryPoolPair, Blockchain: domain.BlockchainDeFiChain}
	assetBTCN = models.Asset{ID: 7, Name: "BTC", Type: domain.AssetTypeCoin, Category: domain.AssetCategoryCrypto, Blockchain: domain.BlockchainBitcoin}
)

type fixture struct {
	store     *memstore.Store
	chain     *simulated.Node
	settings  *settings.Static
	notifier  *notification.Recorder
	liquidity *LiquidityService
	payouts   *PayoutService
}

type fixtureOption func(*fixtureConfig)

type fixtureConfig struct {
	client  func(*simulated.Node) chain.Client
	payouts PayoutOptions
}

// withClient wraps the mock chain, e.g. to skew simulations.
func withClient(wrap func(*simulated.Node) chain.Client) fixtureOption {
	return func(c *fixtureConfig) { c.client = wrap }
}

func withPayoutOptions(opts PayoutOptions) fixtureOption {
	return func(c *fixtureConfig) { c.payouts = opts }
}

func newFixture(t *testing.T, opts ...fixtureOption) *fixture {
	t.Helper()

	cfg := fixtureConfig{client: func(m *simulated.Node) chain.Client { return m }}
	for _, opt := range opts {
		opt(&cfg)
	}

	mock := simulated.NewNode()
	networks := chain.NewRegistry(chain.Network{
		Blockchain:       domain.BlockchainDeFiChain,
		Client:           cfg.client(mock),
		LiquidityAddress: liquidityAddress,
		PayoutAddress:    payoutAddress,
		FeeAsset:         "DFI",
	})
	assets := catalog.New(catalog.NewStaticSource(assetDFI, assetUSDT, assetBTC, assetDUSD, assetTSLA, assetPair))
	strategies, err := config.LoadStrategies("", "DFI")
	require.NoError(t, err)

	f := &fixture{
		store:    memstore.New(),
		chain:    mock,
		settings: settings.NewStatic(nil),
		notifier: &notification.Recorder{},
	}
	classifier := strategy.NewClassifier(domain.BlockchainDeFiChain)
	f.liquidity = NewLiquidityService(f.store, networks, assets, f.settings, classifier, strategies, f.notifier)
	f.payouts = NewPayoutService(f.store, networks, assets, f.settings, classifier, strategies, f.notifier, cfg.payouts)
	return f
}

func dec(s string) decimal.Decimal {
	return decimal.RequireFromString(s)
}

func requireDecimal(t *testing.T, expected string, actual decimal.Decimal) {
	t.Helper()
	require.Truef(t, dec(expected).Equal(actual), "expected %s, got %s", expected, actual)
}
