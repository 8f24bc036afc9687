package catalog

import (
	"context"
	"testing"

	"github.com/ayo6706/liquidity-settlement/internal/domain"
	"github.com/ayo6706/liquidity-settlement/internal/models"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type countingSource struct {
	inner Source
	calls int
}

func (c *countingSource) GetAsset(ctx context.Context, blockchain domain.Blockchain, name string) (models.Asset, error) {
	c.calls++
	return c.inner.GetAsset(ctx, blockchain, name)
}

func TestCatalogMemoizesHits(t *testing.T) {
	dfi := models.Asset{ID: 1, Name: "DFI", Type: domain.AssetTypeCoin, Category: domain.AssetCategoryCrypto, Blockchain: domain.BlockchainDeFiChain}
	src := &countingSource{inner: NewStaticSource(dfi)}
	c := New(src)
	ctx := context.Background()

	for i := 0; i < 3; i++ {
		got, err := c.Resolve(ctx, "DFI", domain.AssetTypeCoin, domain.BlockchainDeFiChain)
		require.NoError(t, err)
		assert.Equal(t, dfi, got)
	}
	assert.Equal(t, 1, src.calls)
}

func TestCatalogDoesNotCacheMisses(t *testing.T) {
	src := &countingSource{inner: NewStaticSource()}
	c := New(src)
	ctx := context.Background()

	_, err := c.Lookup(ctx, domain.BlockchainDeFiChain, "USDT")
	require.ErrorIs(t, err, models.ErrAssetNotFound)
	_, err = c.Lookup(ctx, domain.BlockchainDeFiChain, "USDT")
	require.ErrorIs(t, err, models.ErrAssetNotFound)
	assert.Equal(t, 2, src.calls)
}

func TestCatalogResolveChecksType(t *testing.T) {
	usdt := models.Asset{Name: "USDT", Type: domain.AssetTypeToken, Category: domain.AssetCategoryCrypto, Blockchain: domain.BlockchainDeFiChain}
	c := New(NewStaticSource(usdt))

	_, err := c.Resolve(context.Background(), "USDT", domain.AssetTypeCoin, domain.BlockchainDeFiChain)
	require.ErrorIs(t, err, models.ErrAssetNotFound)
}
