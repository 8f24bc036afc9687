// Package catalog resolves asset names to catalog entries.
package catalog

import (
	"context"
	"fmt"
	"sync"

	"github.com/ayo6706/liquidity-settlement/internal/domain"
	"github.com/ayo6706/liquidity-settlement/internal/models"
)

// Resolver looks up assets. Implementations return models.ErrAssetNotFound
// for unknown assets.
type Resolver interface {
	Resolve(ctx context.Context, name string, assetType domain.AssetType, blockchain domain.Blockchain) (models.Asset, error)
	Lookup(ctx context.Context, blockchain domain.Blockchain, name string) (models.Asset, error)
}

// Source is the backing store of the catalog.
type Source interface {
	GetAsset(ctx context.Context, blockchain domain.Blockchain, name string) (models.Asset, error)
}

type cacheKey struct {
	blockchain domain.Blockchain
	name       string
}

// Catalog memoizes found assets for the lifetime of the instance. Misses are
// not cached so newly added assets become visible.
type Catalog struct {
	source Source

	mu    sync.RWMutex
	cache map[cacheKey]models.Asset
}

var _ Resolver = (*Catalog)(nil)

func New(source Source) *Catalog {
	return &Catalog{source: source, cache: make(map[cacheKey]models.Asset)}
}

func (c *Catalog) Lookup(ctx context.Context, blockchain domain.Blockchain, name string) (models.Asset, error) {
	key := cacheKey{blockchain: blockchain, name: name}
	c.mu.RLock()
	asset, ok := c.cache[key]
	c.mu.RUnlock()
	if ok {
		return asset, nil
	}

	asset, err := c.source.GetAsset(ctx, blockchain, name)
	if err != nil {
		return models.Asset{}, err
	}

	c.mu.Lock()
	c.cache[key] = asset
	c.mu.Unlock()
	return asset, nil
}

func (c *Catalog) Resolve(ctx context.Context, name string, assetType domain.AssetType, blockchain domain.Blockchain) (models.Asset, error) {
	asset, err := c.Lookup(ctx, blockchain, name)
	if err != nil {
		return models.Asset{}, err
	}
	if asset.Type != assetType {
		return models.Asset{}, fmt.Errorf("%s on %s is a %s, not a %s: %w", name, blockchain, asset.Type, assetType, models.ErrAssetNotFound)
	}
	return asset, nil
}

// StaticSource serves a fixed asset list.
type StaticSource map[cacheKey]models.Asset

func NewStaticSource(assets ...models.Asset) StaticSource {
	s := make(StaticSource, len(assets))
	for _, a := range assets {
		s[cacheKey{blockchain: a.Blockchain, name: a.Name}] = a
	}
	return s
}

func (s StaticSource) GetAsset(ctx context.Context, blockchain domain.Blockchain, name string) (models.Asset, error) {
	a, ok := s[cacheKey{blockchain: blockchain, name: name}]
	if !ok {
		return models.Asset{}, fmt.Errorf("%s on %s: %w", name, blockchain, models.ErrAssetNotFound)
	}
	return a, nil
}
