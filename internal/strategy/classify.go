// Package strategy classifies assets into the variant that handles them for
// each family of operation. Classification is pure: it only looks at the
// asset's blockchain, type and category.
package strategy

import (
	"errors"
	"fmt"

	"github.com/ayo6706/liquidity-settlement/internal/domain"
	"github.com/ayo6706/liquidity-settlement/internal/models"
)

var ErrUnsupportedAsset = errors.New("unsupported asset")

type CheckVariant string

const (
	CheckDefault  CheckVariant = "default"
	CheckPoolPair CheckVariant = "pool-pair"
)

type PurchaseVariant string

const (
	PurchaseCoin     PurchaseVariant = "coin"
	PurchaseCrypto   PurchaseVariant = "crypto"
	PurchaseStock    PurchaseVariant = "stock"
	PurchasePoolPair PurchaseVariant = "pool-pair"
)

type SellVariant string

const (
	SellCoin  SellVariant = "coin"
	SellToken SellVariant = "token"
)

type PayoutVariant string

const (
	PayoutCoin  PayoutVariant = "coin"
	PayoutToken PayoutVariant = "token"
)

type PrepareVariant string

const (
	PrepareCoin  PrepareVariant = "coin"
	PrepareToken PrepareVariant = "token"
)

// Classifier maps asset shapes to variants for the supported blockchains.
type Classifier struct {
	supported map[domain.Blockchain]struct{}
}

func NewClassifier(blockchains ...domain.Blockchain) *Classifier {
	c := &Classifier{supported: make(map[domain.Blockchain]struct{}, len(blockchains))}
	for _, bc := range blockchains {
		c.supported[bc] = struct{}{}
	}
	return c
}

func (c *Classifier) ensureSupported(a models.Asset) error {
	if _, ok := c.supported[a.Blockchain]; !ok {
		return fmt.Errorf("%w: %s on %s", ErrUnsupportedAsset, a.Name, a.Blockchain)
	}
	return nil
}

func (c *Classifier) CheckVariant(a models.Asset) (CheckVariant, error) {
	if err := c.ensureSupported(a); err != nil {
		return "", err
	}
	if a.Category == domain.AssetCategoryPoolPair {
		return CheckPoolPair, nil
	}
	return CheckDefault, nil
}

// PurchaseVariant is keyed by (blockchain, category, isBase). The base coin
// has its own variant regardless of category.
func (c *Classifier) PurchaseVariant(a models.Asset) (PurchaseVariant, error) {
	if err := c.ensureSupported(a); err != nil {
		return "", err
	}
	if a.IsBase() {
		return PurchaseCoin, nil
	}
	switch a.Category {
	case domain.AssetCategoryCrypto:
		return PurchaseCrypto, nil
	case domain.AssetCategoryStock:
		return PurchaseStock, nil
	case domain.AssetCategoryPoolPair:
		return PurchasePoolPair, nil
	}
	return "", fmt.Errorf("%w: category %q", ErrUnsupportedAsset, a.Category)
}

func (c *Classifier) SellVariant(a models.Asset) (SellVariant, error) {
	if err := c.ensureSupported(a); err != nil {
		return "", err
	}
	if a.IsBase() {
		return SellCoin, nil
	}
	return SellToken, nil
}

func (c *Classifier) PayoutVariant(a models.Asset) (PayoutVariant, error) {
	if err := c.ensureSupported(a); err != nil {
		return "", err
	}
	if a.IsBase() {
		return PayoutCoin, nil
	}
	return PayoutToken, nil
}

func (c *Classifier) PrepareVariant(a models.Asset) (PrepareVariant, error) {
	if err := c.ensureSupported(a); err != nil {
		return "", err
	}
	if a.IsBase() {
		return PrepareCoin, nil
	}
	return PrepareToken, nil
}
