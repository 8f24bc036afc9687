package config

import (
	"fmt"
	"os"

	"github.com/shopspring/decimal"
	"gopkg.in/yaml.v3"
)

// Decimal wraps decimal.Decimal to support YAML unmarshalling.
type Decimal struct {
	decimal.Decimal
}

// UnmarshalYAML parses decimal amounts written as strings or numbers.
func (d *Decimal) UnmarshalYAML(value *yaml.Node) error {
	if value == nil {
		return nil
	}
	if value.Kind != yaml.ScalarNode {
		return fmt.Errorf("decimal must be a scalar")
	}
	if value.Value == "" {
		d.Decimal = decimal.Zero
		return nil
	}
	parsed, err := decimal.NewFromString(value.Value)
	if err != nil {
		return fmt.Errorf("parse decimal %q: %w", value.Value, err)
	}
	d.Decimal = parsed
	return nil
}

// Strategies tunes the per-variant behaviour of the engines.
type Strategies struct {
	Purchase PurchaseStrategies `yaml:"purchase"`
	Sell     SellStrategies     `yaml:"sell"`
	Payout   PayoutStrategies   `yaml:"payout"`
}

// PurchaseStrategies lists, per purchase variant, the assets tried as swap
// source in priority order.
type PurchaseStrategies struct {
	Coin   []string `yaml:"coin"`
	Crypto []string `yaml:"crypto"`
	Stock  []string `yaml:"stock"`
}

type SellStrategies struct {
	// CoinFeeReserve is kept back when selling the base coin.
	CoinFeeReserve Decimal `yaml:"coin_fee_reserve"`
}

type PayoutStrategies struct {
	CoinGroupSize  int     `yaml:"coin_group_size"`
	TokenGroupSize int     `yaml:"token_group_size"`
	MinUtxo        Decimal `yaml:"min_utxo"`
}

// LoadStrategies reads the strategies file at path. An empty path yields the
// defaults; fields missing from the file keep their defaults.
func LoadStrategies(path, feeAsset string) (Strategies, error) {
	cfg := Strategies{}
	if path != "" {
		file, err := os.Open(path)
		if err != nil {
			return cfg, fmt.Errorf("open strategies file: %w", err)
		}
		defer file.Close()
		if err := yaml.NewDecoder(file).Decode(&cfg); err != nil {
			return cfg, fmt.Errorf("decode strategies file: %w", err)
		}
	}
	applyStrategyDefaults(&cfg, feeAsset)
	if cfg.Payout.CoinGroupSize <= 0 || cfg.Payout.TokenGroupSize <= 0 {
		return cfg, fmt.Errorf("payout group sizes must be positive")
	}
	return cfg, nil
}

func applyStrategyDefaults(cfg *Strategies, feeAsset string) {
	if len(cfg.Purchase.Coin) == 0 {
		cfg.Purchase.Coin = []string{"USDT", "BTC", "ETH"}
	}
	if len(cfg.Purchase.Crypto) == 0 {
		cfg.Purchase.Crypto = []string{feeAsset, "USDT"}
	}
	if len(cfg.Purchase.Stock) == 0 {
		cfg.Purchase.Stock = []string{"DUSD"}
	}
	if cfg.Sell.CoinFeeReserve.IsZero() {
		cfg.Sell.CoinFeeReserve = Decimal{decimal.RequireFromString("0.1")}
	}
	if cfg.Payout.CoinGroupSize == 0 {
		cfg.Payout.CoinGroupSize = 100
	}
	if cfg.Payout.TokenGroupSize == 0 {
		cfg.Payout.TokenGroupSize = 10
	}
	if cfg.Payout.MinUtxo.IsZero() {
		cfg.Payout.MinUtxo = Decimal{decimal.RequireFromString("0.01")}
	}
}
