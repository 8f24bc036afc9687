package models

import (
	"fmt"
	"strings"
	"time"

	"github.com/ayo6706/liquidity-settlement/internal/domain"
	"github.com/google/uuid"
	"github.com/shopspring/decimal"
)

// Asset is a catalog entry. Names are unique per blockchain.
type Asset struct {
	ID         int64                `json:"id"`
	Name       string               `json:"name"`
	Type       domain.AssetType     `json:"type"`
	Category   domain.AssetCategory `json:"category"`
	Blockchain domain.Blockchain    `json:"blockchain"`
}

// IsBase reports whether the asset is the chain's native coin.
func (a Asset) IsBase() bool {
	return a.Type == domain.AssetTypeCoin
}

// PairLegs splits a pool-pair name of the form "A-B" into its leg names.
func (a Asset) PairLegs() (string, string, error) {
	if a.Category != domain.AssetCategoryPoolPair {
		return "", "", fmt.Errorf("asset %s is not a pool pair", a.Name)
	}
	parts := strings.Split(a.Name, "-")
	if len(parts) != 2 || parts[0] == "" || parts[1] == "" {
		return "", "", fmt.Errorf("malformed pool pair name %q", a.Name)
	}
	return parts[0], parts[1], nil
}

func (a Asset) String() string {
	return fmt.Sprintf("%s/%s/%s", a.Blockchain, a.Name, a.Type)
}

// LiquidityOrder tracks one request for liquidity from the wallet.
type LiquidityOrder struct {
	ID                    uuid.UUID                 `json:"id"`
	Context               domain.OrderContext       `json:"context"`
	CorrelationID         string                    `json:"correlation_id"`
	Type                  domain.LiquidityOrderType `json:"type"`
	Chain                 domain.Blockchain         `json:"chain"`
	ParentID              uuid.NullUUID             `json:"parent_id"`
	ReferenceAsset        string                    `json:"reference_asset"`
	ReferenceAmount       decimal.Decimal           `json:"reference_amount"`
	TargetAsset           string                    `json:"target_asset"`
	SwapAsset             string                    `json:"swap_asset,omitempty"`
	SwapAmount            decimal.NullDecimal       `json:"swap_amount"`
	MaxSlippage           decimal.Decimal           `json:"max_slippage"`
	EstimatedTargetAmount decimal.NullDecimal       `json:"estimated_target_amount"`
	TargetAmount          decimal.NullDecimal       `json:"target_amount"`
	IsReady               bool                      `json:"is_ready"`
	IsComplete            bool                      `json:"is_complete"`
	TxID                  string                    `json:"tx_id,omitempty"`
	FeeAsset              string                    `json:"fee_asset,omitempty"`
	FeeAmount             decimal.NullDecimal       `json:"fee_amount"`
	CreatedAt             time.Time                 `json:"created_at"`
	UpdatedAt             time.Time                 `json:"updated_at"`
}

// Key returns the caller-facing identity of the order.
func (o *LiquidityOrder) Key() string {
	return string(o.Context) + "/" + o.CorrelationID
}

// Reserve marks a reservation as settled. Reservations never swap, so the
// estimated amount is the realized amount.
func (o *LiquidityOrder) Reserve(amount decimal.Decimal) {
	o.EstimatedTargetAmount = decimal.NewNullDecimal(amount)
	o.TargetAmount = decimal.NewNullDecimal(amount)
	o.IsReady = true
}

// RecordSwapIntent persists the leg chosen for a swap before it is broadcast.
func (o *LiquidityOrder) RecordSwapIntent(asset string, amount decimal.Decimal) {
	o.SwapAsset = asset
	o.SwapAmount = decimal.NewNullDecimal(amount)
}

// ClearSwapIntent forgets a swap leg whose broadcast definitely failed.
func (o *LiquidityOrder) ClearSwapIntent() {
	o.SwapAsset = ""
	o.SwapAmount = decimal.NullDecimal{}
}

// RecordLiquidityIntent marks a pool-pair order whose add-liquidity
// transaction is about to be broadcast.
func (o *LiquidityOrder) RecordLiquidityIntent() {
	o.SwapAsset = o.TargetAsset
	o.SwapAmount = decimal.NullDecimal{}
}

// HasIndeterminateSwap reports whether a swap leg was recorded but its
// broadcast never produced a transaction id.
func (o *LiquidityOrder) HasIndeterminateSwap() bool {
	return o.SwapAsset != "" && o.TxID == ""
}

// Settle records the confirmed result of the order's transaction.
func (o *LiquidityOrder) Settle(targetAmount, fee decimal.Decimal, feeAsset string) {
	o.TargetAmount = decimal.NewNullDecimal(targetAmount)
	o.FeeAmount = decimal.NewNullDecimal(fee)
	o.FeeAsset = feeAsset
	o.IsReady = true
}

// Complete marks a ready order as consumed by its caller.
func (o *LiquidityOrder) Complete() error {
	if !o.IsReady {
		return fmt.Errorf("complete order %s: %w", o.Key(), ErrLiquidityOrderNotReady)
	}
	o.IsComplete = true
	return nil
}

// PayoutOrder is a single obligation to send an asset to a destination.
type PayoutOrder struct {
	ID                   uuid.UUID           `json:"id"`
	Context              domain.OrderContext `json:"context"`
	CorrelationID        string              `json:"correlation_id"`
	Chain                domain.Blockchain   `json:"chain"`
	Asset                string              `json:"asset"`
	Amount               decimal.Decimal     `json:"amount"`
	DestinationAddress   string              `json:"destination_address"`
	Status               domain.PayoutStatus `json:"status"`
	TransferTxID         string              `json:"transfer_tx_id,omitempty"`
	PayoutTxID           string              `json:"payout_tx_id,omitempty"`
	PreparationFeeAsset  string              `json:"preparation_fee_asset,omitempty"`
	PreparationFeeAmount decimal.NullDecimal `json:"preparation_fee_amount"`
	PayoutFeeAsset       string              `json:"payout_fee_asset,omitempty"`
	PayoutFeeAmount      decimal.NullDecimal `json:"payout_fee_amount"`
	CreatedAt            time.Time           `json:"created_at"`
	UpdatedAt            time.Time           `json:"updated_at"`
}

func (o *PayoutOrder) Key() string {
	return string(o.Context) + "/" + o.CorrelationID
}

// PayoutStatusUpdate moves one payout order to a new status.
type PayoutStatusUpdate struct {
	ID     uuid.UUID
	From   domain.PayoutStatus
	Status domain.PayoutStatus
}

// UnspentOutput is one entry of an address's UTXO set.
type UnspentOutput struct {
	TxID    string          `json:"txid"`
	Vout    uint32          `json:"vout"`
	Address string          `json:"address"`
	Amount  decimal.Decimal `json:"amount"`
}
