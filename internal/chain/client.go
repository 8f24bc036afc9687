package chain

import (
	"context"
	"errors"

	"github.com/ayo6706/liquidity-settlement/internal/models"
	"github.com/shopspring/decimal"
)

var (
	// ErrBroadcastTimeout means a broadcast was sent but its outcome is unknown.
	ErrBroadcastTimeout = errors.New("chain broadcast timed out")
	// ErrNoTransactionID means the node accepted a broadcast without returning a tx id.
	ErrNoTransactionID = errors.New("chain returned no transaction id")
	// ErrTransactionNotFound is returned by GetTransaction for unknown ids.
	ErrTransactionNotFound = errors.New("transaction not found")
	// ErrUnsupportedBlockchain is returned by the registry for unknown networks.
	ErrUnsupportedBlockchain = errors.New("unsupported blockchain")
)

// IsIndeterminate reports whether err leaves the broadcast outcome unknown.
func IsIndeterminate(err error) bool {
	return errors.Is(err, ErrBroadcastTimeout) || errors.Is(err, ErrNoTransactionID)
}

// SwapRequest describes a swap of SourceAmount of SourceAsset into TargetAsset.
// MaxPrice, when valid, bounds the price in source units per target unit.
type SwapRequest struct {
	Address      string
	SourceAsset  string
	SourceAmount decimal.Decimal
	TargetAsset  string
	MaxPrice     decimal.NullDecimal
}

type AssetAmount struct {
	Asset  string
	Amount decimal.Decimal
}

type AddLiquidityRequest struct {
	Address string
	Legs    [2]AssetAmount
}

// TransferOutput is one destination of a multi-output transfer.
type TransferOutput struct {
	Address string
	Amount  decimal.Decimal
}

// Transaction is the observed state of a broadcast transaction. Amounts holds
// the amount of each asset the transaction delivered to its destination.
type Transaction struct {
	ID        string
	Confirmed bool
	Fee       decimal.Decimal
	Amounts   map[string]decimal.Decimal
}

// Client is the authenticated chain capability used by the engines.
// Read methods are safe to retry. Broadcast methods (ExecuteSwap, Transfer,
// TransferMany, AddLiquidity, MergeOutputs, SplitOutput) are not.
type Client interface {
	GetBalance(ctx context.Context, address, asset string) (decimal.Decimal, error)
	GetUtxoBalance(ctx context.Context, address string) (decimal.Decimal, error)
	TestSwap(ctx context.Context, sourceAsset, targetAsset string, amount decimal.Decimal) (decimal.Decimal, error)
	GetReferencePrice(ctx context.Context, sourceAsset, targetAsset string) (decimal.Decimal, error)
	GetTransaction(ctx context.Context, txID string) (Transaction, error)
	GetUnspentOutputs(ctx context.Context, address string) ([]models.UnspentOutput, error)

	ExecuteSwap(ctx context.Context, req SwapRequest) (string, error)
	Transfer(ctx context.Context, from, to, asset string, amount decimal.Decimal) (string, error)
	TransferMany(ctx context.Context, from, asset string, outputs []TransferOutput) (string, error)
	AddLiquidity(ctx context.Context, req AddLiquidityRequest) (string, error)
	MergeOutputs(ctx context.Context, address string, count int) (string, error)
	SplitOutput(ctx context.Context, address string, factor int) (string, error)
}
