package chain

import (
	"context"
	"errors"

	"github.com/ayo6706/liquidity-settlement/internal/models"
	"github.com/shopspring/decimal"
)

// ErrNotImplemented is returned by FuncClient methods left nil.
var ErrNotImplemented = errors.New("chain method not implemented")

// FuncClient adapts plain functions to the Client interface. Nil functions
// return ErrNotImplemented.
type FuncClient struct {
	GetBalanceFunc        func(ctx context.Context, address, asset string) (decimal.Decimal, error)
	GetUtxoBalanceFunc    func(ctx context.Context, address string) (decimal.Decimal, error)
	TestSwapFunc          func(ctx context.Context, sourceAsset, targetAsset string, amount decimal.Decimal) (decimal.Decimal, error)
	GetReferencePriceFunc func(ctx context.Context, sourceAsset, targetAsset string) (decimal.Decimal, error)
	GetTransactionFunc    func(ctx context.Context, txID string) (Transaction, error)
	GetUnspentOutputsFunc func(ctx context.Context, address string) ([]models.UnspentOutput, error)
	ExecuteSwapFunc       func(ctx context.Context, req SwapRequest) (string, error)
	TransferFunc          func(ctx context.Context, from, to, asset string, amount decimal.Decimal) (string, error)
	TransferManyFunc      func(ctx context.Context, from, asset string, outputs []TransferOutput) (string, error)
	AddLiquidityFunc      func(ctx context.Context, req AddLiquidityRequest) (string, error)
	MergeOutputsFunc      func(ctx context.Context, address string, count int) (string, error)
	SplitOutputFunc       func(ctx context.Context, address string, factor int) (string, error)
}

var _ Client = FuncClient{}

func (f FuncClient) GetBalance(ctx context.Context, address, asset string) (decimal.Decimal, error) {
	if f.GetBalanceFunc == nil {
		return decimal.Zero, ErrNotImplemented
	}
	return f.GetBalanceFunc(ctx, address, asset)
}

func (f FuncClient) GetUtxoBalance(ctx context.Context, address string) (decimal.Decimal, error) {
	if f.GetUtxoBalanceFunc == nil {
		return decimal.Zero, ErrNotImplemented
	}
	return f.GetUtxoBalanceFunc(ctx, address)
}

func (f FuncClient) TestSwap(ctx context.Context, sourceAsset, targetAsset string, amount decimal.Decimal) (decimal.Decimal, error) {
	if f.TestSwapFunc == nil {
		return decimal.Zero, ErrNotImplemented
	}
	return f.TestSwapFunc(ctx, sourceAsset, targetAsset, amount)
}

func (f FuncClient) GetReferencePrice(ctx context.Context, sourceAsset, targetAsset string) (decimal.Decimal, error) {
	if f.GetReferencePriceFunc == nil {
		return decimal.Zero, ErrNotImplemented
	}
	return f.GetReferencePriceFunc(ctx, sourceAsset, targetAsset)
}

func (f FuncClient) GetTransaction(ctx context.Context, txID string) (Transaction, error) {
	if f.GetTransactionFunc == nil {
		return Transaction{}, ErrNotImplemented
	}
	return f.GetTransactionFunc(ctx, txID)
}

func (f FuncClient) GetUnspentOutputs(ctx context.Context, address string) ([]models.UnspentOutput, error) {
	if f.GetUnspentOutputsFunc == nil {
		return nil, ErrNotImplemented
	}
	return f.GetUnspentOutputsFunc(ctx, address)
}

func (f FuncClient) ExecuteSwap(ctx context.Context, req SwapRequest) (string, error) {
	if f.ExecuteSwapFunc == nil {
		return "", ErrNotImplemented
	}
	return f.ExecuteSwapFunc(ctx, req)
}

func (f FuncClient) Transfer(ctx context.Context, from, to, asset string, amount decimal.Decimal) (string, error) {
	if f.TransferFunc == nil {
		return "", ErrNotImplemented
	}
	return f.TransferFunc(ctx, from, to, asset, amount)
}

func (f FuncClient) TransferMany(ctx context.Context, from, asset string, outputs []TransferOutput) (string, error) {
	if f.TransferManyFunc == nil {
		return "", ErrNotImplemented
	}
	return f.TransferManyFunc(ctx, from, asset, outputs)
}

func (f FuncClient) AddLiquidity(ctx context.Context, req AddLiquidityRequest) (string, error) {
	if f.AddLiquidityFunc == nil {
		return "", ErrNotImplemented
	}
	return f.AddLiquidityFunc(ctx, req)
}

func (f FuncClient) MergeOutputs(ctx context.Context, address string, count int) (string, error) {
	if f.MergeOutputsFunc == nil {
		return "", ErrNotImplemented
	}
	return f.MergeOutputsFunc(ctx, address, count)
}

func (f FuncClient) SplitOutput(ctx context.Context, address string, factor int) (string, error) {
	if f.SplitOutputFunc == nil {
		return "", ErrNotImplemented
	}
	return f.SplitOutputFunc(ctx, address, factor)
}
