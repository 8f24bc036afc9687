package service

import (
	"context"
	"fmt"
	"sync"

	"github.com/ayo6706/liquidity-settlement/internal/chain"
	"github.com/ayo6706/liquidity-settlement/internal/domain"
	"github.com/shopspring/decimal"
	"go.uber.org/zap"
)

type payoutStrategy interface {
	// groupSize is the maximum number of distinct addresses per transaction.
	groupSize() int
	feeAsset(ctx context.Context, net chain.Network) (string, error)
	// beforeDispatch runs right before a group is broadcast. It never fails
	// the dispatch.
	beforeDispatch(ctx context.Context, net chain.Network, outputs []chain.TransferOutput)
}

// feeAssetResolver memoizes the network's fee asset per strategy instance.
type feeAssetResolver struct {
	svc *PayoutService

	mu       sync.Mutex
	resolved map[domain.Blockchain]string
}

func (r *feeAssetResolver) feeAsset(ctx context.Context, net chain.Network) (string, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	if name, ok := r.resolved[net.Blockchain]; ok {
		return name, nil
	}
	asset, err := r.svc.assets.Resolve(ctx, net.FeeAsset, domain.AssetTypeCoin, net.Blockchain)
	if err != nil {
		return "", fmt.Errorf("resolve fee asset %s: %w", net.FeeAsset, err)
	}
	if r.resolved == nil {
		r.resolved = make(map[domain.Blockchain]string)
	}
	r.resolved[net.Blockchain] = asset.Name
	return asset.Name, nil
}

type coinPayout struct {
	feeAssetResolver
	size int
}

func newCoinPayout(svc *PayoutService, size int) *coinPayout {
	return &coinPayout{feeAssetResolver: feeAssetResolver{svc: svc}, size: size}
}

func (p *coinPayout) groupSize() int { return p.size }

func (p *coinPayout) beforeDispatch(context.Context, chain.Network, []chain.TransferOutput) {}

// tokenPayout tops up destinations that hold too little of the base coin to
// ever move the tokens they receive.
type tokenPayout struct {
	feeAssetResolver
	size    int
	minUtxo decimal.Decimal
}

func newTokenPayout(svc *PayoutService, size int, minUtxo decimal.Decimal) *tokenPayout {
	return &tokenPayout{feeAssetResolver: feeAssetResolver{svc: svc}, size: size, minUtxo: minUtxo}
}

func (p *tokenPayout) groupSize() int { return p.size }

func (p *tokenPayout) beforeDispatch(ctx context.Context, net chain.Network, outputs []chain.TransferOutput) {
	if !p.minUtxo.IsPositive() || !p.svc.settings.IsEnabled(ctx, domain.SettingCheckMinUtxoOnPayout) {
		return
	}
	feeAsset, err := p.feeAsset(ctx, net)
	if err != nil {
		zap.L().Warn("min utxo check skipped", zap.Error(err))
		return
	}
	for _, out := range outputs {
		balance, err := net.Client.GetUtxoBalance(ctx, out.Address)
		if err != nil {
			zap.L().Warn("min utxo balance lookup failed", zap.Error(err), zap.String("address", out.Address))
			continue
		}
		if !balance.LessThan(p.minUtxo) {
			continue
		}
		txID, err := net.Client.Transfer(ctx, net.PayoutAddress, out.Address, feeAsset, p.minUtxo)
		if err != nil {
			zap.L().Warn("min utxo top-up failed", zap.Error(err), zap.String("address", out.Address))
			continue
		}
		zap.L().Info("min utxo topped up",
			zap.String("address", out.Address),
			zap.String("amount", p.minUtxo.String()),
			zap.String("tx_id", txID),
		)
	}
}
