package service

import (
	"context"
	"fmt"

	"github.com/ayo6706/liquidity-settlement/internal/chain"
	"github.com/ayo6706/liquidity-settlement/internal/models"
	"github.com/ayo6706/liquidity-settlement/internal/observability"
	"github.com/shopspring/decimal"
	"go.uber.org/zap"
)

// UTXOAction is what a housekeeping run did.
type UTXOAction string

const (
	UTXOActionNone  UTXOAction = "none"
	UTXOActionSplit UTXOAction = "split"
	UTXOActionMerge UTXOAction = "merge"
)

// UTXOPolicy holds the housekeeping thresholds.
type UTXOPolicy struct {
	Address         string
	MinOperateValue decimal.Decimal
	MinSplitValue   decimal.Decimal
	MaxCount        int
	MergeBatch      int
}

// UTXOService keeps the operating address's output set usable: oversized
// outputs are split and excess fragmentation is merged.
type UTXOService struct {
	network chain.Network
	policy  UTXOPolicy
}

func NewUTXOService(network chain.Network, policy UTXOPolicy) *UTXOService {
	if policy.Address == "" {
		policy.Address = network.PayoutAddress
	}
	return &UTXOService{network: network, policy: policy}
}

type utxoStats struct {
	quantity int
	biggest  decimal.Decimal
}

func computeUTXOStats(outputs []models.UnspentOutput) utxoStats {
	stats := utxoStats{quantity: len(outputs), biggest: decimal.Zero}
	for _, out := range outputs {
		if out.Amount.GreaterThan(stats.biggest) {
			stats.biggest = out.Amount
		}
	}
	return stats
}

// splitFactor is ceil(biggest / minSplit).
func splitFactor(biggest, minSplit decimal.Decimal) int {
	return int(biggest.Div(minSplit).Ceil().IntPart())
}

// Run performs at most one housekeeping action and reports which.
func (s *UTXOService) Run(ctx context.Context) (UTXOAction, error) {
	client := s.network.Client
	address := s.policy.Address

	balance, err := client.GetUtxoBalance(ctx, address)
	if err != nil {
		return UTXOActionNone, fmt.Errorf("get utxo balance: %w", err)
	}
	if balance.LessThan(s.policy.MinOperateValue) {
		zap.L().Debug("utxo housekeeping skipped: balance below minimum",
			zap.String("balance", balance.String()),
			zap.String("minimum", s.policy.MinOperateValue.String()),
		)
		return UTXOActionNone, nil
	}

	outputs, err := client.GetUnspentOutputs(ctx, address)
	if err != nil {
		return UTXOActionNone, fmt.Errorf("list unspent outputs: %w", err)
	}
	stats := computeUTXOStats(outputs)

	switch {
	case s.policy.MinSplitValue.IsPositive() && stats.biggest.GreaterThanOrEqual(s.policy.MinSplitValue):
		factor := splitFactor(stats.biggest, s.policy.MinSplitValue)
		txID, err := client.SplitOutput(ctx, address, factor)
		if err != nil {
			return UTXOActionNone, fmt.Errorf("split output of %s into %d: %w", stats.biggest, factor, err)
		}
		observability.IncrementUTXOAction(string(UTXOActionSplit))
		zap.L().Info("utxo split", zap.String("biggest", stats.biggest.String()), zap.Int("factor", factor), zap.String("tx_id", txID))
		return UTXOActionSplit, nil

	case stats.quantity > s.policy.MaxCount:
		txID, err := client.MergeOutputs(ctx, address, s.policy.MergeBatch)
		if err != nil {
			return UTXOActionNone, fmt.Errorf("merge %d outputs: %w", s.policy.MergeBatch, err)
		}
		observability.IncrementUTXOAction(string(UTXOActionMerge))
		zap.L().Info("utxo merge", zap.Int("quantity", stats.quantity), zap.Int("batch", s.policy.MergeBatch), zap.String("tx_id", txID))
		return UTXOActionMerge, nil
	}

	observability.IncrementUTXOAction(string(UTXOActionNone))
	return UTXOActionNone, nil
}
