package service

import (
	"context"
	"errors"
	"fmt"

	"github.com/ayo6706/liquidity-settlement/internal/chain"
	"github.com/ayo6706/liquidity-settlement/internal/domain"
	"github.com/ayo6706/liquidity-settlement/internal/models"
	"github.com/ayo6706/liquidity-settlement/internal/observability"
	"github.com/shopspring/decimal"
	"go.uber.org/zap"
)

type prepareStrategy interface {
	// prepare moves the payout amount to the payout address and records the
	// transfer on the order. The order has already been claimed as
	// PREPARATION_PENDING.
	prepare(ctx context.Context, net chain.Network, order *models.PayoutOrder) error
	// checkPreparation reports whether the preparation transfer is confirmed
	// and records its fee.
	checkPreparation(ctx context.Context, net chain.Network, order *models.PayoutOrder) (bool, error)
}

// transferPreparation funds the payout address from the liquidity address.
type transferPreparation struct{}

func (transferPreparation) prepare(ctx context.Context, net chain.Network, order *models.PayoutOrder) error {
	txID, err := net.Client.Transfer(ctx, net.LiquidityAddress, net.PayoutAddress, order.Asset, order.Amount)
	if errors.Is(err, models.ErrTransferNotRequired) {
		return transitionPayout(order, domain.PayoutStatusPreparationConfirmed)
	}
	if err != nil {
		return fmt.Errorf("transfer %s %s to payout address: %w", order.Amount, order.Asset, err)
	}
	order.TransferTxID = txID
	return nil
}

func (transferPreparation) checkPreparation(ctx context.Context, net chain.Network, order *models.PayoutOrder) (bool, error) {
	tx, err := net.Client.GetTransaction(ctx, order.TransferTxID)
	if err != nil {
		if errors.Is(err, chain.ErrTransactionNotFound) {
			return false, nil
		}
		return false, err
	}
	if !tx.Confirmed {
		return false, nil
	}
	order.PreparationFeeAsset = net.FeeAsset
	order.PreparationFeeAmount = decimal.NewNullDecimal(tx.Fee)
	return true, transitionPayout(order, domain.PayoutStatusPreparationConfirmed)
}

func (s *PayoutService) prepareStrategyFor(ctx context.Context, order *models.PayoutOrder) (chain.Network, prepareStrategy, error) {
	net, err := s.networks.Get(order.Chain)
	if err != nil {
		return chain.Network{}, nil, err
	}
	asset, err := s.assets.Lookup(ctx, order.Chain, order.Asset)
	if err != nil {
		return chain.Network{}, nil, err
	}
	variant, err := s.classifier.PrepareVariant(asset)
	if err != nil {
		return chain.Network{}, nil, err
	}
	preparer, err := s.prepares.Get(variant)
	if err != nil {
		return chain.Network{}, nil, err
	}
	return net, preparer, nil
}

// prepareCreated starts preparation of CREATED orders. Each order is claimed
// as PREPARATION_PENDING before its transfer is broadcast, so a transfer whose
// outcome or tx id is lost is never sent again. Definite failures release the
// claim and the order is retried on the next pass.
func (s *PayoutService) prepareCreated(ctx context.Context) error {
	orders, err := s.store.ListPayoutOrdersByStatus(ctx, domain.PayoutStatusCreated, s.opts.BatchSize)
	if err != nil {
		return fmt.Errorf("list created payouts: %w", err)
	}
	for i := range orders {
		if err := ctx.Err(); err != nil {
			return err
		}
		order := &orders[i]
		net, preparer, err := s.prepareStrategyFor(ctx, order)
		if err != nil {
			zap.L().Error("resolve preparation strategy failed", zap.Error(err), zap.String("order", order.Key()))
			continue
		}
		if err := s.claimPreparation(ctx, order); err != nil {
			zap.L().Warn("claim payout preparation failed", zap.Error(err), zap.String("order", order.Key()))
			continue
		}
		if err := preparer.prepare(ctx, net, order); err != nil {
			s.handlePreparationFailure(ctx, order, err)
			continue
		}
		if err := s.store.UpdatePayoutOrder(ctx, order); err != nil {
			if order.TransferTxID == "" {
				zap.L().Error("persist payout preparation failed", zap.Error(err), zap.String("order", order.Key()))
				s.releasePreparation(ctx, order)
				continue
			}
			zap.L().Error("persist payout preparation failed", zap.Error(err), zap.String("order", order.Key()), zap.String("tx_id", order.TransferTxID))
			s.notifier.SendErrorMail(ctx, "Payout preparation broadcast but not recorded",
				fmt.Sprintf("order %s: transfer of %s %s, tx %s", order.Key(), order.Amount, order.Asset, order.TransferTxID),
				err.Error(),
			)
			continue
		}
		observability.AddPayoutTransitions(string(order.Status), 1)
	}
	return nil
}

func (s *PayoutService) claimPreparation(ctx context.Context, order *models.PayoutOrder) error {
	if err := s.store.UpdatePayoutStatuses(ctx, []models.PayoutStatusUpdate{
		{ID: order.ID, From: domain.PayoutStatusCreated, Status: domain.PayoutStatusPreparationPending},
	}); err != nil {
		return err
	}
	return transitionPayout(order, domain.PayoutStatusPreparationPending)
}

// handlePreparationFailure keeps an order whose transfer outcome is unknown
// claimed without a tx id and reports it. Any other failure releases it.
func (s *PayoutService) handlePreparationFailure(ctx context.Context, order *models.PayoutOrder, err error) {
	if chain.IsIndeterminate(err) {
		zap.L().Error("payout preparation outcome unknown", zap.Error(err), zap.String("order", order.Key()))
		s.notifier.SendErrorMail(ctx, "Payout preparation outcome unknown",
			fmt.Sprintf("order %s: transfer of %s %s to payout address", order.Key(), order.Amount, order.Asset),
			err.Error(),
		)
		return
	}
	zap.L().Warn("payout preparation failed", zap.Error(err), zap.String("order", order.Key()))
	s.releasePreparation(ctx, order)
}

func (s *PayoutService) releasePreparation(ctx context.Context, order *models.PayoutOrder) {
	err := s.store.UpdatePayoutStatuses(ctx, []models.PayoutStatusUpdate{
		{ID: order.ID, From: domain.PayoutStatusPreparationPending, Status: domain.PayoutStatusCreated},
	})
	if err != nil {
		zap.L().Error("release payout preparation failed", zap.Error(err), zap.String("order", order.Key()))
		s.notifier.SendErrorMail(ctx, "Payout preparation not released", fmt.Sprintf("order %s", order.Key()), err.Error())
	}
}

func (s *PayoutService) checkPreparations(ctx context.Context) error {
	orders, err := s.store.ListPayoutOrdersByStatus(ctx, domain.PayoutStatusPreparationPending, s.opts.BatchSize)
	if err != nil {
		return fmt.Errorf("list preparing payouts: %w", err)
	}
	for i := range orders {
		if err := ctx.Err(); err != nil {
			return err
		}
		order := &orders[i]
		if order.TransferTxID == "" {
			// Claimed but the transfer outcome is unknown; resolved by an operator.
			continue
		}
		net, preparer, err := s.prepareStrategyFor(ctx, order)
		if err != nil {
			zap.L().Error("resolve preparation strategy failed", zap.Error(err), zap.String("order", order.Key()))
			continue
		}
		done, err := preparer.checkPreparation(ctx, net, order)
		if err != nil {
			zap.L().Warn("check payout preparation failed", zap.Error(err), zap.String("order", order.Key()))
			continue
		}
		if !done {
			continue
		}
		if err := s.store.UpdatePayoutOrder(ctx, order); err != nil {
			zap.L().Error("persist payout preparation confirmation failed", zap.Error(err), zap.String("order", order.Key()))
			continue
		}
		observability.AddPayoutTransitions(string(domain.PayoutStatusPreparationConfirmed), 1)
	}
	return nil
}
