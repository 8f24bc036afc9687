package service

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"github.com/ayo6706/liquidity-settlement/internal/catalog"
	"github.com/ayo6706/liquidity-settlement/internal/chain"
	"github.com/ayo6706/liquidity-settlement/internal/config"
	"github.com/ayo6706/liquidity-settlement/internal/domain"
	"github.com/ayo6706/liquidity-settlement/internal/models"
	"github.com/ayo6706/liquidity-settlement/internal/notification"
	"github.com/ayo6706/liquidity-settlement/internal/observability"
	"github.com/ayo6706/liquidity-settlement/internal/settings"
	"github.com/ayo6706/liquidity-settlement/internal/strategy"
	"github.com/google/uuid"
	"github.com/shopspring/decimal"
	"go.uber.org/zap"
)

// LiquidityService books, tracks and completes liquidity orders against the
// wallet's liquidity address.
type LiquidityService struct {
	store      LiquidityOrderStore
	networks   *chain.Registry
	assets     catalog.Resolver
	settings   settings.Reader
	classifier *strategy.Classifier
	notifier   notification.Notifier
	strategies config.Strategies

	checks    *strategy.Registry[strategy.CheckVariant, liquidityCheck]
	purchases *strategy.Registry[strategy.PurchaseVariant, purchaseStrategy]
	sales     *strategy.Registry[strategy.SellVariant, sellStrategy]
}

const readyOrderBatchSize = 100

func NewLiquidityService(
	store LiquidityOrderStore,
	networks *chain.Registry,
	assets catalog.Resolver,
	settingsReader settings.Reader,
	classifier *strategy.Classifier,
	strategies config.Strategies,
	notifier notification.Notifier,
) *LiquidityService {
	s := &LiquidityService{
		store:      store,
		networks:   networks,
		assets:     assets,
		settings:   settingsReader,
		classifier: classifier,
		notifier:   notifier,
		strategies: strategies,
		checks:     strategy.NewRegistry[strategy.CheckVariant, liquidityCheck](),
		purchases:  strategy.NewRegistry[strategy.PurchaseVariant, purchaseStrategy](),
		sales:      strategy.NewRegistry[strategy.SellVariant, sellStrategy](),
	}

	s.checks.Register(strategy.CheckDefault, &defaultCheck{svc: s})
	s.checks.Register(strategy.CheckPoolPair, &poolPairCheck{svc: s})

	s.purchases.Register(strategy.PurchaseCoin, newSwapPurchase(s, strategies.Purchase.Coin))
	s.purchases.Register(strategy.PurchaseCrypto, newSwapPurchase(s, strategies.Purchase.Crypto))
	s.purchases.Register(strategy.PurchaseStock, newSwapPurchase(s, strategies.Purchase.Stock))
	s.purchases.Register(strategy.PurchasePoolPair, &poolPairPurchase{svc: s})

	s.sales.Register(strategy.SellCoin, &coinSale{svc: s, feeReserve: strategies.Sell.CoinFeeReserve.Decimal})
	s.sales.Register(strategy.SellToken, &tokenSale{svc: s})

	return s
}

// LiquidityRequest asks for TargetAsset worth ReferenceAmount of ReferenceAsset.
type LiquidityRequest struct {
	Context         domain.OrderContext
	CorrelationID   string
	ReferenceAsset  models.Asset
	ReferenceAmount decimal.Decimal
	TargetAsset     models.Asset
	MaxSlippage     decimal.Decimal
}

func (r LiquidityRequest) validate() error {
	if !r.Context.Valid() {
		return fmt.Errorf("%w: unknown context %q", models.ErrInvalidRequest, r.Context)
	}
	if strings.TrimSpace(r.CorrelationID) == "" {
		return fmt.Errorf("%w: correlation id is required", models.ErrInvalidRequest)
	}
	if !r.ReferenceAmount.IsPositive() {
		return fmt.Errorf("%w: reference amount must be positive", models.ErrInvalidRequest)
	}
	if r.MaxSlippage.IsNegative() {
		return fmt.Errorf("%w: max slippage must not be negative", models.ErrInvalidRequest)
	}
	if r.ReferenceAsset.Blockchain != r.TargetAsset.Blockchain {
		return fmt.Errorf("%w: reference and target assets are on different blockchains", models.ErrInvalidRequest)
	}
	return nil
}

// SellRequest disposes of Amount of Asset in exchange for TargetAsset.
type SellRequest struct {
	Context       domain.OrderContext
	CorrelationID string
	Asset         models.Asset
	Amount        decimal.Decimal
	TargetAsset   models.Asset
	MaxSlippage   decimal.Decimal
}

func (r SellRequest) validate() error {
	return LiquidityRequest{
		Context:         r.Context,
		CorrelationID:   r.CorrelationID,
		ReferenceAsset:  r.Asset,
		ReferenceAmount: r.Amount,
		TargetAsset:     r.TargetAsset,
		MaxSlippage:     r.MaxSlippage,
	}.validate()
}

// CheckLiquidityResult is the outcome of a liquidity check.
type CheckLiquidityResult struct {
	Asset                string          `json:"asset"`
	TargetAmount         decimal.Decimal `json:"target_amount"`
	AvailableAmount      decimal.Decimal `json:"available_amount"`
	MaxPurchasableAmount decimal.Decimal `json:"max_purchasable_amount"`
	IsSlippageDetected   bool            `json:"is_slippage_detected"`
}

// LiquidityTransactionResult is the realized outcome of a ready order.
type LiquidityTransactionResult struct {
	TargetAmount decimal.Decimal `json:"target_amount"`
	TxID         string          `json:"tx_id,omitempty"`
}

// LiquidityCompletion reports whether an order is complete and what it cost.
type LiquidityCompletion struct {
	IsComplete bool            `json:"is_complete"`
	FeeAsset   string          `json:"fee_asset,omitempty"`
	FeeAmount  decimal.Decimal `json:"fee_amount"`
}

// CheckLiquidity simulates the request. The result is returned alongside
// ErrPriceSlippage and ErrNotEnoughLiquidity so callers can inspect it.
func (s *LiquidityService) CheckLiquidity(ctx context.Context, req LiquidityRequest) (*CheckLiquidityResult, error) {
	if err := req.validate(); err != nil {
		return nil, err
	}
	variant, err := s.classifier.CheckVariant(req.TargetAsset)
	if err != nil {
		return nil, err
	}
	check, err := s.checks.Get(variant)
	if err != nil {
		return nil, err
	}
	net, err := s.networks.Get(req.TargetAsset.Blockchain)
	if err != nil {
		return nil, err
	}

	result, err := check.check(ctx, net, req)
	if err != nil {
		return nil, err
	}
	if result.IsSlippageDetected {
		return result, fmt.Errorf("check %s/%s: %w", req.Context, req.CorrelationID, models.ErrPriceSlippage)
	}
	if result.AvailableAmount.Add(result.MaxPurchasableAmount).LessThan(result.TargetAmount) {
		return result, fmt.Errorf("check %s/%s: %w: %s available %s, purchasable %s, required %s",
			req.Context, req.CorrelationID, models.ErrNotEnoughLiquidity, result.Asset,
			result.AvailableAmount, result.MaxPurchasableAmount, result.TargetAmount)
	}
	return result, nil
}

// ReserveLiquidity books already available liquidity for the caller.
// Reservations are ready as soon as they are persisted.
func (s *LiquidityService) ReserveLiquidity(ctx context.Context, req LiquidityRequest) (*models.LiquidityOrder, error) {
	if err := req.validate(); err != nil {
		return nil, err
	}
	return s.reserve(ctx, req, uuid.NullUUID{})
}

func (s *LiquidityService) reserve(ctx context.Context, req LiquidityRequest, parentID uuid.NullUUID) (*models.LiquidityOrder, error) {
	existing, err := s.findOrder(ctx, req.Context, req.CorrelationID)
	if err != nil {
		return nil, err
	}
	if existing != nil {
		return existing, nil
	}

	result, err := s.CheckLiquidity(ctx, req)
	if err != nil && !errors.Is(err, models.ErrNotEnoughLiquidity) {
		return nil, err
	}
	if result == nil {
		return nil, err
	}
	if result.AvailableAmount.LessThan(result.TargetAmount) {
		observability.IncrementLiquidityOrder(string(domain.LiquidityOrderReservation), "insufficient")
		return nil, fmt.Errorf("reserve %s/%s: %w: %s available %s, required %s",
			req.Context, req.CorrelationID, models.ErrNotEnoughLiquidity, result.Asset,
			result.AvailableAmount, result.TargetAmount)
	}

	order := newLiquidityOrder(req, domain.LiquidityOrderReservation, parentID)
	order.Reserve(result.TargetAmount)
	stored, created, err := s.store.CreateLiquidityOrder(ctx, order)
	if err != nil {
		return nil, fmt.Errorf("persist reservation %s: %w", order.Key(), err)
	}
	if created {
		observability.IncrementLiquidityOrder(string(domain.LiquidityOrderReservation), "booked")
		zap.L().Info("liquidity reserved",
			zap.String("context", string(req.Context)),
			zap.String("correlation_id", req.CorrelationID),
			zap.String("asset", req.TargetAsset.Name),
			zap.String("amount", result.TargetAmount.String()),
		)
	}
	return stored, nil
}

// PurchaseLiquidity buys the target asset on chain. A repeated call for a key
// that already broadcast returns the existing order. A key whose previous
// broadcast has an unknown outcome fails with ErrIndeterminateBroadcast.
func (s *LiquidityService) PurchaseLiquidity(ctx context.Context, req LiquidityRequest) (*models.LiquidityOrder, error) {
	if err := req.validate(); err != nil {
		return nil, err
	}
	return s.purchase(ctx, req, uuid.NullUUID{})
}

func (s *LiquidityService) purchase(ctx context.Context, req LiquidityRequest, parentID uuid.NullUUID) (*models.LiquidityOrder, error) {
	variant, err := s.classifier.PurchaseVariant(req.TargetAsset)
	if err != nil {
		return nil, err
	}
	purchaser, err := s.purchases.Get(variant)
	if err != nil {
		return nil, err
	}
	net, err := s.networks.Get(req.TargetAsset.Blockchain)
	if err != nil {
		return nil, err
	}

	order, err := s.openOrder(ctx, req, domain.LiquidityOrderPurchase, parentID)
	if err != nil || order.TxID != "" || order.IsReady {
		return order, err
	}

	if !order.EstimatedTargetAmount.Valid {
		estimate, err := s.estimateTarget(ctx, net, req.ReferenceAsset.Name, req.TargetAsset.Name, req.ReferenceAmount)
		if err != nil {
			return nil, err
		}
		order.EstimatedTargetAmount = decimal.NewNullDecimal(estimate)
		if err := s.store.UpdateLiquidityOrder(ctx, order); err != nil {
			return nil, fmt.Errorf("persist estimate %s: %w", order.Key(), err)
		}
	}

	if err := purchaser.purchase(ctx, net, order, req); err != nil {
		observability.IncrementLiquidityOrder(string(domain.LiquidityOrderPurchase), failureResult(err))
		return nil, err
	}
	observability.IncrementLiquidityOrder(string(domain.LiquidityOrderPurchase), "booked")
	return order, nil
}

// SellLiquidity swaps a held asset into the target asset.
func (s *LiquidityService) SellLiquidity(ctx context.Context, req SellRequest) (*models.LiquidityOrder, error) {
	if err := req.validate(); err != nil {
		return nil, err
	}
	variant, err := s.classifier.SellVariant(req.Asset)
	if err != nil {
		return nil, err
	}
	seller, err := s.sales.Get(variant)
	if err != nil {
		return nil, err
	}
	net, err := s.networks.Get(req.Asset.Blockchain)
	if err != nil {
		return nil, err
	}

	base := LiquidityRequest{
		Context:         req.Context,
		CorrelationID:   req.CorrelationID,
		ReferenceAsset:  req.Asset,
		ReferenceAmount: req.Amount,
		TargetAsset:     req.TargetAsset,
		MaxSlippage:     req.MaxSlippage,
	}
	order, err := s.openOrder(ctx, base, domain.LiquidityOrderSale, uuid.NullUUID{})
	if err != nil || order.TxID != "" || order.IsReady {
		return order, err
	}

	if err := seller.ensureAvailable(ctx, net, req.Asset.Name, req.Amount); err != nil {
		observability.IncrementLiquidityOrder(string(domain.LiquidityOrderSale), "insufficient")
		return nil, fmt.Errorf("sell %s: %w", order.Key(), err)
	}
	estimate, err := net.Client.TestSwap(ctx, req.Asset.Name, req.TargetAsset.Name, req.Amount)
	if err != nil {
		return nil, fmt.Errorf("simulate sale %s: %w", order.Key(), err)
	}
	order.EstimatedTargetAmount = decimal.NewNullDecimal(estimate)

	if err := s.broadcastSwap(ctx, net, order, req.Asset.Name, req.Amount, req.TargetAsset.Name, req.MaxSlippage); err != nil {
		observability.IncrementLiquidityOrder(string(domain.LiquidityOrderSale), failureResult(err))
		return nil, err
	}
	observability.IncrementLiquidityOrder(string(domain.LiquidityOrderSale), "booked")
	return order, nil
}

// FetchLiquidityTransactionResult returns the realized amount of an order.
func (s *LiquidityService) FetchLiquidityTransactionResult(ctx context.Context, orderContext domain.OrderContext, correlationID string) (*LiquidityTransactionResult, error) {
	order, err := s.store.GetLiquidityOrder(ctx, orderContext, correlationID)
	if err != nil {
		return nil, err
	}
	if !order.TargetAmount.Valid {
		return nil, fmt.Errorf("order %s: %w", order.Key(), models.ErrLiquidityOrderNotReady)
	}
	return &LiquidityTransactionResult{TargetAmount: order.TargetAmount.Decimal, TxID: order.TxID}, nil
}

func (s *LiquidityService) CheckOrderReady(ctx context.Context, orderContext domain.OrderContext, correlationID string) (bool, error) {
	order, err := s.store.GetLiquidityOrder(ctx, orderContext, correlationID)
	if err != nil {
		return false, err
	}
	return order.IsReady, nil
}

func (s *LiquidityService) CheckOrderCompletion(ctx context.Context, orderContext domain.OrderContext, correlationID string) (*LiquidityCompletion, error) {
	order, err := s.store.GetLiquidityOrder(ctx, orderContext, correlationID)
	if err != nil {
		return nil, err
	}
	return &LiquidityCompletion{
		IsComplete: order.IsComplete,
		FeeAsset:   order.FeeAsset,
		FeeAmount:  order.FeeAmount.Decimal,
	}, nil
}

// CompleteOrders marks the ready orders of a key as consumed and returns how
// many changed.
func (s *LiquidityService) CompleteOrders(ctx context.Context, orderContext domain.OrderContext, correlationID string) (int64, error) {
	n, err := s.store.CompleteLiquidityOrders(ctx, orderContext, correlationID)
	if err != nil {
		return 0, fmt.Errorf("complete orders %s/%s: %w", orderContext, correlationID, err)
	}
	return n, nil
}

// GetPendingOrdersCount counts orders for the asset that are not complete yet.
func (s *LiquidityService) GetPendingOrdersCount(ctx context.Context, asset models.Asset) (int64, error) {
	return s.store.CountPendingLiquidityOrders(ctx, asset.Blockchain, asset.Name)
}

// ProcessReadyOrders finishes pool-pair purchases whose legs are ready and
// settles every broadcast order whose transaction is confirmed.
func (s *LiquidityService) ProcessReadyOrders(ctx context.Context) error {
	if err := s.addPendingPoolLiquidity(ctx); err != nil {
		return err
	}

	orders, err := s.store.ListUnreadyLiquidityOrders(ctx, readyOrderBatchSize)
	if err != nil {
		return fmt.Errorf("list unready liquidity orders: %w", err)
	}
	for i := range orders {
		if err := ctx.Err(); err != nil {
			return err
		}
		order := &orders[i]
		if err := s.settleOrder(ctx, order); err != nil {
			zap.L().Error("settle liquidity order failed",
				zap.Error(err),
				zap.String("context", string(order.Context)),
				zap.String("correlation_id", order.CorrelationID),
				zap.String("tx_id", order.TxID),
			)
		}
	}
	return nil
}

func (s *LiquidityService) settleOrder(ctx context.Context, order *models.LiquidityOrder) error {
	net, err := s.networks.Get(order.Chain)
	if err != nil {
		return err
	}
	settler, err := s.settlerFor(ctx, order)
	if err != nil {
		return err
	}
	settled, err := settler.settle(ctx, net, order)
	if err != nil || !settled {
		return err
	}
	if err := s.store.UpdateLiquidityOrder(ctx, order); err != nil {
		return fmt.Errorf("persist settlement %s: %w", order.Key(), err)
	}
	observability.IncrementLiquidityOrder(string(order.Type), "settled")
	zap.L().Info("liquidity order ready",
		zap.String("context", string(order.Context)),
		zap.String("correlation_id", order.CorrelationID),
		zap.String("target_amount", order.TargetAmount.Decimal.String()),
	)
	return nil
}

func (s *LiquidityService) settlerFor(ctx context.Context, order *models.LiquidityOrder) (orderSettler, error) {
	if order.Type == domain.LiquidityOrderSale {
		asset, err := s.assets.Lookup(ctx, order.Chain, order.SwapAsset)
		if err != nil {
			return nil, err
		}
		variant, err := s.classifier.SellVariant(asset)
		if err != nil {
			return nil, err
		}
		return s.sales.Get(variant)
	}
	asset, err := s.assets.Lookup(ctx, order.Chain, order.TargetAsset)
	if err != nil {
		return nil, err
	}
	variant, err := s.classifier.PurchaseVariant(asset)
	if err != nil {
		return nil, err
	}
	return s.purchases.Get(variant)
}

// openOrder returns the order stored under the request key, creating it when
// absent. An order whose last broadcast outcome is unknown is returned with
// ErrIndeterminateBroadcast so it is never broadcast twice.
func (s *LiquidityService) openOrder(ctx context.Context, req LiquidityRequest, orderType domain.LiquidityOrderType, parentID uuid.NullUUID) (*models.LiquidityOrder, error) {
	order, err := s.findOrder(ctx, req.Context, req.CorrelationID)
	if err != nil {
		return nil, err
	}
	if order == nil {
		var created bool
		order, created, err = s.store.CreateLiquidityOrder(ctx, newLiquidityOrder(req, orderType, parentID))
		if err != nil {
			return nil, fmt.Errorf("persist liquidity order %s/%s: %w", req.Context, req.CorrelationID, err)
		}
		if created {
			return order, nil
		}
	}
	if order.HasIndeterminateSwap() {
		return order, fmt.Errorf("order %s swap of %s %s: %w", order.Key(), order.SwapAmount.Decimal, order.SwapAsset, models.ErrIndeterminateBroadcast)
	}
	return order, nil
}

func (s *LiquidityService) findOrder(ctx context.Context, orderContext domain.OrderContext, correlationID string) (*models.LiquidityOrder, error) {
	order, err := s.store.GetLiquidityOrder(ctx, orderContext, correlationID)
	if errors.Is(err, models.ErrLiquidityOrderNotFound) {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}
	return order, nil
}

// availableAmount is the liquidity address balance minus what is already
// promised to callers, inflated to absorb price movement. It may be negative.
func (s *LiquidityService) availableAmount(ctx context.Context, net chain.Network, asset string) (decimal.Decimal, error) {
	balance, err := net.Client.GetBalance(ctx, net.LiquidityAddress, asset)
	if err != nil {
		return decimal.Zero, fmt.Errorf("get balance of %s: %w", asset, err)
	}
	pending, err := s.store.SumPendingLiquidityAmount(ctx, net.Blockchain, asset)
	if err != nil {
		return decimal.Zero, fmt.Errorf("sum pending %s: %w", asset, err)
	}
	return balance.Sub(pending.Mul(domain.PendingInflation)), nil
}

func (s *LiquidityService) estimateTarget(ctx context.Context, net chain.Network, reference, target string, amount decimal.Decimal) (decimal.Decimal, error) {
	if reference == target {
		return amount, nil
	}
	estimate, err := net.Client.TestSwap(ctx, reference, target, amount)
	if err != nil {
		return decimal.Zero, fmt.Errorf("simulate %s -> %s: %w", reference, target, err)
	}
	return estimate, nil
}

// maxPrice returns the price bound passed to swaps when slippage protection
// is enabled.
func (s *LiquidityService) maxPrice(ctx context.Context, net chain.Network, source, target string, maxSlippage decimal.Decimal) (decimal.NullDecimal, error) {
	if !s.settings.IsEnabled(ctx, domain.SettingSlippageProtection) {
		return decimal.NullDecimal{}, nil
	}
	price, err := net.Client.GetReferencePrice(ctx, source, target)
	if err != nil {
		return decimal.NullDecimal{}, fmt.Errorf("reference price %s/%s: %w", source, target, err)
	}
	return decimal.NewNullDecimal(domain.MaxPrice(price, maxSlippage)), nil
}

// errSwapRejected wraps a definite broadcast failure. The order's swap intent
// has been cleared and another source may be tried.
type errSwapRejected struct{ err error }

func (e errSwapRejected) Error() string { return e.err.Error() }
func (e errSwapRejected) Unwrap() error { return e.err }

// broadcastSwap persists the swap intent, broadcasts it and records the tx id.
func (s *LiquidityService) broadcastSwap(ctx context.Context, net chain.Network, order *models.LiquidityOrder, source string, amount decimal.Decimal, target string, maxSlippage decimal.Decimal) error {
	maxPrice, err := s.maxPrice(ctx, net, source, target, maxSlippage)
	if err != nil {
		return err
	}

	order.RecordSwapIntent(source, amount)
	if err := s.store.UpdateLiquidityOrder(ctx, order); err != nil {
		return fmt.Errorf("persist swap intent %s: %w", order.Key(), err)
	}

	txID, err := net.Client.ExecuteSwap(ctx, chain.SwapRequest{
		Address:      net.LiquidityAddress,
		SourceAsset:  source,
		SourceAmount: amount,
		TargetAsset:  target,
		MaxPrice:     maxPrice,
	})
	if err != nil {
		if chain.IsIndeterminate(err) {
			s.notifier.SendErrorMail(ctx, "Liquidity swap outcome unknown",
				fmt.Sprintf("order %s: swap of %s %s into %s", order.Key(), amount, source, target),
				err.Error(),
			)
			return fmt.Errorf("swap %s: %w: %v", order.Key(), models.ErrIndeterminateBroadcast, err)
		}
		order.ClearSwapIntent()
		if clearErr := s.store.UpdateLiquidityOrder(ctx, order); clearErr != nil {
			return fmt.Errorf("clear swap intent %s: %w", order.Key(), clearErr)
		}
		return errSwapRejected{err: fmt.Errorf("swap %s -> %s: %w", source, target, err)}
	}

	order.TxID = txID
	if err := s.store.UpdateLiquidityOrder(ctx, order); err != nil {
		s.notifier.SendErrorMail(ctx, "Liquidity swap broadcast but not recorded",
			fmt.Sprintf("order %s: tx %s", order.Key(), txID),
			err.Error(),
		)
		return fmt.Errorf("persist swap tx %s for %s: %w", txID, order.Key(), err)
	}
	zap.L().Info("liquidity swap broadcast",
		zap.String("context", string(order.Context)),
		zap.String("correlation_id", order.CorrelationID),
		zap.String("source", source),
		zap.String("amount", amount.String()),
		zap.String("tx_id", txID),
	)
	return nil
}

func newLiquidityOrder(req LiquidityRequest, orderType domain.LiquidityOrderType, parentID uuid.NullUUID) *models.LiquidityOrder {
	return &models.LiquidityOrder{
		ID:              uuid.New(),
		Context:         req.Context,
		CorrelationID:   req.CorrelationID,
		Type:            orderType,
		Chain:           req.TargetAsset.Blockchain,
		ParentID:        parentID,
		ReferenceAsset:  req.ReferenceAsset.Name,
		ReferenceAmount: req.ReferenceAmount,
		TargetAsset:     req.TargetAsset.Name,
		MaxSlippage:     req.MaxSlippage,
	}
}

func failureResult(err error) string {
	switch {
	case errors.Is(err, models.ErrNotEnoughLiquidity):
		return "insufficient"
	case errors.Is(err, models.ErrIndeterminateBroadcast):
		return "indeterminate"
	default:
		return "error"
	}
}
