package service

import (
	"context"
	"errors"
	"fmt"
	"sort"
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
	"github.com/sourcegraph/conc/pool"
	"go.uber.org/zap"
)

// PayoutService prepares, batches, dispatches and confirms payout orders.
type PayoutService struct {
	store      PayoutOrderStore
	networks   *chain.Registry
	assets     catalog.Resolver
	settings   settings.Reader
	classifier *strategy.Classifier
	notifier   notification.Notifier
	opts       PayoutOptions

	prepares *strategy.Registry[strategy.PrepareVariant, prepareStrategy]
	payouts  *strategy.Registry[strategy.PayoutVariant, payoutStrategy]
}

// PayoutOptions tunes a PayoutService.
type PayoutOptions struct {
	// BatchSize bounds how many orders of each status one pass loads.
	BatchSize int32
	// RollbackOnFailure rolls designated orders back after a broadcast failure
	// that is neither a timeout nor a missing transaction id.
	RollbackOnFailure bool
	// CompletionWorkers bounds concurrent transaction lookups.
	CompletionWorkers int
}

const (
	defaultPayoutBatchSize   = 500
	defaultCompletionWorkers = 8
)

func NewPayoutService(
	store PayoutOrderStore,
	networks *chain.Registry,
	assets catalog.Resolver,
	settingsReader settings.Reader,
	classifier *strategy.Classifier,
	strategies config.Strategies,
	notifier notification.Notifier,
	opts PayoutOptions,
) *PayoutService {
	if opts.BatchSize <= 0 {
		opts.BatchSize = defaultPayoutBatchSize
	}
	if opts.CompletionWorkers <= 0 {
		opts.CompletionWorkers = defaultCompletionWorkers
	}
	s := &PayoutService{
		store:      store,
		networks:   networks,
		assets:     assets,
		settings:   settingsReader,
		classifier: classifier,
		notifier:   notifier,
		opts:       opts,
		prepares:   strategy.NewRegistry[strategy.PrepareVariant, prepareStrategy](),
		payouts:    strategy.NewRegistry[strategy.PayoutVariant, payoutStrategy](),
	}

	s.prepares.Register(strategy.PrepareCoin, transferPreparation{})
	s.prepares.Register(strategy.PrepareToken, transferPreparation{})

	s.payouts.Register(strategy.PayoutCoin, newCoinPayout(s, strategies.Payout.CoinGroupSize))
	s.payouts.Register(strategy.PayoutToken, newTokenPayout(s, strategies.Payout.TokenGroupSize, strategies.Payout.MinUtxo.Decimal))
	return s
}

// PayoutRequest asks for Amount of Asset to be sent to Destination.
type PayoutRequest struct {
	Context       domain.OrderContext
	CorrelationID string
	Asset         models.Asset
	Amount        decimal.Decimal
	Destination   string
}

func (r PayoutRequest) validate() error {
	if !r.Context.Valid() {
		return fmt.Errorf("%w: unknown context %q", models.ErrInvalidRequest, r.Context)
	}
	if strings.TrimSpace(r.CorrelationID) == "" {
		return fmt.Errorf("%w: correlation id is required", models.ErrInvalidRequest)
	}
	if !r.Amount.IsPositive() {
		return fmt.Errorf("%w: amount must be positive", models.ErrInvalidRequest)
	}
	if strings.TrimSpace(r.Destination) == "" {
		return fmt.Errorf("%w: destination address is required", models.ErrInvalidRequest)
	}
	return nil
}

// PayoutCompletion reports whether a payout is confirmed and its share of the
// payout transaction fee.
type PayoutCompletion struct {
	IsComplete bool            `json:"is_complete"`
	FeeAsset   string          `json:"fee_asset,omitempty"`
	FeeAmount  decimal.Decimal `json:"fee_amount"`
}

// RequestPayout creates a CREATED payout order. Repeating a request returns
// the stored order unchanged.
func (s *PayoutService) RequestPayout(ctx context.Context, req PayoutRequest) (*models.PayoutOrder, error) {
	if err := req.validate(); err != nil {
		return nil, err
	}
	if _, err := s.classifier.PayoutVariant(req.Asset); err != nil {
		return nil, err
	}

	order, created, err := s.store.CreatePayoutOrder(ctx, &models.PayoutOrder{
		ID:                 uuid.New(),
		Context:            req.Context,
		CorrelationID:      req.CorrelationID,
		Chain:              req.Asset.Blockchain,
		Asset:              req.Asset.Name,
		Amount:             domain.Round8(req.Amount),
		DestinationAddress: req.Destination,
		Status:             domain.PayoutStatusCreated,
	})
	if err != nil {
		return nil, fmt.Errorf("persist payout order %s/%s: %w", req.Context, req.CorrelationID, err)
	}
	if created {
		observability.AddPayoutTransitions(string(domain.PayoutStatusCreated), 1)
		zap.L().Info("payout requested",
			zap.String("context", string(req.Context)),
			zap.String("correlation_id", req.CorrelationID),
			zap.String("asset", req.Asset.Name),
			zap.String("amount", order.Amount.String()),
		)
	}
	return order, nil
}

func (s *PayoutService) GetPayout(ctx context.Context, orderContext domain.OrderContext, correlationID string) (*models.PayoutOrder, error) {
	return s.store.GetPayoutOrder(ctx, orderContext, correlationID)
}

func (s *PayoutService) CheckOrderCompletion(ctx context.Context, orderContext domain.OrderContext, correlationID string) (*PayoutCompletion, error) {
	order, err := s.store.GetPayoutOrder(ctx, orderContext, correlationID)
	if err != nil {
		return nil, err
	}
	return &PayoutCompletion{
		IsComplete: order.Status == domain.PayoutStatusConfirmed,
		FeeAsset:   order.PayoutFeeAsset,
		FeeAmount:  order.PayoutFeeAmount.Decimal,
	}, nil
}

// ProcessPayouts runs one settlement pass: preparation, preparation
// completion, dispatch and payout completion. A dispatch error whose outcome
// is unknown is returned after the completion stage has run.
func (s *PayoutService) ProcessPayouts(ctx context.Context) error {
	if err := s.prepareCreated(ctx); err != nil {
		return err
	}
	if err := s.checkPreparations(ctx); err != nil {
		return err
	}

	ready, err := s.store.ListPayoutOrdersByStatus(ctx, domain.PayoutStatusPreparationConfirmed, s.opts.BatchSize)
	if err != nil {
		return fmt.Errorf("list prepared payouts: %w", err)
	}
	dispatchErr := s.DoPayout(ctx, ready)

	pending, err := s.store.ListPayoutOrdersByStatus(ctx, domain.PayoutStatusPending, s.opts.BatchSize)
	if err != nil {
		return errors.Join(dispatchErr, fmt.Errorf("list pending payouts: %w", err))
	}
	return errors.Join(dispatchErr, s.CheckPayoutCompletionData(ctx, pending))
}

// DoPayout dispatches orders grouped by context and then by asset.
func (s *PayoutService) DoPayout(ctx context.Context, orders []models.PayoutOrder) error {
	for _, set := range groupPayoutOrders(orders) {
		if err := ctx.Err(); err != nil {
			return err
		}
		if err := s.doPayoutSet(ctx, set); err != nil {
			return err
		}
	}
	return nil
}

// CheckPayoutCompletionData confirms PAYOUT_PENDING orders whose payout
// transaction is confirmed and records their share of its fee.
func (s *PayoutService) CheckPayoutCompletionData(ctx context.Context, orders []models.PayoutOrder) error {
	for _, set := range groupPayoutOrders(orders) {
		if err := ctx.Err(); err != nil {
			return err
		}
		net, payer, err := s.payoutStrategyFor(ctx, set.chain, set.asset)
		if err != nil {
			zap.L().Error("resolve payout strategy failed", zap.Error(err), zap.String("asset", set.asset))
			continue
		}
		feeAsset, err := payer.feeAsset(ctx, net)
		if err != nil {
			zap.L().Error("resolve payout fee asset failed", zap.Error(err), zap.String("asset", set.asset))
			continue
		}
		s.confirmPayouts(ctx, net, feeAsset, set.orders)
	}
	return nil
}

type payoutSet struct {
	context domain.OrderContext
	chain   domain.Blockchain
	asset   string
	orders  []models.PayoutOrder
}

// groupPayoutOrders splits orders by context, then by chain and asset, in a
// stable order.
func groupPayoutOrders(orders []models.PayoutOrder) []payoutSet {
	index := make(map[[3]string]int)
	var sets []payoutSet
	for _, order := range orders {
		k := [3]string{string(order.Context), string(order.Chain), order.Asset}
		i, ok := index[k]
		if !ok {
			i = len(sets)
			index[k] = i
			sets = append(sets, payoutSet{context: order.Context, chain: order.Chain, asset: order.Asset})
		}
		sets[i].orders = append(sets[i].orders, order)
	}
	sort.SliceStable(sets, func(i, j int) bool {
		if sets[i].context != sets[j].context {
			return sets[i].context < sets[j].context
		}
		if sets[i].chain != sets[j].chain {
			return sets[i].chain < sets[j].chain
		}
		return sets[i].asset < sets[j].asset
	})
	return sets
}

func (s *PayoutService) payoutStrategyFor(ctx context.Context, blockchain domain.Blockchain, assetName string) (chain.Network, payoutStrategy, error) {
	net, err := s.networks.Get(blockchain)
	if err != nil {
		return chain.Network{}, nil, err
	}
	asset, err := s.assets.Lookup(ctx, blockchain, assetName)
	if err != nil {
		return chain.Network{}, nil, err
	}
	variant, err := s.classifier.PayoutVariant(asset)
	if err != nil {
		return chain.Network{}, nil, err
	}
	payer, err := s.payouts.Get(variant)
	if err != nil {
		return chain.Network{}, nil, err
	}
	return net, payer, nil
}

func (s *PayoutService) doPayoutSet(ctx context.Context, set payoutSet) error {
	net, payer, err := s.payoutStrategyFor(ctx, set.chain, set.asset)
	if err != nil {
		zap.L().Error("resolve payout strategy failed", zap.Error(err), zap.String("asset", set.asset))
		return nil
	}

	eligible := set.orders[:0:0]
	for _, order := range set.orders {
		if canTransitionPayout(order.Status, domain.PayoutStatusDesignated) {
			eligible = append(eligible, order)
		}
	}
	groups, err := createPayoutGroups(eligible, payer.groupSize())
	if err != nil {
		return fmt.Errorf("group %s payouts of %s: %w", set.context, set.asset, err)
	}
	for _, group := range groups {
		if err := s.dispatchGroup(ctx, net, payer, set.asset, group); err != nil {
			return err
		}
	}
	return nil
}

// dispatchGroup pays one group with a single transaction. Designation is
// persisted before the broadcast and is only undone when the broadcast
// definitely did not happen.
func (s *PayoutService) dispatchGroup(ctx context.Context, net chain.Network, payer payoutStrategy, asset string, group []models.PayoutOrder) error {
	outputs := aggregatePayout(group)

	previous := make(map[uuid.UUID]domain.PayoutStatus, len(group))
	updates := make([]models.PayoutStatusUpdate, 0, len(group))
	for _, order := range group {
		previous[order.ID] = order.Status
		updates = append(updates, models.PayoutStatusUpdate{ID: order.ID, From: order.Status, Status: domain.PayoutStatusDesignated})
	}
	if err := s.store.UpdatePayoutStatuses(ctx, updates); err != nil {
		zap.L().Error("designate payout group failed", zap.Error(err), zap.String("asset", asset), zap.Int("orders", len(group)))
		observability.IncrementPayoutDispatch("designation_failed")
		return nil
	}
	for i := range group {
		group[i].Status = domain.PayoutStatusDesignated
	}
	observability.AddPayoutTransitions(string(domain.PayoutStatusDesignated), len(group))

	payer.beforeDispatch(ctx, net, outputs)

	txID, err := net.Client.TransferMany(ctx, net.PayoutAddress, asset, outputs)
	if err != nil {
		return s.handleDispatchFailure(ctx, asset, group, previous, err)
	}
	observability.IncrementPayoutDispatch("broadcast")

	for i := range group {
		order := &group[i]
		order.PayoutTxID = txID
		if err := transitionPayout(order, domain.PayoutStatusPending); err != nil {
			s.notifyUnrecordedPayout(ctx, order, txID, err)
			continue
		}
		if err := s.store.UpdatePayoutOrder(ctx, order); err != nil {
			s.notifyUnrecordedPayout(ctx, order, txID, err)
			continue
		}
	}
	observability.AddPayoutTransitions(string(domain.PayoutStatusPending), len(group))
	zap.L().Info("payout group broadcast",
		zap.String("asset", asset),
		zap.String("tx_id", txID),
		zap.Int("orders", len(group)),
		zap.Int("addresses", len(outputs)),
	)
	return nil
}

func (s *PayoutService) handleDispatchFailure(ctx context.Context, asset string, group []models.PayoutOrder, previous map[uuid.UUID]domain.PayoutStatus, err error) error {
	switch {
	case errors.Is(err, chain.ErrBroadcastTimeout):
		observability.IncrementPayoutDispatch("timeout")
		return fmt.Errorf("payout of %s to %d orders: %w", asset, len(group), err)

	case errors.Is(err, chain.ErrNoTransactionID):
		if s.settings.IsEnabled(ctx, domain.SettingRetryPayoutWithoutTxID) {
			observability.IncrementPayoutDispatch("no_txid")
			return fmt.Errorf("payout of %s to %d orders: %w", asset, len(group), err)
		}
		observability.IncrementPayoutDispatch("rolled_back")
		s.rollbackDesignation(ctx, group, previous)
		return nil

	default:
		observability.IncrementPayoutDispatch("failed")
		zap.L().Error("payout broadcast failed", zap.Error(err), zap.String("asset", asset), zap.Int("orders", len(group)))
		s.notifier.SendErrorMail(ctx, "Payout failed",
			fmt.Sprintf("payout of %s to orders %s", asset, payoutKeys(group)),
			err.Error(),
		)
		if s.opts.RollbackOnFailure {
			s.rollbackDesignation(ctx, group, previous)
		}
		return nil
	}
}

// rollbackDesignation returns every order of the group to its status before
// designation.
func (s *PayoutService) rollbackDesignation(ctx context.Context, group []models.PayoutOrder, previous map[uuid.UUID]domain.PayoutStatus) {
	updates := make([]models.PayoutStatusUpdate, 0, len(group))
	for _, order := range group {
		prev := previous[order.ID]
		if !canTransitionPayout(order.Status, prev) {
			zap.L().Error("payout rollback not allowed", zap.String("order", order.Key()), zap.String("to", string(prev)))
			continue
		}
		updates = append(updates, models.PayoutStatusUpdate{ID: order.ID, From: order.Status, Status: prev})
	}
	if err := s.store.UpdatePayoutStatuses(context.WithoutCancel(ctx), updates); err != nil {
		zap.L().Error("payout rollback failed", zap.Error(err), zap.Int("orders", len(updates)))
		s.notifier.SendErrorMail(ctx, "Payout rollback failed", fmt.Sprintf("orders %s", payoutKeys(group)), err.Error())
		return
	}
	for i := range group {
		group[i].Status = previous[group[i].ID]
	}
	zap.L().Warn("payout designation rolled back", zap.Int("orders", len(updates)))
}

func (s *PayoutService) notifyUnrecordedPayout(ctx context.Context, order *models.PayoutOrder, txID string, err error) {
	zap.L().Error("payout broadcast but not recorded", zap.Error(err), zap.String("order", order.Key()), zap.String("tx_id", txID))
	s.notifier.SendErrorMail(ctx, "Payout broadcast but not recorded",
		fmt.Sprintf("order %s: tx %s", order.Key(), txID),
		err.Error(),
	)
}

// confirmPayouts looks up each distinct payout transaction concurrently and
// confirms the orders it paid.
func (s *PayoutService) confirmPayouts(ctx context.Context, net chain.Network, feeAsset string, orders []models.PayoutOrder) {
	byTx := make(map[string][]models.PayoutOrder)
	var txIDs []string
	for _, order := range orders {
		if order.PayoutTxID == "" {
			continue
		}
		if _, ok := byTx[order.PayoutTxID]; !ok {
			txIDs = append(txIDs, order.PayoutTxID)
		}
		byTx[order.PayoutTxID] = append(byTx[order.PayoutTxID], order)
	}

	p := pool.New().WithMaxGoroutines(s.opts.CompletionWorkers)
	for _, txID := range txIDs {
		txID := txID
		group := byTx[txID]
		p.Go(func() {
			if err := s.confirmPayoutTx(ctx, net, feeAsset, txID, group); err != nil {
				zap.L().Error("check payout completion failed", zap.Error(err), zap.String("tx_id", txID))
			}
		})
	}
	p.Wait()
}

func (s *PayoutService) confirmPayoutTx(ctx context.Context, net chain.Network, feeAsset, txID string, group []models.PayoutOrder) error {
	tx, err := net.Client.GetTransaction(ctx, txID)
	if err != nil {
		if errors.Is(err, chain.ErrTransactionNotFound) {
			return nil
		}
		return err
	}
	if !tx.Confirmed {
		return nil
	}

	total := decimal.Zero
	for _, order := range group {
		total = total.Add(order.Amount)
	}
	confirmed := 0
	for i := range group {
		order := &group[i]
		if err := transitionPayout(order, domain.PayoutStatusConfirmed); err != nil {
			return err
		}
		order.PayoutFeeAsset = feeAsset
		order.PayoutFeeAmount = decimal.NewNullDecimal(domain.Prorate(tx.Fee, order.Amount, total))
		if err := s.store.UpdatePayoutOrder(ctx, order); err != nil {
			zap.L().Error("persist payout confirmation failed", zap.Error(err), zap.String("order", order.Key()))
			continue
		}
		confirmed++
	}
	observability.AddPayoutTransitions(string(domain.PayoutStatusConfirmed), confirmed)
	return nil
}

func payoutKeys(group []models.PayoutOrder) string {
	keys := make([]string, 0, len(group))
	for _, order := range group {
		keys = append(keys, order.Key())
	}
	return strings.Join(keys, ", ")
}
