package service

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"sync"

	"github.com/ayo6706/liquidity-settlement/internal/chain"
	"github.com/ayo6706/liquidity-settlement/internal/domain"
	"github.com/ayo6706/liquidity-settlement/internal/models"
	"github.com/google/uuid"
	"github.com/shopspring/decimal"
	"go.uber.org/zap"
)

type liquidityCheck interface {
	check(ctx context.Context, net chain.Network, req LiquidityRequest) (*CheckLiquidityResult, error)
}

type orderSettler interface {
	// settle records the confirmed outcome of the order's transaction on the
	// order. It reports false while the transaction is unconfirmed.
	settle(ctx context.Context, net chain.Network, order *models.LiquidityOrder) (bool, error)
}

type purchaseStrategy interface {
	orderSettler
	purchase(ctx context.Context, net chain.Network, order *models.LiquidityOrder, req LiquidityRequest) error
}

type sellStrategy interface {
	orderSettler
	ensureAvailable(ctx context.Context, net chain.Network, asset string, amount decimal.Decimal) error
}

// chainSettlement reads the realized target amount and the fee from the
// order's transaction.
type chainSettlement struct{}

func (chainSettlement) settle(ctx context.Context, net chain.Network, order *models.LiquidityOrder) (bool, error) {
	tx, err := net.Client.GetTransaction(ctx, order.TxID)
	if err != nil {
		if errors.Is(err, chain.ErrTransactionNotFound) {
			return false, nil
		}
		return false, fmt.Errorf("get transaction %s: %w", order.TxID, err)
	}
	if !tx.Confirmed {
		return false, nil
	}
	amount, ok := tx.Amounts[order.TargetAsset]
	if !ok {
		return false, fmt.Errorf("transaction %s carries no %s amount", order.TxID, order.TargetAsset)
	}
	order.Settle(amount, tx.Fee, net.FeeAsset)
	return true, nil
}

type defaultCheck struct {
	svc *LiquidityService
}

func (c *defaultCheck) check(ctx context.Context, net chain.Network, req LiquidityRequest) (*CheckLiquidityResult, error) {
	s := c.svc
	target := req.TargetAsset.Name

	targetAmount, err := s.estimateTarget(ctx, net, req.ReferenceAsset.Name, target, req.ReferenceAmount)
	if err != nil {
		return nil, err
	}
	available, err := s.availableAmount(ctx, net, target)
	if err != nil {
		return nil, err
	}
	maxPurchasable, err := s.maxPurchasable(ctx, net, req.TargetAsset)
	if err != nil {
		return nil, err
	}

	result := &CheckLiquidityResult{
		Asset:                target,
		TargetAmount:         targetAmount,
		AvailableAmount:      available,
		MaxPurchasableAmount: maxPurchasable,
	}
	if req.ReferenceAsset.Name != target && s.settings.IsEnabled(ctx, domain.SettingSlippageProtection) {
		price, err := net.Client.GetReferencePrice(ctx, req.ReferenceAsset.Name, target)
		if err != nil {
			return nil, fmt.Errorf("reference price %s/%s: %w", req.ReferenceAsset.Name, target, err)
		}
		result.IsSlippageDetected = domain.IsSlippageDetected(price, req.MaxSlippage, req.ReferenceAmount, targetAmount)
	}
	return result, nil
}

// maxPurchasable is the most of asset any single swap source can buy with
// its available liquidity.
func (s *LiquidityService) maxPurchasable(ctx context.Context, net chain.Network, asset models.Asset) (decimal.Decimal, error) {
	variant, err := s.classifier.PurchaseVariant(asset)
	if err != nil {
		return decimal.Zero, err
	}
	purchaser, err := s.purchases.Get(variant)
	if err != nil {
		return decimal.Zero, err
	}
	swap, ok := purchaser.(*swapPurchase)
	if !ok {
		return decimal.Zero, nil
	}
	candidates, err := swap.candidates(ctx, net.Blockchain)
	if err != nil {
		return decimal.Zero, err
	}

	best := decimal.Zero
	for _, candidate := range candidates {
		if candidate.Name == asset.Name {
			continue
		}
		available, err := s.availableAmount(ctx, net, candidate.Name)
		if err != nil {
			return decimal.Zero, err
		}
		if !available.IsPositive() {
			continue
		}
		amount, err := net.Client.TestSwap(ctx, candidate.Name, asset.Name, available)
		if err != nil {
			return decimal.Zero, fmt.Errorf("simulate %s -> %s: %w", candidate.Name, asset.Name, err)
		}
		if amount.GreaterThan(best) {
			best = amount
		}
	}
	return best, nil
}

type poolPairCheck struct {
	svc *LiquidityService
}

func (c *poolPairCheck) check(ctx context.Context, net chain.Network, req LiquidityRequest) (*CheckLiquidityResult, error) {
	s := c.svc
	pair := req.TargetAsset.Name

	targetAmount, err := s.estimateTarget(ctx, net, req.ReferenceAsset.Name, pair, req.ReferenceAmount)
	if err != nil {
		return nil, err
	}
	available, err := s.availableAmount(ctx, net, pair)
	if err != nil {
		return nil, err
	}

	result := &CheckLiquidityResult{
		Asset:                pair,
		TargetAmount:         targetAmount,
		AvailableAmount:      available,
		MaxPurchasableAmount: decimal.Zero,
	}
	if !s.settings.IsEnabled(ctx, domain.SettingPurchasePoolPair) {
		return result, nil
	}

	legs, err := s.pairLegs(ctx, req.TargetAsset)
	if err != nil {
		return nil, err
	}
	half := domain.Round8(req.ReferenceAmount.Div(decimal.NewFromInt(2)))
	for _, leg := range legs {
		legAmount, err := s.estimateTarget(ctx, net, req.ReferenceAsset.Name, leg.Name, half)
		if err != nil {
			return nil, err
		}
		legAvailable, err := s.availableAmount(ctx, net, leg.Name)
		if err != nil {
			return nil, err
		}
		legPurchasable, err := s.maxPurchasable(ctx, net, leg)
		if err != nil {
			return nil, err
		}
		if legAvailable.Add(legPurchasable).LessThan(legAmount) {
			return result, nil
		}
	}
	result.MaxPurchasableAmount = targetAmount
	return result, nil
}

func (s *LiquidityService) pairLegs(ctx context.Context, pair models.Asset) ([2]models.Asset, error) {
	var legs [2]models.Asset
	a, b, err := pair.PairLegs()
	if err != nil {
		return legs, fmt.Errorf("%w: %v", models.ErrInvalidRequest, err)
	}
	for i, name := range []string{a, b} {
		leg, err := s.assets.Lookup(ctx, pair.Blockchain, name)
		if err != nil {
			return legs, fmt.Errorf("pool pair %s leg %s: %w", pair.Name, name, err)
		}
		legs[i] = leg
	}
	return legs, nil
}

// swapPurchase buys the target by swapping from the first source asset in
// its priority list that has enough available liquidity.
type swapPurchase struct {
	chainSettlement
	svc   *LiquidityService
	names []string

	mu       sync.Mutex
	resolved map[domain.Blockchain][]models.Asset
}

func newSwapPurchase(svc *LiquidityService, names []string) *swapPurchase {
	return &swapPurchase{
		svc:      svc,
		names:    names,
		resolved: make(map[domain.Blockchain][]models.Asset),
	}
}

// candidates resolves the priority list once per blockchain. Names missing
// from the catalog are skipped.
func (p *swapPurchase) candidates(ctx context.Context, blockchain domain.Blockchain) ([]models.Asset, error) {
	p.mu.Lock()
	defer p.mu.Unlock()
	if assets, ok := p.resolved[blockchain]; ok {
		return assets, nil
	}

	assets := make([]models.Asset, 0, len(p.names))
	for _, name := range p.names {
		asset, err := p.svc.assets.Lookup(ctx, blockchain, name)
		if errors.Is(err, models.ErrAssetNotFound) {
			zap.L().Warn("swap source not in catalog", zap.String("asset", name), zap.String("blockchain", string(blockchain)))
			continue
		}
		if err != nil {
			return nil, err
		}
		assets = append(assets, asset)
	}
	p.resolved[blockchain] = assets
	return assets, nil
}

func (p *swapPurchase) purchase(ctx context.Context, net chain.Network, order *models.LiquidityOrder, req LiquidityRequest) error {
	s := p.svc
	candidates, err := p.candidates(ctx, net.Blockchain)
	if err != nil {
		return err
	}
	targetAmount := order.EstimatedTargetAmount.Decimal
	onePlusSlippage := decimal.NewFromInt(1).Add(req.MaxSlippage)

	var reasons []string
	for _, candidate := range candidates {
		if candidate.Name == req.TargetAsset.Name {
			continue
		}
		required, err := net.Client.TestSwap(ctx, req.TargetAsset.Name, candidate.Name, targetAmount)
		if err != nil {
			reasons = append(reasons, fmt.Sprintf("%s: simulate failed: %v", candidate.Name, err))
			continue
		}
		swapAmount := domain.Round8(required.Mul(onePlusSlippage))
		available, err := s.availableAmount(ctx, net, candidate.Name)
		if err != nil {
			reasons = append(reasons, fmt.Sprintf("%s: %v", candidate.Name, err))
			continue
		}
		if available.LessThan(swapAmount) {
			reasons = append(reasons, fmt.Sprintf("%s: available %s, required %s", candidate.Name, available, swapAmount))
			continue
		}

		err = s.broadcastSwap(ctx, net, order, candidate.Name, swapAmount, req.TargetAsset.Name, req.MaxSlippage)
		var rejected errSwapRejected
		if errors.As(err, &rejected) {
			reasons = append(reasons, fmt.Sprintf("%s: %v", candidate.Name, rejected.err))
			continue
		}
		return err
	}

	return fmt.Errorf("purchase %s of %s %s: %w: %s",
		order.Key(), targetAmount, req.TargetAsset.Name, models.ErrNotEnoughLiquidity, strings.Join(reasons, "; "))
}

// poolPairPurchase acquires both legs of a pool pair as derived orders. The
// liquidity itself is added by ProcessReadyOrders once both legs are ready.
type poolPairPurchase struct {
	chainSettlement
	svc *LiquidityService
}

func (p *poolPairPurchase) purchase(ctx context.Context, net chain.Network, parent *models.LiquidityOrder, req LiquidityRequest) error {
	if err := p.acquireLegs(ctx, parent, req); err != nil {
		p.svc.undoPoolPair(ctx, parent)
		return err
	}
	return nil
}

func (p *poolPairPurchase) acquireLegs(ctx context.Context, parent *models.LiquidityOrder, req LiquidityRequest) error {
	s := p.svc
	if !s.settings.IsEnabled(ctx, domain.SettingPurchasePoolPair) {
		return fmt.Errorf("purchase %s: %w: pool-pair purchases are disabled", parent.Key(), models.ErrNotEnoughLiquidity)
	}
	legs, err := s.pairLegs(ctx, req.TargetAsset)
	if err != nil {
		return err
	}

	half := domain.Round8(req.ReferenceAmount.Div(decimal.NewFromInt(2)))
	parentID := uuid.NullUUID{UUID: parent.ID, Valid: true}
	for _, leg := range legs {
		legReq := LiquidityRequest{
			Context:         domain.ContextPoolPair,
			CorrelationID:   parent.ID.String() + "-" + leg.Name,
			ReferenceAsset:  req.ReferenceAsset,
			ReferenceAmount: half,
			TargetAsset:     leg,
			MaxSlippage:     req.MaxSlippage,
		}
		if err := p.acquireLeg(ctx, legReq, parentID); err != nil {
			return fmt.Errorf("pool pair %s leg %s: %w", parent.Key(), leg.Name, err)
		}
	}
	return nil
}

// acquireLeg reserves the leg when it is already available and purchases it
// otherwise.
func (p *poolPairPurchase) acquireLeg(ctx context.Context, req LiquidityRequest, parentID uuid.NullUUID) error {
	_, err := p.svc.reserve(ctx, req, parentID)
	if err == nil {
		return nil
	}
	if !errors.Is(err, models.ErrNotEnoughLiquidity) {
		return err
	}
	_, err = p.svc.purchase(ctx, req, parentID)
	return err
}

// undoPoolPair removes a pool-pair parent and its derived orders.
func (s *LiquidityService) undoPoolPair(ctx context.Context, parent *models.LiquidityOrder) {
	ctx = context.WithoutCancel(ctx)
	children, err := s.store.ListLiquidityOrdersByParent(ctx, parent.ID)
	if err != nil {
		zap.L().Error("list pool pair legs for undo failed", zap.Error(err), zap.String("order", parent.Key()))
	}
	ids := []uuid.UUID{parent.ID}
	for _, child := range children {
		ids = append(ids, child.ID)
	}
	if err := s.store.DeleteLiquidityOrders(ctx, ids...); err != nil {
		zap.L().Error("undo pool pair purchase failed", zap.Error(err), zap.String("order", parent.Key()))
		s.notifier.SendErrorMail(ctx, "Pool pair undo failed", fmt.Sprintf("order %s", parent.Key()), err.Error())
		return
	}
	zap.L().Warn("pool pair purchase undone", zap.String("order", parent.Key()), zap.Int("legs", len(children)))
}

var errLiquidityIntentNotRecorded = errors.New("add-liquidity intent not recorded")

// addPendingPoolLiquidity adds liquidity for pool-pair parents whose legs
// are both ready. A definite rejection undoes the purchase; an unknown
// outcome keeps every order so the liquidity is never added twice.
func (s *LiquidityService) addPendingPoolLiquidity(ctx context.Context) error {
	parents, err := s.store.ListPoolPairParentsAwaitingLiquidity(ctx, readyOrderBatchSize)
	if err != nil {
		return fmt.Errorf("list pool pair parents: %w", err)
	}
	for i := range parents {
		parent := &parents[i]
		legs, err := s.store.ListLiquidityOrdersByParent(ctx, parent.ID)
		if err != nil {
			return fmt.Errorf("list legs of %s: %w", parent.Key(), err)
		}
		if len(legs) != 2 || !legs[0].IsReady || !legs[1].IsReady {
			continue
		}
		err = s.addPoolLiquidity(ctx, parent, legs)
		switch {
		case err == nil:
		case errors.Is(err, models.ErrIndeterminateBroadcast):
			zap.L().Error("add pool liquidity outcome unknown", zap.Error(err), zap.String("order", parent.Key()))
		case errors.Is(err, errLiquidityIntentNotRecorded):
			zap.L().Warn("add pool liquidity deferred", zap.Error(err), zap.String("order", parent.Key()))
		default:
			zap.L().Error("add pool liquidity failed", zap.Error(err), zap.String("order", parent.Key()))
			s.notifier.SendErrorMail(ctx, "Pool pair liquidity add failed", fmt.Sprintf("order %s", parent.Key()), err.Error())
			s.undoPoolPair(ctx, parent)
		}
	}
	return nil
}

func (s *LiquidityService) addPoolLiquidity(ctx context.Context, parent *models.LiquidityOrder, legs []models.LiquidityOrder) error {
	net, err := s.networks.Get(parent.Chain)
	if err != nil {
		return err
	}
	first, second, err := models.Asset{Name: parent.TargetAsset, Category: domain.AssetCategoryPoolPair}.PairLegs()
	if err != nil {
		return err
	}
	amounts := make(map[string]decimal.Decimal, len(legs))
	for _, leg := range legs {
		amounts[leg.TargetAsset] = leg.TargetAmount.Decimal
	}
	req := chain.AddLiquidityRequest{Address: net.LiquidityAddress}
	for i, name := range []string{first, second} {
		amount, ok := amounts[name]
		if !ok {
			return fmt.Errorf("pool pair %s has no %s leg", parent.Key(), name)
		}
		req.Legs[i] = chain.AssetAmount{Asset: name, Amount: amount}
	}

	parent.RecordLiquidityIntent()
	if err := s.store.UpdateLiquidityOrder(ctx, parent); err != nil {
		return fmt.Errorf("%w: %s: %v", errLiquidityIntentNotRecorded, parent.Key(), err)
	}
	txID, err := net.Client.AddLiquidity(ctx, req)
	if err != nil {
		if chain.IsIndeterminate(err) {
			s.notifier.SendErrorMail(ctx, "Pool liquidity outcome unknown",
				fmt.Sprintf("order %s: add %s %s and %s %s", parent.Key(), req.Legs[0].Amount, req.Legs[0].Asset, req.Legs[1].Amount, req.Legs[1].Asset),
				err.Error(),
			)
			return fmt.Errorf("add liquidity %s: %w: %v", parent.Key(), models.ErrIndeterminateBroadcast, err)
		}
		return fmt.Errorf("add liquidity %s: %w", parent.Key(), err)
	}

	parent.TxID = txID
	if err := s.store.UpdateLiquidityOrder(ctx, parent); err != nil {
		s.notifier.SendErrorMail(ctx, "Pool liquidity added but not recorded", fmt.Sprintf("order %s: tx %s", parent.Key(), txID), err.Error())
		return nil
	}
	for _, leg := range legs {
		if _, err := s.store.CompleteLiquidityOrders(ctx, leg.Context, leg.CorrelationID); err != nil {
			zap.L().Error("complete pool pair leg failed", zap.Error(err), zap.String("order", leg.Key()))
		}
	}
	zap.L().Info("pool liquidity added", zap.String("order", parent.Key()), zap.String("tx_id", txID))
	return nil
}

type coinSale struct {
	chainSettlement
	svc        *LiquidityService
	feeReserve decimal.Decimal
}

// ensureAvailable keeps a reserve of the base coin for transaction fees.
func (c *coinSale) ensureAvailable(ctx context.Context, net chain.Network, asset string, amount decimal.Decimal) error {
	available, err := c.svc.availableAmount(ctx, net, asset)
	if err != nil {
		return err
	}
	required := amount.Add(c.feeReserve)
	if available.LessThan(required) {
		return fmt.Errorf("%w: %s available %s, required %s including fee reserve", models.ErrNotEnoughLiquidity, asset, available, required)
	}
	return nil
}

type tokenSale struct {
	chainSettlement
	svc *LiquidityService
}

func (t *tokenSale) ensureAvailable(ctx context.Context, net chain.Network, asset string, amount decimal.Decimal) error {
	available, err := t.svc.availableAmount(ctx, net, asset)
	if err != nil {
		return err
	}
	if available.LessThan(amount) {
		return fmt.Errorf("%w: %s available %s, required %s", models.ErrNotEnoughLiquidity, asset, available, amount)
	}
	return nil
}
