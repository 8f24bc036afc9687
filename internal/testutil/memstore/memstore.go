// Package memstore is an in-memory order store with the same contract as the
// Postgres store: unique (context, correlation id) keys, compare-and-set
// status updates and atomic batches.
package memstore

import (
	"context"
	"fmt"
	"sort"
	"sync"
	"time"

	"github.com/ayo6706/liquidity-settlement/internal/domain"
	"github.com/ayo6706/liquidity-settlement/internal/models"
	"github.com/google/uuid"
	"github.com/shopspring/decimal"
)

type key struct {
	context       domain.OrderContext
	correlationID string
}

type Store struct {
	mu        sync.Mutex
	liquidity map[uuid.UUID]models.LiquidityOrder
	lkeys     map[key]uuid.UUID
	payouts   map[uuid.UUID]models.PayoutOrder
	pkeys     map[key]uuid.UUID

	// FailPayoutUpdates makes UpdatePayoutOrder fail for the listed ids.
	FailPayoutUpdates map[uuid.UUID]error
}

func New() *Store {
	return &Store{
		liquidity:         make(map[uuid.UUID]models.LiquidityOrder),
		lkeys:             make(map[key]uuid.UUID),
		payouts:           make(map[uuid.UUID]models.PayoutOrder),
		pkeys:             make(map[key]uuid.UUID),
		FailPayoutUpdates: make(map[uuid.UUID]error),
	}
}

func (s *Store) CreateLiquidityOrder(ctx context.Context, order *models.LiquidityOrder) (*models.LiquidityOrder, bool, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	k := key{order.Context, order.CorrelationID}
	if id, ok := s.lkeys[k]; ok {
		existing := s.liquidity[id]
		return &existing, false, nil
	}
	stored := *order
	now := time.Now()
	stored.CreatedAt, stored.UpdatedAt = now, now
	s.liquidity[stored.ID] = stored
	s.lkeys[k] = stored.ID
	out := stored
	return &out, true, nil
}

func (s *Store) GetLiquidityOrder(ctx context.Context, orderContext domain.OrderContext, correlationID string) (*models.LiquidityOrder, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	id, ok := s.lkeys[key{orderContext, correlationID}]
	if !ok {
		return nil, fmt.Errorf("%s/%s: %w", orderContext, correlationID, models.ErrLiquidityOrderNotFound)
	}
	o := s.liquidity[id]
	return &o, nil
}

func (s *Store) UpdateLiquidityOrder(ctx context.Context, order *models.LiquidityOrder) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if _, ok := s.liquidity[order.ID]; !ok {
		return fmt.Errorf("update liquidity order affected 0 rows")
	}
	stored := *order
	stored.UpdatedAt = time.Now()
	s.liquidity[order.ID] = stored
	return nil
}

func (s *Store) DeleteLiquidityOrders(ctx context.Context, ids ...uuid.UUID) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	for _, id := range ids {
		o, ok := s.liquidity[id]
		if !ok {
			continue
		}
		delete(s.lkeys, key{o.Context, o.CorrelationID})
		delete(s.liquidity, id)
	}
	return nil
}

func (s *Store) liquidityWhere(pred func(models.LiquidityOrder) bool, limit int32) []models.LiquidityOrder {
	var out []models.LiquidityOrder
	for _, o := range s.liquidity {
		if pred(o) {
			out = append(out, o)
		}
	}
	sort.Slice(out, func(i, j int) bool {
		if out[i].CreatedAt.Equal(out[j].CreatedAt) {
			return out[i].CorrelationID < out[j].CorrelationID
		}
		return out[i].CreatedAt.Before(out[j].CreatedAt)
	})
	if limit > 0 && len(out) > int(limit) {
		out = out[:limit]
	}
	return out
}

func (s *Store) ListLiquidityOrdersByParent(ctx context.Context, parentID uuid.UUID) ([]models.LiquidityOrder, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.liquidityWhere(func(o models.LiquidityOrder) bool {
		return o.ParentID.Valid && o.ParentID.UUID == parentID
	}, 0), nil
}

func (s *Store) ListUnreadyLiquidityOrders(ctx context.Context, limit int32) ([]models.LiquidityOrder, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.liquidityWhere(func(o models.LiquidityOrder) bool {
		return o.TxID != "" && !o.IsReady
	}, limit), nil
}

func (s *Store) ListPoolPairParentsAwaitingLiquidity(ctx context.Context, limit int32) ([]models.LiquidityOrder, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	parents := make(map[uuid.UUID]bool)
	for _, o := range s.liquidity {
		if o.ParentID.Valid {
			parents[o.ParentID.UUID] = true
		}
	}
	return s.liquidityWhere(func(o models.LiquidityOrder) bool {
		return o.TxID == "" && o.SwapAsset == "" && !o.ParentID.Valid && o.Type == domain.LiquidityOrderPurchase && parents[o.ID]
	}, limit), nil
}

func (s *Store) CompleteLiquidityOrders(ctx context.Context, orderContext domain.OrderContext, correlationID string) (int64, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	id, ok := s.lkeys[key{orderContext, correlationID}]
	if !ok {
		return 0, nil
	}
	o := s.liquidity[id]
	if !o.IsReady || o.IsComplete {
		return 0, nil
	}
	o.IsComplete = true
	s.liquidity[id] = o
	return 1, nil
}

func (s *Store) CountPendingLiquidityOrders(ctx context.Context, chain domain.Blockchain, asset string) (int64, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	var n int64
	for _, o := range s.liquidity {
		if o.Chain == chain && o.TargetAsset == asset && !o.IsComplete {
			n++
		}
	}
	return n, nil
}

func (s *Store) SumPendingLiquidityAmount(ctx context.Context, chain domain.Blockchain, asset string) (decimal.Decimal, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	sum := decimal.Zero
	for _, o := range s.liquidity {
		if o.Chain == chain && o.TargetAsset == asset && o.IsReady && !o.IsComplete && o.TargetAmount.Valid {
			sum = sum.Add(o.TargetAmount.Decimal)
		}
	}
	return sum, nil
}

// LiquidityOrders returns every stored liquidity order.
func (s *Store) LiquidityOrders() []models.LiquidityOrder {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.liquidityWhere(func(models.LiquidityOrder) bool { return true }, 0)
}

func (s *Store) CreatePayoutOrder(ctx context.Context, order *models.PayoutOrder) (*models.PayoutOrder, bool, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	k := key{order.Context, order.CorrelationID}
	if id, ok := s.pkeys[k]; ok {
		existing := s.payouts[id]
		return &existing, false, nil
	}
	stored := *order
	now := time.Now()
	stored.CreatedAt, stored.UpdatedAt = now, now
	s.payouts[stored.ID] = stored
	s.pkeys[k] = stored.ID
	out := stored
	return &out, true, nil
}

func (s *Store) GetPayoutOrder(ctx context.Context, orderContext domain.OrderContext, correlationID string) (*models.PayoutOrder, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	id, ok := s.pkeys[key{orderContext, correlationID}]
	if !ok {
		return nil, fmt.Errorf("%s/%s: %w", orderContext, correlationID, models.ErrPayoutOrderNotFound)
	}
	o := s.payouts[id]
	return &o, nil
}

func (s *Store) ListPayoutOrdersByStatus(ctx context.Context, status domain.PayoutStatus, limit int32) ([]models.PayoutOrder, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	var out []models.PayoutOrder
	for _, o := range s.payouts {
		if o.Status == status {
			out = append(out, o)
		}
	}
	sort.Slice(out, func(i, j int) bool {
		if out[i].CreatedAt.Equal(out[j].CreatedAt) {
			return out[i].CorrelationID < out[j].CorrelationID
		}
		return out[i].CreatedAt.Before(out[j].CreatedAt)
	})
	if limit > 0 && len(out) > int(limit) {
		out = out[:limit]
	}
	return out, nil
}

func (s *Store) UpdatePayoutOrder(ctx context.Context, order *models.PayoutOrder) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if err := s.FailPayoutUpdates[order.ID]; err != nil {
		return err
	}
	if _, ok := s.payouts[order.ID]; !ok {
		return fmt.Errorf("update payout order affected 0 rows")
	}
	stored := *order
	stored.UpdatedAt = time.Now()
	s.payouts[order.ID] = stored
	return nil
}

func (s *Store) UpdatePayoutStatuses(ctx context.Context, updates []models.PayoutStatusUpdate) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	for _, u := range updates {
		o, ok := s.payouts[u.ID]
		if !ok || o.Status != u.From {
			return fmt.Errorf("payout order %s %s -> %s: %w", u.ID, u.From, u.Status, models.ErrInvalidPayoutTransition)
		}
	}
	for _, u := range updates {
		o := s.payouts[u.ID]
		o.Status = u.Status
		o.UpdatedAt = time.Now()
		s.payouts[u.ID] = o
	}
	return nil
}

// PayoutOrders returns every stored payout order ordered by correlation id.
func (s *Store) PayoutOrders() []models.PayoutOrder {
	s.mu.Lock()
	defer s.mu.Unlock()
	out := make([]models.PayoutOrder, 0, len(s.payouts))
	for _, o := range s.payouts {
		out = append(out, o)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].CorrelationID < out[j].CorrelationID })
	return out
}
