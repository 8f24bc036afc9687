package repository

import (
	"context"
	"errors"
	"fmt"

	"github.com/ayo6706/liquidity-settlement/internal/domain"
	"github.com/ayo6706/liquidity-settlement/internal/models"
	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/shopspring/decimal"
)

// Store provides access to the queries and transaction scoping, and
// implements the order stores the services depend on.
type Store struct {
	db      *pgxpool.Pool
	queries *Queries
}

// NewStore creates a store wrapper around a pgx connection pool.
func NewStore(db *pgxpool.Pool) *Store {
	return &Store{
		db:      db,
		queries: New(db),
	}
}

// Queries returns the non-transactional query set.
func (s *Store) Queries() *Queries {
	return s.queries
}

// RunInTx executes fn within a database transaction.
func (s *Store) RunInTx(ctx context.Context, fn func(q *Queries) error) error {
	tx, err := s.db.Begin(ctx)
	if err != nil {
		return fmt.Errorf("begin transaction: %w", err)
	}
	defer tx.Rollback(ctx)

	if err := fn(s.queries.WithTx(tx)); err != nil {
		return err
	}

	if err := tx.Commit(ctx); err != nil {
		return fmt.Errorf("commit transaction: %w", err)
	}
	return nil
}

func requireExactlyOne(rows int64, operation string) error {
	if rows != 1 {
		return fmt.Errorf("%s affected %d rows", operation, rows)
	}
	return nil
}

// CreateLiquidityOrder inserts order unless its key is taken. It returns the
// stored order and whether this call created it.
func (s *Store) CreateLiquidityOrder(ctx context.Context, order *models.LiquidityOrder) (*models.LiquidityOrder, bool, error) {
	created, err := s.queries.InsertLiquidityOrder(ctx, order)
	if err == nil {
		return &created, true, nil
	}
	if !errors.Is(err, pgx.ErrNoRows) {
		return nil, false, fmt.Errorf("insert liquidity order %s: %w", order.Key(), err)
	}
	existing, err := s.GetLiquidityOrder(ctx, order.Context, order.CorrelationID)
	if err != nil {
		return nil, false, err
	}
	return existing, false, nil
}

func (s *Store) GetLiquidityOrder(ctx context.Context, orderContext domain.OrderContext, correlationID string) (*models.LiquidityOrder, error) {
	order, err := s.queries.GetLiquidityOrderByKey(ctx, orderContext, correlationID)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, fmt.Errorf("%s/%s: %w", orderContext, correlationID, models.ErrLiquidityOrderNotFound)
		}
		return nil, fmt.Errorf("get liquidity order: %w", err)
	}
	return &order, nil
}

func (s *Store) UpdateLiquidityOrder(ctx context.Context, order *models.LiquidityOrder) error {
	rows, err := s.queries.UpdateLiquidityOrder(ctx, order)
	if err != nil {
		return fmt.Errorf("update liquidity order %s: %w", order.Key(), err)
	}
	return requireExactlyOne(rows, "update liquidity order")
}

func (s *Store) DeleteLiquidityOrders(ctx context.Context, ids ...uuid.UUID) error {
	if len(ids) == 0 {
		return nil
	}
	if _, err := s.queries.DeleteLiquidityOrders(ctx, ids); err != nil {
		return fmt.Errorf("delete liquidity orders: %w", err)
	}
	return nil
}

func (s *Store) ListLiquidityOrdersByParent(ctx context.Context, parentID uuid.UUID) ([]models.LiquidityOrder, error) {
	orders, err := s.queries.ListLiquidityOrdersByParent(ctx, parentID)
	if err != nil {
		return nil, fmt.Errorf("list derived liquidity orders: %w", err)
	}
	return orders, nil
}

func (s *Store) ListUnreadyLiquidityOrders(ctx context.Context, limit int32) ([]models.LiquidityOrder, error) {
	orders, err := s.queries.ListUnreadyLiquidityOrders(ctx, limit)
	if err != nil {
		return nil, fmt.Errorf("list unready liquidity orders: %w", err)
	}
	return orders, nil
}

func (s *Store) ListPoolPairParentsAwaitingLiquidity(ctx context.Context, limit int32) ([]models.LiquidityOrder, error) {
	orders, err := s.queries.ListPoolPairParentsAwaitingLiquidity(ctx, limit)
	if err != nil {
		return nil, fmt.Errorf("list pool pair parents: %w", err)
	}
	return orders, nil
}

func (s *Store) CompleteLiquidityOrders(ctx context.Context, orderContext domain.OrderContext, correlationID string) (int64, error) {
	rows, err := s.queries.CompleteLiquidityOrders(ctx, orderContext, correlationID)
	if err != nil {
		return 0, fmt.Errorf("complete liquidity orders: %w", err)
	}
	return rows, nil
}

func (s *Store) CountPendingLiquidityOrders(ctx context.Context, chain domain.Blockchain, asset string) (int64, error) {
	n, err := s.queries.CountPendingLiquidityOrders(ctx, chain, asset)
	if err != nil {
		return 0, fmt.Errorf("count pending liquidity orders: %w", err)
	}
	return n, nil
}

func (s *Store) SumPendingLiquidityAmount(ctx context.Context, chain domain.Blockchain, asset string) (decimal.Decimal, error) {
	sum, err := s.queries.SumPendingLiquidityAmount(ctx, chain, asset)
	if err != nil {
		return decimal.Zero, fmt.Errorf("sum pending liquidity: %w", err)
	}
	return sum, nil
}

func (s *Store) CreatePayoutOrder(ctx context.Context, order *models.PayoutOrder) (*models.PayoutOrder, bool, error) {
	created, err := s.queries.InsertPayoutOrder(ctx, order)
	if err == nil {
		return &created, true, nil
	}
	if !errors.Is(err, pgx.ErrNoRows) {
		return nil, false, fmt.Errorf("insert payout order %s: %w", order.Key(), err)
	}
	existing, err := s.GetPayoutOrder(ctx, order.Context, order.CorrelationID)
	if err != nil {
		return nil, false, err
	}
	return existing, false, nil
}

func (s *Store) GetPayoutOrder(ctx context.Context, orderContext domain.OrderContext, correlationID string) (*models.PayoutOrder, error) {
	order, err := s.queries.GetPayoutOrderByKey(ctx, orderContext, correlationID)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, fmt.Errorf("%s/%s: %w", orderContext, correlationID, models.ErrPayoutOrderNotFound)
		}
		return nil, fmt.Errorf("get payout order: %w", err)
	}
	return &order, nil
}

func (s *Store) ListPayoutOrdersByStatus(ctx context.Context, status domain.PayoutStatus, limit int32) ([]models.PayoutOrder, error) {
	orders, err := s.queries.ListPayoutOrdersByStatus(ctx, status, limit)
	if err != nil {
		return nil, fmt.Errorf("list %s payout orders: %w", status, err)
	}
	return orders, nil
}

func (s *Store) UpdatePayoutOrder(ctx context.Context, order *models.PayoutOrder) error {
	rows, err := s.queries.UpdatePayoutOrder(ctx, order)
	if err != nil {
		return fmt.Errorf("update payout order %s: %w", order.Key(), err)
	}
	return requireExactlyOne(rows, "update payout order")
}

// UpdatePayoutStatuses applies all updates atomically. An order that is no
// longer in its expected status aborts the whole batch.
func (s *Store) UpdatePayoutStatuses(ctx context.Context, updates []models.PayoutStatusUpdate) error {
	return s.RunInTx(ctx, func(q *Queries) error {
		for _, u := range updates {
			rows, err := q.UpdatePayoutOrderStatus(ctx, u.ID, u.From, u.Status)
			if err != nil {
				return fmt.Errorf("update payout order %s status: %w", u.ID, err)
			}
			if rows != 1 {
				return fmt.Errorf("payout order %s %s -> %s: %w", u.ID, u.From, u.Status, models.ErrInvalidPayoutTransition)
			}
		}
		return nil
	})
}

func (s *Store) GetAsset(ctx context.Context, blockchain domain.Blockchain, name string) (models.Asset, error) {
	asset, err := s.queries.GetAssetByName(ctx, blockchain, name)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return models.Asset{}, fmt.Errorf("%s on %s: %w", name, blockchain, models.ErrAssetNotFound)
		}
		return models.Asset{}, fmt.Errorf("get asset: %w", err)
	}
	return asset, nil
}

func (s *Store) GetSetting(ctx context.Context, key string) (string, bool, error) {
	value, err := s.queries.GetSetting(ctx, key)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return "", false, nil
		}
		return "", false, fmt.Errorf("get setting %s: %w", key, err)
	}
	return value, true, nil
}
