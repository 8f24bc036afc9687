package repository

import (
	"context"

	"github.com/ayo6706/liquidity-settlement/internal/domain"
	"github.com/ayo6706/liquidity-settlement/internal/models"
	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/shopspring/decimal"
)

const liquidityOrderColumns = `id, context, correlation_id, type, chain, parent_id,
	reference_asset, reference_amount, target_asset, swap_asset, swap_amount, max_slippage,
	estimated_target_amount, target_amount, is_ready, is_complete, tx_id, fee_asset, fee_amount,
	created_at, updated_at`

func scanLiquidityOrder(row pgx.Row) (models.LiquidityOrder, error) {
	var o models.LiquidityOrder
	err := row.Scan(
		&o.ID, &o.Context, &o.CorrelationID, &o.Type, &o.Chain, &o.ParentID,
		&o.ReferenceAsset, &o.ReferenceAmount, &o.TargetAsset, &o.SwapAsset, &o.SwapAmount, &o.MaxSlippage,
		&o.EstimatedTargetAmount, &o.TargetAmount, &o.IsReady, &o.IsComplete, &o.TxID, &o.FeeAsset, &o.FeeAmount,
		&o.CreatedAt, &o.UpdatedAt,
	)
	return o, err
}

func collectLiquidityOrders(rows pgx.Rows, err error) ([]models.LiquidityOrder, error) {
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	var orders []models.LiquidityOrder
	for rows.Next() {
		o, err := scanLiquidityOrder(rows)
		if err != nil {
			return nil, err
		}
		orders = append(orders, o)
	}
	return orders, rows.Err()
}

const insertLiquidityOrder = `
INSERT INTO liquidity_orders (
	id, context, correlation_id, type, chain, parent_id,
	reference_asset, reference_amount, target_asset, swap_asset, swap_amount, max_slippage,
	estimated_target_amount, target_amount, is_ready, is_complete, tx_id, fee_asset, fee_amount
) VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11, $12, $13, $14, $15, $16, $17, $18, $19)
ON CONFLICT (context, correlation_id) DO NOTHING
RETURNING ` + liquidityOrderColumns

// InsertLiquidityOrder returns pgx.ErrNoRows when an order with the same
// (context, correlation_id) already exists.
func (q *Queries) InsertLiquidityOrder(ctx context.Context, o *models.LiquidityOrder) (models.LiquidityOrder, error) {
	row := q.db.QueryRow(ctx, insertLiquidityOrder,
		o.ID, o.Context, o.CorrelationID, o.Type, o.Chain, o.ParentID,
		o.ReferenceAsset, o.ReferenceAmount, o.TargetAsset, o.SwapAsset, o.SwapAmount, o.MaxSlippage,
		o.EstimatedTargetAmount, o.TargetAmount, o.IsReady, o.IsComplete, o.TxID, o.FeeAsset, o.FeeAmount,
	)
	return scanLiquidityOrder(row)
}

const getLiquidityOrderByKey = `SELECT ` + liquidityOrderColumns + `
FROM liquidity_orders
WHERE context = $1 AND correlation_id = $2`

func (q *Queries) GetLiquidityOrderByKey(ctx context.Context, orderContext domain.OrderContext, correlationID string) (models.LiquidityOrder, error) {
	return scanLiquidityOrder(q.db.QueryRow(ctx, getLiquidityOrderByKey, orderContext, correlationID))
}

const updateLiquidityOrder = `
UPDATE liquidity_orders
SET swap_asset = $2,
    swap_amount = $3,
    estimated_target_amount = $4,
    target_amount = $5,
    is_ready = $6,
    is_complete = $7,
    tx_id = $8,
    fee_asset = $9,
    fee_amount = $10,
    updated_at = NOW()
WHERE id = $1`

func (q *Queries) UpdateLiquidityOrder(ctx context.Context, o *models.LiquidityOrder) (int64, error) {
	tag, err := q.db.Exec(ctx, updateLiquidityOrder,
		o.ID, o.SwapAsset, o.SwapAmount, o.EstimatedTargetAmount, o.TargetAmount,
		o.IsReady, o.IsComplete, o.TxID, o.FeeAsset, o.FeeAmount,
	)
	if err != nil {
		return 0, err
	}
	return tag.RowsAffected(), nil
}

const deleteLiquidityOrders = `DELETE FROM liquidity_orders WHERE id = ANY($1::uuid[])`

func (q *Queries) DeleteLiquidityOrders(ctx context.Context, ids []uuid.UUID) (int64, error) {
	tag, err := q.db.Exec(ctx, deleteLiquidityOrders, ids)
	if err != nil {
		return 0, err
	}
	return tag.RowsAffected(), nil
}

const listLiquidityOrdersByParent = `SELECT ` + liquidityOrderColumns + `
FROM liquidity_orders
WHERE parent_id = $1
ORDER BY created_at ASC`

func (q *Queries) ListLiquidityOrdersByParent(ctx context.Context, parentID uuid.UUID) ([]models.LiquidityOrder, error) {
	return collectLiquidityOrders(q.db.Query(ctx, listLiquidityOrdersByParent, parentID))
}

const listUnreadyLiquidityOrders = `SELECT ` + liquidityOrderColumns + `
FROM liquidity_orders
WHERE tx_id <> '' AND NOT is_ready
ORDER BY created_at ASC
LIMIT $1`

func (q *Queries) ListUnreadyLiquidityOrders(ctx context.Context, limit int32) ([]models.LiquidityOrder, error) {
	return collectLiquidityOrders(q.db.Query(ctx, listUnreadyLiquidityOrders, limit))
}

const listPoolPairParentsAwaitingLiquidity = `SELECT ` + liquidityOrderColumns + `
FROM liquidity_orders p
WHERE p.tx_id = '' AND p.swap_asset = '' AND p.parent_id IS NULL AND p.type = 'PURCHASE'
  AND EXISTS (SELECT 1 FROM liquidity_orders c WHERE c.parent_id = p.id)
ORDER BY p.created_at ASC
LIMIT $1`

func (q *Queries) ListPoolPairParentsAwaitingLiquidity(ctx context.Context, limit int32) ([]models.LiquidityOrder, error) {
	return collectLiquidityOrders(q.db.Query(ctx, listPoolPairParentsAwaitingLiquidity, limit))
}

const completeLiquidityOrders = `
UPDATE liquidity_orders
SET is_complete = TRUE, updated_at = NOW()
WHERE context = $1 AND correlation_id = $2 AND is_ready AND NOT is_complete`

func (q *Queries) CompleteLiquidityOrders(ctx context.Context, orderContext domain.OrderContext, correlationID string) (int64, error) {
	tag, err := q.db.Exec(ctx, completeLiquidityOrders, orderContext, correlationID)
	if err != nil {
		return 0, err
	}
	return tag.RowsAffected(), nil
}

const countPendingLiquidityOrders = `
SELECT COUNT(*) FROM liquidity_orders
WHERE chain = $1 AND target_asset = $2 AND NOT is_complete`

func (q *Queries) CountPendingLiquidityOrders(ctx context.Context, chain domain.Blockchain, asset string) (int64, error) {
	var n int64
	err := q.db.QueryRow(ctx, countPendingLiquidityOrders, chain, asset).Scan(&n)
	return n, err
}

const sumPendingLiquidityAmount = `
SELECT COALESCE(SUM(target_amount), 0) FROM liquidity_orders
WHERE chain = $1 AND target_asset = $2 AND is_ready AND NOT is_complete`

func (q *Queries) SumPendingLiquidityAmount(ctx context.Context, chain domain.Blockchain, asset string) (decimal.Decimal, error) {
	var sum decimal.Decimal
	err := q.db.QueryRow(ctx, sumPendingLiquidityAmount, chain, asset).Scan(&sum)
	return sum, err
}
