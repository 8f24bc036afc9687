package repository

import (
	"context"

	"github.com/ayo6706/liquidity-settlement/internal/domain"
	"github.com/ayo6706/liquidity-settlement/internal/models"
	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
)

const payoutOrderColumns = `id, context, correlation_id, chain, asset, amount, destination_address, status,
	transfer_tx_id, payout_tx_id, preparation_fee_asset, preparation_fee_amount,
	payout_fee_asset, payout_fee_amount, created_at, updated_at`

func scanPayoutOrder(row pgx.Row) (models.PayoutOrder, error) {
	var o models.PayoutOrder
	err := row.Scan(
		&o.ID, &o.Context, &o.CorrelationID, &o.Chain, &o.Asset, &o.Amount, &o.DestinationAddress, &o.Status,
		&o.TransferTxID, &o.PayoutTxID, &o.PreparationFeeAsset, &o.PreparationFeeAmount,
		&o.PayoutFeeAsset, &o.PayoutFeeAmount, &o.CreatedAt, &o.UpdatedAt,
	)
	return o, err
}

const insertPayoutOrder = `
INSERT INTO payout_orders (id, context, correlation_id, chain, asset, amount, destination_address, status)
VALUES ($1, $2, $3, $4, $5, $6, $7, $8)
ON CONFLICT (context, correlation_id) DO NOTHING
RETURNING ` + payoutOrderColumns

// InsertPayoutOrder returns pgx.ErrNoRows when the key already exists.
func (q *Queries) InsertPayoutOrder(ctx context.Context, o *models.PayoutOrder) (models.PayoutOrder, error) {
	row := q.db.QueryRow(ctx, insertPayoutOrder,
		o.ID, o.Context, o.CorrelationID, o.Chain, o.Asset, o.Amount, o.DestinationAddress, o.Status,
	)
	return scanPayoutOrder(row)
}

const getPayoutOrderByKey = `SELECT ` + payoutOrderColumns + `
FROM payout_orders
WHERE context = $1 AND correlation_id = $2`

func (q *Queries) GetPayoutOrderByKey(ctx context.Context, orderContext domain.OrderContext, correlationID string) (models.PayoutOrder, error) {
	return scanPayoutOrder(q.db.QueryRow(ctx, getPayoutOrderByKey, orderContext, correlationID))
}

const listPayoutOrdersByStatus = `SELECT ` + payoutOrderColumns + `
FROM payout_orders
WHERE status = $1
ORDER BY created_at ASC
LIMIT $2`

func (q *Queries) ListPayoutOrdersByStatus(ctx context.Context, status domain.PayoutStatus, limit int32) ([]models.PayoutOrder, error) {
	rows, err := q.db.Query(ctx, listPayoutOrdersByStatus, status, limit)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	var orders []models.PayoutOrder
	for rows.Next() {
		o, err := scanPayoutOrder(rows)
		if err != nil {
			return nil, err
		}
		orders = append(orders, o)
	}
	return orders, rows.Err()
}

const updatePayoutOrder = `
UPDATE payout_orders
SET status = $2,
    transfer_tx_id = $3,
    payout_tx_id = $4,
    preparation_fee_asset = $5,
    preparation_fee_amount = $6,
    payout_fee_asset = $7,
    payout_fee_amount = $8,
    updated_at = NOW()
WHERE id = $1`

func (q *Queries) UpdatePayoutOrder(ctx context.Context, o *models.PayoutOrder) (int64, error) {
	tag, err := q.db.Exec(ctx, updatePayoutOrder,
		o.ID, o.Status, o.TransferTxID, o.PayoutTxID,
		o.PreparationFeeAsset, o.PreparationFeeAmount, o.PayoutFeeAsset, o.PayoutFeeAmount,
	)
	if err != nil {
		return 0, err
	}
	return tag.RowsAffected(), nil
}

const updatePayoutOrderStatus = `
UPDATE payout_orders
SET status = $3, updated_at = NOW()
WHERE id = $1 AND status = $2`

// UpdatePayoutOrderStatus moves an order from one status to another. Zero rows
// means the order was not in the expected status.
func (q *Queries) UpdatePayoutOrderStatus(ctx context.Context, id uuid.UUID, from, to domain.PayoutStatus) (int64, error) {
	tag, err := q.db.Exec(ctx, updatePayoutOrderStatus, id, from, to)
	if err != nil {
		return 0, err
	}
	return tag.RowsAffected(), nil
}
