package service

import (
	"context"

	"github.com/ayo6706/liquidity-settlement/internal/domain"
	"github.com/ayo6706/liquidity-settlement/internal/models"
	"github.com/google/uuid"
	"github.com/shopspring/decimal"
)

// LiquidityOrderStore defines the persistence contract of the liquidity engine.
type LiquidityOrderStore interface {
	CreateLiquidityOrder(ctx context.Context, order *models.LiquidityOrder) (*models.LiquidityOrder, bool, error)
	GetLiquidityOrder(ctx context.Context, orderContext domain.OrderContext, correlationID string) (*models.LiquidityOrder, error)
	UpdateLiquidityOrder(ctx context.Context, order *models.LiquidityOrder) error
	DeleteLiquidityOrders(ctx context.Context, ids ...uuid.UUID) error
	ListLiquidityOrdersByParent(ctx context.Context, parentID uuid.UUID) ([]models.LiquidityOrder, error)
	ListUnreadyLiquidityOrders(ctx context.Context, limit int32) ([]models.LiquidityOrder, error)
	ListPoolPairParentsAwaitingLiquidity(ctx context.Context, limit int32) ([]models.LiquidityOrder, error)
	CompleteLiquidityOrders(ctx context.Context, orderContext domain.OrderContext, correlationID string) (int64, error)
	CountPendingLiquidityOrders(ctx context.Context, chain domain.Blockchain, asset string) (int64, error)
	SumPendingLiquidityAmount(ctx context.Context, chain domain.Blockchain, asset string) (decimal.Decimal, error)
}

// PayoutOrderStore defines the persistence contract of the payout engine.
// UpdatePayoutStatuses applies all updates atomically or none of them.
type PayoutOrderStore interface {
	CreatePayoutOrder(ctx context.Context, order *models.PayoutOrder) (*models.PayoutOrder, bool, error)
	GetPayoutOrder(ctx context.Context, orderContext domain.OrderContext, correlationID string) (*models.PayoutOrder, error)
	ListPayoutOrdersByStatus(ctx context.Context, status domain.PayoutStatus, limit int32) ([]models.PayoutOrder, error)
	UpdatePayoutOrder(ctx context.Context, order *models.PayoutOrder) error
	UpdatePayoutStatuses(ctx context.Context, updates []models.PayoutStatusUpdate) error
}
