package worker

import (
	"context"
	"time"

	"github.com/ayo6706/liquidity-settlement/internal/lock"
	"github.com/ayo6706/liquidity-settlement/internal/service"
	"go.uber.org/zap"
)

// NewLiquidityWorker completes pool-pair purchases and settles broadcast
// liquidity orders.
func NewLiquidityWorker(svc *service.LiquidityService, locker lock.Locker, interval time.Duration) *Job {
	return NewJob("liquidity-orders", interval, locker, svc.ProcessReadyOrders)
}

// NewPayoutWorker moves payout orders through preparation, dispatch and
// completion.
func NewPayoutWorker(svc *service.PayoutService, locker lock.Locker, interval time.Duration) *Job {
	return NewJob("payout-orders", interval, locker, svc.ProcessPayouts)
}

func NewUTXOWorker(svc *service.UTXOService, locker lock.Locker, interval time.Duration) *Job {
	return NewJob("utxo-housekeeping", interval, locker, func(ctx context.Context) error {
		action, err := svc.Run(ctx)
		if err != nil {
			return err
		}
		if action != service.UTXOActionNone {
			zap.L().Info("utxo housekeeping done", zap.String("action", string(action)))
		}
		return nil
	}).WithLockTTL(interval)
}
