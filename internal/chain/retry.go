package chain

import (
	"context"
	"errors"
	"time"

	"github.com/ayo6706/liquidity-settlement/internal/models"
	"github.com/ayo6706/liquidity-settlement/internal/observability"
	"github.com/cenkalti/backoff/v5"
	"github.com/shopspring/decimal"
	"go.uber.org/zap"
	"golang.org/x/time/rate"
)

// RetryPolicy bounds retries of read calls: a fixed number of attempts with a
// fixed delay between them.
type RetryPolicy struct {
	Attempts uint
	Delay    time.Duration
}

// RetryingClient decorates a Client. Reads are retried under the policy,
// broadcasts are passed through exactly once. Every call waits on the limiter.
type RetryingClient struct {
	inner   Client
	policy  RetryPolicy
	limiter *rate.Limiter
}

var _ Client = (*RetryingClient)(nil)

// NewRetryingClient wraps inner. A nil limiter disables throttling.
func NewRetryingClient(inner Client, policy RetryPolicy, limiter *rate.Limiter) *RetryingClient {
	if policy.Attempts == 0 {
		policy.Attempts = 1
	}
	return &RetryingClient{inner: inner, policy: policy, limiter: limiter}
}

func (c *RetryingClient) wait(ctx context.Context) error {
	if c.limiter == nil {
		return nil
	}
	return c.limiter.Wait(ctx)
}

func retryRead[T any](ctx context.Context, c *RetryingClient, method string, op func() (T, error)) (T, error) {
	attempt := 0
	return backoff.Retry(ctx, func() (T, error) {
		attempt++
		if err := c.wait(ctx); err != nil {
			var zero T
			return zero, backoff.Permanent(err)
		}
		v, err := op()
		if err != nil && (errors.Is(err, ErrTransactionNotFound) || errors.Is(err, context.Canceled)) {
			return v, backoff.Permanent(err)
		}
		return v, err
	},
		backoff.WithBackOff(backoff.NewConstantBackOff(c.policy.Delay)),
		backoff.WithMaxTries(c.policy.Attempts),
		backoff.WithNotify(func(err error, next time.Duration) {
			observability.IncrementChainRetry(method)
			zap.L().Warn("chain read failed, retrying",
				zap.String("method", method),
				zap.Int("attempt", attempt),
				zap.Duration("next", next),
				zap.Error(err),
			)
		}),
	)
}

func (c *RetryingClient) GetBalance(ctx context.Context, address, asset string) (decimal.Decimal, error) {
	return retryRead(ctx, c, "get_balance", func() (decimal.Decimal, error) {
		return c.inner.GetBalance(ctx, address, asset)
	})
}

func (c *RetryingClient) GetUtxoBalance(ctx context.Context, address string) (decimal.Decimal, error) {
	return retryRead(ctx, c, "get_utxo_balance", func() (decimal.Decimal, error) {
		return c.inner.GetUtxoBalance(ctx, address)
	})
}

func (c *RetryingClient) TestSwap(ctx context.Context, sourceAsset, targetAsset string, amount decimal.Decimal) (decimal.Decimal, error) {
	return retryRead(ctx, c, "test_swap", func() (decimal.Decimal, error) {
		return c.inner.TestSwap(ctx, sourceAsset, targetAsset, amount)
	})
}

func (c *RetryingClient) GetReferencePrice(ctx context.Context, sourceAsset, targetAsset string) (decimal.Decimal, error) {
	return retryRead(ctx, c, "get_reference_price", func() (decimal.Decimal, error) {
		return c.inner.GetReferencePrice(ctx, sourceAsset, targetAsset)
	})
}

func (c *RetryingClient) GetTransaction(ctx context.Context, txID string) (Transaction, error) {
	return retryRead(ctx, c, "get_transaction", func() (Transaction, error) {
		return c.inner.GetTransaction(ctx, txID)
	})
}

func (c *RetryingClient) GetUnspentOutputs(ctx context.Context, address string) ([]models.UnspentOutput, error) {
	return retryRead(ctx, c, "get_unspent_outputs", func() ([]models.UnspentOutput, error) {
		return c.inner.GetUnspentOutputs(ctx, address)
	})
}

func (c *RetryingClient) ExecuteSwap(ctx context.Context, req SwapRequest) (string, error) {
	if err := c.wait(ctx); err != nil {
		return "", err
	}
	return c.inner.ExecuteSwap(ctx, req)
}

func (c *RetryingClient) Transfer(ctx context.Context, from, to, asset string, amount decimal.Decimal) (string, error) {
	if err := c.wait(ctx); err != nil {
		return "", err
	}
	return c.inner.Transfer(ctx, from, to, asset, amount)
}

func (c *RetryingClient) TransferMany(ctx context.Context, from, asset string, outputs []TransferOutput) (string, error) {
	if err := c.wait(ctx); err != nil {
		return "", err
	}
	return c.inner.TransferMany(ctx, from, asset, outputs)
}

func (c *RetryingClient) AddLiquidity(ctx context.Context, req AddLiquidityRequest) (string, error) {
	if err := c.wait(ctx); err != nil {
		return "", err
	}
	return c.inner.AddLiquidity(ctx, req)
}

func (c *RetryingClient) MergeOutputs(ctx context.Context, address string, count int) (string, error) {
	if err := c.wait(ctx); err != nil {
		return "", err
	}
	return c.inner.MergeOutputs(ctx, address, count)
}

func (c *RetryingClient) SplitOutput(ctx context.Context, address string, factor int) (string, error) {
	if err := c.wait(ctx); err != nil {
		return "", err
	}
	return c.inner.SplitOutput(ctx, address, factor)
}
