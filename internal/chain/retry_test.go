package chain

import (
	"context"
	"errors"
	"testing"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"golang.org/x/time/rate"
)

func TestRetryingClientRetriesReads(t *testing.T) {
	calls := 0
	inner := FuncClient{
		GetBalanceFunc: func(ctx context.Context, address, asset string) (decimal.Decimal, error) {
			calls++
			if calls < 3 {
				return decimal.Zero, errors.New("node busy")
			}
			return decimal.NewFromInt(7), nil
		},
	}
	client := NewRetryingClient(inner, RetryPolicy{Attempts: 3}, nil)

	bal, err := client.GetBalance(context.Background(), "addr", "DFI")
	require.NoError(t, err)
	assert.True(t, bal.Equal(decimal.NewFromInt(7)))
	assert.Equal(t, 3, calls)
}

func TestRetryingClientGivesUpAfterAttempts(t *testing.T) {
	calls := 0
	inner := FuncClient{
		TestSwapFunc: func(ctx context.Context, source, target string, amount decimal.Decimal) (decimal.Decimal, error) {
			calls++
			return decimal.Zero, errors.New("node busy")
		},
	}
	client := NewRetryingClient(inner, RetryPolicy{Attempts: 2}, nil)

	_, err := client.TestSwap(context.Background(), "USDT", "BTC", decimal.NewFromInt(1))
	require.Error(t, err)
	assert.Equal(t, 2, calls)
}

func TestRetryingClientDoesNotRetryMissingTransaction(t *testing.T) {
	calls := 0
	inner := FuncClient{
		GetTransactionFunc: func(ctx context.Context, txID string) (Transaction, error) {
			calls++
			return Transaction{}, ErrTransactionNotFound
		},
	}
	client := NewRetryingClient(inner, RetryPolicy{Attempts: 5}, nil)

	_, err := client.GetTransaction(context.Background(), "tx")
	require.ErrorIs(t, err, ErrTransactionNotFound)
	assert.Equal(t, 1, calls)
}

func TestRetryingClientNeverRetriesBroadcasts(t *testing.T) {
	calls := 0
	inner := FuncClient{
		TransferManyFunc: func(ctx context.Context, from, asset string, outputs []TransferOutput) (string, error) {
			calls++
			return "", ErrBroadcastTimeout
		},
	}
	client := NewRetryingClient(inner, RetryPolicy{Attempts: 5}, rate.NewLimiter(rate.Inf, 1))

	_, err := client.TransferMany(context.Background(), "from", "DFI", nil)
	require.ErrorIs(t, err, ErrBroadcastTimeout)
	assert.True(t, IsIndeterminate(err))
	assert.Equal(t, 1, calls)
}

func TestFuncClientNotImplemented(t *testing.T) {
	_, err := FuncClient{}.SplitOutput(context.Background(), "addr", 2)
	require.ErrorIs(t, err, ErrNotImplemented)
}
