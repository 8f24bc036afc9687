package lock

import (
	"context"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestMemoryLockerExclusive(t *testing.T) {
	l := NewMemoryLocker()
	ctx := context.Background()

	release, ok, err := l.TryAcquire(ctx, "payout", time.Minute)
	require.NoError(t, err)
	require.True(t, ok)

	_, ok, err = l.TryAcquire(ctx, "payout", time.Minute)
	require.NoError(t, err)
	assert.False(t, ok)

	_, ok, err = l.TryAcquire(ctx, "utxo", time.Minute)
	require.NoError(t, err)
	assert.True(t, ok)

	release()
	release()
	_, ok, err = l.TryAcquire(ctx, "payout", time.Minute)
	require.NoError(t, err)
	assert.True(t, ok)
}

func TestMemoryLockerExpires(t *testing.T) {
	now := time.Unix(1_700_000_000, 0)
	l := NewMemoryLocker()
	l.now = func() time.Time { return now }
	ctx := context.Background()

	staleRelease, ok, err := l.TryAcquire(ctx, "liquidity", 30*time.Second)
	require.NoError(t, err)
	require.True(t, ok)

	now = now.Add(31 * time.Second)
	_, ok, err = l.TryAcquire(ctx, "liquidity", 30*time.Second)
	require.NoError(t, err)
	require.True(t, ok)

	// The expired holder must not release the new holder's lock.
	staleRelease()
	_, ok, err = l.TryAcquire(ctx, "liquidity", 30*time.Second)
	require.NoError(t, err)
	assert.False(t, ok)
}

func TestMemoryLockerSingleWinner(t *testing.T) {
	l := NewMemoryLocker()
	ctx := context.Background()

	var wg sync.WaitGroup
	var mu sync.Mutex
	winners := 0
	for i := 0; i < 20; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			if _, ok, _ := l.TryAcquire(ctx, "job", time.Minute); ok {
				mu.Lock()
				winners++
				mu.Unlock()
			}
		}()
	}
	wg.Wait()
	assert.Equal(t, 1, winners)
}
