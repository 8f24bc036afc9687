package service

import (
	"fmt"
	"math/rand"
	"testing"

	"github.com/ayo6706/liquidity-settlement/internal/models"
	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func groupOrder(asset, address, amount string) models.PayoutOrder {
	return models.PayoutOrder{ID: uuid.New(), Asset: asset, DestinationAddress: address, Amount: dec(amount)}
}

func distinctAddresses(group []models.PayoutOrder) int {
	seen := make(map[string]struct{})
	for _, order := range group {
		seen[order.DestinationAddress] = struct{}{}
	}
	return len(seen)
}

func TestCreatePayoutGroups(t *testing.T) {
	t.Run("distinct_addresses", func(t *testing.T) {
		var orders []models.PayoutOrder
		for i := 0; i < 5; i++ {
			orders = append(orders, groupOrder("DFI", fmt.Sprintf("addr-%d", i), "1"))
		}
		groups, err := createPayoutGroups(orders, 2)
		require.NoError(t, err)
		require.Len(t, groups, 3)
		assert.Len(t, groups[0], 2)
		assert.Len(t, groups[1], 2)
		assert.Len(t, groups[2], 1)
	})

	t.Run("repeated_address_joins_its_group", func(t *testing.T) {
		orders := []models.PayoutOrder{
			groupOrder("DFI", "a", "1"),
			groupOrder("DFI", "b", "1"),
			groupOrder("DFI", "a", "2"),
			groupOrder("DFI", "c", "1"),
		}
		groups, err := createPayoutGroups(orders, 2)
		require.NoError(t, err)
		require.Len(t, groups, 2)
		assert.Len(t, groups[0], 3)
		assert.Equal(t, "c", groups[1][0].DestinationAddress)
	})

	t.Run("empty", func(t *testing.T) {
		groups, err := createPayoutGroups(nil, 10)
		require.NoError(t, err)
		assert.Empty(t, groups)
	})

	t.Run("invalid_size", func(t *testing.T) {
		_, err := createPayoutGroups([]models.PayoutOrder{groupOrder("DFI", "a", "1")}, 0)
		require.ErrorIs(t, err, errInvalidGroupSize)
	})

	t.Run("mixed_assets", func(t *testing.T) {
		_, err := createPayoutGroups([]models.PayoutOrder{
			groupOrder("DFI", "a", "1"),
			groupOrder("USDT", "b", "1"),
		}, 10)
		require.Error(t, err)
	})
}

func TestCreatePayoutGroupsProperties(t *testing.T) {
	rng := rand.New(rand.NewSource(42))
	for round := 0; round < 50; round++ {
		size := 1 + rng.Intn(10)
		pool := 1 + rng.Intn(40)
		var orders []models.PayoutOrder
		used := make(map[string]struct{})
		for i := 0; i < 1+rng.Intn(120); i++ {
			address := fmt.Sprintf("addr-%d", rng.Intn(pool))
			used[address] = struct{}{}
			orders = append(orders, groupOrder("DFI", address, "1"))
		}

		groups, err := createPayoutGroups(orders, size)
		require.NoError(t, err)

		total := 0
		owner := make(map[string]int)
		for i, group := range groups {
			assert.LessOrEqual(t, distinctAddresses(group), size)
			total += len(group)
			for _, order := range group {
				if g, ok := owner[order.DestinationAddress]; ok {
					assert.Equal(t, g, i, "address %s split across groups", order.DestinationAddress)
				}
				owner[order.DestinationAddress] = i
			}
		}
		assert.Equal(t, len(orders), total)
		assert.Len(t, groups, (len(used)+size-1)/size)
	}
}

func TestAggregatePayout(t *testing.T) {
	group := []models.PayoutOrder{
		groupOrder("DFI", "b", "0.5"),
		groupOrder("DFI", "a", "1.123456789"),
		groupOrder("DFI", "a", "2"),
	}

	outputs := aggregatePayout(group)
	require.Len(t, outputs, 2)
	assert.Equal(t, "a", outputs[0].Address)
	requireDecimal(t, "3.12345679", outputs[0].Amount)
	assert.Equal(t, "b", outputs[1].Address)
	requireDecimal(t, "0.5", outputs[1].Amount)

	assert.Equal(t, outputs, aggregatePayout(group))
}
