package service

import (
	"errors"
	"fmt"
	"sort"

	"github.com/ayo6706/liquidity-settlement/internal/chain"
	"github.com/ayo6706/liquidity-settlement/internal/domain"
	"github.com/ayo6706/liquidity-settlement/internal/models"
	"github.com/shopspring/decimal"
)

var errInvalidGroupSize = errors.New("payout group size must be positive")

// createPayoutGroups packs orders into groups of at most maxAddresses distinct
// destination addresses. Each order goes to the first group that already pays
// its address or still has room for another one.
func createPayoutGroups(orders []models.PayoutOrder, maxAddresses int) ([][]models.PayoutOrder, error) {
	if maxAddresses <= 0 {
		return nil, errInvalidGroupSize
	}
	if len(orders) == 0 {
		return nil, nil
	}

	asset := orders[0].Asset
	var groups [][]models.PayoutOrder
	var addresses []map[string]struct{}
	for _, order := range orders {
		if order.Asset != asset {
			return nil, fmt.Errorf("cannot group payouts of %s with %s", asset, order.Asset)
		}
		placed := false
		for i := range groups {
			_, known := addresses[i][order.DestinationAddress]
			if !known && len(addresses[i]) >= maxAddresses {
				continue
			}
			groups[i] = append(groups[i], order)
			addresses[i][order.DestinationAddress] = struct{}{}
			placed = true
			break
		}
		if !placed {
			groups = append(groups, []models.PayoutOrder{order})
			addresses = append(addresses, map[string]struct{}{order.DestinationAddress: {}})
		}
	}
	return groups, nil
}

// aggregatePayout sums the group's amounts per destination address. Outputs
// are ordered by address so the same group always yields the same payout.
func aggregatePayout(group []models.PayoutOrder) []chain.TransferOutput {
	totals := make(map[string]decimal.Decimal)
	for _, order := range group {
		totals[order.DestinationAddress] = totals[order.DestinationAddress].Add(order.Amount)
	}
	outputs := make([]chain.TransferOutput, 0, len(totals))
	for address, amount := range totals {
		outputs = append(outputs, chain.TransferOutput{Address: address, Amount: domain.Round8(amount)})
	}
	sort.Slice(outputs, func(i, j int) bool { return outputs[i].Address < outputs[j].Address })
	return outputs
}
