package service

import (
	"fmt"

	"github.com/ayo6706/liquidity-settlement/internal/domain"
	"github.com/ayo6706/liquidity-settlement/internal/models"
)

var payoutTransitions = map[domain.PayoutStatus]map[domain.PayoutStatus]struct{}{
	domain.PayoutStatusCreated: {
		domain.PayoutStatusPreparationPending:   {},
		domain.PayoutStatusPreparationConfirmed: {},
		domain.PayoutStatusFailed:               {},
	},
	domain.PayoutStatusPreparationPending: {
		domain.PayoutStatusCreated:              {},
		domain.PayoutStatusPreparationConfirmed: {},
		domain.PayoutStatusFailed:               {},
	},
	domain.PayoutStatusPreparationConfirmed: {
		domain.PayoutStatusDesignated: {},
		domain.PayoutStatusFailed:     {},
	},
	domain.PayoutStatusDesignated: {
		domain.PayoutStatusPending:              {},
		domain.PayoutStatusPreparationConfirmed: {},
		domain.PayoutStatusFailed:               {},
	},
	domain.PayoutStatusPending: {
		domain.PayoutStatusConfirmed: {},
		domain.PayoutStatusFailed:    {},
	},
	domain.PayoutStatusConfirmed: {},
	domain.PayoutStatusFailed:    {},
}

func canTransitionPayout(current, next domain.PayoutStatus) bool {
	nextStates, ok := payoutTransitions[current]
	if !ok {
		return false
	}
	_, ok = nextStates[next]
	return ok
}

// transitionPayout moves the in-memory order to next, rejecting moves the
// state machine does not allow.
func transitionPayout(order *models.PayoutOrder, next domain.PayoutStatus) error {
	if order.Status == next {
		return nil
	}
	if !canTransitionPayout(order.Status, next) {
		return fmt.Errorf("payout order %s %s -> %s: %w", order.Key(), order.Status, next, models.ErrInvalidPayoutTransition)
	}
	order.Status = next
	return nil
}
