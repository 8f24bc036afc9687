package service

import (
	"strings"

	"github.com/ayo6706/liquidity-settlement/internal/domain"
)

// ParseContext converts a caller-supplied context name, rejecting unknown ones.
func ParseContext(value string) (domain.OrderContext, bool) {
	c := domain.OrderContext(strings.ToUpper(strings.TrimSpace(value)))
	return c, c.Valid()
}
