package domain

import (
	"testing"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
)

func TestRound8(t *testing.T) {
	d := decimal.RequireFromString("1.123456789")
	assert.Equal(t, "1.12345679", Round8(d).String())
}

func TestProrate(t *testing.T) {
	fee := decimal.RequireFromString("0.0003")
	total := decimal.NewFromInt(3)

	share := Prorate(fee, decimal.NewFromInt(1), total)
	assert.Equal(t, "0.0001", share.String())

	assert.True(t, Prorate(fee, decimal.NewFromInt(1), decimal.Zero).IsZero())
}

func TestMaxPrice(t *testing.T) {
	price := MaxPrice(decimal.NewFromInt(2), decimal.RequireFromString("0.01"))
	assert.Equal(t, "2.02", price.String())
}

func TestIsSlippageDetected(t *testing.T) {
	ref := decimal.NewFromInt(2)
	slippage := decimal.RequireFromString("0.01")
	source := decimal.NewFromInt(100)

	cases := []struct {
		name     string
		target   string
		detected bool
	}{
		{name: "below_minimal_target", target: "49", detected: true},
		{name: "just_below_boundary", target: "49.504", detected: true},
		{name: "above_boundary", target: "49.51", detected: false},
		{name: "ideal_price", target: "50", detected: false},
		{name: "dust_amount", target: "0.000001", detected: false},
		{name: "zero_target", target: "0", detected: false},
	}

	for _, tc := range cases {
		tc := tc
		t.Run(tc.name, func(t *testing.T) {
			got := IsSlippageDetected(ref, slippage, source, decimal.RequireFromString(tc.target))
			assert.Equal(t, tc.detected, got)
		})
	}
}
