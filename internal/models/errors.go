package models

import "errors"

var (
	ErrNotEnoughLiquidity      = errors.New("not enough liquidity")
	ErrPriceSlippage           = errors.New("price slippage detected")
	ErrLiquidityOrderNotReady  = errors.New("liquidity order not ready")
	ErrLiquidityOrderNotFound  = errors.New("liquidity order not found")
	ErrTransferNotRequired     = errors.New("transfer not required")
	ErrIndeterminateBroadcast  = errors.New("broadcast outcome unknown")
	ErrPayoutOrderNotFound     = errors.New("payout order not found")
	ErrInvalidPayoutTransition = errors.New("invalid payout status transition")
	ErrAssetNotFound           = errors.New("asset not found")
	ErrInvalidRequest          = errors.New("invalid request")
)
