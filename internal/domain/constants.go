package domain

// OrderContext identifies the subsystem that requested liquidity or a payout.
type OrderContext string

const (
	ContextBuyCrypto           OrderContext = "BUY_CRYPTO"
	ContextBuyFiat             OrderContext = "BUY_FIAT"
	ContextStakingReward       OrderContext = "STAKING_REWARD"
	ContextStakingRefund       OrderContext = "STAKING_REFUND"
	ContextRefPayout           OrderContext = "REF_PAYOUT"
	ContextLiquidityManagement OrderContext = "LIQUIDITY_MANAGEMENT"
	// ContextPoolPair tags orders derived from a pool-pair purchase.
	ContextPoolPair OrderContext = "POOL_PAIR"
)

var knownContexts = map[OrderContext]struct{}{
	ContextBuyCrypto:           {},
	ContextBuyFiat:             {},
	ContextStakingReward:       {},
	ContextStakingRefund:       {},
	ContextRefPayout:           {},
	ContextLiquidityManagement: {},
	ContextPoolPair:            {},
}

// Valid reports whether c is a known order context.
func (c OrderContext) Valid() bool {
	_, ok := knownContexts[c]
	return ok
}

type LiquidityOrderType string

const (
	LiquidityOrderPurchase    LiquidityOrderType = "PURCHASE"
	LiquidityOrderReservation LiquidityOrderType = "RESERVATION"
	LiquidityOrderSale        LiquidityOrderType = "SALE"
)

type PayoutStatus string

const (
	PayoutStatusCreated              PayoutStatus = "CREATED"
	PayoutStatusPreparationPending   PayoutStatus = "PREPARATION_PENDING"
	PayoutStatusPreparationConfirmed PayoutStatus = "PREPARATION_CONFIRMED"
	PayoutStatusDesignated           PayoutStatus = "PAYOUT_DESIGNATED"
	PayoutStatusPending              PayoutStatus = "PAYOUT_PENDING"
	PayoutStatusConfirmed            PayoutStatus = "PAYOUT_CONFIRMED"
	PayoutStatusFailed               PayoutStatus = "FAILED"
)

type AssetType string

const (
	AssetTypeCoin  AssetType = "COIN"
	AssetTypeToken AssetType = "TOKEN"
)

type AssetCategory string

const (
	AssetCategoryCrypto   AssetCategory = "CRYPTO"
	AssetCategoryStock    AssetCategory = "STOCK"
	AssetCategoryPoolPair AssetCategory = "POOL_PAIR"
)

type Blockchain string

const (
	BlockchainDeFiChain Blockchain = "DEFICHAIN"
	BlockchainBitcoin   Blockchain = "BITCOIN"
)

// Setting keys read from the settings collaborator. A missing key means off.
const (
	SettingSlippageProtection     = "slippage-protection"
	SettingPurchasePoolPair       = "purchase-poolpair-liquidity"
	SettingCheckMinUtxoOnPayout   = "check-min-utxo-on-payout"
	SettingRetryPayoutWithoutTxID = "retry-payout-when-no-transaction-id"
)
