package amm

import (
	"time"

	"gorm.io/gorm"
)

const (
	PoolLayoutVersion = 4

	StatusActive   = "ACTIVE"
	StatusDisabled = "DISABLED"
)

// Pool is the stored layout of a liquidity pool. Vaults are ordinary ledger
// token accounts owned by the pool authority; the market fields reference the
// order-book accounts a swap call carries alongside the pool.
type Pool struct {
	gorm.Model       `json:"-"`
	PoolID           string    `gorm:"uniqueIndex" json:"pool_id"`
	Version          int       `json:"version"`
	Status           string    `json:"status"` // ACTIVE, DISABLED
	BaseMint         string    `json:"base_mint"`
	QuoteMint        string    `json:"quote_mint"`
	BaseVault        string    `json:"base_vault"`
	QuoteVault       string    `json:"quote_vault"`
	Authority        string    `json:"authority"`
	OpenOrders       string    `json:"open_orders"`
	TargetOrders     string    `json:"target_orders"`
	MarketID         string    `json:"market_id"`
	MarketBids       string    `json:"market_bids"`
	MarketAsks       string    `json:"market_asks"`
	MarketEventQueue string    `json:"market_event_queue"`
	MarketBaseVault  string    `json:"market_base_vault"`
	MarketQuoteVault string    `json:"market_quote_vault"`
	SwapFeeBps       uint32    `json:"swap_fee_bps"`
	CreatedAt        time.Time `json:"created_at"`
	UpdatedAt        time.Time `json:"updated_at"`
}

// PoolKeys is the decoded, named view of a pool and its market accounts, the
// shape swap callers pass around.
type PoolKeys struct {
	PoolID           string `json:"pool_id"`
	Status           string `json:"status"`
	BaseMint         string `json:"base_mint"`
	QuoteMint        string `json:"quote_mint"`
	BaseVault        string `json:"base_vault"`
	QuoteVault       string `json:"quote_vault"`
	BaseReserve      uint64 `json:"base_reserve"`
	QuoteReserve     uint64 `json:"quote_reserve"`
	Authority        string `json:"authority"`
	OpenOrders       string `json:"open_orders"`
	TargetOrders     string `json:"target_orders"`
	MarketID         string `json:"market_id"`
	MarketBids       string `json:"market_bids"`
	MarketAsks       string `json:"market_asks"`
	MarketEventQueue string `json:"market_event_queue"`
	MarketBaseVault  string `json:"market_base_vault"`
	MarketQuoteVault string `json:"market_quote_vault"`
	SwapFeeBps       uint32 `json:"swap_fee_bps"`
}
