package ledger

import (
	"time"

	"gorm.io/gorm"
)

// Mint is a fungible token type. Supply tracks the total minted amount in the
// token's native smallest unit.
type Mint struct {
	gorm.Model `json:"-"`
	Address    string    `gorm:"uniqueIndex" json:"address"`
	Decimals   uint8     `json:"decimals"`
	Supply     uint64    `json:"supply"`
	Authority  string    `json:"authority"`
	CreatedAt  time.Time `json:"created_at"`
	UpdatedAt  time.Time `json:"updated_at"`
}

// TokenAccount is a per-(owner, mint) holding account. Balances are integers
// in the mint's smallest unit; they never go negative.
type TokenAccount struct {
	gorm.Model `json:"-"`
	Address    string    `gorm:"uniqueIndex" json:"address"`
	Owner      string    `gorm:"index" json:"owner"`
	Mint       string    `gorm:"index" json:"mint"`
	Balance    uint64    `json:"balance"`
	CreatedAt  time.Time `json:"created_at"`
	UpdatedAt  time.Time `json:"updated_at"`
}
