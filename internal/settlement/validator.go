package settlement

import (
	"fmt"
	"time"

	"github.com/paydefi-inc/settlement-api/internal/ledger"
	"github.com/paydefi-inc/settlement-api/internal/types"
)

// validateOrder runs the read-only order checks shared by every settlement
// path: positive amounts, unexpired, not yet consumed. It never writes; the
// consumed marker itself is written after fund movement, so a failed transfer
// cannot leave a marker behind.
func validateOrder(db *Database, payment types.Payment, now time.Time) error {
	if payment.PayInAmount == 0 || payment.PayOutAmount == 0 {
		return ErrZeroAmount
	}
	if now.Unix() > payment.Expiry {
		return ErrExpired
	}

	consumed, err := db.ReceiptExists(payment.OrderID)
	if err != nil {
		return fmt.Errorf("failed to check consumed marker: %w", err)
	}
	if consumed {
		return ErrOrderAlreadyConsumed
	}
	return nil
}

// bindAccount checks that a supplied token account belongs to the expected
// owner and holds the expected token.
func bindAccount(account *ledger.TokenAccount, name string, owner, mint types.Address) error {
	if account.Owner != owner.Base58() {
		return fmt.Errorf("%w: %s is not owned by %s", ErrAccountMismatch, name, owner)
	}
	return bindAccountMint(account, name, mint)
}

// bindAccountMint checks only the token type, for accounts whose owner the
// order does not constrain (split-transfer fee receivers).
func bindAccountMint(account *ledger.TokenAccount, name string, mint types.Address) error {
	if account.Mint != mint.Base58() {
		return fmt.Errorf("%w: %s does not hold %s", ErrAccountMismatch, name, mint)
	}
	return nil
}
