package settlement

import (
	"errors"

	"gorm.io/gorm"
)

type Database struct {
	db *gorm.DB
}

func NewDatabase(db *gorm.DB) *Database {
	return &Database{db: db}
}

// WithTx returns a Database bound to the given transaction.
func (d *Database) WithTx(tx *gorm.DB) *Database {
	return &Database{db: tx}
}

// CreateReceipt inserts the consumed marker. The unique constraint on
// order_id arbitrates concurrent submissions of the same order: exactly one
// insert succeeds, the rest observe ErrOrderAlreadyConsumed.
func (d *Database) CreateReceipt(receipt *Receipt) error {
	if err := d.db.Create(receipt).Error; err != nil {
		if errors.Is(err, gorm.ErrDuplicatedKey) {
			return ErrOrderAlreadyConsumed
		}
		return err
	}
	return nil
}

// GetReceipt returns the settlement receipt for an order id.
func (d *Database) GetReceipt(orderID string) (*Receipt, error) {
	var receipt Receipt
	if err := d.db.Where("order_id = ?", orderID).First(&receipt).Error; err != nil {
		return nil, err
	}
	return &receipt, nil
}

// ReceiptExists reports whether an order id has already been consumed.
func (d *Database) ReceiptExists(orderID string) (bool, error) {
	var count int64
	if err := d.db.Model(&Receipt{}).Where("order_id = ?", orderID).Count(&count).Error; err != nil {
		return false, err
	}
	return count > 0, nil
}
