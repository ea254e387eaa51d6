package ledger

import (
	"errors"
	"fmt"
	"time"

	"gorm.io/gorm"
)

var (
	ErrInsufficientFunds = errors.New("insufficient funds")
	ErrMintMismatch      = errors.New("transfer between accounts of different mints")
	ErrNotFound          = errors.New("account not found")
)

type Database struct {
	db *gorm.DB
}

func NewDatabase(db *gorm.DB) *Database {
	return &Database{db: db}
}

// WithTx returns a Database bound to the given transaction, so fund movements
// can participate in a caller-owned atomic commit.
func (d *Database) WithTx(tx *gorm.DB) *Database {
	return &Database{db: tx}
}

func (d *Database) CreateMint(mint *Mint) error {
	return d.db.Create(mint).Error
}

func (d *Database) GetMint(address string) (*Mint, error) {
	var mint Mint
	if err := d.db.Where("address = ?", address).First(&mint).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, ErrNotFound
		}
		return nil, err
	}
	return &mint, nil
}

func (d *Database) CreateTokenAccount(account *TokenAccount) error {
	return d.db.Create(account).Error
}

func (d *Database) GetTokenAccount(address string) (*TokenAccount, error) {
	var account TokenAccount
	if err := d.db.Where("address = ?", address).First(&account).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, ErrNotFound
		}
		return nil, err
	}
	return &account, nil
}

func (d *Database) GetTokenAccountByOwnerAndMint(owner, mint string) (*TokenAccount, error) {
	var account TokenAccount
	if err := d.db.Where("owner = ? AND mint = ?", owner, mint).First(&account).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, ErrNotFound
		}
		return nil, err
	}
	return &account, nil
}

// Transfer debits from and credits to by exactly amount. Both accounts must
// hold the same mint. A zero-amount transfer is a no-op, as is a self-transfer:
// writing debit and credit to the same row would let the second write clobber
// the first and change the balance.
func (d *Database) Transfer(fromAddress, toAddress string, amount uint64) error {
	if amount == 0 {
		return nil
	}

	from, err := d.GetTokenAccount(fromAddress)
	if err != nil {
		return fmt.Errorf("failed to load source account: %w", err)
	}
	if from.Balance < amount {
		return ErrInsufficientFunds
	}
	if fromAddress == toAddress {
		return nil
	}

	to, err := d.GetTokenAccount(toAddress)
	if err != nil {
		return fmt.Errorf("failed to load destination account: %w", err)
	}

	if from.Mint != to.Mint {
		return ErrMintMismatch
	}

	if err := d.setBalance(from.Address, from.Balance-amount); err != nil {
		return err
	}
	return d.setBalance(to.Address, to.Balance+amount)
}

// MintTo credits amount to the account and bumps the mint's supply.
func (d *Database) MintTo(accountAddress string, amount uint64) error {
	account, err := d.GetTokenAccount(accountAddress)
	if err != nil {
		return err
	}
	mint, err := d.GetMint(account.Mint)
	if err != nil {
		return err
	}

	if err := d.setBalance(account.Address, account.Balance+amount); err != nil {
		return err
	}

	result := d.db.Model(&Mint{}).
		Where("address = ?", mint.Address).
		Updates(map[string]interface{}{
			"supply":     mint.Supply + amount,
			"updated_at": time.Now(),
		})
	return result.Error
}

func (d *Database) setBalance(address string, balance uint64) error {
	result := d.db.Model(&TokenAccount{}).
		Where("address = ?", address).
		Updates(map[string]interface{}{
			"balance":    balance,
			"updated_at": time.Now(),
		})
	if result.Error != nil {
		return result.Error
	}
	if result.RowsAffected == 0 {
		return ErrNotFound
	}
	return nil
}
