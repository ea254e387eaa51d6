package database

import (
	"gorm.io/driver/sqlite"
	"gorm.io/gorm"
	"gorm.io/gorm/logger"

	"github.com/paydefi-inc/settlement-api/internal/amm"
	"github.com/paydefi-inc/settlement-api/internal/ledger"
	"github.com/paydefi-inc/settlement-api/internal/settlement"
)

// NewDatabase opens the sqlite store at path and migrates all schemas.
// TranslateError is required: the settlement receipt's replay guard relies on
// unique constraint violations surfacing as gorm.ErrDuplicatedKey.
func NewDatabase(path string) (*gorm.DB, error) {
	db, err := gorm.Open(sqlite.Open(path), &gorm.Config{
		TranslateError: true,
		Logger:         logger.Default.LogMode(logger.Silent),
	})
	if err != nil {
		return nil, err
	}

	err = db.AutoMigrate(
		&ledger.Mint{},
		&ledger.TokenAccount{},
		&amm.Pool{},
		&settlement.Receipt{},
	)
	if err != nil {
		return nil, err
	}

	return db, nil
}
