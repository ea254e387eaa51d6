package ledger

import (
	"crypto/rand"
	"errors"
	"fmt"

	"github.com/gin-gonic/gin"
	"github.com/rs/zerolog/log"
	"gorm.io/gorm"

	"github.com/paydefi-inc/settlement-api/internal/accounts"
	"github.com/paydefi-inc/settlement-api/internal/types"
	"github.com/paydefi-inc/settlement-api/pkg/response"
)

// Service exposes the token-ledger admin surface: mint creation, holding
// account creation and funding. Settlement itself talks to the Database
// directly inside its own transaction.
type Service struct {
	db *Database
}

func NewService(gormDB *gorm.DB) *Service {
	return &Service{
		db: NewDatabase(gormDB),
	}
}

func (s *Service) GetDB() *Database {
	return s.db
}

// CreateMint registers a token type. When address is the zero value a random
// one is generated.
func (s *Service) CreateMint(address types.Address, decimals uint8, authority types.Address) (*Mint, error) {
	logger := log.With().Str("service", "ledger").Logger()

	if address.IsZero() {
		if _, err := rand.Read(address[:]); err != nil {
			return nil, fmt.Errorf("failed to generate mint address: %w", err)
		}
	}

	mint := &Mint{
		Address:   address.Base58(),
		Decimals:  decimals,
		Authority: authority.Base58(),
	}
	if err := s.db.CreateMint(mint); err != nil {
		if errors.Is(err, gorm.ErrDuplicatedKey) {
			return s.db.GetMint(mint.Address)
		}
		logger.Error().Err(err).Str("mint", mint.Address).Msg("failed to create mint")
		return nil, err
	}

	logger.Info().Str("mint", mint.Address).Uint8("decimals", decimals).Msg("mint created")
	return mint, nil
}

// CreateHoldingAccount derives the deterministic holding account for
// (owner, mint) and creates it if absent. Calling it twice returns the same
// account.
func (s *Service) CreateHoldingAccount(owner, mint types.Address) (*TokenAccount, error) {
	if _, err := s.db.GetMint(mint.Base58()); err != nil {
		return nil, err
	}

	address, _, err := accounts.DeriveHoldingAccount(owner, mint)
	if err != nil {
		return nil, fmt.Errorf("failed to derive holding account: %w", err)
	}

	account := &TokenAccount{
		Address: address.Base58(),
		Owner:   owner.Base58(),
		Mint:    mint.Base58(),
	}
	if err := s.db.CreateTokenAccount(account); err != nil {
		if errors.Is(err, gorm.ErrDuplicatedKey) {
			return s.db.GetTokenAccount(account.Address)
		}
		return nil, err
	}

	log.Info().
		Str("service", "ledger").
		Str("account", account.Address).
		Str("owner", account.Owner).
		Str("mint", account.Mint).
		Msg("holding account created")
	return account, nil
}

// MintTo credits freshly minted tokens to a holding account.
func (s *Service) MintTo(accountAddress string, amount uint64) (*TokenAccount, error) {
	if err := s.db.MintTo(accountAddress, amount); err != nil {
		return nil, err
	}
	return s.db.GetTokenAccount(accountAddress)
}

// GetAccount returns a holding account by address.
func (s *Service) GetAccount(address string) (*TokenAccount, error) {
	return s.db.GetTokenAccount(address)
}

// GinHandlers contains HTTP handlers for the ledger admin endpoints.
type GinHandlers struct {
	service *Service
}

func NewGinHandlers(service *Service) *GinHandlers {
	return &GinHandlers{
		service: service,
	}
}

type createMintRequest struct {
	Address   string `json:"address"`
	Decimals  uint8  `json:"decimals"`
	Authority string `json:"authority" binding:"required"`
}

func (h *GinHandlers) CreateMintHandler() gin.HandlerFunc {
	return func(c *gin.Context) {
		var req createMintRequest
		if err := c.ShouldBindJSON(&req); err != nil {
			response.BadRequest(c, err.Error())
			return
		}

		var address types.Address
		if req.Address != "" {
			parsed, err := types.ParseAddress(req.Address)
			if err != nil {
				response.BadRequest(c, "invalid mint address")
				return
			}
			address = parsed
		}
		authority, err := types.ParseAddress(req.Authority)
		if err != nil {
			response.BadRequest(c, "invalid authority address")
			return
		}

		mint, err := h.service.CreateMint(address, req.Decimals, authority)
		response.Handle(c, mint, err)
	}
}

type createAccountRequest struct {
	Owner string `json:"owner" binding:"required"`
	Mint  string `json:"mint" binding:"required"`
}

func (h *GinHandlers) CreateAccountHandler() gin.HandlerFunc {
	return func(c *gin.Context) {
		var req createAccountRequest
		if err := c.ShouldBindJSON(&req); err != nil {
			response.BadRequest(c, err.Error())
			return
		}

		owner, err := types.ParseAddress(req.Owner)
		if err != nil {
			response.BadRequest(c, "invalid owner address")
			return
		}
		mint, err := types.ParseAddress(req.Mint)
		if err != nil {
			response.BadRequest(c, "invalid mint address")
			return
		}

		account, err := h.service.CreateHoldingAccount(owner, mint)
		response.Handle(c, account, err)
	}
}

type mintToRequest struct {
	Account string `json:"account" binding:"required"`
	Amount  uint64 `json:"amount" binding:"required"`
}

func (h *GinHandlers) MintToHandler() gin.HandlerFunc {
	return func(c *gin.Context) {
		var req mintToRequest
		if err := c.ShouldBindJSON(&req); err != nil {
			response.BadRequest(c, err.Error())
			return
		}

		account, err := h.service.MintTo(req.Account, req.Amount)
		response.Handle(c, account, err)
	}
}

func (h *GinHandlers) GetAccountHandler() gin.HandlerFunc {
	return func(c *gin.Context) {
		account, err := h.service.GetAccount(c.Param("address"))
		if errors.Is(err, ErrNotFound) {
			response.NotFound(c, "account not found")
			return
		}
		response.Handle(c, account, err)
	}
}
