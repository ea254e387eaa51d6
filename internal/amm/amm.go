// Package amm hosts the liquidity-pool collaborator: a constant-product pool
// the swap settlement path routes through. Settlement treats it as a black
// box whose realized output is observable within the same transaction.
package amm

import (
	"crypto/rand"
	"errors"
	"fmt"
	"math/big"

	"github.com/gin-gonic/gin"
	"github.com/rs/zerolog/log"
	"gorm.io/gorm"

	"github.com/paydefi-inc/settlement-api/internal/accounts"
	"github.com/paydefi-inc/settlement-api/internal/ledger"
	"github.com/paydefi-inc/settlement-api/internal/types"
	"github.com/paydefi-inc/settlement-api/pkg/response"
)

const feeDenominator = 10000

var (
	ErrNotFound        = errors.New("pool not found")
	ErrDecode          = errors.New("pool layout decode failed")
	ErrPoolUnavailable = errors.New("pool unavailable")
)

type Service struct {
	db       *Database
	ledgerDB *ledger.Database
}

func NewService(gormDB *gorm.DB) *Service {
	return &Service{
		db:       NewDatabase(gormDB),
		ledgerDB: ledger.NewDatabase(gormDB),
	}
}

func (s *Service) GetDB() *Database {
	return s.db
}

// CreatePool registers a pool trading baseMint against quoteMint, derives its
// authority, vault and market accounts, and seeds the vault reserves.
func (s *Service) CreatePool(baseMint, quoteMint types.Address, baseReserve, quoteReserve uint64, swapFeeBps uint32) (*Pool, error) {
	logger := log.With().Str("service", "amm").Logger()

	if baseReserve == 0 || quoteReserve == 0 {
		return nil, fmt.Errorf("pool reserves must be positive")
	}
	if swapFeeBps >= feeDenominator {
		return nil, fmt.Errorf("swap fee must be below %d bps", feeDenominator)
	}

	var poolID types.Address
	if _, err := rand.Read(poolID[:]); err != nil {
		return nil, fmt.Errorf("failed to generate pool id: %w", err)
	}

	authority, _, err := accounts.DerivePoolAuthority(poolID)
	if err != nil {
		return nil, fmt.Errorf("failed to derive pool authority: %w", err)
	}

	pool := &Pool{
		PoolID:     poolID.Base58(),
		Version:    PoolLayoutVersion,
		Status:     StatusActive,
		BaseMint:   baseMint.Base58(),
		QuoteMint:  quoteMint.Base58(),
		Authority:  authority.Base58(),
		SwapFeeBps: swapFeeBps,
	}

	err = s.db.db.Transaction(func(tx *gorm.DB) error {
		ldb := s.ledgerDB.WithTx(tx)

		baseVault, err := s.createVault(ldb, authority, baseMint, baseReserve)
		if err != nil {
			return err
		}
		quoteVault, err := s.createVault(ldb, authority, quoteMint, quoteReserve)
		if err != nil {
			return err
		}
		pool.BaseVault = baseVault
		pool.QuoteVault = quoteVault

		marketAccounts, err := deriveMarketAccounts(poolID)
		if err != nil {
			return err
		}
		pool.OpenOrders = marketAccounts["open-orders"]
		pool.TargetOrders = marketAccounts["target-orders"]
		pool.MarketID = marketAccounts["market"]
		pool.MarketBids = marketAccounts["bids"]
		pool.MarketAsks = marketAccounts["asks"]
		pool.MarketEventQueue = marketAccounts["event-queue"]
		pool.MarketBaseVault = marketAccounts["market-base-vault"]
		pool.MarketQuoteVault = marketAccounts["market-quote-vault"]

		return s.db.WithTx(tx).CreatePool(pool)
	})
	if err != nil {
		logger.Error().Err(err).Msg("failed to create pool")
		return nil, err
	}

	logger.Info().
		Str("pool_id", pool.PoolID).
		Str("base_mint", pool.BaseMint).
		Str("quote_mint", pool.QuoteMint).
		Uint64("base_reserve", baseReserve).
		Uint64("quote_reserve", quoteReserve).
		Msg("pool created")
	return pool, nil
}

func (s *Service) createVault(ldb *ledger.Database, authority, mint types.Address, reserve uint64) (string, error) {
	address, _, err := accounts.DeriveHoldingAccount(authority, mint)
	if err != nil {
		return "", fmt.Errorf("failed to derive vault: %w", err)
	}
	vault := &ledger.TokenAccount{
		Address: address.Base58(),
		Owner:   authority.Base58(),
		Mint:    mint.Base58(),
	}
	if err := ldb.CreateTokenAccount(vault); err != nil {
		return "", err
	}
	if err := ldb.MintTo(vault.Address, reserve); err != nil {
		return "", err
	}
	return vault.Address, nil
}

func deriveMarketAccounts(poolID types.Address) (map[string]string, error) {
	out := make(map[string]string)
	for _, name := range []string{
		"open-orders", "target-orders", "market",
		"bids", "asks", "event-queue",
		"market-base-vault", "market-quote-vault",
	} {
		addr, _, err := accounts.DeriveMarketAccount(poolID, name)
		if err != nil {
			return nil, fmt.Errorf("failed to derive %s account: %w", name, err)
		}
		out[name] = addr.Base58()
	}
	return out, nil
}

// GetPoolKeys decodes a pool's stored layout into named fields, including the
// live vault reserves.
func (s *Service) GetPoolKeys(poolID string) (*PoolKeys, error) {
	return poolKeys(s.db, s.ledgerDB, poolID)
}

func poolKeys(db *Database, ldb *ledger.Database, poolID string) (*PoolKeys, error) {
	pool, err := db.GetPool(poolID)
	if err != nil {
		return nil, err
	}
	if pool.Version != PoolLayoutVersion {
		return nil, fmt.Errorf("%w: unsupported layout version %d", ErrDecode, pool.Version)
	}

	baseVault, err := ldb.GetTokenAccount(pool.BaseVault)
	if err != nil {
		return nil, fmt.Errorf("%w: base vault missing", ErrDecode)
	}
	quoteVault, err := ldb.GetTokenAccount(pool.QuoteVault)
	if err != nil {
		return nil, fmt.Errorf("%w: quote vault missing", ErrDecode)
	}

	return &PoolKeys{
		PoolID:           pool.PoolID,
		Status:           pool.Status,
		BaseMint:         pool.BaseMint,
		QuoteMint:        pool.QuoteMint,
		BaseVault:        pool.BaseVault,
		QuoteVault:       pool.QuoteVault,
		BaseReserve:      baseVault.Balance,
		QuoteReserve:     quoteVault.Balance,
		Authority:        pool.Authority,
		OpenOrders:       pool.OpenOrders,
		TargetOrders:     pool.TargetOrders,
		MarketID:         pool.MarketID,
		MarketBids:       pool.MarketBids,
		MarketAsks:       pool.MarketAsks,
		MarketEventQueue: pool.MarketEventQueue,
		MarketBaseVault:  pool.MarketBaseVault,
		MarketQuoteVault: pool.MarketQuoteVault,
		SwapFeeBps:       pool.SwapFeeBps,
	}, nil
}

// SwapBaseIn converts exactly amountIn from fromAta into the pool's other
// token, crediting toAta, all within the supplied transaction. Returns the
// realized output amount.
func SwapBaseIn(tx *gorm.DB, poolID, fromAddress, toAddress string, amountIn uint64) (uint64, error) {
	db := NewDatabase(tx)
	ldb := ledger.NewDatabase(tx)

	pool, err := db.GetPool(poolID)
	if err != nil {
		if errors.Is(err, ErrNotFound) {
			return 0, fmt.Errorf("%w: %s", ErrPoolUnavailable, poolID)
		}
		return 0, err
	}
	if pool.Status != StatusActive {
		return 0, fmt.Errorf("%w: status %s", ErrPoolUnavailable, pool.Status)
	}

	from, err := ldb.GetTokenAccount(fromAddress)
	if err != nil {
		return 0, err
	}

	var inVault, outVault string
	switch from.Mint {
	case pool.BaseMint:
		inVault, outVault = pool.BaseVault, pool.QuoteVault
	case pool.QuoteMint:
		inVault, outVault = pool.QuoteVault, pool.BaseVault
	default:
		return 0, fmt.Errorf("%w: pool does not trade %s", ErrPoolUnavailable, from.Mint)
	}

	in, err := ldb.GetTokenAccount(inVault)
	if err != nil {
		return 0, fmt.Errorf("%w: input vault missing", ErrPoolUnavailable)
	}
	out, err := ldb.GetTokenAccount(outVault)
	if err != nil {
		return 0, fmt.Errorf("%w: output vault missing", ErrPoolUnavailable)
	}

	amountOut := constantProductOut(amountIn, in.Balance, out.Balance, pool.SwapFeeBps)
	if amountOut == 0 {
		return 0, fmt.Errorf("%w: swap produces no output", ErrPoolUnavailable)
	}

	if err := ldb.Transfer(fromAddress, inVault, amountIn); err != nil {
		return 0, err
	}
	if err := ldb.Transfer(outVault, toAddress, amountOut); err != nil {
		return 0, err
	}
	return amountOut, nil
}

// constantProductOut prices amountIn against x*y=k reserves after deducting
// the pool fee from the input. Intermediate products exceed 64 bits, so the
// arithmetic runs through big.Int.
func constantProductOut(amountIn, reserveIn, reserveOut uint64, feeBps uint32) uint64 {
	bigIn := new(big.Int).SetUint64(amountIn)
	bigIn.Mul(bigIn, big.NewInt(int64(feeDenominator-feeBps)))
	bigIn.Div(bigIn, big.NewInt(feeDenominator))

	num := new(big.Int).Mul(new(big.Int).SetUint64(reserveOut), bigIn)
	den := new(big.Int).Add(new(big.Int).SetUint64(reserveIn), bigIn)
	if den.Sign() == 0 {
		return 0
	}
	return num.Div(num, den).Uint64()
}

// GinHandlers contains HTTP handlers for the pool endpoints.
type GinHandlers struct {
	service *Service
}

func NewGinHandlers(service *Service) *GinHandlers {
	return &GinHandlers{
		service: service,
	}
}

type createPoolRequest struct {
	BaseMint     string `json:"base_mint" binding:"required"`
	QuoteMint    string `json:"quote_mint" binding:"required"`
	BaseReserve  uint64 `json:"base_reserve" binding:"required"`
	QuoteReserve uint64 `json:"quote_reserve" binding:"required"`
	SwapFeeBps   uint32 `json:"swap_fee_bps"`
}

func (h *GinHandlers) CreatePoolHandler(defaultFeeBps uint32) gin.HandlerFunc {
	return func(c *gin.Context) {
		var req createPoolRequest
		if err := c.ShouldBindJSON(&req); err != nil {
			response.BadRequest(c, err.Error())
			return
		}

		baseMint, err := types.ParseAddress(req.BaseMint)
		if err != nil {
			response.BadRequest(c, "invalid base mint")
			return
		}
		quoteMint, err := types.ParseAddress(req.QuoteMint)
		if err != nil {
			response.BadRequest(c, "invalid quote mint")
			return
		}

		feeBps := req.SwapFeeBps
		if feeBps == 0 {
			feeBps = defaultFeeBps
		}

		pool, err := h.service.CreatePool(baseMint, quoteMint, req.BaseReserve, req.QuoteReserve, feeBps)
		response.Handle(c, pool, err)
	}
}

func (h *GinHandlers) GetPoolKeysHandler() gin.HandlerFunc {
	return func(c *gin.Context) {
		keys, err := h.service.GetPoolKeys(c.Param("pool_id"))
		switch {
		case errors.Is(err, ErrNotFound):
			response.NotFound(c, "pool not found")
		case errors.Is(err, ErrDecode):
			response.BadGateway(c, "pool layout decode failed")
		default:
			response.Handle(c, keys, err)
		}
	}
}
