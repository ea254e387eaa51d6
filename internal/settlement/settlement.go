package settlement

import (
	"errors"
	"fmt"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"
	"github.com/mr-tron/base58"
	"github.com/rs/zerolog/log"
	"gorm.io/gorm"

	"github.com/paydefi-inc/settlement-api/internal/amm"
	"github.com/paydefi-inc/settlement-api/internal/ledger"
	"github.com/paydefi-inc/settlement-api/internal/types"
	"github.com/paydefi-inc/settlement-api/pkg/response"
)

// EventPublisher receives settlement events after the transaction commits.
type EventPublisher interface {
	Publish(event types.SettlementEvent)
}

// Service is the payment settlement engine. Every settlement runs inside one
// database transaction: validate, move funds, write the consumed marker, and
// either everything commits or nothing does.
type Service struct {
	gormDB   *gorm.DB
	db       *Database
	policy   SplitPolicy
	treasury types.Address
	events   EventPublisher
}

func NewService(gormDB *gorm.DB, policy SplitPolicy, treasury types.Address, events EventPublisher) *Service {
	return &Service{
		gormDB:   gormDB,
		db:       NewDatabase(gormDB),
		policy:   policy,
		treasury: treasury,
		events:   events,
	}
}

func (s *Service) GetDB() *Database {
	return s.db
}

// TransferAccounts are the account references for a direct settlement.
type TransferAccounts struct {
	Payer       types.Address
	FromAta     string
	ToAta       string
	TreasuryAta string
}

// CompleteTransferPayment settles a same-token payment: the merchant receives
// exactly payment.PayOutAmount from the payer's holding account, and the
// difference up to payment.PayInAmount goes to the treasury as the fee.
func (s *Service) CompleteTransferPayment(payment types.Payment, accounts TransferAccounts, signature []byte) (*SettlementResponse, error) {
	logger := log.With().
		Str("order_id", payment.OrderID).
		Str("service", "settlement").
		Logger()

	logger.Info().
		Uint64("pay_in_amount", payment.PayInAmount).
		Uint64("pay_out_amount", payment.PayOutAmount).
		Msg("starting transfer settlement")

	if err := payment.VerifySignature(accounts.Payer, signature); err != nil {
		return nil, err
	}

	var receipt *Receipt
	err := s.gormDB.Transaction(func(tx *gorm.DB) error {
		sdb := s.db.WithTx(tx)
		ldb := ledger.NewDatabase(tx)

		if err := validateOrder(sdb, payment, time.Now()); err != nil {
			return err
		}
		if payment.PayInToken != payment.PayOutToken {
			return fmt.Errorf("%w: direct transfer requires matching pay-in and pay-out tokens", ErrAccountMismatch)
		}

		fromAta, err := ldb.GetTokenAccount(accounts.FromAta)
		if err != nil {
			return fmt.Errorf("failed to load payer account: %w", err)
		}
		toAta, err := ldb.GetTokenAccount(accounts.ToAta)
		if err != nil {
			return fmt.Errorf("failed to load merchant account: %w", err)
		}
		treasuryAta, err := ldb.GetTokenAccount(accounts.TreasuryAta)
		if err != nil {
			return fmt.Errorf("failed to load treasury account: %w", err)
		}

		if err := bindAccount(fromAta, "from_ata", accounts.Payer, payment.PayInToken); err != nil {
			return err
		}
		if err := bindAccount(toAta, "to_ata", payment.Merchant, payment.PayOutToken); err != nil {
			return err
		}
		if err := bindAccount(treasuryAta, "treasury_ata", s.treasury, payment.PayOutToken); err != nil {
			return err
		}

		merchantAmount, feeAmount, err := s.policy.Split(payment.PayInAmount, payment.PayOutAmount)
		if err != nil {
			return err
		}

		if feeAmount > 0 {
			if err := ldb.Transfer(fromAta.Address, treasuryAta.Address, feeAmount); err != nil {
				return err
			}
		}
		if err := ldb.Transfer(fromAta.Address, toAta.Address, merchantAmount); err != nil {
			return err
		}

		receipt = s.newReceipt(payment, accounts.Payer, KindTransfer, 0, merchantAmount, feeAmount)
		return sdb.CreateReceipt(receipt)
	})
	if err != nil {
		logger.Error().Err(err).Msg("transfer settlement failed")
		return nil, err
	}

	logger.Info().
		Str("receipt_id", receipt.ReceiptID).
		Uint64("fee_collected", receipt.FeeAmount).
		Msg("transfer settlement completed")

	s.publish(types.EventPaymentCompleted, receipt)
	return receipt.toResponse(), nil
}

// SplitTransferAccounts extend the direct settlement with up to eight fee
// receivers, each taking a basis-point share of the fee.
type SplitTransferAccounts struct {
	Payer        types.Address
	FromAta      string
	ToAta        string
	ReceiverAtas []string
	Shares       []uint32
}

// CompleteSplitTransferPayment settles a same-token payment and distributes
// the fee portion across the receiver accounts by basis points. Shares must
// sum exactly to the configured fee denominator.
func (s *Service) CompleteSplitTransferPayment(payment types.Payment, accounts SplitTransferAccounts, signature []byte) (*SettlementResponse, error) {
	logger := log.With().
		Str("order_id", payment.OrderID).
		Str("service", "settlement").
		Logger()

	logger.Info().
		Int("receivers", len(accounts.ReceiverAtas)).
		Msg("starting split-transfer settlement")

	if err := payment.VerifySignature(accounts.Payer, signature); err != nil {
		return nil, err
	}
	if len(accounts.ReceiverAtas) != len(accounts.Shares) {
		return nil, fmt.Errorf("%w: receiver and share counts differ", ErrInvalidSplit)
	}

	var receipt *Receipt
	err := s.gormDB.Transaction(func(tx *gorm.DB) error {
		sdb := s.db.WithTx(tx)
		ldb := ledger.NewDatabase(tx)

		if err := validateOrder(sdb, payment, time.Now()); err != nil {
			return err
		}
		if payment.PayInToken != payment.PayOutToken {
			return fmt.Errorf("%w: direct transfer requires matching pay-in and pay-out tokens", ErrAccountMismatch)
		}

		fromAta, err := ldb.GetTokenAccount(accounts.FromAta)
		if err != nil {
			return fmt.Errorf("failed to load payer account: %w", err)
		}
		toAta, err := ldb.GetTokenAccount(accounts.ToAta)
		if err != nil {
			return fmt.Errorf("failed to load merchant account: %w", err)
		}
		if err := bindAccount(fromAta, "from_ata", accounts.Payer, payment.PayInToken); err != nil {
			return err
		}
		if err := bindAccount(toAta, "to_ata", payment.Merchant, payment.PayOutToken); err != nil {
			return err
		}

		merchantAmount, feeAmount, err := s.policy.Split(payment.PayInAmount, payment.PayOutAmount)
		if err != nil {
			return err
		}

		var distributed uint64
		if feeAmount > 0 {
			shares, err := s.policy.DistributeFee(feeAmount, accounts.Shares)
			if err != nil {
				return err
			}
			for i, receiverAddress := range accounts.ReceiverAtas {
				if shares[i] == 0 {
					continue
				}
				receiverAta, err := ldb.GetTokenAccount(receiverAddress)
				if err != nil {
					return fmt.Errorf("failed to load fee receiver %d: %w", i+1, err)
				}
				if err := bindAccountMint(receiverAta, fmt.Sprintf("receiver_ata_%d", i+1), payment.PayOutToken); err != nil {
					return err
				}
				if err := ldb.Transfer(fromAta.Address, receiverAta.Address, shares[i]); err != nil {
					return err
				}
				distributed += shares[i]
			}
		}

		if err := ldb.Transfer(fromAta.Address, toAta.Address, merchantAmount); err != nil {
			return err
		}

		receipt = s.newReceipt(payment, accounts.Payer, KindSplitTransfer, 0, merchantAmount, distributed)
		receipt.Treasury = ""
		return sdb.CreateReceipt(receipt)
	})
	if err != nil {
		logger.Error().Err(err).Msg("split-transfer settlement failed")
		return nil, err
	}

	logger.Info().
		Str("receipt_id", receipt.ReceiptID).
		Uint64("fee_distributed", receipt.FeeAmount).
		Msg("split-transfer settlement completed")

	s.publish(types.EventSplitPaymentCompleted, receipt)
	return receipt.toResponse(), nil
}

// SwapAccounts are the account references for a swap settlement. ToAta is the
// payer's holding account for the pay-out token: swap proceeds land there
// before the merchant/treasury split, so the realized output can be read as a
// balance delta.
type SwapAccounts struct {
	Payer       types.Address
	FromAta     string
	ToAta       string
	MerchantAta string
	TreasuryAta string
	PoolID      string
}

// CompleteSwapPayment converts the payer's pay-in token into the pay-out
// token through the referenced pool, then splits the realized proceeds. The
// realized output is re-read from the destination balance rather than trusted
// from the order; if it falls short of payment.PayOutAmount the whole
// settlement rolls back with ErrSlippageExceeded.
func (s *Service) CompleteSwapPayment(payment types.Payment, accounts SwapAccounts, signature []byte) (*SettlementResponse, error) {
	logger := log.With().
		Str("order_id", payment.OrderID).
		Str("pool_id", accounts.PoolID).
		Str("service", "settlement").
		Logger()

	logger.Info().
		Uint64("pay_in_amount", payment.PayInAmount).
		Uint64("min_out", payment.PayOutAmount).
		Msg("starting swap settlement")

	if err := payment.VerifySignature(accounts.Payer, signature); err != nil {
		return nil, err
	}

	var receipt *Receipt
	err := s.gormDB.Transaction(func(tx *gorm.DB) error {
		sdb := s.db.WithTx(tx)
		ldb := ledger.NewDatabase(tx)

		if err := validateOrder(sdb, payment, time.Now()); err != nil {
			return err
		}
		if payment.PayInToken == payment.PayOutToken {
			return fmt.Errorf("%w: swap requires distinct pay-in and pay-out tokens", ErrAccountMismatch)
		}

		fromAta, err := ldb.GetTokenAccount(accounts.FromAta)
		if err != nil {
			return fmt.Errorf("failed to load payer input account: %w", err)
		}
		toAta, err := ldb.GetTokenAccount(accounts.ToAta)
		if err != nil {
			return fmt.Errorf("failed to load payer output account: %w", err)
		}
		merchantAta, err := ldb.GetTokenAccount(accounts.MerchantAta)
		if err != nil {
			return fmt.Errorf("failed to load merchant account: %w", err)
		}
		treasuryAta, err := ldb.GetTokenAccount(accounts.TreasuryAta)
		if err != nil {
			return fmt.Errorf("failed to load treasury account: %w", err)
		}

		if err := bindAccount(fromAta, "from_ata", accounts.Payer, payment.PayInToken); err != nil {
			return err
		}
		if err := bindAccount(toAta, "to_ata", accounts.Payer, payment.PayOutToken); err != nil {
			return err
		}
		if err := bindAccount(merchantAta, "merchant_ata", payment.Merchant, payment.PayOutToken); err != nil {
			return err
		}
		if err := bindAccount(treasuryAta, "treasury_ata", s.treasury, payment.PayOutToken); err != nil {
			return err
		}
		if fromAta.Balance < payment.PayInAmount {
			return ledger.ErrInsufficientFunds
		}

		// Two-phase read around the pool call: the realized output is the
		// destination balance delta, never the caller-supplied amount.
		balanceBefore := toAta.Balance
		if _, err := amm.SwapBaseIn(tx, accounts.PoolID, fromAta.Address, toAta.Address, payment.PayInAmount); err != nil {
			return err
		}
		toAta, err = ldb.GetTokenAccount(accounts.ToAta)
		if err != nil {
			return fmt.Errorf("failed to reload payer output account: %w", err)
		}
		realized := toAta.Balance - balanceBefore

		if realized < payment.PayOutAmount {
			return fmt.Errorf("%w: realized %d below minimum %d", ErrSlippageExceeded, realized, payment.PayOutAmount)
		}

		merchantAmount, feeAmount, err := s.policy.Split(realized, payment.PayOutAmount)
		if err != nil {
			return err
		}

		if err := ldb.Transfer(toAta.Address, treasuryAta.Address, feeAmount); err != nil {
			return err
		}
		if err := ldb.Transfer(toAta.Address, merchantAta.Address, merchantAmount); err != nil {
			return err
		}

		receipt = s.newReceipt(payment, accounts.Payer, KindSwap, realized, merchantAmount, feeAmount)
		return sdb.CreateReceipt(receipt)
	})
	if err != nil {
		logger.Error().Err(err).Msg("swap settlement failed")
		return nil, err
	}

	logger.Info().
		Str("receipt_id", receipt.ReceiptID).
		Uint64("realized_out", receipt.RealizedOut).
		Uint64("fee_collected", receipt.FeeAmount).
		Msg("swap settlement completed")

	s.publish(types.EventSwapPaymentCompleted, receipt)
	return receipt.toResponse(), nil
}

// GetReceipt retrieves the settlement outcome for an order id.
func (s *Service) GetReceipt(orderID string) (*SettlementResponse, error) {
	receipt, err := s.db.GetReceipt(orderID)
	if err != nil {
		return nil, err
	}
	return receipt.toResponse(), nil
}

func (s *Service) newReceipt(payment types.Payment, payer types.Address, kind string, realized, merchantAmount, feeAmount uint64) *Receipt {
	return &Receipt{
		ReceiptID:      "RCPT_" + uuid.New().String(),
		OrderID:        payment.OrderID,
		Kind:           kind,
		Payer:          payer.Base58(),
		Merchant:       payment.Merchant.Base58(),
		Treasury:       s.treasury.Base58(),
		PayInToken:     payment.PayInToken.Base58(),
		PayOutToken:    payment.PayOutToken.Base58(),
		PayInAmount:    payment.PayInAmount,
		PayOutAmount:   payment.PayOutAmount,
		RealizedOut:    realized,
		MerchantAmount: merchantAmount,
		FeeAmount:      feeAmount,
		CreatedAt:      time.Now(),
	}
}

func (s *Service) publish(kind string, receipt *Receipt) {
	if s.events == nil {
		return
	}
	s.events.Publish(types.SettlementEvent{
		Kind:         kind,
		OrderID:      receipt.OrderID,
		ReceiptID:    receipt.ReceiptID,
		PayInToken:   receipt.PayInToken,
		PayOutToken:  receipt.PayOutToken,
		PayInAmount:  receipt.PayInAmount,
		PayOutAmount: receipt.PayOutAmount,
		RealizedOut:  receipt.RealizedOut,
		FeeCollected: receipt.FeeAmount,
		Payer:        receipt.Payer,
		Merchant:     receipt.Merchant,
		Treasury:     receipt.Treasury,
		Timestamp:    receipt.CreatedAt,
	})
}

// GinHandlers contains HTTP handlers for the settlement endpoints.
type GinHandlers struct {
	service *Service
}

func NewGinHandlers(service *Service) *GinHandlers {
	return &GinHandlers{
		service: service,
	}
}

type paymentRequest struct {
	OrderID      string `json:"order_id" binding:"required"`
	PayInToken   string `json:"pay_in_token" binding:"required"`
	PayOutToken  string `json:"pay_out_token" binding:"required"`
	PayInAmount  uint64 `json:"pay_in_amount"`
	PayOutAmount uint64 `json:"pay_out_amount"`
	Merchant     string `json:"merchant" binding:"required"`
	Expiry       int64  `json:"expiry" binding:"required"`
}

func (r paymentRequest) toPayment() (types.Payment, error) {
	payInToken, err := types.ParseAddress(r.PayInToken)
	if err != nil {
		return types.Payment{}, fmt.Errorf("invalid pay_in_token: %w", err)
	}
	payOutToken, err := types.ParseAddress(r.PayOutToken)
	if err != nil {
		return types.Payment{}, fmt.Errorf("invalid pay_out_token: %w", err)
	}
	merchant, err := types.ParseAddress(r.Merchant)
	if err != nil {
		return types.Payment{}, fmt.Errorf("invalid merchant: %w", err)
	}
	return types.Payment{
		OrderID:      r.OrderID,
		PayInToken:   payInToken,
		PayOutToken:  payOutToken,
		PayInAmount:  r.PayInAmount,
		PayOutAmount: r.PayOutAmount,
		Merchant:     merchant,
		Expiry:       r.Expiry,
	}, nil
}

func parseSigner(payer, signature string) (types.Address, []byte, error) {
	addr, err := types.ParseAddress(payer)
	if err != nil {
		return types.Address{}, nil, fmt.Errorf("invalid payer: %w", err)
	}
	sig, err := base58.Decode(signature)
	if err != nil {
		return types.Address{}, nil, fmt.Errorf("invalid signature encoding: %w", err)
	}
	return addr, sig, nil
}

type completeTransferRequest struct {
	Payment     paymentRequest `json:"payment" binding:"required"`
	Payer       string         `json:"payer" binding:"required"`
	Signature   string         `json:"signature" binding:"required"`
	FromAta     string         `json:"from_ata" binding:"required"`
	ToAta       string         `json:"to_ata" binding:"required"`
	TreasuryAta string         `json:"treasury_ata" binding:"required"`
}

func (h *GinHandlers) CompleteTransferPaymentHandler() gin.HandlerFunc {
	return func(c *gin.Context) {
		var req completeTransferRequest
		if err := c.ShouldBindJSON(&req); err != nil {
			response.BadRequest(c, err.Error())
			return
		}

		payment, err := req.Payment.toPayment()
		if err != nil {
			response.BadRequest(c, err.Error())
			return
		}
		payer, sig, err := parseSigner(req.Payer, req.Signature)
		if err != nil {
			response.BadRequest(c, err.Error())
			return
		}

		result, err := h.service.CompleteTransferPayment(payment, TransferAccounts{
			Payer:       payer,
			FromAta:     req.FromAta,
			ToAta:       req.ToAta,
			TreasuryAta: req.TreasuryAta,
		}, sig)
		handleSettlementError(c, result, err)
	}
}

type feeReceiver struct {
	Ata      string `json:"ata" binding:"required"`
	ShareBps uint32 `json:"share_bps"`
}

type completeSplitTransferRequest struct {
	Payment   paymentRequest `json:"payment" binding:"required"`
	Payer     string         `json:"payer" binding:"required"`
	Signature string         `json:"signature" binding:"required"`
	FromAta   string         `json:"from_ata" binding:"required"`
	ToAta     string         `json:"to_ata" binding:"required"`
	Receivers []feeReceiver  `json:"receivers" binding:"required"`
}

func (h *GinHandlers) CompleteSplitTransferPaymentHandler() gin.HandlerFunc {
	return func(c *gin.Context) {
		var req completeSplitTransferRequest
		if err := c.ShouldBindJSON(&req); err != nil {
			response.BadRequest(c, err.Error())
			return
		}

		payment, err := req.Payment.toPayment()
		if err != nil {
			response.BadRequest(c, err.Error())
			return
		}
		payer, sig, err := parseSigner(req.Payer, req.Signature)
		if err != nil {
			response.BadRequest(c, err.Error())
			return
		}

		accounts := SplitTransferAccounts{
			Payer:   payer,
			FromAta: req.FromAta,
			ToAta:   req.ToAta,
		}
		for _, receiver := range req.Receivers {
			accounts.ReceiverAtas = append(accounts.ReceiverAtas, receiver.Ata)
			accounts.Shares = append(accounts.Shares, receiver.ShareBps)
		}

		result, err := h.service.CompleteSplitTransferPayment(payment, accounts, sig)
		handleSettlementError(c, result, err)
	}
}

type completeSwapRequest struct {
	Payment     paymentRequest `json:"payment" binding:"required"`
	Payer       string         `json:"payer" binding:"required"`
	Signature   string         `json:"signature" binding:"required"`
	FromAta     string         `json:"from_ata" binding:"required"`
	ToAta       string         `json:"to_ata" binding:"required"`
	MerchantAta string         `json:"merchant_ata" binding:"required"`
	TreasuryAta string         `json:"treasury_ata" binding:"required"`
	PoolID      string         `json:"pool_id" binding:"required"`
}

func (h *GinHandlers) CompleteSwapPaymentHandler() gin.HandlerFunc {
	return func(c *gin.Context) {
		var req completeSwapRequest
		if err := c.ShouldBindJSON(&req); err != nil {
			response.BadRequest(c, err.Error())
			return
		}

		payment, err := req.Payment.toPayment()
		if err != nil {
			response.BadRequest(c, err.Error())
			return
		}
		payer, sig, err := parseSigner(req.Payer, req.Signature)
		if err != nil {
			response.BadRequest(c, err.Error())
			return
		}

		result, err := h.service.CompleteSwapPayment(payment, SwapAccounts{
			Payer:       payer,
			FromAta:     req.FromAta,
			ToAta:       req.ToAta,
			MerchantAta: req.MerchantAta,
			TreasuryAta: req.TreasuryAta,
			PoolID:      req.PoolID,
		}, sig)
		handleSettlementError(c, result, err)
	}
}

func (h *GinHandlers) GetReceiptHandler() gin.HandlerFunc {
	return func(c *gin.Context) {
		receipt, err := h.service.GetReceipt(c.Param("order_id"))
		response.Handle(c, receipt, err)
	}
}

// handleSettlementError maps the settlement error taxonomy onto HTTP codes so
// clients can tell terminal failures (expired, consumed, slippage) from
// transient ones (pool unavailable).
func handleSettlementError(c *gin.Context, data interface{}, err error) {
	switch {
	case err == nil:
		response.Success(c, data)
	case errors.Is(err, types.ErrBadSignature):
		response.Unauthorized(c, err.Error())
	case errors.Is(err, ErrExpired):
		response.Gone(c, err.Error())
	case errors.Is(err, ErrOrderAlreadyConsumed):
		response.Conflict(c, err.Error())
	case errors.Is(err, ErrZeroAmount), errors.Is(err, ErrAccountMismatch):
		response.BadRequest(c, err.Error())
	case errors.Is(err, ErrSlippageExceeded),
		errors.Is(err, ErrInvalidSplit),
		errors.Is(err, ledger.ErrInsufficientFunds):
		response.UnprocessableEntity(c, err.Error())
	case errors.Is(err, ledger.ErrNotFound), errors.Is(err, amm.ErrNotFound):
		response.NotFound(c, err.Error())
	case errors.Is(err, amm.ErrPoolUnavailable), errors.Is(err, amm.ErrDecode):
		response.BadGateway(c, err.Error())
	default:
		response.Handle(c, data, err)
	}
}
