package settlement

import (
	"crypto/ed25519"
	"crypto/rand"
	"errors"
	"testing"
	"time"

	"gorm.io/driver/sqlite"
	"gorm.io/gorm"
	"gorm.io/gorm/logger"

	"github.com/paydefi-inc/settlement-api/internal/amm"
	"github.com/paydefi-inc/settlement-api/internal/ledger"
	"github.com/paydefi-inc/settlement-api/internal/types"
)

// capturingPublisher records published events for assertions.
type capturingPublisher struct {
	events []types.SettlementEvent
}

func (p *capturingPublisher) Publish(event types.SettlementEvent) {
	p.events = append(p.events, event)
}

type testEnv struct {
	gormDB    *gorm.DB
	ledgerDB  *ledger.Database
	service   *Service
	publisher *capturingPublisher

	payer      types.Address
	payerKey   ed25519.PrivateKey
	merchant   types.Address
	treasury   types.Address
	tokenA     types.Address
	tokenB     types.Address
}

func newTestEnv(t *testing.T) *testEnv {
	t.Helper()

	gormDB, err := gorm.Open(sqlite.Open(":memory:"), &gorm.Config{
		TranslateError: true,
		Logger:         logger.Default.LogMode(logger.Silent),
	})
	if err != nil {
		t.Fatalf("failed to open test database: %v", err)
	}
	if err := gormDB.AutoMigrate(&ledger.Mint{}, &ledger.TokenAccount{}, &amm.Pool{}, &Receipt{}); err != nil {
		t.Fatalf("failed to migrate: %v", err)
	}

	pub, priv, err := ed25519.GenerateKey(rand.Reader)
	if err != nil {
		t.Fatalf("failed to generate payer key: %v", err)
	}
	var payer types.Address
	copy(payer[:], pub)

	var merchant, treasury, tokenA, tokenB types.Address
	merchant[0] = 0x10
	treasury[0] = 0x20
	tokenA[0] = 0x30
	tokenB[0] = 0x40

	publisher := &capturingPublisher{}
	env := &testEnv{
		gormDB:    gormDB,
		ledgerDB:  ledger.NewDatabase(gormDB),
		service:   NewService(gormDB, NewSplitPolicy(10000), treasury, publisher),
		publisher: publisher,
		payer:     payer,
		payerKey:  priv,
		merchant:  merchant,
		treasury:  treasury,
		tokenA:    tokenA,
		tokenB:    tokenB,
	}

	for _, mint := range []types.Address{tokenA, tokenB} {
		if err := env.ledgerDB.CreateMint(&ledger.Mint{Address: mint.Base58(), Decimals: 9}); err != nil {
			t.Fatalf("failed to create mint: %v", err)
		}
	}
	return env
}

func (e *testEnv) account(t *testing.T, address string, owner, mint types.Address, balance uint64) {
	t.Helper()
	if err := e.ledgerDB.CreateTokenAccount(&ledger.TokenAccount{
		Address: address,
		Owner:   owner.Base58(),
		Mint:    mint.Base58(),
	}); err != nil {
		t.Fatalf("failed to create account %s: %v", address, err)
	}
	if balance > 0 {
		if err := e.ledgerDB.MintTo(address, balance); err != nil {
			t.Fatalf("failed to fund account %s: %v", address, err)
		}
	}
}

func (e *testEnv) balance(t *testing.T, address string) uint64 {
	t.Helper()
	account, err := e.ledgerDB.GetTokenAccount(address)
	if err != nil {
		t.Fatalf("failed to load account %s: %v", address, err)
	}
	return account.Balance
}

func (e *testEnv) sign(t *testing.T, p types.Payment) []byte {
	t.Helper()
	sig, err := p.Sign(e.payerKey)
	if err != nil {
		t.Fatalf("failed to sign payment: %v", err)
	}
	return sig
}

func (e *testEnv) directPayment(orderID string, payIn, payOut uint64) types.Payment {
	return types.Payment{
		OrderID:      orderID,
		PayInToken:   e.tokenA,
		PayOutToken:  e.tokenA,
		PayInAmount:  payIn,
		PayOutAmount: payOut,
		Merchant:     e.merchant,
		Expiry:       time.Now().Add(time.Hour).Unix(),
	}
}

func directAccounts(e *testEnv) TransferAccounts {
	return TransferAccounts{
		Payer:       e.payer,
		FromAta:     "payer-a",
		ToAta:       "merchant-a",
		TreasuryAta: "treasury-a",
	}
}

func setupDirect(t *testing.T, e *testEnv) {
	t.Helper()
	e.account(t, "payer-a", e.payer, e.tokenA, 5000)
	e.account(t, "merchant-a", e.merchant, e.tokenA, 0)
	e.account(t, "treasury-a", e.treasury, e.tokenA, 0)
}

func TestCompleteTransferPayment(t *testing.T) {
	e := newTestEnv(t)
	setupDirect(t, e)

	p := e.directPayment("order123", 1000, 900)
	result, err := e.service.CompleteTransferPayment(p, directAccounts(e), e.sign(t, p))
	if err != nil {
		t.Fatalf("CompleteTransferPayment: %v", err)
	}

	if got := e.balance(t, "payer-a"); got != 4000 {
		t.Errorf("payer balance = %d, want 4000", got)
	}
	if got := e.balance(t, "merchant-a"); got != 900 {
		t.Errorf("merchant balance = %d, want 900", got)
	}
	if got := e.balance(t, "treasury-a"); got != 100 {
		t.Errorf("treasury balance = %d, want 100", got)
	}

	if result.Kind != KindTransfer {
		t.Errorf("kind = %s, want %s", result.Kind, KindTransfer)
	}
	if result.MerchantAmount != 900 || result.FeeAmount != 100 {
		t.Errorf("split = %d/%d, want 900/100", result.MerchantAmount, result.FeeAmount)
	}

	receipt, err := e.service.GetReceipt("order123")
	if err != nil {
		t.Fatalf("GetReceipt: %v", err)
	}
	if receipt.ReceiptID != result.ReceiptID {
		t.Errorf("receipt id mismatch: %s vs %s", receipt.ReceiptID, result.ReceiptID)
	}

	if len(e.publisher.events) != 1 || e.publisher.events[0].Kind != types.EventPaymentCompleted {
		t.Errorf("expected one %s event, got %+v", types.EventPaymentCompleted, e.publisher.events)
	}
}

func TestCompleteTransferPaymentExactAmount(t *testing.T) {
	e := newTestEnv(t)
	setupDirect(t, e)

	// payIn == payOut leaves no fee; the treasury leg is skipped entirely.
	p := e.directPayment("order-nofee", 900, 900)
	if _, err := e.service.CompleteTransferPayment(p, directAccounts(e), e.sign(t, p)); err != nil {
		t.Fatalf("CompleteTransferPayment: %v", err)
	}
	if got := e.balance(t, "treasury-a"); got != 0 {
		t.Errorf("treasury balance = %d, want 0", got)
	}
	if got := e.balance(t, "merchant-a"); got != 900 {
		t.Errorf("merchant balance = %d, want 900", got)
	}
}

func TestCompleteTransferPaymentPayerIsMerchant(t *testing.T) {
	e := newTestEnv(t)
	e.account(t, "payer-a", e.payer, e.tokenA, 5000)
	e.account(t, "treasury-a", e.treasury, e.tokenA, 0)

	// A payer paying itself aliases from and to onto one account. The
	// self-leg must not create funds: only the fee may leave the account.
	p := e.directPayment("order-self", 1000, 900)
	p.Merchant = e.payer

	accounts := TransferAccounts{
		Payer:       e.payer,
		FromAta:     "payer-a",
		ToAta:       "payer-a",
		TreasuryAta: "treasury-a",
	}
	result, err := e.service.CompleteTransferPayment(p, accounts, e.sign(t, p))
	if err != nil {
		t.Fatalf("CompleteTransferPayment: %v", err)
	}

	payer := e.balance(t, "payer-a")
	treasury := e.balance(t, "treasury-a")
	if payer != 4900 {
		t.Errorf("payer balance = %d, want 4900", payer)
	}
	if treasury != 100 {
		t.Errorf("treasury balance = %d, want 100", treasury)
	}
	if payer+treasury != 5000 {
		t.Errorf("settlement did not conserve funds: %d + %d != 5000", payer, treasury)
	}
	if result.MerchantAmount != 900 || result.FeeAmount != 100 {
		t.Errorf("split = %d/%d, want 900/100", result.MerchantAmount, result.FeeAmount)
	}
}

func TestCompleteSwapPaymentPayerIsMerchant(t *testing.T) {
	e := newTestEnv(t)
	poolID := setupSwap(t, e)

	p := swapPayment(e, "swap-self", 500_000, 50_000)
	p.Merchant = e.payer

	// The payer's output account doubles as the merchant account.
	accounts := swapAccounts(e, poolID)
	accounts.MerchantAta = "payer-out"

	result, err := e.service.CompleteSwapPayment(p, accounts, e.sign(t, p))
	if err != nil {
		t.Fatalf("CompleteSwapPayment: %v", err)
	}

	if got := e.balance(t, "payer-out"); got != 50_000 {
		t.Errorf("payer output balance = %d, want 50000", got)
	}
	treasury := e.balance(t, "treasury-out")
	if treasury != result.RealizedOut-50_000 {
		t.Errorf("treasury balance = %d, want %d", treasury, result.RealizedOut-50_000)
	}
	if e.balance(t, "payer-out")+treasury != result.RealizedOut {
		t.Error("swap settlement did not conserve the realized output")
	}
}

func TestCompleteTransferPaymentReplay(t *testing.T) {
	e := newTestEnv(t)
	setupDirect(t, e)

	p := e.directPayment("order123", 1000, 900)
	if _, err := e.service.CompleteTransferPayment(p, directAccounts(e), e.sign(t, p)); err != nil {
		t.Fatalf("first settlement: %v", err)
	}

	// Resubmitting the same order, even re-signed, must be rejected without
	// moving funds again.
	_, err := e.service.CompleteTransferPayment(p, directAccounts(e), e.sign(t, p))
	if !errors.Is(err, ErrOrderAlreadyConsumed) {
		t.Fatalf("replay err = %v, want ErrOrderAlreadyConsumed", err)
	}

	if got := e.balance(t, "payer-a"); got != 4000 {
		t.Errorf("replay changed payer balance: %d", got)
	}
	if got := e.balance(t, "merchant-a"); got != 900 {
		t.Errorf("replay changed merchant balance: %d", got)
	}
	if len(e.publisher.events) != 1 {
		t.Errorf("replay published an event: %+v", e.publisher.events)
	}
}

func TestCompleteTransferPaymentExpired(t *testing.T) {
	e := newTestEnv(t)
	setupDirect(t, e)

	p := e.directPayment("order-expired", 1000, 900)
	p.Expiry = time.Now().Add(-time.Minute).Unix()

	_, err := e.service.CompleteTransferPayment(p, directAccounts(e), e.sign(t, p))
	if !errors.Is(err, ErrExpired) {
		t.Fatalf("err = %v, want ErrExpired", err)
	}
	if got := e.balance(t, "payer-a"); got != 5000 {
		t.Errorf("expired order moved funds: payer balance = %d", got)
	}
	if _, err := e.service.GetReceipt("order-expired"); err == nil {
		t.Error("expired order left a receipt behind")
	}
}

func TestCompleteTransferPaymentZeroAmount(t *testing.T) {
	e := newTestEnv(t)
	setupDirect(t, e)

	p := e.directPayment("order-zero", 0, 0)
	_, err := e.service.CompleteTransferPayment(p, directAccounts(e), e.sign(t, p))
	if !errors.Is(err, ErrZeroAmount) {
		t.Fatalf("err = %v, want ErrZeroAmount", err)
	}
}

func TestCompleteTransferPaymentBadSignature(t *testing.T) {
	e := newTestEnv(t)
	setupDirect(t, e)

	p := e.directPayment("order-sig", 1000, 900)
	sig := e.sign(t, p)
	sig[0] ^= 0xff

	_, err := e.service.CompleteTransferPayment(p, directAccounts(e), sig)
	if !errors.Is(err, types.ErrBadSignature) {
		t.Fatalf("err = %v, want ErrBadSignature", err)
	}
	if got := e.balance(t, "payer-a"); got != 5000 {
		t.Errorf("bad signature moved funds: payer balance = %d", got)
	}
}

func TestCompleteTransferPaymentAccountMismatch(t *testing.T) {
	e := newTestEnv(t)
	setupDirect(t, e)
	e.account(t, "stranger-a", e.payer, e.tokenA, 0)

	// The to account must belong to the merchant named in the order.
	p := e.directPayment("order-mismatch", 1000, 900)
	accounts := directAccounts(e)
	accounts.ToAta = "stranger-a"

	_, err := e.service.CompleteTransferPayment(p, accounts, e.sign(t, p))
	if !errors.Is(err, ErrAccountMismatch) {
		t.Fatalf("err = %v, want ErrAccountMismatch", err)
	}
}

func TestCompleteTransferPaymentTokenMismatch(t *testing.T) {
	e := newTestEnv(t)
	setupDirect(t, e)

	// The direct path never swaps; differing tokens are a caller error.
	p := e.directPayment("order-tokens", 1000, 900)
	p.PayOutToken = e.tokenB

	_, err := e.service.CompleteTransferPayment(p, directAccounts(e), e.sign(t, p))
	if !errors.Is(err, ErrAccountMismatch) {
		t.Fatalf("err = %v, want ErrAccountMismatch", err)
	}
}

func TestCompleteTransferPaymentPayOutAbovePayIn(t *testing.T) {
	e := newTestEnv(t)
	setupDirect(t, e)

	p := e.directPayment("order-short", 900, 1000)
	_, err := e.service.CompleteTransferPayment(p, directAccounts(e), e.sign(t, p))
	if !errors.Is(err, ErrInvalidSplit) {
		t.Fatalf("err = %v, want ErrInvalidSplit", err)
	}
}

func TestCompleteSplitTransferPayment(t *testing.T) {
	e := newTestEnv(t)
	setupDirect(t, e)
	e.account(t, "fee-1", e.treasury, e.tokenA, 0)
	e.account(t, "fee-2", e.merchant, e.tokenA, 0)

	// Fee of 105 split 70/30: truncation leaves 1 unit of dust with the payer.
	p := e.directPayment("order-split", 1005, 900)
	accounts := SplitTransferAccounts{
		Payer:        e.payer,
		FromAta:      "payer-a",
		ToAta:        "merchant-a",
		ReceiverAtas: []string{"fee-1", "fee-2"},
		Shares:       []uint32{7000, 3000},
	}

	result, err := e.service.CompleteSplitTransferPayment(p, accounts, e.sign(t, p))
	if err != nil {
		t.Fatalf("CompleteSplitTransferPayment: %v", err)
	}

	if got := e.balance(t, "fee-1"); got != 73 {
		t.Errorf("first receiver balance = %d, want 73", got)
	}
	if got := e.balance(t, "fee-2"); got != 31 {
		t.Errorf("second receiver balance = %d, want 31", got)
	}
	if got := e.balance(t, "merchant-a"); got != 900 {
		t.Errorf("merchant balance = %d, want 900", got)
	}
	if got := e.balance(t, "payer-a"); got != 5000-900-73-31 {
		t.Errorf("payer balance = %d, want %d", got, 5000-900-73-31)
	}

	if result.Kind != KindSplitTransfer {
		t.Errorf("kind = %s, want %s", result.Kind, KindSplitTransfer)
	}
	if result.FeeAmount != 104 {
		t.Errorf("distributed fee = %d, want 104", result.FeeAmount)
	}
	if result.Treasury != "" {
		t.Errorf("split settlement recorded a treasury: %s", result.Treasury)
	}
}

func TestCompleteSplitTransferPaymentBadShares(t *testing.T) {
	e := newTestEnv(t)
	setupDirect(t, e)
	e.account(t, "fee-1", e.treasury, e.tokenA, 0)

	p := e.directPayment("order-badshares", 1000, 900)
	accounts := SplitTransferAccounts{
		Payer:        e.payer,
		FromAta:      "payer-a",
		ToAta:        "merchant-a",
		ReceiverAtas: []string{"fee-1"},
		Shares:       []uint32{9999},
	}

	_, err := e.service.CompleteSplitTransferPayment(p, accounts, e.sign(t, p))
	if !errors.Is(err, ErrInvalidSplit) {
		t.Fatalf("err = %v, want ErrInvalidSplit", err)
	}
	if got := e.balance(t, "payer-a"); got != 5000 {
		t.Errorf("rejected split moved funds: payer balance = %d", got)
	}
}

func TestCompleteSplitTransferPaymentWrappingShares(t *testing.T) {
	e := newTestEnv(t)
	setupDirect(t, e)
	e.account(t, "fee-1", e.treasury, e.tokenA, 0)
	e.account(t, "fee-2", e.merchant, e.tokenA, 0)

	// Shares are request fields, not covered by the order signature; a sum
	// that wraps uint32 back to the denominator must still be rejected.
	p := e.directPayment("order-wrap", 1000, 900)
	accounts := SplitTransferAccounts{
		Payer:        e.payer,
		FromAta:      "payer-a",
		ToAta:        "merchant-a",
		ReceiverAtas: []string{"fee-1", "fee-2"},
		Shares:       []uint32{1 << 31, 1<<31 + 10000},
	}

	_, err := e.service.CompleteSplitTransferPayment(p, accounts, e.sign(t, p))
	if !errors.Is(err, ErrInvalidSplit) {
		t.Fatalf("err = %v, want ErrInvalidSplit", err)
	}
	if got := e.balance(t, "payer-a"); got != 5000 {
		t.Errorf("rejected split moved funds: payer balance = %d", got)
	}
	if got := e.balance(t, "fee-1"); got != 0 {
		t.Errorf("rejected split credited a receiver: %d", got)
	}
}

func TestCompleteSplitTransferPaymentCountMismatch(t *testing.T) {
	e := newTestEnv(t)
	setupDirect(t, e)

	p := e.directPayment("order-counts", 1000, 900)
	accounts := SplitTransferAccounts{
		Payer:        e.payer,
		FromAta:      "payer-a",
		ToAta:        "merchant-a",
		ReceiverAtas: []string{"fee-1", "fee-2"},
		Shares:       []uint32{10000},
	}

	_, err := e.service.CompleteSplitTransferPayment(p, accounts, e.sign(t, p))
	if !errors.Is(err, ErrInvalidSplit) {
		t.Fatalf("err = %v, want ErrInvalidSplit", err)
	}
}

func setupSwap(t *testing.T, e *testEnv) string {
	t.Helper()

	e.account(t, "payer-in", e.payer, e.tokenA, 1_000_000)
	e.account(t, "payer-out", e.payer, e.tokenB, 0)
	e.account(t, "merchant-out", e.merchant, e.tokenB, 0)
	e.account(t, "treasury-out", e.treasury, e.tokenB, 0)

	ammService := amm.NewService(e.gormDB)
	pool, err := ammService.CreatePool(e.tokenA, e.tokenB, 1_000_000_000, 500_000_000, 25)
	if err != nil {
		t.Fatalf("failed to create pool: %v", err)
	}
	return pool.PoolID
}

func swapPayment(e *testEnv, orderID string, payIn, minOut uint64) types.Payment {
	return types.Payment{
		OrderID:      orderID,
		PayInToken:   e.tokenA,
		PayOutToken:  e.tokenB,
		PayInAmount:  payIn,
		PayOutAmount: minOut,
		Merchant:     e.merchant,
		Expiry:       time.Now().Add(time.Hour).Unix(),
	}
}

func swapAccounts(e *testEnv, poolID string) SwapAccounts {
	return SwapAccounts{
		Payer:       e.payer,
		FromAta:     "payer-in",
		ToAta:       "payer-out",
		MerchantAta: "merchant-out",
		TreasuryAta: "treasury-out",
		PoolID:      poolID,
	}
}

func TestCompleteSwapPayment(t *testing.T) {
	e := newTestEnv(t)
	poolID := setupSwap(t, e)

	p := swapPayment(e, "swap-1", 500_000, 50_000)
	result, err := e.service.CompleteSwapPayment(p, swapAccounts(e, poolID), e.sign(t, p))
	if err != nil {
		t.Fatalf("CompleteSwapPayment: %v", err)
	}

	// x*y=k over (1e9, 5e8) with a 25 bps input fee prices 500_000 in at
	// 249_250 out.
	if result.RealizedOut != 249_250 {
		t.Errorf("realized out = %d, want 249250", result.RealizedOut)
	}
	if result.MerchantAmount != 50_000 {
		t.Errorf("merchant amount = %d, want 50000", result.MerchantAmount)
	}
	if result.FeeAmount != 249_250-50_000 {
		t.Errorf("fee = %d, want %d", result.FeeAmount, 249_250-50_000)
	}

	if got := e.balance(t, "payer-in"); got != 500_000 {
		t.Errorf("payer input balance = %d, want 500000", got)
	}
	if got := e.balance(t, "payer-out"); got != 0 {
		t.Errorf("payer output balance = %d, want 0 after split", got)
	}
	if got := e.balance(t, "merchant-out"); got != 50_000 {
		t.Errorf("merchant balance = %d, want 50000", got)
	}
	if got := e.balance(t, "treasury-out"); got != 249_250-50_000 {
		t.Errorf("treasury balance = %d, want %d", got, 249_250-50_000)
	}

	if result.Kind != KindSwap {
		t.Errorf("kind = %s, want %s", result.Kind, KindSwap)
	}
	if len(e.publisher.events) != 1 || e.publisher.events[0].Kind != types.EventSwapPaymentCompleted {
		t.Errorf("expected one %s event, got %+v", types.EventSwapPaymentCompleted, e.publisher.events)
	}
}

func TestCompleteSwapPaymentSlippageRollsBack(t *testing.T) {
	e := newTestEnv(t)
	poolID := setupSwap(t, e)

	pool, err := amm.NewService(e.gormDB).GetPoolKeys(poolID)
	if err != nil {
		t.Fatalf("GetPoolKeys: %v", err)
	}
	baseReserveBefore := pool.BaseReserve
	quoteReserveBefore := pool.QuoteReserve

	// 500_000 in realizes 249_250 out; demanding 300_000 must fail and undo
	// the pool leg.
	p := swapPayment(e, "swap-slip", 500_000, 300_000)
	_, err = e.service.CompleteSwapPayment(p, swapAccounts(e, poolID), e.sign(t, p))
	if !errors.Is(err, ErrSlippageExceeded) {
		t.Fatalf("err = %v, want ErrSlippageExceeded", err)
	}

	if got := e.balance(t, "payer-in"); got != 1_000_000 {
		t.Errorf("failed swap debited the payer: %d", got)
	}
	if got := e.balance(t, "payer-out"); got != 0 {
		t.Errorf("failed swap credited the payer output account: %d", got)
	}

	pool, err = amm.NewService(e.gormDB).GetPoolKeys(poolID)
	if err != nil {
		t.Fatalf("GetPoolKeys: %v", err)
	}
	if pool.BaseReserve != baseReserveBefore || pool.QuoteReserve != quoteReserveBefore {
		t.Errorf("failed swap changed pool reserves: %d/%d", pool.BaseReserve, pool.QuoteReserve)
	}
	if _, err := e.service.GetReceipt("swap-slip"); err == nil {
		t.Error("failed swap left a receipt behind")
	}
}

func TestCompleteSwapPaymentInsufficientFunds(t *testing.T) {
	e := newTestEnv(t)
	poolID := setupSwap(t, e)

	p := swapPayment(e, "swap-poor", 2_000_000, 50_000)
	_, err := e.service.CompleteSwapPayment(p, swapAccounts(e, poolID), e.sign(t, p))
	if !errors.Is(err, ledger.ErrInsufficientFunds) {
		t.Fatalf("err = %v, want ErrInsufficientFunds", err)
	}
}

func TestCompleteSwapPaymentSameToken(t *testing.T) {
	e := newTestEnv(t)
	poolID := setupSwap(t, e)

	p := swapPayment(e, "swap-same", 500_000, 50_000)
	p.PayOutToken = e.tokenA
	_, err := e.service.CompleteSwapPayment(p, swapAccounts(e, poolID), e.sign(t, p))
	if !errors.Is(err, ErrAccountMismatch) {
		t.Fatalf("err = %v, want ErrAccountMismatch", err)
	}
}

func TestCompleteSwapPaymentUnknownPool(t *testing.T) {
	e := newTestEnv(t)
	setupSwap(t, e)

	p := swapPayment(e, "swap-nopool", 500_000, 50_000)
	_, err := e.service.CompleteSwapPayment(p, swapAccounts(e, "missing-pool"), e.sign(t, p))
	if !errors.Is(err, amm.ErrPoolUnavailable) {
		t.Fatalf("err = %v, want ErrPoolUnavailable", err)
	}
	if got := e.balance(t, "payer-in"); got != 1_000_000 {
		t.Errorf("failed swap debited the payer: %d", got)
	}
}

func TestSwapReplayAcrossKinds(t *testing.T) {
	e := newTestEnv(t)
	setupDirect(t, e)

	// An order consumed by one settlement path stays consumed for every path.
	p := e.directPayment("order-shared", 1000, 900)
	if _, err := e.service.CompleteTransferPayment(p, directAccounts(e), e.sign(t, p)); err != nil {
		t.Fatalf("CompleteTransferPayment: %v", err)
	}

	poolID := setupSwap(t, e)
	sp := swapPayment(e, "order-shared", 500_000, 50_000)
	_, err := e.service.CompleteSwapPayment(sp, swapAccounts(e, poolID), e.sign(t, sp))
	if !errors.Is(err, ErrOrderAlreadyConsumed) {
		t.Fatalf("err = %v, want ErrOrderAlreadyConsumed", err)
	}
}
