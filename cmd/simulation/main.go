package main

import (
	"bytes"
	"crypto/ed25519"
	"crypto/rand"
	"encoding/json"
	"fmt"
	"io"
	"math"
	"net/http"
	"os"
	"sort"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/mr-tron/base58"
	"github.com/rs/zerolog"
	"github.com/rs/zerolog/log"

	"github.com/paydefi-inc/settlement-api/internal/types"
)

const (
	numTransfers  = 25
	numSwaps      = 10
	numWorkers    = 5
	serverAddress = "http://localhost:8080"

	// WSOL, the wrapped native token the swap scenario pays in with.
	wsolMint = "So11111111111111111111111111111111111111112"

	transferAmount = 1000
	transferPayout = 900

	swapInAmount = 500000
	swapMinOut   = 50000

	poolBaseReserve  = 1_000_000_000
	poolQuoteReserve = 500_000_000
)

// init configures the logger for the simulation with pretty printing and timestamp
func init() {
	// Configure pretty logging
	output := zerolog.ConsoleWriter{
		Out:        os.Stdout,
		TimeFormat: time.RFC3339,
	}
	log.Logger = zerolog.New(output).With().Timestamp().Logger()
}

// routeStats tracks performance statistics for an API endpoint
type routeStats struct {
	name       string
	durations  []time.Duration
	totalCalls int
	failures   int
	mu         sync.Mutex
}

// addDuration records a new duration measurement for the route
func (rs *routeStats) addDuration(d time.Duration) {
	rs.mu.Lock()
	defer rs.mu.Unlock()
	rs.durations = append(rs.durations, d)
	rs.totalCalls++
}

func (rs *routeStats) addFailure() {
	rs.mu.Lock()
	defer rs.mu.Unlock()
	rs.failures++
}

// calculate computes performance statistics from recorded durations
// Returns min, max, mean, median, 95th percentile, and 99th percentile durations
func (rs *routeStats) calculate() (min, max, mean, median, p95, p99 time.Duration) {
	if len(rs.durations) == 0 {
		return 0, 0, 0, 0, 0, 0
	}

	// Sort durations for percentile calculations
	sort.Slice(rs.durations, func(i, j int) bool {
		return rs.durations[i] < rs.durations[j]
	})

	min = rs.durations[0]
	max = rs.durations[len(rs.durations)-1]

	// Calculate mean
	var sum time.Duration
	for _, d := range rs.durations {
		sum += d
	}
	mean = sum / time.Duration(len(rs.durations))

	// Calculate median
	median = rs.durations[len(rs.durations)/2]

	// Calculate percentiles
	p95idx := int(math.Ceil(float64(len(rs.durations))*0.95)) - 1
	p99idx := int(math.Ceil(float64(len(rs.durations))*0.99)) - 1
	p95 = rs.durations[p95idx]
	p99 = rs.durations[p99idx]

	return
}

// wallet is a locally generated ed25519 keypair; the public key doubles as
// the ledger address.
type wallet struct {
	address types.Address
	priv    ed25519.PrivateKey
}

func newWallet() (*wallet, error) {
	pub, priv, err := ed25519.GenerateKey(rand.Reader)
	if err != nil {
		return nil, err
	}
	var addr types.Address
	copy(addr[:], pub)
	return &wallet{address: addr, priv: priv}, nil
}

func (w *wallet) signPayment(p types.Payment) (string, error) {
	sig, err := p.Sign(w.priv)
	if err != nil {
		return "", err
	}
	return base58.Encode(sig), nil
}

// simulationClient handles HTTP communication with the settlement API
type simulationClient struct {
	baseURL   string
	authToken string
	client    *http.Client
	stats     map[string]*routeStats
}

// newSimulationClient creates and initializes a new simulation client
// It authenticates with the API and prepares performance tracking
func newSimulationClient() (*simulationClient, error) {
	// Create HTTP client with timeout
	client := &http.Client{
		Timeout: 10 * time.Second,
	}

	sc := &simulationClient{
		baseURL: serverAddress,
		client:  client,
		stats: map[string]*routeStats{
			"auth":     {name: "Authentication"},
			"setup":    {name: "Ledger Setup"},
			"transfer": {name: "Transfer Payment"},
			"split":    {name: "Split Transfer Payment"},
			"swap":     {name: "Swap Payment"},
			"receipt":  {name: "Get Receipt"},
		},
	}

	// Get auth token
	token, err := sc.authenticate()
	if err != nil {
		return nil, fmt.Errorf("failed to authenticate: %w", err)
	}
	sc.authToken = token

	return sc, nil
}

// authenticate performs API authentication and returns a JWT token
func (sc *simulationClient) authenticate() (string, error) {
	start := time.Now()
	defer func() {
		sc.stats["auth"].addDuration(time.Since(start))
	}()

	credentials := map[string]string{
		"api_key":    envOr("API_KEY", "test-api-key"),
		"api_secret": envOr("API_SECRET", "test-api-secret"),
	}

	var result struct {
		Token string `json:"jwt_token"`
	}
	if err := sc.postJSON("/api/v1/auth/token", credentials, &result, false); err != nil {
		return "", err
	}
	return result.Token, nil
}

// postJSON sends an authenticated POST and decodes the response envelope's
// data field into out.
func (sc *simulationClient) postJSON(path string, payload interface{}, out interface{}, authed bool) error {
	body, err := json.Marshal(payload)
	if err != nil {
		return err
	}

	req, err := http.NewRequest("POST", sc.baseURL+path, bytes.NewBuffer(body))
	if err != nil {
		return err
	}
	req.Header.Set("Content-Type", "application/json")
	if authed {
		req.Header.Set("Authorization", "Bearer "+sc.authToken)
	}

	resp, err := sc.client.Do(req)
	if err != nil {
		return err
	}
	defer resp.Body.Close()

	respBody, err := io.ReadAll(resp.Body)
	if err != nil {
		return fmt.Errorf("failed to read response body: %w", err)
	}
	log.Debug().Str("path", path).Str("response", string(respBody)).Msg("API response")

	if resp.StatusCode != http.StatusOK && resp.StatusCode != http.StatusCreated {
		return fmt.Errorf("%s failed with status %d: %s", path, resp.StatusCode, string(respBody))
	}

	if out == nil {
		return nil
	}

	// Unwrap the response envelope when decoding auth (no envelope) vs data
	var envelope struct {
		Success bool            `json:"success"`
		Data    json.RawMessage `json:"data"`
	}
	if err := json.Unmarshal(respBody, &envelope); err == nil && envelope.Data != nil {
		return json.Unmarshal(envelope.Data, out)
	}
	return json.Unmarshal(respBody, out)
}

func (sc *simulationClient) getJSON(path string, out interface{}) error {
	req, err := http.NewRequest("GET", sc.baseURL+path, nil)
	if err != nil {
		return err
	}
	req.Header.Set("Authorization", "Bearer "+sc.authToken)

	resp, err := sc.client.Do(req)
	if err != nil {
		return err
	}
	defer resp.Body.Close()

	respBody, err := io.ReadAll(resp.Body)
	if err != nil {
		return err
	}
	if resp.StatusCode != http.StatusOK {
		return fmt.Errorf("%s failed with status %d: %s", path, resp.StatusCode, string(respBody))
	}

	var envelope struct {
		Success bool            `json:"success"`
		Data    json.RawMessage `json:"data"`
	}
	if err := json.Unmarshal(respBody, &envelope); err != nil {
		return err
	}
	return json.Unmarshal(envelope.Data, out)
}

type accountInfo struct {
	Address string `json:"address"`
	Owner   string `json:"owner"`
	Mint    string `json:"mint"`
	Balance uint64 `json:"balance"`
}

func (sc *simulationClient) createMint(address, authority string) (string, error) {
	start := time.Now()
	defer func() { sc.stats["setup"].addDuration(time.Since(start)) }()

	var mint struct {
		Address string `json:"address"`
	}
	err := sc.postJSON("/api/v1/internal/mints", map[string]interface{}{
		"address":   address,
		"decimals":  9,
		"authority": authority,
	}, &mint, true)
	return mint.Address, err
}

func (sc *simulationClient) createAccount(owner, mint string) (string, error) {
	start := time.Now()
	defer func() { sc.stats["setup"].addDuration(time.Since(start)) }()

	var account accountInfo
	err := sc.postJSON("/api/v1/internal/accounts", map[string]string{
		"owner": owner,
		"mint":  mint,
	}, &account, true)
	return account.Address, err
}

func (sc *simulationClient) mintTo(account string, amount uint64) error {
	start := time.Now()
	defer func() { sc.stats["setup"].addDuration(time.Since(start)) }()

	return sc.postJSON("/api/v1/internal/mint-to", map[string]interface{}{
		"account": account,
		"amount":  amount,
	}, nil, true)
}

func (sc *simulationClient) createPool(baseMint, quoteMint string, baseReserve, quoteReserve uint64) (string, error) {
	start := time.Now()
	defer func() { sc.stats["setup"].addDuration(time.Since(start)) }()

	var pool struct {
		PoolID string `json:"pool_id"`
	}
	err := sc.postJSON("/api/v1/internal/pools", map[string]interface{}{
		"base_mint":     baseMint,
		"quote_mint":    quoteMint,
		"base_reserve":  baseReserve,
		"quote_reserve": quoteReserve,
	}, &pool, true)
	return pool.PoolID, err
}

func (sc *simulationClient) getAccount(address string) (*accountInfo, error) {
	var account accountInfo
	if err := sc.getJSON("/api/v1/accounts/"+address, &account); err != nil {
		return nil, err
	}
	return &account, nil
}

func paymentBody(p types.Payment) map[string]interface{} {
	return map[string]interface{}{
		"order_id":       p.OrderID,
		"pay_in_token":   p.PayInToken.Base58(),
		"pay_out_token":  p.PayOutToken.Base58(),
		"pay_in_amount":  p.PayInAmount,
		"pay_out_amount": p.PayOutAmount,
		"merchant":       p.Merchant.Base58(),
		"expiry":         p.Expiry,
	}
}

func (sc *simulationClient) transferPayment(payer *wallet, p types.Payment, fromAta, toAta, treasuryAta string) error {
	start := time.Now()
	defer func() { sc.stats["transfer"].addDuration(time.Since(start)) }()

	sig, err := payer.signPayment(p)
	if err != nil {
		return err
	}
	return sc.postJSON("/api/v1/payments/transfer", map[string]interface{}{
		"payment":      paymentBody(p),
		"payer":        payer.address.Base58(),
		"signature":    sig,
		"from_ata":     fromAta,
		"to_ata":       toAta,
		"treasury_ata": treasuryAta,
	}, nil, true)
}

func (sc *simulationClient) splitTransferPayment(payer *wallet, p types.Payment, fromAta, toAta string, receivers []map[string]interface{}) error {
	start := time.Now()
	defer func() { sc.stats["split"].addDuration(time.Since(start)) }()

	sig, err := payer.signPayment(p)
	if err != nil {
		return err
	}
	return sc.postJSON("/api/v1/payments/transfer/split", map[string]interface{}{
		"payment":   paymentBody(p),
		"payer":     payer.address.Base58(),
		"signature": sig,
		"from_ata":  fromAta,
		"to_ata":    toAta,
		"receivers": receivers,
	}, nil, true)
}

func (sc *simulationClient) swapPayment(payer *wallet, p types.Payment, fromAta, toAta, merchantAta, treasuryAta, poolID string) error {
	start := time.Now()
	defer func() { sc.stats["swap"].addDuration(time.Since(start)) }()

	sig, err := payer.signPayment(p)
	if err != nil {
		return err
	}
	return sc.postJSON("/api/v1/payments/swap", map[string]interface{}{
		"payment":      paymentBody(p),
		"payer":        payer.address.Base58(),
		"signature":    sig,
		"from_ata":     fromAta,
		"to_ata":       toAta,
		"merchant_ata": merchantAta,
		"treasury_ata": treasuryAta,
		"pool_id":      poolID,
	}, nil, true)
}

func (sc *simulationClient) getReceipt(orderID string) error {
	start := time.Now()
	defer func() { sc.stats["receipt"].addDuration(time.Since(start)) }()

	var receipt struct {
		ReceiptID string `json:"receipt_id"`
	}
	return sc.getJSON("/api/v1/receipts/"+orderID, &receipt)
}

func envOr(key, fallback string) string {
	if v := os.Getenv(key); v != "" {
		return v
	}
	return fallback
}

func main() {
	treasuryAddress := os.Getenv("TREASURY_ADDRESS")
	if treasuryAddress == "" {
		log.Fatal().Msg("TREASURY_ADDRESS must be set to the server's configured treasury")
	}
	treasury, err := types.ParseAddress(treasuryAddress)
	if err != nil {
		log.Fatal().Err(err).Msg("invalid TREASURY_ADDRESS")
	}

	sc, err := newSimulationClient()
	if err != nil {
		log.Fatal().Err(err).Msg("failed to initialize simulation client")
	}

	payer, err := newWallet()
	if err != nil {
		log.Fatal().Err(err).Msg("failed to generate payer wallet")
	}
	merchant, err := newWallet()
	if err != nil {
		log.Fatal().Err(err).Msg("failed to generate merchant wallet")
	}

	log.Info().
		Str("payer", payer.address.Base58()).
		Str("merchant", merchant.address.Base58()).
		Str("treasury", treasury.Base58()).
		Msg("starting settlement simulation")

	// Seed the ledger: a wrapped-native mint, an output token, holding
	// accounts for every party and a pool trading the pair.
	wsol, err := sc.createMint(wsolMint, payer.address.Base58())
	if err != nil {
		log.Fatal().Err(err).Msg("failed to create pay-in mint")
	}
	tokenOut, err := sc.createMint("", payer.address.Base58())
	if err != nil {
		log.Fatal().Err(err).Msg("failed to create pay-out mint")
	}

	payerWsolAta := mustAccount(sc, payer.address.Base58(), wsol)
	payerOutAta := mustAccount(sc, payer.address.Base58(), tokenOut)
	merchantWsolAta := mustAccount(sc, merchant.address.Base58(), wsol)
	merchantOutAta := mustAccount(sc, merchant.address.Base58(), tokenOut)
	treasuryWsolAta := mustAccount(sc, treasury.Base58(), wsol)
	treasuryOutAta := mustAccount(sc, treasury.Base58(), tokenOut)

	if err := sc.mintTo(payerWsolAta, 100_000_000); err != nil {
		log.Fatal().Err(err).Msg("failed to fund payer")
	}

	poolID, err := sc.createPool(wsol, tokenOut, poolBaseReserve, poolQuoteReserve)
	if err != nil {
		log.Fatal().Err(err).Msg("failed to create pool")
	}
	log.Info().Str("pool_id", poolID).Msg("ledger seeded")

	wsolAddr := types.MustParseAddress(wsol)
	outAddr := types.MustParseAddress(tokenOut)

	// Direct transfer payments across a worker pool.
	var wg sync.WaitGroup
	jobs := make(chan int)
	for w := 0; w < numWorkers; w++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			for i := range jobs {
				p := types.Payment{
					OrderID:      fmt.Sprintf("transfer-%s-%d", uuid.New().String()[:8], i),
					PayInToken:   wsolAddr,
					PayOutToken:  wsolAddr,
					PayInAmount:  transferAmount,
					PayOutAmount: transferPayout,
					Merchant:     merchant.address,
					Expiry:       time.Now().Add(time.Hour).Unix(),
				}
				if err := sc.transferPayment(payer, p, payerWsolAta, merchantWsolAta, treasuryWsolAta); err != nil {
					sc.stats["transfer"].addFailure()
					log.Error().Err(err).Str("order_id", p.OrderID).Msg("transfer payment failed")
					continue
				}
				if err := sc.getReceipt(p.OrderID); err != nil {
					sc.stats["receipt"].addFailure()
					log.Error().Err(err).Str("order_id", p.OrderID).Msg("receipt lookup failed")
				}
			}
		}()
	}
	for i := 0; i < numTransfers; i++ {
		jobs <- i
	}
	close(jobs)
	wg.Wait()

	// Swap payments: pay in WSOL, merchant receives the output token.
	for i := 0; i < numSwaps; i++ {
		p := types.Payment{
			OrderID:      fmt.Sprintf("swap-%s-%d", uuid.New().String()[:8], i),
			PayInToken:   wsolAddr,
			PayOutToken:  outAddr,
			PayInAmount:  swapInAmount,
			PayOutAmount: swapMinOut,
			Merchant:     merchant.address,
			Expiry:       time.Now().Add(2 * time.Minute).Unix(),
		}
		if err := sc.swapPayment(payer, p, payerWsolAta, payerOutAta, merchantOutAta, treasuryOutAta, poolID); err != nil {
			sc.stats["swap"].addFailure()
			log.Error().Err(err).Str("order_id", p.OrderID).Msg("swap payment failed")
		}
	}

	// Split transfer: fee shared between treasury and merchant accounts.
	splitOrder := types.Payment{
		OrderID:      "split-" + uuid.New().String()[:8],
		PayInToken:   wsolAddr,
		PayOutToken:  wsolAddr,
		PayInAmount:  transferAmount,
		PayOutAmount: transferPayout,
		Merchant:     merchant.address,
		Expiry:       time.Now().Add(time.Hour).Unix(),
	}
	err = sc.splitTransferPayment(payer, splitOrder, payerWsolAta, merchantWsolAta, []map[string]interface{}{
		{"ata": treasuryWsolAta, "share_bps": 7000},
		{"ata": merchantWsolAta, "share_bps": 3000},
	})
	if err != nil {
		sc.stats["split"].addFailure()
		log.Error().Err(err).Msg("split transfer payment failed")
	}

	// Replay check: the same order id must be rejected the second time.
	replay := types.Payment{
		OrderID:      splitOrder.OrderID,
		PayInToken:   wsolAddr,
		PayOutToken:  wsolAddr,
		PayInAmount:  transferAmount,
		PayOutAmount: transferPayout,
		Merchant:     merchant.address,
		Expiry:       time.Now().Add(time.Hour).Unix(),
	}
	if err := sc.transferPayment(payer, replay, payerWsolAta, merchantWsolAta, treasuryWsolAta); err != nil {
		log.Info().Str("order_id", replay.OrderID).Msg("replay correctly rejected")
	} else {
		log.Error().Str("order_id", replay.OrderID).Msg("replay was accepted, expected rejection")
	}

	// Final balances for the conservation report.
	for _, address := range []string{payerWsolAta, merchantWsolAta, treasuryWsolAta, payerOutAta, merchantOutAta, treasuryOutAta} {
		account, err := sc.getAccount(address)
		if err != nil {
			log.Error().Err(err).Str("account", address).Msg("balance lookup failed")
			continue
		}
		log.Info().
			Str("account", account.Address).
			Str("owner", account.Owner).
			Str("mint", account.Mint).
			Uint64("balance", account.Balance).
			Msg("final balance")
	}

	printStats(sc)
}

// printStats reports latency statistics per route
func printStats(sc *simulationClient) {
	fmt.Println("\n=== Simulation Results ===")
	for _, key := range []string{"auth", "setup", "transfer", "split", "swap", "receipt"} {
		rs := sc.stats[key]
		if rs.totalCalls == 0 {
			continue
		}
		min, max, mean, median, p95, p99 := rs.calculate()
		fmt.Printf("\n%s (%d calls, %d failures)\n", rs.name, rs.totalCalls, rs.failures)
		fmt.Printf("  min: %v  max: %v  mean: %v\n", min, max, mean)
		fmt.Printf("  median: %v  p95: %v  p99: %v\n", median, p95, p99)
	}
}

func mustAccount(sc *simulationClient, owner, mint string) string {
	address, err := sc.createAccount(owner, mint)
	if err != nil {
		log.Fatal().Err(err).Str("owner", owner).Str("mint", mint).Msg("failed to create holding account")
	}
	return address
}
