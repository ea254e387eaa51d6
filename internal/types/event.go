package types

import "time"

// Settlement event kinds.
const (
	EventPaymentCompleted      = "PAYMENT_COMPLETED"
	EventSplitPaymentCompleted = "SPLIT_PAYMENT_COMPLETED"
	EventSwapPaymentCompleted  = "SWAP_PAYMENT_COMPLETED"
)

// SettlementEvent is broadcast on the events feed after a settlement commits.
type SettlementEvent struct {
	Kind         string    `json:"kind"`
	OrderID      string    `json:"order_id"`
	ReceiptID    string    `json:"receipt_id"`
	PayInToken   string    `json:"pay_in_token"`
	PayOutToken  string    `json:"pay_out_token"`
	PayInAmount  uint64    `json:"pay_in_amount"`
	PayOutAmount uint64    `json:"pay_out_amount"`
	RealizedOut  uint64    `json:"realized_out,omitempty"`
	FeeCollected uint64    `json:"fee_collected"`
	Payer        string    `json:"payer"`
	Merchant     string    `json:"merchant"`
	Treasury     string    `json:"treasury"`
	Timestamp    time.Time `json:"timestamp"`
}
