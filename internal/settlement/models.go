package settlement

import (
	"time"

	"gorm.io/gorm"
)

const (
	KindTransfer      = "TRANSFER"
	KindSplitTransfer = "SPLIT_TRANSFER"
	KindSwap          = "SWAP"
)

// Receipt is the consumed marker for one settled order. The unique index on
// OrderID is the replay guard: the row is written as the last step of a
// settlement transaction and only one writer can ever win. Receipts are never
// updated or deleted.
type Receipt struct {
	gorm.Model     `json:"-"`
	ReceiptID      string    `gorm:"uniqueIndex" json:"receipt_id"`
	OrderID        string    `gorm:"uniqueIndex" json:"order_id"`
	Kind           string    `json:"kind"` // TRANSFER, SPLIT_TRANSFER, SWAP
	Payer          string    `json:"payer"`
	Merchant       string    `json:"merchant"`
	Treasury       string    `json:"treasury"`
	PayInToken     string    `json:"pay_in_token"`
	PayOutToken    string    `json:"pay_out_token"`
	PayInAmount    uint64    `json:"pay_in_amount"`
	PayOutAmount   uint64    `json:"pay_out_amount"`
	RealizedOut    uint64    `json:"realized_out"`
	MerchantAmount uint64    `json:"merchant_amount"`
	FeeAmount      uint64    `json:"fee_amount"`
	CreatedAt      time.Time `json:"created_at"`
}

// SettlementResponse is the API view of a completed settlement.
type SettlementResponse struct {
	ReceiptID      string    `json:"receipt_id"`
	OrderID        string    `json:"order_id"`
	Kind           string    `json:"kind"`
	Payer          string    `json:"payer"`
	Merchant       string    `json:"merchant"`
	Treasury       string    `json:"treasury"`
	PayInToken     string    `json:"pay_in_token"`
	PayOutToken    string    `json:"pay_out_token"`
	PayInAmount    uint64    `json:"pay_in_amount"`
	PayOutAmount   uint64    `json:"pay_out_amount"`
	RealizedOut    uint64    `json:"realized_out,omitempty"`
	MerchantAmount uint64    `json:"merchant_amount"`
	FeeAmount      uint64    `json:"fee_amount"`
	Timestamp      time.Time `json:"timestamp"`
}

func (r *Receipt) toResponse() *SettlementResponse {
	return &SettlementResponse{
		ReceiptID:      r.ReceiptID,
		OrderID:        r.OrderID,
		Kind:           r.Kind,
		Payer:          r.Payer,
		Merchant:       r.Merchant,
		Treasury:       r.Treasury,
		PayInToken:     r.PayInToken,
		PayOutToken:    r.PayOutToken,
		PayInAmount:    r.PayInAmount,
		PayOutAmount:   r.PayOutAmount,
		RealizedOut:    r.RealizedOut,
		MerchantAmount: r.MerchantAmount,
		FeeAmount:      r.FeeAmount,
		Timestamp:      r.CreatedAt,
	}
}
