package types

import (
	"crypto/ed25519"
	"encoding/binary"
	"errors"
)

const (
	// PaymentEncodingV1 versions the canonical signing bytes. Bump it if the
	// layout ever changes so old signatures cannot be replayed against a new
	// layout.
	PaymentEncodingV1 uint16 = 1

	maxOrderIDLen = 64
)

var (
	ErrOrderIDTooLong = errors.New("order id exceeds maximum length")
	ErrBadSignature   = errors.New("payment signature verification failed")
)

// Payment is the order descriptor a payer signs and submits for settlement.
// PayInToken and PayOutToken are equal on the direct path and differ on the
// swap path. Expiry is a unix timestamp in seconds; the order is invalid
// strictly after that instant.
type Payment struct {
	OrderID      string  `json:"order_id" binding:"required"`
	PayInToken   Address `json:"-"`
	PayOutToken  Address `json:"-"`
	PayInAmount  uint64  `json:"pay_in_amount"`
	PayOutAmount uint64  `json:"pay_out_amount"`
	Merchant     Address `json:"-"`
	Expiry       int64   `json:"expiry"`
}

// SigningBytes returns the canonical byte encoding covered by the payer's
// signature.
//
// Encoding:
//
//	version_u16_le ||
//	order_id_len_u16_le || order_id ||
//	pay_in_token (32) || pay_out_token (32) ||
//	pay_in_amount_u64_le || pay_out_amount_u64_le ||
//	merchant (32) ||
//	expiry_i64_le
func (p Payment) SigningBytes() ([]byte, error) {
	if len(p.OrderID) > maxOrderIDLen {
		return nil, ErrOrderIDTooLong
	}

	out := make([]byte, 0, 2+2+len(p.OrderID)+32+32+8+8+32+8)

	var u16 [2]byte
	binary.LittleEndian.PutUint16(u16[:], PaymentEncodingV1)
	out = append(out, u16[:]...)

	binary.LittleEndian.PutUint16(u16[:], uint16(len(p.OrderID)))
	out = append(out, u16[:]...)
	out = append(out, p.OrderID...)

	out = append(out, p.PayInToken[:]...)
	out = append(out, p.PayOutToken[:]...)

	var u64 [8]byte
	binary.LittleEndian.PutUint64(u64[:], p.PayInAmount)
	out = append(out, u64[:]...)
	binary.LittleEndian.PutUint64(u64[:], p.PayOutAmount)
	out = append(out, u64[:]...)

	out = append(out, p.Merchant[:]...)

	binary.LittleEndian.PutUint64(u64[:], uint64(p.Expiry))
	out = append(out, u64[:]...)

	return out, nil
}

// Sign produces the payer's ed25519 signature over the canonical bytes.
func (p Payment) Sign(priv ed25519.PrivateKey) ([]byte, error) {
	msg, err := p.SigningBytes()
	if err != nil {
		return nil, err
	}
	return ed25519.Sign(priv, msg), nil
}

// VerifySignature checks that sig is the payer's signature over the payment.
// The payer address doubles as the ed25519 public key.
func (p Payment) VerifySignature(payer Address, sig []byte) error {
	msg, err := p.SigningBytes()
	if err != nil {
		return err
	}
	if len(sig) != ed25519.SignatureSize {
		return ErrBadSignature
	}
	if !ed25519.Verify(ed25519.PublicKey(payer[:]), msg, sig) {
		return ErrBadSignature
	}
	return nil
}
