package types

import (
	"encoding/hex"
	"errors"
	"strings"

	"github.com/mr-tron/base58"
)

// Address identifies an account on the ledger: a wallet, a token mint, a
// holding account or a pool account.
type Address [32]byte

var (
	ErrInvalidAddress = errors.New("invalid address")
)

// ZeroAddress is the all-zero address, used as an unset sentinel.
var ZeroAddress Address

// ParseAddress accepts a base58 address or a 64-character hex string.
func ParseAddress(s string) (Address, error) {
	var out Address
	s = strings.TrimSpace(s)
	s = strings.TrimPrefix(s, "0x")
	if s == "" {
		return out, ErrInvalidAddress
	}

	if len(s) == 64 {
		b, err := hex.DecodeString(s)
		if err == nil && len(b) == 32 {
			copy(out[:], b)
			return out, nil
		}
	}

	b, err := base58.Decode(s)
	if err != nil || len(b) != 32 {
		return out, ErrInvalidAddress
	}
	copy(out[:], b)
	return out, nil
}

// MustParseAddress panics on a malformed address. For constants and tests.
func MustParseAddress(s string) Address {
	a, err := ParseAddress(s)
	if err != nil {
		panic("types: bad address constant: " + s)
	}
	return a
}

func (a Address) Base58() string {
	return base58.Encode(a[:])
}

func (a Address) String() string {
	return a.Base58()
}

func (a Address) IsZero() bool {
	return a == ZeroAddress
}
