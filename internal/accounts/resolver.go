// Package accounts derives the deterministic addresses a payment order is
// allowed to reference. Holding accounts are bound to one (owner, mint) pair;
// the derived address is forced off the ed25519 curve so no wallet keypair can
// collide with it.
package accounts

import (
	"crypto/sha256"
	"errors"
	"fmt"

	"filippo.io/edwards25519"

	"github.com/paydefi-inc/settlement-api/internal/types"
)

var (
	ErrInvalidSeeds = errors.New("invalid seeds")
	ErrOnCurve      = errors.New("derived address is on-curve")
)

const (
	holdingSeed   = "holding"
	authoritySeed = "pool-authority"
	derivedSuffix = "SettlementDerivedAddress"
)

// DeriveHoldingAccount computes the holding-account address for (owner, mint).
// The derivation is pure: the same pair always yields the same address and
// bump.
func DeriveHoldingAccount(owner, mint types.Address) (types.Address, uint8, error) {
	return findDerivedAddress([][]byte{[]byte(holdingSeed), owner[:], mint[:]})
}

// DerivePoolAuthority computes the vault-owning authority for a pool id.
func DerivePoolAuthority(poolID types.Address) (types.Address, uint8, error) {
	return findDerivedAddress([][]byte{[]byte(authoritySeed), poolID[:]})
}

// DeriveMarketAccount computes one of a pool's named order-book accounts
// (bids, asks, event queue and so on).
func DeriveMarketAccount(poolID types.Address, name string) (types.Address, uint8, error) {
	return findDerivedAddress([][]byte{[]byte("market"), poolID[:], []byte(name)})
}

func findDerivedAddress(seeds [][]byte) (types.Address, uint8, error) {
	for bump := uint8(255); ; bump-- {
		addr, err := createDerivedAddress(append(seeds, []byte{bump}))
		if err == nil {
			return addr, bump, nil
		}
		if !errors.Is(err, ErrOnCurve) {
			return types.Address{}, 0, err
		}
		if bump == 0 {
			return types.Address{}, 0, fmt.Errorf("no viable derived address found")
		}
	}
}

func createDerivedAddress(seeds [][]byte) (types.Address, error) {
	if len(seeds) > 16 {
		return types.Address{}, ErrInvalidSeeds
	}

	h := sha256.New()
	for _, seed := range seeds {
		if len(seed) > 32 {
			return types.Address{}, ErrInvalidSeeds
		}
		h.Write(seed)
	}
	h.Write([]byte(derivedSuffix))

	var out types.Address
	copy(out[:], h.Sum(nil))
	if isOnCurve(out) {
		return types.Address{}, ErrOnCurve
	}
	return out, nil
}

func isOnCurve(addr types.Address) bool {
	_, err := new(edwards25519.Point).SetBytes(addr[:])
	return err == nil
}
