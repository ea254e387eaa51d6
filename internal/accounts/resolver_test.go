package accounts

import (
	"testing"

	"filippo.io/edwards25519"

	"github.com/paydefi-inc/settlement-api/internal/types"
)

func addr(b byte) types.Address {
	var a types.Address
	a[0] = b
	return a
}

func TestDeriveHoldingAccountDeterministic(t *testing.T) {
	owner := addr(1)
	mint := addr(2)

	first, bump1, err := DeriveHoldingAccount(owner, mint)
	if err != nil {
		t.Fatalf("DeriveHoldingAccount: %v", err)
	}
	second, bump2, err := DeriveHoldingAccount(owner, mint)
	if err != nil {
		t.Fatalf("DeriveHoldingAccount: %v", err)
	}
	if first != second || bump1 != bump2 {
		t.Fatal("derivation is not deterministic")
	}
}

func TestDeriveHoldingAccountDistinctPairs(t *testing.T) {
	owner := addr(1)
	a, _, err := DeriveHoldingAccount(owner, addr(2))
	if err != nil {
		t.Fatalf("DeriveHoldingAccount: %v", err)
	}
	b, _, err := DeriveHoldingAccount(owner, addr(3))
	if err != nil {
		t.Fatalf("DeriveHoldingAccount: %v", err)
	}
	if a == b {
		t.Error("different mints derived the same holding account")
	}

	c, _, err := DeriveHoldingAccount(addr(4), addr(2))
	if err != nil {
		t.Fatalf("DeriveHoldingAccount: %v", err)
	}
	if a == c {
		t.Error("different owners derived the same holding account")
	}
}

func TestDerivedAddressesAreOffCurve(t *testing.T) {
	for b := byte(0); b < 8; b++ {
		derived, _, err := DeriveHoldingAccount(addr(b), addr(b+100))
		if err != nil {
			t.Fatalf("DeriveHoldingAccount: %v", err)
		}
		if _, err := new(edwards25519.Point).SetBytes(derived[:]); err == nil {
			t.Errorf("derived address %s is on-curve", derived)
		}
	}
}

func TestDerivePoolAccounts(t *testing.T) {
	poolID := addr(7)

	authority, _, err := DerivePoolAuthority(poolID)
	if err != nil {
		t.Fatalf("DerivePoolAuthority: %v", err)
	}
	bids, _, err := DeriveMarketAccount(poolID, "bids")
	if err != nil {
		t.Fatalf("DeriveMarketAccount: %v", err)
	}
	asks, _, err := DeriveMarketAccount(poolID, "asks")
	if err != nil {
		t.Fatalf("DeriveMarketAccount: %v", err)
	}

	if authority == bids || bids == asks {
		t.Error("distinct derivations collided")
	}
}

func TestCreateDerivedAddressSeedLimits(t *testing.T) {
	long := make([]byte, 33)
	if _, err := createDerivedAddress([][]byte{long}); err != ErrInvalidSeeds {
		t.Errorf("oversized seed: err = %v, want ErrInvalidSeeds", err)
	}

	many := make([][]byte, 17)
	for i := range many {
		many[i] = []byte{byte(i)}
	}
	if _, err := createDerivedAddress(many); err != ErrInvalidSeeds {
		t.Errorf("too many seeds: err = %v, want ErrInvalidSeeds", err)
	}
}
