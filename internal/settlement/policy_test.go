package settlement

import (
	"errors"
	"testing"
)

func TestSplit(t *testing.T) {
	policy := NewSplitPolicy(10000)

	tests := []struct {
		name         string
		available    uint64
		payOut       uint64
		wantMerchant uint64
		wantFee      uint64
		wantErr      bool
	}{
		{name: "fee remainder", available: 1000, payOut: 900, wantMerchant: 900, wantFee: 100},
		{name: "no fee", available: 900, payOut: 900, wantMerchant: 900, wantFee: 0},
		{name: "large fee", available: 249250, payOut: 50000, wantMerchant: 50000, wantFee: 199250},
		{name: "short", available: 899, payOut: 900, wantErr: true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			merchant, fee, err := policy.Split(tt.available, tt.payOut)
			if tt.wantErr {
				if !errors.Is(err, ErrInvalidSplit) {
					t.Fatalf("err = %v, want ErrInvalidSplit", err)
				}
				return
			}
			if err != nil {
				t.Fatalf("Split: %v", err)
			}
			if merchant != tt.wantMerchant || fee != tt.wantFee {
				t.Errorf("Split = %d/%d, want %d/%d", merchant, fee, tt.wantMerchant, tt.wantFee)
			}
			if merchant+fee != tt.available {
				t.Errorf("split does not conserve: %d + %d != %d", merchant, fee, tt.available)
			}
		})
	}
}

func TestDistributeFee(t *testing.T) {
	policy := NewSplitPolicy(10000)

	shares, err := policy.DistributeFee(105, []uint32{7000, 3000})
	if err != nil {
		t.Fatalf("DistributeFee: %v", err)
	}
	if shares[0] != 73 || shares[1] != 31 {
		t.Errorf("shares = %v, want [73 31]", shares)
	}

	// Truncation dust (1 unit here) is never distributed.
	var total uint64
	for _, s := range shares {
		total += s
	}
	if total != 104 {
		t.Errorf("distributed total = %d, want 104", total)
	}
}

func TestDistributeFeeExactDivision(t *testing.T) {
	policy := NewSplitPolicy(10000)

	shares, err := policy.DistributeFee(1000, []uint32{2500, 2500, 5000})
	if err != nil {
		t.Fatalf("DistributeFee: %v", err)
	}
	want := []uint64{250, 250, 500}
	for i := range want {
		if shares[i] != want[i] {
			t.Errorf("shares[%d] = %d, want %d", i, shares[i], want[i])
		}
	}
}

func TestDistributeFeeBadSum(t *testing.T) {
	policy := NewSplitPolicy(10000)
	if _, err := policy.DistributeFee(100, []uint32{5000, 4000}); !errors.Is(err, ErrInvalidSplit) {
		t.Fatalf("err = %v, want ErrInvalidSplit", err)
	}
}

func TestDistributeFeeRejectsOversizedShares(t *testing.T) {
	policy := NewSplitPolicy(10000)

	// Two shares whose uint32 sum wraps to exactly the denominator. Each is
	// far above the denominator and would multiply the payout if accepted.
	wrapping := []uint32{1 << 31, 1<<31 + 10000}
	if _, err := policy.DistributeFee(100, wrapping); !errors.Is(err, ErrInvalidSplit) {
		t.Fatalf("wrapping shares: err = %v, want ErrInvalidSplit", err)
	}

	if _, err := policy.DistributeFee(100, []uint32{10001}); !errors.Is(err, ErrInvalidSplit) {
		t.Fatalf("share above denominator: err = %v, want ErrInvalidSplit", err)
	}
}

func TestDistributeFeeReceiverCount(t *testing.T) {
	policy := NewSplitPolicy(10000)

	if _, err := policy.DistributeFee(100, nil); !errors.Is(err, ErrInvalidSplit) {
		t.Errorf("no receivers: err = %v, want ErrInvalidSplit", err)
	}

	nine := make([]uint32, MaxFeeReceivers+1)
	for i := range nine {
		nine[i] = 10000 / uint32(len(nine))
	}
	if _, err := policy.DistributeFee(100, nine); !errors.Is(err, ErrInvalidSplit) {
		t.Errorf("too many receivers: err = %v, want ErrInvalidSplit", err)
	}

	eight := make([]uint32, MaxFeeReceivers)
	for i := range eight {
		eight[i] = 1250
	}
	shares, err := policy.DistributeFee(8000, eight)
	if err != nil {
		t.Fatalf("eight receivers: %v", err)
	}
	for i, s := range shares {
		if s != 1000 {
			t.Errorf("shares[%d] = %d, want 1000", i, s)
		}
	}
}
