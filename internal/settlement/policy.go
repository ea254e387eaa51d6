package settlement

import "fmt"

// MaxFeeReceivers bounds the split-transfer fee distribution, matching the
// call surface of the settlement instruction.
const MaxFeeReceivers = 8

// SplitPolicy fixes how settled funds divide between merchant and treasury.
// The merchant receives exactly the order's payOutAmount; whatever the input
// (or realized swap output) exceeds it by is the fee. The policy is
// constructed once from configuration, never inferred per call.
type SplitPolicy struct {
	feeDenominator uint32
}

func NewSplitPolicy(feeDenominator uint32) SplitPolicy {
	return SplitPolicy{feeDenominator: feeDenominator}
}

func (p SplitPolicy) FeeDenominator() uint32 {
	return p.feeDenominator
}

// Split divides available funds into the merchant amount and the fee.
func (p SplitPolicy) Split(available, payOut uint64) (merchant, fee uint64, err error) {
	if available < payOut {
		return 0, 0, fmt.Errorf("%w: available %d below pay-out %d", ErrInvalidSplit, available, payOut)
	}
	return payOut, available - payOut, nil
}

// DistributeFee splits a total fee across receivers by basis points. Shares
// must sum exactly to the fee denominator. Truncation dust stays with the
// payer rather than being forced onto any receiver.
func (p SplitPolicy) DistributeFee(total uint64, shares []uint32) ([]uint64, error) {
	if len(shares) == 0 || len(shares) > MaxFeeReceivers {
		return nil, fmt.Errorf("%w: between 1 and %d receivers required", ErrInvalidSplit, MaxFeeReceivers)
	}

	// Sum in uint64: a uint32 accumulator would wrap, letting oversized
	// shares slip past the denominator check.
	var sum uint64
	for _, bps := range shares {
		if bps > p.feeDenominator {
			return nil, fmt.Errorf("%w: share %d exceeds denominator %d", ErrInvalidSplit, bps, p.feeDenominator)
		}
		sum += uint64(bps)
	}
	if sum != uint64(p.feeDenominator) {
		return nil, fmt.Errorf("%w: shares sum to %d, want %d", ErrInvalidSplit, sum, p.feeDenominator)
	}

	out := make([]uint64, len(shares))
	for i, bps := range shares {
		out[i] = total * uint64(bps) / uint64(p.feeDenominator)
	}
	return out, nil
}
