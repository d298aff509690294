package core

import (
	"cmp"
	"slices"
	"strings"

	"github.com/shopspring/decimal"
)

// compareVoucherKeys orders vouchers by target, operation, destination and
// lock flag, unlocked first.
func compareVoucherKeys(a, b Voucher) int {
	if c := strings.Compare(string(a.Target), string(b.Target)); c != 0 {
		return c
	}
	if c := cmp.Compare(a.Operation, b.Operation); c != 0 {
		return c
	}
	if c := strings.Compare(string(a.Destination), string(b.Destination)); c != 0 {
		return c
	}
	return cmp.Compare(boolRank(a.Locked), boolRank(b.Locked))
}

func boolRank(b bool) int {
	if b {
		return 1
	}
	return 0
}

// AggregateVouchers merges vouchers that share target, operation, destination
// and lock flag into one voucher carrying the summed amount. The result is
// ordered by that key, so any permutation of the input yields the same output.
// Groups summing to zero are dropped.
func AggregateVouchers(vouchers []Voucher) []Voucher {
	sorted := slices.Clone(vouchers)
	slices.SortStableFunc(sorted, compareVoucherKeys)

	merged := make([]Voucher, 0, len(sorted))
	for start := 0; start < len(sorted); {
		end := start + 1
		for end < len(sorted) && compareVoucherKeys(sorted[start], sorted[end]) == 0 {
			end++
		}

		sum := decimal.Zero
		for _, v := range sorted[start:end] {
			sum = sum.Add(decimal.NewFromFloat(v.Amount))
		}

		if sum.IsPositive() {
			group := sorted[start]
			group.Amount = toFloat(sum)
			merged = append(merged, group)
		}
		start = end
	}

	return merged
}
