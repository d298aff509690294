package core

import (
	"cmp"
	"fmt"
	"slices"

	"github.com/shopspring/decimal"
)

// SortBidsByPrice returns a copy of bids ordered by price descending.
// Bids with equal prices keep their input order.
func SortBidsByPrice(bids []Bid) []Bid {
	sorted := slices.Clone(bids)
	slices.SortStableFunc(sorted, func(a, b Bid) int {
		return cmp.Compare(b.Price, a.Price)
	})
	return sorted
}

// Allocate runs the volume waterfall: bids are visited in price order and each
// takes as much of its requested volume as remains under volumeLimit.
// A non-positive limit leaves every bid unfilled.
func Allocate(bids []Bid, volumeLimit float64) (AuctionOutput, error) {
	if err := ValidateBids(bids); err != nil {
		return AuctionOutput{}, err
	}
	if !isFinite(volumeLimit) {
		return AuctionOutput{}, fmt.Errorf("%w: volume limit %v", ErrInvalidInput, volumeLimit)
	}

	sorted := SortBidsByPrice(bids)
	outputs := make([]BidOutput, len(sorted))

	// budget is what remains of the cap before the current bid is considered
	budget := decimal.NewFromFloat(volumeLimit)
	for i, bid := range sorted {
		volume := decimal.NewFromFloat(bid.Volume)
		fulfilled := decimal.Max(decimal.Min(budget, volume), decimal.Zero)
		budget = budget.Sub(volume)

		outputs[i] = BidOutput{
			Bidder:          bid.Bidder,
			AmountSent:      bid.Volume,
			AmountFulfilled: toFloat(fulfilled),
		}
	}

	return AuctionOutput{
		BidOutputs: outputs,
		SortedBids: sorted,
	}, nil
}

// TotalFulfilled sums the fulfilled amounts of an allocation.
func TotalFulfilled(output AuctionOutput) float64 {
	total := decimal.Zero
	for _, o := range output.BidOutputs {
		total = total.Add(decimal.NewFromFloat(o.AmountFulfilled))
	}
	return toFloat(total)
}

func toFloat(d decimal.Decimal) float64 {
	f, _ := d.Float64()
	return f
}
