package core

import "fmt"

// ResolveClearingPrice returns the uniform clearing price of an allocation:
// the lowest price among bids that received a nonzero fill.
// It returns ErrNoClearingPrice when nothing was filled.
func ResolveClearingPrice(output AuctionOutput) (float64, error) {
	if len(output.BidOutputs) != len(output.SortedBids) {
		return 0, fmt.Errorf("%w: %d bid outputs for %d sorted bids",
			ErrInvalidInput, len(output.BidOutputs), len(output.SortedBids))
	}

	found := false
	price := 0.0
	for i, o := range output.BidOutputs {
		if o.AmountFulfilled <= 0 {
			continue
		}
		bidPrice := output.SortedBids[i].Price
		if !found || bidPrice < price {
			price = bidPrice
			found = true
		}
	}

	if !found {
		return 0, ErrNoClearingPrice
	}
	return price, nil
}
