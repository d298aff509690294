package core

import (
	"fmt"
	"math"

	"github.com/shopspring/decimal"
)

// Exclusion reasons reported by ScreenBids.
const (
	ReasonOtherAuction = "other_auction"
	ReasonAfterCutoff  = "after_cutoff"
	ReasonBelowReserve = "below_reserve"
)

// BidMeetsReserve returns true if the bid price meets or exceeds the minimum price.
func BidMeetsReserve(bidPrice, minimumPrice float64) bool {
	return decimal.NewFromFloat(bidPrice).GreaterThanOrEqual(decimal.NewFromFloat(minimumPrice))
}

// ValidateBids rejects bids carrying a negative or non-finite volume or price.
func ValidateBids(bids []Bid) error {
	for i, bid := range bids {
		if !isFinite(bid.Volume) || bid.Volume < 0 {
			return fmt.Errorf("%w: bid %d (%s) has volume %v", ErrInvalidInput, i, bid.ID, bid.Volume)
		}
		if !isFinite(bid.Price) || bid.Price < 0 {
			return fmt.Errorf("%w: bid %d (%s) has price %v", ErrInvalidInput, i, bid.ID, bid.Price)
		}
	}
	return nil
}

// ScreenBids splits bids into those eligible for the auction and those excluded.
// A bid is eligible when it targets auctionID, was placed at or before
// timestampUpperLimit and offers at least minimumPrice. Eligible bids keep
// their relative input order.
func ScreenBids(bids []Bid, auctionID string, timestampUpperLimit int64, minimumPrice float64) (eligible []Bid, excluded []ExcludedBid, err error) {
	if err := ValidateBids(bids); err != nil {
		return nil, nil, err
	}
	if !isFinite(minimumPrice) {
		return nil, nil, fmt.Errorf("%w: minimum price %v", ErrInvalidInput, minimumPrice)
	}

	eligibleBids := make([]Bid, 0, len(bids))
	excludedBids := make([]ExcludedBid, 0)

	for _, bid := range bids {
		reason := ""
		switch {
		case bid.AuctionID != auctionID:
			reason = ReasonOtherAuction
		case bid.Timestamp > timestampUpperLimit:
			reason = ReasonAfterCutoff
		case !BidMeetsReserve(bid.Price, minimumPrice):
			reason = ReasonBelowReserve
		}

		if reason == "" {
			eligibleBids = append(eligibleBids, bid)
			continue
		}
		excludedBids = append(excludedBids, ExcludedBid{
			BidID:  bid.ID,
			Bidder: bid.Bidder,
			Reason: reason,
		})
	}

	return eligibleBids, excludedBids, nil
}

// FilterBids returns the bids eligible for auctionID as of timestampUpperLimit
// with a price of at least minimumPrice, in input order.
func FilterBids(bids []Bid, auctionID string, timestampUpperLimit int64, minimumPrice float64) ([]Bid, error) {
	eligible, _, err := ScreenBids(bids, auctionID, timestampUpperLimit, minimumPrice)
	return eligible, err
}

func isFinite(f float64) bool {
	return !math.IsNaN(f) && !math.IsInf(f, 0)
}
