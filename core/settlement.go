package core

import "fmt"

// ValidateAuction rejects auctions with a non-finite volume limit or a
// negative or non-finite reserve price.
func ValidateAuction(auction Auction) error {
	if auction.ID == "" {
		return fmt.Errorf("%w: auction has no id", ErrInvalidInput)
	}
	if !isFinite(auction.VolumeLimit) {
		return fmt.Errorf("%w: auction %s has volume limit %v", ErrInvalidInput, auction.ID, auction.VolumeLimit)
	}
	if !isFinite(auction.ReservePrice) || auction.ReservePrice < 0 {
		return fmt.Errorf("%w: auction %s has reserve price %v", ErrInvalidInput, auction.ID, auction.ReservePrice)
	}
	return nil
}

// RunSettlement executes the full settlement pipeline for one auction:
// screening → waterfall allocation → clearing price → voucher generation → aggregation.
//
// Parameters:
//   - auction: the auction being cleared; its end time is the bid cutoff and its
//     reserve price the minimum eligible price
//   - bids: every collected bid, possibly including bids for other auctions
//   - policy: token and treasury addresses vouchers are issued against
//
// Returns ErrNoClearingPrice (wrapped) when no bid was filled, and
// ErrInvalidInput (wrapped) for malformed input. The pipeline does not
// produce vouchers in either case.
func RunSettlement(auction Auction, bids []Bid, policy VoucherPolicy) (*SettlementResult, error) {
	if err := ValidateAuction(auction); err != nil {
		return nil, err
	}
	if err := policy.Validate(); err != nil {
		return nil, err
	}

	// Step 1: Screen bids against auction id, cutoff and reserve
	eligible, excluded, err := ScreenBids(bids, auction.ID, auction.EndTime, auction.ReservePrice)
	if err != nil {
		return nil, err
	}

	// Step 2: Waterfall allocation against the volume cap
	output, err := Allocate(eligible, auction.VolumeLimit)
	if err != nil {
		return nil, err
	}

	// Step 3: Uniform clearing price
	price, err := ResolveClearingPrice(output)
	if err != nil {
		return nil, fmt.Errorf("auction %s: %w", auction.ID, err)
	}

	// Step 4: Per-bidder vouchers, merged into the final instruction set
	vouchers, err := GenerateAuctionVouchers(output.BidOutputs, price, policy)
	if err != nil {
		return nil, err
	}

	return &SettlementResult{
		AuctionID:      auction.ID,
		EligibleBids:   eligible,
		ExcludedBids:   excluded,
		Output:         output,
		ClearingPrice:  price,
		TotalFulfilled: TotalFulfilled(output),
		Vouchers:       AggregateVouchers(vouchers),
		UnlockTime:     auction.LockTime,
	}, nil
}
