package core

import (
	"fmt"
	"strings"
)

// Address identifies a bidder, a token contract or a treasury account in the custody layer.
type Address string

// Operation is the token operation a voucher asks the custody layer to perform.
type Operation int

const (
	// OperationTransfer moves existing tokens from the auction escrow to the destination.
	OperationTransfer Operation = iota + 1
	// OperationMint issues new tokens to the destination.
	OperationMint
)

// String returns the wire name of the operation.
func (o Operation) String() string {
	switch o {
	case OperationTransfer:
		return "transfer"
	case OperationMint:
		return "mint"
	default:
		return fmt.Sprintf("operation(%d)", int(o))
	}
}

// IsValid reports whether o is one of the known operations.
func (o Operation) IsValid() bool {
	return o == OperationTransfer || o == OperationMint
}

// MarshalText encodes the operation by name so JSON payloads stay readable.
func (o Operation) MarshalText() ([]byte, error) {
	if !o.IsValid() {
		return nil, fmt.Errorf("unknown operation %d", int(o))
	}
	return []byte(o.String()), nil
}

// UnmarshalText decodes an operation name.
func (o *Operation) UnmarshalText(text []byte) error {
	switch strings.ToLower(string(text)) {
	case "transfer":
		*o = OperationTransfer
	case "mint":
		*o = OperationMint
	default:
		return fmt.Errorf("unknown operation %q", string(text))
	}
	return nil
}

// Auction describes a single sealed-bid, volume-capped auction.
// Times are unix seconds.
type Auction struct {
	ID           string  `json:"id"`
	EndTime      int64   `json:"end_time"`
	LockTime     int64   `json:"lock_time"`
	VolumeLimit  float64 `json:"volume_limit"`
	ReservePrice float64 `json:"reserve_price"`
}

// Bid is a single price/volume offer against an auction.
type Bid struct {
	ID        string  `json:"id,omitempty"`
	AuctionID string  `json:"auction_id"`
	Timestamp int64   `json:"timestamp"`
	Volume    float64 `json:"volume"`
	Price     float64 `json:"price"`
	Bidder    Address `json:"bidder"`
}

// BidOutput is the allocation outcome for one bid.
type BidOutput struct {
	Bidder          Address `json:"bidder"`
	AmountSent      float64 `json:"amount_sent"`
	AmountFulfilled float64 `json:"amount_fulfilled"`
}

// AuctionOutput pairs every BidOutput with the bid it was computed from.
// Both slices are index-aligned and ordered by the allocation sort.
type AuctionOutput struct {
	BidOutputs []BidOutput `json:"bid_outputs"`
	SortedBids []Bid       `json:"sorted_bids"`
}

// Voucher is a single settlement instruction for the custody layer.
// Locked vouchers are released at the auction lock time, unlocked ones immediately.
type Voucher struct {
	Target      Address   `json:"target" cbor:"1,keyasint"`
	Operation   Operation `json:"operation" cbor:"2,keyasint"`
	Destination Address   `json:"destination" cbor:"3,keyasint"`
	Amount      float64   `json:"amount" cbor:"4,keyasint"`
	Locked      bool      `json:"locked" cbor:"5,keyasint"`
}

// VoucherPolicy holds the addresses that vouchers are issued against.
type VoucherPolicy struct {
	// Token is the token contract every voucher targets.
	Token Address `json:"token"`
	// Treasury receives the premium captured when the clearing price is above par.
	Treasury Address `json:"treasury"`
}

// ExcludedBid represents a bid that did not take part in allocation.
type ExcludedBid struct {
	BidID  string  `json:"bid_id"`
	Bidder Address `json:"bidder"`
	Reason string  `json:"reason"`
}

// SettlementResult contains the complete outcome of settling an auction.
type SettlementResult struct {
	AuctionID string

	// EligibleBids are the bids that passed screening, in input order
	EligibleBids []Bid

	// ExcludedBids are the bids dropped by screening, with the reason
	ExcludedBids []ExcludedBid

	Output        AuctionOutput
	ClearingPrice float64

	// TotalFulfilled is the volume allocated across all bids
	TotalFulfilled float64

	// Vouchers is the aggregated instruction set handed to the custody layer
	Vouchers []Voucher

	// UnlockTime is when locked vouchers become executable
	UnlockTime int64
}
