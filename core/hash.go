package core

import (
	"cmp"
	"crypto/sha256"
	"fmt"
	"slices"

	"github.com/fxamacker/cbor/v2"
)

// voucherEncMode encodes voucher sets in CBOR core deterministic form so the
// same set always hashes to the same digest.
var voucherEncMode = mustCoreDetEncMode()

func mustCoreDetEncMode() cbor.EncMode {
	em, err := cbor.CoreDetEncOptions().EncMode()
	if err != nil {
		panic(fmt.Sprintf("core: cbor encoding mode: %v", err))
	}
	return em
}

// ComputeBidHash computes the commitment hash of a single bid.
//
// Formula: SHA256(bid_id + "|" + bidder + "|" + timestamp + "|" + sprintf("%.6f", volume) + "|" + sprintf("%.6f", price) + "|" + nonce)
//
// Volume and price are formatted to exactly 6 decimal places so the hash does
// not depend on float formatting.
func ComputeBidHash(bid Bid, nonce string) string {
	data := fmt.Sprintf("%s|%s|%d|%.6f|%.6f|%s", bid.ID, bid.Bidder, bid.Timestamp, bid.Volume, bid.Price, nonce)
	hash := sha256.Sum256([]byte(data))
	return fmt.Sprintf("%x", hash)
}

// ComputeAuctionHash computes the commitment hash of the auction parameters.
//
// Formula: SHA256(auction_id + "|" + end_time + "|" + lock_time + "|" + sprintf("%.6f", volume_limit) + "|" + sprintf("%.6f", reserve_price) + "|" + nonce)
func ComputeAuctionHash(auction Auction, nonce string) string {
	data := fmt.Sprintf("%s|%d|%d|%.6f|%.6f|%s",
		auction.ID, auction.EndTime, auction.LockTime, auction.VolumeLimit, auction.ReservePrice, nonce)
	hash := sha256.Sum256([]byte(data))
	return fmt.Sprintf("%x", hash)
}

// ComputeVoucherSetHash computes the commitment hash of a voucher set.
//
// Formula: SHA256(nonce + "|" + CBOR(vouchers sorted by key))
//
// Vouchers are sorted by (target, operation, destination, locked, amount)
// before encoding, so the hash is independent of input order.
func ComputeVoucherSetHash(vouchers []Voucher, nonce string) (string, error) {
	sorted := slices.Clone(vouchers)
	slices.SortFunc(sorted, func(a, b Voucher) int {
		if c := compareVoucherKeys(a, b); c != 0 {
			return c
		}
		return cmp.Compare(a.Amount, b.Amount)
	})
	if sorted == nil {
		sorted = []Voucher{}
	}

	encoded, err := voucherEncMode.Marshal(sorted)
	if err != nil {
		return "", fmt.Errorf("encode voucher set: %w", err)
	}

	data := append([]byte(nonce+"|"), encoded...)
	hash := sha256.Sum256(data)
	return fmt.Sprintf("%x", hash), nil
}
