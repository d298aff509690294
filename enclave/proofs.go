package main

import (
	"crypto/rand"
	"encoding/hex"
	"encoding/json"
	"fmt"
	"time"

	enclave "github.com/edgebitio/nitro-enclaves-sdk-go"
	"github.com/rs/zerolog/log"

	"github.com/cloudx-io/voucherauction/core"
	"github.com/cloudx-io/voucherauction/settlementapi"
)

// EnclaveAttester interface for dependency injection and testing
type EnclaveAttester interface {
	Attest(options enclave.AttestationOptions) ([]byte, error)
}

// GenerateSettlementProofs commits to the auction, every submitted bid and the
// voucher set, and asks the NSM to attest the commitment.
func GenerateSettlementProofs(
	attester EnclaveAttester,
	req settlementapi.SettlementRequest,
	result *core.SettlementResult,
	batchID string,
	policy core.VoucherPolicy,
) (settlementapi.AttestationCOSE, error) {
	if attester == nil {
		return nil, fmt.Errorf("enclave attester is nil")
	}

	auctionNonce, err := generateNonce()
	if err != nil {
		return nil, fmt.Errorf("failed to generate auction nonce: %w", err)
	}
	bidHashNonce, err := generateNonce()
	if err != nil {
		return nil, fmt.Errorf("failed to generate bid hash nonce: %w", err)
	}
	voucherHashNonce, err := generateNonce()
	if err != nil {
		return nil, fmt.Errorf("failed to generate voucher hash nonce: %w", err)
	}

	// Every submitted bid is committed, including those screened out
	bidHashes := make([]string, 0, len(req.Bids))
	for _, bid := range req.Bids {
		bidHashes = append(bidHashes, core.ComputeBidHash(bid, bidHashNonce))
	}

	voucherHash, err := core.ComputeVoucherSetHash(result.Vouchers, voucherHashNonce)
	if err != nil {
		return nil, fmt.Errorf("failed to hash voucher set: %w", err)
	}

	userData := &settlementapi.SettlementAttestationUserData{
		BatchID:          batchID,
		AuctionID:        req.Auction.ID,
		AuctionHash:      core.ComputeAuctionHash(req.Auction, auctionNonce),
		AuctionNonce:     auctionNonce,
		BidHashes:        bidHashes,
		BidHashNonce:     bidHashNonce,
		ClearingPrice:    result.ClearingPrice,
		TotalFulfilled:   result.TotalFulfilled,
		VoucherHash:      voucherHash,
		VoucherHashNonce: voucherHashNonce,
		VoucherCount:     len(result.Vouchers),
		Token:            string(policy.Token),
		Treasury:         string(policy.Treasury),
		UnlockTime:       result.UnlockTime,
		Timestamp:        time.Now().UTC(),
	}

	userDataBytes, err := json.Marshal(userData)
	if err != nil {
		return nil, fmt.Errorf("failed to marshal user data: %w", err)
	}

	attestationNonce, err := generateNonce()
	if err != nil {
		return nil, fmt.Errorf("failed to generate attestation nonce: %w", err)
	}

	attestationCBOR, err := attester.Attest(enclave.AttestationOptions{
		UserData: userDataBytes,
		Nonce:    []byte(attestationNonce),
	})
	if err != nil {
		return nil, fmt.Errorf("NSM attestation failed: %w", err)
	}

	log.Debug().Str("batch_id", batchID).Int("bytes", len(attestationCBOR)).Msg("NSM attestation generated")

	return settlementapi.AttestationCOSE(attestationCBOR), nil
}

// generateNonce returns 256 bits of hex encoded entropy.
// Inside the enclave crypto/rand draws from the NSM-seeded kernel pool.
func generateNonce() (string, error) {
	randomBytes := make([]byte, 32)
	if _, err := rand.Read(randomBytes); err != nil {
		return "", fmt.Errorf("entropy generation failed: %w", err)
	}
	return hex.EncodeToString(randomBytes), nil
}
