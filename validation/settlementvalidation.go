package validation

import (
	"fmt"

	"github.com/cloudx-io/voucherauction/core"
	"github.com/cloudx-io/voucherauction/settlementapi"
)

// SettlementValidationInput contains all inputs needed for settlement attestation validation
type SettlementValidationInput struct {
	AttestationCOSEBase64 settlementapi.AttestationCOSEBase64
	Auction               core.Auction
	Bids                  []core.Bid         // bids the caller expects to be committed, usually their own
	ClearingPrice         float64            // clearing price published with the voucher set
	Vouchers              []core.Voucher     // voucher set handed to the custody layer
	Policy                core.VoucherPolicy // expected token and treasury addresses
	PCRConfigPath         string             // empty uses the bundled pcrs.json
}

// ValidateSettlementAttestation validates a TEE settlement attestation and verifies:
// - The attested auction parameters match
// - Every given bid was committed
// - Clearing price matches
// - The published voucher set is the attested one
// - Vouchers target the expected token and treasury
//
// Returns:
//   - SettlementValidationResult with detailed results (call result.IsValid() to check overall status)
//   - error if validation cannot be performed (e.g., malformed input, missing config)
func ValidateSettlementAttestation(input *SettlementValidationInput) (*SettlementValidationResult, error) {
	baseResult, err := validateCommonAttestation(input.AttestationCOSEBase64, input.PCRConfigPath)
	if err != nil {
		return nil, err
	}

	coseBytes, err := input.AttestationCOSEBase64.Decode()
	if err != nil {
		return nil, fmt.Errorf("decode COSE bytes: %w", err)
	}
	attestation, err := coseBytes.ParseSettlementAttestation()
	if err != nil {
		return nil, fmt.Errorf("failed to parse settlement attestation: %w", err)
	}

	result := &SettlementValidationResult{
		BaseValidationResult: *baseResult,
	}

	if attestation.UserData == nil {
		result.ValidationDetails = append(result.ValidationDetails, "Attestation user data missing")
		return result, nil
	}
	userData := attestation.UserData

	result.AuctionHashValid = validateAuctionHash(input, userData, result)
	result.BidHashesValid = validateBidHashes(input, userData, result)
	result.ClearingPriceValid = validateClearingPrice(input, userData, result)
	result.VoucherHashValid = validateVoucherHash(input, userData, result)
	result.PolicyValid = validatePolicy(input, userData, result)

	return result, nil
}

func validateAuctionHash(input *SettlementValidationInput, userData *settlementapi.SettlementAttestationUserData, result *SettlementValidationResult) bool {
	if userData.AuctionID != input.Auction.ID {
		result.ValidationDetails = append(result.ValidationDetails, fmt.Sprintf("Auction ID mismatch: expected %s, attestation has %s", input.Auction.ID, userData.AuctionID))
		return false
	}
	if userData.AuctionNonce == "" {
		result.ValidationDetails = append(result.ValidationDetails, "Auction nonce missing from attestation")
		return false
	}

	computedHash := core.ComputeAuctionHash(input.Auction, userData.AuctionNonce)
	if computedHash != userData.AuctionHash {
		result.ValidationDetails = append(result.ValidationDetails, fmt.Sprintf("Auction hash mismatch: computed %s, attestation has %s", computedHash, userData.AuctionHash))
		return false
	}

	result.ValidationDetails = append(result.ValidationDetails, fmt.Sprintf("Auction hash validation passed: %s", computedHash))
	return true
}

func validateBidHashes(input *SettlementValidationInput, userData *settlementapi.SettlementAttestationUserData, result *SettlementValidationResult) bool {
	if userData.BidHashNonce == "" {
		result.ValidationDetails = append(result.ValidationDetails, "Bid hash nonce missing from attestation")
		return false
	}

	attested := make(map[string]struct{}, len(userData.BidHashes))
	for _, h := range userData.BidHashes {
		attested[h] = struct{}{}
	}

	valid := true
	for _, bid := range input.Bids {
		computedHash := core.ComputeBidHash(bid, userData.BidHashNonce)
		if _, ok := attested[computedHash]; ok {
			result.ValidationDetails = append(result.ValidationDetails, fmt.Sprintf("Bid %s found in attestation: %s", bid.ID, computedHash))
			continue
		}
		valid = false
		result.ValidationDetails = append(result.ValidationDetails, fmt.Sprintf("Bid %s NOT found in attestation. Computed: %s", bid.ID, computedHash))
	}

	if !valid {
		result.ValidationDetails = append(result.ValidationDetails, fmt.Sprintf("Total hashes in attestation: %d", len(userData.BidHashes)))
	}
	return valid
}

func validateClearingPrice(input *SettlementValidationInput, userData *settlementapi.SettlementAttestationUserData, result *SettlementValidationResult) bool {
	if input.ClearingPrice == userData.ClearingPrice {
		result.ValidationDetails = append(result.ValidationDetails, fmt.Sprintf("Clearing price validation passed: %.6f", input.ClearingPrice))
		return true
	}

	result.ValidationDetails = append(result.ValidationDetails, fmt.Sprintf("Clearing price mismatch: expected %.6f, attestation has %.6f", input.ClearingPrice, userData.ClearingPrice))
	return false
}

func validateVoucherHash(input *SettlementValidationInput, userData *settlementapi.SettlementAttestationUserData, result *SettlementValidationResult) bool {
	if userData.VoucherHashNonce == "" {
		result.ValidationDetails = append(result.ValidationDetails, "Voucher hash nonce missing from attestation")
		return false
	}
	if len(input.Vouchers) != userData.VoucherCount {
		result.ValidationDetails = append(result.ValidationDetails, fmt.Sprintf("Voucher count mismatch: got %d, attestation has %d", len(input.Vouchers), userData.VoucherCount))
		return false
	}

	computedHash, err := core.ComputeVoucherSetHash(input.Vouchers, userData.VoucherHashNonce)
	if err != nil {
		result.ValidationDetails = append(result.ValidationDetails, fmt.Sprintf("Voucher hash computation failed: %v", err))
		return false
	}
	if computedHash != userData.VoucherHash {
		result.ValidationDetails = append(result.ValidationDetails, fmt.Sprintf("Voucher hash mismatch: computed %s, attestation has %s", computedHash, userData.VoucherHash))
		return false
	}

	result.ValidationDetails = append(result.ValidationDetails, fmt.Sprintf("Voucher hash validation passed: %d vouchers", len(input.Vouchers)))
	return true
}

func validatePolicy(input *SettlementValidationInput, userData *settlementapi.SettlementAttestationUserData, result *SettlementValidationResult) bool {
	valid := true
	if string(input.Policy.Token) != userData.Token {
		valid = false
		result.ValidationDetails = append(result.ValidationDetails, fmt.Sprintf("Token mismatch: expected %s, attestation has %s", input.Policy.Token, userData.Token))
	}
	if string(input.Policy.Treasury) != userData.Treasury {
		valid = false
		result.ValidationDetails = append(result.ValidationDetails, fmt.Sprintf("Treasury mismatch: expected %s, attestation has %s", input.Policy.Treasury, userData.Treasury))
	}

	for _, v := range input.Vouchers {
		if v.Target != input.Policy.Token {
			valid = false
			result.ValidationDetails = append(result.ValidationDetails, fmt.Sprintf("Voucher for %s targets %s instead of the attested token", v.Destination, v.Target))
		}
	}

	if valid {
		result.ValidationDetails = append(result.ValidationDetails, "Voucher policy validation passed")
	}
	return valid
}
