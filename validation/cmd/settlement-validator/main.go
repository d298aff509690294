package main

import (
	"encoding/json"
	"flag"
	"fmt"
	"os"
	"strings"

	"github.com/cloudx-io/voucherauction/core"
	"github.com/cloudx-io/voucherauction/settlementapi"
	"github.com/cloudx-io/voucherauction/validation"
)

func main() {
	var (
		requestInput  = flag.String("request", "", "Settlement request JSON (file path or inline JSON)")
		responseInput = flag.String("response", "", "Settlement response JSON (file path or inline JSON)")
		bidIDs        = flag.String("bids", "", "Comma-separated bid IDs to check for inclusion (default: all bids in the request)")
		token         = flag.String("token", "", "Expected token address")
		treasury      = flag.String("treasury", "", "Expected treasury address")
		pcrConfig     = flag.String("pcrs", "", "PCR configuration file (default: bundled pcrs.json)")
		outputFormat  = flag.String("format", "text", "Output format: text or json")
		help          = flag.Bool("help", false, "Show usage information")
	)

	flag.Parse()

	if *help {
		showUsage()
		os.Exit(0)
	}

	if *requestInput == "" || *responseInput == "" || *token == "" || *treasury == "" {
		showUsage()
		fmt.Fprintf(os.Stderr, "\nError: --request, --response, --token and --treasury are required\n")
		os.Exit(1)
	}

	var request settlementapi.SettlementRequest
	if err := readJSONInput(*requestInput, &request); err != nil {
		fmt.Fprintf(os.Stderr, "Error reading settlement request: %v\n", err)
		os.Exit(2)
	}

	var response settlementapi.SettlementResponse
	if err := readJSONInput(*responseInput, &response); err != nil {
		fmt.Fprintf(os.Stderr, "Error reading settlement response: %v\n", err)
		os.Exit(2)
	}

	input, err := buildValidationInput(request, response, *bidIDs, core.VoucherPolicy{
		Token:    core.Address(*token),
		Treasury: core.Address(*treasury),
	})
	if err != nil {
		fmt.Fprintf(os.Stderr, "Error extracting validation data: %v\n", err)
		os.Exit(2)
	}
	input.PCRConfigPath = *pcrConfig

	result, err := validation.ValidateSettlementAttestation(input)
	if err != nil {
		fmt.Fprintf(os.Stderr, "Validation error: %v\n", err)
		os.Exit(2)
	}

	if *outputFormat == "json" {
		outputJSON(result)
	} else {
		outputText(result)
	}

	if !result.IsValid() {
		os.Exit(1)
	}
	os.Exit(0)
}

func showUsage() {
	fmt.Println("TEE Settlement Attestation Validator")
	fmt.Println()
	fmt.Println("Checks that a published voucher set is the one the settlement enclave attested.")
	fmt.Println()
	fmt.Println("Usage:")
	fmt.Println("  settlement-validator --request <json> --response <json> --token <addr> --treasury <addr> [options]")
	fmt.Println()
	fmt.Println("Required Flags:")
	fmt.Println("  --request <json>        Settlement request sent to the enclave (auction and bids)")
	fmt.Println("  --response <json>       Settlement response returned by the enclave")
	fmt.Println("  --token <addr>          Token address vouchers must target")
	fmt.Println("  --treasury <addr>       Treasury address above-par premiums go to")
	fmt.Println()
	fmt.Println("Optional Flags:")
	fmt.Println("  --bids <id,id>          Only check inclusion of these bids")
	fmt.Println("  --pcrs <file>           Known PCR sets (default: bundled pcrs.json)")
	fmt.Println("  --format <text|json>    Output format (default: text)")
	fmt.Println("  --help                  Show this help message")
	fmt.Println()
	fmt.Println("Each JSON flag accepts either a file path or an inline JSON string.")
	fmt.Println()
	fmt.Println("Exit Codes:")
	fmt.Println("  0 - Validation passed")
	fmt.Println("  1 - Validation failed")
	fmt.Println("  2 - Invalid input or runtime error")
}

// readJSONInput decodes input as a file path if one exists, otherwise as inline JSON.
func readJSONInput(input string, out any) error {
	data, err := os.ReadFile(input)
	if err != nil {
		data = []byte(input)
	}
	return json.Unmarshal(data, out)
}

func buildValidationInput(
	request settlementapi.SettlementRequest,
	response settlementapi.SettlementResponse,
	bidIDs string,
	policy core.VoucherPolicy,
) (*validation.SettlementValidationInput, error) {
	if !response.Success {
		return nil, fmt.Errorf("settlement response reports failure: %s", response.Message)
	}
	if response.ClearingPrice == nil {
		return nil, fmt.Errorf("settlement response has no clearing price")
	}
	if response.AttestationCOSEBase64 == "" {
		return nil, fmt.Errorf("settlement response has no attestation")
	}
	if response.AuctionID != request.Auction.ID {
		return nil, fmt.Errorf("response is for auction %s, request for %s", response.AuctionID, request.Auction.ID)
	}

	bids, err := selectBids(request.Bids, bidIDs)
	if err != nil {
		return nil, err
	}

	return &validation.SettlementValidationInput{
		AttestationCOSEBase64: response.AttestationCOSEBase64,
		Auction:               request.Auction,
		Bids:                  bids,
		ClearingPrice:         *response.ClearingPrice,
		Vouchers:              response.Vouchers,
		Policy:                policy,
	}, nil
}

func selectBids(all []core.Bid, ids string) ([]core.Bid, error) {
	if ids == "" {
		return all, nil
	}

	byID := make(map[string]core.Bid, len(all))
	for _, b := range all {
		byID[b.ID] = b
	}

	var selected []core.Bid
	for _, id := range strings.Split(ids, ",") {
		id = strings.TrimSpace(id)
		if id == "" {
			continue
		}
		b, ok := byID[id]
		if !ok {
			return nil, fmt.Errorf("bid %s not found in settlement request", id)
		}
		selected = append(selected, b)
	}
	return selected, nil
}

func outputText(result *validation.SettlementValidationResult) {
	fmt.Println("TEE Settlement Attestation Validator")
	fmt.Println("====================================")
	fmt.Println()

	fmt.Println("Summary:")
	fmt.Printf("  PCRs Valid:              %v\n", result.PCRsValid)
	fmt.Printf("  Certificate Valid:       %v\n", result.CertificateValid)
	fmt.Printf("  Signature Valid:         %v\n", result.SignatureValid)
	fmt.Printf("  Auction Hash Valid:      %v\n", result.AuctionHashValid)
	fmt.Printf("  Bid Hashes Valid:        %v\n", result.BidHashesValid)
	fmt.Printf("  Clearing Price Valid:    %v\n", result.ClearingPriceValid)
	fmt.Printf("  Voucher Hash Valid:      %v\n", result.VoucherHashValid)
	fmt.Printf("  Policy Valid:            %v\n", result.PolicyValid)

	fmt.Println()
	fmt.Println("Details:")
	for _, detail := range result.ValidationDetails {
		fmt.Printf("  - %s\n", detail)
	}

	fmt.Println()
	fmt.Println("====================================")
	if result.IsValid() {
		fmt.Println("VALIDATION: ✓ PASSED")
	} else {
		fmt.Println("VALIDATION: ✗ FAILED")
	}
}

func outputJSON(result *validation.SettlementValidationResult) {
	output := map[string]any{
		"valid":                result.IsValid(),
		"pcrs_valid":           result.PCRsValid,
		"certificate_valid":    result.CertificateValid,
		"signature_valid":      result.SignatureValid,
		"auction_hash_valid":   result.AuctionHashValid,
		"bid_hashes_valid":     result.BidHashesValid,
		"clearing_price_valid": result.ClearingPriceValid,
		"voucher_hash_valid":   result.VoucherHashValid,
		"policy_valid":         result.PolicyValid,
		"details":              result.ValidationDetails,
	}

	data, err := json.MarshalIndent(output, "", "  ")
	if err != nil {
		fmt.Fprintf(os.Stderr, "Error marshaling JSON: %v\n", err)
		os.Exit(2)
	}
	fmt.Println(string(data))
}
