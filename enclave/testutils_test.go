package main

import (
	"encoding/hex"
	"fmt"
	"testing"

	enclave "github.com/edgebitio/nitro-enclaves-sdk-go"
	"github.com/fxamacker/cbor/v2"

	"github.com/cloudx-io/voucherauction/core"
	"github.com/cloudx-io/voucherauction/settlementapi"
)

var testPolicy = core.VoucherPolicy{Token: "token_contract", Treasury: "mine_treasury"}

// MockEnclaveHandle implements the Attest method for testing
type MockEnclaveHandle struct {
	AttestFunc func(options enclave.AttestationOptions) ([]byte, error)
}

func (m *MockEnclaveHandle) Attest(options enclave.AttestationOptions) ([]byte, error) {
	if m.AttestFunc != nil {
		return m.AttestFunc(options)
	}
	return nil, fmt.Errorf("mock not configured")
}

func mustDecodeHex(t *testing.T, hexStr string) []byte {
	t.Helper()
	b, err := hex.DecodeString(hexStr)
	if err != nil {
		t.Fatalf("invalid hex string: %s", hexStr)
	}
	return b
}

// CreateMockEnclave returns a handle producing a Nitro-shaped COSE_Sign1
// array with the requested user data and nonce embedded.
func CreateMockEnclave(t *testing.T) *MockEnclaveHandle {
	t.Helper()
	pcr0 := mustDecodeHex(t, "3b4cef27e672fdbcc808960a88ddfe7329dd2e367b6850c9a8d910315f0b47e4224d6db361b75e010c87691d86ca9c57")
	pcr2 := mustDecodeHex(t, "2bdd28c1d85bb3872da3617a29a6bfeb50c65750c995f92e7dac6b5f2c4c72e0f9976bdee62a0b25864d10dffb535e11")

	return &MockEnclaveHandle{
		AttestFunc: func(options enclave.AttestationOptions) ([]byte, error) {
			nestedDoc := map[string]any{
				"module_id":   "settlement-enclave-test",
				"digest":      "SHA384",
				"timestamp":   uint64(1700000000000),
				"pcrs":        map[uint64][]byte{0: pcr0, 2: pcr2},
				"certificate": []byte("test-certificate-data"),
				"cabundle":    [][]byte{[]byte("test-ca-cert")},
				"public_key":  []byte("test-public-key-data"),
				"user_data":   options.UserData,
				"nonce":       options.Nonce,
			}

			nestedBytes, err := cbor.Marshal(nestedDoc)
			if err != nil {
				return nil, err
			}

			// [protected, unprotected, payload, signature]
			return cbor.Marshal([]any{
				[]byte{0xa1, 0x01, 0x38, 0x22},
				map[string]any{},
				nestedBytes,
				[]byte{0x04, 0x05, 0x06},
			})
		},
	}
}

// failingEnclave returns a handle whose attestation always fails.
func failingEnclave() *MockEnclaveHandle {
	return &MockEnclaveHandle{
		AttestFunc: func(enclave.AttestationOptions) ([]byte, error) {
			return nil, fmt.Errorf("nsm device unavailable")
		},
	}
}

// referenceRequest is a two-bidder auction that clears at 0.6.
func referenceRequest() settlementapi.SettlementRequest {
	return settlementapi.SettlementRequest{
		Type:    settlementapi.TypeSettlementRequest,
		Auction: core.Auction{ID: "a", EndTime: 200, LockTime: 100, VolumeLimit: 100, ReservePrice: 0.5},
		Bids: []core.Bid{
			{ID: "b1", AuctionID: "a", Timestamp: 95, Volume: 100, Price: 0.6, Bidder: "aaaa"},
			{ID: "b2", AuctionID: "a", Timestamp: 95, Volume: 100, Price: 0.4, Bidder: "aaaa"},
			{ID: "b3", AuctionID: "a", Timestamp: 1100, Volume: 110, Price: 0.7, Bidder: "aaaa"},
			{ID: "b4", AuctionID: "b", Timestamp: 95, Volume: 100, Price: 0.71, Bidder: "aaaa"},
			{ID: "b5", AuctionID: "a", Timestamp: 95, Volume: 90, Price: 0.8, Bidder: "abaa"},
		},
	}
}

func parseSettlementAttestation(t *testing.T, b64 settlementapi.AttestationCOSEBase64) *settlementapi.SettlementAttestationDoc {
	t.Helper()
	raw, err := b64.Decode()
	if err != nil {
		t.Fatalf("decode attestation: %v", err)
	}
	doc, err := raw.ParseSettlementAttestation()
	if err != nil {
		t.Fatalf("parse attestation: %v", err)
	}
	return doc
}
