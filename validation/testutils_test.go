package validation

import (
	"crypto/ecdsa"
	"crypto/elliptic"
	"crypto/rand"
	"crypto/x509"
	"crypto/x509/pkix"
	"encoding/base64"
	"encoding/json"
	"math/big"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/fxamacker/cbor/v2"
	"github.com/veraison/go-cose"

	"github.com/cloudx-io/voucherauction/core"
	"github.com/cloudx-io/voucherauction/settlementapi"
)

var (
	testPCR0 = []byte{0x01, 0x02, 0x03, 0x04}
	testPCR1 = []byte{0x11, 0x12, 0x13, 0x14}
	testPCR2 = []byte{0x21, 0x22, 0x23, 0x24}
)

var testPolicy = core.VoucherPolicy{Token: "token_contract", Treasury: "mine_treasury"}

// testSigner is a self-signed P-384 identity standing in for the NSM.
type testSigner struct {
	key     *ecdsa.PrivateKey
	certDER []byte
}

func newTestSigner(t *testing.T) *testSigner {
	t.Helper()
	key, err := ecdsa.GenerateKey(elliptic.P384(), rand.Reader)
	if err != nil {
		t.Fatalf("generate key: %v", err)
	}

	tmpl := &x509.Certificate{
		SerialNumber:          big.NewInt(1),
		Subject:               pkix.Name{CommonName: "settlement-enclave-test"},
		NotBefore:             time.Now().Add(-time.Hour),
		NotAfter:              time.Now().Add(time.Hour),
		KeyUsage:              x509.KeyUsageDigitalSignature | x509.KeyUsageCertSign,
		IsCA:                  true,
		BasicConstraintsValid: true,
	}
	der, err := x509.CreateCertificate(rand.Reader, tmpl, tmpl, &key.PublicKey, key)
	if err != nil {
		t.Fatalf("create certificate: %v", err)
	}
	return &testSigner{key: key, certDER: der}
}

func (s *testSigner) certB64() string {
	return base64.StdEncoding.EncodeToString(s.certDER)
}

// sign wraps payload in an untagged ES384 COSE_Sign1 array.
func (s *testSigner) sign(t *testing.T, payload []byte) []byte {
	t.Helper()
	protected, err := cbor.Marshal(map[int]int{1: -35})
	if err != nil {
		t.Fatalf("marshal protected header: %v", err)
	}
	toBeSigned, err := sigStructure(protected, payload)
	if err != nil {
		t.Fatalf("sig structure: %v", err)
	}

	signer, err := cose.NewSigner(cose.AlgorithmES384, s.key)
	if err != nil {
		t.Fatalf("create signer: %v", err)
	}
	signature, err := signer.Sign(rand.Reader, toBeSigned)
	if err != nil {
		t.Fatalf("sign: %v", err)
	}

	out, err := cbor.Marshal([]any{protected, map[any]any{}, payload, signature})
	if err != nil {
		t.Fatalf("marshal COSE: %v", err)
	}
	return out
}

// attest builds a signed Nitro-shaped attestation carrying userData as JSON.
// A nil userData leaves the field out.
func (s *testSigner) attest(t *testing.T, userData any) settlementapi.AttestationCOSEBase64 {
	t.Helper()
	doc := map[string]any{
		"module_id":   "settlement-enclave-test",
		"digest":      "SHA384",
		"timestamp":   uint64(time.Now().UnixMilli()),
		"pcrs":        map[uint64][]byte{0: testPCR0, 1: testPCR1, 2: testPCR2},
		"certificate": s.certDER,
		"cabundle":    [][]byte{s.certDER},
		"nonce":       []byte("attestation-nonce"),
	}
	if userData != nil {
		raw, err := json.Marshal(userData)
		if err != nil {
			t.Fatalf("marshal user data: %v", err)
		}
		doc["user_data"] = raw
	}

	payload, err := cbor.Marshal(doc)
	if err != nil {
		t.Fatalf("marshal attestation document: %v", err)
	}
	return settlementapi.AttestationCOSE(s.sign(t, payload)).EncodeBase64()
}

// writePCRConfig writes a pcrs.json that accepts the test PCRs.
func writePCRConfig(t *testing.T) string {
	t.Helper()
	cfg := PCRConfig{PCRSets: []PCRSet{{
		PCR0:       "01020304",
		PCR1:       "11121314",
		PCR2:       "21222324",
		CommitHash: "testcommit",
	}}}
	raw, err := json.Marshal(cfg)
	if err != nil {
		t.Fatalf("marshal PCR config: %v", err)
	}
	path := filepath.Join(t.TempDir(), "pcrs.json")
	if err := os.WriteFile(path, raw, 0o600); err != nil {
		t.Fatalf("write PCR config: %v", err)
	}
	return path
}

// settledAuction settles a two-bidder auction and builds the user data the
// enclave would attest for it.
func settledAuction(t *testing.T) (core.Auction, []core.Bid, *core.SettlementResult, *settlementapi.SettlementAttestationUserData) {
	t.Helper()
	auction := core.Auction{ID: "a", EndTime: 200, LockTime: 100, VolumeLimit: 100, ReservePrice: 0.5}
	bids := []core.Bid{
		{ID: "b1", AuctionID: "a", Timestamp: 95, Volume: 100, Price: 0.6, Bidder: "aaaa"},
		{ID: "b2", AuctionID: "a", Timestamp: 95, Volume: 100, Price: 0.4, Bidder: "aaaa"},
		{ID: "b5", AuctionID: "a", Timestamp: 95, Volume: 90, Price: 0.8, Bidder: "abaa"},
	}

	result, err := core.RunSettlement(auction, bids, testPolicy)
	if err != nil {
		t.Fatalf("run settlement: %v", err)
	}

	bidHashes := make([]string, 0, len(bids))
	for _, b := range bids {
		bidHashes = append(bidHashes, core.ComputeBidHash(b, "bid-nonce"))
	}
	voucherHash, err := core.ComputeVoucherSetHash(result.Vouchers, "voucher-nonce")
	if err != nil {
		t.Fatalf("hash vouchers: %v", err)
	}

	userData := &settlementapi.SettlementAttestationUserData{
		BatchID:          "batch-1",
		AuctionID:        auction.ID,
		AuctionHash:      core.ComputeAuctionHash(auction, "auction-nonce"),
		AuctionNonce:     "auction-nonce",
		BidHashes:        bidHashes,
		BidHashNonce:     "bid-nonce",
		ClearingPrice:    result.ClearingPrice,
		TotalFulfilled:   result.TotalFulfilled,
		VoucherHash:      voucherHash,
		VoucherHashNonce: "voucher-nonce",
		VoucherCount:     len(result.Vouchers),
		Token:            string(testPolicy.Token),
		Treasury:         string(testPolicy.Treasury),
		UnlockTime:       result.UnlockTime,
		Timestamp:        time.Now().UTC(),
	}
	return auction, bids, result, userData
}
