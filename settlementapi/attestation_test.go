package settlementapi

import (
	"encoding/json"
	"strings"
	"testing"

	"github.com/fxamacker/cbor/v2"
	"github.com/peterldowns/testy/assert"
	"github.com/peterldowns/testy/check"
)

// buildCOSE wraps a nitro attestation document in an untagged COSE_Sign1 array.
func buildCOSE(t *testing.T, doc map[string]any) AttestationCOSE {
	t.Helper()

	payload, err := cbor.Marshal(doc)
	assert.NoError(t, err)

	coseBytes, err := cbor.Marshal([]any{
		[]byte{0xa1, 0x01, 0x38, 0x22},
		map[string]any{},
		payload,
		[]byte{0x04, 0x05, 0x06},
	})
	assert.NoError(t, err)
	return AttestationCOSE(coseBytes)
}

func TestAttestationCOSE_EncodeBase64(t *testing.T) {
	coseBytes := AttestationCOSE([]byte("mock-cose-attestation-data"))

	encoded := coseBytes.EncodeBase64()
	check.NotEqual(t, "", encoded.String())

	decoded, err := encoded.Decode()
	check.NoError(t, err)
	check.Equal(t, coseBytes, decoded)
}

func TestAttestationCOSE_EncodeURLSafe(t *testing.T) {
	coseBytes := AttestationCOSE([]byte("mock-cose-attestation-data-for-url-encoding"))

	encoded := coseBytes.EncodeURLSafe()
	check.False(t, strings.Contains(encoded.String(), "="))

	decoded, err := encoded.Decode()
	check.NoError(t, err)
	check.Equal(t, coseBytes, decoded)
}

func TestAttestationCOSEBase64_DecodeInvalid(t *testing.T) {
	result, err := AttestationCOSEBase64("not-valid-base64!!!@@@").Decode()
	check.Error(t, err)
	check.True(t, strings.Contains(err.Error(), "decode COSE base64"))
	check.Nil(t, result)
}

func TestAttestationCOSE_CompressGzip(t *testing.T) {
	coseBytes := AttestationCOSE([]byte("mock-cose-attestation-data-for-compression-testing"))

	compressed, err := coseBytes.CompressGzip()
	assert.NoError(t, err)

	compressedStr := compressed.String()
	check.False(t, strings.ContainsAny(compressedStr, "+/="))

	decompressed, err := compressed.Decompress()
	check.NoError(t, err)
	check.Equal(t, coseBytes, decompressed)

	again, err := coseBytes.CompressGzip()
	check.NoError(t, err)
	check.Equal(t, compressed, again)
}

func TestAttestationCOSEGzip_DecompressInvalid(t *testing.T) {
	_, err := AttestationCOSEGzip("bm90LWd6aXA").Decompress()
	check.Error(t, err)
}

func TestExtractCOSEPayload_Errors(t *testing.T) {
	_, err := ExtractCOSEPayload([]byte{0xff, 0x00})
	check.Error(t, err)

	threeElements, err := cbor.Marshal([]any{[]byte{}, map[string]any{}, []byte{}})
	assert.NoError(t, err)
	_, err = ExtractCOSEPayload(threeElements)
	check.Error(t, err)
	check.True(t, strings.Contains(err.Error(), "expected 4 elements"))

	stringPayload, err := cbor.Marshal([]any{[]byte{}, map[string]any{}, "payload", []byte{}})
	assert.NoError(t, err)
	_, err = ExtractCOSEPayload(stringPayload)
	check.Error(t, err)
}

func TestParseSettlementAttestation(t *testing.T) {
	userData := SettlementAttestationUserData{
		BatchID:       "batch-1",
		AuctionID:     "auction-1",
		BidHashes:     []string{"aa", "bb"},
		ClearingPrice: 0.7,
		VoucherHash:   "cc",
		VoucherCount:  3,
		Token:         "token",
		Treasury:      "treasury",
		UnlockTime:    100,
	}
	userDataBytes, err := json.Marshal(userData)
	assert.NoError(t, err)

	coseBytes := buildCOSE(t, map[string]any{
		"module_id":   "test-enclave",
		"digest":      "SHA384",
		"timestamp":   uint64(1700000000000),
		"pcrs":        map[uint64][]byte{0: {0x3b, 0x4c}, 1: {0x4b}, 2: {0x2b}},
		"certificate": []byte("cert"),
		"cabundle":    [][]byte{[]byte("root")},
		"user_data":   userDataBytes,
		"nonce":       []byte("nonce-1"),
	})

	doc, err := coseBytes.ParseSettlementAttestation()
	assert.NoError(t, err)
	assert.NotNil(t, doc.UserData)

	check.Equal(t, "test-enclave", doc.ModuleID)
	check.Equal(t, "SHA384", doc.DigestAlgorithm)
	check.Equal(t, "3b4c", doc.PCRs.ImageFileHash)
	check.Equal(t, "", doc.PCRs.SigningCertHash)
	check.Equal(t, int64(1700000000), doc.Timestamp.Unix())
	check.Equal(t, "Y2VydA==", doc.Certificate)
	check.Equal(t, 1, len(doc.CABundle))
	check.Equal(t, "nonce-1", doc.Nonce)

	check.Equal(t, "batch-1", doc.UserData.BatchID)
	check.Equal(t, 0.7, doc.UserData.ClearingPrice)
	check.Equal(t, []string{"aa", "bb"}, doc.UserData.BidHashes)
	check.Equal(t, 3, doc.UserData.VoucherCount)
}

func TestParseSettlementAttestation_NoUserData(t *testing.T) {
	coseBytes := buildCOSE(t, map[string]any{"module_id": "test-enclave"})

	doc, err := coseBytes.ParseSettlementAttestation()
	assert.NoError(t, err)
	check.Nil(t, doc.UserData)
}

func TestParseSettlementAttestation_BadUserData(t *testing.T) {
	coseBytes := buildCOSE(t, map[string]any{"user_data": []byte("{not json")})

	_, err := coseBytes.ParseSettlementAttestation()
	check.Error(t, err)
	check.True(t, strings.Contains(err.Error(), "parse user data"))
}
