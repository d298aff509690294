package settlementapi

import (
	"bytes"
	"compress/gzip"
	"encoding/base64"
	"encoding/json"
	"fmt"
	"io"
	"time"

	"github.com/fxamacker/cbor/v2"
)

// AttestationCOSE is a raw COSE_Sign1 attestation as produced by the Nitro Security Module.
type AttestationCOSE []byte

// AttestationCOSEBase64 is a base64 encoded AttestationCOSE.
type AttestationCOSEBase64 string

// AttestationCOSEGzip is a gzip compressed, URL-safe base64 encoded AttestationCOSE
// for transports with tight size limits.
type AttestationCOSEGzip string

// nitroAttestationDocument is the CBOR payload of a Nitro COSE_Sign1 attestation.
type nitroAttestationDocument struct {
	ModuleID    string            `cbor:"module_id"`
	Digest      string            `cbor:"digest"`
	Timestamp   uint64            `cbor:"timestamp"`
	PCRs        map[uint64][]byte `cbor:"pcrs"`
	Certificate []byte            `cbor:"certificate"`
	CABundle    [][]byte          `cbor:"cabundle"`
	PublicKey   []byte            `cbor:"public_key"`
	UserData    []byte            `cbor:"user_data"`
	Nonce       []byte            `cbor:"nonce"`
}

// EncodeBase64 encodes the attestation with standard base64.
func (a AttestationCOSE) EncodeBase64() AttestationCOSEBase64 {
	return AttestationCOSEBase64(base64.StdEncoding.EncodeToString(a))
}

// EncodeURLSafe encodes the attestation with unpadded URL-safe base64.
func (a AttestationCOSE) EncodeURLSafe() AttestationCOSEBase64 {
	return AttestationCOSEBase64(base64.RawURLEncoding.EncodeToString(a))
}

// CompressGzip compresses the attestation and encodes it URL-safe.
func (a AttestationCOSE) CompressGzip() (AttestationCOSEGzip, error) {
	var buf bytes.Buffer
	gz := gzip.NewWriter(&buf)
	if _, err := gz.Write(a); err != nil {
		return "", fmt.Errorf("gzip attestation: %w", err)
	}
	if err := gz.Close(); err != nil {
		return "", fmt.Errorf("gzip attestation: %w", err)
	}
	return AttestationCOSEGzip(base64.RawURLEncoding.EncodeToString(buf.Bytes())), nil
}

// ParseAttestationDoc extracts the attestation document and raw user data
// from the COSE_Sign1 envelope: [protected, unprotected, payload, signature].
func (a AttestationCOSE) ParseAttestationDoc() (AttestationDoc, []byte, error) {
	payload, err := ExtractCOSEPayload(a)
	if err != nil {
		return AttestationDoc{}, nil, err
	}

	var raw nitroAttestationDocument
	if err := cbor.Unmarshal(payload, &raw); err != nil {
		return AttestationDoc{}, nil, fmt.Errorf("parse attestation document: %w", err)
	}

	doc := AttestationDoc{
		ModuleID:        raw.ModuleID,
		Timestamp:       time.UnixMilli(int64(raw.Timestamp)).UTC(),
		DigestAlgorithm: raw.Digest,
		PCRs:            extractPCRs(raw.PCRs),
		CABundle:        encodeCertificateBundle(raw.CABundle),
		Nonce:           string(raw.Nonce),
	}
	if len(raw.Certificate) > 0 {
		doc.Certificate = base64.StdEncoding.EncodeToString(raw.Certificate)
	}
	if len(raw.PublicKey) > 0 {
		doc.PublicKey = base64.StdEncoding.EncodeToString(raw.PublicKey)
	}

	return doc, raw.UserData, nil
}

// ParseSettlementAttestation parses the attestation document and decodes its
// user data as settlement user data.
func (a AttestationCOSE) ParseSettlementAttestation() (*SettlementAttestationDoc, error) {
	doc, userDataBytes, err := a.ParseAttestationDoc()
	if err != nil {
		return nil, err
	}

	result := &SettlementAttestationDoc{AttestationDoc: doc}
	if len(userDataBytes) == 0 {
		return result, nil
	}

	var userData SettlementAttestationUserData
	if err := json.Unmarshal(userDataBytes, &userData); err != nil {
		return nil, fmt.Errorf("parse user data: %w", err)
	}
	result.UserData = &userData
	return result, nil
}

// String returns the encoded form.
func (b AttestationCOSEBase64) String() string {
	return string(b)
}

// Decode accepts standard or unpadded URL-safe base64.
func (b AttestationCOSEBase64) Decode() (AttestationCOSE, error) {
	decoded, err := base64.StdEncoding.DecodeString(string(b))
	if err == nil {
		return AttestationCOSE(decoded), nil
	}
	decoded, urlErr := base64.RawURLEncoding.DecodeString(string(b))
	if urlErr == nil {
		return AttestationCOSE(decoded), nil
	}
	return nil, fmt.Errorf("decode COSE base64: %w", err)
}

// String returns the encoded form.
func (g AttestationCOSEGzip) String() string {
	return string(g)
}

// Decompress reverses CompressGzip.
func (g AttestationCOSEGzip) Decompress() (AttestationCOSE, error) {
	compressed, err := base64.RawURLEncoding.DecodeString(string(g))
	if err != nil {
		return nil, fmt.Errorf("decode gzip base64: %w", err)
	}

	gz, err := gzip.NewReader(bytes.NewReader(compressed))
	if err != nil {
		return nil, fmt.Errorf("open gzip reader: %w", err)
	}
	defer gz.Close()

	raw, err := io.ReadAll(gz)
	if err != nil {
		return nil, fmt.Errorf("decompress attestation: %w", err)
	}
	return AttestationCOSE(raw), nil
}

// ExtractCOSEPayload extracts the payload from a COSE_Sign1 4-element array
// COSE_Sign1 structure: [protected, unprotected, payload, signature]
// Returns the payload bytes (element 2)
func ExtractCOSEPayload(coseBytes []byte) ([]byte, error) {
	var coseArray []any
	if err := cbor.Unmarshal(coseBytes, &coseArray); err != nil {
		return nil, fmt.Errorf("parse COSE array: %w", err)
	}

	if len(coseArray) != 4 {
		return nil, fmt.Errorf("invalid COSE_Sign1 structure: expected 4 elements, got %d", len(coseArray))
	}

	payload, ok := coseArray[2].([]byte)
	if !ok {
		return nil, fmt.Errorf("invalid payload in COSE structure")
	}

	return payload, nil
}

func formatPCR(pcrData []byte) string {
	if len(pcrData) == 0 {
		return ""
	}
	return fmt.Sprintf("%x", pcrData)
}

func extractPCRs(rawPCRs map[uint64][]byte) PCRs {
	return PCRs{
		ImageFileHash:   formatPCR(rawPCRs[0]),
		KernelHash:      formatPCR(rawPCRs[1]),
		ApplicationHash: formatPCR(rawPCRs[2]),
		IAMRoleHash:     formatPCR(rawPCRs[3]),
		InstanceIDHash:  formatPCR(rawPCRs[4]),
		SigningCertHash: formatPCR(rawPCRs[8]),
	}
}

func encodeCertificateBundle(bundle [][]byte) []string {
	result := make([]string, len(bundle))
	for i, cert := range bundle {
		result[i] = base64.StdEncoding.EncodeToString(cert)
	}
	return result
}
