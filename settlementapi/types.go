package settlementapi

import (
	"time"

	"github.com/cloudx-io/voucherauction/core"
)

// Request and response type tags carried in the "type" field.
const (
	TypePing               = "ping"
	TypePong               = "pong"
	TypeError              = "error"
	TypeSettlementRequest  = "settlement_request"
	TypeSettlementResponse = "settlement_response"
)

// PCRs represents the Platform Configuration Registers from AWS Nitro Enclaves
type PCRs struct {
	// PCR0: Hash of the Enclave Image File (EIF)
	ImageFileHash string `json:"0"`

	// PCR1: Hash of the Linux kernel and initial RAM data (initramfs)
	KernelHash string `json:"1"`

	// PCR2: Hash of user applications, excluding the boot ramfs
	ApplicationHash string `json:"2"`

	// PCR3: Hash of the IAM role assigned to the parent instance
	IAMRoleHash string `json:"3"`

	// PCR4: Hash of the parent instance's ID
	InstanceIDHash string `json:"4"`

	// PCR8: Hash of the enclave image file's signing certificate
	SigningCertHash string `json:"8,omitempty"`
}

// AttestationDoc holds the fields of a Nitro attestation document that are
// common to every attestation the enclave produces.
type AttestationDoc struct {
	ModuleID        string    `json:"module_id"`
	Timestamp       time.Time `json:"timestamp"`
	DigestAlgorithm string    `json:"digest"`
	PCRs            PCRs      `json:"pcrs"`
	Certificate     string    `json:"certificate"` // base64 DER
	CABundle        []string  `json:"cabundle"`    // base64 DER, root first
	PublicKey       string    `json:"public_key"`
	Nonce           string    `json:"nonce"`
}

// SettlementAttestationDoc is an attestation whose user data commits to a settlement batch.
type SettlementAttestationDoc struct {
	AttestationDoc
	UserData *SettlementAttestationUserData `json:"user_data"`
}

// SettlementAttestationUserData is the settlement-specific data embedded in the attestation.
type SettlementAttestationUserData struct {
	BatchID          string    `json:"batch_id"`
	AuctionID        string    `json:"auction_id"`
	AuctionHash      string    `json:"auction_hash"`
	AuctionNonce     string    `json:"auction_nonce"`
	BidHashes        []string  `json:"bid_hashes"`
	BidHashNonce     string    `json:"bid_hash_nonce"`
	ClearingPrice    float64   `json:"clearing_price"`
	TotalFulfilled   float64   `json:"total_fulfilled"`
	VoucherHash      string    `json:"voucher_hash"`
	VoucherHashNonce string    `json:"voucher_hash_nonce"`
	VoucherCount     int       `json:"voucher_count"`
	Token            string    `json:"token"`
	Treasury         string    `json:"treasury"`
	UnlockTime       int64     `json:"unlock_time"`
	Timestamp        time.Time `json:"timestamp"`
}

// SettlementRequest asks the enclave to settle one auction over the collected bids.
type SettlementRequest struct {
	Type      string       `json:"type"`
	Auction   core.Auction `json:"auction"`
	Bids      []core.Bid   `json:"bids"`
	Timestamp time.Time    `json:"timestamp"`
}

// SettlementResponse carries the voucher set for the custody layer.
// ClearingPrice is nil when the auction did not clear.
type SettlementResponse struct {
	Type                  string                `json:"type"`
	Success               bool                  `json:"success"`
	Message               string                `json:"message"`
	BatchID               string                `json:"batch_id,omitempty"`
	AuctionID             string                `json:"auction_id"`
	ClearingPrice         *float64              `json:"clearing_price,omitempty"`
	TotalFulfilled        float64               `json:"total_fulfilled"`
	Vouchers              []core.Voucher        `json:"vouchers,omitempty"`
	ExcludedBids          []core.ExcludedBid    `json:"excluded_bids,omitempty"`
	UnlockTime            int64                 `json:"unlock_time"`
	AttestationCOSEBase64 AttestationCOSEBase64 `json:"attestation_cose_base64,omitempty"`
	ProcessingTime        int64                 `json:"processing_time_ms"`
}

// ErrorResponse is returned for requests the enclave cannot route or decode.
type ErrorResponse struct {
	Type    string `json:"type"`
	Message string `json:"message"`
}

// PongResponse answers a ping.
type PongResponse struct {
	Type      string `json:"type"`
	Message   string `json:"message"`
	Timestamp int64  `json:"timestamp"`
}
