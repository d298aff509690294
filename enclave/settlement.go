package main

import (
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/rs/zerolog/log"

	"github.com/cloudx-io/voucherauction/core"
	"github.com/cloudx-io/voucherauction/settlementapi"
)

// ProcessSettlement settles one auction and attests the resulting voucher set.
func ProcessSettlement(attester EnclaveAttester, req settlementapi.SettlementRequest, policy core.VoucherPolicy) settlementapi.SettlementResponse {
	startTime := time.Now()
	batchID := uuid.NewString()

	logger := log.With().
		Str("auction_id", req.Auction.ID).
		Str("batch_id", batchID).
		Logger()
	logger.Info().Int("bids", len(req.Bids)).Msg("processing settlement")

	failure := func(outcome, message string) settlementapi.SettlementResponse {
		processingTime := time.Since(startTime)
		observeSettlement(outcome, processingTime)
		return settlementapi.SettlementResponse{
			Type:           settlementapi.TypeSettlementResponse,
			Success:        false,
			Message:        message,
			BatchID:        batchID,
			AuctionID:      req.Auction.ID,
			UnlockTime:     req.Auction.LockTime,
			ProcessingTime: processingTime.Milliseconds(),
		}
	}

	result, err := core.RunSettlement(req.Auction, req.Bids, policy)
	switch {
	case errors.Is(err, core.ErrNoClearingPrice):
		logger.Warn().Err(err).Msg("auction did not clear")
		return failure(outcomeNoClearingPrice, fmt.Sprintf("Auction %s did not clear: %v", req.Auction.ID, err))
	case errors.Is(err, core.ErrInvalidInput):
		logger.Warn().Err(err).Msg("rejected settlement request")
		return failure(outcomeInvalidInput, fmt.Sprintf("Invalid settlement request: %v", err))
	case err != nil:
		logger.Error().Err(err).Msg("settlement failed")
		return failure(outcomeError, fmt.Sprintf("Settlement failed: %v", err))
	}

	attestation, err := GenerateSettlementProofs(attester, req, result, batchID, policy)
	if err != nil {
		logger.Error().Err(err).Msg("TEE attestation failed")
		return failure(outcomeError, fmt.Sprintf("Enclave processing failed: %v", err))
	}

	processingTime := time.Since(startTime)
	observeSettlement(outcomeSettled, processingTime)
	observeVouchers(result.Vouchers)

	logger.Info().
		Float64("clearing_price", result.ClearingPrice).
		Float64("total_fulfilled", result.TotalFulfilled).
		Int("eligible", len(result.EligibleBids)).
		Int("excluded", len(result.ExcludedBids)).
		Int("vouchers", len(result.Vouchers)).
		Int64("processing_ms", processingTime.Milliseconds()).
		Msg("settlement complete")

	clearingPrice := result.ClearingPrice
	return settlementapi.SettlementResponse{
		Type:                  settlementapi.TypeSettlementResponse,
		Success:               true,
		Message:               fmt.Sprintf("Settled %d bids into %d vouchers", len(result.EligibleBids), len(result.Vouchers)),
		BatchID:               batchID,
		AuctionID:             result.AuctionID,
		ClearingPrice:         &clearingPrice,
		TotalFulfilled:        result.TotalFulfilled,
		Vouchers:              result.Vouchers,
		ExcludedBids:          result.ExcludedBids,
		UnlockTime:            result.UnlockTime,
		AttestationCOSEBase64: attestation.EncodeBase64(),
		ProcessingTime:        processingTime.Milliseconds(),
	}
}
