package core

import (
	"fmt"

	"github.com/shopspring/decimal"
)

// par is the reference value the clearing price is compared against.
var par = decimal.NewFromInt(1)

// Validate checks that both policy addresses are set.
func (p VoucherPolicy) Validate() error {
	if p.Token == "" {
		return fmt.Errorf("%w: voucher policy has no token address", ErrInvalidInput)
	}
	if p.Treasury == "" {
		return fmt.Errorf("%w: voucher policy has no treasury address", ErrInvalidInput)
	}
	return nil
}

// SettlementAmounts holds the per-bidder amounts a voucher set is built from.
type SettlementAmounts struct {
	Refund   decimal.Decimal
	Settle   decimal.Decimal
	Mint     decimal.Decimal
	Redirect decimal.Decimal
}

// ComputeSettlementAmounts derives refund, settlement, bonus mint and treasury
// redirect amounts for one allocation outcome at the given clearing price.
//
// Mint and redirect use floor division toward zero:
//
//	mint     = max(floor((1 - price) * fulfilled / price), 0)
//	redirect = max(floor((price - 1) * fulfilled / price), 0)
func ComputeSettlementAmounts(output BidOutput, price float64) (SettlementAmounts, error) {
	if !isFinite(price) || price <= 0 {
		return SettlementAmounts{}, fmt.Errorf("%w: clearing price %v must be positive", ErrInvalidInput, price)
	}
	if !isFinite(output.AmountSent) || !isFinite(output.AmountFulfilled) ||
		output.AmountFulfilled < 0 || output.AmountFulfilled > output.AmountSent {
		return SettlementAmounts{}, fmt.Errorf("%w: bidder %s fulfilled %v of %v",
			ErrInvalidInput, output.Bidder, output.AmountFulfilled, output.AmountSent)
	}

	sent := decimal.NewFromFloat(output.AmountSent)
	fulfilled := decimal.NewFromFloat(output.AmountFulfilled)
	priceDecimal := decimal.NewFromFloat(price)

	mint := floorDiv(par.Sub(priceDecimal).Mul(fulfilled), priceDecimal)
	redirect := floorDiv(priceDecimal.Sub(par).Mul(fulfilled), priceDecimal)

	return SettlementAmounts{
		Refund:   sent.Sub(fulfilled),
		Settle:   fulfilled.Sub(redirect),
		Mint:     mint,
		Redirect: redirect,
	}, nil
}

// GenerateVouchers returns the instructions that settle one bidder at the
// clearing price. Instructions with a zero amount are omitted. Order:
// refund, settlement, bonus mint, treasury redirect.
func GenerateVouchers(output BidOutput, price float64, policy VoucherPolicy) ([]Voucher, error) {
	if err := policy.Validate(); err != nil {
		return nil, err
	}

	amounts, err := ComputeSettlementAmounts(output, price)
	if err != nil {
		return nil, err
	}

	candidates := []struct {
		operation   Operation
		destination Address
		amount      decimal.Decimal
		locked      bool
	}{
		{OperationTransfer, output.Bidder, amounts.Refund, false},
		{OperationTransfer, output.Bidder, amounts.Settle, true},
		{OperationMint, output.Bidder, amounts.Mint, true},
		{OperationTransfer, policy.Treasury, amounts.Redirect, true},
	}

	vouchers := make([]Voucher, 0, len(candidates))
	for _, c := range candidates {
		if !c.amount.IsPositive() {
			continue
		}
		vouchers = append(vouchers, Voucher{
			Target:      policy.Token,
			Operation:   c.operation,
			Destination: c.destination,
			Amount:      toFloat(c.amount),
			Locked:      c.locked,
		})
	}
	return vouchers, nil
}

// GenerateAuctionVouchers concatenates the vouchers of every bid output.
func GenerateAuctionVouchers(outputs []BidOutput, price float64, policy VoucherPolicy) ([]Voucher, error) {
	all := make([]Voucher, 0, len(outputs)*2)
	for _, o := range outputs {
		vouchers, err := GenerateVouchers(o, price, policy)
		if err != nil {
			return nil, err
		}
		all = append(all, vouchers...)
	}
	return all, nil
}

// floorDiv divides and truncates toward zero, clamping negative results to zero.
func floorDiv(numerator, denominator decimal.Decimal) decimal.Decimal {
	quotient, _ := numerator.QuoRem(denominator, 0)
	if quotient.IsNegative() {
		return decimal.Zero
	}
	return quotient
}
