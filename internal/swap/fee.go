// internal/swap/fee.go
package swap

import (
	"github.com/shopspring/decimal"
)

// DefaultFeeRate is the platform fee charged on trade notional (0.5%).
var DefaultFeeRate = decimal.RequireFromString("0.005")

// FeeBreakdown is the platform fee for one trade, in native units.
type FeeBreakdown struct {
	TradeNotionalInNative decimal.Decimal
	FeeRate               decimal.Decimal
	FeeAmountInNative     decimal.Decimal
	// Unreliable is set when a required price was missing; the fee is then zero
	// and preflight must reserve the configured minimum instead.
	Unreliable bool
}

// Lamports floors the fee to the native smallest unit.
func (f FeeBreakdown) Lamports() uint64 {
	units := f.FeeAmountInNative.Shift(NativeDecimals).Floor()
	if !units.IsPositive() {
		return 0
	}
	return units.BigInt().Uint64()
}

// FeeCalculator derives the platform fee from trade size and prices.
type FeeCalculator struct {
	rate decimal.Decimal
}

// NewFeeCalculator returns a calculator for the given fixed rate.
func NewFeeCalculator(rate decimal.Decimal) *FeeCalculator {
	return &FeeCalculator{rate: rate}
}

// Rate returns the configured fee rate.
func (c *FeeCalculator) Rate() decimal.Decimal {
	return c.rate
}

// ComputeFee converts the input amount to a native-equivalent notional and
// applies the fee rate. Prices are USD per whole unit.
func (c *FeeCalculator) ComputeFee(amount decimal.Decimal, input Asset, nativePriceUSD, inputPriceUSD decimal.Decimal) FeeBreakdown {
	fb := FeeBreakdown{
		TradeNotionalInNative: decimal.Zero,
		FeeRate:               c.rate,
		FeeAmountInNative:     decimal.Zero,
	}
	if !amount.IsPositive() {
		return fb
	}

	if input.IsNative() {
		fb.TradeNotionalInNative = amount
	} else {
		if !nativePriceUSD.IsPositive() || !inputPriceUSD.IsPositive() {
			fb.Unreliable = true
			return fb
		}
		fb.TradeNotionalInNative = amount.Mul(inputPriceUSD).Div(nativePriceUSD)
	}

	fb.FeeAmountInNative = fb.TradeNotionalInNative.Mul(c.rate)
	return fb
}
