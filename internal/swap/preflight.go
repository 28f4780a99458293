// internal/swap/preflight.go
package swap

import (
	"fmt"

	"github.com/shopspring/decimal"
)

// PreflightInput is everything needed to decide whether an attempt can be
// funded before the wallet is ever prompted.
type PreflightInput struct {
	Input      Asset
	Amount     decimal.Decimal
	Fee        FeeBreakdown
	Balance    *BalanceSnapshot
	GasReserve decimal.Decimal
	// MinFeeReserve replaces the fee when the fee computation was unreliable.
	MinFeeReserve decimal.Decimal
}

// BalancePreflight validates that the native balance covers fee and network
// cost (plus the amount itself when trading the native asset).
type BalancePreflight struct{}

// Validate returns nil or an InsufficientBalance error with a reason.
func (BalancePreflight) Validate(in PreflightInput) error {
	if in.Balance == nil {
		return newError(KindInsufficientBalance, "balance unknown", nil)
	}

	fee := in.Fee.FeeAmountInNative
	if in.Fee.Unreliable && in.MinFeeReserve.GreaterThan(fee) {
		fee = in.MinFeeReserve
	}

	required := fee.Add(in.GasReserve)
	if in.Input.IsNative() {
		required = required.Add(in.Amount)
	}

	if in.Balance.NativeBalance.LessThan(required) {
		return newError(KindInsufficientBalance, fmt.Sprintf(
			"need %s SOL (fee %s, network reserve %s), have %s SOL",
			required.String(), fee.String(), in.GasReserve.String(), in.Balance.NativeBalance.String(),
		), nil)
	}
	return nil
}
