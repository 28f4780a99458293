// internal/swap/asset.go
package swap

import (
	"fmt"
	"math/big"
	"strings"

	"github.com/shopspring/decimal"
)

const (
	// NativeMint is the wrapped SOL mint the aggregator uses for the native asset.
	NativeMint = "So11111111111111111111111111111111111111112"
	// NativeDecimals is the lamport precision of SOL.
	NativeDecimals = 9
)

// Asset identifies a tradable asset by mint and declared precision.
type Asset struct {
	Mint     string `json:"mint"`
	Symbol   string `json:"symbol"`
	Decimals uint8  `json:"decimals"`
}

// NativeAsset returns the chain's base currency.
func NativeAsset() Asset {
	return Asset{Mint: NativeMint, Symbol: "SOL", Decimals: NativeDecimals}
}

// IsNative reports whether the asset is the chain's base currency.
func (a Asset) IsNative() bool {
	return a.Mint == NativeMint
}

func (a Asset) String() string {
	if a.Symbol != "" {
		return a.Symbol
	}
	if len(a.Mint) > 8 {
		return a.Mint[:4] + "..." + a.Mint[len(a.Mint)-4:]
	}
	return a.Mint
}

// Pair is the (input, output) direction of a trade.
type Pair struct {
	Input  Asset
	Output Asset
}

// Key is the map key used for per-pair bookkeeping.
func (p Pair) Key() string {
	return p.Input.Mint + "->" + p.Output.Mint
}

// Reverse swaps the trade direction.
func (p Pair) Reverse() Pair {
	return Pair{Input: p.Output, Output: p.Input}
}

// Token returns the non-native side of the pair, if any.
func (p Pair) Token() (Asset, bool) {
	switch {
	case !p.Input.IsNative():
		return p.Input, true
	case !p.Output.IsNative():
		return p.Output, true
	}
	return Asset{}, false
}

// ToSmallestUnit scales a human amount to integer base units, flooring any
// precision beyond the asset's decimals.
func ToSmallestUnit(amount decimal.Decimal, decimals uint8) (uint64, error) {
	scaled := amount.Shift(int32(decimals)).Floor()
	if !scaled.IsPositive() {
		return 0, fmt.Errorf("amount %s scales to %s base units", amount.String(), scaled.String())
	}
	if !scaled.BigInt().IsUint64() {
		return 0, fmt.Errorf("amount %s overflows base units", amount.String())
	}
	return scaled.BigInt().Uint64(), nil
}

// FromSmallestUnit converts integer base units into a human amount.
func FromSmallestUnit(units uint64, decimals uint8) decimal.Decimal {
	return decimal.NewFromBigInt(new(big.Int).SetUint64(units), -int32(decimals))
}

// FloorToDecimals drops precision below the asset's smallest unit.
func FloorToDecimals(amount decimal.Decimal, decimals uint8) decimal.Decimal {
	return amount.Shift(int32(decimals)).Floor().Shift(-int32(decimals))
}

// ParseAmount parses user input such as "1.5" into a decimal.
func ParseAmount(raw string) (decimal.Decimal, error) {
	raw = strings.TrimSpace(raw)
	if raw == "" {
		return decimal.Zero, fmt.Errorf("empty amount")
	}
	d, err := decimal.NewFromString(raw)
	if err != nil {
		return decimal.Zero, fmt.Errorf("parse amount %q: %w", raw, err)
	}
	return d, nil
}
