package swap

import (
	"testing"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
)

var testToken = Asset{Mint: "MemeMint11111111111111111111111111111111111", Symbol: "MEME", Decimals: 6}

func dec(s string) decimal.Decimal { return decimal.RequireFromString(s) }

func TestComputeFeeNativeInput(t *testing.T) {
	calc := NewFeeCalculator(DefaultFeeRate)

	fb := calc.ComputeFee(dec("1.5"), NativeAsset(), decimal.Zero, decimal.Zero)

	assert.False(t, fb.Unreliable)
	assert.True(t, fb.TradeNotionalInNative.Equal(dec("1.5")))
	assert.True(t, fb.FeeAmountInNative.Equal(dec("0.0075")), fb.FeeAmountInNative.String())
	assert.Equal(t, uint64(7_500_000), fb.Lamports())
}

func TestComputeFeeTokenInput(t *testing.T) {
	calc := NewFeeCalculator(DefaultFeeRate)

	// 1000 MEME at $0.02 with SOL at $200 is 0.1 SOL notional.
	fb := calc.ComputeFee(dec("1000"), testToken, dec("200"), dec("0.02"))

	assert.False(t, fb.Unreliable)
	assert.True(t, fb.TradeNotionalInNative.Equal(dec("0.1")), fb.TradeNotionalInNative.String())
	assert.True(t, fb.FeeAmountInNative.Equal(dec("0.0005")))
	assert.Equal(t, uint64(500_000), fb.Lamports())
}

func TestComputeFeeMissingPriceIsUnreliable(t *testing.T) {
	calc := NewFeeCalculator(DefaultFeeRate)

	cases := []struct {
		name          string
		native, input decimal.Decimal
	}{
		{"no native price", decimal.Zero, dec("0.02")},
		{"no input price", dec("200"), decimal.Zero},
		{"negative price", dec("-1"), dec("0.02")},
	}
	for _, c := range cases {
		t.Run(c.name, func(t *testing.T) {
			fb := calc.ComputeFee(dec("1000"), testToken, c.native, c.input)
			assert.True(t, fb.Unreliable)
			assert.True(t, fb.FeeAmountInNative.IsZero())
			assert.Zero(t, fb.Lamports())
		})
	}
}

func TestComputeFeeIsMonotonic(t *testing.T) {
	calc := NewFeeCalculator(DefaultFeeRate)
	amounts := []string{"0.000001", "0.01", "0.5", "1", "1.5", "42", "1000", "123456.789"}

	prevNative := decimal.Zero
	prevToken := decimal.Zero
	for _, a := range amounts {
		native := calc.ComputeFee(dec(a), NativeAsset(), decimal.Zero, decimal.Zero).FeeAmountInNative
		token := calc.ComputeFee(dec(a), testToken, dec("150"), dec("0.0003")).FeeAmountInNative

		assert.True(t, native.GreaterThanOrEqual(prevNative), "native fee decreased at %s", a)
		assert.True(t, token.GreaterThanOrEqual(prevToken), "token fee decreased at %s", a)
		prevNative, prevToken = native, token
	}
}

func TestFeeLamportsFloors(t *testing.T) {
	fb := FeeBreakdown{FeeAmountInNative: dec("0.0000000019")}
	assert.Equal(t, uint64(1), fb.Lamports())

	fb = FeeBreakdown{FeeAmountInNative: dec("0.0000000009")}
	assert.Zero(t, fb.Lamports())
}
