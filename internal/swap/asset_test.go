package swap

import (
	"testing"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestToSmallestUnitFloors(t *testing.T) {
	tests := []struct {
		name     string
		amount   string
		decimals uint8
		want     uint64
	}{
		{"whole sol", "1.5", 9, 1_500_000_000},
		{"excess precision", "0.0000000019", 9, 1},
		{"six decimals", "12.3456789", 6, 12_345_678},
		{"zero decimals", "7.99", 0, 7},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, err := ToSmallestUnit(decimal.RequireFromString(tt.amount), tt.decimals)
			require.NoError(t, err)
			assert.Equal(t, tt.want, got)
		})
	}
}

func TestToSmallestUnitRejects(t *testing.T) {
	for _, raw := range []string{"0", "-1", "0.0000000001"} {
		_, err := ToSmallestUnit(decimal.RequireFromString(raw), 9)
		assert.Error(t, err, raw)
	}

	huge := decimal.New(1, 30)
	_, err := ToSmallestUnit(huge, 9)
	assert.Error(t, err)
}

func TestFromSmallestUnit(t *testing.T) {
	got := FromSmallestUnit(1_517_500_000, 9)
	assert.True(t, got.Equal(decimal.RequireFromString("1.5175")), got.String())

	assert.True(t, FloorToDecimals(decimal.RequireFromString("1.23456789"), 2).
		Equal(decimal.RequireFromString("1.23")))
}

func TestParseAmount(t *testing.T) {
	d, err := ParseAmount(" 1.5 ")
	require.NoError(t, err)
	assert.True(t, d.Equal(decimal.RequireFromString("1.5")))

	_, err = ParseAmount("abc")
	assert.Error(t, err)
}

func TestPairKeyAndAssetString(t *testing.T) {
	tok := Asset{Mint: "TokenMint1111111111111111111111111111111111", Decimals: 6}
	pair := Pair{Input: NativeAsset(), Output: tok}

	assert.Equal(t, NativeMint+"->"+tok.Mint, pair.Key())
	assert.Equal(t, "SOL", NativeAsset().String())
	assert.Equal(t, "Toke...1111", tok.String())
	assert.True(t, NativeAsset().IsNative())
	assert.False(t, tok.IsNative())

	rev := pair.Reverse()
	assert.Equal(t, tok, rev.Input)
	assert.Equal(t, tok.Mint+"->"+NativeMint, rev.Key())

	got, ok := rev.Token()
	assert.True(t, ok)
	assert.Equal(t, tok, got)
	_, ok = Pair{Input: NativeAsset(), Output: NativeAsset()}.Token()
	assert.False(t, ok)
}
