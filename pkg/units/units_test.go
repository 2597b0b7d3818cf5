package units

import (
	"math/big"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestToBaseUnits(t *testing.T) {
	tests := []struct {
		name     string
		amount   string
		decimals uint8
		want     string
	}{
		{"whole ether", "10", 18, "10000000000000000000"},
		{"fractional usdc", "1.5", 6, "1500000"},
		{"smallest usdc unit", "0.000001", 6, "1"},
		{"leading dot", ".5", 6, "500000"},
		{"trailing dot", "5.", 6, "5000000"},
		{"insignificant trailing zeros", "1.500", 2, "150"},
		{"zero", "0", 18, "0"},
		{"surrounding spaces", " 2.25 ", 6, "2250000"},
		{"no decimals", "42", 0, "42"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, err := ToBaseUnits(tt.amount, tt.decimals)
			require.NoError(t, err)
			assert.Equal(t, tt.want, got.String())
		})
	}
}

func TestToBaseUnits_Rejects(t *testing.T) {
	tests := []struct {
		name     string
		amount   string
		decimals uint8
	}{
		{"empty", "", 18},
		{"blank", "   ", 18},
		{"negative", "-1", 18},
		{"letters", "abc", 18},
		{"two dots", "1.2.3", 18},
		{"only dot", ".", 18},
		{"too many fractional digits", "0.0000001", 6},
		{"exponent", "1e18", 18},
		{"plus sign", "+1", 18},
		{"hex", "0x10", 18},
		{"too wide", "1" + strings.Repeat("0", 80), 0},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := ToBaseUnits(tt.amount, tt.decimals)
			assert.ErrorIs(t, err, ErrParse)
		})
	}
}

func TestFromBaseUnits(t *testing.T) {
	tests := []struct {
		value    string
		decimals uint8
		want     string
	}{
		{"3000000000", 6, "3000"},
		{"1500000", 6, "1.5"},
		{"1", 18, "0.000000000000000001"},
		{"0", 18, "0"},
		{"123", 0, "123"},
		{"10000000000000000000", 18, "10"},
		{"-2500000", 6, "-2.5"},
	}

	for _, tt := range tests {
		t.Run(tt.want, func(t *testing.T) {
			v, ok := new(big.Int).SetString(tt.value, 10)
			require.True(t, ok)
			assert.Equal(t, tt.want, FromBaseUnits(v, tt.decimals))
		})
	}

	assert.Equal(t, "0", FromBaseUnits(nil, 18))
}

func TestRoundTrip(t *testing.T) {
	inputs := []string{
		"0", "1", "10", "0.5", "1.000001", "123456.789", "0.000001",
		"999999999999", "3000", "0.1", "42.42",
	}
	long := []string{"0.000000000000000001", "1.123456789012345678", "7.5"}

	for _, decimals := range []uint8{6, 18} {
		cases := inputs
		if decimals == 18 {
			cases = append(append([]string{}, inputs...), long...)
		}
		for _, s := range cases {
			base, err := ToBaseUnits(s, decimals)
			require.NoError(t, err, s)

			back := FromBaseUnits(base, decimals)
			again, err := ToBaseUnits(back, decimals)
			require.NoError(t, err, back)
			assert.Equal(t, 0, base.Cmp(again), "%s at %d decimals came back as %s", s, decimals, back)

			want, _ := new(big.Rat).SetString(s)
			got, _ := new(big.Rat).SetString(back)
			assert.Equal(t, 0, want.Cmp(got), "%s != %s", s, back)
		}
	}
}

func TestIsZero(t *testing.T) {
	assert.True(t, IsZero(nil))
	assert.True(t, IsZero(big.NewInt(0)))
	assert.False(t, IsZero(big.NewInt(1)))
}
