package quote

import (
	"context"
	"errors"
	"math/big"
	"testing"

	"github.com/ethereum/go-ethereum/common"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"dex-trader/pkg/catalog"
	"dex-trader/pkg/chain"
	"dex-trader/pkg/chain/chaintest"
	"dex-trader/pkg/units"
)

var (
	feed = common.HexToAddress("0x4349835161888d3c9916b73253765c84599a9d64")
	weth = catalog.Token{Address: common.HexToAddress("0xfFf9976782d46CC05630D1f6eBAb18b2324d6B14"), Symbol: "WETH", Decimals: 18}
	usdc = catalog.Token{Address: common.HexToAddress("0x1c7D4B196Cb0C7B01d743Fbc6116a902379C7238"), Symbol: "USDC", Decimals: 6}
	pair = catalog.Pair{From: weth, To: usdc, FeeTier: catalog.FeeTier{Value: 3000, Label: "0.3%"}}
)

func ether(n int64) *big.Int {
	return new(big.Int).Mul(big.NewInt(n), new(big.Int).Exp(big.NewInt(10), big.NewInt(18), nil))
}

func TestCompute(t *testing.T) {
	tests := []struct {
		name     string
		amount   *big.Int
		price    *big.Int
		srcDec   uint8
		dstDec   uint8
		expected string
	}{
		{"two WETH at 1500 into USDC", ether(2), ether(1500), 18, 6, "3000000000"},
		{"same decimals", big.NewInt(5_000_000), ether(2), 6, 6, "10000000"},
		{"USDC into WETH", big.NewInt(3000_000000), new(big.Int).Div(ether(1), big.NewInt(1500)), 6, 18, "1999999999999998000"},
		{"floors sub-unit results", big.NewInt(1), big.NewInt(1), 18, 6, "0"},
		{"zero amount", big.NewInt(0), ether(1500), 18, 6, "0"},
		{"result scaled up", big.NewInt(1), ether(1), 0, 30, "1000000000000000000000000000000"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, err := Compute(tt.amount, tt.price, tt.srcDec, tt.dstDec)
			require.NoError(t, err)
			assert.Equal(t, tt.expected, got.String())
		})
	}
}

func TestCompute_TwoEtherAt1500FormatsExactly(t *testing.T) {
	got, err := Compute(ether(2), ether(1500), 18, 6)
	require.NoError(t, err)
	assert.Equal(t, "3000", units.FromBaseUnits(got, 6))
}

func TestCompute_Overflow(t *testing.T) {
	huge := new(big.Int).Lsh(big.NewInt(1), 200)

	_, err := Compute(huge, huge, 18, 6)
	assert.ErrorIs(t, err, ErrArithmeticOverflow)

	tooWide := new(big.Int).Lsh(big.NewInt(1), 256)
	_, err = Compute(tooWide, big.NewInt(1), 18, 6)
	assert.ErrorIs(t, err, ErrArithmeticOverflow)

	_, err = Compute(big.NewInt(1), ether(1), 0, 255)
	assert.ErrorIs(t, err, ErrArithmeticOverflow)
}

func TestCompute_InvalidOperand(t *testing.T) {
	tests := map[string][2]*big.Int{
		"nil amount":      {nil, ether(1)},
		"nil price":       {big.NewInt(1), nil},
		"negative amount": {big.NewInt(-1), ether(1)},
		"negative price":  {big.NewInt(1), big.NewInt(-5)},
	}

	for name, tt := range tests {
		t.Run(name, func(t *testing.T) {
			_, err := Compute(tt[0], tt[1], 18, 6)
			assert.ErrorIs(t, err, ErrInvalidOperand)
			assert.NotErrorIs(t, err, ErrArithmeticOverflow)
		})
	}
}

func TestCompute_HugeDivisorFloorsToZero(t *testing.T) {
	got, err := Compute(big.NewInt(123), big.NewInt(456), 255, 0)
	require.NoError(t, err)
	assert.Equal(t, int64(0), got.Int64())
}

func TestEstimate(t *testing.T) {
	fake := chaintest.New(common.Address{})
	fake.SetPrice(weth.Address, usdc.Address, ether(1500))
	q := NewQuoter(fake, feed, nil)

	est, err := q.Estimate(context.Background(), pair, "2")
	require.NoError(t, err)
	assert.True(t, est.Known)
	assert.Equal(t, "3000000000", est.Amount.String())
	assert.Equal(t, "3000", est.Formatted)
	assert.Equal(t, ether(1500), est.Price)
}

func TestEstimate_UnknownStates(t *testing.T) {
	fake := chaintest.New(common.Address{})
	q := NewQuoter(fake, feed, nil)

	est, err := q.Estimate(context.Background(), pair, "")
	require.NoError(t, err)
	assert.True(t, est.Unknown())
	assert.Nil(t, est.Amount)
	assert.Equal(t, 0, fake.Reads("getPairLatestPrice"), "no read without an amount")

	est, err = q.Estimate(context.Background(), pair, "1")
	require.NoError(t, err)
	assert.True(t, est.Unknown(), "unsupported pair returns a zero price")
	assert.Empty(t, est.Formatted)

	est, err = q.Estimate(context.Background(), pair, "1.2.3")
	assert.ErrorIs(t, err, units.ErrParse)
	assert.True(t, est.Unknown())

	fake.FailReads("getPairLatestPrice", errors.New("feed offline"))
	est, err = q.Estimate(context.Background(), pair, "1")
	assert.ErrorIs(t, err, chain.ErrRead)
	assert.True(t, est.Unknown())
}

func TestEstimate_RecomputesOnEveryCall(t *testing.T) {
	fake := chaintest.New(common.Address{})
	fake.SetPrice(weth.Address, usdc.Address, ether(1500))
	q := NewQuoter(fake, feed, nil)

	_, err := q.Estimate(context.Background(), pair, "1")
	require.NoError(t, err)

	fake.SetPrice(weth.Address, usdc.Address, ether(1600))
	est, err := q.Estimate(context.Background(), pair, "1")
	require.NoError(t, err)
	assert.Equal(t, "1600", est.Formatted)
	assert.Equal(t, 2, fake.Reads("getPairLatestPrice"))
}

func TestEstimate_ReversedPair(t *testing.T) {
	fake := chaintest.New(common.Address{})
	fake.SetPrice(usdc.Address, weth.Address, new(big.Int).Div(ether(1), big.NewInt(2000)))
	q := NewQuoter(fake, feed, nil)

	est, err := q.Estimate(context.Background(), pair.Reverse(), "4000")
	require.NoError(t, err)
	assert.Equal(t, "2", est.Formatted)
}
