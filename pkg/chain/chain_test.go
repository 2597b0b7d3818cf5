package chain

import (
	"context"
	"errors"
	"math/big"
	"testing"

	"github.com/ethereum/go-ethereum/common"
	"github.com/ethereum/go-ethereum/common/hexutil"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

var (
	market = common.HexToAddress("0x60d6cf3c5fe359dd232d0502467c0228f4026626")
	weth   = common.HexToAddress("0xfFf9976782d46CC05630D1f6eBAb18b2324d6B14")
	usdc   = common.HexToAddress("0x1c7D4B196Cb0C7B01d743Fbc6116a902379C7238")
	owner  = common.HexToAddress("0x00000000000000000000000000000000000000aa")
)

type readerFunc func(ctx context.Context, call Call) ([]interface{}, error)

func (f readerFunc) Read(ctx context.Context, call Call) ([]interface{}, error) {
	return f(ctx, call)
}

func TestOpenPositionPack(t *testing.T) {
	amount, _ := new(big.Int).SetString("10000000000000000000", 10)
	call := OpenPosition{
		TokenIn:  weth,
		TokenOut: usdc,
		Fee:      3000,
		Leverage: 1,
		AmountIn: amount,
	}.Call(market)

	assert.Equal(t, "openPosition", call.Method)
	assert.Equal(t, market, call.To)
	require.Len(t, call.Args, 8)
	assert.Equal(t, big.NewInt(3000), call.Args[2])
	assert.Equal(t, big.NewInt(0), call.Args[6], "nil limit price is encoded as zero")

	data, err := call.Pack()
	require.NoError(t, err)
	assert.Len(t, data, 4+8*32)

	parsed, err := ABI(Market)
	require.NoError(t, err)
	assert.Equal(t, parsed.Methods["openPosition"].ID, data[:4])
}

func TestApprovePackCopiesAmount(t *testing.T) {
	amount := big.NewInt(42)
	call := Approve(weth, market, amount)
	amount.SetInt64(7)

	assert.Equal(t, big.NewInt(42), call.Args[1])

	data, err := call.Pack()
	require.NoError(t, err)
	assert.Equal(t, "0x095ea7b3", hexutil.Encode(data[:4]))
}

func TestUnknownContract(t *testing.T) {
	_, err := Call{Contract: "nope", Method: "x"}.Pack()
	assert.Error(t, err)
}

func TestReadUint(t *testing.T) {
	r := readerFunc(func(ctx context.Context, call Call) ([]interface{}, error) {
		return []interface{}{big.NewInt(5)}, nil
	})
	v, err := ReadUint(context.Background(), r, Allowance(weth, owner, market))
	require.NoError(t, err)
	assert.Equal(t, int64(5), v.Int64())

	failing := readerFunc(func(ctx context.Context, call Call) ([]interface{}, error) {
		return nil, errors.New("connection refused")
	})
	_, err = ReadUint(context.Background(), failing, Allowance(weth, owner, market))
	assert.ErrorIs(t, err, ErrRead)
	assert.Contains(t, err.Error(), "connection refused")

	wrongType := readerFunc(func(ctx context.Context, call Call) ([]interface{}, error) {
		return []interface{}{common.Address{}}, nil
	})
	_, err = ReadUint(context.Background(), wrongType, Allowance(weth, owner, market))
	assert.ErrorIs(t, err, ErrRead)
}

func TestReadAddress(t *testing.T) {
	pool := common.HexToAddress("0x00000000000000000000000000000000000000bb")
	r := readerFunc(func(ctx context.Context, call Call) ([]interface{}, error) {
		assert.Equal(t, "getTokenToLiquidityPools", call.Method)
		return []interface{}{pool}, nil
	})
	got, err := ReadAddress(context.Background(), r, LiquidityPoolFor(market, weth))
	require.NoError(t, err)
	assert.Equal(t, pool, got)

	empty := readerFunc(func(ctx context.Context, call Call) ([]interface{}, error) {
		return nil, nil
	})
	_, err = ReadAddress(context.Background(), empty, LiquidityPoolFor(market, weth))
	assert.ErrorIs(t, err, ErrRead)
}

type dataError struct {
	msg  string
	data interface{}
}

func (e dataError) Error() string          { return e.msg }
func (e dataError) ErrorData() interface{} { return e.data }

func TestDecodeRevert(t *testing.T) {
	// Error(string) selector followed by the ABI-encoded "insufficient allowance".
	payload := "0x08c379a0" +
		"0000000000000000000000000000000000000000000000000000000000000020" +
		"0000000000000000000000000000000000000000000000000000000000000016" +
		"696e73756666696369656e7420616c6c6f77616e636500000000000000000000"

	reason, ok := decodeRevert(dataError{msg: "execution reverted", data: payload})
	require.True(t, ok)
	assert.Equal(t, "insufficient allowance", reason)

	reason, ok = decodeRevert(dataError{msg: "execution reverted", data: 12})
	require.True(t, ok)
	assert.Equal(t, "execution reverted", reason)

	_, ok = decodeRevert(errors.New("dial tcp: timeout"))
	assert.False(t, ok)
}

func TestRevertErrorMessage(t *testing.T) {
	err := &RevertError{Reason: "user rejected"}
	assert.Equal(t, "transaction rejected: user rejected", err.Error())

	hash := common.HexToHash("0x01")
	err = &RevertError{Hash: hash, Reason: "slippage"}
	assert.Contains(t, err.Error(), hash.Hex())
	assert.Contains(t, err.Error(), "slippage")
}
