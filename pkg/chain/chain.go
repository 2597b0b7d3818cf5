// Package chain defines the collaborators the order engine uses to talk to the
// network: a contract reader, a transaction writer and an account provider.
package chain

import (
	"context"
	"errors"
	"fmt"
	"math/big"

	"github.com/ethereum/go-ethereum/common"
)

var (
	// ErrRead wraps failures of allowance, price and pool lookups.
	ErrRead = errors.New("chain read failed")
	// ErrWrite wraps failures to broadcast or confirm a transaction.
	ErrWrite = errors.New("chain write failed")
)

// RevertError carries the human-readable reason a transaction was rejected or reverted.
type RevertError struct {
	Hash   common.Hash
	Reason string
}

func (e *RevertError) Error() string {
	if e.Hash == (common.Hash{}) {
		return "transaction rejected: " + e.Reason
	}
	return fmt.Sprintf("transaction %s reverted: %s", e.Hash.Hex(), e.Reason)
}

// Call describes one contract function invocation.
type Call struct {
	Contract Contract
	To       common.Address
	Method   string
	Args     []interface{}
}

func (c Call) String() string {
	return fmt.Sprintf("%s.%s%v @ %s", c.Contract, c.Method, c.Args, c.To.Hex())
}

// Pack ABI-encodes the call data.
func (c Call) Pack() ([]byte, error) {
	parsed, err := ABI(c.Contract)
	if err != nil {
		return nil, err
	}
	data, err := parsed.Pack(c.Method, c.Args...)
	if err != nil {
		return nil, fmt.Errorf("failed to pack %s data: %w", c.Method, err)
	}
	return data, nil
}

// Unpack decodes return data of the call's method.
func (c Call) Unpack(data []byte) ([]interface{}, error) {
	parsed, err := ABI(c.Contract)
	if err != nil {
		return nil, err
	}
	out, err := parsed.Unpack(c.Method, data)
	if err != nil {
		return nil, fmt.Errorf("failed to unpack %s result: %w", c.Method, err)
	}
	return out, nil
}

// Reader executes read-only contract calls.
type Reader interface {
	Read(ctx context.Context, call Call) ([]interface{}, error)
}

// Writer broadcasts state-changing calls and reports their outcome.
type Writer interface {
	// Write signs and broadcasts the call, returning the transaction hash.
	Write(ctx context.Context, call Call) (common.Hash, error)
	// WaitConfirmed blocks until the transaction is final. It returns nil on
	// success and a *RevertError when the transaction reverted.
	WaitConfirmed(ctx context.Context, hash common.Hash) error
}

// AccountProvider supplies the connected account. ok is false when disconnected.
type AccountProvider interface {
	Account() (addr common.Address, ok bool)
}

// ReadUint performs call and returns its single uint256 result.
func ReadUint(ctx context.Context, r Reader, call Call) (*big.Int, error) {
	out, err := r.Read(ctx, call)
	if err != nil {
		return nil, readError(call, err)
	}
	if len(out) == 0 {
		return nil, fmt.Errorf("%w: empty result from %s", ErrRead, call.Method)
	}
	v, ok := out[0].(*big.Int)
	if !ok {
		return nil, fmt.Errorf("%w: unexpected type %T from %s", ErrRead, out[0], call.Method)
	}
	return v, nil
}

// ReadAddress performs call and returns its single address result.
func ReadAddress(ctx context.Context, r Reader, call Call) (common.Address, error) {
	out, err := r.Read(ctx, call)
	if err != nil {
		return common.Address{}, readError(call, err)
	}
	if len(out) == 0 {
		return common.Address{}, fmt.Errorf("%w: empty result from %s", ErrRead, call.Method)
	}
	v, ok := out[0].(common.Address)
	if !ok {
		return common.Address{}, fmt.Errorf("%w: unexpected type %T from %s", ErrRead, out[0], call.Method)
	}
	return v, nil
}

func readError(call Call, err error) error {
	if errors.Is(err, ErrRead) {
		return err
	}
	return fmt.Errorf("%w: failed to call %s: %w", ErrRead, call.Method, err)
}

// Allowance builds ERC20.allowance(owner, spender) on token.
func Allowance(token, owner, spender common.Address) Call {
	return Call{Contract: ERC20, To: token, Method: "allowance", Args: []interface{}{owner, spender}}
}

// Approve builds ERC20.approve(spender, amount) on token.
func Approve(token, spender common.Address, amount *big.Int) Call {
	return Call{Contract: ERC20, To: token, Method: "approve", Args: []interface{}{spender, new(big.Int).Set(amount)}}
}

// PairLatestPrice builds PriceFeed.getPairLatestPrice(from, to).
func PairLatestPrice(feed, from, to common.Address) Call {
	return Call{Contract: PriceFeed, To: feed, Method: "getPairLatestPrice", Args: []interface{}{from, to}}
}

// LiquidityPoolFor builds Market.getTokenToLiquidityPools(token).
func LiquidityPoolFor(market, token common.Address) Call {
	return Call{Contract: Market, To: market, Method: "getTokenToLiquidityPools", Args: []interface{}{token}}
}

// OpenPosition holds the Market.openPosition arguments.
type OpenPosition struct {
	TokenIn       common.Address
	TokenOut      common.Address
	Fee           uint32
	IsMargin      bool
	Leverage      uint8
	AmountIn      *big.Int
	LimitPrice    *big.Int
	StopLossPrice *big.Int
}

// Call builds the openPosition call on market.
func (p OpenPosition) Call(market common.Address) Call {
	return Call{
		Contract: Market,
		To:       market,
		Method:   "openPosition",
		Args: []interface{}{
			p.TokenIn,
			p.TokenOut,
			new(big.Int).SetUint64(uint64(p.Fee)),
			p.IsMargin,
			p.Leverage,
			orZero(p.AmountIn),
			orZero(p.LimitPrice),
			orZero(p.StopLossPrice),
		},
	}
}

// Deposit builds LiquidityPool.deposit(amount, receiver) on pool.
func Deposit(pool common.Address, amount *big.Int, receiver common.Address) Call {
	return Call{Contract: LiquidityPool, To: pool, Method: "deposit", Args: []interface{}{new(big.Int).Set(amount), receiver}}
}

func orZero(v *big.Int) *big.Int {
	if v == nil {
		return new(big.Int)
	}
	return new(big.Int).Set(v)
}
