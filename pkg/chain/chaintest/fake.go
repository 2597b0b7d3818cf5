// Package chaintest provides an in-memory chain that models the ERC20, market,
// liquidity pool and price feed contracts closely enough to drive the order engine.
package chaintest

import (
	"context"
	"errors"
	"fmt"
	"math/big"
	"sync"

	"github.com/ethereum/go-ethereum/common"

	"dex-trader/pkg/chain"
)

type allowanceKey struct {
	token, owner, spender common.Address
}

type pairKey struct {
	from, to common.Address
}

type outcome struct {
	reason string // empty on success
}

type pendingTx struct {
	call   chain.Call
	done   chan struct{}
	result *outcome
}

// Fake implements chain.Reader, chain.Writer and chain.AccountProvider.
type Fake struct {
	mu sync.Mutex

	account   common.Address
	connected bool

	allowances map[allowanceKey]*big.Int
	pools      map[common.Address]common.Address
	prices     map[pairKey]*big.Int
	readErrs   map[string]error
	reads      map[string]int

	// AutoConfirm makes every written transaction confirm immediately.
	AutoConfirm bool
	// WriteErr, when set, is returned by the next Write instead of broadcasting.
	WriteErr error

	nonce  uint64
	txs    map[common.Hash]*pendingTx
	order  []common.Hash
	writes []chain.Call
}

// New returns a fake chain with account connected.
func New(account common.Address) *Fake {
	return &Fake{
		account:    account,
		connected:  true,
		allowances: make(map[allowanceKey]*big.Int),
		pools:      make(map[common.Address]common.Address),
		prices:     make(map[pairKey]*big.Int),
		readErrs:   make(map[string]error),
		reads:      make(map[string]int),
		txs:        make(map[common.Hash]*pendingTx),
	}
}

// Disconnect simulates a wallet with no connected account.
func (f *Fake) Disconnect() {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.connected = false
}

// Account implements chain.AccountProvider.
func (f *Fake) Account() (common.Address, bool) {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.account, f.connected
}

// SetAllowance sets ERC20 allowance(owner, spender) on token.
func (f *Fake) SetAllowance(token, owner, spender common.Address, amount *big.Int) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.allowances[allowanceKey{token, owner, spender}] = new(big.Int).Set(amount)
}

// AllowanceOf returns the current on-chain allowance.
func (f *Fake) AllowanceOf(token, owner, spender common.Address) *big.Int {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.allowanceLocked(allowanceKey{token, owner, spender})
}

// SetPool registers the liquidity pool for token.
func (f *Fake) SetPool(token, pool common.Address) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.pools[token] = pool
}

// SetPrice sets the 18-decimal price returned for the ordered pair.
func (f *Fake) SetPrice(from, to common.Address, price *big.Int) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.prices[pairKey{from, to}] = new(big.Int).Set(price)
}

// FailReads makes reads of method fail with err; nil clears it.
func (f *Fake) FailReads(method string, err error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if err == nil {
		delete(f.readErrs, method)
		return
	}
	f.readErrs[method] = err
}

// Reads returns how many times method was read.
func (f *Fake) Reads(method string) int {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.reads[method]
}

// Writes returns the calls broadcast so far, in order.
func (f *Fake) Writes() []chain.Call {
	f.mu.Lock()
	defer f.mu.Unlock()
	out := make([]chain.Call, len(f.writes))
	copy(out, f.writes)
	return out
}

// LastHash returns the hash of the most recent broadcast.
func (f *Fake) LastHash() common.Hash {
	f.mu.Lock()
	defer f.mu.Unlock()
	if len(f.order) == 0 {
		return common.Hash{}
	}
	return f.order[len(f.order)-1]
}

// Read implements chain.Reader.
func (f *Fake) Read(ctx context.Context, call chain.Call) ([]interface{}, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}

	f.mu.Lock()
	defer f.mu.Unlock()

	f.reads[call.Method]++
	if err := f.readErrs[call.Method]; err != nil {
		return nil, err
	}

	switch call.Method {
	case "allowance":
		owner, spender := call.Args[0].(common.Address), call.Args[1].(common.Address)
		return []interface{}{f.allowanceLocked(allowanceKey{call.To, owner, spender})}, nil
	case "getPairLatestPrice":
		from, to := call.Args[0].(common.Address), call.Args[1].(common.Address)
		price, ok := f.prices[pairKey{from, to}]
		if !ok {
			return []interface{}{new(big.Int)}, nil
		}
		return []interface{}{new(big.Int).Set(price)}, nil
	case "getTokenToLiquidityPools":
		token := call.Args[0].(common.Address)
		return []interface{}{f.pools[token]}, nil
	default:
		return nil, fmt.Errorf("fake chain cannot read %s", call.Method)
	}
}

// Write implements chain.Writer.
func (f *Fake) Write(ctx context.Context, call chain.Call) (common.Hash, error) {
	if err := ctx.Err(); err != nil {
		return common.Hash{}, err
	}
	if _, err := call.Pack(); err != nil {
		return common.Hash{}, err
	}

	f.mu.Lock()
	defer f.mu.Unlock()

	if err := f.WriteErr; err != nil {
		f.WriteErr = nil
		return common.Hash{}, err
	}

	f.nonce++
	hash := common.BigToHash(new(big.Int).SetUint64(f.nonce))
	tx := &pendingTx{call: call, done: make(chan struct{})}
	f.txs[hash] = tx
	f.order = append(f.order, hash)
	f.writes = append(f.writes, call)

	if f.AutoConfirm {
		f.settleLocked(tx, "")
	}

	return hash, nil
}

// WaitConfirmed implements chain.Writer.
func (f *Fake) WaitConfirmed(ctx context.Context, hash common.Hash) error {
	f.mu.Lock()
	tx, ok := f.txs[hash]
	f.mu.Unlock()
	if !ok {
		return fmt.Errorf("unknown transaction %s", hash.Hex())
	}

	select {
	case <-ctx.Done():
		return ctx.Err()
	case <-tx.done:
	}

	if tx.result.reason != "" {
		return &chain.RevertError{Hash: hash, Reason: tx.result.reason}
	}
	return nil
}

// Confirm mines hash successfully and applies its effects.
func (f *Fake) Confirm(hash common.Hash) error {
	return f.settle(hash, "")
}

// Revert mines hash as reverted with reason.
func (f *Fake) Revert(hash common.Hash, reason string) error {
	if reason == "" {
		return errors.New("revert reason must not be empty")
	}
	return f.settle(hash, reason)
}

func (f *Fake) settle(hash common.Hash, reason string) error {
	f.mu.Lock()
	defer f.mu.Unlock()

	tx, ok := f.txs[hash]
	if !ok {
		return fmt.Errorf("unknown transaction %s", hash.Hex())
	}
	if tx.result != nil {
		return fmt.Errorf("transaction %s already settled", hash.Hex())
	}
	f.settleLocked(tx, reason)
	return nil
}

func (f *Fake) settleLocked(tx *pendingTx, reason string) {
	tx.result = &outcome{reason: reason}
	if reason == "" {
		f.applyLocked(tx.call)
	}
	close(tx.done)
}

// applyLocked models the allowance effects of confirmed calls.
func (f *Fake) applyLocked(call chain.Call) {
	switch call.Method {
	case "approve":
		spender, amount := call.Args[0].(common.Address), call.Args[1].(*big.Int)
		f.allowances[allowanceKey{call.To, f.account, spender}] = new(big.Int).Set(amount)
	case "openPosition":
		token, amount := call.Args[0].(common.Address), call.Args[5].(*big.Int)
		f.spendLocked(allowanceKey{token, f.account, call.To}, amount)
	case "deposit":
		amount := call.Args[0].(*big.Int)
		for token, pool := range f.pools {
			if pool == call.To {
				f.spendLocked(allowanceKey{token, f.account, pool}, amount)
			}
		}
	}
}

func (f *Fake) spendLocked(key allowanceKey, amount *big.Int) {
	current := f.allowanceLocked(key)
	if current.Cmp(amount) < 0 {
		return
	}
	f.allowances[key] = new(big.Int).Sub(current, amount)
}

func (f *Fake) allowanceLocked(key allowanceKey) *big.Int {
	if v, ok := f.allowances[key]; ok {
		return new(big.Int).Set(v)
	}
	return new(big.Int)
}
