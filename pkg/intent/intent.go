package intent

import (
	"errors"
	"fmt"
	"math/big"
	"strings"

	"github.com/ethereum/go-ethereum/common"
	"github.com/google/uuid"

	"dex-trader/pkg/catalog"
	"dex-trader/pkg/chain"
	"dex-trader/pkg/units"
)

// ErrInvalidIntent is returned when user input cannot be turned into a call.
var ErrInvalidIntent = errors.New("invalid order intent")

// DefaultMaxLeverage bounds margin orders when the builder sets no limit.
const DefaultMaxLeverage = 10

// Kind is the order type.
type Kind string

const (
	Market   Kind = "market"
	Limit    Kind = "limit"
	StopLoss Kind = "stop-loss"
	Margin   Kind = "margin"
	Deposit  Kind = "deposit"
)

// Kinds lists every order type in display order.
var Kinds = []Kind{Market, Limit, StopLoss, Margin, Deposit}

func (k Kind) String() string {
	return string(k)
}

// SwapLike reports whether k routes through Market.openPosition.
func (k Kind) SwapLike() bool {
	return k != Deposit
}

// ParseKind resolves an order type name. "stoploss" and "stop_loss" are accepted.
func ParseKind(s string) (Kind, error) {
	normalized := strings.ReplaceAll(strings.ToLower(strings.TrimSpace(s)), "_", "-")
	if normalized == "stoploss" {
		normalized = string(StopLoss)
	}
	for _, k := range Kinds {
		if string(k) == normalized {
			return k, nil
		}
	}
	return "", fmt.Errorf("unknown order type %q", s)
}

// Input is what the user entered on an order form.
type Input struct {
	Account      common.Address
	Amount       string
	LimitPrice   string
	TriggerPrice string
	Leverage     int
}

// Intent is a validated order, ready to be encoded into contract calls.
type Intent struct {
	ID           uuid.UUID
	Kind         Kind
	Account      common.Address
	Pair         catalog.Pair
	Amount       string
	AmountBase   *big.Int
	LimitPrice   *big.Int
	TriggerPrice *big.Int
	Leverage     uint8

	// Spender is the contract that pulls the source token: the market for
	// swap-like intents, the resolved liquidity pool for deposits.
	Spender common.Address
}

// Source is the token spent by the intent.
func (i *Intent) Source() catalog.Token {
	return i.Pair.From
}

// NeedsPool reports whether the spender still has to be resolved.
func (i *Intent) NeedsPool() bool {
	return i.Kind == Deposit && i.Spender == (common.Address{})
}

// WithPool returns a copy of a deposit intent targeting pool.
func (i *Intent) WithPool(pool common.Address) *Intent {
	out := *i
	out.Spender = pool
	return &out
}

// ApprovalCall is ERC20.approve(spender, amount) for exactly the requested amount.
func (i *Intent) ApprovalCall() chain.Call {
	return chain.Approve(i.Source().Address, i.Spender, i.AmountBase)
}

// ActionCall encodes the order-specific contract call.
func (i *Intent) ActionCall() (chain.Call, error) {
	if i.Spender == (common.Address{}) {
		return chain.Call{}, fmt.Errorf("%w: spender not resolved", ErrInvalidIntent)
	}

	if i.Kind == Deposit {
		return chain.Deposit(i.Spender, i.AmountBase, i.Account), nil
	}

	pos := chain.OpenPosition{
		TokenIn:  i.Pair.From.Address,
		TokenOut: i.Pair.To.Address,
		Fee:      i.Pair.FeeTier.Value,
		Leverage: 1,
		AmountIn: i.AmountBase,
	}
	switch i.Kind {
	case Market:
		// No minimum-output guard; the quote is informational only.
	case Limit:
		pos.LimitPrice = i.LimitPrice
	case StopLoss:
		pos.StopLossPrice = i.TriggerPrice
	case Margin:
		pos.IsMargin = true
		pos.Leverage = i.Leverage
	default:
		return chain.Call{}, fmt.Errorf("%w: unknown order type %q", ErrInvalidIntent, i.Kind)
	}
	return pos.Call(i.Spender), nil
}

func (i *Intent) String() string {
	if i.Kind == Deposit {
		return fmt.Sprintf("deposit %s %s", i.Amount, i.Pair.From.Symbol)
	}
	return fmt.Sprintf("%s %s %s to %s", i.Kind, i.Amount, i.Pair.From.Symbol, i.Pair.To.Symbol)
}

// Builder maps form input and an instrument to an Intent.
type Builder struct {
	Catalog     *catalog.Catalog
	Market      common.Address
	MaxLeverage uint8
}

// Build dispatches to the builder for kind.
func (b *Builder) Build(kind Kind, in Input, pair catalog.Pair) (*Intent, error) {
	switch kind {
	case Market:
		return b.MarketSwap(in, pair)
	case Limit:
		return b.LimitOrder(in, pair)
	case StopLoss:
		return b.StopLossOrder(in, pair)
	case Margin:
		return b.MarginOrder(in, pair)
	case Deposit:
		return b.LiquidityDeposit(in, pair.From)
	default:
		return nil, fmt.Errorf("%w: unknown order type %q", ErrInvalidIntent, kind)
	}
}

// MarketSwap builds a market swap with no price constraint.
func (b *Builder) MarketSwap(in Input, pair catalog.Pair) (*Intent, error) {
	return b.swap(Market, in, pair)
}

// LimitOrder builds a limit order. The price is scaled to 18 decimals regardless of
// the token decimals.
func (b *Builder) LimitOrder(in Input, pair catalog.Pair) (*Intent, error) {
	price, err := parsePrice("limit price", in.LimitPrice)
	if err != nil {
		return nil, err
	}
	it, err := b.swap(Limit, in, pair)
	if err != nil {
		return nil, err
	}
	it.LimitPrice = price
	return it, nil
}

// StopLossOrder builds a stop-loss order triggered at in.TriggerPrice.
func (b *Builder) StopLossOrder(in Input, pair catalog.Pair) (*Intent, error) {
	price, err := parsePrice("trigger price", in.TriggerPrice)
	if err != nil {
		return nil, err
	}
	it, err := b.swap(StopLoss, in, pair)
	if err != nil {
		return nil, err
	}
	it.TriggerPrice = price
	return it, nil
}

// MarginOrder builds a leveraged position.
func (b *Builder) MarginOrder(in Input, pair catalog.Pair) (*Intent, error) {
	maxLeverage := int(b.MaxLeverage)
	if maxLeverage == 0 {
		maxLeverage = DefaultMaxLeverage
	}
	if in.Leverage < 1 || in.Leverage > maxLeverage {
		return nil, fmt.Errorf("%w: leverage %d is outside 1..%d", ErrInvalidIntent, in.Leverage, maxLeverage)
	}
	it, err := b.swap(Margin, in, pair)
	if err != nil {
		return nil, err
	}
	it.Leverage = uint8(in.Leverage)
	return it, nil
}

// LiquidityDeposit builds a single-token liquidity deposit. The pool is resolved later.
func (b *Builder) LiquidityDeposit(in Input, token catalog.Token) (*Intent, error) {
	if err := b.checkToken(token); err != nil {
		return nil, err
	}
	amount, err := b.common(in, token)
	if err != nil {
		return nil, err
	}
	return &Intent{
		ID:         uuid.New(),
		Kind:       Deposit,
		Account:    in.Account,
		Pair:       catalog.Pair{From: token},
		Amount:     strings.TrimSpace(in.Amount),
		AmountBase: amount,
	}, nil
}

func (b *Builder) swap(kind Kind, in Input, pair catalog.Pair) (*Intent, error) {
	if err := b.checkToken(pair.From); err != nil {
		return nil, err
	}
	if err := b.checkToken(pair.To); err != nil {
		return nil, err
	}
	if pair.From.Address == pair.To.Address {
		return nil, fmt.Errorf("%w: source and destination are both %s", ErrInvalidIntent, pair.From.Symbol)
	}
	if b.Catalog != nil {
		if _, ok := b.Catalog.FeeTier(pair.FeeTier.Value); !ok {
			return nil, fmt.Errorf("%w: fee tier %d is not supported", ErrInvalidIntent, pair.FeeTier.Value)
		}
	}
	if b.Market == (common.Address{}) {
		return nil, fmt.Errorf("%w: market contract not configured", ErrInvalidIntent)
	}

	amount, err := b.common(in, pair.From)
	if err != nil {
		return nil, err
	}

	return &Intent{
		ID:         uuid.New(),
		Kind:       kind,
		Account:    in.Account,
		Pair:       pair,
		Amount:     strings.TrimSpace(in.Amount),
		AmountBase: amount,
		Leverage:   1,
		Spender:    b.Market,
	}, nil
}

func (b *Builder) common(in Input, token catalog.Token) (*big.Int, error) {
	if in.Account == (common.Address{}) {
		return nil, fmt.Errorf("%w: no account connected", ErrInvalidIntent)
	}
	if strings.TrimSpace(in.Amount) == "" {
		return nil, fmt.Errorf("%w: amount is required", ErrInvalidIntent)
	}
	amount, err := units.ToBaseUnits(in.Amount, token.Decimals)
	if err != nil {
		return nil, fmt.Errorf("%w: %w", ErrInvalidIntent, err)
	}
	if amount.Sign() == 0 {
		return nil, fmt.Errorf("%w: amount must be greater than zero", ErrInvalidIntent)
	}
	return amount, nil
}

func (b *Builder) checkToken(token catalog.Token) error {
	if token.IsZero() {
		return fmt.Errorf("%w: token is required", ErrInvalidIntent)
	}
	if b.Catalog == nil {
		return nil
	}
	if _, ok := b.Catalog.TokenByAddress(token.Address); !ok {
		return fmt.Errorf("%w: token %s is not in the catalog", ErrInvalidIntent, token.Address.Hex())
	}
	return nil
}

func parsePrice(field, s string) (*big.Int, error) {
	if strings.TrimSpace(s) == "" {
		return nil, fmt.Errorf("%w: %s is required", ErrInvalidIntent, field)
	}
	price, err := units.ToBaseUnits(s, 18)
	if err != nil {
		return nil, fmt.Errorf("%w: %s: %w", ErrInvalidIntent, field, err)
	}
	if price.Sign() <= 0 {
		return nil, fmt.Errorf("%w: %s must be positive", ErrInvalidIntent, field)
	}
	return price, nil
}
