package quote

import (
	"context"
	"errors"
	"fmt"
	"math/big"
	"strings"

	"github.com/ethereum/go-ethereum/common"
	"github.com/holiman/uint256"
	"go.uber.org/zap"

	"dex-trader/pkg/catalog"
	"dex-trader/pkg/chain"
	"dex-trader/pkg/units"
)

// PriceDecimals is the fixed-point precision of price feed samples.
const PriceDecimals = 18

// ErrArithmeticOverflow is returned when a quote does not fit in 256 bits.
var ErrArithmeticOverflow = errors.New("arithmetic overflow")

// ErrInvalidOperand is returned for a missing or negative amount or price.
var ErrInvalidOperand = errors.New("invalid quote operand")

// Compute converts sourceAmount into destination base units at price, an
// 18-decimal sample of destination tokens per source token. The result is
// floored.
func Compute(sourceAmount, price *big.Int, sourceDecimals, destDecimals uint8) (*big.Int, error) {
	if sourceAmount == nil || price == nil {
		return nil, fmt.Errorf("%w: missing amount or price", ErrInvalidOperand)
	}
	if sourceAmount.Sign() < 0 || price.Sign() < 0 {
		return nil, fmt.Errorf("%w: negative amount or price", ErrInvalidOperand)
	}

	amt, overflow := uint256.FromBig(sourceAmount)
	if overflow {
		return nil, fmt.Errorf("%w: source amount exceeds 256 bits", ErrArithmeticOverflow)
	}
	px, overflow := uint256.FromBig(price)
	if overflow {
		return nil, fmt.Errorf("%w: price exceeds 256 bits", ErrArithmeticOverflow)
	}

	product, overflow := new(uint256.Int).MulOverflow(amt, px)
	if overflow {
		return nil, fmt.Errorf("%w: %s * %s", ErrArithmeticOverflow, sourceAmount, price)
	}

	// Exponent of ten left after cancelling destination decimals against the
	// price and source precision.
	shift := int(destDecimals) - PriceDecimals - int(sourceDecimals)

	if shift >= 0 {
		scale, ok := pow10(uint(shift))
		if !ok {
			if product.IsZero() {
				return new(big.Int), nil
			}
			return nil, fmt.Errorf("%w: scale 10^%d", ErrArithmeticOverflow, shift)
		}
		out, overflow := new(uint256.Int).MulOverflow(product, scale)
		if overflow {
			return nil, fmt.Errorf("%w: rescaling by 10^%d", ErrArithmeticOverflow, shift)
		}
		return out.ToBig(), nil
	}

	scale, ok := pow10(uint(-shift))
	if !ok {
		// Any divisor wider than 256 bits floors every representable product to zero.
		return new(big.Int), nil
	}
	return new(uint256.Int).Div(product, scale).ToBig(), nil
}

func pow10(n uint) (*uint256.Int, bool) {
	ten := uint256.NewInt(10)
	out := uint256.NewInt(1)
	for i := uint(0); i < n; i++ {
		var overflow bool
		out, overflow = new(uint256.Int).MulOverflow(out, ten)
		if overflow {
			return nil, false
		}
	}
	return out, true
}

// Estimate is the destination amount for a source amount. Known is false when
// there is no amount or no usable price; Amount is nil in that state.
type Estimate struct {
	Pair      catalog.Pair
	Amount    *big.Int
	Price     *big.Int
	Known     bool
	Formatted string
}

// Unknown reports the explicit no-quote state.
func (e Estimate) Unknown() bool {
	return !e.Known
}

// Quoter estimates destination amounts from the on-chain price feed. It keeps
// no cache and never retries.
type Quoter struct {
	reader chain.Reader
	feed   common.Address
	logger *zap.Logger
}

// NewQuoter creates a quoter reading prices from the feed contract.
func NewQuoter(reader chain.Reader, feed common.Address, logger *zap.Logger) *Quoter {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Quoter{reader: reader, feed: feed, logger: logger}
}

// Price returns the latest 18-decimal price of from in units of to. A zero price
// means the feed does not support the pair.
func (q *Quoter) Price(ctx context.Context, from, to catalog.Token) (*big.Int, error) {
	price, err := chain.ReadUint(ctx, q.reader, chain.PairLatestPrice(q.feed, from.Address, to.Address))
	if err != nil {
		return nil, fmt.Errorf("failed to read %s/%s price: %w", from.Symbol, to.Symbol, err)
	}
	return price, nil
}

// Estimate quotes amount (a decimal string of pair.From) in pair.To. An empty
// amount or an unsupported pair yields an unknown estimate with no error.
func (q *Quoter) Estimate(ctx context.Context, pair catalog.Pair, amount string) (Estimate, error) {
	est := Estimate{Pair: pair}

	if strings.TrimSpace(amount) == "" {
		return est, nil
	}

	src, err := units.ToBaseUnits(amount, pair.From.Decimals)
	if err != nil {
		return est, err
	}
	if src.Sign() == 0 {
		return est, nil
	}

	price, err := q.Price(ctx, pair.From, pair.To)
	if err != nil {
		q.logger.Warn("price feed read failed", zap.Stringer("pair", pair), zap.Error(err))
		return est, err
	}
	if price.Sign() == 0 {
		q.logger.Debug("price feed has no sample for pair", zap.Stringer("pair", pair))
		return est, nil
	}

	dest, err := Compute(src, price, pair.From.Decimals, pair.To.Decimals)
	if err != nil {
		return est, err
	}

	est.Amount = dest
	est.Price = price
	est.Known = true
	est.Formatted = units.FromBaseUnits(dest, pair.To.Decimals)
	return est, nil
}
