package catalog

import (
	"fmt"
	"strings"

	"github.com/ethereum/go-ethereum/common"
)

// Token is an ERC20 token from the static catalog. Identity is the address.
type Token struct {
	Address  common.Address
	Symbol   string
	Decimals uint8
}

// IsZero reports whether t is the empty token, used for "no destination".
func (t Token) IsZero() bool {
	return t.Address == (common.Address{})
}

func (t Token) String() string {
	return t.Symbol
}

// FeeTier selects a pool variant. Value is in hundredths of a basis point (3000 = 0.3%).
type FeeTier struct {
	Value uint32
	Label string
}

// Pair is an ordered trading instrument.
type Pair struct {
	From    Token
	To      Token
	FeeTier FeeTier
}

// Reverse swaps the source and destination tokens, keeping the fee tier.
func (p Pair) Reverse() Pair {
	return Pair{From: p.To, To: p.From, FeeTier: p.FeeTier}
}

func (p Pair) String() string {
	if p.FeeTier.Label == "" {
		return fmt.Sprintf("%s/%s", p.From.Symbol, p.To.Symbol)
	}
	return fmt.Sprintf("%s/%s (%s)", p.From.Symbol, p.To.Symbol, p.FeeTier.Label)
}

// Catalog holds the immutable token and fee-tier configuration.
type Catalog struct {
	tokens         []Token
	bySymbol       map[string]Token
	byAddress      map[common.Address]Token
	feeTiers       []FeeTier
	defaultFeeTier FeeTier
}

// New validates and indexes the given tokens and fee tiers. The default fee tier
// must be one of tiers; a zero default selects the first tier.
func New(tokens []Token, tiers []FeeTier, defaultTier uint32) (*Catalog, error) {
	if len(tokens) == 0 {
		return nil, fmt.Errorf("token catalog is empty")
	}

	c := &Catalog{
		bySymbol:  make(map[string]Token, len(tokens)),
		byAddress: make(map[common.Address]Token, len(tokens)),
	}

	for _, t := range tokens {
		if t.IsZero() {
			return nil, fmt.Errorf("token %s has a zero address", t.Symbol)
		}
		symbol := normalize(t.Symbol)
		if symbol == "" {
			return nil, fmt.Errorf("token %s has no symbol", t.Address.Hex())
		}
		if _, exists := c.bySymbol[symbol]; exists {
			return nil, fmt.Errorf("duplicate token symbol %s", t.Symbol)
		}
		if _, exists := c.byAddress[t.Address]; exists {
			return nil, fmt.Errorf("duplicate token address %s", t.Address.Hex())
		}
		c.tokens = append(c.tokens, t)
		c.bySymbol[symbol] = t
		c.byAddress[t.Address] = t
	}

	seen := make(map[uint32]bool, len(tiers))
	for _, tier := range tiers {
		if seen[tier.Value] {
			return nil, fmt.Errorf("duplicate fee tier %d", tier.Value)
		}
		seen[tier.Value] = true
		c.feeTiers = append(c.feeTiers, tier)
	}

	if len(c.feeTiers) > 0 {
		c.defaultFeeTier = c.feeTiers[0]
		if defaultTier != 0 {
			tier, ok := c.FeeTier(defaultTier)
			if !ok {
				return nil, fmt.Errorf("default fee tier %d is not in the fee tier list", defaultTier)
			}
			c.defaultFeeTier = tier
		}
	}

	return c, nil
}

// Token looks a token up by symbol, case-insensitively.
func (c *Catalog) Token(symbol string) (Token, error) {
	t, ok := c.bySymbol[normalize(symbol)]
	if !ok {
		return Token{}, fmt.Errorf("token '%s' not found", symbol)
	}
	return t, nil
}

// TokenByAddress looks a token up by contract address.
func (c *Catalog) TokenByAddress(addr common.Address) (Token, bool) {
	t, ok := c.byAddress[addr]
	return t, ok
}

// Tokens returns the catalog in configuration order.
func (c *Catalog) Tokens() []Token {
	out := make([]Token, len(c.tokens))
	copy(out, c.tokens)
	return out
}

// FeeTier returns the tier with the given value.
func (c *Catalog) FeeTier(value uint32) (FeeTier, bool) {
	for _, tier := range c.feeTiers {
		if tier.Value == value {
			return tier, true
		}
	}
	return FeeTier{}, false
}

// FeeTiers returns the fee tiers in configuration order.
func (c *Catalog) FeeTiers() []FeeTier {
	out := make([]FeeTier, len(c.feeTiers))
	copy(out, c.feeTiers)
	return out
}

// DefaultFeeTier is the tier preselected for new orders.
func (c *Catalog) DefaultFeeTier() FeeTier {
	return c.defaultFeeTier
}

// Pair resolves an instrument from symbols. A zero fee selects the default tier.
func (c *Catalog) Pair(from, to string, fee uint32) (Pair, error) {
	src, err := c.Token(from)
	if err != nil {
		return Pair{}, fmt.Errorf("source token error: %w", err)
	}
	dst, err := c.Token(to)
	if err != nil {
		return Pair{}, fmt.Errorf("destination token error: %w", err)
	}

	tier := c.defaultFeeTier
	if fee != 0 {
		var ok bool
		if tier, ok = c.FeeTier(fee); !ok {
			return Pair{}, fmt.Errorf("fee tier %d is not supported", fee)
		}
	}

	return Pair{From: src, To: dst, FeeTier: tier}, nil
}

func normalize(symbol string) string {
	return strings.TrimSpace(strings.ToUpper(symbol))
}
