package allowance

import (
	"context"
	"fmt"
	"math/big"
	"sync"

	"github.com/ethereum/go-ethereum/common"
	"go.uber.org/zap"

	"dex-trader/pkg/chain"
	"dex-trader/pkg/units"
)

// Key identifies one ERC20 allowance.
type Key struct {
	Owner   common.Address
	Token   common.Address
	Spender common.Address
}

func (k Key) String() string {
	return fmt.Sprintf("%s/%s->%s", k.Token.Hex(), k.Owner.Hex(), k.Spender.Hex())
}

// Allowance is a spend limit in base units. The zero value is "unknown".
type Allowance struct {
	Value *big.Int
	Known bool
}

// Unknown is the allowance before a successful fetch.
var Unknown = Allowance{}

// Of returns a known allowance of v.
func Of(v *big.Int) Allowance {
	return Allowance{Value: new(big.Int).Set(v), Known: true}
}

func (a Allowance) String() string {
	if !a.Known {
		return "unknown"
	}
	return a.Value.String()
}

// NeedsApproval reports whether requested exceeds the allowance. An unset or zero
// request never needs approval, and neither does an unknown allowance.
func NeedsApproval(requested *big.Int, a Allowance) bool {
	if units.IsZero(requested) || !a.Known {
		return false
	}
	return requested.Cmp(a.Value) > 0
}

type entry struct {
	value *big.Int
	stale bool
}

// Tracker caches allowances per (owner, token, spender). Entries are invalidated
// whole and re-fetched lazily on the next Get. A read that overlaps an
// Invalidate of its key is returned but not cached.
type Tracker struct {
	reader chain.Reader
	logger *zap.Logger

	mu          sync.Mutex
	entries     map[Key]*entry
	generations map[Key]uint64
}

// NewTracker creates an allowance tracker backed by reader.
func NewTracker(reader chain.Reader, logger *zap.Logger) *Tracker {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Tracker{
		reader:      reader,
		logger:      logger,
		entries:     make(map[Key]*entry),
		generations: make(map[Key]uint64),
	}
}

// Get returns the cached allowance for key, fetching it when missing or stale.
// A failed fetch returns Unknown and an error wrapping chain.ErrRead.
func (t *Tracker) Get(ctx context.Context, key Key) (Allowance, error) {
	t.mu.Lock()
	if e, ok := t.entries[key]; ok && !e.stale {
		t.mu.Unlock()
		return Of(e.value), nil
	}
	gen := t.generations[key]
	t.mu.Unlock()

	value, err := chain.ReadUint(ctx, t.reader, chain.Allowance(key.Token, key.Owner, key.Spender))
	if err != nil {
		t.logger.Warn("allowance read failed", zap.Stringer("key", key), zap.Error(err))
		return Unknown, fmt.Errorf("failed to read allowance: %w", err)
	}

	t.mu.Lock()
	current := t.generations[key] == gen
	if current {
		t.entries[key] = &entry{value: new(big.Int).Set(value)}
	}
	t.mu.Unlock()

	if !current {
		t.logger.Debug("allowance invalidated during read, not cached", zap.Stringer("key", key))
	}
	t.logger.Debug("allowance fetched", zap.Stringer("key", key), zap.String("value", value.String()))
	return Of(value), nil
}

// Cached returns the fresh cached allowance without touching the chain.
func (t *Tracker) Cached(key Key) (Allowance, bool) {
	t.mu.Lock()
	defer t.mu.Unlock()

	e, ok := t.entries[key]
	if !ok || e.stale {
		return Unknown, false
	}
	return Of(e.value), true
}

// Invalidate marks key stale so the next Get re-fetches. Repeated calls are no-ops.
func (t *Tracker) Invalidate(key Key) {
	t.mu.Lock()
	defer t.mu.Unlock()

	if e, ok := t.entries[key]; ok {
		e.stale = true
	}
	t.generations[key]++
	t.logger.Debug("allowance invalidated", zap.Stringer("key", key))
}
