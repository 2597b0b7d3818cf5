package order

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"time"

	"github.com/ethereum/go-ethereum/common"
	"github.com/google/uuid"
	"go.uber.org/zap"

	"dex-trader/pkg/allowance"
	"dex-trader/pkg/catalog"
	"dex-trader/pkg/chain"
	"dex-trader/pkg/history"
	"dex-trader/pkg/intent"
	"dex-trader/pkg/metrics"
	"dex-trader/pkg/quote"
)

var (
	// ErrBusy is returned by Submit while a call of the same machine is outstanding.
	ErrBusy = errors.New("a transaction is already in flight for this order")
	// ErrPoolNotFound is returned when the market has no liquidity pool for a token.
	ErrPoolNotFound = errors.New("liquidity pool not found")
)

// State is the position of an order form in the approve-then-act flow.
type State int

const (
	Idle State = iota
	AwaitingApproval
	ApprovalPending
	ApprovalConfirmed
	ActionPending
	ActionConfirmed
	Failed
)

func (s State) String() string {
	switch s {
	case Idle:
		return "idle"
	case AwaitingApproval:
		return "awaiting approval"
	case ApprovalPending:
		return "approval pending"
	case ApprovalConfirmed:
		return "approval confirmed"
	case ActionPending:
		return "action pending"
	case ActionConfirmed:
		return "action confirmed"
	case Failed:
		return "failed"
	default:
		return "unknown"
	}
}

// Pending reports whether a call is outstanding in s.
func (s State) Pending() bool {
	return s == ApprovalPending || s == ActionPending
}

// Journal records dispatched calls and their outcome.
type Journal interface {
	Record(entry *history.Entry) error
	SetStatus(id string, status history.Status, reason string) error
}

// Config wires an Engine to its collaborators. Journal, Quoter and Logger are optional.
type Config struct {
	Builder  *intent.Builder
	Accounts chain.AccountProvider
	Reader   chain.Reader
	Writer   chain.Writer
	Tracker  *allowance.Tracker
	Quoter   *quote.Quoter
	Journal  Journal
	Logger   *zap.Logger
}

// Engine holds the collaborators shared by all order forms.
type Engine struct {
	builder  *intent.Builder
	accounts chain.AccountProvider
	reader   chain.Reader
	writer   chain.Writer
	tracker  *allowance.Tracker
	quoter   *quote.Quoter
	journal  Journal
	logger   *zap.Logger
}

// NewEngine validates cfg and fills defaults.
func NewEngine(cfg Config) (*Engine, error) {
	if cfg.Builder == nil {
		return nil, fmt.Errorf("intent builder is required")
	}
	if cfg.Accounts == nil || cfg.Reader == nil || cfg.Writer == nil {
		return nil, fmt.Errorf("account provider, chain reader and chain writer are required")
	}

	logger := cfg.Logger
	if logger == nil {
		logger = zap.NewNop()
	}
	tracker := cfg.Tracker
	if tracker == nil {
		tracker = allowance.NewTracker(cfg.Reader, logger)
	}

	return &Engine{
		builder:  cfg.Builder,
		accounts: cfg.Accounts,
		reader:   cfg.Reader,
		writer:   cfg.Writer,
		tracker:  tracker,
		quoter:   cfg.Quoter,
		journal:  cfg.Journal,
		logger:   logger,
	}, nil
}

// Tracker is the shared allowance cache.
func (e *Engine) Tracker() *allowance.Tracker {
	return e.tracker
}

// NewMachine creates the state machine for one order form.
func (e *Engine) NewMachine(kind intent.Kind, pair catalog.Pair) *Machine {
	return &Machine{
		engine: e,
		kind:   kind,
		pair:   pair,
		logger: e.logger.With(zap.String("order_type", kind.String())),
	}
}

// Snapshot is a consistent view of a machine for rendering.
type Snapshot struct {
	Kind        intent.Kind
	Pair        catalog.Pair
	State       State
	FailedStage Stage // set in Failed
	Reason      string
	Intent      *intent.Intent
	Handle      *Handle
}

// Machine sequences the approval and action calls of one order form. At most
// one call is outstanding at a time.
type Machine struct {
	engine *Engine
	kind   intent.Kind
	logger *zap.Logger

	mu          sync.Mutex
	pair        catalog.Pair
	state       State
	failedStage Stage
	reason      string
	busy        bool
	intent      *intent.Intent
	handle      *Handle
	observers   []func(Snapshot)
}

// OnChange registers fn to be called after every state transition.
func (m *Machine) OnChange(fn func(Snapshot)) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.observers = append(m.observers, fn)
}

// Snapshot returns the current state.
func (m *Machine) Snapshot() Snapshot {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.snapshotLocked()
}

// SetPair changes the instrument for the next submission. An outstanding call is
// not affected.
func (m *Machine) SetPair(pair catalog.Pair) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.pair = pair
}

// Switch reverses the source and destination tokens.
func (m *Machine) Switch() catalog.Pair {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.pair = m.pair.Reverse()
	return m.pair
}

// Quote estimates the destination amount for swap-like order forms.
func (m *Machine) Quote(ctx context.Context, amount string) (quote.Estimate, error) {
	pair := m.currentPair()
	if m.engine.quoter == nil || !m.kind.SwapLike() {
		return quote.Estimate{Pair: pair}, nil
	}
	est, err := m.engine.quoter.Estimate(ctx, pair, amount)
	if errors.Is(err, chain.ErrRead) {
		metrics.ChainReadsFailed.WithLabelValues("getPairLatestPrice").Inc()
	}
	return est, err
}

// NeedsApproval reports whether submitting in would dispatch an approval. Input
// that does not form a valid intent never needs approval.
func (m *Machine) NeedsApproval(ctx context.Context, in intent.Input) (bool, error) {
	it, err := m.prepare(ctx, in)
	if err != nil {
		if errors.Is(err, intent.ErrInvalidIntent) {
			return false, nil
		}
		return false, err
	}

	a, err := m.engine.tracker.Get(ctx, m.allowanceKey(it))
	if err != nil {
		metrics.ChainReadsFailed.WithLabelValues("allowance").Inc()
		return false, err
	}
	return allowance.NeedsApproval(it.AmountBase, a), nil
}

// Submit advances the order by one on-chain call: an exact-amount approval when
// the allowance is short, otherwise the order action. The returned handle
// tracks confirmation in the background; confirmation is not bound to ctx. When
// the broadcast itself is rejected the handle is returned already failed along
// with the error.
func (m *Machine) Submit(ctx context.Context, in intent.Input) (*Handle, error) {
	m.mu.Lock()
	if m.busy {
		m.mu.Unlock()
		return nil, ErrBusy
	}
	m.busy = true
	m.mu.Unlock()

	h, err := m.submit(ctx, in)
	if h == nil {
		m.mu.Lock()
		m.busy = false
		m.mu.Unlock()
	}
	return h, err
}

func (m *Machine) submit(ctx context.Context, in intent.Input) (*Handle, error) {
	it, err := m.prepare(ctx, in)
	if err != nil {
		return nil, err
	}

	key := m.allowanceKey(it)
	a, err := m.engine.tracker.Get(ctx, key)
	if err != nil {
		metrics.ChainReadsFailed.WithLabelValues("allowance").Inc()
		return nil, err
	}

	if allowance.NeedsApproval(it.AmountBase, a) {
		m.transition(it, AwaitingApproval, nil)
		m.logger.Info("approval required",
			zap.Stringer("intent", it),
			zap.String("allowance", a.String()),
			zap.String("requested", it.AmountBase.String()),
		)
		return m.dispatch(ctx, it, key, StageApproval, it.ApprovalCall())
	}

	call, err := it.ActionCall()
	if err != nil {
		return nil, err
	}
	return m.dispatch(ctx, it, key, StageAction, call)
}

// prepare builds the intent and resolves its spender.
func (m *Machine) prepare(ctx context.Context, in intent.Input) (*intent.Intent, error) {
	account, ok := m.engine.accounts.Account()
	if !ok {
		account = common.Address{}
	}
	in.Account = account

	it, err := m.engine.builder.Build(m.kind, in, m.currentPair())
	if err != nil {
		return nil, err
	}

	if it.NeedsPool() {
		token := it.Source()
		pool, err := chain.ReadAddress(ctx, m.engine.reader, chain.LiquidityPoolFor(m.engine.builder.Market, token.Address))
		if err != nil {
			metrics.ChainReadsFailed.WithLabelValues("getTokenToLiquidityPools").Inc()
			return nil, fmt.Errorf("failed to resolve liquidity pool for %s: %w", token.Symbol, err)
		}
		if pool == (common.Address{}) {
			return nil, fmt.Errorf("%w for %s", ErrPoolNotFound, token.Symbol)
		}
		it = it.WithPool(pool)
	}

	return it, nil
}

func (m *Machine) dispatch(ctx context.Context, it *intent.Intent, key allowance.Key, stage Stage, call chain.Call) (*Handle, error) {
	h := newHandle(stage, call)
	pending := ActionPending
	if stage == StageApproval {
		pending = ApprovalPending
	}
	m.transition(it, pending, h)

	entry := &history.Entry{
		ID:        uuid.NewString(),
		IntentID:  it.ID.String(),
		OrderType: it.Kind.String(),
		Stage:     string(stage),
		Pair:      it.Pair.String(),
		Token:     it.Source().Symbol,
		Amount:    it.Amount,
		Target:    call.To.Hex(),
		Method:    call.Method,
		Status:    history.StatusPending,
	}

	hash, err := m.engine.writer.Write(ctx, call)
	if err != nil {
		reason := failureReason(err)
		werr := fmt.Errorf("%w: %s rejected: %w", chain.ErrWrite, stage, err)

		metrics.CallsFailed.WithLabelValues(it.Kind.String(), string(stage)).Inc()
		entry.Status = history.StatusFailed
		entry.Reason = reason
		m.record(entry)

		m.logger.Warn("call rejected", zap.String("stage", string(stage)), zap.String("method", call.Method), zap.String("reason", reason))
		m.finish(Failed, stage, reason, func() { h.fail(reason, werr) })
		return h, werr
	}

	h.broadcast(hash)
	metrics.CallsDispatched.WithLabelValues(it.Kind.String(), string(stage)).Inc()
	entry.Hash = hash.Hex()
	m.record(entry)
	m.notify()

	m.logger.Info("call broadcast",
		zap.String("stage", string(stage)),
		zap.String("method", call.Method),
		zap.String("hash", hash.Hex()),
	)

	go m.track(context.WithoutCancel(ctx), it, key, h, entry.ID, time.Now())

	return h, nil
}

// track waits for the receipt without a deadline and settles the machine.
func (m *Machine) track(ctx context.Context, it *intent.Intent, key allowance.Key, h *Handle, entryID string, started time.Time) {
	hash, _ := h.Hash()
	stage := h.Stage()
	kind := it.Kind.String()

	err := m.engine.writer.WaitConfirmed(ctx, hash)
	metrics.ConfirmationDuration.WithLabelValues(string(stage)).Observe(time.Since(started).Seconds())

	if err != nil {
		reason := failureReason(err)
		metrics.CallsFailed.WithLabelValues(kind, string(stage)).Inc()
		m.setStatus(entryID, history.StatusFailed, reason)
		m.logger.Warn("call failed", zap.String("stage", string(stage)), zap.String("hash", hash.Hex()), zap.String("reason", reason))

		werr := fmt.Errorf("%w: %s failed: %w", chain.ErrWrite, stage, err)
		m.finish(Failed, stage, reason, func() { h.fail(reason, werr) })
		return
	}

	m.engine.tracker.Invalidate(key)
	metrics.CallsConfirmed.WithLabelValues(kind, string(stage)).Inc()
	m.setStatus(entryID, history.StatusConfirmed, "")
	m.logger.Info("call confirmed", zap.String("stage", string(stage)), zap.String("hash", hash.Hex()))

	next := ActionConfirmed
	if stage == StageApproval {
		next = ApprovalConfirmed
	}
	m.finish(next, "", "", h.confirm)
}

func (m *Machine) transition(it *intent.Intent, state State, h *Handle) {
	m.mu.Lock()
	m.state = state
	m.intent = it
	m.failedStage = ""
	m.reason = ""
	if h != nil {
		m.handle = h
	}
	snap, observers := m.snapshotLocked(), m.observersLocked()
	m.mu.Unlock()

	for _, fn := range observers {
		fn(snap)
	}
}

// finish moves to a terminal state of the current attempt and frees the machine
// before settling the handle, so a caller woken by the handle can resubmit.
func (m *Machine) finish(state State, stage Stage, reason string, settle func()) {
	m.mu.Lock()
	m.state = state
	m.failedStage = stage
	m.reason = reason
	m.busy = false
	m.mu.Unlock()

	settle()

	m.mu.Lock()
	snap, observers := m.snapshotLocked(), m.observersLocked()
	m.mu.Unlock()

	for _, fn := range observers {
		fn(snap)
	}
}

func (m *Machine) notify() {
	m.mu.Lock()
	snap, observers := m.snapshotLocked(), m.observersLocked()
	m.mu.Unlock()

	for _, fn := range observers {
		fn(snap)
	}
}

func (m *Machine) snapshotLocked() Snapshot {
	return Snapshot{
		Kind:        m.kind,
		Pair:        m.pair,
		State:       m.state,
		FailedStage: m.failedStage,
		Reason:      m.reason,
		Intent:      m.intent,
		Handle:      m.handle,
	}
}

func (m *Machine) observersLocked() []func(Snapshot) {
	out := make([]func(Snapshot), len(m.observers))
	copy(out, m.observers)
	return out
}

func (m *Machine) currentPair() catalog.Pair {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.pair
}

func (m *Machine) allowanceKey(it *intent.Intent) allowance.Key {
	return allowance.Key{Owner: it.Account, Token: it.Source().Address, Spender: it.Spender}
}

func (m *Machine) record(entry *history.Entry) {
	if m.engine.journal == nil {
		return
	}
	if err := m.engine.journal.Record(entry); err != nil {
		m.logger.Warn("failed to journal call", zap.String("id", entry.ID), zap.Error(err))
	}
}

func (m *Machine) setStatus(id string, status history.Status, reason string) {
	if m.engine.journal == nil {
		return
	}
	if err := m.engine.journal.SetStatus(id, status, reason); err != nil {
		m.logger.Warn("failed to update journal", zap.String("id", id), zap.Error(err))
	}
}

// failureReason is the verbatim message shown to the user.
func failureReason(err error) string {
	var revert *chain.RevertError
	if errors.As(err, &revert) {
		return revert.Reason
	}
	return err.Error()
}
