package order

import (
	"context"
	"sync"

	"github.com/ethereum/go-ethereum/common"

	"dex-trader/pkg/chain"
)

// Stage is the kind of call a handle tracks.
type Stage string

const (
	StageApproval Stage = "approval"
	StageAction   Stage = "action"
)

// Status is the lifecycle of one dispatched call.
type Status int

const (
	StatusIdle       Status = iota // nothing dispatched
	StatusPending                  // waiting for the broadcast to be accepted
	StatusConfirming               // broadcast, waiting for a receipt
	StatusConfirmed
	StatusFailed
)

func (s Status) String() string {
	switch s {
	case StatusIdle:
		return "idle"
	case StatusPending:
		return "pending"
	case StatusConfirming:
		return "confirming"
	case StatusConfirmed:
		return "confirmed"
	case StatusFailed:
		return "failed"
	default:
		return "unknown"
	}
}

// Handle tracks a single approval or action call. A nil *Handle reports
// StatusIdle.
type Handle struct {
	stage Stage
	call  chain.Call

	mu      sync.Mutex
	status  Status
	hash    common.Hash
	hasHash bool
	reason  string
	err     error
	done    chan struct{}
}

var closedDone = func() chan struct{} {
	ch := make(chan struct{})
	close(ch)
	return ch
}()

func newHandle(stage Stage, call chain.Call) *Handle {
	return &Handle{
		stage:  stage,
		call:   call,
		status: StatusPending,
		done:   make(chan struct{}),
	}
}

// Stage reports whether the handle tracks the approval or the action.
func (h *Handle) Stage() Stage {
	if h == nil {
		return ""
	}
	return h.stage
}

// Call is the dispatched contract call.
func (h *Handle) Call() chain.Call {
	if h == nil {
		return chain.Call{}
	}
	return h.call
}

// Hash returns the transaction hash once the call was broadcast.
func (h *Handle) Hash() (common.Hash, bool) {
	if h == nil {
		return common.Hash{}, false
	}
	h.mu.Lock()
	defer h.mu.Unlock()
	return h.hash, h.hasHash
}

func (h *Handle) Status() Status {
	if h == nil {
		return StatusIdle
	}
	h.mu.Lock()
	defer h.mu.Unlock()
	return h.status
}

// Reason is the verbatim rejection or revert message of a failed call.
func (h *Handle) Reason() string {
	if h == nil {
		return ""
	}
	h.mu.Lock()
	defer h.mu.Unlock()
	return h.reason
}

// Err is the failure cause, or nil.
func (h *Handle) Err() error {
	if h == nil {
		return nil
	}
	h.mu.Lock()
	defer h.mu.Unlock()
	return h.err
}

// Done is closed when the call is confirmed or failed. A nil handle has nothing
// outstanding, so its channel is already closed.
func (h *Handle) Done() <-chan struct{} {
	if h == nil {
		return closedDone
	}
	return h.done
}

// Wait blocks until the call is terminal or ctx is done. Cancelling ctx only
// stops waiting; the transaction keeps its course.
func (h *Handle) Wait(ctx context.Context) error {
	if h == nil {
		return nil
	}
	select {
	case <-ctx.Done():
		return ctx.Err()
	case <-h.done:
		return h.Err()
	}
}

func (h *Handle) broadcast(hash common.Hash) {
	h.mu.Lock()
	defer h.mu.Unlock()
	h.hash = hash
	h.hasHash = true
	h.status = StatusConfirming
}

func (h *Handle) confirm() {
	h.mu.Lock()
	h.status = StatusConfirmed
	h.mu.Unlock()
	close(h.done)
}

func (h *Handle) fail(reason string, err error) {
	h.mu.Lock()
	h.status = StatusFailed
	h.reason = reason
	h.err = err
	h.mu.Unlock()
	close(h.done)
}
