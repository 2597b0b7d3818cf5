package order

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/ethereum/go-ethereum/common"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"dex-trader/pkg/chain"
)

func TestHandle_Nil(t *testing.T) {
	var h *Handle

	assert.Equal(t, StatusIdle, h.Status())
	assert.Empty(t, h.Reason())
	assert.NoError(t, h.Err())
	_, ok := h.Hash()
	assert.False(t, ok)
	assert.Empty(t, h.Stage())
	assert.Empty(t, h.Call().Method)
	assert.NoError(t, h.Wait(context.Background()))

	select {
	case <-h.Done():
	default:
		t.Fatal("nil handle should report done")
	}
}

func TestHandle_Lifecycle(t *testing.T) {
	h := newHandle(StageApproval, chain.Call{Method: "approve"})
	assert.Equal(t, StatusPending, h.Status())
	_, ok := h.Hash()
	assert.False(t, ok)

	hash := common.HexToHash("0x01")
	h.broadcast(hash)
	assert.Equal(t, StatusConfirming, h.Status())
	got, ok := h.Hash()
	require.True(t, ok)
	assert.Equal(t, hash, got)

	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Millisecond)
	defer cancel()
	assert.ErrorIs(t, h.Wait(ctx), context.DeadlineExceeded)
	assert.Equal(t, StatusConfirming, h.Status(), "an abandoned wait leaves the call running")

	h.confirm()
	assert.NoError(t, h.Wait(context.Background()))
	assert.Equal(t, StatusConfirmed, h.Status())
}

func TestHandle_Fail(t *testing.T) {
	h := newHandle(StageAction, chain.Call{Method: "deposit"})
	cause := errors.New("boom")
	h.fail("execution reverted: paused", cause)

	select {
	case <-h.Done():
	default:
		t.Fatal("done not closed")
	}
	assert.Equal(t, StatusFailed, h.Status())
	assert.Equal(t, "execution reverted: paused", h.Reason())
	assert.ErrorIs(t, h.Wait(context.Background()), cause)
}
