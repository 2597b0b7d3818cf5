package history

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func newEntry(id, hash string, created time.Time) *Entry {
	return &Entry{
		ID:        id,
		IntentID:  "intent-" + id,
		OrderType: "market",
		Stage:     "approval",
		Pair:      "WETH/USDC (0.3%)",
		Token:     "WETH",
		Amount:    "10",
		Target:    "0xfFf9976782d46CC05630D1f6eBAb18b2324d6B14",
		Method:    "approve",
		Hash:      hash,
		Status:    StatusPending,
		Created:   created,
	}
}

func TestStore_RecordAndReload(t *testing.T) {
	path := filepath.Join(t.TempDir(), "history.json")

	store, err := NewStore(path)
	require.NoError(t, err)
	assert.Equal(t, 0, store.Count())
	assert.Equal(t, path, store.Path())

	require.NoError(t, store.Record(newEntry("a", "0x01", time.Now())))
	require.NoError(t, store.SetStatus("a", StatusFailed, "execution reverted: slippage"))

	_, err = os.Stat(path + ".tmp")
	assert.True(t, os.IsNotExist(err), "temp file is renamed away")

	reopened, err := NewStore(path)
	require.NoError(t, err)
	entry, err := reopened.Get("a")
	require.NoError(t, err)
	assert.Equal(t, StatusFailed, entry.Status)
	assert.Equal(t, "execution reverted: slippage", entry.Reason)
	assert.False(t, entry.Updated.Before(entry.Created))
}

func TestStore_RejectsDuplicatesAndUnknownIDs(t *testing.T) {
	store, err := NewStore(filepath.Join(t.TempDir(), "history.json"))
	require.NoError(t, err)

	require.NoError(t, store.Record(newEntry("a", "0x01", time.Now())))
	assert.Error(t, store.Record(newEntry("a", "0x02", time.Now())))
	assert.Error(t, store.Record(&Entry{}))
	assert.Error(t, store.SetStatus("missing", StatusConfirmed, ""))

	_, err = store.Get("missing")
	assert.Error(t, err)
}

func TestStore_ListOrderingAndFilters(t *testing.T) {
	store, err := NewStore(filepath.Join(t.TempDir(), "history.json"))
	require.NoError(t, err)

	base := time.Date(2026, 3, 1, 12, 0, 0, 0, time.UTC)
	require.NoError(t, store.Record(newEntry("old", "0xaa", base)))
	require.NoError(t, store.Record(newEntry("mid", "0xbb", base.Add(time.Minute))))
	require.NoError(t, store.Record(newEntry("new", "0xcc", base.Add(2*time.Minute))))
	require.NoError(t, store.SetStatus("mid", StatusConfirmed, ""))

	all := store.List()
	require.Len(t, all, 3)
	assert.Equal(t, []string{"new", "mid", "old"}, []string{all[0].ID, all[1].ID, all[2].ID})

	pending := store.ListByStatus(StatusPending)
	assert.Len(t, pending, 2)
	confirmed := store.ListByStatus(StatusConfirmed)
	require.Len(t, confirmed, 1)
	assert.Equal(t, "mid", confirmed[0].ID)

	found, ok := store.FindByHash("0xBB")
	require.True(t, ok)
	assert.Equal(t, "mid", found.ID)
	_, ok = store.FindByHash("0xdd")
	assert.False(t, ok)
}

func TestStore_ReturnsCopies(t *testing.T) {
	store, err := NewStore(filepath.Join(t.TempDir(), "history.json"))
	require.NoError(t, err)

	entry := newEntry("a", "0x01", time.Now())
	require.NoError(t, store.Record(entry))
	entry.Status = StatusConfirmed

	got, err := store.Get("a")
	require.NoError(t, err)
	assert.Equal(t, StatusPending, got.Status)

	got.Status = StatusFailed
	again, err := store.Get("a")
	require.NoError(t, err)
	assert.Equal(t, StatusPending, again.Status)
}

func TestNewStore_CorruptFile(t *testing.T) {
	path := filepath.Join(t.TempDir(), "history.json")
	require.NoError(t, os.WriteFile(path, []byte("{not json"), 0600))

	_, err := NewStore(path)
	assert.Error(t, err)
}

func TestParseStatus(t *testing.T) {
	st, err := ParseStatus(" Confirmed ")
	require.NoError(t, err)
	assert.Equal(t, StatusConfirmed, st)

	_, err = ParseStatus("done")
	assert.Error(t, err)
}
