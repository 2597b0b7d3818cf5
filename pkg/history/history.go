package history

import (
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"sort"
	"strings"
	"sync"
	"time"
)

const (
	DefaultFileName = ".dex-trader-history.json"
)

// Status is the outcome of a journaled transaction.
type Status string

const (
	StatusPending   Status = "pending"   // Broadcast, waiting for a receipt
	StatusConfirmed Status = "confirmed" // Mined successfully
	StatusFailed    Status = "failed"    // Rejected before broadcast or reverted
)

// ParseStatus validates a status filter.
func ParseStatus(s string) (Status, error) {
	switch st := Status(strings.ToLower(strings.TrimSpace(s))); st {
	case StatusPending, StatusConfirmed, StatusFailed:
		return st, nil
	default:
		return "", fmt.Errorf("unknown status %q (want pending, confirmed or failed)", s)
	}
}

// Entry is one dispatched approval or action call.
type Entry struct {
	ID        string    `json:"id"`
	IntentID  string    `json:"intent_id"`
	OrderType string    `json:"order_type"` // market, limit, stop-loss, margin, deposit
	Stage     string    `json:"stage"`      // approval or action
	Pair      string    `json:"pair"`
	Token     string    `json:"token"`  // Symbol of the spent token
	Amount    string    `json:"amount"` // Decimal amount as entered
	Target    string    `json:"target"` // Contract called
	Method    string    `json:"method"`
	Hash      string    `json:"hash,omitempty"`
	Status    Status    `json:"status"`
	Reason    string    `json:"reason,omitempty"`
	Created   time.Time `json:"created"`
	Updated   time.Time `json:"updated"`
}

// Store persists entries to a JSON file.
type Store struct {
	filePath string
	mu       sync.RWMutex
	entries  map[string]*Entry
}

// fileFormat represents the JSON structure on disk
type fileFormat struct {
	Entries map[string]*Entry `json:"entries"`
}

// NewStore opens the journal at filePath, defaulting to the home directory.
func NewStore(filePath string) (*Store, error) {
	if filePath == "" {
		home, err := os.UserHomeDir()
		if err != nil {
			return nil, fmt.Errorf("failed to get home directory: %w", err)
		}
		filePath = filepath.Join(home, DefaultFileName)
	}

	store := &Store{
		filePath: filePath,
		entries:  make(map[string]*Entry),
	}

	if err := store.load(); err != nil {
		// A missing file is created on first save
		if !os.IsNotExist(err) {
			return nil, fmt.Errorf("failed to load history: %w", err)
		}
	}

	return store, nil
}

func (s *Store) load() error {
	s.mu.Lock()
	defer s.mu.Unlock()

	data, err := os.ReadFile(s.filePath)
	if err != nil {
		return err
	}

	var file fileFormat
	if err := json.Unmarshal(data, &file); err != nil {
		return fmt.Errorf("failed to unmarshal history: %w", err)
	}

	s.entries = file.Entries
	if s.entries == nil {
		s.entries = make(map[string]*Entry)
	}

	return nil
}

// saveLocked writes the journal; the caller holds the write lock.
func (s *Store) saveLocked() error {
	data, err := json.MarshalIndent(fileFormat{Entries: s.entries}, "", "  ")
	if err != nil {
		return fmt.Errorf("failed to marshal history: %w", err)
	}

	dir := filepath.Dir(s.filePath)
	if err := os.MkdirAll(dir, 0755); err != nil {
		return fmt.Errorf("failed to create directory: %w", err)
	}

	// Write to temporary file first, then rename for atomic write
	tempFile := s.filePath + ".tmp"
	if err := os.WriteFile(tempFile, data, 0600); err != nil {
		return fmt.Errorf("failed to write history: %w", err)
	}

	if err := os.Rename(tempFile, s.filePath); err != nil {
		return fmt.Errorf("failed to rename temp file: %w", err)
	}

	return nil
}

// Record adds a new entry.
func (s *Store) Record(entry *Entry) error {
	if entry.ID == "" {
		return fmt.Errorf("entry id is required")
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	if _, exists := s.entries[entry.ID]; exists {
		return fmt.Errorf("entry '%s' already exists", entry.ID)
	}

	now := time.Now()
	if entry.Created.IsZero() {
		entry.Created = now
	}
	entry.Updated = now

	stored := *entry
	s.entries[entry.ID] = &stored

	return s.saveLocked()
}

// SetStatus records the outcome of entry id.
func (s *Store) SetStatus(id string, status Status, reason string) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	entry, exists := s.entries[id]
	if !exists {
		return fmt.Errorf("entry '%s' not found", id)
	}

	entry.Status = status
	entry.Reason = reason
	entry.Updated = time.Now()

	return s.saveLocked()
}

// Get retrieves an entry by id.
func (s *Store) Get(id string) (*Entry, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	entry, exists := s.entries[id]
	if !exists {
		return nil, fmt.Errorf("entry '%s' not found", id)
	}

	out := *entry
	return &out, nil
}

// FindByHash returns the entry for a transaction hash.
func (s *Store) FindByHash(hash string) (*Entry, bool) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	for _, entry := range s.entries {
		if strings.EqualFold(entry.Hash, hash) {
			out := *entry
			return &out, true
		}
	}
	return nil, false
}

// List returns all entries, newest first.
func (s *Store) List() []*Entry {
	return s.filter(func(*Entry) bool { return true })
}

// ListByStatus returns entries with the given status, newest first.
func (s *Store) ListByStatus(status Status) []*Entry {
	return s.filter(func(e *Entry) bool { return e.Status == status })
}

func (s *Store) filter(keep func(*Entry) bool) []*Entry {
	s.mu.RLock()
	defer s.mu.RUnlock()

	entries := make([]*Entry, 0, len(s.entries))
	for _, entry := range s.entries {
		if keep(entry) {
			out := *entry
			entries = append(entries, &out)
		}
	}

	sort.Slice(entries, func(i, j int) bool {
		if entries[i].Created.Equal(entries[j].Created) {
			return entries[i].ID < entries[j].ID
		}
		return entries[i].Created.After(entries[j].Created)
	})

	return entries
}

// Count returns the total number of entries
func (s *Store) Count() int {
	s.mu.RLock()
	defer s.mu.RUnlock()

	return len(s.entries)
}

// Path returns the journal file path
func (s *Store) Path() string {
	return s.filePath
}
