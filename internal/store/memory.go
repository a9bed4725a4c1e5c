package store

import (
	"context"
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"sync"

	"github.com/rs/zerolog/log"
)

// MemoryStore implements Store with an in-memory map.
type MemoryStore struct {
	mu      sync.RWMutex
	entries map[string]json.RawMessage

	// Persistence
	snapshotPath string     // empty = no persistence
	saveMu       sync.Mutex // guards file writes
	closed       bool
}

// NewMemoryStore creates a store without persistence.
func NewMemoryStore() *MemoryStore {
	return &MemoryStore{entries: make(map[string]json.RawMessage)}
}

// NewFileStore creates a store persisted to dataDir/data.json.
// Existing data is loaded immediately.
func NewFileStore(dataDir string) (*MemoryStore, error) {
	if dataDir == "" {
		return nil, fmt.Errorf("data dir is required")
	}
	if err := os.MkdirAll(dataDir, 0755); err != nil {
		return nil, fmt.Errorf("create data dir: %w", err)
	}

	m := NewMemoryStore()
	m.snapshotPath = filepath.Join(dataDir, "data.json")
	if err := m.loadSnapshot(); err != nil {
		return nil, err
	}

	log.Info().
		Str("snapshot", m.snapshotPath).
		Int("keys", len(m.entries)).
		Msg("File store configured")
	return m, nil
}

func (m *MemoryStore) Get(_ context.Context, key string) ([]byte, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()

	v, ok := m.entries[key]
	if !ok {
		return nil, &ErrNotFound{Entity: "key", Key: key}
	}
	out := make([]byte, len(v))
	copy(out, v)
	return out, nil
}

func (m *MemoryStore) Put(_ context.Context, key string, value []byte) error {
	if !json.Valid(value) {
		return fmt.Errorf("put %s: %w", key, ErrInvalidValue)
	}
	v := make(json.RawMessage, len(value))
	copy(v, value)

	m.mu.Lock()
	defer m.mu.Unlock()

	prev, had := m.entries[key]
	m.entries[key] = v
	if err := m.saveSnapshotLocked(); err != nil {
		// Keep memory and disk in agreement.
		if had {
			m.entries[key] = prev
		} else {
			delete(m.entries, key)
		}
		return fmt.Errorf("put %s: %w", key, err)
	}
	return nil
}

func (m *MemoryStore) Delete(_ context.Context, key string) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	prev, had := m.entries[key]
	if !had {
		return nil
	}
	delete(m.entries, key)
	if err := m.saveSnapshotLocked(); err != nil {
		m.entries[key] = prev
		return fmt.Errorf("delete %s: %w", key, err)
	}
	return nil
}

func (m *MemoryStore) Ping(_ context.Context) error { return nil }

// Close marks the store closed. Writes are synchronous, so there is
// nothing left to flush. Safe to call multiple times.
func (m *MemoryStore) Close() error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.closed {
		return nil
	}
	m.closed = true
	log.Info().Msg("Memory store closed")
	return nil
}

// saveSnapshotLocked writes all entries to disk. Caller holds m.mu.
func (m *MemoryStore) saveSnapshotLocked() error {
	if m.snapshotPath == "" {
		return nil
	}

	data, err := json.Marshal(m.entries)
	if err != nil {
		return fmt.Errorf("marshal snapshot: %w", err)
	}

	m.saveMu.Lock()
	defer m.saveMu.Unlock()

	// Write to temp file then rename for atomicity
	tmp := m.snapshotPath + ".tmp"
	if err := os.WriteFile(tmp, data, 0644); err != nil {
		return fmt.Errorf("write snapshot: %w", err)
	}
	if err := os.Rename(tmp, m.snapshotPath); err != nil {
		return fmt.Errorf("rename snapshot: %w", err)
	}

	log.Debug().Str("path", m.snapshotPath).Msg("Snapshot saved")
	return nil
}

// loadSnapshot reads data from disk on startup.
func (m *MemoryStore) loadSnapshot() error {
	data, err := os.ReadFile(m.snapshotPath)
	if err != nil {
		if os.IsNotExist(err) {
			log.Info().Str("path", m.snapshotPath).Msg("No snapshot file found, starting fresh")
			return nil
		}
		return fmt.Errorf("read snapshot: %w", err)
	}

	entries := make(map[string]json.RawMessage)
	if err := json.Unmarshal(data, &entries); err != nil {
		log.Error().Err(err).Str("path", m.snapshotPath).Msg("Failed to parse snapshot, starting fresh")
		return nil
	}

	m.mu.Lock()
	m.entries = entries
	m.mu.Unlock()

	log.Info().
		Int("keys", len(entries)).
		Str("path", m.snapshotPath).
		Msg("Snapshot loaded")
	return nil
}
