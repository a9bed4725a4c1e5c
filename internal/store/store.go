// Package store provides the keyed storage interface and implementations
// backing the AgriLens control plane. Values are JSON documents addressed by
// a string key; the history store and any other persisted state sit on top.
package store

import (
	"context"
	"errors"
	"fmt"
)

// Store is the process-wide keyed store. It is constructed once at startup
// and injected into the components that persist state.
type Store interface {
	// Get returns the JSON document stored under key, or *ErrNotFound.
	Get(ctx context.Context, key string) ([]byte, error)

	// Put replaces the document stored under key. The write is durable
	// when Put returns.
	Put(ctx context.Context, key string, value []byte) error

	// Delete removes key. Deleting a missing key is not an error.
	Delete(ctx context.Context, key string) error

	// Ping checks if the backing storage is reachable.
	Ping(ctx context.Context) error

	// Close releases all resources held by the store.
	Close() error
}

// Drivers accepted by Open.
const (
	DriverMemory = "memory"
	DriverFile   = "file"
	DriverSQLite = "sqlite"
)

// ── Errors ──────────────────────────────────────────────────

// ErrNotFound is returned when a requested entity does not exist.
type ErrNotFound struct {
	Entity string
	Key    string
}

func (e *ErrNotFound) Error() string {
	return e.Entity + " not found: " + e.Key
}

// IsNotFound reports whether err is (or wraps) an *ErrNotFound.
func IsNotFound(err error) bool {
	var nf *ErrNotFound
	return errors.As(err, &nf)
}

// ErrInvalidValue is returned by Put when the value is not a JSON document.
var ErrInvalidValue = errors.New("value is not valid JSON")

// Config selects and locates the backing storage.
type Config struct {
	Driver     string // memory | file | sqlite
	DataDir    string // file driver
	SQLitePath string // sqlite driver
}

// Open builds the Store selected by cfg.Driver. An empty driver means file.
func Open(cfg Config) (Store, error) {
	switch cfg.Driver {
	case DriverMemory:
		return NewMemoryStore(), nil
	case DriverFile, "":
		s, err := NewFileStore(cfg.DataDir)
		if err != nil {
			return nil, err
		}
		return s, nil
	case DriverSQLite:
		s, err := NewSQLStore(cfg.SQLitePath)
		if err != nil {
			return nil, err
		}
		return s, nil
	default:
		return nil, fmt.Errorf("unsupported store driver: %s", cfg.Driver)
	}
}
