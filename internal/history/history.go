// Package history keeps the bounded, newest-first list of diagnosis records.
//
// Every mutation is written through to the keyed store before it returns and
// every read loads the durable state. A mutex serializes the read-modify-write
// cycles so concurrent requests cannot interleave.
package history

import (
	"context"
	"encoding/json"
	"fmt"
	"slices"
	"strings"
	"sync"

	"github.com/agrilens/agrilens/control-plane/internal/store"
	"github.com/agrilens/agrilens/control-plane/pkg/models"
	"github.com/rs/zerolog/log"
)

const (
	// Key is where the history lives in the keyed store.
	Key = "diagnosis-history"

	// Capacity is the maximum number of records kept.
	Capacity = 50
)

// Store is the history store.
type Store struct {
	mu sync.Mutex
	kv store.Store
}

// New creates a history store over kv.
func New(kv store.Store) *Store {
	return &Store{kv: kv}
}

// List returns all records, newest first.
func (s *Store) List(ctx context.Context) ([]models.DiagnosisRecord, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.load(ctx)
}

// Get returns the record with the given id.
func (s *Store) Get(ctx context.Context, id string) (*models.DiagnosisRecord, error) {
	records, err := s.List(ctx)
	if err != nil {
		return nil, err
	}
	for i := range records {
		if records[i].ID == id {
			return &records[i], nil
		}
	}
	return nil, &store.ErrNotFound{Entity: "diagnosis", Key: id}
}

// Append inserts rec at the front and evicts the oldest records beyond
// Capacity.
func (s *Store) Append(ctx context.Context, rec models.DiagnosisRecord) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	records, err := s.load(ctx)
	if err != nil {
		return err
	}
	records = append([]models.DiagnosisRecord{rec}, records...)
	if len(records) > Capacity {
		records = records[:Capacity]
	}
	return s.save(ctx, records)
}

// Remove deletes the record with the given id. An unknown id is a no-op.
func (s *Store) Remove(ctx context.Context, id string) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	records, err := s.load(ctx)
	if err != nil {
		return err
	}
	kept := slices.DeleteFunc(records, func(r models.DiagnosisRecord) bool { return r.ID == id })
	return s.save(ctx, kept)
}

// Clear removes every record.
func (s *Store) Clear(ctx context.Context) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if err := s.kv.Delete(ctx, Key); err != nil {
		return fmt.Errorf("clear history: %w", err)
	}
	log.Info().Msg("Diagnosis history cleared")
	return nil
}

// Query returns a filtered, sorted projection of the history. The stored
// list is not modified.
func (s *Store) Query(ctx context.Context, q models.HistoryQuery) ([]models.DiagnosisRecord, error) {
	records, err := s.List(ctx)
	if err != nil {
		return nil, err
	}
	return Filter(records, q), nil
}

// Filter applies q to records and returns a new slice.
// Search matches detected class or subtype case-insensitively; status must
// match exactly unless "all"; results are ordered by timestamp or confidence,
// both descending.
func Filter(records []models.DiagnosisRecord, q models.HistoryQuery) []models.DiagnosisRecord {
	term := strings.ToLower(q.Search)
	out := make([]models.DiagnosisRecord, 0, len(records))
	for _, r := range records {
		if term != "" &&
			!strings.Contains(strings.ToLower(r.DetectedClass), term) &&
			!strings.Contains(strings.ToLower(r.Subtype), term) {
			continue
		}
		if !q.Status.Matches(r.HealthStatus) {
			continue
		}
		out = append(out, r)
	}

	switch q.Sort {
	case models.SortByConfidence:
		slices.SortStableFunc(out, func(a, b models.DiagnosisRecord) int {
			switch {
			case a.Confidence > b.Confidence:
				return -1
			case a.Confidence < b.Confidence:
				return 1
			}
			return 0
		})
	default:
		slices.SortStableFunc(out, func(a, b models.DiagnosisRecord) int {
			return b.Timestamp.Compare(a.Timestamp)
		})
	}
	return out
}

// ── Persistence ─────────────────────────────────────────────

func (s *Store) load(ctx context.Context) ([]models.DiagnosisRecord, error) {
	data, err := s.kv.Get(ctx, Key)
	if store.IsNotFound(err) {
		return []models.DiagnosisRecord{}, nil
	}
	if err != nil {
		return nil, fmt.Errorf("load history: %w", err)
	}

	var records []models.DiagnosisRecord
	if err := json.Unmarshal(data, &records); err != nil {
		log.Warn().Err(err).Msg("Stored history is unreadable, starting empty")
		return []models.DiagnosisRecord{}, nil
	}
	if records == nil {
		records = []models.DiagnosisRecord{}
	}
	return records, nil
}

func (s *Store) save(ctx context.Context, records []models.DiagnosisRecord) error {
	if records == nil {
		records = []models.DiagnosisRecord{}
	}
	data, err := json.Marshal(records)
	if err != nil {
		return fmt.Errorf("marshal history: %w", err)
	}
	if err := s.kv.Put(ctx, Key, data); err != nil {
		return fmt.Errorf("save history: %w", err)
	}
	return nil
}
