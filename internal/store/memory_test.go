package store_test

import (
	"context"
	"errors"
	"os"
	"path/filepath"
	"testing"

	"github.com/agrilens/agrilens/control-plane/internal/store"
)

// ─── Shared behaviour ────────────────────────────────────────

func backends(t *testing.T) map[string]store.Store {
	t.Helper()
	file, err := store.NewFileStore(t.TempDir())
	if err != nil {
		t.Fatalf("NewFileStore() error = %v", err)
	}
	sql, err := store.NewSQLStore(filepath.Join(t.TempDir(), "kv.db"))
	if err != nil {
		t.Fatalf("NewSQLStore() error = %v", err)
	}
	all := map[string]store.Store{
		"memory": store.NewMemoryStore(),
		"file":   file,
		"sqlite": sql,
	}
	t.Cleanup(func() {
		for _, s := range all {
			s.Close()
		}
	})
	return all
}

func TestPutAndGet(t *testing.T) {
	ctx := context.Background()
	for name, s := range backends(t) {
		t.Run(name, func(t *testing.T) {
			if err := s.Put(ctx, "k", []byte(`{"a":1}`)); err != nil {
				t.Fatalf("Put() error = %v", err)
			}
			got, err := s.Get(ctx, "k")
			if err != nil {
				t.Fatalf("Get() error = %v", err)
			}
			if string(got) != `{"a":1}` {
				t.Errorf("Get() = %s, want %s", got, `{"a":1}`)
			}

			// Overwrite
			if err := s.Put(ctx, "k", []byte(`[1,2]`)); err != nil {
				t.Fatalf("Put() overwrite error = %v", err)
			}
			got, _ = s.Get(ctx, "k")
			if string(got) != `[1,2]` {
				t.Errorf("Get() after overwrite = %s, want [1,2]", got)
			}
		})
	}
}

func TestGet_NotFound(t *testing.T) {
	ctx := context.Background()
	for name, s := range backends(t) {
		t.Run(name, func(t *testing.T) {
			_, err := s.Get(ctx, "missing")
			if !store.IsNotFound(err) {
				t.Errorf("Get(missing) error = %v, want ErrNotFound", err)
			}
		})
	}
}

func TestDelete(t *testing.T) {
	ctx := context.Background()
	for name, s := range backends(t) {
		t.Run(name, func(t *testing.T) {
			s.Put(ctx, "k", []byte(`"v"`))
			if err := s.Delete(ctx, "k"); err != nil {
				t.Fatalf("Delete() error = %v", err)
			}
			if _, err := s.Get(ctx, "k"); !store.IsNotFound(err) {
				t.Errorf("Get() after delete error = %v, want ErrNotFound", err)
			}
			// Deleting again is fine
			if err := s.Delete(ctx, "k"); err != nil {
				t.Errorf("Delete() of missing key error = %v", err)
			}
		})
	}
}

func TestPut_RejectsInvalidJSON(t *testing.T) {
	ctx := context.Background()
	for name, s := range backends(t) {
		t.Run(name, func(t *testing.T) {
			err := s.Put(ctx, "k", []byte("not json"))
			if !errors.Is(err, store.ErrInvalidValue) {
				t.Errorf("Put(invalid) error = %v, want ErrInvalidValue", err)
			}
		})
	}
}

// ─── File persistence ────────────────────────────────────────

func TestFileStore_SurvivesReopen(t *testing.T) {
	ctx := context.Background()
	dir := t.TempDir()

	s1, err := store.NewFileStore(dir)
	if err != nil {
		t.Fatalf("NewFileStore() error = %v", err)
	}
	if err := s1.Put(ctx, "diagnosis-history", []byte(`[{"id":"1"}]`)); err != nil {
		t.Fatalf("Put() error = %v", err)
	}
	s1.Close()

	s2, err := store.NewFileStore(dir)
	if err != nil {
		t.Fatalf("NewFileStore() reopen error = %v", err)
	}
	defer s2.Close()

	got, err := s2.Get(ctx, "diagnosis-history")
	if err != nil {
		t.Fatalf("Get() after reopen error = %v", err)
	}
	if string(got) != `[{"id":"1"}]` {
		t.Errorf("Get() after reopen = %s", got)
	}
}

func TestFileStore_CorruptSnapshotStartsFresh(t *testing.T) {
	dir := t.TempDir()
	if err := os.WriteFile(filepath.Join(dir, "data.json"), []byte("{broken"), 0644); err != nil {
		t.Fatal(err)
	}

	s, err := store.NewFileStore(dir)
	if err != nil {
		t.Fatalf("NewFileStore() error = %v", err)
	}
	defer s.Close()

	if _, err := s.Get(context.Background(), "anything"); !store.IsNotFound(err) {
		t.Errorf("Get() on fresh store error = %v, want ErrNotFound", err)
	}
}

func TestSQLStore_SurvivesReopen(t *testing.T) {
	ctx := context.Background()
	path := filepath.Join(t.TempDir(), "kv.db")

	s1, err := store.NewSQLStore(path)
	if err != nil {
		t.Fatalf("NewSQLStore() error = %v", err)
	}
	s1.Put(ctx, "k", []byte(`{"n":2}`))
	s1.Close()

	s2, err := store.NewSQLStore(path)
	if err != nil {
		t.Fatalf("NewSQLStore() reopen error = %v", err)
	}
	defer s2.Close()

	got, err := s2.Get(ctx, "k")
	if err != nil {
		t.Fatalf("Get() after reopen error = %v", err)
	}
	if string(got) != `{"n":2}` {
		t.Errorf("Get() after reopen = %s", got)
	}
}

func TestOpen_UnknownDriver(t *testing.T) {
	if _, err := store.Open(store.Config{Driver: "redis"}); err == nil {
		t.Error("Open(redis) should fail")
	}
}
