package history_test

import (
	"context"
	"fmt"
	"testing"
	"time"

	"github.com/agrilens/agrilens/control-plane/internal/history"
	"github.com/agrilens/agrilens/control-plane/internal/store"
	"github.com/agrilens/agrilens/control-plane/pkg/models"
)

var base = time.Date(2026, 5, 1, 8, 0, 0, 0, time.UTC)

func record(id, label string, status models.HealthStatus, conf float64, age time.Duration) models.DiagnosisRecord {
	return models.DiagnosisRecord{
		ID:            id,
		DetectedClass: label,
		Confidence:    conf,
		Category:      models.CategoryCrop,
		Subtype:       string(status),
		HealthStatus:  status,
		Timestamp:     base.Add(-age),
	}
}

func ids(records []models.DiagnosisRecord) []string {
	out := make([]string, len(records))
	for i, r := range records {
		out[i] = r.ID
	}
	return out
}

func TestAppend_NewestFirstAndCapacity(t *testing.T) {
	ctx := context.Background()
	h := history.New(store.NewMemoryStore())

	for i := 0; i < history.Capacity+1; i++ {
		rec := record(fmt.Sprintf("r%02d", i), "Tomato___Late_blight", models.HealthDisease, 0.5, 0)
		if err := h.Append(ctx, rec); err != nil {
			t.Fatalf("Append(%d) error = %v", i, err)
		}
	}

	all, err := h.List(ctx)
	if err != nil {
		t.Fatalf("List() error = %v", err)
	}
	if len(all) != history.Capacity {
		t.Fatalf("len = %d, want %d", len(all), history.Capacity)
	}
	if all[0].ID != "r50" {
		t.Errorf("newest = %s, want r50", all[0].ID)
	}
	if all[len(all)-1].ID != "r01" {
		t.Errorf("oldest = %s, want r01 (r00 evicted)", all[len(all)-1].ID)
	}
	if _, err := h.Get(ctx, "r00"); !store.IsNotFound(err) {
		t.Errorf("Get(r00) error = %v, want not found", err)
	}
}

func TestRemove(t *testing.T) {
	ctx := context.Background()
	h := history.New(store.NewMemoryStore())
	h.Append(ctx, record("a", "Apple___healthy", models.HealthHealthy, 0.9, 0))
	h.Append(ctx, record("b", "Apple___Black_rot", models.HealthDisease, 0.8, 0))

	if err := h.Remove(ctx, "missing"); err != nil {
		t.Fatalf("Remove(missing) error = %v", err)
	}
	all, _ := h.List(ctx)
	if got := ids(all); len(got) != 2 || got[0] != "b" || got[1] != "a" {
		t.Errorf("after no-op remove = %v, want [b a]", got)
	}

	if err := h.Remove(ctx, "b"); err != nil {
		t.Fatalf("Remove(b) error = %v", err)
	}
	all, _ = h.List(ctx)
	if got := ids(all); len(got) != 1 || got[0] != "a" {
		t.Errorf("after remove = %v, want [a]", got)
	}
}

func TestClear(t *testing.T) {
	ctx := context.Background()
	kv := store.NewMemoryStore()
	h := history.New(kv)

	if err := h.Clear(ctx); err != nil {
		t.Fatalf("Clear() on empty error = %v", err)
	}
	h.Append(ctx, record("a", "Apple___healthy", models.HealthHealthy, 0.9, 0))
	if err := h.Clear(ctx); err != nil {
		t.Fatalf("Clear() error = %v", err)
	}
	all, _ := h.List(ctx)
	if len(all) != 0 {
		t.Errorf("len after Clear() = %d, want 0", len(all))
	}
	if _, err := kv.Get(ctx, history.Key); !store.IsNotFound(err) {
		t.Errorf("stored key after Clear() err = %v, want not found", err)
	}
}

func TestQuery(t *testing.T) {
	ctx := context.Background()
	h := history.New(store.NewMemoryStore())
	// Appended oldest first so the stored order is newest first.
	h.Append(ctx, record("old-blight", "Potato___Late_blight", models.HealthDisease, 0.95, 3*time.Hour))
	h.Append(ctx, record("healthy", "Tomato___healthy", models.HealthHealthy, 0.99, 2*time.Hour))
	h.Append(ctx, record("pest", "Aphids", models.HealthPest, 0.60, 90*time.Minute))
	h.Append(ctx, record("new-blight", "Tomato___Early_BLIGHT", models.HealthDisease, 0.70, time.Hour))

	tests := []struct {
		name string
		q    models.HistoryQuery
		want []string
	}{
		{"default", models.HistoryQuery{}, []string{"new-blight", "pest", "healthy", "old-blight"}},
		{"search blight", models.HistoryQuery{Search: "blight"}, []string{"new-blight", "old-blight"}},
		{"search subtype", models.HistoryQuery{Search: "HEALTHY"}, []string{"healthy"}},
		{"disease only", models.HistoryQuery{Status: models.StatusDisease}, []string{"new-blight", "old-blight"}},
		{"pest only", models.HistoryQuery{Status: models.StatusPest}, []string{"pest"}},
		{"by confidence", models.HistoryQuery{Sort: models.SortByConfidence}, []string{"healthy", "old-blight", "new-blight", "pest"}},
		{"blight by confidence", models.HistoryQuery{Search: "blight", Status: models.StatusAll, Sort: models.SortByConfidence}, []string{"old-blight", "new-blight"}},
		{"no match", models.HistoryQuery{Search: "scab"}, []string{}},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, err := h.Query(ctx, tt.q)
			if err != nil {
				t.Fatalf("Query() error = %v", err)
			}
			g := ids(got)
			if len(g) != len(tt.want) {
				t.Fatalf("Query() = %v, want %v", g, tt.want)
			}
			for i := range g {
				if g[i] != tt.want[i] {
					t.Fatalf("Query() = %v, want %v", g, tt.want)
				}
			}
		})
	}

	// Queries never reorder the stored list.
	all, _ := h.List(ctx)
	if all[0].ID != "new-blight" || all[3].ID != "old-blight" {
		t.Errorf("stored order changed: %v", ids(all))
	}
}

func TestPersistsAcrossReopen(t *testing.T) {
	ctx := context.Background()
	dir := t.TempDir()

	kv, err := store.NewFileStore(dir)
	if err != nil {
		t.Fatalf("NewFileStore() error = %v", err)
	}
	history.New(kv).Append(ctx, record("kept", "Grape___healthy", models.HealthHealthy, 0.8, 0))
	kv.Close()

	kv2, err := store.NewFileStore(dir)
	if err != nil {
		t.Fatalf("NewFileStore() reopen error = %v", err)
	}
	defer kv2.Close()

	rec, err := history.New(kv2).Get(ctx, "kept")
	if err != nil {
		t.Fatalf("Get() after reopen error = %v", err)
	}
	if rec.DetectedClass != "Grape___healthy" || !rec.Timestamp.Equal(base) {
		t.Errorf("record after reopen = %+v", rec)
	}
}

func TestCorruptHistoryReadsEmpty(t *testing.T) {
	ctx := context.Background()
	kv := store.NewMemoryStore()
	kv.Put(ctx, history.Key, []byte(`{"not":"a list"}`))

	all, err := history.New(kv).List(ctx)
	if err != nil {
		t.Fatalf("List() error = %v", err)
	}
	if len(all) != 0 {
		t.Errorf("len = %d, want 0", len(all))
	}
}
