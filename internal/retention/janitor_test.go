package retention_test

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/agrilens/agrilens/control-plane/internal/retention"
	"github.com/agrilens/agrilens/control-plane/pkg/models"
)

type fakeSessions struct{ cutoff time.Time }

func (f *fakeSessions) ExpireIdle(_ context.Context, cutoff time.Time) int {
	f.cutoff = cutoff
	return 2
}

type fakeHistory struct {
	records []models.DiagnosisRecord
	err     error
}

func (f *fakeHistory) List(context.Context) ([]models.DiagnosisRecord, error) {
	return f.records, f.err
}

type fakeUploads struct {
	called bool
	keep   map[string]struct{}
}

func (f *fakeUploads) Prune(keep map[string]struct{}, _ time.Time) (int, error) {
	f.called = true
	f.keep = keep
	return 3, nil
}

func TestRunCycle(t *testing.T) {
	sess := &fakeSessions{}
	hist := &fakeHistory{records: []models.DiagnosisRecord{
		{ID: "a", ImageURL: "/uploads/a.jpg"},
		{ID: "b"},
	}}
	up := &fakeUploads{}
	j := retention.NewJanitor(sess, hist, up, time.Hour, time.Minute)

	before := time.Now()
	stats := j.RunCycle(context.Background())

	if stats.SessionsExpired != 2 || stats.UploadsPurged != 3 {
		t.Errorf("stats = %+v", stats)
	}
	if len(stats.Errors) != 0 {
		t.Errorf("errors = %v", stats.Errors)
	}
	if sess.cutoff.After(before.Add(-time.Hour + time.Second)) {
		t.Errorf("cutoff = %v, want about an hour ago", sess.cutoff)
	}
	if _, ok := up.keep["/uploads/a.jpg"]; !ok || len(up.keep) != 1 {
		t.Errorf("keep = %v, want only /uploads/a.jpg", up.keep)
	}
}

func TestRunCycle_HistoryFailureSkipsPrune(t *testing.T) {
	up := &fakeUploads{}
	j := retention.NewJanitor(nil, &fakeHistory{err: errors.New("locked")}, up, 0, 0)

	stats := j.RunCycle(context.Background())
	if up.called {
		t.Error("uploads must not be pruned when history is unreadable")
	}
	if len(stats.Errors) != 1 {
		t.Errorf("errors = %v, want 1", stats.Errors)
	}
}

func TestStart_StopsOnCancel(t *testing.T) {
	j := retention.NewJanitor(&fakeSessions{}, nil, nil, time.Hour, time.Hour)
	ctx, cancel := context.WithCancel(context.Background())

	done := make(chan struct{})
	go func() {
		j.Start(ctx)
		close(done)
	}()
	cancel()

	select {
	case <-done:
	case <-time.After(2 * time.Second):
		t.Fatal("Start() did not return after cancel")
	}
}

type imageSessions struct{ fakeSessions }

func (imageSessions) ImageRefs(context.Context) []string { return []string{"/uploads/chat.png"} }

func TestRunCycle_KeepsSessionImages(t *testing.T) {
	up := &fakeUploads{}
	j := retention.NewJanitor(&imageSessions{}, &fakeHistory{}, up, time.Hour, time.Minute)
	j.RunCycle(context.Background())

	if _, ok := up.keep["/uploads/chat.png"]; !ok {
		t.Errorf("keep = %v, want chat image kept", up.keep)
	}
}
