// Package retention runs the background cleanup for the AgriLens control
// plane. Each cycle:
//
//   - expires chat sessions idle for longer than the configured TTL, and
//   - removes uploaded images no longer referenced by any history record
//     (records evicted past the history capacity, deleted or cleared).
//
// The janitor respects context cancellation for graceful shutdown. Upload
// pruning is fail-safe: if the history cannot be read, nothing is removed.
package retention

import (
	"context"
	"time"

	"github.com/agrilens/agrilens/control-plane/pkg/models"
	"github.com/rs/zerolog/log"
)

// UploadGrace protects files written by a diagnosis that has not been
// appended to history yet.
const UploadGrace = 5 * time.Minute

// SessionExpirer drops idle chat sessions.
type SessionExpirer interface {
	ExpireIdle(ctx context.Context, cutoff time.Time) int
}

// RecordLister reads the current history.
type RecordLister interface {
	List(ctx context.Context) ([]models.DiagnosisRecord, error)
}

// ImageHolder is implemented by session registries whose messages reference
// stored uploads. Those files are kept as well.
type ImageHolder interface {
	ImageRefs(ctx context.Context) []string
}

// UploadPruner removes stored images not in keep and older than cutoff.
type UploadPruner interface {
	Prune(keep map[string]struct{}, olderThan time.Time) (int, error)
}

// CycleStats tracks what happened in a single retention cycle.
type CycleStats struct {
	SessionsExpired int
	UploadsPurged   int
	Errors          []error
}

// Janitor periodically expires sessions and prunes orphaned uploads.
type Janitor struct {
	sessions SessionExpirer // optional
	history  RecordLister   // required with uploads
	uploads  UploadPruner   // optional
	idleTTL  time.Duration
	interval time.Duration
	now      func() time.Time
}

// NewJanitor creates a janitor. Nil collaborators skip their part of the
// cycle.
func NewJanitor(sessions SessionExpirer, history RecordLister, uploads UploadPruner, idleTTL, interval time.Duration) *Janitor {
	if interval <= 0 {
		interval = 10 * time.Minute
	}
	if idleTTL <= 0 {
		idleTTL = 24 * time.Hour
	}
	return &Janitor{
		sessions: sessions,
		history:  history,
		uploads:  uploads,
		idleTTL:  idleTTL,
		interval: interval,
		now:      time.Now,
	}
}

// Start runs the janitor. It blocks until ctx is canceled.
func (j *Janitor) Start(ctx context.Context) {
	log.Info().
		Dur("interval", j.interval).
		Dur("session_idle_ttl", j.idleTTL).
		Msg("Retention janitor started")

	ticker := time.NewTicker(j.interval)
	defer ticker.Stop()

	// Run once immediately on startup
	j.RunCycle(ctx)

	for {
		select {
		case <-ctx.Done():
			log.Info().Msg("Retention janitor stopped")
			return
		case <-ticker.C:
			j.RunCycle(ctx)
		}
	}
}

// RunCycle performs one sweep.
func (j *Janitor) RunCycle(ctx context.Context) CycleStats {
	start := j.now()
	var stats CycleStats

	if j.sessions != nil {
		stats.SessionsExpired = j.sessions.ExpireIdle(ctx, start.Add(-j.idleTTL))
	}

	if j.uploads != nil && j.history != nil {
		j.pruneUploads(ctx, start, &stats)
	}

	for _, e := range stats.Errors {
		log.Warn().Err(e).Msg("Retention cycle error")
	}
	if stats.SessionsExpired > 0 || stats.UploadsPurged > 0 {
		log.Info().
			Int("expired_sessions", stats.SessionsExpired).
			Int("purged_uploads", stats.UploadsPurged).
			Dur("elapsed", time.Since(start)).
			Msg("Retention cycle complete")
	}
	return stats
}

func (j *Janitor) pruneUploads(ctx context.Context, now time.Time, stats *CycleStats) {
	records, err := j.history.List(ctx)
	if err != nil {
		stats.Errors = append(stats.Errors, err)
		return
	}

	keep := make(map[string]struct{}, len(records))
	for _, r := range records {
		if r.ImageURL != "" {
			keep[r.ImageURL] = struct{}{}
		}
	}
	if holder, ok := j.sessions.(ImageHolder); ok {
		for _, ref := range holder.ImageRefs(ctx) {
			keep[ref] = struct{}{}
		}
	}

	n, err := j.uploads.Prune(keep, now.Add(-UploadGrace))
	stats.UploadsPurged = n
	if err != nil {
		stats.Errors = append(stats.Errors, err)
	}
}
