package cleanup

import (
	"context"
	"log"
	"time"
)

// GameRetention is the store capability the worker prunes with
type GameRetention interface {
	DeleteFinishedBefore(ctx context.Context, cutoff time.Time) ([]string, error)
}

type Worker struct {
	Repo      GameRetention
	Retention time.Duration
	Interval  time.Duration
	now       func() time.Time
}

func NewWorker(repo GameRetention, retention, interval time.Duration) *Worker {
	return &Worker{
		Repo:      repo,
		Retention: retention,
		Interval:  interval,
		now:       time.Now,
	}
}

// Start runs one cleanup immediately, then every Interval until ctx is done
func (w *Worker) Start(ctx context.Context) {
	if w.Retention <= 0 || w.Interval <= 0 {
		log.Println("[CLEANUP] Retention disabled, background worker not started")
		return
	}

	log.Println("[CLEANUP] Background worker started")
	w.RunOnce(ctx)

	ticker := time.NewTicker(w.Interval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			log.Println("[CLEANUP] Background worker stopped")
			return
		case <-ticker.C:
			w.RunOnce(ctx)
		}
	}
}

// RunOnce deletes finished games older than the retention window
func (w *Worker) RunOnce(ctx context.Context) (int64, error) {
	log.Println("[CLEANUP] Starting scheduled cleanup task...")

	cutoff := w.now().Add(-w.Retention)
	deleted, err := w.Repo.DeleteFinishedBefore(ctx, cutoff)
	if err != nil {
		log.Printf("[CLEANUP] Error cleaning up finished games: %v", err)
		return 0, err
	}

	deletedCount := int64(len(deleted))
	if deletedCount > 0 {
		log.Printf("[CLEANUP] Removed %d finished games older than %s", deletedCount, cutoff.Format(time.RFC3339))
	}
	return deletedCount, nil
}
