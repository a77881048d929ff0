package services

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"sync"
	"time"

	"github.com/ArowuTest/agriclaim-backend/internal/models"
	"github.com/ArowuTest/agriclaim-backend/internal/repositories/fallback"
	"github.com/ArowuTest/agriclaim-backend/internal/repositories/sqlite"
)

// Reconciler replays mutations queued while the primary store was down.
type Reconciler interface {
	Reconcile(ctx context.Context) (fallback.ReconcileResult, error)
	PendingMutations(ctx context.Context) ([]sqlite.PendingMutation, error)
}

// Purger drops expired entries from a local table or in-memory index.
type Purger interface {
	Purge(ctx context.Context) (int, error)
}

// PurgeFunc adapts a function to Purger.
type PurgeFunc func(ctx context.Context) (int, error)

func (f PurgeFunc) Purge(ctx context.Context) (int, error) { return f(ctx) }

// SyncService runs reconciliation on a ticker and on demand. Only one pass
// runs at a time.
type SyncService struct {
	reconciler Reconciler
	purgers    []Purger
	interval   time.Duration

	running sync.Mutex
}

// NewSyncService creates a new SyncService. Each purger runs after every
// background pass; nil purgers are skipped.
func NewSyncService(reconciler Reconciler, interval time.Duration, purgers ...Purger) *SyncService {
	s := &SyncService{reconciler: reconciler, interval: interval}
	for _, p := range purgers {
		if p != nil {
			s.purgers = append(s.purgers, p)
		}
	}
	return s
}

// SyncNow replays the queue. An unreachable primary is returned as
// models.ErrTransport alongside the partial result.
func (s *SyncService) SyncNow(ctx context.Context) (fallback.ReconcileResult, error) {
	s.running.Lock()
	defer s.running.Unlock()

	res, err := s.reconciler.Reconcile(ctx)
	if err != nil {
		return res, err
	}
	if res.Replayed > 0 || res.Failed > 0 {
		slog.Info("Queued claim changes reconciled", "replayed", res.Replayed, "failed", res.Failed)
	}
	return res, nil
}

// Pending lists queued and failed mutations.
func (s *SyncService) Pending(ctx context.Context) ([]sqlite.PendingMutation, error) {
	return s.reconciler.PendingMutations(ctx)
}

// Start runs SyncNow every interval until ctx is cancelled.
func (s *SyncService) Start(ctx context.Context) {
	if s.interval <= 0 {
		return
	}
	ticker := time.NewTicker(s.interval)
	defer ticker.Stop()
	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			s.tick(ctx)
		}
	}
}

func (s *SyncService) tick(ctx context.Context) {
	if _, err := s.SyncNow(ctx); err != nil {
		if errors.Is(err, models.ErrTransport) {
			slog.Debug("Primary store still unreachable, sync deferred", "error", err)
		} else if !errors.Is(err, context.Canceled) {
			slog.Error("Background sync failed", "error", err)
		}
	}
	for _, p := range s.purgers {
		if n, err := p.Purge(ctx); err != nil {
			slog.Warn("Failed to purge expired entries", "purger", fmt.Sprintf("%T", p), "error", err)
		} else if n > 0 {
			slog.Debug("Purged expired entries", "purger", fmt.Sprintf("%T", p), "count", n)
		}
	}
}
