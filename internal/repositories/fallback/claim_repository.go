// Package fallback wraps a primary claim backend with the local SQLite cache
// so the dashboards keep working while the backend is unreachable.
package fallback

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/ArowuTest/agriclaim-backend/internal/metrics"
	"github.com/ArowuTest/agriclaim-backend/internal/models"
	"github.com/ArowuTest/agriclaim-backend/internal/repositories"
	"github.com/ArowuTest/agriclaim-backend/internal/repositories/sqlite"
)

const (
	kindCreate     = "create"
	kindTransition = "transition"
)

var _ repositories.ClaimRepository = (*ClaimRepository)(nil)

// ClaimRepository decorates a primary repositories.ClaimRepository.
// Transport failures on writes are applied to the cached copy and queued;
// Reconcile replays the queue once the primary is back.
type ClaimRepository struct {
	primary repositories.ClaimRepository
	cache   *sqlite.ClaimCache
	queue   *sqlite.Store
}

// NewClaimRepository creates a fallback decorator around primary.
func NewClaimRepository(primary repositories.ClaimRepository, store *sqlite.Store) *ClaimRepository {
	return &ClaimRepository{
		primary: primary,
		cache:   sqlite.NewClaimCache(store),
		queue:   store,
	}
}

// Cache exposes the local snapshot for degraded feeds.
func (r *ClaimRepository) Cache() *sqlite.ClaimCache {
	return r.cache
}

func (r *ClaimRepository) Create(ctx context.Context, claim *models.Claim) error {
	err := r.primary.Create(ctx, claim)
	if err == nil {
		r.remember(ctx, claim)
		return nil
	}
	if !errors.Is(err, models.ErrTransport) {
		return err
	}

	slog.Warn("Primary store unreachable, queueing claim locally", "claimId", claim.ID, "error", err)
	claim.PendingSync = true
	claim.StampCreated(time.Now().UTC())
	if err := r.cache.Put(ctx, claim); err != nil {
		return fmt.Errorf("caching claim %s: %w", claim.ID, err)
	}
	if _, err := r.queue.Enqueue(ctx, claim.ID, kindCreate, claim); err != nil {
		return fmt.Errorf("queueing claim %s: %w", claim.ID, err)
	}
	metrics.FallbackWrites.WithLabelValues(kindCreate).Inc()
	return nil
}

func (r *ClaimRepository) FindByID(ctx context.Context, id string) (*models.Claim, error) {
	claim, err := r.primary.FindByID(ctx, id)
	if err == nil {
		r.remember(ctx, claim)
		return claim, nil
	}
	if !errors.Is(err, models.ErrTransport) {
		return nil, err
	}

	cached, cerr := r.cache.Get(ctx, id)
	if cerr != nil {
		if errors.Is(cerr, models.ErrNotFound) {
			return nil, err
		}
		return nil, cerr
	}
	return cached, nil
}

func (r *ClaimRepository) FindByStatuses(ctx context.Context, statuses []models.ClaimStatus) ([]*models.Claim, error) {
	want := map[models.ClaimStatus]bool{}
	for _, s := range statuses {
		want[s] = true
	}
	keep := func(c *models.Claim) bool { return want[c.Status] }

	live, err := r.primary.FindByStatuses(ctx, statuses)
	return r.mergeOrCached(ctx, live, err, keep)
}

func (r *ClaimRepository) FindByFarmer(ctx context.Context, farmer models.FarmerRef) ([]*models.Claim, error) {
	live, err := r.primary.FindByFarmer(ctx, farmer)
	return r.mergeOrCached(ctx, live, err, farmer.Owns)
}

// mergeOrCached writes live results through to the cache and adds locally
// pending claims the primary has not seen. Live data wins on equal ids.
// Without live results the cached snapshot is served.
func (r *ClaimRepository) mergeOrCached(ctx context.Context, live []*models.Claim, err error, keep func(*models.Claim) bool) ([]*models.Claim, error) {
	if err != nil {
		if !errors.Is(err, models.ErrTransport) {
			return nil, err
		}
		slog.Warn("Primary store unreachable, serving cached claims", "error", err)
		return r.cache.List(ctx, keep)
	}

	seen := make(map[string]bool, len(live))
	for _, c := range live {
		seen[c.ID] = true
		r.remember(ctx, c)
	}
	pending, cerr := r.cache.List(ctx, func(c *models.Claim) bool { return c.PendingSync && keep(c) })
	if cerr != nil {
		slog.Warn("Failed to read locally pending claims", "error", cerr)
		return live, nil
	}
	merged := live
	for _, c := range pending {
		if !seen[c.ID] {
			merged = append(merged, c)
		}
	}
	models.SortNewestFirst(merged)
	return merged, nil
}

func (r *ClaimRepository) ApplyTransition(ctx context.Context, t *models.Transition) (*models.Claim, error) {
	claim, err := r.primary.ApplyTransition(ctx, t)
	if err == nil {
		r.remember(ctx, claim)
		return claim, nil
	}
	if !errors.Is(err, models.ErrTransport) {
		return nil, err
	}

	cached, cerr := r.cache.Get(ctx, t.ClaimID)
	if cerr != nil {
		// never seen locally: nothing to apply the change to
		slog.Warn("Primary store unreachable and claim not cached", "claimId", t.ClaimID, "error", cerr)
		return nil, err
	}
	if aerr := t.Apply(cached); aerr != nil {
		return nil, aerr
	}
	cached.PendingSync = true
	if err := r.cache.Put(ctx, cached); err != nil {
		return nil, fmt.Errorf("caching claim %s: %w", cached.ID, err)
	}
	if _, err := r.queue.Enqueue(ctx, t.ClaimID, kindTransition, t); err != nil {
		return nil, fmt.Errorf("queueing transition for %s: %w", t.ClaimID, err)
	}
	metrics.FallbackWrites.WithLabelValues(kindTransition).Inc()
	slog.Warn("Primary store unreachable, transition queued locally",
		"claimId", t.ClaimID, "from", t.From, "to", t.To)
	return cached, nil
}

// Watch passes the primary's change stream through, keeping the cache in step.
func (r *ClaimRepository) Watch(ctx context.Context) (<-chan models.ClaimChange, error) {
	in, err := r.primary.Watch(ctx)
	if err != nil {
		return nil, err
	}
	out := make(chan models.ClaimChange)
	go func() {
		defer close(out)
		for change := range in {
			switch change.Kind {
			case models.ChangeRemoved:
				if err := r.cache.Delete(ctx, change.ID); err != nil {
					slog.Warn("Failed to evict cached claim", "claimId", change.ID, "error", err)
				}
			default:
				r.remember(ctx, change.Claim)
			}
			select {
			case out <- change:
			case <-ctx.Done():
				return
			}
		}
	}()
	return out, nil
}

// remember writes a live copy through to the cache unless a local copy
// still has queued mutations ahead of it.
func (r *ClaimRepository) remember(ctx context.Context, claim *models.Claim) {
	if claim == nil {
		return
	}
	pending, err := r.queue.HasPending(ctx, claim.ID)
	if err != nil {
		slog.Warn("Failed to check pending mutations", "claimId", claim.ID, "error", err)
		return
	}
	if pending {
		return
	}
	if err := r.cache.Put(ctx, claim); err != nil {
		slog.Warn("Failed to cache claim", "claimId", claim.ID, "error", err)
	}
}

// ReconcileResult summarizes one replay pass.
type ReconcileResult struct {
	Replayed  int `json:"replayed"`
	Failed    int `json:"failed"`
	Remaining int `json:"remaining"`
}

// Reconcile replays queued mutations in order. Conflicting replays are marked
// failed and logged; a transport failure stops the pass and leaves the rest
// queued for the next attempt.
func (r *ClaimRepository) Reconcile(ctx context.Context) (ReconcileResult, error) {
	var res ReconcileResult
	pending, err := r.queue.Pending(ctx)
	if err != nil {
		return res, err
	}

	touched := map[string]bool{}
	for i, m := range pending {
		err := r.replay(ctx, m)
		switch {
		case err == nil:
			res.Replayed++
			metrics.ReconcileOutcomes.WithLabelValues("replayed").Inc()
			if cerr := r.queue.Complete(ctx, m.Seq); cerr != nil {
				return res, cerr
			}
		case errors.Is(err, models.ErrTransport):
			if ferr := r.queue.Fail(ctx, m.Seq, err, false); ferr != nil {
				return res, ferr
			}
			res.Remaining = len(pending) - i
			metrics.ReconcileOutcomes.WithLabelValues("deferred").Inc()
			r.refresh(ctx, touched)
			return res, err
		default:
			res.Failed++
			metrics.ReconcileOutcomes.WithLabelValues("failed").Inc()
			slog.Error("Queued mutation could not be replayed",
				"error", err, "claimId", m.ClaimID, "kind", m.Kind, "mutationId", m.ID)
			if ferr := r.queue.Fail(ctx, m.Seq, err, true); ferr != nil {
				return res, ferr
			}
		}
		touched[m.ClaimID] = true
	}
	r.refresh(ctx, touched)
	return res, nil
}

func (r *ClaimRepository) replay(ctx context.Context, m sqlite.PendingMutation) error {
	switch m.Kind {
	case kindCreate:
		var claim models.Claim
		if err := json.Unmarshal(m.Payload, &claim); err != nil {
			return fmt.Errorf("decoding queued claim: %w", err)
		}
		claim.PendingSync = false
		err := r.primary.Create(ctx, &claim)
		if errors.Is(err, models.ErrDuplicate) {
			return nil
		}
		return err

	case kindTransition:
		var t models.Transition
		if err := json.Unmarshal(m.Payload, &t); err != nil {
			return fmt.Errorf("decoding queued transition: %w", err)
		}
		_, err := r.primary.ApplyTransition(ctx, &t)
		if errors.Is(err, models.ErrConflict) && t.Entry.RequestID != "" {
			// an earlier pass may have landed before its completion was recorded
			live, ferr := r.primary.FindByID(ctx, t.ClaimID)
			if ferr == nil && live.HasRequest(t.Entry.RequestID) {
				return nil
			}
		}
		return err
	}
	return fmt.Errorf("unknown mutation kind %q", m.Kind)
}

// refresh replaces cached copies of replayed claims with the primary's version
// once nothing is left queued for them.
func (r *ClaimRepository) refresh(ctx context.Context, ids map[string]bool) {
	for id := range ids {
		live, err := r.primary.FindByID(ctx, id)
		if err != nil {
			if errors.Is(err, models.ErrNotFound) {
				_ = r.cache.Delete(ctx, id)
			}
			continue
		}
		r.remember(ctx, live)
	}
}

// PendingMutations lists queued and failed mutations for operators.
func (r *ClaimRepository) PendingMutations(ctx context.Context) ([]sqlite.PendingMutation, error) {
	pending, err := r.queue.Mutations(ctx, sqlite.MutationPending)
	if err != nil {
		return nil, err
	}
	failed, err := r.queue.Mutations(ctx, sqlite.MutationFailed)
	if err != nil {
		return nil, err
	}
	return append(pending, failed...), nil
}
