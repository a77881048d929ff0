package services

import (
	"context"
	"fmt"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/ArowuTest/agriclaim-backend/internal/models"
	"github.com/ArowuTest/agriclaim-backend/internal/repositories/fallback"
	"github.com/ArowuTest/agriclaim-backend/internal/repositories/mocks"
	"github.com/ArowuTest/agriclaim-backend/internal/repositories/sqlite"
)

type countingPurger struct{ calls atomic.Int32 }

func (p *countingPurger) Purge(ctx context.Context) (int, error) {
	p.calls.Add(1)
	return 0, nil
}

func setupSync(t *testing.T) (*fallback.ClaimRepository, *mocks.ClaimRepository) {
	t.Helper()
	store, err := sqlite.NewStore(":memory:")
	require.NoError(t, err)
	t.Cleanup(func() { store.Close() })
	require.NoError(t, store.EnsureSchema(context.Background()))
	primary := mocks.NewClaimRepository()
	return fallback.NewClaimRepository(primary, store), primary
}

func TestSyncNowReplaysQueue(t *testing.T) {
	repo, primary := setupSync(t)
	ctx := context.Background()
	svc := NewSyncService(repo, 0)

	primary.SetOffline(true)
	require.NoError(t, repo.Create(ctx, feedClaim("CLM1", models.StatusSubmitted, 0)))

	pending, err := svc.Pending(ctx)
	require.NoError(t, err)
	assert.Len(t, pending, 1)

	_, err = svc.SyncNow(ctx)
	assert.ErrorIs(t, err, models.ErrTransport)

	primary.SetOffline(false)
	res, err := svc.SyncNow(ctx)
	require.NoError(t, err)
	assert.Equal(t, 1, res.Replayed)

	pending, err = svc.Pending(ctx)
	require.NoError(t, err)
	assert.Empty(t, pending)

	_, err = primary.FindByID(ctx, "CLM1")
	assert.NoError(t, err)
}

type stubReconciler struct {
	calls atomic.Int32
}

func (s *stubReconciler) Reconcile(ctx context.Context) (fallback.ReconcileResult, error) {
	s.calls.Add(1)
	return fallback.ReconcileResult{}, fmt.Errorf("offline: %w", models.ErrTransport)
}

func (s *stubReconciler) PendingMutations(ctx context.Context) ([]sqlite.PendingMutation, error) {
	return nil, nil
}

func TestStartRunsOnTicker(t *testing.T) {
	rec := &stubReconciler{}
	purger := &countingPurger{}
	var funcCalls atomic.Int32
	counted := PurgeFunc(func(ctx context.Context) (int, error) {
		funcCalls.Add(1)
		return 1, nil
	})
	svc := NewSyncService(rec, 10*time.Millisecond, purger, nil, counted)

	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan struct{})
	go func() {
		svc.Start(ctx)
		close(done)
	}()

	require.Eventually(t, func() bool {
		return rec.calls.Load() >= 2 && purger.calls.Load() >= 2 && funcCalls.Load() >= 2
	},
		time.Second, 5*time.Millisecond)
	cancel()
	select {
	case <-done:
	case <-time.After(time.Second):
		t.Fatal("sync loop did not stop")
	}
}
