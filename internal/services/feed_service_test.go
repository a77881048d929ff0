package services

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/ArowuTest/agriclaim-backend/internal/models"
	"github.com/ArowuTest/agriclaim-backend/internal/repositories/fallback"
	"github.com/ArowuTest/agriclaim-backend/internal/repositories/mocks"
	"github.com/ArowuTest/agriclaim-backend/internal/repositories/sqlite"
)

var feedBase = time.Date(2025, 3, 10, 8, 0, 0, 0, time.UTC)

func feedClaim(id string, status models.ClaimStatus, minutes int) *models.Claim {
	at := feedBase.Add(time.Duration(minutes) * time.Minute)
	return &models.Claim{
		ID:            id,
		FarmerID:      "farmer-1",
		FarmerName:    "Sita Devi",
		FarmerContact: "9876500000",
		CropType:      "Rice",
		LossCause:     "flood",
		Status:        status,
		CreatedAt:     at,
		StatusHistory: []models.StatusHistoryEntry{{Stage: "Farmer", Status: models.StatusSubmitted, Timestamp: at}},
	}
}

// waitFor reads updates until one satisfies cond.
func waitFor(t *testing.T, f *Feed, cond func(models.FeedUpdate) bool) models.FeedUpdate {
	t.Helper()
	timeout := time.After(2 * time.Second)
	for {
		select {
		case u, ok := <-f.Updates():
			require.True(t, ok, "feed closed before condition was met")
			if cond(u) {
				return u
			}
		case <-timeout:
			t.Fatalf("no matching feed update, last snapshot: %+v", f.Snapshot())
		}
	}
}

func ids(claims []*models.Claim) []string {
	out := make([]string, 0, len(claims))
	for _, c := range claims {
		out = append(out, c.ID)
	}
	return out
}

func TestFilterClaims(t *testing.T) {
	a := feedClaim("CLM100", models.StatusSubmitted, 0)
	b := feedClaim("CLM200", models.StatusRejectedByVerifier, 1)
	b.FarmerName = "Arjun Patel"
	b.CropType = "Cotton"
	b.LossCause = "pest"
	claims := []*models.Claim{b, a}

	assert.Equal(t, []string{"CLM200", "CLM100"}, ids(FilterClaims(claims, models.ClaimFilter{})))
	assert.Equal(t, []string{"CLM100"}, ids(FilterClaims(claims, models.ClaimFilter{Status: models.StatusSubmitted})))
	assert.Equal(t, []string{"CLM200"}, ids(FilterClaims(claims, models.ClaimFilter{CropType: "cotton"})))
	assert.Equal(t, []string{"CLM200"}, ids(FilterClaims(claims, models.ClaimFilter{LossCause: "PEST"})))
	assert.Equal(t, []string{"CLM200"}, ids(FilterClaims(claims, models.ClaimFilter{Search: "arjun"})))
	assert.Equal(t, []string{"CLM100"}, ids(FilterClaims(claims, models.ClaimFilter{Search: "clm1"})))
	assert.Len(t, FilterClaims(claims, models.ClaimFilter{Search: "98765"}), 2)
	assert.Empty(t, FilterClaims(claims, models.ClaimFilter{Search: "nobody"}))
}

func TestComputeStats(t *testing.T) {
	now := feedBase.Add(6 * time.Hour)

	approved := feedClaim("CLM1", models.StatusRevenueApproved, 0)
	approved.RevenueAssessment = &models.RevenueAssessment{EstimatedCompensation: 12000}
	approved.StatusHistory = append(approved.StatusHistory,
		models.StatusHistoryEntry{Stage: "Revenue Officer", Status: models.StatusRevenueApproved, Timestamp: now.Add(-time.Hour)})

	paid := feedClaim("CLM2", models.StatusPaymentApproved, 1)
	paid.RevenueAssessment = &models.RevenueAssessment{EstimatedCompensation: 8000}

	rejected := feedClaim("CLM3", models.StatusRejectedByRevenueOfficer, 2)
	rejected.StatusHistory = append(rejected.StatusHistory,
		models.StatusHistoryEntry{Stage: "Revenue Officer", Status: models.StatusRejectedByRevenueOfficer, Timestamp: now.Add(-48 * time.Hour)})

	waiting := feedClaim("CLM4", models.StatusFieldVerified, 3)

	claims := []*models.Claim{approved, paid, rejected, waiting}

	stats := ComputeStats(claims, models.RoleRevenueOfficer, now)
	assert.Equal(t, 3, stats.Total)
	assert.Equal(t, 1, stats.Pending)
	assert.Equal(t, 1, stats.ProcessedToday)
	assert.Equal(t, 1, stats.Rejected)
	assert.Equal(t, 12000.0, stats.TotalCompensation)

	all := ComputeStats(claims, models.RoleAll, now)
	assert.Equal(t, 4, all.Total)
	assert.Equal(t, 2, all.Pending)
	assert.Equal(t, 20000.0, all.TotalCompensation)
}

func TestFeed_LiveUpdates(t *testing.T) {
	repo := mocks.NewClaimRepository()
	repo.Seed(
		feedClaim("CLM1", models.StatusSubmitted, 0),
		feedClaim("CLM2", models.StatusFieldVerified, 1),
	)
	svc := NewFeedService(repo, 20*time.Millisecond)
	ctx := context.Background()

	f, err := svc.Open(ctx, "dash-1", models.RoleVerifier)
	require.NoError(t, err)
	defer svc.Close("dash-1", f)

	first := waitFor(t, f, func(u models.FeedUpdate) bool { return len(u.Claims) == 1 })
	assert.Equal(t, []string{"CLM1"}, ids(first.Claims))
	assert.False(t, first.Degraded)

	require.Eventually(t, func() bool { return repo.WatcherCount() == 1 }, time.Second, 5*time.Millisecond)

	require.NoError(t, repo.Create(ctx, feedClaim("CLM3", models.StatusSubmitted, 5)))
	added := waitFor(t, f, func(u models.FeedUpdate) bool { return len(u.Claims) == 2 })
	assert.Equal(t, []string{"CLM3", "CLM1"}, ids(added.Claims))

	repo.Remove("CLM1")
	removed := waitFor(t, f, func(u models.FeedUpdate) bool { return len(u.Claims) == 1 })
	assert.Equal(t, []string{"CLM3"}, ids(removed.Claims))
}

func TestFeed_LeavesRoleSetOnTransition(t *testing.T) {
	repo := mocks.NewClaimRepository()
	claim := feedClaim("CLM1", models.StatusRevenueApproved, 0)
	repo.Seed(claim)
	svc := NewFeedService(repo, 20*time.Millisecond)
	ctx := context.Background()

	f, err := svc.Open(ctx, "rev", models.RoleRevenueOfficer)
	require.NoError(t, err)
	defer svc.Close("rev", f)
	waitFor(t, f, func(u models.FeedUpdate) bool { return len(u.Claims) == 1 })
	require.Eventually(t, func() bool { return repo.WatcherCount() == 1 }, time.Second, 5*time.Millisecond)

	tr, err := models.NewTransition(claim, models.RoleTreasuryOfficer, models.ActionApprove, "t1", "r1", time.Now().UTC())
	require.NoError(t, err)
	_, err = repo.ApplyTransition(ctx, tr)
	require.NoError(t, err)

	waitFor(t, f, func(u models.FeedUpdate) bool { return len(u.Claims) == 0 })
}

func TestFeed_ReopenClosesPrevious(t *testing.T) {
	repo := mocks.NewClaimRepository()
	svc := NewFeedService(repo, 20*time.Millisecond)
	ctx := context.Background()

	first, err := svc.Open(ctx, "view", models.RoleVerifier)
	require.NoError(t, err)
	second, err := svc.Open(ctx, "view", models.RoleFieldOfficer)
	require.NoError(t, err)

	select {
	case <-first.Done():
	case <-time.After(time.Second):
		t.Fatal("previous feed was not stopped")
	}
	assert.Equal(t, 1, svc.OpenCount())
	require.Eventually(t, func() bool { return repo.WatcherCount() == 1 }, time.Second, 5*time.Millisecond)

	svc.Close("view", second)
	assert.Equal(t, 0, svc.OpenCount())
	require.Eventually(t, func() bool { return repo.WatcherCount() == 0 }, time.Second, 5*time.Millisecond)

	for range second.Updates() {
	}
}

func TestFeed_StopsWithContext(t *testing.T) {
	repo := mocks.NewClaimRepository()
	svc := NewFeedService(repo, 20*time.Millisecond)
	ctx, cancel := context.WithCancel(context.Background())

	f, err := svc.Open(ctx, "sse-1", models.RoleTreasuryOfficer)
	require.NoError(t, err)
	cancel()

	select {
	case <-f.Done():
	case <-time.After(time.Second):
		t.Fatal("feed did not stop with its context")
	}
	assert.Equal(t, 0, svc.OpenCount())
}

func TestFeed_RejectsNonOfficialRole(t *testing.T) {
	svc := NewFeedService(mocks.NewClaimRepository(), time.Second)
	_, err := svc.Open(context.Background(), "v", models.RoleFarmer)
	assert.ErrorIs(t, err, models.ErrValidation)

	_, err = svc.Snapshot(context.Background(), models.Role("guest"), models.ClaimFilter{})
	assert.ErrorIs(t, err, models.ErrValidation)
}

func TestFeed_DegradedServesCacheAndRecovers(t *testing.T) {
	store, err := sqlite.NewStore(":memory:")
	require.NoError(t, err)
	t.Cleanup(func() { store.Close() })
	require.NoError(t, store.EnsureSchema(context.Background()))

	primary := mocks.NewClaimRepository()
	primary.Seed(feedClaim("CLM1", models.StatusSubmitted, 0), feedClaim("CLM2", models.StatusPaymentApproved, 1))
	repo := fallback.NewClaimRepository(primary, store)
	ctx := context.Background()

	// warm the cache while the primary is up
	_, err = repo.FindByStatuses(ctx, models.FeedStatuses(models.RoleAll))
	require.NoError(t, err)

	primary.SetOffline(true)
	svc := NewFeedService(repo, 20*time.Millisecond)
	f, err := svc.Open(ctx, "dash", models.RoleVerifier)
	require.NoError(t, err)
	defer svc.Close("dash", f)

	degraded := waitFor(t, f, func(u models.FeedUpdate) bool { return u.Degraded })
	assert.Equal(t, []string{"CLM1"}, ids(degraded.Claims))
	assert.True(t, f.Degraded())

	primary.SetOffline(false)
	live := waitFor(t, f, func(u models.FeedUpdate) bool { return !u.Degraded })
	assert.Equal(t, []string{"CLM1"}, ids(live.Claims))
}

func TestFeed_ResubscribesAfterDrop(t *testing.T) {
	repo := mocks.NewClaimRepository()
	repo.Seed(feedClaim("CLM1", models.StatusSubmitted, 0))
	svc := NewFeedService(repo, 20*time.Millisecond)
	ctx := context.Background()

	f, err := svc.Open(ctx, "dash", models.RoleVerifier)
	require.NoError(t, err)
	defer svc.Close("dash", f)
	waitFor(t, f, func(u models.FeedUpdate) bool { return len(u.Claims) == 1 })
	require.Eventually(t, func() bool { return repo.WatcherCount() == 1 }, time.Second, 5*time.Millisecond)

	repo.DropWatchers()
	waitFor(t, f, func(u models.FeedUpdate) bool { return u.Degraded })
	require.Eventually(t, func() bool { return repo.WatcherCount() == 1 }, time.Second, 5*time.Millisecond)
	waitFor(t, f, func(u models.FeedUpdate) bool { return !u.Degraded })
}

func TestFeedService_SnapshotAndStats(t *testing.T) {
	repo := mocks.NewClaimRepository()
	repo.Seed(
		feedClaim("CLM1", models.StatusSubmitted, 0),
		feedClaim("CLM2", models.StatusSubmitted, 1),
		feedClaim("CLM3", models.StatusRejectedByVerifier, 2),
		feedClaim("CLM4", models.StatusFieldVerified, 3),
	)
	svc := NewFeedService(repo, time.Second)
	ctx := context.Background()

	claims, err := svc.Snapshot(ctx, models.RoleVerifier, models.ClaimFilter{})
	require.NoError(t, err)
	assert.Equal(t, []string{"CLM3", "CLM2", "CLM1"}, ids(claims))

	filtered, err := svc.Snapshot(ctx, models.RoleVerifier, models.ClaimFilter{Status: models.StatusSubmitted})
	require.NoError(t, err)
	assert.Equal(t, []string{"CLM2", "CLM1"}, ids(filtered))

	stats, err := svc.Stats(ctx, models.RoleVerifier)
	require.NoError(t, err)
	assert.Equal(t, 3, stats.Total)
	assert.Equal(t, 2, stats.Pending)
	assert.Equal(t, 1, stats.Rejected)
}
