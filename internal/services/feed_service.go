package services

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"sync"
	"time"

	"github.com/ArowuTest/agriclaim-backend/internal/metrics"
	"github.com/ArowuTest/agriclaim-backend/internal/models"
	"github.com/ArowuTest/agriclaim-backend/internal/repositories"
)

// FeedService keeps one live feed per dashboard view.
type FeedService struct {
	claims       repositories.ClaimRepository
	pollInterval time.Duration
	now          func() time.Time

	mu    sync.Mutex
	feeds map[string]*Feed
}

// NewFeedService creates a new FeedService. pollInterval is how often a
// degraded feed resyncs and retries its subscription.
func NewFeedService(claims repositories.ClaimRepository, pollInterval time.Duration) *FeedService {
	if pollInterval <= 0 {
		pollInterval = 15 * time.Second
	}
	return &FeedService{
		claims:       claims,
		pollInterval: pollInterval,
		now:          func() time.Time { return time.Now().UTC() },
		feeds:        map[string]*Feed{},
	}
}

func feedRole(role models.Role) error {
	if !role.IsOfficial() {
		verr := models.NewValidationError()
		verr.Add("role", fmt.Sprintf("%q has no claims feed", role))
		return verr
	}
	return nil
}

// Open starts a live feed for viewID. A feed already open for the same view
// is closed first, so a view never holds two subscriptions. The feed stops
// when ctx is cancelled or Close is called.
func (s *FeedService) Open(ctx context.Context, viewID string, role models.Role) (*Feed, error) {
	if err := feedRole(role); err != nil {
		return nil, err
	}

	fctx, cancel := context.WithCancel(ctx)
	f := &Feed{
		ViewID:   viewID,
		Role:     role,
		statuses: map[models.ClaimStatus]bool{},
		view:     map[string]*models.Claim{},
		updates:  make(chan models.FeedUpdate, 1),
		cancel:   cancel,
		done:     make(chan struct{}),
	}
	for _, st := range models.FeedStatuses(role) {
		f.statuses[st] = true
	}

	s.mu.Lock()
	previous := s.feeds[viewID]
	s.feeds[viewID] = f
	s.mu.Unlock()

	if previous != nil {
		slog.Debug("Replacing open feed", "viewId", viewID, "role", previous.Role)
		previous.stop()
	}

	metrics.OpenFeeds.Inc()
	go s.run(fctx, f)
	return f, nil
}

// Close stops f and forgets it if it is still the feed registered for viewID.
func (s *FeedService) Close(viewID string, f *Feed) {
	if f == nil {
		return
	}
	s.release(viewID, f)
	f.stop()
}

// OpenCount reports how many feeds are registered.
func (s *FeedService) OpenCount() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return len(s.feeds)
}

// CloseAll stops every feed. Used on shutdown.
func (s *FeedService) CloseAll() {
	s.mu.Lock()
	feeds := s.feeds
	s.feeds = map[string]*Feed{}
	s.mu.Unlock()
	for _, f := range feeds {
		f.stop()
	}
}

func (s *FeedService) release(viewID string, f *Feed) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.feeds[viewID] == f {
		delete(s.feeds, viewID)
	}
}

// Snapshot is a one-shot read of role's feed with filters applied.
func (s *FeedService) Snapshot(ctx context.Context, role models.Role, filter models.ClaimFilter) ([]*models.Claim, error) {
	if err := feedRole(role); err != nil {
		return nil, err
	}
	claims, err := s.claims.FindByStatuses(ctx, models.FeedStatuses(role))
	if err != nil {
		return nil, fmt.Errorf("failed to load %s feed: %w", role, err)
	}
	models.SortNewestFirst(claims)
	return FilterClaims(claims, filter), nil
}

// Stats returns the dashboard counters for role.
func (s *FeedService) Stats(ctx context.Context, role models.Role) (models.FeedStats, error) {
	if err := feedRole(role); err != nil {
		return models.FeedStats{}, err
	}
	claims, err := s.claims.FindByStatuses(ctx, models.FeedStatuses(role))
	if err != nil {
		return models.FeedStats{}, fmt.Errorf("failed to load %s feed: %w", role, err)
	}
	return ComputeStats(claims, role, s.now()), nil
}

// run subscribes, loads the role's claims and then applies change events.
// When the subscription cannot be opened or drops, the feed publishes what
// the repository can still serve, marks itself degraded and retries every
// poll interval.
func (s *FeedService) run(ctx context.Context, f *Feed) {
	defer func() {
		f.setDegraded(false)
		close(f.updates)
		close(f.done)
		s.release(f.ViewID, f)
		metrics.OpenFeeds.Dec()
	}()

	for ctx.Err() == nil {
		changes, err := s.claims.Watch(ctx)
		if err != nil {
			if ctx.Err() != nil {
				return
			}
			slog.Warn("Feed subscription failed, serving cached claims",
				"viewId", f.ViewID, "role", f.Role, "error", err)
			f.setDegraded(true)
			s.resync(ctx, f)
			if !s.wait(ctx) {
				return
			}
			continue
		}

		f.setDegraded(false)
		s.resync(ctx, f)
		s.consume(ctx, f, changes)
		if ctx.Err() != nil {
			return
		}

		slog.Warn("Feed subscription dropped", "viewId", f.ViewID, "role", f.Role)
		f.setDegraded(true)
		s.resync(ctx, f)
		if !s.wait(ctx) {
			return
		}
	}
}

func (s *FeedService) consume(ctx context.Context, f *Feed, changes <-chan models.ClaimChange) {
	for {
		select {
		case <-ctx.Done():
			return
		case change, ok := <-changes:
			if !ok {
				return
			}
			if f.apply(change) {
				f.publish(s.now())
			}
		}
	}
}

// resync replaces the view with a fresh read. On failure the previous view
// is kept and republished.
func (s *FeedService) resync(ctx context.Context, f *Feed) {
	claims, err := s.claims.FindByStatuses(ctx, models.FeedStatuses(f.Role))
	if err != nil {
		if !errors.Is(err, context.Canceled) {
			slog.Warn("Feed resync failed", "viewId", f.ViewID, "role", f.Role, "error", err)
		}
	} else {
		f.replace(claims)
	}
	f.publish(s.now())
}

func (s *FeedService) wait(ctx context.Context) bool {
	t := time.NewTimer(s.pollInterval)
	defer t.Stop()
	select {
	case <-ctx.Done():
		return false
	case <-t.C:
		return true
	}
}

// Feed is a live, role-filtered view of the claims collection.
type Feed struct {
	ViewID string
	Role   models.Role

	statuses map[models.ClaimStatus]bool
	updates  chan models.FeedUpdate
	cancel   context.CancelFunc
	done     chan struct{}
	stopOnce sync.Once

	mu       sync.Mutex
	view     map[string]*models.Claim
	degraded bool
}

// Updates delivers snapshots, newest-first. Only the latest undelivered
// snapshot is kept. The channel closes when the feed stops.
func (f *Feed) Updates() <-chan models.FeedUpdate {
	return f.updates
}

// Done is closed once the feed has fully stopped.
func (f *Feed) Done() <-chan struct{} {
	return f.done
}

// Snapshot returns the current view.
func (f *Feed) Snapshot() models.FeedUpdate {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.snapshotLocked(time.Now().UTC())
}

// Degraded reports whether the feed is serving cached data.
func (f *Feed) Degraded() bool {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.degraded
}

func (f *Feed) stop() {
	f.stopOnce.Do(f.cancel)
	<-f.done
}

func (f *Feed) setDegraded(d bool) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.degraded == d {
		return
	}
	f.degraded = d
	if d {
		metrics.DegradedFeeds.Inc()
	} else {
		metrics.DegradedFeeds.Dec()
	}
}

func (f *Feed) replace(claims []*models.Claim) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.view = make(map[string]*models.Claim, len(claims))
	for _, c := range claims {
		if f.statuses[c.Status] {
			f.view[c.ID] = c
		}
	}
}

// apply folds one change into the view and reports whether it changed.
func (f *Feed) apply(change models.ClaimChange) bool {
	f.mu.Lock()
	defer f.mu.Unlock()
	_, had := f.view[change.ID]
	if change.Kind == models.ChangeRemoved || change.Claim == nil || !f.statuses[change.Claim.Status] {
		delete(f.view, change.ID)
		return had
	}
	f.view[change.ID] = change.Claim
	return true
}

func (f *Feed) publish(at time.Time) {
	f.mu.Lock()
	update := f.snapshotLocked(at)
	f.mu.Unlock()

	select {
	case f.updates <- update:
		return
	default:
	}
	// drop the stale snapshot the reader has not taken yet
	select {
	case <-f.updates:
	default:
	}
	select {
	case f.updates <- update:
	default:
	}
}

func (f *Feed) snapshotLocked(at time.Time) models.FeedUpdate {
	claims := make([]*models.Claim, 0, len(f.view))
	for _, c := range f.view {
		claims = append(claims, c.Clone())
	}
	models.SortNewestFirst(claims)
	return models.FeedUpdate{Claims: claims, Degraded: f.degraded, At: at}
}
