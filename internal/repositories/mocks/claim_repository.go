// Package mocks provides in-memory repository implementations for testing.
package mocks

import (
	"context"
	"fmt"
	"sync"
	"time"

	"github.com/ArowuTest/agriclaim-backend/internal/models"
	"github.com/ArowuTest/agriclaim-backend/internal/repositories"
)

var _ repositories.ClaimRepository = (*ClaimRepository)(nil)

// ClaimRepository is a thread-safe in-memory implementation of
// repositories.ClaimRepository with compare-and-set transitions and a
// broadcast Watch.
type ClaimRepository struct {
	mu       sync.Mutex
	claims   map[string]*models.Claim
	watchers map[chan models.ClaimChange]struct{}

	// Offline makes every call fail with models.ErrTransport.
	Offline  bool
	WatchErr error
	// BeforeTransition runs inside ApplyTransition before the compare, used to
	// simulate a concurrent writer.
	BeforeTransition func(claim *models.Claim)

	// Call tracking
	CreateCallCount     int
	TransitionCallCount int
	WatchCallCount      int
}

// NewClaimRepository returns an empty repository.
func NewClaimRepository() *ClaimRepository {
	return &ClaimRepository{
		claims:   map[string]*models.Claim{},
		watchers: map[chan models.ClaimChange]struct{}{},
	}
}

// SetOffline toggles simulated transport failure.
func (m *ClaimRepository) SetOffline(offline bool) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.Offline = offline
}

func (m *ClaimRepository) offlineErr(op string) error {
	if m.Offline {
		return fmt.Errorf("%s: %w", op, models.ErrTransport)
	}
	return nil
}

// Seed stores claims as-is without emitting changes.
func (m *ClaimRepository) Seed(claims ...*models.Claim) {
	m.mu.Lock()
	defer m.mu.Unlock()
	for _, c := range claims {
		m.claims[c.ID] = c.Clone()
	}
}

// Remove deletes a claim and emits a removal.
func (m *ClaimRepository) Remove(id string) {
	m.mu.Lock()
	defer m.mu.Unlock()
	delete(m.claims, id)
	m.broadcast(models.ClaimChange{Kind: models.ChangeRemoved, ID: id})
}

func (m *ClaimRepository) Create(ctx context.Context, claim *models.Claim) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.CreateCallCount++
	if err := m.offlineErr("create"); err != nil {
		return err
	}
	if _, ok := m.claims[claim.ID]; ok {
		return fmt.Errorf("claim %s: %w", claim.ID, models.ErrDuplicate)
	}
	claim.StampCreated(time.Now().UTC())
	claim.PendingSync = false
	stored := claim.Clone()
	m.claims[claim.ID] = stored
	m.broadcast(models.ClaimChange{Kind: models.ChangeAdded, ID: claim.ID, Claim: stored.Clone()})
	return nil
}

func (m *ClaimRepository) FindByID(ctx context.Context, id string) (*models.Claim, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if err := m.offlineErr("find"); err != nil {
		return nil, err
	}
	c, ok := m.claims[id]
	if !ok {
		return nil, fmt.Errorf("claim %s: %w", id, models.ErrNotFound)
	}
	return c.Clone(), nil
}

func (m *ClaimRepository) FindByStatuses(ctx context.Context, statuses []models.ClaimStatus) ([]*models.Claim, error) {
	want := map[models.ClaimStatus]bool{}
	for _, s := range statuses {
		want[s] = true
	}
	return m.list(func(c *models.Claim) bool { return want[c.Status] })
}

func (m *ClaimRepository) FindByFarmer(ctx context.Context, farmer models.FarmerRef) ([]*models.Claim, error) {
	return m.list(farmer.Owns)
}

func (m *ClaimRepository) list(keep func(*models.Claim) bool) ([]*models.Claim, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if err := m.offlineErr("list"); err != nil {
		return nil, err
	}
	out := []*models.Claim{}
	for _, c := range m.claims {
		if keep(c) {
			out = append(out, c.Clone())
		}
	}
	models.SortNewestFirst(out)
	return out, nil
}

func (m *ClaimRepository) ApplyTransition(ctx context.Context, t *models.Transition) (*models.Claim, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.TransitionCallCount++
	if err := m.offlineErr("transition"); err != nil {
		return nil, err
	}
	c, ok := m.claims[t.ClaimID]
	if !ok {
		return nil, fmt.Errorf("claim %s: %w", t.ClaimID, models.ErrNotFound)
	}
	if m.BeforeTransition != nil {
		m.BeforeTransition(c)
	}
	if err := t.Apply(c); err != nil {
		return nil, err
	}
	c.UpdatedAt = time.Now().UTC()
	m.broadcast(models.ClaimChange{Kind: models.ChangeModified, ID: c.ID, Claim: c.Clone()})
	return c.Clone(), nil
}

// Watch delivers every subsequent change until ctx is cancelled.
func (m *ClaimRepository) Watch(ctx context.Context) (<-chan models.ClaimChange, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.WatchCallCount++
	if err := m.offlineErr("watch"); err != nil {
		return nil, err
	}
	if m.WatchErr != nil {
		return nil, m.WatchErr
	}
	ch := make(chan models.ClaimChange, 64)
	m.watchers[ch] = struct{}{}
	go func() {
		<-ctx.Done()
		m.mu.Lock()
		defer m.mu.Unlock()
		if _, ok := m.watchers[ch]; ok {
			delete(m.watchers, ch)
			close(ch)
		}
	}()
	return ch, nil
}

// DropWatchers closes every open watch as a broken stream would.
func (m *ClaimRepository) DropWatchers() {
	m.mu.Lock()
	defer m.mu.Unlock()
	for ch := range m.watchers {
		delete(m.watchers, ch)
		close(ch)
	}
}

// WatcherCount reports the number of open watches.
func (m *ClaimRepository) WatcherCount() int {
	m.mu.Lock()
	defer m.mu.Unlock()
	return len(m.watchers)
}

func (m *ClaimRepository) broadcast(change models.ClaimChange) {
	for ch := range m.watchers {
		select {
		case ch <- change:
		default:
		}
	}
}
