package sqlite

import (
	"context"

	"github.com/ArowuTest/agriclaim-backend/internal/models"
)

// ClaimCache is the last known copy of every claim this instance has seen.
type ClaimCache struct {
	store *Store
}

func NewClaimCache(store *Store) *ClaimCache {
	return &ClaimCache{store: store}
}

// Put replaces the cached copy of claim.
func (c *ClaimCache) Put(ctx context.Context, claim *models.Claim) error {
	return c.store.Put(ctx, NamespaceFarmerClaims, claim.ID, claim)
}

// PutAll caches every claim, stopping at the first error.
func (c *ClaimCache) PutAll(ctx context.Context, claims []*models.Claim) error {
	for _, claim := range claims {
		if err := c.Put(ctx, claim); err != nil {
			return err
		}
	}
	return nil
}

// Get returns the cached copy, or models.ErrNotFound.
func (c *ClaimCache) Get(ctx context.Context, id string) (*models.Claim, error) {
	var claim models.Claim
	if err := c.store.Get(ctx, NamespaceFarmerClaims, id, &claim); err != nil {
		return nil, err
	}
	return &claim, nil
}

// Delete drops the cached copy.
func (c *ClaimCache) Delete(ctx context.Context, id string) error {
	return c.store.Delete(ctx, NamespaceFarmerClaims, id)
}

// List returns cached claims matching keep, newest first. A nil keep matches all.
func (c *ClaimCache) List(ctx context.Context, keep func(*models.Claim) bool) ([]*models.Claim, error) {
	all, err := ListAs[*models.Claim](ctx, c.store, NamespaceFarmerClaims)
	if err != nil {
		return nil, err
	}
	out := make([]*models.Claim, 0, len(all))
	for _, claim := range all {
		if keep == nil || keep(claim) {
			out = append(out, claim)
		}
	}
	models.SortNewestFirst(out)
	return out, nil
}
