package sqlite

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/ArowuTest/agriclaim-backend/internal/models"
	"github.com/ArowuTest/agriclaim-backend/internal/repositories"
)

var (
	_ repositories.FarmerRepository   = (*FarmerRepository)(nil)
	_ repositories.OfficialRepository = (*OfficialRepository)(nil)
	_ repositories.TokenDenylist      = (*TokenDenylist)(nil)
)

// FarmerRepository keeps farmer profiles in the cache. It backs sign-in when
// the legacy spreadsheet is the claim store and no document store exists.
type FarmerRepository struct {
	store *Store
}

func NewFarmerRepository(store *Store) *FarmerRepository {
	return &FarmerRepository{store: store}
}

// Create stores a new farmer, refusing an email that is already registered.
func (r *FarmerRepository) Create(ctx context.Context, farmer *models.Farmer) error {
	email := strings.ToLower(farmer.Email)
	var existing models.Farmer
	err := r.store.Get(ctx, NamespaceMockFarmers, email, &existing)
	if err == nil {
		return fmt.Errorf("farmer %s: %w", email, models.ErrDuplicate)
	}
	if !errors.Is(err, models.ErrNotFound) {
		return err
	}

	farmer.Email = email
	farmer.CreatedAt = timeNow().UTC()
	farmer.UpdatedAt = farmer.CreatedAt
	if err := r.store.Put(ctx, NamespaceMockFarmers, email, farmer); err != nil {
		return err
	}
	return r.store.Put(ctx, NamespaceFarmerData, farmer.ID, farmer)
}

func (r *FarmerRepository) FindByEmail(ctx context.Context, email string) (*models.Farmer, error) {
	var farmer models.Farmer
	if err := r.store.Get(ctx, NamespaceMockFarmers, strings.ToLower(email), &farmer); err != nil {
		return nil, err
	}
	return &farmer, nil
}

func (r *FarmerRepository) FindByID(ctx context.Context, id string) (*models.Farmer, error) {
	var farmer models.Farmer
	if err := r.store.Get(ctx, NamespaceFarmerData, id, &farmer); err != nil {
		return nil, err
	}
	return &farmer, nil
}

// OfficialRepository keeps official accounts in the cache.
type OfficialRepository struct {
	store *Store
}

func NewOfficialRepository(store *Store) *OfficialRepository {
	return &OfficialRepository{store: store}
}

func (r *OfficialRepository) Upsert(ctx context.Context, official *models.Official) error {
	now := timeNow().UTC()
	var existing models.Official
	if err := r.store.Get(ctx, NamespaceOfficialData, official.Username, &existing); err == nil {
		official.ID = existing.ID
		official.CreatedAt = existing.CreatedAt
	} else {
		official.CreatedAt = now
	}
	official.UpdatedAt = now
	return r.store.Put(ctx, NamespaceOfficialData, official.Username, official)
}

func (r *OfficialRepository) FindByUsername(ctx context.Context, username string) (*models.Official, error) {
	var official models.Official
	if err := r.store.Get(ctx, NamespaceOfficialData, username, &official); err != nil {
		return nil, err
	}
	return &official, nil
}

// TokenDenylist records signed-out session ids until their tokens expire.
type TokenDenylist struct {
	store *Store
}

func NewTokenDenylist(store *Store) *TokenDenylist {
	return &TokenDenylist{store: store}
}

// Revoke denies tokenID until expiresAt.
func (d *TokenDenylist) Revoke(ctx context.Context, tokenID string, expiresAt time.Time) error {
	return d.store.Put(ctx, NamespaceRevokedTokens, tokenID, expiresAt.UTC())
}

// IsRevoked reports whether tokenID was signed out.
func (d *TokenDenylist) IsRevoked(ctx context.Context, tokenID string) (bool, error) {
	var exp time.Time
	err := d.store.Get(ctx, NamespaceRevokedTokens, tokenID, &exp)
	if errors.Is(err, models.ErrNotFound) {
		return false, nil
	}
	if err != nil {
		return false, err
	}
	return true, nil
}

// Purge drops entries whose tokens have expired anyway.
func (d *TokenDenylist) Purge(ctx context.Context) (int, error) {
	entries, err := d.store.List(ctx, NamespaceRevokedTokens)
	if err != nil {
		return 0, err
	}
	now := timeNow()
	purged := 0
	for _, e := range entries {
		var exp time.Time
		if err := json.Unmarshal(e.Value, &exp); err != nil || exp.Before(now) {
			if err := d.store.Delete(ctx, NamespaceRevokedTokens, e.Key); err != nil {
				return purged, err
			}
			purged++
		}
	}
	return purged, nil
}
