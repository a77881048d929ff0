package repositories

import (
	"context"
	"time"

	"github.com/ArowuTest/agriclaim-backend/internal/models"
)

// ClaimRepository is the port every claim backend implements.
//
// ApplyTransition must be conditional: it writes only if the stored status
// still equals t.From and otherwise returns models.ErrConflict (or
// models.ErrNotFound). Unreachable backends return errors wrapping
// models.ErrTransport so the fallback layer can take over. Create keeps a
// non-zero CreatedAt (see models.Claim.StampCreated).
type ClaimRepository interface {
	Create(ctx context.Context, claim *models.Claim) error
	FindByID(ctx context.Context, id string) (*models.Claim, error)
	FindByStatuses(ctx context.Context, statuses []models.ClaimStatus) ([]*models.Claim, error)
	FindByFarmer(ctx context.Context, farmer models.FarmerRef) ([]*models.Claim, error)
	ApplyTransition(ctx context.Context, t *models.Transition) (*models.Claim, error)
	// Watch streams changes until ctx is cancelled, then closes the channel.
	Watch(ctx context.Context) (<-chan models.ClaimChange, error)
}

// FarmerRepository defines the interface for farmer profile operations
type FarmerRepository interface {
	Create(ctx context.Context, farmer *models.Farmer) error
	FindByEmail(ctx context.Context, email string) (*models.Farmer, error)
	FindByID(ctx context.Context, id string) (*models.Farmer, error)
}

// OfficialRepository defines the interface for official account operations
type OfficialRepository interface {
	Upsert(ctx context.Context, official *models.Official) error
	FindByUsername(ctx context.Context, username string) (*models.Official, error)
}

// TokenDenylist remembers signed-out session tokens until they expire.
type TokenDenylist interface {
	Revoke(ctx context.Context, tokenID string, expiresAt time.Time) error
	IsRevoked(ctx context.Context, tokenID string) (bool, error)
}
