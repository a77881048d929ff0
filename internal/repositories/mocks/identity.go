package mocks

import (
	"context"
	"fmt"
	"strings"
	"sync"
	"time"

	"github.com/ArowuTest/agriclaim-backend/internal/models"
	"github.com/ArowuTest/agriclaim-backend/internal/repositories"
)

var (
	_ repositories.FarmerRepository   = (*FarmerRepository)(nil)
	_ repositories.OfficialRepository = (*OfficialRepository)(nil)
	_ repositories.TokenDenylist      = (*TokenDenylist)(nil)
)

// FarmerRepository is an in-memory repositories.FarmerRepository.
type FarmerRepository struct {
	mu      sync.Mutex
	byEmail map[string]*models.Farmer
}

func NewFarmerRepository() *FarmerRepository {
	return &FarmerRepository{byEmail: map[string]*models.Farmer{}}
}

func (m *FarmerRepository) Create(ctx context.Context, farmer *models.Farmer) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	email := strings.ToLower(farmer.Email)
	if _, ok := m.byEmail[email]; ok {
		return fmt.Errorf("farmer %s: %w", email, models.ErrDuplicate)
	}
	farmer.Email = email
	farmer.CreatedAt = time.Now().UTC()
	cp := *farmer
	m.byEmail[email] = &cp
	return nil
}

func (m *FarmerRepository) FindByEmail(ctx context.Context, email string) (*models.Farmer, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	f, ok := m.byEmail[strings.ToLower(email)]
	if !ok {
		return nil, fmt.Errorf("farmer %s: %w", email, models.ErrNotFound)
	}
	cp := *f
	return &cp, nil
}

func (m *FarmerRepository) FindByID(ctx context.Context, id string) (*models.Farmer, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	for _, f := range m.byEmail {
		if f.ID == id {
			cp := *f
			return &cp, nil
		}
	}
	return nil, fmt.Errorf("farmer %s: %w", id, models.ErrNotFound)
}

// OfficialRepository is an in-memory repositories.OfficialRepository.
type OfficialRepository struct {
	mu         sync.Mutex
	byUsername map[string]*models.Official
}

func NewOfficialRepository() *OfficialRepository {
	return &OfficialRepository{byUsername: map[string]*models.Official{}}
}

func (m *OfficialRepository) Upsert(ctx context.Context, official *models.Official) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	cp := *official
	if existing, ok := m.byUsername[official.Username]; ok {
		cp.ID = existing.ID
	}
	m.byUsername[official.Username] = &cp
	return nil
}

func (m *OfficialRepository) FindByUsername(ctx context.Context, username string) (*models.Official, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	o, ok := m.byUsername[username]
	if !ok {
		return nil, fmt.Errorf("official %s: %w", username, models.ErrNotFound)
	}
	cp := *o
	return &cp, nil
}

// TokenDenylist is an in-memory revocation list.
type TokenDenylist struct {
	mu      sync.Mutex
	revoked map[string]time.Time
}

func NewTokenDenylist() *TokenDenylist {
	return &TokenDenylist{revoked: map[string]time.Time{}}
}

func (m *TokenDenylist) Revoke(ctx context.Context, tokenID string, expiresAt time.Time) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.revoked[tokenID] = expiresAt
	return nil
}

func (m *TokenDenylist) IsRevoked(ctx context.Context, tokenID string) (bool, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	_, ok := m.revoked[tokenID]
	return ok, nil
}
