package services

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"strings"
	"sync"
	"time"

	"github.com/google/uuid"
	"golang.org/x/crypto/bcrypt"
	"golang.org/x/time/rate"

	"github.com/ArowuTest/agriclaim-backend/internal/config"
	"github.com/ArowuTest/agriclaim-backend/internal/models"
	"github.com/ArowuTest/agriclaim-backend/internal/repositories"
	"github.com/ArowuTest/agriclaim-backend/pkg/jwt"
)

// AuthService handles farmer registration, farmer and official sign-in,
// sign-out and session verification.
type AuthService struct {
	farmers   repositories.FarmerRepository
	officials repositories.OfficialRepository
	denylist  repositories.TokenDenylist
	tokens    *jwt.TokenService

	limitEvery rate.Limit
	limitBurst int
	mu         sync.Mutex
	limiters   map[string]*rate.Limiter
}

// NewAuthService creates a new AuthService. Each identity may attempt
// attempts sign-ins per window.
func NewAuthService(
	farmers repositories.FarmerRepository,
	officials repositories.OfficialRepository,
	denylist repositories.TokenDenylist,
	tokens *jwt.TokenService,
	attempts int,
	window time.Duration,
) *AuthService {
	if attempts <= 0 {
		attempts = 5
	}
	if window <= 0 {
		window = time.Minute
	}
	return &AuthService{
		farmers:    farmers,
		officials:  officials,
		denylist:   denylist,
		tokens:     tokens,
		limitEvery: rate.Every(window / time.Duration(attempts)),
		limitBurst: attempts,
		limiters:   map[string]*rate.Limiter{},
	}
}

// RegisterFarmer creates a farmer profile and signs it in.
func (s *AuthService) RegisterFarmer(ctx context.Context, req *models.RegisterRequest) (*models.Session, error) {
	if err := validateRegistration(req); err != nil {
		return nil, err
	}
	email := strings.ToLower(strings.TrimSpace(req.Email))

	_, err := s.farmers.FindByEmail(ctx, email)
	if err == nil {
		return nil, models.NewAuthError(models.AuthEmailInUse)
	}
	if !errors.Is(err, models.ErrNotFound) {
		return nil, fmt.Errorf("failed to check email: %w", err)
	}

	hashedPassword, err := bcrypt.GenerateFromPassword([]byte(req.Password), bcrypt.DefaultCost)
	if err != nil {
		return nil, fmt.Errorf("failed to hash password: %w", err)
	}

	farmer := &models.Farmer{
		ID:            uuid.New().String(),
		FullName:      strings.TrimSpace(req.FullName),
		Email:         email,
		ContactNumber: strings.TrimSpace(req.ContactNumber),
		AadharID:      strings.TrimSpace(req.AadharID),
		Address:       strings.TrimSpace(req.Address),
		LandArea:      req.LandArea,
		LandType:      strings.TrimSpace(req.LandType),
		Password:      string(hashedPassword),
	}
	if err := s.farmers.Create(ctx, farmer); err != nil {
		if errors.Is(err, models.ErrDuplicate) {
			return nil, models.NewAuthError(models.AuthEmailInUse)
		}
		return nil, fmt.Errorf("failed to create farmer: %w", err)
	}

	slog.Info("Farmer registered", "farmerId", farmer.ID)
	return s.issue(farmerActor(farmer))
}

// LoginFarmer signs a farmer in by email and password.
func (s *AuthService) LoginFarmer(ctx context.Context, req *models.LoginRequest) (*models.Session, error) {
	email := strings.ToLower(strings.TrimSpace(req.Email))
	if !emailPattern.MatchString(email) {
		return nil, models.NewAuthError(models.AuthInvalidEmail)
	}
	key := "farmer:" + email
	if !s.allow(key) {
		return nil, models.NewAuthError(models.AuthRateLimited)
	}

	farmer, err := s.farmers.FindByEmail(ctx, email)
	if err != nil {
		if errors.Is(err, models.ErrNotFound) {
			return nil, models.NewAuthError(models.AuthUserNotFound)
		}
		return nil, fmt.Errorf("failed to look up farmer: %w", err)
	}
	if err := bcrypt.CompareHashAndPassword([]byte(farmer.Password), []byte(req.Password)); err != nil {
		return nil, models.NewAuthError(models.AuthWrongPass)
	}

	s.reset(key)
	slog.Info("Farmer signed in", "farmerId", farmer.ID)
	return s.issue(farmerActor(farmer))
}

// OfficialLogin signs an official in. The requested role must match the
// account's role unless the account holds the all role.
func (s *AuthService) OfficialLogin(ctx context.Context, req *models.OfficialLoginRequest) (*models.Session, error) {
	username := strings.TrimSpace(req.Username)
	role, err := models.ParseRole(string(req.Role))
	if err != nil || !role.IsOfficial() {
		verr := models.NewValidationError()
		verr.Add("role", "Please select a valid role")
		return nil, verr
	}
	key := "official:" + username
	if !s.allow(key) {
		return nil, models.NewAuthError(models.AuthRateLimited)
	}

	official, err := s.officials.FindByUsername(ctx, username)
	if err != nil {
		if errors.Is(err, models.ErrNotFound) {
			return nil, models.NewAuthError(models.AuthUserNotFound)
		}
		return nil, fmt.Errorf("failed to look up official: %w", err)
	}
	if err := bcrypt.CompareHashAndPassword([]byte(official.Password), []byte(req.Password)); err != nil {
		return nil, models.NewAuthError(models.AuthWrongPass)
	}
	if official.Role != role && official.Role != models.RoleAll {
		return nil, models.NewAuthError(models.AuthUserNotFound)
	}

	s.reset(key)
	slog.Info("Official signed in", "username", username, "role", official.Role)
	return s.issue(models.Actor{
		ID:   official.ID,
		Name: official.Name,
		Role: official.Role,
	})
}

// Logout revokes the session token identified by claims.
func (s *AuthService) Logout(ctx context.Context, claims *jwt.Claims) error {
	if claims == nil || claims.ID == "" {
		return models.NewAuthError(models.AuthInvalidToken)
	}
	expiresAt := time.Now().Add(24 * time.Hour)
	if claims.ExpiresAt != nil {
		expiresAt = claims.ExpiresAt.Time
	}
	if err := s.denylist.Revoke(ctx, claims.ID, expiresAt); err != nil {
		return fmt.Errorf("failed to revoke session: %w", err)
	}
	slog.Info("Session signed out", "subject", claims.Subject)
	return nil
}

// Verify parses a bearer token and returns the session's actor.
func (s *AuthService) Verify(ctx context.Context, token string) (models.Actor, *jwt.Claims, error) {
	claims, err := s.tokens.Parse(token)
	if err != nil {
		return models.Actor{}, nil, models.NewAuthError(models.AuthInvalidToken)
	}
	revoked, err := s.denylist.IsRevoked(ctx, claims.ID)
	if err != nil {
		return models.Actor{}, nil, fmt.Errorf("failed to check session: %w", err)
	}
	if revoked {
		return models.Actor{}, nil, models.NewAuthError(models.AuthInvalidToken)
	}
	role, err := models.ParseRole(claims.Role)
	if err != nil {
		return models.Actor{}, nil, models.NewAuthError(models.AuthInvalidToken)
	}
	return models.Actor{
		ID:      claims.Subject,
		Name:    claims.Name,
		Role:    role,
		Contact: claims.Contact,
		Email:   claims.Email,
	}, claims, nil
}

// SeedOfficials creates or refreshes the configured official accounts.
func (s *AuthService) SeedOfficials(ctx context.Context, seeds []config.OfficialSeed) error {
	for _, seed := range seeds {
		role, err := models.ParseRole(seed.Role)
		if err != nil || !role.IsOfficial() {
			return fmt.Errorf("official %q: invalid role %q", seed.Username, seed.Role)
		}
		if seed.Username == "" || seed.Password == "" {
			return fmt.Errorf("official %q: username and password are required", seed.Username)
		}
		hashed, err := bcrypt.GenerateFromPassword([]byte(seed.Password), bcrypt.DefaultCost)
		if err != nil {
			return fmt.Errorf("failed to hash password for %s: %w", seed.Username, err)
		}
		name := seed.Name
		if name == "" {
			name = seed.Username
		}
		official := &models.Official{
			ID:       uuid.New().String(),
			Username: seed.Username,
			Name:     name,
			Role:     role,
			Password: string(hashed),
		}
		if err := s.officials.Upsert(ctx, official); err != nil {
			return fmt.Errorf("failed to seed official %s: %w", seed.Username, err)
		}
	}
	slog.Info("Official accounts seeded", "count", len(seeds))
	return nil
}

func (s *AuthService) issue(actor models.Actor) (*models.Session, error) {
	token, claims, err := s.tokens.Issue(actor.ID, jwt.Claims{
		Role:    string(actor.Role),
		Name:    actor.Name,
		Contact: actor.Contact,
		Email:   actor.Email,
	})
	if err != nil {
		return nil, err
	}
	return &models.Session{
		Token:     token,
		ExpiresAt: claims.ExpiresAt.Time,
		Actor:     actor,
	}, nil
}

func (s *AuthService) allow(key string) bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	l, ok := s.limiters[key]
	if !ok {
		l = rate.NewLimiter(s.limitEvery, s.limitBurst)
		s.limiters[key] = l
	}
	return l.Allow()
}

func (s *AuthService) reset(key string) {
	s.mu.Lock()
	defer s.mu.Unlock()
	delete(s.limiters, key)
}

// PurgeIdleLimiters drops sign-in limiters that have refilled to their
// burst. Such a limiter behaves like a new one, so nothing is forgotten.
func (s *AuthService) PurgeIdleLimiters(ctx context.Context) (int, error) {
	return s.evictIdleLimiters(time.Now()), nil
}

func (s *AuthService) evictIdleLimiters(now time.Time) int {
	s.mu.Lock()
	defer s.mu.Unlock()
	n := 0
	for key, l := range s.limiters {
		if l.TokensAt(now) >= float64(s.limitBurst) {
			delete(s.limiters, key)
			n++
		}
	}
	return n
}

func farmerActor(f *models.Farmer) models.Actor {
	return models.Actor{
		ID:      f.ID,
		Name:    f.FullName,
		Role:    models.RoleFarmer,
		Contact: f.ContactNumber,
		Email:   f.Email,
	}
}
