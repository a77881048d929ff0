package services

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/google/uuid"

	"github.com/ArowuTest/agriclaim-backend/internal/metrics"
	"github.com/ArowuTest/agriclaim-backend/internal/models"
	"github.com/ArowuTest/agriclaim-backend/internal/repositories"
	"github.com/ArowuTest/agriclaim-backend/internal/utils"
)

// ClaimService runs the claim mutation protocol: role gate, validation,
// workflow lookup and a conditional write through the repository.
type ClaimService struct {
	claims   repositories.ClaimRepository
	notifier Notifier
	now      func() time.Time
}

// NewClaimService creates a new ClaimService. notifier may be nil.
func NewClaimService(claims repositories.ClaimRepository, notifier Notifier) *ClaimService {
	return &ClaimService{
		claims:   claims,
		notifier: notifier,
		now:      func() time.Time { return time.Now().UTC() },
	}
}

// SubmitClaim opens a new claim for the calling farmer. Resubmitting an id
// the same farmer already owns returns the stored claim.
func (s *ClaimService) SubmitClaim(ctx context.Context, actor models.Actor, req *models.SubmitClaimRequest) (*models.Claim, error) {
	if actor.Role != models.RoleFarmer {
		return nil, fmt.Errorf("%w: only farmers can submit claims", models.ErrPermission)
	}
	now := s.now()
	if err := validateSubmission(req, now); err != nil {
		return nil, err
	}

	id := req.ClaimID
	if id != "" {
		if existing, err := s.ownedReplay(ctx, actor, id); existing != nil || err != nil {
			return existing, err
		}
	} else {
		id = utils.GenerateClaimID(now)
	}

	claim := &models.Claim{
		ID:            id,
		FarmerID:      actor.ID,
		FarmerName:    actor.Name,
		FarmerContact: actor.Contact,
		FarmerEmail:   actor.Email,
		CropType:      req.CropType,
		LossCause:     req.LossCause,
		LossDate:      req.LossDate,
		DamageExtent:  req.DamageExtent,
		Description:   req.Description,
		Evidence:      req.Evidence,
		Status:        models.StatusSubmitted,
		StatusHistory: []models.StatusHistoryEntry{{
			Stage:     models.RoleFarmer.Stage(),
			Status:    models.StatusSubmitted,
			Timestamp: now,
			Actor:     actor.Name,
		}},
	}

	if err := s.claims.Create(ctx, claim); err != nil {
		if errors.Is(err, models.ErrDuplicate) {
			// lost a race with our own retry
			if existing, rerr := s.ownedReplay(ctx, actor, id); existing != nil || rerr != nil {
				return existing, rerr
			}
		}
		return nil, fmt.Errorf("failed to submit claim: %w", err)
	}

	metrics.ClaimsSubmitted.Inc()
	slog.Info("Claim submitted", "claimId", claim.ID, "farmerId", actor.ID, "pendingSync", claim.PendingSync)
	s.notify(ctx, claim)
	return claim, nil
}

// ownedReplay returns the stored claim when id already belongs to actor.
// A (nil, nil) result means id is free.
func (s *ClaimService) ownedReplay(ctx context.Context, actor models.Actor, id string) (*models.Claim, error) {
	existing, err := s.claims.FindByID(ctx, id)
	switch {
	case errors.Is(err, models.ErrNotFound), errors.Is(err, models.ErrTransport):
		// unreachable store: let Create decide, it queues locally
		return nil, nil
	case err != nil:
		return nil, fmt.Errorf("failed to check claim %s: %w", id, err)
	case !actor.FarmerRef().Owns(existing):
		return nil, fmt.Errorf("%w: claim id %s", models.ErrDuplicate, id)
	}
	return existing, nil
}

// VerifierDecision forwards a submitted claim to the field officer or rejects it.
func (s *ClaimService) VerifierDecision(ctx context.Context, claimID string, actor models.Actor, req *models.VerifierDecisionRequest) (*models.Claim, error) {
	if err := authorize(actor, models.RoleVerifier); err != nil {
		return nil, err
	}
	if err := validateVerifierDecision(req); err != nil {
		return nil, err
	}
	return s.decide(ctx, claimID, actor, models.RoleVerifier, req.Decision, req.MutationOptions,
		func(_ *models.Claim, t *models.Transition, at time.Time) {
			t.VerifierReview = &models.VerifierReview{
				Remarks:    req.Remarks,
				Officer:    actorName(actor),
				ReviewedAt: at,
			}
		})
}

// FieldInspect records the field officer's inspection report.
func (s *ClaimService) FieldInspect(ctx context.Context, claimID string, actor models.Actor, req *models.FieldInspectionRequest) (*models.Claim, error) {
	if err := authorize(actor, models.RoleFieldOfficer); err != nil {
		return nil, err
	}
	if err := validateFieldInspection(req); err != nil {
		return nil, err
	}
	return s.decide(ctx, claimID, actor, models.RoleFieldOfficer, req.Recommendation, req.MutationOptions,
		func(c *models.Claim, t *models.Transition, at time.Time) {
			t.FieldReport = &models.FieldReport{
				Notes:          req.Notes,
				OriginalDamage: c.DamageExtent,
				VerifiedDamage: req.VerifiedDamage,
				Recommendation: req.Recommendation,
				Inspector:      actorName(actor),
				Photos:         req.Photos,
				InspectedAt:    at,
			}
		})
}

// RevenueDecision sets the compensation amount or rejects the claim.
func (s *ClaimService) RevenueDecision(ctx context.Context, claimID string, actor models.Actor, req *models.RevenueDecisionRequest) (*models.Claim, error) {
	if err := authorize(actor, models.RoleRevenueOfficer); err != nil {
		return nil, err
	}
	if err := validateRevenueDecision(req); err != nil {
		return nil, err
	}
	return s.decide(ctx, claimID, actor, models.RoleRevenueOfficer, req.Decision, req.MutationOptions,
		func(_ *models.Claim, t *models.Transition, at time.Time) {
			assessment := &models.RevenueAssessment{
				Remarks:     req.Remarks,
				Officer:     actorName(actor),
				ProcessedAt: at,
			}
			if req.Decision == models.ActionApprove {
				assessment.EstimatedCompensation = req.CompensationAmount
			}
			t.RevenueAssessment = assessment
		})
}

// TreasuryDecision approves payment or rejects the claim. The compensation
// set by revenue is left as is.
func (s *ClaimService) TreasuryDecision(ctx context.Context, claimID string, actor models.Actor, req *models.TreasuryDecisionRequest) (*models.Claim, error) {
	if err := authorize(actor, models.RoleTreasuryOfficer); err != nil {
		return nil, err
	}
	if err := validateTreasuryDecision(req); err != nil {
		return nil, err
	}
	return s.decide(ctx, claimID, actor, models.RoleTreasuryOfficer, req.Decision, req.MutationOptions,
		func(_ *models.Claim, t *models.Transition, at time.Time) {
			decision := &models.TreasuryDecision{
				Remarks:   req.Remarks,
				Officer:   actorName(actor),
				DecidedAt: at,
			}
			if req.Decision == models.ActionReject {
				decision.RejectionReason = req.Reason
			}
			t.TreasuryDecision = decision
		})
}

type annotateFunc func(c *models.Claim, t *models.Transition, at time.Time)

func (s *ClaimService) decide(ctx context.Context, claimID string, actor models.Actor, stage models.Role,
	action models.Action, opts models.MutationOptions, annotate annotateFunc) (*models.Claim, error) {

	claim, err := s.claims.FindByID(ctx, claimID)
	if err != nil {
		return nil, fmt.Errorf("failed to load claim %s: %w", claimID, err)
	}
	if claim.HasRequest(opts.RequestID) {
		slog.Info("Replayed request returned stored claim", "claimId", claimID, "requestId", opts.RequestID)
		return claim, nil
	}
	if opts.ExpectedStatus != "" && claim.Status != opts.ExpectedStatus {
		metrics.Conflicts.WithLabelValues(string(stage)).Inc()
		return nil, fmt.Errorf("%w: claim %s is %q, you last saw %q",
			models.ErrConflict, claimID, claim.Status.Label(), opts.ExpectedStatus.Label())
	}

	requestID := opts.RequestID
	if requestID == "" {
		requestID = uuid.New().String()
	}
	now := s.now()
	t, err := models.NewTransition(claim, stage, action, actorName(actor), requestID, now)
	if err != nil {
		return nil, err
	}
	annotate(claim, t, now)

	updated, err := s.claims.ApplyTransition(ctx, t)
	if err != nil {
		if errors.Is(err, models.ErrConflict) {
			metrics.Conflicts.WithLabelValues(string(stage)).Inc()
		}
		return nil, fmt.Errorf("failed to update claim %s: %w", claimID, err)
	}

	metrics.Transitions.WithLabelValues(string(stage), string(updated.Status)).Inc()
	slog.Info("Claim status updated",
		"claimId", claimID, "from", t.From, "to", updated.Status,
		"role", stage, "actor", actor.ID, "requestId", requestID, "pendingSync", updated.PendingSync)
	s.notify(ctx, updated)
	return updated, nil
}

// GetClaim returns one claim. Farmers only see their own.
func (s *ClaimService) GetClaim(ctx context.Context, actor models.Actor, claimID string) (*models.Claim, error) {
	claim, err := s.claims.FindByID(ctx, claimID)
	if err != nil {
		return nil, fmt.Errorf("failed to load claim %s: %w", claimID, err)
	}
	if actor.Role == models.RoleFarmer && !actor.FarmerRef().Owns(claim) {
		return nil, fmt.Errorf("claim %s: %w", claimID, models.ErrNotFound)
	}
	return claim, nil
}

// ListFarmerClaims returns the calling farmer's claims, newest first.
func (s *ClaimService) ListFarmerClaims(ctx context.Context, actor models.Actor) ([]*models.Claim, error) {
	if actor.Role != models.RoleFarmer {
		return nil, fmt.Errorf("%w: only farmers have their own claims", models.ErrPermission)
	}
	claims, err := s.claims.FindByFarmer(ctx, actor.FarmerRef())
	if err != nil {
		return nil, fmt.Errorf("failed to list claims: %w", err)
	}
	models.SortNewestFirst(claims)
	return claims, nil
}

func (s *ClaimService) notify(ctx context.Context, claim *models.Claim) {
	if s.notifier != nil {
		s.notifier.ClaimChanged(ctx, claim.Clone())
	}
}

func authorize(actor models.Actor, stage models.Role) error {
	if !actor.Role.CanActAs(stage) {
		return fmt.Errorf("%w: %s cannot act as %s", models.ErrPermission, actor.Role, stage.Stage())
	}
	return nil
}

func actorName(actor models.Actor) string {
	if actor.Name != "" {
		return actor.Name
	}
	return actor.ID
}
