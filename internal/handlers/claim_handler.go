package handlers

import (
	"net/http"

	"github.com/gin-gonic/gin"

	"github.com/ArowuTest/agriclaim-backend/internal/models"
	"github.com/ArowuTest/agriclaim-backend/internal/services"
)

// ClaimHandler handles claim submission and the official review actions
type ClaimHandler struct {
	claimService *services.ClaimService
}

// NewClaimHandler creates a new ClaimHandler
func NewClaimHandler(claimService *services.ClaimService) *ClaimHandler {
	return &ClaimHandler{claimService: claimService}
}

// SubmitClaim handles POST /claims
func (h *ClaimHandler) SubmitClaim(c *gin.Context) {
	actor, ok := currentActor(c)
	if !ok {
		return
	}
	var req models.SubmitClaimRequest
	if !bindJSON(c, &req) {
		return
	}

	claim, err := h.claimService.SubmitClaim(c.Request.Context(), actor, &req)
	if err != nil {
		respondError(c, err)
		return
	}
	status := http.StatusCreated
	if claim.PendingSync {
		status = http.StatusAccepted
	}
	c.JSON(status, claim)
}

// ListMyClaims handles GET /claims/mine
func (h *ClaimHandler) ListMyClaims(c *gin.Context) {
	actor, ok := currentActor(c)
	if !ok {
		return
	}
	claims, err := h.claimService.ListFarmerClaims(c.Request.Context(), actor)
	if err != nil {
		respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"claims": claims, "total": len(claims)})
}

// GetClaim handles GET /claims/:id
func (h *ClaimHandler) GetClaim(c *gin.Context) {
	actor, ok := currentActor(c)
	if !ok {
		return
	}
	claim, err := h.claimService.GetClaim(c.Request.Context(), actor, c.Param("id"))
	if err != nil {
		respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, claim)
}

// VerifierDecision handles POST /claims/:id/verification
func (h *ClaimHandler) VerifierDecision(c *gin.Context) {
	var req models.VerifierDecisionRequest
	h.mutate(c, &req, &req.MutationOptions, func(actor models.Actor) (*models.Claim, error) {
		return h.claimService.VerifierDecision(c.Request.Context(), c.Param("id"), actor, &req)
	})
}

// FieldInspection handles POST /claims/:id/inspection
func (h *ClaimHandler) FieldInspection(c *gin.Context) {
	var req models.FieldInspectionRequest
	h.mutate(c, &req, &req.MutationOptions, func(actor models.Actor) (*models.Claim, error) {
		return h.claimService.FieldInspect(c.Request.Context(), c.Param("id"), actor, &req)
	})
}

// RevenueDecision handles POST /claims/:id/revenue-decision
func (h *ClaimHandler) RevenueDecision(c *gin.Context) {
	var req models.RevenueDecisionRequest
	h.mutate(c, &req, &req.MutationOptions, func(actor models.Actor) (*models.Claim, error) {
		return h.claimService.RevenueDecision(c.Request.Context(), c.Param("id"), actor, &req)
	})
}

// TreasuryDecision handles POST /claims/:id/treasury-decision
func (h *ClaimHandler) TreasuryDecision(c *gin.Context) {
	var req models.TreasuryDecisionRequest
	h.mutate(c, &req, &req.MutationOptions, func(actor models.Actor) (*models.Claim, error) {
		return h.claimService.TreasuryDecision(c.Request.Context(), c.Param("id"), actor, &req)
	})
}

// mutate binds body into req, fills the request id from the
// Idempotency-Key header when the body has none, and runs call.
// A change that was only queued locally answers 202.
func (h *ClaimHandler) mutate(c *gin.Context, req interface{}, opts *models.MutationOptions, call func(models.Actor) (*models.Claim, error)) {
	actor, ok := currentActor(c)
	if !ok {
		return
	}
	if !bindJSON(c, req) {
		return
	}
	if opts.RequestID == "" {
		opts.RequestID = c.GetHeader("Idempotency-Key")
	}

	claim, err := call(actor)
	if err != nil {
		respondError(c, err)
		return
	}
	status := http.StatusOK
	if claim.PendingSync {
		status = http.StatusAccepted
	}
	c.JSON(status, claim)
}
