package services

import (
	"encoding/base64"
	"errors"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/ArowuTest/agriclaim-backend/internal/models"
)

func fieldErrors(t *testing.T, err error) map[string]string {
	t.Helper()
	if err == nil {
		return nil
	}
	var verr *models.ValidationError
	require.True(t, errors.As(err, &verr))
	return verr.Fields
}

func TestValidateSubmission(t *testing.T) {
	now := time.Date(2025, 6, 1, 0, 0, 0, 0, time.UTC)

	tests := []struct {
		name   string
		mutate func(r *models.SubmitClaimRequest)
		field  string
	}{
		{"valid", func(r *models.SubmitClaimRequest) {}, ""},
		{"short crop", func(r *models.SubmitClaimRequest) { r.CropType = " W " }, "cropType"},
		{"missing cause", func(r *models.SubmitClaimRequest) { r.LossCause = "" }, "lossCause"},
		{"unknown cause", func(r *models.SubmitClaimRequest) { r.LossCause = "locusts" }, "lossCause"},
		{"bad date", func(r *models.SubmitClaimRequest) { r.LossDate = "2025-13-01" }, "lossDate"},
		{"future date", func(r *models.SubmitClaimRequest) { r.LossDate = "2025-07-01" }, "lossDate"},
		{"negative damage", func(r *models.SubmitClaimRequest) { r.DamageExtent = -1 }, "damageExtent"},
		{"bad claim id", func(r *models.SubmitClaimRequest) { r.ClaimID = "claim-1" }, "claimId"},
		{"unnamed evidence", func(r *models.SubmitClaimRequest) { r.Evidence = []models.Evidence{{URL: "https://x"}} }, "evidence"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			req := validSubmission()
			tt.mutate(req)
			fields := fieldErrors(t, validateSubmission(req, now))
			if tt.field == "" {
				assert.Empty(t, fields)
				return
			}
			assert.Contains(t, fields, tt.field)
		})
	}
}

func TestValidateSubmission_NormalizesCause(t *testing.T) {
	req := validSubmission()
	req.LossCause = "  HailStorm "
	require.NoError(t, validateSubmission(req, time.Now()))
	assert.Equal(t, "hailstorm", req.LossCause)
}

func TestEvidenceSizeLimit(t *testing.T) {
	big := base64.StdEncoding.EncodeToString(make([]byte, MaxEvidenceBytes+1))
	small := "data:image/png;base64," + base64.StdEncoding.EncodeToString([]byte("png"))

	verr := models.NewValidationError()
	validateEvidence(verr, "photos", []models.Evidence{{Name: "ok.png", Data: small}})
	assert.NoError(t, verr.OrNil())

	verr = models.NewValidationError()
	validateEvidence(verr, "photos", []models.Evidence{{Name: "huge.jpg", Data: big}})
	assert.Contains(t, verr.Fields["photos"], "huge.jpg")

	verr = models.NewValidationError()
	validateEvidence(verr, "photos", []models.Evidence{{Name: "hosted.mp4", URL: "https://x", Size: MaxEvidenceBytes * 2}})
	assert.Contains(t, verr.Fields, "photos")
}

func TestValidateDecisions(t *testing.T) {
	longReason := strings.Repeat("r", 10)

	assert.NoError(t, validateVerifierDecision(&models.VerifierDecisionRequest{Decision: models.ActionForward}))
	assert.NoError(t, validateVerifierDecision(&models.VerifierDecisionRequest{Decision: models.ActionReject, Remarks: longReason}))
	assert.Contains(t, fieldErrors(t, validateVerifierDecision(&models.VerifierDecisionRequest{Decision: models.ActionReject, Remarks: "   short   "})), "remarks")

	assert.NoError(t, validateFieldInspection(&models.FieldInspectionRequest{
		Notes: strings.Repeat("n", 20), VerifiedDamage: 100, Recommendation: models.ActionReject,
	}))
	assert.Contains(t, fieldErrors(t, validateFieldInspection(&models.FieldInspectionRequest{
		Notes: strings.Repeat("n", 20), Recommendation: models.ActionForward,
	})), "recommendation")

	assert.NoError(t, validateRevenueDecision(&models.RevenueDecisionRequest{Decision: models.ActionApprove, CompensationAmount: 0.5}))
	assert.Contains(t, fieldErrors(t, validateRevenueDecision(&models.RevenueDecisionRequest{Decision: models.ActionApprove, CompensationAmount: -3})), "compensationAmount")
	assert.Contains(t, fieldErrors(t, validateRevenueDecision(&models.RevenueDecisionRequest{Decision: models.ActionReject})), "remarks")

	assert.NoError(t, validateTreasuryDecision(&models.TreasuryDecisionRequest{Decision: models.ActionApprove}))
	assert.NoError(t, validateTreasuryDecision(&models.TreasuryDecisionRequest{Decision: models.ActionReject, Reason: longReason}))
	assert.Contains(t, fieldErrors(t, validateTreasuryDecision(&models.TreasuryDecisionRequest{Decision: "maybe"})), "decision")
}

func TestValidateDecisions_LengthBoundaries(t *testing.T) {
	text := func(n int) string { return "  " + strings.Repeat("x", n) + "  " }

	tests := []struct {
		name  string
		field string
		min   int
		check func(s string) error
	}{
		{"verifier reject remarks", "remarks", 10, func(s string) error {
			return validateVerifierDecision(&models.VerifierDecisionRequest{Decision: models.ActionReject, Remarks: s})
		}},
		{"field approve notes", "notes", 20, func(s string) error {
			return validateFieldInspection(&models.FieldInspectionRequest{Notes: s, Recommendation: models.ActionApprove})
		}},
		{"field reject notes", "notes", 20, func(s string) error {
			return validateFieldInspection(&models.FieldInspectionRequest{Notes: s, Recommendation: models.ActionReject})
		}},
		{"revenue reject remarks", "remarks", 10, func(s string) error {
			return validateRevenueDecision(&models.RevenueDecisionRequest{Decision: models.ActionReject, Remarks: s})
		}},
		{"treasury reject reason", "reason", 10, func(s string) error {
			return validateTreasuryDecision(&models.TreasuryDecisionRequest{Decision: models.ActionReject, Reason: s})
		}},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Contains(t, fieldErrors(t, tt.check(text(tt.min-1))), tt.field, "%d characters must fail", tt.min-1)
			assert.NoError(t, tt.check(text(tt.min)), "%d characters must pass", tt.min)
		})
	}
}

func TestValidateMissingFields(t *testing.T) {
	fields := fieldErrors(t, validateSubmission(&models.SubmitClaimRequest{}, time.Now()))
	assert.Contains(t, fields, "cropType")
	assert.Contains(t, fields, "lossCause")
	assert.Contains(t, fields, "lossDate")

	fields = fieldErrors(t, validateFieldInspection(&models.FieldInspectionRequest{}))
	assert.Contains(t, fields, "notes")
	assert.Contains(t, fields, "recommendation")

	assert.Contains(t, fieldErrors(t, validateVerifierDecision(&models.VerifierDecisionRequest{})), "decision")
	assert.Contains(t, fieldErrors(t, validateRevenueDecision(&models.RevenueDecisionRequest{})), "decision")
	assert.Contains(t, fieldErrors(t, validateTreasuryDecision(&models.TreasuryDecisionRequest{})), "decision")
}

func TestValidateRegistration(t *testing.T) {
	assert.NoError(t, validateRegistration(registration()))

	req := registration()
	req.Email = "ramesh@"
	req.Address = "short"
	req.LandType = "x"
	fields := fieldErrors(t, validateRegistration(req))
	assert.Contains(t, fields, "email")
	assert.Contains(t, fields, "address")
	assert.Contains(t, fields, "landType")
}
