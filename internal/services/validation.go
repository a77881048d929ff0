package services

import (
	"encoding/base64"
	"regexp"
	"strings"
	"time"

	"github.com/ArowuTest/agriclaim-backend/internal/models"
	"github.com/ArowuTest/agriclaim-backend/internal/utils"
)

// MaxEvidenceBytes caps a single inline evidence file.
const MaxEvidenceBytes = 5 * 1024 * 1024

const (
	minRejectReason  = 10
	minFieldNotes    = 20
	minCropType      = 2
	minFullName      = 3
	minAddress       = 10
	minLandType      = 2
	minPasswordChars = 6
)

// LossCauses are the accepted values for Claim.LossCause.
var LossCauses = []string{"drought", "flood", "pest", "disease", "hailstorm", "cyclone", "fire", "other"}

var (
	emailPattern   = regexp.MustCompile(`^[^\s@]+@[^\s@]+\.[^\s@]+$`)
	namePattern    = regexp.MustCompile(`^[A-Za-z\s]+$`)
	contactPattern = regexp.MustCompile(`^\d{10}$`)
	aadharPattern  = regexp.MustCompile(`^\d{12}$`)
)

const lossDateLayout = "2006-01-02"

func normalizeLossCause(cause string) (string, bool) {
	c := strings.ToLower(strings.TrimSpace(cause))
	for _, known := range LossCauses {
		if c == known {
			return c, true
		}
	}
	return c, false
}

// validateSubmission checks a new claim and normalizes its loss cause.
func validateSubmission(req *models.SubmitClaimRequest, now time.Time) error {
	verr := models.NewValidationError()

	req.CropType = strings.TrimSpace(req.CropType)
	if utils.TextLength(req.CropType) < minCropType {
		verr.Add("cropType", "Crop type must be at least 2 characters")
	}

	if strings.TrimSpace(req.LossCause) == "" {
		verr.Add("lossCause", "Cause of loss is required")
	} else if cause, ok := normalizeLossCause(req.LossCause); !ok {
		verr.Add("lossCause", "Unknown cause of loss")
	} else {
		req.LossCause = cause
	}

	if req.LossDate == "" {
		verr.Add("lossDate", "Date of loss is required")
	} else if d, err := time.Parse(lossDateLayout, req.LossDate); err != nil {
		verr.Add("lossDate", "Date of loss must be YYYY-MM-DD")
	} else if d.After(now) {
		verr.Add("lossDate", "Date of loss cannot be in the future")
	}

	if req.DamageExtent < 0 || req.DamageExtent > 100 {
		verr.Add("damageExtent", "Damage extent must be between 0 and 100")
	}

	if req.ClaimID != "" && !utils.IsClaimID(req.ClaimID) {
		verr.Add("claimId", "Claim id must look like CLM<digits>")
	}

	validateEvidence(verr, "evidence", req.Evidence)
	return verr.OrNil()
}

func validateEvidence(verr *models.ValidationError, field string, items []models.Evidence) {
	for _, e := range items {
		if strings.TrimSpace(e.Name) == "" {
			verr.Add(field, "Every file needs a name")
			continue
		}
		if e.URL == "" && e.Data == "" {
			verr.Add(field, e.Name+" has no content")
			continue
		}
		if evidenceSize(e) > MaxEvidenceBytes {
			verr.Add(field, e.Name+" is larger than 5MB")
		}
	}
}

// evidenceSize prefers the declared size and otherwise estimates the decoded
// length of the inline payload, ignoring a data URL prefix.
func evidenceSize(e models.Evidence) int64 {
	if e.Data == "" {
		return e.Size
	}
	data := e.Data
	if i := strings.Index(data, ","); i >= 0 && strings.HasPrefix(data, "data:") {
		data = data[i+1:]
	}
	decoded := int64(base64.StdEncoding.DecodedLen(len(data)))
	if decoded > e.Size {
		return decoded
	}
	return e.Size
}

func validateVerifierDecision(req *models.VerifierDecisionRequest) error {
	verr := models.NewValidationError()
	switch req.Decision {
	case models.ActionForward:
	case models.ActionReject:
		if utils.TextLength(req.Remarks) < minRejectReason {
			verr.Add("remarks", "Please provide a reason for rejection (at least 10 characters)")
		}
	default:
		verr.Add("decision", "Decision must be forward or reject")
	}
	return verr.OrNil()
}

func validateFieldInspection(req *models.FieldInspectionRequest) error {
	verr := models.NewValidationError()
	if utils.TextLength(req.Notes) < minFieldNotes {
		verr.Add("notes", "Inspection notes must be at least 20 characters")
	}
	if req.VerifiedDamage < 0 || req.VerifiedDamage > 100 {
		verr.Add("verifiedDamage", "Verified damage must be between 0 and 100")
	}
	switch req.Recommendation {
	case models.ActionApprove, models.ActionReject:
	default:
		verr.Add("recommendation", "Recommendation must be approve or reject")
	}
	validateEvidence(verr, "photos", req.Photos)
	return verr.OrNil()
}

func validateRevenueDecision(req *models.RevenueDecisionRequest) error {
	verr := models.NewValidationError()
	switch req.Decision {
	case models.ActionApprove:
		if req.CompensationAmount <= 0 {
			verr.Add("compensationAmount", "Please enter a valid compensation amount")
		}
	case models.ActionReject:
		if utils.TextLength(req.Remarks) < minRejectReason {
			verr.Add("remarks", "Please provide a reason for rejection (at least 10 characters)")
		}
	default:
		verr.Add("decision", "Decision must be approve or reject")
	}
	return verr.OrNil()
}

func validateTreasuryDecision(req *models.TreasuryDecisionRequest) error {
	verr := models.NewValidationError()
	switch req.Decision {
	case models.ActionApprove:
	case models.ActionReject:
		if utils.TextLength(req.Reason) < minRejectReason {
			verr.Add("reason", "Please provide a reason for rejection (at least 10 characters)")
		}
	default:
		verr.Add("decision", "Decision must be approve or reject")
	}
	return verr.OrNil()
}

// validateRegistration mirrors the farmer sign-up form checks.
func validateRegistration(req *models.RegisterRequest) error {
	verr := models.NewValidationError()

	name := strings.TrimSpace(req.FullName)
	if len(name) < minFullName || !namePattern.MatchString(name) {
		verr.Add("fullName", "Full name must be at least 3 characters and contain only letters")
	}
	if !emailPattern.MatchString(strings.TrimSpace(req.Email)) {
		verr.Add("email", "Please enter a valid email address")
	}
	if !contactPattern.MatchString(strings.TrimSpace(req.ContactNumber)) {
		verr.Add("contactNumber", "Contact number must be 10 digits")
	}
	if !aadharPattern.MatchString(strings.TrimSpace(req.AadharID)) {
		verr.Add("aadharId", "Aadhar ID must be 12 digits")
	}
	if utils.TextLength(req.Address) < minAddress {
		verr.Add("address", "Address must be at least 10 characters")
	}
	if req.LandArea <= 0 {
		verr.Add("landArea", "Land area must be greater than 0")
	}
	if utils.TextLength(req.LandType) < minLandType {
		verr.Add("landType", "Land type must be at least 2 characters")
	}
	if len(req.Password) < minPasswordChars {
		verr.Add("password", "Password must be at least 6 characters")
	}
	return verr.OrNil()
}
