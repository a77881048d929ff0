package models

import (
	"time"
)

// Evidence is a photo or document attached to a claim or an inspection.
// Either URL (hosted file) or Data (inline base64) is set.
type Evidence struct {
	Name string `bson:"name" json:"name"`
	Type string `bson:"type,omitempty" json:"type,omitempty"`
	URL  string `bson:"url,omitempty" json:"url,omitempty"`
	Data string `bson:"data,omitempty" json:"data,omitempty"`
	Size int64  `bson:"size,omitempty" json:"size,omitempty"`
}

// StatusHistoryEntry is one audit record. Entries are only ever appended.
type StatusHistoryEntry struct {
	Stage     string      `bson:"stage" json:"stage"`
	Status    ClaimStatus `bson:"status" json:"status"`
	Timestamp time.Time   `bson:"timestamp" json:"timestamp"`
	Actor     string      `bson:"actor,omitempty" json:"actor,omitempty"`
	RequestID string      `bson:"requestId,omitempty" json:"requestId,omitempty"`
}

type VerifierReview struct {
	Remarks    string    `bson:"remarks,omitempty" json:"remarks,omitempty"`
	Officer    string    `bson:"officer" json:"officer"`
	ReviewedAt time.Time `bson:"reviewedAt" json:"reviewedAt"`
}

type FieldReport struct {
	Notes          string     `bson:"notes" json:"notes"`
	OriginalDamage int        `bson:"originalDamage" json:"originalDamage"`
	VerifiedDamage int        `bson:"verifiedDamage" json:"verifiedDamage"`
	Recommendation Action     `bson:"recommendation" json:"recommendation"`
	Inspector      string     `bson:"inspector" json:"inspector"`
	Photos         []Evidence `bson:"photos,omitempty" json:"photos,omitempty"`
	InspectedAt    time.Time  `bson:"inspectedAt" json:"inspectedAt"`
}

type RevenueAssessment struct {
	EstimatedCompensation float64   `bson:"estimatedCompensation,omitempty" json:"estimatedCompensation,omitempty"`
	Remarks               string    `bson:"remarks,omitempty" json:"remarks,omitempty"`
	Officer               string    `bson:"officer" json:"officer"`
	ProcessedAt           time.Time `bson:"processedAt" json:"processedAt"`
}

type TreasuryDecision struct {
	Remarks         string    `bson:"remarks,omitempty" json:"remarks,omitempty"`
	RejectionReason string    `bson:"rejectionReason,omitempty" json:"rejectionReason,omitempty"`
	Officer         string    `bson:"officer" json:"officer"`
	DecidedAt       time.Time `bson:"decidedAt" json:"decidedAt"`
}

// Claim represents a crop loss claim and its review trail.
type Claim struct {
	ID            string     `bson:"_id" json:"claimId"`
	FarmerID      string     `bson:"farmerId" json:"farmerId"`
	FarmerName    string     `bson:"farmerName" json:"farmerName"`
	FarmerContact string     `bson:"farmerContact" json:"farmerContact"`
	FarmerEmail   string     `bson:"farmerEmail,omitempty" json:"farmerEmail,omitempty"`
	CropType      string     `bson:"cropType" json:"cropType"`
	LossCause     string     `bson:"lossCause" json:"lossCause"`
	LossDate      string     `bson:"lossDate" json:"lossDate"`
	DamageExtent  int        `bson:"damageExtent" json:"damageExtent"`
	Description   string     `bson:"description,omitempty" json:"description,omitempty"`
	Evidence      []Evidence `bson:"evidence,omitempty" json:"evidence,omitempty"`

	Status        ClaimStatus          `bson:"status" json:"status"`
	StatusHistory []StatusHistoryEntry `bson:"statusHistory" json:"statusHistory"`

	VerifierReview    *VerifierReview    `bson:"verifierReview,omitempty" json:"verifierReview,omitempty"`
	FieldReport       *FieldReport       `bson:"fieldReport,omitempty" json:"fieldReport,omitempty"`
	RevenueAssessment *RevenueAssessment `bson:"revenueAssessment,omitempty" json:"revenueAssessment,omitempty"`
	TreasuryDecision  *TreasuryDecision  `bson:"treasuryDecision,omitempty" json:"treasuryDecision,omitempty"`

	CreatedAt time.Time `bson:"createdAt" json:"createdAt"`
	UpdatedAt time.Time `bson:"updatedAt" json:"updatedAt"`

	// PendingSync marks a copy that so far only exists in the local cache.
	PendingSync bool `bson:"-" json:"pendingSync,omitempty"`
}

// StampCreated sets the creation time for a new record. A non-zero
// CreatedAt, such as an imported export date, is kept.
func (c *Claim) StampCreated(now time.Time) {
	if c.CreatedAt.IsZero() {
		c.CreatedAt = now
	}
	c.UpdatedAt = c.CreatedAt
}

// FarmerRef identifies a claim owner. Rows written by the old front end
// carry only the contact number, so Contact matches claims without a
// farmer id.
type FarmerRef struct {
	ID      string
	Contact string
}

// Owns reports whether the claim belongs to the farmer.
func (f FarmerRef) Owns(c *Claim) bool {
	if c.FarmerID != "" {
		return c.FarmerID == f.ID
	}
	return f.Contact != "" && c.FarmerContact == f.Contact
}

// HasRequest reports whether a history entry was written by requestID.
func (c *Claim) HasRequest(requestID string) bool {
	if requestID == "" {
		return false
	}
	for _, h := range c.StatusHistory {
		if h.RequestID == requestID {
			return true
		}
	}
	return false
}

// LastEntry returns the newest history entry, if any.
func (c *Claim) LastEntry() (StatusHistoryEntry, bool) {
	if len(c.StatusHistory) == 0 {
		return StatusHistoryEntry{}, false
	}
	return c.StatusHistory[len(c.StatusHistory)-1], true
}

// Compensation is the approved payout, zero until Revenue approves.
func (c *Claim) Compensation() float64 {
	if c.RevenueAssessment == nil {
		return 0
	}
	return c.RevenueAssessment.EstimatedCompensation
}

// Clone returns a deep enough copy for callers that mutate slices.
func (c *Claim) Clone() *Claim {
	cp := *c
	cp.Evidence = append([]Evidence(nil), c.Evidence...)
	cp.StatusHistory = append([]StatusHistoryEntry(nil), c.StatusHistory...)
	if c.VerifierReview != nil {
		v := *c.VerifierReview
		cp.VerifierReview = &v
	}
	if c.FieldReport != nil {
		f := *c.FieldReport
		f.Photos = append([]Evidence(nil), c.FieldReport.Photos...)
		cp.FieldReport = &f
	}
	if c.RevenueAssessment != nil {
		r := *c.RevenueAssessment
		cp.RevenueAssessment = &r
	}
	if c.TreasuryDecision != nil {
		t := *c.TreasuryDecision
		cp.TreasuryDecision = &t
	}
	return &cp
}

// SubmitClaimRequest is what a farmer posts to open a claim.
type SubmitClaimRequest struct {
	ClaimID      string     `json:"claimId"`
	CropType     string     `json:"cropType"`
	LossCause    string     `json:"lossCause"`
	LossDate     string     `json:"lossDate"`
	DamageExtent int        `json:"damageExtent"`
	Description  string     `json:"description"`
	Evidence     []Evidence `json:"evidence"`
}

// MutationOptions are carried by every official action.
type MutationOptions struct {
	ExpectedStatus ClaimStatus `json:"expectedStatus,omitempty"`
	RequestID      string      `json:"requestId,omitempty"`
}

type VerifierDecisionRequest struct {
	MutationOptions
	Decision Action `json:"decision"`
	Remarks  string `json:"remarks"`
}

type FieldInspectionRequest struct {
	MutationOptions
	Notes          string     `json:"notes"`
	VerifiedDamage int        `json:"verifiedDamage"`
	Recommendation Action     `json:"recommendation"`
	Photos         []Evidence `json:"photos"`
}

type RevenueDecisionRequest struct {
	MutationOptions
	Decision           Action  `json:"decision"`
	CompensationAmount float64 `json:"compensationAmount"`
	Remarks            string  `json:"remarks"`
}

type TreasuryDecisionRequest struct {
	MutationOptions
	Decision Action `json:"decision"`
	Remarks  string `json:"remarks"`
	Reason   string `json:"reason"`
}
