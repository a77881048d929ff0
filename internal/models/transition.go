package models

import (
	"fmt"
	"time"
)

// Transition is a single conditional status change. Repositories apply it
// only when the stored claim is still in From.
type Transition struct {
	ClaimID string             `json:"claimId"`
	From    ClaimStatus        `json:"from"`
	To      ClaimStatus        `json:"to"`
	Entry   StatusHistoryEntry `json:"entry"`

	VerifierReview    *VerifierReview    `json:"verifierReview,omitempty"`
	FieldReport       *FieldReport       `json:"fieldReport,omitempty"`
	RevenueAssessment *RevenueAssessment `json:"revenueAssessment,omitempty"`
	TreasuryDecision  *TreasuryDecision  `json:"treasuryDecision,omitempty"`
}

// NewTransition resolves the destination status through the workflow table
// and prepares the history entry.
func NewTransition(c *Claim, stage Role, action Action, actor, requestID string, at time.Time) (*Transition, error) {
	to, err := NextStatus(c.Status, stage, action)
	if err != nil {
		return nil, err
	}
	return &Transition{
		ClaimID: c.ID,
		From:    c.Status,
		To:      to,
		Entry: StatusHistoryEntry{
			Stage:     stage.Stage(),
			Status:    to,
			Timestamp: at,
			Actor:     actor,
			RequestID: requestID,
		},
	}, nil
}

// Apply mutates c in place. It fails with ErrConflict if c has moved on.
func (t *Transition) Apply(c *Claim) error {
	if c.Status != t.From {
		return fmt.Errorf("%w: claim %s is %q, expected %q", ErrConflict, c.ID, c.Status, t.From)
	}
	c.Status = t.To
	c.StatusHistory = append(c.StatusHistory, t.Entry)
	if t.VerifierReview != nil {
		c.VerifierReview = t.VerifierReview
	}
	if t.FieldReport != nil {
		c.FieldReport = t.FieldReport
	}
	if t.RevenueAssessment != nil {
		c.RevenueAssessment = t.RevenueAssessment
	}
	if t.TreasuryDecision != nil {
		c.TreasuryDecision = t.TreasuryDecision
	}
	if t.Entry.Timestamp.After(c.UpdatedAt) {
		c.UpdatedAt = t.Entry.Timestamp
	}
	return nil
}

// Annotations returns the per-role fields set by t keyed by their stored name.
func (t *Transition) Annotations() map[string]interface{} {
	out := map[string]interface{}{}
	if t.VerifierReview != nil {
		out["verifierReview"] = t.VerifierReview
	}
	if t.FieldReport != nil {
		out["fieldReport"] = t.FieldReport
	}
	if t.RevenueAssessment != nil {
		out["revenueAssessment"] = t.RevenueAssessment
	}
	if t.TreasuryDecision != nil {
		out["treasuryDecision"] = t.TreasuryDecision
	}
	return out
}
