// Package legacy implements the claim port over the spreadsheet endpoint.
//
// The endpoint has no compare-and-set: ApplyTransition re-reads the row and
// compares the status before writing, which narrows the race window but
// cannot close it. Watch is a poller that diffs successive snapshots.
package legacy

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/ArowuTest/agriclaim-backend/internal/models"
	"github.com/ArowuTest/agriclaim-backend/internal/repositories"
	"github.com/ArowuTest/agriclaim-backend/pkg/sheetsapi"
)

var _ repositories.ClaimRepository = (*ClaimRepository)(nil)

// SheetsClient is the subset of sheetsapi.Client the repository uses.
type SheetsClient interface {
	GetAllClaims(ctx context.Context) ([]json.RawMessage, error)
	GetClaims(ctx context.Context, contact string) ([]json.RawMessage, error)
	SubmitClaim(ctx context.Context, claim interface{}) error
	UpdateClaim(ctx context.Context, fields map[string]interface{}) error
	UpdateClaimInspection(ctx context.Context, claimID string, report interface{}, newStatus string, extra map[string]interface{}) error
}

// ClaimRepository reads and writes claims through the spreadsheet endpoint.
type ClaimRepository struct {
	client       SheetsClient
	pollInterval time.Duration
}

// NewClaimRepository creates a new legacy ClaimRepository
func NewClaimRepository(client SheetsClient, pollInterval time.Duration) *ClaimRepository {
	if pollInterval <= 0 {
		pollInterval = 10 * time.Second
	}
	return &ClaimRepository{client: client, pollInterval: pollInterval}
}

// row is a spreadsheet record. Older rows carry display-string statuses,
// flat officer fields, string numbers and Firestore timestamps instead of
// the nested annotations. Fields declared here shadow the embedded claim's.
type row struct {
	models.Claim
	RawStatus       string               `json:"status"`
	DamageExtent    flexNumber           `json:"damageExtent"`
	VerifiedDamage  flexNumber           `json:"verifiedDamage"`
	Files           []models.Evidence    `json:"files"`
	StatusHistory   []legacyHistoryEntry `json:"statusHistory"`
	FieldReport     *legacyReport        `json:"fieldReport"`
	InspectionForm  *legacyReport        `json:"fieldInspectionReport"`
	InspectionPost  *legacyReport        `json:"inspectionReport"`
	CreatedAt       flexTime             `json:"createdAt"`
	UpdatedAt       flexTime             `json:"updatedAt"`
	SubmittedOn     flexTime             `json:"submittedOn"`
	Timestamp       flexTime             `json:"timestamp"`
	RejectedBy      string               `json:"rejectedBy,omitempty"`
	VerifierRemarks string               `json:"verifierRemarks,omitempty"`
	TreasuryRemarks string               `json:"treasuryRemarks,omitempty"`
	TreasuryReason  string               `json:"treasuryRejectionReason,omitempty"`
	RevenueRemarks  string               `json:"revenueRemarks,omitempty"`
	EstimatedPayout flexNumber           `json:"estimatedCompensation,omitempty"`
}

func decodeRow(raw json.RawMessage) (*models.Claim, error) {
	var r row
	if err := json.Unmarshal(raw, &r); err != nil {
		return nil, err
	}
	if r.ID == "" {
		return nil, errors.New("row has no claimId")
	}
	status, err := models.ParseLegacyStatus(r.RawStatus, r.RejectedBy)
	if err != nil {
		return nil, err
	}
	c := r.Claim
	c.Status = status
	c.DamageExtent = r.DamageExtent.Int()
	if len(c.Evidence) == 0 {
		c.Evidence = r.Files
	}
	c.CreatedAt = firstTime(r.CreatedAt, r.SubmittedOn, r.Timestamp)
	c.UpdatedAt = firstTime(r.UpdatedAt, r.Timestamp, r.CreatedAt, r.SubmittedOn)

	c.StatusHistory = make([]models.StatusHistoryEntry, 0, len(r.StatusHistory))
	for _, h := range r.StatusHistory {
		entry := models.StatusHistoryEntry{
			Stage:     h.Stage,
			Status:    models.ClaimStatus(h.Status),
			Timestamp: h.Timestamp.Time(),
			Actor:     h.Actor,
			RequestID: h.RequestID,
		}
		if s, err := models.ParseLegacyStatus(h.Status, h.Stage); err == nil {
			entry.Status = s
		}
		c.StatusHistory = append(c.StatusHistory, entry)
	}

	switch {
	case r.FieldReport != nil:
		c.FieldReport = r.FieldReport.toModel()
	case r.InspectionForm != nil:
		c.FieldReport = r.InspectionForm.toModel()
	case r.InspectionPost != nil:
		c.FieldReport = r.InspectionPost.toModel()
	}
	if r.VerifiedDamage > 0 {
		if c.FieldReport == nil {
			c.FieldReport = &models.FieldReport{}
		}
		if c.FieldReport.VerifiedDamage == 0 {
			c.FieldReport.VerifiedDamage = r.VerifiedDamage.Int()
		}
	}
	if c.FieldReport != nil && c.FieldReport.OriginalDamage == 0 {
		c.FieldReport.OriginalDamage = c.DamageExtent
	}

	if c.RevenueAssessment == nil && r.EstimatedPayout > 0 {
		c.RevenueAssessment = &models.RevenueAssessment{EstimatedCompensation: float64(r.EstimatedPayout), Remarks: r.RevenueRemarks}
	}
	if c.VerifierReview == nil && r.VerifierRemarks != "" {
		c.VerifierReview = &models.VerifierReview{Remarks: r.VerifierRemarks}
	}
	if c.TreasuryDecision == nil && (r.TreasuryRemarks != "" || r.TreasuryReason != "") {
		c.TreasuryDecision = &models.TreasuryDecision{Remarks: r.TreasuryRemarks, RejectionReason: r.TreasuryReason}
	}
	if len(c.StatusHistory) == 0 {
		// rows imported before the audit trail existed
		c.StatusHistory = []models.StatusHistoryEntry{{Stage: models.StageForStatus(status).Stage(), Status: status, Timestamp: c.UpdatedAt}}
	}
	return &c, nil
}

func (r *ClaimRepository) all(ctx context.Context) ([]*models.Claim, error) {
	rows, err := r.client.GetAllClaims(ctx)
	if err != nil {
		return nil, mapError("get claims", err)
	}
	return decodeRows(rows), nil
}

func decodeRows(rows []json.RawMessage) []*models.Claim {
	claims := make([]*models.Claim, 0, len(rows))
	for _, raw := range rows {
		c, err := decodeRow(raw)
		if err != nil {
			slog.Warn("Skipping unreadable claim row", "error", err)
			continue
		}
		claims = append(claims, c)
	}
	models.SortNewestFirst(claims)
	return claims
}

func mapError(op string, err error) error {
	if errors.Is(err, sheetsapi.ErrUnavailable) || errors.Is(err, context.DeadlineExceeded) {
		return fmt.Errorf("%s: %w: %v", op, models.ErrTransport, err)
	}
	return fmt.Errorf("%s: %w", op, err)
}

// Create appends the claim as a new row.
func (r *ClaimRepository) Create(ctx context.Context, claim *models.Claim) error {
	if existing, err := r.FindByID(ctx, claim.ID); err == nil && existing != nil {
		return fmt.Errorf("claim %s: %w", claim.ID, models.ErrDuplicate)
	} else if err != nil && !errors.Is(err, models.ErrNotFound) {
		return err
	}
	claim.StampCreated(time.Now().UTC())
	if err := r.client.SubmitClaim(ctx, claim); err != nil {
		return mapError("submit claim", err)
	}
	return nil
}

func (r *ClaimRepository) FindByID(ctx context.Context, id string) (*models.Claim, error) {
	claims, err := r.all(ctx)
	if err != nil {
		return nil, err
	}
	for _, c := range claims {
		if c.ID == id {
			return c, nil
		}
	}
	return nil, fmt.Errorf("claim %s: %w", id, models.ErrNotFound)
}

func (r *ClaimRepository) FindByStatuses(ctx context.Context, statuses []models.ClaimStatus) ([]*models.Claim, error) {
	want := map[models.ClaimStatus]bool{}
	for _, s := range statuses {
		want[s] = true
	}
	return r.filter(ctx, func(c *models.Claim) bool { return want[c.Status] })
}

// FindByFarmer asks the endpoint for the rows filed from the farmer's
// contact number. Without a contact it scans every row.
func (r *ClaimRepository) FindByFarmer(ctx context.Context, farmer models.FarmerRef) ([]*models.Claim, error) {
	if farmer.Contact == "" {
		return r.filter(ctx, farmer.Owns)
	}
	rows, err := r.client.GetClaims(ctx, farmer.Contact)
	if err != nil {
		return nil, mapError("get claims for contact", err)
	}
	claims := decodeRows(rows)
	out := claims[:0]
	for _, c := range claims {
		if farmer.Owns(c) {
			out = append(out, c)
		}
	}
	return out, nil
}

func (r *ClaimRepository) filter(ctx context.Context, keep func(*models.Claim) bool) ([]*models.Claim, error) {
	claims, err := r.all(ctx)
	if err != nil {
		return nil, err
	}
	out := make([]*models.Claim, 0, len(claims))
	for _, c := range claims {
		if keep(c) {
			out = append(out, c)
		}
	}
	return out, nil
}

// ApplyTransition checks the current row, then writes the new status, the
// full history and the stage annotation. Field inspections use the
// dedicated inspection action.
func (r *ClaimRepository) ApplyTransition(ctx context.Context, t *models.Transition) (*models.Claim, error) {
	current, err := r.FindByID(ctx, t.ClaimID)
	if err != nil {
		return nil, err
	}
	if err := t.Apply(current); err != nil {
		return nil, err
	}
	current.UpdatedAt = time.Now().UTC()

	fields := map[string]interface{}{
		"claimId":       current.ID,
		"status":        current.Status,
		"statusHistory": current.StatusHistory,
		"updatedAt":     current.UpdatedAt,
	}
	for k, v := range t.Annotations() {
		fields[k] = v
	}

	if t.FieldReport != nil {
		delete(fields, "claimId")
		delete(fields, "fieldReport")
		err = r.client.UpdateClaimInspection(ctx, current.ID, t.FieldReport, string(current.Status), fields)
	} else {
		err = r.client.UpdateClaim(ctx, fields)
	}
	if err != nil {
		return nil, mapError("update claim "+t.ClaimID, err)
	}
	return current, nil
}

// Watch polls the endpoint and emits differences between snapshots. The
// channel closes when ctx ends or a poll fails.
func (r *ClaimRepository) Watch(ctx context.Context) (<-chan models.ClaimChange, error) {
	initial, err := r.all(ctx)
	if err != nil {
		return nil, err
	}
	out := make(chan models.ClaimChange)
	go func() {
		defer close(out)
		prev := index(initial)
		ticker := time.NewTicker(r.pollInterval)
		defer ticker.Stop()

		for {
			select {
			case <-ctx.Done():
				return
			case <-ticker.C:
			}
			claims, err := r.all(ctx)
			if err != nil {
				if ctx.Err() == nil {
					slog.Warn("Legacy claim poll failed", "error", err)
				}
				return
			}
			next := index(claims)
			for _, change := range diff(prev, next) {
				select {
				case out <- change:
				case <-ctx.Done():
					return
				}
			}
			prev = next
		}
	}()
	return out, nil
}

func index(claims []*models.Claim) map[string]*models.Claim {
	m := make(map[string]*models.Claim, len(claims))
	for _, c := range claims {
		m[c.ID] = c
	}
	return m
}

// diff reports additions, status/history changes and removals between two snapshots.
func diff(prev, next map[string]*models.Claim) []models.ClaimChange {
	var changes []models.ClaimChange
	for id, c := range next {
		old, ok := prev[id]
		switch {
		case !ok:
			changes = append(changes, models.ClaimChange{Kind: models.ChangeAdded, ID: id, Claim: c})
		case old.Status != c.Status || len(old.StatusHistory) != len(c.StatusHistory) || !old.UpdatedAt.Equal(c.UpdatedAt):
			changes = append(changes, models.ClaimChange{Kind: models.ChangeModified, ID: id, Claim: c})
		}
	}
	for id := range prev {
		if _, ok := next[id]; !ok {
			changes = append(changes, models.ClaimChange{Kind: models.ChangeRemoved, ID: id})
		}
	}
	return changes
}
