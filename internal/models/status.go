package models

import (
	"fmt"
	"strings"
)

// ClaimStatus is the canonical workflow stage of a claim.
type ClaimStatus string

const (
	StatusSubmitted                ClaimStatus = "submitted"
	StatusForwardedToFieldOfficer  ClaimStatus = "forwarded_to_field_officer"
	StatusFieldVerified            ClaimStatus = "field_verified"
	StatusRevenueApproved          ClaimStatus = "revenue_approved"
	StatusPaymentApproved          ClaimStatus = "payment_approved"
	StatusRejectedByVerifier       ClaimStatus = "rejected_by_verifier"
	StatusRejectedByFieldOfficer   ClaimStatus = "rejected_by_field_officer"
	StatusRejectedByRevenueOfficer ClaimStatus = "rejected_by_revenue_officer"
	StatusRejectedByTreasury       ClaimStatus = "rejected_by_treasury_officer"
)

// AllStatuses lists every status in workflow order.
var AllStatuses = []ClaimStatus{
	StatusSubmitted,
	StatusForwardedToFieldOfficer,
	StatusFieldVerified,
	StatusRevenueApproved,
	StatusPaymentApproved,
	StatusRejectedByVerifier,
	StatusRejectedByFieldOfficer,
	StatusRejectedByRevenueOfficer,
	StatusRejectedByTreasury,
}

var statusLabels = map[ClaimStatus]string{
	StatusSubmitted:                "Submitted",
	StatusForwardedToFieldOfficer:  "Forwarded to Field Officer",
	StatusFieldVerified:            "Field Verified",
	StatusRevenueApproved:          "Revenue Approved",
	StatusPaymentApproved:          "Payment Approved",
	StatusRejectedByVerifier:       "Rejected by Verifier",
	StatusRejectedByFieldOfficer:   "Rejected by Field Officer",
	StatusRejectedByRevenueOfficer: "Rejected by Revenue Officer",
	StatusRejectedByTreasury:       "Rejected by Treasury Officer",
}

// Label returns the human readable name shown on dashboards and in SMS.
func (s ClaimStatus) Label() string {
	if l, ok := statusLabels[s]; ok {
		return l
	}
	return string(s)
}

// Valid reports whether s is one of the canonical statuses.
func (s ClaimStatus) Valid() bool {
	_, ok := statusLabels[s]
	return ok
}

// IsRejected reports whether s is any of the rejection exits.
func (s ClaimStatus) IsRejected() bool {
	switch s {
	case StatusRejectedByVerifier, StatusRejectedByFieldOfficer,
		StatusRejectedByRevenueOfficer, StatusRejectedByTreasury:
		return true
	}
	return false
}

// IsTerminal reports whether no further transition is possible.
func (s ClaimStatus) IsTerminal() bool {
	return s == StatusPaymentApproved || s.IsRejected()
}

// Role identifies who is acting on a claim.
type Role string

const (
	RoleFarmer          Role = "farmer"
	RoleVerifier        Role = "verifier"
	RoleFieldOfficer    Role = "field_officer"
	RoleRevenueOfficer  Role = "revenue_officer"
	RoleTreasuryOfficer Role = "treasury_officer"
	// RoleAll is the super-role that may act at any official stage.
	RoleAll Role = "all"
)

// OfficialRoles are the reviewer roles in workflow order.
var OfficialRoles = []Role{RoleVerifier, RoleFieldOfficer, RoleRevenueOfficer, RoleTreasuryOfficer}

// Stage is the name written into statusHistory entries.
func (r Role) Stage() string {
	switch r {
	case RoleFarmer:
		return "Farmer"
	case RoleVerifier:
		return "Verifier"
	case RoleFieldOfficer:
		return "Field Officer"
	case RoleRevenueOfficer:
		return "Revenue Officer"
	case RoleTreasuryOfficer:
		return "Treasury Officer"
	case RoleAll:
		return "Administrator"
	}
	return string(r)
}

// IsOfficial reports whether r is a reviewer role (including the super-role).
func (r Role) IsOfficial() bool {
	switch r {
	case RoleVerifier, RoleFieldOfficer, RoleRevenueOfficer, RoleTreasuryOfficer, RoleAll:
		return true
	}
	return false
}

// CanActAs reports whether a session holding r may perform stage's operations.
func (r Role) CanActAs(stage Role) bool {
	return r == stage || (r == RoleAll && stage.IsOfficial())
}

// ParseRole accepts the role names used by URLs and the legacy login form.
func ParseRole(s string) (Role, error) {
	r := Role(strings.ToLower(strings.TrimSpace(s)))
	switch r {
	case RoleFarmer, RoleVerifier, RoleFieldOfficer, RoleRevenueOfficer, RoleTreasuryOfficer, RoleAll:
		return r, nil
	}
	return "", fmt.Errorf("unknown role %q", s)
}

// Action is what an official decides at their stage.
type Action string

const (
	ActionForward Action = "forward"
	ActionApprove Action = "approve"
	ActionReject  Action = "reject"
)

type transitionKey struct {
	from   ClaimStatus
	role   Role
	action Action
}

// transitions is the complete workflow. Anything missing is illegal.
var transitions = map[transitionKey]ClaimStatus{
	{StatusSubmitted, RoleVerifier, ActionForward}:                   StatusForwardedToFieldOfficer,
	{StatusSubmitted, RoleVerifier, ActionReject}:                    StatusRejectedByVerifier,
	{StatusForwardedToFieldOfficer, RoleFieldOfficer, ActionApprove}: StatusFieldVerified,
	{StatusForwardedToFieldOfficer, RoleFieldOfficer, ActionReject}:  StatusRejectedByFieldOfficer,
	{StatusFieldVerified, RoleRevenueOfficer, ActionApprove}:         StatusRevenueApproved,
	{StatusFieldVerified, RoleRevenueOfficer, ActionReject}:          StatusRejectedByRevenueOfficer,
	{StatusRevenueApproved, RoleTreasuryOfficer, ActionApprove}:      StatusPaymentApproved,
	{StatusRevenueApproved, RoleTreasuryOfficer, ActionReject}:       StatusRejectedByTreasury,
}

// NextStatus looks up the destination of (from, stage, action).
func NextStatus(from ClaimStatus, stage Role, action Action) (ClaimStatus, error) {
	to, ok := transitions[transitionKey{from, stage, action}]
	if !ok {
		return "", fmt.Errorf("%w: %s cannot %s a claim that is %q", ErrIllegalTransition, stage.Stage(), action, from.Label())
	}
	return to, nil
}

// PredecessorStatus returns the single status in which stage may act.
func PredecessorStatus(stage Role) (ClaimStatus, bool) {
	for k := range transitions {
		if k.role == stage {
			return k.from, true
		}
	}
	return "", false
}

// FeedStatuses is the "actionable or recently handled" set for a role's dashboard.
func FeedStatuses(r Role) []ClaimStatus {
	switch r {
	case RoleVerifier:
		return []ClaimStatus{StatusSubmitted, StatusForwardedToFieldOfficer, StatusRejectedByVerifier}
	case RoleFieldOfficer:
		return []ClaimStatus{StatusForwardedToFieldOfficer, StatusFieldVerified, StatusRejectedByFieldOfficer}
	case RoleRevenueOfficer:
		return []ClaimStatus{StatusFieldVerified, StatusRevenueApproved, StatusRejectedByRevenueOfficer}
	case RoleTreasuryOfficer:
		return []ClaimStatus{StatusRevenueApproved, StatusPaymentApproved, StatusRejectedByTreasury}
	case RoleAll:
		return append([]ClaimStatus(nil), AllStatuses...)
	}
	return nil
}

// legacyStatuses maps every spelling seen in spreadsheet rows and older clients.
var legacyStatuses = map[string]ClaimStatus{
	"pending":                      StatusSubmitted,
	"submitted":                    StatusSubmitted,
	"verified":                     StatusForwardedToFieldOfficer,
	"approved":                     StatusForwardedToFieldOfficer,
	"forwarded":                    StatusForwardedToFieldOfficer,
	"forwarded by verifier":        StatusForwardedToFieldOfficer,
	"forwarded to field officer":   StatusForwardedToFieldOfficer,
	"field inspection complete":    StatusFieldVerified,
	"field verified":               StatusFieldVerified,
	"forwarded to revenue officer": StatusFieldVerified,
	"revenue approved":             StatusRevenueApproved,
	"approved by revenue":          StatusRevenueApproved,
	"forwarded to treasury":        StatusRevenueApproved,
	"payment approved":             StatusPaymentApproved,
	"rejected by verifier":         StatusRejectedByVerifier,
	"rejected by field officer":    StatusRejectedByFieldOfficer,
	"rejected by revenue":          StatusRejectedByRevenueOfficer,
	"rejected by revenue officer":  StatusRejectedByRevenueOfficer,
	"rejected by treasury":         StatusRejectedByTreasury,
	"rejected by treasury officer": StatusRejectedByTreasury,
}

// ParseLegacyStatus normalizes a status string from the spreadsheet backend.
// A bare "Rejected" is attributed using rejectedBy (a stage name), defaulting
// to the verifier.
func ParseLegacyStatus(raw, rejectedBy string) (ClaimStatus, error) {
	s := ClaimStatus(strings.TrimSpace(raw))
	if s.Valid() {
		return s, nil
	}
	key := strings.ToLower(strings.TrimSpace(raw))
	if st, ok := legacyStatuses[key]; ok {
		return st, nil
	}
	if key == "rejected" {
		switch strings.ToLower(strings.TrimSpace(rejectedBy)) {
		case "field officer", "field_officer":
			return StatusRejectedByFieldOfficer, nil
		case "revenue officer", "revenue_officer":
			return StatusRejectedByRevenueOfficer, nil
		case "treasury officer", "treasury_officer":
			return StatusRejectedByTreasury, nil
		}
		return StatusRejectedByVerifier, nil
	}
	return "", fmt.Errorf("unknown claim status %q", raw)
}

// StageForStatus returns the role whose action produces s.
func StageForStatus(s ClaimStatus) Role {
	switch s {
	case StatusSubmitted:
		return RoleFarmer
	case StatusForwardedToFieldOfficer, StatusRejectedByVerifier:
		return RoleVerifier
	case StatusFieldVerified, StatusRejectedByFieldOfficer:
		return RoleFieldOfficer
	case StatusRevenueApproved, StatusRejectedByRevenueOfficer:
		return RoleRevenueOfficer
	case StatusPaymentApproved, StatusRejectedByTreasury:
		return RoleTreasuryOfficer
	}
	return ""
}
