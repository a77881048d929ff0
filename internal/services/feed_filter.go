package services

import (
	"strings"
	"time"

	"github.com/ArowuTest/agriclaim-backend/internal/models"
)

// FilterClaims applies the dashboard filters. Empty fields match everything
// and the input order is kept.
func FilterClaims(claims []*models.Claim, f models.ClaimFilter) []*models.Claim {
	search := strings.ToLower(strings.TrimSpace(f.Search))
	out := make([]*models.Claim, 0, len(claims))
	for _, c := range claims {
		if f.Status != "" && c.Status != f.Status {
			continue
		}
		if f.CropType != "" && !strings.EqualFold(c.CropType, strings.TrimSpace(f.CropType)) {
			continue
		}
		if f.LossCause != "" && !strings.EqualFold(c.LossCause, strings.TrimSpace(f.LossCause)) {
			continue
		}
		if search != "" &&
			!strings.Contains(strings.ToLower(c.FarmerName), search) &&
			!strings.Contains(strings.ToLower(c.FarmerContact), search) &&
			!strings.Contains(strings.ToLower(c.ID), search) {
			continue
		}
		out = append(out, c)
	}
	return out
}

// ComputeStats derives the dashboard counters for role from its feed.
func ComputeStats(claims []*models.Claim, role models.Role, now time.Time) models.FeedStats {
	inSet := map[models.ClaimStatus]bool{}
	for _, s := range models.FeedStatuses(role) {
		inSet[s] = true
	}
	pending, hasPending := models.PredecessorStatus(role)
	year, month, day := now.UTC().Date()

	var stats models.FeedStats
	for _, c := range claims {
		if !inSet[c.Status] {
			continue
		}
		stats.Total++
		switch {
		case role == models.RoleAll && !c.Status.IsTerminal():
			stats.Pending++
		case hasPending && c.Status == pending:
			stats.Pending++
		}
		if c.Status.IsRejected() {
			stats.Rejected++
		}
		if c.Status == models.StatusRevenueApproved || c.Status == models.StatusPaymentApproved {
			stats.TotalCompensation += c.Compensation()
		}
		for _, h := range c.StatusHistory {
			if !handledBy(h.Stage, role) {
				continue
			}
			y, m, d := h.Timestamp.UTC().Date()
			if y == year && m == month && d == day {
				stats.ProcessedToday++
				break
			}
		}
	}
	return stats
}

func handledBy(stage string, role models.Role) bool {
	if role != models.RoleAll {
		return stage == role.Stage()
	}
	if stage == models.RoleAll.Stage() {
		return true
	}
	for _, r := range models.OfficialRoles {
		if stage == r.Stage() {
			return true
		}
	}
	return false
}
