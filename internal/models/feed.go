package models

import (
	"sort"
	"time"
)

// ChangeKind mirrors the change stream operation types a feed cares about.
type ChangeKind string

const (
	ChangeAdded    ChangeKind = "added"
	ChangeModified ChangeKind = "modified"
	ChangeRemoved  ChangeKind = "removed"
)

// ClaimChange is one event delivered by ClaimRepository.Watch.
// Claim is nil for removals.
type ClaimChange struct {
	Kind  ChangeKind
	ID    string
	Claim *Claim
}

// ClaimFilter is the dashboard search box and dropdowns.
type ClaimFilter struct {
	Status    ClaimStatus `form:"status"`
	CropType  string      `form:"cropType"`
	LossCause string      `form:"lossCause"`
	Search    string      `form:"search"`
}

// FeedStats are the dashboard counters for one role.
type FeedStats struct {
	Total             int     `json:"total"`
	Pending           int     `json:"pending"`
	ProcessedToday    int     `json:"processedToday"`
	Rejected          int     `json:"rejected"`
	TotalCompensation float64 `json:"totalCompensation"`
}

// FeedUpdate is a snapshot published by a live feed.
type FeedUpdate struct {
	Claims   []*Claim  `json:"claims"`
	Degraded bool      `json:"degraded"`
	At       time.Time `json:"at"`
}

// SortNewestFirst orders claims by createdAt descending, then id descending.
func SortNewestFirst(claims []*Claim) {
	sort.SliceStable(claims, func(i, j int) bool {
		if !claims[i].CreatedAt.Equal(claims[j].CreatedAt) {
			return claims[i].CreatedAt.After(claims[j].CreatedAt)
		}
		return claims[i].ID > claims[j].ID
	})
}
