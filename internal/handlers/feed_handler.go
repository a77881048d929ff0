package handlers

import (
	"fmt"
	"net/http"
	"time"

	"github.com/gin-gonic/gin"

	"github.com/ArowuTest/agriclaim-backend/internal/models"
	"github.com/ArowuTest/agriclaim-backend/internal/services"
)

// FeedHandler serves the per-role dashboards
type FeedHandler struct {
	feedService *services.FeedService
	heartbeat   time.Duration
}

// NewFeedHandler creates a new FeedHandler
func NewFeedHandler(feedService *services.FeedService) *FeedHandler {
	return &FeedHandler{feedService: feedService, heartbeat: 25 * time.Second}
}

// roleAndFilter resolves :role and the filter query and checks the actor
// may watch that role's feed.
func (h *FeedHandler) roleAndFilter(c *gin.Context) (models.Actor, models.Role, models.ClaimFilter, bool) {
	var filter models.ClaimFilter
	actor, ok := currentActor(c)
	if !ok {
		return actor, "", filter, false
	}
	role, err := models.ParseRole(c.Param("role"))
	if err != nil || !role.IsOfficial() {
		c.JSON(http.StatusNotFound, gin.H{"error": fmt.Sprintf("No feed for role %q", c.Param("role"))})
		return actor, "", filter, false
	}
	if !actor.Role.CanActAs(role) {
		c.JSON(http.StatusForbidden, gin.H{"error": "You do not have access to this feed"})
		return actor, "", filter, false
	}
	if err := c.ShouldBindQuery(&filter); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return actor, "", filter, false
	}
	return actor, role, filter, true
}

// GetFeed handles GET /feeds/:role
func (h *FeedHandler) GetFeed(c *gin.Context) {
	_, role, filter, ok := h.roleAndFilter(c)
	if !ok {
		return
	}
	ctx := c.Request.Context()

	claims, err := h.feedService.Snapshot(ctx, role, filter)
	if err != nil {
		respondError(c, err)
		return
	}
	stats, err := h.feedService.Stats(ctx, role)
	if err != nil {
		respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{
		"role":   role,
		"claims": claims,
		"total":  len(claims),
		"stats":  stats,
	})
}

// StreamFeed handles GET /feeds/:role/stream as server-sent events. Each
// event carries the full filtered snapshot. The view query parameter names
// the dashboard tab; opening it again replaces the earlier stream.
func (h *FeedHandler) StreamFeed(c *gin.Context) {
	actor, role, filter, ok := h.roleAndFilter(c)
	if !ok {
		return
	}
	ctx := c.Request.Context()
	viewID := actor.ID + ":" + c.DefaultQuery("view", string(role))

	feed, err := h.feedService.Open(ctx, viewID, role)
	if err != nil {
		respondError(c, err)
		return
	}
	defer h.feedService.Close(viewID, feed)

	c.Header("Content-Type", "text/event-stream")
	c.Header("Cache-Control", "no-cache")
	c.Header("Connection", "keep-alive")
	c.Header("X-Accel-Buffering", "no")
	c.Status(http.StatusOK)
	c.Writer.Flush()

	heartbeat := time.NewTicker(h.heartbeat)
	defer heartbeat.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case update, open := <-feed.Updates():
			if !open {
				return
			}
			update.Claims = services.FilterClaims(update.Claims, filter)
			c.SSEvent("snapshot", update)
			c.Writer.Flush()
		case t := <-heartbeat.C:
			c.SSEvent("ping", t.UTC().Format(time.RFC3339))
			c.Writer.Flush()
		}
	}
}
