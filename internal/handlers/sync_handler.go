package handlers

import (
	"errors"
	"net/http"

	"github.com/gin-gonic/gin"

	"github.com/ArowuTest/agriclaim-backend/internal/models"
	"github.com/ArowuTest/agriclaim-backend/internal/services"
)

// SyncHandler exposes reconciliation of locally queued changes
type SyncHandler struct {
	syncService *services.SyncService
}

// NewSyncHandler creates a new SyncHandler
func NewSyncHandler(syncService *services.SyncService) *SyncHandler {
	return &SyncHandler{syncService: syncService}
}

// SyncNow handles POST /sync
func (h *SyncHandler) SyncNow(c *gin.Context) {
	res, err := h.syncService.SyncNow(c.Request.Context())
	if err != nil {
		if errors.Is(err, models.ErrTransport) {
			c.JSON(http.StatusServiceUnavailable, gin.H{"error": "Claims backend is still unreachable", "result": res})
			return
		}
		respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"result": res})
}

// Pending handles GET /sync/pending
func (h *SyncHandler) Pending(c *gin.Context) {
	pending, err := h.syncService.Pending(c.Request.Context())
	if err != nil {
		respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"mutations": pending, "total": len(pending)})
}
