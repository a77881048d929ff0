package handlers

import (
	"errors"
	"log/slog"
	"net/http"

	"github.com/gin-gonic/gin"

	"github.com/ArowuTest/agriclaim-backend/internal/middleware"
	"github.com/ArowuTest/agriclaim-backend/internal/models"
)

// respondError maps service errors onto HTTP status codes.
func respondError(c *gin.Context, err error) {
	var verr *models.ValidationError
	var aerr *models.AuthError
	switch {
	case errors.As(err, &verr):
		c.JSON(http.StatusBadRequest, gin.H{"error": "Validation failed", "fields": verr.Fields})
	case errors.As(err, &aerr):
		status := http.StatusUnauthorized
		if aerr.Code == models.AuthRateLimited {
			status = http.StatusTooManyRequests
		} else if aerr.Code == models.AuthEmailInUse {
			status = http.StatusConflict
		}
		c.JSON(status, gin.H{"error": aerr.Message, "code": aerr.Code})
	case errors.Is(err, models.ErrPermission):
		c.JSON(http.StatusForbidden, gin.H{"error": err.Error()})
	case errors.Is(err, models.ErrNotFound):
		c.JSON(http.StatusNotFound, gin.H{"error": err.Error()})
	case errors.Is(err, models.ErrIllegalTransition):
		c.JSON(http.StatusUnprocessableEntity, gin.H{"error": err.Error()})
	case errors.Is(err, models.ErrConflict), errors.Is(err, models.ErrDuplicate):
		c.JSON(http.StatusConflict, gin.H{"error": err.Error()})
	case errors.Is(err, models.ErrTransport):
		slog.Warn("Backend unreachable", "error", err, "requestId", middleware.GetRequestID(c))
		c.JSON(http.StatusServiceUnavailable, gin.H{"error": "Claims backend is unreachable, please retry shortly"})
	default:
		slog.Error("Request failed", "error", err, "path", c.FullPath(), "requestId", middleware.GetRequestID(c))
		c.JSON(http.StatusInternalServerError, gin.H{"error": "Internal server error"})
	}
}

// currentActor returns the signed-in actor or aborts with 401.
func currentActor(c *gin.Context) (models.Actor, bool) {
	actor, ok := middleware.GetActor(c)
	if !ok {
		c.JSON(http.StatusUnauthorized, gin.H{"error": "Authentication required"})
	}
	return actor, ok
}

func bindJSON(c *gin.Context, dst interface{}) bool {
	if err := c.ShouldBindJSON(dst); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return false
	}
	return true
}
