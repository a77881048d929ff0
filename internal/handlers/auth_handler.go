package handlers

import (
	"net/http"

	"github.com/gin-gonic/gin"

	"github.com/ArowuTest/agriclaim-backend/internal/middleware"
	"github.com/ArowuTest/agriclaim-backend/internal/models"
	"github.com/ArowuTest/agriclaim-backend/internal/services"
)

// AuthHandler handles authentication related HTTP requests
type AuthHandler struct {
	authService *services.AuthService
}

// NewAuthHandler creates a new AuthHandler
func NewAuthHandler(authService *services.AuthService) *AuthHandler {
	return &AuthHandler{authService: authService}
}

// Register handles POST /auth/register
func (h *AuthHandler) Register(c *gin.Context) {
	var req models.RegisterRequest
	if !bindJSON(c, &req) {
		return
	}

	session, err := h.authService.RegisterFarmer(c.Request.Context(), &req)
	if err != nil {
		respondError(c, err)
		return
	}
	c.JSON(http.StatusCreated, session)
}

// Login handles POST /auth/login
func (h *AuthHandler) Login(c *gin.Context) {
	var req models.LoginRequest
	if !bindJSON(c, &req) {
		return
	}

	session, err := h.authService.LoginFarmer(c.Request.Context(), &req)
	if err != nil {
		respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, session)
}

// OfficialLogin handles POST /auth/official-login
func (h *AuthHandler) OfficialLogin(c *gin.Context) {
	var req models.OfficialLoginRequest
	if !bindJSON(c, &req) {
		return
	}

	session, err := h.authService.OfficialLogin(c.Request.Context(), &req)
	if err != nil {
		respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, session)
}

// Logout handles POST /auth/logout
func (h *AuthHandler) Logout(c *gin.Context) {
	claims, _ := middleware.GetSessionClaims(c)
	if err := h.authService.Logout(c.Request.Context(), claims); err != nil {
		respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"message": "Signed out"})
}

// Session handles GET /auth/session
func (h *AuthHandler) Session(c *gin.Context) {
	actor, ok := currentActor(c)
	if !ok {
		return
	}
	c.JSON(http.StatusOK, gin.H{"user": actor})
}
