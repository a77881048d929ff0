package middleware

import (
	"context"
	"errors"
	"log/slog"
	"net/http"
	"strings"

	"github.com/gin-gonic/gin"

	"github.com/ArowuTest/agriclaim-backend/internal/models"
	"github.com/ArowuTest/agriclaim-backend/pkg/jwt"
)

const (
	actorKey  = "actor"
	claimsKey = "claims"
)

// SessionVerifier resolves a bearer token to the signed-in actor.
type SessionVerifier interface {
	Verify(ctx context.Context, token string) (models.Actor, *jwt.Claims, error)
}

// JWTAuthMiddleware creates a gin middleware for JWT authentication.
// Browsers cannot set headers on an EventSource, so an access_token query
// parameter is accepted as well.
func JWTAuthMiddleware(verifier SessionVerifier) gin.HandlerFunc {
	return func(c *gin.Context) {
		const BearerSchema = "Bearer "
		tokenString := ""
		authHeader := c.GetHeader("Authorization")
		switch {
		case strings.HasPrefix(authHeader, BearerSchema):
			tokenString = strings.TrimSpace(authHeader[len(BearerSchema):])
		case authHeader != "":
			slog.Warn("Authorization header format is invalid", "path", c.FullPath())
			abortAuth(c, models.NewAuthError(models.AuthInvalidToken))
			return
		default:
			tokenString = c.Query("access_token")
		}
		if tokenString == "" {
			c.AbortWithStatusJSON(http.StatusUnauthorized, gin.H{"error": "Authorization header is required"})
			return
		}

		actor, claims, err := verifier.Verify(c.Request.Context(), tokenString)
		if err != nil {
			var aerr *models.AuthError
			if errors.As(err, &aerr) {
				abortAuth(c, aerr)
				return
			}
			slog.Error("Session verification failed", "error", err)
			c.AbortWithStatusJSON(http.StatusServiceUnavailable, gin.H{"error": "Unable to verify session"})
			return
		}

		c.Set(actorKey, actor)
		c.Set(claimsKey, claims)
		c.Next()
	}
}

// RequireRole allows the request when the actor may act as one of roles.
func RequireRole(roles ...models.Role) gin.HandlerFunc {
	return func(c *gin.Context) {
		actor, ok := GetActor(c)
		if !ok {
			c.AbortWithStatusJSON(http.StatusUnauthorized, gin.H{"error": "Authentication required"})
			return
		}
		for _, r := range roles {
			if actor.Role.CanActAs(r) {
				c.Next()
				return
			}
		}
		c.AbortWithStatusJSON(http.StatusForbidden, gin.H{"error": "You do not have access to this resource"})
	}
}

// GetActor returns the actor stored by JWTAuthMiddleware.
func GetActor(c *gin.Context) (models.Actor, bool) {
	v, ok := c.Get(actorKey)
	if !ok {
		return models.Actor{}, false
	}
	actor, ok := v.(models.Actor)
	return actor, ok
}

// GetSessionClaims returns the verified token claims.
func GetSessionClaims(c *gin.Context) (*jwt.Claims, bool) {
	v, ok := c.Get(claimsKey)
	if !ok {
		return nil, false
	}
	claims, ok := v.(*jwt.Claims)
	return claims, ok
}

func abortAuth(c *gin.Context, aerr *models.AuthError) {
	c.AbortWithStatusJSON(http.StatusUnauthorized, gin.H{"error": aerr.Message, "code": aerr.Code})
}
