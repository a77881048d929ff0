package routes

import (
	"net/http"

	"github.com/gin-gonic/gin"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"github.com/ArowuTest/agriclaim-backend/internal/config"
	"github.com/ArowuTest/agriclaim-backend/internal/handlers"
	"github.com/ArowuTest/agriclaim-backend/internal/middleware"
	"github.com/ArowuTest/agriclaim-backend/internal/models"
)

// HandlerDependencies holds the handlers wired by main.
type HandlerDependencies struct {
	AuthHandler  *handlers.AuthHandler
	ClaimHandler *handlers.ClaimHandler
	FeedHandler  *handlers.FeedHandler
	SyncHandler  *handlers.SyncHandler
	Verifier     middleware.SessionVerifier
	// Backend reports the selected claim store on /health.
	Backend string
}

// SetupRouter sets up the router
func SetupRouter(cfg *config.Config, deps HandlerDependencies) *gin.Engine {
	router := gin.New()

	router.Use(gin.Recovery())
	router.Use(middleware.RequestIDMiddleware())
	router.Use(middleware.LoggerMiddleware())
	router.Use(middleware.CORSMiddleware(cfg.Server.AllowedOrigins))

	router.GET("/metrics", gin.WrapH(promhttp.Handler()))

	// Public routes
	public := router.Group("/api/v1")
	{
		public.GET("/health", func(c *gin.Context) {
			c.JSON(http.StatusOK, gin.H{
				"status":  "ok",
				"backend": deps.Backend,
			})
		})

		auth := public.Group("/auth")
		{
			auth.POST("/register", deps.AuthHandler.Register)
			auth.POST("/login", deps.AuthHandler.Login)
			auth.POST("/official-login", deps.AuthHandler.OfficialLogin)
		}
	}

	// Protected routes
	protected := router.Group("/api/v1")
	protected.Use(middleware.JWTAuthMiddleware(deps.Verifier))
	{
		protected.POST("/auth/logout", deps.AuthHandler.Logout)
		protected.GET("/auth/session", deps.AuthHandler.Session)

		claims := protected.Group("/claims")
		{
			claims.POST("", middleware.RequireRole(models.RoleFarmer), deps.ClaimHandler.SubmitClaim)
			claims.GET("/mine", middleware.RequireRole(models.RoleFarmer), deps.ClaimHandler.ListMyClaims)
			claims.GET("/:id", deps.ClaimHandler.GetClaim)
			claims.POST("/:id/verification", middleware.RequireRole(models.RoleVerifier), deps.ClaimHandler.VerifierDecision)
			claims.POST("/:id/inspection", middleware.RequireRole(models.RoleFieldOfficer), deps.ClaimHandler.FieldInspection)
			claims.POST("/:id/revenue-decision", middleware.RequireRole(models.RoleRevenueOfficer), deps.ClaimHandler.RevenueDecision)
			claims.POST("/:id/treasury-decision", middleware.RequireRole(models.RoleTreasuryOfficer), deps.ClaimHandler.TreasuryDecision)
		}

		feeds := protected.Group("/feeds")
		{
			feeds.GET("/:role", deps.FeedHandler.GetFeed)
			feeds.GET("/:role/stream", deps.FeedHandler.StreamFeed)
		}

		sync := protected.Group("/sync", middleware.RequireRole(models.RoleAll))
		{
			sync.POST("", deps.SyncHandler.SyncNow)
			sync.GET("/pending", deps.SyncHandler.Pending)
		}
	}

	return router
}
