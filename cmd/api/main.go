package main

import (
	"context"
	"errors"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"strings"
	"syscall"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/joho/godotenv"

	"github.com/ArowuTest/agriclaim-backend/api/routes"
	"github.com/ArowuTest/agriclaim-backend/internal/config"
	"github.com/ArowuTest/agriclaim-backend/internal/handlers"
	"github.com/ArowuTest/agriclaim-backend/internal/repositories"
	"github.com/ArowuTest/agriclaim-backend/internal/repositories/fallback"
	"github.com/ArowuTest/agriclaim-backend/internal/repositories/legacy"
	mongorepo "github.com/ArowuTest/agriclaim-backend/internal/repositories/mongodb"
	"github.com/ArowuTest/agriclaim-backend/internal/repositories/sqlite"
	"github.com/ArowuTest/agriclaim-backend/internal/services"
	"github.com/ArowuTest/agriclaim-backend/pkg/jwt"
	mongodb "github.com/ArowuTest/agriclaim-backend/pkg/mongodb"
	"github.com/ArowuTest/agriclaim-backend/pkg/sheetsapi"
	"github.com/ArowuTest/agriclaim-backend/pkg/smsgateway"
)

func main() {
	if err := godotenv.Load(); err != nil {
		slog.Debug("No .env file loaded", "error", err)
	}

	cfg, err := config.LoadConfig(".")
	if err != nil {
		slog.Error("Failed to load configuration", "error", err)
		os.Exit(1)
	}
	setupLogger(cfg.LogLevel)
	gin.SetMode(cfg.Server.Mode)

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	// Local cache, offline queue and token denylist
	store, err := sqlite.NewStore(cfg.Cache.Path)
	if err != nil {
		slog.Error("Failed to open local cache", "path", cfg.Cache.Path, "error", err)
		os.Exit(1)
	}
	defer store.Close()
	if err := store.EnsureSchema(ctx); err != nil {
		slog.Error("Failed to prepare local cache", "error", err)
		os.Exit(1)
	}

	var (
		primary   repositories.ClaimRepository
		farmers   repositories.FarmerRepository
		officials repositories.OfficialRepository
	)
	switch cfg.Backend.Driver {
	case config.DriverMongoDB:
		mongoClient, err := mongodb.NewClient(ctx, cfg.MongoDB.URI, 10*time.Second)
		if mongoClient == nil {
			slog.Error("Failed to create MongoDB client", "error", err)
			os.Exit(1)
		}
		online := err == nil
		if !online {
			slog.Warn("MongoDB unreachable, starting from local cache", "error", err)
		}
		defer func() {
			dctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
			defer cancel()
			if err := mongoClient.Disconnect(dctx); err != nil {
				slog.Error("Error disconnecting from MongoDB", "error", err)
			}
		}()

		db := mongoClient.Database(cfg.MongoDB.Database)
		claimRepo := mongorepo.NewClaimRepository(db)
		farmerRepo := mongorepo.NewFarmerRepository(db)
		if online {
			if err := claimRepo.EnsureIndexes(ctx); err != nil {
				slog.Warn("Failed to ensure claim indexes", "error", err)
			}
			if err := farmerRepo.EnsureIndexes(ctx); err != nil {
				slog.Warn("Failed to ensure farmer indexes", "error", err)
			}
		}
		primary = claimRepo
		farmers = farmerRepo
		officials = mongorepo.NewOfficialRepository(db)

	case config.DriverLegacy:
		sheets := sheetsapi.NewClient(cfg.Legacy.BaseURL, cfg.Legacy.Timeout)
		primary = legacy.NewClaimRepository(sheets, cfg.Legacy.PollInterval)
		// The spreadsheet backend keeps plaintext identities; accounts live
		// in the local store instead.
		farmers = sqlite.NewFarmerRepository(store)
		officials = sqlite.NewOfficialRepository(store)
	}

	claims := fallback.NewClaimRepository(primary, store)
	denylist := sqlite.NewTokenDenylist(store)

	var gateway smsgateway.Gateway
	if cfg.SMS.Mock || cfg.SMS.BaseURL == "" {
		gateway = smsgateway.NewMockGateway("mock")
	} else {
		gateway = smsgateway.NewHTTPGateway(cfg.SMS.BaseURL, cfg.SMS.APIKey, cfg.SMS.SenderID)
	}

	// Services
	notifier := services.NewNotificationService(gateway)
	tokens := jwt.NewTokenService(cfg.JWT.Secret, cfg.TokenTTL(), "agriclaim")
	authService := services.NewAuthService(farmers, officials, denylist, tokens, cfg.Auth.LoginAttempts, cfg.Auth.LoginWindow)
	if err := authService.SeedOfficials(ctx, cfg.Officials); err != nil {
		slog.Warn("Failed to seed official accounts", "error", err)
	}
	claimService := services.NewClaimService(claims, notifier)
	feedService := services.NewFeedService(claims, cfg.Feed.PollInterval)
	syncService := services.NewSyncService(claims, cfg.Sync.Interval,
		denylist, services.PurgeFunc(authService.PurgeIdleLimiters))
	go syncService.Start(ctx)

	router := routes.SetupRouter(cfg, routes.HandlerDependencies{
		AuthHandler:  handlers.NewAuthHandler(authService),
		ClaimHandler: handlers.NewClaimHandler(claimService),
		FeedHandler:  handlers.NewFeedHandler(feedService),
		SyncHandler:  handlers.NewSyncHandler(syncService),
		Verifier:     authService,
		Backend:      cfg.Backend.Driver,
	})

	srv := &http.Server{
		Addr:              ":" + cfg.Server.Port,
		Handler:           router,
		ReadHeaderTimeout: 10 * time.Second,
	}

	go func() {
		slog.Info("Server starting", "port", cfg.Server.Port, "backend", cfg.Backend.Driver)
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			slog.Error("Server failed", "error", err)
			stop()
		}
	}()

	<-ctx.Done()
	slog.Info("Shutting down server...")

	// Streams only end when their feeds close.
	feedService.CloseAll()

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	if err := srv.Shutdown(shutdownCtx); err != nil {
		slog.Error("Server forced to shutdown", "error", err)
	}
	notifier.Wait()

	slog.Info("Server exiting")
}

func setupLogger(level string) {
	var lvl slog.Level
	switch strings.ToLower(level) {
	case "debug":
		lvl = slog.LevelDebug
	case "warn":
		lvl = slog.LevelWarn
	case "error":
		lvl = slog.LevelError
	default:
		lvl = slog.LevelInfo
	}
	slog.SetDefault(slog.New(slog.NewJSONHandler(os.Stdout, &slog.HandlerOptions{Level: lvl})))
}
