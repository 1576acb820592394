package main

import (
	"context"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/rs/zerolog"
	zlog "github.com/rs/zerolog/log"

	"github.com/bidmaster/auction-api/internal/auth"
	"github.com/bidmaster/auction-api/internal/config"
	"github.com/bidmaster/auction-api/internal/gateway"
	"github.com/bidmaster/auction-api/internal/ledger"
	"github.com/bidmaster/auction-api/internal/lifecycle"
	"github.com/bidmaster/auction-api/pkg/middleware"

	"github.com/gin-gonic/gin"
)

// init configures the application logging based on environment settings
// In development mode, it enables pretty printing with timestamps
// Debug logging can be enabled via DEBUG environment variable
func init() {
	// Configure pretty logging for development
	if os.Getenv("ENV") != "production" {
		output := zerolog.ConsoleWriter{
			Out:        os.Stdout,
			TimeFormat: time.RFC3339,
		}
		zlog.Logger = zerolog.New(output).With().Timestamp().Logger()
	}

	// Set global log level
	zerolog.SetGlobalLevel(zerolog.InfoLevel)
	if os.Getenv("DEBUG") == "true" {
		zerolog.SetGlobalLevel(zerolog.DebugLevel)
	}
}

// main initializes and runs the auction API server with graceful shutdown
// support. It wires the persistence gateway, the settlement ledger, the
// lifecycle manager and the background expiry sweep.
func main() {
	cfg := config.Load()

	// Initialize persistence gateway (opens the store, migrates, seeds)
	gw, err := gateway.New(cfg.Database, cfg.LogRetention)
	if err != nil {
		zlog.Fatal().Err(err).Msg("Failed to initialize persistence gateway")
	}

	// Initialize router
	router := gin.Default()

	// Initialize services and handlers
	authService := auth.NewService(gw, cfg.JWTSecret, cfg.TokenTTL)
	authHandlers := auth.NewGinHandlers(authService)

	ledgerService := ledger.NewService(gw, ledger.Rules{
		Cooldown:  cfg.BidCooldown,
		Extension: cfg.BidExtension,
	})
	ledgerHandlers := ledger.NewGinHandlers(ledgerService)

	lifecycleService := lifecycle.NewService(gw)
	lifecycleHandlers := lifecycle.NewGinHandlers(lifecycleService)

	// Create and start the expiry sweep
	sweepCtx, sweepCancel := context.WithCancel(context.Background())
	defer sweepCancel()
	if cfg.SweepEnabled {
		sweep := lifecycle.NewProcessor(lifecycleService, cfg.SweepInterval)
		go sweep.Start(sweepCtx)
	}

	// Setup API routes
	setupRoutes(router, cfg.JWTSecret, authHandlers, ledgerHandlers, lifecycleHandlers)

	// Create server
	srv := &http.Server{
		Addr:    ":" + cfg.Port,
		Handler: router,
	}

	// Graceful shutdown setup
	go func() {
		if err := srv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			zlog.Fatal().Err(err).Msg("listen")
		}
	}()

	// Wait for interrupt signal
	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	<-quit
	zlog.Info().Msg("Shutting down server...")

	// Give outstanding operations 5 seconds to complete
	shutdownCtx, shutdownCancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer shutdownCancel()
	if err := srv.Shutdown(shutdownCtx); err != nil {
		zlog.Fatal().Err(err).Msg("Server forced to shutdown")
	}

	zlog.Info().Msg("Server exiting")
}

// setupRoutes configures all API endpoints and their handlers.
// Routes are grouped by access level:
// - Auth routes: public login endpoint
// - Bidding routes: protected by JWT authentication
// - Admin routes: JWT plus the ADMIN role
func setupRoutes(
	router *gin.Engine,
	jwtSecret string,
	authHandlers *auth.GinHandlers,
	ledgerHandlers *ledger.GinHandlers,
	lifecycleHandlers *lifecycle.GinHandlers,
) {
	v1 := router.Group("/api/v1")
	{
		// Auth routes. Login has no session yet, so its limiter keys by IP.
		authGroup := v1.Group("/auth")
		authGroup.Use(middleware.RateLimit())
		{
			authGroup.POST("/login", authHandlers.LoginHandler())
			authGroup.POST("/logout", middleware.JWTAuth(jwtSecret), authHandlers.LogoutHandler())
		}

		// Bidding routes. Rate limiting runs after JWTAuth so the limiter
		// keys by the authenticated user rather than the client IP.
		bidding := v1.Group("")
		bidding.Use(middleware.JWTAuth(jwtSecret), middleware.RateLimit())
		{
			bidding.GET("/state", ledgerHandlers.GetStateHandler())
			bidding.GET("/me", ledgerHandlers.GetMeHandler())
			bidding.GET("/items", ledgerHandlers.GetItemsHandler())
			bidding.GET("/items/:item_id", ledgerHandlers.GetItemHandler())
			bidding.GET("/items/:item_id/bids", ledgerHandlers.GetItemBidsHandler())
			bidding.POST("/items/:item_id/bids", ledgerHandlers.PlaceBidHandler())
		}

		// Admin routes
		admin := v1.Group("/admin")
		admin.Use(middleware.JWTAuth(jwtSecret), middleware.RateLimit(), middleware.AdminOnly())
		{
			admin.POST("/items", lifecycleHandlers.CreateItemHandler())
			admin.PUT("/items/:item_id", lifecycleHandlers.UpdateItemHandler())
			admin.DELETE("/items/:item_id", lifecycleHandlers.DeleteItemHandler())
			admin.POST("/items/:item_id/start", lifecycleHandlers.StartBiddingHandler())
			admin.POST("/finalize", lifecycleHandlers.FinalizeHandler())
			admin.GET("/logs", lifecycleHandlers.GetLogsHandler())
			admin.GET("/winners", lifecycleHandlers.GetWinnersHandler())
			admin.GET("/users", lifecycleHandlers.GetUsersHandler())
		}
	}
}
