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

	"github.com/gin-gonic/gin"

	"github.com/paydefi-inc/settlement-api/internal/amm"
	"github.com/paydefi-inc/settlement-api/internal/auth"
	"github.com/paydefi-inc/settlement-api/internal/config"
	"github.com/paydefi-inc/settlement-api/internal/database"
	"github.com/paydefi-inc/settlement-api/internal/events"
	"github.com/paydefi-inc/settlement-api/internal/ledger"
	"github.com/paydefi-inc/settlement-api/internal/settlement"
	"github.com/paydefi-inc/settlement-api/internal/types"
	"github.com/paydefi-inc/settlement-api/pkg/middleware"
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

// main initializes and runs the settlement API server with graceful shutdown
// support. It loads configuration, opens the ledger database, wires up all
// services and routes.
func main() {
	cfg, err := config.Load("")
	if err != nil {
		zlog.Fatal().Err(err).Msg("Failed to load configuration")
	}

	treasury, err := types.ParseAddress(cfg.Settlement.Treasury)
	if err != nil {
		zlog.Fatal().Err(err).Msg("Invalid treasury address in configuration")
	}

	// Initialize database
	db, err := database.NewDatabase(cfg.DB.Path)
	if err != nil {
		zlog.Fatal().Err(err).Msg("Failed to initialize database")
	}

	middleware.SetJWTSecret(cfg.Auth.JWTSecret)

	// Initialize router
	router := gin.Default()

	// Initialize services and handlers
	authService := auth.NewService(cfg.Auth.JWTSecret)
	authHandlers := auth.NewGinHandlers(authService)
	authService.RegisterAPICredentials(cfg.Auth.APIKey, cfg.Auth.APISecret)

	broadcaster := events.NewBroadcaster()

	ledgerService := ledger.NewService(db)
	ledgerHandlers := ledger.NewGinHandlers(ledgerService)

	ammService := amm.NewService(db)
	ammHandlers := amm.NewGinHandlers(ammService)

	policy := settlement.NewSplitPolicy(cfg.Settlement.FeeDenominator)
	settlementService := settlement.NewService(db, policy, treasury, broadcaster)
	settlementHandlers := settlement.NewGinHandlers(settlementService)

	// Setup middleware
	router.Use(middleware.RateLimit())

	// Setup API routes
	setupRoutes(router, cfg, authHandlers, ledgerHandlers, ammHandlers, settlementHandlers, broadcaster)

	// Create server
	srv := &http.Server{
		Addr:    cfg.Server.Addr,
		Handler: router,
	}

	// Graceful shutdown setup
	go func() {
		if err := srv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			zlog.Fatal().Err(err).Msg("listen")
		}
	}()

	zlog.Info().Str("addr", cfg.Server.Addr).Str("treasury", treasury.Base58()).Msg("settlement API started")

	// Wait for interrupt signal
	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	<-quit
	zlog.Info().Msg("Shutting down server...")

	// Give outstanding settlements 5 seconds to complete
	shutdownCtx, shutdownCancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer shutdownCancel()
	if err := srv.Shutdown(shutdownCtx); err != nil {
		zlog.Fatal().Err(err).Msg("Server forced to shutdown")
	}

	zlog.Info().Msg("Server exiting")
}

// setupRoutes configures all API endpoints and their handlers
// It groups routes by functionality and applies appropriate middleware:
// - Auth routes: Public endpoints for authentication
// - Payment routes: Protected by JWT authentication
// - Internal routes: Ledger admin, protected by internal network authentication
func setupRoutes(
	router *gin.Engine,
	cfg *config.Config,
	authHandlers *auth.GinHandlers,
	ledgerHandlers *ledger.GinHandlers,
	ammHandlers *amm.GinHandlers,
	settlementHandlers *settlement.GinHandlers,
	broadcaster *events.Broadcaster,
) {
	v1 := router.Group("/api/v1")
	{
		// Auth routes
		authGroup := v1.Group("/auth")
		{
			authGroup.POST("/token", authHandlers.GenerateTokenHandler())
		}

		// Payment routes
		payments := v1.Group("/payments")
		payments.Use(middleware.JWTAuth())
		{
			payments.POST("/transfer", settlementHandlers.CompleteTransferPaymentHandler())
			payments.POST("/transfer/split", settlementHandlers.CompleteSplitTransferPaymentHandler())
			payments.POST("/swap", settlementHandlers.CompleteSwapPaymentHandler())
		}

		// Receipt and pool lookups
		receipts := v1.Group("/receipts")
		receipts.Use(middleware.JWTAuth())
		{
			receipts.GET("/:order_id", settlementHandlers.GetReceiptHandler())
		}

		pools := v1.Group("/pools")
		pools.Use(middleware.JWTAuth())
		{
			pools.GET("/:pool_id", ammHandlers.GetPoolKeysHandler())
		}

		accounts := v1.Group("/accounts")
		accounts.Use(middleware.JWTAuth())
		{
			accounts.GET("/:address", ledgerHandlers.GetAccountHandler())
		}

		// Settlement events feed
		v1.GET("/events", broadcaster.StreamHandler())

		// Internal ledger-admin routes (should be protected by internal network)
		internal := v1.Group("/internal")
		internal.Use(middleware.InternalAuth())
		{
			internal.POST("/mints", ledgerHandlers.CreateMintHandler())
			internal.POST("/accounts", ledgerHandlers.CreateAccountHandler())
			internal.POST("/mint-to", ledgerHandlers.MintToHandler())
			internal.POST("/pools", ammHandlers.CreatePoolHandler(cfg.AMM.SwapFeeBps))
		}
	}
}
