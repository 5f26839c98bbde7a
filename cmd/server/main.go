package main

import (
	"context"
	"log"
	"os"
	"time"

	"github.com/crewdesk/backend/internal/channels"
	"github.com/crewdesk/backend/internal/router"
	"github.com/crewdesk/backend/internal/scheduler"
	"github.com/crewdesk/backend/pkg/config"
	"github.com/crewdesk/backend/pkg/firebase"
	"github.com/crewdesk/backend/validators"
	"github.com/labstack/echo/v4"
	"github.com/rs/zerolog"
)

func main() {
	// Load configuration
	cfg := config.Load()

	logger := zerolog.New(os.Stdout).With().Timestamp().Logger()

	// Initialize database connections
	db, err := config.InitDB()
	if err != nil {
		log.Fatalf("Failed to initialize databases: %v", err)
	}
	defer db.CloseDB() // Ensure database connections are closed when main exits

	ctx := context.Background()

	// Initialize push channels. Either transport may be absent; delivery
	// simply skips channels that are not configured.
	var mobile, web channels.Channel
	firebaseApp, err := firebase.InitFirebase(ctx, cfg.FirebaseCredentialsPath)
	if err != nil {
		logger.Warn().Err(err).Msg("firebase unavailable, mobile push disabled")
	} else {
		mobile = channels.NewFCMChannel(firebaseApp.MessagingClient)
	}
	if cfg.VAPIDPublicKey != "" && cfg.VAPIDPrivateKey != "" {
		web = channels.NewWebPushChannel(cfg.VAPIDSubscriber, cfg.VAPIDPublicKey, cfg.VAPIDPrivateKey)
	} else {
		logger.Warn().Msg("VAPID keys missing, web push disabled")
	}

	// Create Echo instance
	e := echo.New()

	// Setup global middleware
	router.SetupMiddleware(e)

	// Setup routes and engine dependencies
	engine := router.SetupRoutes(e, db.Postgres, db.Mongo, mobile, web, cfg, logger)

	// Validator
	e.Validator = validators.NewValidator()

	// Timer service: re-attempt deferred/pending deliveries and fire daily
	// summaries. The engine holds no scheduling logic of its own.
	timer := scheduler.New(cfg.SchedulerTimezone, cfg.SweepInterval, logger)
	if err := timer.AddInterval("notification-sweep", cfg.SweepInterval, engine.Dispatcher.ProcessScheduledNotifications); err != nil {
		log.Fatalf("Failed to schedule notification sweep: %v", err)
	}
	// Summaries tick every minute regardless of the sweep interval; the
	// dispatcher matches each recipient's configured time against the
	// window since its previous tick.
	if err := timer.AddInterval("daily-summaries", time.Minute, engine.Dispatcher.ProcessDailySummaries); err != nil {
		log.Fatalf("Failed to schedule daily summaries: %v", err)
	}
	if err := timer.AddDaily("expired-purge", cfg.PurgeTime, engine.Dispatcher.PurgeExpired); err != nil {
		log.Fatalf("Failed to schedule expired purge: %v", err)
	}
	timer.Start()
	defer timer.Stop()

	// Start server
	e.Logger.Fatal(e.Start(":" + cfg.Port))
}
