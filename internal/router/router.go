package router

import (
	"log"

	"github.com/crewdesk/backend/internal/channels"
	"github.com/crewdesk/backend/internal/handlers"
	"github.com/crewdesk/backend/internal/middleware"
	"github.com/crewdesk/backend/internal/models"
	"github.com/crewdesk/backend/internal/notify"
	"github.com/crewdesk/backend/internal/repositories"
	"github.com/crewdesk/backend/pkg/config"
	"github.com/labstack/echo/v4"
	eMiddleware "github.com/labstack/echo/v4/middleware"
	"github.com/rs/zerolog"
	"go.mongodb.org/mongo-driver/mongo"
	"gorm.io/gorm"
)

// SetupMiddleware configures global Echo middleware
func SetupMiddleware(e *echo.Echo) {
	e.Use(eMiddleware.Recover())
	e.Use(eMiddleware.CORS())
	log.Println("Global middleware configured.")
}

// Engine bundles the notification engine pieces the server wires together.
type Engine struct {
	Notify     *notify.Engine
	Dispatcher *notify.Dispatcher
	Router     *notify.DeliveryRouter
}

// SetupRoutes configures all application routes and injects dependencies.
// Either push channel may be nil when its transport is not configured.
func SetupRoutes(e *echo.Echo, pgdb *gorm.DB, mgClient *mongo.Client, mobile, web channels.Channel, cfg *config.Config, logger zerolog.Logger) *Engine {
	// AutoMigrate PostgreSQL models
	err := pgdb.AutoMigrate(
		&models.Notification{},
		&models.ThresholdState{},
	)
	if err != nil {
		log.Fatalf("Failed to auto migrate models: %v", err)
	}
	log.Println("PostgreSQL auto-migrations completed for all models.")

	// Health check - always accessible
	e.GET("/health", handlers.HealthCheck)

	// --- Initialize Repositories ---
	notificationRepo := repositories.NewPostgresNotificationRepository(pgdb)
	thresholdRepo := repositories.NewPostgresThresholdRepository(pgdb)
	preferenceRepo := repositories.NewMongoPreferenceRepository(mgClient.Database(cfg.MongoDatabase))

	// --- Initialize Engine ---
	registry := notify.DefaultRegistry()
	deliveryRouter := notify.NewDeliveryRouter(notificationRepo, mobile, web, logger)
	guard := notify.NewDedupGuard(notificationRepo, thresholdRepo, registry)
	engine := notify.NewEngine(preferenceRepo, registry, guard, deliveryRouter, nil, logger)
	dispatcher := notify.NewDispatcher(notificationRepo, preferenceRepo, deliveryRouter, engine,
		cfg.SweepBatchSize, cfg.MaxDeliveryAttempts, cfg.PurgeRetention, logger)

	// --- Protected routes (require JWT authentication) ---
	api := e.Group("/api/v1")
	api.Use(middleware.JWTAuthMiddleware())
	log.Println("JWT authentication middleware applied to /api/v1 group.")

	// Notification routes
	notificationHandler := handlers.NewNotificationHandler(notificationRepo, deliveryRouter)
	notificationHandler.RegisterNotificationRoutes(api)
	log.Println("Notification routes configured.")

	// Preference routes
	preferenceHandler := handlers.NewPreferenceHandler(preferenceRepo, engine)
	preferenceHandler.RegisterPreferenceRoutes(api)
	log.Println("Preference routes configured.")

	log.Println("All routes configured.")

	return &Engine{
		Notify:     engine,
		Dispatcher: dispatcher,
		Router:     deliveryRouter,
	}
}
