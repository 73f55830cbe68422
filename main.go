package main

import (
	"fmt"
	"os"

	"github.com/gin-contrib/cors"
	"github.com/gin-gonic/gin"
	"github.com/hibiken/asynq"
	"github.com/joho/godotenv"
	"github.com/rs/zerolog"
	"gorm.io/gorm"

	"hospital-booking-server/internal/config"
	"hospital-booking-server/internal/middleware"
	"hospital-booking-server/internal/models"
	"hospital-booking-server/internal/routes"
	"hospital-booking-server/internal/tasks"
)

func main() {
	// Load environment variables; a missing .env is fine in production.
	_ = godotenv.Load()

	// Initialize configuration
	cfg, err := config.LoadConfig()
	if err != nil {
		fmt.Fprintf(os.Stderr, "Error loading config: %v\n", err)
		os.Exit(1)
	}

	logger := newLogger(cfg)

	// Initialize database connection
	db, err := models.InitDB(models.DatabaseConfig{DSN: cfg.Database.DSN})
	if err != nil {
		logger.Fatal().Err(err).Msg("failed to connect to database")
	}

	if err := ensureAdminUser(db, logger); err != nil {
		logger.Fatal().Err(err).Msg("failed to seed admin user")
	}

	// Task queue client shared by the API and the fan-out jobs
	queue := asynq.NewClient(tasks.RedisOpt(cfg))
	defer queue.Close()

	startBackgroundJobs(db, cfg, queue, logger)

	// Initialize Gin router
	if cfg.Environment != "development" {
		gin.SetMode(gin.ReleaseMode)
	}
	router := gin.New()
	router.Use(gin.Recovery())
	router.Use(middleware.RequestLogger(logger))

	// Configure CORS
	corsConfig := cors.DefaultConfig()
	corsConfig.AllowOrigins = []string{cfg.Origin}
	corsConfig.AllowCredentials = true
	corsConfig.AllowMethods = []string{"GET", "POST", "PUT", "PATCH", "DELETE", "OPTIONS"}
	corsConfig.AllowHeaders = []string{"Origin", "Content-Type", "Accept", "Authorization"}
	router.Use(cors.New(corsConfig))

	// Set up routes - passing DB and config to let routes.go create the handlers
	routes.SetupRoutes(router, db, cfg, queue, logger)

	// Start server
	serverAddr := fmt.Sprintf(":%s", cfg.Port)
	logger.Info().Str("port", cfg.Port).Msg("server starting")
	if err := router.Run(serverAddr); err != nil {
		logger.Fatal().Err(err).Msg("failed to start server")
	}
}

func newLogger(cfg *config.Config) zerolog.Logger {
	logger := zerolog.New(os.Stdout).With().Timestamp().Logger()
	if cfg.Environment == "development" {
		logger = zerolog.New(zerolog.ConsoleWriter{Out: os.Stdout}).With().Timestamp().Logger()
	}
	return logger
}

// startBackgroundJobs runs the task worker and the periodic scheduler
// alongside the HTTP server. Job failures are logged and left for the next
// delivery; they never touch committed appointment state.
func startBackgroundJobs(db *gorm.DB, cfg *config.Config, queue *asynq.Client, logger zerolog.Logger) {
	worker := tasks.NewWorker(db, cfg, queue, logger)
	server := asynq.NewServer(tasks.RedisOpt(cfg), asynq.Config{Concurrency: 5})
	go func() {
		if err := server.Run(worker.Mux()); err != nil {
			logger.Fatal().Err(err).Msg("task worker stopped")
		}
	}()

	scheduler, err := tasks.NewScheduler(cfg)
	if err != nil {
		logger.Fatal().Err(err).Msg("failed to build scheduler")
	}
	go func() {
		if err := scheduler.Run(); err != nil {
			logger.Fatal().Err(err).Msg("scheduler stopped")
		}
	}()
}

// ensureAdminUser seeds the initial administrator account on first boot.
func ensureAdminUser(db *gorm.DB, logger zerolog.Logger) error {
	var count int64
	if err := db.Model(&models.User{}).Where("role = ?", models.RoleAdmin).Count(&count).Error; err != nil {
		return err
	}
	if count > 0 {
		return nil
	}

	admin := models.User{
		Username: "admin",
		Email:    "admin@hospital.com",
		Role:     models.RoleAdmin,
	}
	password := os.Getenv("ADMIN_PASSWORD")
	if password == "" {
		password = "admin123"
	}
	if err := admin.SetPassword(password); err != nil {
		return err
	}
	if err := db.Create(&admin).Error; err != nil {
		return err
	}
	logger.Info().Msg("admin user created")
	return nil
}
