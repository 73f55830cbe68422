package routes

import (
	"github.com/gin-gonic/gin"
	"github.com/hibiken/asynq"
	"github.com/rs/zerolog"
	"gorm.io/gorm"

	"hospital-booking-server/internal/config"
	"hospital-booking-server/internal/handlers"
	"hospital-booking-server/internal/middleware"
	"hospital-booking-server/internal/models"
	"hospital-booking-server/internal/scheduling"
)

// SetupRoutes configures the application routes.
func SetupRoutes(router *gin.Engine, db *gorm.DB, cfg *config.Config, queue *asynq.Client, log zerolog.Logger) {
	// Scheduling core: every appointment write funnels through the engine.
	repo := scheduling.NewGormAppointmentRepository(db)
	availability := scheduling.NewGormAvailabilityStore(db, cfg.Location)
	engine := scheduling.NewEngine(repo, availability, cfg.Location, log)

	// Initialize handlers
	authHandler := handlers.NewAuthHandler(db, cfg)
	adminHandler := handlers.NewAdminHandler(db, cfg.Location, log)
	doctorHandler := handlers.NewDoctorHandler(db, engine, log)
	patientHandler := handlers.NewPatientHandler(db, engine, queue, log)
	directoryHandler := handlers.NewDirectoryHandler(db, availability)

	// Public routes (no authentication required)
	public := router.Group("/api/v1")
	{
		authRoutes := public.Group("/auth")
		{
			authRoutes.POST("/register", authHandler.Register)
			authRoutes.POST("/login", authHandler.Login)
		}

		// Doctor directory for booking, open to unauthenticated browsing
		public.GET("/doctors", directoryHandler.GetDoctors)
		public.GET("/doctors/search", directoryHandler.SearchDoctors)
		public.GET("/doctors/:doctorId/availability", directoryHandler.GetDoctorAvailability)
		public.GET("/specializations", directoryHandler.GetSpecializations)
	}

	// Authenticated routes
	private := router.Group("/api/v1")
	private.Use(middleware.AuthMiddleware(cfg))
	{
		// Admin roster management and statistics
		adminRoutes := private.Group("/admin")
		adminRoutes.Use(middleware.RoleAuthMiddleware(models.RoleAdmin))
		{
			adminRoutes.GET("/stats", adminHandler.GetStats)
			adminRoutes.GET("/appointments", adminHandler.GetAppointments)
			adminRoutes.GET("/doctors", adminHandler.GetDoctors)
			adminRoutes.POST("/doctors", adminHandler.CreateDoctor)
			adminRoutes.PUT("/doctors/:id", adminHandler.UpdateDoctor)
			adminRoutes.DELETE("/doctors/:id", adminHandler.DeleteDoctor)
			adminRoutes.GET("/patients", adminHandler.GetPatients)
			adminRoutes.DELETE("/patients/:id", adminHandler.DeletePatient)
			adminRoutes.GET("/search/doctors", adminHandler.SearchDoctors)
			adminRoutes.GET("/search/patients", adminHandler.SearchPatients)
		}

		// Doctor-facing schedule and records
		doctorRoutes := private.Group("/doctor")
		doctorRoutes.Use(middleware.RoleAuthMiddleware(models.RoleDoctor))
		{
			doctorRoutes.GET("/appointments", doctorHandler.GetAppointments)
			doctorRoutes.GET("/appointments/upcoming", doctorHandler.GetUpcomingAppointments)
			doctorRoutes.PUT("/appointments/:id", doctorHandler.UpdateAppointment)
			doctorRoutes.GET("/patients", doctorHandler.GetPatients)
			doctorRoutes.GET("/patients/:patientId/history", doctorHandler.GetPatientHistory)
			doctorRoutes.GET("/availability", doctorHandler.GetAvailability)
			doctorRoutes.POST("/availability", doctorHandler.SetAvailability)
		}

		// Patient-facing booking surface
		patientRoutes := private.Group("/patient")
		patientRoutes.Use(middleware.RoleAuthMiddleware(models.RolePatient))
		{
			patientRoutes.POST("/appointments", patientHandler.BookAppointment)
			patientRoutes.GET("/appointments", patientHandler.GetAppointments)
			patientRoutes.PUT("/appointments/:id", patientHandler.RescheduleAppointment)
			patientRoutes.DELETE("/appointments/:id", patientHandler.CancelAppointment)
			patientRoutes.GET("/treatment-history", patientHandler.GetTreatmentHistory)
			patientRoutes.GET("/profile", patientHandler.GetProfile)
			patientRoutes.PUT("/profile", patientHandler.UpdateProfile)
			patientRoutes.POST("/export", patientHandler.ExportHistory)
		}
	}

	// Simple health check endpoint
	router.GET("/health", func(c *gin.Context) {
		c.JSON(200, gin.H{"status": "UP"})
	})
}
