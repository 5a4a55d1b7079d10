package routes

import (
	"net/http"

	"github.com/gin-gonic/gin"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"clinic-portal-server/internal/appointment"
	"clinic-portal-server/internal/handlers"
	"clinic-portal-server/internal/middleware"
	"clinic-portal-server/internal/models"
	"clinic-portal-server/internal/telemedicine"
	"clinic-portal-server/internal/utils"
)

// Dependencies are the services the HTTP surface is built on.
type Dependencies struct {
	JWTSecret    string
	Appointments *appointment.Service
	Meetings     *telemedicine.Provisioner
	Users        handlers.UserLister
	Gatherer     prometheus.Gatherer
	// Ready reports whether backing stores are reachable. Nil means always ready.
	Ready func() error
}

// SetupRoutes configures the application routes.
func SetupRoutes(router *gin.Engine, deps Dependencies) {
	appointmentHandler := handlers.NewAppointmentHandler(deps.Appointments)
	meetingHandler := handlers.NewMeetingHandler(deps.Meetings)
	userHandler := handlers.NewUserHandler(deps.Users)

	// Public routes (no authentication required)
	public := router.Group("/api/v1")
	{
		// Reached from the emailed link, the token is the credential.
		public.GET("/appointments/verify", appointmentHandler.VerifyAppointment)
	}

	// Authenticated routes
	private := router.Group("/api/v1")
	private.Use(middleware.AuthMiddleware(deps.JWTSecret))
	{
		private.GET("/users/doctors", userHandler.GetDoctors)

		appointmentRoutes := private.Group("/appointments")
		{
			appointmentRoutes.POST("", middleware.RoleAuthMiddleware(models.RolePatient, models.RoleUser), appointmentHandler.CreateAppointment)
			appointmentRoutes.GET("", middleware.RoleAuthMiddleware(models.RoleDoctor, models.RoleAdmin), appointmentHandler.GetAllAppointments)
			appointmentRoutes.GET("/patient", appointmentHandler.GetPatientAppointments)
			appointmentRoutes.GET("/doctor", middleware.RoleAuthMiddleware(models.RoleDoctor), appointmentHandler.GetDoctorAppointments)

			// Participant checks happen in the services.
			appointmentRoutes.GET("/:id", appointmentHandler.GetAppointmentByID)
			appointmentRoutes.PATCH("/:id/status", middleware.RoleAuthMiddleware(models.RoleDoctor, models.RoleAdmin), appointmentHandler.UpdateAppointmentStatus)

			appointmentRoutes.POST("/:id/meeting", meetingHandler.CreateMeeting)
			appointmentRoutes.GET("/:id/meeting", meetingHandler.GetMeeting)
			appointmentRoutes.GET("/:id/meeting/join", meetingHandler.JoinMeeting)
		}
	}

	gatherer := deps.Gatherer
	if gatherer == nil {
		gatherer = prometheus.DefaultGatherer
	}
	router.GET("/metrics", gin.WrapH(promhttp.HandlerFor(gatherer, promhttp.HandlerOpts{})))

	// Simple health check endpoint
	router.GET("/health", func(c *gin.Context) {
		if deps.Ready != nil {
			if err := deps.Ready(); err != nil {
				_ = c.Error(err)
				utils.Error(c, http.StatusServiceUnavailable, "Database unavailable")
				return
			}
		}
		utils.Success(c, "Service is healthy", gin.H{"state": "UP"})
	})
}
