package routes

import (
	"net/http"

	"github.com/gin-gonic/gin"

	"sacs-telemedicina-hub/internal/appointments"
	"sacs-telemedicina-hub/internal/clinical"
	"sacs-telemedicina-hub/internal/config"
	"sacs-telemedicina-hub/internal/handlers"
	"sacs-telemedicina-hub/internal/identity"
	"sacs-telemedicina-hub/internal/metrics"
	"sacs-telemedicina-hub/internal/middleware"
	"sacs-telemedicina-hub/internal/models"
	"sacs-telemedicina-hub/internal/telemedicine"
)

// Deps are the services the HTTP surface is built on.
type Deps struct {
	Cfg          *config.Config
	Engine       *appointments.Engine
	Views        *appointments.Views
	Directory    *identity.Directory
	Profiles     *identity.Profiles
	Clinical     *clinical.Service
	Telemedicine *telemedicine.Service
	Metrics      *metrics.Collector
}

// SetupRoutes configures the application routes.
func SetupRoutes(router *gin.Engine, d Deps) {
	authHandler := handlers.NewAuthHandler(d.Directory, d.Profiles, d.Cfg, d.Metrics)
	userHandler := handlers.NewUserHandler(d.Directory)
	appointmentHandler := handlers.NewAppointmentHandler(d.Engine, d.Views)
	clinicalHandler := handlers.NewClinicalHandler(d.Clinical, d.Engine)
	telemedicineHandler := handlers.NewTelemedicineHandler(d.Telemedicine)
	reportHandler := handlers.NewReportHandler(d.Views)

	loginLimiter := middleware.NewRateLimiter(d.Cfg.LoginRatePerMinute)

	public := router.Group("/api/v1")
	{
		authRoutes := public.Group("/auth")
		{
			authRoutes.POST("/login", loginLimiter.Middleware(), authHandler.Login)
			authRoutes.POST("/refresh-token", authHandler.RefreshToken)
		}
	}

	private := router.Group("/api/v1")
	private.Use(middleware.AuthMiddleware(d.Cfg))
	{
		authRoutesPrivate := private.Group("/auth")
		{
			authRoutesPrivate.POST("/logout", authHandler.Logout)
			authRoutesPrivate.GET("/profile", authHandler.GetProfile)
		}

		staff := middleware.RoleAuthMiddleware(models.RoleDoctor, models.RoleStaff, models.RoleCenterAdmin)
		private.GET("/doctors", userHandler.GetDoctors)
		private.GET("/patients", staff, userHandler.GetPatients)
		private.POST("/patients", staff, userHandler.CreatePatient)

		appointmentRoutes := private.Group("/appointments")
		{
			requesters := middleware.RoleAuthMiddleware(models.RolePatient, models.RoleStaff, models.RoleCenterAdmin)
			appointmentRoutes.POST("/teleconsultation", requesters, appointmentHandler.RequestTeleconsultation)
			appointmentRoutes.POST("/routine", requesters, appointmentHandler.RequestRoutine)
			appointmentRoutes.POST("/emergency",
				middleware.RoleAuthMiddleware(models.RolePatient, models.RoleDoctor, models.RoleStaff, models.RoleCenterAdmin),
				appointmentHandler.RaiseEmergency)
			appointmentRoutes.POST("/direct", staff, appointmentHandler.DirectBook)

			// Patients are restricted to their own records inside the handlers.
			appointmentRoutes.GET("", appointmentHandler.ListForPatient)
			appointmentRoutes.GET("/agenda", middleware.RoleAuthMiddleware(models.RoleDoctor), appointmentHandler.DoctorAgenda)
			appointmentRoutes.GET("/center/:centerId", staff, appointmentHandler.ListForCenter)
			appointmentRoutes.GET("/:id", appointmentHandler.GetAppointment)

			doctor := middleware.RoleAuthMiddleware(models.RoleDoctor)
			patient := middleware.RoleAuthMiddleware(models.RolePatient)
			appointmentRoutes.POST("/:id/counter-propose", doctor, appointmentHandler.CounterPropose)
			appointmentRoutes.POST("/:id/accept", patient, appointmentHandler.AcceptProposal)
			appointmentRoutes.POST("/:id/reject", patient, appointmentHandler.RejectProposal)
			appointmentRoutes.POST("/:id/confirm", staff, appointmentHandler.Confirm)
			appointmentRoutes.POST("/:id/attend", doctor, appointmentHandler.AttendEmergency)
			appointmentRoutes.POST("/:id/start-session", doctor, appointmentHandler.StartSession)
			appointmentRoutes.POST("/:id/complete", doctor, appointmentHandler.Complete)
			appointmentRoutes.POST("/:id/cancel",
				middleware.RoleAuthMiddleware(models.RolePatient, models.RoleDoctor, models.RoleStaff, models.RoleCenterAdmin),
				appointmentHandler.Cancel)
			appointmentRoutes.POST("/:id/notes",
				middleware.RoleAuthMiddleware(models.RolePatient, models.RoleDoctor),
				appointmentHandler.Annotate)
		}

		clinicalRoutes := private.Group("/clinical")
		{
			doctor := middleware.RoleAuthMiddleware(models.RoleDoctor)
			clinicalRoutes.POST("/notes", doctor, clinicalHandler.CreateNote)
			clinicalRoutes.GET("/notes/patient/:patientId",
				middleware.RoleAuthMiddleware(models.RoleDoctor, models.RolePatient),
				clinicalHandler.PatientHistory)
			clinicalRoutes.POST("/prescriptions", doctor, clinicalHandler.CreatePrescription)
			clinicalRoutes.POST("/lab-orders", doctor, clinicalHandler.CreateLabOrder)
		}

		pharmacyRoutes := private.Group("/pharmacy")
		pharmacyRoutes.Use(middleware.RoleAuthMiddleware(models.RolePharmacist))
		{
			pharmacyRoutes.GET("/prescriptions/:code", clinicalHandler.ValidatePrescription)
			pharmacyRoutes.POST("/prescriptions/:id/dispense", clinicalHandler.DispensePrescription)
		}

		labRoutes := private.Group("/lab")
		{
			labTech := middleware.RoleAuthMiddleware(models.RoleLabTech)
			labRoutes.GET("/orders", middleware.RoleAuthMiddleware(models.RoleLabTech, models.RoleDoctor), clinicalHandler.ListLabOrders)
			labRoutes.POST("/orders/:id/start", labTech, clinicalHandler.StartLabOrder)
			labRoutes.POST("/orders/:id/result", labTech, clinicalHandler.CompleteLabOrder)
		}

		sessionRoutes := private.Group("/telemedicine/sessions")
		sessionRoutes.Use(middleware.RoleAuthMiddleware(models.RoleDoctor, models.RolePatient))
		{
			sessionRoutes.GET("/:id", telemedicineHandler.GetSession)
			sessionRoutes.POST("/:id/join", telemedicineHandler.JoinSession)
			sessionRoutes.POST("/:id/end", telemedicineHandler.EndSession)
		}

		private.GET("/reports/appointments.xlsx",
			middleware.RoleAuthMiddleware(models.RoleCenterAdmin),
			reportHandler.ExportAppointments)
	}

	router.GET("/metrics", gin.WrapH(d.Metrics.Handler()))
	router.GET("/health", func(c *gin.Context) {
		c.JSON(http.StatusOK, gin.H{"status": "UP"})
	})
}
