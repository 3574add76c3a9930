package routes

import (
	"time"

	"github.com/gin-contrib/cors"
	"github.com/gin-gonic/gin"

	"appointa/handlers"
	"appointa/middleware"
	"appointa/utils"
)

// RegisterAvailabilityRoutes registers slot computation and settings
// endpoints.
func RegisterAvailabilityRoutes(r *gin.Engine, hb *handlers.HandlerBundle) {
	api := r.Group("/api/availability")
	{
		api.GET("/:consultantID/slots", hb.GetAvailableSlots)
		api.GET("/:consultantID/config", hb.GetAvailabilityConfig)
		api.PUT("/:consultantID/settings", hb.UpsertAvailabilitySettings)
	}
}

// RegisterReservationRoutes registers the hold and confirm endpoints.
func RegisterReservationRoutes(r *gin.Engine, hb *handlers.HandlerBundle) {
	api := r.Group("/api/reservations")
	{
		api.POST("/propose", hb.ProposeReservation)
		api.POST("/confirm", hb.ConfirmReservation)
		api.GET("/status/:clientID", hb.GetBookingStatus)
	}
}

// RegisterBookingRoutes registers lifecycle operations on confirmed
// bookings.
func RegisterBookingRoutes(r *gin.Engine, hb *handlers.HandlerBundle) {
	api := r.Group("/api/bookings")
	{
		api.PATCH("/:bookingID", hb.ModifyBooking)
		api.DELETE("/:bookingID", hb.CancelBooking)
		api.POST("/:bookingID/attendees", hb.AddBookingAttendees)
	}
}

// RegisterConversationRoutes registers the agent turn endpoint.
func RegisterConversationRoutes(r *gin.Engine, hb *handlers.HandlerBundle) {
	api := r.Group("/api/conversation")
	{
		api.POST("/turn", hb.ProcessConversationTurn)
	}
}

// RegisterHealthRoute registers a health-check endpoint.
func RegisterHealthRoute(r *gin.Engine) {
	r.GET("/health", utils.HealthCheck)
}

// RegisterRoutes centralizes registration of all endpoints and middleware.
func RegisterRoutes(r *gin.Engine, hb *handlers.HandlerBundle) {
	r.Use(cors.New(cors.Config{
		AllowOrigins:     []string{"*"},
		AllowMethods:     []string{"GET", "POST", "PUT", "PATCH", "DELETE", "OPTIONS"},
		AllowHeaders:     []string{"Origin", "Authorization", "Content-Type"},
		ExposeHeaders:    []string{"Content-Length"},
		AllowCredentials: true,
		MaxAge:           12 * time.Hour,
	}))
	r.Use(middleware.RateLimitMiddleware())

	RegisterHealthRoute(r)
	RegisterAvailabilityRoutes(r, hb)
	RegisterReservationRoutes(r, hb)
	RegisterBookingRoutes(r, hb)
	RegisterConversationRoutes(r, hb)
}
