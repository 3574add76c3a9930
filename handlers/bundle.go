package handlers

import (
	"net/http"

	"github.com/gin-gonic/gin"

	settingsRepo "appointa/database/repository/settings"
	"appointa/services/availability"
	"appointa/services/booking"
	"appointa/services/extraction"
	"appointa/services/reservation"
	"appointa/utils"
)

// HandlerBundle groups the engine's endpoint handlers and their services.
type HandlerBundle struct {
	Availability availability.Service
	Reservations reservation.Service
	Lifecycle    booking.LifecycleService
	Pipeline     *extraction.Pipeline
	Accumulator  *extraction.Accumulator
	SettingsRepo settingsRepo.SettingsRepository
}

// softFailStatus maps rejection codes to HTTP statuses. The body always
// carries the structured soft-fail so the conversational layer can phrase it.
func softFailStatus(code string) int {
	switch code {
	case reservation.CodeSlotTaken, reservation.CodePendingExists, reservation.CodeAlreadyResolved:
		return http.StatusConflict
	case reservation.CodeReservationNotFound, reservation.CodeBookingNotFound:
		return http.StatusNotFound
	case reservation.CodeNotOwner:
		return http.StatusForbidden
	case reservation.CodeExpired:
		return http.StatusGone
	default:
		return http.StatusBadRequest
	}
}

// respondError renders a soft-fail as data and anything else as a 500.
func respondError(c *gin.Context, err error) {
	if sf, ok := reservation.AsSoftFail(err); ok {
		c.JSON(softFailStatus(sf.Code), sf)
		return
	}
	utils.JSONError(c, http.StatusInternalServerError, "Internal Server Error", err.Error())
}
