package handlers

import (
	"net/http"
	"time"

	"github.com/gin-gonic/gin"

	"appointa/services/reservation"
)

// ModifyBooking reschedules a confirmed booking.
func (hb *HandlerBundle) ModifyBooking(c *gin.Context) {
	bookingID := c.Param("bookingID")

	var input struct {
		NewStart    time.Time `json:"newStart" binding:"required"`
		NewDuration int       `json:"newDurationMinutes"`
	}
	if err := c.ShouldBindJSON(&input); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "invalid input", "details": err.Error()})
		return
	}

	booking, err := hb.Lifecycle.Modify(c.Request.Context(), bookingID, input.NewStart, input.NewDuration)
	if err != nil {
		respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, booking)
}

// CancelBooking soft-deletes a booking. Repeating the call is a no-op.
func (hb *HandlerBundle) CancelBooking(c *gin.Context) {
	bookingID := c.Param("bookingID")

	if err := hb.Lifecycle.Cancel(c.Request.Context(), bookingID); err != nil {
		respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"status": "cancelled", "bookingId": bookingID})
}

// AddBookingAttendees merges attendee emails into a booking.
func (hb *HandlerBundle) AddBookingAttendees(c *gin.Context) {
	bookingID := c.Param("bookingID")

	var input struct {
		Emails []string `json:"emails" binding:"required"`
	}
	if err := c.ShouldBindJSON(&input); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "invalid input", "details": err.Error()})
		return
	}
	if len(input.Emails) == 0 {
		respondError(c, reservation.NewSoftFail("MISSING_EMAILS", "No attendee emails were provided.", ""))
		return
	}

	result, err := hb.Lifecycle.AddAttendees(c.Request.Context(), bookingID, input.Emails)
	if err != nil {
		respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, result)
}
