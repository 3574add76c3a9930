package handlers

import (
	"net/http"
	"strconv"
	"time"

	"github.com/gin-gonic/gin"

	"appointa/services/reservation"
	"appointa/utils"
)

// ProposeReservation places a time-boxed hold on a slot. The date and time
// arrive as conversational strings and are validated before any store touch.
func (hb *HandlerBundle) ProposeReservation(c *gin.Context) {
	var input struct {
		ConsultantID   string `json:"consultantId" binding:"required"`
		ClientID       string `json:"clientId"`
		ClientName     string `json:"clientName"`
		ClientPhone    string `json:"clientPhone"`
		ClientEmail    string `json:"clientEmail"`
		Date           string `json:"date"`
		Time           string `json:"time"`
		DurationMin    int    `json:"durationMinutes"`
		ConversationID string `json:"conversationId"`
		Notes          string `json:"notes"`
	}
	if err := c.ShouldBindJSON(&input); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "invalid input", "details": err.Error()})
		return
	}

	cfg, err := hb.Availability.ResolveConfig(c.Request.Context(), input.ConsultantID)
	if err != nil {
		respondError(c, err)
		return
	}
	startAt, err := reservation.ParseStart(input.Date, input.Time, cfg.Location, time.Now())
	if err != nil {
		respondError(c, err)
		return
	}

	duration := input.DurationMin
	if duration <= 0 {
		duration = cfg.DurationMinutes
	}

	token, err := hb.Reservations.Propose(c.Request.Context(), reservation.ProposeRequest{
		ConsultantID:    input.ConsultantID,
		ClientID:        input.ClientID,
		ClientName:      input.ClientName,
		ClientPhone:     input.ClientPhone,
		ClientEmail:     input.ClientEmail,
		StartAt:         startAt,
		DurationMinutes: duration,
		ConversationID:  input.ConversationID,
		Notes:           input.Notes,
	})
	if err != nil {
		respondError(c, err)
		return
	}

	c.JSON(http.StatusOK, gin.H{
		"token":     token,
		"startAt":   startAt,
		"expiresIn": "10m",
	})
}

// ConfirmReservation finalizes a hold into a booking. Safe to replay.
func (hb *HandlerBundle) ConfirmReservation(c *gin.Context) {
	var input struct {
		Token          string `json:"token"`
		ConversationID string `json:"conversationId"`
		ClientID       string `json:"clientId"`
	}
	if err := c.ShouldBindJSON(&input); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "invalid input", "details": err.Error()})
		return
	}

	booking, err := hb.Reservations.Confirm(c.Request.Context(), reservation.ConfirmRequest{
		Token:          input.Token,
		ConversationID: input.ConversationID,
		ClientID:       input.ClientID,
	})
	if err != nil {
		respondError(c, err)
		return
	}

	if input.ConversationID != "" && hb.Accumulator != nil {
		if err := hb.Accumulator.Complete(c.Request.Context(), input.ConversationID); err != nil {
			utils.GetLogger().Sugar().Warnf("Failed to close extraction state for %s: %v", input.ConversationID, err)
		}
	}
	c.JSON(http.StatusOK, booking)
}

// GetBookingStatus lists a client's bookings for one calendar month.
func (hb *HandlerBundle) GetBookingStatus(c *gin.Context) {
	clientID := c.Param("clientID")

	now := time.Now()
	month := int(now.Month())
	year := now.Year()
	if v := c.Query("month"); v != "" {
		parsed, err := strconv.Atoi(v)
		if err != nil {
			respondError(c, reservation.NewSoftFail(reservation.CodeInvalidMonth, "month must be a number", "Use a month between 1 and 12."))
			return
		}
		month = parsed
	}
	if v := c.Query("year"); v != "" {
		parsed, err := strconv.Atoi(v)
		if err != nil {
			respondError(c, reservation.NewSoftFail(reservation.CodeInvalidYear, "year must be a number", ""))
			return
		}
		year = parsed
	}

	bookings, err := hb.Reservations.GetStatus(c.Request.Context(), clientID, month, year)
	if err != nil {
		respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{
		"clientId": clientID,
		"month":    month,
		"year":     year,
		"bookings": bookings,
		"count":    len(bookings),
	})
}
