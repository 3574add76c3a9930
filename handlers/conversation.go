package handlers

import (
	"net/http"
	"time"

	"github.com/gin-gonic/gin"

	"appointa/models"
	"appointa/services/reservation"
	"appointa/utils"
)

// ProcessConversationTurn runs one inbound turn through the extraction
// pipeline and advances the booking flow as far as the accumulated data
// allows: collect missing fields, hold a slot, or confirm the held one.
// Rejections come back as structured soft-fails for the agent to phrase.
func (hb *HandlerBundle) ProcessConversationTurn(c *gin.Context) {
	var input struct {
		ConversationID string                       `json:"conversationId" binding:"required"`
		ConsultantID   string                       `json:"consultantId" binding:"required"`
		ClientID       string                       `json:"clientId"`
		Messages       []models.ConversationMessage `json:"messages" binding:"required"`
	}
	if err := c.ShouldBindJSON(&input); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "invalid input", "details": err.Error()})
		return
	}

	turn, err := hb.Pipeline.ProcessTurn(c.Request.Context(), input.ConversationID, input.ConsultantID, input.Messages)
	if err != nil {
		respondError(c, err)
		return
	}

	if turn.IsConfirming {
		booking, err := hb.Reservations.Confirm(c.Request.Context(), reservation.ConfirmRequest{
			ConversationID: input.ConversationID,
			ClientID:       input.ClientID,
		})
		if err != nil {
			if sf, ok := reservation.AsSoftFail(err); ok {
				c.JSON(http.StatusOK, gin.H{"state": "rejected", "draft": turn.Draft, "softFail": sf})
				return
			}
			respondError(c, err)
			return
		}
		if err := hb.Accumulator.Complete(c.Request.Context(), input.ConversationID); err != nil {
			utils.GetLogger().Sugar().Warnf("Failed to close extraction state for %s: %v", input.ConversationID, err)
		}
		c.JSON(http.StatusOK, gin.H{"state": "confirmed", "booking": booking})
		return
	}

	if !turn.HasAllData {
		c.JSON(http.StatusOK, gin.H{
			"state":   "collecting",
			"draft":   turn.Draft,
			"missing": missingFields(turn.Draft),
		})
		return
	}

	cfg, err := hb.Availability.ResolveConfig(c.Request.Context(), input.ConsultantID)
	if err != nil {
		respondError(c, err)
		return
	}
	startAt, err := reservation.ParseStart(deref(turn.Draft.Date), deref(turn.Draft.Time), cfg.Location, time.Now())
	if err != nil {
		if sf, ok := reservation.AsSoftFail(err); ok {
			c.JSON(http.StatusOK, gin.H{"state": "rejected", "draft": turn.Draft, "softFail": sf})
			return
		}
		respondError(c, err)
		return
	}

	token, err := hb.Reservations.Propose(c.Request.Context(), reservation.ProposeRequest{
		ConsultantID:   input.ConsultantID,
		ClientID:       input.ClientID,
		ClientName:     deref(turn.Draft.Name),
		ClientPhone:    deref(turn.Draft.Phone),
		ClientEmail:    deref(turn.Draft.Email),
		StartAt:        startAt,
		ConversationID: input.ConversationID,
	})
	if err != nil {
		if sf, ok := reservation.AsSoftFail(err); ok {
			resp := gin.H{"state": "rejected", "draft": turn.Draft, "softFail": sf}
			// On contention, hand the agent nearby options to re-propose.
			if sf.Code == reservation.CodeSlotTaken || sf.Code == reservation.CodePendingExists {
				alts, altErr := hb.Availability.GetAvailableSlots(c.Request.Context(), input.ConsultantID,
					startAt, startAt.AddDate(0, 0, 7), models.SlotFilters{}, 3)
				if altErr == nil {
					resp["alternatives"] = alts
				}
			}
			c.JSON(http.StatusOK, resp)
			return
		}
		respondError(c, err)
		return
	}

	c.JSON(http.StatusOK, gin.H{
		"state":   "proposed",
		"token":   token,
		"startAt": startAt,
		"draft":   turn.Draft,
	})
}

func missingFields(d *models.BookingDraft) []string {
	var missing []string
	if d.Date == nil {
		missing = append(missing, models.FieldDate)
	}
	if d.Time == nil {
		missing = append(missing, models.FieldTime)
	}
	if d.Phone == nil {
		missing = append(missing, models.FieldPhone)
	}
	if d.Email == nil {
		missing = append(missing, models.FieldEmail)
	}
	return missing
}

func deref(s *string) string {
	if s == nil {
		return ""
	}
	return *s
}
