package handlers

import (
	"net/http"
	"strconv"
	"time"

	"github.com/gin-gonic/gin"

	"appointa/models"
)

// GetAvailableSlots returns offerable slots for a consultant.
// Query params: from, to (RFC3339, default now .. now+7d), dayOfWeek,
// timeBand, max.
func (hb *HandlerBundle) GetAvailableSlots(c *gin.Context) {
	consultantID := c.Param("consultantID")

	now := time.Now()
	from := now
	to := now.AddDate(0, 0, 7)
	if v := c.Query("from"); v != "" {
		parsed, err := time.Parse(time.RFC3339, v)
		if err != nil {
			c.JSON(http.StatusBadRequest, gin.H{"error": "from must be RFC3339"})
			return
		}
		from = parsed
	}
	if v := c.Query("to"); v != "" {
		parsed, err := time.Parse(time.RFC3339, v)
		if err != nil {
			c.JSON(http.StatusBadRequest, gin.H{"error": "to must be RFC3339"})
			return
		}
		to = parsed
	}

	maxResults := 0
	if v := c.Query("max"); v != "" {
		parsed, err := strconv.Atoi(v)
		if err != nil || parsed < 0 {
			c.JSON(http.StatusBadRequest, gin.H{"error": "max must be a non-negative integer"})
			return
		}
		maxResults = parsed
	}

	filters := models.SlotFilters{
		DayOfWeek: c.Query("dayOfWeek"),
		TimeBand:  c.Query("timeBand"),
	}

	slots, err := hb.Availability.GetAvailableSlots(c.Request.Context(), consultantID, from, to, filters, maxResults)
	if err != nil {
		respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"consultantId": consultantID, "slots": slots, "count": len(slots)})
}
