package handlers

import (
	"net/http"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"

	"appointa/models"
)

// UpsertAvailabilitySettings stores a consultant's raw scheduling policy.
// Normalization happens at read time, so legacy payload shapes stay valid.
func (hb *HandlerBundle) UpsertAvailabilitySettings(c *gin.Context) {
	consultantID := c.Param("consultantID")

	var input models.AvailabilitySettings
	if err := c.ShouldBindJSON(&input); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "invalid input", "details": err.Error()})
		return
	}
	input.ConsultantID = consultantID
	if input.ID == "" {
		input.ID = uuid.New().String()
	}

	if err := hb.SettingsRepo.Upsert(c.Request.Context(), &input); err != nil {
		respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"status": "saved", "consultantId": consultantID})
}

// GetAvailabilityConfig returns the normalized scheduling policy.
func (hb *HandlerBundle) GetAvailabilityConfig(c *gin.Context) {
	consultantID := c.Param("consultantID")

	cfg, err := hb.Availability.ResolveConfig(c.Request.Context(), consultantID)
	if err != nil {
		respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, cfg)
}
