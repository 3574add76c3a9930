package utils

import (
	"context"
	"net/http"
	"time"

	"github.com/gin-gonic/gin"

	"appointa/database"
)

// HealthCheck reports reachability of the engine's backing stores.
func HealthCheck(c *gin.Context) {
	ctx, cancel := context.WithTimeout(c.Request.Context(), 2*time.Second)
	defer cancel()

	mongoStatus := "up"
	if err := database.MongoClient.Ping(ctx, nil); err != nil {
		mongoStatus = "down"
	}

	redisStatus := "up"
	if err := GetCacheClient().Ping(ctx).Err(); err != nil {
		redisStatus = "down"
	}

	status := http.StatusOK
	overall := "healthy"
	if mongoStatus == "down" || redisStatus == "down" {
		status = http.StatusServiceUnavailable
		overall = "degraded"
	}

	c.JSON(status, gin.H{
		"overall": overall,
		"components": gin.H{
			"mongo": mongoStatus,
			"redis": redisStatus,
		},
	})
}
