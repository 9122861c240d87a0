// Health HTTP handler.
//
// This file exposes the liveness/readiness endpoint:
//   - GET /health
//
// The check is intentionally shallow: one database ping plus static
// configuration facts. It never calls the external dashboard, so a dashboard
// outage does not flip the gateway unhealthy (the gateway's whole job is to
// stay up through one).
package handlers

import (
	"net/http"
	"time"

	"github.com/gin-gonic/gin"
	"gorm.io/gorm"

	"github.com/tbourn/go-ingest-gateway/internal/repo"
)

// Health returns a handler reporting process and storage health.
//
// Response:
//
//	200 {"status":"healthy","database":"ok","ingest_configured":true,"response_time_ms":0.2}
//	503 {"status":"unhealthy","database":"unavailable",...} when the ping fails
//
// ingestConfigured reports whether an ingest key is set; a gateway without
// one rejects every submission, which is worth surfacing on a probe.
func Health(db *gorm.DB, ingestConfigured bool) gin.HandlerFunc {
	return func(c *gin.Context) {
		start := time.Now()

		status := http.StatusOK
		overall := "healthy"
		database := "ok"
		if err := repo.Ping(db); err != nil {
			status = http.StatusServiceUnavailable
			overall = "unhealthy"
			database = "unavailable"
		}

		c.JSON(status, gin.H{
			"status":            overall,
			"database":          database,
			"ingest_configured": ingestConfigured,
			"response_time_ms":  float64(time.Since(start).Microseconds()) / 1000.0,
		})
	}
}
