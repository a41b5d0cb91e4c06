package controllers

import (
	"context"
	"net/http"
	"time"

	"github.com/gin-gonic/gin"
)

// Pinger reports whether a backing service answers.
type Pinger interface {
	Ping(ctx context.Context) error
}

type HealthController struct {
	store   Pinger
	backend string
	version string
}

// NewHealthController reports on store, labelled with the backend name
// (postgres or memory).
func NewHealthController(store Pinger, backend, version string) *HealthController {
	return &HealthController{store: store, backend: backend, version: version}
}

func (hc *HealthController) Health(c *gin.Context) {
	dbStatus := gin.H{"status": "ok", "backend": hc.backend}
	overallStatus := "ok"
	statusCode := http.StatusOK

	if err := hc.store.Ping(c.Request.Context()); err != nil {
		dbStatus["status"] = "error"
		dbStatus["error"] = err.Error()
		overallStatus = "error"
		statusCode = http.StatusServiceUnavailable
	}

	c.JSON(statusCode, gin.H{
		"status":    overallStatus,
		"timestamp": time.Now().UTC().Format(time.RFC3339),
		"version":   hc.version,
		"services": gin.H{
			"database": dbStatus,
		},
	})
}
