package handler

import (
	"context"
	"net/http"
	"time"

	"github.com/gin-gonic/gin"
)

// HealthChecker is implemented by the Postgres and Redis clients
type HealthChecker interface {
	HealthCheck(ctx context.Context) error
}

// HealthHandler handles health check HTTP requests
type HealthHandler struct {
	service string
	db      HealthChecker
	cache   HealthChecker
	timeout time.Duration
}

// NewHealthHandler creates a new HealthHandler
func NewHealthHandler(service string, db, cache HealthChecker) *HealthHandler {
	return &HealthHandler{service: service, db: db, cache: cache, timeout: 2 * time.Second}
}

// Health returns basic health status
// GET /health
func (h *HealthHandler) Health(c *gin.Context) {
	c.JSON(http.StatusOK, gin.H{
		"status":  "ok",
		"service": h.service,
	})
}

// Ready checks that Postgres and Redis answer
// GET /ready
func (h *HealthHandler) Ready(c *gin.Context) {
	ctx, cancel := context.WithTimeout(c.Request.Context(), h.timeout)
	defer cancel()

	body := gin.H{"service": h.service}
	ready := true

	if err := h.db.HealthCheck(ctx); err != nil {
		body["database"] = "disconnected"
		body["database_error"] = err.Error()
		ready = false
	} else {
		body["database"] = "connected"
	}

	if err := h.cache.HealthCheck(ctx); err != nil {
		body["redis"] = "disconnected"
		body["redis_error"] = err.Error()
		ready = false
	} else {
		body["redis"] = "connected"
	}

	if !ready {
		body["status"] = "not_ready"
		c.JSON(http.StatusServiceUnavailable, body)
		return
	}

	body["status"] = "ready"
	c.JSON(http.StatusOK, body)
}
