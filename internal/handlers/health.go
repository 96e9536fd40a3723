package handlers

import (
	"context"
	"fmt"
	"net/http"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/stwalsh4118/parcelbook/internal/middleware"
)

const (
	// APIVersion is the current version of the API
	APIVersion = "0.2.0"
	// HealthCheckTimeout is the timeout for dependency health checks
	HealthCheckTimeout = 2 * time.Second
)

// Pinger is a dependency that can report whether it is reachable.
type Pinger interface {
	Ping(ctx context.Context) error
}

// PingFunc adapts a function to Pinger.
type PingFunc func(ctx context.Context) error

// Ping calls f.
func (f PingFunc) Ping(ctx context.Context) error { return f(ctx) }

// HealthHandler handles health check and readiness endpoints.
type HealthHandler struct {
	db        Pinger
	lock      Pinger
	startTime time.Time
	env       string
	countyCnt int
}

// NewHealthHandler creates a new HealthHandler instance. lock is the Redis
// numbering lock backend and may be nil when locks are in-process.
func NewHealthHandler(db, lock Pinger, env string, counties int) *HealthHandler {
	return &HealthHandler{
		db:        db,
		lock:      lock,
		startTime: time.Now(),
		env:       env,
		countyCnt: counties,
	}
}

// HealthResponse represents the basic health check response.
type HealthResponse struct {
	Status string `json:"status"`
}

// ReadyResponse represents the readiness check response.
type ReadyResponse struct {
	Status   string `json:"status"`
	Database string `json:"database"`
	Lock     string `json:"lock"`
}

// InfoResponse represents the API information response.
type InfoResponse struct {
	Version     string `json:"version"`
	Environment string `json:"environment"`
	Uptime      string `json:"uptime"`
	Counties    int    `json:"counties"`
}

// Health handles GET /health. It never checks dependencies.
func (h *HealthHandler) Health(c *gin.Context) {
	c.JSON(http.StatusOK, HealthResponse{
		Status: "healthy",
	})
}

// Ready handles GET /health/ready.
// Returns 503 when the database, or the Redis lock backend if configured, is unreachable.
func (h *HealthHandler) Ready(c *gin.Context) {
	ctx, cancel := context.WithTimeout(c.Request.Context(), HealthCheckTimeout)
	defer cancel()

	resp := ReadyResponse{Status: "ready", Database: "connected", Lock: "local"}
	status := http.StatusOK

	if err := h.check(ctx, c, h.db, "database"); err != nil {
		resp.Database = "disconnected"
		status = http.StatusServiceUnavailable
	}
	if h.lock != nil {
		resp.Lock = "connected"
		if err := h.check(ctx, c, h.lock, "lock"); err != nil {
			resp.Lock = "disconnected"
			status = http.StatusServiceUnavailable
		}
	}

	if status != http.StatusOK {
		resp.Status = "not_ready"
	}
	c.JSON(status, resp)
}

func (h *HealthHandler) check(ctx context.Context, c *gin.Context, p Pinger, name string) error {
	if p == nil {
		return fmt.Errorf("%s is not configured", name)
	}
	err := p.Ping(ctx)
	if err != nil {
		if log := middleware.GetLogger(c); log != nil {
			log.Error("Health check failed", err, map[string]interface{}{
				"dependency": name,
				"timeout":    HealthCheckTimeout.String(),
			})
		}
	}
	return err
}

// Info handles GET /api/v1/info.
func (h *HealthHandler) Info(c *gin.Context) {
	c.JSON(http.StatusOK, InfoResponse{
		Version:     APIVersion,
		Environment: h.env,
		Uptime:      formatUptime(time.Since(h.startTime)),
		Counties:    h.countyCnt,
	})
}

// formatUptime formats a duration into a human-readable string.
func formatUptime(d time.Duration) string {
	days := int(d.Hours() / 24)
	hours := int(d.Hours()) % 24
	minutes := int(d.Minutes()) % 60
	seconds := int(d.Seconds()) % 60

	if days > 0 {
		return fmt.Sprintf("%dd %dh %dm %ds", days, hours, minutes, seconds)
	}
	return fmt.Sprintf("%dh %dm %ds", hours, minutes, seconds)
}
