package handler

import (
	"net/http"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/redis/go-redis/v9"

	"github.com/arflow/backend/internal/domain/campaign"
	"github.com/arflow/backend/internal/infrastructure/persistence"
)

// SystemHandler exposes health and readiness.
type SystemHandler struct {
	BaseHandler
	db      *persistence.Database
	redis   *redis.Client
	runRepo campaign.RunRepository
	version string
}

// NewSystemHandler creates a SystemHandler. redis may be nil when the
// in-memory coordinator is in use.
func NewSystemHandler(db *persistence.Database, rdb *redis.Client, runRepo campaign.RunRepository, version string) *SystemHandler {
	return &SystemHandler{
		db:      db,
		redis:   rdb,
		runRepo: runRepo,
		version: version,
	}
}

// RegisterRoutes registers system routes
func (h *SystemHandler) RegisterRoutes(rg *gin.RouterGroup) {
	rg.GET("/health", h.Health)
}

// Health reports component status. Degraded components flip the overall
// status but the endpoint still answers 200 so probes can read the detail;
// only a dead database yields 503.
func (h *SystemHandler) Health(c *gin.Context) {
	ctx := c.Request.Context()
	status := http.StatusOK
	components := gin.H{}

	if err := h.db.Ping(); err != nil {
		components["database"] = "down: " + err.Error()
		status = http.StatusServiceUnavailable
	} else {
		components["database"] = "ok"
	}

	if h.redis != nil {
		if err := h.redis.Ping(ctx).Err(); err != nil {
			components["redis"] = "down: " + err.Error()
		} else {
			components["redis"] = "ok"
		}
	}

	var failures int64
	if h.runRepo != nil {
		if n, err := h.runRepo.RecentFailureCount(ctx, time.Now().Add(-24*time.Hour)); err == nil {
			failures = n
		}
	}

	c.JSON(status, gin.H{
		"status":          statusLabel(status),
		"version":         h.version,
		"components":      components,
		"run_failures_24": failures,
	})
}

func statusLabel(status int) string {
	if status == http.StatusOK {
		return "ok"
	}
	return "unavailable"
}
