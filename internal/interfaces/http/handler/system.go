package handler

import (
	"net/http"

	"github.com/gin-gonic/gin"
	"github.com/ketchup/backend/internal/infrastructure/persistence"
	"github.com/redis/go-redis/v9"
)

// SystemHandler serves liveness and readiness probes
type SystemHandler struct {
	BaseHandler
	db    *persistence.Database
	redis *redis.Client
}

// NewSystemHandler creates a new SystemHandler. The redis client may be nil
// when the deployment runs on the in-memory dedupe store.
func NewSystemHandler(db *persistence.Database, redisClient *redis.Client) *SystemHandler {
	return &SystemHandler{db: db, redis: redisClient}
}

// Healthz reports process liveness.
// GET /healthz
func (h *SystemHandler) Healthz(c *gin.Context) {
	h.Success(c, gin.H{"status": "ok"})
}

// Readyz reports dependency readiness: the database and, when configured,
// Redis must both answer.
// GET /readyz
func (h *SystemHandler) Readyz(c *gin.Context) {
	ctx := c.Request.Context()
	checks := gin.H{"database": "ok"}
	healthy := true

	if err := h.db.Ping(); err != nil {
		checks["database"] = err.Error()
		healthy = false
	}
	if h.redis != nil {
		checks["redis"] = "ok"
		if err := h.redis.Ping(ctx).Err(); err != nil {
			checks["redis"] = err.Error()
			healthy = false
		}
	}

	if !healthy {
		c.JSON(http.StatusServiceUnavailable, gin.H{"status": "degraded", "checks": checks})
		return
	}
	h.Success(c, gin.H{"status": "ready", "checks": checks})
}
