package handler

import (
	"net/http"

	"github.com/aman-churiwal/gen-broker/internal/service"
	"github.com/aman-churiwal/gen-broker/internal/upstream"
	"github.com/gin-gonic/gin"
)

// Handles system-related admin endpoints
type SystemHandler struct {
	pool     *service.Pool
	upstream *upstream.Client
}

func NewSystemHandler(pool *service.Pool, upstream *upstream.Client) *SystemHandler {
	return &SystemHandler{
		pool:     pool,
		upstream: upstream,
	}
}

// Handles GET /admin/status - credential pool and upstream state
func (h *SystemHandler) Status(c *gin.Context) {
	c.JSON(http.StatusOK, gin.H{
		"credential_pool":  h.pool.Status(),
		"circuit_breakers": h.upstream.BreakerSnapshots(),
		"upstream_targets": h.upstream.TargetStatus(),
	})
}

// Handles POST /admin/circuit-breaker/reset
func (h *SystemHandler) ResetCircuitBreakers(c *gin.Context) {
	h.upstream.ResetBreakers()

	c.JSON(http.StatusOK, gin.H{
		"message": "Circuit breakers reset successfully",
	})
}
