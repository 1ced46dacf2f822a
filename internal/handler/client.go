package handler

import (
	"net/http"

	"github.com/aman-churiwal/gen-broker/internal/service"
	"github.com/gin-gonic/gin"
)

type ClientHandler struct {
	registry *service.Registry
	quota    *service.Enforcer
}

func NewClientHandler(registry *service.Registry, quota *service.Enforcer) *ClientHandler {
	return &ClientHandler{registry: registry, quota: quota}
}

// Handles GET /v1/me - tier and remaining allowance for the caller
func (h *ClientHandler) Me(c *gin.Context) {
	clientID := c.GetString("client_id")
	ctx := c.Request.Context()

	tier, err := h.registry.GetTier(ctx, clientID)
	if err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"error": err.Error()})
		return
	}

	decision, err := h.quota.Remaining(ctx, clientID)
	if err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"error": err.Error()})
		return
	}

	c.JSON(http.StatusOK, gin.H{
		"client_id":    clientID,
		"tier":         tier.TierKind,
		"hourly_quota": tier.HourlyQuota,
		"remaining":    decision.Remaining,
		"window_reset": decision.Reset.Unix(),
	})
}

// Handles POST /v1/upgrade - one-way FREE to PREMIUM transition
func (h *ClientHandler) Upgrade(c *gin.Context) {
	var req struct {
		OwnerEmail string `json:"owner_email" binding:"required,email"`
	}

	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}

	clientID := c.GetString("client_id")

	record, err := h.registry.Upgrade(c.Request.Context(), clientID, req.OwnerEmail)
	if err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"error": err.Error()})
		return
	}

	c.JSON(http.StatusOK, gin.H{
		"tier":         record.TierKind,
		"hourly_quota": record.HourlyQuota,
		"message":      "Upgrade takes effect on your next request",
	})
}
