package handler

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"

	"github.com/aman-churiwal/gen-broker/internal/errs"
	"github.com/aman-churiwal/gen-broker/internal/service"
	"github.com/gin-gonic/gin"
)

// Executor is the orchestrator surface the handler needs.
type Executor interface {
	Execute(ctx context.Context, clientID string, payload json.RawMessage) (*service.Result, error)
}

type GenerateHandler struct {
	executor Executor
}

func NewGenerateHandler(executor Executor) *GenerateHandler {
	return &GenerateHandler{executor: executor}
}

// Handles POST /v1/generate - the single public entry point
func (h *GenerateHandler) Generate(c *gin.Context) {
	clientID := c.GetString("client_id")
	if clientID == "" {
		c.JSON(http.StatusInternalServerError, gin.H{"error": "Client identity missing"})
		return
	}

	payload, err := io.ReadAll(c.Request.Body)
	if err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "Failed to read request body"})
		return
	}

	result, execErr := h.executor.Execute(c.Request.Context(), clientID, payload)

	if result != nil {
		c.Header("X-Tier", result.Tier)
		c.Header("X-Quota-Limit", fmt.Sprintf("%d", result.Limit))
		c.Header("X-Quota-Remaining", fmt.Sprintf("%d", result.Remaining))
		c.Header("X-Quota-Reset", fmt.Sprintf("%d", result.Reset.Unix()))
		c.Set("tier", result.Tier)
	}

	if execErr != nil {
		h.renderError(c, execErr)
		return
	}

	c.Data(http.StatusOK, "application/json", result.Output)
}

func (h *GenerateHandler) renderError(c *gin.Context, err error) {
	code := errs.CodeOf(err)
	c.Set("error_code", string(code))

	switch code {
	case errs.CodeQuotaExceeded:
		c.JSON(http.StatusTooManyRequests, gin.H{
			"error": err.Error(),
			"code":  code,
		})
	case errs.CodeCredentialUnavailable:
		c.JSON(http.StatusServiceUnavailable, gin.H{
			"error":     "The generation service is temporarily unavailable",
			"code":      code,
			"retryable": true,
		})
	case errs.CodeUpstreamTransient:
		c.JSON(http.StatusBadGateway, gin.H{
			"error":     "The generation service did not respond",
			"code":      code,
			"retryable": true,
		})
	case errs.CodeUpstreamRejected:
		c.JSON(http.StatusBadRequest, gin.H{
			"error": err.Error(),
			"code":  code,
		})
	default:
		c.JSON(http.StatusInternalServerError, gin.H{
			"error": "Internal Server Error",
		})
	}
}
