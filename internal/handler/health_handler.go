package handler

import (
	"github.com/gin-gonic/gin"
)

// HealthHandler serves liveness checks.
type HealthHandler struct{}

func NewHealthHandler() *HealthHandler {
	return &HealthHandler{}
}

// Health handles GET /healthz.
func (h *HealthHandler) Health(c *gin.Context) {
	RespondOK(c, gin.H{"status": "ok"})
}
