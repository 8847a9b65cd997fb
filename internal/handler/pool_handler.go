package handler

import (
	"net/http"

	"github.com/docexam/docexam-backend/internal/response"
	"github.com/docexam/docexam-backend/internal/service"
	"github.com/gin-gonic/gin"
)

// PoolHandler exposes read-only views over the question pool.
type PoolHandler struct {
	poolService *service.PoolService
}

// NewPoolHandler creates a new PoolHandler.
func NewPoolHandler(poolService *service.PoolService) *PoolHandler {
	return &PoolHandler{poolService: poolService}
}

// GetScopeStats godoc
// GET /api/v1/pool/:scope/stats
// Returns approved question counts for a scope, broken down by type and
// difficulty. Lets clients size a session request before creating one.
func (h *PoolHandler) GetScopeStats(c *gin.Context) {
	scope := c.Param("scope")
	if scope == "" {
		response.Fail(c, http.StatusBadRequest, response.ErrInvalidPayload)
		return
	}

	stats, err := h.poolService.GetScopeStats(c.Request.Context(), scope)
	if err != nil {
		response.Fail(c, http.StatusInternalServerError, response.ErrInternal)
		return
	}

	response.Success(c, http.StatusOK, stats)
}
