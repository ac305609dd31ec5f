package handler

import (
	"net/http"

	"github.com/gin-gonic/gin"
)

// Health godoc
// @Summary      Health check
// @Description  Reports liveness and when the correlation loop last finished a cycle
// @Tags         health
// @Produce      json
// @Success      200  {object}  map[string]interface{}
// @Router       /health [get]
func (h *Handler) Health(c *gin.Context) {
	resp := gin.H{"status": "healthy"}
	if h.cycles != nil {
		if last, ok := h.cycles.LastResult(); ok {
			resp["last_cycle_at"] = last.FinishedAt
		}
	}
	c.JSON(http.StatusOK, resp)
}
