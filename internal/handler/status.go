package handler

import (
	"net/http"

	"github.com/gin-gonic/gin"
)

// PipelineStatus godoc
// @Summary      Pipeline status
// @Description  Returns the last correlation cycle, metrics cache counters and buffer depths
// @Tags         pipeline
// @Produce      json
// @Success      200  {object}  map[string]interface{}
// @Router       /api/pipeline/status [get]
func (h *Handler) PipelineStatus(c *gin.Context) {
	_, span := h.tracer.Start(c.Request.Context(), "handler.pipeline-status")
	defer span.End()

	resp := gin.H{
		"last_cycle": nil,
		"buffers": gin.H{
			"posts": pending(h.posts),
			"news":  pending(h.news),
		},
	}
	if h.cycles != nil {
		if last, ok := h.cycles.LastResult(); ok {
			resp["last_cycle"] = last
		}
	}
	if h.metrics != nil {
		resp["metrics_cache"] = h.metrics.Stats()
	}

	c.JSON(http.StatusOK, resp)
}

func pending(p PendingCounter) int {
	if p == nil {
		return 0
	}
	return p.Pending()
}
