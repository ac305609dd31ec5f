package handler

import (
	"net/http"
	"strconv"
	"strings"

	"crypto-correlator/internal/domain"
	"crypto-correlator/internal/repository"

	"github.com/gin-gonic/gin"
	"go.opentelemetry.io/otel/attribute"
)

// ListRecords godoc
// @Summary      Recent joined records
// @Description  Returns the newest persisted (item, coin) rows, optionally for one coin
// @Tags         records
// @Produce      json
// @Param        coin   query     string  false  "Coin keyword, e.g. Bitcoin"
// @Param        limit  query     int     false  "Max rows (default 50, max 500)"
// @Success      200    {object}  map[string]interface{}
// @Failure      400    {object}  map[string]string
// @Failure      503    {object}  map[string]string
// @Failure      500    {object}  map[string]string
// @Router       /api/records [get]
func (h *Handler) ListRecords(c *gin.Context) {
	if h.records == nil {
		c.JSON(http.StatusServiceUnavailable, gin.H{"error": "record store unavailable"})
		return
	}

	limit := repository.DefaultListLimit
	if raw := strings.TrimSpace(c.Query("limit")); raw != "" {
		n, err := strconv.Atoi(raw)
		if err != nil || n <= 0 {
			c.JSON(http.StatusBadRequest, gin.H{"error": "limit must be a positive integer"})
			return
		}
		limit = n
	}
	coin := strings.TrimSpace(c.Query("coin"))

	ctx, span := h.tracer.Start(c.Request.Context(), "handler.list-records")
	defer span.End()
	span.SetAttributes(attribute.String("coin", coin), attribute.Int("limit", limit))

	records, err := h.records.ListRecent(ctx, coin, limit)
	if err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"error": err.Error()})
		return
	}
	if records == nil {
		records = []domain.JoinedRecord{}
	}

	c.JSON(http.StatusOK, gin.H{
		"coin":    coin,
		"count":   len(records),
		"records": records,
	})
}
