package handler

import (
	"context"

	"crypto-correlator/internal/domain"
	"crypto-correlator/internal/market"

	"github.com/gin-gonic/gin"
	"go.opentelemetry.io/otel/trace"
)

type RecordLister interface {
	ListRecent(ctx context.Context, coin string, limit int) ([]domain.JoinedRecord, error)
}

type CycleReporter interface {
	LastResult() (domain.CycleResult, bool)
}

type MetricsStats interface {
	Stats() market.Stats
}

// PendingCounter reports how many items wait in a collector buffer.
type PendingCounter interface {
	Pending() int
}

type Handler struct {
	tracer  trace.Tracer
	records RecordLister
	cycles  CycleReporter
	metrics MetricsStats
	posts   PendingCounter
	news    PendingCounter
}

func New(
	tracer trace.Tracer,
	records RecordLister,
	cycles CycleReporter,
	metrics MetricsStats,
	posts PendingCounter,
	news PendingCounter,
) *Handler {
	return &Handler{
		tracer:  tracer,
		records: records,
		cycles:  cycles,
		metrics: metrics,
		posts:   posts,
		news:    news,
	}
}

// RegisterRoutes mounts the health check and the key-protected read API.
func (h *Handler) RegisterRoutes(r *gin.Engine, apiKey string) {
	r.GET("/health", h.Health)

	api := r.Group("/api", APIKeyAuth(apiKey))
	api.GET("/records", h.ListRecords)
	api.GET("/pipeline/status", h.PipelineStatus)
}
