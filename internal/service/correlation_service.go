package service

import (
	"context"
	"fmt"
	"log"
	"strings"
	"sync"
	"time"

	"crypto-correlator/internal/domain"

	"github.com/google/uuid"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/trace"
)

type PostsSource interface {
	LatestPosts() []domain.TextItem
}

type NewsSource interface {
	LatestNews() []domain.TextItem
}

type TextAnalyzer interface {
	AnalyzeText(ctx context.Context, text string) (domain.AnalysisResult, error)
}

type MetricsSource interface {
	GetMetrics(ctx context.Context, nameOrSymbol string) (*domain.CoinMetrics, bool)
}

type RecordSink interface {
	InsertRecord(ctx context.Context, rec domain.JoinedRecord) error
}

// CorrelationService joins buffered text items with per-coin market metrics
// and hands the joined rows to the sink.
type CorrelationService struct {
	tracer   trace.Tracer
	posts    PostsSource
	news     NewsSource
	analyzer TextAnalyzer
	metrics  MetricsSource
	sink     RecordSink
	now      func() time.Time

	mu   sync.RWMutex
	last *domain.CycleResult
}

func NewCorrelationService(
	tracer trace.Tracer,
	posts PostsSource,
	news NewsSource,
	analyzer TextAnalyzer,
	metrics MetricsSource,
	sink RecordSink,
) *CorrelationService {
	return &CorrelationService{
		tracer:   tracer,
		posts:    posts,
		news:     news,
		analyzer: analyzer,
		metrics:  metrics,
		sink:     sink,
		now:      time.Now,
	}
}

// RunCycle drains both buffers once, posts before news, and persists every
// (item, coin) pair that has metrics. A failure is confined to its item, coin
// or record; the rest of the batch still runs.
func (s *CorrelationService) RunCycle(ctx context.Context) domain.CycleResult {
	ctx, span := s.tracer.Start(ctx, "correlation-service.run-cycle")
	defer span.End()

	result := domain.CycleResult{ID: uuid.NewString(), StartedAt: s.now().UTC()}

	var posts, news []domain.TextItem
	if s.posts != nil {
		posts = s.posts.LatestPosts()
	}
	if s.news != nil {
		news = s.news.LatestNews()
	}
	result.PostsDrained = len(posts)
	result.NewsDrained = len(news)

	for _, item := range posts {
		s.processItem(ctx, item, &result)
	}
	for _, item := range news {
		s.processItem(ctx, item, &result)
	}

	result.FinishedAt = s.now().UTC()
	span.SetAttributes(
		attribute.String("cycle_id", result.ID),
		attribute.Int("posts_drained", result.PostsDrained),
		attribute.Int("news_drained", result.NewsDrained),
		attribute.Int("records_written", result.RecordsWritten),
		attribute.Int("errors", result.ErrorCount),
	)

	s.mu.Lock()
	last := result
	s.last = &last
	s.mu.Unlock()

	return result
}

func (s *CorrelationService) processItem(ctx context.Context, item domain.TextItem, result *domain.CycleResult) {
	text := item.Text
	if strings.TrimSpace(text) == "" {
		text = item.Title
	}

	analysis, err := s.analyzer.AnalyzeText(ctx, text)
	if err != nil {
		log.Printf("correlation: analyze %s item %q: %v", item.Source, label(item), err)
		result.AddError(fmt.Sprintf("analyze %s item: %v", item.Source, err))
		return
	}
	result.ItemsAnalyzed++

	for _, coin := range analysis.Coins {
		result.CoinsMentioned++
		m, ok := s.metrics.GetMetrics(ctx, coin)
		if !ok || m == nil {
			log.Printf("Warning: metrics for %s not found, skipping record", coin)
			result.CoinsSkipped++
			continue
		}

		rec := domain.NewJoinedRecord(item, analysis, coin, *m)
		if err := s.sink.InsertRecord(ctx, rec); err != nil {
			log.Printf("correlation: persist %s record for %s: %v", item.Source, coin, err)
			result.AddError(fmt.Sprintf("persist %s: %v", coin, err))
			continue
		}
		result.RecordsWritten++
		log.Printf("saved %s record for %s: %s", item.Source, coin, label(item))
	}
}

// LastResult returns the most recent cycle result, if any cycle has run.
func (s *CorrelationService) LastResult() (domain.CycleResult, bool) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	if s.last == nil {
		return domain.CycleResult{}, false
	}
	return *s.last, true
}

func label(item domain.TextItem) string {
	if item.Title != "" {
		return item.Title
	}
	return item.Text
}
