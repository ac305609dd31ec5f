package collector

import (
	"context"
	"log"
	"time"

	"crypto-correlator/internal/domain"
	"crypto-correlator/internal/provider"
	"crypto-correlator/internal/queue"

	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/trace"
)

type NewsSource interface {
	FetchFeed(ctx context.Context, feedURL string, maxItems int) ([]provider.ContentItem, error)
}

type Feed struct {
	URL         string
	Source      string
	Reliability float64
}

// NewsCollector fetches headlines from configured feeds and buffers them
// until the correlation loop drains them.
type NewsCollector struct {
	tracer   trace.Tracer
	source   NewsSource
	feeds    []Feed
	maxItems int
	buffer   *queue.Buffer[domain.TextItem]
	seen     *seenSet
	now      func() time.Time
}

func NewNewsCollector(tracer trace.Tracer, source NewsSource, feeds []Feed, maxItems int) *NewsCollector {
	return &NewsCollector{
		tracer:   tracer,
		source:   source,
		feeds:    feeds,
		maxItems: maxItems,
		buffer:   queue.NewBuffer[domain.TextItem](),
		seen:     newSeenSet(defaultSeenCapacity),
		now:      time.Now,
	}
}

// CollectNewsPeriodically blocks until ctx is cancelled.
func (c *NewsCollector) CollectNewsPeriodically(ctx context.Context, interval time.Duration) {
	if interval <= 0 {
		interval = 3 * time.Hour
	}
	pollLoop(ctx, "news", interval, func(ctx context.Context) {
		c.CollectOnce(ctx)
	})
}

// CollectOnce fetches every feed once and returns the number of headlines buffered.
func (c *NewsCollector) CollectOnce(ctx context.Context) int {
	ctx, span := c.tracer.Start(ctx, "news-collector.collect")
	defer span.End()

	added := 0
	for _, feed := range c.feeds {
		if ctx.Err() != nil {
			break
		}
		articles, err := c.source.FetchFeed(ctx, feed.URL, c.maxItems)
		if err != nil {
			log.Printf("news collector: %s: %v", feed.Source, err)
			continue
		}

		batchTime := c.now().Unix()
		var items []domain.TextItem
		for _, a := range articles {
			if !c.seen.add(feed.Source + "|" + a.SourceItemID) {
				continue
			}
			items = append(items, domain.TextItem{
				ID:                a.SourceItemID,
				BatchTime:         batchTime,
				Source:            feed.Source,
				Text:              a.Title,
				Title:             a.Title,
				Date:              a.PublishedAt.Unix(),
				SourceReliability: feed.Reliability,
			})
		}
		if len(items) > 0 {
			log.Printf("news collector: %d headlines from %s", len(items), feed.Source)
		}
		c.buffer.Append(items...)
		added += len(items)
	}

	span.SetAttributes(attribute.Int("news.buffered", added))
	return added
}

// LatestNews returns the headlines collected since the previous call.
func (c *NewsCollector) LatestNews() []domain.TextItem {
	return c.buffer.Drain()
}

func (c *NewsCollector) Pending() int {
	return c.buffer.Len()
}
