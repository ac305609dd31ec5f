package collector

import (
	"context"
	"log"
	"strings"
	"time"

	"crypto-correlator/internal/domain"
	"crypto-correlator/internal/provider"
	"crypto-correlator/internal/queue"

	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/trace"
)

type PostsSource interface {
	FetchNew(ctx context.Context, subreddit string, limit int) ([]provider.ContentItem, error)
}

type PostsConfig struct {
	Subreddits   []string
	Keywords     []string
	Limit        int
	Reliability  float64
	PollInterval time.Duration
}

// PostsCollector polls subreddits for keyword-relevant posts and buffers
// them until the correlation loop drains them.
type PostsCollector struct {
	tracer trace.Tracer
	source PostsSource
	cfg    PostsConfig
	buffer *queue.Buffer[domain.TextItem]
	seen   *seenSet
	now    func() time.Time
}

func NewPostsCollector(tracer trace.Tracer, source PostsSource, cfg PostsConfig) *PostsCollector {
	if cfg.PollInterval <= 0 {
		cfg.PollInterval = 5 * time.Minute
	}
	keywords := make([]string, 0, len(cfg.Keywords))
	for _, kw := range cfg.Keywords {
		if kw = strings.ToLower(strings.TrimSpace(kw)); kw != "" {
			keywords = append(keywords, kw)
		}
	}
	cfg.Keywords = keywords

	return &PostsCollector{
		tracer: tracer,
		source: source,
		cfg:    cfg,
		buffer: queue.NewBuffer[domain.TextItem](),
		seen:   newSeenSet(defaultSeenCapacity),
		now:    time.Now,
	}
}

// CollectPosts blocks until ctx is cancelled.
func (c *PostsCollector) CollectPosts(ctx context.Context) {
	pollLoop(ctx, "posts", c.cfg.PollInterval, func(ctx context.Context) {
		c.CollectOnce(ctx)
	})
}

// CollectOnce polls every subreddit once and returns the number of posts buffered.
func (c *PostsCollector) CollectOnce(ctx context.Context) int {
	ctx, span := c.tracer.Start(ctx, "posts-collector.collect")
	defer span.End()

	added := 0
	for _, sub := range c.cfg.Subreddits {
		if ctx.Err() != nil {
			break
		}
		posts, err := c.source.FetchNew(ctx, sub, c.cfg.Limit)
		if err != nil {
			log.Printf("posts collector: r/%s: %v", sub, err)
			continue
		}

		batchTime := c.now().Unix()
		var items []domain.TextItem
		for _, p := range posts {
			if !c.relevant(p) || !c.seen.add(p.SourceItemID) {
				continue
			}
			items = append(items, c.toTextItem(p, batchTime))
		}
		if len(items) > 0 {
			log.Printf("posts collector: %d relevant posts from r/%s", len(items), sub)
		}
		c.buffer.Append(items...)
		added += len(items)
	}

	span.SetAttributes(attribute.Int("posts.buffered", added))
	return added
}

func (c *PostsCollector) relevant(p provider.ContentItem) bool {
	if len(c.cfg.Keywords) == 0 {
		return true
	}
	title := strings.ToLower(p.Title)
	body := strings.ToLower(p.Body)
	for _, kw := range c.cfg.Keywords {
		if strings.Contains(title, kw) || strings.Contains(body, kw) {
			return true
		}
	}
	return false
}

func (c *PostsCollector) toTextItem(p provider.ContentItem, batchTime int64) domain.TextItem {
	author := p.Author
	if author == "" {
		author = domain.AnonymousAuthor
	}
	score := p.Score
	return domain.TextItem{
		ID:                p.SourceItemID,
		BatchTime:         batchTime,
		Source:            domain.SourceReddit,
		Text:              p.Body,
		Title:             p.Title,
		Date:              p.PublishedAt.Unix(),
		Author:            &author,
		Score:             &score,
		SourceReliability: c.cfg.Reliability,
	}
}

// LatestPosts returns the posts collected since the previous call.
func (c *PostsCollector) LatestPosts() []domain.TextItem {
	return c.buffer.Drain()
}

func (c *PostsCollector) Pending() int {
	return c.buffer.Len()
}
