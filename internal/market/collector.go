// Package market resolves coin mentions to market-data identifiers and serves
// per-coin metrics from a TTL cache backed by the market-data API.
package market

import (
	"context"
	"encoding/json"
	"errors"
	"log"
	"strings"
	"sync"
	"time"

	"crypto-correlator/internal/domain"
	"crypto-correlator/internal/provider"

	"github.com/redis/go-redis/v9"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/trace"
)

const (
	DefaultMetricsTTL  = time.Hour
	DefaultCoinListTTL = time.Hour
	DefaultMaxAttempts = 3
	DefaultBackoffBase = 10 * time.Second

	// coinListRetryDelay spaces directory refresh attempts after a failure.
	coinListRetryDelay = time.Minute

	redisKeyPrefix = "metrics:"
)

type DataProvider interface {
	FetchCoinList(ctx context.Context) ([]domain.CoinListing, error)
	FetchCoinSnapshot(ctx context.Context, coinID string) (*domain.CoinMetrics, error)
	FetchHistoricalPrice(ctx context.Context, coinID string, day time.Time) (*float64, error)
}

type RedisClient interface {
	Set(ctx context.Context, key string, value interface{}, expiration time.Duration) *redis.StatusCmd
	Get(ctx context.Context, key string) *redis.StringCmd
}

type Config struct {
	MetricsTTL  time.Duration
	CoinListTTL time.Duration
	MaxAttempts int
	BackoffBase time.Duration
}

// Stats are cumulative counters since construction.
type Stats struct {
	Hits        int64 `json:"hits"`
	RedisHits   int64 `json:"redis_hits"`
	Misses      int64 `json:"misses"`
	Fetches     int64 `json:"fetches"`
	RateLimited int64 `json:"rate_limited"`
	Failures    int64 `json:"failures"`
	Unresolved  int64 `json:"unresolved"`
	CachedCoins int   `json:"cached_coins"`
	Directory   int   `json:"directory_size"`
}

// Collector owns the coin directory and the metrics cache. Fetches are
// serialized, so concurrent callers never refresh the same coin twice.
type Collector struct {
	tracer   trace.Tracer
	provider DataProvider
	redis    RedisClient
	cfg      Config

	now   func() time.Time
	sleep func(ctx context.Context, d time.Duration) error

	fetchMu sync.Mutex

	mu             sync.Mutex
	coins          []domain.CoinListing
	coinsFetchedAt time.Time
	coinsFailedAt  time.Time
	cache          map[string]domain.CachedMetrics
	stats          Stats
}

// NewCollector builds the collector. redisClient may be nil.
func NewCollector(tracer trace.Tracer, dataProvider DataProvider, redisClient RedisClient, cfg Config) *Collector {
	if cfg.MetricsTTL <= 0 {
		cfg.MetricsTTL = DefaultMetricsTTL
	}
	if cfg.CoinListTTL <= 0 {
		cfg.CoinListTTL = DefaultCoinListTTL
	}
	if cfg.MaxAttempts <= 0 {
		cfg.MaxAttempts = DefaultMaxAttempts
	}
	if cfg.BackoffBase <= 0 {
		cfg.BackoffBase = DefaultBackoffBase
	}
	return &Collector{
		tracer:   tracer,
		provider: dataProvider,
		redis:    redisClient,
		cfg:      cfg,
		now:      time.Now,
		sleep:    sleepCtx,
		cache:    make(map[string]domain.CachedMetrics),
	}
}

// ResolveCoinID maps a display name or ticker symbol to the market-data id.
// Matching is case-insensitive and the first directory entry wins.
func (c *Collector) ResolveCoinID(ctx context.Context, nameOrSymbol string) (string, bool) {
	ctx, span := c.tracer.Start(ctx, "market.resolve-coin-id")
	defer span.End()

	coins := c.directory(ctx)
	if len(coins) == 0 {
		log.Println("coin directory is not loaded")
		return "", false
	}

	needle := strings.ToLower(strings.TrimSpace(nameOrSymbol))
	for _, coin := range coins {
		if strings.ToLower(coin.Name) == needle || strings.ToLower(coin.Symbol) == needle {
			span.SetAttributes(attribute.String("coin_id", coin.ID))
			return coin.ID, true
		}
	}
	log.Printf("coin %q not found in directory", nameOrSymbol)
	return "", false
}

// directory returns the coin list, refreshing it when older than CoinListTTL.
// A failed refresh keeps serving the previous list and is not retried for
// coinListRetryDelay.
func (c *Collector) directory(ctx context.Context) []domain.CoinListing {
	c.mu.Lock()
	now := c.now()
	stale := c.coinsFetchedAt.IsZero() || now.Sub(c.coinsFetchedAt) > c.cfg.CoinListTTL
	backingOff := !c.coinsFailedAt.IsZero() && now.Sub(c.coinsFailedAt) < coinListRetryDelay
	coins := c.coins
	c.mu.Unlock()
	if !stale || backingOff {
		return coins
	}

	fresh, err := c.provider.FetchCoinList(ctx)
	if err != nil {
		log.Printf("coin directory refresh failed: %v", err)
		c.mu.Lock()
		c.coinsFailedAt = c.now()
		c.mu.Unlock()
		return coins
	}

	c.mu.Lock()
	c.coins = fresh
	c.coinsFetchedAt = c.now()
	c.coinsFailedAt = time.Time{}
	c.mu.Unlock()
	log.Printf("coin directory loaded (%d coins)", len(fresh))
	return fresh
}

// GetMetrics returns metrics for a coin name or symbol. ok is false when the
// coin cannot be resolved or its metrics cannot be fetched this time.
func (c *Collector) GetMetrics(ctx context.Context, nameOrSymbol string) (*domain.CoinMetrics, bool) {
	ctx, span := c.tracer.Start(ctx, "market.get-metrics")
	defer span.End()
	span.SetAttributes(attribute.String("coin", nameOrSymbol))

	coinID, ok := c.ResolveCoinID(ctx, nameOrSymbol)
	if !ok {
		c.count(func(s *Stats) { s.Unresolved++ })
		log.Printf("no coin id for %s", nameOrSymbol)
		return nil, false
	}

	c.fetchMu.Lock()
	defer c.fetchMu.Unlock()

	if m, ok := c.cached(coinID); ok {
		c.count(func(s *Stats) { s.Hits++ })
		return m, true
	}
	if m, ok := c.sharedCached(ctx, coinID); ok {
		c.count(func(s *Stats) { s.RedisHits++ })
		return m, true
	}
	c.count(func(s *Stats) { s.Misses++ })

	m, err := c.fetchWithRetry(ctx, coinID)
	if err != nil {
		c.count(func(s *Stats) { s.Failures++ })
		log.Printf("metrics for %s (%s) unavailable: %v", nameOrSymbol, coinID, err)
		return nil, false
	}

	c.store(ctx, coinID, *m)
	log.Printf("metrics for %s refreshed", nameOrSymbol)
	return m, true
}

func (c *Collector) fetchWithRetry(ctx context.Context, coinID string) (*domain.CoinMetrics, error) {
	var lastErr error
	for attempt := 0; attempt < c.cfg.MaxAttempts; attempt++ {
		c.count(func(s *Stats) { s.Fetches++ })
		m, err := c.provider.FetchCoinSnapshot(ctx, coinID)
		if err == nil {
			c.attachHistory(ctx, coinID, m)
			return m, nil
		}
		if !errors.Is(err, provider.ErrRateLimited) {
			return nil, err
		}

		lastErr = err
		c.count(func(s *Stats) { s.RateLimited++ })
		wait := c.Backoff(attempt)
		log.Printf("rate limited fetching %s, waiting %s (attempt %d/%d)", coinID, wait, attempt+1, c.cfg.MaxAttempts)
		if err := c.sleep(ctx, wait); err != nil {
			return nil, err
		}
	}
	return nil, errors.Join(errors.New("retry budget exhausted"), lastErr)
}

// Backoff returns the wait after the given zero-based attempt: base * 2^attempt.
func (c *Collector) Backoff(attempt int) time.Duration {
	if attempt < 0 {
		attempt = 0
	}
	return c.cfg.BackoffBase * time.Duration(1<<attempt)
}

func (c *Collector) attachHistory(ctx context.Context, coinID string, m *domain.CoinMetrics) {
	now := c.now()
	m.Price24hAgo = c.historicalPrice(ctx, coinID, now.AddDate(0, 0, -1))
	m.Price30dAgo = c.historicalPrice(ctx, coinID, now.AddDate(0, 0, -30))
}

func (c *Collector) historicalPrice(ctx context.Context, coinID string, day time.Time) *float64 {
	price, err := c.provider.FetchHistoricalPrice(ctx, coinID, day)
	if err != nil {
		log.Printf("historical price for %s on %s: %v", coinID, day.Format(provider.HistoryDateLayout), err)
		return nil
	}
	return price
}

func (c *Collector) cached(coinID string) (*domain.CoinMetrics, bool) {
	c.mu.Lock()
	defer c.mu.Unlock()

	entry, ok := c.cache[coinID]
	if !ok || !entry.Fresh(c.now(), c.cfg.MetricsTTL) {
		return nil, false
	}
	m := entry.Metrics
	return &m, true
}

func (c *Collector) sharedCached(ctx context.Context, coinID string) (*domain.CoinMetrics, bool) {
	if c.redis == nil {
		return nil, false
	}
	data, err := c.redis.Get(ctx, redisKeyPrefix+coinID).Bytes()
	if err != nil {
		if err != redis.Nil {
			log.Printf("redis metrics read error for %s: %v", coinID, err)
		}
		return nil, false
	}
	var entry domain.CachedMetrics
	if err := json.Unmarshal(data, &entry); err != nil {
		log.Printf("redis metrics decode error for %s: %v", coinID, err)
		return nil, false
	}
	if !entry.Fresh(c.now(), c.cfg.MetricsTTL) {
		return nil, false
	}

	c.mu.Lock()
	c.cache[coinID] = entry
	c.mu.Unlock()
	m := entry.Metrics
	return &m, true
}

func (c *Collector) store(ctx context.Context, coinID string, m domain.CoinMetrics) {
	entry := domain.CachedMetrics{Metrics: m, FetchedAt: c.now()}

	c.mu.Lock()
	c.cache[coinID] = entry
	c.mu.Unlock()

	if c.redis == nil {
		return
	}
	data, err := json.Marshal(entry)
	if err != nil {
		return
	}
	if err := c.redis.Set(ctx, redisKeyPrefix+coinID, data, c.cfg.MetricsTTL).Err(); err != nil {
		log.Printf("redis metrics write error for %s: %v", coinID, err)
	}
}

func (c *Collector) count(fn func(*Stats)) {
	c.mu.Lock()
	fn(&c.stats)
	c.mu.Unlock()
}

// Stats returns a snapshot of the cache counters.
func (c *Collector) Stats() Stats {
	c.mu.Lock()
	defer c.mu.Unlock()
	s := c.stats
	s.CachedCoins = len(c.cache)
	s.Directory = len(c.coins)
	return s
}

func sleepCtx(ctx context.Context, d time.Duration) error {
	timer := time.NewTimer(d)
	defer timer.Stop()
	select {
	case <-ctx.Done():
		return ctx.Err()
	case <-timer.C:
		return nil
	}
}
