package main

import (
	"context"
	"net/http"
	"os"
	"sync/atomic"
	"testing"
	"time"

	"crypto-correlator/internal/collector"
	"crypto-correlator/internal/config"
	"crypto-correlator/internal/domain"
	"crypto-correlator/internal/job"
	"crypto-correlator/internal/market"
	"crypto-correlator/internal/provider"

	"github.com/gin-gonic/gin"
	sdktrace "go.opentelemetry.io/otel/sdk/trace"
	"go.opentelemetry.io/otel/trace"
)

func TestMainBootstrap(t *testing.T) {
	gin.SetMode(gin.TestMode)
	started := stubCorrelatorDeps(t)

	done := make(chan struct{})
	go func() {
		main()
		close(done)
	}()

	select {
	case <-done:
	case <-time.After(2 * time.Second):
		t.Fatal("main did not exit")
	}

	if atomic.LoadInt32(&started.posts) != 1 || atomic.LoadInt32(&started.news) != 1 || atomic.LoadInt32(&started.job) != 1 {
		t.Fatalf("expected posts, news and job to start, got %+v", started)
	}
	if started.addr != ":18080" {
		t.Fatalf("expected configured http addr, got %q", started.addr)
	}
}

type startedLoops struct {
	posts int32
	news  int32
	job   int32
	addr  string
}

func stubCorrelatorDeps(t *testing.T) *startedLoops {
	t.Helper()

	origLoadEnv := loadEnvFunc
	origLoadConfig := loadConfigFunc
	origLoadSettings := loadSettingsFunc
	origInitPostgres := initPostgresFunc
	origInitRedis := initRedisFunc
	origInitTracer := initTracerFunc
	origMarketProvider := newMarketProviderFunc
	origPostsSource := newPostsSourceFunc
	origNewsSource := newNewsSourceFunc
	origStartPosts := startPostsCollectorFunc
	origStartNews := startNewsCollectorFunc
	origStartJob := startJobFunc
	origNewRouter := newRouterFunc
	origSetupSignal := setupSignalNotify
	origWait := waitForSignalFunc
	origStartHTTP := startHTTPServerFunc
	origShutdownHTTP := shutdownHTTPServerFunc
	t.Cleanup(func() {
		loadEnvFunc = origLoadEnv
		loadConfigFunc = origLoadConfig
		loadSettingsFunc = origLoadSettings
		initPostgresFunc = origInitPostgres
		initRedisFunc = origInitRedis
		initTracerFunc = origInitTracer
		newMarketProviderFunc = origMarketProvider
		newPostsSourceFunc = origPostsSource
		newNewsSourceFunc = origNewsSource
		startPostsCollectorFunc = origStartPosts
		startNewsCollectorFunc = origStartNews
		startJobFunc = origStartJob
		newRouterFunc = origNewRouter
		setupSignalNotify = origSetupSignal
		waitForSignalFunc = origWait
		startHTTPServerFunc = origStartHTTP
		shutdownHTTPServerFunc = origShutdownHTTP
	})

	started := &startedLoops{}
	loadEnvFunc = func(...string) error { return nil }
	loadConfigFunc = func() *config.Config {
		return &config.Config{
			HTTPAddr:           ":18080",
			MergeIntervalSecs:  6,
			PostsPollSecs:      300,
			NewsPollSecs:       10800,
			RedditClientID:     "id",
			RedditClientSecret: "secret",
		}
	}
	loadSettingsFunc = func(string) (*config.Settings, error) {
		return config.ParseSettings([]byte(`
processor:
  crypto_keywords: [Bitcoin]
collectors:
  reddit:
    subreddits: [Bitcoin]
  news:
    timezone: America/New_York
    feeds:
      - url: https://example.com/rss
        source: The Block
`))
	}
	initPostgresFunc = func(context.Context) {}
	initRedisFunc = func(context.Context) {}
	initTracerFunc = func(ctx context.Context) (*sdktrace.TracerProvider, trace.Tracer, error) {
		tp := sdktrace.NewTracerProvider()
		return tp, tp.Tracer("test"), nil
	}
	newMarketProviderFunc = func(trace.Tracer, string) market.DataProvider { return stubMarketProvider{} }
	newPostsSourceFunc = func(trace.Tracer, provider.RedditCredentials) collector.PostsSource { return stubSources{} }
	newNewsSourceFunc = func(trace.Tracer, *time.Location) collector.NewsSource { return stubSources{} }
	startPostsCollectorFunc = func(*collector.PostsCollector, context.Context) { atomic.AddInt32(&started.posts, 1) }
	startNewsCollectorFunc = func(*collector.NewsCollector, context.Context, time.Duration) { atomic.AddInt32(&started.news, 1) }
	startJobFunc = func(*job.CorrelationJob, context.Context) { atomic.AddInt32(&started.job, 1) }
	newRouterFunc = func(...gin.OptionFunc) *gin.Engine { return gin.New() }
	setupSignalNotify = func(c chan<- os.Signal, sig ...os.Signal) {}
	waitForSignalFunc = func(<-chan os.Signal) {}
	startHTTPServerFunc = func(srv *http.Server) error {
		return http.ErrServerClosed
	}
	shutdownHTTPServerFunc = func(srv *http.Server, ctx context.Context) error {
		started.addr = srv.Addr
		return nil
	}
	return started
}

type stubMarketProvider struct{}

func (stubMarketProvider) FetchCoinList(ctx context.Context) ([]domain.CoinListing, error) {
	return []domain.CoinListing{{ID: "bitcoin", Symbol: "btc", Name: "Bitcoin"}}, nil
}

func (stubMarketProvider) FetchCoinSnapshot(ctx context.Context, coinID string) (*domain.CoinMetrics, error) {
	return &domain.CoinMetrics{Price: 1}, nil
}

func (stubMarketProvider) FetchHistoricalPrice(ctx context.Context, coinID string, day time.Time) (*float64, error) {
	return nil, nil
}

type stubSources struct{}

func (stubSources) FetchNew(ctx context.Context, subreddit string, limit int) ([]provider.ContentItem, error) {
	return nil, nil
}

func (stubSources) FetchFeed(ctx context.Context, feedURL string, maxItems int) ([]provider.ContentItem, error) {
	return nil, nil
}
