package main

import (
	"context"
	"log"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"crypto-correlator/internal/analysis"
	"crypto-correlator/internal/cache"
	"crypto-correlator/internal/collector"
	"crypto-correlator/internal/config"
	"crypto-correlator/internal/db"
	"crypto-correlator/internal/domain"
	"crypto-correlator/internal/handler"
	"crypto-correlator/internal/job"
	"crypto-correlator/internal/market"
	"crypto-correlator/internal/provider"
	"crypto-correlator/internal/repository"
	"crypto-correlator/internal/service"
	"crypto-correlator/pkg/tracing"

	"github.com/gin-gonic/gin"
	"github.com/joho/godotenv"
	swaggerFiles "github.com/swaggo/files"
	ginSwagger "github.com/swaggo/gin-swagger"
	"go.opentelemetry.io/contrib/instrumentation/github.com/gin-gonic/gin/otelgin"
	"go.opentelemetry.io/otel/trace"

	_ "crypto-correlator/docs"
)

var (
	loadEnvFunc           = godotenv.Load
	loadConfigFunc        = config.Load
	loadSettingsFunc      = config.LoadSettings
	initPostgresFunc      = db.InitPostgres
	initRedisFunc         = cache.InitRedis
	initTracerFunc        = tracing.InitTracer
	newRecordRepoFunc     = repository.NewRecordRepository
	newMarketProviderFunc = func(tracer trace.Tracer, apiKey string) market.DataProvider {
		return provider.NewCoinGeckoProvider(tracer, apiKey)
	}
	newPostsSourceFunc = func(tracer trace.Tracer, creds provider.RedditCredentials) collector.PostsSource {
		return provider.NewRedditProvider(tracer, creds)
	}
	newNewsSourceFunc = func(tracer trace.Tracer, loc *time.Location) collector.NewsSource {
		return provider.NewRSSProvider(tracer, loc)
	}
	startPostsCollectorFunc = func(c *collector.PostsCollector, ctx context.Context) { go c.CollectPosts(ctx) }
	startNewsCollectorFunc  = func(c *collector.NewsCollector, ctx context.Context, interval time.Duration) {
		go c.CollectNewsPeriodically(ctx, interval)
	}
	startJobFunc           = func(j *job.CorrelationJob, ctx context.Context) { go j.Start(ctx) }
	newRouterFunc          = gin.Default
	setupSignalNotify      = signal.Notify
	waitForSignalFunc      = func(quit <-chan os.Signal) { <-quit }
	startHTTPServerFunc    = func(srv *http.Server) error { return srv.ListenAndServe() }
	shutdownHTTPServerFunc = func(srv *http.Server, ctx context.Context) error { return srv.Shutdown(ctx) }
)

// @title           Crypto Correlator API
// @version         1.0
// @description     Correlates crypto news and posts with market metrics.

// @host      localhost:8080
// @BasePath  /
func main() {
	if err := loadEnvFunc(); err != nil {
		log.Printf("no .env loaded: %v", err)
	}

	cfg := loadConfigFunc()
	settings, err := loadSettingsFunc(cfg.SettingsPath)
	if err != nil {
		log.Fatalf("failed to load settings: %v", err)
	}

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	// Init Postgres and Redis
	os.Setenv("DATABASE_URL", cfg.DatabaseURL)
	os.Setenv("REDIS_URL", cfg.RedisURL)
	initPostgresFunc(ctx)
	initRedisFunc(ctx)

	// Init tracing
	tp, tracer, err := initTracerFunc(ctx)
	if err != nil {
		log.Fatalf("failed to initialize tracer: %v", err)
	}
	defer func() {
		if err := tp.Shutdown(context.Background()); err != nil {
			log.Printf("error shutting down tracer provider: %v", err)
		}
	}()

	// Create repository and run migrations
	recordRepo := newRecordRepoFunc(db.Pool, tracer)
	if db.Pool != nil {
		if err := recordRepo.RunMigrations(ctx); err != nil {
			log.Fatalf("failed to run migrations: %v", err)
		}
	}

	// Metrics cache, shared through Redis when available
	var sharedCache market.RedisClient
	if cache.Client != nil {
		sharedCache = cache.Client
	}
	metrics := market.NewCollector(tracer, newMarketProviderFunc(tracer, cfg.CoinGeckoAPIKey), sharedCache, market.Config{
		MetricsTTL:  time.Duration(cfg.MetricsCacheSecs) * time.Second,
		CoinListTTL: time.Duration(cfg.CoinListCacheSecs) * time.Second,
	})

	var scorer analysis.PolarityScorer
	if s := analysis.NewOpenAIScorer(cfg.OpenAIAPIKey, cfg.OpenAIModel); s != nil {
		scorer = s
		log.Printf("OpenAI polarity scoring enabled (model %s)", cfg.OpenAIModel)
	}
	analyzer := analysis.NewAnalyzer(tracer, settings.Processor.CryptoKeywords, scorer)

	// Source collectors
	reddit := settings.Collectors.Reddit
	posts := collector.NewPostsCollector(tracer, newPostsSourceFunc(tracer, provider.RedditCredentials{
		ClientID:     cfg.RedditClientID,
		ClientSecret: cfg.RedditClientSecret,
		UserAgent:    cfg.RedditUserAgent,
	}), collector.PostsConfig{
		Subreddits:   reddit.Subreddits,
		Keywords:     reddit.Keywords,
		Limit:        reddit.Limit,
		Reliability:  settings.Reliability(domain.SourceReddit),
		PollInterval: time.Duration(cfg.PostsPollSecs) * time.Second,
	})
	if cfg.RedditClientID != "" && cfg.RedditClientSecret != "" {
		startPostsCollectorFunc(posts, ctx)
	}

	feeds := make([]collector.Feed, 0, len(settings.Collectors.News.Feeds))
	for _, f := range settings.Collectors.News.Feeds {
		feeds = append(feeds, collector.Feed{URL: f.URL, Source: f.Source, Reliability: settings.Reliability(f.Source)})
	}
	news := collector.NewNewsCollector(tracer, newNewsSourceFunc(tracer, settings.Collectors.News.Location()), feeds,
		settings.Collectors.News.MaxItems)
	if len(feeds) > 0 {
		startNewsCollectorFunc(news, ctx, time.Duration(cfg.NewsPollSecs)*time.Second)
	} else {
		log.Println("News collector disabled: no feeds configured")
	}

	// Correlation loop (background goroutine, stopped by ctx cancel)
	correlation := service.NewCorrelationService(tracer, posts, news, analyzer, metrics, recordRepo)
	correlationJob := job.NewCorrelationJob(tracer, correlation, time.Duration(cfg.MergeIntervalSecs)*time.Second)
	startJobFunc(correlationJob, ctx)

	// Create handlers and routes
	h := handler.New(tracer, recordRepo, correlation, metrics, posts, news)

	r := newRouterFunc()
	r.Use(otelgin.Middleware(tracing.ServiceName))

	h.RegisterRoutes(r, cfg.APIKey)
	r.GET("/swagger/*any", ginSwagger.WrapHandler(swaggerFiles.Handler))

	srv := &http.Server{
		Addr:    cfg.HTTPAddr,
		Handler: r,
	}

	go func() {
		if err := startHTTPServerFunc(srv); err != nil && err != http.ErrServerClosed {
			log.Fatalf("listen: %s\n", err)
		}
	}()

	quit := make(chan os.Signal, 1)
	setupSignalNotify(quit, syscall.SIGINT, syscall.SIGTERM)
	waitForSignalFunc(quit)
	log.Println("Shutting down correlator...")

	cancel()

	shutdownCtx, shutdownCancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer shutdownCancel()

	if err := shutdownHTTPServerFunc(srv, shutdownCtx); err != nil {
		log.Fatal("Server forced to shutdown:", err)
	}
	if db.Pool != nil {
		db.Pool.Close()
	}
	if cache.Client != nil {
		if err := cache.Client.Close(); err != nil {
			log.Printf("error closing Redis client: %v", err)
		}
	}

	log.Println("Correlator exiting")
}
