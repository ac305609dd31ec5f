package config

import (
	"log"
	"os"
	"strconv"
	"strings"
)

type Config struct {
	DatabaseURL  string
	RedisURL     string
	SettingsPath string
	HTTPAddr     string
	APIKey       string

	MergeIntervalSecs int
	PostsPollSecs     int
	NewsPollSecs      int
	MetricsCacheSecs  int
	CoinListCacheSecs int

	CoinGeckoAPIKey string

	RedditClientID     string
	RedditClientSecret string
	RedditUserAgent    string

	OpenAIAPIKey string
	OpenAIModel  string
}

func Load() *Config {
	cfg := &Config{
		DatabaseURL:        os.Getenv("DATABASE_URL"),
		APIKey:             strings.TrimSpace(os.Getenv("API_KEY")),
		RedisURL:           strings.TrimSpace(os.Getenv("REDIS_URL")),
		CoinGeckoAPIKey:    strings.TrimSpace(os.Getenv("COINGECKO_API_KEY")),
		RedditClientID:     strings.TrimSpace(os.Getenv("REDDIT_CLIENT_ID")),
		RedditClientSecret: strings.TrimSpace(os.Getenv("REDDIT_CLIENT_SECRET")),
		RedditUserAgent:    strings.TrimSpace(os.Getenv("REDDIT_USER_AGENT")),
		OpenAIAPIKey:       strings.TrimSpace(os.Getenv("OPENAI_API_KEY")),
	}

	if cfg.DatabaseURL == "" {
		log.Println("Warning: DATABASE_URL not set")
	}
	if cfg.RedisURL == "" {
		log.Println("Warning: REDIS_URL not set, shared metrics cache disabled")
	}
	if cfg.RedditClientID == "" || cfg.RedditClientSecret == "" {
		log.Println("Warning: REDDIT_CLIENT_ID/REDDIT_CLIENT_SECRET not set, posts collector disabled")
	}
	if cfg.RedditUserAgent == "" {
		cfg.RedditUserAgent = "crypto-correlator/1.0"
	}

	cfg.SettingsPath = strings.TrimSpace(os.Getenv("SETTINGS_PATH"))
	if cfg.SettingsPath == "" {
		cfg.SettingsPath = "config/settings.yaml"
	}

	cfg.HTTPAddr = strings.TrimSpace(os.Getenv("HTTP_ADDR"))
	if cfg.HTTPAddr == "" {
		cfg.HTTPAddr = ":8080"
	}

	cfg.MergeIntervalSecs = positiveInt("MERGE_INTERVAL_SECS", 6)
	cfg.PostsPollSecs = positiveInt("POSTS_POLL_SECS", 300)
	cfg.NewsPollSecs = positiveInt("NEWS_POLL_SECS", 10800)
	cfg.MetricsCacheSecs = positiveInt("METRICS_CACHE_SECS", 3600)
	cfg.CoinListCacheSecs = positiveInt("COIN_LIST_CACHE_SECS", 3600)

	cfg.OpenAIModel = strings.TrimSpace(os.Getenv("OPENAI_MODEL"))
	if cfg.OpenAIModel == "" {
		cfg.OpenAIModel = "gpt-4o-mini"
	}

	return cfg
}

func positiveInt(key string, def int) int {
	v := strings.TrimSpace(os.Getenv(key))
	if v == "" {
		return def
	}
	n, err := strconv.Atoi(v)
	if err != nil || n <= 0 {
		log.Printf("Warning: invalid %s=%q, defaulting to %d", key, v, def)
		return def
	}
	return n
}
