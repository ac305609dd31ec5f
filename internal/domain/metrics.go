package domain

import "time"

// CoinListing is one entry of the market-data coin directory.
type CoinListing struct {
	ID     string `json:"id"`
	Symbol string `json:"symbol"`
	Name   string `json:"name"`
}

// CoinMetrics is the market context joined onto every record for a coin.
type CoinMetrics struct {
	Price         float64  `json:"price"`
	Volume24h     float64  `json:"volume_24h"`
	MarketCap     float64  `json:"market_cap"`
	Volatility24h float64  `json:"volatility_24h"`
	Price24hAgo   *float64 `json:"price_24h_ago,omitempty"`
	Price30dAgo   *float64 `json:"price_30d_ago,omitempty"`
}

// CachedMetrics pairs metrics with the time they were fetched.
type CachedMetrics struct {
	Metrics   CoinMetrics `json:"metrics"`
	FetchedAt time.Time   `json:"fetched_at"`
}

// Fresh reports whether the entry is younger than ttl at now.
func (c CachedMetrics) Fresh(now time.Time, ttl time.Duration) bool {
	return now.Sub(c.FetchedAt) < ttl
}
