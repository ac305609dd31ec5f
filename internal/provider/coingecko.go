package provider

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strings"
	"time"

	"crypto-correlator/internal/domain"

	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/trace"
)

const (
	coingeckoBaseURL = "https://api.coingecko.com/api/v3"

	// HistoryDateLayout is the dd-mm-yyyy date format of the /history endpoint.
	HistoryDateLayout = "02-01-2006"
)

var (
	// ErrRateLimited is returned when the API answers 429 Too Many Requests.
	ErrRateLimited = errors.New("coingecko rate limited")
	// ErrNoMarketData is returned when a coin payload has no market_data block.
	ErrNoMarketData = errors.New("coingecko payload has no market_data")
)

// CoinGeckoProvider talks to the CoinGecko public API.
type CoinGeckoProvider struct {
	client  *http.Client
	baseURL string
	apiKey  string
	tracer  trace.Tracer
	limiter *RateLimiter
}

// NewCoinGeckoProvider creates a provider that spaces consecutive requests
// at least 1.5 seconds apart and times out each request after 30 seconds.
func NewCoinGeckoProvider(tracer trace.Tracer, apiKey string) *CoinGeckoProvider {
	return &CoinGeckoProvider{
		client:  &http.Client{Timeout: 30 * time.Second},
		baseURL: coingeckoBaseURL,
		apiKey:  strings.TrimSpace(apiKey),
		tracer:  tracer,
		limiter: NewRateLimiter(1, 1500*time.Millisecond),
	}
}

// FetchCoinList returns the full coin directory in upstream order.
func (p *CoinGeckoProvider) FetchCoinList(ctx context.Context) ([]domain.CoinListing, error) {
	ctx, span := p.tracer.Start(ctx, "coingecko.fetch-coin-list")
	defer span.End()

	body, err := p.doRequest(ctx, p.baseURL+"/coins/list")
	if err != nil {
		return nil, fmt.Errorf("fetch coin list: %w", err)
	}

	var coins []domain.CoinListing
	if err := json.Unmarshal(body, &coins); err != nil {
		return nil, fmt.Errorf("parse coin list: %w", err)
	}
	return coins, nil
}

type usdValue struct {
	USD *float64 `json:"usd"`
}

type coinPayload struct {
	ID         string `json:"id"`
	MarketData *struct {
		CurrentPrice             usdValue `json:"current_price"`
		TotalVolume              usdValue `json:"total_volume"`
		MarketCap                usdValue `json:"market_cap"`
		PriceChangePercentage24h *float64 `json:"price_change_percentage_24h"`
	} `json:"market_data"`
}

// FetchCoinSnapshot returns the current market snapshot for a coin id.
// Historical fields of the result are left nil.
func (p *CoinGeckoProvider) FetchCoinSnapshot(ctx context.Context, coinID string) (*domain.CoinMetrics, error) {
	ctx, span := p.tracer.Start(ctx, "coingecko.fetch-coin-snapshot")
	defer span.End()
	span.SetAttributes(attribute.String("coin_id", coinID))

	u := fmt.Sprintf("%s/coins/%s?localization=false&tickers=false&community_data=false&developer_data=false",
		p.baseURL, url.PathEscape(coinID))
	body, err := p.doRequest(ctx, u)
	if err != nil {
		return nil, fmt.Errorf("fetch snapshot for %s: %w", coinID, err)
	}

	var raw coinPayload
	if err := json.Unmarshal(body, &raw); err != nil {
		return nil, fmt.Errorf("parse snapshot for %s: %w", coinID, err)
	}
	if raw.MarketData == nil || raw.MarketData.CurrentPrice.USD == nil {
		return nil, fmt.Errorf("snapshot for %s: %w", coinID, ErrNoMarketData)
	}

	md := raw.MarketData
	return &domain.CoinMetrics{
		Price:         *md.CurrentPrice.USD,
		Volume24h:     deref(md.TotalVolume.USD),
		MarketCap:     deref(md.MarketCap.USD),
		Volatility24h: deref(md.PriceChangePercentage24h),
	}, nil
}

// FetchHistoricalPrice returns the USD price of a coin on the given day.
// A payload without market data yields (nil, nil).
func (p *CoinGeckoProvider) FetchHistoricalPrice(ctx context.Context, coinID string, day time.Time) (*float64, error) {
	ctx, span := p.tracer.Start(ctx, "coingecko.fetch-historical-price")
	defer span.End()

	date := day.Format(HistoryDateLayout)
	span.SetAttributes(attribute.String("coin_id", coinID), attribute.String("date", date))

	u := fmt.Sprintf("%s/coins/%s/history?date=%s&localization=false", p.baseURL, url.PathEscape(coinID), date)
	body, err := p.doRequest(ctx, u)
	if err != nil {
		return nil, fmt.Errorf("fetch history for %s on %s: %w", coinID, date, err)
	}

	var raw coinPayload
	if err := json.Unmarshal(body, &raw); err != nil {
		return nil, fmt.Errorf("parse history for %s: %w", coinID, err)
	}
	if raw.MarketData == nil {
		return nil, nil
	}
	return raw.MarketData.CurrentPrice.USD, nil
}

func (p *CoinGeckoProvider) doRequest(ctx context.Context, u string) ([]byte, error) {
	if err := p.limiter.Wait(ctx); err != nil {
		return nil, fmt.Errorf("rate limit wait: %w", err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, u, nil)
	if err != nil {
		return nil, err
	}
	req.Header.Set("Accept", "application/json")
	if p.apiKey != "" {
		req.Header.Set("x-cg-demo-api-key", p.apiKey)
	}

	resp, err := p.client.Do(req)
	if err != nil {
		return nil, err
	}
	defer resp.Body.Close()

	if resp.StatusCode == http.StatusTooManyRequests {
		return nil, ErrRateLimited
	}
	if resp.StatusCode != http.StatusOK {
		body, _ := io.ReadAll(resp.Body)
		return nil, fmt.Errorf("coingecko API error %d: %s", resp.StatusCode, string(body))
	}

	return io.ReadAll(resp.Body)
}

func deref(v *float64) float64 {
	if v == nil {
		return 0
	}
	return *v
}
