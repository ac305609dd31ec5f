package domain

import "time"

// JoinedRecord is the persisted unit: one row per (text item, mentioned coin).
type JoinedRecord struct {
	ID                int64     `json:"id,omitempty"`
	BatchTime         time.Time `json:"batch_time"`
	Source            string    `json:"source"`
	Text              string    `json:"text"`
	Author            string    `json:"author"`
	Date              time.Time `json:"date"`
	Engagement        int       `json:"engagement"`
	Coin              string    `json:"coin"`
	Price             float64   `json:"price"`
	Sentiment         Sentiment `json:"sentiment"`
	Topic             string    `json:"topic"`
	Volume24h         float64   `json:"volume_24h"`
	MarketCap         float64   `json:"market_cap"`
	Volatility24h     float64   `json:"volatility_24h"`
	SourceReliability float64   `json:"source_reliability"`
	Price24hAgo       *float64  `json:"price_24h_ago,omitempty"`
	Price30dAgo       *float64  `json:"price_30d_ago,omitempty"`
}

// NewJoinedRecord denormalizes an item, its analysis and one coin's metrics.
func NewJoinedRecord(item TextItem, analysis AnalysisResult, coin string, m CoinMetrics) JoinedRecord {
	author := UnknownAuthor
	if item.Author != nil && *item.Author != "" {
		author = *item.Author
	}
	engagement := 0
	if item.Score != nil {
		engagement = *item.Score
	}
	return JoinedRecord{
		BatchTime:         time.Unix(item.BatchTime, 0).UTC(),
		Source:            item.Source,
		Text:              item.Text,
		Author:            author,
		Date:              time.Unix(item.Date, 0).UTC(),
		Engagement:        engagement,
		Coin:              coin,
		Price:             m.Price,
		Sentiment:         analysis.Sentiment,
		Topic:             analysis.Topic,
		Volume24h:         m.Volume24h,
		MarketCap:         m.MarketCap,
		Volatility24h:     m.Volatility24h,
		SourceReliability: item.SourceReliability,
		Price24hAgo:       m.Price24hAgo,
		Price30dAgo:       m.Price30dAgo,
	}
}

// CycleResult summarizes one correlation cycle.
type CycleResult struct {
	ID             string    `json:"id"`
	StartedAt      time.Time `json:"started_at"`
	FinishedAt     time.Time `json:"finished_at"`
	PostsDrained   int       `json:"posts_drained"`
	NewsDrained    int       `json:"news_drained"`
	ItemsAnalyzed  int       `json:"items_analyzed"`
	CoinsMentioned int       `json:"coins_mentioned"`
	CoinsSkipped   int       `json:"coins_skipped"`
	RecordsWritten int       `json:"records_written"`
	ErrorCount     int       `json:"error_count"`
	Errors         []string  `json:"errors,omitempty"`
}

// Worked reports whether the cycle drained anything.
func (r CycleResult) Worked() bool {
	return r.PostsDrained > 0 || r.NewsDrained > 0
}

// MaxCycleErrors bounds the error messages kept on a CycleResult.
const MaxCycleErrors = 20

// AddError records a per-unit failure, keeping at most MaxCycleErrors messages.
func (r *CycleResult) AddError(msg string) {
	r.ErrorCount++
	if len(r.Errors) < MaxCycleErrors {
		r.Errors = append(r.Errors, msg)
	}
}
