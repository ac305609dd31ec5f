package domain

// Source tags attached to every TextItem.
const (
	SourceReddit   = "Reddit"
	SourceTheBlock = "The Block"
)

// Defaults substituted into joined records for sources that carry no author or engagement.
const (
	UnknownAuthor   = "Unknown"
	AnonymousAuthor = "Anonymous"
)

// TextItem is a single post or news headline waiting to be correlated.
// BatchTime and Date are epoch seconds.
type TextItem struct {
	ID                string  `json:"id,omitempty"`
	BatchTime         int64   `json:"batch_time"`
	Source            string  `json:"source"`
	Text              string  `json:"text"`
	Title             string  `json:"title"`
	Date              int64   `json:"date"`
	Author            *string `json:"author,omitempty"`
	Score             *int    `json:"score,omitempty"`
	SourceReliability float64 `json:"source_reliability"`
}

type Sentiment string

const (
	SentimentPositive Sentiment = "positive"
	SentimentNegative Sentiment = "negative"
	SentimentNeutral  Sentiment = "neutral"
)

// SentimentFromPolarity buckets a polarity score in [-1, 1].
func SentimentFromPolarity(polarity float64) Sentiment {
	switch {
	case polarity > 0.1:
		return SentimentPositive
	case polarity < -0.1:
		return SentimentNegative
	default:
		return SentimentNeutral
	}
}

// AnalysisResult is the enrichment of one TextItem. Coins keeps keyword order.
type AnalysisResult struct {
	Coins     []string  `json:"coins"`
	Sentiment Sentiment `json:"sentiment"`
	Topic     string    `json:"topic"`
}
