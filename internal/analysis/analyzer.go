// Package analysis extracts coin mentions, sentiment and topic from text.
package analysis

import (
	"context"
	"log"
	"regexp"
	"strings"

	"crypto-correlator/internal/domain"

	"go.opentelemetry.io/otel/trace"
)

const (
	TopicPriceGrowth = "рост цен"
	TopicRegulation  = "регуляция"
	TopicGeneral     = "общая тема"
)

// PolarityScorer returns a polarity in [-1, 1] for a text.
type PolarityScorer interface {
	Polarity(ctx context.Context, text string) (float64, error)
}

type keywordPattern struct {
	keyword string
	rx      *regexp.Regexp
}

type Analyzer struct {
	tracer   trace.Tracer
	keywords []keywordPattern
	lexicon  *Lexicon
	scorer   PolarityScorer
}

// NewAnalyzer compiles the keyword list once. scorer may be nil, in which
// case the built-in lexicon decides polarity.
func NewAnalyzer(tracer trace.Tracer, keywords []string, scorer PolarityScorer) *Analyzer {
	seen := make(map[string]struct{}, len(keywords))
	patterns := make([]keywordPattern, 0, len(keywords))
	for _, kw := range keywords {
		kw = strings.TrimSpace(kw)
		key := strings.ToLower(kw)
		if kw == "" {
			continue
		}
		if _, dup := seen[key]; dup {
			continue
		}
		seen[key] = struct{}{}
		patterns = append(patterns, keywordPattern{
			keyword: kw,
			rx:      regexp.MustCompile(`(?i)\b` + regexp.QuoteMeta(kw) + `\b`),
		})
	}
	return &Analyzer{
		tracer:   tracer,
		keywords: patterns,
		lexicon:  NewLexicon(),
		scorer:   scorer,
	}
}

// AnalyzeText enriches one text item.
func (a *Analyzer) AnalyzeText(ctx context.Context, text string) (domain.AnalysisResult, error) {
	ctx, span := a.tracer.Start(ctx, "analysis.analyze-text")
	defer span.End()

	return domain.AnalysisResult{
		Coins:     a.ExtractCoins(text),
		Sentiment: domain.SentimentFromPolarity(a.polarity(ctx, text)),
		Topic:     DetectTopic(text),
	}, nil
}

// ExtractCoins returns configured keywords found on word boundaries, in
// keyword order.
func (a *Analyzer) ExtractCoins(text string) []string {
	found := make([]string, 0, 2)
	for _, kw := range a.keywords {
		if kw.rx.MatchString(text) {
			found = append(found, kw.keyword)
		}
	}
	return found
}

func (a *Analyzer) polarity(ctx context.Context, text string) float64 {
	score := a.lexicon.Polarity(text)
	if a.scorer == nil || strings.TrimSpace(text) == "" {
		return score
	}
	llm, err := a.scorer.Polarity(ctx, text)
	if err != nil {
		log.Printf("polarity scorer failed, using lexicon: %v", err)
		return score
	}
	return clamp(llm, -1, 1)
}

// DetectTopic applies the keyword topic heuristic.
func DetectTopic(text string) string {
	lower := strings.ToLower(text)
	switch {
	case strings.Contains(lower, "price"):
		return TopicPriceGrowth
	case strings.Contains(lower, "regulation"):
		return TopicRegulation
	default:
		return TopicGeneral
	}
}

func clamp(v, lo, hi float64) float64 {
	if v < lo {
		return lo
	}
	if v > hi {
		return hi
	}
	return v
}
