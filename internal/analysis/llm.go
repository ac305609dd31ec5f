package analysis

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/openai/openai-go"
	"github.com/openai/openai-go/option"
)

const (
	defaultScorerModel = "gpt-4o-mini"
	scorerTimeout      = 15 * time.Second
	maxScorerInput     = 2000
)

const polarityPrompt = `Rate the sentiment of a crypto-related post or headline toward the coins it mentions.
Reply with a single JSON object {"polarity": x} where x is between -1 (very bearish) and 1 (very bullish).`

var errNoPolarity = errors.New("scorer reply has no polarity")

type chatCompleter interface {
	Complete(ctx context.Context, params openai.ChatCompletionNewParams) (*openai.ChatCompletion, error)
}

// OpenAIScorer asks a chat model for the polarity of a text.
type OpenAIScorer struct {
	chat    chatCompleter
	model   string
	timeout time.Duration
}

// NewOpenAIScorer returns nil when apiKey is empty.
func NewOpenAIScorer(apiKey string, model string) *OpenAIScorer {
	apiKey = strings.TrimSpace(apiKey)
	if apiKey == "" {
		return nil
	}
	if strings.TrimSpace(model) == "" {
		model = defaultScorerModel
	}
	return &OpenAIScorer{
		chat:    sdkCompleter{client: openai.NewClient(option.WithAPIKey(apiKey))},
		model:   model,
		timeout: scorerTimeout,
	}
}

func (s *OpenAIScorer) Polarity(ctx context.Context, text string) (float64, error) {
	if s == nil || s.chat == nil {
		return 0, errors.New("openai scorer is not configured")
	}
	if s.timeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, s.timeout)
		defer cancel()
	}

	completion, err := s.chat.Complete(ctx, openai.ChatCompletionNewParams{
		Model: s.model,
		Messages: []openai.ChatCompletionMessageParamUnion{
			openai.SystemMessage(polarityPrompt),
			openai.UserMessage(truncateRunes(strings.TrimSpace(text), maxScorerInput)),
		},
	})
	if err != nil {
		return 0, fmt.Errorf("score polarity: %w", err)
	}
	if len(completion.Choices) == 0 {
		return 0, errors.New("scorer returned no choices")
	}
	return parsePolarity(completion.Choices[0].Message.Content)
}

// parsePolarity reads the first JSON object in reply, ignoring code fences or prose around it.
func parsePolarity(reply string) (float64, error) {
	start := strings.Index(reply, "{")
	end := strings.LastIndex(reply, "}")
	if start < 0 || end < start {
		return 0, errNoPolarity
	}
	var out struct {
		Polarity *float64 `json:"polarity"`
	}
	if err := json.Unmarshal([]byte(reply[start:end+1]), &out); err != nil {
		return 0, fmt.Errorf("decode scorer reply: %w", err)
	}
	if out.Polarity == nil {
		return 0, errNoPolarity
	}
	return clamp(*out.Polarity, -1, 1), nil
}

func truncateRunes(s string, n int) string {
	r := []rune(s)
	if len(r) <= n {
		return s
	}
	return string(r[:n])
}

type sdkCompleter struct {
	client openai.Client
}

func (c sdkCompleter) Complete(ctx context.Context, params openai.ChatCompletionNewParams) (*openai.ChatCompletion, error) {
	return c.client.Chat.Completions.New(ctx, params)
}
