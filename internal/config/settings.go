package config

import (
	"errors"
	"fmt"
	"os"
	"strings"
	"time"
	_ "time/tzdata"

	"gopkg.in/yaml.v3"
)

// DefaultSourceReliability applies to any origin missing from source_reliability.
const DefaultSourceReliability = 0.8

// Settings is the pipeline settings file.
type Settings struct {
	Processor         ProcessorSettings  `yaml:"processor"`
	SourceReliability map[string]float64 `yaml:"source_reliability"`
	Collectors        CollectorSettings  `yaml:"collectors"`
}

type ProcessorSettings struct {
	CryptoKeywords []string `yaml:"crypto_keywords"`
}

type CollectorSettings struct {
	Reddit RedditSettings `yaml:"reddit"`
	News   NewsSettings   `yaml:"news"`
}

type RedditSettings struct {
	Subreddits []string `yaml:"subreddits"`
	Keywords   []string `yaml:"keywords"`
	Limit      int      `yaml:"limit"`
}

type NewsSettings struct {
	Feeds    []FeedSettings `yaml:"feeds"`
	Timezone string         `yaml:"timezone"`
	MaxItems int            `yaml:"max_items"`

	location *time.Location
}

type FeedSettings struct {
	URL    string `yaml:"url"`
	Source string `yaml:"source"`
}

// LoadSettings reads the YAML settings file, expands ${VAR} references,
// applies defaults and validates required keys.
func LoadSettings(path string) (*Settings, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("read settings file: %w", err)
	}
	return ParseSettings(data)
}

func ParseSettings(data []byte) (*Settings, error) {
	expanded := os.ExpandEnv(string(data))

	var s Settings
	if err := yaml.Unmarshal([]byte(expanded), &s); err != nil {
		return nil, fmt.Errorf("parse settings yaml: %w", err)
	}
	s.applyDefaults()
	if err := s.Validate(); err != nil {
		return nil, fmt.Errorf("validate settings: %w", err)
	}
	return &s, nil
}

func (s *Settings) applyDefaults() {
	if len(s.Collectors.Reddit.Keywords) == 0 {
		s.Collectors.Reddit.Keywords = []string{"bitcoin", "ethereum", "crypto", "price"}
	}
	if s.Collectors.Reddit.Limit <= 0 {
		s.Collectors.Reddit.Limit = 10
	}
	if strings.TrimSpace(s.Collectors.News.Timezone) == "" {
		s.Collectors.News.Timezone = "America/New_York"
	}
	if s.Collectors.News.MaxItems <= 0 {
		s.Collectors.News.MaxItems = 50
	}
	if s.SourceReliability == nil {
		s.SourceReliability = map[string]float64{}
	}
}

func (s *Settings) Validate() error {
	var errs []error
	if len(nonEmpty(s.Processor.CryptoKeywords)) == 0 {
		errs = append(errs, errors.New("processor.crypto_keywords is required"))
	}
	if len(nonEmpty(s.Collectors.Reddit.Subreddits)) == 0 {
		errs = append(errs, errors.New("collectors.reddit.subreddits is required"))
	}
	for i, f := range s.Collectors.News.Feeds {
		if strings.TrimSpace(f.URL) == "" {
			errs = append(errs, fmt.Errorf("collectors.news.feeds[%d].url is required", i))
		}
		if strings.TrimSpace(f.Source) == "" {
			errs = append(errs, fmt.Errorf("collectors.news.feeds[%d].source is required", i))
		}
	}
	for origin, v := range s.SourceReliability {
		if v < 0 || v > 1 {
			errs = append(errs, fmt.Errorf("source_reliability.%s must be within [0,1], got %v", origin, v))
		}
	}
	loc, err := time.LoadLocation(s.Collectors.News.Timezone)
	if err != nil {
		errs = append(errs, fmt.Errorf("collectors.news.timezone: %w", err))
	} else {
		s.Collectors.News.location = loc
	}
	return errors.Join(errs...)
}

// Location is the timezone news timestamps are interpreted in.
func (n NewsSettings) Location() *time.Location {
	if n.location == nil {
		return time.UTC
	}
	return n.location
}

// Reliability returns the configured weight for an origin key such as
// "reddit" or "the_block".
func (s *Settings) Reliability(origin string) float64 {
	if v, ok := s.SourceReliability[ReliabilityKey(origin)]; ok {
		return v
	}
	return DefaultSourceReliability
}

// ReliabilityKey normalizes a display source name ("The Block") to its
// settings key ("the_block").
func ReliabilityKey(source string) string {
	return strings.ReplaceAll(strings.ToLower(strings.TrimSpace(source)), " ", "_")
}

func nonEmpty(values []string) []string {
	out := make([]string, 0, len(values))
	for _, v := range values {
		if v = strings.TrimSpace(v); v != "" {
			out = append(out, v)
		}
	}
	return out
}
