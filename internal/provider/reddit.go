package provider

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strings"
	"sync"
	"time"
	"unicode/utf8"

	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/trace"
)

const (
	redditAuthURL     = "https://www.reddit.com/api/v1/access_token"
	redditOAuthURL    = "https://oauth.reddit.com"
	defaultRedditUA   = "crypto-correlator/1.0"
	defaultRedditSize = 10
	tokenExpiryMargin = time.Minute
)

// RedditCredentials are the script-app credentials used for the
// client_credentials OAuth grant.
type RedditCredentials struct {
	ClientID     string
	ClientSecret string
	UserAgent    string
}

type RedditProvider struct {
	client  *http.Client
	authURL string
	baseURL string
	creds   RedditCredentials
	tracer  trace.Tracer
	now     func() time.Time

	mu          sync.Mutex
	token       string
	tokenExpiry time.Time
}

func NewRedditProvider(tracer trace.Tracer, creds RedditCredentials) *RedditProvider {
	if strings.TrimSpace(creds.UserAgent) == "" {
		creds.UserAgent = defaultRedditUA
	}
	return &RedditProvider{
		client:  &http.Client{Timeout: 20 * time.Second},
		authURL: redditAuthURL,
		baseURL: redditOAuthURL,
		creds:   creds,
		tracer:  tracer,
		now:     time.Now,
	}
}

// FetchNew returns the newest posts of a subreddit.
func (p *RedditProvider) FetchNew(ctx context.Context, subreddit string, limit int) ([]ContentItem, error) {
	ctx, span := p.tracer.Start(ctx, "reddit.fetch-new")
	defer span.End()

	subreddit = strings.TrimSpace(subreddit)
	if subreddit == "" {
		return nil, fmt.Errorf("subreddit is required")
	}
	span.SetAttributes(attribute.String("subreddit", subreddit))
	if limit <= 0 {
		limit = defaultRedditSize
	}
	if limit > 100 {
		limit = 100
	}

	token, err := p.accessToken(ctx)
	if err != nil {
		return nil, err
	}

	base := strings.TrimRight(p.baseURL, "/")
	u := fmt.Sprintf("%s/r/%s/new.json?limit=%d", base, url.PathEscape(subreddit), limit)
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, u, nil)
	if err != nil {
		return nil, err
	}
	req.Header.Set("Accept", "application/json")
	req.Header.Set("Authorization", "Bearer "+token)
	req.Header.Set("User-Agent", p.creds.UserAgent)

	resp, err := p.client.Do(req)
	if err != nil {
		return nil, err
	}
	defer resp.Body.Close()

	if resp.StatusCode == http.StatusUnauthorized {
		p.invalidateToken()
	}
	if resp.StatusCode != http.StatusOK {
		body, _ := io.ReadAll(resp.Body)
		return nil, fmt.Errorf("reddit API error %d: %s", resp.StatusCode, string(body))
	}

	var payload struct {
		Data struct {
			Children []struct {
				Data struct {
					ID         string  `json:"id"`
					Subreddit  string  `json:"subreddit"`
					Title      string  `json:"title"`
					SelfText   string  `json:"selftext"`
					Author     string  `json:"author"`
					CreatedUTC float64 `json:"created_utc"`
					Permalink  string  `json:"permalink"`
					Score      float64 `json:"score"`
				} `json:"data"`
			} `json:"children"`
		} `json:"data"`
	}
	if err := json.NewDecoder(resp.Body).Decode(&payload); err != nil {
		return nil, fmt.Errorf("decode reddit response: %w", err)
	}

	items := make([]ContentItem, 0, len(payload.Data.Children))
	for _, row := range payload.Data.Children {
		data := row.Data
		if strings.TrimSpace(data.ID) == "" || strings.TrimSpace(data.Title) == "" {
			continue
		}
		items = append(items, ContentItem{
			Source:       "reddit",
			SourceItemID: data.ID,
			Title:        sanitizeText(data.Title, 300),
			Body:         sanitizeText(data.SelfText, 4000),
			URL:          "https://www.reddit.com" + strings.TrimSpace(data.Permalink),
			Author:       sanitizeText(data.Author, 120),
			PublishedAt:  time.Unix(int64(data.CreatedUTC), 0).UTC(),
			Score:        int(data.Score),
			Metadata: map[string]any{
				"subreddit": strings.TrimSpace(data.Subreddit),
			},
		})
	}

	return items, nil
}

// accessToken returns the cached bearer token, requesting a new one when it
// is missing or about to expire.
func (p *RedditProvider) accessToken(ctx context.Context) (string, error) {
	p.mu.Lock()
	defer p.mu.Unlock()

	if p.token != "" && p.now().Add(tokenExpiryMargin).Before(p.tokenExpiry) {
		return p.token, nil
	}
	if p.creds.ClientID == "" || p.creds.ClientSecret == "" {
		return "", fmt.Errorf("reddit credentials are not configured")
	}

	form := url.Values{"grant_type": {"client_credentials"}}
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, p.authURL, strings.NewReader(form.Encode()))
	if err != nil {
		return "", err
	}
	req.SetBasicAuth(p.creds.ClientID, p.creds.ClientSecret)
	req.Header.Set("Content-Type", "application/x-www-form-urlencoded")
	req.Header.Set("User-Agent", p.creds.UserAgent)

	resp, err := p.client.Do(req)
	if err != nil {
		return "", fmt.Errorf("request reddit token: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		body, _ := io.ReadAll(resp.Body)
		return "", fmt.Errorf("reddit token error %d: %s", resp.StatusCode, string(body))
	}

	var tok struct {
		AccessToken string `json:"access_token"`
		ExpiresIn   int    `json:"expires_in"`
	}
	if err := json.NewDecoder(resp.Body).Decode(&tok); err != nil {
		return "", fmt.Errorf("decode reddit token: %w", err)
	}
	if tok.AccessToken == "" {
		return "", fmt.Errorf("reddit token response has no access_token")
	}

	p.token = tok.AccessToken
	p.tokenExpiry = p.now().Add(time.Duration(tok.ExpiresIn) * time.Second)
	return p.token, nil
}

func (p *RedditProvider) invalidateToken() {
	p.mu.Lock()
	p.token = ""
	p.mu.Unlock()
}

func sanitizeText(in string, maxLen int) string {
	in = strings.TrimSpace(in)
	if in == "" {
		return ""
	}
	in = strings.ReplaceAll(in, "\n", " ")
	in = strings.ReplaceAll(in, "\r", " ")
	in = strings.Join(strings.Fields(in), " ")
	if maxLen > 0 && len(in) > maxLen {
		cut := maxLen
		for cut > 0 && !utf8.RuneStart(in[cut]) {
			cut--
		}
		in = in[:cut]
	}
	return in
}
