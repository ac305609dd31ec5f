package provider

import (
	"context"
	"net/http"
	"strings"
	"testing"
	"time"
	"unicode/utf8"

	"go.opentelemetry.io/otel/trace"
)

func newTestReddit(fn roundTripFunc) *RedditProvider {
	p := NewRedditProvider(trace.NewNoopTracerProvider().Tracer("test"), RedditCredentials{
		ClientID:     "id",
		ClientSecret: "secret",
		UserAgent:    "test-agent",
	})
	p.authURL = "https://auth.example/api/v1/access_token"
	p.baseURL = "https://oauth.example"
	p.client = &http.Client{Transport: fn}
	return p
}

func TestRedditFetchNew(t *testing.T) {
	tokenCalls := 0
	p := newTestReddit(func(req *http.Request) (*http.Response, error) {
		switch req.URL.Host {
		case "auth.example":
			tokenCalls++
			user, pass, ok := req.BasicAuth()
			if !ok || user != "id" || pass != "secret" {
				t.Fatalf("expected basic auth credentials")
			}
			return jsonResponse(http.StatusOK, `{"access_token":"tok","expires_in":3600}`), nil
		case "oauth.example":
			if req.URL.Path != "/r/Bitcoin/new.json" {
				t.Fatalf("unexpected path: %s", req.URL.Path)
			}
			if req.Header.Get("Authorization") != "Bearer tok" {
				t.Fatalf("expected bearer token, got %q", req.Header.Get("Authorization"))
			}
			if req.Header.Get("User-Agent") != "test-agent" {
				t.Fatalf("expected user-agent header")
			}
			body := `{"data":{"children":[{"data":{"id":"abc123","subreddit":"Bitcoin","title":"BTC breaks out","selftext":"Market is\nmoving up","author":"alice","created_utc":1771009800,"permalink":"/r/Bitcoin/comments/abc123/post","score":10}},{"data":{"id":"","title":"skipped"}}]}}`
			return jsonResponse(http.StatusOK, body), nil
		}
		t.Fatalf("unexpected host: %s", req.URL.Host)
		return nil, nil
	})

	for i := 0; i < 2; i++ {
		items, err := p.FetchNew(context.Background(), "Bitcoin", 5)
		if err != nil {
			t.Fatalf("unexpected error: %v", err)
		}
		if len(items) != 1 {
			t.Fatalf("expected 1 item, got %d", len(items))
		}
		item := items[0]
		if item.SourceItemID != "abc123" || item.Author != "alice" || item.Score != 10 {
			t.Fatalf("unexpected item: %+v", item)
		}
		if item.Body != "Market is moving up" {
			t.Fatalf("expected sanitized body, got %q", item.Body)
		}
		if !item.PublishedAt.Equal(time.Unix(1771009800, 0)) {
			t.Fatalf("unexpected published at: %v", item.PublishedAt)
		}
	}
	if tokenCalls != 1 {
		t.Fatalf("expected token to be cached, got %d token calls", tokenCalls)
	}
}

func TestRedditTokenRefreshedNearExpiry(t *testing.T) {
	tokenCalls := 0
	p := newTestReddit(func(req *http.Request) (*http.Response, error) {
		if req.URL.Host == "auth.example" {
			tokenCalls++
			return jsonResponse(http.StatusOK, `{"access_token":"tok","expires_in":30}`), nil
		}
		return jsonResponse(http.StatusOK, `{"data":{"children":[]}}`), nil
	})

	for i := 0; i < 2; i++ {
		if _, err := p.FetchNew(context.Background(), "ethereum", 0); err != nil {
			t.Fatalf("unexpected error: %v", err)
		}
	}
	if tokenCalls != 2 {
		t.Fatalf("token expiring inside the margin should be refreshed, got %d calls", tokenCalls)
	}
}

func TestRedditFetchNewRequiresCredentials(t *testing.T) {
	p := NewRedditProvider(trace.NewNoopTracerProvider().Tracer("test"), RedditCredentials{})
	_, err := p.FetchNew(context.Background(), "Bitcoin", 5)
	if err == nil || !strings.Contains(err.Error(), "credentials") {
		t.Fatalf("expected credentials error, got %v", err)
	}
}

func TestRedditFetchNewRequiresSubreddit(t *testing.T) {
	p := newTestReddit(func(req *http.Request) (*http.Response, error) {
		t.Fatal("no request expected")
		return nil, nil
	})
	if _, err := p.FetchNew(context.Background(), "  ", 5); err == nil {
		t.Fatal("expected error for empty subreddit")
	}
}

func TestSanitizeTextCutsOnRuneBoundary(t *testing.T) {
	in := strings.Repeat("a", 3999) + "ё more"
	got := sanitizeText(in, 4000)
	if !utf8.ValidString(got) {
		t.Fatal("truncated text is not valid UTF-8")
	}
	if got != strings.Repeat("a", 3999) {
		t.Fatalf("expected cut before the multi-byte rune, got len %d", len(got))
	}
	if got := sanitizeText("ёё", 3); got != "ё" {
		t.Fatalf("expected single rune, got %q", got)
	}
}
