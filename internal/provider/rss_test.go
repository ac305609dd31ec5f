package provider

import (
	"context"
	"net/http"
	"testing"
	"time"

	"go.opentelemetry.io/otel/trace"
)

func TestRSSFetchFeed(t *testing.T) {
	p := NewRSSProvider(trace.NewNoopTracerProvider().Tracer("test"), time.UTC)
	p.client = &http.Client{Transport: roundTripFunc(func(req *http.Request) (*http.Response, error) {
		body := `<?xml version="1.0"?><rss><channel><title>The Block</title>
<item><title>Bitcoin price surges</title><link>https://example.com/a</link><guid>a-1</guid><description>&lt;p&gt;BTC up&lt;/p&gt;</description><pubDate>Tue, 04 Mar 2025 14:00:00 +0000</pubDate></item>
<item><title></title><link>https://example.com/b</link></item>
</channel></rss>`
		return jsonResponse(http.StatusOK, body), nil
	})}

	items, err := p.FetchFeed(context.Background(), "https://example.com/rss.xml", 10)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if len(items) != 1 {
		t.Fatalf("expected 1 item, got %d", len(items))
	}
	item := items[0]
	if item.Title != "Bitcoin price surges" || item.SourceItemID != "a-1" || item.Body != "BTC up" {
		t.Fatalf("unexpected item: %+v", item)
	}
	if !item.PublishedAt.Equal(time.Date(2025, 3, 4, 14, 0, 0, 0, time.UTC)) {
		t.Fatalf("unexpected published at: %v", item.PublishedAt)
	}
}

func TestRSSFetchAtomFeed(t *testing.T) {
	p := NewRSSProvider(trace.NewNoopTracerProvider().Tracer("test"), time.UTC)
	p.client = &http.Client{Transport: roundTripFunc(func(req *http.Request) (*http.Response, error) {
		body := `<?xml version="1.0" encoding="utf-8"?>
<feed xmlns="http://www.w3.org/2005/Atom"><title>Desk</title>
<entry><id>urn:1</id><title>Ethereum upgrade ships</title>
<link rel="alternate" href="https://example.com/eth"/><updated>2025-03-04T09:00:00-05:00</updated>
<author><name>Jane</name></author><content>&lt;b&gt;Dencun&lt;/b&gt; live</content></entry>
</feed>`
		return jsonResponse(http.StatusOK, body), nil
	})}

	items, err := p.FetchFeed(context.Background(), "https://example.com/atom.xml", 10)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if len(items) != 1 {
		t.Fatalf("expected 1 item, got %d", len(items))
	}
	item := items[0]
	if item.SourceItemID != "urn:1" || item.URL != "https://example.com/eth" || item.Author != "Jane" || item.Body != "Dencun live" {
		t.Fatalf("unexpected atom item: %+v", item)
	}
	if !item.PublishedAt.Equal(time.Date(2025, 3, 4, 14, 0, 0, 0, time.UTC)) {
		t.Fatalf("unexpected published at: %v", item.PublishedAt)
	}
}

func TestRSSFetchFeedFallbacks(t *testing.T) {
	now := time.Date(2025, 3, 5, 8, 0, 0, 0, time.UTC)
	p := NewRSSProvider(trace.NewNoopTracerProvider().Tracer("test"), time.UTC)
	p.now = func() time.Time { return now }
	p.client = &http.Client{Transport: roundTripFunc(func(req *http.Request) (*http.Response, error) {
		body := `<rss><channel><item><title>XRP ruling</title><pubDate>soon</pubDate></item></channel></rss>`
		return jsonResponse(http.StatusOK, body), nil
	})}

	items, err := p.FetchFeed(context.Background(), "https://example.com/rss.xml", 10)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if !items[0].PublishedAt.Equal(now) {
		t.Fatalf("expected unparsable date to fall back to now, got %v", items[0].PublishedAt)
	}
	if len(items[0].SourceItemID) != 40 {
		t.Fatalf("expected sha1 id fallback, got %q", items[0].SourceItemID)
	}
}

func TestRSSFetchFeedRejectsUnknownDocument(t *testing.T) {
	p := NewRSSProvider(trace.NewNoopTracerProvider().Tracer("test"), nil)
	p.client = &http.Client{Transport: roundTripFunc(func(req *http.Request) (*http.Response, error) {
		return jsonResponse(http.StatusOK, `<html><body>blocked</body></html>`), nil
	})}
	if _, err := p.FetchFeed(context.Background(), "https://example.com/rss.xml", 10); err == nil {
		t.Fatal("expected error for non-feed document")
	}
}

func TestParseNewsDateArticleCardInSourceZone(t *testing.T) {
	est := time.FixedZone("EST", -5*3600)

	got := ParseNewsDate("Mar 04, 2025, 9:00AM EST • 2 min read", est)
	want := time.Date(2025, 3, 4, 14, 0, 0, 0, time.UTC)
	if !got.Equal(want) {
		t.Fatalf("expected %v, got %v", want, got)
	}
}

func TestParseNewsDateRFC(t *testing.T) {
	got := ParseNewsDate("2025-03-04T09:00:00-05:00", time.UTC)
	if !got.Equal(time.Date(2025, 3, 4, 14, 0, 0, 0, time.UTC)) {
		t.Fatalf("unexpected time: %v", got)
	}
}

func TestParseNewsDateInvalid(t *testing.T) {
	if got := ParseNewsDate("yesterday", time.UTC); !got.IsZero() {
		t.Fatalf("expected zero time, got %v", got)
	}
	if got := ParseNewsDate("", nil); !got.IsZero() {
		t.Fatalf("expected zero time for empty input, got %v", got)
	}
}
