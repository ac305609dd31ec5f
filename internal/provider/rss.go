package provider

import (
	"context"
	"crypto/sha1"
	"encoding/hex"
	"encoding/xml"
	"fmt"
	"io"
	"net/http"
	"strings"
	"time"
	"unicode"

	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/trace"
)

// TheBlockDateLayout matches article card dates such as "Mar 04, 2025, 9:00AM".
const TheBlockDateLayout = "Jan 02, 2006, 3:04PM"

type RSSProvider struct {
	client   *http.Client
	tracer   trace.Tracer
	location *time.Location
	now      func() time.Time
}

// NewRSSProvider creates a feed reader. Dates without an explicit offset are
// interpreted in loc; a nil loc means UTC.
func NewRSSProvider(tracer trace.Tracer, loc *time.Location) *RSSProvider {
	if loc == nil {
		loc = time.UTC
	}
	return &RSSProvider{
		client:   &http.Client{Timeout: 20 * time.Second},
		tracer:   tracer,
		location: loc,
		now:      time.Now,
	}
}

// FetchFeed reads an RSS 2.0 or Atom feed and returns up to maxItems entries
// in feed order. Entries without a title are dropped.
func (p *RSSProvider) FetchFeed(ctx context.Context, feedURL string, maxItems int) ([]ContentItem, error) {
	ctx, span := p.tracer.Start(ctx, "rss.fetch-feed")
	defer span.End()

	feedURL = strings.TrimSpace(feedURL)
	if feedURL == "" {
		return nil, fmt.Errorf("feed url is required")
	}
	span.SetAttributes(attribute.String("feed_url", feedURL))
	if maxItems <= 0 {
		maxItems = 40
	}

	body, err := p.download(ctx, feedURL)
	if err != nil {
		return nil, err
	}
	channel, entries, err := parseFeed(body)
	if err != nil {
		return nil, err
	}

	items := make([]ContentItem, 0, min(maxItems, len(entries)))
	for _, e := range entries {
		if len(items) >= maxItems {
			break
		}
		title := sanitizeText(e.title, 300)
		if title == "" {
			continue
		}
		publishedAt := ParseNewsDate(e.published, p.location)
		if publishedAt.IsZero() {
			publishedAt = p.now().UTC()
		}
		items = append(items, ContentItem{
			Source:       "news",
			SourceItemID: entryID(e, title, publishedAt),
			Title:        title,
			Body:         sanitizeText(htmlStrip(e.summary), 2000),
			URL:          sanitizeText(e.link, 500),
			Author:       sanitizeText(e.author, 120),
			PublishedAt:  publishedAt,
			Metadata: map[string]any{
				"feed_url": feedURL,
				"channel":  sanitizeText(channel, 120),
			},
		})
	}
	span.SetAttributes(attribute.Int("items", len(items)))
	return items, nil
}

func (p *RSSProvider) download(ctx context.Context, feedURL string) ([]byte, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, feedURL, nil)
	if err != nil {
		return nil, err
	}
	req.Header.Set("Accept", "application/rss+xml, application/atom+xml, application/xml, text/xml")

	resp, err := p.client.Do(req)
	if err != nil {
		return nil, err
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		body, _ := io.ReadAll(io.LimitReader(resp.Body, 512))
		return nil, fmt.Errorf("feed fetch error %d: %s", resp.StatusCode, string(body))
	}
	return io.ReadAll(resp.Body)
}

type feedEntry struct {
	id        string
	title     string
	link      string
	summary   string
	author    string
	published string
}

type rssDocument struct {
	Channel struct {
		Title string `xml:"title"`
		Items []struct {
			Title       string `xml:"title"`
			Link        string `xml:"link"`
			Description string `xml:"description"`
			GUID        string `xml:"guid"`
			PubDate     string `xml:"pubDate"`
			Creator     string `xml:"creator"`
			Author      string `xml:"author"`
		} `xml:"item"`
	} `xml:"channel"`
}

type atomDocument struct {
	Title   string `xml:"title"`
	Entries []struct {
		ID        string `xml:"id"`
		Title     string `xml:"title"`
		Summary   string `xml:"summary"`
		Content   string `xml:"content"`
		Updated   string `xml:"updated"`
		Published string `xml:"published"`
		Links     []struct {
			Href string `xml:"href,attr"`
			Rel  string `xml:"rel,attr"`
		} `xml:"link"`
		Author struct {
			Name string `xml:"name"`
		} `xml:"author"`
	} `xml:"entry"`
}

// parseFeed accepts an RSS 2.0 <rss> or an Atom <feed> document.
func parseFeed(body []byte) (string, []feedEntry, error) {
	var root struct {
		XMLName xml.Name
	}
	if err := xml.Unmarshal(body, &root); err != nil {
		return "", nil, fmt.Errorf("decode feed payload: %w", err)
	}

	switch root.XMLName.Local {
	case "rss":
		var doc rssDocument
		if err := xml.Unmarshal(body, &doc); err != nil {
			return "", nil, fmt.Errorf("decode rss payload: %w", err)
		}
		entries := make([]feedEntry, 0, len(doc.Channel.Items))
		for _, it := range doc.Channel.Items {
			author := it.Creator
			if strings.TrimSpace(author) == "" {
				author = it.Author
			}
			entries = append(entries, feedEntry{
				id:        it.GUID,
				title:     it.Title,
				link:      it.Link,
				summary:   it.Description,
				author:    author,
				published: it.PubDate,
			})
		}
		return doc.Channel.Title, entries, nil
	case "feed":
		var doc atomDocument
		if err := xml.Unmarshal(body, &doc); err != nil {
			return "", nil, fmt.Errorf("decode atom payload: %w", err)
		}
		entries := make([]feedEntry, 0, len(doc.Entries))
		for _, it := range doc.Entries {
			e := feedEntry{
				id:        it.ID,
				title:     it.Title,
				summary:   it.Summary,
				author:    it.Author.Name,
				published: it.Published,
			}
			if strings.TrimSpace(e.summary) == "" {
				e.summary = it.Content
			}
			if strings.TrimSpace(e.published) == "" {
				e.published = it.Updated
			}
			for _, l := range it.Links {
				if l.Rel == "" || l.Rel == "alternate" {
					e.link = l.Href
					break
				}
			}
			entries = append(entries, e)
		}
		return doc.Title, entries, nil
	default:
		return "", nil, fmt.Errorf("unsupported feed root <%s>", root.XMLName.Local)
	}
}

// entryID prefers the feed's own id, then the link, then a hash of the
// title and timestamp.
func entryID(e feedEntry, title string, publishedAt time.Time) string {
	if id := sanitizeText(e.id, 250); id != "" {
		return id
	}
	if link := sanitizeText(e.link, 250); link != "" {
		return link
	}
	h := sha1.Sum([]byte(title + "|" + publishedAt.Format(time.RFC3339Nano)))
	return hex.EncodeToString(h[:])
}

// ParseNewsDate parses feed and article-card dates. Anything after a "•"
// separator is ignored. Strings without a numeric offset are read in loc, so
// a trailing abbreviation such as EST resolves through loc's zone rules.
// The zero time is returned when nothing matches.
func ParseNewsDate(v string, loc *time.Location) time.Time {
	if loc == nil {
		loc = time.UTC
	}
	v, _, _ = strings.Cut(v, "•")
	v = strings.TrimSpace(v)
	if v == "" {
		return time.Time{}
	}

	layouts := []string{time.RFC1123Z, time.RFC1123, time.RFC822Z, time.RFC822, time.RFC3339}
	for _, layout := range layouts {
		if t, err := time.ParseInLocation(layout, v, loc); err == nil {
			return t.UTC()
		}
	}

	if t, err := time.ParseInLocation(TheBlockDateLayout, stripZoneAbbrev(v), loc); err == nil {
		return t.UTC()
	}
	return time.Time{}
}

func stripZoneAbbrev(v string) string {
	idx := strings.LastIndexByte(v, ' ')
	if idx < 0 {
		return v
	}
	tail := v[idx+1:]
	for _, r := range tail {
		if !unicode.IsUpper(r) {
			return v
		}
	}
	return strings.TrimSpace(v[:idx])
}

func htmlStrip(in string) string {
	if strings.TrimSpace(in) == "" {
		return ""
	}
	var b strings.Builder
	inside := false
	for _, r := range in {
		switch r {
		case '<':
			inside = true
			continue
		case '>':
			inside = false
			continue
		}
		if !inside {
			b.WriteRune(r)
		}
	}
	return b.String()
}
