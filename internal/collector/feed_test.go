package collector

import (
	"context"
	"fmt"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/mmcdole/gofeed"
)

const rssBody = `<?xml version="1.0" encoding="UTF-8"?>
<rss version="2.0"><channel><title>Test</title>
<item><title>Arsenal sign striker</title><link>https://example.com/a</link><guid>a-1</guid>
<description><![CDATA[<p>Deal <b>done</b></p>]]></description><pubDate>Mon, 02 Jan 2006 15:04:05 +0000</pubDate></item>
<item><title></title><link>https://example.com/no-title</link></item>
<item><title>No link here</title></item>
<item><title>Future dated</title><link>https://example.com/future</link><pubDate>Fri, 01 Jan 2100 00:00:00 +0000</pubDate></item>
<item><title>Bad date</title><link>https://example.com/bad</link><pubDate>yesterday-ish</pubDate></item>
</channel></rss>`

const atomBody = `<?xml version="1.0" encoding="utf-8"?>
<feed xmlns="http://www.w3.org/2005/Atom"><title>Atom</title>
<entry><title>Chelsea injury update</title><link href="https://example.com/atom-1"/>
<id>urn:atom:1</id><summary>Hamstring problem</summary><updated>2006-01-02T15:04:05Z</updated></entry>
</feed>`

func newTestFetcher(now time.Time) *FeedFetcher {
	f := NewFeedFetcher(2*time.Second, 20)
	f.Now = func() time.Time { return now }
	return f
}

func TestFeedFetcherParsesRSSAndSkipsMalformedItems(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "application/rss+xml")
		_, _ = w.Write([]byte(rssBody))
	}))
	defer srv.Close()

	now := time.Date(2024, 5, 1, 12, 0, 0, 0, time.UTC)
	items, err := newTestFetcher(now).Fetch(context.Background(), Source{ID: 7, Code: "rss", URL: srv.URL})
	if err != nil {
		t.Fatalf("Fetch error: %v", err)
	}
	if len(items) != 3 {
		t.Fatalf("expected 3 items (missing title/link dropped), got %d", len(items))
	}
	if items[0].GUID != "a-1" || items[0].SourceID != 7 {
		t.Fatalf("unexpected first item: %+v", items[0])
	}
	if !strings.Contains(items[0].Description, "Deal") {
		t.Fatalf("description not kept: %q", items[0].Description)
	}
	if !items[1].PublishedAt.Equal(now) {
		t.Fatalf("future pubDate should clamp to now, got %v", items[1].PublishedAt)
	}
	if !items[2].PublishedAt.Equal(now) {
		t.Fatalf("unparseable pubDate should default to now, got %v", items[2].PublishedAt)
	}
}

func TestFeedFetcherParsesAtomHrefLinks(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		_, _ = w.Write([]byte(atomBody))
	}))
	defer srv.Close()

	now := time.Date(2024, 5, 1, 12, 0, 0, 0, time.UTC)
	items, err := newTestFetcher(now).Fetch(context.Background(), Source{Code: "atom", URL: srv.URL})
	if err != nil {
		t.Fatalf("Fetch error: %v", err)
	}
	if len(items) != 1 {
		t.Fatalf("expected 1 item, got %d", len(items))
	}
	if items[0].URL != "https://example.com/atom-1" {
		t.Fatalf("atom href not used as link: %q", items[0].URL)
	}
	if items[0].Description != "Hamstring problem" {
		t.Fatalf("atom summary not used: %q", items[0].Description)
	}
	want := time.Date(2006, 1, 2, 15, 4, 5, 0, time.UTC)
	if !items[0].PublishedAt.Equal(want) {
		t.Fatalf("updated time = %v, want %v", items[0].PublishedAt, want)
	}
}

func TestFeedFetcherNon2xxAndNonXMLAreErrors(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Path == "/down" {
			w.WriteHeader(http.StatusServiceUnavailable)
			return
		}
		if r.URL.Path == "/feed.json" {
			w.Header().Set("Content-Type", "application/feed+json")
			_, _ = w.Write([]byte(`{"version":"https://jsonfeed.org/version/1.1","title":"JSON","items":[{"id":"1","url":"https://example.com/j1","title":"Spurs sack manager"}]}`))
			return
		}
		w.Header().Set("Content-Type", "text/html")
		_, _ = w.Write([]byte("<html><body>not a feed</body></html>"))
	}))
	defer srv.Close()

	f := newTestFetcher(time.Now())
	if items, err := f.Fetch(context.Background(), Source{Code: "down", URL: srv.URL + "/down"}); err == nil || len(items) != 0 {
		t.Fatalf("expected error and no items for 503, got %d items err=%v", len(items), err)
	}
	if items, err := f.Fetch(context.Background(), Source{Code: "html", URL: srv.URL + "/page"}); err == nil || len(items) != 0 {
		t.Fatalf("expected error and no items for html body, got %d items err=%v", len(items), err)
	}
	if items, err := f.Fetch(context.Background(), Source{Code: "json", URL: srv.URL + "/feed.json"}); err == nil || len(items) != 0 {
		t.Fatalf("expected error and no items for json feed body, got %d items err=%v", len(items), err)
	}
}

func TestFeedFetcherHonoursTimeout(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		select {
		case <-time.After(2 * time.Second):
		case <-r.Context().Done():
		}
	}))
	defer srv.Close()

	f := NewFeedFetcher(100*time.Millisecond, 20)
	start := time.Now()
	if _, err := f.Fetch(context.Background(), Source{Code: "slow", URL: srv.URL}); err == nil {
		t.Fatalf("expected timeout error")
	}
	if elapsed := time.Since(start); elapsed > time.Second {
		t.Fatalf("timeout not honoured, took %v", elapsed)
	}
}

func TestNormalizeCapsItemsPerSource(t *testing.T) {
	feed := &gofeed.Feed{}
	for i := range 30 {
		feed.Items = append(feed.Items, &gofeed.Item{
			Title: fmt.Sprintf("Item %d", i),
			Link:  fmt.Sprintf("https://example.com/%d", i),
		})
	}
	out := Normalize(feed, Source{ID: 1}, time.Now(), 20)
	if len(out) != 20 {
		t.Fatalf("expected cap of 20, got %d", len(out))
	}
}

func TestNormalizeFallsBackToContentAndLinks(t *testing.T) {
	feed := &gofeed.Feed{Items: []*gofeed.Item{
		{Title: "Only content", Links: []string{"", "https://example.com/x"}, Content: "<p>body</p>"},
	}}
	out := Normalize(feed, Source{}, time.Now(), 0)
	if len(out) != 1 {
		t.Fatalf("expected 1 item, got %d", len(out))
	}
	if out[0].URL != "https://example.com/x" || out[0].Description != "<p>body</p>" {
		t.Fatalf("unexpected item: %+v", out[0])
	}
}

func TestParseTierDefaultsToTier3(t *testing.T) {
	if ParseTier("official") != TierOfficial {
		t.Fatalf("official not parsed")
	}
	if ParseTier("weird") != TierThree {
		t.Fatalf("unknown tier should map to tier3")
	}
}
