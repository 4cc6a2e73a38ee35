package crawler

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"sync"
	"testing"

	"github.com/PuerkitoBio/goquery"

	"ProspectScanner/internal/logging"
)

type fakeFetcher struct {
	mu    sync.Mutex
	pages map[string]string
	calls []string
}

func (f *fakeFetcher) Fetch(_ context.Context, pageURL string) (*goquery.Document, error) {
	f.mu.Lock()
	f.calls = append(f.calls, pageURL)
	f.mu.Unlock()

	raw, ok := f.pages[pageURL]
	if !ok {
		return nil, errors.New("404 Not Found")
	}
	return goquery.NewDocumentFromReader(strings.NewReader(raw))
}

func newCrawler(f *fakeFetcher, maxPages int) *Crawler {
	return New(Deps{Fetcher: f, Logger: logging.Discard(), Config: Config{MaxPages: maxPages}})
}

func TestCrawlPriorityLinksGoFirst(t *testing.T) {
	t.Parallel()

	const seed = "https://reef.org/"
	f := &fakeFetcher{pages: map[string]string{
		seed: `<html><head><title>Reef Trust</title></head><body>
			<a href="/a">A</a>
			<a href="/about">About</a>
			<a href="/contact#form">Contact</a>
			<a href="/mission">Mission</a>
			<a href="/impact">Impact</a>
			<a href="/b">B</a>
			<a href="/c">C</a>
		</body></html>`,
		"https://reef.org/about":   `<p>about</p>`,
		"https://reef.org/contact": `<p>contact</p>`,
		"https://reef.org/mission": `<p>mission</p>`,
		"https://reef.org/a":       `<p>a</p>`,
		"https://reef.org/b":       `<p>b</p>`,
	}}

	newCrawler(f, 15).Crawl(context.Background(), seed)

	want := []string{
		seed,
		"https://reef.org/mission",
		"https://reef.org/contact",
		"https://reef.org/about",
		"https://reef.org/a",
		"https://reef.org/b",
	}
	if strings.Join(f.calls, " ") != strings.Join(want, " ") {
		t.Fatalf("unexpected fetch order:\n got %v\nwant %v", f.calls, want)
	}
}

func TestCrawlRespectsPageCapAndNeverRevisits(t *testing.T) {
	t.Parallel()

	pages := map[string]string{}
	for i := 0; i < 30; i++ {
		pages[fmt.Sprintf("https://big.org/p%d", i)] = fmt.Sprintf(
			`<a href="/p%d">next</a><a href="/p%d">again</a><a href="/p0">home</a>`, i+1, i+2)
	}
	f := &fakeFetcher{pages: pages}

	newCrawler(f, 4).Crawl(context.Background(), "https://big.org/p0")

	if len(f.calls) != 4 {
		t.Fatalf("expected 4 fetches, got %d: %v", len(f.calls), f.calls)
	}
	seen := map[string]bool{}
	for _, c := range f.calls {
		if seen[c] {
			t.Fatalf("page fetched twice: %s", c)
		}
		seen[c] = true
	}
}

func TestCrawlSkipsForeignHostsBinariesAndFailedPages(t *testing.T) {
	t.Parallel()

	const seed = "https://kelp.org"
	f := &fakeFetcher{pages: map[string]string{
		seed: `<body>
			<a href="https://other.org/about">foreign</a>
			<a href="/report.pdf">report</a>
			<a href="mailto:hi@kelp.org">mail</a>
			<a href="/missing">gone</a>
			<a href="/news">news</a>
		</body>`,
		"https://kelp.org/news": `<a href="/missing">gone again</a>`,
	}}

	newCrawler(f, 15).Crawl(context.Background(), seed)

	want := []string{seed, "https://kelp.org/missing", "https://kelp.org/news"}
	if strings.Join(f.calls, " ") != strings.Join(want, " ") {
		t.Fatalf("unexpected fetch order: %v", f.calls)
	}
}

func TestCrawlAggregatesRecord(t *testing.T) {
	t.Parallel()

	const seed = "https://oceanfund.org/"
	f := &fakeFetcher{pages: map[string]string{
		seed: `<html><head><title>Ocean Fund</title></head><body>
			<p>Ocean conservation and climate grants. Email info@oceanfund.org</p>
			<a href="/contact">Contact</a></body></html>`,
		"https://oceanfund.org/contact": `<html><head><title>Contact us</title></head><body>
			<p>Call 555-123-4567 or write info@oceanfund.org and donate@oceanfund.org now</p>
			<form></form><a href="https://twitter.com/oceanfund">tw</a></body></html>`,
	}}

	p := newCrawler(f, 15).Crawl(context.Background(), seed)

	if p.URL != seed || p.OrganizationName != "Ocean Fund" {
		t.Fatalf("unexpected identity: %q %q", p.URL, p.OrganizationName)
	}
	if len(p.Emails) != 2 || len(p.Phones) != 1 {
		t.Fatalf("unexpected contacts: %v %v", p.Emails, p.Phones)
	}
	if !strings.Contains(p.ContentText, "Ocean conservation") || !strings.Contains(p.ContentText, "Call 555-123-4567") {
		t.Fatalf("content not aggregated: %q", p.ContentText)
	}
	// engagement is computed on the last page only: one form and one social link.
	if p.Scores.Engagement != 0.1 {
		t.Fatalf("unexpected engagement %v", p.Scores.Engagement)
	}
	if p.Scores.Final <= 0 || p.Scores.Final > 1 {
		t.Fatalf("final out of range: %v", p.Scores.Final)
	}
}

func TestCrawlUnreachableSeedStillReturnsRecord(t *testing.T) {
	t.Parallel()

	f := &fakeFetcher{pages: map[string]string{}}
	p := newCrawler(f, 15).Crawl(context.Background(), "https://down.org")

	if p.URL != "https://down.org" || p.ContentText != "" || p.Scores.Final != 0 {
		t.Fatalf("unexpected record: %+v", p)
	}
	if len(f.calls) != 1 {
		t.Fatalf("expected a single attempt, got %v", f.calls)
	}
}

func TestCrawlTruncatesContent(t *testing.T) {
	t.Parallel()

	f := &fakeFetcher{pages: map[string]string{
		"https://long.org": "<p>" + strings.Repeat("é", 6000) + "</p>",
	}}
	p := newCrawler(f, 15).Crawl(context.Background(), "https://long.org")

	if n := len([]rune(p.ContentText)); n != 5000 {
		t.Fatalf("expected 5000 runes, got %d", n)
	}
}

func TestCrawlStopsOnCancel(t *testing.T) {
	t.Parallel()

	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	f := &fakeFetcher{pages: map[string]string{"https://x.org": "<p>x</p>"}}
	p := newCrawler(f, 15).Crawl(ctx, "https://x.org")

	if len(f.calls) != 0 || p.URL != "https://x.org" {
		t.Fatalf("expected no fetches after cancel, got %v", f.calls)
	}
}

func TestFrontierPushFrontReversesOrder(t *testing.T) {
	t.Parallel()

	fr := NewFrontier("s", 10)
	fr.PushFront("p1", "p2", "p3")
	fr.PushBack("r1", "p1")

	got := strings.Join(fr.Pending(), ",")
	if got != "p3,p2,p1,s,r1" {
		t.Fatalf("unexpected queue %s", got)
	}
}
