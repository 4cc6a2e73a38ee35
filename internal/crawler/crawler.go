// Package crawler walks a single organisation website breadth-first, favouring pages that
// usually carry mission and contact details, and turns the result into a scored prospect.
package crawler

import (
	"context"
	"log/slog"
	"net/url"
	"strings"
	"time"

	"github.com/PuerkitoBio/goquery"

	"ProspectScanner/internal/domain"
	"ProspectScanner/internal/extract"
	"ProspectScanner/internal/heuristics"
	"ProspectScanner/internal/ports"
	"ProspectScanner/pkg/metrics"
)

const (
	defaultMaxPages  = 15
	maxPriorityLinks = 3
	maxRegularLinks  = 2
)

var (
	priorityKeywords   = []string{"about", "contact", "mission", "sustainability", "environment", "impact"}
	excludedExtensions = []string{".pdf", ".jpg", ".png", ".gif", ".zip"}
)

// Config bounds one crawl.
type Config struct {
	MaxPages int
	// Delay is waited before every fetch, including the first.
	Delay time.Duration
}

// Deps wires collaborators for the crawler.
type Deps struct {
	Fetcher ports.PageFetcher
	Logger  *slog.Logger
	Metrics *metrics.Manager
	Config  Config
}

// Crawler implements ports.SiteCrawler.
type Crawler struct {
	fetcher ports.PageFetcher
	logger  *slog.Logger
	metrics *metrics.Manager
	cfg     Config
}

var _ ports.SiteCrawler = (*Crawler)(nil)

// New builds a crawler; MaxPages defaults to 15.
func New(deps Deps) *Crawler {
	logger := deps.Logger
	if logger == nil {
		logger = slog.Default()
	}
	cfg := deps.Config
	if cfg.MaxPages <= 0 {
		cfg.MaxPages = defaultMaxPages
	}
	return &Crawler{
		fetcher: deps.Fetcher,
		logger:  logger.With("component", "crawler"),
		metrics: deps.Metrics,
		cfg:     cfg,
	}
}

// Crawl fetches up to MaxPages pages of the seed's host and returns the aggregated prospect.
// Fetch failures are logged and skipped; cancellation stops the loop and the record built so
// far is still scored and returned.
func (c *Crawler) Crawl(ctx context.Context, seedURL string) domain.Prospect {
	started := time.Now()
	defer func() { c.metrics.ObserveCrawl(time.Since(started)) }()

	host := ""
	if u, err := url.Parse(seedURL); err == nil {
		host = u.Host
	}

	var (
		frontier = NewFrontier(seedURL, c.cfg.MaxPages)
		contacts extract.Contacts
		texts    []string
		orgName  string
		lastDoc  *goquery.Document
	)

	for {
		next, ok := frontier.Next()
		if !ok {
			break
		}
		if err := sleepContext(ctx, c.cfg.Delay); err != nil {
			c.logger.Info("crawl interrupted", "seed", seedURL, "error", err)
			break
		}

		doc, err := c.fetcher.Fetch(ctx, next)
		if err != nil {
			frontier.MarkFailed(next)
			c.metrics.RecordPageFetch(metrics.OutcomeError)
			c.logger.Warn("fetch page failed", "url", next, "error", err)
			if ctx.Err() != nil {
				break
			}
			continue
		}
		c.metrics.RecordPageFetch(metrics.OutcomeSuccess)

		text := extract.PlainText(doc)
		texts = append(texts, text)
		if orgName == "" {
			orgName = extract.OrganizationName(doc, next)
		}
		contacts.Merge(extract.ExtractContacts(text, doc))
		frontier.MarkVisited(next)
		lastDoc = doc

		priority, regular := c.partitionLinks(doc, next, host, frontier)
		frontier.PushFront(limit(priority, maxPriorityLinks)...)
		frontier.PushBack(limit(regular, maxRegularLinks)...)
	}

	content := strings.Join(texts, " ")
	prospect := domain.Prospect{
		URL:              seedURL,
		OrganizationName: orgName,
		Emails:           contacts.Emails,
		Phones:           contacts.Phones,
		Addresses:        contacts.Addresses,
		ContentText:      truncateRunes(content, domain.MaxContentLength),
		Scores:           heuristics.Score(content, lastDoc),
	}

	c.logger.Info("crawl finished",
		"seed", seedURL,
		"pages", frontier.Visited(),
		"final_score", prospect.Scores.Final,
		"duration", time.Since(started))
	return prospect
}

// partitionLinks resolves anchors on doc and keeps same-host, non-binary URLs the frontier has
// not seen yet, split by whether they look like about/contact/mission pages.
func (c *Crawler) partitionLinks(doc *goquery.Document, pageURL, host string, frontier *Frontier) (priority, regular []string) {
	base, err := url.Parse(pageURL)
	if err != nil {
		return nil, nil
	}

	seen := map[string]struct{}{}
	doc.Find("a[href]").Each(func(_ int, s *goquery.Selection) {
		href, _ := s.Attr("href")
		link, ok := resolveLink(base, href)
		if !ok {
			return
		}
		if _, dup := seen[link]; dup {
			return
		}
		seen[link] = struct{}{}

		parsed, err := url.Parse(link)
		if err != nil || parsed.Host != host || frontier.Known(link) {
			return
		}

		lower := strings.ToLower(link)
		if containsAny(lower, excludedExtensions) {
			return
		}
		if containsAny(lower, priorityKeywords) {
			priority = append(priority, link)
		} else {
			regular = append(regular, link)
		}
	})
	return priority, regular
}

func resolveLink(base *url.URL, href string) (string, bool) {
	ref, err := url.Parse(strings.TrimSpace(href))
	if err != nil {
		return "", false
	}
	abs := base.ResolveReference(ref)
	abs.Fragment = ""
	abs.RawFragment = ""
	if abs.Scheme != "http" && abs.Scheme != "https" {
		return "", false
	}
	return abs.String(), true
}

func sleepContext(ctx context.Context, d time.Duration) error {
	if d <= 0 {
		return ctx.Err()
	}
	timer := time.NewTimer(d)
	defer timer.Stop()
	select {
	case <-ctx.Done():
		return ctx.Err()
	case <-timer.C:
		return nil
	}
}

func containsAny(s string, needles []string) bool {
	for _, n := range needles {
		if strings.Contains(s, n) {
			return true
		}
	}
	return false
}

func limit(values []string, n int) []string {
	if len(values) > n {
		return values[:n]
	}
	return values
}

func truncateRunes(s string, n int) string {
	if len(s) <= n {
		return s
	}
	runes := []rune(s)
	if len(runes) <= n {
		return s
	}
	return string(runes[:n])
}
