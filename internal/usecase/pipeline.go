package usecase

import (
	"context"
	"fmt"
	"log/slog"
	"net/url"
	"sort"
	"strings"
	"time"

	"golang.org/x/sync/errgroup"

	"ProspectScanner/internal/domain"
	"ProspectScanner/internal/ports"
	"ProspectScanner/pkg/metrics"
)

// DefaultMaxOrganizations caps discovery when the caller passes no positive limit.
const DefaultMaxOrganizations = 5

// Run kinds reported to metrics.
const (
	RunKindCampaign = "campaign"
	RunKindCrawl    = "crawl"
)

// PipelineDeps wires all driven adapters into the campaign pipeline.
type PipelineDeps struct {
	Discoverer ports.SeedDiscoverer
	Crawler    ports.SiteCrawler
	Repository ports.ProspectRepository
	Notifier   ports.Notifier
	Logger     *slog.Logger
	Metrics    *metrics.Manager
	// Seeds are crawled on every campaign in addition to discovered URLs.
	Seeds []string
	// Workers bounds how many hosts are crawled at once; sites sharing a host are crawled in turn.
	Workers int
}

// Pipeline implements discover -> crawl -> persist -> notify.
type Pipeline struct {
	discoverer ports.SeedDiscoverer
	crawler    ports.SiteCrawler
	repository ports.ProspectRepository
	notifier   ports.Notifier
	logger     *slog.Logger
	metrics    *metrics.Manager
	seeds      []string
	workers    int
}

// NewPipeline constructs the orchestration component.
func NewPipeline(deps PipelineDeps) *Pipeline {
	logger := deps.Logger
	if logger == nil {
		logger = slog.Default()
	}
	workers := deps.Workers
	if workers <= 0 {
		workers = 1
	}
	return &Pipeline{
		discoverer: deps.Discoverer,
		crawler:    deps.Crawler,
		repository: deps.Repository,
		notifier:   deps.Notifier,
		logger:     logger.With("component", "pipeline"),
		metrics:    deps.Metrics,
		seeds:      deps.Seeds,
		workers:    workers,
	}
}

// RunCampaign asks the discoverer for up to maxOrganizations sites, adds the configured seeds,
// crawls and stores every site and returns the prospects ordered by final score.
// Crawl and save failures are logged, never returned.
func (p *Pipeline) RunCampaign(ctx context.Context, description string, maxOrganizations int) ([]domain.Prospect, error) {
	if maxOrganizations <= 0 {
		maxOrganizations = DefaultMaxOrganizations
	}
	p.metrics.RecordRun(RunKindCampaign)
	p.logger.Info("starting campaign", "max_organizations", maxOrganizations)

	var discovered []string
	if p.discoverer != nil {
		discovered = p.discoverer.Discover(ctx, description, maxOrganizations)
	}
	if len(discovered) > maxOrganizations {
		discovered = discovered[:maxOrganizations]
	}
	targets := dedupeURLs(append(discovered, p.seeds...))
	p.logger.Info("campaign targets resolved", "discovered", len(discovered), "total", len(targets))

	results, err := p.crawlAll(ctx, targets)
	if err != nil {
		return results, fmt.Errorf("run campaign: %w", err)
	}

	p.notify(ctx, description, results)
	return results, nil
}

// CrawlURLs crawls and stores the given sites without discovery.
func (p *Pipeline) CrawlURLs(ctx context.Context, urls []string) ([]domain.Prospect, error) {
	p.metrics.RecordRun(RunKindCrawl)
	results, err := p.crawlAll(ctx, dedupeURLs(urls))
	if err != nil {
		return results, fmt.Errorf("crawl urls: %w", err)
	}
	return results, nil
}

func (p *Pipeline) crawlAll(ctx context.Context, targets []string) ([]domain.Prospect, error) {
	if p.crawler == nil || len(targets) == 0 {
		return nil, ctx.Err()
	}

	crawled := make([]*domain.Prospect, len(targets))
	var g errgroup.Group
	g.SetLimit(p.workers)
	for _, group := range groupByHost(targets) {
		g.Go(func() error {
			for _, i := range group {
				if ctx.Err() != nil {
					return nil
				}
				p.logger.Info("analyzing site", "url", targets[i])
				prospect := p.crawler.Crawl(ctx, targets[i])
				p.save(ctx, prospect)
				crawled[i] = &prospect
			}
			return nil
		})
	}
	_ = g.Wait()

	results := make([]domain.Prospect, 0, len(targets))
	for _, c := range crawled {
		if c != nil {
			results = append(results, *c)
		}
	}
	sortByFinalScore(results)
	return results, ctx.Err()
}

func (p *Pipeline) save(ctx context.Context, prospect domain.Prospect) {
	if p.repository == nil {
		return
	}
	if err := p.repository.Upsert(ctx, prospect); err != nil {
		p.metrics.RecordProspectSaved(metrics.OutcomeError)
		p.logger.Error("save prospect failed", "url", prospect.URL, "error", err)
		return
	}
	p.metrics.RecordProspectSaved(metrics.OutcomeSuccess)
}

func (p *Pipeline) notify(ctx context.Context, description string, results []domain.Prospect) {
	if p.notifier == nil || len(results) == 0 {
		return
	}
	if err := p.notifier.PublishDigest(ctx, BuildDigest(description, results, time.Now())); err != nil {
		p.logger.Warn("publish digest failed", "error", err)
	}
}

// BuildDigest renders a campaign summary for chat delivery.
func BuildDigest(description string, prospects []domain.Prospect, at time.Time) string {
	var b strings.Builder
	fmt.Fprintf(&b, "*Prospect campaign %s*\n", at.UTC().Format("2006-01-02"))
	if d := strings.TrimSpace(description); d != "" {
		fmt.Fprintf(&b, "_%s_\n", d)
	}
	fmt.Fprintf(&b, "%d organizations analyzed\n\n", len(prospects))
	for _, p := range prospects {
		name := p.OrganizationName
		if name == "" {
			name = p.URL
		}
		fmt.Fprintf(&b, "- %s\nScore: %.2f (sustainability %.2f, donation %.2f, engagement %.2f)\n",
			name, p.Scores.Final, p.Scores.Sustainability, p.Scores.DonationProbability, p.Scores.Engagement)
		if len(p.Emails) > 0 {
			fmt.Fprintf(&b, "Contact: %s\n", p.Emails[0])
		}
		fmt.Fprintf(&b, "%s\n\n", p.URL)
	}
	return b.String()
}

func sortByFinalScore(prospects []domain.Prospect) {
	sort.SliceStable(prospects, func(i, j int) bool {
		return prospects[i].Scores.Final > prospects[j].Scores.Final
	})
}

// groupByHost returns target indexes bucketed by host in first-seen order. Sites on one host
// are crawled by a single worker so the crawl delay spaces all requests to that host.
func groupByHost(targets []string) [][]int {
	byHost := make(map[string]int, len(targets))
	var groups [][]int
	for i, target := range targets {
		host := target
		if parsed, err := url.Parse(target); err == nil {
			host = strings.ToLower(parsed.Hostname())
		}
		g, ok := byHost[host]
		if !ok {
			g = len(groups)
			byHost[host] = g
			groups = append(groups, nil)
		}
		groups[g] = append(groups[g], i)
	}
	return groups
}

// dedupeURLs drops blanks, non-http URLs and repeats, keeping first-seen order.
func dedupeURLs(urls []string) []string {
	seen := make(map[string]struct{}, len(urls))
	out := make([]string, 0, len(urls))
	for _, raw := range urls {
		u := strings.TrimSpace(raw)
		parsed, err := url.Parse(u)
		if err != nil || (parsed.Scheme != "http" && parsed.Scheme != "https") || parsed.Host == "" {
			continue
		}
		if _, ok := seen[u]; ok {
			continue
		}
		seen[u] = struct{}{}
		out = append(out, u)
	}
	return out
}
