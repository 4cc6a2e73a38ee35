// Package heuristics computes the keyword and page-structure scores stored with every prospect.
package heuristics

import (
	"regexp"
	"strings"

	"github.com/PuerkitoBio/goquery"
	"golang.org/x/net/html"

	"ProspectScanner/internal/domain"
)

// SustainabilityKeywords are matched as lowercase substrings; longer terms weigh more.
var SustainabilityKeywords = []string{
	"sustainability", "sustainable", "environment", "environmental", "green", "eco",
	"climate", "carbon", "renewable", "clean energy", "conservation", "biodiversity",
	"ocean", "marine", "beach", "coastal", "pollution", "waste", "recycling",
	"circular economy", "esg", "social responsibility", "impact",
}

// DonationKeywords signal an existing giving culture.
var DonationKeywords = []string{
	"donate", "donation", "support", "contribute", "fund", "sponsor",
	"philanthropy", "charity", "giving", "grant", "foundation",
}

const (
	engagementDivisor     = 20.0
	donationDivisor       = 20.0
	donationBaseCap       = 0.4
	donationBoost         = 0.3
	keywordLengthDivisor  = 10.0
	sustainabilityDivisor = 10.0
)

var (
	socialExpr     = regexp.MustCompile(`facebook|twitter|linkedin|instagram`)
	newsletterExpr = regexp.MustCompile(`(?i)newsletter|subscribe`)
	eventExpr      = regexp.MustCompile(`(?i)event|conference|workshop`)
)

// Sustainability weighs every keyword occurrence by the keyword length.
func Sustainability(text string) float64 {
	lower := strings.ToLower(text)
	score := 0.0
	for _, kw := range SustainabilityKeywords {
		score += float64(strings.Count(lower, kw)) * float64(len(kw)) / keywordLengthDivisor
	}
	return domain.Clamp01(score / sustainabilityDivisor)
}

// Engagement counts outreach surfaces on a single page: social links, forms, newsletter
// prompts, blog/news blocks and event mentions. A nil document scores zero.
func Engagement(doc *goquery.Document) float64 {
	if doc == nil {
		return 0
	}

	social := doc.Find("a[href]").FilterFunction(func(_ int, s *goquery.Selection) bool {
		href, _ := s.Attr("href")
		return socialExpr.MatchString(href)
	}).Length()
	forms := doc.Find(`form, input[type="email"]`).Length()
	blog := doc.Find(`article, [class*="blog"], [class*="news"]`).Length()

	var newsletter, events int
	for _, n := range doc.Nodes {
		walkText(n, func(text string) {
			if newsletterExpr.MatchString(text) {
				newsletter++
			}
			if eventExpr.MatchString(text) {
				events++
			}
		})
	}

	total := social + forms + newsletter + blog + events
	return domain.Clamp01(float64(total) / engagementDivisor)
}

// DonationProbability blends donation vocabulary with the two other signals.
func DonationProbability(text string, sustainability, engagement float64) float64 {
	lower := strings.ToLower(text)
	mentions := 0
	for _, kw := range DonationKeywords {
		mentions += strings.Count(lower, kw)
	}

	base := float64(mentions) / donationDivisor
	if base > donationBaseCap {
		base = donationBaseCap
	}
	return domain.Clamp01(base + sustainability*donationBoost + engagement*donationBoost)
}

// Score runs all heuristics for an aggregated crawl. text covers every page while
// lastPage is only the most recently parsed document.
func Score(text string, lastPage *goquery.Document) domain.HeuristicScores {
	sust := Sustainability(text)
	eng := Engagement(lastPage)
	return domain.NewHeuristicScores(sust, eng, DonationProbability(text, sust, eng))
}

func walkText(n *html.Node, fn func(string)) {
	switch n.Type {
	case html.TextNode:
		fn(n.Data)
		return
	case html.CommentNode:
		return
	case html.ElementNode:
		if n.Data == "script" || n.Data == "style" {
			return
		}
	}
	for c := n.FirstChild; c != nil; c = c.NextSibling {
		walkText(c, fn)
	}
}
