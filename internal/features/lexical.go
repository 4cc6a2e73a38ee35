// Package features turns a prospect into the numeric vector the ensemble is trained on:
// lexical counts, LLM opinion ratings and TF-IDF text columns, standardised by a fitted scaler.
package features

import (
	"regexp"
	"strings"
	"unicode/utf8"

	"ProspectScanner/internal/domain"
)

// LexicalColumns names the lexical features in vector order.
var LexicalColumns = []string{
	"email_count",
	"phone_count",
	"has_contact_info",
	"org_domain",
	"com_domain",
	"edu_domain",
	"gov_domain",
	"sustainability_mentions",
	"donation_mentions",
	"technology_mentions",
	"text_length",
	"word_count",
	"financial_mentions",
	"partnership_mentions",
	"award_mentions",
}

var (
	sustainabilityTerms = []string{
		"sustainability", "sustainable", "environment", "environmental", "green", "eco",
		"climate", "carbon", "renewable", "clean energy", "conservation", "biodiversity",
		"ocean", "marine", "beach", "coastal", "pollution", "waste", "recycling",
	}
	donationTerms = []string{
		"donate", "donation", "support", "contribute", "fund", "sponsor",
		"philanthropy", "charity", "giving", "grant", "foundation", "csr",
		"corporate social responsibility", "impact investing",
	}
	technologyTerms = []string{
		"technology", "innovation", "ai", "artificial intelligence", "machine learning",
		"drone", "automation", "digital", "tech", "startup", "research",
	}
	partnershipTerms = []string{"partner", "collaboration", "alliance", "network", "member"}
	awardTerms       = []string{"award", "recognition", "certified", "accredited", "winner"}

	financialExpr = regexp.MustCompile(`\$[\d,]+(?:\.\d{2})?[kmb]?`)
)

// Lexical computes the fifteen count and indicator features of p.
func Lexical(p domain.Prospect) []float64 {
	text := p.ContentText
	lower := strings.ToLower(text)

	return []float64{
		float64(len(p.Emails)),
		float64(len(p.Phones)),
		indicator(p.HasContactInfo()),
		indicator(strings.Contains(p.URL, ".org")),
		indicator(strings.Contains(p.URL, ".com")),
		indicator(strings.Contains(p.URL, ".edu")),
		indicator(strings.Contains(p.URL, ".gov")),
		float64(countTerms(lower, sustainabilityTerms)),
		float64(countTerms(lower, donationTerms)),
		float64(countTerms(lower, technologyTerms)),
		float64(utf8.RuneCountInString(text)),
		float64(len(strings.Fields(text))),
		float64(len(financialExpr.FindAllString(lower, -1))),
		float64(countTerms(lower, partnershipTerms)),
		float64(countTerms(lower, awardTerms)),
	}
}

func countTerms(lower string, terms []string) int {
	n := 0
	for _, t := range terms {
		n += strings.Count(lower, t)
	}
	return n
}

func indicator(b bool) float64 {
	if b {
		return 1
	}
	return 0
}
