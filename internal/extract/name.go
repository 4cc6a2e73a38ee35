package extract

import (
	"net/url"
	"strings"
	"unicode"

	"github.com/PuerkitoBio/goquery"
	"golang.org/x/text/cases"
	"golang.org/x/text/language"
)

const (
	siteNameSelector = `meta[property="og:site_name"]`
	maxNameLength    = 100
)

var nameSelectors = []string{
	`title`,
	`h1`,
	`[class*="company"]`,
	`[class*="organization"]`,
	`[class*="brand"]`,
	siteNameSelector,
}

var hostNoise = strings.NewReplacer("www.", "", ".com", "", ".org", "")

// OrganizationName picks the first short, non-empty candidate from the page head and branding
// elements, falling back to a title-cased form of the host name.
func OrganizationName(doc *goquery.Document, pageURL string) string {
	if doc != nil {
		for _, selector := range nameSelectors {
			var name string
			doc.Find(selector).EachWithBreak(func(_ int, s *goquery.Selection) bool {
				candidate := elementName(s, selector)
				if candidate != "" && len(candidate) < maxNameLength {
					name = candidate
					return false
				}
				return true
			})
			if name != "" {
				return name
			}
		}
	}

	return nameFromHost(pageURL)
}

func elementName(s *goquery.Selection, selector string) string {
	if selector == siteNameSelector {
		content, _ := s.Attr("content")
		return strings.TrimSpace(content)
	}
	return strings.TrimSpace(s.Text())
}

func nameFromHost(pageURL string) string {
	u, err := url.Parse(pageURL)
	if err != nil {
		return ""
	}
	return titleWords(hostNoise.Replace(u.Host))
}

// titleWords upper-cases the first letter of every run of letters and lower-cases the rest,
// so "green-earth.net" becomes "Green-Earth.Net".
func titleWords(s string) string {
	caser := cases.Title(language.English)
	var b strings.Builder
	start := -1
	for i, r := range s {
		if unicode.IsLetter(r) {
			if start < 0 {
				start = i
			}
			continue
		}
		if start >= 0 {
			b.WriteString(caser.String(s[start:i]))
			start = -1
		}
		b.WriteRune(r)
	}
	if start >= 0 {
		b.WriteString(caser.String(s[start:]))
	}
	return b.String()
}
