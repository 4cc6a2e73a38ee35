// Package extract pulls plain text, contact details and an organisation name out of parsed pages.
package extract

import (
	"regexp"
	"strings"

	"github.com/PuerkitoBio/goquery"
	"golang.org/x/net/html"
)

var (
	emailExpr = regexp.MustCompile(`[a-zA-Z0-9_.+-]+@[a-zA-Z0-9-]+\.[a-zA-Z0-9.\-]+`)

	phoneExprs = []*regexp.Regexp{
		regexp.MustCompile(`\+?\d{1,3}[\s\-.]?\(?\d{2,4}\)?[\s\-.]?\d{2,4}[\s\-.]?\d{2,4}`),
		regexp.MustCompile(`\(\d{3}\)\s?\d{3}[\s\-]?\d{4}`),
		regexp.MustCompile(`\d{3}[\s\-]?\d{3}[\s\-]?\d{4}`),
	}

	addressSelectors = []string{`address`, `[class*="address"]`, `[class*="contact"]`, `[class*="location"]`}
	addressWords     = []string{"street", "avenue", "road", "blvd", "suite"}
)

const (
	minPhoneDigits   = 9
	maxPhoneDigits   = 15
	minAddressLength = 20
)

// Contacts groups the contact details found on one or more pages.
type Contacts struct {
	Emails    []string
	Phones    []string
	Addresses []string
}

// Merge appends values from other that are not already present, keeping first-seen order.
func (c *Contacts) Merge(other Contacts) {
	c.Emails = appendUnique(c.Emails, other.Emails...)
	c.Phones = appendUnique(c.Phones, other.Phones...)
	c.Addresses = appendUnique(c.Addresses, other.Addresses...)
}

// PlainText returns the visible text of doc: script and style subtrees are skipped and the
// remaining trimmed text nodes are joined with single spaces. doc is not modified.
func PlainText(doc *goquery.Document) string {
	if doc == nil {
		return ""
	}
	return SelectionText(doc.Selection)
}

// SelectionText is PlainText for an arbitrary selection.
func SelectionText(sel *goquery.Selection) string {
	var parts []string
	for _, n := range sel.Nodes {
		collectText(n, &parts)
	}
	return strings.Join(parts, " ")
}

func collectText(n *html.Node, parts *[]string) {
	switch n.Type {
	case html.TextNode:
		if s := strings.TrimSpace(n.Data); s != "" {
			*parts = append(*parts, s)
		}
		return
	case html.ElementNode:
		if n.Data == "script" || n.Data == "style" {
			return
		}
	case html.CommentNode:
		return
	}
	for c := n.FirstChild; c != nil; c = c.NextSibling {
		collectText(c, parts)
	}
}

// ExtractContacts finds emails and phones in text and postal addresses in doc.
func ExtractContacts(text string, doc *goquery.Document) Contacts {
	var out Contacts

	out.Emails = appendUnique(nil, emailExpr.FindAllString(text, -1)...)

	out.Phones = findPhones(text)

	if doc != nil {
		for _, selector := range addressSelectors {
			doc.Find(selector).Each(func(_ int, s *goquery.Selection) {
				addr := SelectionText(s)
				if len(addr) > minAddressLength && containsAny(strings.ToLower(addr), addressWords) {
					out.Addresses = appendUnique(out.Addresses, addr)
				}
			})
		}
	}

	return out
}

// phoneMatch is a candidate phone number and its byte span in the source text.
type phoneMatch struct {
	start, end int
}

func (m phoneMatch) covers(o phoneMatch) bool {
	return m.start <= o.start && o.end <= m.end
}

// findPhones runs every phone pattern over text. A match lying inside the span of another
// match is the same number seen by a looser pattern, so only the widest span is kept.
func findPhones(text string) []string {
	var kept []phoneMatch
	for _, expr := range phoneExprs {
		for _, loc := range expr.FindAllStringIndex(text, -1) {
			m := phoneMatch{start: loc[0], end: loc[1]}
			if n := countDigits(text[m.start:m.end]); n < minPhoneDigits || n > maxPhoneDigits {
				continue
			}
			kept = keepWidest(kept, m)
		}
	}

	var phones []string
	for _, m := range kept {
		phones = appendUnique(phones, strings.TrimSpace(text[m.start:m.end]))
	}
	return phones
}

func keepWidest(kept []phoneMatch, m phoneMatch) []phoneMatch {
	for _, k := range kept {
		if k.covers(m) {
			return kept
		}
	}
	out := kept[:0]
	placed := false
	for _, k := range kept {
		if m.covers(k) {
			if !placed {
				out = append(out, m)
				placed = true
			}
			continue
		}
		out = append(out, k)
	}
	if !placed {
		out = append(out, m)
	}
	return out
}

func countDigits(s string) int {
	n := 0
	for _, r := range s {
		if r >= '0' && r <= '9' {
			n++
		}
	}
	return n
}

func containsAny(s string, words []string) bool {
	for _, w := range words {
		if strings.Contains(s, w) {
			return true
		}
	}
	return false
}

func appendUnique(dst []string, values ...string) []string {
	for _, v := range values {
		dup := false
		for _, existing := range dst {
			if existing == v {
				dup = true
				break
			}
		}
		if !dup {
			dst = append(dst, v)
		}
	}
	return dst
}
