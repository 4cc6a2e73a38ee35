package features

import (
	"encoding/json"
	"errors"
	"fmt"
	"math"
	"regexp"
	"sort"
	"strconv"
	"strings"
)

// MaxTextTerms caps the TF-IDF vocabulary.
const MaxTextTerms = 100

const textColumnPrefix = "text_feature_"

var (
	tokenExpr = regexp.MustCompile(`[\p{L}\p{N}_]{2,}`)

	errEmptyVocabulary = errors.New("empty vocabulary: documents contain only stop words")
)

// TFIDF is a fitted unigram+bigram vectoriser. Vocabulary is sorted alphabetically and IDF
// holds the smoothed inverse document frequency of each term in the same order.
type TFIDF struct {
	Vocabulary []string  `json:"vocabulary"`
	IDF        []float64 `json:"idf"`

	index map[string]int
}

// FitTFIDF learns the vocabulary of docs: English stop words are dropped, unigrams and bigrams
// are counted, and the maxTerms most frequent terms across the corpus are kept (ties broken
// alphabetically).
func FitTFIDF(docs []string, maxTerms int) (*TFIDF, error) {
	if maxTerms <= 0 {
		maxTerms = MaxTextTerms
	}

	totals := map[string]int{}
	docFreq := map[string]int{}
	for _, doc := range docs {
		counts := termCounts(doc)
		for term, n := range counts {
			totals[term] += n
			docFreq[term]++
		}
	}
	if len(totals) == 0 {
		return nil, errEmptyVocabulary
	}

	terms := make([]string, 0, len(totals))
	for term := range totals {
		terms = append(terms, term)
	}
	sort.Slice(terms, func(i, j int) bool {
		if totals[terms[i]] != totals[terms[j]] {
			return totals[terms[i]] > totals[terms[j]]
		}
		return terms[i] < terms[j]
	})
	if len(terms) > maxTerms {
		terms = terms[:maxTerms]
	}
	sort.Strings(terms)

	n := float64(len(docs))
	idf := make([]float64, len(terms))
	for i, term := range terms {
		idf[i] = math.Log((1+n)/(1+float64(docFreq[term]))) + 1
	}

	v := &TFIDF{Vocabulary: terms, IDF: idf}
	v.buildIndex()
	return v, nil
}

// Columns names the TF-IDF features in vector order.
func (v *TFIDF) Columns() []string {
	out := make([]string, len(v.Vocabulary))
	for i := range v.Vocabulary {
		out[i] = textColumnPrefix + strconv.Itoa(i)
	}
	return out
}

// Transform projects doc onto the fitted vocabulary; the row is l2-normalised. Terms outside
// the vocabulary are ignored.
func (v *TFIDF) Transform(doc string) []float64 {
	index := v.index
	if index == nil {
		index = newIndex(v.Vocabulary)
	}

	row := make([]float64, len(v.Vocabulary))
	for term, n := range termCounts(doc) {
		if i, ok := index[term]; ok {
			row[i] = float64(n) * v.IDF[i]
		}
	}

	var norm float64
	for _, x := range row {
		norm += x * x
	}
	if norm > 0 {
		norm = math.Sqrt(norm)
		for i := range row {
			row[i] /= norm
		}
	}
	return row
}

// UnmarshalJSON restores a persisted vectoriser and rebuilds its term index.
func (v *TFIDF) UnmarshalJSON(raw []byte) error {
	type plain TFIDF
	var decoded plain
	if err := json.Unmarshal(raw, &decoded); err != nil {
		return err
	}
	if len(decoded.Vocabulary) != len(decoded.IDF) {
		return fmt.Errorf("tfidf: %d terms but %d idf weights", len(decoded.Vocabulary), len(decoded.IDF))
	}
	*v = TFIDF(decoded)
	v.buildIndex()
	return nil
}

func (v *TFIDF) buildIndex() {
	v.index = newIndex(v.Vocabulary)
}

func newIndex(vocabulary []string) map[string]int {
	index := make(map[string]int, len(vocabulary))
	for i, term := range vocabulary {
		index[term] = i
	}
	return index
}

// termCounts tokenises doc and counts unigrams and bigrams built from the non-stop-word tokens.
func termCounts(doc string) map[string]int {
	var tokens []string
	for _, tok := range tokenExpr.FindAllString(strings.ToLower(doc), -1) {
		if _, stop := stopWords[tok]; !stop {
			tokens = append(tokens, tok)
		}
	}

	counts := make(map[string]int, len(tokens)*2)
	for i, tok := range tokens {
		counts[tok]++
		if i > 0 {
			counts[tokens[i-1]+" "+tok]++
		}
	}
	return counts
}
