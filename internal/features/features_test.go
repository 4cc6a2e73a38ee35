package features

import (
	"context"
	"encoding/json"
	"errors"
	"math"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"ProspectScanner/internal/domain"
	"ProspectScanner/internal/ports"
)

type stubChat struct {
	text  string
	err   error
	calls int
}

func (s *stubChat) Complete(context.Context, ports.ChatRequest) (ports.ChatResponse, error) {
	s.calls++
	if s.err != nil {
		return ports.ChatResponse{}, s.err
	}
	return ports.ChatResponse{Text: s.text}, nil
}

type memoryCache map[string][]float64

func (m memoryCache) Get(_ context.Context, key string) ([]float64, bool, error) {
	v, ok := m[key]
	return v, ok, nil
}

func (m memoryCache) Set(_ context.Context, key string, ratings []float64) error {
	m[key] = ratings
	return nil
}

var corpus = []domain.Prospect{
	{
		URL:              "https://greenfund.org",
		OrganizationName: "Green Innovation Fund",
		Emails:           []string{"contact@greenfund.org"},
		Phones:           []string{"+1-555-0123"},
		ContentText:      "Our foundation supports environmental technology initiatives. We have donated over $2M to ocean conservation programs.",
	},
	{
		URL:         "https://pizzaplace.com",
		Emails:      []string{"info@pizzaplace.com"},
		ContentText: "Welcome to our restaurant! We serve the best pizza in town.",
	},
}

func TestLexicalFeatures(t *testing.T) {
	t.Parallel()

	got := Lexical(corpus[0])
	require.Len(t, got, len(LexicalColumns))

	byName := map[string]float64{}
	for i, name := range LexicalColumns {
		byName[name] = got[i]
	}
	assert.Equal(t, 1.0, byName["email_count"])
	assert.Equal(t, 1.0, byName["has_contact_info"])
	assert.Equal(t, 1.0, byName["org_domain"])
	assert.Equal(t, 0.0, byName["com_domain"])
	assert.Equal(t, 1.0, byName["financial_mentions"])
	assert.Positive(t, byName["sustainability_mentions"])
	assert.Positive(t, byName["donation_mentions"])
	assert.Equal(t, 15.0, byName["word_count"])
}

func TestParseRatings(t *testing.T) {
	t.Parallel()

	got, err := ParseRatings(" 7, 8,6 ,9")
	require.NoError(t, err)
	assert.InDeltaSlice(t, []float64{0.7, 0.8, 0.6, 0.9}, got, 1e-12)

	got, err = ParseRatings("10,2")
	require.NoError(t, err)
	assert.InDeltaSlice(t, []float64{1, 0.2, 0.5, 0.5}, got, 1e-12)

	_, err = ParseRatings("seven, eight")
	assert.Error(t, err)
	_, err = ParseRatings("  ")
	assert.Error(t, err)
}

func TestRaterFallsBackToNeutral(t *testing.T) {
	t.Parallel()

	failing := NewRater(&stubChat{err: errors.New("timeout")}, "", nil, nil)
	assert.Equal(t, NeutralRatings(), failing.Rate(context.Background(), corpus[0]))

	garbled := NewRater(&stubChat{text: "I would rate this highly"}, "", nil, nil)
	assert.Equal(t, NeutralRatings(), garbled.Rate(context.Background(), corpus[0]))

	assert.Equal(t, NeutralRatings(), NewRater(nil, "", nil, nil).Rate(context.Background(), corpus[0]))
}

func TestRaterUsesCache(t *testing.T) {
	t.Parallel()

	chat := &stubChat{text: "8,7,6,5"}
	cache := memoryCache{}
	r := NewRater(chat, "test-model", cache, nil)

	first := r.Rate(context.Background(), corpus[0])
	second := r.Rate(context.Background(), corpus[0])

	assert.Equal(t, first, second)
	assert.Equal(t, 1, chat.calls)
	assert.Contains(t, cache, CacheKey(corpus[0]))
}

func TestFitTFIDFDropsStopWordsAndCapsVocabulary(t *testing.T) {
	t.Parallel()

	v, err := FitTFIDF([]string{"the ocean and the beach", "ocean cleanup with drones"}, 3)
	require.NoError(t, err)

	assert.Len(t, v.Vocabulary, 3)
	assert.Contains(t, v.Vocabulary, "ocean")
	assert.NotContains(t, v.Vocabulary, "the")
	assert.IsIncreasing(t, v.Vocabulary)

	row := v.Transform("ocean ocean beach")
	var norm float64
	for _, x := range row {
		norm += x * x
	}
	assert.InDelta(t, 1.0, math.Sqrt(norm), 1e-9)

	assert.Equal(t, make([]float64, 3), v.Transform("completely unrelated words"))
}

func TestTermCountsKeepsNonASCIIWords(t *testing.T) {
	t.Parallel()

	counts := termCounts("Énergie café x océan_2026")

	assert.Equal(t, 1, counts["énergie"])
	assert.Equal(t, 1, counts["café"])
	assert.Equal(t, 1, counts["océan_2026"])
	assert.Equal(t, 1, counts["énergie café"])
	assert.NotContains(t, counts, "x")
	assert.NotContains(t, counts, "caf")
}

func TestFitTFIDFEmptyVocabulary(t *testing.T) {
	t.Parallel()

	_, err := FitTFIDF([]string{"the and of", ""}, 10)
	assert.Error(t, err)
}

func TestScalerStandardises(t *testing.T) {
	t.Parallel()

	s, err := FitScaler([][]float64{{1, 5}, {3, 5}})
	require.NoError(t, err)
	assert.Equal(t, []float64{2, 5}, s.Mean)
	assert.Equal(t, []float64{1, 1}, s.Scale)

	row, err := s.Transform([]float64{3, 5})
	require.NoError(t, err)
	assert.Equal(t, []float64{1, 0}, row)

	_, err = s.Transform([]float64{1})
	assert.Error(t, err)
}

func TestTransformerIsRepeatable(t *testing.T) {
	t.Parallel()

	b := NewBuilder(StaticRatings{0.7, 0.6, 0.5, 0.4})
	transformer, matrix, err := Fit(b.Samples(context.Background(), corpus))
	require.NoError(t, err)
	require.Len(t, matrix, len(corpus))
	assert.Len(t, matrix[0], len(transformer.Columns))
	assert.Equal(t, "email_count", transformer.Columns[0])
	assert.Equal(t, "text_feature_0", transformer.Columns[len(BaseColumns())])

	first, err := transformer.Transform(b.Sample(context.Background(), corpus[0]))
	require.NoError(t, err)
	second, err := transformer.Transform(b.Sample(context.Background(), corpus[0]))
	require.NoError(t, err)
	assert.Equal(t, first, second)
	assert.InDeltaSlice(t, matrix[0], first, 1e-12)
}

func TestTransformerSurvivesJSON(t *testing.T) {
	t.Parallel()

	b := NewBuilder(nil)
	transformer, _, err := Fit(b.Samples(context.Background(), corpus))
	require.NoError(t, err)

	raw, err := json.Marshal(transformer)
	require.NoError(t, err)
	var restored Transformer
	require.NoError(t, json.Unmarshal(raw, &restored))

	sample := b.Sample(context.Background(), corpus[1])
	want, err := transformer.Transform(sample)
	require.NoError(t, err)
	got, err := restored.Transform(sample)
	require.NoError(t, err)
	assert.InDeltaSlice(t, want, got, 1e-12)
}

func TestTransformerRejectsMismatchedColumns(t *testing.T) {
	t.Parallel()

	transformer, _, err := Fit(NewBuilder(nil).Samples(context.Background(), corpus))
	require.NoError(t, err)

	_, err = transformer.Transform(Sample{Base: []float64{1, 2}, Text: "ocean"})
	assert.ErrorIs(t, err, ErrColumnMismatch)
}
