package features

import (
	"context"
	"errors"
	"fmt"

	"ProspectScanner/internal/domain"
)

// ErrColumnMismatch means a row does not match the columns the transformer was fitted on.
var ErrColumnMismatch = errors.New("feature columns do not match fitted transformer")

// Sample is the unscaled input of one prospect: lexical counts and LLM ratings in
// BaseColumns order, plus the raw text used for the TF-IDF projection.
type Sample struct {
	Base []float64
	Text string
}

// BaseColumns names the lexical and rating features in vector order.
func BaseColumns() []string {
	out := make([]string, 0, len(LexicalColumns)+len(RatingColumns))
	out = append(out, LexicalColumns...)
	return append(out, RatingColumns...)
}

// Builder collects Samples for prospects.
type Builder struct {
	ratings RatingSource
}

// NewBuilder wires the rating source; nil means every prospect gets neutral ratings.
func NewBuilder(ratings RatingSource) *Builder {
	if ratings == nil {
		ratings = StaticRatings(nil)
	}
	return &Builder{ratings: ratings}
}

// Sample computes the unscaled features of p. It calls the rating source once and never fails.
func (b *Builder) Sample(ctx context.Context, p domain.Prospect) Sample {
	base := Lexical(p)
	base = append(base, b.ratings.Rate(ctx, p)...)
	return Sample{Base: base, Text: p.ContentText}
}

// Samples is Sample over a batch, in order.
func (b *Builder) Samples(ctx context.Context, prospects []domain.Prospect) []Sample {
	out := make([]Sample, len(prospects))
	for i, p := range prospects {
		out[i] = b.Sample(ctx, p)
	}
	return out
}

// Transformer is the fitted feature pipeline: TF-IDF vocabulary plus column scaler. Once
// returned by Fit it is never modified, so it may be shared by concurrent readers.
type Transformer struct {
	Columns    []string `json:"columns"`
	Vectorizer *TFIDF   `json:"vectorizer"`
	Scaler     *Scaler  `json:"scaler"`
}

// Fit learns the vocabulary and scaler from samples and returns the transformed matrix.
func Fit(samples []Sample) (*Transformer, [][]float64, error) {
	if len(samples) == 0 {
		return nil, nil, errNoRows
	}

	docs := make([]string, len(samples))
	for i, s := range samples {
		docs[i] = s.Text
	}
	vectorizer, err := FitTFIDF(docs, MaxTextTerms)
	if err != nil {
		return nil, nil, fmt.Errorf("fit tfidf: %w", err)
	}

	base := BaseColumns()
	raw := make([][]float64, len(samples))
	for i, s := range samples {
		if len(s.Base) != len(base) {
			return nil, nil, fmt.Errorf("sample %d: %w", i, ErrColumnMismatch)
		}
		raw[i] = joinRow(s.Base, vectorizer.Transform(s.Text))
	}

	scaler, err := FitScaler(raw)
	if err != nil {
		return nil, nil, fmt.Errorf("fit scaler: %w", err)
	}

	t := &Transformer{
		Columns:    append(base, vectorizer.Columns()...),
		Vectorizer: vectorizer,
		Scaler:     scaler,
	}

	matrix := make([][]float64, len(raw))
	for i, row := range raw {
		if matrix[i], err = scaler.Transform(row); err != nil {
			return nil, nil, err
		}
	}
	return t, matrix, nil
}

// Transform projects s with the fitted vocabulary and scaler.
func (t *Transformer) Transform(s Sample) ([]float64, error) {
	if t == nil || t.Vectorizer == nil || t.Scaler == nil {
		return nil, errors.New("transformer not fitted")
	}
	if len(s.Base)+len(t.Vectorizer.Vocabulary) != len(t.Columns) {
		return nil, ErrColumnMismatch
	}
	return t.Scaler.Transform(joinRow(s.Base, t.Vectorizer.Transform(s.Text)))
}

func joinRow(base, text []float64) []float64 {
	row := make([]float64, 0, len(base)+len(text))
	row = append(row, base...)
	return append(row, text...)
}
