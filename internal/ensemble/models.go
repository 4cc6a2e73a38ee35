package ensemble

import (
	"errors"
	"fmt"
	"math"
	"math/rand"
)

// Model names used in ScoringResult.IndividualScores.
const (
	RandomForestName       = "random_forest"
	GradientBoostingName   = "gradient_boosting"
	LogisticRegressionName = "logistic_regression"
)

var errNotFitted = errors.New("model not fitted")

// Classifier is a fitted binary model.
type Classifier interface {
	Name() string
	// Probability returns P(positive | x).
	Probability(x []float64) (float64, error)
}

func checkWidth(name string, width int, x []float64) error {
	if width == 0 {
		return fmt.Errorf("%s: %w", name, errNotFitted)
	}
	if len(x) != width {
		return fmt.Errorf("%s: expected %d features, got %d", name, width, len(x))
	}
	return nil
}

// balancedWeights gives each class total weight n/2, as class_weight="balanced" does.
func balancedWeights(y []float64) []float64 {
	var pos float64
	for _, v := range y {
		pos += v
	}
	n := float64(len(y))
	neg := n - pos
	w := make([]float64, len(y))
	for i, v := range y {
		switch {
		case v == 1 && pos > 0:
			w[i] = n / (2 * pos)
		case v == 0 && neg > 0:
			w[i] = n / (2 * neg)
		default:
			w[i] = 1
		}
	}
	return w
}

// RandomForest averages the positive-class share of bootstrapped, fully grown trees.
type RandomForest struct {
	Width       int       `json:"width"`
	Trees       []Tree    `json:"trees"`
	Importances []float64 `json:"importances"`
}

// FitRandomForest grows n trees with balanced class weights and sqrt(width) features per split.
func FitRandomForest(X [][]float64, y []float64, n int, rng *rand.Rand) *RandomForest {
	width := len(X[0])
	classWeights := balancedWeights(y)
	maxFeatures := int(math.Sqrt(float64(width)))
	if maxFeatures < 1 {
		maxFeatures = 1
	}

	forest := &RandomForest{Width: width, Importances: make([]float64, width)}
	for t := 0; t < n; t++ {
		counts := make([]float64, len(X))
		for range X {
			counts[rng.Intn(len(X))]++
		}
		w := make([]float64, len(X))
		var idx []int
		for i, c := range counts {
			if c > 0 {
				w[i] = c * classWeights[i]
				idx = append(idx, i)
			}
		}

		b := &treeBuilder{
			X: X, y: y, w: w,
			params:     treeParams{maxFeatures: maxFeatures, minLeaf: 1, criterion: gini, rng: rng},
			importance: make([]float64, width),
		}
		b.leafValue = b.weightedMean
		forest.Trees = append(forest.Trees, growTree(b, idx))
		for j, v := range normalize(b.importance) {
			forest.Importances[j] += v / float64(n)
		}
	}
	return forest
}

// Name implements Classifier.
func (f *RandomForest) Name() string { return RandomForestName }

// Probability implements Classifier.
func (f *RandomForest) Probability(x []float64) (float64, error) {
	if f == nil {
		return 0, fmt.Errorf("%s: %w", RandomForestName, errNotFitted)
	}
	if err := checkWidth(RandomForestName, f.Width, x); err != nil {
		return 0, err
	}
	if len(f.Trees) == 0 {
		return 0, fmt.Errorf("%s: %w", RandomForestName, errNotFitted)
	}
	var sum float64
	for _, t := range f.Trees {
		sum += t.Predict(x)
	}
	return sum / float64(len(f.Trees)), nil
}

// GradientBoosting is an additive log-odds model of shallow regression trees.
type GradientBoosting struct {
	Width        int       `json:"width"`
	Init         float64   `json:"init"`
	LearningRate float64   `json:"learningRate"`
	Trees        []Tree    `json:"trees"`
	Importances  []float64 `json:"importances"`
}

const (
	boostingDepth        = 3
	boostingLearningRate = 0.1
	probabilityEpsilon   = 1e-6
)

// FitGradientBoosting runs rounds of log-loss boosting with depth-3 trees. Leaf values take a
// single Newton step on the residuals that reach them.
func FitGradientBoosting(X [][]float64, y []float64, rounds int, rng *rand.Rand) *GradientBoosting {
	width := len(X[0])
	var prior float64
	for _, v := range y {
		prior += v
	}
	prior = clampProbability(prior / float64(len(y)))

	gb := &GradientBoosting{
		Width:        width,
		Init:         math.Log(prior / (1 - prior)),
		LearningRate: boostingLearningRate,
		Importances:  make([]float64, width),
	}

	raw := make([]float64, len(X))
	for i := range raw {
		raw[i] = gb.Init
	}
	ones := make([]float64, len(X))
	idx := make([]int, len(X))
	for i := range X {
		ones[i] = 1
		idx[i] = i
	}
	residual := make([]float64, len(X))
	prob := make([]float64, len(X))
	importance := make([]float64, width)

	for m := 0; m < rounds; m++ {
		for i := range X {
			prob[i] = sigmoid(raw[i])
			residual[i] = y[i] - prob[i]
		}

		b := &treeBuilder{
			X: X, y: residual, w: ones,
			params:     treeParams{maxDepth: boostingDepth, minLeaf: 1, criterion: squaredError, rng: rng},
			importance: importance,
		}
		b.leafValue = func(leaf []int) float64 {
			var num, den float64
			for _, i := range leaf {
				num += residual[i]
				den += prob[i] * (1 - prob[i])
			}
			if den < 1e-12 {
				return 0
			}
			return num / den
		}
		tree := growTree(b, idx)
		gb.Trees = append(gb.Trees, tree)
		for i := range X {
			raw[i] += gb.LearningRate * tree.Predict(X[i])
		}
	}
	gb.Importances = normalize(importance)
	return gb
}

// Name implements Classifier.
func (g *GradientBoosting) Name() string { return GradientBoostingName }

// Probability implements Classifier.
func (g *GradientBoosting) Probability(x []float64) (float64, error) {
	if g == nil {
		return 0, fmt.Errorf("%s: %w", GradientBoostingName, errNotFitted)
	}
	if err := checkWidth(GradientBoostingName, g.Width, x); err != nil {
		return 0, err
	}
	f := g.Init
	for _, t := range g.Trees {
		f += g.LearningRate * t.Predict(x)
	}
	return sigmoid(f), nil
}

// LogisticRegression is an L2-regularised linear model with balanced class weights.
type LogisticRegression struct {
	Width   int       `json:"width"`
	Weights []float64 `json:"weights"`
	Bias    float64   `json:"bias"`
}

const (
	logisticIterations = 500
	logisticStep       = 0.1
	logisticC          = 1.0
)

// FitLogisticRegression minimises weighted log-loss plus ||w||^2/(2C) by batch gradient descent.
func FitLogisticRegression(X [][]float64, y []float64) *LogisticRegression {
	width := len(X[0])
	sw := balancedWeights(y)
	n := float64(len(X))

	lr := &LogisticRegression{Width: width, Weights: make([]float64, width)}
	grad := make([]float64, width)
	for it := 0; it < logisticIterations; it++ {
		for j := range grad {
			grad[j] = lr.Weights[j] / logisticC
		}
		var gradBias float64
		for i, row := range X {
			diff := sw[i] * (sigmoid(lr.linear(row)) - y[i])
			for j, v := range row {
				grad[j] += diff * v
			}
			gradBias += diff
		}
		for j := range lr.Weights {
			lr.Weights[j] -= logisticStep * grad[j] / n
		}
		lr.Bias -= logisticStep * gradBias / n
	}
	return lr
}

// Name implements Classifier.
func (l *LogisticRegression) Name() string { return LogisticRegressionName }

// Probability implements Classifier.
func (l *LogisticRegression) Probability(x []float64) (float64, error) {
	if l == nil {
		return 0, fmt.Errorf("%s: %w", LogisticRegressionName, errNotFitted)
	}
	if err := checkWidth(LogisticRegressionName, l.Width, x); err != nil {
		return 0, err
	}
	return sigmoid(l.linear(x)), nil
}

func (l *LogisticRegression) linear(x []float64) float64 {
	z := l.Bias
	for j, v := range x {
		z += l.Weights[j] * v
	}
	return z
}

func sigmoid(z float64) float64 {
	return 1 / (1 + math.Exp(-z))
}

func clampProbability(p float64) float64 {
	return math.Max(probabilityEpsilon, math.Min(1-probabilityEpsilon, p))
}
