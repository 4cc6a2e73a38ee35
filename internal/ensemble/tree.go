package ensemble

import (
	"math"
	"math/rand"
	"sort"
)

// Node is one entry of a flattened binary tree. Leaves have Feature == -1.
type Node struct {
	Feature   int     `json:"f"`
	Threshold float64 `json:"t,omitempty"`
	Left      int     `json:"l,omitempty"`
	Right     int     `json:"r,omitempty"`
	Value     float64 `json:"v"`
}

// Tree is a fitted decision tree stored as a node slice rooted at index 0.
type Tree struct {
	Nodes []Node `json:"nodes"`
}

// Predict walks x down to a leaf and returns its value.
func (t Tree) Predict(x []float64) float64 {
	if len(t.Nodes) == 0 {
		return 0
	}
	i := 0
	for {
		n := t.Nodes[i]
		if n.Feature < 0 || n.Feature >= len(x) {
			return n.Value
		}
		if x[n.Feature] <= n.Threshold {
			i = n.Left
		} else {
			i = n.Right
		}
	}
}

// splitCriterion scores a candidate partition; lower impurity is better.
type splitCriterion int

const (
	// gini is weighted Gini impurity over binary targets (classification trees).
	gini splitCriterion = iota
	// squaredError is weighted variance of continuous targets (boosting trees).
	squaredError
)

type treeParams struct {
	maxDepth    int // 0 means unlimited
	maxFeatures int // 0 means all features
	minLeaf     int
	criterion   splitCriterion
	rng         *rand.Rand
}

// treeBuilder grows one tree over rows idx of X with targets y and sample weights w.
// leafValue turns the rows that reach a leaf into its stored value.
type treeBuilder struct {
	X          [][]float64
	y          []float64
	w          []float64
	params     treeParams
	leafValue  func(idx []int) float64
	importance []float64
	nodes      []Node
}

func growTree(b *treeBuilder, idx []int) Tree {
	b.nodes = b.nodes[:0]
	b.grow(idx, 0)
	return Tree{Nodes: append([]Node(nil), b.nodes...)}
}

func (b *treeBuilder) grow(idx []int, depth int) int {
	pos := len(b.nodes)
	b.nodes = append(b.nodes, Node{Feature: -1, Value: b.leafValue(idx)})

	if b.params.maxDepth > 0 && depth >= b.params.maxDepth {
		return pos
	}
	if len(idx) < 2*b.params.minLeaf || b.pure(idx) {
		return pos
	}

	feature, threshold, gain, ok := b.bestSplit(idx)
	if !ok {
		return pos
	}

	var left, right []int
	for _, i := range idx {
		if b.X[i][feature] <= threshold {
			left = append(left, i)
		} else {
			right = append(right, i)
		}
	}
	if b.importance != nil {
		b.importance[feature] += gain
	}

	l := b.grow(left, depth+1)
	r := b.grow(right, depth+1)
	b.nodes[pos].Feature = feature
	b.nodes[pos].Threshold = threshold
	b.nodes[pos].Left = l
	b.nodes[pos].Right = r
	return pos
}

func (b *treeBuilder) pure(idx []int) bool {
	first := b.y[idx[0]]
	for _, i := range idx[1:] {
		if b.y[i] != first {
			return false
		}
	}
	return true
}

// bestSplit scans candidate features for the threshold with the largest weighted impurity
// decrease. Thresholds are midpoints between consecutive distinct values. Each feature is sorted
// once and swept with running sums, so a node costs O(features * n log n).
func (b *treeBuilder) bestSplit(idx []int) (feature int, threshold, gain float64, ok bool) {
	width := len(b.X[idx[0]])
	features := b.candidateFeatures(width)

	var all moments
	for _, i := range idx {
		all.add(b.w[i], b.y[i])
	}
	if all.w <= 0 {
		return 0, 0, 0, false
	}
	parent := b.score(all)

	sorted := make([]int, len(idx))
	for _, f := range features {
		copy(sorted, idx)
		sort.SliceStable(sorted, func(a, c int) bool { return b.X[sorted[a]][f] < b.X[sorted[c]][f] })

		var left moments
		for k := 1; k < len(sorted); k++ {
			prev := sorted[k-1]
			left.add(b.w[prev], b.y[prev])
			if k < b.params.minLeaf || k > len(sorted)-b.params.minLeaf {
				continue
			}
			lo, hi := b.X[prev][f], b.X[sorted[k]][f]
			if lo == hi {
				continue
			}
			right := all.minus(left)
			child := (left.w*b.score(left) + right.w*b.score(right)) / all.w
			decrease := (parent - child) * all.w
			if decrease > gain+1e-12 {
				feature, threshold, gain, ok = f, lo+(hi-lo)/2, decrease, true
			}
		}
	}
	return feature, threshold, gain, ok
}

// moments accumulates the weighted sums a split criterion needs.
type moments struct {
	w, wy, wy2 float64
}

func (m *moments) add(w, y float64) {
	m.w += w
	m.wy += w * y
	m.wy2 += w * y * y
}

func (m moments) minus(o moments) moments {
	return moments{w: m.w - o.w, wy: m.wy - o.wy, wy2: m.wy2 - o.wy2}
}

// score is the impurity of a partition summarised by m.
func (b *treeBuilder) score(m moments) float64 {
	if m.w <= 1e-12 {
		return 0
	}
	mean := m.wy / m.w
	switch b.params.criterion {
	case squaredError:
		return math.Max(m.wy2/m.w-mean*mean, 0)
	default:
		return 1 - mean*mean - (1-mean)*(1-mean)
	}
}

func (b *treeBuilder) candidateFeatures(width int) []int {
	all := make([]int, width)
	for i := range all {
		all[i] = i
	}
	if b.params.maxFeatures <= 0 || b.params.maxFeatures >= width || b.params.rng == nil {
		return all
	}
	b.params.rng.Shuffle(width, func(i, j int) { all[i], all[j] = all[j], all[i] })
	picked := all[:b.params.maxFeatures]
	sort.Ints(picked)
	return picked
}

func (b *treeBuilder) weight(idx []int) float64 {
	var sum float64
	for _, i := range idx {
		sum += b.w[i]
	}
	return sum
}

// weightedMean is the leaf value of a classification tree: the weighted share of positives.
func (b *treeBuilder) weightedMean(idx []int) float64 {
	total := b.weight(idx)
	if total <= 0 {
		return 0.5
	}
	var sum float64
	for _, i := range idx {
		sum += b.w[i] * b.y[i]
	}
	return sum / total
}

func normalize(v []float64) []float64 {
	var sum float64
	for _, x := range v {
		sum += x
	}
	out := make([]float64, len(v))
	if sum <= 0 || math.IsNaN(sum) {
		return out
	}
	for i, x := range v {
		out[i] = x / sum
	}
	return out
}
