package analytics

import (
	"errors"
	"fmt"
	"math"
	"math/rand"
	"sort"

	"gonum.org/v1/gonum/floats"
	"gonum.org/v1/gonum/stat"
)

const eulerGamma = 0.5772156649015329

// Labels returned by IsolationForest.Predict.
const (
	Inlier  = 1
	Outlier = -1
)

// ForestOptions parameterizes FitIsolationForest.
type ForestOptions struct {
	NumTrees      int
	MaxSamples    int // capped at len(data)
	Contamination float64
	Seed          int64
}

// DefaultForestOptions returns 100 trees over sub-samples of 256 points.
func DefaultForestOptions() ForestOptions {
	return ForestOptions{
		NumTrees:      100,
		MaxSamples:    256,
		Contamination: 0.1,
		Seed:          42,
	}
}

// IsolationForest is a fitted ensemble of random partitioning trees over
// one feature. It is immutable after fitting.
type IsolationForest struct {
	trees      []*isolationNode
	sampleSize int
	offset     float64
}

type isolationNode struct {
	splitValue float64
	left       *isolationNode
	right      *isolationNode
	size       int
	isLeaf     bool
}

// FitIsolationForest grows opts.NumTrees trees on random sub-samples of data
// and sets the decision offset so that roughly opts.Contamination of the
// training points score below zero.
func FitIsolationForest(data []float64, opts ForestOptions) (*IsolationForest, error) {
	if len(data) == 0 {
		return nil, errors.New("isolation forest: empty training set")
	}
	if opts.NumTrees <= 0 {
		return nil, fmt.Errorf("isolation forest: invalid tree count %d", opts.NumTrees)
	}
	if opts.Contamination <= 0 || opts.Contamination > 0.5 {
		return nil, fmt.Errorf("isolation forest: contamination %v out of range (0, 0.5]", opts.Contamination)
	}

	sampleSize := opts.MaxSamples
	if sampleSize <= 0 || sampleSize > len(data) {
		sampleSize = len(data)
	}
	maxDepth := int(math.Ceil(math.Log2(math.Max(float64(sampleSize), 2))))

	rng := rand.New(rand.NewSource(opts.Seed))
	f := &IsolationForest{
		trees:      make([]*isolationNode, opts.NumTrees),
		sampleSize: sampleSize,
	}

	for i := range f.trees {
		perm := rng.Perm(len(data))[:sampleSize]
		sample := make([]float64, sampleSize)
		for j, idx := range perm {
			sample[j] = data[idx]
		}
		f.trees[i] = buildTree(rng, sample, 0, maxDepth)
	}

	scores := make([]float64, len(data))
	for i, v := range data {
		scores[i] = f.ScoreSamples(v)
	}
	sort.Float64s(scores)
	f.offset = stat.Quantile(opts.Contamination, stat.LinInterp, scores, nil)

	return f, nil
}

func buildTree(rng *rand.Rand, data []float64, depth, maxDepth int) *isolationNode {
	if len(data) <= 1 || depth >= maxDepth {
		return &isolationNode{size: len(data), isLeaf: true}
	}

	minVal, maxVal := floats.Min(data), floats.Max(data)
	if minVal == maxVal {
		return &isolationNode{size: len(data), isLeaf: true}
	}

	splitValue := minVal + rng.Float64()*(maxVal-minVal)

	var left, right []float64
	for _, v := range data {
		if v < splitValue {
			left = append(left, v)
		} else {
			right = append(right, v)
		}
	}

	return &isolationNode{
		splitValue: splitValue,
		left:       buildTree(rng, left, depth+1, maxDepth),
		right:      buildTree(rng, right, depth+1, maxDepth),
		size:       len(data),
	}
}

// ScoreSamples returns the opposite of the anomaly score, in [-1, 0).
// Higher means more normal.
func (f *IsolationForest) ScoreSamples(value float64) float64 {
	var total float64
	for _, root := range f.trees {
		total += pathLength(root, value, 0)
	}
	avgPath := total / float64(len(f.trees))
	return -math.Pow(2, -avgPath/averagePathLength(f.sampleSize))
}

// DecisionFunction shifts ScoreSamples by the fitted offset; negative
// values are outliers.
func (f *IsolationForest) DecisionFunction(value float64) float64 {
	return f.ScoreSamples(value) - f.offset
}

// Predict returns Inlier or Outlier.
func (f *IsolationForest) Predict(value float64) int {
	if f.DecisionFunction(value) < 0 {
		return Outlier
	}
	return Inlier
}

// Offset is the decision threshold on ScoreSamples.
func (f *IsolationForest) Offset() float64 {
	return f.offset
}

func pathLength(node *isolationNode, value float64, depth int) float64 {
	for !node.isLeaf {
		if value < node.splitValue {
			node = node.left
		} else {
			node = node.right
		}
		depth++
	}
	return float64(depth) + averagePathLength(node.size)
}

// averagePathLength is c(n), the mean path length of an unsuccessful
// search in a binary search tree of n points.
func averagePathLength(n int) float64 {
	switch {
	case n <= 1:
		return 0
	case n == 2:
		return 1
	}
	fn := float64(n)
	return 2*(math.Log(fn-1)+eulerGamma) - 2*(fn-1)/fn
}
