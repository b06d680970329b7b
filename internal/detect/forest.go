package detect

import (
	"math"
	"math/rand"
)

const (
	forestTrees     = 100
	forestSubsample = 256
	// Offset for the decision score, matching the "auto" contamination
	// convention: raw scores below -0.5 are outliers.
	forestOffset = -0.5
)

// isolationForest is an ensemble of random split trees. Anomalous points
// isolate in fewer splits, giving shorter average path lengths and lower
// (more negative) decision scores.
type isolationForest struct {
	trees     []*isoNode
	subsample int
}

type isoNode struct {
	left, right *isoNode
	splitAttr   int
	splitValue  float64
	size        int // external node: number of samples that landed here
}

func fitForest(data [][]float64, rng *rand.Rand) *isolationForest {
	subsample := forestSubsample
	if subsample > len(data) {
		subsample = len(data)
	}
	heightLimit := int(math.Ceil(math.Log2(float64(subsample))))

	forest := &isolationForest{
		trees:     make([]*isoNode, 0, forestTrees),
		subsample: subsample,
	}
	for t := 0; t < forestTrees; t++ {
		sample := make([][]float64, subsample)
		for i := range sample {
			sample[i] = data[rng.Intn(len(data))]
		}
		forest.trees = append(forest.trees, buildTree(sample, 0, heightLimit, rng))
	}
	return forest
}

func buildTree(data [][]float64, depth, heightLimit int, rng *rand.Rand) *isoNode {
	if len(data) <= 1 || depth >= heightLimit {
		return &isoNode{size: len(data)}
	}

	attrs := len(data[0])
	attr := rng.Intn(attrs)

	min, max := data[0][attr], data[0][attr]
	for i := 1; i < len(data); i++ {
		v := data[i][attr]
		if v < min {
			min = v
		}
		if v > max {
			max = v
		}
	}
	if min == max {
		return &isoNode{size: len(data)}
	}

	split := min + rng.Float64()*(max-min)

	var left, right [][]float64
	for i := range data {
		if data[i][attr] < split {
			left = append(left, data[i])
		} else {
			right = append(right, data[i])
		}
	}

	return &isoNode{
		splitAttr:  attr,
		splitValue: split,
		left:       buildTree(left, depth+1, heightLimit, rng),
		right:      buildTree(right, depth+1, heightLimit, rng),
	}
}

func (n *isoNode) pathLength(x []float64, depth float64) float64 {
	if n.left == nil && n.right == nil {
		if n.size > 1 {
			return depth + avgPathLength(n.size)
		}
		return depth
	}
	if x[n.splitAttr] < n.splitValue {
		return n.left.pathLength(x, depth+1)
	}
	return n.right.pathLength(x, depth+1)
}

// Score returns the decision score for one point. Scores below zero mean
// outlier; lower means more anomalous.
func (f *isolationForest) Score(x []float64) float64 {
	var sum float64
	for _, tree := range f.trees {
		sum += tree.pathLength(x, 0)
	}
	avgDepth := sum / float64(len(f.trees))

	anomaly := math.Pow(2, -avgDepth/avgPathLength(f.subsample))
	return -anomaly - forestOffset
}

// Predict reports whether x is an outlier.
func (f *isolationForest) Predict(x []float64) bool {
	return f.Score(x) < 0
}

// avgPathLength is the expected path length of an unsuccessful BST
// search over n points, the isolation-forest normalization constant.
func avgPathLength(n int) float64 {
	if n <= 1 {
		return 0
	}
	const eulerGamma = 0.5772156649
	h := math.Log(float64(n-1)) + eulerGamma
	return 2*h - 2*float64(n-1)/float64(n)
}
