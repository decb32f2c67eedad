package ml

import (
	"errors"
	"fmt"
	"math"
	"sort"
)

const DefaultMaxDepth = 10

// DecisionTree is a binary Gini tree splitting each feature at its median.
// Nodes are stored flat; leaves keep per-class counts for PredictProba.
type DecisionTree struct {
	MaxDepth   int        `json:"max_depth"`
	NumClasses int        `json:"num_classes"`
	Width      int        `json:"width"`
	Nodes      []TreeNode `json:"nodes"`
}

type TreeNode struct {
	FeatureIdx int     `json:"feature_idx"`
	Threshold  float64 `json:"threshold"`
	LeftChild  int     `json:"left_child"`
	RightChild int     `json:"right_child"`
	Counts     []int   `json:"counts,omitempty"`
	IsLeaf     bool    `json:"is_leaf"`
}

func NewDecisionTree(maxDepth int) *DecisionTree {
	if maxDepth <= 0 {
		maxDepth = DefaultMaxDepth
	}
	return &DecisionTree{MaxDepth: maxDepth}
}

func (dt *DecisionTree) Name() string { return ModelTypeDecisionTree }

func (dt *DecisionTree) Shape() (features, classes int) { return dt.Width, dt.NumClasses }

func (dt *DecisionTree) Fit(features [][]float64, labels []int, numClasses int) error {
	if len(features) == 0 || len(labels) == 0 {
		return errors.New("features or labels empty")
	}
	if len(features) != len(labels) {
		return errors.New("features and labels size mismatch")
	}
	if numClasses <= 0 {
		return errors.New("numClasses must be positive")
	}
	if dt.MaxDepth <= 0 {
		dt.MaxDepth = DefaultMaxDepth
	}
	dt.NumClasses = numClasses
	dt.Width = len(features[0])
	dt.Nodes = dt.buildNode(features, labels, 0)
	return nil
}

// Validate checks node links and leaf counts so every prediction ends at a
// leaf with a defined distribution.
func (dt *DecisionTree) Validate() error {
	if dt.NumClasses < 1 || dt.Width < 1 {
		return fmt.Errorf("%w: width %d, %d classes", ErrInvalidModel, dt.Width, dt.NumClasses)
	}
	if len(dt.Nodes) == 0 {
		return ErrNotFitted
	}
	for i, node := range dt.Nodes {
		if node.IsLeaf {
			if len(node.Counts) != dt.NumClasses {
				return fmt.Errorf("%w: leaf %d has %d counts, want %d", ErrInvalidModel, i, len(node.Counts), dt.NumClasses)
			}
			total := 0
			for _, c := range node.Counts {
				if c < 0 {
					return fmt.Errorf("%w: leaf %d has a negative count", ErrInvalidModel, i)
				}
				total += c
			}
			if total == 0 {
				return fmt.Errorf("%w: leaf %d is empty", ErrInvalidModel, i)
			}
			continue
		}
		if node.FeatureIdx < 0 || node.FeatureIdx >= dt.Width {
			return fmt.Errorf("%w: node %d splits on feature %d", ErrInvalidModel, i, node.FeatureIdx)
		}
		// children are stored after their parent, which also rules out cycles
		if node.LeftChild <= i || node.LeftChild >= len(dt.Nodes) || node.RightChild <= i || node.RightChild >= len(dt.Nodes) {
			return fmt.Errorf("%w: node %d has invalid children", ErrInvalidModel, i)
		}
	}
	return nil
}

func (dt *DecisionTree) Predict(features []float64) (int, error) {
	proba, err := dt.PredictProba(features)
	if err != nil {
		return 0, err
	}
	return argmax(proba), nil
}

// PredictProba returns the class distribution of the leaf the row falls into.
func (dt *DecisionTree) PredictProba(features []float64) ([]float64, error) {
	if len(dt.Nodes) == 0 {
		return nil, ErrNotFitted
	}
	if len(features) != dt.Width {
		return nil, fmt.Errorf("%w: got %d columns, want %d", ErrWidthMismatch, len(features), dt.Width)
	}
	idx := 0
	for {
		node := dt.Nodes[idx]
		if node.IsLeaf {
			return leafProba(node.Counts, dt.NumClasses), nil
		}
		if node.FeatureIdx < 0 || node.FeatureIdx >= len(features) {
			return nil, errors.New("feature index out of range")
		}
		if features[node.FeatureIdx] <= node.Threshold {
			idx = node.LeftChild
		} else {
			idx = node.RightChild
		}
		if idx < 0 || idx >= len(dt.Nodes) {
			return nil, errors.New("invalid tree state")
		}
	}
}

func leafProba(counts []int, numClasses int) []float64 {
	proba := make([]float64, numClasses)
	total := 0
	for _, c := range counts {
		total += c
	}
	if total == 0 {
		return proba
	}
	for i, c := range counts {
		proba[i] = float64(c) / float64(total)
	}
	return proba
}

func (dt *DecisionTree) leaf(labels []int) []TreeNode {
	counts := make([]int, dt.NumClasses)
	for _, label := range labels {
		counts[label]++
	}
	return []TreeNode{{
		FeatureIdx: -1,
		LeftChild:  -1,
		RightChild: -1,
		Counts:     counts,
		IsLeaf:     true,
	}}
}

func (dt *DecisionTree) buildNode(features [][]float64, labels []int, depth int) []TreeNode {
	if depth >= dt.MaxDepth || isPure(labels) {
		return dt.leaf(labels)
	}

	bestFeature, threshold, ok := findBestSplit(features, labels)
	if !ok {
		return dt.leaf(labels)
	}

	leftFeatures, leftLabels, rightFeatures, rightLabels := splitData(features, labels, bestFeature, threshold)
	if len(leftLabels) == 0 || len(rightLabels) == 0 {
		return dt.leaf(labels)
	}

	leftNodes := dt.buildNode(leftFeatures, leftLabels, depth+1)
	rightNodes := dt.buildNode(rightFeatures, rightLabels, depth+1)

	// children indices are relative to this subtree; shift them once the
	// subtree is placed
	nodes := make([]TreeNode, 0, 1+len(leftNodes)+len(rightNodes))
	nodes = append(nodes, TreeNode{
		FeatureIdx: bestFeature,
		Threshold:  threshold,
		LeftChild:  1,
		RightChild: 1 + len(leftNodes),
	})
	nodes = append(nodes, shiftChildren(leftNodes, 1)...)
	nodes = append(nodes, shiftChildren(rightNodes, 1+len(leftNodes))...)
	return nodes
}

func shiftChildren(nodes []TreeNode, offset int) []TreeNode {
	for i := range nodes {
		if nodes[i].IsLeaf {
			continue
		}
		nodes[i].LeftChild += offset
		nodes[i].RightChild += offset
	}
	return nodes
}

func findBestSplit(features [][]float64, labels []int) (int, float64, bool) {
	featureCount := len(features[0])
	bestFeature := -1
	bestThreshold := 0.0
	bestImpurity := math.MaxFloat64

	values := make([]float64, len(features))
	for featureIdx := 0; featureIdx < featureCount; featureIdx++ {
		for i := range features {
			values[i] = features[i][featureIdx]
		}
		threshold := median(values)
		leftLabels, rightLabels := splitLabels(features, labels, featureIdx, threshold)
		if len(leftLabels) == 0 || len(rightLabels) == 0 {
			continue
		}
		impurity := weightedGini(leftLabels, rightLabels)
		if impurity < bestImpurity {
			bestImpurity = impurity
			bestFeature = featureIdx
			bestThreshold = threshold
		}
	}
	if bestFeature == -1 {
		return -1, 0, false
	}
	return bestFeature, bestThreshold, true
}

func splitData(features [][]float64, labels []int, featureIdx int, threshold float64) ([][]float64, []int, [][]float64, []int) {
	var leftFeatures, rightFeatures [][]float64
	var leftLabels, rightLabels []int
	for i, feature := range features {
		if feature[featureIdx] <= threshold {
			leftFeatures = append(leftFeatures, feature)
			leftLabels = append(leftLabels, labels[i])
		} else {
			rightFeatures = append(rightFeatures, feature)
			rightLabels = append(rightLabels, labels[i])
		}
	}
	return leftFeatures, leftLabels, rightFeatures, rightLabels
}

func splitLabels(features [][]float64, labels []int, featureIdx int, threshold float64) ([]int, []int) {
	var leftLabels, rightLabels []int
	for i, feature := range features {
		if feature[featureIdx] <= threshold {
			leftLabels = append(leftLabels, labels[i])
		} else {
			rightLabels = append(rightLabels, labels[i])
		}
	}
	return leftLabels, rightLabels
}

func weightedGini(leftLabels, rightLabels []int) float64 {
	leftWeight := float64(len(leftLabels))
	rightWeight := float64(len(rightLabels))
	total := leftWeight + rightWeight
	return (leftWeight/total)*gini(leftLabels) + (rightWeight/total)*gini(rightLabels)
}

func gini(labels []int) float64 {
	if len(labels) == 0 {
		return 0
	}
	counts := make(map[int]int)
	for _, label := range labels {
		counts[label]++
	}
	impurity := 1.0
	for _, count := range counts {
		prob := float64(count) / float64(len(labels))
		impurity -= prob * prob
	}
	return impurity
}

func median(values []float64) float64 {
	if len(values) == 0 {
		return 0
	}
	sorted := append([]float64(nil), values...)
	sort.Float64s(sorted)
	mid := len(sorted) / 2
	if len(sorted)%2 == 0 {
		return (sorted[mid-1] + sorted[mid]) / 2
	}
	return sorted[mid]
}

func isPure(labels []int) bool {
	if len(labels) == 0 {
		return true
	}
	first := labels[0]
	for _, label := range labels[1:] {
		if label != first {
			return false
		}
	}
	return true
}
