package ml

import (
	"errors"
	"fmt"
	"sort"

	"gonum.org/v1/gonum/floats"
)

const DefaultNeighbors = 3

// KNN classifies by uniform majority vote among the K nearest training rows
// under Euclidean distance.
type KNN struct {
	K          int         `json:"k"`
	NumClasses int         `json:"num_classes"`
	X          [][]float64 `json:"x"`
	Y          []int       `json:"y"`
}

func NewKNN(k int) *KNN {
	if k <= 0 {
		k = DefaultNeighbors
	}
	return &KNN{K: k}
}

func (m *KNN) Name() string { return ModelTypeKNN }

// Fit stores the training rows. The slices are copied so later mutation by the
// caller cannot change the model.
func (m *KNN) Fit(features [][]float64, labels []int, numClasses int) error {
	if len(features) == 0 || len(labels) == 0 {
		return errors.New("features or labels empty")
	}
	if len(features) != len(labels) {
		return errors.New("features and labels size mismatch")
	}
	if numClasses <= 0 {
		return errors.New("numClasses must be positive")
	}
	width := len(features[0])
	m.X = make([][]float64, len(features))
	for i, row := range features {
		if len(row) != width {
			return fmt.Errorf("%w: row %d has %d columns, want %d", ErrWidthMismatch, i, len(row), width)
		}
		m.X[i] = append([]float64(nil), row...)
	}
	for i, label := range labels {
		if label < 0 || label >= numClasses {
			return fmt.Errorf("label %d at row %d out of range [0, %d)", label, i, numClasses)
		}
	}
	m.Y = append([]int(nil), labels...)
	m.NumClasses = numClasses
	if m.K <= 0 {
		m.K = DefaultNeighbors
	}
	return nil
}

func (m *KNN) Shape() (features, classes int) {
	if len(m.X) == 0 {
		return 0, m.NumClasses
	}
	return len(m.X[0]), m.NumClasses
}

// Validate rejects a decoded model whose votes could not sum to 1.
func (m *KNN) Validate() error {
	if m.K < 1 {
		return fmt.Errorf("%w: k=%d", ErrInvalidModel, m.K)
	}
	if m.NumClasses < 1 {
		return fmt.Errorf("%w: %d classes", ErrInvalidModel, m.NumClasses)
	}
	if len(m.X) == 0 {
		return ErrNotFitted
	}
	if len(m.X) != len(m.Y) {
		return fmt.Errorf("%w: %d rows, %d labels", ErrInvalidModel, len(m.X), len(m.Y))
	}
	width := len(m.X[0])
	for i, row := range m.X {
		if len(row) != width {
			return fmt.Errorf("%w: row %d has %d columns, want %d", ErrWidthMismatch, i, len(row), width)
		}
	}
	for i, label := range m.Y {
		if label < 0 || label >= m.NumClasses {
			return fmt.Errorf("%w: label %d at row %d out of range [0, %d)", ErrInvalidModel, label, i, m.NumClasses)
		}
	}
	return nil
}

func (m *KNN) Predict(features []float64) (int, error) {
	proba, err := m.PredictProba(features)
	if err != nil {
		return 0, err
	}
	return argmax(proba), nil
}

// PredictProba returns the vote fraction of each class among the neighbours.
func (m *KNN) PredictProba(features []float64) ([]float64, error) {
	neighbors, err := m.neighbors(features)
	if err != nil {
		return nil, err
	}
	proba := make([]float64, m.NumClasses)
	weight := 1 / float64(len(neighbors))
	for _, idx := range neighbors {
		proba[m.Y[idx]] += weight
	}
	return proba, nil
}

// neighbors returns the indices of the K closest rows. Equal distances keep
// training-row order.
func (m *KNN) neighbors(features []float64) ([]int, error) {
	if len(m.X) == 0 {
		return nil, ErrNotFitted
	}
	if width, _ := m.Shape(); len(features) != width {
		return nil, fmt.Errorf("%w: got %d columns, want %d", ErrWidthMismatch, len(features), width)
	}

	type pair struct {
		d   float64
		idx int
	}
	pairs := make([]pair, len(m.X))
	for i, row := range m.X {
		pairs[i] = pair{d: floats.Distance(features, row, 2), idx: i}
	}
	sort.SliceStable(pairs, func(a, b int) bool { return pairs[a].d < pairs[b].d })

	k := m.K
	if k > len(pairs) {
		k = len(pairs)
	}
	out := make([]int, k)
	for i := 0; i < k; i++ {
		out[i] = pairs[i].idx
	}
	return out, nil
}
