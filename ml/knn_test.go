package ml

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func clusters() ([][]float64, []int) {
	x := [][]float64{
		{0, 0}, {0.1, 0.2}, {0.2, 0.1},
		{5, 5}, {5.1, 4.9}, {4.8, 5.2},
		{10, 0}, {9.9, 0.1}, {10.2, 0.3},
	}
	y := []int{0, 0, 0, 1, 1, 1, 2, 2, 2}
	return x, y
}

func TestKNNPredict(t *testing.T) {
	x, y := clusters()
	knn := NewKNN(3)
	require.NoError(t, knn.Fit(x, y, 3))

	width, classes := knn.Shape()
	assert.Equal(t, 2, width)
	assert.Equal(t, 3, classes)

	for _, tc := range []struct {
		row  []float64
		want int
	}{
		{[]float64{0.05, 0.05}, 0},
		{[]float64{5, 5.1}, 1},
		{[]float64{9.8, 0}, 2},
	} {
		got, err := knn.Predict(tc.row)
		require.NoError(t, err)
		assert.Equal(t, tc.want, got)

		proba, err := knn.PredictProba(tc.row)
		require.NoError(t, err)
		require.Len(t, proba, 3)
		assert.InDelta(t, 1.0, proba[0]+proba[1]+proba[2], 1e-12)
		assert.InDelta(t, 1.0, proba[tc.want], 1e-12)
	}
}

func TestKNNVoteFractions(t *testing.T) {
	x := [][]float64{{0}, {1}, {2}, {10}}
	y := []int{0, 1, 1, 0}
	knn := NewKNN(3)
	require.NoError(t, knn.Fit(x, y, 3))

	proba, err := knn.PredictProba([]float64{1})
	require.NoError(t, err)
	assert.InDeltaSlice(t, []float64{1.0 / 3, 2.0 / 3, 0}, proba, 1e-12)
}

func TestKNNTies(t *testing.T) {
	// Three neighbours at equal distance from 0, one per class: every class
	// gets a third and the lowest class index wins.
	x := [][]float64{{-1}, {1}, {1}, {5}}
	y := []int{2, 1, 0, 0}
	knn := NewKNN(3)
	require.NoError(t, knn.Fit(x, y, 3))

	label, err := knn.Predict([]float64{0})
	require.NoError(t, err)
	assert.Equal(t, 0, label)
}

func TestKNNSmallTrainingSet(t *testing.T) {
	knn := NewKNN(5)
	require.NoError(t, knn.Fit([][]float64{{0}, {1}}, []int{0, 1}, 2))

	proba, err := knn.PredictProba([]float64{0})
	require.NoError(t, err)
	assert.InDeltaSlice(t, []float64{0.5, 0.5}, proba, 1e-12)
}

func TestKNNErrors(t *testing.T) {
	knn := NewKNN(0)
	assert.Equal(t, DefaultNeighbors, knn.K)

	_, err := knn.Predict([]float64{1})
	assert.ErrorIs(t, err, ErrNotFitted)

	assert.Error(t, knn.Fit(nil, nil, 2))
	assert.Error(t, knn.Fit([][]float64{{1}}, []int{0, 1}, 2))
	assert.Error(t, knn.Fit([][]float64{{1}}, []int{3}, 2))
	assert.ErrorIs(t, knn.Fit([][]float64{{1}, {1, 2}}, []int{0, 1}, 2), ErrWidthMismatch)

	require.NoError(t, knn.Fit([][]float64{{1, 2}}, []int{0}, 1))
	_, err = knn.Predict([]float64{1})
	assert.ErrorIs(t, err, ErrWidthMismatch)
}

func TestKNNFitCopiesInput(t *testing.T) {
	x := [][]float64{{0}, {10}}
	knn := NewKNN(1)
	require.NoError(t, knn.Fit(x, []int{0, 1}, 2))
	x[0][0] = 100

	label, err := knn.Predict([]float64{0})
	require.NoError(t, err)
	assert.Equal(t, 0, label)
}

func TestArgmaxPrefersLowestIndex(t *testing.T) {
	assert.Equal(t, 1, argmax([]float64{0.2, 0.4, 0.4}))
	assert.Equal(t, 0, argmax([]float64{0.5, 0.5}))
}

func TestKNNValidate(t *testing.T) {
	x, y := clusters()
	knn := NewKNN(3)
	assert.ErrorIs(t, knn.Validate(), ErrNotFitted)
	require.NoError(t, knn.Fit(x, y, 3))
	require.NoError(t, knn.Validate())

	broken := *knn
	broken.K = 0
	assert.ErrorIs(t, broken.Validate(), ErrInvalidModel)

	broken = *knn
	broken.Y = broken.Y[1:]
	assert.ErrorIs(t, broken.Validate(), ErrInvalidModel)

	broken = *knn
	broken.NumClasses = 2
	assert.ErrorIs(t, broken.Validate(), ErrInvalidModel)
}
