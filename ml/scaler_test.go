package ml

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestStandardScalerZeroVariance(t *testing.T) {
	s := NewStandardScaler()
	require.NoError(t, s.Fit([][]float64{{0, 10}, {2, 10}, {4, 10}}))

	assert.InDeltaSlice(t, []float64{2, 10}, s.Mean, 1e-12)
	assert.InDelta(t, 1.632993, s.Std[0], 1e-6)
	assert.Equal(t, 0.0, s.Std[1])
	assert.Equal(t, 1.0, s.Scale[1])

	row, err := s.TransformRow([]float64{2, 10})
	require.NoError(t, err)
	assert.InDeltaSlice(t, []float64{0, 0}, row, 1e-12)

	row, err = s.TransformRow([]float64{4, 12})
	require.NoError(t, err)
	assert.InDelta(t, 2/1.632993, row[0], 1e-6)
	assert.InDelta(t, 2.0, row[1], 1e-12)
}

func TestStandardScalerErrors(t *testing.T) {
	s := NewStandardScaler()
	_, err := s.TransformRow([]float64{1})
	assert.ErrorIs(t, err, ErrNotFitted)
	assert.Error(t, s.Fit(nil))
	assert.ErrorIs(t, s.Fit([][]float64{{1, 2}, {3}}), ErrWidthMismatch)

	require.NoError(t, s.Fit([][]float64{{1, 2}, {3, 4}}))
	assert.Equal(t, 2, s.Width())
	_, err = s.TransformRow([]float64{1})
	assert.ErrorIs(t, err, ErrWidthMismatch)
}

func TestStandardScalerFitTransform(t *testing.T) {
	s := NewStandardScaler()
	out, err := s.FitTransform([][]float64{{1}, {2}, {3}, {4}})
	require.NoError(t, err)

	sum := 0.0
	for _, row := range out {
		sum += row[0]
	}
	assert.InDelta(t, 0.0, sum, 1e-12)
}

func TestStandardScalerValidate(t *testing.T) {
	s := NewStandardScaler()
	assert.ErrorIs(t, s.Validate(), ErrNotFitted)
	require.NoError(t, s.Fit([][]float64{{0, 10}, {2, 10}}))
	require.NoError(t, s.Validate())

	s.Scale[0] = 0
	assert.Error(t, s.Validate())

	s.Scale[0] = 1
	s.Std = s.Std[:1]
	assert.ErrorIs(t, s.Validate(), ErrWidthMismatch)
}
