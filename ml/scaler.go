package ml

import (
	"errors"
	"fmt"
	"math"

	"gonum.org/v1/gonum/stat"
)

// StandardScaler centers each column to zero mean and unit variance using the
// statistics of the matrix it was fit on.
type StandardScaler struct {
	Mean  []float64 `json:"mean"`
	Std   []float64 `json:"std"`
	Scale []float64 `json:"scale"`
}

func NewStandardScaler() *StandardScaler { return &StandardScaler{} }

// Fit computes the population mean and standard deviation per column.
// A column with zero variance gets scale 1, so its transformed value is x-mean.
func (s *StandardScaler) Fit(X [][]float64) error {
	if len(X) == 0 {
		return errors.New("features is empty")
	}
	cols := len(X[0])
	s.Mean = make([]float64, cols)
	s.Std = make([]float64, cols)
	s.Scale = make([]float64, cols)

	column := make([]float64, len(X))
	for j := 0; j < cols; j++ {
		for i, row := range X {
			if len(row) != cols {
				return fmt.Errorf("%w: row %d has %d columns, want %d", ErrWidthMismatch, i, len(row), cols)
			}
			column[i] = row[j]
		}
		mean, std := stat.PopMeanStdDev(column, nil)
		s.Mean[j] = mean
		s.Std[j] = std
		s.Scale[j] = std
		if std == 0 {
			s.Scale[j] = 1
		}
	}
	return nil
}

// Width is the number of columns the scaler was fit on.
func (s *StandardScaler) Width() int { return len(s.Mean) }

// TransformRow scales a single row.
func (s *StandardScaler) TransformRow(row []float64) ([]float64, error) {
	if s.Mean == nil {
		return nil, ErrNotFitted
	}
	if len(row) != len(s.Mean) {
		return nil, fmt.Errorf("%w: got %d columns, want %d", ErrWidthMismatch, len(row), len(s.Mean))
	}
	out := make([]float64, len(row))
	for j, v := range row {
		out[j] = (v - s.Mean[j]) / s.Scale[j]
	}
	return out, nil
}

// Validate checks a decoded scaler: equal lengths and no zero or non-finite
// scale.
func (s *StandardScaler) Validate() error {
	if s.Mean == nil {
		return ErrNotFitted
	}
	if len(s.Std) != len(s.Mean) || len(s.Scale) != len(s.Mean) {
		return fmt.Errorf("%w: mean %d, std %d, scale %d", ErrWidthMismatch, len(s.Mean), len(s.Std), len(s.Scale))
	}
	for j, scale := range s.Scale {
		if scale == 0 || math.IsNaN(scale) || math.IsInf(scale, 0) {
			return fmt.Errorf("scaler column %d has scale %v", j, scale)
		}
		if math.IsNaN(s.Mean[j]) || math.IsInf(s.Mean[j], 0) {
			return fmt.Errorf("scaler column %d has mean %v", j, s.Mean[j])
		}
	}
	return nil
}

func (s *StandardScaler) Transform(X [][]float64) ([][]float64, error) {
	out := make([][]float64, len(X))
	for i, row := range X {
		scaled, err := s.TransformRow(row)
		if err != nil {
			return nil, fmt.Errorf("row %d: %w", i, err)
		}
		out[i] = scaled
	}
	return out, nil
}

func (s *StandardScaler) FitTransform(X [][]float64) ([][]float64, error) {
	if err := s.Fit(X); err != nil {
		return nil, err
	}
	return s.Transform(X)
}
