package ml

import (
	"errors"
	"fmt"
	"strconv"
	"strings"
)

var ErrMissingTarget = errors.New("target column not found")

// Frame is a cleaned table with one string cell per column.
type Frame struct {
	Columns []string
	Rows    [][]string
	Source  string
}

// TrainingSet is a Frame split into an encoded feature matrix and target codes.
// X is label-encoded but not scaled.
type TrainingSet struct {
	FeatureNames       []string
	CategoricalColumns []string
	Encoders           map[string]Encoder
	TargetEncoder      *LabelEncoder
	X                  [][]float64
	Y                  []int
	DroppedRows        int
}

// BuildTrainingSet separates the target column, types every remaining column
// and label-encodes the categorical ones. A column is numeric when every
// non-empty cell parses as a float. Rows with an empty target or an empty
// numeric cell are dropped.
func BuildTrainingSet(frame Frame, target string) (*TrainingSet, error) {
	targetIdx := -1
	for i, col := range frame.Columns {
		if col == target {
			targetIdx = i
			break
		}
	}
	if targetIdx < 0 {
		return nil, fmt.Errorf("%w: %q", ErrMissingTarget, target)
	}
	if len(frame.Rows) == 0 {
		return nil, errors.New("dataset has no rows")
	}

	featureIdx := make([]int, 0, len(frame.Columns)-1)
	set := &TrainingSet{Encoders: make(map[string]Encoder)}
	for i, col := range frame.Columns {
		if i == targetIdx {
			continue
		}
		featureIdx = append(featureIdx, i)
		set.FeatureNames = append(set.FeatureNames, col)
	}
	if len(featureIdx) == 0 {
		return nil, errors.New("dataset has no feature columns")
	}

	numeric := make([]bool, len(featureIdx))
	for j, col := range featureIdx {
		numeric[j] = isNumericColumn(frame.Rows, col)
		if !numeric[j] {
			set.CategoricalColumns = append(set.CategoricalColumns, frame.Columns[col])
		}
	}

	rows := make([][]string, 0, len(frame.Rows))
	for _, row := range frame.Rows {
		if len(row) != len(frame.Columns) || strings.TrimSpace(row[targetIdx]) == "" {
			set.DroppedRows++
			continue
		}
		complete := true
		for j, col := range featureIdx {
			if numeric[j] && strings.TrimSpace(row[col]) == "" {
				complete = false
				break
			}
		}
		if !complete {
			set.DroppedRows++
			continue
		}
		rows = append(rows, row)
	}
	if len(rows) == 0 {
		return nil, errors.New("no complete rows left after dropping incomplete ones")
	}

	set.X = make([][]float64, len(rows))
	for i := range set.X {
		set.X[i] = make([]float64, len(featureIdx))
	}
	column := make([]string, len(rows))
	for j, col := range featureIdx {
		for i, row := range rows {
			column[i] = row[col]
		}
		if numeric[j] {
			for i, cell := range column {
				v, err := strconv.ParseFloat(strings.TrimSpace(cell), 64)
				if err != nil {
					return nil, fmt.Errorf("column %q row %d: %w", frame.Columns[col], i, err)
				}
				set.X[i][j] = v
			}
			continue
		}
		enc := NewLabelEncoder()
		codes, err := enc.FitTransform(column)
		if err != nil {
			return nil, fmt.Errorf("encode column %q: %w", frame.Columns[col], err)
		}
		for i, code := range codes {
			set.X[i][j] = float64(code)
		}
		set.Encoders[frame.Columns[col]] = enc
	}

	for i, row := range rows {
		column[i] = row[targetIdx]
	}
	set.TargetEncoder = NewLabelEncoder()
	y, err := set.TargetEncoder.FitTransform(column)
	if err != nil {
		return nil, fmt.Errorf("encode target: %w", err)
	}
	set.Y = y
	return set, nil
}

func isNumericColumn(rows [][]string, col int) bool {
	for _, row := range rows {
		if col >= len(row) {
			continue
		}
		cell := strings.TrimSpace(row[col])
		if cell == "" {
			continue
		}
		if _, err := strconv.ParseFloat(cell, 64); err != nil {
			return false
		}
	}
	return true
}
