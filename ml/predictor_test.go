package ml

import (
	"encoding/json"
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestPredictorPredict(t *testing.T) {
	p := NewPredictor(trainStudents(t).Bundle)

	tests := []struct {
		input map[string]any
		want  string
	}{
		{map[string]any{"Age": 20, "Course": "Nursing", "Grade": 17.0}, "Graduate"},
		{map[string]any{"Age": json.Number("33"), "Course": "Design", "Grade": json.Number("6")}, "Dropout"},
		{map[string]any{"Age": "26", "Course": "Management", "Grade": "12.5"}, "Enrolled"},
	}
	for _, tt := range tests {
		prediction, err := p.Predict(tt.input)
		require.NoError(t, err)
		assert.Equal(t, tt.want, prediction.Label)

		require.Len(t, prediction.Probabilities, 3)
		sum := 0.0
		for i, cp := range prediction.Probabilities {
			assert.Equal(t, p.Bundle().Classes()[i], cp.Class)
			sum += cp.Probability
		}
		assert.InDelta(t, 1.0, sum, 1e-12)
		assert.Equal(t, tt.want, prediction.Probabilities[prediction.ClassIndex].Class)
	}
}

func TestPredictorSchemaErrors(t *testing.T) {
	p := NewPredictor(trainStudents(t).Bundle)

	tests := []struct {
		name    string
		input   map[string]any
		kind    SchemaErrorKind
		feature string
	}{
		{"missing", map[string]any{"Age": 20, "Course": "Nursing"}, MissingFeature, "Grade"},
		{"extra", map[string]any{"Age": 20, "Course": "Nursing", "Grade": 1, "Zeta": 1, "Alpha": 2}, UnknownFeature, "Alpha"},
		{"unseen category", map[string]any{"Age": 20, "Course": "Law", "Grade": 1}, UnknownCategory, "Course"},
		{"not a number", map[string]any{"Age": "twenty", "Course": "Nursing", "Grade": 1}, InvalidValue, "Age"},
		{"null", map[string]any{"Age": 20, "Course": nil, "Grade": 1}, InvalidValue, "Course"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			prediction, err := p.Predict(tt.input)
			assert.Nil(t, prediction)

			var schemaErr *SchemaError
			require.True(t, errors.As(err, &schemaErr), "got %v", err)
			assert.Equal(t, tt.kind, schemaErr.Kind)
			assert.Equal(t, tt.feature, schemaErr.Feature)
			assert.True(t, IsSchemaError(err))
		})
	}
}

func TestCategoryValueCanonicalForm(t *testing.T) {
	for raw, want := range map[any]string{
		1.0:                 "1",
		2.5:                 "2.5",
		7:                   "7",
		json.Number("3"):    "3",
		json.Number("1.0"):  "1",
		json.Number("2.50"): "2.5",
		json.Number("1e9"):  "1000000000",
		"Nursing":           "Nursing",
	} {
		got, err := CategoryValue(raw)
		require.NoError(t, err)
		assert.Equal(t, want, got)
	}
	_, err := CategoryValue([]int{1})
	assert.Error(t, err)
}

func TestNumericValue(t *testing.T) {
	v, err := NumericValue(" 12.5 ")
	require.NoError(t, err)
	assert.Equal(t, 12.5, v)

	v, err = NumericValue(true)
	require.NoError(t, err)
	assert.Equal(t, 1.0, v)

	_, err = NumericValue("abc")
	assert.Error(t, err)
	_, err = NumericValue(nil)
	assert.Error(t, err)
	_, err = NumericValue("NaN")
	assert.Error(t, err)
}

func TestCachedPredictor(t *testing.T) {
	source := NewStaticSource(trainStudents(t).Bundle)
	cached, err := NewCachedPredictor(source, 8)
	require.NoError(t, err)

	input := map[string]any{"Age": 20, "Course": "Nursing", "Grade": 17.0}
	first, hit, err := cached.Predict(input)
	require.NoError(t, err)
	assert.False(t, hit)

	// Same values in a different representation scale to the same vector.
	second, hit, err := cached.Predict(map[string]any{"Age": "20", "Course": " Nursing", "Grade": json.Number("17")})
	require.NoError(t, err)
	assert.True(t, hit)
	assert.Equal(t, first, second)
	assert.Equal(t, 1, cached.Len())

	// Callers get copies.
	second.Probabilities[0].Probability = 42
	third, hit, err := cached.Predict(input)
	require.NoError(t, err)
	assert.True(t, hit)
	assert.NotEqual(t, 42.0, third.Probabilities[0].Probability)

	_, _, err = cached.Predict(map[string]any{"Age": 20})
	assert.True(t, IsSchemaError(err))
	assert.Equal(t, 1, cached.Len())

	cached.Purge()
	assert.Equal(t, 0, cached.Len())
}
