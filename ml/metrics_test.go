package ml

import (
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestClassificationReport(t *testing.T) {
	classes := []string{"Dropout", "Enrolled", "Graduate"}
	yTrue := []int{0, 0, 2, 2, 2, 0}
	yPred := []int{0, 2, 2, 2, 0, 0}

	report, err := ClassificationReport(yTrue, yPred, classes)
	require.NoError(t, err)

	assert.InDelta(t, 4.0/6, report.Accuracy, 1e-12)
	assert.Equal(t, 6, report.Samples)
	require.Len(t, report.Classes, 3)

	dropout := report.Classes[0]
	assert.Equal(t, "Dropout", dropout.Class)
	assert.InDelta(t, 2.0/3, dropout.Precision, 1e-12)
	assert.InDelta(t, 2.0/3, dropout.Recall, 1e-12)
	assert.Equal(t, 3, dropout.Support)

	// Enrolled never occurs in either vector: zero metrics, no error.
	enrolled := report.Classes[1]
	assert.Equal(t, ClassMetrics{Class: "Enrolled"}, enrolled)

	assert.InDelta(t, (2.0/3+0+2.0/3)/3, report.MacroAvg.Recall, 1e-12)
	assert.InDelta(t, 2.0/3, report.WeightedAvg.Recall, 1e-12)
	assert.Equal(t, 6, report.WeightedAvg.Support)

	text := report.String()
	assert.True(t, strings.Contains(text, "precision"))
	assert.True(t, strings.Contains(text, "Enrolled"))
	assert.True(t, strings.Contains(text, "weighted avg"))
}

func TestClassificationReportErrors(t *testing.T) {
	_, err := ClassificationReport([]int{0}, []int{0, 1}, []string{"a", "b"})
	assert.Error(t, err)

	_, err = ClassificationReport([]int{0}, []int{5}, []string{"a", "b"})
	assert.Error(t, err)
}

func TestAccuracy(t *testing.T) {
	assert.Equal(t, 0.0, Accuracy(nil, nil))
	assert.Equal(t, 0.5, Accuracy([]int{1, 2}, []int{1, 0}))
}
