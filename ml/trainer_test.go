package ml

import (
	"fmt"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// studentFrame is a small, well separated dataset with one categorical
// feature, one integer feature and one grade.
func studentFrame() Frame {
	var rows [][]string
	add := func(age int, course string, grade float64, target string) {
		rows = append(rows, []string{fmt.Sprint(age), course, fmt.Sprint(grade), target})
	}
	for i := 0; i < 6; i++ {
		add(30+i, "Design", 5+float64(i)*0.5, "Dropout")
		add(19+i, "Nursing", 16+float64(i)*0.5, "Graduate")
		add(24+i, "Management", 11+float64(i)*0.5, "Enrolled")
	}
	// dropped: empty target and empty numeric cell
	rows = append(rows, []string{"20", "Nursing", "14", ""})
	rows = append(rows, []string{"", "Nursing", "14", "Graduate"})
	return Frame{Columns: []string{"Age", "Course", "Grade", "Target"}, Rows: rows, Source: "students.csv"}
}

func fixedTrainer(params TrainingParams) *Trainer {
	tr := NewTrainer(params, "Target", nil)
	tr.now = func() time.Time { return time.Date(2024, 6, 1, 8, 0, 0, 0, time.UTC) }
	return tr
}

func trainStudents(t *testing.T) *TrainResult {
	t.Helper()
	result, err := fixedTrainer(TrainingParams{}).Train(studentFrame())
	require.NoError(t, err)
	return result
}

func TestTrainerTrain(t *testing.T) {
	result := trainStudents(t)
	b := result.Bundle

	assert.Equal(t, []string{"Age", "Course", "Grade"}, b.FeatureNames)
	assert.Equal(t, []string{"Course"}, b.CategoricalColumns)
	assert.Equal(t, []string{"Dropout", "Enrolled", "Graduate"}, b.Classes())
	assert.Equal(t, []string{"Design", "Management", "Nursing"}, b.Encoders["Course"].Classes())
	assert.Equal(t, FeatureFingerprint(b.FeatureNames), b.Fingerprint)

	assert.Equal(t, 18, b.Dataset.Rows)
	assert.Equal(t, 2, b.Dataset.DroppedRows)
	assert.Equal(t, 14, b.Dataset.TrainRows)
	assert.Equal(t, 4, b.Dataset.TestRows)
	assert.Equal(t, "students.csv", b.Dataset.Path)

	assert.Equal(t, ModelTypeKNN, b.Params.ModelType)
	assert.Equal(t, DefaultNeighbors, b.Params.K)
	assert.Equal(t, ModelTypeKNN, b.Classifier.Name())
	assert.Same(t, result.Report, b.Metrics)
	assert.Len(t, result.Report.Classes, 3)
	assert.Equal(t, 1.0, result.Report.Accuracy)
}

func TestTrainerDeterministic(t *testing.T) {
	a := trainStudents(t)
	b := trainStudents(t)

	assert.Equal(t, a.Split, b.Split)
	assert.Equal(t, a.Bundle.Scaler, b.Bundle.Scaler)
	assert.Equal(t, a.Bundle.Classes(), b.Bundle.Classes())
	assert.Equal(t, a.Bundle.Encoders["Course"].Classes(), b.Bundle.Encoders["Course"].Classes())
	assert.Equal(t, a.Report, b.Report)
	assert.Equal(t, a.Bundle.Classifier, b.Bundle.Classifier)
}

func TestTrainerDecisionTree(t *testing.T) {
	result, err := fixedTrainer(TrainingParams{ModelType: ModelTypeDecisionTree, MaxDepth: 4}).Train(studentFrame())
	require.NoError(t, err)
	assert.Equal(t, ModelTypeDecisionTree, result.Bundle.Classifier.Name())
	assert.Equal(t, 3, len(result.Report.Classes))
}

func TestTrainerErrors(t *testing.T) {
	frame := studentFrame()
	_, err := NewTrainer(TrainingParams{}, "Outcome", nil).Train(frame)
	assert.ErrorIs(t, err, ErrMissingTarget)

	_, err = NewTrainer(TrainingParams{ModelType: "svm"}, "Target", nil).Train(frame)
	assert.ErrorIs(t, err, ErrUnknownModel)

	lonely := Frame{
		Columns: []string{"Age", "Target"},
		Rows:    [][]string{{"20", "Graduate"}, {"21", "Graduate"}, {"40", "Dropout"}},
	}
	_, err = NewTrainer(TrainingParams{}, "Target", nil).Train(lonely)
	assert.ErrorIs(t, err, ErrTooFewPerClass)
}
