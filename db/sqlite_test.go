package db

import (
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"studentoutcome/ml"
)

func openTestStore(t *testing.T) *Store {
	t.Helper()
	store, err := Open(filepath.Join(t.TempDir(), "runs.db"))
	require.NoError(t, err)
	t.Cleanup(func() { store.Close() })
	return store
}

func TestRecordAndListRuns(t *testing.T) {
	store := openTestStore(t)

	base := time.Date(2024, 5, 1, 12, 0, 0, 0, time.UTC)
	for i, acc := range []float64{0.61, 0.72, 0.68} {
		run := &TrainingRun{
			ModelType: ml.ModelTypeKNN,
			Accuracy:  acc,
			Classes: []ml.ClassMetrics{
				{Class: "Dropout", Precision: 0.7, Recall: 0.6, F1: 0.65, Support: 10},
				{Class: "Graduate", Support: 0},
			},
			Rows:        100,
			TrainRows:   80,
			TestRows:    20,
			Seed:        42,
			Fingerprint: "abc",
			BundlePath:  "models/bundle.json",
			TrainedAt:   base.Add(time.Duration(i) * time.Hour),
		}
		require.NoError(t, store.RecordRun(run))
		assert.NotEmpty(t, run.ID)
	}

	runs, err := store.ListRuns(2)
	require.NoError(t, err)
	require.Len(t, runs, 2)
	assert.InDelta(t, 0.68, runs[0].Accuracy, 1e-12)
	assert.InDelta(t, 0.72, runs[1].Accuracy, 1e-12)
	assert.True(t, runs[0].TrainedAt.Equal(base.Add(2*time.Hour)))
	require.Len(t, runs[0].Classes, 2)
	assert.Equal(t, "Dropout", runs[0].Classes[0].Class)
	assert.Equal(t, 10, runs[0].Classes[0].Support)

	all, err := store.ListRuns(0)
	require.NoError(t, err)
	assert.Len(t, all, 3)

	latest, err := store.LatestRun()
	require.NoError(t, err)
	assert.Equal(t, runs[0].ID, latest.ID)
}

func TestLatestRunEmpty(t *testing.T) {
	store := openTestStore(t)

	_, err := store.LatestRun()
	assert.True(t, IsNotFound(err))

	runs, err := store.ListRuns(5)
	require.NoError(t, err)
	assert.Empty(t, runs)
}

func TestNewRun(t *testing.T) {
	created := time.Date(2024, 1, 2, 3, 4, 5, 0, time.UTC)
	result := &ml.TrainResult{
		Bundle: &ml.Bundle{
			CreatedAt:   created,
			Fingerprint: "fp",
			Dataset:     ml.DatasetInfo{Rows: 50, DroppedRows: 2, TrainRows: 40, TestRows: 10},
			Params:      ml.TrainingParams{ModelType: ml.ModelTypeKNN, K: 3, Seed: 42},
		},
		Report: &ml.Report{
			Accuracy:    0.8,
			MacroAvg:    ml.ClassMetrics{F1: 0.7},
			WeightedAvg: ml.ClassMetrics{F1: 0.75},
		},
		Duration: 1500 * time.Millisecond,
	}

	run := NewRun(result, "b.json")
	assert.NotEmpty(t, run.ID)
	assert.Equal(t, ml.ModelTypeKNN, run.ModelType)
	assert.Equal(t, 40, run.TrainRows)
	assert.Equal(t, int64(1500), run.DurationMS)
	assert.Equal(t, "fp", run.Fingerprint)
	assert.True(t, run.TrainedAt.Equal(created))
}
