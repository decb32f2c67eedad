package config

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"studentoutcome/ml"
)

func writeConfig(t *testing.T, body string) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), "config.yaml")
	require.NoError(t, os.WriteFile(path, []byte(body), 0o644))
	return path
}

func TestDefaultIsValid(t *testing.T) {
	cfg := Default()
	require.NoError(t, cfg.Validate())
	assert.Equal(t, 3, cfg.Dataset.SkipLines)
	assert.Equal(t, "Target", cfg.Dataset.Target)
	assert.Equal(t, ',', cfg.Dataset.CSVDelimiter())

	params := cfg.Training.Params()
	assert.Equal(t, ml.ModelTypeKNN, params.ModelType)
	assert.Equal(t, 3, params.K)
	assert.Equal(t, int64(42), params.Seed)
	assert.InDelta(t, 0.2, params.TestRatio, 1e-12)
}

func TestLoadOverridesDefaults(t *testing.T) {
	path := writeConfig(t, `
dataset:
  path: /data/students.csv
  delimiter: ";"
  encoding: latin1
training:
  model_type: decision_tree
  seed: 7
model:
  bundle_path: /models/b.json
  watch: true
  debounce: 1s
http:
  port: 9090
log:
  level: debug
  format: console
`)
	cfg, err := Load(path)
	require.NoError(t, err)

	assert.Equal(t, "/data/students.csv", cfg.Dataset.Path)
	assert.Equal(t, ';', cfg.Dataset.CSVDelimiter())
	assert.Equal(t, "latin1", cfg.Dataset.Encoding)
	assert.Equal(t, "Target", cfg.Dataset.Target)
	assert.Equal(t, 3, cfg.Dataset.SkipLines)
	assert.Equal(t, ml.ModelTypeDecisionTree, cfg.Training.ModelType)
	assert.Equal(t, int64(7), cfg.Training.Seed)
	assert.True(t, cfg.Model.Watch)
	assert.Equal(t, time.Second, cfg.Model.Debounce)
	assert.Equal(t, 9090, cfg.Http.Port)
	assert.Equal(t, "console", cfg.Log.Format)
}

func TestLoadRejectsInvalid(t *testing.T) {
	tests := []struct {
		name string
		body string
	}{
		{"unknown model", "training:\n  model_type: svm\n"},
		{"ratio out of range", "training:\n  test_ratio: 1.5\n"},
		{"bad port", "http:\n  port: 70000\n"},
		{"bad log level", "log:\n  level: loud\n"},
		{"long delimiter", "dataset:\n  delimiter: ';;'\n"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := Load(writeConfig(t, tt.body))
			assert.Error(t, err)
		})
	}
}

func TestLoadMissingFile(t *testing.T) {
	_, err := Load(filepath.Join(t.TempDir(), "nope.yaml"))
	assert.Error(t, err)
}
