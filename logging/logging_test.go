package logging

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"studentoutcome/config"
)

func TestNewWritesRotatedFile(t *testing.T) {
	path := filepath.Join(t.TempDir(), "service.log")
	cfg := config.Default().Log
	cfg.File = path

	logger, err := New(cfg)
	require.NoError(t, err)
	logger.Info("bundle loaded")
	logger.Debug("hidden at info level")
	_ = logger.Sync()

	data, err := os.ReadFile(path)
	require.NoError(t, err)
	assert.Contains(t, string(data), `"msg":"bundle loaded"`)
	assert.NotContains(t, string(data), "hidden at info level")
}

func TestNewRejectsBadSettings(t *testing.T) {
	cfg := config.Default().Log
	cfg.Level = "chatty"
	_, err := New(cfg)
	assert.Error(t, err)

	cfg = config.Default().Log
	cfg.Format = "xml"
	_, err = New(cfg)
	assert.Error(t, err)
}

func TestRotator(t *testing.T) {
	cfg := config.LogConfig{File: "/var/log/x.log", MaxSizeMB: 10, MaxBackups: 2, MaxAgeDays: 5}
	r := Rotator(cfg)
	assert.Equal(t, "/var/log/x.log", r.Filename)
	assert.Equal(t, 10, r.MaxSize)
	assert.Equal(t, 2, r.MaxBackups)
	assert.Equal(t, 5, r.MaxAge)
}
