package ml

import (
	"context"
	"errors"
	"os"
	"path/filepath"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
)

func trainAt(t *testing.T, at time.Time) *Bundle {
	t.Helper()
	tr := NewTrainer(TrainingParams{}, "Target", nil)
	tr.now = func() time.Time { return at }
	result, err := tr.Train(studentFrame())
	require.NoError(t, err)
	return result.Bundle
}

func TestBundleSourceReload(t *testing.T) {
	path := filepath.Join(t.TempDir(), "bundle.json")
	first := time.Date(2024, 1, 1, 0, 0, 0, 0, time.UTC)
	require.NoError(t, trainAt(t, first).Save(path))

	source, err := NewBundleSource(path, nil, zap.NewNop())
	require.NoError(t, err)
	assert.True(t, source.Bundle().CreatedAt.Equal(first))

	var reloaded atomic.Int32
	source.OnReload(func(*Bundle) { reloaded.Add(1) })

	second := first.Add(time.Hour)
	require.NoError(t, trainAt(t, second).Save(path))
	require.NoError(t, source.Reload())
	assert.True(t, source.Bundle().CreatedAt.Equal(second))
	assert.EqualValues(t, 1, reloaded.Load())

	// A broken file keeps the previous bundle serving.
	require.NoError(t, os.WriteFile(path, []byte("{not json"), 0o644))
	assert.Error(t, source.Reload())
	assert.True(t, source.Bundle().CreatedAt.Equal(second))
	assert.EqualValues(t, 1, reloaded.Load())
}

func TestBundleSourceValidator(t *testing.T) {
	path := filepath.Join(t.TempDir(), "bundle.json")
	require.NoError(t, trainStudents(t).Bundle.Save(path))

	reject := errors.New("feature set differs")
	_, err := NewBundleSource(path, func(*Bundle) error { return reject }, nil)
	assert.ErrorIs(t, err, reject)

	_, err = NewBundleSource(filepath.Join(t.TempDir(), "missing.json"), nil, nil)
	assert.Error(t, err)
}

func TestStaticSourceCannotReload(t *testing.T) {
	source := NewStaticSource(trainStudents(t).Bundle)
	assert.NotNil(t, source.Current())
	assert.Error(t, source.Reload())
	assert.Error(t, source.Watch(context.Background(), time.Millisecond))
}

func TestBundleSourceWatch(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "bundle.json")
	first := time.Date(2024, 1, 1, 0, 0, 0, 0, time.UTC)
	require.NoError(t, trainAt(t, first).Save(path))

	source, err := NewBundleSource(path, nil, zap.NewNop())
	require.NoError(t, err)
	var failures atomic.Int32
	source.OnReloadError(func(error) { failures.Add(1) })

	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan error, 1)
	go func() { done <- source.Watch(ctx, 20*time.Millisecond) }()
	t.Cleanup(func() {
		cancel()
		<-done
	})

	// Give the watcher time to register the directory.
	time.Sleep(100 * time.Millisecond)

	// Unrelated files in the same directory are ignored.
	require.NoError(t, os.WriteFile(filepath.Join(dir, "notes.txt"), []byte("x"), 0o644))

	second := first.Add(24 * time.Hour)
	require.NoError(t, trainAt(t, second).Save(path))

	require.Eventually(t, func() bool {
		return source.Bundle().CreatedAt.Equal(second)
	}, 5*time.Second, 20*time.Millisecond)

	// A bad replacement is logged and ignored.
	require.NoError(t, os.WriteFile(path, []byte("garbage"), 0o644))
	require.Eventually(t, func() bool { return failures.Load() > 0 }, 5*time.Second, 20*time.Millisecond)
	assert.True(t, source.Bundle().CreatedAt.Equal(second))
}

func TestResetTimerDropsStaleTick(t *testing.T) {
	timer := time.NewTimer(time.Millisecond)
	time.Sleep(20 * time.Millisecond)

	resetTimer(timer, time.Hour)
	select {
	case <-timer.C:
		t.Fatal("stale tick delivered after reset")
	case <-time.After(50 * time.Millisecond):
	}
	timer.Stop()
}

func TestBundleSourceWatchDebounces(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "bundle.json")
	first := time.Date(2024, 1, 1, 0, 0, 0, 0, time.UTC)
	require.NoError(t, trainAt(t, first).Save(path))

	source, err := NewBundleSource(path, nil, zap.NewNop())
	require.NoError(t, err)
	var reloads atomic.Int32
	source.OnReload(func(*Bundle) { reloads.Add(1) })

	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan error, 1)
	go func() { done <- source.Watch(ctx, 300*time.Millisecond) }()
	t.Cleanup(func() {
		cancel()
		<-done
	})
	time.Sleep(100 * time.Millisecond)

	// a burst of replacements inside one debounce window reloads once
	last := first
	for i := 1; i <= 3; i++ {
		last = first.Add(time.Duration(i) * time.Hour)
		require.NoError(t, trainAt(t, last).Save(path))
		time.Sleep(50 * time.Millisecond)
	}

	require.Eventually(t, func() bool {
		return source.Bundle().CreatedAt.Equal(last)
	}, 5*time.Second, 20*time.Millisecond)
	time.Sleep(400 * time.Millisecond)
	assert.EqualValues(t, 1, reloads.Load())
}
