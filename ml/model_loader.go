package ml

import (
	"context"
	"errors"
	"fmt"
	"path/filepath"
	"sync/atomic"
	"time"

	"github.com/fsnotify/fsnotify"
	"go.uber.org/zap"
)

// BundleValidator rejects a bundle the service cannot serve.
type BundleValidator func(*Bundle) error

// BundleSource owns the currently served bundle. Each loaded bundle stays
// immutable; a replacement on disk is swapped in as a whole.
type BundleSource struct {
	path     string
	validate BundleValidator
	logger   *zap.Logger
	current  atomic.Pointer[Predictor]
	onReload []func(*Bundle)
	onError  []func(error)
}

// NewBundleSource loads the bundle at path. An error here means the service
// must not start.
func NewBundleSource(path string, validate BundleValidator, logger *zap.Logger) (*BundleSource, error) {
	if logger == nil {
		logger = zap.NewNop()
	}
	s := &BundleSource{path: path, validate: validate, logger: logger}
	bundle, err := s.load()
	if err != nil {
		return nil, err
	}
	s.current.Store(NewPredictor(bundle))
	return s, nil
}

// NewStaticSource serves a bundle that is already in memory.
func NewStaticSource(bundle *Bundle) *BundleSource {
	s := &BundleSource{logger: zap.NewNop()}
	s.current.Store(NewPredictor(bundle))
	return s
}

func (s *BundleSource) Current() *Predictor { return s.current.Load() }

func (s *BundleSource) Bundle() *Bundle { return s.Current().Bundle() }

// OnReload registers a callback run after a new bundle is swapped in.
// Register callbacks before Watch starts.
func (s *BundleSource) OnReload(fn func(*Bundle)) {
	s.onReload = append(s.onReload, fn)
}

// OnReloadError registers a callback run when a watched replacement is
// rejected.
func (s *BundleSource) OnReloadError(fn func(error)) {
	s.onError = append(s.onError, fn)
}

func (s *BundleSource) load() (*Bundle, error) {
	bundle, err := LoadBundle(s.path)
	if err != nil {
		return nil, err
	}
	if s.validate != nil {
		if err := s.validate(bundle); err != nil {
			return nil, fmt.Errorf("bundle %s rejected: %w", s.path, err)
		}
	}
	return bundle, nil
}

// Reload loads the bundle from disk and swaps it in. On failure the previous
// bundle keeps serving.
func (s *BundleSource) Reload() error {
	if s.path == "" {
		return errors.New("bundle source has no path")
	}
	bundle, err := s.load()
	if err != nil {
		return err
	}
	s.current.Store(NewPredictor(bundle))
	s.logger.Info("model bundle reloaded",
		zap.String("path", s.path),
		zap.Time("created_at", bundle.CreatedAt),
		zap.String("fingerprint", bundle.Fingerprint),
	)
	for _, fn := range s.onReload {
		fn(bundle)
	}
	return nil
}

// Watch reloads the bundle whenever its file is created, written or renamed
// into place. The directory is watched rather than the file so atomic
// replacement by rename is seen. Watch blocks until ctx is done.
func (s *BundleSource) Watch(ctx context.Context, debounce time.Duration) error {
	if s.path == "" {
		return errors.New("bundle source has no path")
	}
	watcher, err := fsnotify.NewWatcher()
	if err != nil {
		return err
	}
	defer watcher.Close()

	dir := filepath.Dir(s.path)
	if err := watcher.Add(dir); err != nil {
		return fmt.Errorf("watch %s: %w", dir, err)
	}
	if debounce <= 0 {
		debounce = 250 * time.Millisecond
	}
	target := filepath.Clean(s.path)

	var timer *time.Timer
	var fire <-chan time.Time
	for {
		select {
		case <-ctx.Done():
			if timer != nil {
				timer.Stop()
			}
			return nil
		case event, ok := <-watcher.Events:
			if !ok {
				return nil
			}
			if filepath.Clean(event.Name) != target {
				continue
			}
			if !event.Has(fsnotify.Create) && !event.Has(fsnotify.Write) && !event.Has(fsnotify.Rename) {
				continue
			}
			if timer == nil {
				timer = time.NewTimer(debounce)
			} else {
				resetTimer(timer, debounce)
			}
			fire = timer.C
		case <-fire:
			fire = nil
			if err := s.Reload(); err != nil {
				s.logger.Warn("model bundle reload failed, keeping previous bundle",
					zap.String("path", s.path), zap.Error(err))
				for _, fn := range s.onError {
					fn(err)
				}
			}
		case err, ok := <-watcher.Errors:
			if !ok {
				return nil
			}
			s.logger.Warn("bundle watcher error", zap.Error(err))
		}
	}
}

// resetTimer restarts t, dropping a tick that fired but was not received so
// the next receive waits the full delay.
func resetTimer(t *time.Timer, d time.Duration) {
	if !t.Stop() {
		select {
		case <-t.C:
		default:
		}
	}
	t.Reset(d)
}
