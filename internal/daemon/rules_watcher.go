package daemon

import (
	"context"
	"log/slog"
	"path/filepath"
	"sync"
	"time"

	"github.com/fsnotify/fsnotify"

	"github.com/dipmndl/cdk-digital-twin-r2ex/internal/classifier"
	ferrors "github.com/dipmndl/cdk-digital-twin-r2ex/internal/foundation/errors"
	"github.com/dipmndl/cdk-digital-twin-r2ex/internal/logfields"
)

// RuleReloader swaps the active classification rules.
type RuleReloader interface {
	Reload(rules classifier.RuleSet) error
}

// RulesWatcher reloads the classifier when the rules file changes.
type RulesWatcher struct {
	path     string
	base     classifier.RuleSet
	target   RuleReloader
	watcher  *fsnotify.Watcher
	debounce time.Duration
	reloadCh chan struct{}
	stopOnce sync.Once
	stopCh   chan struct{}
	done     sync.WaitGroup
}

// NewRulesWatcher watches path. base supplies the rules the file overlays.
func NewRulesWatcher(path string, base classifier.RuleSet, target RuleReloader) (*RulesWatcher, error) {
	abs, err := filepath.Abs(path)
	if err != nil {
		return nil, ferrors.ConfigurationError("failed to resolve rules path").WithCause(err).WithContext("path", path).Build()
	}
	w, err := fsnotify.NewWatcher()
	if err != nil {
		return nil, ferrors.WrapError(err, ferrors.CategoryInternal, "failed to create file watcher").Build()
	}
	return &RulesWatcher{
		path:     abs,
		base:     base,
		target:   target,
		watcher:  w,
		debounce: time.Second,
		reloadCh: make(chan struct{}, 1),
		stopCh:   make(chan struct{}),
	}, nil
}

// Start watches the directory holding the rules file; editors often replace
// files instead of writing them in place.
func (rw *RulesWatcher) Start(ctx context.Context) error {
	dir := filepath.Dir(rw.path)
	if err := rw.watcher.Add(dir); err != nil {
		return ferrors.WrapError(err, ferrors.CategoryConfig, "failed to watch rules directory").WithContext("dir", dir).Build()
	}
	slog.Info("Watching classification rules", logfields.Path(rw.path))

	rw.done.Add(2)
	go rw.watchLoop(ctx)
	go rw.reloadLoop(ctx)
	return nil
}

// Stop ends both loops and closes the watcher.
func (rw *RulesWatcher) Stop() {
	rw.stopOnce.Do(func() {
		close(rw.stopCh)
		if err := rw.watcher.Close(); err != nil {
			slog.Warn("Rules watcher close failed", logfields.Error(err))
		}
		rw.done.Wait()
	})
}

func (rw *RulesWatcher) watchLoop(ctx context.Context) {
	defer rw.done.Done()
	name := filepath.Base(rw.path)
	for {
		select {
		case <-ctx.Done():
			return
		case <-rw.stopCh:
			return
		case event, ok := <-rw.watcher.Events:
			if !ok {
				return
			}
			if filepath.Base(event.Name) != name {
				continue
			}
			switch {
			case event.Has(fsnotify.Write), event.Has(fsnotify.Create), event.Has(fsnotify.Rename):
				slog.Debug("Rules file changed", logfields.Path(event.Name), slog.String("op", event.Op.String()))
				rw.trigger()
			case event.Has(fsnotify.Remove):
				slog.Warn("Rules file removed; keeping current rules", logfields.Path(event.Name))
			}
		case err, ok := <-rw.watcher.Errors:
			if !ok {
				return
			}
			slog.Error("Rules watcher error", logfields.Error(err))
		}
	}
}

func (rw *RulesWatcher) reloadLoop(ctx context.Context) {
	defer rw.done.Done()
	var timer *time.Timer
	var fire <-chan time.Time
	for {
		select {
		case <-ctx.Done():
			if timer != nil {
				timer.Stop()
			}
			return
		case <-rw.stopCh:
			if timer != nil {
				timer.Stop()
			}
			return
		case <-rw.reloadCh:
			if timer != nil {
				timer.Stop()
			}
			timer = time.NewTimer(rw.debounce)
			fire = timer.C
		case <-fire:
			fire = nil
			if err := rw.reload(); err != nil {
				slog.Error("Failed to reload classification rules", logfields.Path(rw.path), logfields.Error(err))
			}
		}
	}
}

func (rw *RulesWatcher) trigger() {
	select {
	case rw.reloadCh <- struct{}{}:
	default:
	}
}

// reload applies the file. A rule set that fails to load or compile leaves
// the current rules in place.
func (rw *RulesWatcher) reload() error {
	rules, err := classifier.LoadRules(rw.path, rw.base)
	if err != nil {
		return err
	}
	if err := rw.target.Reload(rules); err != nil {
		return err
	}
	slog.Info("Classification rules reloaded", logfields.Path(rw.path))
	return nil
}
