package engine

import (
	"context"
	"fmt"
	"os"
	"path/filepath"
	"sync"
	"time"

	"github.com/fsnotify/fsnotify"
	"go.uber.org/zap"
)

// DefaultDebounce is how long a script must stay quiet after a change
// before it is re-evaluated.
const DefaultDebounce = 300 * time.Millisecond

// Report is the outcome of one watched evaluation.
type Report struct {
	Run    *Run
	Errors []EvalError
	Err    error
}

// Watcher re-evaluates a driver script whenever it is saved.
//
// Editors often replace files on save instead of writing them in place, so
// the watcher follows the script's directory and filters by name.
type Watcher struct {
	eng      *Engine
	path     string
	debounce time.Duration
	watcher  *fsnotify.Watcher
	log      *zap.Logger

	mu      sync.Mutex
	pending time.Time // zero when no change is waiting
	running bool
	closed  bool
	stopCh  chan struct{}
	doneCh  chan struct{}
}

// NewWatcher creates a Watcher for the script at path.
func NewWatcher(eng *Engine, path string, debounce time.Duration) (*Watcher, error) {
	abs, err := filepath.Abs(path)
	if err != nil {
		return nil, fmt.Errorf("watch: %w", err)
	}
	if debounce <= 0 {
		debounce = DefaultDebounce
	}
	fw, err := fsnotify.NewWatcher()
	if err != nil {
		return nil, fmt.Errorf("watch: %w", err)
	}
	return &Watcher{
		eng:      eng,
		path:     abs,
		debounce: debounce,
		watcher:  fw,
		log:      eng.log,
		stopCh:   make(chan struct{}),
		doneCh:   make(chan struct{}),
	}, nil
}

// Start evaluates the script once and then on every settled change,
// sending each outcome to reports. It does not block. A Watcher that failed
// to start is closed and cannot be started again.
func (w *Watcher) Start(ctx context.Context, reports chan<- Report) error {
	w.mu.Lock()
	defer w.mu.Unlock()
	if w.running {
		return nil
	}
	if w.closed {
		return fmt.Errorf("watch %s: watcher is closed", w.path)
	}

	dir := filepath.Dir(w.path)
	if err := w.watcher.Add(dir); err != nil {
		w.closed = true
		close(w.doneCh)
		if cerr := w.watcher.Close(); cerr != nil {
			w.log.Warn("closing watcher", zap.Error(cerr))
		}
		return fmt.Errorf("watch %s: %w", dir, err)
	}
	w.running = true
	w.log.Info("watching script", zap.String("path", w.path))

	go w.loop(ctx, reports)
	return nil
}

// Stop stops the watcher and waits for its loop to exit.
func (w *Watcher) Stop() {
	w.mu.Lock()
	if !w.running {
		w.mu.Unlock()
		return
	}
	w.running = false
	w.closed = true
	w.mu.Unlock()

	close(w.stopCh)
	<-w.doneCh

	if err := w.watcher.Close(); err != nil {
		w.log.Warn("closing watcher", zap.Error(err))
	}
}

// Done is closed once the watch loop has exited.
func (w *Watcher) Done() <-chan struct{} {
	return w.doneCh
}

func (w *Watcher) loop(ctx context.Context, reports chan<- Report) {
	defer close(w.doneCh)

	w.evaluate(ctx, reports)

	tick := time.NewTicker(w.debounce / 3)
	defer tick.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case <-w.stopCh:
			return

		case ev, ok := <-w.watcher.Events:
			if !ok {
				return
			}
			if filepath.Clean(ev.Name) != w.path {
				continue
			}
			if ev.Op&(fsnotify.Write|fsnotify.Create|fsnotify.Rename) == 0 {
				continue
			}
			w.log.Debug("script changed", zap.String("op", ev.Op.String()))
			w.mu.Lock()
			w.pending = time.Now()
			w.mu.Unlock()

		case err, ok := <-w.watcher.Errors:
			if !ok {
				return
			}
			w.log.Warn("watch error", zap.Error(err))

		case <-tick.C:
			w.mu.Lock()
			due := !w.pending.IsZero() && time.Since(w.pending) >= w.debounce
			if due {
				w.pending = time.Time{}
			}
			w.mu.Unlock()
			if due {
				w.evaluate(ctx, reports)
			}
		}
	}
}

func (w *Watcher) evaluate(ctx context.Context, reports chan<- Report) {
	var rep Report
	src, err := os.ReadFile(w.path)
	if err != nil {
		if os.IsNotExist(err) {
			// Mid-save; the following create event re-triggers.
			w.log.Debug("script missing", zap.String("path", w.path))
			return
		}
		rep.Err = err
	} else {
		rep.Run, rep.Errors, rep.Err = w.eng.Evaluate(string(src))
	}

	select {
	case reports <- rep:
	case <-ctx.Done():
	case <-w.stopCh:
	}
}
