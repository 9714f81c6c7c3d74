// Package inbox watches a drop directory for new source audio. Files that
// appear there are handed to the session for dubbing, replacing the browser
// dropzone for headless use.
package inbox

import (
	"context"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"sync"
	"time"

	"github.com/fsnotify/fsnotify"
	"github.com/sirupsen/logrus"
)

// Handler receives the path of a settled new file.
type Handler func(ctx context.Context, path string)

// Config configures the watcher.
type Config struct {
	Dir         string
	Extensions  []string      // default: common audio/video containers
	SettleDelay time.Duration // quiet period before a file counts as complete, default 500ms
	Handler     Handler
	Logger      *logrus.Logger
}

var defaultExtensions = []string{".wav", ".mp3", ".m4a", ".mp4", ".flac", ".ogg"}

// Watcher debounces filesystem events per path: uploads arrive as many
// write events, and the handler must only fire once the file stops growing.
type Watcher struct {
	dir     string
	exts    map[string]bool
	settle  time.Duration
	handler Handler
	log     *logrus.Entry

	fsw *fsnotify.Watcher

	mu      sync.Mutex
	pending map[string]*time.Timer
	closed  bool
}

// New creates a watcher for cfg.Dir. The directory must exist.
func New(cfg Config) (*Watcher, error) {
	if cfg.Handler == nil {
		return nil, fmt.Errorf("inbox needs a handler")
	}
	info, err := os.Stat(cfg.Dir)
	if err != nil {
		return nil, fmt.Errorf("inbox dir: %w", err)
	}
	if !info.IsDir() {
		return nil, fmt.Errorf("inbox path %s is not a directory", cfg.Dir)
	}
	if cfg.SettleDelay <= 0 {
		cfg.SettleDelay = 500 * time.Millisecond
	}
	if len(cfg.Extensions) == 0 {
		cfg.Extensions = defaultExtensions
	}
	logger := cfg.Logger
	if logger == nil {
		logger = logrus.StandardLogger()
	}

	exts := make(map[string]bool, len(cfg.Extensions))
	for _, e := range cfg.Extensions {
		exts[strings.ToLower(e)] = true
	}
	return &Watcher{
		dir:     cfg.Dir,
		exts:    exts,
		settle:  cfg.SettleDelay,
		handler: cfg.Handler,
		log:     logger.WithField("component", "inbox"),
		pending: make(map[string]*time.Timer),
	}, nil
}

// Start begins watching. It returns once the watch is installed; events are
// handled on background goroutines until ctx is canceled or Close is called.
func (w *Watcher) Start(ctx context.Context) error {
	fsw, err := fsnotify.NewWatcher()
	if err != nil {
		return fmt.Errorf("create watcher: %w", err)
	}
	if err := fsw.Add(w.dir); err != nil {
		fsw.Close()
		return fmt.Errorf("watch %s: %w", w.dir, err)
	}
	w.fsw = fsw
	w.log.WithField("dir", w.dir).Info("watching inbox")

	go w.loop(ctx)
	return nil
}

// Close stops the watcher and cancels pending settle timers.
func (w *Watcher) Close() error {
	w.mu.Lock()
	w.closed = true
	for path, timer := range w.pending {
		timer.Stop()
		delete(w.pending, path)
	}
	w.mu.Unlock()
	if w.fsw != nil {
		return w.fsw.Close()
	}
	return nil
}

func (w *Watcher) loop(ctx context.Context) {
	for {
		select {
		case <-ctx.Done():
			w.Close()
			return
		case ev, ok := <-w.fsw.Events:
			if !ok {
				return
			}
			if ev.Op&(fsnotify.Create|fsnotify.Write) == 0 {
				continue
			}
			if !w.exts[strings.ToLower(filepath.Ext(ev.Name))] {
				continue
			}
			w.touch(ctx, ev.Name)
		case err, ok := <-w.fsw.Errors:
			if !ok {
				return
			}
			w.log.WithError(err).Warn("watch error")
		}
	}
}

// touch resets the settle timer for a path. The handler fires only after the
// path has been quiet for the full settle delay.
func (w *Watcher) touch(ctx context.Context, path string) {
	w.mu.Lock()
	defer w.mu.Unlock()
	if w.closed {
		return
	}
	if timer, ok := w.pending[path]; ok {
		timer.Reset(w.settle)
		return
	}
	w.pending[path] = time.AfterFunc(w.settle, func() {
		w.mu.Lock()
		delete(w.pending, path)
		closed := w.closed
		w.mu.Unlock()
		if closed || ctx.Err() != nil {
			return
		}

		info, err := os.Stat(path)
		if err != nil || info.Size() == 0 {
			return // removed or still empty, skip
		}
		w.log.WithField("file", filepath.Base(path)).Info("inbox pickup")
		w.handler(ctx, path)
	})
}
