package lifecycle

import (
	"log/slog"
	"sync"

	"golang.org/x/net/html"

	"github.com/vango-dev/livedom/pkg/dom"
	"github.com/vango-dev/livedom/pkg/sched"
)

// Watcher connects live nodes to the Owners that must unmount when the
// nodes leave the document.
type Watcher struct {
	observer dom.UnmountObserver
	loop     *sched.Loop
	logger   *slog.Logger

	mu     sync.Mutex
	active map[*html.Node]*Owner
}

// NewWatcher creates a Watcher. With a nil loop Unmount runs synchronously
// inside the observer callback.
func NewWatcher(observer dom.UnmountObserver, loop *sched.Loop, logger *slog.Logger) *Watcher {
	if logger == nil {
		logger = slog.Default()
	}
	return &Watcher{
		observer: observer,
		loop:     loop,
		logger:   logger.With("component", "watcher"),
		active:   make(map[*html.Node]*Owner),
	}
}

// NotifyOnUnmount unmounts owner once node is removed. At most one watcher
// exists per node; it reports false when node is already watched.
func (w *Watcher) NotifyOnUnmount(node *html.Node, owner *Owner) bool {
	w.mu.Lock()
	if _, ok := w.active[node]; ok {
		w.mu.Unlock()
		return false
	}
	w.active[node] = owner
	w.mu.Unlock()

	w.observer.Watch(node, func() { w.fire(node) })
	return true
}

// Forget disconnects node without unmounting its owner.
func (w *Watcher) Forget(node *html.Node) {
	w.mu.Lock()
	_, ok := w.active[node]
	delete(w.active, node)
	w.mu.Unlock()
	if ok {
		w.observer.Unwatch(node)
	}
}

// Watching reports whether node has an active watcher.
func (w *Watcher) Watching(node *html.Node) bool {
	w.mu.Lock()
	defer w.mu.Unlock()
	_, ok := w.active[node]
	return ok
}

// Len returns the number of active watchers.
func (w *Watcher) Len() int {
	w.mu.Lock()
	defer w.mu.Unlock()
	return len(w.active)
}

func (w *Watcher) fire(node *html.Node) {
	w.mu.Lock()
	owner, ok := w.active[node]
	delete(w.active, node)
	w.mu.Unlock()
	if !ok {
		return
	}
	w.observer.Unwatch(node)

	w.logger.Debug("node removed", "component", owner.Name(), "owner", owner.ID())
	if w.loop == nil {
		owner.Unmount()
		return
	}
	w.loop.Defer(owner.Unmount)
}
