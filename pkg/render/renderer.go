package render

import (
	"context"
	"log/slog"
	"sync"
	"time"

	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/trace"
	"golang.org/x/net/html"

	"github.com/vango-dev/livedom/internal/errors"
	"github.com/vango-dev/livedom/pkg/dom"
	"github.com/vango-dev/livedom/pkg/lifecycle"
	"github.com/vango-dev/livedom/pkg/observe"
	"github.com/vango-dev/livedom/pkg/sched"
	"github.com/vango-dev/livedom/pkg/vdom"
)

// Option configures a Renderer.
type Option func(*Renderer)

// WithLogger sets the renderer logger.
func WithLogger(logger *slog.Logger) Option {
	return func(r *Renderer) {
		if logger != nil {
			r.logger = logger
		}
	}
}

// WithMetrics records patch operations, render durations and lifecycle
// events.
func WithMetrics(m *observe.Metrics) Option {
	return func(r *Renderer) { r.metrics = m }
}

// WithTracer traces every Render, Patch and Hydrate call.
func WithTracer(tracer trace.Tracer) Option {
	return func(r *Renderer) { r.tracer = tracer }
}

// WithErrorView sets the view drawn in place of a component that failed
// without an error boundary.
func WithErrorView(fn func(error) *vdom.VNode) Option {
	return func(r *Renderer) {
		if fn != nil {
			r.errorView = fn
		}
	}
}

// WithObserver replaces the removal observer used to detect nodes removed by
// other code. The default observes the renderer's document.
func WithObserver(observer dom.UnmountObserver) Option {
	return func(r *Renderer) { r.observer = observer }
}

// WithContext sets the parent context of every component Owner.
func WithContext(ctx context.Context) Option {
	return func(r *Renderer) {
		if ctx != nil {
			r.ctx = ctx
		}
	}
}

// DefaultErrorView renders the failure indicator of a component.
func DefaultErrorView(err error) *vdom.VNode {
	return vdom.Span(vdom.Class("livedom-error"), vdom.Role("alert"), err.Error())
}

// Renderer realizes VNode trees into a document. It is safe for concurrent
// use; component functions run with the renderer locked and must not call
// back into it.
type Renderer struct {
	doc      *dom.Document
	loop     *sched.Loop
	ownLoop  bool
	logger   *slog.Logger
	metrics  *observe.Metrics
	tracer   trace.Tracer
	ctx      context.Context
	observer dom.UnmountObserver
	watcher  *lifecycle.Watcher

	errorView func(error) *vdom.VNode

	mu        sync.Mutex
	records   map[*html.Node]*mountRecord
	watchedBy map[*html.Node]*instance
}

// mountRecord is the rendered state of one mount point.
type mountRecord struct {
	mount *html.Node
	tree  *vdom.VNode
	inst  *instance
	owner *lifecycle.Owner
}

// New creates a Renderer for doc. Lifecycle callbacks and re-renders run on
// loop; with a nil loop the Renderer starts a private one, stopped by Close.
func New(doc *dom.Document, loop *sched.Loop, opts ...Option) *Renderer {
	r := &Renderer{
		doc:       doc,
		loop:      loop,
		logger:    slog.Default(),
		ctx:       context.Background(),
		errorView: DefaultErrorView,
		records:   make(map[*html.Node]*mountRecord),
		watchedBy: make(map[*html.Node]*instance),
	}
	for _, opt := range opts {
		opt(r)
	}
	r.logger = r.logger.With("component", "renderer")
	if r.loop == nil {
		r.loop = sched.New(sched.WithLogger(r.logger))
		r.loop.Start(r.ctx)
		r.ownLoop = true
	}
	if r.observer == nil {
		r.observer = dom.NewRemovalObserver(doc)
	}
	r.watcher = lifecycle.NewWatcher(r.observer, r.loop, r.logger)
	return r
}

// Document returns the document the renderer writes to.
func (r *Renderer) Document() *dom.Document { return r.doc }

// Loop returns the loop lifecycle callbacks run on.
func (r *Renderer) Loop() *sched.Loop { return r.loop }

// Watcher returns the unmount watcher shared by all mount points.
func (r *Renderer) Watcher() *lifecycle.Watcher { return r.watcher }

// Close stops the private loop created by New. It does not unmount anything.
func (r *Renderer) Close() {
	if r.ownLoop {
		r.loop.Close()
	}
}

// Tree returns the tree last rendered at mount, or nil.
func (r *Renderer) Tree(mount *html.Node) *vdom.VNode {
	r.mu.Lock()
	defer r.mu.Unlock()
	if rec := r.records[mount]; rec != nil {
		return rec.tree
	}
	return nil
}

// Owner returns the root Owner of mount, or nil.
func (r *Renderer) Owner(mount *html.Node) *lifecycle.Owner {
	r.mu.Lock()
	defer r.mu.Unlock()
	if rec := r.records[mount]; rec != nil {
		return rec.owner
	}
	return nil
}

// Render realizes tree and appends its live nodes to mount. Rendering into a
// mount point that already holds a tree patches it.
func (r *Renderer) Render(tree *vdom.VNode, mount *html.Node) ([]*html.Node, error) {
	if mount == nil {
		return nil, errors.New("E003")
	}
	if tree == nil {
		return nil, errors.New("E001").WithDetail("nil tree")
	}
	if err := vdom.Validate(tree); err != nil {
		return nil, err
	}

	r.mu.Lock()
	defer r.mu.Unlock()
	if rec := r.records[mount]; rec != nil {
		err := r.patchRecord(rec, tree)
		return liveNodes(rec.inst, nil), err
	}

	tx, finish := r.begin(observe.PhaseRender)
	rec := r.newRecord(mount)
	inst, err := r.create(tx, rec.owner, nil, rec, tree, mount, mount.LastChild)
	rec.tree = tree
	rec.inst = inst
	r.records[mount] = rec
	tx.mounts = append(tx.mounts, rec.owner)
	finish(err)
	return liveNodes(inst, nil), err
}

// RenderAsync runs Render as a loop task. The future settles once the task
// and its microtasks, mount callbacks included, have run.
func (r *Renderer) RenderAsync(tree *vdom.VNode, mount *html.Node) *sched.Future[[]*html.Node] {
	f, resolve, reject := sched.NewFuture[[]*html.Node](r.loop)
	err := r.loop.Submit(func() {
		nodes, err := r.Render(tree, mount)
		if err != nil {
			reject(err)
			return
		}
		r.loop.Defer(func() { resolve(nodes) })
	})
	if err != nil {
		reject(err)
	}
	return f
}

// Patch moves the live nodes under mount from prev to next. prev must be the
// tree last rendered at mount, or nil for a first render.
func (r *Renderer) Patch(prev, next *vdom.VNode, mount *html.Node) error {
	if mount == nil {
		return errors.New("E003")
	}
	if prev == nil {
		r.mu.Lock()
		rendered := r.records[mount] != nil
		r.mu.Unlock()
		if rendered {
			return errors.New("E004").WithDetail("mount point already holds a tree").
				WithSuggestion("pass the previous tree, see Renderer.Tree")
		}
		_, err := r.Render(next, mount)
		return err
	}
	if next == nil {
		return errors.New("E001").WithDetail("nil tree")
	}
	if err := vdom.Validate(next); err != nil {
		return err
	}

	r.mu.Lock()
	defer r.mu.Unlock()
	rec := r.records[mount]
	if rec == nil || rec.tree != prev {
		return errors.New("E004")
	}
	return r.patchRecord(rec, next)
}

func (r *Renderer) patchRecord(rec *mountRecord, next *vdom.VNode) error {
	tx, finish := r.begin(observe.PhasePatch)
	after := rec.mount.LastChild
	if first := firstLive(rec.inst); first != nil {
		after = first.PrevSibling
	}
	var old []*instance
	if rec.inst != nil {
		old = []*instance{rec.inst}
	}
	kids, _, err := r.reconcile(tx, rec.owner, nil, rec, rec.mount, after, old, []*vdom.VNode{next})
	if len(kids) > 0 {
		rec.inst = kids[0]
	}
	rec.tree = next
	finish(err)
	return err
}

// Unmount removes the tree rendered at mount and unmounts its instances.
func (r *Renderer) Unmount(mount *html.Node) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	rec := r.records[mount]
	if rec == nil {
		return errors.New("E003").WithDetail("nothing rendered at mount point")
	}
	tx, finish := r.begin(observe.PhasePatch)
	if rec.inst != nil {
		r.remove(tx, rec.inst)
	}
	tx.unmounts = append(tx.unmounts, rec.owner)
	delete(r.records, mount)
	finish(nil)
	return nil
}

func (r *Renderer) newRecord(mount *html.Node) *mountRecord {
	return &mountRecord{
		mount: mount,
		owner: lifecycle.NewOwner(nil, "root",
			lifecycle.WithLogger(r.logger),
			lifecycle.WithLoop(r.loop),
			lifecycle.WithContext(r.ctx),
			lifecycle.WithEventSink(r.lifecycleEvent),
		),
	}
}

func (r *Renderer) lifecycleEvent(o *lifecycle.Owner, event string) {
	r.metrics.LifecycleEvent(event)
	if event == lifecycle.EventError {
		r.metrics.HandlerError()
	}
}

// tx collects the side effects of one synchronous pass.
type tx struct {
	created  []*instance // owners to watch, outermost first
	rewatch  []*instance
	mounts   []*lifecycle.Owner
	unmounts []*lifecycle.Owner
	ops      map[string]int
}

func (t *tx) op(name string) {
	t.ops[name]++
}

// begin starts a pass. finish commits the pass: it registers unmount
// watchers, queues unmount then mount callbacks as microtasks, and records
// metrics and the span.
func (r *Renderer) begin(phase string) (*tx, func(error)) {
	t := &tx{ops: make(map[string]int)}
	start := time.Now()
	_, span := observe.StartSpan(r.ctx, r.tracer, phase)
	return t, func(err error) {
		r.commit(t)
		for op, n := range t.ops {
			r.metrics.PatchOp(op, n)
		}
		r.metrics.ObserveRender(phase, start)
		span.SetAttributes(attribute.Int("livedom.ops", t.total()))
		observe.EndSpan(span, err)
		if err != nil {
			r.logger.Warn(phase+" failed", "error", err)
			return
		}
		r.logger.Debug(phase, "ops", t.ops, "mounted", len(t.mounts), "unmounted", len(t.unmounts))
	}
}

func (t *tx) total() int {
	n := 0
	for _, c := range t.ops {
		n += c
	}
	return n
}

func (r *Renderer) commit(t *tx) {
	// Ancestors that lost their watched node are outer to anything created
	// in this pass.
	for _, inst := range t.rewatch {
		r.watch(inst)
	}
	for _, inst := range t.created {
		r.watch(inst)
	}
	for _, o := range t.unmounts {
		r.loop.Defer(o.Unmount)
	}
	for _, o := range t.mounts {
		r.loop.Defer(o.Mount)
	}
}

// watch connects the first live node of an owning instance to the watcher.
// Outer instances register first, so a node shared by nested components is
// watched by the outermost one and inner owners unmount through it.
func (r *Renderer) watch(inst *instance) {
	if inst.removed || inst.owner == nil || inst.watched != nil {
		return
	}
	n := firstLive(inst)
	if n == nil {
		return
	}
	if r.watcher.NotifyOnUnmount(n, inst.owner) {
		inst.watched = n
		r.watchedBy[n] = inst
	}
}

func (r *Renderer) unwatch(inst *instance) {
	if inst.watched == nil {
		return
	}
	r.watcher.Forget(inst.watched)
	delete(r.watchedBy, inst.watched)
	inst.watched = nil
}
