package lifecycle

import (
	"context"
	"fmt"
	"log/slog"
	"sync"
	"sync/atomic"

	"golang.org/x/net/html"

	"github.com/vango-dev/livedom/internal/errors"
	"github.com/vango-dev/livedom/pkg/sched"
)

// DevMode enables development-only logging, such as updates that arrive
// after an instance was removed.
var DevMode bool

// State is the lifecycle state of an Owner.
type State int32

const (
	Unmounted State = iota
	Mounted
	Unmounting
	Removed
)

// String returns the state name.
func (s State) String() string {
	switch s {
	case Unmounted:
		return "unmounted"
	case Mounted:
		return "mounted"
	case Unmounting:
		return "unmounting"
	case Removed:
		return "removed"
	default:
		return fmt.Sprintf("State(%d)", int32(s))
	}
}

// Event names passed to an event sink.
const (
	EventMount   = "mount"
	EventUnmount = "unmount"
	EventError   = "error"
	EventFailure = "failure"
)

// NodeRef is a reference handle the Owner clears on unmount.
type NodeRef interface {
	SetCurrent(*html.Node)
}

var ownerIDs atomic.Uint64

// Owner is the lifecycle scope of one component instance.
type Owner struct {
	id     uint64
	name   string
	parent *Owner

	logger *slog.Logger
	loop   *sched.Loop
	sink   func(o *Owner, event string)

	ctx    context.Context
	cancel context.CancelFunc

	mu          sync.Mutex
	state       State
	children    []*Owner
	mounts      []func()
	asyncMounts []func() sched.Awaitable
	unmounts    []func()
	errHandlers []func(error)
	refs        []NodeRef
	lastErr     error
	failure     error
	invalidator func()

	// Slot storage gives hooks stable identity across renders.
	slots   []any
	slotIdx int
}

// Option configures an Owner.
type Option func(*Owner)

// WithLogger sets the logger. Children inherit it.
func WithLogger(logger *slog.Logger) Option {
	return func(o *Owner) {
		if logger != nil {
			o.logger = logger
		}
	}
}

// WithLoop sets the loop used for deferred work and async callbacks.
// Children inherit it.
func WithLoop(loop *sched.Loop) Option {
	return func(o *Owner) { o.loop = loop }
}

// WithContext sets the parent context of a root Owner.
func WithContext(ctx context.Context) Option {
	return func(o *Owner) {
		if ctx != nil {
			o.ctx = ctx
		}
	}
}

// WithEventSink receives lifecycle events, typically for metrics.
// Children inherit it.
func WithEventSink(fn func(o *Owner, event string)) Option {
	return func(o *Owner) { o.sink = fn }
}

// NewOwner creates an Owner. A non-nil parent registers the Owner as its
// child and passes down its logger, loop, event sink and context.
func NewOwner(parent *Owner, name string, opts ...Option) *Owner {
	o := &Owner{
		id:     ownerIDs.Add(1),
		name:   name,
		parent: parent,
		logger: slog.Default(),
		ctx:    context.Background(),
	}
	if parent != nil {
		o.logger = parent.logger
		o.loop = parent.loop
		o.sink = parent.sink
		o.ctx = parent.ctx
	}
	for _, opt := range opts {
		opt(o)
	}
	o.ctx, o.cancel = context.WithCancel(o.ctx)
	if parent != nil {
		parent.addChild(o)
	}
	return o
}

// ID returns the unique identifier for this Owner.
func (o *Owner) ID() uint64 { return o.id }

// Name returns the component name.
func (o *Owner) Name() string { return o.name }

// Parent returns the parent Owner, or nil for a root.
func (o *Owner) Parent() *Owner { return o.parent }

// Loop returns the loop the Owner schedules on, or nil.
func (o *Owner) Loop() *sched.Loop { return o.loop }

// Logger returns the Owner's logger.
func (o *Owner) Logger() *slog.Logger { return o.logger }

// Context is cancelled when the Owner is unmounted.
func (o *Owner) Context() context.Context { return o.ctx }

// State returns the lifecycle state.
func (o *Owner) State() State {
	o.mu.Lock()
	defer o.mu.Unlock()
	return o.state
}

// Children returns a snapshot of child Owners.
func (o *Owner) Children() []*Owner {
	o.mu.Lock()
	defer o.mu.Unlock()
	return append([]*Owner(nil), o.children...)
}

func (o *Owner) addChild(child *Owner) {
	o.mu.Lock()
	defer o.mu.Unlock()
	o.children = append(o.children, child)
}

func (o *Owner) removeChild(child *Owner) {
	o.mu.Lock()
	defer o.mu.Unlock()
	for i, c := range o.children {
		if c == child {
			o.children = append(o.children[:i], o.children[i+1:]...)
			return
		}
	}
}

// OnMount registers fn to run when the instance mounts. On an Owner that is
// already mounted fn is scheduled right away.
func (o *Owner) OnMount(fn func()) {
	o.mu.Lock()
	switch o.state {
	case Unmounted:
		o.mounts = append(o.mounts, fn)
		o.mu.Unlock()
	case Mounted:
		o.mu.Unlock()
		o.Defer(func() { o.call(fn) })
	default:
		o.mu.Unlock()
	}
}

// OnMountAsync registers a mount callback whose result settles later. A
// rejection is reported through NotifyError.
func (o *Owner) OnMountAsync(fn func() sched.Awaitable) {
	o.mu.Lock()
	switch o.state {
	case Unmounted:
		o.asyncMounts = append(o.asyncMounts, fn)
		o.mu.Unlock()
	case Mounted:
		o.mu.Unlock()
		o.Defer(func() { o.callAsync(fn) })
	default:
		o.mu.Unlock()
	}
}

// OnUnmount registers fn to run when the instance is removed.
func (o *Owner) OnUnmount(fn func()) {
	o.mu.Lock()
	defer o.mu.Unlock()
	if o.state >= Unmounting {
		return
	}
	o.unmounts = append(o.unmounts, fn)
}

// OnUnmountAsync registers an unmount callback whose rejection is reported
// through NotifyError on the parent, since the instance itself is gone.
func (o *Owner) OnUnmountAsync(fn func() sched.Awaitable) {
	o.OnUnmount(func() {
		a := fn()
		if a == nil {
			return
		}
		a.OnSettled(func(err error) {
			if err != nil {
				NotifyError(err, o.parentOrSelf())
			}
		})
	})
}

// OnError registers an error boundary callback on this instance.
func (o *Owner) OnError(fn func(error)) {
	o.mu.Lock()
	defer o.mu.Unlock()
	o.errHandlers = append(o.errHandlers, fn)
}

// TrackRef records a reference handle to clear on unmount.
func (o *Owner) TrackRef(ref NodeRef) {
	o.mu.Lock()
	defer o.mu.Unlock()
	for _, r := range o.refs {
		if r == ref {
			return
		}
	}
	o.refs = append(o.refs, ref)
}

// Mount moves the Owner to Mounted and runs its mount callbacks once, in
// registration order. The renderer calls it after the synchronous render
// that created the instance has returned.
func (o *Owner) Mount() {
	o.mu.Lock()
	if o.state != Unmounted {
		o.mu.Unlock()
		return
	}
	o.state = Mounted
	mounts := o.mounts
	asyncMounts := o.asyncMounts
	o.mounts = nil
	o.asyncMounts = nil
	o.mu.Unlock()

	o.logger.Debug("mounted", "component", o.name, "owner", o.id)
	o.emit(EventMount)
	for _, fn := range mounts {
		o.call(fn)
	}
	for _, fn := range asyncMounts {
		o.callAsync(fn)
	}
}

// Unmount removes the instance: descendants unmount first, then this
// Owner's unmount callbacks run, reference handles are cleared and Context
// is cancelled. Only the first call has an effect.
func (o *Owner) Unmount() {
	o.mu.Lock()
	if o.state >= Unmounting {
		o.mu.Unlock()
		return
	}
	wasMounted := o.state == Mounted
	o.state = Unmounting
	children := append([]*Owner(nil), o.children...)
	o.mu.Unlock()

	for i := len(children) - 1; i >= 0; i-- {
		children[i].Unmount()
	}

	o.mu.Lock()
	unmounts := o.unmounts
	refs := o.refs
	o.unmounts = nil
	o.refs = nil
	o.mounts = nil
	o.asyncMounts = nil
	o.mu.Unlock()

	if wasMounted {
		for _, fn := range unmounts {
			o.call(fn)
		}
	}
	for _, ref := range refs {
		ref.SetCurrent(nil)
	}

	o.mu.Lock()
	o.state = Removed
	o.invalidator = nil
	o.mu.Unlock()
	o.cancel()

	if o.parent != nil {
		o.parent.removeChild(o)
	}
	o.logger.Debug("unmounted", "component", o.name, "owner", o.id)
	o.emit(EventUnmount)
}

// Removed reports whether the Owner reached its terminal state.
func (o *Owner) Removed() bool {
	return o.State() == Removed
}

// LastError returns the most recent error reported from this instance.
func (o *Owner) LastError() error {
	o.mu.Lock()
	defer o.mu.Unlock()
	return o.lastErr
}

// Failure returns the unhandled error that put the instance in its failure
// state, or nil.
func (o *Owner) Failure() error {
	o.mu.Lock()
	defer o.mu.Unlock()
	return o.failure
}

// Recover clears the failure and re-renders the instance.
func (o *Owner) Recover() {
	o.mu.Lock()
	o.failure = nil
	o.mu.Unlock()
	o.Invalidate()
}

// SetInvalidator installs the function Invalidate calls.
func (o *Owner) SetInvalidator(fn func()) {
	o.mu.Lock()
	defer o.mu.Unlock()
	o.invalidator = fn
}

// Invalidate asks the renderer to re-render this instance.
func (o *Owner) Invalidate() {
	o.mu.Lock()
	fn := o.invalidator
	o.mu.Unlock()
	if fn != nil {
		fn()
	}
}

// Defer schedules fn as a loop microtask, or runs it now without a loop.
func (o *Owner) Defer(fn func()) {
	if o.loop == nil {
		fn()
		return
	}
	o.loop.Defer(fn)
}

// BeginRender resets the slot cursor. The renderer calls it before every
// invocation of the component function.
func (o *Owner) BeginRender() {
	o.mu.Lock()
	defer o.mu.Unlock()
	o.slotIdx = 0
}

// UseSlot returns the value stored in the next slot, or nil on the first
// render, in which case the caller stores a value with SetSlot.
func (o *Owner) UseSlot() any {
	o.mu.Lock()
	defer o.mu.Unlock()
	idx := o.slotIdx
	o.slotIdx++
	if idx < len(o.slots) {
		return o.slots[idx]
	}
	return nil
}

// SetSlot stores a value in the slot UseSlot just returned nil for.
func (o *Owner) SetSlot(value any) {
	o.mu.Lock()
	defer o.mu.Unlock()
	if idx := o.slotIdx - 1; idx >= 0 && idx < len(o.slots) {
		o.slots[idx] = value
		return
	}
	o.slots = append(o.slots, value)
}

// Use returns the slot value, creating it with init on the first render.
func Use[T any](o *Owner, init func() T) T {
	if v := o.UseSlot(); v != nil {
		return v.(T)
	}
	v := init()
	o.SetSlot(v)
	return v
}

func (o *Owner) parentOrSelf() *Owner {
	if o.parent != nil {
		return o.parent
	}
	return o
}

func (o *Owner) emit(event string) {
	if o.sink != nil {
		o.sink(o, event)
	}
}

// call runs a lifecycle callback, funneling a panic into NotifyError.
func (o *Owner) call(fn func()) {
	defer func() {
		if r := recover(); r != nil {
			NotifyError(panicError(r), o)
		}
	}()
	fn()
}

func (o *Owner) callAsync(fn func() sched.Awaitable) {
	var a sched.Awaitable
	o.call(func() { a = fn() })
	if a == nil {
		return
	}
	a.OnSettled(func(err error) {
		if err != nil {
			NotifyError(err, o)
		}
	})
}

func panicError(r any) error {
	if err, ok := r.(error); ok {
		return errors.New("E060").WithDetail("panic").Wrap(err)
	}
	return errors.New("E060").WithDetailf("panic: %v", r)
}
