package sched

import (
	"context"
	"fmt"
	"log/slog"
	"runtime"
	"runtime/debug"
	"sync"
	"sync/atomic"
	"time"

	"github.com/vango-dev/livedom/internal/errors"
)

// ErrClosed is returned when work is submitted to a closed loop.
var ErrClosed = errors.New("E071")

// ErrRunning is returned by Run when the loop is already running.
var ErrRunning = errors.Newf(errors.CategoryAsync, "loop is already running")

// Option configures a Loop.
type Option func(*Loop)

// WithLogger sets the logger used for recovered panics.
func WithLogger(logger *slog.Logger) Option {
	return func(l *Loop) {
		if logger != nil {
			l.logger = logger
		}
	}
}

type task struct {
	fn   func()
	done chan struct{}
}

// Loop is a single-goroutine task queue with a microtask queue.
type Loop struct {
	logger *slog.Logger

	mu      sync.Mutex
	tasks   []task
	micro   []func()
	closed  bool
	running bool

	wake chan struct{}
	quit chan struct{}
	stop chan struct{}

	goid atomic.Uint64
}

// New creates a loop. It does not start running until Run or Start is called.
func New(opts ...Option) *Loop {
	l := &Loop{
		logger: slog.Default(),
		wake:   make(chan struct{}, 1),
		quit:   make(chan struct{}),
		stop:   make(chan struct{}),
	}
	for _, opt := range opts {
		opt(l)
	}
	l.logger = l.logger.With("component", "sched")
	return l
}

// Run executes tasks on the calling goroutine until ctx is done or Close is
// called. Tasks still queued at that point are dropped.
func (l *Loop) Run(ctx context.Context) error {
	l.mu.Lock()
	if l.running {
		l.mu.Unlock()
		return ErrRunning
	}
	if l.closed {
		l.mu.Unlock()
		return ErrClosed
	}
	l.running = true
	l.mu.Unlock()

	l.goid.Store(goroutineID())
	defer func() {
		l.goid.Store(0)
		close(l.stop)
	}()

	for {
		t, ok, closed := l.next()
		if closed {
			return nil
		}
		if !ok {
			select {
			case <-ctx.Done():
				l.Close()
				return ctx.Err()
			case <-l.quit:
				return nil
			case <-l.wake:
			}
			continue
		}
		l.runTask(t)
	}
}

// Start runs the loop on a new goroutine.
func (l *Loop) Start(ctx context.Context) {
	go func() {
		if err := l.Run(ctx); err != nil && err != context.Canceled && err != context.DeadlineExceeded {
			l.logger.Error("loop stopped", "error", err)
		}
	}()
}

// Stopped is closed once Run has returned.
func (l *Loop) Stopped() <-chan struct{} {
	return l.stop
}

// Close stops the loop. Pending tasks are dropped and blocked Do calls
// return ErrClosed. Close is idempotent.
func (l *Loop) Close() {
	l.mu.Lock()
	defer l.mu.Unlock()
	if l.closed {
		return
	}
	l.closed = true
	l.tasks = nil
	l.micro = nil
	close(l.quit)
}

// Closed reports whether Close has been called.
func (l *Loop) Closed() bool {
	l.mu.Lock()
	defer l.mu.Unlock()
	return l.closed
}

// InLoop reports whether the caller is running on the loop goroutine.
func (l *Loop) InLoop() bool {
	id := l.goid.Load()
	return id != 0 && id == goroutineID()
}

// Submit queues fn as a macrotask. It is safe to call from any goroutine.
func (l *Loop) Submit(fn func()) error {
	return l.push(task{fn: fn})
}

// Defer queues fn as a microtask. Microtasks run after the current task and
// before the next one, in FIFO order, including microtasks queued by
// microtasks. Calls on a closed loop are dropped.
func (l *Loop) Defer(fn func()) {
	l.mu.Lock()
	if l.closed {
		l.mu.Unlock()
		l.logger.Debug("microtask dropped on closed loop")
		return
	}
	l.micro = append(l.micro, fn)
	l.mu.Unlock()
	l.signal()
}

// Do runs fn as a task and waits until fn and every microtask it queued,
// directly or transitively, have run. Called on the loop goroutine, Do runs
// fn inline and its microtasks run after the enclosing task.
func (l *Loop) Do(ctx context.Context, fn func()) error {
	if l.InLoop() {
		fn()
		return nil
	}
	done := make(chan struct{})
	if err := l.push(task{fn: fn, done: done}); err != nil {
		return err
	}
	select {
	case <-done:
		return nil
	case <-ctx.Done():
		return ctx.Err()
	case <-l.quit:
		return ErrClosed
	}
}

// Flush waits until every task queued before the call, and their
// microtasks, have run.
func (l *Loop) Flush(ctx context.Context) error {
	return l.Do(ctx, func() {})
}

// Timer is a pending AfterFunc callback.
type Timer struct {
	t       *time.Timer
	stopped atomic.Bool
}

// Stop cancels the callback. It reports whether the callback was still pending.
func (t *Timer) Stop() bool {
	wasPending := !t.stopped.Swap(true)
	t.t.Stop()
	return wasPending
}

// AfterFunc submits fn as a macrotask once d has elapsed.
func (l *Loop) AfterFunc(d time.Duration, fn func()) *Timer {
	tm := &Timer{}
	tm.t = time.AfterFunc(d, func() {
		err := l.Submit(func() {
			if tm.stopped.Swap(true) {
				return
			}
			fn()
		})
		if err != nil {
			l.logger.Debug("timer dropped", "error", err)
		}
	})
	return tm
}

func (l *Loop) push(t task) error {
	l.mu.Lock()
	if l.closed {
		l.mu.Unlock()
		return ErrClosed
	}
	l.tasks = append(l.tasks, t)
	l.mu.Unlock()
	l.signal()
	return nil
}

func (l *Loop) signal() {
	select {
	case l.wake <- struct{}{}:
	default:
	}
}

// next pops microtasks queued from outside a task before macrotasks.
func (l *Loop) next() (task, bool, bool) {
	l.mu.Lock()
	defer l.mu.Unlock()
	if l.closed {
		return task{}, false, true
	}
	if len(l.micro) > 0 {
		fn := l.micro[0]
		l.micro[0] = nil
		l.micro = l.micro[1:]
		return task{fn: fn}, true, false
	}
	if len(l.tasks) > 0 {
		t := l.tasks[0]
		l.tasks[0] = task{}
		l.tasks = l.tasks[1:]
		return t, true, false
	}
	return task{}, false, false
}

func (l *Loop) runTask(t task) {
	l.safeExecute(t.fn)
	l.drainMicrotasks()
	if t.done != nil {
		close(t.done)
	}
}

func (l *Loop) drainMicrotasks() {
	for {
		l.mu.Lock()
		if len(l.micro) == 0 || l.closed {
			l.mu.Unlock()
			return
		}
		fn := l.micro[0]
		l.micro[0] = nil
		l.micro = l.micro[1:]
		l.mu.Unlock()
		l.safeExecute(fn)
	}
}

// safeExecute runs fn, recovering and logging a panic.
func (l *Loop) safeExecute(fn func()) {
	if fn == nil {
		return
	}
	defer func() {
		if r := recover(); r != nil {
			l.logger.Warn("task panicked",
				"panic", fmt.Sprint(r),
				"stack", string(debug.Stack()))
		}
	}()
	fn()
}

func goroutineID() uint64 {
	var buf [64]byte
	n := runtime.Stack(buf[:], false)
	var id uint64
	for i := len("goroutine "); i < n; i++ {
		if buf[i] >= '0' && buf[i] <= '9' {
			id = id*10 + uint64(buf[i]-'0')
		} else {
			break
		}
	}
	return id
}
