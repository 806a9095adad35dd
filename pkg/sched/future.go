package sched

import (
	"context"
	"fmt"
	"sync"

	"github.com/vango-dev/livedom/internal/errors"
)

// State is the settlement state of a Future.
type State int

const (
	StatePending State = iota
	StateFulfilled
	StateRejected
)

// String returns the state name.
func (s State) String() string {
	switch s {
	case StatePending:
		return "pending"
	case StateFulfilled:
		return "fulfilled"
	case StateRejected:
		return "rejected"
	default:
		return fmt.Sprintf("State(%d)", int(s))
	}
}

// Awaitable is implemented by every Future regardless of its value type.
type Awaitable interface {
	// OnSettled registers fn to run once the value settles; err is nil on
	// fulfillment.
	OnSettled(fn func(err error))
}

// Future is a value that settles exactly once. Continuations registered with
// Then run on the loop as microtasks; with a nil loop they run synchronously
// on the settling goroutine.
type Future[T any] struct {
	loop *Loop

	mu        sync.Mutex
	state     State
	value     T
	err       error
	callbacks []func(T, error)
	done      chan struct{}
}

// NewFuture returns a pending future with its resolve and reject functions.
// Only the first call to either has an effect.
func NewFuture[T any](loop *Loop) (*Future[T], func(T), func(error)) {
	f := &Future[T]{loop: loop, done: make(chan struct{})}
	return f, f.resolve, f.reject
}

// Resolved returns a future already fulfilled with v.
func Resolved[T any](loop *Loop, v T) *Future[T] {
	f, resolve, _ := NewFuture[T](loop)
	resolve(v)
	return f
}

// Rejected returns a future already rejected with err.
func Rejected[T any](loop *Loop, err error) *Future[T] {
	f, _, reject := NewFuture[T](loop)
	reject(err)
	return f
}

// Go runs fn on a new goroutine and settles the returned future with its
// result. A panic in fn rejects the future.
func Go[T any](loop *Loop, ctx context.Context, fn func(context.Context) (T, error)) *Future[T] {
	f, resolve, reject := NewFuture[T](loop)
	go func() {
		defer func() {
			if r := recover(); r != nil {
				reject(fmt.Errorf("panic: %v", r))
			}
		}()
		v, err := fn(ctx)
		if err != nil {
			reject(err)
			return
		}
		resolve(v)
	}()
	return f
}

func (f *Future[T]) resolve(v T) {
	f.settle(StateFulfilled, v, nil)
}

func (f *Future[T]) reject(err error) {
	if err == nil {
		err = errors.Newf(errors.CategoryAsync, "future rejected with nil error")
	}
	var zero T
	f.settle(StateRejected, zero, err)
}

func (f *Future[T]) settle(state State, v T, err error) {
	f.mu.Lock()
	if f.state != StatePending {
		f.mu.Unlock()
		return
	}
	f.state = state
	f.value = v
	f.err = err
	callbacks := f.callbacks
	f.callbacks = nil
	close(f.done)
	f.mu.Unlock()

	for _, cb := range callbacks {
		f.dispatch(cb, v, err)
	}
}

func (f *Future[T]) dispatch(cb func(T, error), v T, err error) {
	if f.loop == nil {
		cb(v, err)
		return
	}
	f.loop.Defer(func() { cb(v, err) })
}

// Then registers fn to run after settlement. Callbacks run in registration
// order.
func (f *Future[T]) Then(fn func(T, error)) {
	f.mu.Lock()
	if f.state == StatePending {
		f.callbacks = append(f.callbacks, fn)
		f.mu.Unlock()
		return
	}
	v, err := f.value, f.err
	f.mu.Unlock()
	f.dispatch(fn, v, err)
}

// OnSettled implements Awaitable.
func (f *Future[T]) OnSettled(fn func(error)) {
	f.Then(func(_ T, err error) { fn(err) })
}

// Wait blocks until the future settles or ctx is done. It must not be called
// from the loop goroutine when settlement depends on the loop.
func (f *Future[T]) Wait(ctx context.Context) (T, error) {
	select {
	case <-f.done:
		f.mu.Lock()
		defer f.mu.Unlock()
		return f.value, f.err
	case <-ctx.Done():
		var zero T
		return zero, ctx.Err()
	}
}

// Result returns the settled value without blocking. ok is false while the
// future is pending.
func (f *Future[T]) Result() (v T, err error, ok bool) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.state == StatePending {
		return v, nil, false
	}
	return f.value, f.err, true
}

// State returns the current settlement state.
func (f *Future[T]) State() State {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.state
}

// Done is closed on settlement.
func (f *Future[T]) Done() <-chan struct{} {
	return f.done
}

// All settles with every value in input order once all futures fulfill, or
// with the first rejection.
func All[T any](loop *Loop, futures []*Future[T]) *Future[[]T] {
	out, resolve, reject := NewFuture[[]T](loop)
	if len(futures) == 0 {
		resolve([]T{})
		return out
	}

	var mu sync.Mutex
	values := make([]T, len(futures))
	remaining := len(futures)
	for i, f := range futures {
		i := i
		f.Then(func(v T, err error) {
			if err != nil {
				reject(err)
				return
			}
			mu.Lock()
			values[i] = v
			remaining--
			last := remaining == 0
			mu.Unlock()
			if last {
				resolve(values)
			}
		})
	}
	return out
}
