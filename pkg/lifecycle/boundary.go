package lifecycle

import (
	"fmt"

	"github.com/vango-dev/livedom/pkg/sched"
)

// OnMount registers a mount callback on owner.
func OnMount(fn func(), owner *Owner) { owner.OnMount(fn) }

// OnUnmount registers an unmount callback on owner.
func OnUnmount(fn func(), owner *Owner) { owner.OnUnmount(fn) }

// OnError registers an error boundary callback on owner.
func OnError(fn func(error), owner *Owner) { owner.OnError(fn) }

// NotifyError reports err from owner. Every OnError callback of the nearest
// Owner that has any, starting with owner itself, is invoked with err. The
// error is always recorded as owner's LastError. When no boundary exists the
// owner enters its failure state and is invalidated so the renderer draws the
// failure view. NotifyError reports whether a boundary handled the error.
func NotifyError(err error, owner *Owner) bool {
	if err == nil || owner == nil {
		return false
	}

	owner.mu.Lock()
	owner.lastErr = err
	owner.mu.Unlock()
	owner.emit(EventError)

	for b := owner; b != nil; b = b.parent {
		b.mu.Lock()
		handlers := append([]func(error){}, b.errHandlers...)
		b.mu.Unlock()
		if len(handlers) == 0 {
			continue
		}
		for _, h := range handlers {
			b.runHandler(h, err)
		}
		return true
	}

	owner.mu.Lock()
	removed := owner.state == Removed
	if !removed {
		owner.failure = err
	}
	owner.mu.Unlock()

	owner.logger.Warn("unhandled component error",
		"component", owner.name,
		"owner", owner.id,
		"error", err)
	if !removed {
		owner.emit(EventFailure)
		owner.Invalidate()
	}
	return false
}

// runHandler calls an error callback. A panicking callback is logged rather
// than reported again, so a broken boundary cannot loop.
func (o *Owner) runHandler(h func(error), err error) {
	defer func() {
		if r := recover(); r != nil {
			o.logger.Error("error boundary panicked",
				"component", o.name,
				"error", err,
				"panic", fmt.Sprint(r))
		}
	}()
	h(err)
}

// Guard runs an interaction handler on behalf of owner. A panic, a non-nil
// error result or a rejected Awaitable result is reported with NotifyError.
// The handler's own result is returned unchanged so callers keep its
// default-action semantics; after a panic the zero value is returned.
func Guard[R any](owner *Owner, fn func() R) (result R) {
	defer func() {
		if r := recover(); r != nil {
			var zero R
			result = zero
			NotifyError(panicError(r), owner)
		}
	}()

	result = fn()
	switch v := any(result).(type) {
	case error:
		if v != nil {
			NotifyError(v, owner)
		}
	case sched.Awaitable:
		if v != nil {
			v.OnSettled(func(err error) {
				if err != nil {
					NotifyError(err, owner)
				}
			})
		}
	}
	return result
}
