// Package lifecycle implements per-instance component lifecycles.
//
// The renderer creates one Owner for every mounted component instance and for
// every element that carries lifecycle hooks. Owners form a tree mirroring the
// component tree and each Owner keeps its own mount, unmount and error
// callbacks, so two instances of the same component never share state.
//
// States move forward only:
//
//	Unmounted -> Mounted -> Unmounting -> Removed
//
// Errors raised inside an instance bubble to the nearest Owner that
// registered an OnError callback. When nothing handles them the originating
// Owner records a failure and asks the renderer to draw the failure view.
package lifecycle
