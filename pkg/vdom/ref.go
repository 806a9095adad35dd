package vdom

import (
	"sync"

	"golang.org/x/net/html"
)

// Ref is a reference handle: a cell bound to a live element once mounted,
// plus a state value with subscribers. Its identity persists across
// re-renders, so the same Ref can be passed to UseRef on every pass.
//
// Ref is safe for concurrent access. Subscribers run outside its lock in
// subscription order.
type Ref[T any] struct {
	mu       sync.Mutex
	current  *html.Node
	state    T
	hasState bool
	onUpdate func(T)
	subs     []subscription[T]
	nextSub  uint64
}

type subscription[T any] struct {
	id uint64
	fn func(T)
}

// CreateRef creates a reference handle. onUpdate, when non-nil, runs before
// subscribers on every Update. An optional initial value seeds State without
// notifying anyone.
func CreateRef[T any](onUpdate func(T), initial ...T) *Ref[T] {
	r := &Ref[T]{onUpdate: onUpdate}
	if len(initial) > 0 {
		r.state = initial[0]
		r.hasState = true
	}
	return r
}

// NewRef creates a reference handle used only for its live node.
func NewRef() *Ref[struct{}] {
	return CreateRef[struct{}](nil)
}

// Current returns the bound live node, or nil before mount and after
// unmount.
func (r *Ref[T]) Current() *html.Node {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.current
}

// SetCurrent implements NodeRef. The renderer calls it.
func (r *Ref[T]) SetCurrent(n *html.Node) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.current = n
}

// State returns the last value passed to Update and whether one exists.
func (r *Ref[T]) State() (T, bool) {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.state, r.hasState
}

// Update stores v and notifies onUpdate and then every subscriber.
func (r *Ref[T]) Update(v T) {
	r.mu.Lock()
	r.state = v
	r.hasState = true
	onUpdate := r.onUpdate
	subs := append([]subscription[T](nil), r.subs...)
	r.mu.Unlock()

	if onUpdate != nil {
		onUpdate(v)
	}
	for _, s := range subs {
		s.fn(v)
	}
}

// Subscribe registers fn for future updates and returns a function that
// removes it.
func (r *Ref[T]) Subscribe(fn func(T)) (unsubscribe func()) {
	r.mu.Lock()
	r.nextSub++
	id := r.nextSub
	r.subs = append(r.subs, subscription[T]{id: id, fn: fn})
	r.mu.Unlock()

	return func() {
		r.mu.Lock()
		defer r.mu.Unlock()
		for i, s := range r.subs {
			if s.id == id {
				r.subs = append(r.subs[:i], r.subs[i+1:]...)
				return
			}
		}
	}
}
