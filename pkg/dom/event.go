package dom

import (
	"fmt"
	"runtime/debug"

	"golang.org/x/net/html"
)

// Event is a dispatched event.
type Event struct {
	Type string
	// Target is the node the event was dispatched on.
	Target *html.Node
	// CurrentTarget is the node whose listener is running.
	CurrentTarget *html.Node
	// Detail carries an optional payload from Trigger or the dispatcher.
	Detail any

	stopped   bool
	prevented bool
}

// NewEvent creates an event of the given type.
func NewEvent(typ string) *Event {
	return &Event{Type: typ}
}

// StopPropagation stops bubbling after the current node's listeners.
func (e *Event) StopPropagation() { e.stopped = true }

// PreventDefault marks the default action as suppressed.
func (e *Event) PreventDefault() { e.prevented = true }

// DefaultPrevented reports whether PreventDefault was called.
func (e *Event) DefaultPrevented() bool { return e.prevented }

// PropagationStopped reports whether StopPropagation was called.
func (e *Event) PropagationStopped() bool { return e.stopped }

// Listener handles an event.
type Listener func(*Event)

// ListenerID identifies a registered listener.
type ListenerID uint64

type listener struct {
	id  ListenerID
	typ string
	fn  Listener
}

// On registers a listener on node and returns its id.
func (d *Document) On(node *html.Node, typ string, fn Listener) ListenerID {
	d.mu.Lock()
	defer d.mu.Unlock()
	d.nextID++
	id := d.nextID
	d.listeners[node] = append(d.listeners[node], listener{id: id, typ: typ, fn: fn})
	return id
}

// Off removes every listener of the given type from node. An empty type
// removes all of node's listeners.
func (d *Document) Off(node *html.Node, typ string) {
	d.mu.Lock()
	defer d.mu.Unlock()
	if typ == "" {
		delete(d.listeners, node)
		return
	}
	kept := d.listeners[node][:0]
	for _, l := range d.listeners[node] {
		if l.typ != typ {
			kept = append(kept, l)
		}
	}
	d.setListeners(node, kept)
}

// OffID removes one listener.
func (d *Document) OffID(node *html.Node, id ListenerID) {
	d.mu.Lock()
	defer d.mu.Unlock()
	kept := d.listeners[node][:0]
	for _, l := range d.listeners[node] {
		if l.id != id {
			kept = append(kept, l)
		}
	}
	d.setListeners(node, kept)
}

func (d *Document) setListeners(node *html.Node, ls []listener) {
	if len(ls) == 0 {
		delete(d.listeners, node)
		return
	}
	d.listeners[node] = ls
}

// ListenerCount returns the number of listeners of a type on node; an empty
// type counts all of them.
func (d *Document) ListenerCount(node *html.Node, typ string) int {
	d.mu.Lock()
	defer d.mu.Unlock()
	n := 0
	for _, l := range d.listeners[node] {
		if typ == "" || l.typ == typ {
			n++
		}
	}
	return n
}

// Dispatch delivers ev to target and bubbles it to the root. It reports
// whether the default action is still allowed. A panicking listener is
// logged and does not stop delivery to other listeners.
func (d *Document) Dispatch(target *html.Node, ev *Event) bool {
	ev.Target = target

	type hop struct {
		node *html.Node
		fns  []Listener
	}
	d.mu.Lock()
	var path []hop
	for n := target; n != nil; n = n.Parent {
		var fns []Listener
		for _, l := range d.listeners[n] {
			if l.typ == ev.Type {
				fns = append(fns, l.fn)
			}
		}
		if len(fns) > 0 {
			path = append(path, hop{node: n, fns: fns})
		}
	}
	d.mu.Unlock()

	for _, h := range path {
		ev.CurrentTarget = h.node
		for _, fn := range h.fns {
			d.invoke(fn, ev)
		}
		if ev.stopped {
			break
		}
	}
	ev.CurrentTarget = nil
	return !ev.prevented
}

func (d *Document) invoke(fn Listener, ev *Event) {
	defer func() {
		if r := recover(); r != nil {
			d.logger.Warn("listener panicked",
				"event", ev.Type,
				"panic", fmt.Sprint(r),
				"stack", string(debug.Stack()))
		}
	}()
	fn(ev)
}
