// Package vdom is the tree model rendered by livedom.
//
// A VNode describes one node: an element, text, a fragment, a component, raw
// markup or a deferred child whose content loads later. VNodes are created
// per render pass and never mutated afterwards; a new tree describes the next
// state and the renderer diffs the two.
//
// # Element API
//
// Elements are created with variadic factories that accept attributes, event
// handlers, lifecycle hooks, children and plain strings:
//
//	Div(Class("card"), ID("main"),
//	    H1("Title"),
//	    Button(OnClick(save), UseRef(buttonRef), "Save"),
//	)
//
// # Components
//
// Component pairs a name with a render function that receives the instance's
// lifecycle Owner:
//
//	Component("Counter", func(o *lifecycle.Owner) *VNode {
//	    lifecycle.OnMount(func() { ... }, o)
//	    return Span("0")
//	})
//
// # Deferred children
//
// Defer and Await mark a child as resolving later. They are only meaningful
// inside an Async container (package suspense); elsewhere they render nothing.
package vdom
