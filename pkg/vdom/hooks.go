package vdom

import "golang.org/x/net/html"

// Hooks are lifecycle callbacks attached to an element.
type Hooks struct {
	Mount   []func(*html.Node)
	Unmount []func(*html.Node)
	Error   []func(error)
}

// Empty reports whether no hook is set.
func (h *Hooks) Empty() bool {
	return h == nil || len(h.Mount)+len(h.Unmount)+len(h.Error) == 0
}

// Hook is an element factory argument that registers lifecycle callbacks.
type Hook func(*Hooks)

// OnMountHook runs fn with the live element after it is mounted.
func OnMountHook(fn func(*html.Node)) Hook {
	return func(h *Hooks) { h.Mount = append(h.Mount, fn) }
}

// OnUnmountHook runs fn when the element is removed.
func OnUnmountHook(fn func(*html.Node)) Hook {
	return func(h *Hooks) { h.Unmount = append(h.Unmount, fn) }
}

// OnErrorHook makes the element an error boundary for its subtree.
func OnErrorHook(fn func(error)) Hook {
	return func(h *Hooks) { h.Error = append(h.Error, fn) }
}
