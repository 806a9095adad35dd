// Package suspense provides Async, a container component that shows a
// fallback while its children resolve.
//
// Children are ordinary VNodes or deferred nodes created with vdom.Defer and
// vdom.Await. Once the container mounts, every deferred child is loaded on
// its own goroutine; ordinary children resolve immediately. When all of them
// succeed the container renders the resolved children, flattening one level
// of fragments. The first failure switches it to its error view:
//
//	status := vdom.CreateRef[suspense.Status](nil)
//	suspense.Async(suspense.Props{
//		Fallback: vdom.P("Loading..."),
//		Children: []*vdom.VNode{vdom.Await(profile)},
//		Ref:      status,
//	})
//
// A bound Ref mirrors the container state, and updates pushed into it from
// outside drive the container. The first push, made while the container is
// constructed, is ignored.
//
// When a parent render hands the container different children before the
// current resolution settled, the older resolution is cancelled and its
// result dropped: only the newest generation commits.
package suspense
