// Package render realizes VNode trees into a live dom.Document and keeps
// them synchronized.
//
// A Renderer owns one record per mount point. Render creates the live nodes
// for a first tree, Patch moves the document from the previous tree to the
// next one with the fewest mutations it can find, and Hydrate adopts markup
// that was rendered out-of-band instead of creating it:
//
//	doc := dom.NewDocument()
//	loop := sched.New()
//	loop.Start(ctx)
//	r := render.New(doc, loop)
//
//	prev := view(0)
//	r.Render(prev, doc.Body())
//	next := view(1)
//	r.Patch(prev, next, doc.Body())
//
// # Reconciliation
//
// Two nodes are the same when they have the same kind, key and tag (or
// component identity). Same nodes are updated in place; attributes are diffed
// key by key. Children are matched by position unless one of them has a key,
// in which case keyed children are matched by key and existing live nodes are
// moved rather than recreated.
//
// # Lifecycle
//
// Every component instance gets its own lifecycle.Owner. Mount callbacks run
// as loop microtasks after the Render, Patch or Hydrate call that created the
// instance has returned. Call the renderer inside sched.Loop.Do to make sure
// the caller observes the final document before any callback runs. Removed
// instances, and instances whose nodes are removed by other code, unmount
// exactly once.
//
// # Hydration
//
// Text children consume prefixes of live text nodes, so ["Hello", " ",
// "World"] hydrates against a single "Hello World" node, which is split so
// later patches can address each string. Whitespace-only text between
// elements is skipped. In strict mode every mismatch is an error; otherwise
// the document is repaired and the mismatch counted.
//
// # Markup
//
// RenderToString and RenderToWriter serialize a tree to HTML without a
// document. Text and attribute values are escaped; Raw nodes are written as
// is and should only carry trusted content.
package render
