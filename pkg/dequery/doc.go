// Package dequery provides a chainable query handle over live nodes.
//
// A Dequery is bound to a document and a loop. Q creates a Chain for a live
// node, a slice of nodes, a reference handle, a selector or another chain:
//
//	q := dequery.New(doc, loop)
//	q.Q(button).AddClass("active").On("click", onClick)
//
// A chain whose node set is known runs every step on the calling goroutine
// before the call returns. Traversal steps (Find, Children, Parent, Filter,
// First) and chains over a reference handle without a live node are pending:
// their steps queue up and run in order on the loop once the chain is
// awaited with Wait or Future:
//
//	nodes, err := q.Q(list).Find("li.done").AddClass("faded").Wait(ctx)
//
// A pending chain over a reference polls the handle every PollInterval and
// fails with E080 once Timeout has elapsed since the chain was created.
// Steps on an empty node set are no-ops.
package dequery
