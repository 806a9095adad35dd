package dom

import (
	"sync"

	"golang.org/x/net/html"
)

// UnmountObserver reports when a watched node leaves the document.
type UnmountObserver interface {
	// Watch registers fn for node, replacing an earlier registration.
	Watch(node *html.Node, fn func())
	// Unwatch drops node's registration.
	Unwatch(node *html.Node)
}

// RemovalObserver is the UnmountObserver for a Document. When Remove, Replace
// or SetText detaches a subtree, every watched node inside it fires once and
// is unwatched.
type RemovalObserver struct {
	mu      sync.Mutex
	watched map[*html.Node]func()
}

// NewRemovalObserver attaches an observer to doc.
func NewRemovalObserver(doc *Document) *RemovalObserver {
	o := &RemovalObserver{watched: make(map[*html.Node]func())}
	doc.mu.Lock()
	doc.removalHooks = append(doc.removalHooks, o.removed)
	doc.mu.Unlock()
	return o
}

// Watch implements UnmountObserver.
func (o *RemovalObserver) Watch(node *html.Node, fn func()) {
	o.mu.Lock()
	defer o.mu.Unlock()
	o.watched[node] = fn
}

// Unwatch implements UnmountObserver.
func (o *RemovalObserver) Unwatch(node *html.Node) {
	o.mu.Lock()
	defer o.mu.Unlock()
	delete(o.watched, node)
}

// Len returns the number of watched nodes.
func (o *RemovalObserver) Len() int {
	o.mu.Lock()
	defer o.mu.Unlock()
	return len(o.watched)
}

// removed fires callbacks in document order, outermost first.
func (o *RemovalObserver) removed(root *html.Node) {
	var fire []func()
	o.mu.Lock()
	var walk func(*html.Node)
	walk = func(n *html.Node) {
		if fn, ok := o.watched[n]; ok {
			delete(o.watched, n)
			fire = append(fire, fn)
		}
		for c := n.FirstChild; c != nil; c = c.NextSibling {
			walk(c)
		}
	}
	walk(root)
	o.mu.Unlock()

	for _, fn := range fire {
		fn()
	}
}
