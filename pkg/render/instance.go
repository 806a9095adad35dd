package render

import (
	"sync/atomic"

	"golang.org/x/net/html"

	"github.com/vango-dev/livedom/pkg/dom"
	"github.com/vango-dev/livedom/pkg/lifecycle"
	"github.com/vango-dev/livedom/pkg/vdom"
)

// instance is the mounted counterpart of a VNode. Elements and text own one
// live node, raw nodes own the nodes their markup parsed into, fragments and
// components own the nodes of their children, deferred nodes own nothing.
type instance struct {
	vnode  *vdom.VNode
	parent *instance
	rec    *mountRecord // set on top-level instances

	node      *html.Node
	raw       []*html.Node
	children  []*instance
	listeners []dom.ListenerID

	// owner is the Owner of a component, or of an element with hooks.
	owner   *lifecycle.Owner
	watched *html.Node
	failure error
	removed bool
	dirty   atomic.Bool
}

func (i *instance) kind() vdom.VKind { return i.vnode.Kind }

// liveNodes appends the top-level live nodes of inst to out, in order.
func liveNodes(inst *instance, out []*html.Node) []*html.Node {
	if inst == nil {
		return out
	}
	switch inst.kind() {
	case vdom.KindElement, vdom.KindText:
		return append(out, inst.node)
	case vdom.KindRaw:
		return append(out, inst.raw...)
	}
	for _, c := range inst.children {
		out = liveNodes(c, out)
	}
	return out
}

func firstLive(inst *instance) *html.Node {
	if inst == nil {
		return nil
	}
	switch inst.kind() {
	case vdom.KindElement, vdom.KindText:
		return inst.node
	case vdom.KindRaw:
		if len(inst.raw) > 0 {
			return inst.raw[0]
		}
		return nil
	}
	for _, c := range inst.children {
		if n := firstLive(c); n != nil {
			return n
		}
	}
	return nil
}

func lastLive(inst *instance) *html.Node {
	if inst == nil {
		return nil
	}
	switch inst.kind() {
	case vdom.KindElement, vdom.KindText:
		return inst.node
	case vdom.KindRaw:
		if len(inst.raw) > 0 {
			return inst.raw[len(inst.raw)-1]
		}
		return nil
	}
	for j := len(inst.children) - 1; j >= 0; j-- {
		if n := lastLive(inst.children[j]); n != nil {
			return n
		}
	}
	return nil
}

// parentNode returns the live node inst's nodes are children of.
func parentNode(inst *instance) *html.Node {
	for p := inst.parent; p != nil; p = p.parent {
		if p.kind() == vdom.KindElement {
			return p.node
		}
		inst = p
	}
	return inst.rec.mount
}

// liveBefore returns the node inst's content follows, or nil when it starts
// its parent element.
func liveBefore(inst *instance) *html.Node {
	if n := firstLive(inst); n != nil {
		return n.PrevSibling
	}
	for cur := inst; ; {
		p := cur.parent
		if p == nil {
			return cur.rec.mount.LastChild
		}
		for j := indexOf(p.children, cur) - 1; j >= 0; j-- {
			if n := lastLive(p.children[j]); n != nil {
				return n
			}
		}
		if p.kind() == vdom.KindElement {
			return nil
		}
		cur = p
	}
}

func indexOf(list []*instance, inst *instance) int {
	for i, c := range list {
		if c == inst {
			return i
		}
	}
	return len(list)
}

// insertAfter places n after the live node after under parent, or first
// when after is nil.
func (r *Renderer) insertAfter(parent, n, after *html.Node) {
	ref := parent.FirstChild
	if after != nil {
		ref = after.NextSibling
	}
	r.doc.InsertBefore(parent, n, ref)
}

// scopeOf returns the Owner handlers and child components of inst report to.
func scopeOf(inst *instance, scope *lifecycle.Owner) *lifecycle.Owner {
	if inst.owner != nil {
		return inst.owner
	}
	return scope
}
