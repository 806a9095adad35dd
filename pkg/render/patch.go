package render

import (
	"golang.org/x/net/html"

	"github.com/vango-dev/livedom/internal/errors"
	"github.com/vango-dev/livedom/pkg/lifecycle"
	"github.com/vango-dev/livedom/pkg/observe"
	"github.com/vango-dev/livedom/pkg/vdom"
)

// sameNode reports whether next can update the instance rendered from prev
// in place.
func sameNode(prev, next *vdom.VNode) bool {
	if prev.Kind != next.Kind || prev.Key != next.Key {
		return false
	}
	switch next.Kind {
	case vdom.KindElement:
		return prev.Tag == next.Tag
	case vdom.KindComponent:
		return prev.Identity() == next.Identity()
	case vdom.KindRaw:
		return prev.Text == next.Text
	}
	return true
}

// create realizes v and inserts its live nodes into parent after the node
// after (first when nil).
func (r *Renderer) create(tx *tx, scope *lifecycle.Owner, parent *instance, rec *mountRecord, v *vdom.VNode, into, after *html.Node) (*instance, error) {
	inst := &instance{vnode: v, parent: parent}
	if parent == nil {
		inst.rec = rec
	}

	switch v.Kind {
	case vdom.KindText:
		inst.node = r.doc.CreateText(v.Text)
		r.insertAfter(into, inst.node, after)
		tx.op(observe.OpCreate)

	case vdom.KindElement:
		n := r.doc.CreateElement(v.Tag)
		inst.node = n
		r.applyProps(tx, n, nil, v.Props)
		r.bindElement(tx, inst, scope)
		kids, _, err := r.reconcile(tx, scopeOf(inst, scope), inst, nil, n, nil, nil, v.Children)
		inst.children = kids
		r.insertAfter(into, n, after)
		tx.op(observe.OpCreate)
		if inst.owner != nil {
			tx.mounts = append(tx.mounts, inst.owner)
		}
		if err != nil {
			return inst, err
		}

	case vdom.KindFragment:
		kids, _, err := r.reconcile(tx, scope, inst, nil, into, after, nil, v.Children)
		inst.children = kids
		if err != nil {
			return inst, err
		}

	case vdom.KindComponent:
		inst.owner = lifecycle.NewOwner(scope, v.Identity())
		tx.created = append(tx.created, inst)
		out, err := r.renderComponent(inst)
		if err != nil {
			return inst, err
		}
		kids, _, err := r.reconcile(tx, inst.owner, inst, nil, into, after, nil, outputs(out))
		inst.children = kids
		r.installInvalidator(inst)
		tx.mounts = append(tx.mounts, inst.owner)
		if err != nil {
			return inst, err
		}

	case vdom.KindRaw:
		nodes, err := r.doc.ParseFragment(v.Text, contextElement(into))
		if err != nil {
			return inst, err
		}
		inst.raw = nodes
		for _, n := range nodes {
			r.insertAfter(into, n, after)
			after = n
		}
		tx.op(observe.OpCreate)

	case vdom.KindDeferred:
		// Realized by an Async container; anywhere else it renders nothing.

	default:
		return inst, errors.New("E002").WithDetailf("kind %s", v.Kind)
	}
	return inst, nil
}

// bindElement attaches the reference handle, listeners and hook Owner of a
// newly created or hydrated element.
func (r *Renderer) bindElement(tx *tx, inst *instance, scope *lifecycle.Owner) {
	v := inst.vnode
	if !v.Hooks.Empty() {
		o := lifecycle.NewOwner(scope, v.Tag)
		node := inst.node
		for _, fn := range v.Hooks.Mount {
			fn := fn
			o.OnMount(func() { fn(node) })
		}
		for _, fn := range v.Hooks.Unmount {
			fn := fn
			o.OnUnmount(func() { fn(node) })
		}
		for _, fn := range v.Hooks.Error {
			o.OnError(fn)
		}
		inst.owner = o
		tx.created = append(tx.created, inst)
	}
	if v.Ref != nil {
		v.Ref.SetCurrent(inst.node)
		scopeOf(inst, scope).TrackRef(v.Ref)
	}
	r.bindListeners(tx, inst, scopeOf(inst, scope))
}

// patch updates old in place to render next. sameNode(old.vnode, next) holds.
func (r *Renderer) patch(tx *tx, scope *lifecycle.Owner, old *instance, next *vdom.VNode, into, after *html.Node) (*instance, error) {
	prev := old.vnode
	old.vnode = next

	switch next.Kind {
	case vdom.KindText:
		if prev.Text != next.Text {
			r.doc.SetText(old.node, next.Text)
			tx.op(observe.OpText)
		}

	case vdom.KindElement:
		r.applyProps(tx, old.node, prev.Props, next.Props)
		if prev.Ref != next.Ref {
			if prev.Ref != nil && prev.Ref.Current() == old.node {
				prev.Ref.SetCurrent(nil)
			}
		}
		if next.Ref != nil {
			next.Ref.SetCurrent(old.node)
			scopeOf(old, scope).TrackRef(next.Ref)
		}
		r.bindListeners(tx, old, scopeOf(old, scope))
		kids, _, err := r.reconcile(tx, scopeOf(old, scope), old, nil, old.node, nil, old.children, next.Children)
		old.children = kids
		return old, err

	case vdom.KindFragment:
		kids, _, err := r.reconcile(tx, scope, old, nil, into, after, old.children, next.Children)
		old.children = kids
		return old, err

	case vdom.KindComponent:
		out, err := r.renderComponent(old)
		if err != nil {
			return old, err
		}
		kids, _, err := r.reconcile(tx, old.owner, old, nil, into, after, old.children, outputs(out))
		old.children = kids
		return old, err
	}
	return old, nil
}

// reconcile moves the instances old to the VNodes next, all children of
// parent (or top-level when parent is nil) placed after the live node after.
// It returns the new instances and the last live node of the run.
//
// Keyed runs match by key and unkeyed children by order among themselves;
// other runs match by position. Matched children whose relative order
// changed are moved, never recreated.
func (r *Renderer) reconcile(tx *tx, scope *lifecycle.Owner, parent *instance, rec *mountRecord, into, after *html.Node, old []*instance, next []*vdom.VNode) ([]*instance, *html.Node, error) {
	matches := make([]int, len(next))
	used := make([]bool, len(old))
	for i := range matches {
		matches[i] = -1
	}

	if hasKeys(old, next) {
		byKey := make(map[string]int)
		var unkeyed []int
		for j, o := range old {
			if o.vnode.Key != "" {
				byKey[o.vnode.Key] = j
			} else {
				unkeyed = append(unkeyed, j)
			}
		}
		u := 0
		for i, n := range next {
			j := -1
			if n.Key != "" {
				if k, ok := byKey[n.Key]; ok {
					j = k
				}
			} else if u < len(unkeyed) {
				j = unkeyed[u]
				u++
			}
			if j >= 0 && !used[j] && sameNode(old[j].vnode, n) {
				matches[i] = j
				used[j] = true
			}
		}
	} else {
		for i, n := range next {
			if i < len(old) && sameNode(old[i].vnode, n) {
				matches[i] = i
				used[i] = true
			}
		}
	}

	for j, o := range old {
		if !used[j] {
			r.remove(tx, o)
		}
	}

	out := make([]*instance, 0, len(next))
	lastIndex := -1
	for i, n := range next {
		var (
			inst *instance
			err  error
		)
		if j := matches[i]; j >= 0 {
			inst, err = r.patch(tx, scope, old[j], n, into, after)
			if j < lastIndex {
				r.place(tx, inst, into, after)
			} else {
				lastIndex = j
			}
		} else {
			inst, err = r.create(tx, scope, parent, rec, n, into, after)
		}
		if inst != nil {
			out = append(out, inst)
			if l := lastLive(inst); l != nil {
				after = l
			}
		}
		if err != nil {
			return out, after, err
		}
	}
	return out, after, nil
}

func hasKeys(old []*instance, next []*vdom.VNode) bool {
	for _, o := range old {
		if o.vnode.Key != "" {
			return true
		}
	}
	for _, n := range next {
		if n.Key != "" {
			return true
		}
	}
	return false
}

// place moves the live nodes of inst, in order, after the node after.
func (r *Renderer) place(tx *tx, inst *instance, into, after *html.Node) {
	for _, n := range liveNodes(inst, nil) {
		ref := into.FirstChild
		if after != nil {
			ref = after.NextSibling
		}
		r.doc.Move(into, n, ref)
		after = n
	}
	tx.op(observe.OpMove)
}

// remove detaches inst. Its owners unmount as microtasks; reference handles
// still pointing at its nodes are cleared right away.
func (r *Renderer) remove(tx *tx, inst *instance) {
	r.release(tx, inst, false)
	for _, n := range liveNodes(inst, nil) {
		if w, ok := r.watchedBy[n]; ok && !w.removed {
			// An ancestor outside the removed subtree watched this node.
			r.unwatch(w)
			tx.rewatch = append(tx.rewatch, w)
		}
		r.doc.Remove(n)
	}
	tx.op(observe.OpRemove)
}

// release marks the subtree removed and drops its watchers, listeners and
// references. owned tells whether an ancestor in the subtree has an Owner,
// in which case the Owner tree unmounts this one.
func (r *Renderer) release(tx *tx, inst *instance, owned bool) {
	inst.removed = true
	r.unwatch(inst)
	if inst.owner != nil {
		if !owned {
			tx.unmounts = append(tx.unmounts, inst.owner)
		}
		owned = true
	}
	if inst.kind() == vdom.KindElement {
		if ref := inst.vnode.Ref; ref != nil && ref.Current() == inst.node {
			ref.SetCurrent(nil)
		}
		r.doc.Off(inst.node, "")
		inst.listeners = nil
	}
	for _, c := range inst.children {
		r.release(tx, c, owned)
	}
}

// renderComponent runs the component function of inst. A failed instance
// renders the error view without calling the function again until
// Owner.Recover is called.
func (r *Renderer) renderComponent(inst *instance) (*vdom.VNode, error) {
	owner := inst.owner
	if err := owner.Failure(); err != nil {
		inst.failure = err
		return r.errorView(err), nil
	}
	inst.failure = nil
	owner.BeginRender()
	comp := inst.vnode.Comp
	out := lifecycle.Guard(owner, func() *vdom.VNode { return comp(owner) })
	if err := owner.Failure(); err != nil {
		inst.failure = err
		return r.errorView(err), nil
	}
	if out == nil {
		return nil, nil
	}
	if err := vdom.Validate(out); err != nil {
		return nil, err
	}
	return out, nil
}

func outputs(out *vdom.VNode) []*vdom.VNode {
	if out == nil {
		return nil
	}
	return []*vdom.VNode{out}
}

// installInvalidator lets Owner.Invalidate re-render inst. Re-renders are
// coalesced and run as loop microtasks.
func (r *Renderer) installInvalidator(inst *instance) {
	inst.owner.SetInvalidator(func() {
		if inst.dirty.Swap(true) {
			return
		}
		r.loop.Defer(func() { r.rerender(inst) })
	})
}

func (r *Renderer) rerender(inst *instance) {
	r.mu.Lock()
	defer r.mu.Unlock()
	if !inst.dirty.Swap(false) || inst.removed || inst.owner.Removed() {
		return
	}

	tx, finish := r.begin(observe.PhasePatch)
	into := parentNode(inst)
	after := liveBefore(inst)
	out, err := r.renderComponent(inst)
	if err == nil {
		var kids []*instance
		kids, _, err = r.reconcile(tx, inst.owner, inst, nil, into, after, inst.children, outputs(out))
		inst.children = kids
	}
	finish(err)
}

// contextElement returns the element raw markup is parsed in.
func contextElement(n *html.Node) *html.Node {
	if n != nil && n.Type == html.ElementNode {
		return n
	}
	return nil
}
