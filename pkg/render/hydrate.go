package render

import (
	"strconv"
	"strings"

	"golang.org/x/net/html"
	"golang.org/x/net/html/atom"

	"github.com/vango-dev/livedom/internal/errors"
	"github.com/vango-dev/livedom/pkg/lifecycle"
	"github.com/vango-dev/livedom/pkg/observe"
	"github.com/vango-dev/livedom/pkg/vdom"
)

// Mismatch kinds counted in non-strict hydration.
const (
	mismatchCount   = "count"
	mismatchTag     = "tag"
	mismatchText    = "text"
	mismatchMissing = "missing"
	mismatchExtra   = "extra"
)

// Hydrate adopts the live nodes live, rendered out-of-band, as the
// realization of nodes. References are attached and listeners bound without
// recreating nodes. All live nodes must share a parent, which becomes the
// mount point for later Patch calls; Tree returns the hydrated tree.
//
// In strict mode the number of top-level nodes must match after adjacent
// text is fused, and any mismatch is an error. Trees holding components are
// counted by the walk itself, since a component may render any number of
// roots. Otherwise mismatches are repaired in place.
func (r *Renderer) Hydrate(nodes []*vdom.VNode, live []*html.Node, strict bool) error {
	if len(live) == 0 {
		if want, ok := expectedCount(nodes); strict && ok && want > 0 {
			return errors.New("E045").WithDetailf("expected %d nodes, got 0", want)
		}
		return errors.New("E003").WithDetail("hydrate needs at least one live node to find the mount point")
	}
	mount := live[0].Parent
	if mount == nil {
		return errors.New("E003").WithDetail("live nodes are detached")
	}
	for _, n := range live {
		if n.Parent != mount {
			return errors.New("E043").WithDetail("live nodes do not share a parent")
		}
	}
	return r.hydrate(nodes, mount, live, strict)
}

// HydrateMount hydrates tree against all children of mount.
func (r *Renderer) HydrateMount(tree *vdom.VNode, mount *html.Node, strict bool) error {
	if mount == nil {
		return errors.New("E003")
	}
	if tree == nil {
		return errors.New("E001").WithDetail("nil tree")
	}
	return r.hydrate([]*vdom.VNode{tree}, mount, r.doc.Children(mount), strict)
}

func (r *Renderer) hydrate(nodes []*vdom.VNode, mount *html.Node, live []*html.Node, strict bool) error {
	for _, n := range nodes {
		if err := vdom.Validate(n); err != nil {
			return err
		}
	}
	if want, ok := expectedCount(nodes); ok {
		if got := significantCount(live); want != got {
			if strict {
				return errors.New("E045").WithDetailf("expected %d nodes, got %d", want, got)
			}
			r.metrics.HydrationMismatch(mismatchCount)
		}
	}

	tree := vdom.Fragment(nodes)
	if len(nodes) == 1 {
		tree = nodes[0]
	}

	r.mu.Lock()
	defer r.mu.Unlock()
	if r.records[mount] != nil {
		return errors.New("E004").WithDetail("mount point already holds a tree")
	}

	tx, finish := r.begin(observe.PhaseHydrate)
	h := &hydration{r: r, tx: tx, strict: strict}
	rec := r.newRecord(mount)
	c := newCursor(mount, live)
	inst, err := h.node(rec.owner, nil, rec, tree, c)
	if err == nil {
		err = h.rest(c)
	}
	if err != nil {
		// Nothing is mounted or watched after a failed hydration.
		tx.created, tx.mounts = nil, nil
		finish(err)
		return err
	}
	rec.tree = tree
	rec.inst = inst
	r.records[mount] = rec
	tx.mounts = append(tx.mounts, rec.owner)
	finish(nil)
	return nil
}

// cursor walks the live children of one parent during hydration.
type cursor struct {
	parent *html.Node
	nodes  []*html.Node
	i      int
	last   *html.Node // last node adopted or inserted
}

func newCursor(parent *html.Node, nodes []*html.Node) *cursor {
	return &cursor{parent: parent, nodes: append([]*html.Node(nil), nodes...)}
}

// skip moves past comments and, with ws, whitespace-only text.
func (c *cursor) skip(ws bool) {
	for c.i < len(c.nodes) {
		n := c.nodes[c.i]
		if n.Type == html.CommentNode || n.Type == html.DoctypeNode || (ws && isBlank(n)) {
			c.i++
			continue
		}
		return
	}
}

func (c *cursor) peek() *html.Node {
	if c.i < len(c.nodes) {
		return c.nodes[c.i]
	}
	return nil
}

func (c *cursor) advance() {
	c.last = c.nodes[c.i]
	c.i++
}

// after returns the node new content is inserted after: right before the
// current node, or after the last adopted one.
func (c *cursor) after() *html.Node {
	if n := c.peek(); n != nil {
		return n.PrevSibling
	}
	if c.last != nil {
		return c.last
	}
	if len(c.nodes) > 0 {
		return c.nodes[len(c.nodes)-1]
	}
	return c.parent.LastChild
}

func isBlank(n *html.Node) bool {
	return n.Type == html.TextNode && strings.TrimSpace(n.Data) == ""
}

// hydration is the state of one Hydrate call.
type hydration struct {
	r      *Renderer
	tx     *tx
	strict bool
}

func (h *hydration) mismatch(kind string) {
	h.r.metrics.HydrationMismatch(kind)
	h.r.logger.Debug("hydration mismatch repaired", "kind", kind)
}

// insert creates v at the cursor position, as a repair or for content the
// markup cannot carry.
func (h *hydration) insert(scope *lifecycle.Owner, parent *instance, rec *mountRecord, v *vdom.VNode, c *cursor) (*instance, error) {
	inst, err := h.r.create(h.tx, scope, parent, rec, v, c.parent, c.after())
	if l := lastLive(inst); l != nil {
		c.last = l
	}
	return inst, err
}

func (h *hydration) node(scope *lifecycle.Owner, parent *instance, rec *mountRecord, v *vdom.VNode, c *cursor) (*instance, error) {
	switch v.Kind {
	case vdom.KindText:
		return h.text(scope, parent, rec, v, c)
	case vdom.KindElement:
		return h.element(scope, parent, rec, v, c)
	case vdom.KindFragment:
		inst := &instance{vnode: v, parent: parent}
		if parent == nil {
			inst.rec = rec
		}
		for _, child := range v.Children {
			ci, err := h.node(scope, inst, nil, child, c)
			if ci != nil {
				inst.children = append(inst.children, ci)
			}
			if err != nil {
				return inst, err
			}
		}
		return inst, nil
	case vdom.KindComponent:
		return h.component(scope, parent, rec, v, c)
	case vdom.KindRaw:
		return h.raw(scope, parent, rec, v, c)
	case vdom.KindDeferred:
		inst := &instance{vnode: v, parent: parent}
		if parent == nil {
			inst.rec = rec
		}
		return inst, nil
	}
	return nil, errors.New("E002").WithDetailf("kind %s", v.Kind)
}

// text adopts a prefix of the live text at the cursor. A longer live node is
// split so each text child owns its own node; adjacent live text nodes are
// merged when the child spans them.
func (h *hydration) text(scope *lifecycle.Owner, parent *instance, rec *mountRecord, v *vdom.VNode, c *cursor) (*instance, error) {
	c.skip(false)
	want := v.Text
	n := c.peek()

	for n != nil && n.Type == html.TextNode && len(n.Data) < len(want) && strings.HasPrefix(want, n.Data) {
		if c.i+1 >= len(c.nodes) || c.nodes[c.i+1].Type != html.TextNode {
			break
		}
		next := c.nodes[c.i+1]
		h.r.doc.SetText(n, n.Data+next.Data)
		h.r.doc.Remove(next)
		c.nodes = append(c.nodes[:c.i+1], c.nodes[c.i+2:]...)
	}

	if want == "" {
		// Empty strings never reach markup.
		return h.insert(scope, parent, rec, v, c)
	}
	if n == nil || n.Type != html.TextNode {
		if h.strict {
			return nil, errors.New("E043").WithDetailf("text %q missing", want)
		}
		h.mismatch(mismatchMissing)
		return h.insert(scope, parent, rec, v, c)
	}

	if !strings.HasPrefix(n.Data, want) {
		if h.strict {
			return nil, errors.New("E041").WithDetailf("expected %q, got %q", want, n.Data)
		}
		h.mismatch(mismatchText)
		h.r.doc.SetText(n, want)
	} else if len(want) < len(n.Data) {
		tail, err := h.r.doc.SplitText(n, len(want))
		if err != nil {
			return nil, err
		}
		c.nodes = append(c.nodes[:c.i+1], append([]*html.Node{tail}, c.nodes[c.i+1:]...)...)
		h.tx.op(observe.OpText)
	}

	inst := &instance{vnode: v, parent: parent, node: n}
	if parent == nil {
		inst.rec = rec
	}
	c.advance()
	return inst, nil
}

func (h *hydration) element(scope *lifecycle.Owner, parent *instance, rec *mountRecord, v *vdom.VNode, c *cursor) (*instance, error) {
	c.skip(true)
	n := c.peek()
	switch {
	case n == nil:
		if h.strict {
			return nil, errors.New("E043").WithDetailf("<%s> missing", v.Tag)
		}
		h.mismatch(mismatchMissing)
		return h.insert(scope, parent, rec, v, c)

	case n.Type != html.ElementNode:
		if h.strict {
			return nil, errors.New("E043").WithDetailf("<%s> missing, found text %q", v.Tag, n.Data)
		}
		h.mismatch(mismatchMissing)
		return h.insert(scope, parent, rec, v, c)

	case n.Data != v.Tag:
		if h.strict {
			return nil, errors.New("E040").WithDetailf("expected <%s>, got <%s>", v.Tag, n.Data)
		}
		h.mismatch(mismatchTag)
		c.i++
		inst, err := h.r.create(h.tx, scope, parent, rec, v, c.parent, n.PrevSibling)
		h.r.doc.Remove(n)
		c.last = lastLive(inst)
		return inst, err
	}

	inst := &instance{vnode: v, parent: parent, node: n}
	if parent == nil {
		inst.rec = rec
	}
	h.r.adoptProps(h.tx, n, v.Props)
	h.r.bindElement(h.tx, inst, scope)
	c.advance()

	cc := newCursor(n, h.r.doc.Children(n))
	inner := scopeOf(inst, scope)
	for _, child := range v.Children {
		ci, err := h.node(inner, inst, nil, child, cc)
		if ci != nil {
			inst.children = append(inst.children, ci)
		}
		if err != nil {
			return inst, err
		}
	}
	if inst.owner != nil {
		h.tx.mounts = append(h.tx.mounts, inst.owner)
	}
	return inst, h.rest(cc)
}

func (h *hydration) component(scope *lifecycle.Owner, parent *instance, rec *mountRecord, v *vdom.VNode, c *cursor) (*instance, error) {
	inst := &instance{vnode: v, parent: parent}
	if parent == nil {
		inst.rec = rec
	}
	inst.owner = lifecycle.NewOwner(scope, v.Identity())
	h.tx.created = append(h.tx.created, inst)

	out, err := h.r.renderComponent(inst)
	if err != nil {
		return inst, err
	}
	if out != nil {
		child, err := h.node(inst.owner, inst, nil, out, c)
		if child != nil {
			inst.children = []*instance{child}
		}
		if err != nil {
			return inst, err
		}
	}
	h.r.installInvalidator(inst)
	h.tx.mounts = append(h.tx.mounts, inst.owner)
	return inst, nil
}

// raw adopts as many live nodes as its markup parses into.
func (h *hydration) raw(scope *lifecycle.Owner, parent *instance, rec *mountRecord, v *vdom.VNode, c *cursor) (*instance, error) {
	parsed, err := h.r.doc.ParseFragment(v.Text, contextElement(c.parent))
	if err != nil {
		return nil, err
	}
	c.skip(true)
	inst := &instance{vnode: v, parent: parent}
	if parent == nil {
		inst.rec = rec
	}
	for range parsed {
		if c.peek() == nil {
			if h.strict {
				return inst, errors.New("E043").WithDetail("raw markup missing")
			}
			h.mismatch(mismatchMissing)
			break
		}
		inst.raw = append(inst.raw, c.peek())
		c.advance()
	}
	return inst, nil
}

// rest deals with the live nodes left after all children were adopted.
func (h *hydration) rest(c *cursor) error {
	for c.skip(true); c.peek() != nil; c.skip(true) {
		n := c.peek()
		if h.strict {
			return errors.New("E043").WithDetailf("unexpected %s", describe(n))
		}
		h.mismatch(mismatchExtra)
		c.i++
		h.r.doc.Remove(n)
	}
	return nil
}

func describe(n *html.Node) string {
	if n.Type == html.ElementNode {
		return "<" + n.Data + ">"
	}
	return "text " + strconv.Quote(n.Data)
}

// expectedCount counts the top-level live nodes nodes should hydrate onto.
// It reports false when a component makes the count unknown before render.
func expectedCount(nodes []*vdom.VNode) (int, bool) {
	count := 0
	known := true
	inText := false
	var walk func([]*vdom.VNode)
	walk = func(list []*vdom.VNode) {
		for _, n := range list {
			switch n.Kind {
			case vdom.KindText:
				if !inText && strings.TrimSpace(n.Text) != "" {
					count++
					inText = true
				}
				continue
			case vdom.KindFragment:
				walk(n.Children)
				continue
			case vdom.KindDeferred:
				continue
			case vdom.KindComponent:
				known = false
				inText = false
				continue
			case vdom.KindRaw:
				inText = false
				count += rawCount(n.Text)
				continue
			}
			inText = false
			count++
		}
	}
	walk(nodes)
	return count, known
}

func rawCount(markup string) int {
	body := &html.Node{Type: html.ElementNode, Data: "body", DataAtom: atom.Body}
	nodes, err := html.ParseFragment(strings.NewReader(markup), body)
	if err != nil {
		return 0
	}
	return significantCount(nodes)
}

// significantCount counts live nodes, skipping comments and whitespace-only
// text, fusing adjacent text nodes.
func significantCount(live []*html.Node) int {
	count := 0
	inText := false
	for _, n := range live {
		switch {
		case n.Type == html.CommentNode || n.Type == html.DoctypeNode:
			continue
		case n.Type == html.TextNode:
			if !inText && !isBlank(n) {
				count++
				inText = true
			}
			continue
		}
		inText = false
		count++
	}
	return count
}
