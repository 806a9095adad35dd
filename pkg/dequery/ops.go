package dequery

import (
	"golang.org/x/net/html"

	"github.com/vango-dev/livedom/pkg/dom"
)

// each returns a step applying fn to every node and passing the set on.
func each(name string, fn func(*html.Node)) step {
	return step{name: name, fn: func(nodes []*html.Node) ([]*html.Node, error) {
		for _, n := range nodes {
			fn(n)
		}
		return nodes, nil
	}}
}

// AddClass adds classes to every node.
func (c *Chain) AddClass(classes ...string) *Chain {
	return c.then(each("addClass", func(n *html.Node) { c.d.doc.AddClass(n, classes...) }))
}

// RemoveClass removes classes from every node.
func (c *Chain) RemoveClass(classes ...string) *Chain {
	return c.then(each("removeClass", func(n *html.Node) { c.d.doc.RemoveClass(n, classes...) }))
}

// ToggleClass toggles class on every node.
func (c *Chain) ToggleClass(class string) *Chain {
	return c.then(each("toggleClass", func(n *html.Node) { c.d.doc.ToggleClass(n, class) }))
}

// SetAttr sets an attribute on every node.
func (c *Chain) SetAttr(key, value string) *Chain {
	return c.then(each("setAttr", func(n *html.Node) { c.d.doc.SetAttr(n, key, value) }))
}

// RemoveAttr removes an attribute from every node.
func (c *Chain) RemoveAttr(key string) *Chain {
	return c.then(each("removeAttr", func(n *html.Node) { c.d.doc.RemoveAttr(n, key) }))
}

// SetText replaces the children of every node with a text node.
func (c *Chain) SetText(text string) *Chain {
	return c.then(each("setText", func(n *html.Node) { c.d.doc.SetText(n, text) }))
}

// On registers fn for events of type typ on every node.
func (c *Chain) On(typ string, fn dom.Listener) *Chain {
	return c.then(each("on", func(n *html.Node) { c.d.doc.On(n, typ, fn) }))
}

// Off removes the listeners of type typ from every node. An empty type
// removes all of them.
func (c *Chain) Off(typ string) *Chain {
	return c.then(each("off", func(n *html.Node) { c.d.doc.Off(n, typ) }))
}

// Trigger dispatches an event of type typ carrying detail on every node.
func (c *Chain) Trigger(typ string, detail any) *Chain {
	return c.then(each("trigger", func(n *html.Node) {
		ev := dom.NewEvent(typ)
		ev.Detail = detail
		c.d.doc.Dispatch(n, ev)
	}))
}

// Each calls fn with the index and node of every node.
func (c *Chain) Each(fn func(int, *html.Node)) *Chain {
	return c.then(step{name: "each", fn: func(nodes []*html.Node) ([]*html.Node, error) {
		for i, n := range nodes {
			fn(i, n)
		}
		return nodes, nil
	}})
}

// Remove detaches every node from the document. The set keeps the detached
// nodes.
func (c *Chain) Remove() *Chain {
	return c.then(each("remove", func(n *html.Node) { c.d.doc.Remove(n) }))
}

// Find replaces the set with the descendants matching selector, in
// document order and without duplicates.
func (c *Chain) Find(selector string) *Chain {
	return c.deferred(step{name: "find", fn: func(nodes []*html.Node) ([]*html.Node, error) {
		var out []*html.Node
		seen := make(map[*html.Node]bool)
		for _, n := range nodes {
			matches, err := c.d.doc.Query(n, selector)
			if err != nil {
				return nil, err
			}
			for _, m := range matches {
				if !seen[m] {
					seen[m] = true
					out = append(out, m)
				}
			}
		}
		return out, nil
	}})
}

// Children replaces the set with the element children of every node.
func (c *Chain) Children() *Chain {
	return c.deferred(step{name: "children", fn: func(nodes []*html.Node) ([]*html.Node, error) {
		var out []*html.Node
		for _, n := range nodes {
			out = append(out, c.d.doc.ElementChildren(n)...)
		}
		return out, nil
	}})
}

// Parent replaces the set with the distinct element parents of its nodes.
func (c *Chain) Parent() *Chain {
	return c.deferred(step{name: "parent", fn: func(nodes []*html.Node) ([]*html.Node, error) {
		var out []*html.Node
		seen := make(map[*html.Node]bool)
		for _, n := range nodes {
			p := c.d.doc.Parent(n)
			if p == nil || p.Type != html.ElementNode || seen[p] {
				continue
			}
			seen[p] = true
			out = append(out, p)
		}
		return out, nil
	}})
}

// Filter keeps the nodes matching selector.
func (c *Chain) Filter(selector string) *Chain {
	return c.deferred(step{name: "filter", fn: func(nodes []*html.Node) ([]*html.Node, error) {
		var out []*html.Node
		for _, n := range nodes {
			ok, err := c.d.doc.Matches(n, selector)
			if err != nil {
				return nil, err
			}
			if ok {
				out = append(out, n)
			}
		}
		return out, nil
	}})
}

// First keeps the first node.
func (c *Chain) First() *Chain {
	return c.deferred(step{name: "first", fn: func(nodes []*html.Node) ([]*html.Node, error) {
		if len(nodes) == 0 {
			return nil, nil
		}
		return nodes[:1], nil
	}})
}
