package vdom

import (
	"io"
	"strings"

	"golang.org/x/net/html"
	"golang.org/x/net/html/atom"

	"github.com/vango-dev/livedom/internal/errors"
)

// FromHTML parses markup as <body> content and converts the top-level nodes
// to VNodes. Comments are dropped.
func FromHTML(r io.Reader) ([]*VNode, error) {
	context := &html.Node{Type: html.ElementNode, Data: "body", DataAtom: atom.Body}
	nodes, err := html.ParseFragment(r, context)
	if err != nil {
		return nil, errors.New("E140").WithDetail("parse markup").Wrap(err)
	}
	out := make([]*VNode, 0, len(nodes))
	for _, n := range nodes {
		if v := FromNode(n); v != nil {
			out = append(out, v)
		}
	}
	return out, nil
}

// FromNode converts a live node and its subtree to a VNode. Document nodes
// become fragments; comments and doctypes return nil.
func FromNode(n *html.Node) *VNode {
	switch n.Type {
	case html.TextNode:
		return Text(n.Data)
	case html.ElementNode:
		v := &VNode{Kind: KindElement, Tag: n.Data, Props: make(Props, len(n.Attr))}
		for _, a := range n.Attr {
			key := a.Key
			if a.Namespace != "" {
				key = a.Namespace + ":" + a.Key
			}
			if key == "key" {
				v.Key = a.Val
				continue
			}
			v.Props[key] = a.Val
		}
		v.Children = convertChildren(n)
		return v
	case html.DocumentNode:
		return &VNode{Kind: KindFragment, Children: convertChildren(n)}
	default:
		return nil
	}
}

func convertChildren(n *html.Node) []*VNode {
	var out []*VNode
	for c := n.FirstChild; c != nil; c = c.NextSibling {
		if v := FromNode(c); v != nil {
			out = append(out, v)
		}
	}
	return out
}

// TextContent returns the logical text of a tree: the concatenation of its
// text nodes in order. Components and deferred nodes contribute nothing.
func TextContent(v *VNode) string {
	var b strings.Builder
	var walk func(*VNode)
	walk = func(v *VNode) {
		if v == nil {
			return
		}
		switch v.Kind {
		case KindText:
			b.WriteString(v.Text)
		case KindElement, KindFragment:
			for _, c := range v.Children {
				walk(c)
			}
		}
	}
	walk(v)
	return b.String()
}
