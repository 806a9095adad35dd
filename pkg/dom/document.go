package dom

import (
	"io"
	"log/slog"
	"strings"
	"sync"

	"golang.org/x/net/html"
	"golang.org/x/net/html/atom"

	"github.com/vango-dev/livedom/internal/errors"
)

// Option configures a Document.
type Option func(*Document)

// WithLogger sets the document logger.
func WithLogger(logger *slog.Logger) Option {
	return func(d *Document) {
		if logger != nil {
			d.logger = logger
		}
	}
}

// Document is a live node tree.
type Document struct {
	mu     sync.Mutex
	root   *html.Node
	logger *slog.Logger

	listeners map[*html.Node][]listener
	nextID    ListenerID

	removalHooks []func(removed *html.Node)
}

func newDocument(root *html.Node, opts []Option) *Document {
	d := &Document{
		root:      root,
		logger:    slog.Default(),
		listeners: make(map[*html.Node][]listener),
	}
	for _, opt := range opts {
		opt(d)
	}
	d.logger = d.logger.With("component", "dom")
	return d
}

// NewDocument creates an empty <html><head></head><body></body></html> document.
func NewDocument(opts ...Option) *Document {
	root, err := html.Parse(strings.NewReader(""))
	if err != nil {
		// html.Parse only fails on reader errors.
		panic(err)
	}
	return newDocument(root, opts)
}

// Parse parses a full markup document.
func Parse(r io.Reader, opts ...Option) (*Document, error) {
	root, err := html.Parse(r)
	if err != nil {
		return nil, errors.New("E140").WithDetail("parse markup").Wrap(err)
	}
	return newDocument(root, opts), nil
}

// ParseFragment parses markup in the context of an element and returns the
// detached top-level nodes. A nil context parses as <body> content.
func (d *Document) ParseFragment(markup string, context *html.Node) ([]*html.Node, error) {
	if context == nil {
		context = &html.Node{Type: html.ElementNode, Data: "body", DataAtom: atom.Body}
	}
	nodes, err := html.ParseFragment(strings.NewReader(markup), context)
	if err != nil {
		return nil, errors.New("E140").WithDetail("parse fragment").Wrap(err)
	}
	return nodes, nil
}

// Root returns the document node.
func (d *Document) Root() *html.Node {
	return d.root
}

// Body returns the <body> element, or the document node when there is none.
func (d *Document) Body() *html.Node {
	d.mu.Lock()
	defer d.mu.Unlock()
	if body := findElement(d.root, atom.Body); body != nil {
		return body
	}
	return d.root
}

// Head returns the <head> element, or nil.
func (d *Document) Head() *html.Node {
	d.mu.Lock()
	defer d.mu.Unlock()
	return findElement(d.root, atom.Head)
}

func findElement(n *html.Node, a atom.Atom) *html.Node {
	if n.Type == html.ElementNode && n.DataAtom == a {
		return n
	}
	for c := n.FirstChild; c != nil; c = c.NextSibling {
		if found := findElement(c, a); found != nil {
			return found
		}
	}
	return nil
}

// CreateElement returns a detached element.
func (d *Document) CreateElement(tag string) *html.Node {
	tag = strings.ToLower(tag)
	return &html.Node{Type: html.ElementNode, Data: tag, DataAtom: atom.Lookup([]byte(tag))}
}

// CreateText returns a detached text node.
func (d *Document) CreateText(text string) *html.Node {
	return &html.Node{Type: html.TextNode, Data: text}
}

// CreateComment returns a detached comment node.
func (d *Document) CreateComment(text string) *html.Node {
	return &html.Node{Type: html.CommentNode, Data: text}
}

// Append moves child to the end of parent. A child that is attached elsewhere
// is moved without a removal notification.
func (d *Document) Append(parent, child *html.Node) {
	d.mu.Lock()
	defer d.mu.Unlock()
	detach(child)
	parent.AppendChild(child)
}

// InsertBefore moves child before ref under parent; a nil ref appends.
func (d *Document) InsertBefore(parent, child, ref *html.Node) {
	d.mu.Lock()
	defer d.mu.Unlock()
	if ref == child {
		return
	}
	detach(child)
	if ref == nil || ref.Parent != parent {
		parent.AppendChild(child)
		return
	}
	parent.InsertBefore(child, ref)
}

// Move repositions an attached node. Unlike Remove it does not notify the
// removal observer, so moved nodes keep their lifecycle.
func (d *Document) Move(parent, child, ref *html.Node) {
	d.InsertBefore(parent, child, ref)
}

// Remove detaches node and notifies removal hooks. Removing a detached node
// is a no-op.
func (d *Document) Remove(node *html.Node) {
	d.mu.Lock()
	if node == nil || node.Parent == nil {
		d.mu.Unlock()
		return
	}
	node.Parent.RemoveChild(node)
	hooks := append([]func(*html.Node){}, d.removalHooks...)
	d.mu.Unlock()

	for _, hook := range hooks {
		hook(node)
	}
}

// Replace puts next where old is and removes old.
func (d *Document) Replace(old, next *html.Node) {
	d.mu.Lock()
	parent := old.Parent
	if parent == nil {
		d.mu.Unlock()
		return
	}
	detach(next)
	parent.InsertBefore(next, old)
	d.mu.Unlock()
	d.Remove(old)
}

// SplitText splits a text node at the byte offset. The receiver keeps the
// head and the returned node, inserted right after it, holds the tail.
func (d *Document) SplitText(node *html.Node, offset int) (*html.Node, error) {
	d.mu.Lock()
	defer d.mu.Unlock()
	if node.Type != html.TextNode {
		return nil, errors.New("E001").WithDetail("SplitText on a non-text node")
	}
	if offset < 0 || offset > len(node.Data) {
		return nil, errors.New("E001").WithDetailf("SplitText offset %d out of range [0,%d]", offset, len(node.Data))
	}
	tail := &html.Node{Type: html.TextNode, Data: node.Data[offset:]}
	node.Data = node.Data[:offset]
	if node.Parent != nil {
		node.Parent.InsertBefore(tail, node.NextSibling)
	}
	return tail, nil
}

// SetText sets the data of a text node, or replaces the children of an
// element with a single text node.
func (d *Document) SetText(node *html.Node, text string) {
	d.mu.Lock()
	if node.Type == html.TextNode || node.Type == html.CommentNode {
		node.Data = text
		d.mu.Unlock()
		return
	}
	var removed []*html.Node
	for c := node.FirstChild; c != nil; {
		next := c.NextSibling
		node.RemoveChild(c)
		removed = append(removed, c)
		c = next
	}
	if text != "" {
		node.AppendChild(&html.Node{Type: html.TextNode, Data: text})
	}
	hooks := append([]func(*html.Node){}, d.removalHooks...)
	d.mu.Unlock()

	for _, c := range removed {
		for _, hook := range hooks {
			hook(c)
		}
	}
}

// TextContent returns the concatenated text of node and its descendants.
func (d *Document) TextContent(node *html.Node) string {
	d.mu.Lock()
	defer d.mu.Unlock()
	return textContent(node)
}

func textContent(n *html.Node) string {
	switch n.Type {
	case html.TextNode:
		return n.Data
	case html.CommentNode:
		return ""
	}
	var b strings.Builder
	var walk func(*html.Node)
	walk = func(n *html.Node) {
		for c := n.FirstChild; c != nil; c = c.NextSibling {
			switch c.Type {
			case html.TextNode:
				b.WriteString(c.Data)
			case html.ElementNode, html.DocumentNode:
				walk(c)
			}
		}
	}
	walk(n)
	return b.String()
}

// Children returns a snapshot of node's child nodes, text included.
func (d *Document) Children(node *html.Node) []*html.Node {
	d.mu.Lock()
	defer d.mu.Unlock()
	var out []*html.Node
	for c := node.FirstChild; c != nil; c = c.NextSibling {
		out = append(out, c)
	}
	return out
}

// ElementChildren returns a snapshot of node's element children.
func (d *Document) ElementChildren(node *html.Node) []*html.Node {
	d.mu.Lock()
	defer d.mu.Unlock()
	var out []*html.Node
	for c := node.FirstChild; c != nil; c = c.NextSibling {
		if c.Type == html.ElementNode {
			out = append(out, c)
		}
	}
	return out
}

// Parent returns node's parent, or nil.
func (d *Document) Parent(node *html.Node) *html.Node {
	d.mu.Lock()
	defer d.mu.Unlock()
	return node.Parent
}

// Contains reports whether node is root or one of its descendants.
func (d *Document) Contains(root, node *html.Node) bool {
	d.mu.Lock()
	defer d.mu.Unlock()
	for n := node; n != nil; n = n.Parent {
		if n == root {
			return true
		}
	}
	return false
}

// Attached reports whether node is connected to the document root.
func (d *Document) Attached(node *html.Node) bool {
	return d.Contains(d.root, node)
}

func detach(n *html.Node) {
	if n.Parent != nil {
		n.Parent.RemoveChild(n)
	}
}
