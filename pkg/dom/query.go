package dom

import (
	"strings"
	"sync"

	"github.com/andybalholm/cascadia"
	"github.com/antchfx/htmlquery"
	"golang.org/x/net/html"

	"github.com/vango-dev/livedom/internal/errors"
)

var (
	selectorMu    sync.Mutex
	selectorCache = make(map[string]cascadia.Selector)
)

// IsXPath reports whether a selector is evaluated as XPath.
func IsXPath(selector string) bool {
	s := strings.TrimSpace(selector)
	return strings.HasPrefix(s, "/") || strings.HasPrefix(s, "./") || strings.HasPrefix(s, "(")
}

func compileCSS(selector string) (cascadia.Selector, error) {
	selectorMu.Lock()
	defer selectorMu.Unlock()
	if sel, ok := selectorCache[selector]; ok {
		return sel, nil
	}
	sel, err := cascadia.Compile(selector)
	if err != nil {
		return nil, errors.New("E082").WithDetailf("%q", selector).Wrap(err)
	}
	selectorCache[selector] = sel
	return sel, nil
}

// Compile validates a selector without evaluating it.
func Compile(selector string) error {
	if strings.TrimSpace(selector) == "" {
		return errors.New("E082").WithDetail("empty selector")
	}
	if IsXPath(selector) {
		if _, err := htmlquery.QueryAll(&html.Node{Type: html.DocumentNode}, selector); err != nil {
			return errors.New("E082").WithDetailf("%q", selector).Wrap(err)
		}
		return nil
	}
	_, err := compileCSS(selector)
	return err
}

// Query returns the elements under root matching selector, in document
// order. root itself is never part of the result.
func (d *Document) Query(root *html.Node, selector string) ([]*html.Node, error) {
	if strings.TrimSpace(selector) == "" {
		return nil, errors.New("E082").WithDetail("empty selector")
	}
	if IsXPath(selector) {
		d.mu.Lock()
		defer d.mu.Unlock()
		nodes, err := htmlquery.QueryAll(root, selector)
		if err != nil {
			return nil, errors.New("E082").WithDetailf("%q", selector).Wrap(err)
		}
		out := nodes[:0]
		for _, n := range nodes {
			if n != root && n.Type == html.ElementNode {
				out = append(out, n)
			}
		}
		return out, nil
	}

	sel, err := compileCSS(selector)
	if err != nil {
		return nil, err
	}
	d.mu.Lock()
	defer d.mu.Unlock()
	var out []*html.Node
	for _, n := range sel.MatchAll(root) {
		if n != root {
			out = append(out, n)
		}
	}
	return out, nil
}

// QueryOne returns the first match, or nil.
func (d *Document) QueryOne(root *html.Node, selector string) (*html.Node, error) {
	nodes, err := d.Query(root, selector)
	if err != nil || len(nodes) == 0 {
		return nil, err
	}
	return nodes[0], nil
}

// Matches reports whether node matches selector.
func (d *Document) Matches(node *html.Node, selector string) (bool, error) {
	if node == nil || node.Type != html.ElementNode {
		return false, nil
	}
	if IsXPath(selector) {
		d.mu.Lock()
		defer d.mu.Unlock()
		top := node
		for top.Parent != nil {
			top = top.Parent
		}
		nodes, err := htmlquery.QueryAll(top, selector)
		if err != nil {
			return false, errors.New("E082").WithDetailf("%q", selector).Wrap(err)
		}
		for _, n := range nodes {
			if n == node {
				return true, nil
			}
		}
		return false, nil
	}

	sel, err := compileCSS(selector)
	if err != nil {
		return false, err
	}
	d.mu.Lock()
	defer d.mu.Unlock()
	return sel.Match(node), nil
}
