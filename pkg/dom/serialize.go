package dom

import (
	"io"
	"strings"

	"golang.org/x/net/html"
)

// Render writes node as markup.
func (d *Document) Render(w io.Writer, node *html.Node) error {
	d.mu.Lock()
	defer d.mu.Unlock()
	return html.Render(w, node)
}

// OuterHTML returns node's markup.
func (d *Document) OuterHTML(node *html.Node) string {
	var b strings.Builder
	if err := d.Render(&b, node); err != nil {
		d.logger.Debug("render failed", "error", err)
	}
	return b.String()
}

// InnerHTML returns the markup of node's children.
func (d *Document) InnerHTML(node *html.Node) string {
	d.mu.Lock()
	defer d.mu.Unlock()
	var b strings.Builder
	for c := node.FirstChild; c != nil; c = c.NextSibling {
		if err := html.Render(&b, c); err != nil {
			d.logger.Debug("render failed", "error", err)
		}
	}
	return b.String()
}
