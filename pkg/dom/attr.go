package dom

import (
	"strings"

	"golang.org/x/net/html"
)

// SetAttr sets an attribute, replacing an existing value.
func (d *Document) SetAttr(node *html.Node, key, value string) {
	d.mu.Lock()
	defer d.mu.Unlock()
	setAttr(node, key, value)
}

func setAttr(node *html.Node, key, value string) {
	for i := range node.Attr {
		if node.Attr[i].Namespace == "" && node.Attr[i].Key == key {
			node.Attr[i].Val = value
			return
		}
	}
	node.Attr = append(node.Attr, html.Attribute{Key: key, Val: value})
}

// RemoveAttr removes an attribute if present.
func (d *Document) RemoveAttr(node *html.Node, key string) {
	d.mu.Lock()
	defer d.mu.Unlock()
	removeAttr(node, key)
}

func removeAttr(node *html.Node, key string) {
	for i := range node.Attr {
		if node.Attr[i].Namespace == "" && node.Attr[i].Key == key {
			node.Attr = append(node.Attr[:i], node.Attr[i+1:]...)
			return
		}
	}
}

// Attr returns an attribute value and whether it is present.
func (d *Document) Attr(node *html.Node, key string) (string, bool) {
	d.mu.Lock()
	defer d.mu.Unlock()
	return attr(node, key)
}

func attr(node *html.Node, key string) (string, bool) {
	for _, a := range node.Attr {
		if a.Namespace == "" && a.Key == key {
			return a.Val, true
		}
	}
	return "", false
}

// HasAttr reports whether the attribute is present.
func (d *Document) HasAttr(node *html.Node, key string) bool {
	_, ok := d.Attr(node, key)
	return ok
}

// Attrs returns a copy of node's attributes.
func (d *Document) Attrs(node *html.Node) []html.Attribute {
	d.mu.Lock()
	defer d.mu.Unlock()
	return append([]html.Attribute(nil), node.Attr...)
}

// AddClass adds each class that is not already present.
func (d *Document) AddClass(node *html.Node, classes ...string) {
	d.mu.Lock()
	defer d.mu.Unlock()
	list := classList(node)
	for _, c := range splitClasses(classes) {
		if !contains(list, c) {
			list = append(list, c)
		}
	}
	setAttr(node, "class", strings.Join(list, " "))
}

// RemoveClass removes each class. An empty class attribute is removed.
func (d *Document) RemoveClass(node *html.Node, classes ...string) {
	d.mu.Lock()
	defer d.mu.Unlock()
	if _, ok := attr(node, "class"); !ok {
		return
	}
	remove := splitClasses(classes)
	var kept []string
	for _, c := range classList(node) {
		if !contains(remove, c) {
			kept = append(kept, c)
		}
	}
	if len(kept) == 0 {
		removeAttr(node, "class")
		return
	}
	setAttr(node, "class", strings.Join(kept, " "))
}

// ToggleClass flips a class and reports whether it is now present.
func (d *Document) ToggleClass(node *html.Node, class string) bool {
	if d.HasClass(node, class) {
		d.RemoveClass(node, class)
		return false
	}
	d.AddClass(node, class)
	return true
}

// HasClass reports whether node carries the class.
func (d *Document) HasClass(node *html.Node, class string) bool {
	d.mu.Lock()
	defer d.mu.Unlock()
	return contains(classList(node), class)
}

func classList(node *html.Node) []string {
	v, _ := attr(node, "class")
	return strings.Fields(v)
}

func splitClasses(classes []string) []string {
	var out []string
	for _, c := range classes {
		out = append(out, strings.Fields(c)...)
	}
	return out
}

func contains(list []string, s string) bool {
	for _, v := range list {
		if v == s {
			return true
		}
	}
	return false
}
