package dom

import (
	"strings"
	"testing"

	"github.com/google/go-cmp/cmp"
	"golang.org/x/net/html"
)

func mustParse(t *testing.T, markup string) *Document {
	t.Helper()
	d, err := Parse(strings.NewReader(markup))
	if err != nil {
		t.Fatalf("Parse() error = %v", err)
	}
	return d
}

func tags(nodes []*html.Node) []string {
	out := make([]string, 0, len(nodes))
	for _, n := range nodes {
		if n.Type == html.TextNode {
			out = append(out, "#text:"+n.Data)
			continue
		}
		out = append(out, n.Data)
	}
	return out
}

func TestNewDocument(t *testing.T) {
	d := NewDocument()
	if d.Body() == nil || d.Body().Data != "body" {
		t.Fatalf("Body() = %v, want <body>", d.Body())
	}
	if d.Head() == nil {
		t.Error("Head() = nil")
	}
	if got := d.OuterHTML(d.Root()); got != "<html><head></head><body></body></html>" {
		t.Errorf("OuterHTML() = %q", got)
	}
}

func TestAppendAndInsertBefore(t *testing.T) {
	d := NewDocument()
	body := d.Body()
	a := d.CreateElement("A")
	b := d.CreateElement("b")
	c := d.CreateElement("i")

	d.Append(body, a)
	d.Append(body, c)
	d.InsertBefore(body, b, c)

	if diff := cmp.Diff([]string{"a", "b", "i"}, tags(d.Children(body))); diff != "" {
		t.Errorf("children mismatch (-want +got):\n%s", diff)
	}

	// Moving an attached node does not notify the removal observer.
	obs := NewRemovalObserver(d)
	fired := 0
	obs.Watch(a, func() { fired++ })
	d.Move(body, a, nil)
	if diff := cmp.Diff([]string{"b", "i", "a"}, tags(d.Children(body))); diff != "" {
		t.Errorf("after Move (-want +got):\n%s", diff)
	}
	if fired != 0 {
		t.Errorf("Move fired the observer %d times", fired)
	}
}

func TestRemoveNotifiesSubtreeOnce(t *testing.T) {
	d := mustParse(t, `<div id="outer"><p id="inner"><span id="leaf"></span></p></div>`)
	obs := NewRemovalObserver(d)

	outer, _ := d.QueryOne(d.Root(), "#outer")
	inner, _ := d.QueryOne(d.Root(), "#inner")
	leaf, _ := d.QueryOne(d.Root(), "#leaf")

	var order []string
	obs.Watch(inner, func() { order = append(order, "inner") })
	obs.Watch(leaf, func() { order = append(order, "leaf") })

	d.Remove(outer)
	d.Remove(outer)

	if diff := cmp.Diff([]string{"inner", "leaf"}, order); diff != "" {
		t.Errorf("fired (-want +got):\n%s", diff)
	}
	if obs.Len() != 0 {
		t.Errorf("Len() = %d, want 0", obs.Len())
	}
	if d.Attached(inner) {
		t.Error("removed node is still attached")
	}
}

func TestReplace(t *testing.T) {
	d := mustParse(t, `<ul><li id="a">a</li><li id="b">b</li></ul>`)
	obs := NewRemovalObserver(d)
	a, _ := d.QueryOne(d.Root(), "#a")

	removed := false
	obs.Watch(a, func() { removed = true })

	next := d.CreateElement("li")
	d.SetText(next, "z")
	d.Replace(a, next)

	ul, _ := d.QueryOne(d.Root(), "ul")
	if got := d.InnerHTML(ul); got != `<li>z</li><li id="b">b</li>` {
		t.Errorf("InnerHTML() = %q", got)
	}
	if !removed {
		t.Error("replaced node did not notify the observer")
	}
}

func TestSplitText(t *testing.T) {
	d := mustParse(t, `<p>Hello World</p>`)
	p, _ := d.QueryOne(d.Root(), "p")
	text := p.FirstChild

	tail, err := d.SplitText(text, 5)
	if err != nil {
		t.Fatalf("SplitText() error = %v", err)
	}
	if diff := cmp.Diff([]string{"#text:Hello", "#text: World"}, tags(d.Children(p))); diff != "" {
		t.Errorf("children (-want +got):\n%s", diff)
	}
	if tail.Data != " World" {
		t.Errorf("tail = %q", tail.Data)
	}
	if d.TextContent(p) != "Hello World" {
		t.Errorf("TextContent() = %q", d.TextContent(p))
	}

	if _, err := d.SplitText(text, 99); err == nil {
		t.Error("out of range offset should fail")
	}
	if _, err := d.SplitText(p, 0); err == nil {
		t.Error("splitting an element should fail")
	}
}

func TestSetTextOnElement(t *testing.T) {
	d := mustParse(t, `<div><b id="x">old</b></div>`)
	obs := NewRemovalObserver(d)
	div, _ := d.QueryOne(d.Root(), "div")
	b, _ := d.QueryOne(d.Root(), "#x")

	fired := false
	obs.Watch(b, func() { fired = true })
	d.SetText(div, "new")

	if got := d.InnerHTML(div); got != "new" {
		t.Errorf("InnerHTML() = %q", got)
	}
	if !fired {
		t.Error("replaced children should be reported as removed")
	}
}

func TestAttributesAndClasses(t *testing.T) {
	d := NewDocument()
	n := d.CreateElement("div")

	d.SetAttr(n, "title", "")
	if v, ok := d.Attr(n, "title"); !ok || v != "" {
		t.Errorf("Attr(title) = %q, %v, want empty, true", v, ok)
	}
	d.SetAttr(n, "title", "t")
	if v, _ := d.Attr(n, "title"); v != "t" {
		t.Errorf("Attr(title) = %q, want t", v)
	}
	d.RemoveAttr(n, "title")
	if d.HasAttr(n, "title") {
		t.Error("title should be removed")
	}

	d.AddClass(n, "a b", "a")
	d.AddClass(n, "c")
	if v, _ := d.Attr(n, "class"); v != "a b c" {
		t.Errorf("class = %q, want %q", v, "a b c")
	}
	if !d.ToggleClass(n, "d") || d.ToggleClass(n, "a") {
		t.Error("ToggleClass returned the wrong state")
	}
	if v, _ := d.Attr(n, "class"); v != "b c d" {
		t.Errorf("class = %q, want %q", v, "b c d")
	}
	d.RemoveClass(n, "b", "c d")
	if d.HasAttr(n, "class") {
		t.Error("empty class attribute should be removed")
	}
}

func TestParseFragment(t *testing.T) {
	d := NewDocument()
	nodes, err := d.ParseFragment(`<li>a</li>text<li>b</li>`, nil)
	if err != nil {
		t.Fatalf("ParseFragment() error = %v", err)
	}
	if diff := cmp.Diff([]string{"li", "#text:text", "li"}, tags(nodes)); diff != "" {
		t.Errorf("nodes (-want +got):\n%s", diff)
	}
	for _, n := range nodes {
		if n.Parent != nil {
			t.Error("fragment nodes should be detached")
		}
	}
}
