package render

import (
	"strings"
	"testing"

	"golang.org/x/net/html"

	liverrors "github.com/vango-dev/livedom/internal/errors"
	"github.com/vango-dev/livedom/pkg/dom"
	"github.com/vango-dev/livedom/pkg/lifecycle"
	"github.com/vango-dev/livedom/pkg/vdom"
)

func parsedFixture(t *testing.T, body string, opts ...Option) *fixture {
	t.Helper()
	doc, err := dom.Parse(strings.NewReader("<html><head></head><body>" + body + "</body></html>"))
	if err != nil {
		t.Fatalf("Parse() error = %v", err)
	}
	return newFixtureFor(t, doc, opts...)
}

func (f *fixture) hydrate(tree *vdom.VNode, strict bool) error {
	f.t.Helper()
	var err error
	f.do(func() { err = f.r.HydrateMount(tree, f.mount, strict) })
	return err
}

func TestHydrateFusedText(t *testing.T) {
	f := parsedFixture(t, "<p>Hello World</p>")
	p := f.mount.FirstChild
	tree := vdom.P("Hello", " ", "World")

	if err := f.hydrate(tree, true); err != nil {
		t.Fatalf("HydrateMount() error = %v", err)
	}
	if f.mount.FirstChild != p {
		t.Fatal("hydration recreated the <p>")
	}
	if got := f.doc.TextContent(p); got != "Hello World" {
		t.Errorf("TextContent() = %q, want %q", got, "Hello World")
	}
	if n := len(f.doc.Children(p)); n != 3 {
		t.Errorf("<p> has %d text nodes, want one per string child", n)
	}

	// Each string child now owns its node, so patches can address it.
	f.patch(tree, vdom.P("Hello", " ", "Go"))
	if got := f.doc.TextContent(p); got != "Hello Go" {
		t.Errorf("TextContent() after patch = %q, want %q", got, "Hello Go")
	}
}

func TestHydrateServerMarkup(t *testing.T) {
	tree := vdom.Div(vdom.Class("card"),
		vdom.H1("Title"),
		vdom.P("Hello", " ", "World"),
		vdom.Ul(vdom.Li("a"), vdom.Li("b")),
		vdom.P("Text before", vdom.B("x"), "Text after"),
	)
	markup, err := RenderToString(tree)
	if err != nil {
		t.Fatalf("RenderToString() error = %v", err)
	}

	f := parsedFixture(t, markup)
	div := f.mount.FirstChild
	if err := f.hydrate(tree, true); err != nil {
		t.Fatalf("HydrateMount() error = %v", err)
	}
	if f.mount.FirstChild != div {
		t.Error("hydration recreated the root")
	}
	if got, want := f.doc.TextContent(f.mount), vdom.TextContent(tree); got != want {
		t.Errorf("TextContent() = %q, want %q", got, want)
	}
	if got := f.markup(); got != markup {
		t.Errorf("markup changed by hydration:\n got %q\nwant %q", got, markup)
	}
}

func TestHydrateSkipsFormattingWhitespace(t *testing.T) {
	f := parsedFixture(t, "<ul>\n  <li>a</li>\n  <!-- item -->\n  <li>b</li>\n</ul>")
	tree := vdom.Ul(vdom.Li("a"), vdom.Li("b"))
	if err := f.hydrate(tree, true); err != nil {
		t.Fatalf("HydrateMount() error = %v", err)
	}
}

func TestHydrateBindsWithoutRecreating(t *testing.T) {
	f := parsedFixture(t, `<button id="go">Go</button>`)
	button := f.mount.FirstChild

	ref := vdom.NewRef()
	clicks := 0
	mounted := false
	app := vdom.Component("App", func(o *lifecycle.Owner) *vdom.VNode {
		o.OnMount(func() { mounted = true })
		return vdom.Button(vdom.ID("go"), vdom.UseRef(ref), vdom.OnClick(func() { clicks++ }), "Go")
	})

	var (
		err           error
		current       *html.Node
		mountedInside bool
	)
	f.do(func() {
		err = f.r.HydrateMount(app, f.mount, true)
		current = ref.Current()
		mountedInside = mounted
	})
	if err != nil {
		t.Fatalf("HydrateMount() error = %v", err)
	}
	if current != button {
		t.Errorf("ref.Current() = %v, want the server <button>", current)
	}
	if mountedInside {
		t.Error("mount callback ran synchronously inside HydrateMount")
	}
	if !mounted {
		t.Error("mount callback never ran")
	}

	f.do(func() { f.doc.Dispatch(button, dom.NewEvent("click")) })
	if clicks != 1 {
		t.Errorf("clicks = %d, want 1", clicks)
	}
}

func TestHydrateLiveNodes(t *testing.T) {
	f := parsedFixture(t, "<span>a</span><span>b</span>")
	live := f.doc.Children(f.mount)
	nodes := []*vdom.VNode{vdom.Span("a"), vdom.Span("b")}

	var err error
	f.do(func() { err = f.r.Hydrate(nodes, live, true) })
	if err != nil {
		t.Fatalf("Hydrate() error = %v", err)
	}

	f.patch(f.r.Tree(f.mount), vdom.Fragment(vdom.Span("a"), vdom.Span("c")))
	if got, want := f.markup(), "<span>a</span><span>c</span>"; got != want {
		t.Errorf("markup = %q, want %q", got, want)
	}
	if f.doc.Children(f.mount)[0] != live[0] {
		t.Error("patch after hydration recreated an unchanged node")
	}
}

func TestHydrateStrictMismatch(t *testing.T) {
	tests := []struct {
		name   string
		markup string
		tree   *vdom.VNode
		code   string
	}{
		{"count", "<p>a</p><p>b</p>", vdom.P("a"), "E045"},
		{"tag", "<p>a</p>", vdom.Div("a"), "E040"},
		{"text", "<p>Hello</p>", vdom.P("Bye"), "E041"},
		{"missing text", "<p></p>", vdom.P("Hello"), "E043"},
		{"missing element", "<p>hi</p>", vdom.P(vdom.B("hi")), "E043"},
		{"extra", "<p><b>x</b></p>", vdom.P(), "E043"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			f := parsedFixture(t, tt.markup)
			err := f.hydrate(tt.tree, true)
			if !liverrors.HasCode(err, tt.code) {
				t.Fatalf("HydrateMount() error = %v, want %s", err, tt.code)
			}
			if f.r.Tree(f.mount) != nil {
				t.Error("a failed hydration left a mount record")
			}
		})
	}
}

func TestHydrateCountErrorNamesCounts(t *testing.T) {
	f := parsedFixture(t, "<p>a</p><p>b</p>")
	err := f.hydrate(vdom.P("a"), true)
	if err == nil || !strings.Contains(err.Error(), "expected 1 nodes, got 2") {
		t.Errorf("error = %v, want the expected and actual counts", err)
	}
}

func TestHydrateRepairs(t *testing.T) {
	tests := []struct {
		name    string
		markup  string
		tree    *vdom.VNode
		want    string
		metrics string
	}{
		{
			name: "text", markup: "<p>Hello</p>", tree: vdom.P("Bye"),
			want:    "<p>Bye</p>",
			metrics: `livedom_hydration_mismatches_total{kind="text"} 1`,
		},
		{
			name: "tag", markup: "<p>a</p>", tree: vdom.Div("a"),
			want:    "<div>a</div>",
			metrics: `livedom_hydration_mismatches_total{kind="tag"} 1`,
		},
		{
			name: "missing", markup: "<p></p>", tree: vdom.P("Hello"),
			want:    "<p>Hello</p>",
			metrics: `livedom_hydration_mismatches_total{kind="missing"} 1`,
		},
		{
			name: "extra", markup: "<p><b>x</b></p>", tree: vdom.P(),
			want:    "<p></p>",
			metrics: `livedom_hydration_mismatches_total{kind="extra"} 1`,
		},
		{
			name: "count", markup: "<p>a</p><p>b</p>", tree: vdom.P("a"),
			want: "<p>a</p>",
			metrics: `livedom_hydration_mismatches_total{kind="count"} 1
livedom_hydration_mismatches_total{kind="extra"} 1`,
		},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			f := parsedFixture(t, tt.markup)
			if err := f.hydrate(tt.tree, false); err != nil {
				t.Fatalf("HydrateMount() error = %v", err)
			}
			if got := f.markup(); got != tt.want {
				t.Errorf("markup = %q, want %q", got, tt.want)
			}
			f.expectMetric("livedom_hydration_mismatches_total", `
# HELP livedom_hydration_mismatches_total Total number of hydration mismatches repaired in non-strict mode
# TYPE livedom_hydration_mismatches_total counter
`+tt.metrics+"\n")
		})
	}
}

func TestHydrateArguments(t *testing.T) {
	f := parsedFixture(t, "<p>a</p>")
	detached := f.doc.CreateElement("p")
	other := f.doc.CreateElement("div")
	f.doc.Append(other, f.doc.CreateElement("span"))
	waiting := f.doc.Children(other)[0]

	tests := []struct {
		name string
		live []*html.Node
		code string
	}{
		{"no live nodes", nil, "E003"},
		{"detached", []*html.Node{detached}, "E003"},
		{"different parents", []*html.Node{f.mount.FirstChild, waiting}, "E043"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			var err error
			f.do(func() { err = f.r.Hydrate([]*vdom.VNode{vdom.P("a")}, tt.live, false) })
			if !liverrors.HasCode(err, tt.code) {
				t.Errorf("Hydrate() error = %v, want %s", err, tt.code)
			}
		})
	}
}

func TestHydrateTwiceRejected(t *testing.T) {
	f := parsedFixture(t, "<p>a</p>")
	if err := f.hydrate(vdom.P("a"), true); err != nil {
		t.Fatalf("HydrateMount() error = %v", err)
	}
	if err := f.hydrate(vdom.P("a"), true); !liverrors.HasCode(err, "E004") {
		t.Errorf("second HydrateMount() error = %v, want E004", err)
	}
}

func TestExpectedCount(t *testing.T) {
	load := func() *vdom.VNode { return vdom.Defer(nil) }
	comp := vdom.Component("C", func(*lifecycle.Owner) *vdom.VNode { return nil })

	tests := []struct {
		name  string
		nodes []*vdom.VNode
		want  int
		known bool
	}{
		{"fused text", []*vdom.VNode{vdom.Text("a"), vdom.Text("b")}, 1, true},
		{"text around element", []*vdom.VNode{vdom.Text("a"), vdom.Span(), vdom.Text("b")}, 3, true},
		{"fragment flattened", []*vdom.VNode{vdom.Fragment("a", "b"), vdom.Span()}, 2, true},
		{"whitespace only", []*vdom.VNode{vdom.Text("  ")}, 0, true},
		{"deferred", []*vdom.VNode{load()}, 0, true},
		{"component", []*vdom.VNode{comp}, 0, false},
		{"component inside element", []*vdom.VNode{vdom.Div(comp)}, 1, true},
		{"raw", []*vdom.VNode{vdom.Raw("<b>x</b><i>y</i>")}, 2, true},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, known := expectedCount(tt.nodes)
			if got != tt.want || known != tt.known {
				t.Errorf("expectedCount() = %d, %v, want %d, %v", got, known, tt.want, tt.known)
			}
		})
	}
}

func TestHydrateComponentRoots(t *testing.T) {
	tests := []struct {
		name string
		out  func() *vdom.VNode
	}{
		{"several roots", func() *vdom.VNode { return vdom.Fragment(vdom.Span("a"), vdom.Span("b")) }},
		{"no roots", func() *vdom.VNode { return nil }},
		{"one root", func() *vdom.VNode { return vdom.P("a") }},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			comp := func() *vdom.VNode {
				return vdom.Component("Roots", func(*lifecycle.Owner) *vdom.VNode { return tt.out() })
			}
			markup, err := RenderToString(comp())
			if err != nil {
				t.Fatalf("RenderToString() error = %v", err)
			}
			f := parsedFixture(t, markup)
			if err := f.hydrate(comp(), true); err != nil {
				t.Fatalf("strict HydrateMount() over %q error = %v", markup, err)
			}
			if got := f.markup(); got != markup {
				t.Errorf("markup = %q, want %q", got, markup)
			}
		})
	}
}

func TestHydrateComponentExtraNodes(t *testing.T) {
	f := parsedFixture(t, "<span>a</span><span>b</span><span>c</span>")
	comp := vdom.Component("Pair", func(*lifecycle.Owner) *vdom.VNode {
		return vdom.Fragment(vdom.Span("a"), vdom.Span("b"))
	})
	if err := f.hydrate(comp, true); !liverrors.HasCode(err, "E043") {
		t.Errorf("HydrateMount() error = %v, want E043", err)
	}
}
