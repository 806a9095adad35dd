package vdom

import (
	"context"
	"strings"
	"testing"

	"github.com/google/go-cmp/cmp"
	"golang.org/x/net/html"

	liverrors "github.com/vango-dev/livedom/internal/errors"
	"github.com/vango-dev/livedom/pkg/lifecycle"
	"github.com/vango-dev/livedom/pkg/sched"
)

func TestCreateElement(t *testing.T) {
	t.Run("basic element", func(t *testing.T) {
		node := Div()
		if node.Kind != KindElement {
			t.Errorf("Kind = %v, want Element", node.Kind)
		}
		if node.Tag != "div" {
			t.Errorf("Tag = %v, want div", node.Tag)
		}
	})

	t.Run("attributes", func(t *testing.T) {
		node := Div(Class("card"), ID("main"), AttrOf("title", nil), []Attr{Data("x", "1")})
		want := Props{"class": "card", "id": "main", "title": nil, "data-x": "1"}
		if diff := cmp.Diff(want, node.Props); diff != "" {
			t.Errorf("Props mismatch (-want +got):\n%s", diff)
		}
	})

	t.Run("repeated class accumulates", func(t *testing.T) {
		node := Div(Class("a"), ClassIf(false, "skip"), Class("b c"))
		if node.Props["class"] != "a b c" {
			t.Errorf("class = %v, want %q", node.Props["class"], "a b c")
		}
	})

	t.Run("key and ref are not props", func(t *testing.T) {
		ref := NewRef()
		node := Li(Key(7), UseRef(ref))
		if node.Key != "7" {
			t.Errorf("Key = %q, want 7", node.Key)
		}
		if node.Ref != NodeRef(ref) {
			t.Error("Ref not bound")
		}
		if len(node.Props) != 0 {
			t.Errorf("Props = %v, want empty", node.Props)
		}
	})

	t.Run("children and strings", func(t *testing.T) {
		node := Div("Hello", nil, P(), []*VNode{Span(), nil}, []any{"x", B()})
		kinds := []VKind{}
		for _, c := range node.Children {
			kinds = append(kinds, c.Kind)
		}
		want := []VKind{KindText, KindElement, KindElement, KindText, KindElement}
		if diff := cmp.Diff(want, kinds); diff != "" {
			t.Errorf("child kinds (-want +got):\n%s", diff)
		}
	})

	t.Run("event handler", func(t *testing.T) {
		node := Button(OnClick(func() {}), On("custom", func() {}))
		if !node.IsInteractive() {
			t.Error("IsInteractive() = false")
		}
		if _, ok := node.Props["oncustom"]; !ok {
			t.Error("custom handler missing")
		}
	})

	t.Run("hooks", func(t *testing.T) {
		node := Div(OnMountHook(func(*html.Node) {}), OnMountHook(func(*html.Node) {}), OnErrorHook(func(error) {}))
		if node.Hooks.Empty() || len(node.Hooks.Mount) != 2 || len(node.Hooks.Error) != 1 {
			t.Errorf("Hooks = %+v", node.Hooks)
		}
		if !Div().Hooks.Empty() {
			t.Error("element without hooks should report Empty")
		}
	})
}

func TestIsHandler(t *testing.T) {
	tests := []struct {
		key   string
		value any
		want  bool
	}{
		{"onclick", func() {}, true},
		{"onclick", "alert(1)", false},
		{"one", nil, false},
		{"title", func() {}, false},
	}
	for _, tt := range tests {
		if got := IsHandler(tt.key, tt.value); got != tt.want {
			t.Errorf("IsHandler(%q, %T) = %v, want %v", tt.key, tt.value, got, tt.want)
		}
	}
	if EventName("onclick") != "click" {
		t.Errorf("EventName() = %q", EventName("onclick"))
	}
}

func TestPropsKeysSorted(t *testing.T) {
	p := Props{"z": 1, "a": 2, "m": 3}
	if diff := cmp.Diff([]string{"a", "m", "z"}, p.Keys()); diff != "" {
		t.Errorf("Keys() (-want +got):\n%s", diff)
	}
}

func counter(o *lifecycle.Owner) *VNode { return Span("0") }

func TestComponentIdentity(t *testing.T) {
	named := Component("Counter", counter)
	if named.Identity() != "Counter" {
		t.Errorf("Identity() = %q, want Counter", named.Identity())
	}

	unnamed := Component("", counter)
	if !strings.HasSuffix(unnamed.Identity(), ".counter") {
		t.Errorf("Identity() = %q, want the function symbol", unnamed.Identity())
	}

	keyed := named.WithKey("k")
	if keyed.Key != "k" || named.Key != "" {
		t.Error("WithKey should copy the node")
	}
}

func TestDeferAndAwait(t *testing.T) {
	d := Defer(func(context.Context) (*VNode, error) { return Text("x"), nil })
	if d.Kind != KindDeferred || d.Load == nil {
		t.Fatalf("Defer() = %+v", d)
	}

	f := sched.Resolved(nil, Text("done"))
	got, err := Await(f).Load(context.Background())
	if err != nil || got.Text != "done" {
		t.Errorf("Await().Load() = %v, %v", got, err)
	}
}

func TestControlHelpers(t *testing.T) {
	a, b := Text("a"), Text("b")
	if If(false, a) != nil || If(true, a) != a {
		t.Error("If")
	}
	if IfElse(false, a, b) != b {
		t.Error("IfElse")
	}
	if When(false, func() *VNode { panic("evaluated") }) != nil {
		t.Error("When")
	}
	if Unless(true, a) != nil {
		t.Error("Unless")
	}
	if got := Switch("x", Default[string](b), Case_("x", a)); got != a {
		t.Error("Switch should prefer a matching case over the default")
	}
	if got := Switch("y", Case_("x", a), Default[string](b)); got != b {
		t.Error("Switch default")
	}
	items := Range([]string{"1", "", "3"}, func(s string, _ int) *VNode {
		if s == "" {
			return nil
		}
		return Text(s)
	})
	if len(items) != 2 {
		t.Errorf("Range() len = %d, want 2", len(items))
	}
}

func TestFragment(t *testing.T) {
	f := Fragment("Hello", " ", Text("World"), nil, ID("ignored"))
	if f.Kind != KindFragment || len(f.Children) != 3 {
		t.Fatalf("Fragment() = %+v", f)
	}
	if TextContent(f) != "Hello World" {
		t.Errorf("TextContent() = %q", TextContent(f))
	}
}

func TestValidate(t *testing.T) {
	tests := []struct {
		name string
		node *VNode
		code string
	}{
		{"valid tree", Div(P("x"), Component("C", counter), Fragment()), ""},
		{"nil", nil, ""},
		{"element without tag", Div(&VNode{Kind: KindElement}), "E001"},
		{"void with children", Input(Span()), "E001"},
		{"component without func", Div(&VNode{Kind: KindComponent, Tag: "X"}), "E001"},
		{"deferred without loader", &VNode{Kind: KindDeferred}, "E001"},
		{"zero kind", Div(&VNode{}), "E002"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			err := Validate(tt.node)
			if got := liverrors.CodeOf(err); got != tt.code {
				t.Errorf("Validate() error = %v, want code %q", err, tt.code)
			}
		})
	}

	err := Validate(Div(Ul(Li(), &VNode{Kind: KindElement})))
	if err == nil || !strings.Contains(err.Error(), "root/div[0]/ul[1]") {
		t.Errorf("Validate() path = %v", err)
	}
}

func TestKindString(t *testing.T) {
	if KindDeferred.String() != "Deferred" {
		t.Errorf("String() = %q", KindDeferred.String())
	}
	if VKind(0).String() != "VKind(0)" {
		t.Errorf("String() = %q", VKind(0).String())
	}
}
