package vdom

// voidElements are elements that cannot have children.
var voidElements = map[string]bool{
	"area":   true,
	"base":   true,
	"br":     true,
	"col":    true,
	"embed":  true,
	"hr":     true,
	"img":    true,
	"input":  true,
	"link":   true,
	"meta":   true,
	"source": true,
	"track":  true,
	"wbr":    true,
}

// IsVoidElement returns true if the tag is a void element.
func IsVoidElement(tag string) bool {
	return voidElements[tag]
}

// El creates an element with an arbitrary tag.
func El(tag string, args ...any) *VNode { return createElement(tag, args) }

// createElement builds an element from factory arguments: nil, Attr, []Attr,
// EventHandler, Hook, *VNode, []*VNode and string. Anything else is ignored.
func createElement(tag string, args []any) *VNode {
	node := &VNode{
		Kind:  KindElement,
		Tag:   tag,
		Props: make(Props),
	}
	for _, arg := range args {
		node.apply(arg)
	}
	return node
}

func (v *VNode) apply(arg any) {
	switch a := arg.(type) {
	case nil:
		// Allows conditional arguments.
	case Attr:
		v.setAttr(a)
	case []Attr:
		for _, at := range a {
			v.setAttr(at)
		}
	case EventHandler:
		v.Props[a.Event] = a.Handler
	case Hook:
		if v.Hooks == nil {
			v.Hooks = &Hooks{}
		}
		a(v.Hooks)
	case *VNode:
		if a != nil {
			v.Children = append(v.Children, a)
		}
	case []*VNode:
		for _, child := range a {
			if child != nil {
				v.Children = append(v.Children, child)
			}
		}
	case string:
		v.Children = append(v.Children, Text(a))
	case []any:
		for _, item := range a {
			v.apply(item)
		}
	}
}

func (v *VNode) setAttr(a Attr) {
	switch a.Key {
	case "":
		return
	case "key":
		if s, ok := a.Value.(string); ok {
			v.Key = s
		}
		return
	case refProp:
		if r, ok := a.Value.(NodeRef); ok {
			v.Ref = r
		}
		return
	case "class":
		// Repeated Class arguments accumulate.
		if prev, ok := v.Props["class"].(string); ok && prev != "" {
			if s, ok := a.Value.(string); ok && s != "" {
				v.Props["class"] = prev + " " + s
				return
			}
		}
	}
	v.Props[a.Key] = a.Value
}

// Document structure

func Html(args ...any) *VNode  { return createElement("html", args) }
func Head(args ...any) *VNode  { return createElement("head", args) }
func Body(args ...any) *VNode  { return createElement("body", args) }
func Title(args ...any) *VNode { return createElement("title", args) }
func Meta(args ...any) *VNode  { return createElement("meta", args) }
func Link(args ...any) *VNode  { return createElement("link", args) }

// Sectioning

func Header(args ...any) *VNode  { return createElement("header", args) }
func Footer(args ...any) *VNode  { return createElement("footer", args) }
func Main(args ...any) *VNode    { return createElement("main", args) }
func Nav(args ...any) *VNode     { return createElement("nav", args) }
func Section(args ...any) *VNode { return createElement("section", args) }
func Article(args ...any) *VNode { return createElement("article", args) }
func Aside(args ...any) *VNode   { return createElement("aside", args) }
func H1(args ...any) *VNode      { return createElement("h1", args) }
func H2(args ...any) *VNode      { return createElement("h2", args) }
func H3(args ...any) *VNode      { return createElement("h3", args) }
func H4(args ...any) *VNode      { return createElement("h4", args) }

// Text content

func Div(args ...any) *VNode        { return createElement("div", args) }
func P(args ...any) *VNode          { return createElement("p", args) }
func Span(args ...any) *VNode       { return createElement("span", args) }
func Pre(args ...any) *VNode        { return createElement("pre", args) }
func Blockquote(args ...any) *VNode { return createElement("blockquote", args) }
func Ul(args ...any) *VNode         { return createElement("ul", args) }
func Ol(args ...any) *VNode         { return createElement("ol", args) }
func Li(args ...any) *VNode         { return createElement("li", args) }
func Hr(args ...any) *VNode         { return createElement("hr", args) }
func Br(args ...any) *VNode         { return createElement("br", args) }

// Inline

func A(args ...any) *VNode      { return createElement("a", args) }
func Strong(args ...any) *VNode { return createElement("strong", args) }
func Em(args ...any) *VNode     { return createElement("em", args) }
func B(args ...any) *VNode      { return createElement("b", args) }
func I(args ...any) *VNode      { return createElement("i", args) }
func Small(args ...any) *VNode  { return createElement("small", args) }
func Code(args ...any) *VNode   { return createElement("code", args) }
func Img(args ...any) *VNode    { return createElement("img", args) }

// Forms

func Form(args ...any) *VNode     { return createElement("form", args) }
func Input(args ...any) *VNode    { return createElement("input", args) }
func Textarea(args ...any) *VNode { return createElement("textarea", args) }
func Select(args ...any) *VNode   { return createElement("select", args) }
func Option(args ...any) *VNode   { return createElement("option", args) }
func Button(args ...any) *VNode   { return createElement("button", args) }
func Label(args ...any) *VNode    { return createElement("label", args) }
func Fieldset(args ...any) *VNode { return createElement("fieldset", args) }

// Tables

func Table(args ...any) *VNode { return createElement("table", args) }
func Thead(args ...any) *VNode { return createElement("thead", args) }
func Tbody(args ...any) *VNode { return createElement("tbody", args) }
func Tr(args ...any) *VNode    { return createElement("tr", args) }
func Th(args ...any) *VNode    { return createElement("th", args) }
func Td(args ...any) *VNode    { return createElement("td", args) }
