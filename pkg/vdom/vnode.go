package vdom

import (
	"context"
	"fmt"
	"reflect"
	"runtime"
	"sort"
	"strings"

	"golang.org/x/net/html"

	"github.com/vango-dev/livedom/pkg/lifecycle"
)

// VKind is the node type discriminator.
type VKind uint8

const (
	KindElement   VKind = iota + 1 // <div>, <button>, etc.
	KindText                       // Plain text node
	KindFragment                   // Grouping without wrapper
	KindComponent                  // Component instance
	KindRaw                        // Raw markup (dangerous)
	KindDeferred                   // Child resolved later by an Async container
)

// String returns the string representation of the VKind.
func (k VKind) String() string {
	switch k {
	case KindElement:
		return "Element"
	case KindText:
		return "Text"
	case KindFragment:
		return "Fragment"
	case KindComponent:
		return "Component"
	case KindRaw:
		return "Raw"
	case KindDeferred:
		return "Deferred"
	default:
		return fmt.Sprintf("VKind(%d)", uint8(k))
	}
}

// ComponentFunc renders a component instance.
type ComponentFunc func(o *lifecycle.Owner) *VNode

// Loader produces the content of a deferred child.
type Loader func(ctx context.Context) (*VNode, error)

// VNode is one node of a tree description.
type VNode struct {
	Kind     VKind
	Tag      string   // Element tag, or the component name for KindComponent
	Props    Props    // Attributes and event handlers
	Children []*VNode // Child nodes
	Key      string   // Reconciliation key
	Text     string   // For KindText and KindRaw
	Comp     ComponentFunc
	Load     Loader  // For KindDeferred
	Ref      NodeRef // Bound reference handle
	Hooks    *Hooks  // Element lifecycle hooks
}

// Props holds attributes and event handlers. A nil value removes the
// attribute.
type Props map[string]any

// Keys returns the prop names in sorted order.
func (p Props) Keys() []string {
	keys := make([]string, 0, len(p))
	for k := range p {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	return keys
}

// IsHandler reports whether a prop is an event handler: an "on" prefixed
// name holding a function.
func IsHandler(key string, value any) bool {
	if !strings.HasPrefix(key, "on") || value == nil {
		return false
	}
	return reflect.TypeOf(value).Kind() == reflect.Func
}

// EventName returns the event type of a handler prop ("onclick" -> "click").
func EventName(key string) string {
	return strings.TrimPrefix(key, "on")
}

// IsInteractive returns true if this node has event handlers.
func (v *VNode) IsInteractive() bool {
	if v == nil || v.Kind != KindElement {
		return false
	}
	for key, value := range v.Props {
		if IsHandler(key, value) {
			return true
		}
	}
	return false
}

// Identity returns the reconciliation identity of a component node: its name
// or, when unnamed, the symbol name of its function.
func (v *VNode) Identity() string {
	if v.Kind != KindComponent {
		return v.Tag
	}
	if v.Tag != "" {
		return v.Tag
	}
	if v.Comp == nil {
		return ""
	}
	if fn := runtime.FuncForPC(reflect.ValueOf(v.Comp).Pointer()); fn != nil {
		return fn.Name()
	}
	return ""
}

// WithKey returns a shallow copy of v carrying key.
func (v *VNode) WithKey(key string) *VNode {
	c := *v
	c.Key = key
	return &c
}

// Attr represents a single attribute.
type Attr struct {
	Key   string
	Value any
}

// IsEmpty returns true if this is an empty attribute.
func (a Attr) IsEmpty() bool {
	return a.Key == ""
}

// EventHandler represents an event handler.
type EventHandler struct {
	Event   string // "onclick", "oninput", etc.
	Handler any
}

// NodeRef is the engine side of a reference handle.
type NodeRef interface {
	Current() *html.Node
	SetCurrent(*html.Node)
}
