package render

import (
	"bytes"
	"fmt"
	"io"

	"github.com/vango-dev/livedom/internal/errors"
	"github.com/vango-dev/livedom/pkg/lifecycle"
	"github.com/vango-dev/livedom/pkg/vdom"
)

// MarkupConfig configures markup rendering.
type MarkupConfig struct {
	// ErrorView is drawn in place of a component that fails while rendering.
	// Defaults to DefaultErrorView.
	ErrorView func(error) *vdom.VNode
}

// Markup renders VNode trees to HTML text, the form Hydrate adopts later.
// Handlers and reference handles are not rendered; deferred children render
// nothing.
type Markup struct {
	config MarkupConfig
}

// NewMarkup creates a Markup renderer.
func NewMarkup(config MarkupConfig) *Markup {
	if config.ErrorView == nil {
		config.ErrorView = DefaultErrorView
	}
	return &Markup{config: config}
}

// RenderToString renders node with the default configuration.
func RenderToString(node *vdom.VNode) (string, error) {
	return NewMarkup(MarkupConfig{}).RenderToString(node)
}

// RenderToWriter renders node to w with the default configuration.
func RenderToWriter(w io.Writer, node *vdom.VNode) error {
	return NewMarkup(MarkupConfig{}).RenderToWriter(w, node)
}

// RenderToString renders node to a string.
func (m *Markup) RenderToString(node *vdom.VNode) (string, error) {
	var buf bytes.Buffer
	if err := m.RenderToWriter(&buf, node); err != nil {
		return "", err
	}
	return buf.String(), nil
}

// RenderToWriter streams node to w.
func (m *Markup) RenderToWriter(w io.Writer, node *vdom.VNode) error {
	if err := vdom.Validate(node); err != nil {
		return err
	}
	ew := &errWriter{w: w}
	if err := m.node(ew, node); err != nil {
		return err
	}
	return ew.err
}

// errWriter keeps the first write error so rendering code can write freely.
type errWriter struct {
	w   io.Writer
	err error
}

func (e *errWriter) str(s string) {
	if e.err != nil {
		return
	}
	_, e.err = io.WriteString(e.w, s)
}

func (m *Markup) node(w *errWriter, node *vdom.VNode) error {
	if node == nil {
		return nil
	}
	switch node.Kind {
	case vdom.KindElement:
		return m.element(w, node)
	case vdom.KindText:
		w.str(escapeHTML(node.Text))
	case vdom.KindFragment:
		for _, child := range node.Children {
			if err := m.node(w, child); err != nil {
				return err
			}
		}
	case vdom.KindComponent:
		return m.component(w, node)
	case vdom.KindRaw:
		w.str(node.Text)
	case vdom.KindDeferred:
	default:
		return errors.New("E002").WithDetailf("kind %s", node.Kind)
	}
	return nil
}

func (m *Markup) element(w *errWriter, node *vdom.VNode) error {
	w.str("<" + node.Tag)
	for _, key := range node.Props.Keys() {
		s, ok := attrValue(key, node.Props[key])
		if !ok {
			continue
		}
		if isBooleanAttr(key) && s == "" {
			w.str(" " + key)
			continue
		}
		w.str(fmt.Sprintf(` %s="%s"`, key, escapeAttr(s)))
	}
	w.str(">")
	if vdom.IsVoidElement(node.Tag) {
		return nil
	}
	for _, child := range node.Children {
		if err := m.node(w, child); err != nil {
			return err
		}
	}
	w.str("</" + node.Tag + ">")
	return nil
}

// component renders a component under a detached Owner. Its callbacks are
// never run: markup has no lifecycle.
func (m *Markup) component(w *errWriter, node *vdom.VNode) error {
	owner := lifecycle.NewOwner(nil, node.Identity())
	comp := node.Comp
	out := lifecycle.Guard(owner, func() *vdom.VNode { return comp(owner) })
	if err := owner.Failure(); err != nil {
		out = m.config.ErrorView(err)
	}
	if out == nil {
		return nil
	}
	if err := vdom.Validate(out); err != nil {
		return err
	}
	return m.node(w, out)
}
