package render

import (
	"fmt"
	"reflect"
	"strconv"

	"golang.org/x/net/html"

	"github.com/vango-dev/livedom/internal/errors"
	"github.com/vango-dev/livedom/pkg/dom"
	"github.com/vango-dev/livedom/pkg/lifecycle"
	"github.com/vango-dev/livedom/pkg/observe"
	"github.com/vango-dev/livedom/pkg/sched"
	"github.com/vango-dev/livedom/pkg/vdom"
)

// attrValue converts a prop to its attribute string. ok is false when the
// attribute must be absent: nil values, false boolean attributes, handlers
// and reference handles.
func attrValue(key string, value any) (s string, ok bool) {
	switch v := value.(type) {
	case nil:
		return "", false
	case string:
		return v, true
	case bool:
		if isBooleanAttr(key) {
			return "", v
		}
		return strconv.FormatBool(v), true
	case vdom.NodeRef:
		return "", false
	}
	if reflect.TypeOf(value).Kind() == reflect.Func {
		return "", false
	}
	return attrToString(value), true
}

// attrToString converts a non-string attribute value to a string.
func attrToString(value any) string {
	switch v := value.(type) {
	case int:
		return strconv.Itoa(v)
	case int64:
		return strconv.FormatInt(v, 10)
	case float64:
		return strconv.FormatFloat(v, 'f', -1, 64)
	case fmt.Stringer:
		return v.String()
	default:
		return fmt.Sprintf("%v", v)
	}
}

// applyProps moves node's attributes from prev to next. Only keys whose
// string form changed are written.
func (r *Renderer) applyProps(tx *tx, node *html.Node, prev, next vdom.Props) {
	for key, pv := range prev {
		if _, had := attrValue(key, pv); !had {
			continue
		}
		if _, keep := attrValue(key, next[key]); !keep {
			r.doc.RemoveAttr(node, key)
			tx.op(observe.OpAttr)
		}
	}
	for _, key := range next.Keys() {
		s, ok := attrValue(key, next[key])
		if !ok {
			continue
		}
		if ps, had := attrValue(key, prev[key]); had && ps == s {
			continue
		}
		r.doc.SetAttr(node, key, s)
		tx.op(observe.OpAttr)
	}
}

// adoptProps makes a hydrated element carry the attributes of v, writing
// only values that differ from the server markup.
func (r *Renderer) adoptProps(tx *tx, node *html.Node, props vdom.Props) {
	for _, key := range props.Keys() {
		s, ok := attrValue(key, props[key])
		if !ok {
			continue
		}
		if cur, has := r.doc.Attr(node, key); has && cur == s {
			continue
		}
		r.doc.SetAttr(node, key, s)
		tx.op(observe.OpAttr)
	}
}

// bindListeners replaces the listeners the renderer attached to inst's
// element with the handlers of its current VNode. Listeners added by other
// code are left alone.
func (r *Renderer) bindListeners(tx *tx, inst *instance, scope *lifecycle.Owner) {
	for _, id := range inst.listeners {
		r.doc.OffID(inst.node, id)
	}
	inst.listeners = inst.listeners[:0]

	props := inst.vnode.Props
	for _, key := range props.Keys() {
		value := props[key]
		if !vdom.IsHandler(key, value) {
			continue
		}
		fn, err := wrapHandler(scope, value)
		if err != nil {
			r.logger.Warn("skipping event handler",
				"tag", inst.vnode.Tag,
				"event", vdom.EventName(key),
				"error", err)
			continue
		}
		inst.listeners = append(inst.listeners, r.doc.On(inst.node, vdom.EventName(key), fn))
		tx.op(observe.OpBind)
	}
}

// wrapHandler turns a handler prop into a dom.Listener guarded by owner.
// Panics, returned errors and rejected futures go to the owner's error
// boundary; a false result prevents the default action.
func wrapHandler(owner *lifecycle.Owner, handler any) (dom.Listener, error) {
	switch h := handler.(type) {
	case func():
		return func(*dom.Event) {
			lifecycle.Guard(owner, func() struct{} {
				h()
				return struct{}{}
			})
		}, nil
	case func(*dom.Event):
		return func(ev *dom.Event) {
			lifecycle.Guard(owner, func() struct{} {
				h(ev)
				return struct{}{}
			})
		}, nil
	case func(*dom.Event) error:
		return func(ev *dom.Event) {
			lifecycle.Guard(owner, func() error { return h(ev) })
		}, nil
	case func(*dom.Event) bool:
		return func(ev *dom.Event) {
			if !lifecycle.Guard(owner, func() bool { return h(ev) }) {
				ev.PreventDefault()
			}
		}, nil
	case func(*dom.Event) sched.Awaitable:
		return func(ev *dom.Event) {
			lifecycle.Guard(owner, func() sched.Awaitable { return h(ev) })
		}, nil
	}
	return nil, errors.New("E061").WithDetailf("got %T", handler)
}
