package suspense

import (
	"context"
	"fmt"
	"sync"

	"golang.org/x/sync/errgroup"

	"github.com/vango-dev/livedom/internal/errors"
	"github.com/vango-dev/livedom/pkg/lifecycle"
	"github.com/vango-dev/livedom/pkg/observe"
	"github.com/vango-dev/livedom/pkg/sched"
	"github.com/vango-dev/livedom/pkg/vdom"
)

// DefaultFailureText is rendered by a failed container without an ErrorView.
const DefaultFailureText = "Failed to load content"

// State is the resolution state of an Async container.
type State int

const (
	Loading State = iota
	Loaded
	Failed
)

// String returns the string representation of the State.
func (s State) String() string {
	switch s {
	case Loading:
		return "loading"
	case Loaded:
		return "loaded"
	case Failed:
		return "failed"
	default:
		return fmt.Sprintf("State(%d)", int(s))
	}
}

// Status is the value an Async container mirrors to its Ref. Err is set in
// the Failed state.
type Status struct {
	State State
	Err   error
}

// Props configures an Async container.
type Props struct {
	// Fallback is rendered while loading.
	Fallback *vdom.VNode

	// Children are rendered once all of them resolved.
	Children []*vdom.VNode

	// ErrorView renders the failure. Defaults to DefaultFailureText.
	ErrorView func(error) *vdom.VNode

	// OnError is called with the failure.
	OnError func(error)

	// Ref mirrors and drives the container state.
	Ref *vdom.Ref[Status]

	// Tag is the container element. Defaults to "div".
	Tag string

	// Class is set on the container element.
	Class string

	// Metrics records settled resolutions.
	Metrics *observe.Metrics
}

// Async returns the container component for p.
func Async(p Props) *vdom.VNode {
	return vdom.Component("Async", func(o *lifecycle.Owner) *vdom.VNode {
		c := lifecycle.Use(o, func() *container { return newContainer(o) })
		return c.render(p)
	})
}

// container is the per-instance state of an Async component.
type container struct {
	owner *lifecycle.Owner
	node  *vdom.Ref[struct{}]

	mu          sync.Mutex
	props       Props
	status      Status
	resolved    []*vdom.VNode
	gen         uint64
	cancel      context.CancelFunc
	rendered    bool
	mounted     bool
	armed       bool
	pushing     bool
	unsubscribe func()
}

func newContainer(o *lifecycle.Owner) *container {
	c := &container{
		owner:  o,
		node:   vdom.NewRef(),
		status: Status{State: Loading},
	}
	o.OnMount(c.mount)
	o.OnUnmount(c.unmount)
	return c
}

func (c *container) render(p Props) *vdom.VNode {
	c.mu.Lock()
	bind := !c.rendered && p.Ref != nil
	restart := c.mounted && !sameChildren(c.props.Children, p.Children)
	c.props = p
	c.rendered = true
	c.mu.Unlock()

	if bind {
		unsubscribe := p.Ref.Subscribe(c.onRef)
		c.mu.Lock()
		c.unsubscribe = unsubscribe
		c.mu.Unlock()
		c.push(Status{State: Loading})
	}
	if restart {
		c.resolve()
	}
	return c.view()
}

func (c *container) view() *vdom.VNode {
	c.mu.Lock()
	p, s, resolved := c.props, c.status, c.resolved
	c.mu.Unlock()

	var content any
	switch s.State {
	case Loading:
		content = p.Fallback
	case Loaded:
		content = resolved
	case Failed:
		if p.ErrorView != nil {
			content = p.ErrorView(s.Err)
		} else {
			content = vdom.Text(DefaultFailureText)
		}
	}

	tag := p.Tag
	if tag == "" {
		tag = "div"
	}
	var class any
	if p.Class != "" {
		class = vdom.Class(p.Class)
	}
	return vdom.El(tag,
		class,
		vdom.UseRef(c.node),
		vdom.Data("state", s.State.String()),
		vdom.AriaBusy(s.State == Loading),
		content,
	)
}

func (c *container) mount() {
	c.mu.Lock()
	c.mounted = true
	c.mu.Unlock()
	c.resolve()
}

func (c *container) unmount() {
	c.mu.Lock()
	c.gen++
	cancel, unsubscribe := c.cancel, c.unsubscribe
	c.cancel, c.unsubscribe = nil, nil
	c.mu.Unlock()
	if cancel != nil {
		cancel()
	}
	if unsubscribe != nil {
		unsubscribe()
	}
}

// resolve starts a new generation of loads. An earlier generation still in
// flight is cancelled and its result dropped.
func (c *container) resolve() {
	c.mu.Lock()
	if c.cancel != nil {
		c.cancel()
	}
	c.gen++
	gen := c.gen
	children := c.props.Children
	ctx, cancel := context.WithCancel(c.owner.Context())
	c.cancel = cancel
	wasLoading := c.status.State == Loading
	c.status = Status{State: Loading}
	c.mu.Unlock()

	if !wasLoading {
		c.push(Status{State: Loading})
	}
	sched.Go(c.owner.Loop(), ctx, func(ctx context.Context) ([]*vdom.VNode, error) {
		return load(ctx, children)
	}).Then(func(nodes []*vdom.VNode, err error) {
		c.commit(gen, nodes, err)
	})
}

// load resolves children concurrently. Ordinary children resolve to
// themselves.
func load(ctx context.Context, children []*vdom.VNode) ([]*vdom.VNode, error) {
	results := make([]*vdom.VNode, len(children))
	g, ctx := errgroup.WithContext(ctx)
	for i, child := range children {
		if child == nil {
			continue
		}
		if child.Kind != vdom.KindDeferred {
			results[i] = child
			continue
		}
		i, fn := i, child.Load
		g.Go(func() (err error) {
			defer func() {
				if r := recover(); r != nil {
					err = fmt.Errorf("panic: %v", r)
				}
			}()
			v, err := fn(ctx)
			if err != nil {
				return err
			}
			results[i] = v
			return nil
		})
	}
	if err := g.Wait(); err != nil {
		return nil, err
	}
	return flatten(results), nil
}

// flatten drops nil results and splices the children of top-level
// fragments.
func flatten(nodes []*vdom.VNode) []*vdom.VNode {
	out := make([]*vdom.VNode, 0, len(nodes))
	for _, n := range nodes {
		switch {
		case n == nil:
		case n.Kind == vdom.KindFragment:
			out = append(out, n.Children...)
		default:
			out = append(out, n)
		}
	}
	return out
}

func (c *container) commit(gen uint64, nodes []*vdom.VNode, err error) {
	c.mu.Lock()
	p := c.props
	if gen != c.gen {
		c.mu.Unlock()
		p.Metrics.AsyncResolution(observe.OutcomeStale)
		c.owner.Logger().Debug("stale async resolution dropped", "generation", gen)
		return
	}
	if c.gone() {
		c.mu.Unlock()
		c.devLog("async resolution after unmount ignored")
		return
	}
	if c.cancel != nil {
		c.cancel()
		c.cancel = nil
	}
	if err != nil {
		err = errors.New("E070").Wrap(err)
		c.status = Status{State: Failed, Err: err}
	} else {
		c.resolved = nodes
		c.status = Status{State: Loaded}
	}
	s := c.status
	c.mu.Unlock()

	if err != nil {
		p.Metrics.AsyncResolution(observe.OutcomeFailed)
		if p.OnError != nil {
			p.OnError(err)
		} else if lifecycle.DevMode {
			c.owner.Logger().Warn("async child failed", "component", c.owner.Name(), "error", err)
		}
	} else {
		p.Metrics.AsyncResolution(observe.OutcomeLoaded)
	}
	c.push(s)
	c.owner.Invalidate()
}

// push mirrors s to the bound Ref.
func (c *container) push(s Status) {
	c.mu.Lock()
	ref := c.props.Ref
	c.pushing = true
	c.mu.Unlock()
	if ref != nil {
		ref.Update(s)
	}
	c.mu.Lock()
	c.pushing = false
	c.mu.Unlock()
}

// onRef receives states pushed into the bound Ref.
func (c *container) onRef(s Status) {
	c.mu.Lock()
	if !c.armed {
		// The construction-time push would render before the container
		// element exists.
		c.armed = true
		c.mu.Unlock()
		return
	}
	if c.pushing {
		c.mu.Unlock()
		return
	}
	if c.gone() {
		c.mu.Unlock()
		c.devLog("async state update after unmount ignored", "state", s.State.String())
		return
	}
	c.status = s
	c.mu.Unlock()
	c.owner.Invalidate()
}

// gone reports whether the container element is no longer live. c.mu is
// held.
func (c *container) gone() bool {
	return c.node.Current() == nil || c.owner.Removed()
}

func (c *container) devLog(msg string, args ...any) {
	if lifecycle.DevMode {
		c.owner.Logger().Debug(msg, append([]any{"component", c.owner.Name()}, args...)...)
	}
}

func sameChildren(a, b []*vdom.VNode) bool {
	if len(a) != len(b) {
		return false
	}
	for i := range a {
		if a[i] != b[i] {
			return false
		}
	}
	return true
}
