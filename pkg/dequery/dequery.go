package dequery

import (
	"context"
	"log/slog"
	"reflect"
	"time"

	"golang.org/x/net/html"

	"github.com/vango-dev/livedom/internal/errors"
	"github.com/vango-dev/livedom/pkg/dom"
	"github.com/vango-dev/livedom/pkg/observe"
	"github.com/vango-dev/livedom/pkg/sched"
	"github.com/vango-dev/livedom/pkg/vdom"
)

const (
	// DefaultTimeout bounds the wait for a reference handle's live node.
	DefaultTimeout = 5 * time.Second

	// DefaultPollInterval is the delay between reference handle checks.
	DefaultPollInterval = 10 * time.Millisecond
)

type options struct {
	timeout time.Duration
	poll    time.Duration
	logger  *slog.Logger
	metrics *observe.Metrics
}

// Option configures a Dequery or a single chain.
type Option func(*options)

// WithTimeout sets how long a chain waits for a reference handle. Values
// <= 0 are ignored.
func WithTimeout(d time.Duration) Option {
	return func(o *options) {
		if d > 0 {
			o.timeout = d
		}
	}
}

// WithPollInterval sets the reference handle poll interval. Values <= 0 are
// ignored.
func WithPollInterval(d time.Duration) Option {
	return func(o *options) {
		if d > 0 {
			o.poll = d
		}
	}
}

// WithLogger sets the logger.
func WithLogger(logger *slog.Logger) Option {
	return func(o *options) {
		if logger != nil {
			o.logger = logger
		}
	}
}

// WithMetrics records chain steps and timeouts.
func WithMetrics(m *observe.Metrics) Option {
	return func(o *options) {
		o.metrics = m
	}
}

// Dequery creates chains over one document.
type Dequery struct {
	doc     *dom.Document
	loop    *sched.Loop
	ownLoop bool
	opts    options
}

// New creates a Dequery for doc. Pending chains resolve on loop; with a nil
// loop a private one is started and stopped by Close.
func New(doc *dom.Document, loop *sched.Loop, opts ...Option) *Dequery {
	d := &Dequery{
		doc:  doc,
		loop: loop,
		opts: options{
			timeout: DefaultTimeout,
			poll:    DefaultPollInterval,
			logger:  slog.Default(),
		},
	}
	for _, opt := range opts {
		opt(&d.opts)
	}
	d.opts.logger = d.opts.logger.With("component", "dequery")
	if d.loop == nil {
		d.loop = sched.New(sched.WithLogger(d.opts.logger))
		d.loop.Start(context.Background())
		d.ownLoop = true
	}
	return d
}

// Close stops the private loop, if any.
func (d *Dequery) Close() {
	if d.ownLoop {
		d.loop.Close()
	}
}

// Document returns the queried document.
func (d *Dequery) Document() *dom.Document { return d.doc }

// Q creates a chain over target: a *html.Node, a []*html.Node, a
// vdom.NodeRef, a selector string evaluated against the whole document now,
// or another *Chain. Options override the Dequery defaults for this chain.
func (d *Dequery) Q(target any, opts ...Option) *Chain {
	o := d.opts
	for _, opt := range opts {
		opt(&o)
	}
	c := &Chain{d: d, opts: o, created: time.Now()}

	switch t := target.(type) {
	case *html.Node:
		if t == nil {
			c.state = resolved{}
		} else {
			c.state = resolved{nodes: []*html.Node{t}}
		}
	case []*html.Node:
		c.state = resolved{nodes: compact(t)}
	case string:
		nodes, err := d.doc.Query(d.doc.Root(), t)
		if err != nil {
			c.state = failed{err: err}
		} else {
			c.state = resolved{nodes: nodes}
		}
	case *Chain:
		if t == nil {
			c.state = failed{err: errors.New("E081").WithDetail("nil chain")}
			break
		}
		if nodes, ok := t.resolvedNodes(); ok {
			c.state = resolved{nodes: nodes}
		} else {
			c.state = pending{origin: t.await}
		}
	case vdom.NodeRef:
		if isNil(t) {
			c.state = failed{err: errors.New("E081").WithDetail("nil reference")}
			break
		}
		if n := t.Current(); n != nil {
			c.state = resolved{nodes: []*html.Node{n}}
		} else {
			c.state = pending{origin: c.waitRef(t)}
		}
	default:
		c.state = failed{err: errors.New("E081").WithDetailf("%T", target)}
	}

	if f, ok := c.state.(failed); ok {
		o.logger.Debug("chain failed at creation", "error", f.err)
	}
	return c
}

// isNil reports whether ref is nil or holds a nil pointer, such as a ref
// field that was never created.
func isNil(ref vdom.NodeRef) bool {
	if ref == nil {
		return true
	}
	v := reflect.ValueOf(ref)
	switch v.Kind() {
	case reflect.Pointer, reflect.Interface, reflect.Map, reflect.Slice, reflect.Func, reflect.Chan:
		return v.IsNil()
	}
	return false
}

func compact(nodes []*html.Node) []*html.Node {
	out := make([]*html.Node, 0, len(nodes))
	for _, n := range nodes {
		if n != nil {
			out = append(out, n)
		}
	}
	return out
}
