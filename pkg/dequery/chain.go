package dequery

import (
	"context"
	"sync"
	"time"

	"golang.org/x/net/html"

	"github.com/vango-dev/livedom/internal/errors"
	"github.com/vango-dev/livedom/pkg/observe"
	"github.com/vango-dev/livedom/pkg/sched"
	"github.com/vango-dev/livedom/pkg/vdom"
)

// chainState is one of resolved, pending or failed.
type chainState interface{ isChainState() }

// resolved holds a known node set. Steps run immediately.
type resolved struct{ nodes []*html.Node }

// pending holds the queue of steps waiting for origin. future is set once
// the chain is awaited.
type pending struct {
	origin origin
	queue  []step
	future *sched.Future[[]*html.Node]
}

// failed holds the error every await returns. Steps are dropped.
type failed struct{ err error }

func (resolved) isChainState() {}
func (pending) isChainState()  {}
func (failed) isChainState()   {}

// origin produces the node set a pending chain starts from. It runs on the
// loop and calls settle exactly once.
type origin func(settle func([]*html.Node, error))

type step struct {
	name string
	fn   func([]*html.Node) ([]*html.Node, error)
}

// Chain is a query handle over zero or more live nodes. Its methods return
// the chain itself. Chain is safe for concurrent use.
type Chain struct {
	d       *Dequery
	opts    options
	created time.Time

	mu    sync.Mutex
	state chainState
}

// Pending reports whether steps are waiting for the chain to be awaited.
func (c *Chain) Pending() bool {
	c.mu.Lock()
	defer c.mu.Unlock()
	_, ok := c.state.(pending)
	return ok
}

// Nodes returns the node set of a resolved chain.
func (c *Chain) Nodes() ([]*html.Node, bool) {
	return c.resolvedNodes()
}

// Err returns the error of a failed chain.
func (c *Chain) Err() error {
	c.mu.Lock()
	defer c.mu.Unlock()
	if f, ok := c.state.(failed); ok {
		return f.err
	}
	return nil
}

func (c *Chain) resolvedNodes() ([]*html.Node, bool) {
	c.mu.Lock()
	defer c.mu.Unlock()
	if r, ok := c.state.(resolved); ok {
		return append([]*html.Node(nil), r.nodes...), true
	}
	return nil, false
}

// then runs s now on a resolved chain and queues it on a pending one.
func (c *Chain) then(s step) *Chain {
	c.mu.Lock()
	switch st := c.state.(type) {
	case resolved:
		c.mu.Unlock()
		c.opts.metrics.ChainStep(observe.ModeEager)
		if _, err := s.fn(st.nodes); err != nil {
			c.fail(err, nil)
		}
		return c
	case pending:
		st.queue = append(st.queue, s)
		c.state = st
	}
	c.mu.Unlock()
	return c
}

// deferred queues s behind the current node set, turning a resolved chain
// pending.
func (c *Chain) deferred(s step) *Chain {
	c.mu.Lock()
	defer c.mu.Unlock()
	switch st := c.state.(type) {
	case resolved:
		nodes := st.nodes
		c.state = pending{
			origin: func(settle func([]*html.Node, error)) { settle(nodes, nil) },
			queue:  []step{s},
		}
	case pending:
		st.queue = append(st.queue, s)
		c.state = st
	}
	return c
}

// Wait resolves the chain and returns its final node set.
func (c *Chain) Wait(ctx context.Context) ([]*html.Node, error) {
	return c.Future().Wait(ctx)
}

// Future resolves the chain on the loop. Queued steps run once, in order,
// each receiving the node set of the previous one. Repeated calls return the
// same future until new steps are queued after it settled.
func (c *Chain) Future() *sched.Future[[]*html.Node] {
	c.mu.Lock()
	switch st := c.state.(type) {
	case resolved:
		c.mu.Unlock()
		return sched.Resolved(c.d.loop, append([]*html.Node(nil), st.nodes...))
	case failed:
		c.mu.Unlock()
		return sched.Rejected[[]*html.Node](c.d.loop, st.err)
	}

	st := c.state.(pending)
	if st.future != nil {
		c.mu.Unlock()
		return st.future
	}
	f, resolve, reject := sched.NewFuture[[]*html.Node](c.d.loop)
	st.future = f
	c.state = st
	c.mu.Unlock()

	err := c.d.loop.Submit(func() {
		st.origin(func(nodes []*html.Node, err error) {
			if err != nil {
				c.fail(err, reject)
				return
			}
			c.drain(nodes, resolve, reject)
		})
	})
	if err != nil {
		c.fail(err, reject)
	}
	return f
}

func (c *Chain) drain(nodes []*html.Node, resolve func([]*html.Node), reject func(error)) {
	for {
		c.mu.Lock()
		st, ok := c.state.(pending)
		if !ok {
			c.mu.Unlock()
			return
		}
		if len(st.queue) == 0 {
			c.state = resolved{nodes: nodes}
			c.mu.Unlock()
			resolve(append([]*html.Node(nil), nodes...))
			return
		}
		s := st.queue[0]
		st.queue = st.queue[1:]
		c.state = st
		c.mu.Unlock()

		c.opts.metrics.ChainStep(observe.ModeDeferred)
		next, err := s.fn(nodes)
		if err != nil {
			c.opts.logger.Debug("chain step failed", "step", s.name)
			c.fail(err, reject)
			return
		}
		nodes = next
	}
}

func (c *Chain) fail(err error, reject func(error)) {
	c.mu.Lock()
	c.state = failed{err: err}
	c.mu.Unlock()
	c.opts.logger.Debug("chain failed", "error", err)
	if reject != nil {
		reject(err)
	}
}

// await is the origin of a chain created from c.
func (c *Chain) await(settle func([]*html.Node, error)) {
	c.Future().Then(settle)
}

// waitRef polls ref until it holds a live node or the chain timed out.
func (c *Chain) waitRef(ref vdom.NodeRef) origin {
	return func(settle func([]*html.Node, error)) {
		var poll func()
		poll = func() {
			if n := ref.Current(); n != nil {
				settle([]*html.Node{n}, nil)
				return
			}
			if time.Since(c.created) >= c.opts.timeout {
				c.opts.metrics.ChainTimeout()
				settle(nil, errors.New("E080").WithDetailf("no live node after %s", c.opts.timeout))
				return
			}
			c.d.loop.AfterFunc(c.opts.poll, poll)
		}
		poll()
	}
}
