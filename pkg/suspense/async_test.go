package suspense

import (
	"context"
	"errors"
	"strings"
	"testing"
	"time"

	"github.com/google/go-cmp/cmp"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/testutil"

	liverrors "github.com/vango-dev/livedom/internal/errors"
	"github.com/vango-dev/livedom/pkg/dom"
	"github.com/vango-dev/livedom/pkg/lifecycle"
	"github.com/vango-dev/livedom/pkg/observe"
	"github.com/vango-dev/livedom/pkg/render"
	"github.com/vango-dev/livedom/pkg/sched"
	"github.com/vango-dev/livedom/pkg/vdom"
)

type fixture struct {
	t       *testing.T
	doc     *dom.Document
	loop    *sched.Loop
	r       *render.Renderer
	reg     *prometheus.Registry
	metrics *observe.Metrics
}

func newFixture(t *testing.T) *fixture {
	t.Helper()
	loop := sched.New()
	loop.Start(context.Background())
	t.Cleanup(loop.Close)
	doc := dom.NewDocument()
	reg := prometheus.NewRegistry()
	return &fixture{
		t:       t,
		doc:     doc,
		loop:    loop,
		r:       render.New(doc, loop),
		reg:     reg,
		metrics: observe.NewMetrics(observe.WithRegistry(reg)),
	}
}

func (f *fixture) do(fn func()) {
	f.t.Helper()
	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	if err := f.loop.Do(ctx, fn); err != nil {
		f.t.Fatalf("loop.Do() error = %v", err)
	}
}

func (f *fixture) render(tree *vdom.VNode) {
	f.t.Helper()
	var err error
	f.do(func() { _, err = f.r.Render(tree, f.doc.Body()) })
	if err != nil {
		f.t.Fatalf("Render() error = %v", err)
	}
}

func (f *fixture) markup() string {
	var out string
	f.do(func() { out = f.doc.InnerHTML(f.doc.Body()) })
	return out
}

// eventually retries check until it reports true or a second passed.
func (f *fixture) eventually(what string, check func() bool) {
	f.t.Helper()
	deadline := time.Now().Add(time.Second)
	for !check() {
		if time.Now().After(deadline) {
			f.t.Fatalf("timed out waiting for %s", what)
		}
		time.Sleep(5 * time.Millisecond)
	}
}

// statusRef returns a Ref recording every pushed state and a channel that
// receives them.
func statusRef() (*vdom.Ref[Status], chan Status) {
	ch := make(chan Status, 16)
	ref := vdom.CreateRef[Status](func(s Status) { ch <- s })
	return ref, ch
}

func await(t *testing.T, ch <-chan Status, want State) []State {
	t.Helper()
	var seen []State
	timeout := time.After(2 * time.Second)
	for {
		select {
		case s := <-ch:
			seen = append(seen, s.State)
			if s.State == want {
				return seen
			}
		case <-timeout:
			t.Fatalf("timed out waiting for %v, saw %v", want, seen)
		}
	}
}

func TestAsyncResolves(t *testing.T) {
	f := newFixture(t)
	release := make(chan struct{})
	child := vdom.Defer(func(ctx context.Context) (*vdom.VNode, error) {
		<-release
		return vdom.Fragment(vdom.P("a"), vdom.P("b")), nil
	})
	ref, ch := statusRef()

	f.render(Async(Props{
		Fallback: vdom.P("Loading"),
		Children: []*vdom.VNode{child},
		Ref:      ref,
		Metrics:  f.metrics,
	}))
	if got, want := f.markup(), `<div aria-busy="true" data-state="loading"><p>Loading</p></div>`; got != want {
		t.Errorf("markup while loading = %q, want %q", got, want)
	}

	close(release)
	seen := await(t, ch, Loaded)
	if diff := cmp.Diff([]State{Loading, Loaded}, seen); diff != "" {
		t.Errorf("state sequence mismatch (-want +got):\n%s", diff)
	}
	if got, want := f.markup(), `<div aria-busy="false" data-state="loaded"><p>a</p><p>b</p></div>`; got != want {
		t.Errorf("markup after load = %q, want %q", got, want)
	}
	if s, _ := ref.State(); s.State != Loaded || s.Err != nil {
		t.Errorf("ref.State() = %+v, want loaded", s)
	}

	select {
	case s := <-ch:
		t.Errorf("unexpected state %v after the resolution settled", s.State)
	case <-time.After(20 * time.Millisecond):
	}
	if err := testutil.GatherAndCompare(f.reg, strings.NewReader(`
# HELP livedom_async_resolutions_total Total number of settled async containers by outcome
# TYPE livedom_async_resolutions_total counter
livedom_async_resolutions_total{outcome="loaded"} 1
`), "livedom_async_resolutions_total"); err != nil {
		t.Error(err)
	}
}

func TestAsyncOrdinaryChildren(t *testing.T) {
	f := newFixture(t)
	ref, ch := statusRef()
	f.render(Async(Props{
		Tag:      "section",
		Class:    "feed",
		Children: []*vdom.VNode{vdom.P("now"), vdom.Await(sched.Resolved[*vdom.VNode](nil, vdom.P("later")))},
		Ref:      ref,
	}))

	await(t, ch, Loaded)
	want := `<section aria-busy="false" class="feed" data-state="loaded"><p>now</p><p>later</p></section>`
	if got := f.markup(); got != want {
		t.Errorf("markup = %q, want %q", got, want)
	}
}

func TestAsyncFailure(t *testing.T) {
	f := newFixture(t)
	boom := errors.New("boom")
	ref, ch := statusRef()
	var reported error

	f.render(Async(Props{
		Fallback: vdom.P("Loading"),
		Children: []*vdom.VNode{
			vdom.P("fine"),
			vdom.Defer(func(context.Context) (*vdom.VNode, error) { return nil, boom }),
		},
		OnError: func(err error) { reported = err },
		Ref:     ref,
	}))

	seen := await(t, ch, Failed)
	if diff := cmp.Diff([]State{Loading, Failed}, seen); diff != "" {
		t.Errorf("state sequence mismatch (-want +got):\n%s", diff)
	}
	if got, want := f.markup(), `<div aria-busy="false" data-state="failed">`+DefaultFailureText+`</div>`; got != want {
		t.Errorf("markup = %q, want %q", got, want)
	}

	s, _ := ref.State()
	if !errors.Is(s.Err, boom) || !liverrors.HasCode(s.Err, "E070") {
		t.Errorf("ref.State().Err = %v, want E070 wrapping boom", s.Err)
	}
	var got error
	f.do(func() { got = reported })
	if !errors.Is(got, boom) {
		t.Errorf("OnError got %v, want boom", got)
	}
}

func TestAsyncPanickingLoader(t *testing.T) {
	f := newFixture(t)
	ref, ch := statusRef()
	f.render(Async(Props{
		Children:  []*vdom.VNode{vdom.Defer(func(context.Context) (*vdom.VNode, error) { panic("kaput") })},
		ErrorView: func(err error) *vdom.VNode { return vdom.Span(vdom.Class("error"), err.Error()) },
		Ref:       ref,
	}))

	await(t, ch, Failed)
	if got := f.markup(); !strings.Contains(got, `<span class="error">`) || !strings.Contains(got, "kaput") {
		t.Errorf("markup = %q, want the custom error view naming the panic", got)
	}
}

func TestAsyncSupersededResolutionDropped(t *testing.T) {
	f := newFixture(t)
	ref, ch := statusRef()
	slow := vdom.Defer(func(ctx context.Context) (*vdom.VNode, error) {
		<-ctx.Done()
		return vdom.P("old"), nil
	})

	version := 0
	var app *lifecycle.Owner
	f.render(vdom.Component("App", func(o *lifecycle.Owner) *vdom.VNode {
		app = o
		children := []*vdom.VNode{slow}
		if version > 0 {
			children = []*vdom.VNode{vdom.P("new")}
		}
		return Async(Props{Children: children, Ref: ref, Metrics: f.metrics})
	}))

	f.do(func() {
		version = 1
		app.Invalidate()
	})

	await(t, ch, Loaded)
	if got := f.markup(); !strings.Contains(got, "<p>new</p>") || strings.Contains(got, "old") {
		t.Errorf("markup = %q, want only the newer resolution", got)
	}
	f.eventually("the stale resolution", func() bool {
		return testutil.GatherAndCompare(f.reg, strings.NewReader(`
# HELP livedom_async_resolutions_total Total number of settled async containers by outcome
# TYPE livedom_async_resolutions_total counter
livedom_async_resolutions_total{outcome="loaded"} 1
livedom_async_resolutions_total{outcome="stale"} 1
`), "livedom_async_resolutions_total") == nil
	})
}

func TestAsyncRefDrivesState(t *testing.T) {
	f := newFixture(t)
	ref, ch := statusRef()
	f.render(Async(Props{Children: []*vdom.VNode{vdom.P("x")}, Ref: ref}))
	await(t, ch, Loaded)

	ref.Update(Status{State: Failed, Err: errors.New("external")})
	f.eventually("the pushed state to render", func() bool {
		return strings.Contains(f.markup(), `data-state="failed"`)
	})
}

func TestAsyncUpdateAfterUnmountIgnored(t *testing.T) {
	f := newFixture(t)
	release := make(chan struct{})
	ref, ch := statusRef()
	f.render(Async(Props{
		Fallback: vdom.P("Loading"),
		Children: []*vdom.VNode{vdom.Defer(func(context.Context) (*vdom.VNode, error) {
			<-release
			return vdom.P("late"), nil
		})},
		Ref:     ref,
		Metrics: f.metrics,
	}))
	<-ch // construction push

	var err error
	f.do(func() { err = f.r.Unmount(f.doc.Body()) })
	if err != nil {
		t.Fatalf("Unmount() error = %v", err)
	}
	ref.Update(Status{State: Loaded})
	close(release)

	f.eventually("the dropped resolution", func() bool {
		return testutil.GatherAndCompare(f.reg, strings.NewReader(`
# HELP livedom_async_resolutions_total Total number of settled async containers by outcome
# TYPE livedom_async_resolutions_total counter
livedom_async_resolutions_total{outcome="stale"} 1
`), "livedom_async_resolutions_total") == nil
	})
	if got := f.markup(); got != "" {
		t.Errorf("markup after unmount = %q, want empty", got)
	}
}

func TestAsyncMarkupRendersFallback(t *testing.T) {
	got, err := render.RenderToString(Async(Props{
		Fallback: vdom.P("wait"),
		Children: []*vdom.VNode{vdom.Defer(func(context.Context) (*vdom.VNode, error) { return nil, nil })},
	}))
	if err != nil {
		t.Fatalf("RenderToString() error = %v", err)
	}
	if want := `<div aria-busy="true" data-state="loading"><p>wait</p></div>`; got != want {
		t.Errorf("RenderToString() = %q, want %q", got, want)
	}
}

func TestFlatten(t *testing.T) {
	a, b, c := vdom.P("a"), vdom.P("b"), vdom.P("c")
	nested := vdom.Fragment(vdom.Fragment(c))
	got := flatten([]*vdom.VNode{vdom.Fragment(a, b), nil, nested})

	if len(got) != 3 || got[0] != a || got[1] != b || got[2].Kind != vdom.KindFragment {
		t.Errorf("flatten() = %v, want a, b and the inner fragment", got)
	}
}

func TestStateString(t *testing.T) {
	for s, want := range map[State]string{Loading: "loading", Loaded: "loaded", Failed: "failed", 7: "State(7)"} {
		if got := s.String(); got != want {
			t.Errorf("State(%d).String() = %q, want %q", int(s), got, want)
		}
	}
}
