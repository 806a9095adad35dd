package main

import (
	"context"
	"fmt"
	"io"
	"log/slog"
	"os"
	"sort"
	"strings"

	"github.com/prometheus/client_golang/prometheus"
	dto "github.com/prometheus/client_model/go"
	"github.com/spf13/cobra"

	"github.com/vango-dev/livedom/internal/config"
	"github.com/vango-dev/livedom/internal/errors"
	"github.com/vango-dev/livedom/pkg/dom"
	"github.com/vango-dev/livedom/pkg/lifecycle"
	"github.com/vango-dev/livedom/pkg/observe"
	"github.com/vango-dev/livedom/pkg/render"
	"github.com/vango-dev/livedom/pkg/sched"
	"github.com/vango-dev/livedom/pkg/vdom"
)

// Version information set at build time.
var (
	version = "dev"
	commit  = "none"
	date    = "unknown"
)

func main() {
	errors.AutoColor(os.Stderr)
	os.Exit(execute(newRootCmd(), os.Stderr))
}

// execute runs root and writes any error to w in the requested format. It
// returns the process exit code.
func execute(root *cobra.Command, w io.Writer) int {
	err := root.Execute()
	if err == nil {
		return 0
	}
	output, _ := root.PersistentFlags().GetString("error-format")
	errors.FprintAs(w, err, output)
	return 1
}

// globals holds the persistent flags and what setup derives from them.
type globals struct {
	configPath  string
	verbose     bool
	metrics     bool
	errorFormat string

	cfg    *config.Config
	logger *slog.Logger
	reg    *prometheus.Registry
	engine *observe.Metrics
}

func newRootCmd() *cobra.Command {
	g := &globals{}
	rootCmd := &cobra.Command{
		Use:   "livedom",
		Short: "Render, patch, hydrate and query HTML documents",
		Long: `livedom drives the livedom rendering engine from the command line.

It runs the engine against HTML files:

  • hydrate checks that client markup adopts server markup
  • patch renders one document and patches it into another
  • query evaluates a selector through a query chain`,
		SilenceUsage:  true,
		SilenceErrors: true,
		PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
			return g.setup(cmd)
		},
	}

	rootCmd.PersistentFlags().StringVar(&g.configPath, "config", "", "Configuration file (default: livedom.json in the working directory)")
	rootCmd.PersistentFlags().BoolVarP(&g.verbose, "verbose", "v", false, "Log debug output to stderr")
	rootCmd.PersistentFlags().BoolVar(&g.metrics, "metrics", false, "Print engine metrics after the command")
	rootCmd.PersistentFlags().StringVar(&g.errorFormat, "error-format", errors.OutputPretty, "Error output: pretty, compact or json")

	rootCmd.AddCommand(
		hydrateCmd(g),
		patchCmd(g),
		queryCmd(g),
		versionCmd(),
	)
	return rootCmd
}

// setup loads the configuration and builds the logger and metrics. A
// missing default configuration file is not an error.
func (g *globals) setup(cmd *cobra.Command) error {
	if !errors.ValidOutput(g.errorFormat) {
		return errors.New("E140").
			WithDetailf("unknown error format %q", g.errorFormat).
			WithSuggestion("use pretty, compact or json")
	}
	var err error
	if g.configPath != "" {
		g.cfg, err = config.LoadFile(g.configPath)
	} else {
		g.cfg, err = config.Load(".")
		if errors.HasCode(err, "E121") {
			g.cfg, err = config.New(), nil
		}
	}
	if err != nil {
		return err
	}
	if g.verbose {
		g.cfg.Log.Level = "debug"
	}

	g.logger = g.cfg.Logger(cmd.ErrOrStderr())
	lifecycle.DevMode = g.cfg.DevMode
	g.reg = prometheus.NewRegistry()
	g.engine = observe.NewMetrics(
		observe.WithRegistry(g.reg),
		observe.WithNamespace(g.cfg.Metrics.Namespace),
	)
	return nil
}

// start returns a running loop and a renderer over doc. stop releases both.
func (g *globals) start(ctx context.Context, doc *dom.Document) (loop *sched.Loop, r *render.Renderer, stop func()) {
	loop = sched.New(sched.WithLogger(g.logger))
	loop.Start(ctx)
	r = render.New(doc, loop,
		render.WithLogger(g.logger),
		render.WithMetrics(g.engine),
		render.WithContext(ctx),
	)
	return loop, r, func() {
		r.Close()
		loop.Close()
	}
}

// report prints the gathered metrics when requested.
func (g *globals) report(w io.Writer) error {
	if !g.metrics && !g.cfg.Metrics.Enabled {
		return nil
	}
	fmt.Fprintln(w)
	return printMetrics(w, g.reg)
}

// counts sums the counter family name by the value of label.
func (g *globals) counts(name, label string) (map[string]float64, error) {
	families, err := g.reg.Gather()
	if err != nil {
		return nil, err
	}
	full := g.cfg.Metrics.Namespace + "_" + name
	out := make(map[string]float64)
	for _, mf := range families {
		if mf.GetName() != full {
			continue
		}
		for _, m := range mf.GetMetric() {
			key := ""
			for _, lp := range m.GetLabel() {
				if lp.GetName() == label {
					key = lp.GetValue()
				}
			}
			out[key] += m.GetCounter().GetValue()
		}
	}
	return out, nil
}

// printMetrics writes every sample of reg as "name{labels} value".
func printMetrics(w io.Writer, reg prometheus.Gatherer) error {
	families, err := reg.Gather()
	if err != nil {
		return err
	}
	for _, mf := range families {
		for _, m := range mf.GetMetric() {
			fmt.Fprintf(w, "%s%s %s\n", mf.GetName(), labels(m.GetLabel()), sample(mf.GetType(), m))
		}
	}
	return nil
}

func labels(pairs []*dto.LabelPair) string {
	if len(pairs) == 0 {
		return ""
	}
	parts := make([]string, 0, len(pairs))
	for _, lp := range pairs {
		parts = append(parts, fmt.Sprintf("%s=%q", lp.GetName(), lp.GetValue()))
	}
	return "{" + strings.Join(parts, ",") + "}"
}

func sample(t dto.MetricType, m *dto.Metric) string {
	switch t {
	case dto.MetricType_COUNTER:
		return fmt.Sprint(m.GetCounter().GetValue())
	case dto.MetricType_GAUGE:
		return fmt.Sprint(m.GetGauge().GetValue())
	case dto.MetricType_HISTOGRAM:
		h := m.GetHistogram()
		return fmt.Sprintf("count=%d sum=%g", h.GetSampleCount(), h.GetSampleSum())
	default:
		return "?"
	}
}

// sortedKeys returns the keys of m in order.
func sortedKeys(m map[string]float64) []string {
	keys := make([]string, 0, len(m))
	for k := range m {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	return keys
}

// parseDocument reads an HTML document from path.
func parseDocument(path string, logger *slog.Logger) (*dom.Document, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, errors.New("E140").WithDetail("open " + path).Wrap(err)
	}
	defer f.Close()
	doc, err := dom.Parse(f, dom.WithLogger(logger))
	if err != nil {
		return nil, errors.New("E140").WithDetail("parse " + path).Wrap(err)
	}
	return doc, nil
}

// readTree reads body markup from path as a tree.
func readTree(path string) (*vdom.VNode, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, errors.New("E140").WithDetail("open " + path).Wrap(err)
	}
	defer f.Close()
	nodes, err := vdom.FromHTML(f)
	if err != nil {
		return nil, err
	}
	return vdom.Fragment(nodes), nil
}

// success prints a success message.
func success(w io.Writer, format string, args ...any) {
	fmt.Fprintf(w, "✓ %s\n", fmt.Sprintf(format, args...))
}
