package main

import (
	"fmt"
	"strings"

	"github.com/spf13/cobra"

	"github.com/vango-dev/livedom/internal/errors"
	"github.com/vango-dev/livedom/pkg/vdom"
)

func hydrateCmd(g *globals) *cobra.Command {
	var (
		serverPath string
		clientPath string
		strict     bool
		printBody  bool
	)

	cmd := &cobra.Command{
		Use:   "hydrate",
		Short: "Check that client markup hydrates onto server markup",
		Long: `Hydrate the body of a server-rendered document with the tree described
by a client markup file, then report the repairs that were needed.

In strict mode the first mismatch fails the command. Whitespace between
elements is ignored; whitespace inside text must match.

Examples:
  livedom hydrate --server page.html --client view.html
  livedom hydrate --server page.html --client view.html --strict
  livedom hydrate --server page.html --client view.html --print`,
		Args: cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			return runHydrate(cmd, g, serverPath, clientPath, strict || g.cfg.Hydration.Strict, printBody)
		},
	}

	cmd.Flags().StringVar(&serverPath, "server", "", "Server-rendered HTML document")
	cmd.Flags().StringVar(&clientPath, "client", "", "Client body markup to hydrate with")
	cmd.Flags().BoolVar(&strict, "strict", false, "Fail on the first mismatch (default from livedom.json)")
	cmd.Flags().BoolVar(&printBody, "print", false, "Print the hydrated body")
	_ = cmd.MarkFlagRequired("server")
	_ = cmd.MarkFlagRequired("client")

	return cmd
}

func runHydrate(cmd *cobra.Command, g *globals, serverPath, clientPath string, strict, printBody bool) error {
	doc, err := parseDocument(serverPath, g.logger)
	if err != nil {
		return err
	}
	tree, err := readTree(clientPath)
	if err != nil {
		return err
	}
	trimBlank(tree)

	loop, r, stop := g.start(cmd.Context(), doc)
	defer stop()

	var herr error
	if err := loop.Do(cmd.Context(), func() {
		herr = r.HydrateMount(tree, doc.Body(), strict)
	}); err != nil {
		return errors.New("E140").Wrap(err)
	}
	if herr != nil {
		return herr
	}

	out := cmd.OutOrStdout()
	mismatches, err := g.counts("hydration_mismatches_total", "kind")
	if err != nil {
		return err
	}
	total := 0.0
	for _, n := range mismatches {
		total += n
	}
	success(out, "Hydrated %s onto %s (%g repaired mismatches)", clientPath, serverPath, total)
	for _, kind := range sortedKeys(mismatches) {
		fmt.Fprintf(out, "  %-8s %g\n", kind, mismatches[kind])
	}
	if printBody {
		fmt.Fprintln(out, doc.InnerHTML(doc.Body()))
	}
	return g.report(out)
}

// trimBlank drops whitespace-only text from the children of v, leaving the
// contents of pre and textarea alone.
func trimBlank(v *vdom.VNode) {
	if v.Tag == "pre" || v.Tag == "textarea" {
		return
	}
	kept := v.Children[:0]
	for _, c := range v.Children {
		if c.Kind == vdom.KindText && strings.TrimSpace(c.Text) == "" {
			continue
		}
		trimBlank(c)
		kept = append(kept, c)
	}
	v.Children = kept
}
