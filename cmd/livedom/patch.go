package main

import (
	"fmt"

	"github.com/spf13/cobra"

	"github.com/vango-dev/livedom/internal/errors"
	"github.com/vango-dev/livedom/pkg/dom"
)

func patchCmd(g *globals) *cobra.Command {
	var (
		fromPath string
		toPath   string
	)

	cmd := &cobra.Command{
		Use:   "patch",
		Short: "Render one markup file and patch it into another",
		Long: `Render the body markup of --from into an empty document, patch it to
the body markup of --to, and print the resulting body together with the
number of live document mutations by operation.

Elements with a "key" attribute are matched by key across the two files.

Examples:
  livedom patch --from before.html --to after.html
  livedom patch --from before.html --to after.html --metrics`,
		Args: cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			return runPatch(cmd, g, fromPath, toPath)
		},
	}

	cmd.Flags().StringVar(&fromPath, "from", "", "Markup rendered first")
	cmd.Flags().StringVar(&toPath, "to", "", "Markup patched to")
	_ = cmd.MarkFlagRequired("from")
	_ = cmd.MarkFlagRequired("to")

	return cmd
}

func runPatch(cmd *cobra.Command, g *globals, fromPath, toPath string) error {
	prev, err := readTree(fromPath)
	if err != nil {
		return err
	}
	next, err := readTree(toPath)
	if err != nil {
		return err
	}

	doc := dom.NewDocument(dom.WithLogger(g.logger))
	loop, r, stop := g.start(cmd.Context(), doc)
	defer stop()

	var rendered map[string]float64
	var perr error
	err = loop.Do(cmd.Context(), func() {
		if _, perr = r.Render(prev, doc.Body()); perr != nil {
			return
		}
		if rendered, perr = g.counts("patch_ops_total", "op"); perr != nil {
			return
		}
		perr = r.Patch(prev, next, doc.Body())
	})
	if err != nil {
		return errors.New("E140").Wrap(err)
	}
	if perr != nil {
		return perr
	}

	total, err := g.counts("patch_ops_total", "op")
	if err != nil {
		return err
	}
	out := cmd.OutOrStdout()
	fmt.Fprintln(out, doc.InnerHTML(doc.Body()))
	fmt.Fprintln(out)
	success(out, "Patched %s to %s", fromPath, toPath)
	for _, op := range sortedKeys(total) {
		if n := total[op] - rendered[op]; n > 0 {
			fmt.Fprintf(out, "  %-8s %g\n", op, n)
		}
	}
	return g.report(out)
}
