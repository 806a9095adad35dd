package main

import (
	"fmt"

	"github.com/spf13/cobra"
	"golang.org/x/net/html"

	"github.com/vango-dev/livedom/pkg/dequery"
)

func queryCmd(g *globals) *cobra.Command {
	var (
		file  string
		find  string
		first bool
		text  bool
	)

	cmd := &cobra.Command{
		Use:   "query SELECTOR",
		Short: "Print the nodes of a document matching a selector",
		Long: `Evaluate a CSS selector or XPath expression against an HTML document
through a query chain and print every matching element.

Examples:
  livedom query --file page.html "ul.todo > li"
  livedom query --file page.html "//main//a[@href]" --first
  livedom query --file page.html "#list" --find "li.done" --text`,
		Args: cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			return runQuery(cmd, g, file, args[0], find, first, text)
		},
	}

	cmd.Flags().StringVarP(&file, "file", "f", "", "HTML document to query")
	cmd.Flags().StringVar(&find, "find", "", "Selector for descendants of each match")
	cmd.Flags().BoolVar(&first, "first", false, "Keep only the first match")
	cmd.Flags().BoolVar(&text, "text", false, "Print text content instead of markup")
	_ = cmd.MarkFlagRequired("file")

	return cmd
}

func runQuery(cmd *cobra.Command, g *globals, file, selector, find string, first, text bool) error {
	doc, err := parseDocument(file, g.logger)
	if err != nil {
		return err
	}

	loop, _, stop := g.start(cmd.Context(), doc)
	defer stop()
	q := dequery.New(doc, loop,
		dequery.WithLogger(g.logger),
		dequery.WithMetrics(g.engine),
		dequery.WithTimeout(g.cfg.QueryTimeout()),
		dequery.WithPollInterval(g.cfg.PollInterval()),
	)

	chain := q.Q(selector)
	if find != "" {
		chain = chain.Find(find)
	}
	if first {
		chain = chain.First()
	}
	nodes, err := chain.Wait(cmd.Context())
	if err != nil {
		return err
	}

	out := cmd.OutOrStdout()
	for _, n := range nodes {
		fmt.Fprintln(out, show(doc.OuterHTML, doc.TextContent, n, text))
	}
	if len(nodes) == 0 {
		fmt.Fprintln(cmd.ErrOrStderr(), "no matches")
	}
	return g.report(out)
}

func show(markup, textContent func(*html.Node) string, n *html.Node, text bool) string {
	if text {
		return textContent(n)
	}
	return markup(n)
}
