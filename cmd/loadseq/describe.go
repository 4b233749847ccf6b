package main

import (
	"fmt"
	"io"

	"github.com/charmbracelet/glamour"
	"github.com/mattn/go-isatty"
	"github.com/spf13/cobra"

	"loadseq/internal/config"
	"loadseq/internal/plan"
)

const describeWidth = 80

func newDescribeCmd(a *app) *cobra.Command {
	return &cobra.Command{
		Use:   "describe <plan>",
		Short: "Show a plan's steps and weights",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			p, err := plan.Find(args[0], a.projectDir(), config.GetString(config.KeyPlansDir))
			if err != nil {
				return err
			}
			out, err := renderMarkdown(p.Markdown(), markdownStyle(a.stdout))
			if err != nil {
				return err
			}
			_, err = fmt.Fprint(a.stdout, out)
			return err
		},
	}
}

func markdownStyle(w io.Writer) string {
	if f, ok := w.(interface{ Fd() uintptr }); ok && isatty.IsTerminal(f.Fd()) {
		return "dark"
	}
	return "notty"
}

func renderMarkdown(md, style string) (string, error) {
	renderer, err := glamour.NewTermRenderer(
		glamour.WithStandardStyle(style),
		glamour.WithWordWrap(describeWidth),
	)
	if err != nil {
		return "", fmt.Errorf("create markdown renderer: %w", err)
	}
	return renderer.Render(md)
}
