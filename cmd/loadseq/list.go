package main

import (
	"fmt"
	"strconv"

	"github.com/spf13/cobra"

	"loadseq/internal/config"
	"loadseq/internal/plan"
)

func newListCmd(a *app) *cobra.Command {
	return &cobra.Command{
		Use:   "list",
		Short: "List available plans",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			plans, err := plan.LoadAll(a.projectDir(), config.GetString(config.KeyPlansDir))
			if err != nil {
				return err
			}
			if len(plans) == 0 {
				fmt.Fprintln(a.stdout, "No plans found.")
				return nil
			}
			rows := make([][]string, 0, len(plans))
			for _, p := range plans {
				rows = append(rows, []string{p.Name, strconv.Itoa(len(p.Steps)), p.Source, p.Description})
			}
			return writeTable(a.stdout, []string{"NAME", "STEPS", "SOURCE", "DESCRIPTION"}, rows)
		},
	}
}
