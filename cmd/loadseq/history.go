package main

import (
	"fmt"
	"strconv"
	"time"

	"github.com/spf13/cobra"

	"loadseq/internal/config"
	appErrors "loadseq/internal/errors"
)

func newHistoryCmd(a *app) *cobra.Command {
	var limit int

	cmd := &cobra.Command{
		Use:   "history",
		Short: "Show recent runs",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			path, err := config.HistoryPath()
			if err != nil {
				return appErrors.New(appErrors.CodeConfigurationError, "resolve history path", err)
			}
			store, err := a.openStore(cmd.Context(), path)
			if err != nil {
				return err
			}
			defer func() { _ = store.Close() }()

			runs, err := store.Recent(cmd.Context(), limit)
			if err != nil {
				return err
			}
			if len(runs) == 0 {
				fmt.Fprintln(a.stdout, "No runs recorded.")
				return nil
			}

			rows := make([][]string, 0, len(runs))
			for _, run := range runs {
				duration := "-"
				if d := run.Duration(); d > 0 {
					duration = formatDuration(d)
				}
				rows = append(rows, []string{
					shortID(run.ID),
					run.Plan,
					run.Status,
					run.StartedAt.Format(time.DateTime),
					duration,
					strconv.Itoa(run.Steps),
					run.Error,
				})
			}
			return writeTable(a.stdout, []string{"RUN", "PLAN", "STATUS", "STARTED", "DURATION", "STEPS", "ERROR"}, rows)
		},
	}
	cmd.Flags().IntVarP(&limit, "limit", "n", 10, "Number of runs to show")
	return cmd
}

func shortID(id string) string {
	if len(id) > 8 {
		return id[:8]
	}
	return id
}
