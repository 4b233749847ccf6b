package main

import (
	"context"
	"io"
	"os"

	"github.com/spf13/cobra"

	"loadseq/internal/config"
	"loadseq/internal/history"
	"loadseq/internal/logging"
	"loadseq/internal/screen"
)

// app holds the process-level dependencies commands use. Tests swap them out.
type app struct {
	stdout     io.Writer
	stderr     io.Writer
	workingDir func() (string, error)
	newScreen  func(style screen.Style, w io.Writer, opts screen.Options) screen.Screen
	openStore  func(ctx context.Context, path string) (*history.Store, error)
}

func newApp() *app {
	return &app{
		stdout:     os.Stdout,
		stderr:     os.Stderr,
		workingDir: os.Getwd,
		newScreen:  screen.Select,
		openStore:  history.Open,
	}
}

func newRootCmd(a *app) *cobra.Command {
	var debug bool

	root := &cobra.Command{
		Use:           "loadseq",
		Short:         "Run weighted loading plans behind a progress screen",
		SilenceUsage:  true,
		SilenceErrors: true,
		PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
			wd, err := a.workingDir()
			if err != nil {
				return err
			}
			if err := config.Initialize(config.WithWorkingDir(wd)); err != nil {
				return err
			}
			if cmd.Flags().Changed("debug") {
				if err := config.ApplyOverrides(map[string]any{config.KeyDebug: debug}); err != nil {
					return err
				}
			}
			return logging.Init(config.GetBool(config.KeyDebug))
		},
		PersistentPostRun: func(cmd *cobra.Command, args []string) {
			logging.Close()
		},
	}
	root.SetOut(a.stdout)
	root.SetErr(a.stderr)
	root.PersistentFlags().BoolVar(&debug, "debug", false, "Write a debug log to ~/.loadseq/debug.log")

	root.AddCommand(
		newRunCmd(a),
		newListCmd(a),
		newDescribeCmd(a),
		newHistoryCmd(a),
		newVersionCmd(a),
	)
	return root
}

func (a *app) projectDir() string {
	wd, err := a.workingDir()
	if err != nil {
		return ""
	}
	return wd
}
