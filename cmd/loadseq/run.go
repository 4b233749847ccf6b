package main

import (
	"context"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"time"

	"github.com/nightlyone/lockfile"
	"github.com/spf13/cobra"

	"loadseq/internal/config"
	appErrors "loadseq/internal/errors"
	"loadseq/internal/history"
	"loadseq/internal/host"
	"loadseq/internal/logging"
	"loadseq/internal/plan"
	"loadseq/internal/presenter"
	"loadseq/internal/screen"
)

const lockFileName = "run.lock"

type runFlags struct {
	style     string
	learn     bool
	noHistory bool
}

func newRunCmd(a *app) *cobra.Command {
	var flags runFlags

	cmd := &cobra.Command{
		Use:   "run <plan>",
		Short: "Run a plan by name or path",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			overrides := map[string]any{}
			if cmd.Flags().Changed("style") {
				overrides[config.KeyScreenStyle] = flags.style
			}
			if cmd.Flags().Changed("learn") {
				overrides[config.KeyLearnWeights] = flags.learn
			}
			if err := config.ApplyOverrides(overrides); err != nil {
				return err
			}
			return a.runPlan(cmd.Context(), args[0], flags.noHistory)
		},
	}

	cmd.Flags().StringVar(&flags.style, "style", config.DefaultScreenStyle, "Screen style (auto, tui, line, log, none)")
	cmd.Flags().BoolVar(&flags.learn, "learn", false, "Weight steps by their average duration in past runs")
	cmd.Flags().BoolVar(&flags.noHistory, "no-history", false, "Do not record this run")
	return cmd
}

func (a *app) runPlan(ctx context.Context, ref string, noHistory bool) error {
	logger := logging.Component("run")

	p, err := plan.Find(ref, a.projectDir(), config.GetString(config.KeyPlansDir))
	if err != nil {
		return err
	}
	style, err := screen.ParseStyle(config.GetString(config.KeyScreenStyle))
	if err != nil {
		return err
	}

	historyPath, err := config.HistoryPath()
	if err != nil {
		return appErrors.New(appErrors.CodeConfigurationError, "resolve history path", err)
	}
	unlock, err := acquireRunLock(filepath.Dir(historyPath))
	if err != nil {
		return err
	}
	defer unlock()

	var store *history.Store
	if config.GetBool(config.KeyHistoryEnabled) && !noHistory {
		store, err = a.openStore(ctx, historyPath)
		if err != nil {
			// A broken history db never blocks a run.
			logger.Warn().Err(err).Str("path", historyPath).Msg("history disabled for this run")
			fmt.Fprintf(a.stderr, "warning: %v\n", err)
			store = nil
		} else {
			defer func() { _ = store.Close() }()
		}
	}

	opts := plan.BuildOptions{}
	if store != nil && config.GetBool(config.KeyLearnWeights) {
		avg, err := store.AverageDurations(ctx, p.Name)
		if err != nil {
			logger.Warn().Err(err).Msg("learned weights unavailable")
		} else {
			opts.Weights = history.Weights(avg)
		}
	}

	var runID string
	if store != nil {
		runID, err = store.BeginRun(ctx, p.Name)
		if err != nil {
			return appErrors.New(appErrors.CodeHistoryUnavailable, "begin run", err)
		}
		opts.Recorder = store.Recorder(runID)
	}

	steps, err := plan.Build(p, opts)
	if err != nil {
		if store != nil {
			_ = store.FinishRun(context.WithoutCancel(ctx), runID, err)
		}
		return err
	}

	view := a.newScreen(style, a.stderr, screen.Options{
		Title: p.Name,
		Delay: config.GetDuration(config.KeyScreenDelay),
	})
	adapter := presenter.New[string](host.NewTerminal(a.stderr))

	logger.Debug().Str("plan", p.Name).Str("source", p.Source).Int("steps", len(steps)).Msg("run starting")
	start := time.Now()
	runErr := adapter.ExecuteSteps(ctx, view, steps, presenter.Hooks{})
	elapsed := time.Since(start)

	if store != nil {
		if err := store.FinishRun(context.WithoutCancel(ctx), runID, runErr); err != nil {
			logger.Warn().Err(err).Str("run", runID).Msg("finish run failed")
		}
	}
	if runErr != nil {
		return fmt.Errorf("plan %s: %w", p.Name, runErr)
	}

	fmt.Fprintf(a.stdout, "%s finished in %s\n", p.Name, formatDuration(elapsed))
	return nil
}

// acquireRunLock takes the per-user run lock in dir.
func acquireRunLock(dir string) (func(), error) {
	abs, err := filepath.Abs(dir)
	if err != nil {
		return nil, fmt.Errorf("resolve lock dir: %w", err)
	}
	//nolint:gosec // G301: User config directory needs standard permissions
	if err := os.MkdirAll(abs, 0755); err != nil {
		return nil, fmt.Errorf("create lock dir: %w", err)
	}

	lock, err := lockfile.New(filepath.Join(abs, lockFileName))
	if err != nil {
		return nil, fmt.Errorf("create run lock: %w", err)
	}
	if err := lock.TryLock(); err != nil {
		if errors.Is(err, lockfile.ErrBusy) {
			return nil, fmt.Errorf("another loadseq run is in progress")
		}
		return nil, fmt.Errorf("acquire run lock: %w", err)
	}
	return func() { _ = lock.Unlock() }, nil
}

func formatDuration(d time.Duration) string {
	if d < time.Millisecond {
		return d.String()
	}
	if d < time.Second {
		return d.Round(10 * time.Millisecond).String()
	}
	return d.Round(100 * time.Millisecond).String()
}
