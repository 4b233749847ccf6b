package plan

import (
	"bytes"
	"context"
	"fmt"
	"math"
	"os/exec"
	"path/filepath"
	"strings"
	"time"

	appErrors "loadseq/internal/errors"
	"loadseq/internal/loader"
	"loadseq/internal/resource"
)

// Recorder observes every step that finishes, successfully or not.
type Recorder interface {
	RecordStep(ctx context.Context, step string, elapsed time.Duration, err error)
}

// RecorderFunc adapts a function to Recorder.
type RecorderFunc func(ctx context.Context, step string, elapsed time.Duration, err error)

// RecordStep implements Recorder.
func (f RecorderFunc) RecordStep(ctx context.Context, step string, elapsed time.Duration, err error) {
	f(ctx, step, elapsed, err)
}

// BuildOptions tunes how a plan becomes loader steps.
type BuildOptions struct {
	// Weights replaces declared weights by step name. Non-positive or
	// non-finite entries are ignored.
	Weights map[string]float64

	// Recorder, when set, is told about each step as it finishes.
	Recorder Recorder

	// BaseDir resolves relative paths. Defaults to the plan file's
	// directory, or the working directory for builtin plans.
	BaseDir string
}

// Build turns a plan into executable steps, in plan order.
func Build(p *Plan, opts BuildOptions) ([]*loader.Step[string], error) {
	if p == nil {
		return nil, appErrors.New(appErrors.CodeInvalidArgument, "plan is required", nil)
	}

	base := opts.BaseDir
	if base == "" && p.Source != "" && p.Source != SourceBuiltin {
		base = filepath.Dir(p.Source)
	}

	steps := make([]*loader.Step[string], 0, len(p.Steps))
	for _, ps := range p.Steps {
		weight := ps.Weight
		if w, ok := opts.Weights[ps.Name]; ok && w > 0 && !math.IsInf(w, 1) {
			weight = w
		}

		step, err := buildStep(ps, weight, base, opts.Recorder)
		if err != nil {
			return nil, appErrors.New(appErrors.CodePlanInvalid, fmt.Sprintf("plan %s step %q", p.Name, ps.Name), err)
		}
		steps = append(steps, step)
	}
	return steps, nil
}

func buildStep(ps Step, weight float64, base string, rec Recorder) (*loader.Step[string], error) {
	switch ps.Kind {
	case StepKindPause:
		return loader.NewActionStep(weight, ps.Status, timedAction(ps.Name, rec, pauseAction(ps.pause)))
	case StepKindCommand:
		return loader.NewActionStep(weight, ps.Status, timedAction(ps.Name, rec, commandAction(ps, resolvePath(base, ps.Dir))))
	case StepKindFiles:
		fs := resource.NewFileSet(resolvePath(base, ps.Root), ps.Pattern)
		return loader.NewLoadableStep(weight, ps.Status, timedLoadable(ps.Name, rec, fs))
	case StepKindSQLite:
		db := resource.NewSQLiteTables(resolvePath(base, ps.Database))
		return loader.NewLoadableStep(weight, ps.Status, timedLoadable(ps.Name, rec, db))
	default:
		return nil, fmt.Errorf("unknown step kind %q", ps.Kind)
	}
}

func resolvePath(base, path string) string {
	if path == "" || filepath.IsAbs(path) || base == "" {
		return path
	}
	return filepath.Join(base, path)
}

func pauseAction(d time.Duration) loader.Action {
	return func(ctx context.Context) error {
		timer := time.NewTimer(d)
		defer timer.Stop()
		select {
		case <-ctx.Done():
			return ctx.Err()
		case <-timer.C:
			return nil
		}
	}
}

func commandAction(ps Step, dir string) loader.Action {
	argv := append([]string(nil), ps.Command...)
	return func(ctx context.Context) error {
		cmd := exec.CommandContext(ctx, argv[0], argv[1:]...)
		cmd.Dir = dir
		var out bytes.Buffer
		cmd.Stdout = &out
		cmd.Stderr = &out
		if err := cmd.Run(); err != nil {
			msg := fmt.Sprintf("command %q failed", strings.Join(argv, " "))
			if tail := lastLine(out.String()); tail != "" {
				msg += ": " + tail
			}
			return appErrors.New(appErrors.CodeStepFailed, msg, err)
		}
		return nil
	}
}

func lastLine(s string) string {
	s = strings.TrimSpace(s)
	if i := strings.LastIndexByte(s, '\n'); i >= 0 {
		s = s[i+1:]
	}
	return strings.TrimSpace(s)
}

func timedAction(name string, rec Recorder, action loader.Action) loader.Action {
	if rec == nil {
		return action
	}
	return func(ctx context.Context) error {
		start := time.Now()
		err := action(ctx)
		rec.RecordStep(ctx, name, time.Since(start), err)
		return err
	}
}

type recordedLoadable struct {
	name  string
	rec   Recorder
	inner loader.Loadable[string]
}

func timedLoadable(name string, rec Recorder, inner loader.Loadable[string]) loader.Loadable[string] {
	if rec == nil {
		return inner
	}
	return &recordedLoadable{name: name, rec: rec, inner: inner}
}

func (l *recordedLoadable) IsLoaded() bool { return l.inner.IsLoaded() }

func (l *recordedLoadable) LoadResources(ctx context.Context, onProgress loader.ProgressFunc[string]) error {
	start := time.Now()
	err := l.inner.LoadResources(ctx, onProgress)
	l.rec.RecordStep(ctx, l.name, time.Since(start), err)
	return err
}
