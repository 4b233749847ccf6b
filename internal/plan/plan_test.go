package plan

import (
	"context"
	"errors"
	"os"
	"path/filepath"
	"runtime"
	"strings"
	"sync"
	"testing"
	"time"

	appErrors "loadseq/internal/errors"
	"loadseq/internal/loader"
)

func writePlan(t *testing.T, dir, file, body string) string {
	t.Helper()
	if err := os.MkdirAll(dir, 0o755); err != nil {
		t.Fatalf("mkdir: %v", err)
	}
	path := filepath.Join(dir, file)
	if err := os.WriteFile(path, []byte(body), 0o644); err != nil {
		t.Fatalf("write plan: %v", err)
	}
	return path
}

func TestLoadPlan(t *testing.T) {
	dir := t.TempDir()
	path := writePlan(t, dir, "boot.yaml", `name: boot
description: "  Boot sequence  "
steps:
  - name: wait
    kind: PAUSE
    duration: 10ms
  - name: scan
    status: Scanning
    kind: files
    pattern: "**/*.txt"
    weight: 2.5
  - name: db
    kind: sqlite
    database: data.db
  - name: echo
    kind: command
    command: ["echo", "hi"]
`)

	p, err := LoadPlan(path)
	if err != nil {
		t.Fatalf("LoadPlan: %v", err)
	}
	if p.Name != "boot" || p.Description != "Boot sequence" {
		t.Fatalf("unexpected header: %q %q", p.Name, p.Description)
	}
	if p.Source != path {
		t.Fatalf("expected source %q, got %q", path, p.Source)
	}
	if got := p.Steps[0]; got.Kind != StepKindPause || got.Status != "wait" || got.Weight != 1 || got.PauseDuration() != 10*time.Millisecond {
		t.Fatalf("unexpected pause step: %+v", got)
	}
	if got := p.Steps[1]; got.Status != "Scanning" || got.Weight != 2.5 || got.Root != "." {
		t.Fatalf("unexpected files step: %+v", got)
	}
}

func TestLoadPlanValidation(t *testing.T) {
	cases := map[string]string{
		"missing name":   "steps:\n  - {name: a, kind: pause, duration: 1s}\n",
		"no steps":       "name: x\n",
		"negative":       "name: x\nsteps:\n  - {name: a, kind: pause, duration: 1s, weight: -1}\n",
		"duplicate":      "name: x\nsteps:\n  - {name: a, kind: pause, duration: 1s}\n  - {name: a, kind: pause, duration: 1s}\n",
		"unknown kind":   "name: x\nsteps:\n  - {name: a, kind: teleport}\n",
		"bad duration":   "name: x\nsteps:\n  - {name: a, kind: pause, duration: soon}\n",
		"zero duration":  "name: x\nsteps:\n  - {name: a, kind: pause, duration: 0s}\n",
		"no command":     "name: x\nsteps:\n  - {name: a, kind: command}\n",
		"no pattern":     "name: x\nsteps:\n  - {name: a, kind: files}\n",
		"no database":    "name: x\nsteps:\n  - {name: a, kind: sqlite}\n",
		"step name":      "name: x\nsteps:\n  - {kind: pause, duration: 1s}\n",
		"malformed yaml": "name: [x\n",
	}
	for name, body := range cases {
		t.Run(name, func(t *testing.T) {
			path := writePlan(t, t.TempDir(), "p.yaml", body)
			_, err := LoadPlan(path)
			if err == nil {
				t.Fatal("expected error")
			}
			if !appErrors.IsCode(err, appErrors.CodePlanInvalid) {
				t.Fatalf("expected plan_invalid, got %v", err)
			}
		})
	}
}

func TestLoadPlanMissing(t *testing.T) {
	_, err := LoadPlan(filepath.Join(t.TempDir(), "missing.yaml"))
	if !appErrors.IsCode(err, appErrors.CodePlanNotFound) {
		t.Fatalf("expected plan_not_found, got %v", err)
	}
}

func TestLoadBuiltinPlans(t *testing.T) {
	plans, err := LoadBuiltinPlans()
	if err != nil {
		t.Fatalf("LoadBuiltinPlans: %v", err)
	}
	names := make([]string, 0, len(plans))
	for _, p := range plans {
		if p.Source != SourceBuiltin {
			t.Fatalf("expected builtin source, got %q", p.Source)
		}
		names = append(names, p.Name)
	}
	if strings.Join(names, ",") != "demo,scan" {
		t.Fatalf("unexpected builtins: %v", names)
	}
}

func TestLoadAllPrecedence(t *testing.T) {
	t.Setenv("HOME", t.TempDir())
	project := t.TempDir()
	extra := t.TempDir()

	writePlan(t, filepath.Join(project, ".loadseq", "plans"), "demo.yaml",
		"name: demo\nsteps:\n  - {name: a, kind: pause, duration: 1ms}\n")
	writePlan(t, extra, "demo.yml",
		"name: demo\ndescription: shadowed\nsteps:\n  - {name: a, kind: pause, duration: 1ms}\n")
	writePlan(t, extra, "extra.yaml",
		"name: extra\nsteps:\n  - {name: a, kind: pause, duration: 1ms}\n")
	writePlan(t, extra, "notes.txt", "ignored")

	plans, err := LoadAll(project, extra)
	if err != nil {
		t.Fatalf("LoadAll: %v", err)
	}
	byName := map[string]*Plan{}
	for _, p := range plans {
		byName[p.Name] = p
	}
	if got := byName["demo"].Source; !strings.HasPrefix(got, project) {
		t.Fatalf("expected project demo to win, got %q", got)
	}
	if byName["extra"] == nil || byName["scan"] == nil {
		t.Fatalf("expected extra and builtin scan, got %v", byName)
	}
}

func TestFind(t *testing.T) {
	t.Setenv("HOME", t.TempDir())
	p, err := Find("scan", "", "")
	if err != nil {
		t.Fatalf("Find: %v", err)
	}
	if p.Name != "scan" {
		t.Fatalf("expected scan, got %q", p.Name)
	}

	_, err = Find("nope", "", "")
	if !appErrors.IsCode(err, appErrors.CodePlanNotFound) {
		t.Fatalf("expected plan_not_found, got %v", err)
	}

	path := writePlan(t, t.TempDir(), "direct.yaml", "name: direct\nsteps:\n  - {name: a, kind: pause, duration: 1ms}\n")
	p, err = Find(path, "", "")
	if err != nil || p.Name != "direct" {
		t.Fatalf("expected direct plan, got %v %v", p, err)
	}
}

type stepRecord struct {
	name string
	err  error
}

type fakeRecorder struct {
	mu      sync.Mutex
	records []stepRecord
}

func (r *fakeRecorder) RecordStep(_ context.Context, step string, elapsed time.Duration, err error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.records = append(r.records, stepRecord{name: step, err: err})
}

func TestBuildRunsPlanWithRecorder(t *testing.T) {
	dir := t.TempDir()
	writePlan(t, filepath.Join(dir, "data"), "a.txt", "hello")
	path := writePlan(t, dir, "plan.yaml", `name: build
steps:
  - name: pause
    kind: pause
    duration: 1ms
  - name: files
    kind: files
    root: data
    pattern: "*.txt"
    weight: 3
`)
	p, err := LoadPlan(path)
	if err != nil {
		t.Fatalf("LoadPlan: %v", err)
	}

	rec := &fakeRecorder{}
	steps, err := Build(p, BuildOptions{Recorder: rec, Weights: map[string]float64{"pause": 2, "files": -5}})
	if err != nil {
		t.Fatalf("Build: %v", err)
	}
	if len(steps) != 2 {
		t.Fatalf("expected 2 steps, got %d", len(steps))
	}
	if steps[0].Weight() != 2 || steps[1].Weight() != 3 {
		t.Fatalf("unexpected weights %v %v", steps[0].Weight(), steps[1].Weight())
	}
	if steps[0].Kind() != loader.KindAction || steps[1].Kind() != loader.KindLoadable {
		t.Fatalf("unexpected kinds")
	}

	var last float64
	err = loader.ExecuteSteps(context.Background(), steps, func(fraction float64, _ string) {
		last = fraction
	})
	if err != nil {
		t.Fatalf("ExecuteSteps: %v", err)
	}
	if last != 1 {
		t.Fatalf("expected final progress 1, got %v", last)
	}
	if len(rec.records) != 2 || rec.records[0].name != "pause" || rec.records[1].name != "files" {
		t.Fatalf("unexpected records %+v", rec.records)
	}
}

func TestBuildCommandFailure(t *testing.T) {
	if runtime.GOOS == "windows" {
		t.Skip("requires sh")
	}
	p := &Plan{Name: "cmd", Source: SourceBuiltin, Steps: []Step{{
		Name:    "fail",
		Status:  "failing",
		Weight:  1,
		Kind:    StepKindCommand,
		Command: []string{"sh", "-c", "echo first; echo broken pipe >&2; exit 3"},
	}}}

	rec := &fakeRecorder{}
	steps, err := Build(p, BuildOptions{Recorder: rec})
	if err != nil {
		t.Fatalf("Build: %v", err)
	}
	err = steps[0].Execute(context.Background(), nil)
	if !appErrors.IsCode(err, appErrors.CodeStepFailed) {
		t.Fatalf("expected step_failed, got %v", err)
	}
	if !strings.Contains(err.Error(), "broken pipe") {
		t.Fatalf("expected output tail in error, got %q", err.Error())
	}
	var exitErr interface{ ExitCode() int }
	if !errors.As(err, &exitErr) || exitErr.ExitCode() != 3 {
		t.Fatalf("expected exit code 3 in chain, got %v", err)
	}
	if len(rec.records) != 1 || rec.records[0].err == nil {
		t.Fatalf("expected failed record, got %+v", rec.records)
	}
}

func TestPauseHonorsCancellation(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	if err := pauseAction(time.Hour)(ctx); !errors.Is(err, context.Canceled) {
		t.Fatalf("expected context.Canceled, got %v", err)
	}
}

func TestBuildNilPlan(t *testing.T) {
	if _, err := Build(nil, BuildOptions{}); !appErrors.IsCode(err, appErrors.CodeInvalidArgument) {
		t.Fatalf("expected invalid_argument, got %v", err)
	}
}

func TestMarkdown(t *testing.T) {
	p := &Plan{Name: "demo", Description: "Demo plan", Source: SourceBuiltin, Steps: []Step{
		{Name: "a", Kind: StepKindPause, Duration: "1s", Weight: 1},
		{Name: "b", Kind: StepKindCommand, Command: []string{"echo", "a|b"}, Weight: 3},
	}}
	md := p.Markdown()
	for _, want := range []string{"# demo", "Demo plan", "| 1 | a | pause | 1 | 25% | 1s |", "75%", `a\|b`} {
		if !strings.Contains(md, want) {
			t.Fatalf("expected %q in markdown:\n%s", want, md)
		}
	}
}
