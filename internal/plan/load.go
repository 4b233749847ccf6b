package plan

import (
	"fmt"
	"math"
	"os"
	"path/filepath"
	"sort"
	"strings"
	"time"

	"gopkg.in/yaml.v3"

	appErrors "loadseq/internal/errors"
)

const defaultStepWeight = 1.0

// LoadPlan reads a single plan from disk.
func LoadPlan(path string) (*Plan, error) {
	if strings.TrimSpace(path) == "" {
		return nil, appErrors.New(appErrors.CodeInvalidArgument, "plan path is required", nil)
	}

	data, err := os.ReadFile(path)
	if err != nil {
		if os.IsNotExist(err) {
			return nil, appErrors.New(appErrors.CodePlanNotFound, fmt.Sprintf("plan %s not found", path), err)
		}
		return nil, fmt.Errorf("read plan %s: %w", path, err)
	}

	p, err := parsePlan(data)
	if err != nil {
		return nil, appErrors.New(appErrors.CodePlanInvalid, fmt.Sprintf("parse plan %s", path), err)
	}
	p.Source = path
	return p, nil
}

// LoadPlansFromDir loads all plans from a directory. A missing directory
// yields no plans.
func LoadPlansFromDir(dir string) ([]*Plan, error) {
	if strings.TrimSpace(dir) == "" {
		return []*Plan{}, nil
	}

	entries, err := os.ReadDir(dir)
	if err != nil {
		if os.IsNotExist(err) {
			return []*Plan{}, nil
		}
		return nil, fmt.Errorf("read plans dir %s: %w", dir, err)
	}

	plans := make([]*Plan, 0)
	for _, entry := range entries {
		if entry.IsDir() {
			continue
		}
		name := entry.Name()
		ext := strings.ToLower(filepath.Ext(name))
		if ext != ".yaml" && ext != ".yml" {
			continue
		}
		p, err := LoadPlan(filepath.Join(dir, name))
		if err != nil {
			return nil, err
		}
		plans = append(plans, p)
	}

	sort.Slice(plans, func(i, j int) bool {
		return plans[i].Name < plans[j].Name
	})

	return plans, nil
}

func parsePlan(data []byte) (*Plan, error) {
	var p Plan
	if err := yaml.Unmarshal(data, &p); err != nil {
		return nil, err
	}

	p.Name = strings.TrimSpace(p.Name)
	if p.Name == "" {
		return nil, fmt.Errorf("plan name is required")
	}
	p.Description = strings.TrimSpace(p.Description)

	if len(p.Steps) == 0 {
		return nil, fmt.Errorf("plan steps are required")
	}

	seen := make(map[string]struct{}, len(p.Steps))
	for i := range p.Steps {
		step := &p.Steps[i]
		if err := normalizeStep(step); err != nil {
			return nil, fmt.Errorf("plan step %d: %w", i+1, err)
		}
		if _, exists := seen[step.Name]; exists {
			return nil, fmt.Errorf("duplicate step name %q", step.Name)
		}
		seen[step.Name] = struct{}{}
	}

	return &p, nil
}

func normalizeStep(step *Step) error {
	step.Kind = StepKind(strings.ToLower(strings.TrimSpace(string(step.Kind))))
	step.Name = strings.TrimSpace(step.Name)
	step.Status = strings.TrimSpace(step.Status)
	step.Duration = strings.TrimSpace(step.Duration)
	step.Dir = strings.TrimSpace(step.Dir)
	step.Pattern = strings.TrimSpace(step.Pattern)
	step.Root = strings.TrimSpace(step.Root)
	step.Database = strings.TrimSpace(step.Database)

	if step.Name == "" {
		return fmt.Errorf("step name is required")
	}
	if step.Status == "" {
		step.Status = step.Name
	}

	if step.Weight == 0 {
		step.Weight = defaultStepWeight
	}
	if step.Weight < 0 || math.IsNaN(step.Weight) || math.IsInf(step.Weight, 0) {
		return fmt.Errorf("step %q weight must be a positive number", step.Name)
	}

	switch step.Kind {
	case StepKindPause:
		if step.Duration == "" {
			return fmt.Errorf("pause duration is required")
		}
		duration, err := time.ParseDuration(step.Duration)
		if err != nil {
			return fmt.Errorf("invalid pause duration: %w", err)
		}
		if duration <= 0 {
			return fmt.Errorf("pause duration must be greater than 0")
		}
		step.pause = duration

	case StepKindCommand:
		if len(step.Command) == 0 || strings.TrimSpace(step.Command[0]) == "" {
			return fmt.Errorf("command is required")
		}

	case StepKindFiles:
		if step.Pattern == "" {
			return fmt.Errorf("files pattern is required")
		}
		if step.Root == "" {
			step.Root = "."
		}

	case StepKindSQLite:
		if step.Database == "" {
			return fmt.Errorf("sqlite database is required")
		}

	default:
		return fmt.Errorf("unknown step kind %q", step.Kind)
	}

	return nil
}
