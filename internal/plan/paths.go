package plan

import (
	"fmt"
	"os"
	"path/filepath"
	"strings"

	appErrors "loadseq/internal/errors"
)

// SearchPaths returns plan directories in precedence order: the project
// directory, the user directory, then an extra configured directory.
func SearchPaths(projectDir, extraDir string) []string {
	paths := make([]string, 0, 3)
	if projectDir != "" {
		paths = append(paths, filepath.Join(projectDir, ".loadseq", "plans"))
	}
	if home, err := os.UserHomeDir(); err == nil && home != "" {
		paths = append(paths, filepath.Join(home, ".loadseq", "plans"))
	}
	if strings.TrimSpace(extraDir) != "" {
		paths = append(paths, extraDir)
	}
	return paths
}

// LoadAll loads plans from the search paths and the builtins with
// first-hit precedence by name.
func LoadAll(projectDir, extraDir string) ([]*Plan, error) {
	seen := make(map[string]*Plan)
	order := make([]string, 0)
	add := func(plans []*Plan) {
		for _, p := range plans {
			if _, exists := seen[p.Name]; exists {
				continue
			}
			seen[p.Name] = p
			order = append(order, p.Name)
		}
	}

	for _, path := range SearchPaths(projectDir, extraDir) {
		plans, err := LoadPlansFromDir(path)
		if err != nil {
			return nil, err
		}
		add(plans)
	}

	builtins, err := LoadBuiltinPlans()
	if err != nil {
		return nil, err
	}
	add(builtins)

	resolved := make([]*Plan, 0, len(order))
	for _, name := range order {
		resolved = append(resolved, seen[name])
	}
	return resolved, nil
}

// Find resolves a plan by name, or loads it directly when ref points at a
// YAML file.
func Find(ref, projectDir, extraDir string) (*Plan, error) {
	ref = strings.TrimSpace(ref)
	if ref == "" {
		return nil, appErrors.New(appErrors.CodeInvalidArgument, "plan name is required", nil)
	}

	ext := strings.ToLower(filepath.Ext(ref))
	if ext == ".yaml" || ext == ".yml" {
		return LoadPlan(ref)
	}

	plans, err := LoadAll(projectDir, extraDir)
	if err != nil {
		return nil, err
	}
	for _, p := range plans {
		if p.Name == ref {
			return p, nil
		}
	}
	return nil, appErrors.New(appErrors.CodePlanNotFound, fmt.Sprintf("plan %q not found", ref), nil)
}
