package plan

import (
	"embed"
	"fmt"
	"io/fs"
	"sort"
)

//go:embed builtin/*.yaml
var builtinFS embed.FS

// LoadBuiltinPlans returns the plans bundled with loadseq.
func LoadBuiltinPlans() ([]*Plan, error) {
	entries, err := fs.ReadDir(builtinFS, "builtin")
	if err != nil {
		return nil, fmt.Errorf("read builtin plans: %w", err)
	}

	plans := make([]*Plan, 0, len(entries))
	for _, entry := range entries {
		if entry.IsDir() {
			continue
		}
		data, err := builtinFS.ReadFile("builtin/" + entry.Name())
		if err != nil {
			return nil, fmt.Errorf("read builtin plan %s: %w", entry.Name(), err)
		}
		p, err := parsePlan(data)
		if err != nil {
			return nil, fmt.Errorf("parse builtin plan %s: %w", entry.Name(), err)
		}
		p.Source = SourceBuiltin
		plans = append(plans, p)
	}

	sort.Slice(plans, func(i, j int) bool {
		return plans[i].Name < plans[j].Name
	})

	return plans, nil
}
