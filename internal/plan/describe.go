package plan

import (
	"fmt"
	"strings"
)

// Markdown renders the plan as a markdown document for terminal display.
func (p *Plan) Markdown() string {
	var b strings.Builder
	fmt.Fprintf(&b, "# %s\n\n", p.Name)
	if p.Description != "" {
		b.WriteString(p.Description)
		b.WriteString("\n\n")
	}
	fmt.Fprintf(&b, "Source: `%s`\n\n", p.Source)

	total := 0.0
	for _, s := range p.Steps {
		total += s.Weight
	}

	b.WriteString("| # | Step | Kind | Weight | Share | Detail |\n")
	b.WriteString("|---|------|------|--------|-------|--------|\n")
	for i, s := range p.Steps {
		share := 0.0
		if total > 0 {
			share = s.Weight / total * 100
		}
		fmt.Fprintf(&b, "| %d | %s | %s | %g | %.0f%% | %s |\n",
			i+1, s.Name, s.Kind, s.Weight, share, escapeCell(s.detail()))
	}
	return b.String()
}

func (s Step) detail() string {
	switch s.Kind {
	case StepKindPause:
		return s.Duration
	case StepKindCommand:
		return "`" + strings.Join(s.Command, " ") + "`"
	case StepKindFiles:
		return "`" + s.Pattern + "` in `" + s.Root + "`"
	case StepKindSQLite:
		return "`" + s.Database + "`"
	default:
		return ""
	}
}

func escapeCell(s string) string {
	return strings.ReplaceAll(s, "|", `\|`)
}
