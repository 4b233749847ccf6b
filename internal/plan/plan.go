// Package plan loads declarative loading plans and turns them into loader
// steps.
package plan

import "time"

// Plan is a named, ordered list of loading steps.
type Plan struct {
	Name        string `yaml:"name"`
	Description string `yaml:"description"`
	Steps       []Step `yaml:"steps"`
	Source      string `yaml:"-"` // file path or "builtin"
}

// Step is a single entry in a plan. Which fields apply depends on Kind.
type Step struct {
	Name   string   `yaml:"name"`
	Status string   `yaml:"status,omitempty"`
	Weight float64  `yaml:"weight,omitempty"`
	Kind   StepKind `yaml:"kind"`

	// pause
	Duration string `yaml:"duration,omitempty"`

	// command
	Command []string `yaml:"command,omitempty"`
	Dir     string   `yaml:"dir,omitempty"`

	// files
	Pattern string `yaml:"pattern,omitempty"`
	Root    string `yaml:"root,omitempty"`

	// sqlite
	Database string `yaml:"database,omitempty"`

	pause time.Duration
}

// StepKind defines what a plan step runs.
type StepKind string

const (
	StepKindPause   StepKind = "pause"
	StepKindCommand StepKind = "command"
	StepKindFiles   StepKind = "files"
	StepKindSQLite  StepKind = "sqlite"
)

// SourceBuiltin marks plans bundled with the binary.
const SourceBuiltin = "builtin"

// PauseDuration returns the parsed duration of a pause step.
func (s Step) PauseDuration() time.Duration {
	return s.pause
}
