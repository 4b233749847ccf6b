// Package loader runs ordered loading steps and folds each step's local
// progress into a single overall fraction.
//
// A Step wraps either a Loadable, which reports its own progress, or a bare
// Action, which only gets a start and an end report. ExecuteSteps runs steps
// strictly in order and rescales every report into the step's slice of
// [0,1], sized by weight.
package loader

import "context"

// ProgressFunc receives a progress fraction in [0,1] and a caller-defined
// status value. A nil ProgressFunc means nobody is listening.
type ProgressFunc[S any] func(fraction float64, status S)

// Report invokes f if it is non-nil.
func (f ProgressFunc[S]) Report(fraction float64, status S) {
	if f == nil {
		return
	}
	f(fraction, status)
}

// Loadable is a resource that loads itself and reports its own progress.
type Loadable[S any] interface {
	// IsLoaded reports whether the resource finished loading.
	IsLoaded() bool

	// LoadResources loads the resource. onProgress may be nil.
	LoadResources(ctx context.Context, onProgress ProgressFunc[S]) error
}

// Action is a unit of work with no progress reporting of its own.
type Action func(ctx context.Context) error
