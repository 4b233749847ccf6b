package loader

import (
	"context"
	"fmt"
	"math"

	appErrors "loadseq/internal/errors"
)

// Kind identifies which payload a Step carries.
type Kind int

const (
	KindLoadable Kind = iota
	KindAction
)

// String returns the string representation of a Kind.
func (k Kind) String() string {
	switch k {
	case KindLoadable:
		return "loadable"
	case KindAction:
		return "action"
	default:
		return "unknown"
	}
}

// payload is the closed set of things a Step can run.
type payload[S any] interface {
	kind() Kind
	execute(ctx context.Context, status S, onProgress ProgressFunc[S]) error
}

type loadablePayload[S any] struct {
	loadable Loadable[S]
}

func (p loadablePayload[S]) kind() Kind { return KindLoadable }

// The loadable owns both the fractions and the status values it reports.
func (p loadablePayload[S]) execute(ctx context.Context, _ S, onProgress ProgressFunc[S]) error {
	return p.loadable.LoadResources(ctx, onProgress)
}

type actionPayload[S any] struct {
	action Action
}

func (p actionPayload[S]) kind() Kind { return KindAction }

func (p actionPayload[S]) execute(ctx context.Context, status S, onProgress ProgressFunc[S]) error {
	onProgress.Report(0, status)
	if err := p.action(ctx); err != nil {
		return err
	}
	onProgress.Report(1, status)
	return nil
}

// Step is one weighted unit of work in a loading sequence. Steps are
// immutable once constructed.
type Step[S any] struct {
	weight  float64
	status  S
	payload payload[S]
}

// NewLoadableStep creates a step backed by a self-reporting loadable. The
// status is kept for display purposes only; progress reports come from the
// loadable itself.
func NewLoadableStep[S any](weight float64, status S, loadable Loadable[S]) (*Step[S], error) {
	if err := validateWeight(weight); err != nil {
		return nil, err
	}
	if loadable == nil {
		return nil, appErrors.New(appErrors.CodeInvalidArgument, "step loadable is required", nil)
	}
	return &Step[S]{weight: weight, status: status, payload: loadablePayload[S]{loadable: loadable}}, nil
}

// NewActionStep creates a step backed by a plain action. The step reports
// (0, status) before the action runs and (1, status) after it succeeds.
func NewActionStep[S any](weight float64, status S, action Action) (*Step[S], error) {
	if err := validateWeight(weight); err != nil {
		return nil, err
	}
	if action == nil {
		return nil, appErrors.New(appErrors.CodeInvalidArgument, "step action is required", nil)
	}
	return &Step[S]{weight: weight, status: status, payload: actionPayload[S]{action: action}}, nil
}

func validateWeight(weight float64) error {
	if !(weight > 0) || math.IsInf(weight, 1) {
		return appErrors.New(appErrors.CodeInvalidArgument, fmt.Sprintf("step weight must be a positive finite number, got %v", weight), nil)
	}
	return nil
}

// Weight returns the step's relative weight.
func (s *Step[S]) Weight() float64 { return s.weight }

// Status returns the status value the step was declared with.
func (s *Step[S]) Status() S { return s.status }

// Kind reports whether the step wraps a loadable or an action.
func (s *Step[S]) Kind() Kind { return s.payload.kind() }

// Execute runs the step. Errors from the payload are returned unchanged.
func (s *Step[S]) Execute(ctx context.Context, onProgress ProgressFunc[S]) error {
	return s.payload.execute(ctx, s.status, onProgress)
}
