// Package presenter runs a loading operation behind a presentation object.
//
// The presentation object is attached to a Host for exactly the duration of
// the operation. Progress reaches it only if it implements StateUpdater;
// otherwise reports are dropped. Detach runs on every exit path, after any
// error hook has finished, so the object can still show the failure.
package presenter

import (
	"context"
	"time"

	"loadseq/internal/loader"
	"loadseq/internal/logging"

	"github.com/rs/zerolog"
)

// Host owns the set of live presentation objects. Both calls are expected
// to be synchronous and to never fail.
type Host interface {
	Attach(presentation any)
	Detach(presentation any)
}

// StateUpdater is the optional capability a presentation object implements
// to receive progress.
type StateUpdater[S any] interface {
	UpdateLoadingState(progress float64, status S)
}

// Operation is the work shown behind the presentation object. report is nil
// when the object cannot display progress; use report.Report to stay safe.
type Operation[S any] func(ctx context.Context, report loader.ProgressFunc[S]) error

// Hooks are optional callbacks around an operation.
type Hooks struct {
	// OnComplete runs after a successful operation, still attached. Its
	// error is handled exactly like an operation error.
	OnComplete func(ctx context.Context) error

	// OnError receives the operation or OnComplete error while the object is
	// still attached. Returning nil marks the error as handled and Execute
	// returns nil. Without OnError the error is returned after detach.
	OnError func(ctx context.Context, err error) error
}

// Adapter wires operations to presentation objects on a host.
type Adapter[S any] struct {
	host   Host
	logger zerolog.Logger
}

// Option configures an Adapter.
type Option func(*options)

type options struct {
	logger *zerolog.Logger
}

// WithLogger overrides the component logger.
func WithLogger(logger zerolog.Logger) Option {
	return func(o *options) {
		o.logger = &logger
	}
}

// New creates an Adapter bound to host.
func New[S any](host Host, opts ...Option) *Adapter[S] {
	o := options{}
	for _, opt := range opts {
		opt(&o)
	}
	logger := logging.Component("presenter")
	if o.logger != nil {
		logger = *o.logger
	}
	return &Adapter[S]{host: host, logger: logger}
}

// Execute attaches presentation, runs op (then OnComplete), routes errors to
// OnError, and always detaches presentation before returning.
func (a *Adapter[S]) Execute(ctx context.Context, presentation any, op Operation[S], hooks Hooks) error {
	started := time.Now()
	a.host.Attach(presentation)
	defer func() {
		a.host.Detach(presentation)
		a.logger.Debug().Dur("elapsed", time.Since(started)).Msg("presentation detached")
	}()

	err := a.run(ctx, presentation, op, hooks.OnComplete)
	if err == nil {
		return nil
	}
	if hooks.OnError == nil {
		a.logger.Debug().Err(err).Msg("operation failed, no error hook")
		return err
	}
	a.logger.Debug().Err(err).Msg("operation failed, running error hook")
	return hooks.OnError(ctx, err)
}

// ExecuteSteps is Execute with loader.ExecuteSteps over steps as the operation.
func (a *Adapter[S]) ExecuteSteps(ctx context.Context, presentation any, steps []*loader.Step[S], hooks Hooks) error {
	a.logger.Debug().Int("steps", len(steps)).Float64("total_weight", loader.TotalWeight(steps)).Msg("executing steps")
	return a.Execute(ctx, presentation, func(ctx context.Context, report loader.ProgressFunc[S]) error {
		return loader.ExecuteSteps(ctx, steps, report)
	}, hooks)
}

func (a *Adapter[S]) run(ctx context.Context, presentation any, op Operation[S], onComplete func(context.Context) error) error {
	if err := op(ctx, progressFor[S](presentation)); err != nil {
		return err
	}
	if onComplete != nil {
		return onComplete(ctx)
	}
	return nil
}

// progressFor resolves the update capability once per run.
func progressFor[S any](presentation any) loader.ProgressFunc[S] {
	updater, ok := presentation.(StateUpdater[S])
	if !ok {
		return nil
	}
	return updater.UpdateLoadingState
}
