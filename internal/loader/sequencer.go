package loader

import "context"

// Interval is the slice of the overall [0,1] range owned by one step.
type Interval struct {
	Start float64
	End   float64
}

// Scale maps a step-local fraction into the interval.
func (iv Interval) Scale(fraction float64) float64 {
	return iv.Start + (iv.End-iv.Start)*fraction
}

// TotalWeight sums the weights of steps.
func TotalWeight[S any](steps []*Step[S]) float64 {
	total := 0.0
	for _, step := range steps {
		total += step.weight
	}
	return total
}

// Intervals returns the sub-intervals owned by each step, in order. The
// intervals abut and the last one ends at exactly 1. An empty input yields
// no intervals.
func Intervals[S any](steps []*Step[S]) []Interval {
	if len(steps) == 0 {
		return nil
	}
	total := TotalWeight(steps)
	intervals := make([]Interval, len(steps))
	cumulative := 0.0
	for i, step := range steps {
		start := cumulative / total
		cumulative += step.weight
		intervals[i] = Interval{Start: start, End: cumulative / total}
	}
	// The final edge is always exactly 1.
	intervals[len(intervals)-1].End = 1
	return intervals
}

// ExecuteSteps runs steps one at a time in order. Each step's local progress
// is rescaled into its interval before reaching onProgress. The first error
// stops the sequence and is returned unchanged; later steps never run.
func ExecuteSteps[S any](ctx context.Context, steps []*Step[S], onProgress ProgressFunc[S]) error {
	intervals := Intervals(steps)
	for i, step := range steps {
		var stepProgress ProgressFunc[S]
		if onProgress != nil {
			iv := intervals[i]
			stepProgress = func(fraction float64, status S) {
				onProgress(iv.Scale(fraction), status)
			}
		}
		if err := step.Execute(ctx, stepProgress); err != nil {
			return err
		}
	}
	return nil
}
