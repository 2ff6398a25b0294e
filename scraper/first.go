package scraper

import (
	"context"
	"errors"
	"fmt"
)

// ErrExhausted is returned by FirstSuccess when no step produced output.
var ErrExhausted = errors.New("all steps exhausted")

type stopError struct{ err error }

func (e stopError) Error() string { return e.err.Error() }
func (e stopError) Unwrap() error { return e.err }

// Stop marks a step error as final: FirstSuccess returns it without trying
// the remaining steps.
func Stop(err error) error {
	if err == nil {
		return nil
	}
	return stopError{err: err}
}

// FirstSuccess runs try over steps in order and returns the output of the
// first step that yields at least one item, with that step's index. Later
// steps are never invoked once one succeeds. When every step fails the
// returned error joins ErrExhausted with each step's error.
func FirstSuccess[In, Out any](ctx context.Context, steps []In, try func(context.Context, In) ([]Out, error)) ([]Out, int, error) {
	errs := []error{ErrExhausted}
	for i, step := range steps {
		if err := ctx.Err(); err != nil {
			errs = append(errs, err)
			break
		}

		out, err := try(ctx, step)
		if err == nil && len(out) > 0 {
			return out, i, nil
		}

		var stop stopError
		if errors.As(err, &stop) {
			return nil, i, stop.err
		}
		if err == nil {
			err = fmt.Errorf("step %d: empty result", i)
		}
		errs = append(errs, err)
	}
	return nil, -1, errors.Join(errs...)
}
