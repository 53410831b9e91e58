// Package dispatch runs a batch of independent queries on a bounded pool.
package dispatch

import (
	"context"
	"errors"

	"golang.org/x/sync/errgroup"
)

const DefaultWorkers = 4

// Outcome is the settled result of one item. Skipped is set for items that
// never started because the batch was cancelled.
type Outcome[R any] struct {
	Index   int
	Value   R
	Err     error
	Skipped bool
}

// Run calls fn for every item with at most workers in flight. Item errors
// never cancel the batch; only ctx does. Outcomes keep the input order, and
// cancelled reports whether ctx ended before every item settled.
func Run[T, R any](ctx context.Context, workers int, items []T, fn func(context.Context, T) (R, error)) (outcomes []Outcome[R], cancelled bool) {
	if workers <= 0 {
		workers = DefaultWorkers
	}
	outcomes = make([]Outcome[R], len(items))
	for i := range outcomes {
		outcomes[i] = Outcome[R]{Index: i, Skipped: true}
	}

	g := new(errgroup.Group)
	g.SetLimit(workers)
	for i, item := range items {
		if ctx.Err() != nil {
			break
		}
		i, item := i, item
		g.Go(func() error {
			if ctx.Err() != nil {
				return nil
			}
			v, err := fn(ctx, item)
			outcomes[i] = Outcome[R]{Index: i, Value: v, Err: err}
			return nil
		})
	}
	_ = g.Wait()

	if ctx.Err() != nil {
		for _, o := range outcomes {
			if o.Skipped || errors.Is(o.Err, ctx.Err()) {
				return outcomes, true
			}
		}
	}
	return outcomes, false
}
