package build

import (
	"context"

	"golang.org/x/sync/errgroup"
)

// runThrottled calls fn for every item with at most width calls in flight.
// A finished call immediately frees its slot for the next queued item. After
// the first error the remaining queued items are not started. It returns once
// every started call has returned.
func runThrottled[T any](ctx context.Context, width int, items []T, fn func(context.Context, T) error) error {
	g, gctx := errgroup.WithContext(ctx)
	g.SetLimit(max(width, 1))
	for _, item := range items {
		g.Go(func() error {
			if gctx.Err() != nil {
				return nil
			}
			return fn(gctx, item)
		})
	}
	return g.Wait()
}
