package sampling

import (
	"runtime"

	"go.uber.org/multierr"
	"golang.org/x/sync/errgroup"
)

// forEach runs fn for every index in [0, n) with at most workers calls in
// flight and returns all errors combined. fn calls must write to disjoint
// memory.
func forEach(workers, n int, fn func(k int) error) error {
	if workers <= 0 {
		workers = runtime.GOMAXPROCS(0)
	}
	errs := make([]error, n)

	var g errgroup.Group
	g.SetLimit(workers)
	for k := range n {
		g.Go(func() error {
			errs[k] = fn(k)
			return nil
		})
	}
	_ = g.Wait()

	return multierr.Combine(errs...)
}
