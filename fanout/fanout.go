// Package fanout runs per-target remote calls in sequential batches under a
// process-wide in-flight limit. Broadcast, edit, delete and reaction updates
// all share one Dispatcher so their combined burst stays bounded.
package fanout

import (
	"context"
	"fmt"
	"time"

	"github.com/sourcegraph/conc"
	"github.com/sourcegraph/conc/panics"
	"golang.org/x/sync/semaphore"

	"hubnet/metrics"
)

// Dispatcher owns the global limiter.
type Dispatcher struct {
	batchSize int
	limit     *semaphore.Weighted
}

// New builds a dispatcher running batches of batchSize with at most
// maxInFlight calls in progress across every Run.
func New(batchSize, maxInFlight int) *Dispatcher {
	if batchSize < 1 {
		batchSize = 1
	}
	if maxInFlight < 1 {
		maxInFlight = 1
	}
	return &Dispatcher{batchSize: batchSize, limit: semaphore.NewWeighted(int64(maxInFlight))}
}

// Run calls fn for indexes 0..n-1 and returns one error slot per index. Batch
// k+1 starts only after every call of batch k returned. A failing or
// panicking call never affects its siblings.
func (d *Dispatcher) Run(ctx context.Context, operation string, n int, fn func(ctx context.Context, i int) error) []error {
	start := time.Now()
	defer func() {
		metrics.FanoutDuration.WithLabelValues(operation).Observe(time.Since(start).Seconds())
	}()

	errs := make([]error, n)
	for lo := 0; lo < n; lo += d.batchSize {
		hi := min(lo+d.batchSize, n)

		var wg conc.WaitGroup
		for i := lo; i < hi; i++ {
			wg.Go(func() {
				errs[i] = d.call(ctx, i, fn)
			})
		}
		wg.Wait()
	}
	for _, err := range errs {
		metrics.ObserveDelivery(operation, err)
	}
	return errs
}

func (d *Dispatcher) call(ctx context.Context, i int, fn func(ctx context.Context, i int) error) (err error) {
	if err := d.limit.Acquire(ctx, 1); err != nil {
		return err
	}
	defer d.limit.Release(1)

	var pc panics.Catcher
	pc.Try(func() { err = fn(ctx, i) })
	if r := pc.Recovered(); r != nil {
		return fmt.Errorf("fan-out call %d: %w", i, r.AsError())
	}
	return err
}
