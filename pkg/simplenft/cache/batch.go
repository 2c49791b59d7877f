package cache

import (
	"context"
	"fmt"
	"time"

	"golang.org/x/sync/errgroup"
)

// BatchError reports the items of a batch whose producer failed
type BatchError struct {
	Failed map[int]error
	First  int
}

func (e *BatchError) Error() string {
	return fmt.Sprintf("batch: %d item(s) failed, first at index %d: %v", len(e.Failed), e.First, e.Failed[e.First])
}

func (e *BatchError) Unwrap() error {
	return e.Failed[e.First]
}

// BatchProcess resolves every item through GetOrSet with key keyFn(item)
// and returns the results in input order.
//
// A failing item does not stop its siblings. Every item is attempted, and
// successful ones are cached. If any item failed, the partial results are
// returned together with a *BatchError that wraps the error at the lowest
// failing index.
func BatchProcess[I, T any](ctx context.Context, s *Service, items []I, keyFn func(I) string, producer func(context.Context, I) (T, error), ttl time.Duration) ([]T, error) {
	results := make([]T, len(items))
	errs := make([]error, len(items))

	var g errgroup.Group
	g.SetLimit(s.batchConcurrency)
	for i, item := range items {
		g.Go(func() error {
			results[i], errs[i] = GetOrSet(ctx, s, keyFn(item), ttl, func(ctx context.Context) (T, error) {
				return producer(ctx, item)
			}, false)
			return nil
		})
	}
	_ = g.Wait()

	var batchErr *BatchError
	for i, err := range errs {
		if err == nil {
			continue
		}
		if batchErr == nil {
			batchErr = &BatchError{Failed: make(map[int]error), First: i}
		}
		batchErr.Failed[i] = err
	}
	if batchErr != nil {
		s.logger.Warn("batch completed with failures", "items", len(items), "failed", len(batchErr.Failed))
		return results, batchErr
	}
	return results, nil
}
