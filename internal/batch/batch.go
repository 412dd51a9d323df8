// Package batch maps a function over an ordered list of items using a
// fixed number of workers. Results always come back in input order,
// whatever order the calls complete in.
//
// Map fails fast: the first error cancels the context handed to every
// other call and no further items are started. MapSettled never fails:
// each item yields its own value or error.
package batch

import (
	"context"
	"fmt"
	"sync"
	"sync/atomic"

	"golang.org/x/sync/errgroup"
)

// Func is called once per item with the item's index in the input.
type Func[T, R any] func(ctx context.Context, item T, index int) (R, error)

// Settled is the outcome of one item in MapSettled.
// Err is nil when the item was fulfilled.
type Settled[R any] struct {
	Value R
	Err   error
}

// Fulfilled reports whether the item completed without error.
func (s Settled[R]) Fulfilled() bool {
	return s.Err == nil
}

// Workers returns the number of workers used for n items at the given
// concurrency limit: min(n, max(1, limit)).
func Workers(n, limit int) int {
	if limit < 1 {
		limit = 1
	}
	if limit > n {
		return n
	}
	return limit
}

// cursor hands out each index in [0, n) exactly once across goroutines.
type cursor struct {
	next atomic.Int64
	n    int
}

func (c *cursor) claim() (int, bool) {
	i := int(c.next.Add(1) - 1)
	return i, i < c.n
}

// Map calls fn for every item with at most limit calls in flight and
// returns the results in input order.
//
// If any call fails, Map returns that error and a nil slice. The context
// passed to the remaining in-flight calls is cancelled so they can stop
// early; Map waits for them before returning and discards their results.
// How soon a failure is reported therefore depends on fn honouring ctx: a
// call that ignores cancellation holds Map until it returns.
// Cancelling ctx stops unstarted items and returns ctx's error.
func Map[T, R any](ctx context.Context, items []T, limit int, fn Func[T, R]) ([]R, error) {
	if len(items) == 0 {
		return []R{}, nil
	}

	results := make([]R, len(items))
	cur := &cursor{n: len(items)}
	g, gctx := errgroup.WithContext(ctx)

	for w := 0; w < Workers(len(items), limit); w++ {
		g.Go(func() error {
			for {
				if err := gctx.Err(); err != nil {
					return err
				}
				i, ok := cur.claim()
				if !ok {
					return nil
				}
				r, err := fn(gctx, items[i], i)
				if err != nil {
					return fmt.Errorf("item %d: %w", i, err)
				}
				results[i] = r
			}
		})
	}

	if err := g.Wait(); err != nil {
		return nil, err
	}
	return results, nil
}

// MapSettled calls fn for every item with at most limit calls in flight
// and returns one Settled per item in input order. Failures, including
// panics in fn, are recorded on the item and never stop the batch.
func MapSettled[T, R any](ctx context.Context, items []T, limit int, fn Func[T, R]) []Settled[R] {
	if len(items) == 0 {
		return []Settled[R]{}
	}

	results := make([]Settled[R], len(items))
	cur := &cursor{n: len(items)}

	var wg sync.WaitGroup
	for w := 0; w < Workers(len(items), limit); w++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			for {
				i, ok := cur.claim()
				if !ok {
					return
				}
				results[i] = settle(ctx, fn, items[i], i)
			}
		}()
	}
	wg.Wait()

	return results
}

func settle[T, R any](ctx context.Context, fn Func[T, R], item T, index int) (s Settled[R]) {
	defer func() {
		if p := recover(); p != nil {
			s = Settled[R]{Err: fmt.Errorf("item %d: panic: %v", index, p)}
		}
	}()
	v, err := fn(ctx, item, index)
	if err != nil {
		return Settled[R]{Err: err}
	}
	return Settled[R]{Value: v}
}
