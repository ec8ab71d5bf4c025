// Package dispatcher fans pending items out to a bounded pool of workers.
package dispatcher

import (
	"context"
	"errors"
	"fmt"
	"sync"

	"github.com/JakeFAU/podcast-ingest/internal/metrics"
	"github.com/JakeFAU/podcast-ingest/internal/queue/memory"
)

// Handler processes one item. A returned error is fatal for the whole run;
// handlers isolate recoverable per-item failures themselves.
type Handler[T any] func(ctx context.Context, item T) error

// Run processes items with up to workers goroutines, in input order when
// workers is 1 or less. The first handler error stops the remaining work and
// is returned.
func Run[T any](ctx context.Context, items []T, workers int, handle Handler[T]) error {
	if workers <= 1 || len(items) <= 1 {
		return runSequential(ctx, items, handle)
	}
	if workers > len(items) {
		workers = len(items)
	}

	q := memory.NewQueue[T](len(items))
	for _, item := range items {
		if err := q.Enqueue(ctx, item); err != nil {
			return fmt.Errorf("dispatch: %w", err)
		}
	}
	q.Close()

	runCtx, cancel := context.WithCancel(ctx)
	defer cancel()

	var (
		wg       sync.WaitGroup
		once     sync.Once
		firstErr error
	)
	for i := 0; i < workers; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			for {
				item, err := q.Dequeue(runCtx)
				if err != nil {
					return
				}
				if runCtx.Err() != nil {
					return
				}
				if err := invoke(runCtx, item, handle); err != nil {
					once.Do(func() {
						firstErr = err
						cancel()
					})
					return
				}
			}
		}()
	}
	wg.Wait()

	if firstErr != nil {
		return firstErr
	}
	if err := ctx.Err(); err != nil {
		return fmt.Errorf("dispatch: %w", err)
	}
	return nil
}

func runSequential[T any](ctx context.Context, items []T, handle Handler[T]) error {
	for _, item := range items {
		if err := ctx.Err(); err != nil {
			return fmt.Errorf("dispatch: %w", err)
		}
		if err := invoke(ctx, item, handle); err != nil {
			return err
		}
	}
	return nil
}

func invoke[T any](ctx context.Context, item T, handle Handler[T]) error {
	metrics.IncActiveWorkers()
	defer metrics.DecActiveWorkers()
	return handle(ctx, item)
}

// IsCanceled reports whether err stems from context cancellation.
func IsCanceled(err error) bool {
	return errors.Is(err, context.Canceled) || errors.Is(err, context.DeadlineExceeded)
}
