package dispatcher

import (
	"context"
	"errors"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestRunSequentialPreservesOrder(t *testing.T) {
	t.Parallel()

	var seen []int
	err := Run(context.Background(), []int{1, 2, 3, 4}, 1, func(_ context.Context, item int) error {
		seen = append(seen, item)
		return nil
	})
	require.NoError(t, err)
	assert.Equal(t, []int{1, 2, 3, 4}, seen)
}

func TestRunConcurrentVisitsEveryItem(t *testing.T) {
	t.Parallel()

	var (
		mu      sync.Mutex
		seen    = map[int]bool{}
		active  atomic.Int32
		maxSeen atomic.Int32
	)
	items := make([]int, 20)
	for i := range items {
		items[i] = i
	}
	err := Run(context.Background(), items, 3, func(_ context.Context, item int) error {
		n := active.Add(1)
		defer active.Add(-1)
		for {
			cur := maxSeen.Load()
			if n <= cur || maxSeen.CompareAndSwap(cur, n) {
				break
			}
		}
		time.Sleep(2 * time.Millisecond)
		mu.Lock()
		seen[item] = true
		mu.Unlock()
		return nil
	})
	require.NoError(t, err)
	assert.Len(t, seen, 20)
	assert.LessOrEqual(t, maxSeen.Load(), int32(3))
}

func TestRunStopsOnFatalError(t *testing.T) {
	t.Parallel()

	boom := errors.New("persistence down")
	for _, workers := range []int{1, 4} {
		var calls atomic.Int32
		items := make([]int, 50)
		err := Run(context.Background(), items, workers, func(ctx context.Context, _ int) error {
			if calls.Add(1) == 2 {
				return boom
			}
			select {
			case <-ctx.Done():
			case <-time.After(time.Millisecond):
			}
			return nil
		})
		require.ErrorIs(t, err, boom)
		assert.Less(t, calls.Load(), int32(50), "workers=%d", workers)
	}
}

func TestRunHonorsCanceledContext(t *testing.T) {
	t.Parallel()

	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	var calls atomic.Int32
	for _, workers := range []int{1, 3} {
		err := Run(ctx, []int{1, 2, 3}, workers, func(context.Context, int) error {
			calls.Add(1)
			return nil
		})
		require.Error(t, err)
		assert.True(t, IsCanceled(err))
	}
	assert.Zero(t, calls.Load())
}

func TestRunEmpty(t *testing.T) {
	t.Parallel()

	require.NoError(t, Run(context.Background(), []string(nil), 4, func(context.Context, string) error {
		t.Fatal("handler must not run")
		return nil
	}))
}
