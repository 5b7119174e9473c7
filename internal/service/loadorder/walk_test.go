package loadorder

import (
	"context"
	"errors"
	"sync"
	"sync/atomic"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"edfi-dms/internal/domain"
)

func TestForEachGroup_Order(t *testing.T) {
	orders := []domain.LoadOrder{
		order("/ed-fi/c", 3),
		order("/ed-fi/a", 1),
		order("/ed-fi/b1", 2),
		order("/ed-fi/b2", 2),
	}

	var mu sync.Mutex
	seen := make(map[string]int)
	maxGroup := 0
	err := ForEachGroup(context.Background(), orders, 4, func(_ context.Context, lo domain.LoadOrder) error {
		mu.Lock()
		defer mu.Unlock()
		if lo.Group < maxGroup {
			return errors.New("group regressed")
		}
		maxGroup = lo.Group
		seen[lo.ResourcePath] = lo.Group
		return nil
	})
	require.NoError(t, err)
	assert.Len(t, seen, 4)
}

func TestForEachGroup_ConcurrencyBound(t *testing.T) {
	var orders []domain.LoadOrder
	for i := 0; i < 20; i++ {
		orders = append(orders, order("/ed-fi/r", 1))
	}

	var running, peak atomic.Int32
	err := ForEachGroup(context.Background(), orders, 3, func(context.Context, domain.LoadOrder) error {
		n := running.Add(1)
		for {
			p := peak.Load()
			if n <= p || peak.CompareAndSwap(p, n) {
				break
			}
		}
		running.Add(-1)
		return nil
	})
	require.NoError(t, err)
	assert.LessOrEqual(t, peak.Load(), int32(3))
}

func TestForEachGroup_FailureStopsWalk(t *testing.T) {
	orders := []domain.LoadOrder{
		order("/ed-fi/a", 1),
		order("/ed-fi/b", 2),
	}
	boom := errors.New("boom")

	var calls atomic.Int32
	err := ForEachGroup(context.Background(), orders, 1, func(_ context.Context, lo domain.LoadOrder) error {
		calls.Add(1)
		if lo.Group == 1 {
			return boom
		}
		return nil
	})
	require.ErrorIs(t, err, boom)
	assert.Contains(t, err.Error(), "load order group 1")
	assert.Equal(t, int32(1), calls.Load())
}

func TestForEachGroup_Canceled(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	err := ForEachGroup(ctx, []domain.LoadOrder{order("/ed-fi/a", 1)}, 1, func(context.Context, domain.LoadOrder) error {
		return nil
	})
	assert.ErrorIs(t, err, context.Canceled)
}
