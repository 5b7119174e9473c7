package loadorder

import (
	"context"
	"fmt"
	"sort"

	"github.com/sourcegraph/conc/pool"

	"edfi-dms/internal/domain"
)

// ForEachGroup calls fn for every entry of orders, one group at a time in
// ascending order. Entries of a group run concurrently on at most
// maxConcurrency goroutines. A failing group stops the walk before the next
// group starts.
func ForEachGroup(ctx context.Context, orders []domain.LoadOrder, maxConcurrency int, fn func(context.Context, domain.LoadOrder) error) error {
	if maxConcurrency < 1 {
		maxConcurrency = 1
	}
	byGroup := make(map[int][]domain.LoadOrder)
	for _, o := range orders {
		byGroup[o.Group] = append(byGroup[o.Group], o)
	}
	groups := make([]int, 0, len(byGroup))
	for g := range byGroup {
		groups = append(groups, g)
	}
	sort.Ints(groups)

	for _, g := range groups {
		if err := ctx.Err(); err != nil {
			return err
		}
		p := pool.New().WithMaxGoroutines(maxConcurrency).WithContext(ctx).WithCancelOnError()
		for _, o := range byGroup[g] {
			p.Go(func(ctx context.Context) error {
				return fn(ctx, o)
			})
		}
		if err := p.Wait(); err != nil {
			return fmt.Errorf("load order group %d: %w", g, err)
		}
	}
	return nil
}
