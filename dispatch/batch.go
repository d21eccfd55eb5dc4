package dispatch

import (
	"context"
	"errors"
	"sync"

	"golang.org/x/sync/errgroup"

	"github.com/utkarsh5026/taskprof/pool"
)

// ExecuteBatch runs tasks concurrently and returns one result per task in
// input order, regardless of completion order.
//
// Tasks are partitioned by lane; partitions and the tasks inside them are
// dispatched concurrently and each lane bounds its own concurrency. A task
// that fails, or fails to resolve, yields a failed result without affecting
// its siblings.
//
// The batch itself fails only when:
//   - two descriptors share an id (*DuplicateTaskError, nothing runs)
//   - the dispatcher is closed
//
// Example:
//
//	results, err := d.ExecuteBatch(ctx, []dispatch.TaskDescriptor{
//	    {ID: "a", Operation: "hash", PoolClass: pool.CPU},
//	    {ID: "b", Operation: "fetch", PoolClass: pool.IO},
//	})
//	// results[0].ID == "a", results[1].ID == "b"
func (d *Dispatcher) ExecuteBatch(ctx context.Context, tasks []TaskDescriptor) ([]TaskResult, error) {
	if len(tasks) == 0 {
		return []TaskResult{}, nil
	}

	seen := make(map[string]struct{}, len(tasks))
	for _, t := range tasks {
		if _, dup := seen[t.ID]; dup {
			return nil, &DuplicateTaskError{ID: t.ID, InBatch: true}
		}
		seen[t.ID] = struct{}{}
	}

	classes, partitions := partition(tasks)

	var mu sync.Mutex
	byID := make(map[string]TaskResult, len(tasks))

	g, gctx := errgroup.WithContext(ctx)
	for _, c := range classes {
		part := partitions[c]
		g.Go(func() error {
			var pg errgroup.Group
			for _, task := range part {
				pg.Go(func() error {
					res, err := d.ExecuteTask(gctx, task)
					if errors.Is(err, ErrDispatcherClosed) {
						return err
					}

					mu.Lock()
					byID[task.ID] = res
					mu.Unlock()
					return nil
				})
			}
			return pg.Wait()
		})
	}
	if err := g.Wait(); err != nil {
		return nil, err
	}

	results := make([]TaskResult, len(tasks))
	for i, t := range tasks {
		results[i] = byID[t.ID]
	}
	return results, nil
}

// partition groups tasks by lane, keeping input order within each group.
// classes lists the lanes in order of first appearance.
func partition(tasks []TaskDescriptor) (classes []pool.Class, parts map[pool.Class][]TaskDescriptor) {
	parts = make(map[pool.Class][]TaskDescriptor)
	for _, t := range tasks {
		if _, ok := parts[t.PoolClass]; !ok {
			classes = append(classes, t.PoolClass)
		}
		parts[t.PoolClass] = append(parts[t.PoolClass], t)
	}
	return classes, parts
}
