package join

import (
	"context"

	"golang.org/x/sync/errgroup"
)

// Task is a single unit of work taking part in a join
type Task[R any] func(ctx context.Context) (R, error)

// All launches every task before awaiting any of them and waits for all of them
// to complete. Results are returned in task order. If one or more tasks fail, the
// first failure is returned and every other result is discarded. Tasks that are
// still in flight when a sibling fails are allowed to run to completion.
func All[R any](ctx context.Context, tasks []Task[R]) ([]R, error) {
	if len(tasks) == 0 {
		return []R{}, nil
	}

	results := make([]R, len(tasks))

	var g errgroup.Group

	for idx, task := range tasks {
		g.Go(func() error {
			r, err := task(ctx)
			if err != nil {
				return err
			}
			results[idx] = r
			return nil
		})
	}

	if err := g.Wait(); err != nil {
		return nil, err
	}

	return results, nil
}
