// Package workerpool provides the bounded worker pool that every detection
// phase fans out on.
package workerpool

import (
	"context"
	"log/slog"
	"sync/atomic"
	"time"

	"golang.org/x/sync/errgroup"

	"github.com/gnana997/tsunused/pkg/util"
)

// Pool is an explicit worker-pool handle. It holds no goroutines between
// calls: each Map spawns at most Size() workers and waits for them.
//
// **Usage:**
//
//	pool := workerpool.New(cfg.Workers, logger)
//
//	defs, err := workerpool.Map(ctx, pool, files, func(ctx context.Context, f string) ([]Def, error) {
//	    return extract(f)
//	})
//
// The same handle is passed to the enumerator, both extractors and the
// resolver, so --jobs bounds the whole run.
type Pool struct {
	size   int
	logger *slog.Logger

	tasksSubmitted atomic.Int64
	tasksCompleted atomic.Int64
	tasksFailed    atomic.Int64
}

// New creates a pool of the given width. size <= 0 uses the host's
// available parallelism.
func New(size int, logger *slog.Logger) *Pool {
	return &Pool{
		size:   util.GetOptimalPoolSizeWithOverride(size),
		logger: util.LoggerOrDefault(logger),
	}
}

// Size returns the pool width.
func (p *Pool) Size() int {
	return p.size
}

// Stats returns cumulative task counters.
func (p *Pool) Stats() Stats {
	return Stats{
		Workers:        p.size,
		TasksSubmitted: p.tasksSubmitted.Load(),
		TasksCompleted: p.tasksCompleted.Load(),
		TasksFailed:    p.tasksFailed.Load(),
	}
}

// Stats contains worker pool statistics.
type Stats struct {
	Workers        int
	TasksSubmitted int64
	TasksCompleted int64
	TasksFailed    int64
}

// Map applies fn to every item with at most p.Size() calls in flight and
// returns the results in input order.
//
// The first error cancels the context handed to the remaining calls, stops
// scheduling new ones, and is returned once running calls finish. There is
// no partial result: on error the returned slice is nil.
func Map[T, R any](ctx context.Context, p *Pool, items []T, fn func(context.Context, T) (R, error)) ([]R, error) {
	if len(items) == 0 {
		return nil, nil
	}

	start := time.Now()
	results := make([]R, len(items))

	g, gctx := errgroup.WithContext(ctx)
	g.SetLimit(p.size)

	for i, item := range items {
		if gctx.Err() != nil {
			break
		}
		p.tasksSubmitted.Add(1)
		g.Go(func() error {
			if err := gctx.Err(); err != nil {
				return err
			}
			r, err := fn(gctx, item)
			if err != nil {
				p.tasksFailed.Add(1)
				return err
			}
			results[i] = r
			p.tasksCompleted.Add(1)
			return nil
		})
	}

	if err := g.Wait(); err != nil {
		return nil, err
	}

	p.logger.Debug("pool map complete",
		"tasks", len(items),
		"workers", p.size,
		"ms", time.Since(start).Milliseconds())

	return results, nil
}

// FlatMap is Map followed by concatenation of the per-item slices.
func FlatMap[T, R any](ctx context.Context, p *Pool, items []T, fn func(context.Context, T) ([]R, error)) ([]R, error) {
	chunks, err := Map(ctx, p, items, fn)
	if err != nil {
		return nil, err
	}
	return Flatten(chunks), nil
}

// Flatten concatenates chunks in order.
func Flatten[R any](chunks [][]R) []R {
	n := 0
	for _, c := range chunks {
		n += len(c)
	}
	out := make([]R, 0, n)
	for _, c := range chunks {
		out = append(out, c...)
	}
	return out
}
