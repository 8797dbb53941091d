package app

import (
	"context"
	"runtime"

	"codeintel/internal/core/errors"

	"golang.org/x/sync/errgroup"
)

// forEachFile runs fn over files on a bounded worker pool. fn writes its
// result into slot i, so the caller reads results back in file order. fn
// reports per-file problems through its own slot and returns an error only
// to abort the whole run. Cancellation is checked before each file.
func (a *App) forEachFile(ctx context.Context, files []string, fn func(ctx context.Context, i int, path string) error) error {
	workers := a.Config.Limits.Workers
	if workers <= 0 {
		workers = runtime.NumCPU()
	}
	if workers > len(files) {
		workers = len(files)
	}
	if workers == 0 {
		return nil
	}

	g, gctx := errgroup.WithContext(ctx)
	g.SetLimit(workers)
	for i, path := range files {
		if gctx.Err() != nil {
			break
		}
		if a.limiter != nil {
			if err := a.limiter.Wait(gctx, 1); err != nil {
				break
			}
		}
		g.Go(func() error {
			if err := gctx.Err(); err != nil {
				return err
			}
			return fn(gctx, i, path)
		})
	}
	err := g.Wait()
	if ctx.Err() != nil {
		return errors.Wrap(ctx.Err(), errors.CodeCancelled, "operation cancelled")
	}
	return err
}
