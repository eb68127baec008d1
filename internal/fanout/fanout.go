// Package fanout runs independent operations concurrently and joins them.
//
// Every helper waits for all branches and returns the first error. The
// branch context is cancelled as soon as one branch fails, so the others can
// return early; their results are discarded.
package fanout

import (
	"context"

	"golang.org/x/sync/errgroup"
)

// All calls fn for every item concurrently. Result i belongs to item i.
func All[T, R any](ctx context.Context, items []T, fn func(context.Context, T) (R, error)) ([]R, error) {
	return AllLimit(ctx, 0, items, fn)
}

// AllLimit is All with at most limit calls in flight. A limit <= 0 means
// unbounded.
func AllLimit[T, R any](ctx context.Context, limit int, items []T, fn func(context.Context, T) (R, error)) ([]R, error) {
	results := make([]R, len(items))
	if len(items) == 0 {
		return results, nil
	}

	g, gCtx := errgroup.WithContext(ctx)
	if limit > 0 {
		g.SetLimit(limit)
	}
	for i, item := range items {
		i, item := i, item
		g.Go(func() error {
			r, err := fn(gCtx, item)
			if err != nil {
				return err
			}
			results[i] = r
			return nil
		})
	}
	if err := g.Wait(); err != nil {
		return nil, err
	}
	return results, nil
}

// Join2 runs two differently typed operations concurrently.
func Join2[A, B any](ctx context.Context, fa func(context.Context) (A, error), fb func(context.Context) (B, error)) (A, B, error) {
	var (
		a A
		b B
	)
	g, gCtx := errgroup.WithContext(ctx)
	g.Go(func() (err error) {
		a, err = fa(gCtx)
		return err
	})
	g.Go(func() (err error) {
		b, err = fb(gCtx)
		return err
	})
	if err := g.Wait(); err != nil {
		var (
			za A
			zb B
		)
		return za, zb, err
	}
	return a, b, nil
}

// Join3 runs three differently typed operations concurrently.
func Join3[A, B, C any](ctx context.Context,
	fa func(context.Context) (A, error),
	fb func(context.Context) (B, error),
	fc func(context.Context) (C, error),
) (A, B, C, error) {
	var (
		a A
		b B
		c C
	)
	g, gCtx := errgroup.WithContext(ctx)
	g.Go(func() (err error) {
		a, err = fa(gCtx)
		return err
	})
	g.Go(func() (err error) {
		b, err = fb(gCtx)
		return err
	})
	g.Go(func() (err error) {
		c, err = fc(gCtx)
		return err
	})
	if err := g.Wait(); err != nil {
		var (
			za A
			zb B
			zc C
		)
		return za, zb, zc, err
	}
	return a, b, c, nil
}
