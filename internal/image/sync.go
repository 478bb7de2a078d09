package imagepkg

import (
	"context"
	"image"

	"golang.org/x/sync/errgroup"
)

// FrameIndex is the frame a layer with count frames contributes to output
// frame f. Shorter animations loop against the longest one.
func FrameIndex(f, count int) int {
	if count <= 1 {
		return 0
	}
	return f % count
}

// MaxFrameCount is the output length of an animated composite.
func MaxFrameCount(sets []*FrameSet) int {
	n := 0
	for _, fs := range sets {
		n = max(n, fs.FrameCount)
	}
	return n
}

// SyncPlan lists, for each output frame, the frame index taken from each
// layer.
func SyncPlan(counts []int) [][]int {
	n := 0
	for _, c := range counts {
		n = max(n, c)
	}
	plan := make([][]int, n)
	for f := range plan {
		row := make([]int, len(counts))
		for i, c := range counts {
			row[i] = FrameIndex(f, c)
		}
		plan[f] = row
	}
	return plan
}

// composeFrames builds every output frame. Frames are independent, so they
// are spread over the worker pool; out[f] is only written by the worker
// handling f.
func (c *Compositor) composeFrames(ctx context.Context, sets []*FrameSet, maxFrames int) ([]*image.NRGBA, error) {
	out := make([]*image.NRGBA, maxFrames)
	err := forEachIndex(ctx, maxFrames, c.opts.Workers, func(f int) error {
		stack := make([]*image.NRGBA, len(sets))
		for i, fs := range sets {
			stack[i] = fs.Frames[FrameIndex(f, fs.FrameCount)]
		}
		out[f] = Composite(stack)
		return nil
	})
	if err != nil {
		return nil, err
	}
	return out, nil
}

// forEachIndex runs fn for 0..n-1 on at most workers goroutines and returns
// the first error, or the parent's cancellation.
func forEachIndex(parent context.Context, n, workers int, fn func(i int) error) error {
	g, ctx := errgroup.WithContext(parent)
	g.SetLimit(max(1, workers))
	for i := 0; i < n; i++ {
		if ctx.Err() != nil {
			break
		}
		i := i
		g.Go(func() error {
			if err := ctx.Err(); err != nil {
				return err
			}
			return fn(i)
		})
	}
	if err := g.Wait(); err != nil {
		return err
	}
	return parent.Err()
}
