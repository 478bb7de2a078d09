package imagepkg

import (
	"context"
	"fmt"
)

// fallback serves the lowest-index animated layer on its own after the full
// composite failed with cause. It runs once; its own failure is final.
func (c *Compositor) fallback(ctx context.Context, sets []*FrameSet, cause error) (res *Result, err error) {
	defer func() {
		if r := recover(); r != nil {
			res, err = nil, fmt.Errorf("%w: fallback panic: %v", ErrCompositionFailure, r)
		}
	}()

	idx := FirstAnimated(sets)
	if idx < 0 {
		return nil, cause
	}
	fs := sets[idx]
	c.log.Warn("animated composite failed, serving single layer",
		"layer", idx, "frames", fs.FrameCount, "layers", len(sets), "cause", cause)

	// drop everything but the chosen layer before allocating its frames
	for i, other := range sets {
		if i != idx {
			other.release()
		}
	}
	size := c.opts.Size
	if err := c.opts.Limits.Check(fs.FrameCount, 1, size, size); err != nil {
		return nil, fmt.Errorf("fallback layer %d: %w", idx, err)
	}
	if err := c.checkDecode([]*FrameSet{fs}); err != nil {
		return nil, fmt.Errorf("fallback layer %d: %w", idx, err)
	}
	res, err = c.encodeSets(ctx, []*FrameSet{fs}, fs.FrameCount)
	if err != nil {
		return nil, fmt.Errorf("fallback layer %d: %w", idx, err)
	}
	res.Fallback = true
	return res, nil
}
