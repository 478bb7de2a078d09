package imagepkg

import (
	"context"
	"fmt"
	"image"
)

// ComposeGIF handles previews whose first layer is a GIF. When no layer is
// animated the result is a still GIF; otherwise the layers are synchronized
// into one animation, degrading to a single animated layer on failure.
func (c *Compositor) ComposeGIF(ctx context.Context, layers []RawLayer) (*Result, error) {
	if len(layers) == 0 {
		return nil, ErrNoLayers
	}
	sets, err := Analyze(layers, c.opts.Limits.MaxSourcePixels)
	if err != nil {
		return nil, err
	}

	if FirstAnimated(sets) < 0 {
		imgs := make([]*image.NRGBA, len(layers))
		for i, l := range layers {
			if imgs[i], err = decodeFirstFrame(l.Bytes, c.opts.Size, c.opts.Limits.MaxSourcePixels); err != nil {
				return nil, fmt.Errorf("layer %d: %w", i, err)
			}
		}
		b, err := encodeStillGIF(Composite(imgs))
		if err != nil {
			return nil, err
		}
		return &Result{Bytes: b, ContentType: ContentTypeGIF, Frames: 1}, nil
	}

	res, err := c.animate(ctx, sets)
	if err == nil {
		return res, nil
	}
	if ctxErr := ctx.Err(); ctxErr != nil {
		return nil, ctxErr
	}
	return c.fallback(ctx, sets, err)
}

// animate runs guard, synchronization, palette and encoding over all sets.
func (c *Compositor) animate(ctx context.Context, sets []*FrameSet) (res *Result, err error) {
	defer func() {
		if r := recover(); r != nil {
			res, err = nil, fmt.Errorf("%w: panic: %v", ErrCompositionFailure, r)
		}
	}()

	size := c.opts.Size
	maxFrames := MaxFrameCount(sets)
	if err := c.opts.Limits.Check(maxFrames, len(sets), size, size); err != nil {
		c.log.Warn("resource guard tripped",
			"frames", maxFrames, "layers", len(sets),
			"estimated_bytes", EstimateMemory(maxFrames, len(sets), size, size),
			"err", err)
		return nil, err
	}
	if err := c.checkDecode(sets); err != nil {
		return nil, err
	}
	return c.encodeSets(ctx, sets, maxFrames)
}

func (c *Compositor) encodeSets(ctx context.Context, sets []*FrameSet, maxFrames int) (*Result, error) {
	for i, fs := range sets {
		if err := fs.Extract(c.opts.Size); err != nil {
			return nil, c.wrapFailure(ctx, fmt.Sprintf("decode layer %d", i), err)
		}
	}
	frames, err := c.composeFrames(ctx, sets, maxFrames)
	if err != nil {
		return nil, c.wrapFailure(ctx, "compose frames", err)
	}
	pal := BuildPalette(frames, MaxPaletteColors)
	indexed, err := c.palettize(ctx, frames, pal)
	if err != nil {
		return nil, c.wrapFailure(ctx, "palettize", err)
	}
	b, err := EncodeAnimation(indexed, pal, c.opts.FrameDelay)
	if err != nil {
		return nil, c.wrapFailure(ctx, "encode", err)
	}
	return &Result{Bytes: b, ContentType: ContentTypeGIF, Frames: maxFrames}, nil
}

// checkDecode guards the largest single layer decode. Layers are decoded one
// at a time, so only the peak matters.
func (c *Compositor) checkDecode(sets []*FrameSet) error {
	var peak int64
	for _, fs := range sets {
		peak = max(peak, fs.DecodeBytes())
	}
	if err := c.opts.Limits.CheckDecode(peak); err != nil {
		c.log.Warn("resource guard tripped", "decode_bytes", peak, "err", err)
		return err
	}
	return nil
}

func (c *Compositor) wrapFailure(ctx context.Context, stage string, err error) error {
	if ctx.Err() != nil {
		return err
	}
	return fmt.Errorf("%w: %s: %v", ErrCompositionFailure, stage, err)
}
