package imagepkg

import (
	"context"
	"fmt"
	"image"
	"log/slog"
	"runtime"
	"time"

	"github.com/disintegration/imaging"

	"github.com/youruser/traitpreview/internal/logging"
)

// Result is an encoded preview.
type Result struct {
	Bytes       []byte
	ContentType string
	// Frames is 1 for still output.
	Frames int
	// Fallback is set when the animated composite could not be built and a
	// single animated layer was served instead.
	Fallback bool
}

type Options struct {
	Size         int
	WebPQuality  int
	WebPLossless bool
	FrameDelay   time.Duration
	Workers      int
	Limits       Limits
}

func DefaultOptions() Options {
	return Options{
		Size:        1080,
		WebPQuality: 80,
		FrameDelay:  100 * time.Millisecond,
		Workers:     runtime.GOMAXPROCS(0),
		Limits:      DefaultLimits(),
	}
}

// Compositor renders ordered layers into one preview. It holds no
// per-request state and is safe for concurrent use.
type Compositor struct {
	opts Options
	log  *slog.Logger
}

func NewCompositor(opts Options, log *slog.Logger) *Compositor {
	if opts.Size <= 0 {
		opts.Size = 1080
	}
	if opts.Workers <= 0 {
		opts.Workers = 1
	}
	if opts.FrameDelay <= 0 {
		opts.FrameDelay = 100 * time.Millisecond
	}
	if log == nil {
		log = logging.Discard()
	}
	return &Compositor{opts: opts, log: log}
}

func (c *Compositor) Options() Options { return c.opts }

// Compose picks the branch from the first layer's format: GIF goes through
// animation analysis, raster and vector go straight to the still path.
func (c *Compositor) Compose(ctx context.Context, layers []RawLayer) (*Result, error) {
	if len(layers) == 0 {
		return nil, ErrNoLayers
	}
	switch layers[0].Format {
	case FormatGIF:
		return c.ComposeGIF(ctx, layers)
	case FormatStaticRaster, FormatVector:
		return c.ComposeStatic(ctx, layers)
	}
	return nil, fmt.Errorf("%w: first layer", ErrUnsupportedFormat)
}

// ComposeStatic fits every layer to the canonical square and stacks them,
// layer 0 on top. Output is WebP unless every layer was a GIF.
func (c *Compositor) ComposeStatic(ctx context.Context, layers []RawLayer) (*Result, error) {
	if len(layers) == 0 {
		return nil, ErrNoLayers
	}
	imgs := make([]*image.NRGBA, len(layers))
	allGIF := true
	for i, l := range layers {
		if err := ctx.Err(); err != nil {
			return nil, err
		}
		img, err := decodeStill(l, c.opts.Size, c.opts.Limits.MaxSourcePixels)
		if err != nil {
			return nil, fmt.Errorf("layer %d: %w", i, err)
		}
		imgs[i] = img
		allGIF = allGIF && l.Format == FormatGIF
	}

	out := Composite(imgs)
	if allGIF {
		b, err := encodeStillGIF(out)
		if err != nil {
			return nil, err
		}
		return &Result{Bytes: b, ContentType: ContentTypeGIF, Frames: 1}, nil
	}
	b, err := encodeWebP(out, c.opts.WebPQuality, c.opts.WebPLossless)
	if err != nil {
		return nil, err
	}
	return &Result{Bytes: b, ContentType: ContentTypeWebP, Frames: 1}, nil
}

// Composite alpha-blends same-sized layers: the last one is the base and
// earlier ones go over it, so index 0 ends up topmost. layers is not
// modified.
func Composite(layers []*image.NRGBA) *image.NRGBA {
	n := len(layers)
	if n == 0 {
		return nil
	}
	out := imaging.Clone(layers[n-1])
	for i := n - 2; i >= 0; i-- {
		out = imaging.Overlay(out, layers[i], image.Pt(0, 0), 1.0)
	}
	return out
}
