package imagepkg

import (
	"fmt"
	"image"
	"image/color"
	"image/draw"
	"image/gif"

	"github.com/disintegration/imaging"
)

// FrameSet is one layer's frames. Analyze fills in the counts from the GIF
// block stream; Extract decodes the pixels.
type FrameSet struct {
	Animated   bool
	FrameCount int
	// Frames are coalesced and fitted to the canonical square. Nil until
	// Extract.
	Frames []*image.NRGBA

	// logical screen of the source
	width, height int
	raw           []byte
}

// Analyze records each layer's frame count and screen size. No frame is
// decompressed, so an oversized animation costs nothing until the guard
// has accepted it.
func Analyze(layers []RawLayer, maxSourcePixels int) ([]*FrameSet, error) {
	sets := make([]*FrameSet, len(layers))
	for i, l := range layers {
		cfg, layout, err := gifConfig(l.Bytes, maxSourcePixels)
		if err != nil {
			return nil, fmt.Errorf("layer %d: %w", i, err)
		}
		sets[i] = &FrameSet{
			Animated:   layout.Frames > 1,
			FrameCount: layout.Frames,
			width:      cfg.Width,
			height:     cfg.Height,
			raw:        l.Bytes,
		}
	}
	return sets, nil
}

// DecodeBytes estimates the memory Extract needs for this set's source
// frames.
func (fs *FrameSet) DecodeBytes() int64 {
	return EstimateDecode(fs.FrameCount, fs.width, fs.height)
}

// Extract decodes, coalesces and fits every frame to size x size. It is a
// no-op once frames are present.
func (fs *FrameSet) Extract(size int) error {
	if fs.Frames != nil || fs.raw == nil {
		return nil
	}
	g, err := decodeGIF(fs.raw)
	if err != nil {
		return err
	}
	fs.Frames = coalesce(g, 0, size)
	// the block scan and the decoder agree on valid input; trust the decoder
	fs.FrameCount = len(fs.Frames)
	fs.raw = nil
	return nil
}

// release drops everything the set holds.
func (fs *FrameSet) release() {
	fs.Frames, fs.raw = nil, nil
}

// FirstAnimated returns the lowest index whose set is animated, or -1.
func FirstAnimated(sets []*FrameSet) int {
	for i, fs := range sets {
		if fs.Animated {
			return i
		}
	}
	return -1
}

// coalesce renders the first limit frames (all when limit <= 0) onto the
// logical screen, honouring each frame's disposal before the next is drawn.
// With size > 0 each snapshot is fitted to size x size as it is taken.
func coalesce(g *gif.GIF, limit, size int) []*image.NRGBA {
	n := len(g.Image)
	if limit > 0 && limit < n {
		n = limit
	}
	bounds := image.Rect(0, 0, g.Config.Width, g.Config.Height)
	if bounds.Empty() {
		for _, f := range g.Image {
			bounds = bounds.Union(f.Bounds())
		}
	}
	canvas := image.NewNRGBA(bounds)
	var prev *image.NRGBA
	out := make([]*image.NRGBA, 0, n)

	for i := 0; i < n; i++ {
		frame := g.Image[i]
		disposal := byte(gif.DisposalNone)
		if i < len(g.Disposal) {
			disposal = g.Disposal[i]
		}
		if disposal == gif.DisposalPrevious {
			prev = imaging.Clone(canvas)
		}

		draw.Draw(canvas, frame.Bounds(), frame, frame.Bounds().Min, draw.Over)
		if size > 0 {
			out = append(out, fitSquare(canvas, size))
		} else {
			out = append(out, imaging.Clone(canvas))
		}
		// decoded source frames are not needed once drawn
		g.Image[i] = nil

		switch disposal {
		case gif.DisposalBackground:
			draw.Draw(canvas, frame.Bounds(), image.NewUniform(color.Transparent), image.Point{}, draw.Src)
		case gif.DisposalPrevious:
			copy(canvas.Pix, prev.Pix)
		}
	}
	return out
}
