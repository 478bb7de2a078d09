package imagepkg

import (
	"context"
	"image"
	"image/color"

	"github.com/ericpauley/go-quantize/quantize"
)

// MaxPaletteColors is the GIF color table limit. Entry 0 is always the
// transparent color.
const MaxPaletteColors = 256

// alphaThreshold splits pixels into transparent (index 0) and opaque.
const alphaThreshold = 0x80

// frameStrip presents same-sized frames stacked vertically as one image so
// the quantizer sees every frame's pixels without a copy. Pixels are
// reported opaque: transparency is handled by palette entry 0, and weight
// keeps transparent pixels out of the quantizer altogether.
type frameStrip struct {
	frames []*image.NRGBA
	w, h   int
}

func newFrameStrip(frames []*image.NRGBA) frameStrip {
	b := frames[0].Bounds()
	return frameStrip{frames: frames, w: b.Dx(), h: b.Dy()}
}

func (s frameStrip) ColorModel() color.Model { return color.NRGBAModel }

func (s frameStrip) Bounds() image.Rectangle {
	return image.Rect(0, 0, s.w, s.h*len(s.frames))
}

func (s frameStrip) pixel(x, y int) color.NRGBA {
	f := s.frames[y/s.h]
	return f.NRGBAAt(f.Rect.Min.X+x, f.Rect.Min.Y+y%s.h)
}

func (s frameStrip) At(x, y int) color.Color {
	c := s.pixel(x, y)
	c.A = 0xff
	return c
}

// weight counts a pixel once if ToPaletted would map it to an opaque entry.
func (s frameStrip) weight(_ image.Image, x, y int) uint32 {
	if s.pixel(x, y).A < alphaThreshold {
		return 0
	}
	return 1
}

// BuildPalette quantizes the union of all frames into one shared palette of
// at most maxColors entries, the first being transparent.
func BuildPalette(frames []*image.NRGBA, maxColors int) color.Palette {
	if maxColors <= 0 || maxColors > MaxPaletteColors {
		maxColors = MaxPaletteColors
	}
	pal := color.Palette{color.NRGBA{}}
	if len(frames) == 0 || maxColors == 1 {
		return pal
	}
	strip := newFrameStrip(frames)
	q := quantize.MedianCutQuantizer{Weighting: strip.weight}
	raw := q.Quantize(make(color.Palette, 0, maxColors-1), strip)
	for _, c := range raw {
		if len(pal) >= maxColors {
			break
		}
		pal = append(pal, color.NRGBAModel.Convert(c))
	}
	return pal
}

// ToPaletted maps frame onto pal: pixels under alphaThreshold become entry
// 0, the rest take the nearest opaque entry.
func ToPaletted(frame *image.NRGBA, pal color.Palette) *image.Paletted {
	b := frame.Bounds()
	dst := image.NewPaletted(image.Rect(0, 0, b.Dx(), b.Dy()), pal)
	entries := make([]color.NRGBA, len(pal))
	for i, c := range pal {
		entries[i] = color.NRGBAModel.Convert(c).(color.NRGBA)
	}
	cache := make(map[uint32]uint8)

	for y := 0; y < b.Dy(); y++ {
		src := frame.Pix[frame.PixOffset(b.Min.X, b.Min.Y+y):]
		row := dst.Pix[y*dst.Stride:]
		for x := 0; x < b.Dx(); x++ {
			p := src[x*4 : x*4+4 : x*4+4]
			if p[3] < alphaThreshold || len(entries) == 1 {
				row[x] = 0
				continue
			}
			key := uint32(p[0])<<16 | uint32(p[1])<<8 | uint32(p[2])
			idx, ok := cache[key]
			if !ok {
				idx = nearestOpaque(entries, p[0], p[1], p[2])
				cache[key] = idx
			}
			row[x] = idx
		}
	}
	return dst
}

func nearestOpaque(entries []color.NRGBA, r, g, b uint8) uint8 {
	best, bestDist := 1, -1
	for i := 1; i < len(entries); i++ {
		e := entries[i]
		dr := int(e.R) - int(r)
		dg := int(e.G) - int(g)
		db := int(e.B) - int(b)
		d := dr*dr + dg*dg + db*db
		if bestDist < 0 || d < bestDist {
			best, bestDist = i, d
			if d == 0 {
				break
			}
		}
	}
	return uint8(best)
}

func (c *Compositor) palettize(ctx context.Context, frames []*image.NRGBA, pal color.Palette) ([]*image.Paletted, error) {
	out := make([]*image.Paletted, len(frames))
	err := forEachIndex(ctx, len(frames), c.opts.Workers, func(i int) error {
		out[i] = ToPaletted(frames[i], pal)
		return nil
	})
	if err != nil {
		return nil, err
	}
	return out, nil
}
