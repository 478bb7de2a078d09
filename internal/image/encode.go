package imagepkg

import (
	"bytes"
	"errors"
	"image"
	"image/color"
	"image/gif"
	"time"

	"github.com/HugoSmits86/nativewebp"
	"github.com/gen2brain/webp"
)

// encodeWebP writes img as lossy WebP at quality, or lossless.
func encodeWebP(img image.Image, quality int, lossless bool) ([]byte, error) {
	var buf bytes.Buffer
	var err error
	if lossless {
		err = nativewebp.Encode(&buf, img, nil)
	} else {
		err = webp.Encode(&buf, img, webp.Options{Quality: quality})
	}
	if err != nil {
		return nil, err
	}
	return buf.Bytes(), nil
}

// encodeStillGIF writes a single-frame GIF with a median-cut palette and a
// transparent entry.
func encodeStillGIF(img *image.NRGBA) ([]byte, error) {
	pal := BuildPalette([]*image.NRGBA{img}, MaxPaletteColors)
	var buf bytes.Buffer
	if err := gif.Encode(&buf, ToPaletted(img, pal), nil); err != nil {
		return nil, err
	}
	return buf.Bytes(), nil
}

// EncodeAnimation writes frames as a looping GIF sharing pal as the global
// color table. Every frame is shown for delay and cleared to the background
// before the next.
func EncodeAnimation(frames []*image.Paletted, pal color.Palette, delay time.Duration) ([]byte, error) {
	if len(frames) == 0 {
		return nil, errors.New("imagepkg: no frames to encode")
	}
	cs := max(1, int(delay/(10*time.Millisecond)))
	b := frames[0].Bounds()
	g := &gif.GIF{
		Image:           frames,
		Delay:           make([]int, len(frames)),
		Disposal:        make([]byte, len(frames)),
		LoopCount:       0,
		BackgroundIndex: 0,
		Config: image.Config{
			ColorModel: pal,
			Width:      b.Dx(),
			Height:     b.Dy(),
		},
	}
	for i := range frames {
		g.Delay[i] = cs
		g.Disposal[i] = gif.DisposalBackground
	}
	var buf bytes.Buffer
	if err := gif.EncodeAll(&buf, g); err != nil {
		return nil, err
	}
	return buf.Bytes(), nil
}
