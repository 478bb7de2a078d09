package imagepkg

import (
	"bytes"
	"fmt"
	"image"
	"image/color"
	"image/gif"

	"github.com/disintegration/imaging"
	_ "golang.org/x/image/webp"
)

// decodeStill decodes one layer as a single image and fits it to the
// canonical square. GIF layers contribute their first frame.
func decodeStill(l RawLayer, size, maxPixels int) (*image.NRGBA, error) {
	switch l.Format {
	case FormatVector:
		return rasterizeSVG(l.Bytes, size)
	case FormatGIF:
		return decodeFirstFrame(l.Bytes, size, maxPixels)
	case FormatStaticRaster:
		cfg, _, err := image.DecodeConfig(bytes.NewReader(l.Bytes))
		if err != nil {
			return nil, fmt.Errorf("%w: %v", ErrUnsupportedFormat, err)
		}
		if err := checkSourcePixels(cfg.Width, cfg.Height, maxPixels); err != nil {
			return nil, err
		}
		img, err := imaging.Decode(bytes.NewReader(l.Bytes), imaging.AutoOrientation(true))
		if err != nil {
			return nil, err
		}
		return fitSquare(img, size), nil
	}
	return nil, fmt.Errorf("%w: %s", ErrUnsupportedFormat, l.Format)
}

// gifConfig checks the logical screen size and walks the block stream
// without decoding any frame.
func gifConfig(b []byte, maxPixels int) (image.Config, gifLayout, error) {
	cfg, err := gif.DecodeConfig(bytes.NewReader(b))
	if err != nil {
		return cfg, gifLayout{}, fmt.Errorf("%w: %v", ErrUnsupportedFormat, err)
	}
	if err := checkSourcePixels(cfg.Width, cfg.Height, maxPixels); err != nil {
		return cfg, gifLayout{}, err
	}
	l, err := scanGIF(b)
	if err != nil {
		return cfg, gifLayout{}, err
	}
	if l.Frames == 0 {
		return cfg, gifLayout{}, fmt.Errorf("%w: gif has no frames", ErrUnsupportedFormat)
	}
	return cfg, l, nil
}

// decodeFirstFrame decodes only the first frame of a GIF, however many it
// holds, and fits it to size.
func decodeFirstFrame(b []byte, size, maxPixels int) (*image.NRGBA, error) {
	_, l, err := gifConfig(b, maxPixels)
	if err != nil {
		return nil, err
	}
	g, err := decodeGIF(firstFrameOnly(b, l))
	if err != nil {
		return nil, err
	}
	return coalesce(g, 1, size)[0], nil
}

func decodeGIF(b []byte) (*gif.GIF, error) {
	g, err := gif.DecodeAll(bytes.NewReader(b))
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrUnsupportedFormat, err)
	}
	if len(g.Image) == 0 {
		return nil, fmt.Errorf("%w: gif has no frames", ErrUnsupportedFormat)
	}
	return g, nil
}

func checkSourcePixels(w, h, maxPixels int) error {
	if maxPixels > 0 && w*h > maxPixels {
		return fmt.Errorf("%w: source is %dx%d, over %d pixels", ErrResourceLimitExceeded, w, h, maxPixels)
	}
	return nil
}

// fitSquare scales img, keeping its aspect ratio, so that its longer side is
// size, and centres it on a transparent size x size canvas.
func fitSquare(img image.Image, size int) *image.NRGBA {
	canvas := imaging.New(size, size, color.NRGBA{})
	b := img.Bounds()
	w, h := b.Dx(), b.Dy()
	if w <= 0 || h <= 0 {
		return canvas
	}
	if w == size && h == size {
		return imaging.Clone(img)
	}
	nw, nh := size, size
	if w > h {
		nh = max(1, (h*size+w/2)/w)
	} else if h > w {
		nw = max(1, (w*size+h/2)/h)
	}
	resized := imaging.Resize(img, nw, nh, imaging.Lanczos)
	return imaging.PasteCenter(canvas, resized)
}
