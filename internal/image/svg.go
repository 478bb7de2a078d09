package imagepkg

import (
	"bytes"
	"fmt"
	"image"
	"math"

	"github.com/disintegration/imaging"
	"github.com/srwiley/oksvg"
	"github.com/srwiley/rasterx"
)

// rasterizeSVG renders an SVG document into a size x size canvas. The
// viewBox (or width/height when there is none) is fitted xMidYMid meet.
// Elements oksvg does not understand are skipped.
func rasterizeSVG(data []byte, size int) (img *image.NRGBA, err error) {
	defer func() {
		if r := recover(); r != nil {
			img, err = nil, fmt.Errorf("%w: svg: %v", ErrUnsupportedFormat, r)
		}
	}()

	icon, err := oksvg.ReadIconStream(bytes.NewReader(data), oksvg.IgnoreErrorMode)
	if err != nil {
		return nil, fmt.Errorf("%w: svg: %v", ErrUnsupportedFormat, err)
	}
	vb := icon.ViewBox
	if !finite(vb.X, vb.Y, vb.W, vb.H) {
		return nil, fmt.Errorf("%w: svg: bad viewBox", ErrUnsupportedFormat)
	}
	s := float64(size)
	if vb.W <= 0 || vb.H <= 0 {
		vb.X, vb.Y, vb.W, vb.H = 0, 0, s, s
	}
	k := math.Min(s/vb.W, s/vb.H)
	tx, ty := (s-vb.W*k)/2, (s-vb.H*k)/2
	icon.Transform = rasterx.Identity.Translate(tx, ty).Scale(k, k).Translate(-vb.X, -vb.Y)

	canvas := image.NewRGBA(image.Rect(0, 0, size, size))
	scanner := rasterx.NewScannerGV(size, size, canvas, canvas.Bounds())
	icon.Draw(rasterx.NewDasher(size, size, scanner), 1)
	return imaging.Clone(canvas), nil
}

func finite(vs ...float64) bool {
	for _, v := range vs {
		if math.IsNaN(v) || math.IsInf(v, 0) {
			return false
		}
	}
	return true
}
