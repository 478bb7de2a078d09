package imagepkg

import (
	"bytes"
	"image"
	"image/color"
	"image/gif"
	"testing"
	"time"
)

func TestEncodeAnimationDelay(t *testing.T) {
	pal := color.Palette{color.NRGBA{}, red}
	frames := []*image.Paletted{
		image.NewPaletted(image.Rect(0, 0, 4, 4), pal),
		image.NewPaletted(image.Rect(0, 0, 4, 4), pal),
	}
	tests := []struct {
		delay time.Duration
		want  int
	}{
		{100 * time.Millisecond, 10},
		{250 * time.Millisecond, 25},
		{5 * time.Millisecond, 1},
	}
	for _, tt := range tests {
		b, err := EncodeAnimation(frames, pal, tt.delay)
		if err != nil {
			t.Fatal(err)
		}
		g, err := gif.DecodeAll(bytes.NewReader(b))
		if err != nil {
			t.Fatal(err)
		}
		for i, d := range g.Delay {
			if d != tt.want {
				t.Errorf("delay %v: frame %d = %d, want %d", tt.delay, i, d, tt.want)
			}
		}
		if g.BackgroundIndex != 0 {
			t.Errorf("background index = %d, want 0", g.BackgroundIndex)
		}
	}
}

func TestEncodeAnimationNoFrames(t *testing.T) {
	if _, err := EncodeAnimation(nil, color.Palette{color.NRGBA{}}, time.Second); err == nil {
		t.Fatal("expected error")
	}
}

func TestEncodeWebP(t *testing.T) {
	img := solid(24, 24, green)
	for _, lossless := range []bool{false, true} {
		b, err := encodeWebP(img, 80, lossless)
		if err != nil {
			t.Fatalf("lossless=%v: %v", lossless, err)
		}
		if Sniff(b) != FormatStaticRaster {
			t.Errorf("lossless=%v: output does not sniff as webp", lossless)
		}
		out := decodeWebP(t, b)
		if got := nrgbaAt(out, 12, 12); !near(got, green, 12) {
			t.Errorf("lossless=%v: pixel = %v, want green", lossless, got)
		}
	}
}

func TestEncodeStillGIF(t *testing.T) {
	img := filled(6, 6, image.Rect(0, 0, 3, 6), red)
	b, err := encodeStillGIF(img)
	if err != nil {
		t.Fatal(err)
	}
	g := decodeFrames(t, b)
	if len(g.Image) != 1 {
		t.Fatalf("frames = %d", len(g.Image))
	}
	if got := nrgbaAt(g.Image[0], 1, 1); !near(got, red, 8) {
		t.Errorf("opaque pixel = %v, want red", got)
	}
	if got := g.Image[0].ColorIndexAt(5, 1); got != 0 {
		t.Errorf("transparent pixel index = %d, want 0", got)
	}
}
