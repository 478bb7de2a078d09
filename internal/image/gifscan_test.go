package imagepkg

import (
	"context"
	"encoding/binary"
	"errors"
	"image"
	"image/color"
	"testing"
)

// garbageFrame is an image descriptor for a w x h frame at the origin with a
// two-entry local color table and LZW data the decoder rejects.
func garbageFrame(w, h int) []byte {
	b := []byte{gifImageDesc, 0, 0, 0, 0, 0, 0, 0, 0, 0x80}
	binary.LittleEndian.PutUint16(b[5:], uint16(w))
	binary.LittleEndian.PutUint16(b[7:], uint16(h))
	b = append(b, 0, 0, 0, 0xff, 0xff, 0xff)
	return append(b, 2, 3, 0xff, 0xff, 0xff, 0)
}

// withGarbageFrame appends an undecodable second frame to a one-frame GIF.
func withGarbageFrame(b []byte) []byte {
	out := append([]byte(nil), b[:len(b)-1]...)
	out = append(out, garbageFrame(1, 1)...)
	return append(out, gifTrailer)
}

// hugeGIF is a w x h GIF claiming n full-screen frames, none of them
// decodable. Only the block structure is valid.
func hugeGIF(w, h, n int) []byte {
	b := []byte("GIF89a")
	b = binary.LittleEndian.AppendUint16(b, uint16(w))
	b = binary.LittleEndian.AppendUint16(b, uint16(h))
	b = append(b, 0, 0, 0)
	frame := garbageFrame(w, h)
	for i := 0; i < n; i++ {
		b = append(b, frame...)
	}
	return append(b, gifTrailer)
}

func TestScanGIFMatchesDecoder(t *testing.T) {
	area := image.Rect(0, 0, 6, 6)
	for _, n := range []int{1, 2, 5} {
		cs := []color.NRGBA{red, green, blue, yellow, cyan}[:n]
		b := animatedGIF(t, 6, 6, area, cs...)
		l, err := scanGIF(b)
		if err != nil {
			t.Fatalf("%d frames: %v", n, err)
		}
		if got := len(decodeFrames(t, b).Image); l.Frames != got {
			t.Errorf("scan found %d frames, decoder %d", l.Frames, got)
		}
	}
}

func TestScanGIFErrors(t *testing.T) {
	valid := animatedGIF(t, 4, 4, image.Rect(0, 0, 4, 4), red, blue)
	tests := []struct {
		name string
		b    []byte
	}{
		{"not a gif", encodePNG(t, solid(2, 2, red))},
		{"short header", valid[:8]},
		{"truncated frame", valid[:len(valid)-6]},
		{"unknown block", append(append([]byte(nil), valid[:len(valid)-1]...), 0x99)},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if _, err := scanGIF(tt.b); !errors.Is(err, ErrUnsupportedFormat) {
				t.Fatalf("err = %v, want ErrUnsupportedFormat", err)
			}
		})
	}
}

func TestScanGIFMissingTrailer(t *testing.T) {
	b := animatedGIF(t, 4, 4, image.Rect(0, 0, 4, 4), red, blue)
	l, err := scanGIF(b[:len(b)-1])
	if err != nil {
		t.Fatal(err)
	}
	if l.Frames != 2 {
		t.Errorf("frames = %d, want 2", l.Frames)
	}
}

func TestFirstFrameOnly(t *testing.T) {
	b := withGarbageFrame(animatedGIF(t, 4, 4, image.Rect(0, 0, 4, 4), red))
	l, err := scanGIF(b)
	if err != nil {
		t.Fatal(err)
	}
	first := firstFrameOnly(b, l)
	g := decodeFrames(t, first)
	if len(g.Image) != 1 {
		t.Fatalf("frames = %d, want 1", len(g.Image))
	}
	if got := nrgbaAt(g.Image[0], 2, 2); got != red {
		t.Errorf("pixel = %v, want red", got)
	}
	if b[len(b)-1] != gifTrailer {
		t.Error("source bytes modified")
	}
}

func TestAnalyzeDoesNotDecodeFrames(t *testing.T) {
	sets, err := Analyze(NewRawLayers([][]byte{hugeGIF(1000, 1000, 5000)}), 0)
	if err != nil {
		t.Fatal(err)
	}
	fs := sets[0]
	if !fs.Animated || fs.FrameCount != 5000 {
		t.Errorf("animated=%v frames=%d, want 5000", fs.Animated, fs.FrameCount)
	}
	if fs.Frames != nil {
		t.Error("frames decoded during analysis")
	}
}

func TestManyFrameGIFTripsGuardBeforeDecode(t *testing.T) {
	// every frame is undecodable, so reaching DecodeAll would surface
	// ErrUnsupportedFormat instead of the limit
	layers := NewRawLayers([][]byte{hugeGIF(1000, 1000, 10_000)})
	_, err := NewCompositor(testOptions(64), nil).Compose(context.Background(), layers)
	if !errors.Is(err, ErrResourceLimitExceeded) {
		t.Fatalf("err = %v, want ErrResourceLimitExceeded", err)
	}
	if errors.Is(err, ErrUnsupportedFormat) {
		t.Fatalf("err = %v: frames were decoded", err)
	}
}

func TestSourceDecodeMemoryTripsGuard(t *testing.T) {
	// 500 output frames at 16x16 fit easily; decoding 500 source frames
	// at 1000x1000 does not
	layers := NewRawLayers([][]byte{hugeGIF(1000, 1000, 500)})
	opts := testOptions(16)
	opts.Limits = Limits{MaxFrames: 1000, MaxMemoryBytes: 10_000_000}
	_, err := NewCompositor(opts, nil).Compose(context.Background(), layers)
	if !errors.Is(err, ErrResourceLimitExceeded) {
		t.Fatalf("err = %v, want ErrResourceLimitExceeded", err)
	}
}

func TestComposeStaticDecodesOnlyFirstGIFFrame(t *testing.T) {
	top := withGarbageFrame(animatedGIF(t, 8, 8, image.Rect(0, 0, 4, 8), red))
	layers := NewRawLayers([][]byte{encodePNG(t, solid(8, 8, blue)), top})
	res, err := NewCompositor(testOptions(8), nil).Compose(context.Background(), layers)
	if err != nil {
		t.Fatal(err)
	}
	if res.Frames != 1 {
		t.Errorf("frames = %d, want 1", res.Frames)
	}
}

func TestDecodeFirstFrame(t *testing.T) {
	b := withGarbageFrame(animatedGIF(t, 8, 8, image.Rect(0, 0, 8, 8), green))
	img, err := decodeFirstFrame(b, 4, 0)
	if err != nil {
		t.Fatal(err)
	}
	if bb := img.Bounds(); bb.Dx() != 4 || bb.Dy() != 4 {
		t.Fatalf("bounds = %v, want 4x4", bb)
	}
	if got := nrgbaAt(img, 2, 2); !near(got, green, 2) {
		t.Errorf("pixel = %v, want green", got)
	}
}
