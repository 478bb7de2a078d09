package imagepkg

import (
	"errors"
	"fmt"
)

// GIF block markers.
const (
	gifExtension  = 0x21
	gifImageDesc  = 0x2c
	gifTrailer    = 0x3b
	gifHeaderSize = 13
)

var errGIFTruncated = errors.New("gif: truncated block stream")

// gifLayout is what a GIF's block stream says about it, read without
// decompressing any image data.
type gifLayout struct {
	Frames int
	// FirstEnd is the offset just past the first frame's image data.
	FirstEnd int
}

// scanGIF walks the block stream of b, counting image descriptors. A
// stream that ends at a block boundary without a trailer is accepted.
func scanGIF(b []byte) (gifLayout, error) {
	var out gifLayout
	if len(b) < gifHeaderSize || string(b[:3]) != "GIF" {
		return out, fmt.Errorf("%w: not a gif", ErrUnsupportedFormat)
	}
	p := gifHeaderSize
	if flags := b[10]; flags&0x80 != 0 {
		p += 3 << ((flags & 0x07) + 1)
	}

	for p < len(b) {
		switch b[p] {
		case gifTrailer:
			return out, nil
		case gifExtension:
			// introducer, label, then data sub-blocks
			end, err := skipSubBlocks(b, p+2)
			if err != nil {
				return out, err
			}
			p = end
		case gifImageDesc:
			if p+10 > len(b) {
				return out, fmt.Errorf("%w: %v", ErrUnsupportedFormat, errGIFTruncated)
			}
			flags := b[p+9]
			p += 10
			if flags&0x80 != 0 {
				p += 3 << ((flags & 0x07) + 1)
			}
			// LZW minimum code size, then data sub-blocks
			end, err := skipSubBlocks(b, p+1)
			if err != nil {
				return out, err
			}
			p = end
			out.Frames++
			if out.Frames == 1 {
				out.FirstEnd = p
			}
		default:
			return out, fmt.Errorf("%w: gif: unknown block 0x%02x at %d", ErrUnsupportedFormat, b[p], p)
		}
	}
	return out, nil
}

// skipSubBlocks returns the offset just past the zero-length block that
// ends the sub-block chain starting at p.
func skipSubBlocks(b []byte, p int) (int, error) {
	for {
		if p >= len(b) {
			return 0, fmt.Errorf("%w: %v", ErrUnsupportedFormat, errGIFTruncated)
		}
		n := int(b[p])
		p++
		if n == 0 {
			return p, nil
		}
		p += n
	}
}

// firstFrameOnly returns a copy of the GIF holding only its first frame,
// so decoding it never touches later frames.
func firstFrameOnly(b []byte, l gifLayout) []byte {
	if l.Frames <= 1 {
		return b
	}
	out := make([]byte, l.FirstEnd+1)
	copy(out, b[:l.FirstEnd])
	out[l.FirstEnd] = gifTrailer
	return out
}
