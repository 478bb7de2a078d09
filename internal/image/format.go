package imagepkg

import "bytes"

// Format is the family a layer's bytes were sniffed as. The first layer's
// Format picks the processing branch for a whole preview.
type Format uint8

const (
	FormatUnknown Format = iota
	FormatGIF
	FormatStaticRaster
	FormatVector
)

const (
	ContentTypeGIF  = "image/gif"
	ContentTypeWebP = "image/webp"
)

var (
	gifMagic  = []byte("GIF")
	pngMagic  = []byte{0x89, 0x50, 0x4e, 0x47}
	jpegMagic = []byte{0xff, 0xd8, 0xff}
	utf8BOM   = []byte{0xef, 0xbb, 0xbf}
)

func (f Format) String() string {
	switch f {
	case FormatGIF:
		return "gif"
	case FormatStaticRaster:
		return "raster"
	case FormatVector:
		return "vector"
	default:
		return "unknown"
	}
}

// OutputContentType is the content type a preview whose first layer has
// this format is served as. Unknown has none.
func (f Format) OutputContentType() (string, bool) {
	switch f {
	case FormatGIF:
		return ContentTypeGIF, true
	case FormatStaticRaster, FormatVector:
		return ContentTypeWebP, true
	default:
		return "", false
	}
}

// Sniff classifies b by its leading bytes. It never reads past the prefix
// it needs and never modifies b.
func Sniff(b []byte) Format {
	switch {
	case bytes.HasPrefix(b, gifMagic):
		return FormatGIF
	case bytes.HasPrefix(b, pngMagic):
		return FormatStaticRaster
	case isSVG(b):
		return FormatVector
	case bytes.HasPrefix(b, jpegMagic), isWebP(b):
		return FormatStaticRaster
	}
	return FormatUnknown
}

func isSVG(b []byte) bool {
	b = bytes.TrimPrefix(b, utf8BOM)
	b = bytes.TrimLeft(b, " \t\r\n")
	return bytes.HasPrefix(b, []byte("<?xml")) || bytes.HasPrefix(b, []byte("<svg"))
}

func isWebP(b []byte) bool {
	return len(b) >= 12 && string(b[0:4]) == "RIFF" && string(b[8:12]) == "WEBP"
}
