package imagepkg

// RawLayer is one fetched layer and the format its bytes sniffed as.
type RawLayer struct {
	Bytes  []byte
	Format Format
}

func NewRawLayer(b []byte) RawLayer {
	return RawLayer{Bytes: b, Format: Sniff(b)}
}

// NewRawLayers sniffs each buffer in order; index 0 stays topmost.
func NewRawLayers(bufs [][]byte) []RawLayer {
	out := make([]RawLayer, len(bufs))
	for i, b := range bufs {
		out[i] = NewRawLayer(b)
	}
	return out
}
