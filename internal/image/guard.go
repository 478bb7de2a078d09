package imagepkg

import "fmt"

// Limits bound the work one preview may cause. A zero field disables that
// check.
type Limits struct {
	MaxFrames      int
	MaxMemoryBytes int64
	// MaxSourcePixels caps the width*height of any decoded source layer.
	MaxSourcePixels int
}

func DefaultLimits() Limits {
	return Limits{
		MaxFrames:       1000,
		MaxMemoryBytes:  500_000_000,
		MaxSourcePixels: 30_000_000,
	}
}

// EstimateMemory is the peak pixel memory of compositing maxFrames output
// frames from layerCount layers at w x h, 4 bytes per pixel.
func EstimateMemory(maxFrames, layerCount, w, h int) int64 {
	return int64(maxFrames) * int64(layerCount) * int64(w) * int64(h) * 4
}

// Check rejects an animated composite before any frame is allocated.
func (l Limits) Check(maxFrames, layerCount, w, h int) error {
	if l.MaxFrames > 0 && maxFrames > l.MaxFrames {
		return fmt.Errorf("%w: %d frames, limit %d", ErrResourceLimitExceeded, maxFrames, l.MaxFrames)
	}
	if l.MaxMemoryBytes > 0 {
		if est := EstimateMemory(maxFrames, layerCount, w, h); est > l.MaxMemoryBytes {
			return fmt.Errorf("%w: estimated %d bytes, limit %d", ErrResourceLimitExceeded, est, l.MaxMemoryBytes)
		}
	}
	return nil
}

// EstimateDecode is the memory needed to decode one GIF layer of count
// frames on a w x h screen: one byte per paletted source pixel plus the
// coalescing canvas and its disposal snapshot.
func EstimateDecode(count, w, h int) int64 {
	px := int64(w) * int64(h)
	return int64(count)*px + 2*4*px
}

// CheckDecode rejects a layer decode whose estimate is over the memory
// limit.
func (l Limits) CheckDecode(need int64) error {
	if l.MaxMemoryBytes > 0 && need > l.MaxMemoryBytes {
		return fmt.Errorf("%w: decode needs %d bytes, limit %d", ErrResourceLimitExceeded, need, l.MaxMemoryBytes)
	}
	return nil
}
