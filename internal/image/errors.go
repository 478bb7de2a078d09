package imagepkg

import "errors"

var (
	ErrUnsupportedFormat     = errors.New("imagepkg: unsupported format")
	ErrResourceLimitExceeded = errors.New("imagepkg: resource limit exceeded")
	ErrCompositionFailure    = errors.New("imagepkg: composition failed")
	ErrNoLayers              = errors.New("imagepkg: no layers")
)

func IsResourceLimit(err error) bool { return errors.Is(err, ErrResourceLimitExceeded) }
