// Package preview wires layer fetching to compositing for one request.
package preview

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"time"

	imagepkg "github.com/youruser/traitpreview/internal/image"
	"github.com/youruser/traitpreview/internal/logging"
)

var ErrNoImages = errors.New("preview: no images given")

// Sources fetches layer bytes. *source.Resolver satisfies it.
type Sources interface {
	Resolve(ctx context.Context, ref string) ([]byte, error)
	ResolveAll(ctx context.Context, refs []string) ([][]byte, error)
}

// Engine is stateless across requests.
type Engine struct {
	sources    Sources
	compositor *imagepkg.Compositor
	log        *slog.Logger
}

func NewEngine(sources Sources, compositor *imagepkg.Compositor, log *slog.Logger) *Engine {
	if log == nil {
		log = logging.Discard()
	}
	return &Engine{sources: sources, compositor: compositor, log: log}
}

// Render fetches every layer concurrently and composites them, refs[0] on
// top.
func (e *Engine) Render(ctx context.Context, refs []string) (*imagepkg.Result, error) {
	if len(refs) == 0 {
		return nil, ErrNoImages
	}
	start := time.Now()
	bufs, err := e.sources.ResolveAll(ctx, refs)
	if err != nil {
		return nil, err
	}
	layers := imagepkg.NewRawLayers(bufs)
	e.warnMixed(refs, layers)

	res, err := e.compositor.Compose(ctx, layers)
	if err != nil {
		e.log.Error("preview render failed", "layers", len(refs), "format", layers[0].Format, "err", err)
		return nil, err
	}
	e.log.Info("preview rendered",
		"layers", len(refs),
		"format", layers[0].Format,
		"content_type", res.ContentType,
		"frames", res.Frames,
		"fallback", res.Fallback,
		"bytes", len(res.Bytes),
		"elapsed", time.Since(start))
	return res, nil
}

// ContentType resolves and sniffs only the first reference and reports the
// content type Render would produce. Nothing is decoded.
func (e *Engine) ContentType(ctx context.Context, first string) (string, error) {
	b, err := e.sources.Resolve(ctx, first)
	if err != nil {
		return "", err
	}
	f := imagepkg.Sniff(b)
	ct, ok := f.OutputContentType()
	if !ok {
		e.log.Warn("unrecognised layer format", "ref", first, "size", len(b))
		return "", fmt.Errorf("%w: %s", imagepkg.ErrUnsupportedFormat, first)
	}
	return ct, nil
}

// warnMixed logs layers whose format family differs from the first one.
// The first layer still decides the branch.
func (e *Engine) warnMixed(refs []string, layers []imagepkg.RawLayer) {
	head := layers[0].Format
	if head == imagepkg.FormatUnknown {
		e.log.Warn("unrecognised layer format", "ref", refs[0], "size", len(layers[0].Bytes))
		return
	}
	for i, l := range layers[1:] {
		if l.Format != head {
			e.log.Warn("mixed layer formats", "ref", refs[i+1], "index", i+1, "format", l.Format, "branch", head)
		}
	}
}
