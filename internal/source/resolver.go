// Package source fetches layer bytes for content-addressed references.
package source

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"time"

	"golang.org/x/sync/errgroup"

	"github.com/youruser/traitpreview/internal/gateway"
	"github.com/youruser/traitpreview/internal/logging"
	"github.com/youruser/traitpreview/internal/util"
)

// ErrSourceUnavailable means every candidate URL for a reference failed.
var ErrSourceUnavailable = errors.New("source: unavailable")

const DefaultTimeout = 20 * time.Second

// Resolver turns references into bytes by walking the gateway's candidate
// URLs in order. The zero value is not usable; build one with New.
type Resolver struct {
	gateway  gateway.Resolver
	client   *http.Client
	timeout  time.Duration
	maxBytes int64
	log      *slog.Logger
}

type Options struct {
	Client *http.Client
	// Timeout bounds each attempt, not the whole resolution.
	Timeout  time.Duration
	MaxBytes int64
	Logger   *slog.Logger
}

func New(gw gateway.Resolver, opts Options) *Resolver {
	r := &Resolver{
		gateway:  gw,
		client:   opts.Client,
		timeout:  opts.Timeout,
		maxBytes: opts.MaxBytes,
		log:      opts.Logger,
	}
	if r.client == nil {
		r.client = http.DefaultClient
	}
	if r.timeout <= 0 {
		r.timeout = DefaultTimeout
	}
	if r.log == nil {
		r.log = logging.Discard()
	}
	return r
}

// Resolve returns the bytes behind ref from the first candidate URL that
// answers within the per-attempt timeout.
func (r *Resolver) Resolve(ctx context.Context, ref string) ([]byte, error) {
	urls, err := r.gateway.FetchableURLs(ref)
	if err != nil {
		return nil, fmt.Errorf("%w: %s: %v", ErrSourceUnavailable, ref, err)
	}
	if len(urls) == 0 {
		return nil, fmt.Errorf("%w: %s: no candidate urls", ErrSourceUnavailable, ref)
	}

	var lastErr error
	for i, u := range urls {
		if err := ctx.Err(); err != nil {
			return nil, err
		}
		b, err := r.attempt(ctx, u)
		if err == nil {
			if i > 0 {
				r.log.Debug("layer fetched from fallback url", "ref", ref, "url", u, "attempt", i+1)
			}
			return b, nil
		}
		lastErr = err
		r.log.Warn("layer fetch failed", "ref", ref, "url", u, "attempt", i+1, "of", len(urls), "err", err)
	}
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	return nil, fmt.Errorf("%w: %s: %d candidates failed, last: %v", ErrSourceUnavailable, ref, len(urls), lastErr)
}

func (r *Resolver) attempt(ctx context.Context, url string) ([]byte, error) {
	ctx, cancel := context.WithTimeout(ctx, r.timeout)
	defer cancel()
	return util.GetBytes(ctx, r.client, url, r.maxBytes)
}

// ResolveAll resolves every ref concurrently. The result is in ref order;
// the first failure cancels the others and is returned.
func (r *Resolver) ResolveAll(ctx context.Context, refs []string) ([][]byte, error) {
	out := make([][]byte, len(refs))
	g, ctx := errgroup.WithContext(ctx)
	for i, ref := range refs {
		i, ref := i, ref
		g.Go(func() error {
			b, err := r.Resolve(ctx, ref)
			if err != nil {
				return err
			}
			out[i] = b
			return nil
		})
	}
	if err := g.Wait(); err != nil {
		return nil, err
	}
	return out, nil
}
