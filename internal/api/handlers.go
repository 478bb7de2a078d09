package api

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"strings"

	"github.com/gin-gonic/gin"

	imagepkg "github.com/youruser/traitpreview/internal/image"
	"github.com/youruser/traitpreview/internal/logging"
	"github.com/youruser/traitpreview/internal/preview"
	"github.com/youruser/traitpreview/internal/source"
	"github.com/youruser/traitpreview/internal/util"
)

// Renderer is the preview engine as the handlers see it.
type Renderer interface {
	Render(ctx context.Context, refs []string) (*imagepkg.Result, error)
	ContentType(ctx context.Context, first string) (string, error)
}

// CachePolicy becomes the Cache-Control header on successful previews.
type CachePolicy struct {
	SMaxAge              int
	StaleWhileRevalidate int
}

func (p CachePolicy) header() string {
	return fmt.Sprintf("public, s-maxage=%d, stale-while-revalidate=%d", p.SMaxAge, p.StaleWhileRevalidate)
}

type Handler struct {
	engine Renderer
	cache  CachePolicy
	log    *slog.Logger
}

func NewHandler(engine Renderer, cache CachePolicy, log *slog.Logger) *Handler {
	if log == nil {
		log = logging.Discard()
	}
	return &Handler{engine: engine, cache: cache, log: log}
}

// health
func health(c *gin.Context) {
	c.JSON(http.StatusOK, gin.H{"status": "ok"})
}

// preview renders ?images=a&images=b... with images[0] on top
func (h *Handler) preview(c *gin.Context) {
	images := imageRefs(c)
	if len(images) == 0 {
		c.JSON(http.StatusBadRequest, gin.H{"error": "missing images parameter"})
		return
	}
	res, err := h.engine.Render(c.Request.Context(), images)
	if err != nil {
		h.fail(c, err)
		return
	}

	etag := util.ContentETag(res.Bytes)
	c.Header("Cache-Control", h.cache.header())
	if etag != "" {
		c.Header("ETag", etag)
		if etagMatches(c.GetHeader("If-None-Match"), etag) {
			c.Status(http.StatusNotModified)
			return
		}
	}
	c.Data(http.StatusOK, res.ContentType, res.Bytes)
}

// previewHead answers with the content type of the first image's branch,
// without compositing anything
func (h *Handler) previewHead(c *gin.Context) {
	images := imageRefs(c)
	if len(images) == 0 {
		c.Status(http.StatusBadRequest)
		return
	}
	ct, err := h.engine.ContentType(c.Request.Context(), images[0])
	if err != nil {
		h.log.Warn("preview preflight failed", "ref", images[0], "err", err)
		c.Status(statusFor(err))
		return
	}
	c.Header("Content-Type", ct)
	c.Header("Cache-Control", h.cache.header())
	c.Status(http.StatusOK)
}

func (h *Handler) fail(c *gin.Context, err error) {
	status := statusFor(err)
	if status >= http.StatusInternalServerError {
		h.log.Error("preview failed", "path", c.Request.URL.RequestURI(), "status", status, "err", err)
	}
	c.JSON(status, gin.H{"error": err.Error()})
}

func imageRefs(c *gin.Context) []string {
	var out []string
	for _, v := range c.QueryArray("images") {
		if v = strings.TrimSpace(v); v != "" {
			out = append(out, v)
		}
	}
	return out
}

func statusFor(err error) int {
	switch {
	case errors.Is(err, preview.ErrNoImages):
		return http.StatusBadRequest
	case errors.Is(err, source.ErrSourceUnavailable):
		return http.StatusBadGateway
	case errors.Is(err, context.DeadlineExceeded):
		return http.StatusGatewayTimeout
	default:
		return http.StatusInternalServerError
	}
}

func etagMatches(header, etag string) bool {
	if header == "" {
		return false
	}
	for _, t := range strings.Split(header, ",") {
		t = strings.TrimPrefix(strings.TrimSpace(t), "W/")
		if t == "*" || t == etag {
			return true
		}
	}
	return false
}
