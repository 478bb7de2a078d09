package config

import (
	"errors"
	"fmt"
	"os"
	"runtime"
	"strconv"
	"strings"
	"time"
)

// Config holds everything the server reads from its environment.
type Config struct {
	Port      string
	LogLevel  string
	LogFormat string

	// Canonical square edge of every preview, in pixels.
	Size         int
	WebPQuality  int
	WebPLossless bool
	FrameDelay   time.Duration
	Workers      int

	MaxFrames       int
	MaxMemoryBytes  int64
	MaxSourcePixels int

	FetchTimeout  time.Duration
	FetchMaxBytes int64
	Gateways      []string

	CacheSMaxAge              int
	CacheStaleWhileRevalidate int
}

// Default returns the configuration used when no variables are set.
func Default() Config {
	return Config{
		Port:      "8080",
		LogLevel:  "info",
		LogFormat: "text",

		Size:         1080,
		WebPQuality:  80,
		WebPLossless: false,
		FrameDelay:   100 * time.Millisecond,
		Workers:      runtime.GOMAXPROCS(0),

		MaxFrames:       1000,
		MaxMemoryBytes:  500_000_000,
		MaxSourcePixels: 30_000_000,

		FetchTimeout:  20 * time.Second,
		FetchMaxBytes: 32 << 20,
		Gateways: []string{
			"https://ipfs.io",
			"https://dweb.link",
			"https://cloudflare-ipfs.com",
		},

		CacheSMaxAge:              86400,
		CacheStaleWhileRevalidate: 604800,
	}
}

// Load reads the process environment on top of Default.
func Load() (Config, error) {
	return LoadFrom(os.LookupEnv)
}

// LoadFrom is Load with an injectable lookup, handy for tests.
func LoadFrom(lookup func(string) (string, bool)) (Config, error) {
	c := Default()
	var errs []error

	str := func(key string, dst *string) {
		if v, ok := lookup(key); ok && strings.TrimSpace(v) != "" {
			*dst = strings.TrimSpace(v)
		}
	}
	integer := func(key string, dst *int) {
		v, ok := lookup(key)
		if !ok || strings.TrimSpace(v) == "" {
			return
		}
		n, err := strconv.Atoi(strings.TrimSpace(v))
		if err != nil {
			errs = append(errs, fmt.Errorf("%s: %w", key, err))
			return
		}
		*dst = n
	}
	int64v := func(key string, dst *int64) {
		v, ok := lookup(key)
		if !ok || strings.TrimSpace(v) == "" {
			return
		}
		n, err := strconv.ParseInt(strings.TrimSpace(v), 10, 64)
		if err != nil {
			errs = append(errs, fmt.Errorf("%s: %w", key, err))
			return
		}
		*dst = n
	}
	boolean := func(key string, dst *bool) {
		v, ok := lookup(key)
		if !ok || strings.TrimSpace(v) == "" {
			return
		}
		b, err := strconv.ParseBool(strings.TrimSpace(v))
		if err != nil {
			errs = append(errs, fmt.Errorf("%s: %w", key, err))
			return
		}
		*dst = b
	}
	duration := func(key string, dst *time.Duration) {
		v, ok := lookup(key)
		if !ok || strings.TrimSpace(v) == "" {
			return
		}
		d, err := time.ParseDuration(strings.TrimSpace(v))
		if err != nil {
			errs = append(errs, fmt.Errorf("%s: %w", key, err))
			return
		}
		*dst = d
	}

	str("PORT", &c.Port)
	str("LOG_LEVEL", &c.LogLevel)
	str("LOG_FORMAT", &c.LogFormat)

	integer("PREVIEW_SIZE", &c.Size)
	integer("PREVIEW_WEBP_QUALITY", &c.WebPQuality)
	boolean("PREVIEW_WEBP_LOSSLESS", &c.WebPLossless)
	duration("PREVIEW_FRAME_DELAY", &c.FrameDelay)
	integer("PREVIEW_WORKERS", &c.Workers)

	integer("PREVIEW_MAX_FRAMES", &c.MaxFrames)
	int64v("PREVIEW_MAX_MEMORY_BYTES", &c.MaxMemoryBytes)
	integer("PREVIEW_MAX_SOURCE_PIXELS", &c.MaxSourcePixels)

	duration("FETCH_TIMEOUT", &c.FetchTimeout)
	int64v("FETCH_MAX_BYTES", &c.FetchMaxBytes)
	if v, ok := lookup("IPFS_GATEWAYS"); ok && strings.TrimSpace(v) != "" {
		c.Gateways = splitList(v)
	}

	integer("CACHE_S_MAXAGE", &c.CacheSMaxAge)
	integer("CACHE_STALE_WHILE_REVALIDATE", &c.CacheStaleWhileRevalidate)

	if len(errs) > 0 {
		return c, errors.Join(errs...)
	}
	return c, c.Validate()
}

// Validate checks value ranges.
func (c Config) Validate() error {
	switch {
	case c.Size <= 0:
		return fmt.Errorf("config: PREVIEW_SIZE must be positive, got %d", c.Size)
	case c.WebPQuality < 0 || c.WebPQuality > 100:
		return fmt.Errorf("config: PREVIEW_WEBP_QUALITY must be within 0-100, got %d", c.WebPQuality)
	case c.FrameDelay < 10*time.Millisecond:
		return fmt.Errorf("config: PREVIEW_FRAME_DELAY must be at least 10ms, got %s", c.FrameDelay)
	case c.Workers <= 0:
		return fmt.Errorf("config: PREVIEW_WORKERS must be positive, got %d", c.Workers)
	case c.MaxFrames <= 0:
		return fmt.Errorf("config: PREVIEW_MAX_FRAMES must be positive, got %d", c.MaxFrames)
	case c.MaxMemoryBytes <= 0:
		return fmt.Errorf("config: PREVIEW_MAX_MEMORY_BYTES must be positive, got %d", c.MaxMemoryBytes)
	case c.MaxSourcePixels <= 0:
		return fmt.Errorf("config: PREVIEW_MAX_SOURCE_PIXELS must be positive, got %d", c.MaxSourcePixels)
	case c.FetchTimeout <= 0:
		return fmt.Errorf("config: FETCH_TIMEOUT must be positive, got %s", c.FetchTimeout)
	case c.FetchMaxBytes <= 0:
		return fmt.Errorf("config: FETCH_MAX_BYTES must be positive, got %d", c.FetchMaxBytes)
	case len(c.Gateways) == 0:
		return errors.New("config: IPFS_GATEWAYS must name at least one gateway")
	case c.CacheSMaxAge < 0 || c.CacheStaleWhileRevalidate < 0:
		return errors.New("config: cache ages must not be negative")
	}
	switch c.LogFormat {
	case "text", "json":
	default:
		return fmt.Errorf("config: LOG_FORMAT must be text or json, got %q", c.LogFormat)
	}
	return nil
}

func splitList(s string) []string {
	var out []string
	for _, p := range strings.Split(s, ",") {
		if t := strings.TrimSpace(p); t != "" {
			out = append(out, t)
		}
	}
	return out
}
