package main

import (
	"context"
	"errors"
	"log"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/gin-gonic/gin"

	"github.com/youruser/traitpreview/internal/api"
	"github.com/youruser/traitpreview/internal/config"
	"github.com/youruser/traitpreview/internal/gateway"
	imagepkg "github.com/youruser/traitpreview/internal/image"
	"github.com/youruser/traitpreview/internal/logging"
	"github.com/youruser/traitpreview/internal/preview"
	"github.com/youruser/traitpreview/internal/source"
)

func main() {
	cfg, err := config.Load()
	if err != nil {
		log.Fatal("invalid configuration: ", err)
	}
	logger := logging.New(os.Stderr, cfg.LogLevel, cfg.LogFormat)
	slog.SetDefault(logger)

	gw, err := gateway.NewIPFS(cfg.Gateways)
	if err != nil {
		log.Fatal(err)
	}
	sources := source.New(gw, source.Options{
		Client:   &http.Client{Transport: http.DefaultTransport},
		Timeout:  cfg.FetchTimeout,
		MaxBytes: cfg.FetchMaxBytes,
		Logger:   logger.With("component", "source"),
	})
	compositor := imagepkg.NewCompositor(imagepkg.Options{
		Size:         cfg.Size,
		WebPQuality:  cfg.WebPQuality,
		WebPLossless: cfg.WebPLossless,
		FrameDelay:   cfg.FrameDelay,
		Workers:      cfg.Workers,
		Limits: imagepkg.Limits{
			MaxFrames:       cfg.MaxFrames,
			MaxMemoryBytes:  cfg.MaxMemoryBytes,
			MaxSourcePixels: cfg.MaxSourcePixels,
		},
	}, logger.With("component", "compositor"))
	engine := preview.NewEngine(sources, compositor, logger.With("component", "preview"))

	r := gin.Default()
	api.RegisterRoutes(r, api.NewHandler(engine, api.CachePolicy{
		SMaxAge:              cfg.CacheSMaxAge,
		StaleWhileRevalidate: cfg.CacheStaleWhileRevalidate,
	}, logger.With("component", "api")))

	srv := &http.Server{
		Addr:              ":" + cfg.Port,
		Handler:           r,
		ReadHeaderTimeout: 10 * time.Second,
	}

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()
	go func() {
		logger.Info("starting server", "addr", "http://localhost:"+cfg.Port, "size", cfg.Size, "gateways", cfg.Gateways)
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			log.Fatal(err)
		}
	}()

	<-ctx.Done()
	shutdownCtx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer cancel()
	if err := srv.Shutdown(shutdownCtx); err != nil {
		logger.Error("shutdown", "err", err)
	}
}
