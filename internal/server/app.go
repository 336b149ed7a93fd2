package server

import (
	"context"
	"errors"
	"fmt"

	"go.uber.org/zap"

	"github.com/livetemplate/lessonkit/internal/blocks"
	"github.com/livetemplate/lessonkit/internal/cache"
	"github.com/livetemplate/lessonkit/internal/config"
	"github.com/livetemplate/lessonkit/internal/loader"
	"github.com/livetemplate/lessonkit/internal/manifest"
)

// App is a Server together with the manifest source and document cache it
// was built from.
type App struct {
	*Server
	source manifest.Source
	cache  cache.Cache
}

// Open wires a server for cfg: it opens the manifest source, reads the
// manifest, creates the document cache and registers the built-in blocks.
func Open(ctx context.Context, cfg *config.Config, logger *zap.Logger) (*App, error) {
	src, err := manifest.Open(cfg.Manifest, cfg.Content.Dir)
	if err != nil {
		return nil, fmt.Errorf("failed to open manifest: %w", err)
	}
	m, err := manifest.Load(ctx, src)
	if err != nil {
		src.Close()
		return nil, fmt.Errorf("failed to read manifest: %w", err)
	}

	docs, err := cache.New(ctx, cfg.Cache.Type, cfg.Cache.RedisURL)
	if err != nil {
		src.Close()
		return nil, fmt.Errorf("failed to create cache: %w", err)
	}

	ld := loader.New(m, loader.Options{
		ContentDir: cfg.Content.Dir,
		FallbackID: cfg.Content.FallbackID,
		Cache:      docs,
		CacheTTL:   cfg.Cache.GetCacheTTL(),
		Logger:     logger,
	})
	srv, err := New(Options{
		Config:   cfg,
		Registry: blocks.Registry(),
		Loader:   ld,
		Source:   src,
		Logger:   logger,
	})
	if err != nil {
		docs.Close()
		src.Close()
		return nil, err
	}
	return &App{Server: srv, source: src, cache: docs}, nil
}

// Close stops the server and releases the cache and manifest source.
func (a *App) Close() error {
	return errors.Join(a.Server.Close(), a.cache.Close(), a.source.Close())
}
