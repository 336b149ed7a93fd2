// Package embedded serves lessons bundled into a binary with go:embed.
//
// Example usage:
//
//	//go:embed course
//	var courseFS embed.FS
//
//	func main() {
//	    ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt)
//	    defer stop()
//	    if err := embedded.Serve(ctx, courseFS, "course", "localhost:8080"); err != nil {
//	        log.Fatal(err)
//	    }
//	}
package embedded

import (
	"context"
	"errors"
	"fmt"
	"io/fs"
	"net"
	"net/http"
	"os"
	"path/filepath"
	"time"

	"go.uber.org/zap"

	"github.com/livetemplate/lessonkit/internal/config"
	"github.com/livetemplate/lessonkit/internal/security"
	"github.com/livetemplate/lessonkit/internal/server"
)

// Serve serves the lessons under rootPath in contentFS on addr until ctx is
// canceled. rootPath may hold a lessonkit.yaml; without one the defaults
// apply and lessons are read from its content/ directory.
func Serve(ctx context.Context, contentFS fs.FS, rootPath string, addr string) error {
	return ServeWithOptions(ctx, Options{
		ContentFS: contentFS,
		RootPath:  rootPath,
		Addr:      addr,
	})
}

// Options provides configuration for the embedded server.
type Options struct {
	// ContentFS holds the lesson files and optional config.
	ContentFS fs.FS

	// RootPath is the path prefix within ContentFS (e.g., "course").
	RootPath string

	// Addr is the address to listen on (e.g., "localhost:8080").
	Addr string

	// Config overrides the embedded config. Its content dir is resolved
	// against the extracted files when relative.
	Config *config.Config

	// Logger defaults to a no-op logger.
	Logger *zap.Logger

	// OnReady is called with the listen address once connections are accepted.
	OnReady func(addr string)
}

// ServeWithOptions starts a server with more configuration options.
func ServeWithOptions(ctx context.Context, opts Options) error {
	// The loader and watcher work on real files.
	tmpDir, err := os.MkdirTemp("", "lessonkit-embedded-*")
	if err != nil {
		return fmt.Errorf("failed to create temp directory: %w", err)
	}
	defer os.RemoveAll(tmpDir)

	if err := extractFS(opts.ContentFS, opts.RootPath, tmpDir); err != nil {
		return fmt.Errorf("failed to extract embedded content: %w", err)
	}

	cfg, err := resolveConfig(opts.Config, tmpDir)
	if err != nil {
		return err
	}
	// Embedded content never changes.
	cfg.Features.HotReload = false

	logger := opts.Logger
	if logger == nil {
		logger = zap.NewNop()
	}

	app, err := server.Open(ctx, cfg, logger)
	if err != nil {
		return err
	}
	defer app.Close()

	ln, err := net.Listen("tcp", opts.Addr)
	if err != nil {
		return fmt.Errorf("failed to listen on %s: %w", opts.Addr, err)
	}
	httpServer := &http.Server{
		Handler:           app.Handler(ctx),
		ReadHeaderTimeout: 10 * time.Second,
	}

	errCh := make(chan error, 1)
	go func() {
		errCh <- httpServer.Serve(ln)
	}()
	if opts.OnReady != nil {
		opts.OnReady(ln.Addr().String())
	}

	select {
	case err := <-errCh:
		if errors.Is(err, http.ErrServerClosed) {
			return nil
		}
		return fmt.Errorf("server error: %w", err)
	case <-ctx.Done():
	}

	logger.Info("shutting down embedded server")
	shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	return httpServer.Shutdown(shutdownCtx)
}

func resolveConfig(override *config.Config, dir string) (*config.Config, error) {
	if override == nil {
		cfg, err := config.LoadFromDir(dir)
		if err != nil {
			return nil, fmt.Errorf("failed to load config: %w", err)
		}
		return cfg, nil
	}
	cfg := *override
	if !filepath.IsAbs(cfg.Content.Dir) {
		cfg.Content.Dir = filepath.Join(dir, cfg.Content.Dir)
	}
	if cfg.Manifest.Path != "" && !filepath.IsAbs(cfg.Manifest.Path) {
		cfg.Manifest.Path = filepath.Join(dir, cfg.Manifest.Path)
	}
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return &cfg, nil
}

// extractFS copies the files under rootPath in contentFS into destDir.
func extractFS(contentFS fs.FS, rootPath string, destDir string) error {
	srcFS := contentFS
	if rootPath != "" && rootPath != "." {
		sub, err := fs.Sub(contentFS, rootPath)
		if err != nil {
			return fmt.Errorf("failed to get sub-filesystem at %q: %w", rootPath, err)
		}
		srcFS = sub
	}

	return fs.WalkDir(srcFS, ".", func(path string, d fs.DirEntry, err error) error {
		if err != nil {
			return err
		}

		destPath, err := security.ResolveUnder(destDir, path)
		if err != nil {
			return err
		}
		if d.IsDir() {
			return os.MkdirAll(destPath, 0755)
		}

		content, err := fs.ReadFile(srcFS, path)
		if err != nil {
			return fmt.Errorf("failed to read embedded file %q: %w", path, err)
		}
		if err := os.MkdirAll(filepath.Dir(destPath), 0755); err != nil {
			return err
		}
		return os.WriteFile(destPath, content, 0644)
	})
}
