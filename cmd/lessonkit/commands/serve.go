package commands

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"path/filepath"
	"syscall"
	"time"

	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"github.com/livetemplate/lessonkit/internal/config"
	"github.com/livetemplate/lessonkit/internal/logging"
	"github.com/livetemplate/lessonkit/internal/server"
)

type serveOptions struct {
	configPath string
	port       int
	host       string
	watch      bool
}

func newServeCommand() *cobra.Command {
	var opts serveOptions
	cmd := &cobra.Command{
		Use:   "serve [directory]",
		Short: "Start the lesson server",
		Long: `Serves the lessons in a directory. The directory may hold a lessonkit.yaml
or lessonkit.toml; without one the defaults are used and lessons are read
from its content/ subdirectory.`,
		Args: cobra.MaximumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			dir := "."
			if len(args) > 0 {
				dir = args[0]
			}
			return runServe(cmd, dir, opts, cmd.Flags().Changed("watch"))
		},
	}
	cmd.Flags().StringVarP(&opts.configPath, "config", "c", "", "config file (default: lessonkit.yaml in the directory)")
	cmd.Flags().IntVarP(&opts.port, "port", "p", 0, "port to listen on")
	cmd.Flags().StringVar(&opts.host, "host", "", "host to bind")
	cmd.Flags().BoolVarP(&opts.watch, "watch", "w", false, "reload pages when lesson files change")
	return cmd
}

// loadServeConfig reads the configuration for dir and applies flag overrides.
func loadServeConfig(dir string, opts serveOptions, watchSet bool) (*config.Config, error) {
	var (
		cfg *config.Config
		err error
	)
	if opts.configPath != "" {
		cfg, err = config.Load(opts.configPath)
		if err == nil {
			if !filepath.IsAbs(cfg.Content.Dir) {
				cfg.Content.Dir = filepath.Join(dir, cfg.Content.Dir)
			}
			if cfg.Manifest.Path != "" && !filepath.IsAbs(cfg.Manifest.Path) {
				cfg.Manifest.Path = filepath.Join(dir, cfg.Manifest.Path)
			}
		}
	} else {
		cfg, err = config.LoadFromDir(dir)
	}
	if err != nil {
		return nil, fmt.Errorf("failed to load config: %w", err)
	}

	// CLI flags override config
	if opts.port != 0 {
		cfg.Server.Port = opts.port
	}
	if opts.host != "" {
		cfg.Server.Host = opts.host
	}
	if watchSet {
		cfg.Features.HotReload = opts.watch
	}
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return cfg, nil
}

func runServe(cmd *cobra.Command, dir string, opts serveOptions, watchSet bool) error {
	if _, err := os.Stat(dir); os.IsNotExist(err) {
		return fmt.Errorf("directory does not exist: %s", dir)
	}
	absDir, err := filepath.Abs(dir)
	if err != nil {
		return fmt.Errorf("failed to get absolute path: %w", err)
	}
	if err := loadDotEnv(filepath.Join(absDir, ".env")); err != nil {
		return err
	}

	cfg, err := loadServeConfig(absDir, opts, watchSet)
	if err != nil {
		return err
	}

	level := cfg.Log.Level
	if cfg.Server.Debug {
		level = "debug"
	}
	logger := logging.New(logging.Options{File: cfg.Log.File, Level: level, JSON: cfg.Log.Format == "json"})
	defer logger.Sync()
	zap.ReplaceGlobals(logger)

	ctx, stop := signal.NotifyContext(cmd.Context(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	app, err := server.Open(ctx, cfg, logger)
	if err != nil {
		return err
	}
	defer app.Close()

	if cfg.Features.HotReload {
		if err := app.EnableWatch(); err != nil {
			return fmt.Errorf("failed to enable watch mode: %w", err)
		}
	}

	httpServer := &http.Server{
		Addr:              cfg.Server.Addr(),
		Handler:           app.Handler(ctx),
		ReadHeaderTimeout: 10 * time.Second,
	}

	out := cmd.OutOrStdout()
	infoColor.Fprintf(out, "📚 lessonkit server\n\n")
	fmt.Fprintf(out, "Serving:  %s\n", cfg.Content.Dir)
	fmt.Fprintf(out, "Manifest: %s\n", cfg.Manifest.Type)
	okColor.Fprintf(out, "\n🌐 Server running at http://%s\n", cfg.Server.Addr())
	if cfg.Features.Editor {
		fmt.Fprintf(out, "✏️  Editor at /editor/{lesson}\n")
	}
	if cfg.IsAPIEnabled() {
		fmt.Fprintf(out, "🔌 JSON API at /api/\n")
	}
	if cfg.Features.HotReload {
		fmt.Fprintf(out, "👀 Watch mode enabled - pages reload when lessons change\n")
	}
	fmt.Fprintf(out, "Press Ctrl+C to stop\n\n")

	errCh := make(chan error, 1)
	go func() {
		errCh <- httpServer.ListenAndServe()
	}()

	select {
	case err := <-errCh:
		if errors.Is(err, http.ErrServerClosed) {
			return nil
		}
		return fmt.Errorf("server error: %w", err)
	case <-ctx.Done():
	}

	logger.Info("shutting down")
	shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	return httpServer.Shutdown(shutdownCtx)
}
