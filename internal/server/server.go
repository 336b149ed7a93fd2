// Package server serves lesson playback, the lesson editor, the JSON API
// and live reload over HTTP.
package server

import (
	"context"
	"errors"
	"fmt"
	"html/template"
	"net/http"
	"net/url"
	"path/filepath"
	"regexp"
	"strings"
	"sync"

	"go.uber.org/zap"

	"github.com/livetemplate/lessonkit"
	"github.com/livetemplate/lessonkit/internal/assets"
	"github.com/livetemplate/lessonkit/internal/config"
	"github.com/livetemplate/lessonkit/internal/editor"
	"github.com/livetemplate/lessonkit/internal/loader"
	"github.com/livetemplate/lessonkit/internal/manifest"
	"github.com/livetemplate/lessonkit/internal/render"
	"github.com/livetemplate/lessonkit/internal/security"
	"github.com/livetemplate/lessonkit/plugin"
)

// maxRequestBodySize limits the size of incoming request bodies (1MB)
const maxRequestBodySize = 1 << 20

// lessonIDPattern accepts the ids the manifest sources produce, including
// nested ids like "unit-1/lesson-002".
var lessonIDPattern = regexp.MustCompile(`^[A-Za-z0-9][A-Za-z0-9._-]*(/[A-Za-z0-9][A-Za-z0-9._-]*)*$`)

func validLessonID(id string) bool {
	return lessonIDPattern.MatchString(id) && !strings.Contains(id, "..")
}

// Options configure a Server.
type Options struct {
	Config   *config.Config
	Registry *plugin.Registry
	Loader   *loader.Loader

	// Source is re-read when the content changes. When it implements
	// manifest.Writer, lesson completion can be toggled from the page.
	Source manifest.Source

	Logger *zap.Logger
}

// Server is the lessonkit HTTP server.
type Server struct {
	config   *config.Config
	registry *plugin.Registry
	loader   *loader.Loader
	source   manifest.Source
	logger   *zap.Logger

	lessons  *render.LessonRenderer
	pages    *template.Template
	sessions *editor.Sessions
	hub      *Hub
	watcher  *Watcher

	loadMu   sync.Mutex
	loadErrs map[string]error
}

// New creates a server. Config and Registry are required.
func New(opts Options) (*Server, error) {
	if opts.Config == nil {
		return nil, errors.New("server: config is required")
	}
	if opts.Registry == nil {
		return nil, errors.New("server: block registry is required")
	}
	logger := opts.Logger
	if logger == nil {
		logger = zap.NewNop()
	}
	ld := opts.Loader
	if ld == nil {
		ld = loader.New(nil, loader.Options{
			ContentDir: opts.Config.Content.Dir,
			FallbackID: opts.Config.Content.FallbackID,
			Logger:     logger,
		})
	}

	pages, err := assets.Templates(template.FuncMap{
		"add":  func(a, b int) int { return a + b },
		"join": strings.Join,
	})
	if err != nil {
		return nil, fmt.Errorf("parse page templates: %w", err)
	}

	s := &Server{
		config:   opts.Config,
		registry: opts.Registry,
		loader:   ld,
		source:   opts.Source,
		logger:   logger,
		lessons:  render.NewLessonRenderer(render.NewBlockRenderer(opts.Registry, logger.Named("render"))),
		pages:    pages,
		hub:      NewHub(logger.Named("ws")),
		loadErrs: make(map[string]error),
	}
	s.sessions = editor.NewSessions(s.newEditor)
	return s, nil
}

func (s *Server) newEditor(lessonID string) *editor.Editor {
	return editor.New(s.registry, lessonID,
		editor.WithLogger(s.logger.Named("editor")),
		editor.WithFallbackID(s.loader.FallbackID()),
		editor.WithOnChange(func(id string) {
			s.hub.Broadcast(ReloadMessage{Action: "reload", LessonID: id, Scope: scopeEditor})
		}),
	)
}

// Hub returns the live-reload hub.
func (s *Server) Hub() *Hub {
	return s.hub
}

// Sessions returns the editor sessions.
func (s *Server) Sessions() *editor.Sessions {
	return s.sessions
}

// Handler builds the routing table. ctx bounds background work started
// by the middleware, such as the rate limiter's cleanup loop.
func (s *Server) Handler(ctx context.Context) http.Handler {
	mux := http.NewServeMux()

	mux.HandleFunc("GET /{$}", s.handleIndex)
	mux.HandleFunc("GET /lessons/{id...}", s.handleLesson)
	mux.HandleFunc("POST /progress/{id...}", s.handleProgress)
	mux.HandleFunc("GET /content/{file...}", s.handleContent)
	mux.Handle("GET /assets/", http.StripPrefix("/assets/", http.FileServerFS(assets.ClientFS())))
	mux.Handle("GET /ws", s.hub)

	if s.config.Features.Editor {
		mux.HandleFunc("GET /editor/{path...}", s.handleEditorPage)
		mux.HandleFunc("POST /editor/{path...}", s.handleEditorAction)
	}

	if s.config.IsAPIEnabled() {
		api := http.NewServeMux()
		api.HandleFunc("GET /api/blocks", s.apiBlocks)
		api.HandleFunc("POST /api/validate", s.apiValidate)
		api.HandleFunc("GET /api/lessons", s.apiLessons)
		api.HandleFunc("GET /api/lessons/{id...}", s.apiLesson)
		if s.config.Features.Editor {
			api.HandleFunc("GET /api/editor/{path...}", s.apiEditorGet)
			api.HandleFunc("POST /api/editor/{path...}", s.apiEditorAction)
		}

		limiter := newClientLimiter(s.config.API.GetRateLimitRPS(), s.config.API.GetRateLimitBurst(),
			s.config.API.GetMaxTrackedIPs(), s.logger.Named("ratelimit"))
		limiter.run(ctx)
		cors := newCORSPolicy(s.config.API.GetCORSOrigins())
		mux.Handle("/api/", cors.wrap(limiter.wrap(api)))
	}

	return securityHeaders(WithCompression(mux))
}

// ReloadManifest re-reads the manifest source and hands it to the loader.
func (s *Server) ReloadManifest(ctx context.Context) error {
	if s.source == nil {
		return nil
	}
	m, err := manifest.Load(ctx, s.source)
	if err != nil {
		return err
	}
	s.loader.SetManifest(m)
	return nil
}

// EnableWatch starts watching the content directory. Changed lesson files
// are evicted from the document cache, the manifest is reloaded and
// connected pages are told to refresh.
func (s *Server) EnableWatch() error {
	var extra []string
	if s.config.Manifest.Type == "file" || s.config.Manifest.Type == "sqlite" {
		extra = append(extra, s.config.Manifest.Path)
	}
	w, err := NewWatcher(s.config.Content.Dir, extra, s.onFileChange, s.logger.Named("watch"))
	if err != nil {
		return fmt.Errorf("failed to create watcher: %w", err)
	}
	s.watcher = w
	s.watcher.Start()
	s.logger.Info("file watcher started", zap.String("dir", s.config.Content.Dir))
	return nil
}

func (s *Server) onFileChange(path string) error {
	ctx := context.Background()

	var lessonID string
	if filepath.IsAbs(path) {
		// Manifest file outside the content dir.
		s.loader.InvalidateAll(ctx)
	} else {
		lessonID = strings.TrimSuffix(path, ".json")
		s.loader.Invalidate(ctx, manifest.ContentURL(path))
		if asset := s.loader.Manifest().ResolveAsset(lessonID); asset != "" && !isRemote(asset) {
			s.loader.Invalidate(ctx, asset)
		}
	}

	if err := s.ReloadManifest(ctx); err != nil {
		return fmt.Errorf("failed to reload manifest: %w", err)
	}
	s.hub.Broadcast(ReloadMessage{Action: "reload", LessonID: lessonID})
	return nil
}

func isRemote(u string) bool {
	parsed, err := url.Parse(u)
	return err == nil && (parsed.Scheme == "http" || parsed.Scheme == "https")
}

// StopWatch stops the file watcher if it's running.
func (s *Server) StopWatch() error {
	if s.watcher != nil {
		return s.watcher.Stop()
	}
	return nil
}

// Close stops the watcher and disconnects live-reload clients.
func (s *Server) Close() error {
	err := s.StopWatch()
	s.hub.Close()
	return err
}

// session returns the editor for lessonID, loading the lesson the first
// time it is opened. loadErr is the outcome of the last load; err is set
// only when ctx ended while another request was still loading the lesson.
func (s *Server) session(ctx context.Context, lessonID string) (ed *editor.Editor, loadErr, err error) {
	ed, err = s.sessions.Open(ctx, lessonID, func(ed *editor.Editor) {
		s.loadSession(ctx, ed)
	})
	if err != nil {
		return nil, nil, err
	}
	return ed, s.loadError(lessonID), nil
}

func (s *Server) loadSession(ctx context.Context, ed *editor.Editor) error {
	// A client that disconnects mid-load should not leave a half-opened session.
	_, err := ed.Load(context.WithoutCancel(ctx), s.loader)
	s.loadMu.Lock()
	if err != nil {
		s.loadErrs[ed.LessonID()] = err
	} else {
		delete(s.loadErrs, ed.LessonID())
	}
	s.loadMu.Unlock()
	if err != nil {
		s.logger.Warn("lesson could not be opened for editing", zap.String("lesson", ed.LessonID()), zap.Error(err))
	}
	return err
}

func (s *Server) loadError(lessonID string) error {
	s.loadMu.Lock()
	defer s.loadMu.Unlock()
	return s.loadErrs[lessonID]
}

// loadLesson loads a lesson for playback. It goes through the same lenient
// path as the editor, so a document with an unusable shell but readable
// sections still plays.
func (s *Server) loadLesson(ctx context.Context, lessonID string) (editor.State, lessonkit.ValidationResult, error) {
	ed := editor.New(s.registry, lessonID, editor.WithLogger(s.logger.Named("playback")))
	res, err := ed.Load(ctx, s.loader)
	if err != nil {
		return editor.State{}, res, err
	}
	return ed.Snapshot(), res, nil
}

// publicLoadError is the load error as shown to players. Fetch failures
// carry file paths and upstream URLs, which only go to the log.
func publicLoadError(lessonID string, err error) string {
	var loadErr *loader.LoadError
	if errors.As(err, &loadErr) {
		return fmt.Sprintf("lesson %q could not be loaded", lessonID)
	}
	return err.Error()
}

// loadStatus maps a load error to an HTTP status.
func loadStatus(err error) int {
	var loadErr *loader.LoadError
	switch {
	case errors.As(err, &loadErr):
		return http.StatusBadGateway
	case errors.Is(err, editor.ErrInvalidDocument):
		return http.StatusUnprocessableEntity
	case errors.Is(err, context.Canceled), errors.Is(err, context.DeadlineExceeded):
		return http.StatusGatewayTimeout
	}
	return http.StatusUnprocessableEntity
}

// handleContent serves lesson JSON files from the content directory.
func (s *Server) handleContent(w http.ResponseWriter, r *http.Request) {
	file := r.PathValue("file")
	if filepath.Ext(file) != ".json" {
		http.NotFound(w, r)
		return
	}
	path, err := security.ResolveUnder(s.config.Content.Dir, file)
	if err != nil {
		http.NotFound(w, r)
		return
	}
	for _, part := range strings.Split(file, "/") {
		if strings.HasPrefix(part, ".") {
			http.NotFound(w, r)
			return
		}
	}
	w.Header().Set("Content-Type", "application/json")
	w.Header().Set("Cache-Control", "no-cache")
	http.ServeFile(w, r, path)
}
