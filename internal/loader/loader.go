// Package loader fetches lesson documents. A lesson may be reachable under
// several URLs; they are tried in a fixed order and the first one that
// returns JSON wins.
package loader

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"os"
	"path/filepath"
	"strings"
	"sync"
	"time"

	"go.uber.org/zap"

	"github.com/livetemplate/lessonkit/internal/cache"
	"github.com/livetemplate/lessonkit/internal/manifest"
	"github.com/livetemplate/lessonkit/internal/security"
)

// maxDocumentSize caps the size of a fetched lesson document.
const maxDocumentSize = 10 << 20

// FetchError describes one failed candidate.
type FetchError struct {
	URL        string
	StatusCode int // 0 when no HTTP response was received
	Err        error
}

func (e *FetchError) Error() string {
	if e.StatusCode != 0 {
		return fmt.Sprintf("fetch %s: HTTP %d", e.URL, e.StatusCode)
	}
	return fmt.Sprintf("fetch %s: %v", e.URL, e.Err)
}

func (e *FetchError) Unwrap() error {
	return e.Err
}

// LoadError is returned when every candidate failed.
type LoadError struct {
	LessonID string
	Attempts []*FetchError
}

func (e *LoadError) Error() string {
	if len(e.Attempts) == 0 {
		return fmt.Sprintf("lesson %q: no location to load from", e.LessonID)
	}
	parts := make([]string, len(e.Attempts))
	for i, a := range e.Attempts {
		parts[i] = a.Error()
	}
	return fmt.Sprintf("lesson %q could not be loaded: %s", e.LessonID, strings.Join(parts, "; "))
}

// Unwrap returns the individual attempt errors.
func (e *LoadError) Unwrap() []error {
	errs := make([]error, len(e.Attempts))
	for i, a := range e.Attempts {
		errs[i] = a
	}
	return errs
}

// ErrNotJSON is the cause of a FetchError whose body did not parse.
var ErrNotJSON = errors.New("response is not JSON")

// Options configure a Loader.
type Options struct {
	// ContentDir serves "/content/..." and relative candidate URLs.
	ContentDir string

	// FallbackID is tried after the requested lesson and its manifest asset.
	FallbackID string

	// Client is used for http and https candidates. Defaults to a client
	// without a timeout; requests end with the caller's context.
	Client *http.Client

	// Cache stores fetched documents for CacheTTL. Nil disables caching.
	Cache    cache.Cache
	CacheTTL time.Duration

	// URLPolicy guards remote candidates.
	URLPolicy security.URLPolicy

	Logger *zap.Logger
}

// Loader resolves lesson ids to documents.
type Loader struct {
	opts   Options
	logger *zap.Logger

	mu       sync.RWMutex
	manifest *manifest.Manifest
}

// New creates a Loader. m may be nil; it can be replaced later with
// SetManifest.
func New(m *manifest.Manifest, opts Options) *Loader {
	if opts.Client == nil {
		opts.Client = &http.Client{}
	}
	logger := opts.Logger
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Loader{opts: opts, logger: logger.Named("loader"), manifest: m}
}

// Manifest returns the current manifest.
func (l *Loader) Manifest() *manifest.Manifest {
	l.mu.RLock()
	defer l.mu.RUnlock()
	return l.manifest
}

// SetManifest replaces the manifest, e.g. after the content dir changed.
func (l *Loader) SetManifest(m *manifest.Manifest) {
	l.mu.Lock()
	l.manifest = m
	l.mu.Unlock()
}

// FallbackID returns the configured fallback lesson.
func (l *Loader) FallbackID() string {
	return l.opts.FallbackID
}

// Candidates lists the URLs tried for lessonID: the lesson's own content
// file, its manifest asset and the fallback lesson's content file, without
// duplicates.
func (l *Loader) Candidates(lessonID string) []string {
	var out []string
	add := func(u string) {
		if u == "" {
			return
		}
		for _, seen := range out {
			if seen == u {
				return
			}
		}
		out = append(out, u)
	}

	if lessonID != "" {
		add(manifest.ContentURL(lessonID + ".json"))
		add(l.Manifest().ResolveAsset(lessonID))
	}
	if l.opts.FallbackID != "" {
		add(manifest.ContentURL(l.opts.FallbackID + ".json"))
	}
	return out
}

// Fetch loads the first candidate that yields JSON. source is the URL it
// came from. Every failure is logged before the next candidate is tried.
func (l *Loader) Fetch(ctx context.Context, lessonID string) (source string, body []byte, err error) {
	loadErr := &LoadError{LessonID: lessonID}
	for _, candidate := range l.Candidates(lessonID) {
		if err := ctx.Err(); err != nil {
			return "", nil, err
		}
		body, err := l.fetchCached(ctx, candidate)
		if err == nil {
			l.logger.Debug("lesson loaded", zap.String("lesson", lessonID), zap.String("url", candidate))
			return candidate, body, nil
		}

		var fe *FetchError
		if !errors.As(err, &fe) {
			fe = &FetchError{URL: candidate, Err: err}
		}
		loadErr.Attempts = append(loadErr.Attempts, fe)
		l.logger.Warn("lesson candidate failed",
			zap.String("lesson", lessonID), zap.String("url", candidate), zap.Error(err))
	}
	return "", nil, loadErr
}

func (l *Loader) fetchCached(ctx context.Context, candidate string) ([]byte, error) {
	if l.opts.Cache != nil && l.opts.CacheTTL > 0 {
		data, found, err := l.opts.Cache.Get(ctx, candidate)
		if err != nil {
			l.logger.Warn("cache read failed", zap.String("url", candidate), zap.Error(err))
		} else if found {
			return data, nil
		}
	}

	data, err := l.fetch(ctx, candidate)
	if err != nil {
		return nil, err
	}
	if !json.Valid(data) {
		return nil, &FetchError{URL: candidate, Err: ErrNotJSON}
	}

	if l.opts.Cache != nil && l.opts.CacheTTL > 0 {
		if err := l.opts.Cache.Set(ctx, candidate, data, l.opts.CacheTTL); err != nil {
			l.logger.Warn("cache write failed", zap.String("url", candidate), zap.Error(err))
		}
	}
	return data, nil
}

func (l *Loader) fetch(ctx context.Context, candidate string) ([]byte, error) {
	u, err := url.Parse(candidate)
	if err != nil {
		return nil, &FetchError{URL: candidate, Err: err}
	}

	switch u.Scheme {
	case "http", "https":
		return l.fetchHTTP(ctx, candidate)
	case "file":
		return l.readFile(candidate, u.Path, true)
	case "":
		return l.readFile(candidate, strings.TrimPrefix(u.Path, "/content/"), false)
	}
	return nil, &FetchError{URL: candidate, Err: fmt.Errorf("unsupported scheme %q", u.Scheme)}
}

func (l *Loader) fetchHTTP(ctx context.Context, candidate string) ([]byte, error) {
	if err := l.opts.URLPolicy.Check(candidate); err != nil {
		return nil, &FetchError{URL: candidate, Err: err}
	}
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, candidate, nil)
	if err != nil {
		return nil, &FetchError{URL: candidate, Err: err}
	}
	req.Header.Set("Accept", "application/json")

	resp, err := l.opts.Client.Do(req)
	if err != nil {
		return nil, &FetchError{URL: candidate, Err: err}
	}
	defer resp.Body.Close()

	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		return nil, &FetchError{URL: candidate, StatusCode: resp.StatusCode, Err: fmt.Errorf("%s", resp.Status)}
	}
	data, err := io.ReadAll(io.LimitReader(resp.Body, maxDocumentSize))
	if err != nil {
		return nil, &FetchError{URL: candidate, Err: err}
	}
	return data, nil
}

// readFile reads rel from the content dir. file:// URLs carry an absolute
// path that must still lie inside the content dir.
func (l *Loader) readFile(candidate, rel string, absolute bool) ([]byte, error) {
	if l.opts.ContentDir == "" {
		return nil, &FetchError{URL: candidate, Err: errors.New("no content directory configured")}
	}
	path, err := l.contentPath(rel, absolute)
	if err != nil {
		return nil, &FetchError{URL: candidate, Err: err}
	}
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, &FetchError{URL: candidate, Err: err}
	}
	return data, nil
}

func (l *Loader) contentPath(rel string, absolute bool) (string, error) {
	if !absolute {
		return security.ResolveUnder(l.opts.ContentDir, rel)
	}
	root, err := filepath.Abs(l.opts.ContentDir)
	if err != nil {
		return "", err
	}
	inside, err := filepath.Rel(root, filepath.FromSlash(rel))
	if err != nil {
		return "", err
	}
	return security.ResolveUnder(root, filepath.ToSlash(inside))
}

// Invalidate drops a cached document, e.g. after its file changed.
func (l *Loader) Invalidate(ctx context.Context, candidate string) {
	if l.opts.Cache == nil {
		return
	}
	if err := l.opts.Cache.Invalidate(ctx, candidate); err != nil {
		l.logger.Warn("cache invalidate failed", zap.String("url", candidate), zap.Error(err))
	}
}

// InvalidateAll empties the document cache.
func (l *Loader) InvalidateAll(ctx context.Context) {
	if l.opts.Cache == nil {
		return
	}
	if err := l.opts.Cache.InvalidateAll(ctx); err != nil {
		l.logger.Warn("cache flush failed", zap.Error(err))
	}
}
