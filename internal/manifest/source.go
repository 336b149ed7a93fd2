package manifest

import (
	"context"
	"fmt"
	"path"
	"strings"

	"github.com/livetemplate/lessonkit/internal/config"
)

// Source provides manifest entries.
type Source interface {
	// Name returns the source kind, e.g. "sqlite"
	Name() string

	// Lessons reads every entry. Order is not required.
	Lessons(ctx context.Context) ([]Lesson, error)

	// Close releases any resources held by the source
	Close() error
}

// SourceError wraps errors with source context
type SourceError struct {
	Source    string // Source kind (e.g., "postgres")
	Operation string // Operation that failed (e.g., "query", "connect")
	Err       error  // Underlying error
}

func (e *SourceError) Error() string {
	if e.Operation != "" {
		return fmt.Sprintf("manifest source %q %s failed: %v", e.Source, e.Operation, e.Err)
	}
	return fmt.Sprintf("manifest source %q: %v", e.Source, e.Err)
}

func (e *SourceError) Unwrap() error {
	return e.Err
}

// Open creates the source selected by cfg. contentDir is where lesson
// documents live; the dir source scans it.
func Open(cfg config.ManifestConfig, contentDir string) (Source, error) {
	switch cfg.Type {
	case "", "dir":
		return NewDirSource(contentDir), nil
	case "file":
		return NewFileSource(cfg.Path), nil
	case "sqlite":
		return NewSQLiteSource(cfg.Path, cfg.GetTable())
	case "postgres":
		return NewPostgresSource(cfg.GetDSN(), cfg.GetTable())
	}
	return nil, fmt.Errorf("unknown manifest type %q", cfg.Type)
}

// Load reads src into a Manifest. Entries without an asset URL point at
// "/content/<id>.json".
func Load(ctx context.Context, src Source) (*Manifest, error) {
	lessons, err := src.Lessons(ctx)
	if err != nil {
		return nil, err
	}
	for i := range lessons {
		if lessons[i].AssetURL == "" {
			lessons[i].AssetURL = ContentURL(lessons[i].ID + ".json")
		}
	}
	return New(lessons), nil
}

// ContentURL is the URL under which a file of the content dir is served.
func ContentURL(file string) string {
	return path.Join("/content", strings.TrimPrefix(file, "/"))
}

// isValidIdentifier checks that a table name is safe to interpolate.
func isValidIdentifier(name string) bool {
	if name == "" || len(name) > 64 {
		return false
	}
	for i, c := range name {
		if i == 0 {
			if !((c >= 'a' && c <= 'z') || (c >= 'A' && c <= 'Z') || c == '_') {
				return false
			}
		} else {
			if !((c >= 'a' && c <= 'z') || (c >= 'A' && c <= 'Z') || (c >= '0' && c <= '9') || c == '_') {
				return false
			}
		}
	}
	return true
}
