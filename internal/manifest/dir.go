package manifest

import (
	"context"
	"encoding/json"
	"fmt"
	"io/fs"
	"os"
	"path/filepath"
	"slices"
	"strings"
)

// DirSource discovers lessons from the *.json files of a directory tree.
// The lesson id is the file path without extension, the title is read from
// the document and the order follows the sorted file paths.
type DirSource struct {
	rootDir string
}

// NewDirSource creates a source that scans rootDir.
func NewDirSource(rootDir string) *DirSource {
	return &DirSource{rootDir: rootDir}
}

// Name implements Source.
func (s *DirSource) Name() string { return "dir" }

// Close implements Source.
func (s *DirSource) Close() error { return nil }

// Lessons implements Source.
func (s *DirSource) Lessons(ctx context.Context) ([]Lesson, error) {
	var files []string
	err := filepath.WalkDir(s.rootDir, func(path string, d fs.DirEntry, err error) error {
		if err != nil {
			return err
		}
		if err := ctx.Err(); err != nil {
			return err
		}

		name := d.Name()
		if d.IsDir() {
			// Skip hidden directories (starting with _ or .)
			if path != s.rootDir && (strings.HasPrefix(name, "_") || strings.HasPrefix(name, ".")) {
				return filepath.SkipDir
			}
			return nil
		}
		if filepath.Ext(name) != ".json" || strings.HasPrefix(name, "_") || strings.HasPrefix(name, ".") {
			return nil
		}

		rel, err := filepath.Rel(s.rootDir, path)
		if err != nil {
			return err
		}
		files = append(files, filepath.ToSlash(rel))
		return nil
	})
	if err != nil {
		return nil, &SourceError{Source: s.Name(), Operation: "scan", Err: err}
	}
	slices.Sort(files)

	lessons := make([]Lesson, 0, len(files))
	for i, rel := range files {
		title, err := readTitle(filepath.Join(s.rootDir, filepath.FromSlash(rel)))
		if err != nil {
			return nil, &SourceError{Source: s.Name(), Operation: "read", Err: err}
		}
		id := strings.TrimSuffix(rel, ".json")
		if title == "" {
			title = titleFromName(id)
		}
		lessons = append(lessons, Lesson{
			ID:       id,
			Title:    title,
			Order:    i + 1,
			AssetURL: ContentURL(rel),
		})
	}
	return lessons, nil
}

// readTitle returns the document title. Files that are not lesson
// documents get an empty title rather than an error; they still show up
// so that the playback page can report what is wrong with them.
func readTitle(path string) (string, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return "", fmt.Errorf("read %s: %w", path, err)
	}
	var head struct {
		Title any `json:"title"`
	}
	if json.Unmarshal(data, &head) != nil {
		return "", nil
	}
	title, _ := head.Title.(string)
	return title, nil
}

// titleFromName turns "intro/getting-started" into "Getting started".
func titleFromName(id string) string {
	title := filepath.Base(id)
	title = strings.ReplaceAll(title, "-", " ")
	title = strings.ReplaceAll(title, "_", " ")
	// Capitalize first letter
	if len(title) > 0 {
		title = strings.ToUpper(title[:1]) + title[1:]
	}
	return title
}
