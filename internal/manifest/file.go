package manifest

import (
	"context"
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"gopkg.in/yaml.v3"
)

// FileSource reads lessons from a YAML or JSON file holding either a list
// of lessons or an object with a "lessons" list.
type FileSource struct {
	path string
}

// NewFileSource creates a source for the file at path.
func NewFileSource(path string) *FileSource {
	return &FileSource{path: path}
}

// Name implements Source.
func (s *FileSource) Name() string { return "file" }

// Close implements Source.
func (s *FileSource) Close() error { return nil }

type fileManifest struct {
	Lessons []Lesson `json:"lessons" yaml:"lessons"`
}

// Lessons implements Source.
func (s *FileSource) Lessons(_ context.Context) ([]Lesson, error) {
	data, err := os.ReadFile(s.path)
	if err != nil {
		return nil, &SourceError{Source: s.Name(), Operation: "read", Err: err}
	}

	lessons, err := parseManifestFile(s.path, data)
	if err != nil {
		return nil, &SourceError{Source: s.Name(), Operation: "parse", Err: err}
	}
	for i, l := range lessons {
		if l.ID == "" {
			return nil, &SourceError{Source: s.Name(), Err: fmt.Errorf("lesson %d has no id", i+1)}
		}
	}
	return lessons, nil
}

func parseManifestFile(path string, data []byte) ([]Lesson, error) {
	trimmed := strings.TrimSpace(string(data))
	isList := strings.HasPrefix(trimmed, "[") || strings.HasPrefix(trimmed, "-")

	if strings.EqualFold(filepath.Ext(path), ".json") {
		if isList {
			var lessons []Lesson
			err := json.Unmarshal(data, &lessons)
			return lessons, err
		}
		var m fileManifest
		err := json.Unmarshal(data, &m)
		return m.Lessons, err
	}

	if isList {
		var lessons []Lesson
		err := yaml.Unmarshal(data, &lessons)
		return lessons, err
	}
	var m fileManifest
	err := yaml.Unmarshal(data, &m)
	return m.Lessons, err
}
