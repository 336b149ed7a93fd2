package commands

import (
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"regexp"
	"strings"

	"github.com/spf13/cobra"

	"github.com/livetemplate/lessonkit"
	"github.com/livetemplate/lessonkit/internal/blocks"
	"github.com/livetemplate/lessonkit/internal/editor"
)

var lessonIDPattern = regexp.MustCompile(`^[A-Za-z0-9][A-Za-z0-9._-]*(/[A-Za-z0-9][A-Za-z0-9._-]*)*$`)

func newNewCommand() *cobra.Command {
	var title, dir string
	cmd := &cobra.Command{
		Use:   "new <lesson-id>",
		Short: "Create a lesson with a starter banner",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			id := args[0]
			path, err := createLesson(dir, id, title)
			if err != nil {
				return err
			}

			out := cmd.OutOrStdout()
			okColor.Fprintf(out, "✓ Created %s\n\n", displayPath(path))
			fmt.Fprintln(out, "Next steps:")
			fmt.Fprintln(out, "  lessonkit serve --watch")
			fmt.Fprintf(out, "  open http://localhost:8080/editor/%s\n", id)
			return nil
		},
	}
	cmd.Flags().StringVarP(&title, "title", "t", "", "lesson title (default: derived from the id)")
	cmd.Flags().StringVarP(&dir, "dir", "d", "content", "content directory")
	return cmd
}

// createLesson writes a new lesson document for id under dir and returns
// its path. Existing files are never overwritten.
func createLesson(dir, id, title string) (string, error) {
	if !lessonIDPattern.MatchString(id) || strings.Contains(id, "..") {
		return "", fmt.Errorf("invalid lesson id %q: use letters, digits, '.', '_', '-' and '/'", id)
	}
	if title == "" {
		title = titleFromID(id)
	}

	path := filepath.Join(dir, filepath.FromSlash(id)+".json")
	if _, err := os.Stat(path); err == nil {
		return "", fmt.Errorf("lesson already exists: %s", path)
	}

	banner := blocks.Banner.DefaultData().(blocks.BannerData)
	banner.Title = title
	raw, err := blocks.Banner.Encode(banner)
	if err != nil {
		return "", err
	}
	doc := lessonkit.LessonDocument{
		ID:    id,
		Title: title,
		Sections: []lessonkit.Section{{
			ID:     editor.DefaultIDFunc("section", 6),
			Layout: lessonkit.LayoutFull,
			Blocks: []lessonkit.BlockNode{{
				ID:      editor.DefaultIDFunc(blocks.Banner.Type(), 6),
				Type:    blocks.Banner.Type(),
				Version: float64(blocks.Banner.Version()),
				Data:    raw,
			}},
		}},
	}

	data, err := json.MarshalIndent(doc, "", "  ")
	if err != nil {
		return "", err
	}
	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		return "", fmt.Errorf("failed to create directory: %w", err)
	}
	if err := os.WriteFile(path, append(data, '\n'), 0o644); err != nil {
		return "", fmt.Errorf("failed to write lesson: %w", err)
	}
	return path, nil
}

// titleFromID turns "intro/getting-started" into "Getting Started".
func titleFromID(id string) string {
	base := id[strings.LastIndex(id, "/")+1:]
	words := strings.FieldsFunc(base, func(r rune) bool { return r == '-' || r == '_' || r == '.' })
	for i, w := range words {
		words[i] = strings.ToUpper(w[:1]) + w[1:]
	}
	return strings.Join(words, " ")
}
