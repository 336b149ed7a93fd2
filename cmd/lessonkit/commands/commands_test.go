package commands

import (
	"bytes"
	"encoding/json"
	"os"
	"path/filepath"
	"testing"

	"github.com/fatih/color"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/livetemplate/lessonkit"
	"github.com/livetemplate/lessonkit/internal/blocks"
)

func TestMain(m *testing.M) {
	color.NoColor = true
	os.Exit(m.Run())
}

const legacyVideoLesson = `{
  "id": "legacy",
  "title": "Legacy",
  "sections": [{
    "id": "s1",
    "blocks": [{
      "id": "video-1",
      "type": "media-video",
      "data": {"title": "Intro", "description": "One.\n\nTwo.", "videoUrl": "https://example.com/a.mp4"}
    }]
  }]
}`

const unknownTypeLesson = `{
  "id": "broken",
  "title": "Broken",
  "sections": [{"id": "s1", "blocks": [{"id": "x", "type": "hologram", "data": {}}]}]
}`

func run(t *testing.T, args ...string) (string, error) {
	t.Helper()
	var out bytes.Buffer
	cmd := NewRootCommand("1.2.3")
	cmd.SetOut(&out)
	cmd.SetErr(&out)
	cmd.SetArgs(args)
	err := cmd.Execute()
	return out.String(), err
}

func writeFile(t *testing.T, path, content string) {
	t.Helper()
	require.NoError(t, os.MkdirAll(filepath.Dir(path), 0o755))
	require.NoError(t, os.WriteFile(path, []byte(content), 0o644))
}

func TestVersionCommand(t *testing.T) {
	out, err := run(t, "version")
	require.NoError(t, err)
	assert.Equal(t, "lessonkit version 1.2.3\n", out)
}

func TestBlocksCommand(t *testing.T) {
	out, err := run(t, "blocks")
	require.NoError(t, err)
	assert.Contains(t, out, "TYPE")
	assert.Contains(t, out, "banner")
	assert.Contains(t, out, "rich-text")

	out, err = run(t, "blocks", "--json")
	require.NoError(t, err)
	var infos []blockInfo
	require.NoError(t, json.Unmarshal([]byte(out), &infos))
	byType := make(map[string]blockInfo)
	for _, i := range infos {
		byType[i.Type] = i
	}
	require.Contains(t, byType, "media-video")
	assert.Equal(t, 2, byType["media-video"].Version)
	assert.NotNil(t, byType["banner"].DefaultData)
}

func TestNewCommand(t *testing.T) {
	dir := t.TempDir()

	out, err := run(t, "new", "intro/getting-started", "--dir", dir)
	require.NoError(t, err)
	assert.Contains(t, out, "Created")
	assert.Contains(t, out, "/editor/intro/getting-started")

	data, err := os.ReadFile(filepath.Join(dir, "intro", "getting-started.json"))
	require.NoError(t, err)
	var doc lessonkit.LessonDocument
	require.NoError(t, json.Unmarshal(data, &doc))
	assert.Equal(t, "intro/getting-started", doc.ID)
	assert.Equal(t, "Getting Started", doc.Title)
	require.Len(t, doc.Sections, 1)
	assert.Equal(t, lessonkit.LayoutFull, doc.Sections[0].Layout)
	require.Len(t, doc.Sections[0].Blocks, 1)
	assert.Equal(t, "banner", doc.Sections[0].Blocks[0].Type)
	var banner blocks.BannerData
	require.NoError(t, json.Unmarshal(doc.Sections[0].Blocks[0].Data, &banner))
	assert.Equal(t, "Getting Started", banner.Title)

	// The scaffold validates cleanly.
	_, err = run(t, "validate", dir)
	require.NoError(t, err)

	_, err = run(t, "new", "intro/getting-started", "--dir", dir)
	assert.ErrorContains(t, err, "already exists")

	_, err = run(t, "new", "../escape", "--dir", dir)
	assert.ErrorContains(t, err, "invalid lesson id")

	_, err = run(t, "new", "custom", "--dir", dir, "--title", "My Own Title")
	require.NoError(t, err)
	data, err = os.ReadFile(filepath.Join(dir, "custom.json"))
	require.NoError(t, err)
	assert.Contains(t, string(data), `"title": "My Own Title"`)
}

func TestValidateCommand(t *testing.T) {
	dir := t.TempDir()
	_, err := createLesson(dir, "good", "")
	require.NoError(t, err)
	writeFile(t, filepath.Join(dir, "_drafts", "ignored.json"), "not json")
	writeFile(t, filepath.Join(dir, ".hidden.json"), "not json")

	out, err := run(t, "validate", dir)
	require.NoError(t, err)
	assert.Contains(t, out, "✓")
	assert.Contains(t, out, "Total files: 1")
	assert.Contains(t, out, "All checks passed")

	writeFile(t, filepath.Join(dir, "broken.json"), unknownTypeLesson)
	writeFile(t, filepath.Join(dir, "garbage.json"), "{nope")

	out, err = run(t, "validate", dir)
	assert.EqualError(t, err, "validation failed")
	assert.Contains(t, out, "Total files: 3")
	assert.Contains(t, out, "Valid:       1")
	assert.Contains(t, out, "sections[0].blocks[0].type")
	assert.Contains(t, out, "Registered types:")
	assert.Contains(t, out, "failed to parse lesson JSON")
}

func TestValidateCommandMissingPath(t *testing.T) {
	_, err := run(t, "validate", filepath.Join(t.TempDir(), "missing"))
	assert.Error(t, err)
}

func TestMigrateCommand(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "legacy.json")
	writeFile(t, path, legacyVideoLesson)

	out, err := run(t, "migrate", dir)
	require.NoError(t, err)
	assert.Contains(t, out, "1 block(s) need migration")
	assert.Contains(t, out, "--write")
	data, err := os.ReadFile(path)
	require.NoError(t, err)
	assert.Equal(t, legacyVideoLesson, string(data), "dry run must not touch the file")

	out, err = run(t, "migrate", "--write", dir)
	require.NoError(t, err)
	assert.Contains(t, out, "migrated 1 block(s)")

	data, err = os.ReadFile(path)
	require.NoError(t, err)
	var doc lessonkit.LessonDocument
	require.NoError(t, json.Unmarshal(data, &doc))
	assert.Equal(t, 2.0, doc.Sections[0].Blocks[0].Version)

	out, err = run(t, "migrate", dir)
	require.NoError(t, err)
	assert.Contains(t, out, "All blocks are current")
}

func TestMigrateCommandReportsFailures(t *testing.T) {
	dir := t.TempDir()
	writeFile(t, filepath.Join(dir, "bad.json"), `{"id":"bad","title":"Bad","sections":[{"id":"s","blocks":[
		{"id":"v","type":"media-video","data":{"title":"x","description":42}}]}]}`)

	out, err := run(t, "migrate", "--write", dir)
	assert.ErrorContains(t, err, "could not be migrated")
	assert.Contains(t, out, "sections[0].blocks[0].data")
}

func TestLoadServeConfig(t *testing.T) {
	dir := t.TempDir()
	writeFile(t, filepath.Join(dir, "lessonkit.yaml"), "server:\n  port: 9000\ncontent:\n  dir: lessons\n")

	cfg, err := loadServeConfig(dir, serveOptions{}, false)
	require.NoError(t, err)
	assert.Equal(t, 9000, cfg.Server.Port)
	assert.Equal(t, filepath.Join(dir, "lessons"), cfg.Content.Dir)
	assert.True(t, cfg.Features.HotReload)

	cfg, err = loadServeConfig(dir, serveOptions{port: 7000, host: "0.0.0.0", watch: false}, true)
	require.NoError(t, err)
	assert.Equal(t, 7000, cfg.Server.Port)
	assert.Equal(t, "0.0.0.0", cfg.Server.Host)
	assert.False(t, cfg.Features.HotReload)

	other := filepath.Join(t.TempDir(), "alt.toml")
	writeFile(t, other, "[server]\nport = 9100\n")
	cfg, err = loadServeConfig(dir, serveOptions{configPath: other}, false)
	require.NoError(t, err)
	assert.Equal(t, 9100, cfg.Server.Port)
	assert.Equal(t, filepath.Join(dir, "content"), cfg.Content.Dir)

	writeFile(t, filepath.Join(dir, "lessonkit.yaml"), "cache:\n  type: memcached\n")
	_, err = loadServeConfig(dir, serveOptions{}, false)
	assert.ErrorContains(t, err, "cache.type")
}
