package editor

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/livetemplate/lessonkit"
	"github.com/livetemplate/lessonkit/internal/blocks"
)

const twoSections = `{
  "id": "lesson-001",
  "title": "Getting started",
  "sections": [
    {"id": "s1", "layout": "full", "blocks": [
      {"id": "a", "type": "banner", "version": 1, "data": {"title": "A", "bgImage": "https://example.com/a.jpg"}},
      {"id": "b", "type": "banner", "version": 1, "data": {"title": "B", "bgImage": "https://example.com/b.jpg"}}
    ]},
    {"id": "s2", "title": "Second", "blocks": [
      {"id": "c", "type": "banner", "version": 1, "data": {"title": "C", "bgImage": "https://example.com/c.jpg"}}
    ]}
  ]
}`

func counterIDs() IDFunc {
	n := 0
	return func(prefix string, _ int) string {
		n++
		return fmt.Sprintf("%s-%d", prefix, n)
	}
}

type staticFetcher struct {
	source string
	body   string
	err    error
}

func (f staticFetcher) Fetch(context.Context, string) (string, []byte, error) {
	return f.source, []byte(f.body), f.err
}

func newLoaded(t *testing.T, body string, opts ...Option) *Editor {
	t.Helper()
	opts = append([]Option{WithIDFunc(counterIDs())}, opts...)
	e := New(blocks.Registry(), "lesson-001", opts...)
	_, err := e.Import(strings.NewReader(body))
	require.NoError(t, err)
	return e
}

func blockIDs(sections []lessonkit.Section) [][]string {
	out := make([][]string, len(sections))
	for i, s := range sections {
		out[i] = []string{}
		for _, b := range s.Blocks {
			out[i] = append(out[i], b.ID)
		}
	}
	return out
}

func TestInsertBlock(t *testing.T) {
	t.Run("without selection goes to the head of the first section", func(t *testing.T) {
		e := newLoaded(t, twoSections)
		before := e.Snapshot()

		node, ok, err := e.InsertBlock("rich-text")
		require.NoError(t, err)
		require.True(t, ok)

		st := e.Snapshot()
		assert.Equal(t, [][]string{{"rich-text-1", "a", "b"}, {"c"}}, blockIDs(st.Sections))
		assert.Equal(t, "rich-text-1", node.ID)
		assert.Equal(t, 1.0, node.Version)
		assert.Equal(t, &Ref{Section: 0, Block: 0}, st.Selected)
		assert.Equal(t, "rich-text-1", st.SelectedID)

		// Untouched sections share their blocks with the previous state.
		assert.Same(t, &before.Sections[1].Blocks[0], &st.Sections[1].Blocks[0])
		assert.Equal(t, [][]string{{"a", "b"}, {"c"}}, blockIDs(before.Sections))
	})

	t.Run("after the selected block", func(t *testing.T) {
		e := newLoaded(t, twoSections)
		require.True(t, e.SelectByID("c"))

		_, ok, err := e.InsertBlock("banner")
		require.NoError(t, err)
		require.True(t, ok)
		assert.Equal(t, [][]string{{"a", "b"}, {"c", "banner-1"}}, blockIDs(e.Snapshot().Sections))
	})

	t.Run("uses the default data and current version", func(t *testing.T) {
		e := newLoaded(t, twoSections)
		node, _, err := e.InsertBlock("media-video")
		require.NoError(t, err)
		assert.Equal(t, blocks.MediaVideo.Version(), node.Version)

		res := lessonkit.ValidateSections(blocks.Registry(), e.Snapshot().Sections)
		assert.True(t, res.Success, "%v", res.Issues)
	})

	t.Run("unknown type", func(t *testing.T) {
		e := newLoaded(t, twoSections)
		_, ok, err := e.InsertBlock("nope")
		assert.False(t, ok)
		assert.True(t, errors.Is(err, ErrUnknownType))
		assert.Equal(t, [][]string{{"a", "b"}, {"c"}}, blockIDs(e.Snapshot().Sections))
	})

	t.Run("no sections is a no-op", func(t *testing.T) {
		e := newLoaded(t, `{"id":"x","title":"x","sections":[]}`)
		rev := e.Snapshot().Revision
		_, ok, err := e.InsertBlock("banner")
		require.NoError(t, err)
		assert.False(t, ok)
		assert.Equal(t, rev, e.Snapshot().Revision)
	})
}

func TestMoveBlock(t *testing.T) {
	e := newLoaded(t, twoSections)
	require.NoError(t, e.Select(Ref{Section: 0, Block: 0}))

	assert.False(t, e.MoveBlock(Up), "first block cannot move up")
	assert.Equal(t, [][]string{{"a", "b"}, {"c"}}, blockIDs(e.Snapshot().Sections))

	assert.True(t, e.MoveBlock(Down))
	st := e.Snapshot()
	assert.Equal(t, [][]string{{"b", "a"}, {"c"}}, blockIDs(st.Sections))
	assert.Equal(t, "a", st.SelectedID)

	assert.False(t, e.MoveBlock(Down), "last block cannot move down")
	assert.Equal(t, &Ref{Section: 0, Block: 1}, e.Snapshot().Selected)

	e.ClearSelection()
	assert.False(t, e.MoveBlock(Up))
}

func TestDeleteBlock(t *testing.T) {
	e := newLoaded(t, twoSections)
	assert.False(t, e.DeleteBlock(), "nothing selected")

	require.True(t, e.SelectByID("a"))
	require.True(t, e.DeleteBlock())

	st := e.Snapshot()
	assert.Equal(t, [][]string{{"b"}, {"c"}}, blockIDs(st.Sections))
	assert.Nil(t, st.Selected)
	assert.Empty(t, st.SelectedID)
}

func TestSections(t *testing.T) {
	t.Run("insert appends and focuses", func(t *testing.T) {
		e := newLoaded(t, twoSections)
		sec := e.InsertSection()

		st := e.Snapshot()
		require.Len(t, st.Sections, 3)
		assert.Equal(t, "sec-1", sec.ID)
		assert.Equal(t, lessonkit.LayoutFull, st.Sections[2].Layout)
		assert.Empty(t, st.Sections[2].Blocks)
		assert.Equal(t, 2, *st.Focused)
	})

	t.Run("move clamps and carries selection", func(t *testing.T) {
		e := newLoaded(t, twoSections)
		require.True(t, e.SelectByID("c"))
		require.NoError(t, e.FocusSection(0))

		assert.False(t, e.MoveSection(0, Up))
		assert.False(t, e.MoveSection(1, Down))

		require.True(t, e.MoveSection(1, Up))
		st := e.Snapshot()
		assert.Equal(t, [][]string{{"c"}, {"a", "b"}}, blockIDs(st.Sections))
		assert.Equal(t, "c", st.SelectedID)
		assert.Equal(t, 1, *st.Focused)
	})

	t.Run("delete clears selection inside and shifts later refs", func(t *testing.T) {
		e := newLoaded(t, twoSections)
		require.True(t, e.SelectByID("b"))
		require.True(t, e.DeleteSection(0))
		st := e.Snapshot()
		assert.Nil(t, st.Selected)
		assert.Equal(t, [][]string{{"c"}}, blockIDs(st.Sections))

		e = newLoaded(t, twoSections)
		require.True(t, e.SelectByID("c"))
		require.True(t, e.DeleteSection(0))
		assert.Equal(t, "c", e.Snapshot().SelectedID)

		assert.False(t, e.DeleteSection(5))
	})
}

func TestUpdateBlockData(t *testing.T) {
	e := newLoaded(t, twoSections)
	assert.ErrorIs(t, e.UpdateBlockData(json.RawMessage(`{}`)), ErrNoSelection)

	before := e.Snapshot()
	require.True(t, e.SelectByID("b"))
	require.NoError(t, e.UpdateBlockData(json.RawMessage(`{"title":""}`)))

	st := e.Snapshot()
	assert.JSONEq(t, `{"title":""}`, string(st.Sections[0].Blocks[1].Data))
	assert.Equal(t, before.Sections[0].Blocks[0], st.Sections[0].Blocks[0])
	assert.Same(t, &before.Sections[1].Blocks[0], &st.Sections[1].Blocks[0])
	assert.Contains(t, string(before.Sections[0].Blocks[1].Data), `"B"`, "earlier snapshot is unchanged")

	// Invalid data is stored and surfaced by Inspect.
	issues := e.Inspect()
	require.NotEmpty(t, issues)
	assert.Equal(t, "sections[0].blocks[1].data.title", issues[0].Path)

	assert.Error(t, e.UpdateBlockData(json.RawMessage(`{`)))
	assert.ErrorIs(t, e.UpdateBlockDataAt(Ref{Section: 9}, json.RawMessage(`{}`)), ErrOutOfRange)
}

func TestUpgradeBlockData(t *testing.T) {
	e := newLoaded(t, twoSections)
	ref := Ref{Section: 1, Block: 0}

	require.NoError(t, e.UpgradeBlockData(ref, 3, json.RawMessage(`{"title":"C2","bgImage":"https://example.com/c.jpg"}`)))
	st := e.Snapshot()
	assert.Equal(t, 3.0, st.Sections[1].Blocks[0].Version)
	assert.Contains(t, string(st.Sections[1].Blocks[0].Data), "C2")

	require.NoError(t, e.UpdateBlockDataAt(ref, json.RawMessage(`{"title":"C3"}`)))
	assert.Equal(t, 3.0, e.Snapshot().Sections[1].Blocks[0].Version, "plain updates keep the version")

	assert.Error(t, e.UpgradeBlockData(ref, 0, json.RawMessage(`{}`)))
}

func TestUpdateSectionMeta(t *testing.T) {
	e := newLoaded(t, twoSections)
	before := e.Snapshot()

	title := "Second"
	changed, err := e.UpdateSectionMeta(1, SectionPatch{Title: &title})
	require.NoError(t, err)
	assert.False(t, changed)
	assert.Equal(t, before.Revision, e.Snapshot().Revision)

	layout := lessonkit.LayoutTwoCol
	changed, err = e.UpdateSectionMeta(1, SectionPatch{Title: &title, Layout: &layout})
	require.NoError(t, err)
	assert.True(t, changed)
	st := e.Snapshot()
	assert.Equal(t, lessonkit.LayoutTwoCol, st.Sections[1].Layout)
	assert.Equal(t, "Second", st.Sections[1].Title)
	assert.Empty(t, before.Sections[1].Layout)

	bad := lessonkit.Layout("grid")
	_, err = e.UpdateSectionMeta(0, SectionPatch{Layout: &bad})
	assert.Error(t, err)

	_, err = e.UpdateSectionMeta(7, SectionPatch{Title: &title})
	assert.ErrorIs(t, err, ErrOutOfRange)
}

func TestExport(t *testing.T) {
	tests := []struct {
		name     string
		lessonID string
		body     string
		fallback string
		wantFile string
		wantID   string
	}{
		{"lesson and document id", "lesson-002", `{"id":"doc-9","title":"t","sections":[]}`, "", "lesson-002.json", "doc-9"},
		{"document id falls back to lesson", "lesson-002", `{"id":"","title":"t","sections":[]}`, "", "lesson-002.json", "lesson-002"},
		{"fallback id", "", `{"id":"","title":"t","sections":[]}`, "lesson-001", "lesson-001.json", "lesson-001"},
		{"last resort", "", `{"id":"","title":"t","sections":[]}`, "", "lesson.json", "lesson"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			e := New(blocks.Registry(), tt.lessonID, WithFallbackID(tt.fallback))
			_, err := e.Import(strings.NewReader(tt.body))
			require.NoError(t, err)

			name, data, err := e.Export()
			require.NoError(t, err)
			assert.Equal(t, tt.wantFile, name)

			var doc lessonkit.LessonDocument
			require.NoError(t, json.Unmarshal(data, &doc))
			assert.Equal(t, tt.wantID, doc.ID)
			assert.Contains(t, string(data), "\n  \"title\"")
		})
	}
}

func TestImportExportRoundTrip(t *testing.T) {
	e := newLoaded(t, twoSections)
	_, data, err := e.Export()
	require.NoError(t, err)
	assert.JSONEq(t, twoSections, string(data))

	other := New(blocks.Registry(), "lesson-001")
	_, err = other.Import(strings.NewReader(string(data)))
	require.NoError(t, err)
	assert.Equal(t, e.Document(), other.Document())
}

func TestImportFailureKeepsState(t *testing.T) {
	e := newLoaded(t, twoSections)
	require.True(t, e.SelectByID("b"))
	before := e.Snapshot()

	_, err := e.Import(strings.NewReader(`{not json`))
	assert.Error(t, err)

	_, err = e.Import(strings.NewReader(`{"id":"x","sections":[]}`))
	assert.ErrorIs(t, err, ErrInvalidDocument)

	assert.Equal(t, before, e.Snapshot())
}

func TestImportResetsSelection(t *testing.T) {
	e := newLoaded(t, twoSections)
	require.True(t, e.SelectByID("b"))

	res, err := e.Import(strings.NewReader(`{"id":"x","title":"x","sections":[{"id":"s","blocks":[{"id":"u","type":"mystery","data":{}}]}]}`))
	require.NoError(t, err)
	assert.False(t, res.Success)

	st := e.Snapshot()
	assert.Nil(t, st.Selected)
	assert.Equal(t, "x", st.DocumentID)
	assert.Equal(t, [][]string{{"u"}}, blockIDs(st.Sections))
}

func TestLoad(t *testing.T) {
	t.Run("accepts documents with block errors", func(t *testing.T) {
		e := New(blocks.Registry(), "lesson-001")
		res, err := e.Load(context.Background(), staticFetcher{
			source: "content/lesson-001.json",
			body:   `{"id":"lesson-001","title":"t","sections":[{"id":"s","blocks":[{"id":"b","type":"banner","data":{}}]}]}`,
		})
		require.NoError(t, err)
		assert.False(t, res.Success)

		st := e.Snapshot()
		assert.True(t, st.Loaded)
		assert.Equal(t, "content/lesson-001.json", st.Source)
	})

	t.Run("recovers sections from an invalid shell", func(t *testing.T) {
		e := New(blocks.Registry(), "lesson-001")
		_, err := e.Load(context.Background(), staticFetcher{
			body: `{"title":42,"sections":[{"id":"s","blocks":[]}]}`,
		})
		require.NoError(t, err)
		st := e.Snapshot()
		assert.Equal(t, "unknown", st.DocumentID)
		assert.Len(t, st.Sections, 1)
	})

	t.Run("fetch error", func(t *testing.T) {
		e := New(blocks.Registry(), "lesson-001")
		_, err := e.Load(context.Background(), staticFetcher{err: errors.New("offline")})
		assert.EqualError(t, err, "offline")
		assert.False(t, e.Snapshot().Loaded)
	})
}

func TestOnChange(t *testing.T) {
	var calls []string
	e := newLoaded(t, twoSections, WithOnChange(func(id string) { calls = append(calls, id) }))
	calls = nil

	e.SelectByID("a")
	e.MoveBlock(Up) // no-op
	e.MoveBlock(Down)
	assert.Equal(t, []string{"lesson-001", "lesson-001"}, calls)
}

func TestSessions(t *testing.T) {
	s := NewSessions(func(id string) *Editor { return New(blocks.Registry(), id) })
	ctx := context.Background()

	_, err := s.Get("a")
	assert.ErrorIs(t, err, ErrNoSession)

	loads := 0
	load := func(*Editor) { loads++ }
	e1, err := s.Open(ctx, "a", load)
	require.NoError(t, err)
	e2, err := s.Open(ctx, "a", load)
	require.NoError(t, err)
	assert.Same(t, e1, e2)
	assert.Equal(t, 1, loads)

	_, err = s.Open(ctx, "0", nil)
	require.NoError(t, err)
	assert.Equal(t, []string{"0", "a"}, s.IDs())

	s.Drop("a")
	_, err = s.Get("a")
	assert.ErrorIs(t, err, ErrNoSession)
}

func TestSessionsOpenWaitsForLoad(t *testing.T) {
	s := NewSessions(func(id string) *Editor { return New(blocks.Registry(), id) })
	started := make(chan struct{})
	release := make(chan struct{})

	first := make(chan *Editor)
	go func() {
		ed, _ := s.Open(context.Background(), "a", func(ed *Editor) {
			close(started)
			<-release
			_, err := ed.Import(strings.NewReader(twoSections))
			assert.NoError(t, err)
		})
		first <- ed
	}()
	<-started

	// A caller that gives up while the load runs gets no editor.
	ctx, cancel := context.WithTimeout(context.Background(), 20*time.Millisecond)
	defer cancel()
	ed, err := s.Open(ctx, "a", func(*Editor) { t.Error("load ran twice") })
	assert.ErrorIs(t, err, context.DeadlineExceeded)
	assert.Nil(t, ed)

	second := make(chan *Editor)
	go func() {
		ed, err := s.Open(context.Background(), "a", func(*Editor) { t.Error("load ran twice") })
		assert.NoError(t, err)
		second <- ed
	}()

	select {
	case <-second:
		t.Fatal("Open returned before the first load finished")
	case <-time.After(20 * time.Millisecond):
	}
	close(release)

	loaded := <-second
	assert.Same(t, <-first, loaded)
	assert.Len(t, loaded.Snapshot().Sections, 2, "waiting callers see the loaded document")
}

func TestDefaultIDFunc(t *testing.T) {
	id := DefaultIDFunc("banner", 6)
	assert.Regexp(t, `^banner-[0-9a-f]{6}$`, id)
	assert.NotEqual(t, id, DefaultIDFunc("banner", 6))
}
