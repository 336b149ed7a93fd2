package server

import (
	"bytes"
	"context"
	"html/template"
	"net/http"
	"strconv"

	"go.uber.org/zap"

	"github.com/livetemplate/lessonkit/internal/manifest"
	"github.com/livetemplate/lessonkit/internal/render"
)

// navItem is one lesson in the sidebar.
type navItem struct {
	ID        string
	Title     string
	URL       string
	Completed bool
	Active    bool
}

// pageBase holds what every page template needs.
type pageBase struct {
	SiteTitle     string
	PageTitle     string
	Page          string
	LessonID      string
	LiveReload    bool
	EditorEnabled bool

	Nav     []navItem
	Done    int
	Total   int
	Percent int
}

type lessonPage struct {
	pageBase
	Position    int
	Content     template.HTML
	Prev, Next  *navItem
	Error       string
	ReloadURL   string
	CanComplete bool
	Completed   bool
}

func lessonURL(id string) string {
	return "/lessons/" + id
}

func toNav(l *manifest.Lesson) *navItem {
	if l == nil {
		return nil
	}
	return &navItem{ID: l.ID, Title: lessonTitle(*l), URL: lessonURL(l.ID), Completed: l.Completed}
}

func lessonTitle(l manifest.Lesson) string {
	if l.Title != "" {
		return l.Title
	}
	return l.ID
}

func (s *Server) base(page, title, lessonID string) pageBase {
	m := s.loader.Manifest()
	done, total, percent := m.Progress()
	b := pageBase{
		SiteTitle:     s.config.Site.Title,
		PageTitle:     title,
		Page:          page,
		LessonID:      lessonID,
		LiveReload:    s.config.Features.HotReload,
		EditorEnabled: s.config.Features.Editor,
		Done:          done,
		Total:         total,
		Percent:       percent,
	}
	if b.SiteTitle == "" {
		b.SiteTitle = "Lessons"
	}
	for _, l := range m.Lessons() {
		b.Nav = append(b.Nav, navItem{
			ID:        l.ID,
			Title:     lessonTitle(l),
			URL:       lessonURL(l.ID),
			Completed: l.Completed,
			Active:    l.ID == lessonID,
		})
	}
	return b
}

func (s *Server) renderPage(w http.ResponseWriter, status int, name string, data any) {
	var buf bytes.Buffer
	if err := s.pages.ExecuteTemplate(&buf, name, data); err != nil {
		s.logger.Error("page render failed", zap.String("template", name), zap.Error(err))
		http.Error(w, "Failed to render page", http.StatusInternalServerError)
		return
	}
	w.Header().Set("Content-Type", "text/html; charset=utf-8")
	w.WriteHeader(status)
	w.Write(buf.Bytes())
}

func (s *Server) handleIndex(w http.ResponseWriter, r *http.Request) {
	s.renderPage(w, http.StatusOK, "index.html", s.base("index", "", ""))
}

// handleLesson renders a lesson for playback. A lesson that cannot be
// loaded renders the failure state with a reload link instead.
func (s *Server) handleLesson(w http.ResponseWriter, r *http.Request) {
	id := r.PathValue("id")
	if id == "" {
		http.Redirect(w, r, "/", http.StatusSeeOther)
		return
	}
	if !validLessonID(id) {
		http.NotFound(w, r)
		return
	}

	page := s.lessonPage(r.Context(), id)
	status := http.StatusOK
	if page.Error != "" {
		status = http.StatusBadGateway
	}
	s.renderPage(w, status, "lesson.html", page)
}

// lessonUnavailable is shown to students in place of the load error, which
// names content paths and upstream URLs.
const lessonUnavailable = "The lesson could not be loaded right now. Please try again."

func (s *Server) lessonPage(ctx context.Context, id string) lessonPage {
	m := s.loader.Manifest()
	page := lessonPage{
		pageBase:  s.base("lesson", id, id),
		ReloadURL: lessonURL(id),
	}
	if l, ok := m.ByID(id); ok {
		page.PageTitle = lessonTitle(l)
		page.Position = m.Index(id) + 1
		page.Completed = l.Completed
		_, page.CanComplete = s.source.(manifest.Writer)
	}
	prev, next := m.PrevNext(id)
	page.Prev, page.Next = toNav(prev), toNav(next)

	st, _, err := s.loadLesson(ctx, id)
	if err != nil {
		s.logger.Warn("lesson failed to load", zap.String("lesson", id), zap.Error(err))
		page.Error = lessonUnavailable
		return page
	}
	if st.Title != "" {
		page.PageTitle = st.Title
	}
	page.Content = s.lessons.Render(st.Sections, render.Options{})
	return page
}

// handleProgress marks a lesson completed or not, for manifest sources
// that can be written to.
func (s *Server) handleProgress(w http.ResponseWriter, r *http.Request) {
	id := r.PathValue("id")
	writer, ok := s.source.(manifest.Writer)
	if !ok {
		http.Error(w, "Lesson progress is read-only", http.StatusNotImplemented)
		return
	}
	if _, found := s.loader.Manifest().ByID(id); !found {
		http.NotFound(w, r)
		return
	}
	r.Body = http.MaxBytesReader(w, r.Body, maxRequestBodySize)
	completed, err := strconv.ParseBool(r.FormValue("completed"))
	if err != nil {
		http.Error(w, "completed must be true or false", http.StatusBadRequest)
		return
	}
	if err := writer.SetCompleted(r.Context(), id, completed); err != nil {
		s.logger.Error("failed to update progress", zap.String("lesson", id), zap.Error(err))
		http.Error(w, "Failed to update progress", http.StatusInternalServerError)
		return
	}
	if err := s.ReloadManifest(r.Context()); err != nil {
		s.logger.Warn("failed to reload manifest", zap.Error(err))
	}
	s.hub.Broadcast(ReloadMessage{Action: "reload", LessonID: id})
	http.Redirect(w, r, lessonURL(id), http.StatusSeeOther)
}
