package server

import (
	"encoding/json"
	"errors"
	"io"
	"net/http"
	"strconv"

	"go.uber.org/zap"

	"github.com/livetemplate/lessonkit"
	"github.com/livetemplate/lessonkit/internal/editor"
	"github.com/livetemplate/lessonkit/internal/manifest"
)

// defaultPageLimit is the default pagination limit when none is specified
const defaultPageLimit = 100

type blockInfo struct {
	Type        string          `json:"type"`
	Label       string          `json:"label"`
	Version     int             `json:"version"`
	DefaultData json.RawMessage `json:"defaultData"`
}

// apiBlocks lists the registered block plugins.
func (s *Server) apiBlocks(w http.ResponseWriter, r *http.Request) {
	plugins := s.registry.Plugins()
	out := make([]blockInfo, 0, len(plugins))
	for _, p := range plugins {
		data, err := p.Encode(p.DefaultData())
		if err != nil {
			s.logger.Error("cannot encode default data", zap.String("type", p.Type()), zap.Error(err))
			continue
		}
		out = append(out, blockInfo{Type: p.Type(), Label: p.Label(), Version: p.Version(), DefaultData: data})
	}
	writeJSON(w, http.StatusOK, map[string]any{"blocks": out})
}

// apiValidate validates a posted lesson document. The response is the
// validation result; the status is 200 even when the document has errors,
// and 400 only when the body is not JSON.
func (s *Server) apiValidate(w http.ResponseWriter, r *http.Request) {
	r.Body = http.MaxBytesReader(w, r.Body, maxRequestBodySize)
	body, err := io.ReadAll(r.Body)
	if err != nil {
		writeError(w, http.StatusRequestEntityTooLarge, "request body too large")
		return
	}
	res, err := lessonkit.ParseLessonDocument(s.registry, body)
	if err != nil {
		writeError(w, http.StatusBadRequest, err.Error())
		return
	}
	writeJSON(w, http.StatusOK, res)
}

// apiLessons returns the manifest. Supports ?completed=true|false and
// offset/limit pagination.
func (s *Server) apiLessons(w http.ResponseWriter, r *http.Request) {
	m := s.loader.Manifest()
	lessons := m.Lessons()

	if v := r.URL.Query().Get("completed"); v != "" {
		want, err := strconv.ParseBool(v)
		if err != nil {
			writeError(w, http.StatusBadRequest, "completed must be true or false")
			return
		}
		lessons = filterCompleted(lessons, want)
	}

	total := len(lessons)
	offset := parseIntParam(r, "offset", 0)
	limit := parseIntParam(r, "limit", defaultPageLimit)
	lessons = paginate(lessons, offset, limit)

	done, all, percent := m.Progress()
	writeJSON(w, http.StatusOK, map[string]any{
		"lessons": lessons,
		"total":   total,
		"offset":  offset,
		"limit":   limit,
		"progress": map[string]int{
			"completed": done,
			"total":     all,
			"percent":   percent,
		},
	})
}

// apiLesson loads and validates one lesson. A lesson that cannot be
// fetched from any location is a 502.
func (s *Server) apiLesson(w http.ResponseWriter, r *http.Request) {
	id := r.PathValue("id")
	if !validLessonID(id) {
		writeError(w, http.StatusBadRequest, "invalid lesson id")
		return
	}
	st, res, err := s.loadLesson(r.Context(), id)
	if err != nil {
		s.logger.Warn("lesson failed to load", zap.String("lesson", id), zap.Error(err))
		body := map[string]any{"error": publicLoadError(id, err)}
		if len(res.Issues) > 0 {
			body["issues"] = res.Issues
		}
		writeJSON(w, loadStatus(err), body)
		return
	}

	issues := res.Issues
	if issues == nil {
		issues = []lessonkit.Issue{}
	}
	writeJSON(w, http.StatusOK, map[string]any{
		"lessonId": id,
		"source":   st.Source,
		"success":  res.Success,
		"document": lessonkit.LessonDocument{ID: st.DocumentID, Title: st.Title, Sections: st.Sections},
		"issues":   issues,
	})
}

type editorResponse struct {
	State  editor.State      `json:"state"`
	Issues []lessonkit.Issue `json:"issues"`
	Error  string            `json:"error,omitempty"`
}

func editorState(ed *editor.Editor, loadErr error) editorResponse {
	resp := editorResponse{State: ed.Snapshot(), Issues: ed.Inspect()}
	if resp.Issues == nil {
		resp.Issues = []lessonkit.Issue{}
	}
	if loadErr != nil {
		resp.Error = loadErr.Error()
	}
	return resp
}

// apiEditorGet returns the editor state, or the exported document for
// /api/editor/{id}/export.
func (s *Server) apiEditorGet(w http.ResponseWriter, r *http.Request) {
	id, action := splitAction(r.PathValue("path"))
	if !validLessonID(id) {
		writeError(w, http.StatusBadRequest, "invalid lesson id")
		return
	}
	switch action {
	case "":
		ed, loadErr, err := s.session(r.Context(), id)
		if err != nil {
			writeError(w, http.StatusGatewayTimeout, err.Error())
			return
		}
		writeJSON(w, http.StatusOK, editorState(ed, loadErr))
	case actionExport:
		ed, _, err := s.session(r.Context(), id)
		if err != nil {
			writeError(w, http.StatusGatewayTimeout, err.Error())
			return
		}
		s.exportDocument(w, ed)
	default:
		writeError(w, http.StatusMethodNotAllowed, "use POST for editor actions")
	}
}

// apiEditorAction applies an editor action from a JSON body. import takes
// the document itself as the body.
func (s *Server) apiEditorAction(w http.ResponseWriter, r *http.Request) {
	id, action := splitAction(r.PathValue("path"))
	if !validLessonID(id) {
		writeError(w, http.StatusBadRequest, "invalid lesson id")
		return
	}
	if action == "" || action == actionExport {
		writeError(w, http.StatusNotFound, "unknown editor action")
		return
	}

	r.Body = http.MaxBytesReader(w, r.Body, maxRequestBodySize)
	body, err := io.ReadAll(r.Body)
	if err != nil {
		writeError(w, http.StatusRequestEntityTooLarge, "request body too large")
		return
	}

	var cmd editorCommand
	if action == actionImport {
		cmd.Document = body
	} else if len(body) > 0 {
		if err := json.Unmarshal(body, &cmd); err != nil {
			writeError(w, http.StatusBadRequest, "invalid JSON body")
			return
		}
	}

	ed, loadErr, err := s.session(r.Context(), id)
	if err != nil {
		writeError(w, http.StatusGatewayTimeout, err.Error())
		return
	}
	if err := s.apply(r.Context(), ed, action, cmd); err != nil {
		resp := editorState(ed, nil)
		resp.Error = err.Error()
		var imp *importError
		if errors.As(err, &imp) && len(imp.issues) > 0 {
			resp.Issues = imp.issues
		}
		writeJSON(w, commandStatus(err), resp)
		return
	}
	if action == actionReload {
		loadErr = nil
	}
	writeJSON(w, http.StatusOK, editorState(ed, loadErr))
}

// Helper functions

func writeJSON(w http.ResponseWriter, status int, data any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if err := json.NewEncoder(w).Encode(data); err != nil {
		zap.L().Warn("failed to encode JSON response", zap.Error(err))
	}
}

func writeError(w http.ResponseWriter, status int, message string) {
	writeJSON(w, status, map[string]string{"error": message})
}

func parseIntParam(r *http.Request, name string, defaultVal int) int {
	val := r.URL.Query().Get(name)
	if val == "" {
		return defaultVal
	}
	i, err := strconv.Atoi(val)
	if err != nil {
		return defaultVal
	}
	return i
}

func filterCompleted(lessons []manifest.Lesson, completed bool) []manifest.Lesson {
	out := make([]manifest.Lesson, 0, len(lessons))
	for _, l := range lessons {
		if l.Completed == completed {
			out = append(out, l)
		}
	}
	return out
}

// paginate applies offset and limit to data.
func paginate[T any](data []T, offset, limit int) []T {
	if offset < 0 {
		offset = 0
	}
	if offset >= len(data) {
		return []T{}
	}

	data = data[offset:]

	if limit > 0 && limit < len(data) {
		data = data[:limit]
	}

	return data
}
