package editor

import (
	"context"
	"errors"
	"slices"
	"sync"
)

// ErrNoSession is returned when no editor exists for a lesson.
var ErrNoSession = errors.New("no editor session")

type session struct {
	editor *Editor
	ready  chan struct{} // closed once the first load finished
}

// Sessions keeps one Editor per lesson id.
type Sessions struct {
	mu       sync.RWMutex
	sessions map[string]*session
	create   func(lessonID string) *Editor
}

// NewSessions creates a store that builds editors with create.
func NewSessions(create func(lessonID string) *Editor) *Sessions {
	return &Sessions{
		sessions: make(map[string]*session),
		create:   create,
	}
}

// Get returns the editor for lessonID, which may still be loading.
func (s *Sessions) Get(lessonID string) (*Editor, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	sess, ok := s.sessions[lessonID]
	if !ok {
		return nil, ErrNoSession
	}
	return sess.editor, nil
}

// Open returns the editor for lessonID. The first caller creates it and
// runs load; callers arriving while load runs wait for it to finish, so no
// one sees the editor before its document is in place. An error is only
// returned when ctx ends while waiting.
func (s *Sessions) Open(ctx context.Context, lessonID string, load func(*Editor)) (*Editor, error) {
	s.mu.Lock()
	sess, ok := s.sessions[lessonID]
	if !ok {
		sess = &session{editor: s.create(lessonID), ready: make(chan struct{})}
		s.sessions[lessonID] = sess
	}
	s.mu.Unlock()

	if !ok {
		defer close(sess.ready)
		if load != nil {
			load(sess.editor)
		}
		return sess.editor, nil
	}

	select {
	case <-sess.ready:
		return sess.editor, nil
	case <-ctx.Done():
		return nil, ctx.Err()
	}
}

// Drop forgets the editor for lessonID.
func (s *Sessions) Drop(lessonID string) {
	s.mu.Lock()
	defer s.mu.Unlock()
	delete(s.sessions, lessonID)
}

// IDs returns the lesson ids with an open editor, sorted.
func (s *Sessions) IDs() []string {
	s.mu.RLock()
	defer s.mu.RUnlock()
	ids := make([]string, 0, len(s.sessions))
	for id := range s.sessions {
		ids = append(ids, id)
	}
	slices.Sort(ids)
	return ids
}
