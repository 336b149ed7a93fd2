// Package manifest lists the lessons of a course: their order, completion
// and where each lesson document is stored.
package manifest

import (
	"cmp"
	"slices"
)

// Lesson is one manifest entry.
type Lesson struct {
	ID        string `json:"id" yaml:"id"`
	Title     string `json:"title" yaml:"title"`
	Order     int    `json:"order" yaml:"order"`
	Completed bool   `json:"completed" yaml:"completed"`
	AssetURL  string `json:"assetUrl" yaml:"asset_url"`
}

// Manifest is an ordered, read-only list of lessons.
type Manifest struct {
	lessons []Lesson
	byID    map[string]int
}

// New sorts lessons by Order (ties keep their input order). When an id is
// listed twice the first entry wins.
func New(lessons []Lesson) *Manifest {
	sorted := slices.Clone(lessons)
	slices.SortStableFunc(sorted, func(a, b Lesson) int {
		return cmp.Compare(a.Order, b.Order)
	})

	m := &Manifest{byID: make(map[string]int, len(sorted))}
	for _, l := range sorted {
		if _, dup := m.byID[l.ID]; dup {
			continue
		}
		m.byID[l.ID] = len(m.lessons)
		m.lessons = append(m.lessons, l)
	}
	return m
}

// Lessons returns the lessons in order.
func (m *Manifest) Lessons() []Lesson {
	if m == nil {
		return nil
	}
	return slices.Clone(m.lessons)
}

// Len returns the number of lessons.
func (m *Manifest) Len() int {
	if m == nil {
		return 0
	}
	return len(m.lessons)
}

// ByID returns the lesson with the given id.
func (m *Manifest) ByID(id string) (Lesson, bool) {
	i := m.Index(id)
	if i < 0 {
		return Lesson{}, false
	}
	return m.lessons[i], true
}

// Index returns the zero-based position of id, or -1.
func (m *Manifest) Index(id string) int {
	if m == nil {
		return -1
	}
	i, ok := m.byID[id]
	if !ok {
		return -1
	}
	return i
}

// ResolveAsset returns the asset URL of a lesson, or "" when the lesson is
// unknown.
func (m *Manifest) ResolveAsset(id string) string {
	l, _ := m.ByID(id)
	return l.AssetURL
}

// Progress counts completed lessons. Percent is rounded to the nearest
// integer and 0 for an empty manifest.
func (m *Manifest) Progress() (done, total, percent int) {
	if m == nil {
		return 0, 0, 0
	}
	for _, l := range m.lessons {
		if l.Completed {
			done++
		}
	}
	total = len(m.lessons)
	if total == 0 {
		return 0, 0, 0
	}
	return done, total, (done*100 + total/2) / total
}

// PrevNext returns the lessons around id. A missing neighbour is nil.
func (m *Manifest) PrevNext(id string) (prev, next *Lesson) {
	i := m.Index(id)
	if i < 0 {
		return nil, nil
	}
	if i > 0 {
		p := m.lessons[i-1]
		prev = &p
	}
	if i+1 < len(m.lessons) {
		n := m.lessons[i+1]
		next = &n
	}
	return prev, next
}
