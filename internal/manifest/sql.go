package manifest

import (
	"context"
	"database/sql"
	"fmt"
	"strings"
)

// Writer is implemented by sources that can store manifest entries.
type Writer interface {
	// EnsureTable creates the manifest table when it is missing
	EnsureTable(ctx context.Context) error

	// Upsert inserts or replaces lessons by id
	Upsert(ctx context.Context, lessons []Lesson) error

	// SetCompleted records whether a lesson has been completed
	SetCompleted(ctx context.Context, id string, completed bool) error
}

// sqlTable holds the queries shared by the SQL sources. The table has the
// columns id, title, sort_order, completed and asset_url.
type sqlTable struct {
	source string
	db     *sql.DB
	table  string
	// placeholder returns the bind parameter for the n-th (1-based) argument
	placeholder func(n int) string
}

func (t *sqlTable) params(n int) []string {
	out := make([]string, n)
	for i := range out {
		out[i] = t.placeholder(i + 1)
	}
	return out
}

func (t *sqlTable) lessons(ctx context.Context) ([]Lesson, error) {
	query := fmt.Sprintf("SELECT id, title, sort_order, completed, asset_url FROM %s ORDER BY sort_order, id", t.table)
	rows, err := t.db.QueryContext(ctx, query)
	if err != nil {
		return nil, &SourceError{Source: t.source, Operation: "query", Err: err}
	}
	defer rows.Close()

	var lessons []Lesson
	for rows.Next() {
		var (
			l     Lesson
			title sql.NullString
			asset sql.NullString
		)
		if err := rows.Scan(&l.ID, &title, &l.Order, &l.Completed, &asset); err != nil {
			return nil, &SourceError{Source: t.source, Operation: "scan", Err: err}
		}
		l.Title = title.String
		l.AssetURL = asset.String
		lessons = append(lessons, l)
	}
	if err := rows.Err(); err != nil {
		return nil, &SourceError{Source: t.source, Operation: "query", Err: err}
	}
	return lessons, nil
}

func (t *sqlTable) ensureTable(ctx context.Context) error {
	query := fmt.Sprintf(`CREATE TABLE IF NOT EXISTS %s (
	id TEXT PRIMARY KEY,
	title TEXT NOT NULL DEFAULT '',
	sort_order INTEGER NOT NULL DEFAULT 0,
	completed BOOLEAN NOT NULL DEFAULT FALSE,
	asset_url TEXT NOT NULL DEFAULT ''
)`, t.table)
	if _, err := t.db.ExecContext(ctx, query); err != nil {
		return &SourceError{Source: t.source, Operation: "create table", Err: err}
	}
	return nil
}

func (t *sqlTable) upsert(ctx context.Context, lessons []Lesson) error {
	p := t.params(5)
	query := fmt.Sprintf(`INSERT INTO %s (id, title, sort_order, completed, asset_url) VALUES (%s)
ON CONFLICT (id) DO UPDATE SET title = excluded.title, sort_order = excluded.sort_order,
completed = excluded.completed, asset_url = excluded.asset_url`, t.table, strings.Join(p, ", "))

	tx, err := t.db.BeginTx(ctx, nil)
	if err != nil {
		return &SourceError{Source: t.source, Operation: "begin", Err: err}
	}
	defer tx.Rollback()

	for _, l := range lessons {
		if _, err := tx.ExecContext(ctx, query, l.ID, l.Title, l.Order, l.Completed, l.AssetURL); err != nil {
			return &SourceError{Source: t.source, Operation: "upsert", Err: fmt.Errorf("lesson %q: %w", l.ID, err)}
		}
	}
	if err := tx.Commit(); err != nil {
		return &SourceError{Source: t.source, Operation: "commit", Err: err}
	}
	return nil
}

func (t *sqlTable) setCompleted(ctx context.Context, id string, completed bool) error {
	query := fmt.Sprintf("UPDATE %s SET completed = %s WHERE id = %s", t.table, t.placeholder(1), t.placeholder(2))
	res, err := t.db.ExecContext(ctx, query, completed, id)
	if err != nil {
		return &SourceError{Source: t.source, Operation: "update", Err: err}
	}
	if n, err := res.RowsAffected(); err == nil && n == 0 {
		return &SourceError{Source: t.source, Operation: "update", Err: fmt.Errorf("lesson %q not found", id)}
	}
	return nil
}
