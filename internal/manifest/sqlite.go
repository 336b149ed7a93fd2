package manifest

import (
	"context"
	"database/sql"
	"fmt"

	_ "modernc.org/sqlite" // Pure Go SQLite driver
)

// SQLiteSource reads the manifest from a SQLite table.
type SQLiteSource struct {
	sqlTable
	dbPath string
}

// NewSQLiteSource opens the database at dbPath.
func NewSQLiteSource(dbPath, table string) (*SQLiteSource, error) {
	if dbPath == "" {
		return nil, fmt.Errorf("sqlite manifest: database path is required")
	}
	// Validate table name (prevent SQL injection)
	if !isValidIdentifier(table) {
		return nil, fmt.Errorf("sqlite manifest: invalid table name %q", table)
	}

	db, err := sql.Open("sqlite", dbPath)
	if err != nil {
		return nil, &SourceError{Source: "sqlite", Operation: "open", Err: err}
	}
	// Test connection
	if err := db.Ping(); err != nil {
		db.Close()
		return nil, &SourceError{Source: "sqlite", Operation: "connect", Err: err}
	}

	return &SQLiteSource{
		sqlTable: sqlTable{
			source:      "sqlite",
			db:          db,
			table:       table,
			placeholder: func(int) string { return "?" },
		},
		dbPath: dbPath,
	}, nil
}

// Name implements Source.
func (s *SQLiteSource) Name() string { return "sqlite" }

// Lessons implements Source.
func (s *SQLiteSource) Lessons(ctx context.Context) ([]Lesson, error) {
	return s.lessons(ctx)
}

// EnsureTable implements Writer.
func (s *SQLiteSource) EnsureTable(ctx context.Context) error {
	return s.ensureTable(ctx)
}

// Upsert implements Writer.
func (s *SQLiteSource) Upsert(ctx context.Context, lessons []Lesson) error {
	return s.upsert(ctx, lessons)
}

// SetCompleted implements Writer.
func (s *SQLiteSource) SetCompleted(ctx context.Context, id string, completed bool) error {
	return s.setCompleted(ctx, id, completed)
}

// Close releases the database connection
func (s *SQLiteSource) Close() error {
	if s.db != nil {
		return s.db.Close()
	}
	return nil
}
