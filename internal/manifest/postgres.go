package manifest

import (
	"context"
	"database/sql"
	"fmt"
	"strconv"
	"time"

	_ "github.com/lib/pq" // PostgreSQL driver
)

// PostgresSource reads the manifest from a PostgreSQL table.
type PostgresSource struct {
	sqlTable
}

// NewPostgresSource connects to dsn (falls back to the DATABASE_URL
// environment variable through the config layer).
func NewPostgresSource(dsn, table string) (*PostgresSource, error) {
	if dsn == "" {
		return nil, fmt.Errorf("postgres manifest: database connection required (set manifest.dsn or DATABASE_URL)")
	}
	if !isValidIdentifier(table) {
		return nil, fmt.Errorf("postgres manifest: invalid table name %q", table)
	}

	// Open connection
	db, err := sql.Open("postgres", dsn)
	if err != nil {
		return nil, &SourceError{Source: "postgres", Operation: "open", Err: err}
	}

	// Configure connection pool
	db.SetMaxOpenConns(5)
	db.SetMaxIdleConns(2)
	db.SetConnMaxLifetime(5 * time.Minute)

	// Verify connection
	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	if err := db.PingContext(ctx); err != nil {
		db.Close()
		return nil, &SourceError{Source: "postgres", Operation: "connect", Err: err}
	}

	return &PostgresSource{sqlTable{
		source:      "postgres",
		db:          db,
		table:       table,
		placeholder: func(n int) string { return "$" + strconv.Itoa(n) },
	}}, nil
}

// Name implements Source.
func (s *PostgresSource) Name() string { return "postgres" }

// Lessons implements Source.
func (s *PostgresSource) Lessons(ctx context.Context) ([]Lesson, error) {
	// Execute query with timeout
	queryCtx, cancel := context.WithTimeout(ctx, 30*time.Second)
	defer cancel()
	return s.lessons(queryCtx)
}

// EnsureTable implements Writer.
func (s *PostgresSource) EnsureTable(ctx context.Context) error {
	return s.ensureTable(ctx)
}

// Upsert implements Writer.
func (s *PostgresSource) Upsert(ctx context.Context, lessons []Lesson) error {
	return s.upsert(ctx, lessons)
}

// SetCompleted implements Writer.
func (s *PostgresSource) SetCompleted(ctx context.Context, id string, completed bool) error {
	return s.setCompleted(ctx, id, completed)
}

// Close releases the database connection
func (s *PostgresSource) Close() error {
	if s.db != nil {
		return s.db.Close()
	}
	return nil
}
