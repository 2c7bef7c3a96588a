package storage

import (
	"context"
	"database/sql"
	"fmt"
)

// InitSchema creates all necessary tables and indexes.
func InitSchema(ctx context.Context, db *sql.DB) error {
	return createCoursesTable(ctx, db)
}

func createCoursesTable(ctx context.Context, db *sql.DB) error {
	query := `
	CREATE TABLE IF NOT EXISTS courses (
		program TEXT NOT NULL,
		number TEXT NOT NULL,
		title TEXT NOT NULL,
		url TEXT NOT NULL,
		source TEXT NOT NULL DEFAULT '',
		cached_at INTEGER NOT NULL,
		PRIMARY KEY (program, number)
	);
	CREATE INDEX IF NOT EXISTS idx_courses_cached_at ON courses(cached_at);
	`

	if _, err := db.ExecContext(ctx, query); err != nil {
		return fmt.Errorf("failed to create courses table: %w", err)
	}
	return nil
}
