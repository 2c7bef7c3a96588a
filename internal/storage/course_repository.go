package storage

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"log/slog"
	"strings"
	"time"

	apperrors "github.com/garyellow/goose-bot/internal/errors"
)

// Course is a cached directory record.
type Course struct {
	Program  string
	Number   string
	Title    string
	URL      string
	Source   string // Provider that produced the record
	CachedAt int64
}

// SaveCourse inserts or refreshes a cached course.
func (db *DB) SaveCourse(ctx context.Context, course *Course) error {
	if course == nil || course.Program == "" || course.Number == "" {
		return fmt.Errorf("save course: %w", apperrors.ErrInvalidInput)
	}

	query := `
		INSERT INTO courses (program, number, title, url, source, cached_at)
		VALUES (?, ?, ?, ?, ?, ?)
		ON CONFLICT(program, number) DO UPDATE SET
			title = excluded.title,
			url = excluded.url,
			source = excluded.source,
			cached_at = excluded.cached_at
	`
	start := time.Now()
	_, err := db.conn.ExecContext(ctx, query,
		strings.ToUpper(course.Program), course.Number, course.Title, course.URL, course.Source, db.now().Unix())
	if err != nil {
		return fmt.Errorf("failed to save course %s%s: %w", course.Program, course.Number, err)
	}

	if duration := time.Since(start); duration > 100*time.Millisecond {
		slog.WarnContext(ctx, "slow database operation",
			"operation", "SaveCourse",
			"duration_ms", duration.Milliseconds(),
			"course", course.Program+course.Number)
	}
	return nil
}

// GetCourse returns a non-expired cached course or an error wrapping ErrNotFound.
func (db *DB) GetCourse(ctx context.Context, program, number string) (*Course, error) {
	query := `
		SELECT program, number, title, url, source, cached_at
		FROM courses
		WHERE program = ? AND number = ? AND cached_at > ?
	`
	var c Course
	err := db.conn.QueryRowContext(ctx, query, strings.ToUpper(program), number, db.ttlCutoff()).
		Scan(&c.Program, &c.Number, &c.Title, &c.URL, &c.Source, &c.CachedAt)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, fmt.Errorf("course %s%s: %w", program, number, apperrors.ErrNotFound)
	}
	if err != nil {
		return nil, fmt.Errorf("failed to get course %s%s: %w", program, number, err)
	}
	return &c, nil
}

// DeleteExpiredCourses removes entries older than the cache TTL.
func (db *DB) DeleteExpiredCourses(ctx context.Context) (int64, error) {
	result, err := db.conn.ExecContext(ctx, `DELETE FROM courses WHERE cached_at <= ?`, db.ttlCutoff())
	if err != nil {
		return 0, fmt.Errorf("failed to delete expired courses: %w", err)
	}
	return result.RowsAffected()
}

// CountCourses returns the number of cached courses, expired ones included.
func (db *DB) CountCourses(ctx context.Context) (int, error) {
	var count int
	if err := db.conn.QueryRowContext(ctx, `SELECT COUNT(*) FROM courses`).Scan(&count); err != nil {
		return 0, fmt.Errorf("failed to count courses: %w", err)
	}
	return count, nil
}
