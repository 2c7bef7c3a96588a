// Package directory resolves course identifiers to catalog records.
//
// Providers:
//   - APIClient: University of Waterloo Open Data API (JSON)
//   - CalendarScraper: undergraduate calendar HTML pages
//   - Chain: first provider that finds the course wins
//   - Cached: SQLite-backed TTL cache with request coalescing
package directory

import (
	"context"
	"fmt"
	"strings"
)

// CourseRecord is a resolved catalog entry.
type CourseRecord struct {
	Program string // Subject code, uppercase (e.g. "CS")
	Number  string // Catalog number (e.g. "136")
	Title   string
	URL     string // Canonical calendar URL
	Source  string // Provider that resolved the record
}

// Code returns the display form "CS 136".
func (r CourseRecord) Code() string {
	return r.Program + " " + r.Number
}

// Lookup resolves one course. Implementations return an error wrapping
// errors.ErrNotFound when the directory has no such course.
type Lookup interface {
	Lookup(ctx context.Context, program, number string) (*CourseRecord, error)
}

// Provider is a named Lookup backed by a remote source.
type Provider interface {
	Lookup
	Name() string
}

// LookupFunc adapts a function to the Lookup interface.
type LookupFunc func(ctx context.Context, program, number string) (*CourseRecord, error)

// Lookup calls f.
func (f LookupFunc) Lookup(ctx context.Context, program, number string) (*CourseRecord, error) {
	return f(ctx, program, number)
}

// cacheKey normalises a program/number pair for caching and coalescing.
func cacheKey(program, number string) string {
	return strings.ToUpper(strings.TrimSpace(program)) + strings.TrimSpace(number)
}

// calendarURL builds the calendar page anchor for a course.
func calendarURL(base, program, number string) string {
	program = strings.ToUpper(program)
	return fmt.Sprintf("%s/course-%s.html#%s%s", strings.TrimRight(base, "/"), program, program, number)
}
