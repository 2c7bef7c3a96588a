package course

import (
	"context"
	"fmt"
	"strings"

	"github.com/garyellow/goose-bot/internal/directory"
	apperrors "github.com/garyellow/goose-bot/internal/errors"
	"github.com/garyellow/goose-bot/internal/logger"
)

const (
	replyHeader = "Honk! It looks like you mentioned a few university courses in your post!"
	footerRule  = "---"
	// gooseEmoji is the HTML entity for U+1F9A2; the forum's markdown renders it.
	gooseEmoji = "&#x1f9a2;"
	contactURL = "https://www.reddit.com/message/compose/?to=/u/"
)

// Formatter builds course replies from free text.
type Formatter struct {
	lookup  directory.Lookup
	botName string
	logger  *logger.Logger
}

// NewFormatter creates a formatter. botName is the account linked in the footer.
func NewFormatter(lookup directory.Lookup, botName string, log *logger.Logger) *Formatter {
	if log == nil {
		log = logger.Discard()
	}
	return &Formatter{
		lookup:  lookup,
		botName: botName,
		logger:  log.WithModule("formatter"),
	}
}

// Format returns the reply body for text, or "" when no reply should be sent.
//
// A lone identifier that does not resolve suppresses the reply entirely; with
// several identifiers the unresolved ones are skipped.
func (f *Formatter) Format(ctx context.Context, text string) string {
	ids := Extract(text)
	if len(ids) == 0 {
		return ""
	}

	lines := make([]string, 0, len(ids))
	for _, id := range ids {
		record, ok := f.resolve(ctx, id)
		if !ok {
			if len(ids) == 1 {
				return ""
			}
			continue
		}
		lines = append(lines, formatLine(record))
	}

	if len(lines) == 0 {
		return ""
	}
	return f.compose(lines)
}

func (f *Formatter) resolve(ctx context.Context, id Identifier) (*directory.CourseRecord, bool) {
	program, number := Split(id)
	record, err := f.lookup.Lookup(ctx, program, number)
	switch {
	case err == nil && record != nil:
		return record, true
	case err == nil, apperrors.IsNotFound(err):
		f.logger.DebugContext(ctx, "Course not in directory", "course", string(id))
	default:
		f.logger.WithError(err).WarnContext(ctx, "Course lookup failed", "course", string(id))
	}
	return nil, false
}

func formatLine(r *directory.CourseRecord) string {
	return fmt.Sprintf("[%s](%s): %s", r.Code(), r.URL, strings.TrimSpace(r.Title))
}

func (f *Formatter) compose(lines []string) string {
	var b strings.Builder
	b.WriteString(replyHeader)
	b.WriteString("\n\n")
	b.WriteString(strings.Join(lines, "\n\n"))
	b.WriteString("\n\n")
	b.WriteString(footerRule)
	b.WriteString("\n\n")
	fmt.Fprintf(&b, "I am an automated goose %s - you can contact my creators [here](%s%s)", gooseEmoji, contactURL, f.botName)
	return b.String()
}
