// Package course finds course-code mentions in free text and turns them into
// a forum reply listing each resolved course.
package course

import (
	"regexp"
	"strings"
	"unicode"

	"golang.org/x/text/unicode/norm"

	"github.com/garyellow/goose-bot/internal/sliceutil"
)

// Identifier is a normalized course code: uppercase program letters followed
// by a three-digit number, e.g. "CS136".
type Identifier string

var (
	// mentionPattern finds identifiers for reply generation.
	mentionPattern = regexp.MustCompile(`[A-Za-z]{2,}\s?[0-9]{3}`)
	// gatePattern is the looser shape check used before a submission is processed.
	gatePattern = regexp.MustCompile(`[A-Za-z]{2,4}\s?[0-9]{3}`)
)

// Extract returns the distinct identifiers mentioned in text, in order of
// first appearance. Matches are leftmost and non-overlapping.
func Extract(text string) []Identifier {
	matches := mentionPattern.FindAllString(norm.NFKC.String(text), -1)
	if len(matches) == 0 {
		return nil
	}

	ids := make([]Identifier, 0, len(matches))
	for _, m := range matches {
		ids = append(ids, normalize(m))
	}
	return sliceutil.Unique(ids)
}

// HasMention reports whether text contains something shaped like a course code.
func HasMention(text string) bool {
	return gatePattern.MatchString(norm.NFKC.String(text))
}

// Split separates an identifier into its program code and course number.
func Split(id Identifier) (program, number string) {
	s := string(id)
	i := strings.IndexFunc(s, unicode.IsDigit)
	if i < 0 {
		return s, ""
	}
	return s[:i], s[i:]
}

func normalize(match string) Identifier {
	stripped := strings.Map(func(r rune) rune {
		if unicode.IsSpace(r) {
			return -1
		}
		return r
	}, match)
	return Identifier(strings.ToUpper(stripped))
}
