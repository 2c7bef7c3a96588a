// Package forum talks to the Reddit API: OAuth password-grant login, the
// subreddit "new" listing, the unread inbox, replying and marking messages
// read. Listings are exposed as pull streams that report when they are
// temporarily exhausted instead of blocking.
package forum

import (
	"context"
	"strings"
)

// Kind distinguishes inbox items.
type Kind string

const (
	KindComment Kind = "comment"
	KindMessage Kind = "message"
)

// Fullname prefixes used by the API.
const (
	prefixComment    = "t1_"
	prefixSubmission = "t3_"
	prefixMessage    = "t4_"
)

// Submission is a post in the watched community.
type Submission struct {
	ID        string
	FullName  string // t3_<id>
	Title     string
	SelfText  string
	Permalink string
	Author    string
}

// InboxMessage is an unread comment reply, mention or private message.
type InboxMessage struct {
	ID              string
	FullName        string
	Kind            Kind
	Body            string
	Author          string
	SubmissionID    string // Parent submission id for comments
	SubmissionTitle string
	Context         string // Permalink with context
}

// Replier posts replies and acknowledges inbox items.
type Replier interface {
	Reply(ctx context.Context, fullName, body string) error
	MarkRead(ctx context.Context, fullName string) error
}

// submissionIDFromContext extracts the submission id from a comment context
// link such as /r/uwaterloo/comments/abc123/title/def456/?context=3.
func submissionIDFromContext(context string) string {
	parts := strings.Split(strings.Trim(context, "/"), "/")
	for i, p := range parts {
		if p == "comments" && i+1 < len(parts) {
			return parts[i+1]
		}
	}
	return ""
}
