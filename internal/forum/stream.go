package forum

import (
	"context"
	"sync"
)

// seenCapacity bounds how many item ids a stream remembers. The listing
// endpoints return at most listingLimit items, so anything older than that
// cannot reappear.
const seenCapacity = 3*listingLimit + 1

// Stream is a pull-based feed. Next returns ok=false when no new item is
// available right now; callers poll again later instead of blocking.
type Stream[T any] interface {
	Next(ctx context.Context) (item T, ok bool, err error)
}

// PollStream turns a listing fetch into a Stream. Each fetch is filtered
// against the ids already yielded so every item is produced at most once.
type PollStream[T any] struct {
	fetch func(context.Context) ([]T, error)
	key   func(T) string

	mu      sync.Mutex
	pending []T
	seen    map[string]struct{}
	ring    []string
	next    int
}

// NewPollStream creates a stream backed by fetch. key returns an item's
// identity for de-duplication.
func NewPollStream[T any](fetch func(context.Context) ([]T, error), key func(T) string) *PollStream[T] {
	return &PollStream[T]{
		fetch: fetch,
		key:   key,
		seen:  make(map[string]struct{}, seenCapacity),
		ring:  make([]string, 0, seenCapacity),
	}
}

// Next returns the next unseen item, fetching once when the buffer is empty.
func (s *PollStream[T]) Next(ctx context.Context) (T, bool, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	var zero T
	if len(s.pending) == 0 {
		items, err := s.fetch(ctx)
		if err != nil {
			return zero, false, err
		}
		for _, item := range items {
			k := s.key(item)
			if _, ok := s.seen[k]; ok {
				continue
			}
			s.remember(k)
			s.pending = append(s.pending, item)
		}
	}

	if len(s.pending) == 0 {
		return zero, false, nil
	}
	item := s.pending[0]
	s.pending[0] = zero
	s.pending = s.pending[1:]
	return item, true, nil
}

func (s *PollStream[T]) remember(k string) {
	if len(s.ring) < seenCapacity {
		s.ring = append(s.ring, k)
		s.seen[k] = struct{}{}
		return
	}
	delete(s.seen, s.ring[s.next])
	s.ring[s.next] = k
	s.seen[k] = struct{}{}
	s.next = (s.next + 1) % seenCapacity
}

// NewSubmissionStream yields new submissions in subreddit, oldest first.
func NewSubmissionStream(c *Client, subreddit string) *PollStream[Submission] {
	return NewPollStream(
		func(ctx context.Context) ([]Submission, error) { return c.NewSubmissions(ctx, subreddit) },
		func(s Submission) string { return s.FullName },
	)
}

// NewInboxStream yields unread inbox items. Items stay unread until marked,
// so the seen set keeps an unanswered item from being yielded twice.
func NewInboxStream(c *Client) *PollStream[InboxMessage] {
	return NewPollStream(c.UnreadInbox, func(m InboxMessage) string { return m.FullName })
}
