// Package ledger persists the ids of submissions the bot has already replied
// to. The on-disk format is a plain UTF-8 text file with one id per line,
// appended to and never rewritten.
package ledger

import (
	"bufio"
	"bytes"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"strings"
	"sync"

	apperrors "github.com/garyellow/goose-bot/internal/errors"
)

// Ledger answers whether a submission was already replied to and records new replies.
type Ledger interface {
	AlreadyReplied(postID string) (bool, error)
	RecordReply(postID string) error
}

// FileLedger is an append-only ledger file replayed into memory on open.
// Lines appended by other processes, such as the ledger CLI, are picked up
// on the next AlreadyReplied or RecordReply.
type FileLedger struct {
	mu      sync.RWMutex
	path    string
	file    *os.File
	offset  int64 // bytes of complete lines replayed so far
	seen    map[string]struct{}
	entries []string
}

var (
	errRead   = apperrors.NewWrapper("ledger", "read")
	errAppend = apperrors.NewWrapper("ledger", "append")
)

var _ Ledger = (*FileLedger)(nil)

// Open loads the ledger at path, creating the file and its directory when
// missing. A trailing line without a newline is an interrupted write and is
// ignored; the next append starts on a fresh line.
func Open(path string) (*FileLedger, error) {
	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		return nil, fmt.Errorf("ledger: create directory: %w", err)
	}

	file, err := os.OpenFile(path, os.O_RDWR|os.O_CREATE|os.O_APPEND, 0o644)
	if err != nil {
		return nil, fmt.Errorf("ledger: open %s: %w", path, err)
	}

	l := &FileLedger{
		path: path,
		file: file,
		seen: make(map[string]struct{}),
	}

	n, partial, err := l.replay(file)
	if err != nil {
		_ = file.Close()
		return nil, err
	}
	l.offset = n
	if partial {
		if _, err := file.WriteString("\n"); err != nil {
			_ = file.Close()
			return nil, errAppend.Wrap(err, "terminate partial line")
		}
		info, err := file.Stat()
		if err != nil {
			_ = file.Close()
			return nil, errRead.Wrap(err, "stat")
		}
		l.offset = info.Size()
	}
	return l, nil
}

// replay reads complete lines from r and returns how many bytes they
// spanned. It reports whether the input ended with an unterminated line.
func (l *FileLedger) replay(r io.Reader) (n int64, partial bool, err error) {
	reader := bufio.NewReader(r)
	for {
		line, err := reader.ReadBytes('\n')
		if err == io.EOF {
			return n, len(line) > 0, nil
		}
		if err != nil {
			return n, false, errRead.Wrapf(err, "replay %s", l.path)
		}
		n += int64(len(line))

		id := string(bytes.TrimRight(line, "\r\n"))
		if id == "" {
			continue
		}
		if _, dup := l.seen[id]; dup {
			continue
		}
		l.seen[id] = struct{}{}
		l.entries = append(l.entries, id)
	}
}

// refresh replays lines other writers appended since the last read. An
// unterminated tail is left for a later call. Caller holds mu.
func (l *FileLedger) refresh() error {
	info, err := l.file.Stat()
	if err != nil {
		return errRead.Wrap(err, "stat")
	}
	if info.Size() <= l.offset {
		return nil
	}
	n, _, err := l.replay(io.NewSectionReader(l.file, l.offset, info.Size()-l.offset))
	l.offset += n
	return err
}

// AlreadyReplied reports whether postID is recorded. Matching is exact.
func (l *FileLedger) AlreadyReplied(postID string) (bool, error) {
	l.mu.Lock()
	defer l.mu.Unlock()

	if l.file == nil {
		return false, os.ErrClosed
	}
	if err := l.refresh(); err != nil {
		return false, err
	}
	_, ok := l.seen[postID]
	return ok, nil
}

// RecordReply appends postID and syncs the file before it becomes visible
// to AlreadyReplied. Recording an id twice is a no-op.
func (l *FileLedger) RecordReply(postID string) error {
	if strings.TrimSpace(postID) == "" || strings.ContainsAny(postID, "\r\n") {
		return fmt.Errorf("ledger: post id %q: %w", postID, apperrors.ErrInvalidInput)
	}

	l.mu.Lock()
	defer l.mu.Unlock()

	if l.file == nil {
		return os.ErrClosed
	}
	if err := l.refresh(); err != nil {
		return err
	}
	if _, ok := l.seen[postID]; ok {
		return nil
	}

	if _, err := l.file.WriteString(postID + "\n"); err != nil {
		return errAppend.Wrap(err, postID)
	}
	if err := l.file.Sync(); err != nil {
		return errAppend.Wrap(err, "sync")
	}

	l.seen[postID] = struct{}{}
	l.entries = append(l.entries, postID)
	// Advances offset past our own line; a failure here is retried on the next call.
	_ = l.refresh()
	return nil
}

// Len returns the number of recorded ids.
func (l *FileLedger) Len() int {
	l.mu.RLock()
	defer l.mu.RUnlock()
	return len(l.entries)
}

// Entries returns the recorded ids in file order.
func (l *FileLedger) Entries() []string {
	l.mu.RLock()
	defer l.mu.RUnlock()
	out := make([]string, len(l.entries))
	copy(out, l.entries)
	return out
}

// Path returns the ledger file location.
func (l *FileLedger) Path() string {
	return l.path
}

// Close releases the file handle. Further calls return os.ErrClosed.
func (l *FileLedger) Close() error {
	l.mu.Lock()
	defer l.mu.Unlock()

	if l.file == nil {
		return nil
	}
	err := l.file.Close()
	l.file = nil
	return err
}
