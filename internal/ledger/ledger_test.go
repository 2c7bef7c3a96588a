package ledger

import (
	"errors"
	"os"
	"path/filepath"
	"slices"
	"testing"

	apperrors "github.com/garyellow/goose-bot/internal/errors"
)

func openTemp(t *testing.T) (*FileLedger, string) {
	t.Helper()
	path := filepath.Join(t.TempDir(), "nested", "submission_replies_u_uwgoose.txt")
	l, err := Open(path)
	if err != nil {
		t.Fatalf("Open() error = %v", err)
	}
	t.Cleanup(func() { _ = l.Close() })
	return l, path
}

func TestOpen_CreatesMissingFile(t *testing.T) {
	t.Parallel()
	l, path := openTemp(t)

	if _, err := os.Stat(path); err != nil {
		t.Fatalf("ledger file not created: %v", err)
	}
	replied, err := l.AlreadyReplied("xyz999")
	if err != nil {
		t.Fatalf("AlreadyReplied() error = %v", err)
	}
	if replied {
		t.Error("fresh ledger reports xyz999 as replied")
	}
	if l.Len() != 0 {
		t.Errorf("Len() = %d, want 0", l.Len())
	}
}

func TestRecordReply_RoundTrip(t *testing.T) {
	t.Parallel()
	l, path := openTemp(t)

	if err := l.RecordReply("abc123"); err != nil {
		t.Fatalf("RecordReply() error = %v", err)
	}
	replied, err := l.AlreadyReplied("abc123")
	if err != nil || !replied {
		t.Fatalf("AlreadyReplied(abc123) = %v, %v; want true, nil", replied, err)
	}
	if replied, _ := l.AlreadyReplied("abc12"); replied {
		t.Error("prefix of a recorded id must not match")
	}

	data, err := os.ReadFile(path)
	if err != nil {
		t.Fatal(err)
	}
	if string(data) != "abc123\n" {
		t.Errorf("file contents = %q, want %q", data, "abc123\n")
	}
}

func TestRecordReply_Idempotent(t *testing.T) {
	t.Parallel()
	l, path := openTemp(t)

	for range 3 {
		if err := l.RecordReply("abc123"); err != nil {
			t.Fatalf("RecordReply() error = %v", err)
		}
	}
	data, _ := os.ReadFile(path)
	if string(data) != "abc123\n" {
		t.Errorf("file contents = %q, want a single entry", data)
	}
}

func TestRecordReply_RejectsBlank(t *testing.T) {
	t.Parallel()
	l, _ := openTemp(t)

	for _, id := range []string{"", "  ", "a\nb"} {
		if err := l.RecordReply(id); !errors.Is(err, apperrors.ErrInvalidInput) {
			t.Errorf("RecordReply(%q) = %v, want ErrInvalidInput", id, err)
		}
	}
}

func TestOpen_ReplaysExistingEntries(t *testing.T) {
	t.Parallel()
	path := filepath.Join(t.TempDir(), "ledger.txt")
	if err := os.WriteFile(path, []byte("one\ntwo\r\n\nthree\none\n"), 0o644); err != nil {
		t.Fatal(err)
	}

	l, err := Open(path)
	if err != nil {
		t.Fatalf("Open() error = %v", err)
	}
	defer func() { _ = l.Close() }()

	if got, want := l.Entries(), []string{"one", "two", "three"}; !slices.Equal(got, want) {
		t.Errorf("Entries() = %v, want %v", got, want)
	}
}

func TestOpen_IgnoresPartialTrailingLine(t *testing.T) {
	t.Parallel()
	path := filepath.Join(t.TempDir(), "ledger.txt")
	if err := os.WriteFile(path, []byte("done\nhalf"), 0o644); err != nil {
		t.Fatal(err)
	}

	l, err := Open(path)
	if err != nil {
		t.Fatalf("Open() error = %v", err)
	}
	if replied, _ := l.AlreadyReplied("half"); replied {
		t.Error("partial trailing line must not count as recorded")
	}
	if err := l.RecordReply("next"); err != nil {
		t.Fatalf("RecordReply() error = %v", err)
	}
	_ = l.Close()

	data, _ := os.ReadFile(path)
	if string(data) != "done\nhalf\nnext\n" {
		t.Errorf("file contents = %q", data)
	}

	// "half" is now a complete line, which is acceptable: it was written by us.
	reopened, err := Open(path)
	if err != nil {
		t.Fatalf("reopen error = %v", err)
	}
	defer func() { _ = reopened.Close() }()
	if replied, _ := reopened.AlreadyReplied("next"); !replied {
		t.Error("entry lost across reopen")
	}
}

func TestReopen_Persists(t *testing.T) {
	t.Parallel()
	l, path := openTemp(t)
	_ = l.RecordReply("t3_first")
	_ = l.RecordReply("t3_second")
	if err := l.Close(); err != nil {
		t.Fatalf("Close() error = %v", err)
	}

	reopened, err := Open(path)
	if err != nil {
		t.Fatalf("Open() error = %v", err)
	}
	defer func() { _ = reopened.Close() }()

	if reopened.Len() != 2 {
		t.Errorf("Len() = %d, want 2", reopened.Len())
	}
	if reopened.Path() != path {
		t.Errorf("Path() = %q, want %q", reopened.Path(), path)
	}
}

func TestClosed(t *testing.T) {
	t.Parallel()
	l, _ := openTemp(t)
	_ = l.Close()

	if _, err := l.AlreadyReplied("x"); !errors.Is(err, os.ErrClosed) {
		t.Errorf("AlreadyReplied after Close = %v, want os.ErrClosed", err)
	}
	if err := l.RecordReply("x"); !errors.Is(err, os.ErrClosed) {
		t.Errorf("RecordReply after Close = %v, want os.ErrClosed", err)
	}
	if err := l.Close(); err != nil {
		t.Errorf("second Close = %v, want nil", err)
	}
}

func TestAlreadyReplied_SeesOtherWriters(t *testing.T) {
	t.Parallel()
	running, path := openTemp(t)
	if err := running.RecordReply("own1"); err != nil {
		t.Fatal(err)
	}

	cli, err := Open(path)
	if err != nil {
		t.Fatalf("second Open() error = %v", err)
	}
	if err := cli.RecordReply("abc123"); err != nil {
		t.Fatalf("RecordReply() through second handle error = %v", err)
	}
	_ = cli.Close()

	replied, err := running.AlreadyReplied("abc123")
	if err != nil {
		t.Fatalf("AlreadyReplied() error = %v", err)
	}
	if !replied {
		t.Error("id appended by another writer not visible to the open ledger")
	}
	if got, want := running.Entries(), []string{"own1", "abc123"}; !slices.Equal(got, want) {
		t.Errorf("Entries() = %v, want %v", got, want)
	}

	// Recording it again is still a no-op on disk.
	if err := running.RecordReply("abc123"); err != nil {
		t.Fatal(err)
	}
	data, _ := os.ReadFile(path)
	if string(data) != "own1\nabc123\n" {
		t.Errorf("file contents = %q", data)
	}
}

func TestAlreadyReplied_WaitsForCompleteLine(t *testing.T) {
	t.Parallel()
	running, path := openTemp(t)

	appendRaw := func(s string) {
		t.Helper()
		f, err := os.OpenFile(path, os.O_WRONLY|os.O_APPEND, 0o644)
		if err != nil {
			t.Fatal(err)
		}
		defer func() { _ = f.Close() }()
		if _, err := f.WriteString(s); err != nil {
			t.Fatal(err)
		}
	}

	appendRaw("def")
	if replied, _ := running.AlreadyReplied("def"); replied {
		t.Error("unterminated line must not count as recorded")
	}

	appendRaw("456\n")
	if replied, _ := running.AlreadyReplied("def456"); !replied {
		t.Error("completed line not picked up")
	}
	if running.Len() != 1 {
		t.Errorf("Len() = %d, want 1", running.Len())
	}
}
