package goose

import (
	"errors"
	"testing"

	"github.com/garyellow/goose-bot/internal/forum"
)

type brokenLedger struct{}

func (brokenLedger) AlreadyReplied(string) (bool, error) { return false, errors.New("disk gone") }
func (brokenLedger) RecordReply(string) error            { return errors.New("disk gone") }

type mapLedger map[string]bool

func (m mapLedger) AlreadyReplied(id string) (bool, error) { return m[id], nil }
func (m mapLedger) RecordReply(id string) error            { m[id] = true; return nil }

func TestGate_ShouldProcess(t *testing.T) {
	t.Parallel()
	gate := NewGate(mapLedger{"done": true}, nil)

	tests := []struct {
		name string
		sub  forum.Submission
		want bool
	}{
		{"title mention", forum.Submission{ID: "a", Title: "CS 136 tips"}, true},
		{"selftext mention", forum.Submission{ID: "b", Title: "help", SelfText: "anyone took stat231?"}, true},
		{"no mention", forum.Submission{ID: "c", Title: "geese near DC"}, false},
		{"long program matches on its suffix", forum.Submission{ID: "d", Title: "ABCDE 123"}, true},
		{"single letter program", forum.Submission{ID: "e", Title: "A 123"}, false},
		{"already replied", forum.Submission{ID: "done", Title: "CS 136 tips"}, false},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := gate.ShouldProcess(tt.sub); got != tt.want {
				t.Errorf("ShouldProcess(%+v) = %v, want %v", tt.sub, got, tt.want)
			}
		})
	}
}

func TestGate_LedgerErrorRejects(t *testing.T) {
	t.Parallel()
	gate := NewGate(brokenLedger{}, nil)
	if gate.ShouldProcess(forum.Submission{ID: "a", Title: "CS 136"}) {
		t.Error("ShouldProcess should be false when the ledger cannot be read")
	}
}
