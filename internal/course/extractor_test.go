package course

import (
	"slices"
	"testing"
)

func TestExtract(t *testing.T) {
	t.Parallel()

	tests := []struct {
		name string
		text string
		want []Identifier
	}{
		{"spaced and joined", "I'm taking CS 136 and MATH135", []Identifier{"CS136", "MATH135"}},
		{"duplicate forms collapse", "CS 136 CS136", []Identifier{"CS136"}},
		{"case folded", "cs136 or CS 136?", []Identifier{"CS136"}},
		{"first seen order", "STAT230 then CS246 then STAT 230", []Identifier{"STAT230", "CS246"}},
		{"no mention", "anyone going to the goose pond?", nil},
		{"single letter prefix ignored", "A 123 is not a course", nil},
		{"long program", "ECE 105 and PHYS121", []Identifier{"ECE105", "PHYS121"}},
		{"full-width forms", "ＣＳ１３６ help", []Identifier{"CS136"}},
		{"only one space allowed", "CS  136", nil},
		{"digits beyond three", "CS1361", []Identifier{"CS136"}},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			t.Parallel()
			got := Extract(tt.text)
			if !slices.Equal(got, tt.want) {
				t.Errorf("Extract(%q) = %v, want %v", tt.text, got, tt.want)
			}
		})
	}
}

func TestHasMention(t *testing.T) {
	t.Parallel()

	tests := []struct {
		text string
		want bool
	}{
		{"Is CS 136 hard?", true},
		{"math135", true},
		{"nothing here", false},
		{"A 123", false},
		{"", false},
	}
	for _, tt := range tests {
		if got := HasMention(tt.text); got != tt.want {
			t.Errorf("HasMention(%q) = %v, want %v", tt.text, got, tt.want)
		}
	}
}

func TestSplit(t *testing.T) {
	t.Parallel()

	tests := []struct {
		id      Identifier
		program string
		number  string
	}{
		{"CS136", "CS", "136"},
		{"MATH135", "MATH", "135"},
		{"HIST", "HIST", ""},
	}
	for _, tt := range tests {
		p, n := Split(tt.id)
		if p != tt.program || n != tt.number {
			t.Errorf("Split(%q) = (%q, %q), want (%q, %q)", tt.id, p, n, tt.program, tt.number)
		}
	}
}
