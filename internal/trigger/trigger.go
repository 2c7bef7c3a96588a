// Package trigger maps fixed phrases in inbox comments to canned replies.
package trigger

import "strings"

type matchMode int

const (
	contains matchMode = iota
	equals
)

type rule struct {
	phrases []string
	mode    matchMode
	reply   string
}

// rules are checked in order; the first match wins.
var rules = []rule{
	{phrases: []string{"good bot"}, mode: contains, reply: "honk honk! &#x1f9a2;"},
	{phrases: []string{"bad bot"}, mode: contains, reply: "sad honk :("},
	{phrases: []string{"thank mr. goose"}, mode: contains, reply: "thank mr. goose <3"},
	{phrases: []string{"bruh moment", "bruh"}, mode: equals, reply: "bruh moment"},
}

// Respond returns the reply for body and whether any phrase matched.
// Matching is case-insensitive; the bruh phrases must be the whole body.
func Respond(body string) (string, bool) {
	lower := strings.ToLower(body)
	for _, r := range rules {
		for _, phrase := range r.phrases {
			if r.matches(lower, phrase) {
				return r.reply, true
			}
		}
	}
	return "", false
}

func (r rule) matches(body, phrase string) bool {
	if r.mode == equals {
		return body == phrase
	}
	return strings.Contains(body, phrase)
}
