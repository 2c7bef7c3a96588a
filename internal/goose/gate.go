// Package goose runs the bot: it decides which submissions deserve a course
// reply, answers trigger phrases in the inbox, and paces replies so each
// stream posts at most once per cooldown window.
package goose

import (
	"github.com/garyellow/goose-bot/internal/course"
	"github.com/garyellow/goose-bot/internal/forum"
	"github.com/garyellow/goose-bot/internal/ledger"
	"github.com/garyellow/goose-bot/internal/logger"
)

// Gate decides whether a submission should be considered for a reply.
// It is the only place the ledger is consulted before replying.
type Gate struct {
	ledger ledger.Ledger
	logger *logger.Logger
}

// NewGate creates a gate over l.
func NewGate(l ledger.Ledger, log *logger.Logger) *Gate {
	if log == nil {
		log = logger.Discard()
	}
	return &Gate{ledger: l, logger: log.WithModule("gate")}
}

// ShouldProcess reports whether sub mentions something shaped like a course
// and has not been replied to. A ledger failure answers false.
func (g *Gate) ShouldProcess(sub forum.Submission) bool {
	if !mentionsCourse(sub) {
		return false
	}

	replied, err := g.ledger.AlreadyReplied(sub.ID)
	if err != nil {
		g.logger.WithError(err).WithField("submission_id", sub.ID).Error("Ledger check failed")
		return false
	}
	return !replied
}

// mentionsCourse is the pattern half of ShouldProcess, used to label skips.
func mentionsCourse(sub forum.Submission) bool {
	return course.HasMention(sub.Title) || course.HasMention(sub.SelfText)
}
