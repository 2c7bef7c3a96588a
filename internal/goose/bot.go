package goose

import (
	"context"
	"errors"
	"time"

	"github.com/google/uuid"

	"github.com/garyellow/goose-bot/internal/ctxutil"
	apperrors "github.com/garyellow/goose-bot/internal/errors"
	"github.com/garyellow/goose-bot/internal/forum"
	"github.com/garyellow/goose-bot/internal/ledger"
	"github.com/garyellow/goose-bot/internal/logger"
	"github.com/garyellow/goose-bot/internal/metrics"
	"github.com/garyellow/goose-bot/internal/ratelimit"
	"github.com/garyellow/goose-bot/internal/sentry"
	"github.com/garyellow/goose-bot/internal/trigger"
)

// Stream names used in logs, metrics and limiter labels.
const (
	streamSubmissions = "submissions"
	streamInbox       = "inbox"
)

// Skip reasons recorded in metrics.
const (
	skipNoMention      = "no_mention"
	skipAlreadyReplied = "already_replied"
	skipNoCourses      = "no_courses"
	skipPrivateMessage = "private_message"
	skipNoTrigger      = "no_trigger"
)

// Formatter turns submission text into a reply body, "" meaning no reply.
type Formatter interface {
	Format(ctx context.Context, text string) string
}

// Options wires a Bot. All fields except Metrics and Logger are required.
type Options struct {
	Submissions forum.Stream[forum.Submission]
	Inbox       forum.Stream[forum.InboxMessage]
	Replier     forum.Replier
	Ledger      ledger.Ledger
	Formatter   Formatter

	// Cooldown gates every reply the account makes. A submission reply
	// holds it for SubmissionCooldown and an inbox reply for InboxCooldown.
	Cooldown           ratelimit.Holder
	SubmissionCooldown time.Duration
	InboxCooldown      time.Duration

	// IdlePoll is how long to wait when both streams came up empty.
	IdlePoll time.Duration

	Metrics *metrics.Metrics
	Logger  *logger.Logger
}

// Bot is the poll loop.
type Bot struct {
	opts   Options
	gate   *Gate
	logger *logger.Logger
	after  func(time.Duration) <-chan time.Time
}

// New creates a bot from opts.
func New(opts Options) (*Bot, error) {
	var errs []error
	if opts.Submissions == nil {
		errs = append(errs, errors.New("submission stream is required"))
	}
	if opts.Inbox == nil {
		errs = append(errs, errors.New("inbox stream is required"))
	}
	if opts.Replier == nil {
		errs = append(errs, errors.New("replier is required"))
	}
	if opts.Ledger == nil {
		errs = append(errs, errors.New("ledger is required"))
	}
	if opts.Formatter == nil {
		errs = append(errs, errors.New("formatter is required"))
	}
	if opts.Cooldown == nil {
		errs = append(errs, errors.New("reply cooldown is required"))
	}
	if err := errors.Join(errs...); err != nil {
		return nil, err
	}

	if opts.IdlePoll <= 0 {
		opts.IdlePoll = 30 * time.Second
	}
	if opts.Logger == nil {
		opts.Logger = logger.Discard()
	}

	log := opts.Logger.WithModule("goose")
	return &Bot{
		opts:   opts,
		gate:   NewGate(opts.Ledger, opts.Logger),
		logger: log,
		after:  time.After,
	}, nil
}

// Run alternates between draining the submission stream and the inbox
// stream until ctx is cancelled. Remote failures are logged and skipped;
// the only error returned is the context's.
func (b *Bot) Run(ctx context.Context) error {
	b.logger.Info("Poll loop started")
	defer b.logger.Info("Poll loop stopped")

	for {
		busy, err := b.cycle(ctx)
		if err != nil {
			return err
		}
		if busy {
			continue
		}
		select {
		case <-ctx.Done():
			return ctx.Err()
		case <-b.after(b.opts.IdlePoll):
		}
	}
}

// cycle drains both streams once. It reports whether any item was seen.
func (b *Bot) cycle(ctx context.Context) (bool, error) {
	ctx = ctxutil.WithCycleID(ctx, uuid.NewString())
	if b.opts.Metrics != nil {
		b.opts.Metrics.RecordCycle()
	}

	subs, err := b.drainSubmissions(ctxutil.WithStream(ctx, streamSubmissions))
	if err != nil {
		return false, err
	}
	msgs, err := b.drainInbox(ctxutil.WithStream(ctx, streamInbox))
	if err != nil {
		return false, err
	}
	return subs+msgs > 0, nil
}

func (b *Bot) drainSubmissions(ctx context.Context) (int, error) {
	seen := 0
	for {
		if err := ctx.Err(); err != nil {
			return seen, err
		}
		sub, ok, err := b.opts.Submissions.Next(ctx)
		if err != nil {
			if ctx.Err() != nil {
				return seen, ctx.Err()
			}
			b.reportFailure(ctx, err, "Submission stream fetch failed")
			return seen, nil
		}
		if !ok {
			return seen, nil
		}
		seen++
		b.recordSeen(streamSubmissions)
		if err := b.handleSubmission(ctxutil.WithItemID(ctx, sub.ID), sub); err != nil {
			return seen, err
		}
	}
}

// handleSubmission replies to sub when it passes the gate and mentions at
// least one resolvable course. Only context errors are returned.
func (b *Bot) handleSubmission(ctx context.Context, sub forum.Submission) error {
	log := b.logger.WithField("submission_id", sub.ID)

	if !b.gate.ShouldProcess(sub) {
		reason := skipAlreadyReplied
		if !mentionsCourse(sub) {
			reason = skipNoMention
		}
		b.recordSkip(streamSubmissions, reason)
		log.DebugContext(ctx, "Submission skipped", "reason", reason)
		return nil
	}

	body := b.opts.Formatter.Format(ctx, sub.Title+" "+sub.SelfText)
	if body == "" {
		b.recordSkip(streamSubmissions, skipNoCourses)
		log.InfoContext(ctx, "No courses resolved, not replying", "title", sub.Title)
		return nil
	}

	if err := b.wait(ctx, streamSubmissions); err != nil {
		return err
	}

	err := b.opts.Replier.Reply(ctx, sub.FullName, body)
	b.opts.Cooldown.Hold(b.opts.SubmissionCooldown)
	if err != nil {
		if ctx.Err() != nil {
			return ctx.Err()
		}
		b.recordReply(streamSubmissions, "error")
		b.reportFailure(ctx, err, "Submission reply failed")
		return nil
	}
	b.recordReply(streamSubmissions, "success")

	if err := b.opts.Ledger.RecordReply(sub.ID); err != nil {
		b.reportFailure(ctx, err, "Reply posted but ledger write failed")
		return nil
	}
	log.InfoContext(ctx, "Replied to submission", "title", sub.Title)
	return nil
}

func (b *Bot) drainInbox(ctx context.Context) (int, error) {
	seen := 0
	for {
		if err := ctx.Err(); err != nil {
			return seen, err
		}
		msg, ok, err := b.opts.Inbox.Next(ctx)
		if err != nil {
			if ctx.Err() != nil {
				return seen, ctx.Err()
			}
			b.reportFailure(ctx, err, "Inbox stream fetch failed")
			return seen, nil
		}
		if !ok {
			return seen, nil
		}
		seen++
		b.recordSeen(streamInbox)
		if err := b.handleInbox(ctxutil.WithItemID(ctx, msg.ID), msg); err != nil {
			return seen, err
		}
	}
}

// handleInbox answers trigger phrases in comment replies. Private messages
// are left untouched.
func (b *Bot) handleInbox(ctx context.Context, msg forum.InboxMessage) error {
	log := b.logger.WithField("comment_id", msg.ID)

	if msg.Kind != forum.KindComment {
		b.recordSkip(streamInbox, skipPrivateMessage)
		log.DebugContext(ctx, "Ignoring private message", "author", msg.Author)
		return nil
	}

	reply, ok := trigger.Respond(msg.Body)
	if !ok {
		b.recordSkip(streamInbox, skipNoTrigger)
		return nil
	}

	if err := b.wait(ctx, streamInbox); err != nil {
		return err
	}

	err := b.opts.Replier.Reply(ctx, msg.FullName, reply)
	b.opts.Cooldown.Hold(b.opts.InboxCooldown)
	if err != nil {
		if ctx.Err() != nil {
			return ctx.Err()
		}
		b.recordReply(streamInbox, "error")
		b.reportFailure(ctx, err, "Inbox reply failed")
		return nil
	}
	b.recordReply(streamInbox, "success")

	if err := b.opts.Replier.MarkRead(ctx, msg.FullName); err != nil {
		if ctx.Err() != nil {
			return ctx.Err()
		}
		b.reportFailure(ctx, err, "Mark read failed")
	}
	log.InfoContext(ctx, "Replied to comment", "reply", reply, "submission_id", msg.SubmissionID)
	return nil
}

// wait blocks until the account cooldown from the previous reply, whichever
// stream issued it, has expired.
func (b *Bot) wait(ctx context.Context, stream string) error {
	start := time.Now()
	if err := b.opts.Cooldown.Wait(ctx); err != nil {
		return err
	}
	if b.opts.Metrics != nil {
		b.opts.Metrics.RecordRateLimiterWait(stream, time.Since(start).Seconds())
	}
	return nil
}

func (b *Bot) reportFailure(ctx context.Context, err error, msg string) {
	op := apperrors.Operation(err)
	b.logger.WithError(err).ErrorContext(ctx, msg, "operation", op)
	if b.opts.Metrics != nil {
		b.opts.Metrics.RecordFailure(ctxutil.GetStream(ctx), op)
	}
	sentry.CaptureExceptionWithContext(ctx, err)
}

func (b *Bot) recordSeen(stream string) {
	if b.opts.Metrics != nil {
		b.opts.Metrics.RecordItemSeen(stream)
	}
}

func (b *Bot) recordSkip(stream, reason string) {
	if b.opts.Metrics != nil {
		b.opts.Metrics.RecordSkip(stream, reason)
	}
}

func (b *Bot) recordReply(stream, status string) {
	if b.opts.Metrics != nil {
		b.opts.Metrics.RecordReply(stream, status)
	}
}
