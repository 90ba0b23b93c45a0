package reply

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"go.opentelemetry.io/otel/attribute"

	"basegraph.app/textrelay/common/llm"
	"basegraph.app/textrelay/common/logger"
	"basegraph.app/textrelay/internal/domain"
	"basegraph.app/textrelay/internal/workerpool"
)

const (
	// ApologyText replaces a completion that failed.
	ApologyText = "Sorry, I couldn't come up with a reply right now. Please try again later."
	// PlaceholderText answers the webhook when the completion misses the deadline.
	PlaceholderText = "Working on it…"
)

type OutcomeKind string

const (
	OutcomeImmediate OutcomeKind = "immediate"
	OutcomeDeferred  OutcomeKind = "deferred"
)

// Outcome is what the webhook answers with. Deferred outcomes carry the
// placeholder; the real reply follows through the Messenger.
type Outcome struct {
	Kind OutcomeKind
	Text string
}

// Messenger sends a message out-of-band. Implementations must be safe for
// concurrent use.
type Messenger interface {
	Send(ctx context.Context, d domain.Delivery) (string, error)
	Name() string
}

// Submitter schedules work on a long-lived pool.
type Submitter interface {
	Submit(ctx context.Context, task workerpool.Task) error
}

type Config struct {
	// Timeout is the bounded wait for the completion. Zero or negative means
	// every reply is deferred.
	Timeout time.Duration
	// FromNumber is the sending address for deferred deliveries.
	FromNumber string
}

type Orchestrator struct {
	completer llm.Completer
	messenger Messenger
	pool      Submitter
	timeout   time.Duration
	from      string
}

// New wires the orchestrator. A nil messenger is allowed: deferred replies are
// then logged and dropped.
func New(completer llm.Completer, messenger Messenger, pool Submitter, cfg Config) (*Orchestrator, error) {
	if completer == nil {
		return nil, errors.New("completion client is required")
	}
	if pool == nil {
		return nil, errors.New("worker pool is required")
	}
	return &Orchestrator{
		completer: completer,
		messenger: messenger,
		pool:      pool,
		timeout:   cfg.Timeout,
		from:      cfg.FromNumber,
	}, nil
}

// Handle produces the reply for msg. It waits for the completion at most
// Timeout; past that it returns the placeholder and leaves the completion
// running, delivering its result to the sender when it arrives.
// The completion is never cancelled, neither by the deadline nor by ctx.
func (o *Orchestrator) Handle(ctx context.Context, msg domain.InboundMessage) Outcome {
	ctx = logger.WithLogFields(ctx, logger.LogFields{Component: "textrelay.reply"})
	sc := logger.StartSpan(ctx, "reply.handle")
	defer sc.End()
	ctx = sc.Context()

	task := newCompletionTask(msg.Body)
	background := context.WithoutCancel(ctx)
	late := o.lateHandler(background, msg)

	if o.timeout <= 0 {
		task.abandon(late)
	}

	if err := o.pool.Submit(background, func(ctx context.Context) {
		o.runCompletion(ctx, task)
	}); err != nil {
		slog.ErrorContext(ctx, "failed to schedule completion", "error", err)
		sc.RecordError(err)
		return o.fallback(ctx)
	}

	if o.timeout <= 0 {
		return o.deferred(ctx)
	}

	timer := time.NewTimer(o.timeout)
	defer timer.Stop()

	select {
	case <-task.done:
		text, err := task.result()
		return o.settled(ctx, text, err)
	case <-timer.C:
		slog.InfoContext(ctx, "completion missed reply deadline, deferring",
			"timeout_ms", o.timeout.Milliseconds())
	case <-ctx.Done():
		// The caller is gone; the reply can only reach the sender out-of-band.
		slog.WarnContext(ctx, "request ended before completion, deferring", "error", ctx.Err())
	}

	if text, err, settled := task.abandon(late); settled {
		return o.settled(ctx, text, err)
	}
	return o.deferred(ctx)
}

func (o *Orchestrator) runCompletion(ctx context.Context, task *completionTask) {
	sc := logger.StartSpan(ctx, "reply.complete")
	defer sc.End()
	ctx = sc.Context()

	start := time.Now()
	text, err := o.complete(ctx, task.prompt)
	elapsed := time.Since(start)

	result := "success"
	if err != nil {
		result = llm.Classify(err)
		sc.RecordError(err)
	}
	completionDurationHist.WithLabelValues(result).Observe(elapsed.Seconds())
	sc.SetAttributes(
		attribute.String("completion.result", result),
		attribute.Int64("completion.duration_ms", elapsed.Milliseconds()),
	)

	task.settle(text, err)
}

func (o *Orchestrator) complete(ctx context.Context, prompt string) (text string, err error) {
	defer func() {
		if r := recover(); r != nil {
			err = fmt.Errorf("completion panic: %v", r)
		}
	}()
	return o.completer.Complete(ctx, prompt)
}

func (o *Orchestrator) settled(ctx context.Context, text string, err error) Outcome {
	if err != nil {
		slog.ErrorContext(ctx, "completion failed",
			"error", err,
			"failure", llm.Classify(err),
			"model", o.completer.Model())
		return o.fallback(ctx)
	}

	replyOutcomesCounter.WithLabelValues(outcomeLabelImmediate).Inc()
	slog.InfoContext(logger.WithLogFields(ctx, logger.LogFields{Outcome: logger.Ptr(string(OutcomeImmediate))}),
		"replying immediately", "reply_len", len(text))
	return Outcome{Kind: OutcomeImmediate, Text: text}
}

func (o *Orchestrator) fallback(ctx context.Context) Outcome {
	replyOutcomesCounter.WithLabelValues(outcomeLabelFallback).Inc()
	return Outcome{Kind: OutcomeImmediate, Text: ApologyText}
}

func (o *Orchestrator) deferred(ctx context.Context) Outcome {
	replyOutcomesCounter.WithLabelValues(outcomeLabelDeferred).Inc()
	slog.InfoContext(logger.WithLogFields(ctx, logger.LogFields{Outcome: logger.Ptr(string(OutcomeDeferred))}),
		"replying with placeholder")
	return Outcome{Kind: OutcomeDeferred, Text: PlaceholderText}
}

// lateHandler builds the continuation for a deferred task. It runs on the
// worker that ran the completion, after the webhook has already answered, so
// nothing it does can reach the caller: failures are logged and dropped.
func (o *Orchestrator) lateHandler(ctx context.Context, msg domain.InboundMessage) lateHandler {
	ctx = logger.WithLogFields(ctx, logger.LogFields{Outcome: logger.Ptr(string(OutcomeDeferred))})
	return func(text string, err error) {
		body := text
		if err != nil {
			slog.ErrorContext(ctx, "late completion failed, sending apology",
				"error", err,
				"failure", llm.Classify(err),
				"model", o.completer.Model())
			body = ApologyText
		}
		o.deliver(ctx, msg, body)
	}
}

func (o *Orchestrator) deliver(ctx context.Context, msg domain.InboundMessage, body string) {
	if o.messenger == nil {
		deliveriesCounter.WithLabelValues(deliveryLabelSkipped).Inc()
		slog.WarnContext(ctx, "delivery client not configured, dropping deferred reply",
			"reply_len", len(body))
		return
	}

	sc := logger.StartSpan(ctx, "reply.deliver")
	defer sc.End()
	ctx = sc.Context()

	delivery := domain.Delivery{
		To:   msg.From,
		From: o.from,
		Body: body,
	}

	sid, err := o.send(ctx, delivery)
	if err != nil {
		deliveriesCounter.WithLabelValues(deliveryLabelFailed).Inc()
		sc.RecordError(err)
		slog.ErrorContext(ctx, "deferred delivery failed",
			"error", err,
			"provider", o.messenger.Name())
		return
	}

	deliveriesCounter.WithLabelValues(deliveryLabelSent).Inc()
	slog.InfoContext(ctx, "deferred reply delivered",
		"provider", o.messenger.Name(),
		"provider_message_id", sid,
		"reply_len", len(body))
}

func (o *Orchestrator) send(ctx context.Context, d domain.Delivery) (sid string, err error) {
	defer func() {
		if r := recover(); r != nil {
			err = fmt.Errorf("delivery panic: %v", r)
		}
	}()
	return o.messenger.Send(ctx, d)
}
