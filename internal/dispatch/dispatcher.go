// SPDX-License-Identifier: Apache-2.0
// Copyright 2026 Hermod Contributors

// Package dispatch orchestrates event handling: classify, route to a command
// or passive handler, run admission checks, middleware, and hooks, invoke
// the handler, and record usage and errors. Nothing escapes this boundary;
// a bad plugin can fail its own dispatch but never the loop.
package dispatch

import (
	"context"
	"log/slog"
	"time"

	"github.com/samber/oops"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/trace"

	"github.com/hermodbot/hermod/internal/admission"
	"github.com/hermodbot/hermod/internal/classify"
	"github.com/hermodbot/hermod/internal/hooks"
	"github.com/hermodbot/hermod/internal/registry"
	"github.com/hermodbot/hermod/internal/transport"
)

var tracer = otel.Tracer("hermod/dispatch")

// Outcome is the terminal state of one event's pass through the dispatcher.
type Outcome string

// Terminal states of the dispatch state machine.
const (
	OutcomeIgnored   Outcome = StatusIgnored
	OutcomePassive   Outcome = StatusPassive
	OutcomeCompleted Outcome = StatusCompleted
	OutcomeDenied    Outcome = StatusDenied
	OutcomeFailed    Outcome = StatusFailed
	OutcomeTimeout   Outcome = StatusTimeout
)

// Scope names which chat types the bot answers in.
const (
	ScopeAll     = "all"
	ScopeGroups  = "groups"
	ScopePrivate = "private"
)

// Middleware runs between admission and hooks. Returning proceed=false
// aborts the dispatch with no further action; an error is logged and also
// aborts.
type Middleware func(ctx context.Context, inv *registry.Invocation) (proceed bool, err error)

// Config tunes the dispatcher.
type Config struct {
	// RespondTo is the response-scope policy: ScopeAll, ScopeGroups, or
	// ScopePrivate.
	RespondTo string

	// UnknownCommandNotice replies to prefixed text that matches nothing.
	UnknownCommandNotice bool

	// Debug echoes raw handler error text to users instead of ErrorMessage.
	Debug bool

	// ErrorMessage is the generic failure notice shown outside debug mode.
	ErrorMessage string

	// SuccessReaction / ErrorReaction are applied to the triggering message
	// when non-empty.
	SuccessReaction string
	ErrorReaction   string

	// Timeout is the wall-clock budget for one command execution. The wait
	// is abandoned on expiry; in-flight handler work is not interrupted.
	Timeout time.Duration
}

// Dispatcher routes classified events to plugins.
type Dispatcher struct {
	reg        *registry.Registry
	adm        *admission.Controller
	bus        *hooks.Bus
	cls        *classify.Classifier
	client     transport.Client
	cfg        Config
	middleware []Middleware
	guard      *SpamGuard
}

// Option configures a Dispatcher during construction.
type Option func(*Dispatcher)

// WithMiddleware appends global middleware, run in registration order.
func WithMiddleware(mw ...Middleware) Option {
	return func(d *Dispatcher) {
		d.middleware = append(d.middleware, mw...)
	}
}

// WithSpamGuard enables per-sender message-frequency limiting.
func WithSpamGuard(g *SpamGuard) Option {
	return func(d *Dispatcher) {
		d.guard = g
	}
}

// New creates a Dispatcher.
func New(reg *registry.Registry, adm *admission.Controller, cls *classify.Classifier, client transport.Client, cfg Config, opts ...Option) *Dispatcher {
	if cfg.RespondTo == "" {
		cfg.RespondTo = ScopeAll
	}
	if cfg.ErrorMessage == "" {
		cfg.ErrorMessage = "Something went wrong. Try again."
	}
	if cfg.Timeout <= 0 {
		cfg.Timeout = 2 * time.Minute
	}
	d := &Dispatcher{
		reg:    reg,
		adm:    adm,
		bus:    reg.Bus(),
		cls:    cls,
		client: client,
		cfg:    cfg,
	}
	for _, opt := range opts {
		opt(d)
	}
	return d
}

// HandleEvent runs one event through the state machine and returns its
// terminal state. It never returns an error: every failure is absorbed here.
func (d *Dispatcher) HandleEvent(ctx context.Context, ev *transport.Event) Outcome {
	outcome := d.handle(ctx, ev)
	recordOutcome(outcome)
	return outcome
}

func (d *Dispatcher) handle(ctx context.Context, ev *transport.Event) Outcome {
	if ev == nil || ev.Chat == transport.StatusBroadcast {
		return OutcomeIgnored
	}
	if ev.Presence != nil {
		return OutcomeIgnored
	}
	if ev.Message != nil && ev.Message.Protocol {
		return OutcomeIgnored
	}

	// Group changes invalidate cached metadata before anything else so role
	// checks never run against a stale participant list.
	if ev.GroupUpdate != nil {
		d.cls.Invalidate(ev.Chat)
		d.publishGroupUpdate(ctx, ev)
		return OutcomePassive
	}

	if ev.Message == nil && ev.Reaction == nil && ev.PollVote == nil {
		return OutcomeIgnored
	}

	ic, err := d.cls.Classify(ctx, ev)
	if err != nil {
		if classify.IsDuplicate(err) {
			return OutcomeIgnored
		}
		// No chat context may exist to reply into; never surfaced to users.
		slog.DebugContext(ctx, "event not classifiable",
			"event_id", ev.ID,
			"error", err)
		return OutcomeIgnored
	}

	// Reactions, poll votes, and interactive replies route straight to their
	// keyed passive handlers and terminate there.
	switch {
	case ev.Reaction != nil:
		return d.runKeyed(ctx, ic, d.reg.ReactionHandlers(ev.Reaction.Emoji))
	case ev.PollVote != nil:
		return d.runKeyed(ctx, ic, d.reg.PollHandlers(ev.PollVote.PollID))
	case ic.Interactive != nil && ic.Interactive.Kind == classify.KindButton:
		return d.runKeyed(ctx, ic, d.reg.ButtonHandlers(ic.Interactive.ID))
	case ic.Interactive != nil && ic.Interactive.Kind == classify.KindList:
		return d.runKeyed(ctx, ic, d.reg.ListHandlers(ic.Interactive.ID))
	}

	if ic.FromSelf && !ic.IsOwner {
		return OutcomeIgnored
	}
	if !d.inScope(ic) {
		return OutcomeIgnored
	}

	if d.guard != nil && !d.guard.Allow(ic.Sender) {
		SpamDropped.Inc()
		slog.WarnContext(ctx, "message dropped by spam guard", "sender", ic.Sender)
		return OutcomeIgnored
	}

	prefix := d.reg.Prefix()
	if ic.Body == "" || len(ic.Body) < len(prefix) || ic.Body[:len(prefix)] != prefix {
		return d.runMessageChain(ctx, ic)
	}

	match := d.reg.FindCommand(ic.Body, ic.Kind)
	if match == nil {
		if d.cfg.UnknownCommandNotice {
			d.notify(ctx, ic, "Unknown command. Try "+prefix+"help.")
		}
		return OutcomeIgnored
	}
	return d.dispatchCommand(ctx, ic, match)
}

func (d *Dispatcher) inScope(ic *classify.Context) bool {
	switch d.cfg.RespondTo {
	case ScopeGroups:
		return ic.IsGroup
	case ScopePrivate:
		return ic.IsPrivate
	default:
		return true
	}
}

// runKeyed invokes keyed passive handlers. Handler failures are absorbed.
func (d *Dispatcher) runKeyed(ctx context.Context, ic *classify.Context, handlers []registry.Handler) Outcome {
	if len(handlers) == 0 {
		return OutcomeIgnored
	}
	inv := d.invocation(ic, nil)
	for _, fn := range handlers {
		if err := safeCall(ctx, fn, inv); err != nil {
			slog.WarnContext(ctx, "passive handler failed",
				"event_id", ic.Event.ID,
				"error", err)
		}
	}
	return OutcomePassive
}

// runMessageChain walks the priority-ordered passive message chain; the
// first handler signalling handled stops it.
func (d *Dispatcher) runMessageChain(ctx context.Context, ic *classify.Context) Outcome {
	inv := d.invocation(ic, nil)
	for _, entry := range d.reg.MessageHandlers() {
		if entry.Filter != nil && !entry.Filter(ic) {
			continue
		}
		handled, err := safeMessageCall(ctx, entry.Fn, inv)
		if err != nil {
			slog.WarnContext(ctx, "message handler failed",
				"owner", entry.Owner,
				"error", err)
			continue
		}
		if handled {
			break
		}
	}
	return OutcomePassive
}

func (d *Dispatcher) dispatchCommand(ctx context.Context, ic *classify.Context, match *registry.Match) (outcome Outcome) {
	def := match.Def
	ctx, span := tracer.Start(ctx, "dispatch.command",
		trace.WithAttributes(
			attribute.String("command.name", def.Name),
			attribute.String("command.alias", match.MatchedAlias),
			attribute.String("chat", ic.Chat),
		),
	)
	defer func() {
		span.SetAttributes(attribute.String("dispatch.outcome", string(outcome)))
		span.End()
	}()

	inv := d.invocation(ic, match)

	dec := d.adm.CanExecute(ctx, def, ic)
	if !dec.Allowed {
		admission.RecordDenial(def.Name, dec.Reason)
		span.SetAttributes(attribute.String("admission.reason", string(dec.Reason)))
		d.notify(ctx, ic, DenialMessage(dec))
		d.bus.Publish(ctx, hooks.OnPermissionDenied, &hooks.Payload{
			Command:    def.Name,
			Plugin:     def.OwnerKey(),
			Invocation: ic,
			Reason:     string(dec.Reason),
		})
		return OutcomeDenied
	}

	for _, mw := range d.middleware {
		proceed, err := mw(ctx, inv)
		if err != nil {
			slog.WarnContext(ctx, "middleware failed",
				"command", def.Name,
				"error", err)
			return OutcomeIgnored
		}
		if !proceed {
			return OutcomeIgnored
		}
	}

	if aborted := d.bus.Publish(ctx, hooks.BeforeCommand, &hooks.Payload{
		Command:    def.Name,
		Plugin:     def.OwnerKey(),
		Invocation: ic,
	}); aborted {
		return OutcomeIgnored
	}

	return d.execute(ctx, span, ic, inv, def)
}

// execute runs the handler under the wall-clock budget. On timeout the wait
// is abandoned: bookkeeping happens immediately, the goroutine is left to
// finish against its own context.
func (d *Dispatcher) execute(ctx context.Context, span trace.Span, ic *classify.Context, inv *registry.Invocation, def *registry.Definition) Outcome {
	tctx, cancel := context.WithTimeout(ctx, d.cfg.Timeout)
	defer cancel()

	start := time.Now()
	done := make(chan error, 1)
	go func() {
		done <- safeCall(tctx, def.Handler, inv)
	}()

	select {
	case <-tctx.Done():
		err := oops.Code("DISPATCH_TIMEOUT").
			With("command", def.Name).
			With("timeout", d.cfg.Timeout.String()).
			Errorf("dispatch abandoned after timeout")
		d.adm.RecordError(def, err)
		span.RecordError(err)
		span.SetStatus(codes.Error, "timeout")
		slog.ErrorContext(ctx, "dispatch abandoned: timeout",
			"command", def.Name,
			"timeout", d.cfg.Timeout)
		// Timeouts are bookkept like handler failures: the error hooks fire
		// even though the handler goroutine is still draining.
		d.bus.Publish(ctx, hooks.OnError, &hooks.Payload{
			Command:    def.Name,
			Plugin:     def.OwnerKey(),
			Invocation: ic,
			Err:        err,
		})
		d.bus.Publish(ctx, hooks.PluginError, &hooks.Payload{
			Plugin: def.OwnerKey(),
			Err:    err,
		})
		return OutcomeTimeout

	case err := <-done:
		elapsed := time.Since(start)
		recordDuration(def.Name, elapsed)

		if err != nil {
			d.adm.RecordError(def, err)
			span.RecordError(err)
			span.SetStatus(codes.Error, err.Error())
			slog.WarnContext(ctx, "command execution failed",
				"command", def.Name,
				"sender", ic.Sender,
				"error", err)
			d.reactTo(ctx, ic, d.cfg.ErrorReaction)
			if d.cfg.Debug {
				d.notify(ctx, ic, err.Error())
			} else {
				d.notify(ctx, ic, d.cfg.ErrorMessage)
			}
			d.bus.Publish(ctx, hooks.OnError, &hooks.Payload{
				Command:    def.Name,
				Plugin:     def.OwnerKey(),
				Invocation: ic,
				Err:        err,
			})
			d.bus.Publish(ctx, hooks.PluginError, &hooks.Payload{
				Plugin: def.OwnerKey(),
				Err:    err,
			})
			return OutcomeFailed
		}

		d.adm.RecordUsage(def, ic.Sender, ic.Chat, elapsed)
		d.reactTo(ctx, ic, d.cfg.SuccessReaction)
		d.bus.Publish(ctx, hooks.AfterCommand, &hooks.Payload{
			Command:    def.Name,
			Plugin:     def.OwnerKey(),
			Invocation: ic,
		})
		return OutcomeCompleted
	}
}

func (d *Dispatcher) publishGroupUpdate(ctx context.Context, ev *transport.Event) {
	payload := &hooks.Payload{
		Data: map[string]any{
			"chat":         ev.Chat,
			"participants": ev.GroupUpdate.Participants,
			"action":       ev.GroupUpdate.Action,
		},
	}
	switch ev.GroupUpdate.Action {
	case "join":
		d.bus.Publish(ctx, hooks.OnGroupJoin, payload)
	case "leave":
		d.bus.Publish(ctx, hooks.OnGroupLeave, payload)
	}
}

func (d *Dispatcher) invocation(ic *classify.Context, match *registry.Match) *registry.Invocation {
	inv := &registry.Invocation{
		Event:   ic.Event,
		Context: ic,
		Client:  d.client,
	}
	if match != nil {
		inv.MatchedAlias = match.MatchedAlias
		inv.ArgsText = match.ArgsText
		inv.Args = match.Args
		inv.Flags = match.Flags
	} else {
		inv.ArgsText = ic.Body
	}
	return inv
}

func (d *Dispatcher) notify(ctx context.Context, ic *classify.Context, text string) {
	if text == "" {
		return
	}
	if _, err := ic.Caps.Reply(ctx, text); err != nil {
		slog.WarnContext(ctx, "failed to send notice",
			"chat", ic.Chat,
			"error", err)
	}
}

func (d *Dispatcher) reactTo(ctx context.Context, ic *classify.Context, emoji string) {
	if emoji == "" {
		return
	}
	if err := ic.Caps.React(ctx, emoji); err != nil {
		slog.DebugContext(ctx, "failed to apply reaction",
			"chat", ic.Chat,
			"error", err)
	}
}

// safeCall absorbs handler panics into errors so one plugin cannot take the
// dispatcher loop down.
func safeCall(ctx context.Context, fn registry.Handler, inv *registry.Invocation) (err error) {
	defer func() {
		if r := recover(); r != nil {
			err = oops.Code("HANDLER_PANIC").With("panic", r).Errorf("handler panicked")
		}
	}()
	return fn(ctx, inv)
}

func safeMessageCall(ctx context.Context, fn registry.MessageHandler, inv *registry.Invocation) (handled bool, err error) {
	defer func() {
		if r := recover(); r != nil {
			err = oops.Code("HANDLER_PANIC").With("panic", r).Errorf("message handler panicked")
		}
	}()
	return fn(ctx, inv)
}
