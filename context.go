// File: context.go
package revue

import (
	"sync/atomic"
	"time"
)

// ResponseHandle identifies a pending sync-send request issued via
// Context.Request. It is only meaningful to Context.Then/ThenTimeout on the
// same actor that created it.
type ResponseHandle struct {
	id    messageID
	trace string
}

// ResponsePromise is a detachable handle to the deferred reply of a
// request this actor is currently handling (spec §4.3's
// make_response_promise; GLOSSARY "Response promise: a first-class handle
// to the deferred reply of a received request; can be fulfilled later by
// any code holding it"). Unlike Reply, which must be returned
// synchronously from the handler that received the request, a promise can
// be stored, handed to another goroutine or actor, and fulfilled whenever
// the eventual answer becomes available. The zero ResponsePromise (e.g.
// one taken for a message that was not itself a sync-send request) is
// valid and its Fulfill is simply a no-op.
type ResponsePromise struct {
	engine    *Engine
	requester Address
	id        messageID
	trace     string
	fulfilled *atomic.Bool
}

// Fulfill delivers v to the original requester as the response, exactly
// once; a second Fulfill (or a Fulfill on a promise taken for a non-
// request) is a silent no-op, matching Reply's silent-drop behavior for a
// message with nothing to reply to.
func (rp ResponsePromise) Fulfill(v any) {
	if rp.fulfilled == nil || !rp.fulfilled.CompareAndSwap(false, true) {
		return
	}
	rp.engine.deliver(envelope{
		target: rp.requester,
		msg:    NewMessage(v),
		id:     rp.id.asResponse(),
		trace:  rp.trace,
	})
}

// Context is the capability set handed to an actor's Producer and to every
// MatchCase/Timeout/on-exit handler (spec §3 "Actor object", §4.3, §4.4). It
// is not safe to retain a Context past the handler call that received it:
// all of its methods assume they run on the actor's own dispatch turn.
type Context interface {
	// Self returns this actor's own handle.
	Self() PID

	// Sender returns the handle of whoever sent the message currently
	// being handled, or the zero PID for messages with no addressable
	// sender (e.g. a timeout).
	Sender() PID

	// Send delivers msg to to asynchronously; it never blocks and never
	// fails visibly (a dead target silently drops the message, per spec
	// §4.2/§4.3).
	Send(to PID, msg Message)

	// Request sends msg to "to" as a sync-send: exactly one reply is
	// expected and should be attached with Then/ThenTimeout.
	Request(to PID, msg Message) ResponseHandle

	// Promise captures the current message's reply as a detachable
	// ResponsePromise, suppressing the automatic response that returning
	// Reply(v) from this same handler call would otherwise send. Use it
	// to answer a request from outside the handler that received it —
	// after an async callback fires, or from another actor it is handed
	// to. Calling Promise on a message that is not a sync-send request
	// returns a promise whose Fulfill is a no-op.
	Promise() ResponsePromise

	// Then registers the continuation for a pending Request's response.
	// It is delivered to onResponse outside of the normal behavior
	// matching, bypassing the skip cache entirely, the moment the
	// response envelope arrives (spec §4.4, "sync-response" class).
	Then(h ResponseHandle, onResponse func(Message) Result)

	// ThenTimeout is Then plus a deadline: if no response arrives within
	// after, onTimeout runs instead and the continuation is discarded.
	ThenTimeout(h ResponseHandle, after time.Duration, onResponse func(Message) Result, onTimeout func() Result)

	// Become installs b as the actor's current behavior, taking effect
	// starting with the next dispatched message (spec §3 "Behavior
	// stack", §4.3 "become(b [, keep])"). By default it replaces the top
	// frame in place; passing keep=true instead pushes b, leaving the
	// replaced behavior reachable again via a later Unbecome. Plain
	// Become is the common case: a state machine that re-becomes a new
	// state on every message without growing the stack.
	Become(b Behavior, keep ...bool)

	// Unbecome pops the current top behavior, reverting to the one below
	// it. A no-op when only one frame remains.
	Unbecome()

	// Link establishes a bidirectional link with other: if either side
	// terminates, the other is notified (spec §6.4).
	Link(other PID)

	// Unlink removes a previously established link in both directions.
	Unlink(other PID)

	// Monitor registers a one-directional termination notification: when
	// other terminates, this actor's mailbox receives a DownMsg.
	Monitor(other PID)

	// Demonitor cancels a Monitor call.
	Demonitor(other PID)

	// TrapExit toggles whether exit notifications from linked peers
	// arrive as an ordinary ExitMsg instead of killing this actor
	// outright (spec §6.4).
	TrapExit(enabled bool)

	// OnExit installs (replacing any previous) the hook run during
	// cleanup, after the actor has decided to terminate but before the
	// termination becomes visible to links and monitors. If the hook
	// returns resume=true along with a Behavior, termination is aborted
	// and that Behavior is installed instead (spec §4.5 cleanup step).
	OnExit(fn func(ctx Context, reason ExitReason) (resume bool, next Behavior))

	// Quit marks the actor for termination with reason, effective once
	// the handler returns (spec §4.4/§4.5). Calling Quit more than once
	// keeps the first reason.
	Quit(reason ExitReason)

	// Spawn creates a new actor from producer, linked to nothing and
	// monitored by nothing, and returns its handle.
	Spawn(producer Producer) PID

	// After schedules a one-shot wakeup: after the given duration, msg is
	// delivered to this actor's own mailbox, with no sender.
	// Used to build ad-hoc timers outside of a behavior's receive-timeout.
	After(d time.Duration, msg Message)

	// Logger returns the diagnostics logger scoped to this actor.
	Logger() Logger
}

// Producer constructs an actor's initial Behavior (spec §3 "Actor object":
// "initialized on first resume ... which typically installs first
// behavior"). It runs once, synchronously, before any message is
// dispatched, and may call any Context method (Become is redundant with
// the returned Behavior but Spawn/Link/Monitor/OnExit are common here).
type Producer func(ctx Context) Behavior
