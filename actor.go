// File: actor.go
package revue

import (
	"sync/atomic"
	"time"

	"github.com/google/uuid"

	"github.com/lguibr/revue/internal/mailbox"
	"github.com/lguibr/revue/internal/sched"
)

// continuation is a registered response handler for one outstanding
// Context.Request (spec §4.4 "pending-response set").
type continuation struct {
	onResponse func(Message) Result
	onTimeout  func() Result
	timerID    uint64
	hasTimer   bool
	trace      string
}

// promiseKey identifies one request's reply slot: the requester plus its
// message id (request ids are only unique per-sender, so both are needed
// to tell two different actors' concurrent requests apart).
type promiseKey struct {
	requester Address
	id        messageID
}

// process is the live state of one actor: its identity, mailbox, behavior
// stack, and the bookkeeping the dispatcher needs (links, monitors,
// pending responses, skip cache). It implements both Resumable (so the
// scheduler can drive it) and Context (so handlers can call back into it)
// — the two are kept in separate files (resume.go / actor.go) for
// readability even though they share this one receiver type.
type process struct {
	addr   Address
	self   PID
	engine *Engine
	log    Logger

	mbox  *mailbox.Queue[envelope]
	stack *behaviorStack

	// worker is the scheduler worker currently driving this actor's
	// Resume loop, set for the duration of each turn; nil for a blocking-
	// mode actor (spec §4.8), which never runs on a worker at all.
	worker *sched.Worker

	// skip cache: messages SkipMsg'd by the current behavior, retried
	// against whatever the top behavior is the next time it changes
	// (spec §4.2/§4.4).
	skipped        []envelope
	skipCacheAtTop uint64

	links    map[Address]struct{}
	monitors map[Address]struct{} // who is watching us
	watching map[Address]struct{} // who we are watching

	trapExit bool

	reqCounter uint64
	pending    map[messageID]*continuation

	// promised tracks requests whose reply was detached via Context.Promise,
	// so applyResult knows to suppress the auto-reply a handler's own
	// Reply(v) return value would otherwise still send for the same
	// envelope.
	promised map[promiseKey]struct{}

	onExit func(ctx Context, reason ExitReason) (bool, Behavior)

	exiting    bool
	exitReason ExitReason

	// current is set only while a handler for this envelope is actually
	// running, so Context.Sender/Context.Request can see who sent it.
	current envelope
}

func newProcess(e *Engine, addr Address, log Logger) *process {
	p := &process{
		addr:     addr,
		self:     PID{addr: addr},
		engine:   e,
		log:      log,
		mbox:     mailbox.New[envelope](),
		links:    make(map[Address]struct{}),
		monitors: make(map[Address]struct{}),
		watching: make(map[Address]struct{}),
		pending:  make(map[messageID]*continuation),
		promised: make(map[promiseKey]struct{}),
	}
	return p
}

// --- Context implementation -------------------------------------------------

func (p *process) Self() PID { return p.self }

func (p *process) Sender() PID { return PID{addr: p.current.sender} }

func (p *process) Send(to PID, msg Message) {
	p.engine.deliver(envelope{sender: p.addr, target: to.addr, msg: msg})
}

func (p *process) Request(to PID, msg Message) ResponseHandle {
	p.reqCounter++
	id := newRequestID(p.reqCounter)
	// A fresh correlation id per request, not per async send: it is the
	// sync-send/response pairs that cross actor boundaries in a way worth
	// tracing end to end (spec.md §4.9's ambient logging note).
	trace := uuid.NewString()
	p.engine.deliver(envelope{sender: p.addr, target: to.addr, msg: msg, id: id, trace: trace})
	return ResponseHandle{id: id, trace: trace}
}

func (p *process) Promise() ResponsePromise {
	e := p.current
	if !e.isRequest() {
		return ResponsePromise{}
	}
	p.promised[promiseKey{requester: e.sender, id: e.id}] = struct{}{}
	return ResponsePromise{
		engine:    p.engine,
		requester: e.sender,
		id:        e.id,
		trace:     e.trace,
		fulfilled: new(atomic.Bool),
	}
}

func (p *process) Then(h ResponseHandle, onResponse func(Message) Result) {
	// Pending continuations are keyed by the response form of the id,
	// since that is what actually arrives back in an envelope (requests
	// and their responses share one counter value, differing only in the
	// response bit).
	p.pending[h.id.asResponse()] = &continuation{onResponse: onResponse, trace: h.trace}
}

func (p *process) ThenTimeout(h ResponseHandle, after time.Duration, onResponse func(Message) Result, onTimeout func() Result) {
	c := &continuation{onResponse: onResponse, onTimeout: onTimeout, trace: h.trace}
	respID := h.id.asResponse()
	c.timerID = p.engine.timers.After(after, func() {
		p.engine.deliver(envelope{target: p.addr, msg: NewMessage(SyncTimeoutMsg{}), id: respID, trace: h.trace})
	})
	c.hasTimer = true
	p.pending[respID] = c
}

func (p *process) Become(b Behavior, keep ...bool) {
	if len(keep) > 0 && keep[0] {
		p.stack.push(b)
	} else {
		p.stack.replaceTop(b)
	}
	p.armTopTimeout()
}

func (p *process) Unbecome() {
	p.stack.pop()
	p.armTopTimeout()
}

// armTopTimeout schedules a TimeoutMsg for the behavior now on top of the
// stack, if it declares one: "the dispatcher arms it when the behavior
// becomes current" (spec §4.7). A timer armed for a behavior that is
// later replaced still fires, but classification recognizes its id as
// inactive or stale and drops or requeues it instead of running the
// handler (spec §4.4).
func (p *process) armTopTimeout() {
	top := p.stack.top()
	if !top.hasTimeout() {
		return
	}
	id := p.stack.currentTimeoutID()
	addr := p.addr
	p.engine.timers.After(top.timeout.After, func() {
		p.engine.deliver(envelope{target: addr, msg: NewMessage(TimeoutMsg{timeoutID: id})})
	})
}

func (p *process) Link(other PID) {
	if other.IsZero() || other.addr == p.addr {
		return
	}
	p.links[other.addr] = struct{}{}
	p.engine.addLink(p.addr, other.addr)
}

func (p *process) Unlink(other PID) {
	delete(p.links, other.addr)
	p.engine.removeLink(p.addr, other.addr)
}

func (p *process) Monitor(other PID) {
	if other.IsZero() {
		return
	}
	p.watching[other.addr] = struct{}{}
	p.engine.addMonitor(p.addr, other.addr)
}

func (p *process) Demonitor(other PID) {
	delete(p.watching, other.addr)
	p.engine.removeMonitor(p.addr, other.addr)
}

func (p *process) TrapExit(enabled bool) {
	p.trapExit = enabled
}

func (p *process) OnExit(fn func(ctx Context, reason ExitReason) (bool, Behavior)) {
	p.onExit = fn
}

func (p *process) Quit(reason ExitReason) {
	if p.exiting {
		return
	}
	p.exiting = true
	p.exitReason = reason
}

func (p *process) Spawn(producer Producer) PID {
	return p.engine.spawn(producer, p.worker)
}

func (p *process) After(d time.Duration, msg Message) {
	addr := p.addr
	p.engine.timers.After(d, func() {
		p.engine.deliver(envelope{target: addr, msg: msg})
	})
}

func (p *process) Logger() Logger { return p.log }

// --- skip cache --------------------------------------------------------

// nextEnvelope returns the next envelope the dispatcher should classify,
// preferring the skip cache over the mailbox whenever the top behavior has
// changed since the cache was last populated (spec §4.2/§4.4: a skipped
// message is only worth retrying once the actor's interpretation of
// messages might actually differ).
func (p *process) nextEnvelope() (envelope, bool) {
	if len(p.skipped) > 0 && p.skipCacheAtTop != p.stack.currentTimeoutID() {
		e := p.skipped[0]
		p.skipped = p.skipped[1:]
		if len(p.skipped) == 0 {
			p.skipCacheAtTop = p.stack.currentTimeoutID()
		}
		return e, true
	}
	if e, ok := p.mbox.TryPop(); ok {
		return e, true
	}
	return envelope{}, false
}

func (p *process) requeueSkipped(e envelope) {
	p.skipped = append(p.skipped, e)
}

// hasWork reports whether the dispatcher has anything to try without
// blocking: either the skip cache is stale (worth re-trying) or the
// mailbox is non-empty.
func (p *process) hasWork() bool {
	if len(p.skipped) > 0 && p.skipCacheAtTop != p.stack.currentTimeoutID() {
		return true
	}
	return p.mbox.CanFetchMore()
}
