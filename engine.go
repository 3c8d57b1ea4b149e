// File: engine.go
package revue

import (
	"runtime"
	"sync"
	"sync/atomic"

	"github.com/pkg/errors"
	"go.uber.org/multierr"

	"github.com/lguibr/revue/internal/sched"
	"github.com/lguibr/revue/internal/wheel"
)

// Options configures an Engine.
type Options struct {
	// Workers is the size of the work-stealing pool. Zero selects
	// runtime.GOMAXPROCS(0) (spec §4.6: "N = hardware concurrency,
	// overridable").
	Workers int
	// Logger receives diagnostics from the engine and every actor it
	// hosts. Defaults to NoopLogger().
	Logger Logger
}

// Engine is the runtime that hosts actors: it owns the actor registry, the
// work-stealing scheduler, and the timer service (spec §2's "Dispatcher",
// "Scheduler", "Timer service" wired together behind one facade).
type Engine struct {
	log    Logger
	sched  *sched.Scheduler
	timers *wheel.Service
	nextID atomic.Uint64

	mu       sync.RWMutex
	actors   map[Address]*process
	links    map[Address]map[Address]struct{}
	watchers map[Address]map[Address]struct{} // target -> set of watchers
	closed   bool
}

// New starts an Engine. Callers should Shutdown it when done.
func New(opts Options) *Engine {
	workers := opts.Workers
	if workers <= 0 {
		workers = runtime.GOMAXPROCS(0)
	}
	log := opts.Logger
	if log == nil {
		log = NoopLogger()
	}
	e := &Engine{
		log:      log,
		sched:    sched.New(workers),
		timers:   wheel.New(),
		actors:   make(map[Address]*process),
		links:    make(map[Address]map[Address]struct{}),
		watchers: make(map[Address]map[Address]struct{}),
	}
	return e
}

// Spawn creates a new actor from producer and schedules it for its first
// resume (spec §3 "Actor object": "initialized on first resume").
func (e *Engine) Spawn(producer Producer) PID {
	return e.spawn(producer, nil)
}

// spawn is Spawn's implementation, parameterized over an optional worker
// hint: a non-nil hint places the new actor directly on that worker's own
// deque instead of round-robining it through the coordinator, which is
// how Context.Spawn gives a handler-spawned actor cache locality with its
// spawner (spec §4.6 "internal enqueue -> push onto the worker's own
// deque"). Engine.Spawn passes no hint, since a caller outside any
// worker's Resume loop has no deque of its own to place work on.
func (e *Engine) spawn(producer Producer, hint *sched.Worker) PID {
	id := e.nextID.Add(1)
	addr := Address{id: id}
	p := newProcess(e, addr, e.log.With("actor", addr.String()))

	// Registered before the producer runs: the producer may itself call
	// Context methods (Request, Link, Monitor, Spawn) that need this
	// actor's own address to already resolve in the registry.
	e.mu.Lock()
	e.actors[addr] = p
	e.mu.Unlock()

	ctx := Context(p)
	initial := producer(ctx)
	p.stack = newBehaviorStack(initial)
	p.armTopTimeout()

	if p.exiting || p.stack.isEmpty() {
		// The producer quit before returning control; run cleanup inline
		// rather than scheduling a turn that would do nothing else.
		p.cleanup()
		if p.exiting {
			return p.self
		}
		// on_exit resurrected the actor: schedule it like any other.
	}
	if hint != nil {
		hint.Push(p)
	} else {
		e.sched.Schedule(p)
	}
	return p.self
}

// Send delivers msg to target asynchronously. A target that no longer
// exists silently drops the message (spec §4.2/§4.3).
func (e *Engine) Send(target PID, msg Message) {
	e.deliver(envelope{target: target.addr, msg: msg})
}

// deliver routes env to its target's mailbox, waking the target's worker if
// the enqueue transitioned the mailbox from Blocked back to Active. A
// missing target bounces the envelope instead (spec §4.2/§4.3).
func (e *Engine) deliver(env envelope) {
	e.mu.RLock()
	p, ok := e.actors[env.target]
	e.mu.RUnlock()
	if !ok {
		e.bounceDead(env)
		return
	}
	delivered, wokeBlocked := p.mbox.Enqueue(env, func(rejected envelope) {
		e.bounceDead(rejected)
	})
	if delivered && wokeBlocked {
		e.sched.Schedule(p)
	}
}

// bounceDead synthesizes an error response for a request sent to a dead or
// nonexistent actor, matching the closed-mailbox reject contract that
// mailbox.Queue already implements for a live-but-closing actor.
func (e *Engine) bounceDead(env envelope) {
	if !env.isRequest() {
		return
	}
	e.mu.RLock()
	sender, ok := e.actors[env.sender]
	e.mu.RUnlock()
	if !ok {
		return
	}
	e.log.Debugw("bouncing request to dead actor", "target", env.target.String(), "trace", env.trace)
	sender.mbox.Enqueue(envelope{
		target: env.sender,
		msg:    NewMessage(ExitMsg{Source: env.target, Reason: ExitUserShutdown}),
		id:     env.id.asResponse(),
		trace:  env.trace,
	}, func(envelope) {})
}

func (e *Engine) addLink(a, b Address) {
	e.mu.Lock()
	defer e.mu.Unlock()
	e.addLinkLocked(a, b)
	e.addLinkLocked(b, a)
}

func (e *Engine) addLinkLocked(from, to Address) {
	m, ok := e.links[from]
	if !ok {
		m = make(map[Address]struct{})
		e.links[from] = m
	}
	m[to] = struct{}{}
}

func (e *Engine) removeLink(a, b Address) {
	e.mu.Lock()
	defer e.mu.Unlock()
	delete(e.links[a], b)
	delete(e.links[b], a)
}

func (e *Engine) addMonitor(watcher, target Address) {
	e.mu.Lock()
	defer e.mu.Unlock()
	m, ok := e.watchers[target]
	if !ok {
		m = make(map[Address]struct{})
		e.watchers[target] = m
	}
	m[watcher] = struct{}{}
}

func (e *Engine) removeMonitor(watcher, target Address) {
	e.mu.Lock()
	defer e.mu.Unlock()
	delete(e.watchers[target], watcher)
}

// terminate removes addr from the registry and notifies its links (as
// ExitMsg, subject to each peer's own trap_exit) and watchers (as DownMsg,
// unconditionally) — spec §6.4, resolved per DESIGN.md as
// "each-side-independent-exit-delivery".
func (e *Engine) terminate(addr Address, reason ExitReason) {
	e.mu.Lock()
	delete(e.actors, addr)
	linked := e.links[addr]
	delete(e.links, addr)
	for peer := range linked {
		delete(e.links[peer], addr)
	}
	watchers := e.watchers[addr]
	delete(e.watchers, addr)
	e.mu.Unlock()

	var errs error
	for peer := range linked {
		if err := e.safeDeliver(envelope{sender: addr, target: peer, msg: NewMessage(ExitMsg{Source: addr, Reason: reason})}); err != nil {
			errs = multierr.Append(errs, err)
		}
	}
	for w := range watchers {
		if err := e.safeDeliver(envelope{sender: addr, target: w, msg: NewMessage(DownMsg{Who: addr, Reason: reason})}); err != nil {
			errs = multierr.Append(errs, err)
		}
	}
	if errs != nil {
		// Closed-mailbox targets are not errors (handled by bounceDead
		// inside deliver); this only catches genuine programmer-error
		// panics from a reject callback, aggregated once per cleanup
		// rather than logged once per peer (spec.md §4.10).
		e.log.Errorw("failed to notify some links/monitors during cleanup", "actor", addr.String(), "error", errs)
	}
}

// safeDeliver wraps deliver with a recover so one peer's broken reject
// callback cannot take down the terminating actor's own cleanup loop.
func (e *Engine) safeDeliver(env envelope) (err error) {
	defer func() {
		if r := recover(); r != nil {
			err = errors.Errorf("panic notifying %s: %v", env.target.String(), r)
		}
	}()
	e.deliver(env)
	return nil
}

// SendExit asks target to terminate with reason, as if it had called
// ctx.Quit(reason) itself, unless target has trap_exit enabled in which
// case it receives an ordinary ExitMsg instead (spec §6.4). A target that
// does not trap exits ignores ExitNormal.
func (e *Engine) SendExit(target PID, reason ExitReason) {
	e.deliver(envelope{target: target.addr, msg: NewMessage(ExitMsg{Source: Address{}, Reason: reason})})
}

// NumWorkers reports the scheduler's worker-pool size.
func (e *Engine) NumWorkers() int { return e.sched.NumWorkers() }

// WorkerStats snapshots the scheduler's per-worker queue depth and steal
// counters, used by the demo dashboard (SPEC_FULL.md §4.14).
func (e *Engine) WorkerStats() []sched.WorkerStat { return e.sched.Stats() }

// Shutdown stops the timer service and scheduler. Actors that are still
// alive are simply abandoned (no synthesized shutdown reason is sent);
// callers that need an orderly drain should SendExit every actor first.
func (e *Engine) Shutdown() {
	e.mu.Lock()
	e.closed = true
	e.mu.Unlock()
	e.timers.Stop()
	e.sched.Shutdown()
}
