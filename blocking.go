// File: blocking.go
package revue

import (
	"context"
	"time"
)

// BlockingFunc is the body of a blocking-mode actor (spec §4.8): it runs
// on its own goroutine for as long as it likes, issuing Receive/ReceiveFor/
// ReceiveWhile/DoReceive/Await calls to synchronously pull and dispatch
// envelopes. Returning from BlockingFunc terminates the actor with
// ExitNormal, same as calling ctx.Quit(ExitNormal) and returning.
type BlockingFunc func(ctx BlockingContext)

// BlockingContext is the Context available to a blocking-mode actor, with
// the synchronous receive API from spec §4.8 layered on top.
type BlockingContext interface {
	Context

	// Receive blocks until one envelope matches b (skipping, and caching
	// for later, anything that doesn't), then dispatches it against b.
	Receive(b Behavior)

	// ReceiveFor is Receive with a deadline: if nothing matches within d,
	// it returns without having dispatched anything.
	ReceiveFor(d time.Duration, b Behavior)

	// ReceiveWhile returns a driver that repeats Receive(b) for as long
	// as pred returns true, checked before each iteration.
	ReceiveWhile(pred func() bool) func(b Behavior)

	// DoReceive starts a do/while-style loop: b is dispatched at least
	// once, then repeated until the returned builder's Until predicate
	// becomes true.
	DoReceive(b Behavior) DoReceiveBuilder

	// Await blocks until the response identified by h arrives (or the
	// pending request times out, if ThenTimeout was used to register it)
	// and its continuation has run. Ordinary messages arriving meanwhile
	// are cached for later; responses to other pending requests run their
	// own continuations.
	Await(h ResponseHandle, onResponse func(Message) Result)
}

// DoReceiveBuilder is the fluent continuation of BlockingContext.DoReceive.
type DoReceiveBuilder interface {
	// Until repeats the do-receive's behavior until pred returns true,
	// which is checked after each dispatched envelope (do/while order).
	Until(pred func() bool)
}

type blockingCtx struct {
	*process
}

// actorQuit is the internal unwind signal used to abort a blocking
// actor's user code once it has decided (or been told) to terminate,
// mirroring the original framework's thrown actor_exited (spec §9 "Deep
// inheritance..." / "Exceptions for control flow"). It never escapes
// spawnBlocking's recover.
type actorQuit struct{}

func (p *process) nextEnvelopeBlocking(ctx context.Context) (envelope, bool) {
	if e, ok := p.nextEnvelope(); ok {
		return e, true
	}
	return p.mbox.Await(ctx)
}

// receiveOnce pushes b as a transient top behavior, blocks for the next
// envelope that behavior (or the classifier ahead of it) actually
// consumes, then pops b again. ctx bounds how long it is willing to block;
// a nil ctx blocks indefinitely.
func (p *process) receiveOnce(ctx context.Context, b Behavior) (consumed bool) {
	p.stack.push(b)
	defer p.stack.pop()
	for {
		e, ok := p.nextEnvelopeBlocking(ctx)
		if !ok {
			return false
		}
		switch p.safeDispatch(e) {
		case outcomeConsumed:
			return true
		case outcomeTerminated:
			p.cleanup()
			panic(actorQuit{})
		case outcomeSkipped, outcomeDropped:
			if ctx != nil && ctx.Err() != nil {
				return false
			}
			continue
		}
	}
}

func (b blockingCtx) Receive(bhv Behavior) {
	b.receiveOnce(nil, bhv)
}

func (b blockingCtx) ReceiveFor(d time.Duration, bhv Behavior) {
	ctx, cancel := context.WithTimeout(context.Background(), d)
	defer cancel()
	b.receiveOnce(ctx, bhv)
}

func (b blockingCtx) ReceiveWhile(pred func() bool) func(Behavior) {
	return func(bhv Behavior) {
		for pred() {
			b.receiveOnce(nil, bhv)
		}
	}
}

type doReceiveBuilder struct {
	b   blockingCtx
	bhv Behavior
}

func (b blockingCtx) DoReceive(bhv Behavior) DoReceiveBuilder {
	return doReceiveBuilder{b: b, bhv: bhv}
}

func (d doReceiveBuilder) Until(pred func() bool) {
	for {
		d.b.receiveOnce(nil, d.bhv)
		if pred() {
			return
		}
	}
}

func (b blockingCtx) Await(h ResponseHandle, onResponse func(Message) Result) {
	respID := h.id.asResponse()
	if c, ok := b.pending[respID]; ok {
		// Keep the timer and onTimeout a ThenTimeout call registered.
		c.onResponse = onResponse
	} else {
		b.Then(h, onResponse)
	}
	for {
		if _, ok := b.pending[respID]; !ok {
			return
		}
		b.receiveOnce(nil, NewBehavior())
	}
}

// spawnBlocking creates a process driven by fn on a dedicated goroutine
// instead of the scheduler, per spec §4.8.
func (e *Engine) spawnBlocking(fn BlockingFunc) PID {
	id := e.nextID.Add(1)
	addr := Address{id: id}
	p := newProcess(e, addr, e.log.With("actor", addr.String()))
	p.stack = newBehaviorStack(NewBehavior())

	e.mu.Lock()
	e.actors[addr] = p
	e.mu.Unlock()

	go func() {
		defer func() {
			if r := recover(); r != nil {
				if _, ok := r.(actorQuit); !ok {
					p.log.Errorw("blocking actor panicked", "actor", addr.String(), "panic", r)
					p.exiting = true
					p.exitReason = ExitUnhandledException
					p.cleanup()
				}
				return
			}
			if !p.exiting {
				p.exiting = true
				p.exitReason = ExitNormal
			}
			p.cleanup()
		}()
		fn(blockingCtx{p})
	}()

	return p.self
}

// SpawnBlocking creates a new blocking-mode actor from fn (spec §4.8).
func (e *Engine) SpawnBlocking(fn BlockingFunc) PID {
	return e.spawnBlocking(fn)
}

// ScopedActor lets a non-actor goroutine participate in the actor system
// as a short-lived, anonymous peer (spec §4.8 "scoped actor"): it owns a
// blocking actor for the scope's lifetime and is terminated with
// ExitNormal when Close runs.
type ScopedActor struct {
	pid PID
	ops chan func(BlockingContext)
}

// NewScopedActor spawns the backing blocking actor and returns a handle a
// plain goroutine can drive synchronously via Do.
func NewScopedActor(e *Engine) *ScopedActor {
	s := &ScopedActor{
		ops: make(chan func(BlockingContext)),
	}
	s.pid = e.SpawnBlocking(func(ctx BlockingContext) {
		for op := range s.ops {
			op(ctx)
		}
	})
	return s
}

// PID returns the scoped actor's handle, usable anywhere a PID is needed
// (e.g. as the target of another actor's Context.Link or Context.Monitor).
func (s *ScopedActor) PID() PID { return s.pid }

// Do runs fn synchronously on the scoped actor's own goroutine, blocking
// the caller until fn returns.
func (s *ScopedActor) Do(fn func(BlockingContext)) {
	result := make(chan struct{})
	s.ops <- func(ctx BlockingContext) {
		defer close(result)
		fn(ctx)
	}
	<-result
}

// Close terminates the scoped actor with ExitNormal.
func (s *ScopedActor) Close() {
	close(s.ops)
}
