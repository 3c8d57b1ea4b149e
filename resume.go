// File: resume.go
package revue

import (
	"github.com/lguibr/revue/internal/sched"
)

// Resume drives p's event-based dispatch loop (spec §4.5) for one
// scheduler turn: pop, classify, dispatch, drain the skip cache, repeat,
// until either the mailbox is observably empty (in which case p parks
// itself and returns ResumeLater) or the actor terminates (Done).
func (p *process) Resume(worker *sched.Worker) sched.ResumeResult {
	// Recorded for the duration of this turn so Context.Spawn, called
	// from a handler running here, can place a freshly spawned actor
	// directly on this same worker's deque instead of round-robining it
	// through the coordinator (spec §4.6 "internal enqueue -> push onto
	// the worker's own deque").
	p.worker = worker
	for {
		e, ok := p.nextEnvelope()
		if !ok {
			if p.mbox.TryBlock() {
				return sched.ResumeLater
			}
			// A producer raced us between nextEnvelope's failed pop and
			// TryBlock's check; loop and try again instead of blocking.
			continue
		}

		outcome := p.safeDispatch(e)
		switch outcome {
		case outcomeTerminated:
			p.cleanup()
			if !p.exiting && !p.stack.isEmpty() {
				// on_exit resurrected the actor with a fresh behavior;
				// keep running on this same turn instead of exiting.
				continue
			}
			return sched.Done
		case outcomeSkipped, outcomeDropped, outcomeConsumed:
			// loop: nextEnvelope will prefer the skip cache once the top
			// behavior has changed, implementing step 6's "re-run the
			// skip cache from its beginning" lazily.
		}
	}
}

// safeDispatch recovers a panicking handler into an unhandled_exception
// termination (spec §4.4 "Failure semantics" / §4.5 step 3), rather than
// letting it escape onto the scheduler's worker goroutine.
func (p *process) safeDispatch(e envelope) (outcome dispatchOutcome) {
	defer func() {
		if r := recover(); r != nil {
			p.log.Errorw("actor handler panicked", "actor", p.addr.String(), "panic", r)
			p.exiting = true
			p.exitReason = ExitUnhandledException
			outcome = outcomeTerminated
		}
	}()
	return p.dispatch(e)
}

// cleanup implements spec §4.5's "Cleanup on termination" steps.
func (p *process) cleanup() {
	reason := p.exitReason
	if p.onExit != nil {
		hook := p.onExit
		p.onExit = nil
		if resume, next := hook(p, reason); resume {
			p.exiting = false
			p.stack.push(next)
			p.armTopTimeout()
			return
		}
	}
	p.exiting = true
	p.exitReason = reason
	p.stack.frames = nil

	p.mbox.Close(func(e envelope) {
		if e.isRequest() {
			p.engine.deliver(envelope{
				sender: p.addr,
				target: e.sender,
				msg:    NewMessage(ExitMsg{Source: p.addr, Reason: ExitUserShutdown}),
				id:     e.id.asResponse(),
				trace:  e.trace,
			})
		}
	})

	p.engine.terminate(p.addr, reason)
}
