// File: dispatcher.go
package revue

// dispatchOutcome is the dispatcher's verdict for one envelope (spec
// §4.4's Output: "one of {consumed, skipped-and-cached, dropped,
// actor-terminated}").
type dispatchOutcome int

const (
	outcomeConsumed dispatchOutcome = iota
	outcomeSkipped
	outcomeDropped
	outcomeTerminated
)

// dispatch classifies and handles one envelope against p's current state,
// per spec §4.4. It never blocks.
func (p *process) dispatch(e envelope) dispatchOutcome {
	if out, handled := p.classifyAndHandleSystem(e); handled {
		return out
	}
	return p.invoke(e, func() Result { return p.stack.top().apply(e.msg) })
}

// classifyAndHandleSystem handles the exit_msg / timeout_msg / sync
// classification rows of the table in spec §4.4. handled is false for the
// final "Anything else -> ordinary" row, in which case the caller proceeds
// to ordinary matching.
func (p *process) classifyAndHandleSystem(e envelope) (dispatchOutcome, bool) {
	// A response envelope carrying an ExitMsg is a bounced request (the
	// target was dead), so it goes to the response row below instead.
	if msg, ok := soleElement[ExitMsg](e.msg); ok && !e.isResponse() {
		if msg.Reason == ExitNormal && !p.trapExit {
			return outcomeDropped, true
		}
		if !p.trapExit {
			p.exiting = true
			p.exitReason = msg.Reason
			return outcomeTerminated, true
		}
		// trap_exit: delivered as an ordinary message instead.
		return p.invoke(e, func() Result { return p.stack.top().apply(e.msg) }), true
	}

	if tm, ok := soleElement[TimeoutMsg](e.msg); ok {
		active, inactive := p.stack.timeoutState(tm.timeoutID)
		switch {
		case active:
			b := p.stack.top()
			if !b.hasTimeout() {
				return outcomeDropped, true
			}
			return p.invoke(e, func() Result { return b.timeout.Handler() }), true
		case inactive:
			p.requeueSkipped(e)
			return outcomeSkipped, true
		default:
			p.log.Debugw("dropping stale behavior timeout", "actor", p.addr.String(), "timeout_id", tm.timeoutID)
			return outcomeDropped, true
		}
	}

	if e.isResponse() {
		cont, ok := p.pending[e.id]
		if !ok {
			p.log.Warnw("dropping response with no matching request", "actor", p.addr.String(), "trace", e.trace)
			return outcomeDropped, true
		}
		delete(p.pending, e.id)
		if cont.hasTimer {
			p.engine.timers.Cancel(cont.timerID)
		}
		if _, isTimeout := soleElement[SyncTimeoutMsg](e.msg); isTimeout {
			if cont.onTimeout == nil {
				p.log.Warnw("unhandled sync timeout", "actor", p.addr.String(), "trace", cont.trace)
				p.exiting = true
				p.exitReason = ExitUnhandledSyncTimeout
				return outcomeTerminated, true
			}
			return p.invoke(e, cont.onTimeout), true
		}
		return p.invoke(e, func() Result { return cont.onResponse(e.msg) }), true
	}

	return outcomeDropped, false
}

// invoke implements the shared "Matching the ordinary / sync-response
// case" steps from spec §4.4: save/restore the current-envelope pointer
// around the call, then interpret its Result.
func (p *process) invoke(e envelope, handler func() Result) dispatchOutcome {
	prev := p.current
	p.current = e
	res := handler()
	p.current = prev
	return p.applyResult(e, res)
}

// applyResult interprets a handler's Result against the envelope it was
// produced for: synthesizing a response, pushing to the skip cache, or
// detecting termination. Step 6 ("re-run the skip cache from its
// beginning" after a successful consume) is implemented lazily by
// nextEnvelope/hasWork rather than eagerly here, since the actor may not
// get back to the mailbox until its next scheduler turn anyway.
func (p *process) applyResult(e envelope, res Result) dispatchOutcome {
	// A Promise() taken during this same handler call claims the
	// envelope's reply slot for the rest of its life, whether or not the
	// handler also returns Reply(v); the entry only needs to survive this
	// one turn, so it is cleared here regardless of the outcome below.
	promised := false
	if e.isRequest() {
		key := promiseKey{requester: e.sender, id: e.id}
		if _, ok := p.promised[key]; ok {
			promised = true
			delete(p.promised, key)
		}
	}

	switch res.kind {
	case resultSkip:
		p.requeueSkipped(e)
		return outcomeSkipped
	case resultReply:
		if e.isRequest() && !promised {
			p.engine.deliver(envelope{
				sender: p.addr,
				target: e.sender,
				msg:    NewMessage(res.value),
				id:     e.id.asResponse(),
				trace:  e.trace,
			})
		}
	case resultHandled:
		// nothing further to do
	}
	if p.exiting || p.stack.isEmpty() {
		return outcomeTerminated
	}
	return outcomeConsumed
}

// soleElement type-asserts m's only element to T, mirroring
// Message.soleElementType but returning the decoded value directly.
func soleElement[T any](m Message) (T, bool) {
	var zero T
	if m.Size() != 1 {
		return zero, false
	}
	v, ok := m.Get(0).(T)
	return v, ok
}
