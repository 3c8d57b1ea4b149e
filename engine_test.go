// File: engine_test.go
package revue

import (
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func newTestEngine(t *testing.T) *Engine {
	e := New(Options{Workers: 2})
	t.Cleanup(e.Shutdown)
	return e
}

// S1 — ping/pong sync-send round trip.
func TestEngine_SyncSendRoundTrip(t *testing.T) {
	e := newTestEngine(t)

	type ping struct{ N int }
	type pong struct{ N int }

	b := e.Spawn(func(ctx Context) Behavior {
		return NewBehavior(Case1[ping](func(p ping) Result {
			return Reply(pong{N: p.N + 1})
		}))
	})

	done := make(chan int, 1)
	e.Spawn(func(ctx Context) Behavior {
		h := ctx.Request(b, NewMessage(ping{N: 41}))
		ctx.Then(h, func(m Message) Result {
			done <- m.Get(0).(pong).N
			ctx.Quit(ExitNormal)
			return Handled()
		})
		return NewBehavior()
	})

	select {
	case n := <-done:
		assert.Equal(t, 42, n)
	case <-time.After(time.Second):
		t.Fatal("timed out waiting for pong")
	}
}

// S4 — sync-send timeout with no reply.
func TestEngine_SyncSendTimeout(t *testing.T) {
	e := newTestEngine(t)

	silent := e.Spawn(func(ctx Context) Behavior {
		return NewBehavior() // never replies to anything
	})

	result := make(chan string, 1)
	e.Spawn(func(ctx Context) Behavior {
		h := ctx.Request(silent, NewMessage("ask"))
		ctx.ThenTimeout(h, 30*time.Millisecond, func(Message) Result {
			result <- "replied"
			return Handled()
		}, func() Result {
			result <- "timeout"
			return Handled()
		})
		return NewBehavior()
	})

	select {
	case r := <-result:
		assert.Equal(t, "timeout", r)
	case <-time.After(time.Second):
		t.Fatal("timed out waiting for sync-timeout to fire")
	}
}

// FIFO-per-pair: messages from one sender to one receiver arrive in send
// order.
func TestEngine_FIFOPerSenderReceiverPair(t *testing.T) {
	e := newTestEngine(t)

	const n = 200
	var got []int
	var mu sync.Mutex
	all := make(chan struct{})

	receiver := e.Spawn(func(ctx Context) Behavior {
		return NewBehavior(Case1[int](func(i int) Result {
			mu.Lock()
			got = append(got, i)
			done := len(got) == n
			mu.Unlock()
			if done {
				close(all)
			}
			return Handled()
		}))
	})

	e.Spawn(func(ctx Context) Behavior {
		for i := 0; i < n; i++ {
			ctx.Send(receiver, NewMessage(i))
		}
		ctx.Quit(ExitNormal)
		return NewBehavior()
	})

	select {
	case <-all:
	case <-time.After(2 * time.Second):
		t.Fatal("timed out waiting for all messages")
	}
	mu.Lock()
	defer mu.Unlock()
	require.Len(t, got, n)
	for i, v := range got {
		assert.Equal(t, i, v)
	}
}

// Skip semantics: a message that doesn't match the current behavior is
// retried once Become installs a behavior that does match it.
func TestEngine_SkipThenBecomeMatches(t *testing.T) {
	e := newTestEngine(t)

	type unlockMsg struct{}
	type payload struct{ V int }

	got := make(chan int, 1)
	pid := e.Spawn(func(ctx Context) Behavior {
		locked := NewBehavior(
			Case1[unlockMsg](func(unlockMsg) Result {
				ctx.Become(NewBehavior(Case1[payload](func(p payload) Result {
					got <- p.V
					return Handled()
				})))
				return Handled()
			}),
		)
		return locked
	})

	e.Send(pid, NewMessage(payload{V: 9})) // arrives first, doesn't match "locked" -> skipped
	e.Send(pid, NewMessage(unlockMsg{}))   // unlocks, then skip cache is retried

	select {
	case v := <-got:
		assert.Equal(t, 9, v)
	case <-time.After(time.Second):
		t.Fatal("timed out waiting for skipped message to be retried")
	}
}

// Link propagation: a non-normal exit is delivered to linked peers and
// kills them too (when they do not trap exit).
func TestEngine_LinkPropagatesNonNormalExit(t *testing.T) {
	e := newTestEngine(t)

	victimDown := make(chan ExitReason, 1)

	victim := e.Spawn(func(ctx Context) Behavior {
		return NewBehavior()
	})
	source := e.Spawn(func(ctx Context) Behavior {
		ctx.Link(victim)
		return NewBehavior()
	})

	watcher := e.Spawn(func(ctx Context) Behavior {
		ctx.Monitor(victim)
		return NewBehavior(Case1[DownMsg](func(d DownMsg) Result {
			victimDown <- d.Reason
			return Handled()
		}))
	})
	_ = watcher

	e.SendExit(source, ExitReason(ExitReasonUserDefined+1))

	select {
	case r := <-victimDown:
		assert.Equal(t, ExitReason(ExitReasonUserDefined+1), r)
	case <-time.After(time.Second):
		t.Fatal("timed out waiting for linked victim to die")
	}
}

// trap_exit delivers the exit as an ordinary message instead of killing
// the actor.
func TestEngine_TrapExitDeliversOrdinaryMessage(t *testing.T) {
	e := newTestEngine(t)

	peer := e.Spawn(func(ctx Context) Behavior {
		return NewBehavior()
	})

	trapped := make(chan ExitReason, 1)
	e.Spawn(func(ctx Context) Behavior {
		ctx.TrapExit(true)
		ctx.Link(peer)
		return NewBehavior(Case1[ExitMsg](func(m ExitMsg) Result {
			trapped <- m.Reason
			return Handled()
		}))
	})

	e.SendExit(peer, ExitReason(ExitReasonUserDefined+2))

	select {
	case r := <-trapped:
		assert.Equal(t, ExitReason(ExitReasonUserDefined+2), r)
	case <-time.After(time.Second):
		t.Fatal("timed out waiting for trapped exit message")
	}
}

// Behavior receive-timeout fires when no matching message arrives in time.
func TestEngine_BehaviorTimeoutFires(t *testing.T) {
	e := newTestEngine(t)

	fired := make(chan struct{})
	e.Spawn(func(ctx Context) Behavior {
		return NewBehavior().WithTimeout(20*time.Millisecond, func() Result {
			close(fired)
			return Handled()
		})
	})

	select {
	case <-fired:
	case <-time.After(time.Second):
		t.Fatal("timed out waiting for behavior timeout")
	}
}

// A live message arriving before the deadline suppresses (and, because our
// stack bumps the frame id on every Become, effectively cancels) a stale
// receive-timeout for a replaced behavior.
func TestEngine_ReplacedBehaviorTimeoutIsStale(t *testing.T) {
	e := newTestEngine(t)

	type flip struct{}
	staleFired := atomic.Bool{}
	replaced := make(chan struct{})

	pid := e.Spawn(func(ctx Context) Behavior {
		return NewBehavior(Case1[flip](func(flip) Result {
			ctx.Become(NewBehavior(Case1[flip](func(flip) Result { return Handled() })))
			close(replaced)
			return Handled()
		})).WithTimeout(15*time.Millisecond, func() Result {
			staleFired.Store(true)
			return Handled()
		})
	})

	e.Send(pid, NewMessage(flip{}))
	<-replaced
	time.Sleep(60 * time.Millisecond)
	assert.False(t, staleFired.Load(), "a timeout armed for a replaced behavior must never run")
}

// Response to a dead actor bounces back to the requester as a failure.
func TestEngine_RequestToDeadActorBounces(t *testing.T) {
	e := newTestEngine(t)

	dead := e.Spawn(func(ctx Context) Behavior {
		ctx.Quit(ExitNormal)
		return NewBehavior()
	})
	time.Sleep(30 * time.Millisecond) // let it terminate and be reaped

	bounced := make(chan struct{})
	e.Spawn(func(ctx Context) Behavior {
		h := ctx.Request(dead, NewMessage("hello"))
		ctx.ThenTimeout(h, 200*time.Millisecond, func(m Message) Result {
			close(bounced)
			return Handled()
		}, func() Result {
			t.Error("expected a bounce response, not a timeout")
			return Handled()
		})
		return NewBehavior()
	})

	select {
	case <-bounced:
	case <-time.After(time.Second):
		t.Fatal("timed out waiting for dead-actor bounce")
	}
}

// Plain Become replaces the top frame rather than growing the stack: a
// state machine that re-becomes a new state on every message stays at one
// frame forever instead of leaking one per message.
func TestEngine_BecomeReplacesTopByDefault(t *testing.T) {
	e := newTestEngine(t)

	type tick struct{}
	handled := make(chan struct{}, 10)

	var nextState func() Behavior
	pid := e.Spawn(func(ctx Context) Behavior {
		nextState = func() Behavior {
			return NewBehavior(Case1[tick](func(tick) Result {
				ctx.Become(nextState())
				handled <- struct{}{}
				return Handled()
			}))
		}
		return nextState()
	})

	const n = 5
	for i := 0; i < n; i++ {
		e.Send(pid, NewMessage(tick{}))
	}
	for i := 0; i < n; i++ {
		select {
		case <-handled:
		case <-time.After(time.Second):
			t.Fatal("timed out waiting for a tick to be handled")
		}
	}

	e.mu.RLock()
	p := e.actors[pid.Address()]
	e.mu.RUnlock()
	require.NotNil(t, p)
	assert.Len(t, p.stack.frames, 1, "plain Become must replace the top frame, not grow the stack")
}

// Become(b, true) pushes instead of replacing, and Unbecome reveals the
// behavior it replaced.
func TestEngine_BecomeKeepPushesAndUnbecomeReverts(t *testing.T) {
	e := newTestEngine(t)

	type enter struct{}
	type probe struct{}
	seen := make(chan string, 1)

	pid := e.Spawn(func(ctx Context) Behavior {
		outer := NewBehavior(
			Case1[probe](func(probe) Result {
				seen <- "outer"
				return Handled()
			}),
			Case1[enter](func(enter) Result {
				ctx.Become(NewBehavior(
					Case1[probe](func(probe) Result {
						seen <- "inner"
						ctx.Unbecome()
						return Handled()
					}),
				), true)
				return Handled()
			}),
		)
		return outer
	})

	e.Send(pid, NewMessage(enter{}))
	e.Send(pid, NewMessage(probe{}))
	select {
	case who := <-seen:
		assert.Equal(t, "inner", who)
	case <-time.After(time.Second):
		t.Fatal("timed out waiting for pushed behavior to handle probe")
	}

	e.Send(pid, NewMessage(probe{}))
	select {
	case who := <-seen:
		assert.Equal(t, "outer", who, "Unbecome should have reverted to the behavior Become(keep=true) preserved")
	case <-time.After(time.Second):
		t.Fatal("timed out waiting for reverted behavior to handle probe")
	}
}

// Context.Spawn, called from inside a running actor's handler, places the
// new actor via the worker-hint path (engine.spawn's hint parameter,
// Worker.Push) rather than the coordinator's round-robin Schedule; it
// must still run to completion like any other actor.
func TestEngine_SpawnFromHandlerUsesWorkerHint(t *testing.T) {
	e := newTestEngine(t)

	type spawnChild struct{}
	childRan := make(chan struct{})

	parent := e.Spawn(func(ctx Context) Behavior {
		return NewBehavior(Case1[spawnChild](func(spawnChild) Result {
			ctx.Spawn(func(childCtx Context) Behavior {
				close(childRan)
				childCtx.Quit(ExitNormal)
				return NewBehavior()
			})
			return Handled()
		}))
	})

	e.Send(parent, NewMessage(spawnChild{}))

	select {
	case <-childRan:
	case <-time.After(time.Second):
		t.Fatal("timed out waiting for handler-spawned child to run")
	}
}

// Context.Promise lets a handler answer a request from outside the call
// that received it, and suppresses the handler's own Reply return value
// for the same envelope.
func TestEngine_PromiseFulfilledLaterAnswersRequest(t *testing.T) {
	e := newTestEngine(t)

	type ask struct{}
	var promise ResponsePromise
	captured := make(chan struct{})

	responder := e.Spawn(func(ctx Context) Behavior {
		return NewBehavior(Case1[ask](func(ask) Result {
			promise = ctx.Promise()
			close(captured)
			return Handled()
		}))
	})

	answer := make(chan int, 1)
	e.Spawn(func(ctx Context) Behavior {
		h := ctx.Request(responder, NewMessage(ask{}))
		ctx.ThenTimeout(h, time.Second, func(m Message) Result {
			answer <- m.Get(0).(int)
			return Handled()
		}, func() Result {
			t.Error("request timed out before the promise was fulfilled")
			return Handled()
		})
		return NewBehavior()
	})

	select {
	case <-captured:
	case <-time.After(time.Second):
		t.Fatal("timed out waiting for the promise to be captured")
	}

	promise.Fulfill(42)

	select {
	case v := <-answer:
		assert.Equal(t, 42, v)
	case <-time.After(time.Second):
		t.Fatal("timed out waiting for the promised answer")
	}
}

// A second Fulfill on an already-fulfilled promise is a silent no-op, and
// a handler that both promises and returns Reply does not double-answer.
func TestEngine_PromiseSuppressesHandlerReplyAndIsAtMostOnce(t *testing.T) {
	e := newTestEngine(t)

	type ask struct{}
	responder := e.Spawn(func(ctx Context) Behavior {
		return NewBehavior(Case1[ask](func(ask) Result {
			p := ctx.Promise()
			p.Fulfill(1)
			p.Fulfill(2) // no-op: already fulfilled
			return Reply(3) // no-op: the promise already claimed this reply
		}))
	})

	got := make(chan int, 4)
	e.Spawn(func(ctx Context) Behavior {
		h := ctx.Request(responder, NewMessage(ask{}))
		ctx.ThenTimeout(h, 300*time.Millisecond, func(m Message) Result {
			got <- m.Get(0).(int)
			return Handled()
		}, func() Result {
			return Handled()
		})
		return NewBehavior()
	})

	select {
	case v := <-got:
		assert.Equal(t, 1, v)
	case <-time.After(time.Second):
		t.Fatal("timed out waiting for the promised answer")
	}
	select {
	case <-got:
		t.Fatal("a second response arrived for the same request")
	case <-time.After(150 * time.Millisecond):
	}
}
