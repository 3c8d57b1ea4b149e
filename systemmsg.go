// File: systemmsg.go
package revue

// ExitMsg is delivered to a trap_exit actor in place of the default
// unlink-and-die treatment (spec §4.4/§6.4): one copy per dying link
// neighbour, carrying that neighbour's address and exit reason.
type ExitMsg struct {
	Source Address
	Reason ExitReason
}

// DownMsg is delivered to every monitor of an actor once it has finished
// terminating (spec §6.4). Unlike ExitMsg it is never suppressed: a
// monitor always sees it as an ordinary message, trap_exit or not.
type DownMsg struct {
	Who    Address
	Reason ExitReason
}

// TimeoutMsg marks the expiry of the current behavior's receive-timeout
// (spec §4.7). TimeoutID lets the dispatcher recognize and discard stale
// timeouts left over from a behavior that has since been replaced.
type TimeoutMsg struct {
	timeoutID uint64
}

// SyncTimeoutMsg marks the expiry of a pending sync-send request. It
// carries no payload: the dispatcher identifies which request timed out
// from the envelope's message-id, not from this value's contents.
type SyncTimeoutMsg struct{}
