// File: address.go
package revue

import "fmt"

// Address is an ownership-neutral, hashable identity for an actor. It is
// what link sets and monitor sets store: enough to recognize and notify a
// peer, never enough to keep it alive. A zero Address never identifies a
// live actor (ids are minted starting at 1).
type Address struct {
	id uint64
}

// IsZero reports whether a is the anonymous/no-actor address.
func (a Address) IsZero() bool {
	return a.id == 0
}

func (a Address) String() string {
	if a.IsZero() {
		return "actor#none"
	}
	return fmt.Sprintf("actor#%d", a.id)
}

// PID is the reference-counted-in-spirit handle code actually sends to and
// spawns with. Like Address it is a small comparable value (usable as a map
// key), but conceptually it is the "owning" handle: as long as the engine's
// registry holds the matching process alive, routing a message through a
// PID succeeds. Once the actor has terminated and been reaped, a PID simply
// routes to nothing (see Engine.Send), matching the closed-mailbox rule in
// spec §4.2 rather than dangling-pointer undefined behavior.
type PID struct {
	addr Address
}

// Address returns the non-owning identity for p, suitable for link/monitor
// sets.
func (p PID) Address() Address {
	return p.addr
}

// IsZero reports whether p refers to no actor.
func (p PID) IsZero() bool {
	return p.addr.IsZero()
}

func (p PID) String() string {
	return p.addr.String()
}
