// File: behavior_test.go
package revue

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestBehavior_Case1Matches(t *testing.T) {
	type greet struct{ Name string }
	var got string
	b := NewBehavior(
		Case1[greet](func(g greet) Result {
			got = g.Name
			return Handled()
		}),
	)
	res := b.apply(NewMessage(greet{Name: "ada"}))
	assert.Equal(t, resultHandled, res.kind)
	assert.Equal(t, "ada", got)
}

func TestBehavior_NoMatchSkips(t *testing.T) {
	type a struct{}
	type b struct{}
	bh := NewBehavior(Case1[a](func(a) Result { return Handled() }))
	res := bh.apply(NewMessage(b{}))
	assert.Equal(t, resultSkip, res.kind)
}

func TestBehavior_CaseValue(t *testing.T) {
	fired := false
	b := NewBehavior(CaseValue("ping", func() Result {
		fired = true
		return Handled()
	}))
	b.apply(NewMessage("ping"))
	assert.True(t, fired)
}

func TestBehavior_Case2(t *testing.T) {
	var sum int
	b := NewBehavior(Case2[int, int](func(a, bb int) Result {
		sum = a + bb
		return Handled()
	}))
	b.apply(NewMessage(2, 3))
	assert.Equal(t, 5, sum)
}

func TestBehaviorStack_PushPopTimeoutIDs(t *testing.T) {
	s := newBehaviorStack(NewBehavior())
	base := s.currentTimeoutID()

	s.push(NewBehavior())
	pushed := s.currentTimeoutID()
	assert.NotEqual(t, base, pushed)

	s.pop()
	assert.Equal(t, base, s.currentTimeoutID(), "popping back to a frame restores its original timeout id")

	active, inactive := s.timeoutState(base)
	assert.True(t, active)
	assert.False(t, inactive)

	active, inactive = s.timeoutState(pushed)
	assert.False(t, active)
	assert.False(t, inactive, "a fully popped frame's id is stale, not inactive")
}

func TestBehaviorStack_InactiveTimeout(t *testing.T) {
	s := newBehaviorStack(NewBehavior())
	base := s.currentTimeoutID()
	s.push(NewBehavior())
	// base's frame is still on the stack, just not on top.
	active, inactive := s.timeoutState(base)
	assert.False(t, active)
	assert.True(t, inactive)
}

func TestBehaviorStack_PopAtRootIsNoop(t *testing.T) {
	s := newBehaviorStack(NewBehavior())
	id := s.currentTimeoutID()
	s.pop()
	assert.Equal(t, id, s.currentTimeoutID())
	assert.Equal(t, 1, len(s.frames))
}
