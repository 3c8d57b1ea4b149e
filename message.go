// File: message.go
package revue

import (
	"reflect"

	"github.com/pkg/errors"
)

// Message is an immutable, heterogeneous, reference-counted-in-spirit
// sequence of typed elements — the payload every envelope carries. Values
// observed through Get remain valid for the lifetime of the Message;
// DropFront/DropBack return cheap views over the same backing array rather
// than copying, which gives Messages copy-on-write sharing without any
// actual mutation ever being possible (there is no Set).
type Message struct {
	elems []any
}

// NewMessage builds a Message from a fixed sequence of values.
func NewMessage(values ...any) Message {
	elems := make([]any, len(values))
	copy(elems, values)
	return Message{elems: elems}
}

// Size returns the number of elements.
func (m Message) Size() int {
	return len(m.elems)
}

// TypeAt returns the type tag of element i. Tags are comparable across
// messages (reflect.Type values for identical concrete types compare
// equal). An out-of-range index is a programming error: it panics rather
// than returning a recoverable error, matching spec §4.1.
func (m Message) TypeAt(i int) reflect.Type {
	m.checkIndex(i)
	if m.elems[i] == nil {
		return nil
	}
	return reflect.TypeOf(m.elems[i])
}

// Get returns a read-only borrow of element i. Panics on out-of-range i.
func (m Message) Get(i int) any {
	m.checkIndex(i)
	return m.elems[i]
}

func (m Message) checkIndex(i int) {
	if i < 0 || i >= len(m.elems) {
		panic(errors.Errorf("revue: message index %d out of range (size %d)", i, len(m.elems)))
	}
}

// Equals performs element-wise structural equality.
func (m Message) Equals(other Message) bool {
	if len(m.elems) != len(other.elems) {
		return false
	}
	for i := range m.elems {
		if m.TypeAt(i) != other.TypeAt(i) {
			return false
		}
		if !reflect.DeepEqual(m.elems[i], other.elems[i]) {
			return false
		}
	}
	return true
}

// DropFront returns a view of m without its first n elements.
func (m Message) DropFront(n int) Message {
	if n <= 0 {
		return m
	}
	if n > len(m.elems) {
		n = len(m.elems)
	}
	return Message{elems: m.elems[n:]}
}

// DropBack returns a view of m without its last n elements.
func (m Message) DropBack(n int) Message {
	if n <= 0 {
		return m
	}
	if n > len(m.elems) {
		n = len(m.elems)
	}
	return Message{elems: m.elems[:len(m.elems)-n]}
}

// IsEmpty reports whether the message carries zero elements.
func (m Message) IsEmpty() bool {
	return len(m.elems) == 0
}

// soleElementType returns the type of the only element in a single-element
// message, used by the dispatcher's classification pass (spec §4.4). ok is
// false unless m has exactly one element.
func (m Message) soleElementType() (reflect.Type, bool) {
	if len(m.elems) != 1 {
		return nil, false
	}
	return m.TypeAt(0), true
}
