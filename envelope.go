// File: envelope.go
package revue

// messageID uniquely identifies a sync-send request/response pair within
// the sending actor's lifetime. Bit 0 marks the value as a response to an
// earlier request; the remaining 63 bits are a per-sender monotonic
// counter. An async send always carries messageID 0, which can never
// collide with a real request (counters start at 1).
type messageID uint64

const responseFlag messageID = 1

func newRequestID(counter uint64) messageID {
	return messageID(counter << 1)
}

func (id messageID) isResponse() bool {
	return id&responseFlag != 0
}

func (id messageID) isAsync() bool {
	return id == 0
}

func (id messageID) asResponse() messageID {
	return id | responseFlag
}

// envelope is the unit of transport between actors: a Message plus enough
// routing metadata to classify it on arrival (spec §4.4) and, for
// sync-send requests, to address a reply back to the right continuation.
type envelope struct {
	sender Address
	target Address
	msg    Message
	id     messageID
	trace  string // correlation id, set by callers that want cross-actor tracing
}

func (e envelope) isRequest() bool {
	return e.id != 0 && !e.id.isResponse()
}

func (e envelope) isResponse() bool {
	return e.id != 0 && e.id.isResponse()
}

func (e envelope) isAsync() bool {
	return e.id == 0
}
