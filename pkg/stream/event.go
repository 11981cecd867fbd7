// Package stream carries generation output from a session to a client over a
// single long-lived response. Sessions push tagged events onto a bounded
// channel; a dedicated encoder drains the channel and writes the wire framing.
package stream

// DefaultBuffer is the capacity of the channel between a session and the
// encoder. Keeping it small bounds how far production can run ahead of a slow
// or disconnected client.
const DefaultBuffer = 16

// Event is one unit of output produced during a generation session.
type Event interface {
	event()
}

// Fragment is an incremental piece of generated answer text. Fragments are
// written raw, with no framing overhead, and flushed per unit.
type Fragment struct {
	Text string
}

// CreditNotice reports the credits consumed by a completed, billed unit of
// generation. Clients react to it by updating a live balance display.
type CreditNotice struct {
	ConsumedCredits float64
}

// StageArtifact is the output of one chatbot-creation stage. Fields is the
// JSON object written verbatim as one newline-terminated line; the title
// stage emits two keys, every other stage a single one. Stage identifies the
// stage to in-process consumers and is not serialized.
type StageArtifact struct {
	Stage  string
	Fields map[string]any
}

func (Fragment) event()      {}
func (CreditNotice) event()  {}
func (StageArtifact) event() {}
