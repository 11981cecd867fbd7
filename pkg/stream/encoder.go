package stream

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"time"
)

// Encoder serializes events into the wire framing consumed by the frontend:
// raw text for fragments, SSE blocks named "credits" for credit notices and
// newline-terminated JSON objects for stage artifacts. Events are written in
// exactly the order they are encoded and flushed one at a time.
type Encoder struct {
	w       io.Writer
	flusher http.Flusher
	now     func() time.Time
	lastID  int64
}

// NewEncoder creates an encoder writing to w. If w implements http.Flusher
// each event is flushed as soon as it is written.
func NewEncoder(w io.Writer) *Encoder {
	enc := &Encoder{w: w, now: time.Now}
	if f, ok := w.(http.Flusher); ok {
		enc.flusher = f
	}
	return enc
}

// Encode writes a single event. Credit notice ids are derived from wall-clock
// time and never decrease within one stream.
func (e *Encoder) Encode(ev Event) error {
	switch ev := ev.(type) {
	case Fragment:
		if _, err := io.WriteString(e.w, ev.Text); err != nil {
			return err
		}
	case CreditNotice:
		body, err := json.Marshal(map[string]float64{"consumed_credits": ev.ConsumedCredits})
		if err != nil {
			return err
		}
		id := e.now().Unix()
		if id < e.lastID {
			id = e.lastID
		}
		e.lastID = id
		if _, err := fmt.Fprintf(e.w, "event: credits\nid: %d\ndata: %s\n\n", id, body); err != nil {
			return err
		}
	case StageArtifact:
		body, err := json.Marshal(ev.Fields)
		if err != nil {
			return err
		}
		if _, err := fmt.Fprintf(e.w, "%s\n", body); err != nil {
			return err
		}
	default:
		return fmt.Errorf("stream: unknown event type %T", ev)
	}
	e.flush()
	return nil
}

func (e *Encoder) flush() {
	if e.flusher != nil {
		e.flusher.Flush()
	}
}

// Pipe drains events into enc until the channel is closed or ctx is
// cancelled. A cancelled context means the consuming transport is gone; the
// error is returned so the producing side can stop promptly.
func Pipe(ctx context.Context, enc *Encoder, events <-chan Event) error {
	for {
		select {
		case <-ctx.Done():
			return ctx.Err()
		case ev, ok := <-events:
			if !ok {
				return nil
			}
			if err := enc.Encode(ev); err != nil {
				return err
			}
		}
	}
}

// Send delivers ev to out, giving up when ctx is cancelled so a producer
// blocked on an unread channel does not outlive its client.
func Send(ctx context.Context, out chan<- Event, ev Event) error {
	select {
	case out <- ev:
		return nil
	case <-ctx.Done():
		return ctx.Err()
	}
}
