package ws

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/AntoinePinto/docu-talk/pkg/stream"
)

func TestPumpFramesWritesEveryEvent(t *testing.T) {
	events := make(chan stream.Event, 3)
	events <- stream.Fragment{Text: "Hello"}
	events <- stream.CreditNotice{ConsumedCredits: 2.5}
	events <- stream.StageArtifact{Stage: "chatbot_id", Fields: map[string]any{"chatbot_id": "cb-1"}}
	close(events)

	_, cancel := context.WithCancel(context.Background())
	defer cancel()

	var frames []Frame
	err := pumpFrames(cancel, events, func(f Frame) error {
		frames = append(frames, f)
		return nil
	})

	require.NoError(t, err)
	require.Len(t, frames, 3)
	assert.Equal(t, Frame{Type: "fragment", Content: "Hello"}, frames[0])
	assert.Equal(t, "credits", frames[1].Type)
	assert.Equal(t, Frame{Type: "artifact", Content: map[string]any{"chatbot_id": "cb-1"}}, frames[2])
}

func TestPumpFramesFailedWriteUnblocksProducer(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	events := make(chan stream.Event, 2)
	producerDone := make(chan error, 1)
	go func() {
		defer close(events)
		// Produce until the session is cancelled; without draining, Send
		// would block forever once the consumer stops reading.
		for {
			if err := stream.Send(ctx, events, stream.Fragment{Text: "chunk"}); err != nil {
				producerDone <- err
				return
			}
		}
	}()

	writes := 0
	err := pumpFrames(cancel, events, func(Frame) error {
		writes++
		if writes >= 3 {
			return errors.New("broken pipe")
		}
		return nil
	})

	require.EqualError(t, err, "broken pipe")

	select {
	case perr := <-producerDone:
		assert.ErrorIs(t, perr, context.Canceled)
	case <-time.After(time.Second):
		t.Fatal("producer still blocked after write failure")
	}

	// No further writes were attempted while draining
	assert.Equal(t, 3, writes)
}
