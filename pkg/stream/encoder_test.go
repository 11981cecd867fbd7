package stream

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestEncodeFragmentWritesRawText(t *testing.T) {
	var buf bytes.Buffer
	enc := NewEncoder(&buf)

	require.NoError(t, enc.Encode(Fragment{Text: "Hello"}))
	require.NoError(t, enc.Encode(Fragment{Text: ", world"}))

	assert.Equal(t, "Hello, world", buf.String())
}

func TestEncodeCreditNoticeFraming(t *testing.T) {
	var buf bytes.Buffer
	enc := NewEncoder(&buf)
	enc.now = func() time.Time { return time.Unix(1700000000, 0) }

	require.NoError(t, enc.Encode(CreditNotice{ConsumedCredits: 12.5}))

	expected := "event: credits\nid: 1700000000\ndata: {\"consumed_credits\":12.5}\n\n"
	assert.Equal(t, expected, buf.String())
}

func TestCreditNoticeIDsNeverDecrease(t *testing.T) {
	var buf bytes.Buffer
	enc := NewEncoder(&buf)

	clock := int64(1700000005)
	enc.now = func() time.Time { return time.Unix(clock, 0) }

	require.NoError(t, enc.Encode(CreditNotice{ConsumedCredits: 1}))

	// Wall clock stepping backwards must not produce a smaller id
	clock = 1700000001
	require.NoError(t, enc.Encode(CreditNotice{ConsumedCredits: 2}))

	assert.Contains(t, buf.String(), "id: 1700000005\ndata: {\"consumed_credits\":1}")
	assert.Contains(t, buf.String(), "id: 1700000005\ndata: {\"consumed_credits\":2}")
	assert.NotContains(t, buf.String(), "id: 1700000001")
}

func TestEncodeStageArtifactAsJSONLine(t *testing.T) {
	var buf bytes.Buffer
	enc := NewEncoder(&buf)

	require.NoError(t, enc.Encode(StageArtifact{
		Stage:  "icon",
		Fields: map[string]any{"icon": "aWNvbg=="},
	}))

	assert.Equal(t, "{\"icon\":\"aWNvbg==\"}\n", buf.String())
}

func TestEncodeTitleDescriptionArtifactIsFlat(t *testing.T) {
	var buf bytes.Buffer
	enc := NewEncoder(&buf)

	require.NoError(t, enc.Encode(StageArtifact{
		Stage: "title_description",
		Fields: map[string]any{
			"title":       "Contract Helper",
			"description": "Answers questions about the uploaded contracts",
		},
	}))

	// Both keys sit at the top level of the line; the stage name never
	// appears on the wire.
	var line map[string]string
	require.NoError(t, json.Unmarshal(buf.Bytes(), &line))
	assert.Equal(t, map[string]string{
		"title":       "Contract Helper",
		"description": "Answers questions about the uploaded contracts",
	}, line)
	assert.NotContains(t, buf.String(), "title_description")
}

func TestPipeDrainsUntilClose(t *testing.T) {
	var buf bytes.Buffer
	enc := NewEncoder(&buf)

	events := make(chan Event, DefaultBuffer)
	go func() {
		defer close(events)
		for i := 0; i < 5; i++ {
			events <- Fragment{Text: fmt.Sprintf("%d", i)}
		}
	}()

	require.NoError(t, Pipe(context.Background(), enc, events))
	assert.Equal(t, "01234", buf.String())
}

func TestPipeStopsOnCancelledContext(t *testing.T) {
	var buf bytes.Buffer
	enc := NewEncoder(&buf)

	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	events := make(chan Event)
	err := Pipe(ctx, enc, events)
	assert.ErrorIs(t, err, context.Canceled)
}

func TestSendGivesUpOnCancelledContext(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	// Unbuffered channel with no reader: Send must not block forever
	out := make(chan Event)
	err := Send(ctx, out, Fragment{Text: "x"})
	assert.ErrorIs(t, err, context.Canceled)
}

func TestInterleavedEventOrderIsPreserved(t *testing.T) {
	var buf bytes.Buffer
	enc := NewEncoder(&buf)
	enc.now = func() time.Time { return time.Unix(1700000000, 0) }

	require.NoError(t, enc.Encode(Fragment{Text: "It"}))
	require.NoError(t, enc.Encode(Fragment{Text: " works"}))
	require.NoError(t, enc.Encode(CreditNotice{ConsumedCredits: 3.2}))

	assert.Equal(t, "It works"+
		"event: credits\nid: 1700000000\ndata: {\"consumed_credits\":3.2}\n\n",
		buf.String())
}
