package service

import (
	"bytes"
	"context"
	"encoding/base64"
	"encoding/json"
	"errors"
	"strings"
	"testing"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/AntoinePinto/docu-talk/ai"
	chatbotmodels "github.com/AntoinePinto/docu-talk/chatbot/models"
	pkgerrors "github.com/AntoinePinto/docu-talk/pkg/errors"
	"github.com/AntoinePinto/docu-talk/pkg/logger"
	"github.com/AntoinePinto/docu-talk/pkg/stream"
	"github.com/AntoinePinto/docu-talk/predictor"
)

type stageProducer struct {
	iconErr    error
	promptsErr error
}

func (p *stageProducer) GenerateTitleDescription(context.Context, []ai.Document, string) (string, string, ai.Usage, error) {
	return "Contract Helper", "Answers questions about the uploaded contracts", ai.Usage{Qty: 100}, nil
}

func (p *stageProducer) GenerateIcon(context.Context, string, string) ([]byte, ai.Usage, error) {
	if p.iconErr != nil {
		return nil, ai.Usage{}, p.iconErr
	}
	return []byte{0x89, 0x50, 0x4e, 0x47}, ai.Usage{Qty: 1000}, nil
}

func (p *stageProducer) SuggestPrompts(context.Context, []ai.Document, string) ([]string, ai.Usage, error) {
	if p.promptsErr != nil {
		return nil, ai.Usage{}, p.promptsErr
	}
	return []string{"What is the notice period?", "Who signs first?"}, ai.Usage{Qty: 50}, nil
}

func (p *stageProducer) Ask(context.Context, []ai.Document, []ai.HistoryMessage, string, string) (ai.AnswerStream, error) {
	return nil, errors.New("not used")
}

func (p *stageProducer) LastMessageSources(context.Context, []ai.Document, []ai.HistoryMessage, string) ([]ai.Source, ai.Usage, error) {
	return nil, ai.Usage{}, errors.New("not used")
}

type recordingCharger struct {
	charges []int64
}

func (c *recordingCharger) Charge(_ context.Context, _, _ string, qty int64) (decimal.Decimal, error) {
	c.charges = append(c.charges, qty)
	return decimal.NewFromInt(qty).Div(decimal.NewFromInt(100)), nil
}

func (c *recordingCharger) Credits(price decimal.Decimal) float64 {
	credits, _ := price.Mul(decimal.NewFromInt(100)).Round(2).Float64()
	return credits
}

type recordingCommitter struct {
	committed []*chatbotmodels.Chatbot
	failure   error
}

func (c *recordingCommitter) Commit(_ context.Context, chatbot *chatbotmodels.Chatbot) error {
	if c.failure != nil {
		return c.failure
	}
	c.committed = append(c.committed, chatbot)
	return nil
}

type createMetrics struct {
	creates []predictor.CreateSample
}

func (m *createMetrics) LogCreate(s predictor.CreateSample) { m.creates = append(m.creates, s) }

func runCreate(t *testing.T, svc *CreationService, req CreateRequest) ([]stream.Event, error) {
	t.Helper()
	out := make(chan stream.Event, stream.DefaultBuffer)
	done := make(chan error, 1)
	go func() {
		defer close(out)
		done <- svc.StreamCreate(context.Background(), req, out)
	}()
	var events []stream.Event
	for ev := range out {
		events = append(events, ev)
	}
	return events, <-done
}

func testRequest() CreateRequest {
	return CreateRequest{
		ChatbotID: "cb-new",
		UserID:    "alice@example.com",
		Model:     "premium",
		Documents: []ai.Document{
			{Filename: "contract.pdf", NbPages: 12},
			{Filename: "annex.pdf", NbPages: 3},
		},
	}
}

func TestStreamCreateEmitsStagesInOrder(t *testing.T) {
	producer := &stageProducer{}
	charger := &recordingCharger{}
	committer := &recordingCommitter{}
	metrics := &createMetrics{}
	svc := NewCreationService(producer, charger, committer, metrics, logger.New(logger.Config{Level: "error"}))

	events, err := runCreate(t, svc, testRequest())
	require.NoError(t, err)

	// Four artifacts and three credit notices, strictly interleaved
	var stages []string
	notices := 0
	for _, ev := range events {
		switch e := ev.(type) {
		case stream.StageArtifact:
			stages = append(stages, e.Stage)
		case stream.CreditNotice:
			notices++
		}
	}
	assert.Equal(t, []string{StageTitleDescription, StageIcon, StagePrompts, StageCommit}, stages)
	assert.Equal(t, 3, notices)

	// Each billed stage charged its own usage
	assert.Equal(t, []int64{100, 1000, 50}, charger.charges)

	// The commit artifact follows its billing-free persistence
	last := events[len(events)-1]
	artifact, ok := last.(stream.StageArtifact)
	require.True(t, ok)
	assert.Equal(t, StageCommit, artifact.Stage)
	assert.Equal(t, map[string]any{"chatbot_id": "cb-new"}, artifact.Fields)
}

func TestStreamCreateArtifactPayloads(t *testing.T) {
	producer := &stageProducer{}
	committer := &recordingCommitter{}
	svc := NewCreationService(producer, &recordingCharger{}, committer, &createMetrics{}, logger.New(logger.Config{Level: "error"}))

	events, err := runCreate(t, svc, testRequest())
	require.NoError(t, err)

	artifacts := map[string]map[string]any{}
	for _, ev := range events {
		if a, ok := ev.(stream.StageArtifact); ok {
			artifacts[a.Stage] = a.Fields
		}
	}

	// Title and description sit flat in one artifact, not nested under a
	// stage key.
	assert.Equal(t, map[string]any{
		"title":       "Contract Helper",
		"description": "Answers questions about the uploaded contracts",
	}, artifacts[StageTitleDescription])

	// The icon travels base64-encoded
	assert.Equal(t, map[string]any{
		"icon": base64.StdEncoding.EncodeToString([]byte{0x89, 0x50, 0x4e, 0x47}),
	}, artifacts[StageIcon])
	assert.Equal(t, map[string]any{
		"suggested_prompts": []string{"What is the notice period?", "Who signs first?"},
	}, artifacts[StagePrompts])
}

func TestStreamCreateWireLines(t *testing.T) {
	svc := NewCreationService(&stageProducer{}, &recordingCharger{}, &recordingCommitter{}, &createMetrics{}, logger.New(logger.Config{Level: "error"}))

	events, err := runCreate(t, svc, testRequest())
	require.NoError(t, err)

	var buf bytes.Buffer
	enc := stream.NewEncoder(&buf)
	for _, ev := range events {
		require.NoError(t, enc.Encode(ev))
	}

	var lines []string
	for _, line := range strings.Split(buf.String(), "\n") {
		if strings.HasPrefix(line, "{") {
			lines = append(lines, line)
		}
	}
	require.Len(t, lines, 4)

	// The first line carries title and description at the top level, the
	// shape clients match on.
	var first map[string]string
	require.NoError(t, json.Unmarshal([]byte(lines[0]), &first))
	assert.Equal(t, map[string]string{
		"title":       "Contract Helper",
		"description": "Answers questions about the uploaded contracts",
	}, first)

	assert.Contains(t, lines[1], "\"icon\":")
	assert.Contains(t, lines[2], "\"suggested_prompts\":")
	assert.Equal(t, "{\"chatbot_id\":\"cb-new\"}", lines[3])
}

func TestStreamCreateCommittedEntity(t *testing.T) {
	committer := &recordingCommitter{}
	svc := NewCreationService(&stageProducer{}, &recordingCharger{}, committer, &createMetrics{}, logger.New(logger.Config{Level: "error"}))

	_, err := runCreate(t, svc, testRequest())
	require.NoError(t, err)

	require.Len(t, committer.committed, 1)
	chatbot := committer.committed[0]
	assert.Equal(t, "cb-new", chatbot.ID)
	assert.Equal(t, "alice@example.com", chatbot.CreatedBy)
	assert.Equal(t, "Contract Helper", chatbot.Title)
	assert.Equal(t, chatbotmodels.AccessPrivate, chatbot.Access)
	require.Len(t, chatbot.Documents, 2)
	require.Len(t, chatbot.Prompts, 2)
	assert.Equal(t, 0, chatbot.Prompts[0].Position)
	assert.Equal(t, 1, chatbot.Prompts[1].Position)
}

func TestStreamCreateIconFailureAbortsWithoutCommit(t *testing.T) {
	producer := &stageProducer{iconErr: errors.New("image model unavailable")}
	charger := &recordingCharger{}
	committer := &recordingCommitter{}
	svc := NewCreationService(producer, charger, committer, &createMetrics{}, logger.New(logger.Config{Level: "error"}))

	events, err := runCreate(t, svc, testRequest())
	require.Error(t, err)
	assert.Equal(t, pkgerrors.KindGeneration, pkgerrors.KindOf(err))

	// Only the first stage made it out; nothing was committed
	var stages []string
	for _, ev := range events {
		if a, ok := ev.(stream.StageArtifact); ok {
			stages = append(stages, a.Stage)
		}
	}
	assert.Equal(t, []string{StageTitleDescription}, stages)
	assert.Empty(t, committer.committed)

	// The completed first stage was still billed
	assert.Equal(t, []int64{100}, charger.charges)
}

func TestStreamCreateCommitFailure(t *testing.T) {
	committer := &recordingCommitter{failure: pkgerrors.NewPersistenceError("CHATBOT_COMMIT_FAILED", "db down")}
	svc := NewCreationService(&stageProducer{}, &recordingCharger{}, committer, &createMetrics{}, logger.New(logger.Config{Level: "error"}))

	events, err := runCreate(t, svc, testRequest())
	require.Error(t, err)
	assert.Equal(t, pkgerrors.KindPersistence, pkgerrors.KindOf(err))

	// No chatbot_id artifact reaches the client on a failed commit
	for _, ev := range events {
		if a, ok := ev.(stream.StageArtifact); ok {
			assert.NotEqual(t, StageCommit, a.Stage)
		}
	}
}

func TestStreamCreateRecordsMetrics(t *testing.T) {
	metrics := &createMetrics{}
	svc := NewCreationService(&stageProducer{}, &recordingCharger{}, &recordingCommitter{}, metrics, logger.New(logger.Config{Level: "error"}))

	_, err := runCreate(t, svc, testRequest())
	require.NoError(t, err)

	require.Len(t, metrics.creates, 1)
	assert.Equal(t, 2, metrics.creates[0].NbDocuments)
	assert.Equal(t, 15, metrics.creates[0].TotalPages)
}
