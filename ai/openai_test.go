package ai

import (
	"context"
	"errors"
	"testing"

	"github.com/sashabaranov/go-openai"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/AntoinePinto/docu-talk/pkg/logger"
)

type scriptedClient struct {
	completion openai.ChatCompletionResponse
}

func (c *scriptedClient) CreateChatCompletion(context.Context, openai.ChatCompletionRequest) (openai.ChatCompletionResponse, error) {
	return c.completion, nil
}

func (c *scriptedClient) CreateChatCompletionStream(context.Context, openai.ChatCompletionRequest) (*openai.ChatCompletionStream, error) {
	return nil, errors.New("not used")
}

func (c *scriptedClient) CreateImage(context.Context, openai.ImageRequest) (openai.ImageResponse, error) {
	return openai.ImageResponse{}, errors.New("not used")
}

func newTestProducer(client Client) *OpenAIProducer {
	return NewOpenAIProducer(client, map[string]string{"basic": "gpt-4o-mini"}, logger.New(logger.Config{Level: "error"}))
}

func TestCompletionWithoutChoicesErrors(t *testing.T) {
	p := newTestProducer(&scriptedClient{completion: openai.ChatCompletionResponse{
		Usage: openai.Usage{TotalTokens: 10},
	}})

	_, _, _, err := p.GenerateTitleDescription(context.Background(), nil, "basic")
	require.Error(t, err)
	assert.Contains(t, err.Error(), "no choices")
}

func TestSourcesWithoutChoicesErrors(t *testing.T) {
	p := newTestProducer(&scriptedClient{completion: openai.ChatCompletionResponse{
		Usage: openai.Usage{TotalTokens: 10},
	}})

	_, _, err := p.LastMessageSources(context.Background(), nil, nil, "basic")
	require.Error(t, err)
	assert.Contains(t, err.Error(), "no choices")
}

func TestCompletionParsesChoice(t *testing.T) {
	p := newTestProducer(&scriptedClient{completion: openai.ChatCompletionResponse{
		Choices: []openai.ChatCompletionChoice{{
			Message: openai.ChatCompletionMessage{Content: `{"title": "Contracts", "description": "Reads contracts"}`},
		}},
		Usage: openai.Usage{TotalTokens: 42},
	}})

	title, description, usage, err := p.GenerateTitleDescription(context.Background(), nil, "basic")
	require.NoError(t, err)
	assert.Equal(t, "Contracts", title)
	assert.Equal(t, "Reads contracts", description)
	assert.Equal(t, 42, usage.Qty)
}
