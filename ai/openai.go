package ai

import (
	"context"
	"encoding/base64"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"strings"

	"github.com/sashabaranov/go-openai"

	"github.com/AntoinePinto/docu-talk/pkg/logger"
	"github.com/AntoinePinto/docu-talk/pkg/resilience"
)

// ErrNoUsage is returned when a stream ends without the provider reporting a
// final token count. Callers must treat the delivered answer as best-effort
// and unbilled.
var ErrNoUsage = errors.New("ai: stream ended without usage report")

// Client minimal subset of the OpenAI client used by the producer; it is easy
// to fake in tests.
type Client interface {
	CreateChatCompletion(ctx context.Context, req openai.ChatCompletionRequest) (openai.ChatCompletionResponse, error)
	CreateChatCompletionStream(ctx context.Context, req openai.ChatCompletionRequest) (*openai.ChatCompletionStream, error)
	CreateImage(ctx context.Context, req openai.ImageRequest) (openai.ImageResponse, error)
}

// OpenAIProducer implements Producer on the OpenAI API. Model aliases
// ("basic", "premium") are resolved to provider model names through the
// supplied mapping.
type OpenAIProducer struct {
	client  Client
	models  map[string]string
	breaker *resilience.CircuitBreaker
	log     *logger.Logger
}

// NewOpenAIProducer creates a producer backed by the given client. Calls that
// are not streamed run through a circuit breaker so a degraded provider fails
// fast instead of piling up requests.
func NewOpenAIProducer(client Client, models map[string]string, log *logger.Logger) *OpenAIProducer {
	return &OpenAIProducer{
		client:  client,
		models:  models,
		breaker: resilience.NewCircuitBreaker(resilience.DefaultCircuitBreakerConfig("openai"), log),
		log:     log,
	}
}

// NewClient builds a real OpenAI client from an API key and optional base URL.
func NewClient(apiKey, baseURL string) *openai.Client {
	cfg := openai.DefaultConfig(apiKey)
	if baseURL != "" {
		cfg.BaseURL = baseURL
	}
	return openai.NewClientWithConfig(cfg)
}

func (p *OpenAIProducer) resolveModel(model string) string {
	if name, ok := p.models[model]; ok {
		return name
	}
	return model
}

// documentContext renders the document set into the system prompt. The
// retrieval index itself lives with the provider; pages are passed inline.
func documentContext(docs []Document) string {
	var b strings.Builder
	b.WriteString("You answer questions strictly from the following documents.\n")
	for _, d := range docs {
		fmt.Fprintf(&b, "--- %s (%d pages) ---\n", d.Filename, d.NbPages)
		b.Write(d.Bytes)
		b.WriteString("\n")
	}
	return b.String()
}

func chatHistory(docs []Document, history []HistoryMessage) []openai.ChatCompletionMessage {
	messages := []openai.ChatCompletionMessage{
		{Role: openai.ChatMessageRoleSystem, Content: documentContext(docs)},
	}
	for _, m := range history {
		role := openai.ChatMessageRoleUser
		if m.Role == "assistant" {
			role = openai.ChatMessageRoleAssistant
		}
		messages = append(messages, openai.ChatCompletionMessage{Role: role, Content: m.Content})
	}
	return messages
}

// openAIAnswerStream adapts an OpenAI completion stream to AnswerStream.
type openAIAnswerStream struct {
	stream *openai.ChatCompletionStream
	usage  *Usage
	done   bool
}

func (s *openAIAnswerStream) Recv() (string, error) {
	for {
		resp, err := s.stream.Recv()
		if errors.Is(err, io.EOF) {
			s.done = true
			return "", io.EOF
		}
		if err != nil {
			return "", err
		}
		if resp.Usage != nil {
			s.usage = &Usage{Qty: resp.Usage.TotalTokens}
		}
		if len(resp.Choices) == 0 {
			// Usage-only terminal chunk.
			continue
		}
		if delta := resp.Choices[0].Delta.Content; delta != "" {
			return delta, nil
		}
	}
}

func (s *openAIAnswerStream) Usage() (Usage, error) {
	if !s.done || s.usage == nil {
		return Usage{}, ErrNoUsage
	}
	return *s.usage, nil
}

func (s *openAIAnswerStream) Close() error {
	return s.stream.Close()
}

func (p *OpenAIProducer) Ask(ctx context.Context, docs []Document, history []HistoryMessage, message, model string) (AnswerStream, error) {
	messages := append(chatHistory(docs, history), openai.ChatCompletionMessage{
		Role:    openai.ChatMessageRoleUser,
		Content: message,
	})

	stream, err := p.client.CreateChatCompletionStream(ctx, openai.ChatCompletionRequest{
		Model:         p.resolveModel(model),
		Messages:      messages,
		Stream:        true,
		StreamOptions: &openai.StreamOptions{IncludeUsage: true},
	})
	if err != nil {
		return nil, fmt.Errorf("ai: start answer stream: %w", err)
	}
	return &openAIAnswerStream{stream: stream}, nil
}

func (p *OpenAIProducer) LastMessageSources(ctx context.Context, docs []Document, history []HistoryMessage, model string) ([]Source, Usage, error) {
	messages := append(chatHistory(docs, history), openai.ChatCompletionMessage{
		Role: openai.ChatMessageRoleUser,
		Content: "List the document passages the previous assistant answer was based on. " +
			`Respond with a JSON array of {"filename", "page", "url", "citation"} objects, ` +
			"or [] when the answer used none.",
	})

	var resp openai.ChatCompletionResponse
	err := p.breaker.Execute(func() error {
		var callErr error
		resp, callErr = p.client.CreateChatCompletion(ctx, openai.ChatCompletionRequest{
			Model:          p.resolveModel(model),
			Messages:       messages,
			ResponseFormat: &openai.ChatCompletionResponseFormat{Type: openai.ChatCompletionResponseFormatTypeJSONObject},
		})
		return callErr
	})
	if err != nil {
		return nil, Usage{}, fmt.Errorf("ai: get sources: %w", err)
	}
	if len(resp.Choices) == 0 {
		return nil, Usage{}, errors.New("ai: sources response contained no choices")
	}

	var sources []Source
	if err := json.Unmarshal([]byte(resp.Choices[0].Message.Content), &sources); err != nil {
		return nil, Usage{}, fmt.Errorf("ai: decode sources: %w", err)
	}
	return sources, Usage{Qty: resp.Usage.TotalTokens}, nil
}

func (p *OpenAIProducer) GenerateTitleDescription(ctx context.Context, docs []Document, model string) (string, string, Usage, error) {
	var out struct {
		Title       string `json:"title"`
		Description string `json:"description"`
	}
	u, err := p.completeJSON(ctx, docs, model,
		`Propose a short title and a one-sentence description for a chatbot built on these documents. Respond as {"title", "description"}.`,
		&out)
	if err != nil {
		return "", "", Usage{}, err
	}
	return out.Title, out.Description, u, nil
}

func (p *OpenAIProducer) SuggestPrompts(ctx context.Context, docs []Document, model string) ([]string, Usage, error) {
	var out struct {
		SuggestedPrompts []string `json:"suggested_prompts"`
	}
	u, err := p.completeJSON(ctx, docs, model,
		`Propose three example questions a user could ask about these documents. Respond as {"suggested_prompts": [...]}.`,
		&out)
	if err != nil {
		return nil, Usage{}, err
	}
	return out.SuggestedPrompts, u, nil
}

func (p *OpenAIProducer) completeJSON(ctx context.Context, docs []Document, model, instruction string, out any) (Usage, error) {
	messages := append(chatHistory(docs, nil), openai.ChatCompletionMessage{
		Role:    openai.ChatMessageRoleUser,
		Content: instruction,
	})

	var resp openai.ChatCompletionResponse
	err := p.breaker.Execute(func() error {
		var callErr error
		resp, callErr = p.client.CreateChatCompletion(ctx, openai.ChatCompletionRequest{
			Model:          p.resolveModel(model),
			Messages:       messages,
			ResponseFormat: &openai.ChatCompletionResponseFormat{Type: openai.ChatCompletionResponseFormatTypeJSONObject},
		})
		return callErr
	})
	if err != nil {
		return Usage{}, fmt.Errorf("ai: completion: %w", err)
	}
	if len(resp.Choices) == 0 {
		return Usage{}, errors.New("ai: completion response contained no choices")
	}
	if err := json.Unmarshal([]byte(resp.Choices[0].Message.Content), out); err != nil {
		return Usage{}, fmt.Errorf("ai: decode completion: %w", err)
	}
	return Usage{Qty: resp.Usage.TotalTokens}, nil
}

// iconUsageQty approximates the billable quantity of one image generation;
// the images endpoint reports no token usage.
const iconUsageQty = 1000

func (p *OpenAIProducer) GenerateIcon(ctx context.Context, description, model string) ([]byte, Usage, error) {
	var resp openai.ImageResponse
	err := p.breaker.Execute(func() error {
		var callErr error
		resp, callErr = p.client.CreateImage(ctx, openai.ImageRequest{
			Prompt:         "Minimalist flat icon for a document chatbot described as: " + description,
			Model:          openai.CreateImageModelDallE3,
			N:              1,
			Size:           openai.CreateImageSize1024x1024,
			ResponseFormat: openai.CreateImageResponseFormatB64JSON,
		})
		return callErr
	})
	if err != nil {
		return nil, Usage{}, fmt.Errorf("ai: generate icon: %w", err)
	}
	if len(resp.Data) == 0 {
		return nil, Usage{}, errors.New("ai: image response contained no data")
	}
	icon, err := base64.StdEncoding.DecodeString(resp.Data[0].B64JSON)
	if err != nil {
		return nil, Usage{}, fmt.Errorf("ai: decode icon: %w", err)
	}
	return icon, Usage{Qty: iconUsageQty}, nil
}
