// Package ai defines the answer-producer collaborator: the component that
// performs the actual language-model invocation and yields text fragments,
// citations and usage counts. Sessions consume it as an opaque producer.
package ai

import (
	"context"
	"time"
)

// Usage is the raw consumption quantity reported by the producer once a
// generation unit has fully completed.
type Usage struct {
	Qty int `json:"qty"`
}

// Document is one uploaded file a chatbot answers from.
type Document struct {
	Filename  string    `json:"filename"`
	Bytes     []byte    `json:"-"`
	NbPages   int       `json:"nb_pages"`
	CreatedBy string    `json:"created_by,omitempty"`
	CreatedAt time.Time `json:"created_at,omitempty"`
}

// HistoryMessage is one prior turn replayed into the producer before asking.
type HistoryMessage struct {
	Role    string `json:"role"`
	Content string `json:"content"`
}

// Source is one citation backing the last assistant answer.
type Source struct {
	Filename string `json:"filename"`
	Page     int    `json:"page"`
	URL      string `json:"url"`
	Citation string `json:"citation"`
}

// AnswerStream yields the fragments of one answer. Recv returns io.EOF once
// the answer is complete; Usage is only valid after that, and returns an
// error if the producer failed before reporting a final quantity.
type AnswerStream interface {
	Recv() (string, error)
	Usage() (Usage, error)
	Close() error
}

// Producer generates answers, citations and creation-stage artifacts from a
// document set. Implementations must stop producing promptly when ctx is
// cancelled.
type Producer interface {
	// Ask streams an answer to message given the documents and prior turns.
	Ask(ctx context.Context, docs []Document, history []HistoryMessage, message, model string) (AnswerStream, error)

	// LastMessageSources returns the citations backing the most recent
	// assistant message in history. Deterministic for identical history.
	LastMessageSources(ctx context.Context, docs []Document, history []HistoryMessage, model string) ([]Source, Usage, error)

	// GenerateTitleDescription derives a chatbot title and description from
	// the document set.
	GenerateTitleDescription(ctx context.Context, docs []Document, model string) (title, description string, u Usage, err error)

	// GenerateIcon produces a PNG icon image from a chatbot description.
	GenerateIcon(ctx context.Context, description, model string) ([]byte, Usage, error)

	// SuggestPrompts proposes example questions for the document set.
	SuggestPrompts(ctx context.Context, docs []Document, model string) ([]string, Usage, error)
}
