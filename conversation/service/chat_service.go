package service

import (
	"context"
	"fmt"
	"io"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"

	"github.com/AntoinePinto/docu-talk/ai"
	"github.com/AntoinePinto/docu-talk/conversation/models"
	"github.com/AntoinePinto/docu-talk/conversation/repository"
	"github.com/AntoinePinto/docu-talk/pkg/errors"
	"github.com/AntoinePinto/docu-talk/pkg/logger"
	"github.com/AntoinePinto/docu-talk/pkg/stream"
	"github.com/AntoinePinto/docu-talk/predictor"
)

// DocumentSource loads the generation context of a chatbot.
type DocumentSource interface {
	GenerationDocuments(ctx context.Context, chatbotID string) ([]ai.Document, error)
}

// UsageCharger bills a completed generation unit.
type UsageCharger interface {
	Charge(ctx context.Context, userID, model string, qty int64) (decimal.Decimal, error)
	Credits(price decimal.Decimal) float64
}

// AskMetrics receives per-request observations; implementations must never
// influence the response.
type AskMetrics interface {
	LogAsk(sample predictor.AskSample)
}

// ChatService orchestrates ask sessions: it drives the answer producer,
// forwards fragments to the stream, then runs the post-stream commit
// sequence (charge usage, persist transcript, log metrics).
type ChatService struct {
	repo     repository.ConversationRepository
	docs     DocumentSource
	producer ai.Producer
	ledger   UsageCharger
	metrics  AskMetrics
	log      *logger.Logger
}

func NewChatService(
	repo repository.ConversationRepository,
	docs DocumentSource,
	producer ai.Producer,
	ledger UsageCharger,
	metrics AskMetrics,
	log *logger.Logger,
) *ChatService {
	return &ChatService{
		repo:     repo,
		docs:     docs,
		producer: producer,
		ledger:   ledger,
		metrics:  metrics,
		log:      log,
	}
}

// AskRequest identifies one ask turn. The caller's access to the chatbot has
// already been verified before a session starts.
type AskRequest struct {
	ChatbotID      string
	ConversationID string
	Message        string
	Model          string
	UserID         string
}

// StreamAsk runs one ask session, pushing events onto out as they are
// produced. The sequence is generate, commit-usage, commit-transcript: a
// failure in a later phase does not unwind the client-visible output of an
// earlier one. If ctx is cancelled mid-generation, production stops and
// nothing is billed or persisted.
func (s *ChatService) StreamAsk(ctx context.Context, req AskRequest, out chan<- stream.Event) error {
	start := time.Now()

	docs, history, err := s.loadContext(ctx, req.ChatbotID, req.ConversationID)
	if err != nil {
		return err
	}

	answerStream, err := s.producer.Ask(ctx, docs, history, req.Message, req.Model)
	if err != nil {
		return errors.NewGenerationError("ASK_FAILED", err.Error())
	}
	defer answerStream.Close()

	var answer strings.Builder
	for {
		fragment, err := answerStream.Recv()
		if err == io.EOF {
			break
		}
		if err != nil {
			// Fragments already delivered stay with the client, unbilled.
			return errors.NewGenerationError("STREAM_INTERRUPTED", err.Error())
		}
		answer.WriteString(fragment)
		if err := stream.Send(ctx, out, stream.Fragment{Text: fragment}); err != nil {
			return err
		}
	}

	usage, err := answerStream.Usage()
	if err != nil {
		// No final quantity exists to charge; the partial answer is
		// best-effort and never persisted.
		return errors.NewGenerationError("NO_USAGE_REPORTED", err.Error())
	}

	price, err := s.ledger.Charge(ctx, req.UserID, req.Model, int64(usage.Qty))
	if err != nil {
		return err
	}
	if err := stream.Send(ctx, out, stream.CreditNotice{ConsumedCredits: s.ledger.Credits(price)}); err != nil {
		return err
	}

	if err := s.persistTurn(ctx, req, answer.String()); err != nil {
		// The answer was already delivered; surface as partial success.
		s.log.LogError(err, "transcript write failed",
			"conversation_id", req.ConversationID,
		)
		return errors.NewPersistenceError("TRANSCRIPT_WRITE_FAILED", err.Error())
	}

	totalPages := 0
	for _, d := range docs {
		totalPages += d.NbPages
	}
	s.metrics.LogAsk(predictor.AskSample{
		Duration:    time.Since(start),
		TokenCount:  usage.Qty,
		NbDocuments: len(docs),
		TotalPages:  totalPages,
		Model:       req.Model,
		ChatbotID:   req.ChatbotID,
	})
	return nil
}

// SourcesResult is the non-streamed response of LastMessageSources.
type SourcesResult struct {
	Answer          string  `json:"answer"`
	ConsumedCredits float64 `json:"consumed_credits"`
}

// LastMessageSources replays the conversation and asks the producer for the
// citations backing its last answer. The rendered answer is billed and
// persisted as a single assistant message, computed fully before returning.
func (s *ChatService) LastMessageSources(ctx context.Context, req AskRequest) (*SourcesResult, error) {
	start := time.Now()

	docs, history, err := s.loadContext(ctx, req.ChatbotID, req.ConversationID)
	if err != nil {
		return nil, err
	}

	sources, usage, err := s.producer.LastMessageSources(ctx, docs, history, req.Model)
	if err != nil {
		return nil, errors.NewGenerationError("SOURCES_FAILED", err.Error())
	}

	answer := renderSources(sources)

	price, err := s.ledger.Charge(ctx, req.UserID, req.Model, int64(usage.Qty))
	if err != nil {
		return nil, err
	}

	if err := s.repo.AppendMessage(ctx, &models.Message{
		ConversationID: req.ConversationID,
		Role:           models.RoleAssistant,
		Content:        answer,
	}); err != nil {
		return nil, errors.NewPersistenceError("TRANSCRIPT_WRITE_FAILED", err.Error())
	}

	totalPages := 0
	for _, d := range docs {
		totalPages += d.NbPages
	}
	s.metrics.LogAsk(predictor.AskSample{
		Duration:    time.Since(start),
		TokenCount:  usage.Qty,
		NbDocuments: len(docs),
		TotalPages:  totalPages,
		Model:       req.Model,
		ChatbotID:   req.ChatbotID,
	})

	return &SourcesResult{
		Answer:          answer,
		ConsumedCredits: s.ledger.Credits(price),
	}, nil
}

// renderSources formats citations as markdown links with blockquoted
// excerpts, one blank line apart.
func renderSources(sources []ai.Source) string {
	if len(sources) == 0 {
		return "No sources found"
	}
	parts := make([]string, len(sources))
	for i, src := range sources {
		parts[i] = fmt.Sprintf("[%s - Page %d](%s)\n\n*%s*", src.Filename, src.Page, src.URL, src.Citation)
	}
	return strings.Join(parts, "\n\n")
}

func (s *ChatService) loadContext(ctx context.Context, chatbotID, conversationID string) ([]ai.Document, []ai.HistoryMessage, error) {
	docs, err := s.docs.GenerationDocuments(ctx, chatbotID)
	if err != nil {
		return nil, nil, err
	}

	messages, err := s.repo.Messages(ctx, conversationID)
	if err != nil {
		return nil, nil, err
	}

	// An immutable snapshot per ask: concurrent sessions never alias a
	// shared history.
	history := make([]ai.HistoryMessage, len(messages))
	for i, m := range messages {
		history[i] = ai.HistoryMessage{Role: m.Role, Content: m.Content}
	}
	return docs, history, nil
}

func (s *ChatService) persistTurn(ctx context.Context, req AskRequest, answer string) error {
	return s.repo.AppendTurn(ctx,
		&models.Message{
			ConversationID: req.ConversationID,
			Role:           models.RoleUser,
			Content:        req.Message,
		},
		&models.Message{
			ConversationID: req.ConversationID,
			Role:           models.RoleAssistant,
			Content:        answer,
		},
	)
}

// CreateConversation starts an empty transcript for a chatbot and user.
func (s *ChatService) CreateConversation(ctx context.Context, chatbotID, userID string) (*models.Conversation, error) {
	conversation := &models.Conversation{
		ID:        uuid.New().String(),
		ChatbotID: chatbotID,
		UserID:    userID,
		Title:     "New Chat",
	}
	if err := s.repo.Create(ctx, conversation); err != nil {
		return nil, err
	}
	return conversation, nil
}

// GetConversations lists the user's transcripts for a chatbot, messages
// included, in store order.
func (s *ChatService) GetConversations(ctx context.Context, chatbotID, userID string) ([]models.Conversation, error) {
	return s.repo.ListByChatbotAndUser(ctx, chatbotID, userID)
}
