package service

import (
	"context"
	"encoding/base64"
	"time"

	"github.com/qmuntal/stateless"
	"github.com/shopspring/decimal"

	"github.com/AntoinePinto/docu-talk/ai"
	chatbotmodels "github.com/AntoinePinto/docu-talk/chatbot/models"
	"github.com/AntoinePinto/docu-talk/pkg/errors"
	"github.com/AntoinePinto/docu-talk/pkg/logger"
	"github.com/AntoinePinto/docu-talk/pkg/stream"
	"github.com/AntoinePinto/docu-talk/predictor"
)

// Creation stage identifiers.
const (
	StageTitleDescription = "title_description"
	StageIcon             = "icon"
	StagePrompts          = "suggested_prompts"
	StageCommit           = "chatbot_id"
)

// FSM states and trigger for the stage sequence.
const (
	stateInit             = "init"
	stateTitleDescription = "title_description"
	stateIcon             = "icon"
	statePrompts          = "prompts"
	stateCommitted        = "committed"

	triggerAdvance = "advance"
)

// UsageCharger bills one completed stage.
type UsageCharger interface {
	Charge(ctx context.Context, userID, model string, qty int64) (decimal.Decimal, error)
	Credits(price decimal.Decimal) float64
}

// ChatbotCommitter persists the finished chatbot entity atomically.
type ChatbotCommitter interface {
	Commit(ctx context.Context, chatbot *chatbotmodels.Chatbot) error
}

// CreateMetrics receives the session observation; failures never affect the
// response.
type CreateMetrics interface {
	LogCreate(sample predictor.CreateSample)
}

// CreationService runs the chatbot-creation sequence: three generation
// stages, each independently billed and streamed as soon as it completes,
// then a single commit. A failure in any stage aborts the rest and commits
// nothing; earlier artifacts already streamed are previews only.
type CreationService struct {
	producer  ai.Producer
	ledger    UsageCharger
	committer ChatbotCommitter
	metrics   CreateMetrics
	log       *logger.Logger
}

func NewCreationService(
	producer ai.Producer,
	ledger UsageCharger,
	committer ChatbotCommitter,
	metrics CreateMetrics,
	log *logger.Logger,
) *CreationService {
	return &CreationService{
		producer:  producer,
		ledger:    ledger,
		committer: committer,
		metrics:   metrics,
		log:       log,
	}
}

// CreateRequest carries one creation session's inputs. ChatbotID is minted
// by the caller; retrying after an abort is a brand-new session with a new id.
type CreateRequest struct {
	ChatbotID string
	UserID    string
	Model     string
	Documents []ai.Document
}

// session accumulates artifacts across stages until the commit.
type session struct {
	svc *CreationService
	req CreateRequest
	out chan<- stream.Event

	title       string
	description string
	icon        []byte
	prompts     []string
}

// StreamCreate runs the full stage sequence, pushing artifacts and credit
// notices onto out in production order. Cancellation between stages leaves no
// persisted chatbot.
func (s *CreationService) StreamCreate(ctx context.Context, req CreateRequest, out chan<- stream.Event) error {
	start := time.Now()
	sess := &session{svc: s, req: req, out: out}

	sm := stateless.NewStateMachine(stateInit)
	sm.Configure(stateInit).
		Permit(triggerAdvance, stateTitleDescription)
	sm.Configure(stateTitleDescription).
		OnEntry(sess.runTitleDescription).
		Permit(triggerAdvance, stateIcon)
	sm.Configure(stateIcon).
		OnEntry(sess.runIcon).
		Permit(triggerAdvance, statePrompts)
	sm.Configure(statePrompts).
		OnEntry(sess.runPrompts).
		Permit(triggerAdvance, stateCommitted)
	sm.Configure(stateCommitted).
		OnEntry(sess.commit)

	for sm.MustState() != stateCommitted {
		if err := sm.FireCtx(ctx, triggerAdvance); err != nil {
			s.log.LogError(err, "creation session aborted",
				"chatbot_id", req.ChatbotID,
				"stage", sm.MustState(),
			)
			return err
		}
	}

	totalPages := 0
	for _, d := range req.Documents {
		totalPages += d.NbPages
	}
	s.metrics.LogCreate(predictor.CreateSample{
		Duration:    time.Since(start),
		NbDocuments: len(req.Documents),
		TotalPages:  totalPages,
		Model:       req.Model,
		ChatbotID:   req.ChatbotID,
	})
	return nil
}

// emitBilled streams the stage artifact, charges its usage and streams the
// credit notice. Commit is the only stage that skips billing.
func (sess *session) emitBilled(ctx context.Context, stage string, fields map[string]any, usage ai.Usage) error {
	if err := stream.Send(ctx, sess.out, stream.StageArtifact{Stage: stage, Fields: fields}); err != nil {
		return err
	}
	price, err := sess.svc.ledger.Charge(ctx, sess.req.UserID, sess.req.Model, int64(usage.Qty))
	if err != nil {
		return err
	}
	return stream.Send(ctx, sess.out, stream.CreditNotice{ConsumedCredits: sess.svc.ledger.Credits(price)})
}

func (sess *session) runTitleDescription(ctx context.Context, _ ...any) error {
	title, description, usage, err := sess.svc.producer.GenerateTitleDescription(ctx, sess.req.Documents, sess.req.Model)
	if err != nil {
		return errors.NewGenerationError("TITLE_DESCRIPTION_FAILED", err.Error())
	}
	sess.title = title
	sess.description = description
	return sess.emitBilled(ctx, StageTitleDescription, map[string]any{
		"title":       title,
		"description": description,
	}, usage)
}

func (sess *session) runIcon(ctx context.Context, _ ...any) error {
	icon, usage, err := sess.svc.producer.GenerateIcon(ctx, sess.description, sess.req.Model)
	if err != nil {
		return errors.NewGenerationError("ICON_FAILED", err.Error())
	}
	sess.icon = icon
	return sess.emitBilled(ctx, StageIcon, map[string]any{
		"icon": base64.StdEncoding.EncodeToString(icon),
	}, usage)
}

func (sess *session) runPrompts(ctx context.Context, _ ...any) error {
	prompts, usage, err := sess.svc.producer.SuggestPrompts(ctx, sess.req.Documents, sess.req.Model)
	if err != nil {
		return errors.NewGenerationError("PROMPTS_FAILED", err.Error())
	}
	sess.prompts = prompts
	return sess.emitBilled(ctx, StagePrompts, map[string]any{
		"suggested_prompts": prompts,
	}, usage)
}

// commit persists the chatbot entity; only the resulting chatbot_id artifact
// signals that the chatbot now exists. Not separately billed.
func (sess *session) commit(ctx context.Context, _ ...any) error {
	chatbot := &chatbotmodels.Chatbot{
		ID:          sess.req.ChatbotID,
		CreatedBy:   sess.req.UserID,
		Title:       sess.title,
		Description: sess.description,
		Icon:        sess.icon,
		Access:      chatbotmodels.AccessPrivate,
	}
	for _, d := range sess.req.Documents {
		chatbot.Documents = append(chatbot.Documents, chatbotmodels.Document{
			ChatbotID: sess.req.ChatbotID,
			Filename:  d.Filename,
			Bytes:     d.Bytes,
			NbPages:   d.NbPages,
			CreatedBy: sess.req.UserID,
		})
	}
	for i, p := range sess.prompts {
		chatbot.Prompts = append(chatbot.Prompts, chatbotmodels.SuggestedPrompt{
			ChatbotID: sess.req.ChatbotID,
			Position:  i,
			Prompt:    p,
		})
	}

	if err := sess.svc.committer.Commit(ctx, chatbot); err != nil {
		return err
	}
	return stream.Send(ctx, sess.out, stream.StageArtifact{
		Stage:  StageCommit,
		Fields: map[string]any{"chatbot_id": sess.req.ChatbotID},
	})
}
