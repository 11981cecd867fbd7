package service

import (
	"context"
	"fmt"

	"github.com/AntoinePinto/docu-talk/ai"
	"github.com/AntoinePinto/docu-talk/chatbot/models"
	"github.com/AntoinePinto/docu-talk/chatbot/repository"
	"github.com/AntoinePinto/docu-talk/mailing"
	"github.com/AntoinePinto/docu-talk/pkg/cache"
	"github.com/AntoinePinto/docu-talk/pkg/errors"
	"github.com/AntoinePinto/docu-talk/pkg/logger"
)

// Limits enforced before a creation or add-document session starts.
type Limits struct {
	MaxDocsPerChatbot  int
	MaxPagesPerChatbot int
}

// ChatbotService manages chatbot entities, their documents and the access
// gate consulted before every session.
type ChatbotService struct {
	repo   repository.ChatbotRepository
	cache  *cache.Cache
	mailer mailing.Mailer
	limits Limits
	log    *logger.Logger
}

func NewChatbotService(repo repository.ChatbotRepository, c *cache.Cache, mailer mailing.Mailer, limits Limits, log *logger.Logger) *ChatbotService {
	return &ChatbotService{repo: repo, cache: c, mailer: mailer, limits: limits, log: log}
}

// CheckAccess verifies the user holds access to the chatbot, optionally
// requiring the admin role. Denial surfaces as an AccessDenied error before
// any streaming starts. Access maps are cached briefly; a share or delete
// invalidates the entry.
func (s *ChatbotService) CheckAccess(ctx context.Context, chatbotID, userID string, requireAdmin bool) error {
	accesses, err := s.userAccesses(ctx, userID)
	if err != nil {
		return err
	}

	role, ok := accesses[chatbotID]
	if !ok {
		return errors.NewAccessDeniedError("You don't have access to this chatbot")
	}
	if requireAdmin && role != models.RoleAdmin {
		return errors.NewAccessDeniedError("You don't have admin access to this chatbot")
	}
	return nil
}

func (s *ChatbotService) userAccesses(ctx context.Context, userID string) (map[string]string, error) {
	key := "accesses:" + userID
	if cached, ok := s.cache.Get(key); ok {
		if accesses, ok := cached.(map[string]string); ok {
			return accesses, nil
		}
	}

	accesses, err := s.repo.UserAccesses(ctx, userID)
	if err != nil {
		return nil, err
	}
	s.cache.Set(key, accesses)
	return accesses, nil
}

func (s *ChatbotService) invalidateAccesses(userID string) {
	s.cache.Delete("accesses:" + userID)
}

// Get returns the chatbot with documents, prompts and accesses loaded.
func (s *ChatbotService) Get(ctx context.Context, chatbotID string) (*models.Chatbot, error) {
	return s.repo.GetByID(ctx, chatbotID)
}

// ListForUser returns every chatbot the user can open.
func (s *ChatbotService) ListForUser(ctx context.Context, userID string) ([]models.Chatbot, error) {
	return s.repo.ListForUser(ctx, userID)
}

// GenerationDocuments loads the chatbot's document set in the form the
// answer producer consumes.
func (s *ChatbotService) GenerationDocuments(ctx context.Context, chatbotID string) ([]ai.Document, error) {
	docs, err := s.repo.Documents(ctx, chatbotID)
	if err != nil {
		return nil, err
	}
	out := make([]ai.Document, len(docs))
	for i, d := range docs {
		out[i] = ai.Document{
			Filename:  d.Filename,
			Bytes:     d.Bytes,
			NbPages:   d.NbPages,
			CreatedBy: d.CreatedBy,
			CreatedAt: d.CreatedAt,
		}
	}
	return out, nil
}

// Update changes title, description and optionally the icon.
func (s *ChatbotService) Update(ctx context.Context, chatbotID, title, description string, icon []byte) error {
	updates := map[string]any{
		"title":       title,
		"description": description,
	}
	if icon != nil {
		updates["icon"] = icon
	}
	return s.repo.Update(ctx, chatbotID, updates)
}

// Delete removes the chatbot and everything attached to it. Conversation
// transcripts are left in place; deleting them is an admin concern.
func (s *ChatbotService) Delete(ctx context.Context, chatbotID string) error {
	chatbot, err := s.repo.GetByID(ctx, chatbotID)
	if err != nil {
		return err
	}
	if err := s.repo.Delete(ctx, chatbotID); err != nil {
		return err
	}
	for _, a := range chatbot.Accesses {
		s.invalidateAccesses(a.UserID)
	}
	return nil
}

// Share grants userID a role on the chatbot and notifies them by mail.
// Mail failures are logged, never surfaced.
func (s *ChatbotService) Share(ctx context.Context, chatbotID, sharedBy, userID, role string) error {
	if role != models.RoleAdmin && role != models.RoleUser {
		return errors.NewBadRequestError("INVALID_ROLE", fmt.Sprintf("unknown role %q", role))
	}

	chatbot, err := s.repo.GetByID(ctx, chatbotID)
	if err != nil {
		return err
	}

	if err := s.repo.UpsertAccess(ctx, &models.ChatbotAccess{
		ChatbotID: chatbotID,
		UserID:    userID,
		Role:      role,
	}); err != nil {
		return err
	}
	s.invalidateAccesses(userID)

	if err := s.mailer.SendChatbotShared(userID, sharedBy, chatbot.Title); err != nil {
		s.log.Warn("share notification failed", "recipient", userID, "error", err.Error())
	}
	return nil
}

// RemoveAccess revokes userID's access to the chatbot.
func (s *ChatbotService) RemoveAccess(ctx context.Context, chatbotID, userID string) error {
	if err := s.repo.RemoveAccess(ctx, chatbotID, userID); err != nil {
		return err
	}
	s.invalidateAccesses(userID)
	return nil
}

// RequestPublicSharing flags the chatbot for operator review and notifies
// them by mail. The chatbot stays effectively private until an operator
// approves the request. Mail failures are logged, never surfaced.
func (s *ChatbotService) RequestPublicSharing(ctx context.Context, chatbotID, requestedBy string) error {
	chatbot, err := s.repo.GetByID(ctx, chatbotID)
	if err != nil {
		return err
	}

	if err := s.repo.Update(ctx, chatbotID, map[string]any{
		"access": models.AccessPendingPublicShare,
	}); err != nil {
		return err
	}

	if err := s.mailer.SendPublicSharingRequest(chatbotID, chatbot.Title, requestedBy); err != nil {
		s.log.Warn("public sharing notification failed", "chatbot_id", chatbotID, "error", err.Error())
	}
	return nil
}

// AddDocuments appends documents to an existing chatbot, enforcing the
// per-chatbot document and page caps before anything is written.
func (s *ChatbotService) AddDocuments(ctx context.Context, chatbotID, createdBy string, docs []models.Document) error {
	existing, err := s.repo.Documents(ctx, chatbotID)
	if err != nil {
		return err
	}

	if len(existing)+len(docs) > s.limits.MaxDocsPerChatbot {
		return errors.NewBadRequestError("MAX_DOCUMENTS_REACHED", "You have reached the maximum number of documents per chatbot")
	}

	totalPages := 0
	for _, d := range existing {
		totalPages += d.NbPages
	}
	for _, d := range docs {
		totalPages += d.NbPages
	}
	if totalPages > s.limits.MaxPagesPerChatbot {
		return errors.NewBadRequestError("MAX_PAGES_REACHED", "You have reached the maximum number of pages per chatbot")
	}

	for i := range docs {
		docs[i].ChatbotID = chatbotID
		docs[i].CreatedBy = createdBy
		if err := s.repo.AddDocument(ctx, &docs[i]); err != nil {
			return err
		}
	}
	return nil
}

// RemoveDocument deletes one document by filename.
func (s *ChatbotService) RemoveDocument(ctx context.Context, chatbotID, filename string) error {
	return s.repo.RemoveDocument(ctx, chatbotID, filename)
}

// Commit persists a fully generated chatbot, its assets and the creator's
// admin access atomically. Called once, by the final creation stage.
func (s *ChatbotService) Commit(ctx context.Context, chatbot *models.Chatbot) error {
	chatbot.Accesses = append(chatbot.Accesses, models.ChatbotAccess{
		ChatbotID: chatbot.ID,
		UserID:    chatbot.CreatedBy,
		Role:      models.RoleAdmin,
	})
	if err := s.repo.CreateWithAssets(ctx, chatbot); err != nil {
		return errors.NewPersistenceError("CHATBOT_COMMIT_FAILED", err.Error())
	}
	s.invalidateAccesses(chatbot.CreatedBy)
	return nil
}
