package service

import (
	"context"
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/AntoinePinto/docu-talk/chatbot/models"
	"github.com/AntoinePinto/docu-talk/chatbot/repository"
	"github.com/AntoinePinto/docu-talk/pkg/cache"
	pkgerrors "github.com/AntoinePinto/docu-talk/pkg/errors"
	"github.com/AntoinePinto/docu-talk/pkg/logger"
)

type fakeChatbotRepo struct {
	chatbots  map[string]*models.Chatbot
	accesses  map[string]map[string]string // userID -> chatbotID -> role
	documents map[string][]models.Document

	accessCalls int
}

func newFakeChatbotRepo() *fakeChatbotRepo {
	return &fakeChatbotRepo{
		chatbots:  make(map[string]*models.Chatbot),
		accesses:  make(map[string]map[string]string),
		documents: make(map[string][]models.Document),
	}
}

func (f *fakeChatbotRepo) grant(userID, chatbotID, role string) {
	if f.accesses[userID] == nil {
		f.accesses[userID] = make(map[string]string)
	}
	f.accesses[userID][chatbotID] = role
}

func (f *fakeChatbotRepo) CreateWithAssets(_ context.Context, chatbot *models.Chatbot) error {
	f.chatbots[chatbot.ID] = chatbot
	f.documents[chatbot.ID] = chatbot.Documents
	for _, a := range chatbot.Accesses {
		f.grant(a.UserID, a.ChatbotID, a.Role)
	}
	return nil
}

func (f *fakeChatbotRepo) GetByID(_ context.Context, id string) (*models.Chatbot, error) {
	chatbot, ok := f.chatbots[id]
	if !ok {
		return nil, errors.New("chatbot not found")
	}
	return chatbot, nil
}

func (f *fakeChatbotRepo) ListForUser(_ context.Context, userID string) ([]models.Chatbot, error) {
	var out []models.Chatbot
	for id := range f.accesses[userID] {
		if chatbot, ok := f.chatbots[id]; ok {
			out = append(out, *chatbot)
		}
	}
	return out, nil
}

func (f *fakeChatbotRepo) UserAccesses(_ context.Context, userID string) (map[string]string, error) {
	f.accessCalls++
	out := make(map[string]string, len(f.accesses[userID]))
	for id, role := range f.accesses[userID] {
		out[id] = role
	}
	return out, nil
}

func (f *fakeChatbotRepo) Update(_ context.Context, id string, updates map[string]any) error {
	chatbot, ok := f.chatbots[id]
	if !ok {
		return errors.New("chatbot not found")
	}
	if title, ok := updates["title"].(string); ok {
		chatbot.Title = title
	}
	if description, ok := updates["description"].(string); ok {
		chatbot.Description = description
	}
	if icon, ok := updates["icon"].([]byte); ok {
		chatbot.Icon = icon
	}
	if access, ok := updates["access"].(string); ok {
		chatbot.Access = access
	}
	return nil
}

func (f *fakeChatbotRepo) Delete(_ context.Context, id string) error {
	delete(f.chatbots, id)
	delete(f.documents, id)
	for _, byChatbot := range f.accesses {
		delete(byChatbot, id)
	}
	return nil
}

func (f *fakeChatbotRepo) UpsertAccess(_ context.Context, access *models.ChatbotAccess) error {
	f.grant(access.UserID, access.ChatbotID, access.Role)
	return nil
}

func (f *fakeChatbotRepo) RemoveAccess(_ context.Context, chatbotID, userID string) error {
	if _, ok := f.accesses[userID][chatbotID]; !ok {
		return repository.ErrAccessNotFound
	}
	delete(f.accesses[userID], chatbotID)
	return nil
}

func (f *fakeChatbotRepo) Documents(_ context.Context, chatbotID string) ([]models.Document, error) {
	return f.documents[chatbotID], nil
}

func (f *fakeChatbotRepo) AddDocument(_ context.Context, doc *models.Document) error {
	f.documents[doc.ChatbotID] = append(f.documents[doc.ChatbotID], *doc)
	return nil
}

func (f *fakeChatbotRepo) RemoveDocument(_ context.Context, chatbotID, filename string) error {
	docs := f.documents[chatbotID]
	out := docs[:0]
	for _, d := range docs {
		if d.Filename != filename {
			out = append(out, d)
		}
	}
	f.documents[chatbotID] = out
	return nil
}

type recordingMailer struct {
	shared          []string
	sharingRequests []string
	failure         error
}

func (m *recordingMailer) SendChatbotShared(recipient, sharedBy, title string) error {
	if m.failure != nil {
		return m.failure
	}
	m.shared = append(m.shared, recipient)
	return nil
}

func (m *recordingMailer) SendWelcome(recipient, name string) error { return nil }

func (m *recordingMailer) SendPublicSharingRequest(chatbotID, title, requestedBy string) error {
	if m.failure != nil {
		return m.failure
	}
	m.sharingRequests = append(m.sharingRequests, chatbotID)
	return nil
}

func newTestService(repo *fakeChatbotRepo, mailer *recordingMailer) *ChatbotService {
	return NewChatbotService(repo, cache.NewCache(), mailer, Limits{
		MaxDocsPerChatbot:  3,
		MaxPagesPerChatbot: 20,
	}, logger.New(logger.Config{Level: "error"}))
}

func TestCheckAccessDeniedWithoutGrant(t *testing.T) {
	svc := newTestService(newFakeChatbotRepo(), &recordingMailer{})

	err := svc.CheckAccess(context.Background(), "cb1", "alice@example.com", false)
	require.Error(t, err)
	assert.Equal(t, pkgerrors.KindAccessDenied, pkgerrors.KindOf(err))
	assert.Contains(t, err.Error(), "You don't have access to this chatbot")
}

func TestCheckAccessAdminRequired(t *testing.T) {
	repo := newFakeChatbotRepo()
	repo.grant("alice@example.com", "cb1", models.RoleUser)
	svc := newTestService(repo, &recordingMailer{})

	require.NoError(t, svc.CheckAccess(context.Background(), "cb1", "alice@example.com", false))

	err := svc.CheckAccess(context.Background(), "cb1", "alice@example.com", true)
	require.Error(t, err)
	assert.Contains(t, err.Error(), "You don't have admin access to this chatbot")
}

func TestCheckAccessUsesCache(t *testing.T) {
	repo := newFakeChatbotRepo()
	repo.grant("alice@example.com", "cb1", models.RoleAdmin)
	svc := newTestService(repo, &recordingMailer{})

	require.NoError(t, svc.CheckAccess(context.Background(), "cb1", "alice@example.com", true))
	require.NoError(t, svc.CheckAccess(context.Background(), "cb1", "alice@example.com", true))

	assert.Equal(t, 1, repo.accessCalls)
}

func TestShareGrantsAccessAndNotifies(t *testing.T) {
	repo := newFakeChatbotRepo()
	repo.chatbots["cb1"] = &models.Chatbot{ID: "cb1", Title: "Contracts"}
	repo.grant("alice@example.com", "cb1", models.RoleAdmin)
	mailer := &recordingMailer{}
	svc := newTestService(repo, mailer)

	require.NoError(t, svc.Share(context.Background(), "cb1", "alice@example.com", "bob@example.com", models.RoleUser))

	require.NoError(t, svc.CheckAccess(context.Background(), "cb1", "bob@example.com", false))
	assert.Equal(t, []string{"bob@example.com"}, mailer.shared)
}

func TestShareRejectsUnknownRole(t *testing.T) {
	svc := newTestService(newFakeChatbotRepo(), &recordingMailer{})

	err := svc.Share(context.Background(), "cb1", "alice@example.com", "bob@example.com", "Owner")
	require.Error(t, err)

	var appErr *pkgerrors.AppError
	require.True(t, errors.As(err, &appErr))
	assert.Equal(t, "INVALID_ROLE", appErr.Code)
}

func TestShareMailFailureIsSwallowed(t *testing.T) {
	repo := newFakeChatbotRepo()
	repo.chatbots["cb1"] = &models.Chatbot{ID: "cb1", Title: "Contracts"}
	mailer := &recordingMailer{failure: errors.New("smtp unreachable")}
	svc := newTestService(repo, mailer)

	err := svc.Share(context.Background(), "cb1", "alice@example.com", "bob@example.com", models.RoleUser)
	assert.NoError(t, err)
}

func TestShareInvalidatesCachedAccesses(t *testing.T) {
	repo := newFakeChatbotRepo()
	repo.chatbots["cb1"] = &models.Chatbot{ID: "cb1"}
	svc := newTestService(repo, &recordingMailer{})

	// Prime bob's empty access map in the cache
	err := svc.CheckAccess(context.Background(), "cb1", "bob@example.com", false)
	require.Error(t, err)

	require.NoError(t, svc.Share(context.Background(), "cb1", "alice@example.com", "bob@example.com", models.RoleUser))

	assert.NoError(t, svc.CheckAccess(context.Background(), "cb1", "bob@example.com", false))
}

func TestRemoveAccessRevokesGrant(t *testing.T) {
	repo := newFakeChatbotRepo()
	repo.grant("bob@example.com", "cb1", models.RoleUser)
	svc := newTestService(repo, &recordingMailer{})

	// Prime bob's access map in the cache before revoking
	require.NoError(t, svc.CheckAccess(context.Background(), "cb1", "bob@example.com", false))

	require.NoError(t, svc.RemoveAccess(context.Background(), "cb1", "bob@example.com"))

	err := svc.CheckAccess(context.Background(), "cb1", "bob@example.com", false)
	require.Error(t, err)
	assert.Equal(t, pkgerrors.KindAccessDenied, pkgerrors.KindOf(err))
}

func TestRemoveAccessUnknownGrant(t *testing.T) {
	svc := newTestService(newFakeChatbotRepo(), &recordingMailer{})

	err := svc.RemoveAccess(context.Background(), "cb1", "bob@example.com")
	assert.ErrorIs(t, err, repository.ErrAccessNotFound)
}

func TestRequestPublicSharingFlagsChatbotAndNotifies(t *testing.T) {
	repo := newFakeChatbotRepo()
	repo.chatbots["cb1"] = &models.Chatbot{ID: "cb1", Title: "Contracts", Access: models.AccessPrivate}
	mailer := &recordingMailer{}
	svc := newTestService(repo, mailer)

	require.NoError(t, svc.RequestPublicSharing(context.Background(), "cb1", "alice@example.com"))

	assert.Equal(t, models.AccessPendingPublicShare, repo.chatbots["cb1"].Access)
	assert.Equal(t, []string{"cb1"}, mailer.sharingRequests)
}

func TestRequestPublicSharingUnknownChatbot(t *testing.T) {
	mailer := &recordingMailer{}
	svc := newTestService(newFakeChatbotRepo(), mailer)

	err := svc.RequestPublicSharing(context.Background(), "cb1", "alice@example.com")
	require.Error(t, err)
	assert.Empty(t, mailer.sharingRequests)
}

func TestRequestPublicSharingMailFailureIsSwallowed(t *testing.T) {
	repo := newFakeChatbotRepo()
	repo.chatbots["cb1"] = &models.Chatbot{ID: "cb1", Title: "Contracts", Access: models.AccessPrivate}
	mailer := &recordingMailer{failure: errors.New("smtp unreachable")}
	svc := newTestService(repo, mailer)

	err := svc.RequestPublicSharing(context.Background(), "cb1", "alice@example.com")
	assert.NoError(t, err)
	assert.Equal(t, models.AccessPendingPublicShare, repo.chatbots["cb1"].Access)
}

func TestAddDocumentsEnforcesDocumentCap(t *testing.T) {
	repo := newFakeChatbotRepo()
	repo.documents["cb1"] = []models.Document{
		{Filename: "a.pdf", NbPages: 1},
		{Filename: "b.pdf", NbPages: 1},
	}
	svc := newTestService(repo, &recordingMailer{})

	err := svc.AddDocuments(context.Background(), "cb1", "alice@example.com", []models.Document{
		{Filename: "c.pdf", NbPages: 1},
		{Filename: "d.pdf", NbPages: 1},
	})
	require.Error(t, err)

	var appErr *pkgerrors.AppError
	require.True(t, errors.As(err, &appErr))
	assert.Equal(t, "MAX_DOCUMENTS_REACHED", appErr.Code)
	assert.Len(t, repo.documents["cb1"], 2)
}

func TestAddDocumentsEnforcesPageCap(t *testing.T) {
	repo := newFakeChatbotRepo()
	repo.documents["cb1"] = []models.Document{{Filename: "a.pdf", NbPages: 15}}
	svc := newTestService(repo, &recordingMailer{})

	err := svc.AddDocuments(context.Background(), "cb1", "alice@example.com", []models.Document{
		{Filename: "b.pdf", NbPages: 10},
	})
	require.Error(t, err)

	var appErr *pkgerrors.AppError
	require.True(t, errors.As(err, &appErr))
	assert.Equal(t, "MAX_PAGES_REACHED", appErr.Code)
}

func TestAddDocumentsWithinLimits(t *testing.T) {
	repo := newFakeChatbotRepo()
	svc := newTestService(repo, &recordingMailer{})

	err := svc.AddDocuments(context.Background(), "cb1", "alice@example.com", []models.Document{
		{Filename: "a.pdf", NbPages: 5},
	})
	require.NoError(t, err)

	docs := repo.documents["cb1"]
	require.Len(t, docs, 1)
	assert.Equal(t, "cb1", docs[0].ChatbotID)
	assert.Equal(t, "alice@example.com", docs[0].CreatedBy)
}

func TestCommitAddsCreatorAdminAccess(t *testing.T) {
	repo := newFakeChatbotRepo()
	svc := newTestService(repo, &recordingMailer{})

	err := svc.Commit(context.Background(), &models.Chatbot{
		ID:        "cb1",
		CreatedBy: "alice@example.com",
		Title:     "Contracts",
		Access:    models.AccessPrivate,
	})
	require.NoError(t, err)

	assert.NoError(t, svc.CheckAccess(context.Background(), "cb1", "alice@example.com", true))
}

func TestGenerationDocumentsMapping(t *testing.T) {
	repo := newFakeChatbotRepo()
	repo.documents["cb1"] = []models.Document{
		{Filename: "a.pdf", Bytes: []byte("%PDF-"), NbPages: 4, CreatedBy: "alice@example.com"},
	}
	svc := newTestService(repo, &recordingMailer{})

	docs, err := svc.GenerationDocuments(context.Background(), "cb1")
	require.NoError(t, err)
	require.Len(t, docs, 1)
	assert.Equal(t, "a.pdf", docs[0].Filename)
	assert.Equal(t, 4, docs[0].NbPages)
}
