package service

import (
	"context"
	"testing"
	"time"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/AntoinePinto/docu-talk/pkg/jwt"
	"github.com/AntoinePinto/docu-talk/pkg/logger"
	"github.com/AntoinePinto/docu-talk/user/models"
	"github.com/AntoinePinto/docu-talk/user/repository"
)

type fakeUserRepo struct {
	users map[string]*models.User
}

func newFakeUserRepo() *fakeUserRepo {
	return &fakeUserRepo{users: make(map[string]*models.User)}
}

func (f *fakeUserRepo) Create(_ context.Context, user *models.User) error {
	f.users[user.Email] = user
	return nil
}

func (f *fakeUserRepo) GetByEmail(_ context.Context, email string) (*models.User, error) {
	user, ok := f.users[email]
	if !ok {
		return nil, repository.ErrUserNotFound
	}
	return user, nil
}

func (f *fakeUserRepo) SetTermsDisplayed(_ context.Context, email string) error {
	user, ok := f.users[email]
	if !ok {
		return repository.ErrUserNotFound
	}
	user.TermsOfUseDisplayed = true
	return nil
}

func (f *fakeUserRepo) Delete(_ context.Context, email string) error {
	if _, ok := f.users[email]; !ok {
		return repository.ErrUserNotFound
	}
	delete(f.users, email)
	return nil
}

type fakeAccounts struct {
	provisioned map[string]decimal.Decimal
}

func newFakeAccounts() *fakeAccounts {
	return &fakeAccounts{provisioned: make(map[string]decimal.Decimal)}
}

func (f *fakeAccounts) EnsureAccount(_ context.Context, userID string, allowance decimal.Decimal) error {
	f.provisioned[userID] = allowance
	return nil
}

type noopMailer struct{}

func (noopMailer) SendChatbotShared(recipient, sharedBy, chatbotName string) error { return nil }
func (noopMailer) SendWelcome(recipient, friendlyName string) error                { return nil }
func (noopMailer) SendPublicSharingRequest(chatbotID, chatbotName, requestedBy string) error {
	return nil
}

func newTestUserService(repo *fakeUserRepo, accounts *fakeAccounts) *UserService {
	return NewUserService(
		repo,
		accounts,
		jwt.NewService("test-secret", time.Hour),
		noopMailer{},
		Allowances{
			User:  decimal.NewFromInt(5),
			Guest: decimal.NewFromInt(1),
		},
		logger.New(logger.Config{Level: "error"}),
	)
}

func signUpRequest() *models.SignUpRequest {
	return &models.SignUpRequest{
		Email:     "alice@example.com",
		FirstName: "Alice",
		LastName:  "Martin",
		Password:  "correct horse battery",
	}
}

func TestSignUpProvisionsAccount(t *testing.T) {
	repo := newFakeUserRepo()
	accounts := newFakeAccounts()
	svc := newTestUserService(repo, accounts)

	user, err := svc.SignUp(context.Background(), signUpRequest())
	require.NoError(t, err)

	assert.NotEmpty(t, user.ID)
	assert.Equal(t, "alice@example.com", user.Email)
	assert.NotEmpty(t, user.PasswordHash)
	assert.NotEqual(t, "correct horse battery", user.PasswordHash)

	allowance, ok := accounts.provisioned["alice@example.com"]
	require.True(t, ok)
	assert.True(t, allowance.Equal(decimal.NewFromInt(5)))
}

func TestSignUpDuplicateEmail(t *testing.T) {
	svc := newTestUserService(newFakeUserRepo(), newFakeAccounts())

	_, err := svc.SignUp(context.Background(), signUpRequest())
	require.NoError(t, err)

	_, err = svc.SignUp(context.Background(), signUpRequest())
	assert.ErrorIs(t, err, ErrUserAlreadyExists)
}

func TestAuthenticateIssuesValidToken(t *testing.T) {
	svc := newTestUserService(newFakeUserRepo(), newFakeAccounts())
	_, err := svc.SignUp(context.Background(), signUpRequest())
	require.NoError(t, err)

	token, err := svc.Authenticate(context.Background(), "alice@example.com", "correct horse battery")
	require.NoError(t, err)

	claims, err := jwt.NewService("test-secret", time.Hour).ValidateToken(token)
	require.NoError(t, err)
	assert.Equal(t, "alice@example.com", claims.Email)
}

func TestAuthenticateWrongPassword(t *testing.T) {
	svc := newTestUserService(newFakeUserRepo(), newFakeAccounts())
	_, err := svc.SignUp(context.Background(), signUpRequest())
	require.NoError(t, err)

	_, err = svc.Authenticate(context.Background(), "alice@example.com", "wrong")
	require.Error(t, err)
	assert.Contains(t, err.Error(), "INVALID_CREDENTIALS")
}

func TestAuthenticateUnknownUser(t *testing.T) {
	svc := newTestUserService(newFakeUserRepo(), newFakeAccounts())

	_, err := svc.Authenticate(context.Background(), "nobody@example.com", "whatever")
	require.Error(t, err)
	assert.Contains(t, err.Error(), "INVALID_CREDENTIALS")
}

func TestStartGuestSession(t *testing.T) {
	repo := newFakeUserRepo()
	accounts := newFakeAccounts()
	svc := newTestUserService(repo, accounts)

	user, token, err := svc.StartGuestSession(context.Background())
	require.NoError(t, err)

	assert.True(t, user.IsGuest)
	assert.Contains(t, user.Email, "guest-")
	assert.NotEmpty(t, token)

	// Guests get the smaller allowance
	allowance, ok := accounts.provisioned[user.Email]
	require.True(t, ok)
	assert.True(t, allowance.Equal(decimal.NewFromInt(1)))
}

func TestDeleteAccountRemovesUser(t *testing.T) {
	repo := newFakeUserRepo()
	svc := newTestUserService(repo, newFakeAccounts())
	_, err := svc.SignUp(context.Background(), signUpRequest())
	require.NoError(t, err)

	require.NoError(t, svc.DeleteAccount(context.Background(), "alice@example.com"))

	_, err = svc.Get(context.Background(), "alice@example.com")
	assert.ErrorIs(t, err, repository.ErrUserNotFound)
}

func TestDeleteAccountUnknownUser(t *testing.T) {
	svc := newTestUserService(newFakeUserRepo(), newFakeAccounts())

	err := svc.DeleteAccount(context.Background(), "nobody@example.com")
	assert.ErrorIs(t, err, repository.ErrUserNotFound)
}

func TestAcknowledgeTerms(t *testing.T) {
	repo := newFakeUserRepo()
	svc := newTestUserService(repo, newFakeAccounts())
	_, err := svc.SignUp(context.Background(), signUpRequest())
	require.NoError(t, err)

	require.NoError(t, svc.AcknowledgeTerms(context.Background(), "alice@example.com"))

	user, err := svc.Get(context.Background(), "alice@example.com")
	require.NoError(t, err)
	assert.True(t, user.TermsOfUseDisplayed)
}
