package service

import (
	"context"
	"errors"
	"fmt"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"

	"github.com/AntoinePinto/docu-talk/mailing"
	pkgerrors "github.com/AntoinePinto/docu-talk/pkg/errors"
	"github.com/AntoinePinto/docu-talk/pkg/jwt"
	"github.com/AntoinePinto/docu-talk/pkg/logger"
	"github.com/AntoinePinto/docu-talk/user/models"
	"github.com/AntoinePinto/docu-talk/user/repository"
)

var ErrUserAlreadyExists = errors.New("user already exists")

// AccountProvisioner creates the credit account funding a new user's period
// allowance.
type AccountProvisioner interface {
	EnsureAccount(ctx context.Context, userID string, allowance decimal.Decimal) error
}

// Allowances are the period dollar amounts granted on account creation.
type Allowances struct {
	User  decimal.Decimal
	Guest decimal.Decimal
}

type UserService struct {
	repo       repository.UserRepository
	accounts   AccountProvisioner
	jwtService *jwt.Service
	mailer     mailing.Mailer
	allowances Allowances
	log        *logger.Logger
}

func NewUserService(
	repo repository.UserRepository,
	accounts AccountProvisioner,
	jwtService *jwt.Service,
	mailer mailing.Mailer,
	allowances Allowances,
	log *logger.Logger,
) *UserService {
	return &UserService{
		repo:       repo,
		accounts:   accounts,
		jwtService: jwtService,
		mailer:     mailer,
		allowances: allowances,
		log:        log,
	}
}

// SignUp registers a user, provisions their credit account and sends a
// welcome mail. Mail failures are logged only.
func (s *UserService) SignUp(ctx context.Context, req *models.SignUpRequest) (*models.User, error) {
	if _, err := s.repo.GetByEmail(ctx, req.Email); err == nil {
		return nil, ErrUserAlreadyExists
	} else if !errors.Is(err, repository.ErrUserNotFound) {
		return nil, err
	}

	user := &models.User{
		ID:        uuid.New().String(),
		Email:     req.Email,
		FirstName: req.FirstName,
		LastName:  req.LastName,
	}
	if err := user.SetPassword(req.Password); err != nil {
		return nil, err
	}
	if err := s.repo.Create(ctx, user); err != nil {
		return nil, err
	}
	if err := s.accounts.EnsureAccount(ctx, user.Email, s.allowances.User); err != nil {
		return nil, err
	}

	if err := s.mailer.SendWelcome(user.Email, user.FriendlyName()); err != nil {
		s.log.Warn("welcome mail failed", "recipient", user.Email, "error", err.Error())
	}
	return user, nil
}

// Authenticate checks credentials and issues a JWT.
func (s *UserService) Authenticate(ctx context.Context, email, password string) (string, error) {
	user, err := s.repo.GetByEmail(ctx, email)
	if err != nil {
		return "", pkgerrors.NewUnauthorizedError("INVALID_CREDENTIALS", "Incorrect email or password")
	}
	if !user.CheckPassword(password) {
		return "", pkgerrors.NewUnauthorizedError("INVALID_CREDENTIALS", "Incorrect email or password")
	}
	return s.jwtService.GenerateToken(user.Email)
}

// StartGuestSession creates a throwaway guest account with its own smaller
// period allowance and returns a token for it.
func (s *UserService) StartGuestSession(ctx context.Context) (*models.User, string, error) {
	id := uuid.New().String()
	user := &models.User{
		ID:        id,
		Email:     fmt.Sprintf("guest-%s@docu-talk.local", id[:8]),
		FirstName: "Guest",
		IsGuest:   true,
	}
	if err := user.SetPassword(uuid.New().String()); err != nil {
		return nil, "", err
	}
	if err := s.repo.Create(ctx, user); err != nil {
		return nil, "", err
	}
	if err := s.accounts.EnsureAccount(ctx, user.Email, s.allowances.Guest); err != nil {
		return nil, "", err
	}

	token, err := s.jwtService.GenerateToken(user.Email)
	if err != nil {
		return nil, "", err
	}
	return user, token, nil
}

// Get returns the user's profile.
func (s *UserService) Get(ctx context.Context, email string) (*models.User, error) {
	return s.repo.GetByEmail(ctx, email)
}

// AcknowledgeTerms marks the terms-of-use banner as shown.
func (s *UserService) AcknowledgeTerms(ctx context.Context, email string) error {
	return s.repo.SetTermsDisplayed(ctx, email)
}

// DeleteAccount removes the user record. Chatbots the user shared in stay in
// place; their remaining admins keep managing them.
func (s *UserService) DeleteAccount(ctx context.Context, email string) error {
	if err := s.repo.Delete(ctx, email); err != nil {
		return err
	}
	s.log.Info("account deleted", "user", email)
	return nil
}
