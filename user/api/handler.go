package api

import (
	"net/http"

	"github.com/gin-gonic/gin"

	billingservice "github.com/AntoinePinto/docu-talk/billing/service"
	"github.com/AntoinePinto/docu-talk/pkg/errors"
	"github.com/AntoinePinto/docu-talk/pkg/logger"
	"github.com/AntoinePinto/docu-talk/pkg/middleware"
	"github.com/AntoinePinto/docu-talk/user/models"
	"github.com/AntoinePinto/docu-talk/user/service"
)

// UserHandler exposes registration, login and account endpoints.
type UserHandler struct {
	service *service.UserService
	ledger  *billingservice.Ledger
	logger  *logger.Logger
}

func NewUserHandler(svc *service.UserService, ledger *billingservice.Ledger, logger *logger.Logger) *UserHandler {
	return &UserHandler{service: svc, ledger: ledger, logger: logger}
}

// SignUp registers a new user and provisions their credit account.
func (h *UserHandler) SignUp(c *gin.Context) {
	var req models.SignUpRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.Error(errors.NewBadRequestError("INVALID_REQUEST", err.Error()))
		return
	}

	user, err := h.service.SignUp(c.Request.Context(), &req)
	if err != nil {
		c.Error(err)
		return
	}
	c.JSON(http.StatusCreated, user)
}

type tokenBody struct {
	Email    string `json:"email" binding:"required,email"`
	Password string `json:"password" binding:"required"`
}

// Token authenticates a user and issues a JWT.
func (h *UserHandler) Token(c *gin.Context) {
	var body tokenBody
	if err := c.ShouldBindJSON(&body); err != nil {
		c.Error(errors.NewBadRequestError("INVALID_REQUEST", err.Error()))
		return
	}

	token, err := h.service.Authenticate(c.Request.Context(), body.Email, body.Password)
	if err != nil {
		c.Error(err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"access_token": token, "token_type": "bearer"})
}

// GuestSession creates a throwaway guest account with its own allowance and
// returns a token for it.
func (h *UserHandler) GuestSession(c *gin.Context) {
	user, token, err := h.service.StartGuestSession(c.Request.Context())
	if err != nil {
		c.Error(err)
		return
	}
	c.JSON(http.StatusCreated, gin.H{
		"user":         user,
		"access_token": token,
		"token_type":   "bearer",
	})
}

// Me returns the authenticated user's profile together with the remaining
// and consumed credit figures.
func (h *UserHandler) Me(c *gin.Context) {
	email := middleware.UserEmail(c)

	ctx := c.Request.Context()
	user, err := h.service.Get(ctx, email)
	if err != nil {
		c.Error(errors.NewNotFoundError("USER_NOT_FOUND", "User not found"))
		return
	}

	credits, err := h.ledger.RemainingCredits(ctx, email)
	if err != nil {
		c.Error(err)
		return
	}
	consumed, err := h.ledger.ConsumedCredits(ctx, email)
	if err != nil {
		c.Error(err)
		return
	}
	c.JSON(http.StatusOK, gin.H{
		"user":              user,
		"remaining_credits": credits,
		"consumed_credits":  consumed,
	})
}

// DeleteAccount removes the authenticated user's account. The token stays
// formally valid until it expires but no longer resolves to a user.
func (h *UserHandler) DeleteAccount(c *gin.Context) {
	email := middleware.UserEmail(c)

	if err := h.service.DeleteAccount(c.Request.Context(), email); err != nil {
		c.Error(errors.NewPersistenceError("ACCOUNT_DELETE_FAILED", err.Error()))
		return
	}
	c.JSON(http.StatusOK, gin.H{"message": "Account deletion initiated"})
}

// AcknowledgeTerms records that the user saw the terms of use.
func (h *UserHandler) AcknowledgeTerms(c *gin.Context) {
	email := middleware.UserEmail(c)

	if err := h.service.AcknowledgeTerms(c.Request.Context(), email); err != nil {
		c.Error(errors.NewPersistenceError("TERMS_UPDATE_FAILED", err.Error()))
		return
	}
	c.JSON(http.StatusOK, gin.H{"status": "acknowledged"})
}
