package api

import (
	"net/http"

	"github.com/gin-gonic/gin"

	billingservice "github.com/AntoinePinto/docu-talk/billing/service"
	chatbotservice "github.com/AntoinePinto/docu-talk/chatbot/service"
	"github.com/AntoinePinto/docu-talk/conversation/service"
	"github.com/AntoinePinto/docu-talk/pkg/errors"
	"github.com/AntoinePinto/docu-talk/pkg/logger"
	"github.com/AntoinePinto/docu-talk/pkg/middleware"
	"github.com/AntoinePinto/docu-talk/pkg/stream"
	"github.com/AntoinePinto/docu-talk/predictor"
)

// ChatHandler exposes the conversation endpoints.
type ChatHandler struct {
	chats     *service.ChatService
	chatbots  *chatbotservice.ChatbotService
	ledger    *billingservice.Ledger
	predictor *predictor.Predictor
	logger    *logger.Logger
}

func NewChatHandler(
	chats *service.ChatService,
	chatbots *chatbotservice.ChatbotService,
	ledger *billingservice.Ledger,
	pred *predictor.Predictor,
	logger *logger.Logger,
) *ChatHandler {
	return &ChatHandler{
		chats:     chats,
		chatbots:  chatbots,
		ledger:    ledger,
		predictor: pred,
		logger:    logger,
	}
}

// gate verifies chatbot access and a positive credit balance before a metered
// session starts. Mid-session failures never reach here.
func (h *ChatHandler) gate(c *gin.Context, chatbotID, userID string) bool {
	ctx := c.Request.Context()
	if err := h.chatbots.CheckAccess(ctx, chatbotID, userID, false); err != nil {
		c.Error(err)
		return false
	}
	ok, err := h.ledger.HasCredits(ctx, userID)
	if err != nil {
		c.Error(err)
		return false
	}
	if !ok {
		c.Error(errors.NewForbiddenError("NOT_ENOUGH_CREDITS", "You don't have enough credits"))
		return false
	}
	return true
}

type askBody struct {
	Message string `json:"message" binding:"required"`
	Model   string `json:"model" binding:"required"`
}

// AskChatbot streams the assistant's answer for one turn. Fragments are
// written raw as they arrive, followed by a credits event once the turn is
// billed. Errors after the first byte terminate the stream without a status
// change.
func (h *ChatHandler) AskChatbot(c *gin.Context) {
	userID := middleware.UserEmail(c)
	chatbotID := c.Param("chatbot_id")
	conversationID := c.Param("conversation_id")

	var body askBody
	if err := c.ShouldBindJSON(&body); err != nil {
		c.Error(errors.NewBadRequestError("INVALID_REQUEST", err.Error()))
		return
	}

	if !h.gate(c, chatbotID, userID) {
		return
	}

	c.Header("Content-Type", "text/event-stream")
	c.Header("Cache-Control", "no-cache")
	c.Header("Connection", "keep-alive")
	c.Status(http.StatusOK)

	ctx := c.Request.Context()
	events := make(chan stream.Event, stream.DefaultBuffer)
	done := make(chan error, 1)
	go func() {
		defer close(events)
		done <- h.chats.StreamAsk(ctx, service.AskRequest{
			ChatbotID:      chatbotID,
			ConversationID: conversationID,
			Message:        body.Message,
			Model:          body.Model,
			UserID:         userID,
		}, events)
	}()

	if err := stream.Pipe(ctx, stream.NewEncoder(c.Writer), events); err != nil {
		h.logger.Warn("Ask stream closed early", "error", err.Error(), "conversation_id", conversationID)
	}
	if err := <-done; err != nil {
		h.logger.LogError(err, "Ask session failed", "conversation_id", conversationID)
	}
}

type sourcesBody struct {
	Model string `json:"model" binding:"required"`
}

// GetLastMessageSources returns the citations backing the last assistant
// answer as a rendered markdown block, billed like a regular turn.
func (h *ChatHandler) GetLastMessageSources(c *gin.Context) {
	userID := middleware.UserEmail(c)
	chatbotID := c.Param("chatbot_id")
	conversationID := c.Param("conversation_id")

	var body sourcesBody
	if err := c.ShouldBindJSON(&body); err != nil {
		c.Error(errors.NewBadRequestError("INVALID_REQUEST", err.Error()))
		return
	}

	if !h.gate(c, chatbotID, userID) {
		return
	}

	result, err := h.chats.LastMessageSources(c.Request.Context(), service.AskRequest{
		ChatbotID:      chatbotID,
		ConversationID: conversationID,
		Model:          body.Model,
		UserID:         userID,
	})
	if err != nil {
		c.Error(err)
		return
	}
	c.JSON(http.StatusOK, result)
}

// CreateConversation starts an empty conversation for the chatbot.
func (h *ChatHandler) CreateConversation(c *gin.Context) {
	userID := middleware.UserEmail(c)
	chatbotID := c.Param("chatbot_id")

	ctx := c.Request.Context()
	if err := h.chatbots.CheckAccess(ctx, chatbotID, userID, false); err != nil {
		c.Error(err)
		return
	}

	conversation, err := h.chats.CreateConversation(ctx, chatbotID, userID)
	if err != nil {
		c.Error(errors.NewPersistenceError("CONVERSATION_CREATE_FAILED", err.Error()))
		return
	}
	c.JSON(http.StatusCreated, gin.H{"conversation_id": conversation.ID})
}

// GetConversations lists the user's conversations for the chatbot, messages
// included.
func (h *ChatHandler) GetConversations(c *gin.Context) {
	userID := middleware.UserEmail(c)
	chatbotID := c.Param("chatbot_id")

	ctx := c.Request.Context()
	if err := h.chatbots.CheckAccess(ctx, chatbotID, userID, false); err != nil {
		c.Error(err)
		return
	}

	conversations, err := h.chats.GetConversations(ctx, chatbotID, userID)
	if err != nil {
		c.Error(errors.NewPersistenceError("CONVERSATIONS_FETCH_FAILED", err.Error()))
		return
	}
	c.JSON(http.StatusOK, gin.H{"conversations": conversations})
}

// GetAskEstimation predicts the duration of the next ask for the chatbot,
// from its document footprint and the rolling sample history.
func (h *ChatHandler) GetAskEstimation(c *gin.Context) {
	userID := middleware.UserEmail(c)
	chatbotID := c.Param("chatbot_id")
	model := c.DefaultQuery("model", "")

	ctx := c.Request.Context()
	if err := h.chatbots.CheckAccess(ctx, chatbotID, userID, false); err != nil {
		c.Error(err)
		return
	}

	chatbot, err := h.chatbots.Get(ctx, chatbotID)
	if err != nil {
		c.Error(errors.NewNotFoundError("CHATBOT_NOT_FOUND", "Chatbot not found"))
		return
	}
	totalPages := 0
	for _, d := range chatbot.Documents {
		totalPages += d.NbPages
	}

	seconds := h.predictor.Predict(ctx, predictor.MetricAskDuration, model, totalPages)
	c.JSON(http.StatusOK, gin.H{"estimated_duration": seconds})
}
