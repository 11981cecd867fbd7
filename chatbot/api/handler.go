package api

import (
	"encoding/base64"
	"fmt"
	"io"
	"mime/multipart"
	"net/http"

	"github.com/gin-gonic/gin"

	"github.com/AntoinePinto/docu-talk/chatbot/models"
	"github.com/AntoinePinto/docu-talk/chatbot/service"
	"github.com/AntoinePinto/docu-talk/pkg/errors"
	"github.com/AntoinePinto/docu-talk/pkg/logger"
	"github.com/AntoinePinto/docu-talk/pkg/middleware"
	"github.com/AntoinePinto/docu-talk/pkg/pdf"
)

// ChatbotHandler exposes the chatbot management endpoints.
type ChatbotHandler struct {
	service     *service.ChatbotService
	maxIconSize int64
	logger      *logger.Logger
}

func NewChatbotHandler(svc *service.ChatbotService, maxIconSize int64, logger *logger.Logger) *ChatbotHandler {
	return &ChatbotHandler{service: svc, maxIconSize: maxIconSize, logger: logger}
}

// chatbotView is the API shape of a chatbot; the icon travels base64-encoded.
type chatbotView struct {
	ID          string                   `json:"chatbot_id"`
	Title       string                   `json:"title"`
	Description string                   `json:"description"`
	Icon        string                   `json:"icon,omitempty"`
	Access      string                   `json:"access"`
	CreatedBy   string                   `json:"created_by"`
	Documents   []documentView           `json:"documents"`
	Prompts     []string                 `json:"suggested_prompts"`
	Accesses    []models.ChatbotAccess   `json:"accesses,omitempty"`
}

type documentView struct {
	Filename string `json:"filename"`
	NbPages  int    `json:"nb_pages"`
}

func toView(chatbot *models.Chatbot, includeAccesses bool) chatbotView {
	view := chatbotView{
		ID:          chatbot.ID,
		Title:       chatbot.Title,
		Description: chatbot.Description,
		Access:      chatbot.Access,
		CreatedBy:   chatbot.CreatedBy,
		Documents:   make([]documentView, len(chatbot.Documents)),
		Prompts:     make([]string, len(chatbot.Prompts)),
	}
	if len(chatbot.Icon) > 0 {
		view.Icon = base64.StdEncoding.EncodeToString(chatbot.Icon)
	}
	for i, d := range chatbot.Documents {
		view.Documents[i] = documentView{Filename: d.Filename, NbPages: d.NbPages}
	}
	for i, p := range chatbot.Prompts {
		view.Prompts[i] = p.Prompt
	}
	if includeAccesses {
		view.Accesses = chatbot.Accesses
	}
	return view
}

// GetMyChatbots lists every chatbot the user holds access to.
func (h *ChatbotHandler) GetMyChatbots(c *gin.Context) {
	userID := middleware.UserEmail(c)

	chatbots, err := h.service.ListForUser(c.Request.Context(), userID)
	if err != nil {
		c.Error(errors.NewPersistenceError("CHATBOTS_FETCH_FAILED", err.Error()))
		return
	}
	views := make([]chatbotView, len(chatbots))
	for i := range chatbots {
		views[i] = toView(&chatbots[i], false)
	}
	c.JSON(http.StatusOK, gin.H{"chatbots": views})
}

// GetChatbot returns one chatbot with its documents, prompts and accesses.
func (h *ChatbotHandler) GetChatbot(c *gin.Context) {
	userID := middleware.UserEmail(c)
	chatbotID := c.Param("chatbot_id")

	ctx := c.Request.Context()
	if err := h.service.CheckAccess(ctx, chatbotID, userID, false); err != nil {
		c.Error(err)
		return
	}

	chatbot, err := h.service.Get(ctx, chatbotID)
	if err != nil {
		c.Error(errors.NewNotFoundError("CHATBOT_NOT_FOUND", "Chatbot not found"))
		return
	}
	c.JSON(http.StatusOK, toView(chatbot, true))
}

// UpdateChatbot changes title, description and optionally the icon. Admin
// access required.
func (h *ChatbotHandler) UpdateChatbot(c *gin.Context) {
	userID := middleware.UserEmail(c)
	chatbotID := c.Param("chatbot_id")

	ctx := c.Request.Context()
	if err := h.service.CheckAccess(ctx, chatbotID, userID, true); err != nil {
		c.Error(err)
		return
	}

	title := c.PostForm("title")
	description := c.PostForm("description")
	if title == "" || description == "" {
		c.Error(errors.NewBadRequestError("INVALID_REQUEST", "title and description are required"))
		return
	}

	var icon []byte
	if file, err := c.FormFile("icon"); err == nil {
		if file.Size > h.maxIconSize {
			c.Error(errors.NewBadRequestError("ICON_TOO_LARGE",
				fmt.Sprintf("Icon must not exceed %d bytes", h.maxIconSize)))
			return
		}
		icon, err = readFile(file)
		if err != nil {
			c.Error(errors.NewBadRequestError("UNREADABLE_ICON", err.Error()))
			return
		}
	}

	if err := h.service.Update(ctx, chatbotID, title, description, icon); err != nil {
		c.Error(errors.NewPersistenceError("CHATBOT_UPDATE_FAILED", err.Error()))
		return
	}
	c.JSON(http.StatusOK, gin.H{"status": "updated"})
}

// DeleteChatbot removes the chatbot and its assets. Admin access required.
func (h *ChatbotHandler) DeleteChatbot(c *gin.Context) {
	userID := middleware.UserEmail(c)
	chatbotID := c.Param("chatbot_id")

	ctx := c.Request.Context()
	if err := h.service.CheckAccess(ctx, chatbotID, userID, true); err != nil {
		c.Error(err)
		return
	}

	if err := h.service.Delete(ctx, chatbotID); err != nil {
		c.Error(errors.NewPersistenceError("CHATBOT_DELETE_FAILED", err.Error()))
		return
	}
	c.JSON(http.StatusOK, gin.H{"status": "deleted"})
}

type shareBody struct {
	UserID string `json:"user_id" binding:"required,email"`
	Role   string `json:"role" binding:"required"`
}

// ShareChatbot grants another user access to the chatbot. Admin access
// required.
func (h *ChatbotHandler) ShareChatbot(c *gin.Context) {
	userID := middleware.UserEmail(c)
	chatbotID := c.Param("chatbot_id")

	var body shareBody
	if err := c.ShouldBindJSON(&body); err != nil {
		c.Error(errors.NewBadRequestError("INVALID_REQUEST", err.Error()))
		return
	}

	ctx := c.Request.Context()
	if err := h.service.CheckAccess(ctx, chatbotID, userID, true); err != nil {
		c.Error(err)
		return
	}

	if err := h.service.Share(ctx, chatbotID, userID, body.UserID, body.Role); err != nil {
		c.Error(err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"status": "shared"})
}

// RemoveAccess revokes another user's access to the chatbot. Admin access
// required.
func (h *ChatbotHandler) RemoveAccess(c *gin.Context) {
	userID := middleware.UserEmail(c)
	chatbotID := c.Param("chatbot_id")
	target := c.Param("user_email")

	ctx := c.Request.Context()
	if err := h.service.CheckAccess(ctx, chatbotID, userID, true); err != nil {
		c.Error(err)
		return
	}

	if err := h.service.RemoveAccess(ctx, chatbotID, target); err != nil {
		c.Error(errors.NewPersistenceError("ACCESS_REMOVE_FAILED", err.Error()))
		return
	}
	c.JSON(http.StatusOK, gin.H{"status": "access_removed"})
}

// RequestPublicSharing asks the operators to make the chatbot public. Admin
// access required.
func (h *ChatbotHandler) RequestPublicSharing(c *gin.Context) {
	userID := middleware.UserEmail(c)
	chatbotID := c.Param("chatbot_id")

	ctx := c.Request.Context()
	if err := h.service.CheckAccess(ctx, chatbotID, userID, true); err != nil {
		c.Error(err)
		return
	}

	if err := h.service.RequestPublicSharing(ctx, chatbotID, userID); err != nil {
		c.Error(errors.NewPersistenceError("PUBLIC_SHARING_REQUEST_FAILED", err.Error()))
		return
	}
	c.JSON(http.StatusOK, gin.H{"status": "public_sharing_requested"})
}

// AddDocuments appends uploaded PDFs to the chatbot. Admin access required;
// document and page caps are enforced before anything is written.
func (h *ChatbotHandler) AddDocuments(c *gin.Context) {
	userID := middleware.UserEmail(c)
	chatbotID := c.Param("chatbot_id")

	ctx := c.Request.Context()
	if err := h.service.CheckAccess(ctx, chatbotID, userID, true); err != nil {
		c.Error(err)
		return
	}

	form, err := c.MultipartForm()
	if err != nil {
		c.Error(errors.NewBadRequestError("INVALID_FORM", err.Error()))
		return
	}
	files := form.File["files"]
	if len(files) == 0 {
		c.Error(errors.NewBadRequestError("NO_DOCUMENTS", "At least one PDF document is required"))
		return
	}

	docs := make([]models.Document, 0, len(files))
	for _, file := range files {
		data, err := readFile(file)
		if err != nil {
			c.Error(errors.NewBadRequestError("UNREADABLE_DOCUMENT", err.Error()))
			return
		}
		pages, err := pdf.CountPages(data)
		if err != nil {
			c.Error(errors.NewBadRequestError("INVALID_PDF",
				fmt.Sprintf("%s: %s", file.Filename, err.Error())))
			return
		}
		docs = append(docs, models.Document{
			Filename: file.Filename,
			Bytes:    data,
			NbPages:  pages,
		})
	}

	if err := h.service.AddDocuments(ctx, chatbotID, userID, docs); err != nil {
		c.Error(err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"status": "added"})
}

// DeleteDocument removes one document by filename. Admin access required.
func (h *ChatbotHandler) DeleteDocument(c *gin.Context) {
	userID := middleware.UserEmail(c)
	chatbotID := c.Param("chatbot_id")
	filename := c.Param("filename")

	ctx := c.Request.Context()
	if err := h.service.CheckAccess(ctx, chatbotID, userID, true); err != nil {
		c.Error(err)
		return
	}

	if err := h.service.RemoveDocument(ctx, chatbotID, filename); err != nil {
		c.Error(errors.NewPersistenceError("DOCUMENT_DELETE_FAILED", err.Error()))
		return
	}
	c.JSON(http.StatusOK, gin.H{"status": "deleted"})
}

func readFile(file *multipart.FileHeader) ([]byte, error) {
	f, err := file.Open()
	if err != nil {
		return nil, err
	}
	defer f.Close()
	return io.ReadAll(f)
}
