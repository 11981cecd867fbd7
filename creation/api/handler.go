package api

import (
	"fmt"
	"io"
	"mime/multipart"
	"net/http"
	"strconv"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"

	"github.com/AntoinePinto/docu-talk/ai"
	billingservice "github.com/AntoinePinto/docu-talk/billing/service"
	chatbotservice "github.com/AntoinePinto/docu-talk/chatbot/service"
	"github.com/AntoinePinto/docu-talk/creation/service"
	"github.com/AntoinePinto/docu-talk/pkg/errors"
	"github.com/AntoinePinto/docu-talk/pkg/logger"
	"github.com/AntoinePinto/docu-talk/pkg/middleware"
	"github.com/AntoinePinto/docu-talk/pkg/pdf"
	"github.com/AntoinePinto/docu-talk/pkg/stream"
	"github.com/AntoinePinto/docu-talk/predictor"
)

// CreationHandler exposes the chatbot-creation endpoints.
type CreationHandler struct {
	creation  *service.CreationService
	ledger    *billingservice.Ledger
	predictor *predictor.Predictor
	limits    chatbotservice.Limits
	logger    *logger.Logger
}

func NewCreationHandler(
	creation *service.CreationService,
	ledger *billingservice.Ledger,
	pred *predictor.Predictor,
	limits chatbotservice.Limits,
	logger *logger.Logger,
) *CreationHandler {
	return &CreationHandler{
		creation:  creation,
		ledger:    ledger,
		predictor: pred,
		limits:    limits,
		logger:    logger,
	}
}

// CreateChatbot derives a chatbot from uploaded PDF documents, streaming each
// stage artifact as one JSON line followed by its credits event. The final
// chatbot_id line is the only signal that the chatbot was persisted.
func (h *CreationHandler) CreateChatbot(c *gin.Context) {
	userID := middleware.UserEmail(c)

	form, err := c.MultipartForm()
	if err != nil {
		c.Error(errors.NewBadRequestError("INVALID_FORM", err.Error()))
		return
	}
	model := c.PostForm("model")
	if model == "" {
		c.Error(errors.NewBadRequestError("MODEL_REQUIRED", "A generation model is required"))
		return
	}

	files := form.File["files"]
	docs, err := h.readDocuments(files, userID)
	if err != nil {
		c.Error(err)
		return
	}

	ctx := c.Request.Context()
	ok, err := h.ledger.HasCredits(ctx, userID)
	if err != nil {
		c.Error(err)
		return
	}
	if !ok {
		c.Error(errors.NewForbiddenError("NOT_ENOUGH_CREDITS", "You don't have enough credits"))
		return
	}

	c.Header("Content-Type", "text/event-stream")
	c.Header("Cache-Control", "no-cache")
	c.Header("Connection", "keep-alive")
	c.Status(http.StatusOK)

	events := make(chan stream.Event, stream.DefaultBuffer)
	done := make(chan error, 1)
	go func() {
		defer close(events)
		done <- h.creation.StreamCreate(ctx, service.CreateRequest{
			ChatbotID: uuid.New().String(),
			UserID:    userID,
			Model:     model,
			Documents: docs,
		}, events)
	}()

	if err := stream.Pipe(ctx, stream.NewEncoder(c.Writer), events); err != nil {
		h.logger.Warn("Creation stream closed early", "error", err.Error())
	}
	if err := <-done; err != nil {
		h.logger.LogError(err, "Creation session failed")
	}
}

// readDocuments parses the uploaded PDFs and enforces the per-chatbot limits
// before any generation or billing happens.
func (h *CreationHandler) readDocuments(files []*multipart.FileHeader, userID string) ([]ai.Document, error) {
	if len(files) == 0 {
		return nil, errors.NewBadRequestError("NO_DOCUMENTS", "At least one PDF document is required")
	}
	if len(files) > h.limits.MaxDocsPerChatbot {
		return nil, errors.NewBadRequestError("MAX_DOCUMENTS_REACHED",
			fmt.Sprintf("A chatbot cannot hold more than %d documents", h.limits.MaxDocsPerChatbot))
	}

	docs := make([]ai.Document, 0, len(files))
	totalPages := 0
	for _, file := range files {
		f, err := file.Open()
		if err != nil {
			return nil, errors.NewBadRequestError("UNREADABLE_DOCUMENT", err.Error())
		}
		data, err := io.ReadAll(f)
		f.Close()
		if err != nil {
			return nil, errors.NewBadRequestError("UNREADABLE_DOCUMENT", err.Error())
		}

		pages, err := pdf.CountPages(data)
		if err != nil {
			return nil, errors.NewBadRequestError("INVALID_PDF",
				fmt.Sprintf("%s: %s", file.Filename, err.Error()))
		}
		totalPages += pages
		docs = append(docs, ai.Document{
			Filename:  file.Filename,
			Bytes:     data,
			NbPages:   pages,
			CreatedBy: userID,
		})
	}
	if totalPages > h.limits.MaxPagesPerChatbot {
		return nil, errors.NewBadRequestError("MAX_PAGES_REACHED",
			fmt.Sprintf("A chatbot cannot hold more than %d pages", h.limits.MaxPagesPerChatbot))
	}
	return docs, nil
}

// GetCreateEstimation predicts the duration of a creation session from the
// planned document footprint.
func (h *CreationHandler) GetCreateEstimation(c *gin.Context) {
	model := c.DefaultQuery("model", "")
	totalPages, err := strconv.Atoi(c.DefaultQuery("total_pages", "0"))
	if err != nil {
		c.Error(errors.NewBadRequestError("INVALID_REQUEST", "total_pages must be an integer"))
		return
	}

	seconds := h.predictor.Predict(c.Request.Context(), predictor.MetricCreateDuration, model, totalPages)
	c.JSON(http.StatusOK, gin.H{"estimated_duration": seconds})
}
