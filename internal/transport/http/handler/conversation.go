package handler

import (
	"errors"
	"fmt"
	"net/http"
	"strconv"
	"strings"

	"github.com/gin-gonic/gin"

	"pharmgpt/internal/app"
	"pharmgpt/internal/export"
	"pharmgpt/internal/transport/http/response"
)

type ConversationHandler struct {
	convService *app.ConversationService
}

type CreateConversationRequest struct {
	Title     string `json:"title" binding:"max=128"`
	ModelMode string `json:"model_mode" binding:"max=32"`
}

type RenameConversationRequest struct {
	Title string `json:"title" binding:"required,max=128"`
}

type ArchiveConversationRequest struct {
	Archived bool `json:"archived"`
}

type SendMessageRequest struct {
	Content   string `json:"content" binding:"required"`
	ModelMode string `json:"model_mode" binding:"max=32"`
}

func NewConversationHandler(convService *app.ConversationService) *ConversationHandler {
	return &ConversationHandler{convService: convService}
}

func (h *ConversationHandler) Create(c *gin.Context) {
	userID, ok := getUserIDFromContext(c)
	if !ok {
		response.Error(c, http.StatusUnauthorized, response.CodeUnauthorized, "invalid token payload")
		return
	}

	var req CreateConversationRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		response.Error(c, http.StatusBadRequest, response.CodeBadRequest, "invalid request payload")
		return
	}

	conversation, err := h.convService.Create(app.CreateConversationInput{
		UserID:    userID,
		Title:     req.Title,
		ModelMode: req.ModelMode,
	})
	if err != nil {
		switch {
		case errors.Is(err, app.ErrInvalidInput), errors.Is(err, app.ErrUnknownMode):
			response.Error(c, http.StatusBadRequest, response.CodeBadRequest, err.Error())
		default:
			response.Error(c, http.StatusInternalServerError, response.CodeInternalServer, "create conversation failed")
		}
		return
	}
	response.OK(c, conversation)
}

func (h *ConversationHandler) List(c *gin.Context) {
	userID, ok := getUserIDFromContext(c)
	if !ok {
		response.Error(c, http.StatusUnauthorized, response.CodeUnauthorized, "invalid token payload")
		return
	}

	includeArchived := c.Query("include_archived") == "true"
	limit := 0
	if raw := c.Query("limit"); raw != "" {
		if parsed, err := strconv.Atoi(raw); err == nil {
			limit = parsed
		}
	}

	conversations, err := h.convService.List(userID, includeArchived, limit)
	if err != nil {
		response.Error(c, http.StatusInternalServerError, response.CodeInternalServer, "list conversations failed")
		return
	}
	response.OK(c, conversations)
}

func (h *ConversationHandler) Get(c *gin.Context) {
	userID, conversationID, ok := userAndConversationID(c)
	if !ok {
		return
	}

	conversation, err := h.convService.Get(userID, conversationID)
	if err != nil {
		h.writeConversationError(c, err, "get conversation failed")
		return
	}
	response.OK(c, conversation)
}

func (h *ConversationHandler) Rename(c *gin.Context) {
	userID, conversationID, ok := userAndConversationID(c)
	if !ok {
		return
	}

	var req RenameConversationRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		response.Error(c, http.StatusBadRequest, response.CodeBadRequest, "invalid request payload")
		return
	}

	if err := h.convService.Rename(userID, conversationID, req.Title); err != nil {
		h.writeConversationError(c, err, "rename conversation failed")
		return
	}
	response.OK(c, gin.H{"id": conversationID, "title": strings.TrimSpace(req.Title)})
}

func (h *ConversationHandler) SetArchived(c *gin.Context) {
	userID, conversationID, ok := userAndConversationID(c)
	if !ok {
		return
	}

	var req ArchiveConversationRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		response.Error(c, http.StatusBadRequest, response.CodeBadRequest, "invalid request payload")
		return
	}

	if err := h.convService.SetArchived(userID, conversationID, req.Archived); err != nil {
		h.writeConversationError(c, err, "archive conversation failed")
		return
	}
	response.OK(c, gin.H{"id": conversationID, "archived": req.Archived})
}

func (h *ConversationHandler) Duplicate(c *gin.Context) {
	userID, conversationID, ok := userAndConversationID(c)
	if !ok {
		return
	}

	copied, err := h.convService.Duplicate(userID, conversationID)
	if err != nil {
		h.writeConversationError(c, err, "duplicate conversation failed")
		return
	}
	response.OK(c, copied)
}

func (h *ConversationHandler) Delete(c *gin.Context) {
	userID, conversationID, ok := userAndConversationID(c)
	if !ok {
		return
	}

	if err := h.convService.Delete(userID, conversationID); err != nil {
		h.writeConversationError(c, err, "delete conversation failed")
		return
	}
	response.OK(c, gin.H{"deleted_conversation_id": conversationID})
}

func (h *ConversationHandler) GetHistory(c *gin.Context) {
	userID, conversationID, ok := userAndConversationID(c)
	if !ok {
		return
	}

	limit := 100
	if raw := c.Query("limit"); raw != "" {
		if parsed, err := strconv.Atoi(raw); err == nil {
			limit = parsed
		}
	}

	history, err := h.convService.GetHistory(userID, conversationID, limit)
	if err != nil {
		h.writeConversationError(c, err, "get history failed")
		return
	}
	response.OK(c, history)
}

func (h *ConversationHandler) SendMessage(c *gin.Context) {
	userID, conversationID, ok := userAndConversationID(c)
	if !ok {
		return
	}

	var req SendMessageRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		response.Error(c, http.StatusBadRequest, response.CodeBadRequest, "invalid request payload")
		return
	}

	result, err := h.convService.SendMessage(c.Request.Context(), app.SendMessageInput{
		UserID:         userID,
		ConversationID: conversationID,
		Content:        req.Content,
		ModelMode:      req.ModelMode,
	})
	if err != nil {
		switch {
		case errors.Is(err, app.ErrInvalidInput), errors.Is(err, app.ErrMessageEmpty),
			errors.Is(err, app.ErrLLMConfig), errors.Is(err, app.ErrUnknownMode):
			response.Error(c, http.StatusBadRequest, response.CodeBadRequest, err.Error())
		case errors.Is(err, app.ErrMessageEnqueue):
			response.Error(c, http.StatusServiceUnavailable, response.CodeInternalServer, err.Error())
		case errors.Is(err, app.ErrConversationNotFound):
			response.Error(c, http.StatusNotFound, response.CodeConversationNotFound, err.Error())
		default:
			response.Error(c, http.StatusInternalServerError, response.CodeInternalServer, "send message failed")
		}
		return
	}
	response.OK(c, result)
}

func (h *ConversationHandler) StreamMessage(c *gin.Context) {
	userID, conversationID, ok := userAndConversationID(c)
	if !ok {
		return
	}

	var req SendMessageRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		response.Error(c, http.StatusBadRequest, response.CodeBadRequest, "invalid request payload")
		return
	}

	c.Header("Content-Type", "text/event-stream")
	c.Header("Cache-Control", "no-cache")
	c.Header("Connection", "keep-alive")
	c.Header("X-Accel-Buffering", "no")

	flusher, ok := c.Writer.(http.Flusher)
	if !ok {
		response.Error(c, http.StatusInternalServerError, response.CodeInternalServer, "stream not supported")
		return
	}

	full, err := h.convService.StreamMessage(c.Request.Context(), app.SendMessageInput{
		UserID:         userID,
		ConversationID: conversationID,
		Content:        req.Content,
		ModelMode:      req.ModelMode,
	}, func(chunk string) error {
		if _, writeErr := c.Writer.Write([]byte("data: " + sanitizeSSE(chunk) + "\n\n")); writeErr != nil {
			return writeErr
		}
		flusher.Flush()
		return nil
	})
	if err != nil {
		if _, writeErr := c.Writer.Write([]byte(fmt.Sprintf("event: error\ndata: %s\n\n", sanitizeSSE(err.Error())))); writeErr == nil {
			flusher.Flush()
		}
		return
	}

	if _, writeErr := c.Writer.Write([]byte("event: done\ndata: " + sanitizeSSE(full) + "\n\n")); writeErr == nil {
		flusher.Flush()
	}
}

// Export streams the conversation as a downloadable file in the requested
// format (markdown, text, or json).
func (h *ConversationHandler) Export(c *gin.Context) {
	userID, conversationID, ok := userAndConversationID(c)
	if !ok {
		return
	}

	format, err := export.ParseFormat(c.Query("format"))
	if err != nil {
		response.Error(c, http.StatusBadRequest, response.CodeBadRequest, err.Error())
		return
	}

	conversation, err := h.convService.Get(userID, conversationID)
	if err != nil {
		h.writeConversationError(c, err, "export conversation failed")
		return
	}
	messages, err := h.convService.GetFullHistory(userID, conversationID)
	if err != nil {
		h.writeConversationError(c, err, "export conversation failed")
		return
	}

	data, err := export.Render(format, conversation, messages)
	if err != nil {
		response.Error(c, http.StatusInternalServerError, response.CodeInternalServer, "render export failed")
		return
	}

	filename := fmt.Sprintf("conversation-%d.%s", conversationID, format.Extension())
	c.Header("Content-Disposition", fmt.Sprintf("attachment; filename=%q", filename))
	c.Data(http.StatusOK, format.ContentType(), data)
}

func (h *ConversationHandler) writeConversationError(c *gin.Context, err error, fallback string) {
	switch {
	case errors.Is(err, app.ErrInvalidInput):
		response.Error(c, http.StatusBadRequest, response.CodeBadRequest, err.Error())
	case errors.Is(err, app.ErrConversationNotFound):
		response.Error(c, http.StatusNotFound, response.CodeConversationNotFound, err.Error())
	default:
		response.Error(c, http.StatusInternalServerError, response.CodeInternalServer, fallback)
	}
}

func userAndConversationID(c *gin.Context) (uint, uint, bool) {
	userID, ok := getUserIDFromContext(c)
	if !ok {
		response.Error(c, http.StatusUnauthorized, response.CodeUnauthorized, "invalid token payload")
		return 0, 0, false
	}
	conversationID64, err := strconv.ParseUint(c.Param("id"), 10, 64)
	if err != nil || conversationID64 == 0 {
		response.Error(c, http.StatusBadRequest, response.CodeBadRequest, "invalid conversation id")
		return 0, 0, false
	}
	return userID, uint(conversationID64), true
}

func sanitizeSSE(input string) string {
	replaced := strings.ReplaceAll(input, "\r\n", "\\n")
	replaced = strings.ReplaceAll(replaced, "\n", "\\n")
	return replaced
}
