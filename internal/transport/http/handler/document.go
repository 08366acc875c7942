package handler

import (
	"errors"
	"io"
	"net/http"
	"strconv"

	"github.com/gin-gonic/gin"

	"pharmgpt/internal/app"
	"pharmgpt/internal/rag"
	"pharmgpt/internal/transport/http/response"
)

type DocumentHandler struct {
	docService *app.DocumentService
}

type SearchDocumentsRequest struct {
	Query string `json:"query" binding:"required"`
	TopK  int    `json:"top_k" binding:"min=0,max=20"`
}

func NewDocumentHandler(docService *app.DocumentService) *DocumentHandler {
	return &DocumentHandler{docService: docService}
}

// Upload accepts a multipart form with "file" and ingests it into the
// conversation given by the route parameter.
func (h *DocumentHandler) Upload(c *gin.Context) {
	userID, conversationID, ok := userAndConversationID(c)
	if !ok {
		return
	}

	fileHeader, err := c.FormFile("file")
	if err != nil {
		response.Error(c, http.StatusBadRequest, response.CodeBadRequest, "missing file")
		return
	}

	f, err := fileHeader.Open()
	if err != nil {
		response.Error(c, http.StatusInternalServerError, response.CodeInternalServer, "failed to read file")
		return
	}
	defer f.Close()

	data, err := io.ReadAll(f)
	if err != nil {
		response.Error(c, http.StatusInternalServerError, response.CodeInternalServer, "failed to read file")
		return
	}

	result, err := h.docService.Ingest(c.Request.Context(), app.IngestInput{
		UserID:         userID,
		ConversationID: conversationID,
		Filename:       fileHeader.Filename,
		Data:           data,
	})
	if err != nil {
		switch {
		case errors.Is(err, app.ErrInvalidInput):
			response.Error(c, http.StatusBadRequest, response.CodeBadRequest, err.Error())
		case errors.Is(err, rag.ErrUnsupportedType):
			response.Error(c, http.StatusUnsupportedMediaType, response.CodeUnsupportedFileType, err.Error())
		case errors.Is(err, rag.ErrNoText), errors.Is(err, rag.ErrOCRUnavailable):
			response.Error(c, http.StatusBadRequest, response.CodeBadRequest, err.Error())
		case errors.Is(err, app.ErrFileTooLarge):
			response.Error(c, http.StatusRequestEntityTooLarge, response.CodeFileTooLarge, err.Error())
		case errors.Is(err, app.ErrDocumentDuplicate):
			response.Error(c, http.StatusConflict, response.CodeDuplicateDocument, err.Error())
		case errors.Is(err, app.ErrUploadLimit):
			response.Error(c, http.StatusTooManyRequests, response.CodeUploadLimit, err.Error())
		case errors.Is(err, app.ErrConversationNotFound):
			response.Error(c, http.StatusNotFound, response.CodeConversationNotFound, err.Error())
		default:
			response.Error(c, http.StatusInternalServerError, response.CodeInternalServer, "document ingest failed")
		}
		return
	}
	response.OK(c, result)
}

// List returns the user's documents, scoped to a conversation when the
// conversation_id query parameter is set.
func (h *DocumentHandler) List(c *gin.Context) {
	userID, ok := getUserIDFromContext(c)
	if !ok {
		response.Error(c, http.StatusUnauthorized, response.CodeUnauthorized, "invalid token payload")
		return
	}

	var conversationID uint
	if raw := c.Query("conversation_id"); raw != "" {
		parsed, err := strconv.ParseUint(raw, 10, 64)
		if err != nil {
			response.Error(c, http.StatusBadRequest, response.CodeBadRequest, "invalid conversation_id")
			return
		}
		conversationID = uint(parsed)
	}

	docs, err := h.docService.List(userID, conversationID)
	if err != nil {
		response.Error(c, http.StatusInternalServerError, response.CodeInternalServer, "list documents failed")
		return
	}
	response.OK(c, docs)
}

func (h *DocumentHandler) Delete(c *gin.Context) {
	userID, ok := getUserIDFromContext(c)
	if !ok {
		response.Error(c, http.StatusUnauthorized, response.CodeUnauthorized, "invalid token payload")
		return
	}

	documentID64, err := strconv.ParseUint(c.Param("id"), 10, 64)
	if err != nil || documentID64 == 0 {
		response.Error(c, http.StatusBadRequest, response.CodeBadRequest, "invalid document id")
		return
	}

	if err := h.docService.Delete(userID, uint(documentID64)); err != nil {
		switch {
		case errors.Is(err, app.ErrInvalidInput):
			response.Error(c, http.StatusBadRequest, response.CodeBadRequest, err.Error())
		case errors.Is(err, app.ErrDocumentNotFound):
			response.Error(c, http.StatusNotFound, response.CodeDocumentNotFound, err.Error())
		default:
			response.Error(c, http.StatusInternalServerError, response.CodeInternalServer, "delete document failed")
		}
		return
	}
	response.OK(c, gin.H{"deleted_document_id": uint(documentID64)})
}

// Search runs similarity search over the conversation's indexed chunks.
func (h *DocumentHandler) Search(c *gin.Context) {
	userID, conversationID, ok := userAndConversationID(c)
	if !ok {
		return
	}
	h.search(c, userID, conversationID)
}

// SearchAll runs similarity search across every document the user owns.
func (h *DocumentHandler) SearchAll(c *gin.Context) {
	userID, ok := getUserIDFromContext(c)
	if !ok {
		response.Error(c, http.StatusUnauthorized, response.CodeUnauthorized, "invalid token payload")
		return
	}
	h.search(c, userID, 0)
}

func (h *DocumentHandler) search(c *gin.Context, userID, conversationID uint) {
	var req SearchDocumentsRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		response.Error(c, http.StatusBadRequest, response.CodeBadRequest, "invalid request payload")
		return
	}

	results, err := h.docService.Search(c.Request.Context(), userID, conversationID, req.Query, req.TopK)
	if err != nil {
		switch {
		case errors.Is(err, app.ErrInvalidInput):
			response.Error(c, http.StatusBadRequest, response.CodeBadRequest, err.Error())
		default:
			response.Error(c, http.StatusInternalServerError, response.CodeInternalServer, "search documents failed")
		}
		return
	}
	response.OK(c, gin.H{"results": results})
}

// Stats returns the user's document rollup, scoped to a conversation when
// the conversation_id query parameter is set.
func (h *DocumentHandler) Stats(c *gin.Context) {
	userID, ok := getUserIDFromContext(c)
	if !ok {
		response.Error(c, http.StatusUnauthorized, response.CodeUnauthorized, "invalid token payload")
		return
	}

	var conversationID uint
	if raw := c.Query("conversation_id"); raw != "" {
		parsed, err := strconv.ParseUint(raw, 10, 64)
		if err != nil {
			response.Error(c, http.StatusBadRequest, response.CodeBadRequest, "invalid conversation_id")
			return
		}
		conversationID = uint(parsed)
	}

	stats, err := h.docService.Stats(userID, conversationID)
	if err != nil {
		response.Error(c, http.StatusInternalServerError, response.CodeInternalServer, "document stats failed")
		return
	}
	response.OK(c, stats)
}
