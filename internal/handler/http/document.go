package http

import (
	"net/http"
	"strconv"

	"github.com/gin-gonic/gin"
	"github.com/sirupsen/logrus"

	"github.com/rakib-sikder/shared-doc-editor/internal/domain"
	"github.com/rakib-sikder/shared-doc-editor/internal/middleware"
	"github.com/rakib-sikder/shared-doc-editor/internal/service"
)

// DocumentHandler exposes document CRUD and sharing over HTTP. All routes
// require the Auth middleware.
type DocumentHandler struct {
	docService *service.DocumentService
}

func NewDocumentHandler(docService *service.DocumentService) *DocumentHandler {
	return &DocumentHandler{docService: docService}
}

// DocumentResponse is the wire shape of a document.
type DocumentResponse struct {
	ID        uint   `json:"id"`
	OwnerID   uint   `json:"owner_id"`
	Title     string `json:"title"`
	Content   string `json:"content,omitempty"`
	UpdatedAt string `json:"updated_at"`
}

func toDocumentResponse(doc *domain.Document, withContent bool) DocumentResponse {
	resp := DocumentResponse{
		ID:        doc.ID,
		OwnerID:   doc.OwnerID,
		Title:     doc.Title,
		UpdatedAt: doc.UpdatedAt.UTC().Format("2006-01-02T15:04:05Z07:00"),
	}
	if withContent {
		resp.Content = doc.Content
	}
	return resp
}

func callerIDOrAbort(c *gin.Context) (uint, bool) {
	userID, ok := middleware.UserIDFromContext(c)
	if !ok {
		logrus.Warn("Handler.Document: User ID not found in context, middleware missing or failed?")
		c.JSON(http.StatusUnauthorized, gin.H{"error": "User not authenticated"})
		return 0, false
	}
	return userID, true
}

func documentIDParam(c *gin.Context) (uint, bool) {
	id, err := strconv.ParseUint(c.Param("id"), 10, 32)
	if err != nil || id == 0 {
		c.JSON(http.StatusBadRequest, gin.H{"error": "Invalid document id"})
		return 0, false
	}
	return uint(id), true
}

// CreateDocumentRequest is the create endpoint's input.
type CreateDocumentRequest struct {
	Title string `json:"title" binding:"max=255"`
}

// Create handles POST /api/documents.
func (h *DocumentHandler) Create(c *gin.Context) {
	userID, ok := callerIDOrAbort(c)
	if !ok {
		return
	}
	var req CreateDocumentRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "Invalid input", "details": err.Error()})
		return
	}

	doc, err := h.docService.Create(c.Request.Context(), userID, req.Title)
	if err != nil {
		HandleServiceError(c, err)
		return
	}
	SuccessResponse(c, http.StatusCreated, toDocumentResponse(doc, true))
}

// List handles GET /api/documents: everything the caller owns or was granted.
func (h *DocumentHandler) List(c *gin.Context) {
	userID, ok := callerIDOrAbort(c)
	if !ok {
		return
	}
	docs, err := h.docService.List(c.Request.Context(), userID)
	if err != nil {
		HandleServiceError(c, err)
		return
	}
	resp := make([]DocumentResponse, 0, len(docs))
	for i := range docs {
		resp = append(resp, toDocumentResponse(&docs[i], false))
	}
	SuccessResponse(c, http.StatusOK, gin.H{"documents": resp})
}

// Get handles GET /api/documents/:id.
func (h *DocumentHandler) Get(c *gin.Context) {
	userID, ok := callerIDOrAbort(c)
	if !ok {
		return
	}
	documentID, ok := documentIDParam(c)
	if !ok {
		return
	}
	doc, err := h.docService.Get(c.Request.Context(), userID, documentID)
	if err != nil {
		HandleServiceError(c, err)
		return
	}
	SuccessResponse(c, http.StatusOK, toDocumentResponse(doc, true))
}

// UpdateDocumentRequest is the update endpoint's input.
type UpdateDocumentRequest struct {
	Title   string `json:"title" binding:"required,max=255"`
	Content string `json:"content"`
}

// Update handles PUT /api/documents/:id for non-realtime clients.
func (h *DocumentHandler) Update(c *gin.Context) {
	userID, ok := callerIDOrAbort(c)
	if !ok {
		return
	}
	documentID, ok := documentIDParam(c)
	if !ok {
		return
	}
	var req UpdateDocumentRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "Invalid input", "details": err.Error()})
		return
	}

	doc, err := h.docService.Update(c.Request.Context(), userID, documentID, req.Title, req.Content)
	if err != nil {
		HandleServiceError(c, err)
		return
	}
	SuccessResponse(c, http.StatusOK, toDocumentResponse(doc, true))
}

// Delete handles DELETE /api/documents/:id. Owner only.
func (h *DocumentHandler) Delete(c *gin.Context) {
	userID, ok := callerIDOrAbort(c)
	if !ok {
		return
	}
	documentID, ok := documentIDParam(c)
	if !ok {
		return
	}
	if err := h.docService.Delete(c.Request.Context(), userID, documentID); err != nil {
		HandleServiceError(c, err)
		return
	}
	SuccessResponse(c, http.StatusOK, gin.H{"message": "Document deleted"})
}

// ShareRequest is the share endpoint's input. Role must be viewer or editor.
type ShareRequest struct {
	Email string `json:"email" binding:"required,email"`
	Role  string `json:"role" binding:"required"`
}

// Share handles POST /api/documents/:id/share. Owner only.
func (h *DocumentHandler) Share(c *gin.Context) {
	userID, ok := callerIDOrAbort(c)
	if !ok {
		return
	}
	documentID, ok := documentIDParam(c)
	if !ok {
		return
	}
	var req ShareRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "Invalid input", "details": err.Error()})
		return
	}

	grant, err := h.docService.Share(c.Request.Context(), userID, documentID, req.Email, domain.Role(req.Role))
	if err != nil {
		HandleServiceError(c, err)
		return
	}
	logrus.WithFields(logrus.Fields{
		"document_id": documentID,
		"grantee_id":  grant.GranteeID,
		"role":        grant.Role,
	}).Info("Handler.Share: Access granted")
	SuccessResponse(c, http.StatusOK, gin.H{
		"message":    "Document shared",
		"grantee_id": grant.GranteeID,
		"role":       grant.Role,
	})
}
