package http

import (
	"net/http"
	"strconv"

	"github.com/gin-gonic/gin"

	"github.com/rakib-sikder/shared-doc-editor/internal/service"
)

// HistoryHandler serves the recent operation feed of a document.
type HistoryHandler struct {
	historyService *service.HistoryService
}

func NewHistoryHandler(historyService *service.HistoryService) *HistoryHandler {
	return &HistoryHandler{historyService: historyService}
}

// RecentOperations handles GET /api/documents/:id/operations.
func (h *HistoryHandler) RecentOperations(c *gin.Context) {
	userID, ok := callerIDOrAbort(c)
	if !ok {
		return
	}
	documentID, ok := documentIDParam(c)
	if !ok {
		return
	}
	limit, _ := strconv.Atoi(c.DefaultQuery("limit", "50"))

	ops, err := h.historyService.RecentOperations(c.Request.Context(), userID, documentID, limit)
	if err != nil {
		HandleServiceError(c, err)
		return
	}
	SuccessResponse(c, http.StatusOK, gin.H{"operations": ops})
}
