package websocket

import (
	"context"
	"errors"
	"net/http"
	"strconv"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/gorilla/websocket"
	"github.com/sirupsen/logrus"

	"github.com/rakib-sikder/shared-doc-editor/internal/domain"
	"github.com/rakib-sikder/shared-doc-editor/internal/middleware"
	"github.com/rakib-sikder/shared-doc-editor/internal/room"
	"github.com/rakib-sikder/shared-doc-editor/internal/service"
)

const (
	authorizeTimeout = 5 * time.Second
	// A room can close between lookup and join when its last session leaves
	// concurrently. Joining retries through the registry a few times before
	// giving up.
	joinAttempts = 3
)

// Handler upgrades authorized requests on /ws/documents/:id into live room
// sessions. Authorization happens before the upgrade so a rejected principal
// never touches a room.
type Handler struct {
	upgrader websocket.Upgrader
	gateway  *service.PermissionGateway
	registry *room.Registry
}

func NewHandler(gateway *service.PermissionGateway, registry *room.Registry) *Handler {
	if gateway == nil {
		panic("PermissionGateway cannot be nil for websocket Handler")
	}
	if registry == nil {
		panic("Registry cannot be nil for websocket Handler")
	}

	upgrader := websocket.Upgrader{
		ReadBufferSize:  1024,
		WriteBufferSize: 1024,
		CheckOrigin: func(r *http.Request) bool {
			// TODO: check against CORS_ALLOWED_ORIGIN in production.
			return true
		},
	}

	return &Handler{
		upgrader: upgrader,
		gateway:  gateway,
		registry: registry,
	}
}

// HandleConnection serves GET /ws/documents/:id. The bearer token comes from
// the Authorization header or, for browser WebSocket clients that cannot set
// headers, the token query parameter. Reconnecting clients pass last_seq with
// the last sequence number they received to get a targeted replay instead of
// a full sync.
func (h *Handler) HandleConnection(c *gin.Context) {
	documentIDStr := c.Param("id")
	documentID64, err := strconv.ParseUint(documentIDStr, 10, 32)
	if err != nil || documentID64 == 0 {
		logrus.Warnf("WS Handler: Invalid document ID format: %s", documentIDStr)
		c.JSON(http.StatusBadRequest, gin.H{"error": "Invalid document ID format"})
		return
	}
	documentID := uint(documentID64)
	logCtx := logrus.WithField("document_id", documentID)

	token, err := middleware.ExtractToken(c)
	if err != nil {
		token = c.Query("token")
	}
	if token == "" {
		logCtx.Warn("WS Handler: No credentials supplied")
		c.JSON(http.StatusUnauthorized, gin.H{"error": "Authentication required"})
		return
	}

	authCtx, cancel := context.WithTimeout(c.Request.Context(), authorizeTimeout)
	user, role, err := h.gateway.Authorize(authCtx, token, documentID)
	cancel()
	if err != nil {
		switch {
		case errors.Is(err, service.ErrAuthenticationFailed):
			logCtx.WithError(err).Warn("WS Handler: Authentication failed")
			c.JSON(http.StatusUnauthorized, gin.H{"error": "Invalid or expired token"})
		case errors.Is(err, service.ErrDocumentNotFound):
			logCtx.Warn("WS Handler: Document not found")
			c.JSON(http.StatusNotFound, gin.H{"error": "Document not found"})
		case errors.Is(err, service.ErrPermissionDenied):
			logCtx.Warn("WS Handler: Permission denied")
			c.JSON(http.StatusForbidden, gin.H{"error": "No access to this document"})
		default:
			logCtx.WithError(err).Error("WS Handler: Authorization error")
			c.JSON(http.StatusInternalServerError, gin.H{"error": "Failed to authorize"})
		}
		return
	}
	logCtx = logCtx.WithFields(logrus.Fields{"user_id": user.ID, "role": role})

	var lastAck uint64
	if raw := c.Query("last_seq"); raw != "" {
		lastAck, err = strconv.ParseUint(raw, 10, 64)
		if err != nil {
			c.JSON(http.StatusBadRequest, gin.H{"error": "Invalid last_seq value"})
			return
		}
	}

	conn, err := h.upgrader.Upgrade(c.Writer, c.Request, nil)
	if err != nil {
		// Upgrade already wrote the HTTP error response.
		logCtx.WithError(err).Error("WS Handler: Failed to upgrade connection")
		return
	}

	session, err := h.join(c.Request.Context(), conn, documentID, user.ID, user.Username, role, lastAck)
	if err != nil {
		logCtx.WithError(err).Error("WS Handler: Failed to join document room")
		_ = conn.WriteControl(
			websocket.CloseMessage,
			websocket.FormatCloseMessage(websocket.CloseInternalServerErr, "failed to open document"),
			time.Now().Add(time.Second),
		)
		conn.Close()
		return
	}

	session.Run()
	logCtx.Info("WS Handler: Session attached to room")
}

// join resolves the room and attaches the connection, retrying when the room
// closed between lookup and attach.
func (h *Handler) join(ctx context.Context, conn *websocket.Conn, documentID, userID uint, name string, role domain.Role, lastAck uint64) (*room.Session, error) {
	var lastErr error
	for i := 0; i < joinAttempts; i++ {
		rm, err := h.registry.GetOrCreate(ctx, documentID)
		if err != nil {
			return nil, err
		}
		session, err := rm.Join(conn, userID, name, role, lastAck)
		if err == nil {
			return session, nil
		}
		lastErr = err
		if !errors.Is(err, room.ErrRoomClosed) {
			return nil, err
		}
	}
	return nil, lastErr
}
