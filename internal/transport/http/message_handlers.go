package http

import (
	"errors"
	"net/http"
	"strconv"

	"github.com/gin-gonic/gin"
	"github.com/rs/zerolog"

	"github.com/pulsechat/pulsechat-server/internal/core"
	"github.com/pulsechat/pulsechat-server/internal/service/messages"
	"github.com/pulsechat/pulsechat-server/internal/store"
)

// MessageHandlers provides HTTP handlers for sending, deleting and
// fetching messages. REST is an alternative ingress to the WebSocket:
// clients that hold a live connection pass its id so fan-out skips the
// originating device.
type MessageHandlers struct {
	messages *messages.Service
	log      *zerolog.Logger
}

// NewMessageHandlers creates a new message handlers instance.
func NewMessageHandlers(svc *messages.Service, logger *zerolog.Logger) *MessageHandlers {
	return &MessageHandlers{
		messages: svc,
		log:      logger,
	}
}

// SendMessageRequest represents the send message request body.
type SendMessageRequest struct {
	Scope        string `json:"scope" binding:"required"`
	Text         string `json:"text"`
	Attachment   string `json:"attachment"`
	TempID       string `json:"temp_id"`
	ConnectionID string `json:"connection_id"`
}

// MessageResponse represents a message in API responses.
type MessageResponse struct {
	ID         int64  `json:"id"`
	Scope      string `json:"scope"`
	SenderID   int64  `json:"sender_id"`
	Text       string `json:"text,omitempty"`
	Attachment string `json:"attachment,omitempty"`
	TS         int64  `json:"ts"`
}

func messageResponse(msg *store.Message) MessageResponse {
	scope := core.DirectScope(0)
	if msg.GroupID != nil {
		scope = core.GroupScope(*msg.GroupID)
	} else if msg.PeerID != nil {
		scope = core.DirectScope(*msg.PeerID)
	}
	return MessageResponse{
		ID:         msg.ID,
		Scope:      scope.Key(),
		SenderID:   msg.SenderID,
		Text:       msg.Text,
		Attachment: msg.Attachment,
		TS:         msg.CreatedAt.Unix(),
	}
}

// SendMessage persists and fans out a message.
// POST /api/messages
func (h *MessageHandlers) SendMessage(c *gin.Context) {
	uid, ok := currentUser(c)
	if !ok {
		c.JSON(http.StatusUnauthorized, ErrorResponse{Error: "unauthorized"})
		return
	}

	var req SendMessageRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, ErrorResponse{Error: "invalid request body"})
		return
	}

	scope, err := core.ParseScopeKey(req.Scope)
	if err != nil {
		c.JSON(http.StatusBadRequest, ErrorResponse{Error: "invalid scope"})
		return
	}

	msg, err := h.messages.Send(c.Request.Context(), messages.SendInput{
		SenderID:     uid,
		SenderName:   c.GetString(ContextKeyUsername),
		Scope:        scope,
		Text:         req.Text,
		Attachment:   req.Attachment,
		TempID:       req.TempID,
		OriginConnID: req.ConnectionID,
	})
	if err != nil {
		h.writeMessageError(c, err, "failed to send message")
		return
	}

	c.JSON(http.StatusCreated, messageResponse(msg))
}

// DeleteMessage removes a message and notifies affected connections.
// DELETE /api/messages/:id
func (h *MessageHandlers) DeleteMessage(c *gin.Context) {
	uid, ok := currentUser(c)
	if !ok {
		c.JSON(http.StatusUnauthorized, ErrorResponse{Error: "unauthorized"})
		return
	}

	messageID, ok := pathID(c, "id")
	if !ok {
		return
	}

	if err := h.messages.Delete(c.Request.Context(), uid, messageID, c.Query("connection_id")); err != nil {
		h.writeMessageError(c, err, "failed to delete message")
		return
	}
	c.Status(http.StatusNoContent)
}

// History returns a page of a conversation, oldest first.
// GET /api/messages?scope=direct:42&limit=50&before=123
func (h *MessageHandlers) History(c *gin.Context) {
	uid, ok := currentUser(c)
	if !ok {
		c.JSON(http.StatusUnauthorized, ErrorResponse{Error: "unauthorized"})
		return
	}

	scope, err := core.ParseScopeKey(c.Query("scope"))
	if err != nil {
		c.JSON(http.StatusBadRequest, ErrorResponse{Error: "invalid scope"})
		return
	}

	limit := 0
	if raw := c.Query("limit"); raw != "" {
		limit, err = strconv.Atoi(raw)
		if err != nil || limit < 0 {
			c.JSON(http.StatusBadRequest, ErrorResponse{Error: "invalid limit"})
			return
		}
	}

	var beforeID *int64
	if raw := c.Query("before"); raw != "" {
		id, err := strconv.ParseInt(raw, 10, 64)
		if err != nil || id <= 0 {
			c.JSON(http.StatusBadRequest, ErrorResponse{Error: "invalid before"})
			return
		}
		beforeID = &id
	}

	list, err := h.messages.History(c.Request.Context(), uid, scope, limit, beforeID)
	if err != nil {
		h.writeMessageError(c, err, "failed to fetch history")
		return
	}

	response := make([]MessageResponse, 0, len(list))
	for _, msg := range list {
		response = append(response, messageResponse(msg))
	}
	c.JSON(http.StatusOK, response)
}

func (h *MessageHandlers) writeMessageError(c *gin.Context, err error, logMsg string) {
	switch {
	case errors.Is(err, messages.ErrEmptyMessage):
		c.JSON(http.StatusBadRequest, ErrorResponse{Error: "message is empty"})
	case errors.Is(err, messages.ErrNotMember):
		c.JSON(http.StatusForbidden, ErrorResponse{Error: "not a group member"})
	case errors.Is(err, messages.ErrNotAuthorized):
		c.JSON(http.StatusForbidden, ErrorResponse{Error: "not allowed"})
	case errors.Is(err, messages.ErrNotFound):
		c.JSON(http.StatusNotFound, ErrorResponse{Error: "message not found"})
	default:
		h.log.Error().Err(err).Msg(logMsg)
		c.JSON(http.StatusInternalServerError, ErrorResponse{Error: "internal server error"})
	}
}
