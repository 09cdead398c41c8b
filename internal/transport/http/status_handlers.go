package http

import (
	"errors"
	"net/http"
	"strconv"

	"github.com/gin-gonic/gin"
	"github.com/rs/zerolog"

	"github.com/pulsechat/pulsechat-server/internal/service/statuses"
	"github.com/pulsechat/pulsechat-server/internal/store"
)

// StatusHandlers provides HTTP handlers for publishing and listing
// statuses. Like message sends, the publisher passes its live
// connection id so the broadcast skips the originating device.
type StatusHandlers struct {
	statuses *statuses.Service
	log      *zerolog.Logger
}

// NewStatusHandlers creates a new status handlers instance.
func NewStatusHandlers(svc *statuses.Service, logger *zerolog.Logger) *StatusHandlers {
	return &StatusHandlers{
		statuses: svc,
		log:      logger,
	}
}

// CreateStatusRequest represents the create status request body.
type CreateStatusRequest struct {
	Content      string `json:"content" binding:"required"`
	Kind         string `json:"kind" binding:"required"`
	ConnectionID string `json:"connection_id"`
}

// StatusResponse represents a status in API responses.
type StatusResponse struct {
	ID        int64  `json:"id"`
	UserID    int64  `json:"user_id"`
	Content   string `json:"content"`
	Kind      string `json:"kind"`
	TS        int64  `json:"ts"`
	ExpiresTS int64  `json:"expires_ts"`
}

func statusResponse(st *store.Status) StatusResponse {
	return StatusResponse{
		ID:        st.ID,
		UserID:    st.UserID,
		Content:   st.Content,
		Kind:      st.Kind,
		TS:        st.CreatedAt.Unix(),
		ExpiresTS: st.ExpiresAt.Unix(),
	}
}

// CreateStatus publishes a status and broadcasts it to everyone online.
// POST /api/status
func (h *StatusHandlers) CreateStatus(c *gin.Context) {
	uid, ok := currentUser(c)
	if !ok {
		c.JSON(http.StatusUnauthorized, ErrorResponse{Error: "unauthorized"})
		return
	}

	var req CreateStatusRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, ErrorResponse{Error: "invalid request body"})
		return
	}

	st, err := h.statuses.Create(c.Request.Context(), uid, req.Content, req.Kind, req.ConnectionID)
	if err != nil {
		h.writeStatusError(c, err)
		return
	}

	c.JSON(http.StatusCreated, statusResponse(st))
}

// ListStatuses returns every unexpired status, newest first. An
// optional user_id query narrows the list to one author.
// GET /api/status?user_id=42
func (h *StatusHandlers) ListStatuses(c *gin.Context) {
	if _, ok := currentUser(c); !ok {
		c.JSON(http.StatusUnauthorized, ErrorResponse{Error: "unauthorized"})
		return
	}

	var (
		list []*store.Status
		err  error
	)
	if raw := c.Query("user_id"); raw != "" {
		userID, parseErr := strconv.ParseInt(raw, 10, 64)
		if parseErr != nil || userID <= 0 {
			c.JSON(http.StatusBadRequest, ErrorResponse{Error: "invalid user_id"})
			return
		}
		list, err = h.statuses.ListForUser(c.Request.Context(), userID)
	} else {
		list, err = h.statuses.List(c.Request.Context())
	}
	if err != nil {
		h.log.Error().Err(err).Msg("failed to list statuses")
		c.JSON(http.StatusInternalServerError, ErrorResponse{Error: "internal server error"})
		return
	}

	response := make([]StatusResponse, 0, len(list))
	for _, st := range list {
		response = append(response, statusResponse(st))
	}
	c.JSON(http.StatusOK, response)
}

func (h *StatusHandlers) writeStatusError(c *gin.Context, err error) {
	switch {
	case errors.Is(err, statuses.ErrEmptyContent):
		c.JSON(http.StatusBadRequest, ErrorResponse{Error: "status content is empty"})
	case errors.Is(err, statuses.ErrInvalidKind):
		c.JSON(http.StatusBadRequest, ErrorResponse{Error: "invalid status kind"})
	default:
		h.log.Error().Err(err).Msg("failed to create status")
		c.JSON(http.StatusInternalServerError, ErrorResponse{Error: "internal server error"})
	}
}
