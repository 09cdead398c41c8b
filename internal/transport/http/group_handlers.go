package http

import (
	"errors"
	"net/http"
	"strconv"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/rs/zerolog"

	"github.com/pulsechat/pulsechat-server/internal/service/groups"
	"github.com/pulsechat/pulsechat-server/internal/store"
)

// GroupHandlers provides HTTP handlers for group management endpoints.
type GroupHandlers struct {
	groups *groups.Service
	log    *zerolog.Logger
}

// NewGroupHandlers creates a new group handlers instance.
func NewGroupHandlers(svc *groups.Service, logger *zerolog.Logger) *GroupHandlers {
	return &GroupHandlers{
		groups: svc,
		log:    logger,
	}
}

// CreateGroupRequest represents the create group request body.
type CreateGroupRequest struct {
	Name      string  `json:"name" binding:"required,min=1,max=64"`
	MemberIDs []int64 `json:"member_ids"`
}

// AddMemberRequest represents the add member request body.
type AddMemberRequest struct {
	UserID int64 `json:"user_id" binding:"required"`
}

// GroupResponse represents a group in API responses.
type GroupResponse struct {
	ID        int64  `json:"id"`
	Name      string `json:"name"`
	OwnerID   int64  `json:"owner_id"`
	CreatedAt string `json:"created_at"`
}

func groupResponse(g *store.Group) GroupResponse {
	return GroupResponse{
		ID:        g.ID,
		Name:      g.Name,
		OwnerID:   g.OwnerID,
		CreatedAt: g.CreatedAt.Format(time.RFC3339),
	}
}

// CreateGroup handles group creation.
// POST /api/groups
func (h *GroupHandlers) CreateGroup(c *gin.Context) {
	uid, ok := currentUser(c)
	if !ok {
		c.JSON(http.StatusUnauthorized, ErrorResponse{Error: "unauthorized"})
		return
	}

	var req CreateGroupRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		h.log.Debug().Err(err).Msg("invalid create group request")
		c.JSON(http.StatusBadRequest, ErrorResponse{Error: "invalid request body"})
		return
	}

	group, err := h.groups.Create(c.Request.Context(), uid, req.Name, req.MemberIDs)
	if err != nil {
		if errors.Is(err, groups.ErrInvalidName) {
			c.JSON(http.StatusBadRequest, ErrorResponse{Error: "invalid group name"})
			return
		}
		h.log.Error().Err(err).Msg("failed to create group")
		c.JSON(http.StatusInternalServerError, ErrorResponse{Error: "internal server error"})
		return
	}

	c.JSON(http.StatusCreated, groupResponse(group))
}

// ListGroups returns the caller's groups.
// GET /api/groups
func (h *GroupHandlers) ListGroups(c *gin.Context) {
	uid, ok := currentUser(c)
	if !ok {
		c.JSON(http.StatusUnauthorized, ErrorResponse{Error: "unauthorized"})
		return
	}

	list, err := h.groups.List(c.Request.Context(), uid)
	if err != nil {
		h.log.Error().Err(err).Msg("failed to list groups")
		c.JSON(http.StatusInternalServerError, ErrorResponse{Error: "internal server error"})
		return
	}

	response := make([]GroupResponse, 0, len(list))
	for _, g := range list {
		response = append(response, groupResponse(g))
	}
	c.JSON(http.StatusOK, response)
}

// DeleteGroup deletes a group, owner only.
// DELETE /api/groups/:id
func (h *GroupHandlers) DeleteGroup(c *gin.Context) {
	uid, ok := currentUser(c)
	if !ok {
		c.JSON(http.StatusUnauthorized, ErrorResponse{Error: "unauthorized"})
		return
	}

	groupID, ok := pathID(c, "id")
	if !ok {
		return
	}

	if err := h.groups.Delete(c.Request.Context(), uid, groupID); err != nil {
		h.writeGroupError(c, err, "failed to delete group")
		return
	}
	c.Status(http.StatusNoContent)
}

// ListMembers returns the member ids of a group, members only.
// GET /api/groups/:id/members
func (h *GroupHandlers) ListMembers(c *gin.Context) {
	uid, ok := currentUser(c)
	if !ok {
		c.JSON(http.StatusUnauthorized, ErrorResponse{Error: "unauthorized"})
		return
	}

	groupID, ok := pathID(c, "id")
	if !ok {
		return
	}

	members, err := h.groups.Members(c.Request.Context(), uid, groupID)
	if err != nil {
		h.writeGroupError(c, err, "failed to list members")
		return
	}
	c.JSON(http.StatusOK, gin.H{"members": members})
}

// AddMember invites a user into a group.
// POST /api/groups/:id/members
func (h *GroupHandlers) AddMember(c *gin.Context) {
	uid, ok := currentUser(c)
	if !ok {
		c.JSON(http.StatusUnauthorized, ErrorResponse{Error: "unauthorized"})
		return
	}

	groupID, ok := pathID(c, "id")
	if !ok {
		return
	}

	var req AddMemberRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, ErrorResponse{Error: "invalid request body"})
		return
	}

	if err := h.groups.AddMember(c.Request.Context(), uid, groupID, req.UserID); err != nil {
		h.writeGroupError(c, err, "failed to add member")
		return
	}
	c.Status(http.StatusNoContent)
}

// RemoveMember removes a user from a group, owner only.
// DELETE /api/groups/:id/members/:user_id
func (h *GroupHandlers) RemoveMember(c *gin.Context) {
	uid, ok := currentUser(c)
	if !ok {
		c.JSON(http.StatusUnauthorized, ErrorResponse{Error: "unauthorized"})
		return
	}

	groupID, ok := pathID(c, "id")
	if !ok {
		return
	}
	memberID, ok := pathID(c, "user_id")
	if !ok {
		return
	}

	if err := h.groups.RemoveMember(c.Request.Context(), uid, groupID, memberID); err != nil {
		h.writeGroupError(c, err, "failed to remove member")
		return
	}
	c.Status(http.StatusNoContent)
}

// ExitGroup removes the caller from a group.
// POST /api/groups/:id/exit
func (h *GroupHandlers) ExitGroup(c *gin.Context) {
	uid, ok := currentUser(c)
	if !ok {
		c.JSON(http.StatusUnauthorized, ErrorResponse{Error: "unauthorized"})
		return
	}

	groupID, ok := pathID(c, "id")
	if !ok {
		return
	}

	if err := h.groups.Exit(c.Request.Context(), uid, groupID); err != nil {
		h.writeGroupError(c, err, "failed to exit group")
		return
	}
	c.Status(http.StatusNoContent)
}

func (h *GroupHandlers) writeGroupError(c *gin.Context, err error, logMsg string) {
	switch {
	case errors.Is(err, groups.ErrGroupNotFound):
		c.JSON(http.StatusNotFound, ErrorResponse{Error: "group not found"})
	case errors.Is(err, groups.ErrNotMember):
		c.JSON(http.StatusForbidden, ErrorResponse{Error: "not a group member"})
	case errors.Is(err, groups.ErrNotOwner):
		c.JSON(http.StatusForbidden, ErrorResponse{Error: "owner only"})
	default:
		h.log.Error().Err(err).Msg(logMsg)
		c.JSON(http.StatusInternalServerError, ErrorResponse{Error: "internal server error"})
	}
}

// pathID parses an int64 path parameter, writing a 400 on failure.
func pathID(c *gin.Context, name string) (int64, bool) {
	id, err := strconv.ParseInt(c.Param(name), 10, 64)
	if err != nil || id <= 0 {
		c.JSON(http.StatusBadRequest, ErrorResponse{Error: "invalid " + name})
		return 0, false
	}
	return id, true
}
