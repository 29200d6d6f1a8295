package api

import (
	"net/http"
	"strconv"

	"github.com/Haabeel/lark-sync/internal/auth"
	"github.com/Haabeel/lark-sync/internal/models"
	"github.com/Haabeel/lark-sync/internal/service"
	"github.com/labstack/echo/v4"
)

// ChannelHandler handles channel and membership endpoints.
type ChannelHandler struct {
	service *service.ChannelService
}

// NewChannelHandler creates a ChannelHandler.
func NewChannelHandler(svc *service.ChannelService) *ChannelHandler {
	return &ChannelHandler{service: svc}
}

type createChannelRequest struct {
	Name             string  `json:"name"`
	ProjectMemberIDs []int64 `json:"project_member_ids"`
}

// CreateChannel handles POST /api/v1/projects/:id/channels.
func (h *ChannelHandler) CreateChannel(c echo.Context) error {
	projectID, err := strconv.ParseInt(c.Param("id"), 10, 64)
	if err != nil {
		return Error(c, http.StatusBadRequest, "INVALID_ID", "invalid project ID")
	}

	userID := auth.GetUserID(c)

	var req createChannelRequest
	if err := c.Bind(&req); err != nil {
		return Error(c, http.StatusBadRequest, "INVALID_BODY", "invalid request body")
	}

	ch, err := h.service.CreateProjectChannel(c.Request().Context(), projectID, req.Name, userID, req.ProjectMemberIDs)
	if err != nil {
		return mapServiceError(c, err)
	}

	return c.JSON(http.StatusCreated, ch)
}

// GetChannel handles GET /api/v1/channels/:id.
func (h *ChannelHandler) GetChannel(c echo.Context) error {
	channelID, err := strconv.ParseInt(c.Param("id"), 10, 64)
	if err != nil {
		return Error(c, http.StatusBadRequest, "INVALID_ID", "invalid channel ID")
	}

	userID := auth.GetUserID(c)

	ch, err := h.service.GetChannel(c.Request().Context(), channelID, userID)
	if err != nil {
		return mapServiceError(c, err)
	}

	return c.JSON(http.StatusOK, ch)
}

type openDirectRequest struct {
	RecipientID int64 `json:"recipient_id,string"`
}

// OpenDirect handles POST /api/v1/channels/direct.
func (h *ChannelHandler) OpenDirect(c echo.Context) error {
	userID := auth.GetUserID(c)

	var req openDirectRequest
	if err := c.Bind(&req); err != nil {
		return Error(c, http.StatusBadRequest, "INVALID_BODY", "invalid request body")
	}

	ch, err := h.service.GetOrCreateDirect(c.Request().Context(), userID, req.RecipientID)
	if err != nil {
		return mapServiceError(c, err)
	}

	return c.JSON(http.StatusOK, ch)
}

// AddMember handles PUT /api/v1/channels/:id/members/:member_id. The type
// query parameter selects between a user ID (default) and a project-member
// ID.
func (h *ChannelHandler) AddMember(c echo.Context) error {
	member, ok := parseMember(c)
	if !ok {
		return Error(c, http.StatusBadRequest, "INVALID_ID", "invalid channel or member ID")
	}

	if err := h.service.AddMember(c.Request().Context(), member); err != nil {
		return mapServiceError(c, err)
	}

	return c.NoContent(http.StatusNoContent)
}

// RemoveMember handles DELETE /api/v1/channels/:id/members/:member_id.
func (h *ChannelHandler) RemoveMember(c echo.Context) error {
	member, ok := parseMember(c)
	if !ok {
		return Error(c, http.StatusBadRequest, "INVALID_ID", "invalid channel or member ID")
	}

	if err := h.service.RemoveMember(c.Request().Context(), member); err != nil {
		return mapServiceError(c, err)
	}

	return c.NoContent(http.StatusNoContent)
}

func parseMember(c echo.Context) (models.ChannelMember, bool) {
	channelID, err := strconv.ParseInt(c.Param("id"), 10, 64)
	if err != nil {
		return models.ChannelMember{}, false
	}
	memberID, err := strconv.ParseInt(c.Param("member_id"), 10, 64)
	if err != nil {
		return models.ChannelMember{}, false
	}

	member := models.ChannelMember{ChannelID: channelID}
	if c.QueryParam("type") == "project_member" {
		member.ProjectMemberID = &memberID
	} else {
		member.UserID = &memberID
	}
	return member, true
}
