package api

import (
	"net/http"
	"strconv"

	"github.com/Haabeel/lark-sync/internal/auth"
	"github.com/Haabeel/lark-sync/internal/service"
	"github.com/labstack/echo/v4"
)

// MessageHandler handles message CRUD endpoints.
type MessageHandler struct {
	service *service.MessageService
}

// NewMessageHandler creates a MessageHandler.
func NewMessageHandler(svc *service.MessageService) *MessageHandler {
	return &MessageHandler{service: svc}
}

type sendMessageRequest struct {
	Content     string                    `json:"content"`
	MemberID    *int64                    `json:"member_id,string,omitempty"`
	Attachments []service.AttachmentInput `json:"attachments,omitempty"`
}

// SendMessage handles POST /api/v1/channels/:id/messages.
func (h *MessageHandler) SendMessage(c echo.Context) error {
	channelID, err := strconv.ParseInt(c.Param("id"), 10, 64)
	if err != nil {
		return Error(c, http.StatusBadRequest, "INVALID_ID", "invalid channel ID")
	}

	userID := auth.GetUserID(c)

	var req sendMessageRequest
	if err := c.Bind(&req); err != nil {
		return Error(c, http.StatusBadRequest, "INVALID_BODY", "invalid request body")
	}

	full, err := h.service.Send(c.Request().Context(), channelID, userID, req.MemberID, req.Content, req.Attachments)
	if err != nil {
		return mapServiceError(c, err)
	}

	return c.JSON(http.StatusCreated, full)
}

// GetMessages handles GET /api/v1/channels/:id/messages.
func (h *MessageHandler) GetMessages(c echo.Context) error {
	channelID, err := strconv.ParseInt(c.Param("id"), 10, 64)
	if err != nil {
		return Error(c, http.StatusBadRequest, "INVALID_ID", "invalid channel ID")
	}

	userID := auth.GetUserID(c)

	limit := 50
	if l := c.QueryParam("limit"); l != "" {
		parsed, err := strconv.Atoi(l)
		if err != nil || parsed < 1 || parsed > 100 {
			return Error(c, http.StatusBadRequest, "INVALID_LIMIT", "limit must be 1-100")
		}
		limit = parsed
	}

	offset := 0
	if o := c.QueryParam("offset"); o != "" {
		parsed, err := strconv.Atoi(o)
		if err != nil || parsed < 0 {
			return Error(c, http.StatusBadRequest, "INVALID_OFFSET", "invalid offset")
		}
		offset = parsed
	}

	page, err := h.service.List(c.Request().Context(), channelID, userID, offset, limit)
	if err != nil {
		return mapServiceError(c, err)
	}

	return c.JSON(http.StatusOK, page)
}

type editMessageRequest struct {
	Content string `json:"content"`
}

// EditMessage handles PATCH /api/v1/channels/:id/messages/:message_id.
func (h *MessageHandler) EditMessage(c echo.Context) error {
	msgID, err := strconv.ParseInt(c.Param("message_id"), 10, 64)
	if err != nil {
		return Error(c, http.StatusBadRequest, "INVALID_ID", "invalid message ID")
	}

	userID := auth.GetUserID(c)

	var req editMessageRequest
	if err := c.Bind(&req); err != nil {
		return Error(c, http.StatusBadRequest, "INVALID_BODY", "invalid request body")
	}

	full, err := h.service.Edit(c.Request().Context(), msgID, userID, req.Content)
	if err != nil {
		return mapServiceError(c, err)
	}

	return c.JSON(http.StatusOK, full)
}

// DeleteMessage handles DELETE /api/v1/channels/:id/messages/:message_id.
func (h *MessageHandler) DeleteMessage(c echo.Context) error {
	msgID, err := strconv.ParseInt(c.Param("message_id"), 10, 64)
	if err != nil {
		return Error(c, http.StatusBadRequest, "INVALID_ID", "invalid message ID")
	}

	userID := auth.GetUserID(c)

	if err := h.service.Delete(c.Request().Context(), msgID, userID); err != nil {
		return mapServiceError(c, err)
	}

	return c.NoContent(http.StatusNoContent)
}
