package http

import (
	"context"
	"errors"
	"net/http"

	"github.com/gin-gonic/gin"

	"github.com/abinnihal/labflow-computer-lab-management-system-sub000/internal/auth"
	"github.com/abinnihal/labflow-computer-lab-management-system-sub000/internal/notification"
	"github.com/abinnihal/labflow-computer-lab-management-system-sub000/internal/pkg/request"
	"github.com/abinnihal/labflow-computer-lab-management-system-sub000/internal/pkg/response"
	"github.com/abinnihal/labflow-computer-lab-management-system-sub000/internal/user"
)

// UserLookup resolves the stored account behind an authenticated request.
type UserLookup interface {
	GetByID(ctx context.Context, id string) (*user.User, error)
}

type Handler struct {
	service notification.Service
	users   UserLookup
}

func NewHandler(service notification.Service, users UserLookup) *Handler {
	return &Handler{
		service: service,
		users:   users,
	}
}

func (h *Handler) reader(c *gin.Context) (notification.Reader, bool) {
	u, err := h.users.GetByID(c.Request.Context(), auth.GetUserID(c))
	if err != nil {
		c.JSON(http.StatusUnauthorized, response.ErrorResponse{Error: "user not found"})
		return notification.Reader{}, false
	}
	return notification.Reader{UserID: u.ID, Privileged: u.IsPrivileged()}, true
}

//
// GET /v1/notifications
//

func (h *Handler) List(c *gin.Context) {
	var req ListNotificationsRequest
	if err := c.ShouldBindQuery(&req); err != nil {
		response.BadRequest(c, "invalid query parameters", err)
		return
	}
	req.Normalize()

	reader, ok := h.reader(c)
	if !ok {
		return
	}

	items, total, err := h.service.List(c.Request.Context(), reader, req.Unread, req.Page, req.PageSize)
	if err != nil {
		response.Error(c, err)
		return
	}

	resp := make([]NotificationResponse, len(items))
	for i, n := range items {
		resp[i] = NewNotificationResponse(n)
	}
	c.JSON(http.StatusOK, response.NewPageResponse(resp, req.Page, req.PageSize, total))
}

//
// POST /v1/notifications/:id/read
//

func (h *Handler) MarkRead(c *gin.Context) {
	var uri request.ByIDRequest
	if err := c.ShouldBindUri(&uri); err != nil {
		response.BadRequest(c, "invalid notification id", err)
		return
	}

	reader, ok := h.reader(c)
	if !ok {
		return
	}

	if err := h.service.MarkRead(c.Request.Context(), reader, uri.ID); err != nil {
		if errors.Is(err, notification.ErrNotFound) {
			c.JSON(http.StatusNotFound, response.ErrorResponse{Error: err.Error()})
			return
		}
		response.Error(c, err)
		return
	}

	c.Status(http.StatusNoContent)
}
