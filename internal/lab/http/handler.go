package http

import (
	"context"
	"errors"
	"net/http"

	"github.com/gin-gonic/gin"

	"github.com/abinnihal/labflow-computer-lab-management-system-sub000/internal/auth"
	"github.com/abinnihal/labflow-computer-lab-management-system-sub000/internal/lab"
	"github.com/abinnihal/labflow-computer-lab-management-system-sub000/internal/pkg/request"
	"github.com/abinnihal/labflow-computer-lab-management-system-sub000/internal/pkg/response"
	"github.com/abinnihal/labflow-computer-lab-management-system-sub000/internal/user"
)

// UserLookup resolves the stored account behind an authenticated request.
type UserLookup interface {
	GetByID(ctx context.Context, id string) (*user.User, error)
}

type Handler struct {
	service lab.Service
	users   UserLookup
}

func NewHandler(service lab.Service, users UserLookup) *Handler {
	return &Handler{
		service: service,
		users:   users,
	}
}

// requireAdmin writes a 403 and returns false unless the caller is privileged.
func (h *Handler) requireAdmin(c *gin.Context) bool {
	u, err := h.users.GetByID(c.Request.Context(), auth.GetUserID(c))
	if err != nil || !u.IsPrivileged() {
		c.JSON(http.StatusForbidden, response.ErrorResponse{Error: "forbidden: only administrators can manage labs"})
		return false
	}
	return true
}

func (h *Handler) List(c *gin.Context) {
	var req ListLabsRequest
	if err := c.ShouldBindQuery(&req); err != nil {
		response.BadRequest(c, "invalid query parameters", err)
		return
	}
	req.Normalize()

	labs, total, err := h.service.List(c.Request.Context(), lab.Filter{
		Status:    lab.Status(req.Status),
		Page:      req.Page,
		PageSize:  req.PageSize,
		SortOrder: req.SortOrder,
	})
	if err != nil {
		response.Error(c, err)
		return
	}

	items := make([]LabResponse, len(labs))
	for i, l := range labs {
		items[i] = NewLabResponse(l)
	}

	c.JSON(http.StatusOK, response.NewPageResponse(items, req.Page, req.PageSize, total))
}

func (h *Handler) Get(c *gin.Context) {
	var uri request.ByIDRequest
	if err := c.ShouldBindUri(&uri); err != nil {
		response.BadRequest(c, "invalid lab id", err)
		return
	}

	l, err := h.service.GetByID(c.Request.Context(), uri.ID)
	if err != nil {
		writeLabError(c, err)
		return
	}

	c.JSON(http.StatusOK, NewLabResponse(l))
}

func (h *Handler) Create(c *gin.Context) {
	var body CreateLabRequest
	if err := c.ShouldBindJSON(&body); err != nil {
		response.BadRequest(c, "invalid request body", err)
		return
	}
	if !h.requireAdmin(c) {
		return
	}

	l, err := h.service.Create(c.Request.Context(), lab.CreateRequest{
		Name:             body.Name,
		Capacity:         body.Capacity,
		Status:           lab.Status(body.Status),
		MaintenanceUntil: body.MaintenanceUntil,
	})
	if err != nil {
		writeLabError(c, err)
		return
	}

	c.JSON(http.StatusCreated, NewLabResponse(l))
}

func (h *Handler) Update(c *gin.Context) {
	var uri request.ByIDRequest
	if err := c.ShouldBindUri(&uri); err != nil {
		response.BadRequest(c, "invalid lab id", err)
		return
	}

	var body UpdateLabRequest
	if err := c.ShouldBindJSON(&body); err != nil {
		response.BadRequest(c, "invalid request body", err)
		return
	}
	if !h.requireAdmin(c) {
		return
	}

	req := lab.UpdateRequest{
		Name:             body.Name,
		Capacity:         body.Capacity,
		MaintenanceUntil: body.MaintenanceUntil,
	}
	if body.Status != nil {
		s := lab.Status(*body.Status)
		req.Status = &s
	}

	l, err := h.service.Update(c.Request.Context(), uri.ID, req)
	if err != nil {
		writeLabError(c, err)
		return
	}

	c.JSON(http.StatusOK, NewLabResponse(l))
}

func writeLabError(c *gin.Context, err error) {
	switch {
	case errors.Is(err, lab.ErrNotFound):
		c.JSON(http.StatusNotFound, response.ErrorResponse{Error: err.Error()})
	case errors.Is(err, lab.ErrEmptyName), errors.Is(err, lab.ErrInvalidCapacity), errors.Is(err, lab.ErrInvalidStatus):
		c.JSON(http.StatusBadRequest, response.ErrorResponse{Error: err.Error()})
	default:
		response.Error(c, err)
	}
}
