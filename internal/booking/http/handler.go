package http

import (
	"context"
	"encoding/json"
	"net/http"

	"github.com/gin-gonic/gin"

	"github.com/abinnihal/labflow-computer-lab-management-system-sub000/internal/auth"
	"github.com/abinnihal/labflow-computer-lab-management-system-sub000/internal/booking"
	"github.com/abinnihal/labflow-computer-lab-management-system-sub000/internal/pkg/request"
	"github.com/abinnihal/labflow-computer-lab-management-system-sub000/internal/pkg/response"
)

type Handler struct {
	service booking.Service
}

func NewHandler(service booking.Service) *Handler {
	return &Handler{service: service}
}

// bindBody decodes the JSON body strictly; unknown fields are an error.
func bindBody(c *gin.Context) (BookingBody, bool) {
	var body BookingBody
	dec := json.NewDecoder(c.Request.Body)
	dec.DisallowUnknownFields()
	if err := dec.Decode(&body); err != nil {
		response.BadRequest(c, "invalid request body", err)
		return BookingBody{}, false
	}
	return body, true
}

func bindID(c *gin.Context) (string, bool) {
	var uri request.ByIDRequest
	if err := c.ShouldBindUri(&uri); err != nil {
		response.BadRequest(c, "invalid booking id", err)
		return "", false
	}
	return uri.ID, true
}

//
// POST /v1/bookings/availability
//

func (h *Handler) CheckAvailability(c *gin.Context) {
	body, ok := bindBody(c)
	if !ok {
		return
	}

	res, err := h.service.CheckAvailability(c.Request.Context(), auth.GetUserID(c), body.Request, body.Override)
	if err != nil {
		response.Error(c, err)
		return
	}

	c.JSON(http.StatusOK, NewAvailabilityResponse(res))
}

//
// POST /v1/bookings
//

func (h *Handler) Create(c *gin.Context) {
	body, ok := bindBody(c)
	if !ok {
		return
	}

	b, err := h.service.Create(c.Request.Context(), auth.GetUserID(c), body.Request, body.Override)
	if err != nil {
		response.Error(c, err)
		return
	}

	c.JSON(http.StatusCreated, NewBookingResponse(b))
}

//
// GET /v1/bookings
//

func (h *Handler) List(c *gin.Context) {
	var req ListBookingsRequest
	if err := c.ShouldBindQuery(&req); err != nil {
		response.BadRequest(c, "invalid query parameters", err)
		return
	}
	req.Normalize()

	filter := booking.Filter{
		RequesterID: req.RequesterID,
		LabID:       req.LabID,
		Status:      booking.Status(req.Status),
		From:        req.From,
		To:          req.To,
		Page:        req.Page,
		PageSize:    req.PageSize,
		SortOrder:   req.SortOrder,
	}

	bookings, total, err := h.service.List(c.Request.Context(), auth.GetUserID(c), filter)
	if err != nil {
		response.Error(c, err)
		return
	}

	items := make([]BookingResponse, len(bookings))
	for i, b := range bookings {
		items[i] = NewBookingResponse(b)
	}

	c.JSON(http.StatusOK, response.NewPageResponse(items, req.Page, req.PageSize, total))
}

//
// GET /v1/bookings/:id
//

func (h *Handler) Get(c *gin.Context) {
	id, ok := bindID(c)
	if !ok {
		return
	}

	b, err := h.service.GetByID(c.Request.Context(), auth.GetUserID(c), id)
	if err != nil {
		response.Error(c, err)
		return
	}

	c.JSON(http.StatusOK, NewBookingResponse(b))
}

//
// PUT /v1/bookings/:id
//

func (h *Handler) Update(c *gin.Context) {
	id, ok := bindID(c)
	if !ok {
		return
	}
	body, ok := bindBody(c)
	if !ok {
		return
	}

	b, err := h.service.Update(c.Request.Context(), auth.GetUserID(c), id, body.Request, body.Override)
	if err != nil {
		response.Error(c, err)
		return
	}

	c.JSON(http.StatusOK, NewBookingResponse(b))
}

type lifecycleFunc func(ctx context.Context, actorID, bookingID string) (*booking.Booking, error)

// transition serves the body-less lifecycle actions.
func (h *Handler) transition(c *gin.Context, fn lifecycleFunc) {
	id, ok := bindID(c)
	if !ok {
		return
	}

	b, err := fn(c.Request.Context(), auth.GetUserID(c), id)
	if err != nil {
		response.Error(c, err)
		return
	}

	c.JSON(http.StatusOK, NewBookingResponse(b))
}

//
// POST /v1/bookings/:id/cancel
//

func (h *Handler) Cancel(c *gin.Context) {
	h.transition(c, h.service.Cancel)
}

//
// POST /v1/bookings/:id/approve
//

func (h *Handler) Approve(c *gin.Context) {
	h.transition(c, h.service.Approve)
}

//
// POST /v1/bookings/:id/reject
//

func (h *Handler) Reject(c *gin.Context) {
	h.transition(c, h.service.Reject)
}
