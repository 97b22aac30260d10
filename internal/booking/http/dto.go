package http

import (
	"time"

	"github.com/abinnihal/labflow-computer-lab-management-system-sub000/internal/booking"
	"github.com/abinnihal/labflow-computer-lab-management-system-sub000/internal/pkg/request"
)

// BookingBody is the JSON body of create, update and availability calls.
type BookingBody struct {
	booking.Request
	Override bool `json:"override"`
}

type ListBookingsRequest struct {
	request.ListParams
	LabID       string     `form:"lab_id" binding:"omitempty,uuid"`
	RequesterID string     `form:"requester_id" binding:"omitempty,uuid"`
	Status      string     `form:"status" binding:"omitempty,oneof=PENDING APPROVED REJECTED COMPLETED"`
	From        *time.Time `form:"from" time_format:"2006-01-02T15:04:05Z07:00"`
	To          *time.Time `form:"to" time_format:"2006-01-02T15:04:05Z07:00"`
}

type RequesterResponse struct {
	ID   string `json:"id"`
	Name string `json:"name"`
	Role string `json:"role"`
}

type LogEntryResponse struct {
	ID        int64     `json:"id"`
	Action    string    `json:"action"`
	ActorID   string    `json:"actor_id"`
	ActorName string    `json:"actor_name"`
	Detail    string    `json:"detail,omitempty"`
	CreatedAt time.Time `json:"created_at"`
}

type BookingResponse struct {
	ID          string             `json:"id"`
	LabID       string             `json:"lab_id"`
	Requester   RequesterResponse  `json:"requester"`
	Subject     string             `json:"subject"`
	StartTime   time.Time          `json:"start_time"`
	EndTime     time.Time          `json:"end_time"`
	SystemCount int                `json:"system_count"`
	Status      string             `json:"status"`
	Override    bool               `json:"override"`
	CreatedAt   time.Time          `json:"created_at"`
	UpdatedAt   time.Time          `json:"updated_at"`
	Logs        []LogEntryResponse `json:"logs,omitempty"`
}

func NewBookingResponse(b *booking.Booking) BookingResponse {
	resp := BookingResponse{
		ID:    b.ID,
		LabID: b.LabID,
		Requester: RequesterResponse{
			ID:   b.Requester.ID,
			Name: b.Requester.Name,
			Role: b.Requester.Role,
		},
		Subject:     b.Subject,
		StartTime:   b.StartTime,
		EndTime:     b.EndTime,
		SystemCount: b.SystemCount,
		Status:      string(b.Status),
		Override:    b.Override,
		CreatedAt:   b.CreatedAt,
		UpdatedAt:   b.UpdatedAt,
	}
	for _, e := range b.Logs {
		resp.Logs = append(resp.Logs, LogEntryResponse{
			ID:        e.ID,
			Action:    string(e.Action),
			ActorID:   e.ActorID,
			ActorName: e.ActorName,
			Detail:    e.Detail,
			CreatedAt: e.CreatedAt,
		})
	}
	return resp
}

type AvailabilityResponse struct {
	Available          bool             `json:"available"`
	Reason             string           `json:"reason,omitempty"`
	Message            string           `json:"message,omitempty"`
	ConflictingBooking *BookingResponse `json:"conflicting_booking,omitempty"`
}

func NewAvailabilityResponse(res booking.ConflictResult) AvailabilityResponse {
	if !res.HasConflict {
		return AvailabilityResponse{Available: true}
	}
	resp := AvailabilityResponse{
		Reason:  booking.Kind(res.Err),
		Message: res.Message,
	}
	if res.ConflictingBooking != nil {
		cb := NewBookingResponse(res.ConflictingBooking)
		resp.ConflictingBooking = &cb
	}
	return resp
}
