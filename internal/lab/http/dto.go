package http

import (
	"time"

	"github.com/abinnihal/labflow-computer-lab-management-system-sub000/internal/lab"
	"github.com/abinnihal/labflow-computer-lab-management-system-sub000/internal/pkg/request"
)

type LabResponse struct {
	ID               string     `json:"id"`
	Name             string     `json:"name"`
	Capacity         int        `json:"capacity"`
	Status           string     `json:"status"`
	MaintenanceUntil *time.Time `json:"maintenance_until,omitempty"`
	CreatedAt        time.Time  `json:"created_at"`
}

func NewLabResponse(l *lab.Lab) LabResponse {
	return LabResponse{
		ID:               l.ID,
		Name:             l.Name,
		Capacity:         l.Capacity,
		Status:           string(l.Status),
		MaintenanceUntil: l.MaintenanceUntil,
		CreatedAt:        l.CreatedAt,
	}
}

type ListLabsRequest struct {
	request.ListParams
	Status string `form:"status" binding:"omitempty,oneof=ACTIVE MAINTENANCE OFFLINE"`
}

type CreateLabRequest struct {
	Name             string     `json:"name" binding:"required,max=100"`
	Capacity         int        `json:"capacity" binding:"required,min=1"`
	Status           string     `json:"status" binding:"omitempty,oneof=ACTIVE MAINTENANCE OFFLINE"`
	MaintenanceUntil *time.Time `json:"maintenance_until"`
}

type UpdateLabRequest struct {
	Name             *string    `json:"name" binding:"omitempty,max=100"`
	Capacity         *int       `json:"capacity" binding:"omitempty,min=1"`
	Status           *string    `json:"status" binding:"omitempty,oneof=ACTIVE MAINTENANCE OFFLINE"`
	MaintenanceUntil *time.Time `json:"maintenance_until"`
}
