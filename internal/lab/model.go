package lab

import (
	"errors"
	"time"
)

var (
	ErrNotFound        = errors.New("lab not found")
	ErrEmptyName       = errors.New("name cannot be empty")
	ErrInvalidCapacity = errors.New("capacity must be greater than zero")
	ErrInvalidStatus   = errors.New("invalid lab status")
)

// Status is the operational state of a lab.
type Status string

const (
	StatusActive      Status = "ACTIVE"
	StatusMaintenance Status = "MAINTENANCE"
	StatusOffline     Status = "OFFLINE"
)

func (s Status) Valid() bool {
	switch s {
	case StatusActive, StatusMaintenance, StatusOffline:
		return true
	}
	return false
}

// Lab is a bookable computer lab with a fixed number of systems.
type Lab struct {
	ID       string
	Name     string
	Capacity int
	Status   Status
	// MaintenanceUntil is only meaningful while Status is MAINTENANCE.
	MaintenanceUntil *time.Time
	CreatedAt        time.Time
}

// Available reports whether the lab accepts regular bookings.
func (l *Lab) Available() bool {
	return l.Status == StatusActive
}

// Filter defines parameters for listing labs.
type Filter struct {
	Status    Status
	Page      int
	PageSize  int
	SortOrder string
}

// CreateRequest holds the fields for registering a lab.
type CreateRequest struct {
	Name             string
	Capacity         int
	Status           Status
	MaintenanceUntil *time.Time
}

// UpdateRequest holds optional fields; nil means unchanged.
type UpdateRequest struct {
	Name             *string
	Capacity         *int
	Status           *Status
	MaintenanceUntil *time.Time
	ClearMaintenance bool
}
