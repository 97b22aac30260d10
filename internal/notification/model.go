package notification

import (
	"errors"
	"time"
)

var (
	ErrNotFound         = errors.New("notification not found")
	ErrQueueFull        = errors.New("notification queue is full")
	ErrDispatcherClosed = errors.New("notification dispatcher is closed")
)

// GroupApprovers addresses every user allowed to approve bookings.
const GroupApprovers = "group:approvers"

type Severity string

const (
	SeverityInfo    Severity = "info"
	SeveritySuccess Severity = "success"
	SeverityWarning Severity = "warning"
	SeverityError   Severity = "error"
)

// Event is a fire-and-forget message emitted by the booking lifecycle.
// Recipient is either a user id or a group address such as GroupApprovers.
type Event struct {
	SenderID  string    `json:"sender_id"`
	Recipient string    `json:"recipient"`
	Message   string    `json:"message"`
	Severity  Severity  `json:"severity"`
	BookingID string    `json:"booking_id,omitempty"`
	CreatedAt time.Time `json:"created_at"`
}

// Notification is an Event stored in the inbox.
type Notification struct {
	ID string
	Event
	ReadAt *time.Time
}

// Filter defines parameters for listing inbox entries.
type Filter struct {
	Recipients []string
	UnreadOnly bool
	Page       int
	PageSize   int
}
