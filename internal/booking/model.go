package booking

import (
	"time"
)

type Status string

const (
	StatusPending   Status = "PENDING"
	StatusApproved  Status = "APPROVED"
	StatusRejected  Status = "REJECTED"
	StatusCompleted Status = "COMPLETED"
)

func (s Status) Valid() bool {
	switch s {
	case StatusPending, StatusApproved, StatusRejected, StatusCompleted:
		return true
	}
	return false
}

// Terminal reports whether no further transition may leave s.
func (s Status) Terminal() bool {
	return s == StatusRejected || s == StatusCompleted
}

type Action string

const (
	ActionCreated   Action = "CREATED"
	ActionUpdated   Action = "UPDATED"
	ActionApproved  Action = "APPROVED"
	ActionRejected  Action = "REJECTED"
	ActionCancelled Action = "CANCELLED"
	ActionOverride  Action = "OVERRIDE"
)

// Requester is the user a booking is held for, captured at booking time.
type Requester struct {
	ID   string
	Name string
	Role string
}

type Booking struct {
	ID          string
	LabID       string
	Requester   Requester
	Subject     string
	StartTime   time.Time
	EndTime     time.Time
	SystemCount int
	Status      Status
	// Override is set when the booking was accepted by bypassing the
	// availability or overlap checks.
	Override  bool
	CreatedAt time.Time
	UpdatedAt time.Time
	Logs      []LogEntry
}

// EffectiveStatus returns the status as seen at now. An approved booking
// whose end has passed reads as COMPLETED; this is never stored.
func (b *Booking) EffectiveStatus(now time.Time) Status {
	if b.Status == StatusApproved && b.EndTime.Before(now) {
		return StatusCompleted
	}
	return b.Status
}

// Active reports whether the booking still holds its slot at now.
func (b *Booking) Active(now time.Time) bool {
	return !b.EffectiveStatus(now).Terminal()
}

// Overlaps uses half-open intervals, so back-to-back bookings do not collide.
func (b *Booking) Overlaps(start, end time.Time) bool {
	return start.Before(b.EndTime) && b.StartTime.Before(end)
}

// LogEntry is one immutable audit record.
type LogEntry struct {
	ID        int64
	BookingID string
	Action    Action
	ActorID   string
	ActorName string
	Detail    string
	CreatedAt time.Time
}

// Filter defines parameters for listing bookings. Status filtering is
// evaluated against the effective status at Now.
type Filter struct {
	RequesterID string
	LabID       string
	Status      Status
	From        *time.Time // bookings ending after From
	To          *time.Time // bookings starting before To
	Now         time.Time
	Page        int
	PageSize    int
	SortOrder   string
}

// Fields holds the columns an update may overwrite; nil means unchanged.
type Fields struct {
	LabID       *string
	Subject     *string
	StartTime   *time.Time
	EndTime     *time.Time
	SystemCount *int
	Status      *Status
	Override    *bool
}
