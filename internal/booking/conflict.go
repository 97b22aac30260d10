package booking

import (
	"fmt"
	"sort"
	"time"

	"github.com/abinnihal/labflow-computer-lab-management-system-sub000/internal/lab"
)

// CheckOptions tunes a conflict check.
type CheckOptions struct {
	// Override skips the availability and overlap checks. Callers must only
	// set it for privileged actors.
	Override bool
	// ExcludeID ignores a booking's own slot when re-checking an edit.
	ExcludeID string
	// Now is the evaluation clock for derived completion.
	Now time.Time
	// Location formats times in messages. Nil means UTC.
	Location *time.Location
}

// ConflictResult is the verdict of Check. Err is a typed error whenever
// HasConflict is set.
type ConflictResult struct {
	HasConflict        bool
	Message            string
	ConflictingBooking *Booking
	Err                error
}

func reject(err error, occupant *Booking) ConflictResult {
	return ConflictResult{
		HasConflict:        true,
		Message:            err.Error(),
		ConflictingBooking: occupant,
		Err:                err,
	}
}

// Check decides whether slot can be granted on l given the lab's bookings.
// It has no side effects. The checks run in a fixed order and the first
// failure wins:
//
//  1. the lab exists
//  2. the lab is ACTIVE (skipped on override)
//  3. the interval is non-empty and does not start in the past
//  4. the system count fits the lab's capacity
//  5. no active booking overlaps (skipped on override)
//
// Overlaps are scanned by (start time, id), so the earliest-starting
// occupant is the one reported.
func Check(slot Slot, l *lab.Lab, bookings []*Booking, opts CheckOptions) ConflictResult {
	loc := opts.Location
	if loc == nil {
		loc = time.UTC
	}

	if l == nil {
		return reject(labNotFoundError(), nil)
	}

	if !opts.Override && !l.Available() {
		return reject(unavailableError(unavailableMessage(l, loc)), nil)
	}

	if !slot.Start.Before(slot.End) {
		return reject(validationError("start time must be before end time"), nil)
	}

	if slot.SystemCount > l.Capacity {
		return reject(capacityError(fmt.Sprintf(
			"requested %d systems but %s only has %d", slot.SystemCount, l.Name, l.Capacity,
		)), nil)
	}

	if opts.Override {
		return ConflictResult{}
	}

	if occupant := firstOverlap(slot, bookings, opts.ExcludeID, opts.Now); occupant != nil {
		msg := fmt.Sprintf("%s is already booked by %s for %q from %s",
			l.Name, occupant.Requester.Name, occupant.Subject, formatWindow(occupant.StartTime, occupant.EndTime, loc))
		return reject(conflictError(occupant, msg), occupant)
	}

	return ConflictResult{}
}

// Overlapping returns every active booking colliding with slot, ordered by
// start time then id.
func Overlapping(slot Slot, bookings []*Booking, excludeID string, now time.Time) []*Booking {
	var out []*Booking
	for _, b := range sortedByStart(bookings) {
		if b.ID == excludeID || b.LabID != slot.LabID || !b.Active(now) {
			continue
		}
		if b.Overlaps(slot.Start, slot.End) {
			out = append(out, b)
		}
	}
	return out
}

func firstOverlap(slot Slot, bookings []*Booking, excludeID string, now time.Time) *Booking {
	if hits := Overlapping(slot, bookings, excludeID, now); len(hits) > 0 {
		return hits[0]
	}
	return nil
}

func sortedByStart(bookings []*Booking) []*Booking {
	out := make([]*Booking, len(bookings))
	copy(out, bookings)
	sort.SliceStable(out, func(i, j int) bool {
		if !out[i].StartTime.Equal(out[j].StartTime) {
			return out[i].StartTime.Before(out[j].StartTime)
		}
		return out[i].ID < out[j].ID
	})
	return out
}

func unavailableMessage(l *lab.Lab, loc *time.Location) string {
	switch {
	case l.Status == lab.StatusMaintenance && l.MaintenanceUntil != nil:
		return fmt.Sprintf("%s is under maintenance until %s", l.Name, l.MaintenanceUntil.In(loc).Format("2006-01-02 15:04"))
	case l.Status == lab.StatusMaintenance:
		return fmt.Sprintf("%s is under maintenance", l.Name)
	default:
		return fmt.Sprintf("%s is offline", l.Name)
	}
}

// formatWindow renders "2006-01-02 09:00 to 11:00", spelling out the end
// date only when the window crosses midnight.
func formatWindow(start, end time.Time, loc *time.Location) string {
	s, e := start.In(loc), end.In(loc)
	if s.Year() == e.Year() && s.YearDay() == e.YearDay() {
		return fmt.Sprintf("%s to %s", s.Format("2006-01-02 15:04"), e.Format("15:04"))
	}
	return fmt.Sprintf("%s to %s", s.Format("2006-01-02 15:04"), e.Format("2006-01-02 15:04"))
}
