package booking

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/abinnihal/labflow-computer-lab-management-system-sub000/internal/lab"
	"github.com/abinnihal/labflow-computer-lab-management-system-sub000/internal/notification"
	"github.com/abinnihal/labflow-computer-lab-management-system-sub000/internal/pkg/logger"
	"github.com/abinnihal/labflow-computer-lab-management-system-sub000/internal/pkg/metrics"
	"github.com/abinnihal/labflow-computer-lab-management-system-sub000/internal/user"
)

// UserDirectory resolves actors and requesters. Roles are always taken from
// here, never from the request.
type UserDirectory interface {
	GetByID(ctx context.Context, id string) (*user.User, error)
}

type Service interface {
	// CheckAvailability runs the conflict check without side effects.
	CheckAvailability(ctx context.Context, actorID string, req Request, override bool) (ConflictResult, error)
	Create(ctx context.Context, actorID string, req Request, override bool) (*Booking, error)
	Update(ctx context.Context, actorID, bookingID string, req Request, override bool) (*Booking, error)
	Cancel(ctx context.Context, actorID, bookingID string) (*Booking, error)
	Approve(ctx context.Context, actorID, bookingID string) (*Booking, error)
	Reject(ctx context.Context, actorID, bookingID string) (*Booking, error)
	GetByID(ctx context.Context, actorID, bookingID string) (*Booking, error)
	List(ctx context.Context, actorID string, filter Filter) ([]*Booking, int, error)
}

// Config carries the optional collaborators of the service.
type Config struct {
	Location *time.Location
	Logger   *logger.Logger
	Metrics  *metrics.Recorder
	Now      func() time.Time
}

type service struct {
	repo      Repository
	labs      lab.Registry
	users     UserDirectory
	sink      notification.Sink
	validator *RequestValidator

	loc     *time.Location
	log     *logger.Logger
	metrics *metrics.Recorder
	now     func() time.Time
}

func NewService(repo Repository, labs lab.Registry, users UserDirectory, sink notification.Sink, cfg Config) Service {
	s := &service{
		repo:      repo,
		labs:      labs,
		users:     users,
		sink:      sink,
		validator: NewRequestValidator(),
		loc:       cfg.Location,
		log:       cfg.Logger,
		metrics:   cfg.Metrics,
		now:       cfg.Now,
	}
	if s.loc == nil {
		s.loc = time.UTC
	}
	if s.log == nil {
		s.log = logger.Nop()
	}
	s.log = s.log.Named("booking")
	if s.now == nil {
		s.now = time.Now
	}
	return s
}

// actor resolves the acting user from storage.
func (s *service) actor(ctx context.Context, id string) (*user.User, error) {
	if id == "" {
		return nil, authorizationError("authentication required")
	}
	u, err := s.users.GetByID(ctx, id)
	if err != nil {
		if errors.Is(err, user.ErrNotFound) {
			return nil, authorizationError("unknown user")
		}
		return nil, fmt.Errorf("resolve actor: %w", err)
	}
	if !u.IsActive {
		return nil, authorizationError("user is inactive")
	}
	return u, nil
}

// requester decides who the booking is for. Booking for someone else
// requires a privileged actor.
func (s *service) requester(ctx context.Context, actor *user.User, requesterID string) (*user.User, error) {
	if requesterID == "" || requesterID == actor.ID {
		return actor, nil
	}
	if !actor.IsPrivileged() {
		return nil, authorizationError("only administrators can book on behalf of another user")
	}
	u, err := s.users.GetByID(ctx, requesterID)
	if err != nil {
		if errors.Is(err, user.ErrNotFound) {
			return nil, validationError("requester does not exist")
		}
		return nil, fmt.Errorf("resolve requester: %w", err)
	}
	return u, nil
}

func (s *service) lookupLab(ctx context.Context, id string) (*lab.Lab, error) {
	l, err := s.labs.GetByID(ctx, id)
	if err != nil {
		if errors.Is(err, lab.ErrNotFound) {
			return nil, nil
		}
		return nil, fmt.Errorf("load lab: %w", err)
	}
	return l, nil
}

// evaluate loads the lab and its active bookings through repo and runs Check.
func (s *service) evaluate(ctx context.Context, repo Repository, slot Slot, override bool, excludeID string, now time.Time) (ConflictResult, *lab.Lab, []*Booking, error) {
	l, err := s.lookupLab(ctx, slot.LabID)
	if err != nil {
		return ConflictResult{}, nil, nil, err
	}

	var active []*Booking
	if l != nil {
		active, err = repo.ListActiveForLab(ctx, slot.LabID, excludeID, now)
		if err != nil {
			return ConflictResult{}, nil, nil, err
		}
	}

	res := Check(slot, l, active, CheckOptions{
		Override:  override,
		ExcludeID: excludeID,
		Now:       now,
		Location:  s.loc,
	})
	if res.HasConflict {
		s.metrics.Rejection(Kind(res.Err))
	}
	return res, l, active, nil
}

func (s *service) CheckAvailability(ctx context.Context, actorID string, req Request, override bool) (ConflictResult, error) {
	if err := s.validator.Validate(req); err != nil {
		return ConflictResult{}, err
	}
	actor, err := s.actor(ctx, actorID)
	if err != nil {
		return ConflictResult{}, err
	}
	if override && !actor.IsPrivileged() {
		return ConflictResult{}, authorizationError("only administrators can override booking checks")
	}
	slot, err := req.Slot(s.loc)
	if err != nil {
		return ConflictResult{}, err
	}

	res, _, _, err := s.evaluate(ctx, s.repo, slot, override, "", s.now())
	return res, err
}

func (s *service) Create(ctx context.Context, actorID string, req Request, override bool) (b *Booking, err error) {
	defer func() { s.metrics.Operation("create", Kind(err)) }()

	if err := s.validator.Validate(req); err != nil {
		return nil, err
	}
	actor, err := s.actor(ctx, actorID)
	if err != nil {
		return nil, err
	}
	if override && !actor.IsPrivileged() {
		return nil, authorizationError("only administrators can override booking checks")
	}
	owner, err := s.requester(ctx, actor, req.RequesterID)
	if err != nil {
		return nil, err
	}
	slot, err := req.Slot(s.loc)
	if err != nil {
		return nil, err
	}
	now := s.now()
	// New bookings must start in the future. Edits may touch a booking
	// that is already running, so Update does not apply this rule.
	if slot.Start.Before(now) {
		return nil, validationError("start time must not be in the past")
	}

	var (
		l         *lab.Lab
		displaced []*Booking
	)

	err = s.repo.RunInTx(ctx, []string{slot.LabID}, func(tx Repository) error {
		res, loaded, active, err := s.evaluate(ctx, tx, slot, override, "", now)
		if err != nil {
			return err
		}
		if res.HasConflict {
			return res.Err
		}
		l = loaded

		var bypassed []string
		if override {
			if !l.Available() {
				bypassed = append(bypassed, unavailableMessage(l, s.loc))
			}
			displaced = Overlapping(slot, active, "", now)
		}

		status := StatusPending
		if actor.IsPrivileged() {
			status = StatusApproved
		}

		b = &Booking{
			LabID: slot.LabID,
			Requester: Requester{
				ID:   owner.ID,
				Name: owner.DisplayName,
				Role: string(owner.Role),
			},
			Subject:     strings.TrimSpace(req.Subject),
			StartTime:   slot.Start,
			EndTime:     slot.End,
			SystemCount: slot.SystemCount,
			Status:      status,
			Override:    len(bypassed) > 0 || len(displaced) > 0,
		}
		if err := tx.Create(ctx, b); err != nil {
			return err
		}

		entry := LogEntry{
			BookingID: b.ID,
			Action:    ActionCreated,
			ActorID:   actor.ID,
			ActorName: actor.DisplayName,
			Detail:    fmt.Sprintf("%s, %s, %d systems", l.Name, formatWindow(b.StartTime, b.EndTime, s.loc), b.SystemCount),
			CreatedAt: now,
		}
		if b.Override {
			entry.Action = ActionOverride
			entry.Detail = overrideDetail(entry.Detail, bypassed, displaced)
		}
		if err := tx.AppendLog(ctx, &entry); err != nil {
			return err
		}
		b.Logs = []LogEntry{entry}
		return nil
	})
	if err != nil {
		return nil, err
	}

	s.log.Info("booking created",
		"booking_id", b.ID,
		"lab_id", b.LabID,
		"requester_id", b.Requester.ID,
		"actor_id", actor.ID,
		"status", b.Status,
		"override", b.Override,
	)

	window := formatWindow(b.StartTime, b.EndTime, s.loc)
	switch {
	case b.Status == StatusPending:
		s.notify(ctx, notification.Event{
			SenderID:  actor.ID,
			Recipient: notification.GroupApprovers,
			Message:   fmt.Sprintf("%s requested %s on %s for %q", owner.DisplayName, l.Name, window, b.Subject),
			Severity:  notification.SeverityInfo,
			BookingID: b.ID,
		})
	case owner.ID != actor.ID:
		s.notify(ctx, notification.Event{
			SenderID:  actor.ID,
			Recipient: owner.ID,
			Message:   fmt.Sprintf("%s booked %s for you on %s for %q", actor.DisplayName, l.Name, window, b.Subject),
			Severity:  notification.SeveritySuccess,
			BookingID: b.ID,
		})
	}
	s.notifyDisplaced(ctx, actor, l, b, displaced)

	return s.present(b, now), nil
}

func overrideDetail(base string, bypassed []string, displaced []*Booking) string {
	parts := []string{base}
	if len(bypassed) > 0 {
		parts = append(parts, "bypassed: "+strings.Join(bypassed, "; "))
	}
	if len(displaced) > 0 {
		ids := make([]string, len(displaced))
		for i, d := range displaced {
			ids[i] = d.ID
		}
		parts = append(parts, "overlaps bookings: "+strings.Join(ids, ", "))
	}
	return strings.Join(parts, "; ")
}

// notifyDisplaced warns each requester whose booking now shares its slot
// with an override booking.
func (s *service) notifyDisplaced(ctx context.Context, actor *user.User, l *lab.Lab, b *Booking, displaced []*Booking) {
	seen := make(map[string]bool)
	for _, d := range displaced {
		if d.Requester.ID == actor.ID || seen[d.Requester.ID] {
			continue
		}
		seen[d.Requester.ID] = true
		s.notify(ctx, notification.Event{
			SenderID:  actor.ID,
			Recipient: d.Requester.ID,
			Message: fmt.Sprintf("%s placed an override booking on %s from %s that overlaps your booking %q",
				actor.DisplayName, l.Name, formatWindow(b.StartTime, b.EndTime, s.loc), d.Subject),
			Severity:  notification.SeverityWarning,
			BookingID: d.ID,
		})
	}
}

func (s *service) Update(ctx context.Context, actorID, bookingID string, req Request, override bool) (b *Booking, err error) {
	defer func() { s.metrics.Operation("update", Kind(err)) }()

	if err := s.validator.Validate(req); err != nil {
		return nil, err
	}
	actor, err := s.actor(ctx, actorID)
	if err != nil {
		return nil, err
	}
	if override && !actor.IsPrivileged() {
		return nil, authorizationError("only administrators can override booking checks")
	}

	current, err := s.repo.GetByID(ctx, bookingID)
	if err != nil {
		return nil, err
	}
	if current.Requester.ID != actor.ID && !actor.IsPrivileged() {
		return nil, authorizationError("only the requester or an administrator can edit this booking")
	}
	if req.RequesterID != "" && req.RequesterID != current.Requester.ID {
		return nil, validationError("the requester of a booking cannot be changed")
	}
	slot, err := req.Slot(s.loc)
	if err != nil {
		return nil, err
	}

	var (
		l         *lab.Lab
		displaced []*Booking
		changes   string
	)
	now := s.now()

	err = s.repo.RunInTx(ctx, []string{current.LabID, slot.LabID}, func(tx Repository) error {
		prev, err := tx.GetByID(ctx, bookingID)
		if err != nil {
			return err
		}
		if prev.LabID != current.LabID {
			return stateError("booking was moved concurrently, retry the update")
		}
		if st := prev.EffectiveStatus(now); st.Terminal() {
			return stateError(fmt.Sprintf("a %s booking cannot be edited", st))
		}

		res, loaded, active, err := s.evaluate(ctx, tx, slot, override, prev.ID, now)
		if err != nil {
			return err
		}
		if res.HasConflict {
			return res.Err
		}
		l = loaded

		var bypassed []string
		if override {
			if !l.Available() {
				bypassed = append(bypassed, unavailableMessage(l, s.loc))
			}
			displaced = Overlapping(slot, active, prev.ID, now)
		}
		isOverride := len(bypassed) > 0 || len(displaced) > 0

		subject := strings.TrimSpace(req.Subject)
		fields := Fields{
			LabID:       &slot.LabID,
			Subject:     &subject,
			StartTime:   &slot.Start,
			EndTime:     &slot.End,
			SystemCount: &slot.SystemCount,
			Override:    &isOverride,
		}
		if err := tx.Update(ctx, prev.ID, fields); err != nil {
			return err
		}

		changes = describeChanges(prev, slot, subject, s.loc)
		detail := changes
		if isOverride {
			detail = overrideDetail(changes, bypassed, displaced)
		}
		entry := LogEntry{
			BookingID: prev.ID,
			Action:    ActionUpdated,
			ActorID:   actor.ID,
			ActorName: actor.DisplayName,
			Detail:    detail,
			CreatedAt: now,
		}
		if err := tx.AppendLog(ctx, &entry); err != nil {
			return err
		}

		b, err = tx.GetByID(ctx, prev.ID)
		return err
	})
	if err != nil {
		return nil, err
	}

	s.log.Info("booking updated", "booking_id", b.ID, "actor_id", actor.ID, "changes", changes)

	if b.Requester.ID != actor.ID {
		s.notify(ctx, notification.Event{
			SenderID:  actor.ID,
			Recipient: b.Requester.ID,
			Message:   fmt.Sprintf("%s updated your booking %q: %s", actor.DisplayName, b.Subject, changes),
			Severity:  notification.SeverityInfo,
			BookingID: b.ID,
		})
	}
	s.notifyDisplaced(ctx, actor, l, b, displaced)

	return s.present(b, now), nil
}

// describeChanges summarises the edit for the audit log.
func describeChanges(prev *Booking, slot Slot, subject string, loc *time.Location) string {
	var parts []string
	if prev.LabID != slot.LabID {
		parts = append(parts, fmt.Sprintf("lab %s -> %s", prev.LabID, slot.LabID))
	}
	if !prev.StartTime.Equal(slot.Start) || !prev.EndTime.Equal(slot.End) {
		parts = append(parts, fmt.Sprintf("time %s -> %s",
			formatWindow(prev.StartTime, prev.EndTime, loc), formatWindow(slot.Start, slot.End, loc)))
	}
	if prev.SystemCount != slot.SystemCount {
		parts = append(parts, fmt.Sprintf("systems %d -> %d", prev.SystemCount, slot.SystemCount))
	}
	if prev.Subject != subject {
		parts = append(parts, fmt.Sprintf("subject %q -> %q", prev.Subject, subject))
	}
	if len(parts) == 0 {
		return "no changes"
	}
	return strings.Join(parts, "; ")
}

// transition runs a status change on one booking under its lab lock. apply
// returns the new status (nil for none) and the log detail.
func (s *service) transition(
	ctx context.Context,
	actor *user.User,
	bookingID string,
	action Action,
	apply func(current Status) (*Status, string, error),
) (*Booking, bool, error) {
	current, err := s.repo.GetByID(ctx, bookingID)
	if err != nil {
		return nil, false, err
	}

	var (
		b       *Booking
		changed bool
	)
	now := s.now()

	err = s.repo.RunInTx(ctx, []string{current.LabID}, func(tx Repository) error {
		prev, err := tx.GetByID(ctx, bookingID)
		if err != nil {
			return err
		}
		if prev.LabID != current.LabID {
			return stateError("booking was moved concurrently, retry")
		}

		next, detail, err := apply(prev.EffectiveStatus(now))
		if err != nil {
			return err
		}
		if next != nil {
			if err := tx.Update(ctx, prev.ID, Fields{Status: next}); err != nil {
				return err
			}
			changed = true
		}

		entry := LogEntry{
			BookingID: prev.ID,
			Action:    action,
			ActorID:   actor.ID,
			ActorName: actor.DisplayName,
			Detail:    detail,
			CreatedAt: now,
		}
		if err := tx.AppendLog(ctx, &entry); err != nil {
			return err
		}

		b, err = tx.GetByID(ctx, prev.ID)
		return err
	})
	if err != nil {
		return nil, false, err
	}
	return s.present(b, now), changed, nil
}

// Cancel moves a live booking to REJECTED. Cancelling a terminal booking
// leaves its status alone but is still recorded.
func (s *service) Cancel(ctx context.Context, actorID, bookingID string) (b *Booking, err error) {
	defer func() { s.metrics.Operation("cancel", Kind(err)) }()

	actor, err := s.actor(ctx, actorID)
	if err != nil {
		return nil, err
	}
	current, err := s.repo.GetByID(ctx, bookingID)
	if err != nil {
		return nil, err
	}
	if current.Requester.ID != actor.ID && !actor.IsPrivileged() {
		return nil, authorizationError("only the requester or an administrator can cancel this booking")
	}

	b, changed, err := s.transition(ctx, actor, bookingID, ActionCancelled, func(st Status) (*Status, string, error) {
		if st.Terminal() {
			return nil, fmt.Sprintf("already %s, status unchanged", st), nil
		}
		next := StatusRejected
		return &next, fmt.Sprintf("cancelled while %s", st), nil
	})
	if err != nil {
		return nil, err
	}

	s.log.Info("booking cancelled", "booking_id", b.ID, "actor_id", actor.ID, "changed", changed)

	if b.Requester.ID != actor.ID {
		window := formatWindow(b.StartTime, b.EndTime, s.loc)
		ev := notification.Event{
			SenderID:  actor.ID,
			Recipient: b.Requester.ID,
			Message:   fmt.Sprintf("%s cancelled your booking %q on %s", actor.DisplayName, b.Subject, window),
			Severity:  notification.SeverityWarning,
			BookingID: b.ID,
		}
		if !changed {
			ev.Message = fmt.Sprintf("%s cancelled your booking %q on %s, which was already %s; status unchanged",
				actor.DisplayName, b.Subject, window, b.Status)
			ev.Severity = notification.SeverityInfo
		}
		s.notify(ctx, ev)
	}
	return b, nil
}

func (s *service) Approve(ctx context.Context, actorID, bookingID string) (b *Booking, err error) {
	defer func() { s.metrics.Operation("approve", Kind(err)) }()
	return s.decide(ctx, actorID, bookingID, ActionApproved, StatusApproved)
}

func (s *service) Reject(ctx context.Context, actorID, bookingID string) (b *Booking, err error) {
	defer func() { s.metrics.Operation("reject", Kind(err)) }()
	return s.decide(ctx, actorID, bookingID, ActionRejected, StatusRejected)
}

// decide handles approve and reject, which share everything but the target status.
func (s *service) decide(ctx context.Context, actorID, bookingID string, action Action, target Status) (*Booking, error) {
	actor, err := s.actor(ctx, actorID)
	if err != nil {
		return nil, err
	}
	if !actor.IsPrivileged() {
		return nil, authorizationError("only administrators can approve or reject bookings")
	}

	b, _, err := s.transition(ctx, actor, bookingID, action, func(st Status) (*Status, string, error) {
		if st != StatusPending {
			return nil, "", stateError(fmt.Sprintf("only PENDING bookings can be %s, this one is %s",
				strings.ToLower(string(action)), st))
		}
		return &target, "", nil
	})
	if err != nil {
		return nil, err
	}

	s.log.Info("booking decided", "booking_id", b.ID, "actor_id", actor.ID, "status", b.Status)

	severity := notification.SeveritySuccess
	verb := "approved"
	if target == StatusRejected {
		severity = notification.SeverityWarning
		verb = "rejected"
	}
	s.notify(ctx, notification.Event{
		SenderID:  actor.ID,
		Recipient: b.Requester.ID,
		Message:   fmt.Sprintf("%s %s your booking %q on %s", actor.DisplayName, verb, b.Subject, formatWindow(b.StartTime, b.EndTime, s.loc)),
		Severity:  severity,
		BookingID: b.ID,
	})
	return b, nil
}

func (s *service) GetByID(ctx context.Context, actorID, bookingID string) (*Booking, error) {
	actor, err := s.actor(ctx, actorID)
	if err != nil {
		return nil, err
	}
	b, err := s.repo.GetByID(ctx, bookingID)
	if err != nil {
		return nil, err
	}
	if b.Requester.ID != actor.ID && !actor.IsPrivileged() {
		return nil, authorizationError("you can only view your own bookings")
	}
	return s.present(b, s.now()), nil
}

// List restricts non-privileged actors to their own bookings.
func (s *service) List(ctx context.Context, actorID string, filter Filter) ([]*Booking, int, error) {
	actor, err := s.actor(ctx, actorID)
	if err != nil {
		return nil, 0, err
	}
	if filter.Status != "" && !filter.Status.Valid() {
		return nil, 0, validationError("unknown status filter")
	}
	if !actor.IsPrivileged() {
		filter.RequesterID = actor.ID
	}
	now := s.now()
	filter.Now = now

	bookings, total, err := s.repo.List(ctx, filter)
	if err != nil {
		return nil, 0, err
	}
	for i, b := range bookings {
		bookings[i] = s.present(b, now)
	}
	return bookings, total, nil
}

// present returns b with its derived status applied.
func (s *service) present(b *Booking, now time.Time) *Booking {
	b.Status = b.EffectiveStatus(now)
	return b
}

// notify hands ev to the sink. Delivery problems are logged and never
// undo the mutation that produced the event.
func (s *service) notify(ctx context.Context, ev notification.Event) {
	if s.sink == nil {
		return
	}
	if ev.CreatedAt.IsZero() {
		ev.CreatedAt = s.now().UTC()
	}
	if err := s.sink.Emit(ctx, ev); err != nil {
		s.log.Warn("failed to emit notification",
			"recipient", ev.Recipient,
			"booking_id", ev.BookingID,
			"error", err,
		)
	}
}
