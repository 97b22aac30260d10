package booking

import (
	"context"
	"errors"
	"net/http"
	"sync"
	"testing"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/abinnihal/labflow-computer-lab-management-system-sub000/internal/lab"
	"github.com/abinnihal/labflow-computer-lab-management-system-sub000/internal/notification"
	"github.com/abinnihal/labflow-computer-lab-management-system-sub000/internal/pkg/apperror"
	"github.com/abinnihal/labflow-computer-lab-management-system-sub000/internal/pkg/logger"
	"github.com/abinnihal/labflow-computer-lab-management-system-sub000/internal/pkg/metrics"
	"github.com/abinnihal/labflow-computer-lab-management-system-sub000/internal/user"
)

type captureSink struct {
	mu     sync.Mutex
	events []notification.Event
	err    error
}

func (s *captureSink) Emit(_ context.Context, ev notification.Event) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.events = append(s.events, ev)
	return s.err
}

func (s *captureSink) take() []notification.Event {
	s.mu.Lock()
	defer s.mu.Unlock()
	out := s.events
	s.events = nil
	return out
}

type clock struct {
	mu  sync.Mutex
	now time.Time
}

func (c *clock) Now() time.Time {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.now
}

func (c *clock) Set(t time.Time) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.now = t
}

type fixture struct {
	svc     Service
	repo    Repository
	labs    lab.Repository
	sink    *captureSink
	clock   *clock
	metrics *metrics.Recorder

	admin, student, other *user.User
	l1, l2                *lab.Lab
}

func newFixture(t *testing.T) *fixture {
	t.Helper()
	ctx := context.Background()

	users := user.NewMemoryRepository()
	mk := func(email, name string, role user.Role) *user.User {
		u := &user.User{Email: email, DisplayName: name, Role: role, IsActive: true}
		require.NoError(t, users.Create(ctx, u))
		return u
	}

	labs := lab.NewMemoryRepository()
	l1 := &lab.Lab{Name: "Main Lab", Capacity: 60, Status: lab.StatusActive}
	until := day.Add(33 * time.Hour)
	l2 := &lab.Lab{Name: "Networks Lab", Capacity: 60, Status: lab.StatusMaintenance, MaintenanceUntil: &until}
	require.NoError(t, labs.Create(ctx, l1))
	require.NoError(t, labs.Create(ctx, l2))

	f := &fixture{
		repo:    NewMemoryRepository(),
		labs:    labs,
		sink:    &captureSink{},
		clock:   &clock{now: at(6, 0)},
		metrics: metrics.NewRecorder(prometheus.NewRegistry()),
		admin:   mk("admin@lab.edu", "Ada Admin", user.RoleAdmin),
		student: mk("stu@lab.edu", "Sam Student", user.RoleStudent),
		other:   mk("fac@lab.edu", "Fay Faculty", user.RoleFaculty),
		l1:      l1,
		l2:      l2,
	}
	f.svc = NewService(f.repo, labs, users, f.sink, Config{
		Location: time.UTC,
		Logger:   logger.Nop(),
		Metrics:  f.metrics,
		Now:      f.clock.Now,
	})
	return f
}

func req(labID, start, end string, systems int) Request {
	return Request{
		LabID:       labID,
		Date:        "2030-01-01",
		StartTime:   start,
		EndTime:     end,
		SystemCount: systems,
		Subject:     "Compilers practical",
	}
}

func TestCreate_InitialStatusAndNotifications(t *testing.T) {
	ctx := context.Background()
	f := newFixture(t)

	b, err := f.svc.Create(ctx, f.student.ID, req(f.l1.ID, "09:00", "11:00", 30), false)
	require.NoError(t, err)
	assert.Equal(t, StatusPending, b.Status)
	assert.Equal(t, f.student.ID, b.Requester.ID)
	assert.Equal(t, "Sam Student", b.Requester.Name)
	assert.Equal(t, at(9, 0), b.StartTime)
	require.Len(t, b.Logs, 1)
	assert.Equal(t, ActionCreated, b.Logs[0].Action)

	events := f.sink.take()
	require.Len(t, events, 1)
	assert.Equal(t, notification.GroupApprovers, events[0].Recipient)
	assert.Equal(t, f.student.ID, events[0].SenderID)

	own, err := f.svc.Create(ctx, f.admin.ID, req(f.l1.ID, "12:00", "13:00", 10), false)
	require.NoError(t, err)
	assert.Equal(t, StatusApproved, own.Status)
	assert.Empty(t, f.sink.take())

	onBehalf := req(f.l1.ID, "14:00", "15:00", 10)
	onBehalf.RequesterID = f.other.ID
	forOther, err := f.svc.Create(ctx, f.admin.ID, onBehalf, false)
	require.NoError(t, err)
	assert.Equal(t, StatusApproved, forOther.Status)
	assert.Equal(t, f.other.ID, forOther.Requester.ID)
	events = f.sink.take()
	require.Len(t, events, 1)
	assert.Equal(t, f.other.ID, events[0].Recipient)
	assert.Equal(t, notification.SeveritySuccess, events[0].Severity)

	assert.Equal(t, 3.0, testutil.ToFloat64(f.metrics.Operations.WithLabelValues("create", "ok")))
}

func TestCreate_Authorization(t *testing.T) {
	ctx := context.Background()
	f := newFixture(t)

	_, err := f.svc.Create(ctx, f.student.ID, req(f.l1.ID, "09:00", "10:00", 1), true)
	assert.ErrorIs(t, err, ErrAuthorization)
	assert.Equal(t, http.StatusForbidden, apperror.StatusOf(err))

	onBehalf := req(f.l1.ID, "09:00", "10:00", 1)
	onBehalf.RequesterID = f.other.ID
	_, err = f.svc.Create(ctx, f.student.ID, onBehalf, false)
	assert.ErrorIs(t, err, ErrAuthorization)

	_, err = f.svc.Create(ctx, "9b0f1a0e-0000-4000-8000-000000000000", req(f.l1.ID, "09:00", "10:00", 1), false)
	assert.ErrorIs(t, err, ErrAuthorization)

	list, total, err := f.svc.List(ctx, f.admin.ID, Filter{})
	require.NoError(t, err)
	assert.Zero(t, total)
	assert.Empty(t, list)
}

func TestCreate_RejectionsLeaveNoTrace(t *testing.T) {
	ctx := context.Background()
	f := newFixture(t)

	_, err := f.svc.Create(ctx, f.student.ID, req(f.l1.ID, "09:00", "11:00", 30), false)
	require.NoError(t, err)
	f.sink.take()

	tests := []struct {
		name       string
		req        Request
		wantErr    error
		wantStatus int
	}{
		{"overlap", req(f.l1.ID, "10:00", "12:00", 10), ErrSchedulingConflict, http.StatusConflict},
		{"maintenance", req(f.l2.ID, "10:00", "12:00", 10), ErrResourceUnavailable, http.StatusConflict},
		{"capacity", req(f.l1.ID, "15:00", "16:00", 80), ErrCapacityExceeded, http.StatusUnprocessableEntity},
		{"unknown lab", req("5c7d6a1e-0000-4000-8000-000000000000", "15:00", "16:00", 1), ErrResourceNotFound, http.StatusNotFound},
		{"reversed interval", req(f.l1.ID, "16:00", "15:00", 1), ErrInputValidation, http.StatusBadRequest},
		{"past start", req(f.l1.ID, "05:00", "07:00", 1), ErrInputValidation, http.StatusBadRequest},
		{"schema", Request{LabID: f.l1.ID}, ErrInputValidation, http.StatusBadRequest},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := f.svc.Create(ctx, f.other.ID, tt.req, false)
			require.Error(t, err)
			assert.ErrorIs(t, err, tt.wantErr)
			assert.Equal(t, tt.wantStatus, apperror.StatusOf(err))
		})
	}

	_, total, err := f.svc.List(ctx, f.admin.ID, Filter{})
	require.NoError(t, err)
	assert.Equal(t, 1, total)
	assert.Empty(t, f.sink.take())
	assert.Equal(t, 1.0, testutil.ToFloat64(f.metrics.Rejections.WithLabelValues("conflict")))
}

func TestCreate_ConflictCarriesOccupant(t *testing.T) {
	ctx := context.Background()
	f := newFixture(t)

	a, err := f.svc.Create(ctx, f.student.ID, req(f.l1.ID, "09:00", "11:00", 30), false)
	require.NoError(t, err)

	_, err = f.svc.Create(ctx, f.other.ID, req(f.l1.ID, "10:00", "12:00", 10), false)
	var ce *ConflictError
	require.True(t, errors.As(err, &ce))
	assert.Equal(t, a.ID, ce.Booking.ID)

	var appErr *apperror.AppError
	require.True(t, errors.As(err, &appErr))
	details, ok := appErr.Details.(ConflictDetails)
	require.True(t, ok)
	assert.Equal(t, a.ID, details.BookingID)
	assert.Equal(t, "Sam Student", details.RequesterName)
}

// A privileged override over an occupied slot creates the booking with an
// OVERRIDE entry and leaves the occupant untouched.
func TestCreate_OverrideKeepsDisplacedBooking(t *testing.T) {
	ctx := context.Background()
	f := newFixture(t)

	a, err := f.svc.Create(ctx, f.student.ID, req(f.l1.ID, "09:00", "11:00", 30), false)
	require.NoError(t, err)
	f.sink.take()

	o, err := f.svc.Create(ctx, f.admin.ID, req(f.l1.ID, "09:00", "11:00", 50), true)
	require.NoError(t, err)
	assert.True(t, o.Override)
	assert.Equal(t, StatusApproved, o.Status)
	require.Len(t, o.Logs, 1)
	assert.Equal(t, ActionOverride, o.Logs[0].Action)
	assert.Contains(t, o.Logs[0].Detail, a.ID)

	after, err := f.svc.GetByID(ctx, f.admin.ID, a.ID)
	require.NoError(t, err)
	assert.Equal(t, StatusPending, after.Status)
	assert.Equal(t, a.Logs, after.Logs)

	events := f.sink.take()
	require.Len(t, events, 1)
	assert.Equal(t, f.student.ID, events[0].Recipient)
	assert.Equal(t, notification.SeverityWarning, events[0].Severity)
	assert.Equal(t, a.ID, events[0].BookingID)

	// Override never lifts capacity or interval checks.
	_, err = f.svc.Create(ctx, f.admin.ID, req(f.l1.ID, "09:00", "11:00", 61), true)
	assert.ErrorIs(t, err, ErrCapacityExceeded)
	_, err = f.svc.Create(ctx, f.admin.ID, req(f.l1.ID, "11:00", "09:00", 1), true)
	assert.ErrorIs(t, err, ErrInputValidation)

	// Override into a lab under maintenance.
	m, err := f.svc.Create(ctx, f.admin.ID, req(f.l2.ID, "09:00", "10:00", 5), true)
	require.NoError(t, err)
	assert.True(t, m.Override)
	assert.Contains(t, m.Logs[0].Detail, "maintenance")

	// Override with nothing to bypass is an ordinary creation.
	plain, err := f.svc.Create(ctx, f.admin.ID, req(f.l1.ID, "18:00", "19:00", 5), true)
	require.NoError(t, err)
	assert.False(t, plain.Override)
	assert.Equal(t, ActionCreated, plain.Logs[0].Action)
}

func TestCheckAvailability_NoSideEffects(t *testing.T) {
	ctx := context.Background()
	f := newFixture(t)

	res, err := f.svc.CheckAvailability(ctx, f.student.ID, req(f.l1.ID, "09:00", "10:00", 5), false)
	require.NoError(t, err)
	assert.False(t, res.HasConflict)

	res, err = f.svc.CheckAvailability(ctx, f.student.ID, req(f.l2.ID, "09:00", "10:00", 5), false)
	require.NoError(t, err)
	assert.True(t, res.HasConflict)
	assert.ErrorIs(t, res.Err, ErrResourceUnavailable)

	_, err = f.svc.CheckAvailability(ctx, f.student.ID, req(f.l2.ID, "09:00", "10:00", 5), true)
	assert.ErrorIs(t, err, ErrAuthorization)

	res, err = f.svc.CheckAvailability(ctx, f.admin.ID, req(f.l2.ID, "09:00", "10:00", 5), true)
	require.NoError(t, err)
	assert.False(t, res.HasConflict)

	_, total, err := f.svc.List(ctx, f.admin.ID, Filter{})
	require.NoError(t, err)
	assert.Zero(t, total)
	assert.Empty(t, f.sink.take())
}

func TestUpdate(t *testing.T) {
	ctx := context.Background()
	f := newFixture(t)

	b, err := f.svc.Create(ctx, f.student.ID, req(f.l1.ID, "09:00", "11:00", 30), false)
	require.NoError(t, err)
	blocker, err := f.svc.Create(ctx, f.other.ID, req(f.l1.ID, "13:00", "14:00", 10), false)
	require.NoError(t, err)
	f.sink.take()

	t.Run("moving within its own slot passes", func(t *testing.T) {
		got, err := f.svc.Update(ctx, f.student.ID, b.ID, req(f.l1.ID, "10:00", "12:00", 20), false)
		require.NoError(t, err)
		assert.Equal(t, at(10, 0), got.StartTime)
		assert.Equal(t, 20, got.SystemCount)
		assert.Equal(t, StatusPending, got.Status)
		require.Len(t, got.Logs, 2)
		assert.Equal(t, ActionUpdated, got.Logs[1].Action)
		assert.Contains(t, got.Logs[1].Detail, "systems 30 -> 20")
		assert.Empty(t, f.sink.take(), "requester editing their own booking is not notified")
	})

	t.Run("conflict with another booking", func(t *testing.T) {
		_, err := f.svc.Update(ctx, f.student.ID, b.ID, req(f.l1.ID, "12:30", "13:30", 20), false)
		var ce *ConflictError
		require.True(t, errors.As(err, &ce))
		assert.Equal(t, blocker.ID, ce.Booking.ID)
	})

	t.Run("stranger cannot edit", func(t *testing.T) {
		_, err := f.svc.Update(ctx, f.other.ID, b.ID, req(f.l1.ID, "10:00", "12:00", 20), false)
		assert.ErrorIs(t, err, ErrAuthorization)
	})

	t.Run("requester cannot be reassigned", func(t *testing.T) {
		r := req(f.l1.ID, "10:00", "12:00", 20)
		r.RequesterID = f.other.ID
		_, err := f.svc.Update(ctx, f.admin.ID, b.ID, r, false)
		assert.ErrorIs(t, err, ErrInputValidation)
	})

	t.Run("admin edit notifies requester", func(t *testing.T) {
		r := req(f.l1.ID, "10:00", "12:00", 20)
		r.Subject = "Operating systems lab"
		got, err := f.svc.Update(ctx, f.admin.ID, b.ID, r, false)
		require.NoError(t, err)
		assert.Equal(t, "Operating systems lab", got.Subject)
		events := f.sink.take()
		require.Len(t, events, 1)
		assert.Equal(t, f.student.ID, events[0].Recipient)
	})

	t.Run("unknown booking", func(t *testing.T) {
		_, err := f.svc.Update(ctx, f.admin.ID, "5c7d6a1e-0000-4000-8000-000000000000", req(f.l1.ID, "10:00", "12:00", 20), false)
		assert.ErrorIs(t, err, ErrNotFound)
	})

	t.Run("terminal booking cannot be edited", func(t *testing.T) {
		_, err := f.svc.Cancel(ctx, f.student.ID, b.ID)
		require.NoError(t, err)
		_, err = f.svc.Update(ctx, f.student.ID, b.ID, req(f.l1.ID, "10:00", "12:00", 20), false)
		assert.ErrorIs(t, err, ErrInvalidState)
	})
}

func TestCheckAvailability_PastFreeSlotHasNoConflict(t *testing.T) {
	ctx := context.Background()
	f := newFixture(t)

	r := req(f.l1.ID, "09:00", "10:00", 1)
	r.Date = "2020-01-01"
	res, err := f.svc.CheckAvailability(ctx, f.student.ID, r, false)
	require.NoError(t, err)
	assert.False(t, res.HasConflict, res.Message)

	_, err = f.svc.Create(ctx, f.student.ID, r, false)
	assert.ErrorIs(t, err, ErrInputValidation, "new bookings still cannot start in the past")
}

func TestUpdate_InProgressBooking(t *testing.T) {
	ctx := context.Background()
	f := newFixture(t)

	b, err := f.svc.Create(ctx, f.admin.ID, req(f.l1.ID, "10:00", "12:00", 30), false)
	require.NoError(t, err)

	f.clock.Set(at(11, 0))
	got, err := f.svc.Update(ctx, f.admin.ID, b.ID, req(f.l1.ID, "10:00", "13:00", 30), false)
	require.NoError(t, err)
	assert.Equal(t, at(13, 0), got.EndTime)
	assert.Equal(t, StatusApproved, got.Status)
	require.Len(t, got.Logs, 2)
	assert.Contains(t, got.Logs[1].Detail, "time")
}

func TestCancel_IdempotentOnTerminal(t *testing.T) {
	ctx := context.Background()
	f := newFixture(t)

	b, err := f.svc.Create(ctx, f.student.ID, req(f.l1.ID, "09:00", "11:00", 30), false)
	require.NoError(t, err)
	f.sink.take()

	_, err = f.svc.Cancel(ctx, f.other.ID, b.ID)
	assert.ErrorIs(t, err, ErrAuthorization)

	first, err := f.svc.Cancel(ctx, f.admin.ID, b.ID)
	require.NoError(t, err)
	assert.Equal(t, StatusRejected, first.Status)
	require.Len(t, first.Logs, 2)
	assert.Equal(t, ActionCancelled, first.Logs[1].Action)
	events := f.sink.take()
	require.Len(t, events, 1)
	assert.Equal(t, f.student.ID, events[0].Recipient)

	second, err := f.svc.Cancel(ctx, f.admin.ID, b.ID)
	require.NoError(t, err)
	assert.Equal(t, StatusRejected, second.Status)
	require.Len(t, second.Logs, 3)
	assert.Equal(t, ActionCancelled, second.Logs[2].Action)
	assert.Contains(t, second.Logs[2].Detail, "unchanged")
	events = f.sink.take()
	require.Len(t, events, 1, "the owner still hears about a cancel by someone else")
	assert.Equal(t, f.student.ID, events[0].Recipient)
	assert.Equal(t, notification.SeverityInfo, events[0].Severity)
	assert.Contains(t, events[0].Message, "already REJECTED")

	_, err = f.svc.Cancel(ctx, f.student.ID, b.ID)
	require.NoError(t, err)
	assert.Empty(t, f.sink.take(), "owners are not told about their own cancel")

	// The cancelled slot is free again.
	_, err = f.svc.Create(ctx, f.other.ID, req(f.l1.ID, "09:00", "11:00", 30), false)
	require.NoError(t, err)
}

func TestCancel_CompletedStaysCompleted(t *testing.T) {
	ctx := context.Background()
	f := newFixture(t)

	b, err := f.svc.Create(ctx, f.admin.ID, req(f.l1.ID, "09:00", "11:00", 30), false)
	require.NoError(t, err)
	require.Equal(t, StatusApproved, b.Status)

	f.clock.Set(at(12, 0))
	for i := 0; i < 2; i++ {
		got, err := f.svc.Cancel(ctx, f.admin.ID, b.ID)
		require.NoError(t, err)
		assert.Equal(t, StatusCompleted, got.Status)
	}

	completed, total, err := f.svc.List(ctx, f.admin.ID, Filter{Status: StatusCompleted})
	require.NoError(t, err)
	require.Equal(t, 1, total)
	assert.Equal(t, b.ID, completed[0].ID)

	_, total, err = f.svc.List(ctx, f.admin.ID, Filter{Status: StatusApproved})
	require.NoError(t, err)
	assert.Zero(t, total)
}

func TestApproveReject(t *testing.T) {
	ctx := context.Background()
	f := newFixture(t)

	b, err := f.svc.Create(ctx, f.student.ID, req(f.l1.ID, "09:00", "11:00", 30), false)
	require.NoError(t, err)
	c, err := f.svc.Create(ctx, f.student.ID, req(f.l1.ID, "12:00", "13:00", 30), false)
	require.NoError(t, err)
	f.sink.take()

	_, err = f.svc.Approve(ctx, f.student.ID, b.ID)
	assert.ErrorIs(t, err, ErrAuthorization)
	_, err = f.svc.Reject(ctx, f.other.ID, b.ID)
	assert.ErrorIs(t, err, ErrAuthorization)

	approved, err := f.svc.Approve(ctx, f.admin.ID, b.ID)
	require.NoError(t, err)
	assert.Equal(t, StatusApproved, approved.Status)
	assert.Equal(t, ActionApproved, approved.Logs[len(approved.Logs)-1].Action)

	_, err = f.svc.Approve(ctx, f.admin.ID, b.ID)
	assert.ErrorIs(t, err, ErrInvalidState)
	_, err = f.svc.Reject(ctx, f.admin.ID, b.ID)
	assert.ErrorIs(t, err, ErrInvalidState)

	again, err := f.svc.GetByID(ctx, f.student.ID, b.ID)
	require.NoError(t, err)
	assert.Len(t, again.Logs, 2, "failed transitions append nothing")

	rejected, err := f.svc.Reject(ctx, f.admin.ID, c.ID)
	require.NoError(t, err)
	assert.Equal(t, StatusRejected, rejected.Status)

	events := f.sink.take()
	require.Len(t, events, 2)
	assert.Equal(t, notification.SeveritySuccess, events[0].Severity)
	assert.Equal(t, notification.SeverityWarning, events[1].Severity)
	for _, ev := range events {
		assert.Equal(t, f.student.ID, ev.Recipient)
	}

	_, err = f.svc.Approve(ctx, f.admin.ID, "5c7d6a1e-0000-4000-8000-000000000000")
	assert.ErrorIs(t, err, ErrNotFound)
}

func TestAuditLog_PrefixStable(t *testing.T) {
	ctx := context.Background()
	f := newFixture(t)

	b, err := f.svc.Create(ctx, f.student.ID, req(f.l1.ID, "09:00", "11:00", 30), false)
	require.NoError(t, err)

	steps := []func() (*Booking, error){
		func() (*Booking, error) {
			return f.svc.Update(ctx, f.student.ID, b.ID, req(f.l1.ID, "09:30", "11:00", 30), false)
		},
		func() (*Booking, error) {
			return f.svc.Update(ctx, f.admin.ID, b.ID, req(f.l1.ID, "09:30", "11:30", 25), false)
		},
		func() (*Booking, error) { return f.svc.Approve(ctx, f.admin.ID, b.ID) },
		func() (*Booking, error) { return f.svc.Cancel(ctx, f.student.ID, b.ID) },
		func() (*Booking, error) { return f.svc.Cancel(ctx, f.student.ID, b.ID) },
	}

	prev := b.Logs
	for i, step := range steps {
		_, _ = step()
		cur, err := f.svc.GetByID(ctx, f.admin.ID, b.ID)
		require.NoError(t, err)
		require.GreaterOrEqual(t, len(cur.Logs), len(prev), "step %d", i)
		assert.Equal(t, prev, cur.Logs[:len(prev)], "step %d rewrote history", i)
		prev = cur.Logs
	}
	assert.Len(t, prev, 6)
}

func TestNotificationFailureDoesNotRollBack(t *testing.T) {
	ctx := context.Background()
	f := newFixture(t)
	f.sink.err = errors.New("transport down")

	b, err := f.svc.Create(ctx, f.student.ID, req(f.l1.ID, "09:00", "11:00", 30), false)
	require.NoError(t, err)

	got, err := f.svc.GetByID(ctx, f.student.ID, b.ID)
	require.NoError(t, err)
	assert.Equal(t, StatusPending, got.Status)

	_, err = f.svc.Approve(ctx, f.admin.ID, b.ID)
	require.NoError(t, err)
}

func TestConcurrentCreates_ExactlyOneWins(t *testing.T) {
	ctx := context.Background()
	f := newFixture(t)

	const n = 16
	var (
		wg        sync.WaitGroup
		mu        sync.Mutex
		successes int
		conflicts int
	)
	for i := 0; i < n; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			_, err := f.svc.Create(ctx, f.student.ID, req(f.l1.ID, "09:00", "11:00", 10), false)
			mu.Lock()
			defer mu.Unlock()
			switch {
			case err == nil:
				successes++
			case errors.Is(err, ErrSchedulingConflict):
				conflicts++
			default:
				t.Errorf("unexpected error: %v", err)
			}
		}()
	}
	wg.Wait()

	assert.Equal(t, 1, successes)
	assert.Equal(t, n-1, conflicts)
}

func TestListAndGet_Visibility(t *testing.T) {
	ctx := context.Background()
	f := newFixture(t)

	mine, err := f.svc.Create(ctx, f.student.ID, req(f.l1.ID, "09:00", "10:00", 5), false)
	require.NoError(t, err)
	theirs, err := f.svc.Create(ctx, f.other.ID, req(f.l1.ID, "10:00", "11:00", 5), false)
	require.NoError(t, err)

	list, total, err := f.svc.List(ctx, f.student.ID, Filter{})
	require.NoError(t, err)
	require.Equal(t, 1, total)
	assert.Equal(t, mine.ID, list[0].ID)

	// Asking for someone else's bookings is silently narrowed.
	_, total, err = f.svc.List(ctx, f.student.ID, Filter{RequesterID: f.other.ID})
	require.NoError(t, err)
	assert.Equal(t, 1, total)

	_, total, err = f.svc.List(ctx, f.admin.ID, Filter{LabID: f.l1.ID})
	require.NoError(t, err)
	assert.Equal(t, 2, total)

	_, err = f.svc.GetByID(ctx, f.student.ID, theirs.ID)
	assert.ErrorIs(t, err, ErrAuthorization)

	_, _, err = f.svc.List(ctx, f.admin.ID, Filter{Status: "DONE"})
	assert.ErrorIs(t, err, ErrInputValidation)
}
