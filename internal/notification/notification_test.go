package notification

import (
	"context"
	"encoding/json"
	"errors"
	"sync"
	"testing"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/segmentio/kafka-go"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/abinnihal/labflow-computer-lab-management-system-sub000/internal/pkg/logger"
	"github.com/abinnihal/labflow-computer-lab-management-system-sub000/internal/pkg/metrics"
)

type recordingSink struct {
	mu     sync.Mutex
	events []Event
	err    error
}

func (s *recordingSink) Emit(_ context.Context, ev Event) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.events = append(s.events, ev)
	return s.err
}

func (s *recordingSink) Events() []Event {
	s.mu.Lock()
	defer s.mu.Unlock()
	return append([]Event(nil), s.events...)
}

func TestDispatcher_DeliversAndDrainsOnClose(t *testing.T) {
	sink := &recordingSink{}
	rec := metrics.NewRecorder(prometheus.NewRegistry())
	d := NewDispatcher(sink, 2, 16, logger.Nop(), rec)
	d.Start(context.Background())

	for i := 0; i < 10; i++ {
		require.NoError(t, d.Emit(context.Background(), Event{Recipient: "u1", Message: "hi", Severity: SeverityInfo}))
	}
	d.Close()

	events := sink.Events()
	assert.Len(t, events, 10)
	for _, ev := range events {
		assert.False(t, ev.CreatedAt.IsZero())
	}
	assert.Equal(t, 10.0, testutil.ToFloat64(rec.NotificationDeliveries.WithLabelValues("delivered")))

	err := d.Emit(context.Background(), Event{Recipient: "u1"})
	assert.ErrorIs(t, err, ErrDispatcherClosed)

	// Closing twice is a no-op.
	d.Close()
}

func TestDispatcher_QueueFull(t *testing.T) {
	sink := &recordingSink{}
	d := NewDispatcher(sink, 1, 1, nil, nil)

	// Workers not started, so the single slot fills up.
	require.NoError(t, d.Emit(context.Background(), Event{Recipient: "a"}))
	assert.ErrorIs(t, d.Emit(context.Background(), Event{Recipient: "b"}), ErrQueueFull)

	d.Start(context.Background())
	d.Close()
	assert.Len(t, sink.Events(), 1)
}

func TestDispatcher_SinkFailureIsCounted(t *testing.T) {
	sink := &recordingSink{err: errors.New("broker down")}
	rec := metrics.NewRecorder(prometheus.NewRegistry())
	d := NewDispatcher(sink, 1, 4, logger.Nop(), rec)
	d.Start(context.Background())

	require.NoError(t, d.Emit(context.Background(), Event{Recipient: "u1"}))
	d.Close()

	assert.Equal(t, 1.0, testutil.ToFloat64(rec.NotificationDeliveries.WithLabelValues("failed")))
}

func TestMultiSink_JoinsErrors(t *testing.T) {
	ok := &recordingSink{}
	boom := errors.New("boom")
	failing := SinkFunc(func(context.Context, Event) error { return boom })

	err := MultiSink{failing, ok}.Emit(context.Background(), Event{Recipient: "x"})
	assert.ErrorIs(t, err, boom)
	assert.Len(t, ok.Events(), 1)
}

type fakeWriter struct {
	msgs   []kafka.Message
	closed bool
}

func (w *fakeWriter) WriteMessages(_ context.Context, msgs ...kafka.Message) error {
	w.msgs = append(w.msgs, msgs...)
	return nil
}

func (w *fakeWriter) Close() error {
	w.closed = true
	return nil
}

func TestKafkaSink_KeysByRecipient(t *testing.T) {
	w := &fakeWriter{}
	sink := NewKafkaSinkWithWriter(w)

	ev := Event{
		SenderID:  "admin-1",
		Recipient: GroupApprovers,
		Message:   "New booking awaiting approval",
		Severity:  SeverityInfo,
		BookingID: "b-1",
		CreatedAt: time.Date(2030, 1, 1, 9, 0, 0, 0, time.UTC),
	}
	require.NoError(t, sink.Emit(context.Background(), ev))
	require.Len(t, w.msgs, 1)
	assert.Equal(t, GroupApprovers, string(w.msgs[0].Key))

	var decoded Event
	require.NoError(t, json.Unmarshal(w.msgs[0].Value, &decoded))
	assert.Equal(t, ev, decoded)

	require.NoError(t, sink.Close())
	assert.True(t, w.closed)

	_, err := NewKafkaSink(nil, "topic", nil)
	assert.Error(t, err)
}

func TestInbox(t *testing.T) {
	ctx := context.Background()
	repo := NewMemoryRepository()
	inbox := NewInboxSink(repo)
	svc := NewService(repo)

	base := time.Date(2030, 1, 1, 9, 0, 0, 0, time.UTC)
	require.NoError(t, inbox.Emit(ctx, Event{Recipient: "student-1", Message: "approved", CreatedAt: base}))
	require.NoError(t, inbox.Emit(ctx, Event{Recipient: GroupApprovers, Message: "pending", CreatedAt: base.Add(time.Minute)}))
	require.NoError(t, inbox.Emit(ctx, Event{Recipient: "admin-1", Message: "direct", CreatedAt: base.Add(2 * time.Minute)}))

	student := Reader{UserID: "student-1"}
	admin := Reader{UserID: "admin-1", Privileged: true}

	items, total, err := svc.List(ctx, student, false, 1, 20)
	require.NoError(t, err)
	assert.Equal(t, 1, total)
	assert.Equal(t, "approved", items[0].Message)

	items, total, err = svc.List(ctx, admin, false, 1, 20)
	require.NoError(t, err)
	assert.Equal(t, 2, total)
	assert.Equal(t, "direct", items[0].Message)
	assert.Equal(t, "pending", items[1].Message)

	// A student cannot mark an approver notification read.
	assert.ErrorIs(t, svc.MarkRead(ctx, student, items[1].ID), ErrNotFound)

	require.NoError(t, svc.MarkRead(ctx, admin, items[1].ID))
	unread, total, err := svc.List(ctx, admin, true, 1, 20)
	require.NoError(t, err)
	assert.Equal(t, 1, total)
	assert.Equal(t, "direct", unread[0].Message)

	// Marking again keeps the first read time.
	require.NoError(t, svc.MarkRead(ctx, admin, items[1].ID))
}
