package notification

import (
	"context"
	"errors"
)

// Sink delivers events. Implementations must be safe for concurrent use.
type Sink interface {
	Emit(ctx context.Context, ev Event) error
}

// SinkFunc adapts a function to Sink.
type SinkFunc func(ctx context.Context, ev Event) error

func (f SinkFunc) Emit(ctx context.Context, ev Event) error {
	return f(ctx, ev)
}

// MultiSink fans an event out to every sink and joins their errors.
type MultiSink []Sink

func (m MultiSink) Emit(ctx context.Context, ev Event) error {
	var errs []error
	for _, s := range m {
		if err := s.Emit(ctx, ev); err != nil {
			errs = append(errs, err)
		}
	}
	return errors.Join(errs...)
}

// InboxSink persists events so recipients can read them later.
type InboxSink struct {
	repo Repository
}

func NewInboxSink(repo Repository) *InboxSink {
	return &InboxSink{repo: repo}
}

func (s *InboxSink) Emit(ctx context.Context, ev Event) error {
	return s.repo.Create(ctx, &Notification{Event: ev})
}
