package notification

import (
	"context"
	"sync"
	"time"

	"github.com/abinnihal/labflow-computer-lab-management-system-sub000/internal/pkg/logger"
	"github.com/abinnihal/labflow-computer-lab-management-system-sub000/internal/pkg/metrics"
)

const deliveryTimeout = 10 * time.Second

// Dispatcher queues events and delivers them to a Sink from a pool of
// workers, so Emit never waits on the downstream transport.
type Dispatcher struct {
	size    int
	jobs    chan Event
	sink    Sink
	log     *logger.Logger
	metrics *metrics.Recorder

	mu     sync.RWMutex
	closed bool
	wg     sync.WaitGroup
}

// NewDispatcher creates a dispatcher with size workers and a queue of queueSize events.
func NewDispatcher(sink Sink, size, queueSize int, log *logger.Logger, rec *metrics.Recorder) *Dispatcher {
	if size < 1 {
		size = 1
	}
	if queueSize < 1 {
		queueSize = size
	}
	if log == nil {
		log = logger.Nop()
	}
	return &Dispatcher{
		size:    size,
		jobs:    make(chan Event, queueSize),
		sink:    sink,
		log:     log.Named("notification"),
		metrics: rec,
	}
}

// Start launches the worker goroutines. Workers stop once Close has been
// called and the queue is drained, or when ctx is cancelled.
func (d *Dispatcher) Start(ctx context.Context) {
	for i := 0; i < d.size; i++ {
		d.wg.Add(1)
		go d.worker(ctx, i)
	}
}

func (d *Dispatcher) worker(ctx context.Context, id int) {
	defer d.wg.Done()
	d.log.Debug("notification worker started", "worker", id)
	for {
		select {
		case ev, ok := <-d.jobs:
			if !ok {
				d.log.Debug("notification worker stopped", "worker", id)
				return
			}
			d.deliver(ctx, ev)
		case <-ctx.Done():
			d.log.Debug("notification worker shutting down", "worker", id)
			return
		}
	}
}

func (d *Dispatcher) deliver(ctx context.Context, ev Event) {
	ctx, cancel := context.WithTimeout(context.WithoutCancel(ctx), deliveryTimeout)
	defer cancel()

	if err := d.sink.Emit(ctx, ev); err != nil {
		d.metrics.Notification("failed")
		d.log.Warn("notification delivery failed",
			"recipient", ev.Recipient,
			"booking_id", ev.BookingID,
			"error", err,
		)
		return
	}
	d.metrics.Notification("delivered")
}

// Emit enqueues ev without blocking. It returns ErrQueueFull when the
// queue has no room and ErrDispatcherClosed after Close.
func (d *Dispatcher) Emit(_ context.Context, ev Event) error {
	d.mu.RLock()
	defer d.mu.RUnlock()

	if d.closed {
		d.metrics.Notification("dropped")
		return ErrDispatcherClosed
	}
	if ev.CreatedAt.IsZero() {
		ev.CreatedAt = time.Now().UTC()
	}

	select {
	case d.jobs <- ev:
		return nil
	default:
		d.metrics.Notification("dropped")
		return ErrQueueFull
	}
}

// Close stops accepting events and waits for queued ones to be delivered.
func (d *Dispatcher) Close() {
	d.mu.Lock()
	if d.closed {
		d.mu.Unlock()
		return
	}
	d.closed = true
	close(d.jobs)
	d.mu.Unlock()

	d.wg.Wait()
}
