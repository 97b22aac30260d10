package booking

import (
	"context"
	"sort"
	"sync"
	"time"

	"github.com/google/uuid"
)

type memoryState struct {
	mu        sync.RWMutex
	bookings  map[string]*Booking
	logs      map[string][]LogEntry
	nextLogID int64

	locksMu  sync.Mutex
	labLocks map[string]*sync.Mutex
}

type memoryRepository struct {
	state *memoryState
	inTx  bool
}

// NewMemoryRepository returns a Repository kept in process memory. RunInTx
// serializes callers per lab but does not roll back writes on error.
func NewMemoryRepository() Repository {
	return &memoryRepository{state: &memoryState{
		bookings: make(map[string]*Booking),
		logs:     make(map[string][]LogEntry),
		labLocks: make(map[string]*sync.Mutex),
	}}
}

func cloneBooking(b *Booking) *Booking {
	cp := *b
	cp.Logs = nil
	return &cp
}

func (r *memoryRepository) Create(_ context.Context, b *Booking) error {
	s := r.state
	s.mu.Lock()
	defer s.mu.Unlock()

	now := time.Now().UTC()
	b.ID = uuid.NewString()
	b.CreatedAt = now
	b.UpdatedAt = now
	s.bookings[b.ID] = cloneBooking(b)
	return nil
}

func (r *memoryRepository) GetByID(_ context.Context, id string) (*Booking, error) {
	s := r.state
	s.mu.RLock()
	defer s.mu.RUnlock()

	b, ok := s.bookings[id]
	if !ok {
		return nil, notFoundError()
	}
	cp := cloneBooking(b)
	cp.Logs = append([]LogEntry(nil), s.logs[id]...)
	return cp, nil
}

func matchesStatus(b *Booking, status Status, now time.Time) bool {
	if status == "" {
		return true
	}
	return b.EffectiveStatus(now) == status
}

func (r *memoryRepository) List(_ context.Context, filter Filter) ([]*Booking, int, error) {
	s := r.state
	s.mu.RLock()
	var matched []*Booking
	for _, b := range s.bookings {
		if filter.RequesterID != "" && b.Requester.ID != filter.RequesterID {
			continue
		}
		if filter.LabID != "" && b.LabID != filter.LabID {
			continue
		}
		if !matchesStatus(b, filter.Status, filter.Now) {
			continue
		}
		if filter.From != nil && !b.EndTime.After(*filter.From) {
			continue
		}
		if filter.To != nil && !b.StartTime.Before(*filter.To) {
			continue
		}
		matched = append(matched, cloneBooking(b))
	}
	s.mu.RUnlock()

	asc := filter.SortOrder == "ASC"
	sort.Slice(matched, func(i, j int) bool {
		a, b := matched[i], matched[j]
		if !a.StartTime.Equal(b.StartTime) {
			return a.StartTime.Before(b.StartTime) == asc
		}
		return (a.ID < b.ID) == asc
	})

	total := len(matched)
	page, size := filter.Page, filter.PageSize
	if page < 1 {
		page = 1
	}
	if size < 1 {
		size = 20
	}
	start := (page - 1) * size
	if start >= total {
		return []*Booking{}, total, nil
	}
	end := min(start+size, total)
	return matched[start:end], total, nil
}

func (r *memoryRepository) ListActiveForLab(_ context.Context, labID, excludeID string, now time.Time) ([]*Booking, error) {
	s := r.state
	s.mu.RLock()
	var out []*Booking
	for _, b := range s.bookings {
		if b.LabID != labID || b.ID == excludeID || !b.Active(now) {
			continue
		}
		out = append(out, cloneBooking(b))
	}
	s.mu.RUnlock()

	return sortedByStart(out), nil
}

func (r *memoryRepository) Update(_ context.Context, id string, f Fields) error {
	s := r.state
	s.mu.Lock()
	defer s.mu.Unlock()

	b, ok := s.bookings[id]
	if !ok {
		return notFoundError()
	}
	if f.LabID != nil {
		b.LabID = *f.LabID
	}
	if f.Subject != nil {
		b.Subject = *f.Subject
	}
	if f.StartTime != nil {
		b.StartTime = *f.StartTime
	}
	if f.EndTime != nil {
		b.EndTime = *f.EndTime
	}
	if f.SystemCount != nil {
		b.SystemCount = *f.SystemCount
	}
	if f.Status != nil {
		b.Status = *f.Status
	}
	if f.Override != nil {
		b.Override = *f.Override
	}
	b.UpdatedAt = time.Now().UTC()
	return nil
}

func (r *memoryRepository) AppendLog(_ context.Context, entry *LogEntry) error {
	s := r.state
	s.mu.Lock()
	defer s.mu.Unlock()

	if _, ok := s.bookings[entry.BookingID]; !ok {
		return notFoundError()
	}
	s.nextLogID++
	entry.ID = s.nextLogID
	s.logs[entry.BookingID] = append(s.logs[entry.BookingID], *entry)
	return nil
}

func (s *memoryState) labLock(id string) *sync.Mutex {
	s.locksMu.Lock()
	defer s.locksMu.Unlock()

	l, ok := s.labLocks[id]
	if !ok {
		l = &sync.Mutex{}
		s.labLocks[id] = l
	}
	return l
}

func (r *memoryRepository) RunInTx(ctx context.Context, labIDs []string, fn func(repo Repository) error) error {
	if r.inTx {
		return fn(r)
	}

	for _, id := range sortedUnique(labIDs) {
		l := r.state.labLock(id)
		l.Lock()
		defer l.Unlock()
	}

	if err := ctx.Err(); err != nil {
		return err
	}
	return fn(&memoryRepository{state: r.state, inTx: true})
}
