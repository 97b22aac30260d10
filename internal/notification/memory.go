package notification

import (
	"context"
	"slices"
	"sort"
	"sync"
	"time"

	"github.com/google/uuid"
)

type memoryRepository struct {
	mu    sync.RWMutex
	items []*Notification
}

// NewMemoryRepository returns an inbox kept in process memory.
func NewMemoryRepository() Repository {
	return &memoryRepository{}
}

func (r *memoryRepository) Create(_ context.Context, n *Notification) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	n.ID = uuid.NewString()
	if n.CreatedAt.IsZero() {
		n.CreatedAt = time.Now().UTC()
	}
	cp := *n
	r.items = append(r.items, &cp)
	return nil
}

func (r *memoryRepository) List(_ context.Context, filter Filter) ([]*Notification, int, error) {
	r.mu.RLock()
	var matched []*Notification
	for _, n := range r.items {
		if !slices.Contains(filter.Recipients, n.Recipient) {
			continue
		}
		if filter.UnreadOnly && n.ReadAt != nil {
			continue
		}
		cp := *n
		matched = append(matched, &cp)
	}
	r.mu.RUnlock()

	sort.SliceStable(matched, func(i, j int) bool {
		return matched[i].CreatedAt.After(matched[j].CreatedAt)
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
		return []*Notification{}, total, nil
	}
	end := min(start+size, total)
	return matched[start:end], total, nil
}

func (r *memoryRepository) MarkRead(_ context.Context, id string, recipients []string, at time.Time) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	for _, n := range r.items {
		if n.ID != id || !slices.Contains(recipients, n.Recipient) {
			continue
		}
		if n.ReadAt == nil {
			t := at
			n.ReadAt = &t
		}
		return nil
	}
	return ErrNotFound
}
