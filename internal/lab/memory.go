package lab

import (
	"context"
	"sort"
	"sync"
	"time"

	"github.com/google/uuid"
)

type memoryRepository struct {
	mu   sync.RWMutex
	labs map[string]*Lab
}

// NewMemoryRepository returns a Repository backed by a map.
func NewMemoryRepository() Repository {
	return &memoryRepository{labs: make(map[string]*Lab)}
}

func cloneLab(l *Lab) *Lab {
	cp := *l
	if l.MaintenanceUntil != nil {
		t := *l.MaintenanceUntil
		cp.MaintenanceUntil = &t
	}
	return &cp
}

func (r *memoryRepository) Create(_ context.Context, l *Lab) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	if l.ID == "" {
		l.ID = uuid.NewString()
	}
	if l.CreatedAt.IsZero() {
		l.CreatedAt = time.Now().UTC()
	}
	r.labs[l.ID] = cloneLab(l)
	return nil
}

func (r *memoryRepository) GetByID(_ context.Context, id string) (*Lab, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	l, ok := r.labs[id]
	if !ok {
		return nil, ErrNotFound
	}
	return cloneLab(l), nil
}

func (r *memoryRepository) List(_ context.Context, filter Filter) ([]*Lab, int, error) {
	r.mu.RLock()
	all := make([]*Lab, 0, len(r.labs))
	for _, l := range r.labs {
		if filter.Status != "" && l.Status != filter.Status {
			continue
		}
		all = append(all, cloneLab(l))
	}
	r.mu.RUnlock()

	desc := filter.SortOrder == "DESC"
	sort.Slice(all, func(i, j int) bool {
		a, b := all[i], all[j]
		if a.Name != b.Name {
			return (a.Name < b.Name) != desc
		}
		return (a.ID < b.ID) != desc
	})

	total := len(all)
	page, size := filter.Page, filter.PageSize
	if page < 1 {
		page = 1
	}
	if size < 1 {
		size = 20
	}
	start := (page - 1) * size
	if start >= total {
		return []*Lab{}, total, nil
	}
	end := min(start+size, total)
	return all[start:end], total, nil
}

func (r *memoryRepository) Update(_ context.Context, l *Lab) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	existing, ok := r.labs[l.ID]
	if !ok {
		return ErrNotFound
	}
	cp := cloneLab(l)
	cp.CreatedAt = existing.CreatedAt
	r.labs[l.ID] = cp
	return nil
}
