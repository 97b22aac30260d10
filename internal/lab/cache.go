package lab

import (
	"context"
	"time"

	"github.com/patrickmn/go-cache"
)

// CachedRepository keeps recently read labs in memory for a TTL. Writes go
// through to the wrapped repository and evict the cached entry.
type CachedRepository struct {
	next  Repository
	store *cache.Cache
}

func NewCachedRepository(next Repository, ttl time.Duration) *CachedRepository {
	return &CachedRepository{
		next:  next,
		store: cache.New(ttl, 2*ttl),
	}
}

func (r *CachedRepository) GetByID(ctx context.Context, id string) (*Lab, error) {
	if v, found := r.store.Get(id); found {
		return cloneLab(v.(*Lab)), nil
	}

	l, err := r.next.GetByID(ctx, id)
	if err != nil {
		return nil, err
	}
	r.store.SetDefault(id, cloneLab(l))
	return l, nil
}

func (r *CachedRepository) List(ctx context.Context, filter Filter) ([]*Lab, int, error) {
	return r.next.List(ctx, filter)
}

func (r *CachedRepository) Create(ctx context.Context, l *Lab) error {
	return r.next.Create(ctx, l)
}

// Update evicts after the write lands, so a read racing the write cannot
// re-cache the old row for a full TTL.
func (r *CachedRepository) Update(ctx context.Context, l *Lab) error {
	r.store.Delete(l.ID)
	if err := r.next.Update(ctx, l); err != nil {
		return err
	}
	r.store.Delete(l.ID)
	return nil
}
