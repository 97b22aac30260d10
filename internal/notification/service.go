package notification

import (
	"context"
	"time"
)

// Reader identifies who is reading the inbox.
type Reader struct {
	UserID     string
	Privileged bool
}

// Recipients returns every address whose notifications r may see.
func (r Reader) Recipients() []string {
	if r.Privileged {
		return []string{r.UserID, GroupApprovers}
	}
	return []string{r.UserID}
}

type Service interface {
	List(ctx context.Context, reader Reader, unreadOnly bool, page, pageSize int) ([]*Notification, int, error)
	MarkRead(ctx context.Context, reader Reader, id string) error
}

type service struct {
	repo Repository
	now  func() time.Time
}

func NewService(repo Repository) Service {
	return &service{
		repo: repo,
		now:  time.Now,
	}
}

func (s *service) List(ctx context.Context, reader Reader, unreadOnly bool, page, pageSize int) ([]*Notification, int, error) {
	return s.repo.List(ctx, Filter{
		Recipients: reader.Recipients(),
		UnreadOnly: unreadOnly,
		Page:       page,
		PageSize:   pageSize,
	})
}

// MarkRead marks one notification read. Group notifications share a single
// read marker across the group.
func (s *service) MarkRead(ctx context.Context, reader Reader, id string) error {
	return s.repo.MarkRead(ctx, id, reader.Recipients(), s.now().UTC())
}
