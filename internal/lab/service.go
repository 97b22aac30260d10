package lab

import (
	"context"
	"strings"
)

type Service interface {
	Create(ctx context.Context, req CreateRequest) (*Lab, error)
	GetByID(ctx context.Context, id string) (*Lab, error)
	List(ctx context.Context, filter Filter) ([]*Lab, int, error)
	Update(ctx context.Context, id string, req UpdateRequest) (*Lab, error)
}

type service struct {
	repo Repository
}

func NewService(repo Repository) Service {
	return &service{repo: repo}
}

func (s *service) Create(ctx context.Context, req CreateRequest) (*Lab, error) {
	status := req.Status
	if status == "" {
		status = StatusActive
	}

	l := &Lab{
		Name:     strings.TrimSpace(req.Name),
		Capacity: req.Capacity,
		Status:   status,
	}
	if status == StatusMaintenance {
		l.MaintenanceUntil = req.MaintenanceUntil
	}
	if err := validate(l); err != nil {
		return nil, err
	}

	if err := s.repo.Create(ctx, l); err != nil {
		return nil, err
	}
	return l, nil
}

func (s *service) GetByID(ctx context.Context, id string) (*Lab, error) {
	return s.repo.GetByID(ctx, id)
}

func (s *service) List(ctx context.Context, filter Filter) ([]*Lab, int, error) {
	return s.repo.List(ctx, filter)
}

func (s *service) Update(ctx context.Context, id string, req UpdateRequest) (*Lab, error) {
	l, err := s.repo.GetByID(ctx, id)
	if err != nil {
		return nil, err
	}

	if req.Name != nil {
		l.Name = strings.TrimSpace(*req.Name)
	}
	if req.Capacity != nil {
		l.Capacity = *req.Capacity
	}
	if req.Status != nil {
		l.Status = *req.Status
	}
	if req.MaintenanceUntil != nil {
		l.MaintenanceUntil = req.MaintenanceUntil
	}
	// A maintenance window has no meaning once the lab leaves MAINTENANCE.
	if req.ClearMaintenance || l.Status != StatusMaintenance {
		l.MaintenanceUntil = nil
	}

	if err := validate(l); err != nil {
		return nil, err
	}
	if err := s.repo.Update(ctx, l); err != nil {
		return nil, err
	}
	return l, nil
}
