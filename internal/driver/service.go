package driver

import (
	"context"
	"fmt"
	"strings"

	"github.com/google/uuid"
)

// Service covers driver administration. Location updates and assignment go
// through dispatch, which also notifies the tracking rooms.
type Service struct {
	repo Repository
}

func NewService(repo Repository) *Service {
	return &Service{repo: repo}
}

func (s *Service) Create(ctx context.Context, d Driver) (Driver, error) {
	normalize(&d)
	if err := validate(d); err != nil {
		return Driver{}, err
	}
	d.ID = uuid.NewString()
	d.Active = true
	d.Available = true
	d.Location = nil
	d.CurrentOrderID = ""
	if err := s.repo.Create(ctx, &d); err != nil {
		return Driver{}, err
	}
	return d, nil
}

func (s *Service) Get(ctx context.Context, id string) (Driver, error) {
	return s.repo.Get(ctx, id)
}

func (s *Service) List(ctx context.Context, f Filter) ([]Driver, error) {
	return s.repo.List(ctx, f)
}

func (s *Service) Update(ctx context.Context, id string, d Driver) (Driver, error) {
	normalize(&d)
	if err := validate(d); err != nil {
		return Driver{}, err
	}
	d.ID = id
	if err := s.repo.Update(ctx, &d); err != nil {
		return Driver{}, err
	}
	return d, nil
}

func (s *Service) Deactivate(ctx context.Context, id string) error {
	return s.repo.Deactivate(ctx, id)
}

func (s *Service) SetAvailability(ctx context.Context, id string, available bool) (Driver, error) {
	return s.repo.SetAvailability(ctx, id, available)
}

func normalize(d *Driver) {
	d.Name = strings.TrimSpace(d.Name)
	d.Phone = strings.TrimSpace(d.Phone)
	d.Vehicle = strings.TrimSpace(d.Vehicle)
}

func validate(d Driver) error {
	if d.Name == "" {
		return fmt.Errorf("%w: name is required", ErrInvalid)
	}
	if d.Phone == "" {
		return fmt.Errorf("%w: phone is required", ErrInvalid)
	}
	return nil
}
