package menu

import (
	"context"
	"fmt"
	"strings"

	"github.com/google/uuid"
)

// Service validates menu edits before they reach the repository.
type Service struct {
	repo Repository
}

func NewService(repo Repository) *Service {
	return &Service{repo: repo}
}

func (s *Service) Create(ctx context.Context, it Item) (Item, error) {
	normalize(&it)
	if err := validate(it); err != nil {
		return Item{}, err
	}
	it.ID = uuid.NewString()
	if err := s.repo.Create(ctx, &it); err != nil {
		return Item{}, err
	}
	return it, nil
}

func (s *Service) Update(ctx context.Context, id string, it Item) (Item, error) {
	normalize(&it)
	if err := validate(it); err != nil {
		return Item{}, err
	}
	it.ID = id
	if err := s.repo.Update(ctx, &it); err != nil {
		return Item{}, err
	}
	return it, nil
}

func (s *Service) Get(ctx context.Context, id string) (Item, error) {
	return s.repo.Get(ctx, id)
}

func (s *Service) List(ctx context.Context, f Filter) ([]Item, error) {
	return s.repo.List(ctx, f)
}

func (s *Service) Delete(ctx context.Context, id string) error {
	return s.repo.Delete(ctx, id)
}

func (s *Service) SetAvailability(ctx context.Context, id string, available bool) error {
	return s.repo.SetAvailability(ctx, id, available)
}

func normalize(it *Item) {
	it.Name = strings.TrimSpace(it.Name)
	it.Category = strings.ToLower(strings.TrimSpace(it.Category))
	it.Description = strings.TrimSpace(it.Description)
	it.Price = it.Price.Round(2)
}

func validate(it Item) error {
	if it.Name == "" {
		return fmt.Errorf("%w: name is required", ErrInvalid)
	}
	if !it.Price.IsPositive() {
		return fmt.Errorf("%w: price must be greater than zero", ErrInvalid)
	}
	return nil
}
